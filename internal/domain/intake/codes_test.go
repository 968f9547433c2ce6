package intake

import "testing"

func TestLookupCode(t *testing.T) {
	tests := []struct {
		text     string
		wantCode string
		wantOK   bool
	}{
		{"Reduce cardiovascular risk", "49601007", true},
		{"Heart health", "49601007", true},
		{"Lower my Blood Pressure", "38341003", true},
		{"blood sugar control", "44054006", true},
		{"Lose WEIGHT", "89362005", true},
		{"More energy", "84229001", true},
		{"wants to feel better", "", false},
		{"", "", false},
		{"   ", "", false},
	}
	for _, tt := range tests {
		e, ok := LookupCode(GoalReasonCodes, tt.text)
		if ok != tt.wantOK {
			t.Errorf("LookupCode(%q): expected ok=%v, got %v", tt.text, tt.wantOK, ok)
			continue
		}
		if e.Code != tt.wantCode {
			t.Errorf("LookupCode(%q): expected code %q, got %q", tt.text, tt.wantCode, e.Code)
		}
	}
}

// "cardiovascular blood pressure" contains two keywords; the earlier table
// entry must win.
func TestLookupCode_FirstMatchWins(t *testing.T) {
	e, ok := LookupCode(GoalReasonCodes, "cardiovascular blood pressure concerns")
	if !ok {
		t.Fatal("expected a match")
	}
	if e.Keyword != "cardiovascular" {
		t.Errorf("expected cardiovascular entry, got %q", e.Keyword)
	}
}

func TestLookupCode_ConditionSpecificity(t *testing.T) {
	tests := map[string]string{
		"Type 2 Diabetes":         "44054006",
		"type 1 diabetes":         "46635009",
		"Prediabetes":             "714628002",
		"diabetes (unspecified)":  "73211009",
		"High blood pressure":     "38341003",
		"History of pancreatitis": "75694006",
	}
	for text, want := range tests {
		e, ok := LookupCode(ConditionCodes, text)
		if !ok || e.Code != want {
			t.Errorf("LookupCode(%q): expected %s, got %q (ok=%v)", text, want, e.Code, ok)
		}
	}
}

func TestConditionCoding(t *testing.T) {
	s := minimalSubmission()
	s.Comorbidities = []string{"Type 2 diabetes", "Bad knees"}
	conds := Assemble(s, testOptions("id")...).OfKind(KindCondition)
	if len(conds) != 2 {
		t.Fatalf("expected 2 conditions, got %d", len(conds))
	}

	coded := conds[0].Resource.(*Condition)
	if len(coded.Code.Coding) != 1 || coded.Code.Coding[0].Code != "44054006" {
		t.Errorf("expected SNOMED coding, got %+v", coded.Code.Coding)
	}
	if coded.Code.Text != "Type 2 diabetes" {
		t.Errorf("expected original text kept, got %q", coded.Code.Text)
	}

	plain := conds[1].Resource.(*Condition)
	if len(plain.Code.Coding) != 0 || plain.Code.Text != "Bad knees" {
		t.Errorf("expected text-only condition, got %+v", plain.Code)
	}
	if plain.Category[1].Coding[0].Code != "comorbidity" {
		t.Errorf("expected comorbidity category, got %+v", plain.Category)
	}
}
