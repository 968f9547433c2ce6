package fhir

import (
	"encoding/json"
	"testing"
)

func TestConcept(t *testing.T) {
	c := Concept("http://loinc.org", "29463-7", "Body weight")
	if len(c.Coding) != 1 || c.Coding[0].Code != "29463-7" || c.Coding[0].System != "http://loinc.org" {
		t.Errorf("unexpected coding %+v", c.Coding)
	}
	if c.Text != "Body weight" {
		t.Errorf("expected text to match display, got %q", c.Text)
	}

	tc := TextConcept("free text")
	if len(tc.Coding) != 0 || tc.Text != "free text" {
		t.Errorf("unexpected text concept %+v", tc)
	}
}

func TestReferences(t *testing.T) {
	if got := FormatReference("Patient", "123"); got != "Patient/123" {
		t.Errorf("expected Patient/123, got %s", got)
	}
	urn := URNReference("abc")
	if urn != "urn:uuid:abc" || !IsURNReference(urn) {
		t.Errorf("unexpected urn %s", urn)
	}
	if IsURNReference("Patient/abc") {
		t.Error("expected literal reference not to be a urn")
	}
}

func TestParseReference(t *testing.T) {
	tests := []struct {
		ref    string
		rt, id string
		ok     bool
	}{
		{"Patient/123", "Patient", "123", true},
		{"https://fhir.example.com/r4/Observation/9", "Observation", "9", true},
		{"Patient/123/", "Patient", "123", true},
		{"Patient", "", "", false},
		{"/123", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		rt, id, ok := ParseReference(tt.ref)
		if rt != tt.rt || id != tt.id || ok != tt.ok {
			t.Errorf("ParseReference(%q) = %q, %q, %v; want %q, %q, %v", tt.ref, rt, id, ok, tt.rt, tt.id, tt.ok)
		}
	}
}

func TestQuantity_ZeroValueSerialized(t *testing.T) {
	data, err := json.Marshal(Quantity{Value: 0, Unit: "mg/dL"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := m["value"]; !ok {
		t.Error("expected value to be present even when zero")
	}
}

func TestExtension_OmitsEmptyValues(t *testing.T) {
	data, err := json.Marshal(Extension{URL: "http://example.com/ext", ValueString: "x"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"url":"http://example.com/ext","valueString":"x"}` {
		t.Errorf("unexpected JSON %s", data)
	}
}
