package chart

import (
	"testing"

	"github.com/ehr/intake/internal/platform/store"
)

func TestAnnotate(t *testing.T) {
	tests := []struct {
		name      string
		resource  store.Resource
		wantLabel string
		wantCode  string
	}{
		{
			name: "coded observation",
			resource: store.Resource{
				"resourceType": "Observation",
				"id":           "o1",
				"code": map[string]interface{}{
					"coding": []interface{}{map[string]interface{}{"system": "http://loinc.org", "code": "39156-5", "display": "Body mass index (BMI) [Ratio]"}},
				},
			},
			wantLabel: "Body mass index (BMI) [Ratio]",
			wantCode:  "39156-5",
		},
		{
			name: "text-only goal",
			resource: store.Resource{
				"resourceType": "Goal",
				"id":           "g1",
				"description":  map[string]interface{}{"text": "Lose 40 pounds"},
			},
			wantLabel: "Lose 40 pounds",
		},
		{
			name: "medication statement",
			resource: store.Resource{
				"resourceType":              "MedicationStatement",
				"id":                        "m1",
				"medicationCodeableConcept": map[string]interface{}{"text": "Semaglutide"},
			},
			wantLabel: "Semaglutide",
		},
		{
			name: "appointment",
			resource: store.Resource{
				"resourceType": "Appointment",
				"id":           "a1",
				"description":  "Initial consultation",
			},
			wantLabel: "Initial consultation",
		},
		{
			name:      "no naming element",
			resource:  store.Resource{"resourceType": "Media", "id": "x1"},
			wantLabel: "Media",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := Annotate(tt.resource, "https://console.example.com")
			if l.Label != tt.wantLabel {
				t.Errorf("expected label %q, got %q", tt.wantLabel, l.Label)
			}
			if l.Code != tt.wantCode {
				t.Errorf("expected code %q, got %q", tt.wantCode, l.Code)
			}
			want := "https://console.example.com/" + tt.resource["resourceType"].(string) + "/" + tt.resource["id"].(string)
			if l.URL != want {
				t.Errorf("expected url %s, got %s", want, l.URL)
			}
		})
	}
}

func TestAnnotate_NoConsole(t *testing.T) {
	l := Annotate(store.Resource{"resourceType": "Condition", "id": "c1"}, "")
	if l.URL != "" {
		t.Errorf("expected no url, got %s", l.URL)
	}
	if l.Type != "Condition" || l.ID != "c1" {
		t.Errorf("unexpected link %+v", l)
	}
}
