package chart

import (
	"strings"

	"github.com/ehr/intake/internal/platform/fhir"
	"github.com/ehr/intake/internal/platform/store"
)

// Link points a chart record back at its location in the repository
// console. It is presentation metadata only.
type Link struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Label string `json:"label"`
	Code  string `json:"code,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Annotate derives the link for one resource. consoleBaseURL may be empty,
// in which case the link carries no URL.
func Annotate(r store.Resource, consoleBaseURL string) *Link {
	rt, _ := r["resourceType"].(string)
	id, _ := r["id"].(string)
	l := &Link{
		Type:  rt,
		ID:    id,
		Label: label(rt, r),
		Code:  primaryCode(r),
	}
	if consoleBaseURL != "" && rt != "" && id != "" {
		l.URL = strings.TrimSuffix(consoleBaseURL, "/") + "/" + fhir.FormatReference(rt, id)
	}
	return l
}

// conceptElements lists, per type, the CodeableConcept elements that name
// the record, most specific first.
var conceptElements = map[string][]string{
	"Observation":         {"code"},
	"Goal":                {"description"},
	"Condition":           {"code"},
	"MedicationStatement": {"medicationCodeableConcept"},
	"Procedure":           {"code"},
	"AllergyIntolerance":  {"code"},
	"MedicationRequest":   {"medicationCodeableConcept"},
	"ServiceRequest":      {"code"},
	"Consent":             {"category", "scope"},
	"Invoice":             {"type"},
}

func label(rt string, r store.Resource) string {
	switch rt {
	case "Patient":
		if l := humanName(r["name"]); l != "" {
			return l
		}
	case "Appointment":
		if d, _ := r["description"].(string); d != "" {
			return d
		}
	case "Media":
		if content, ok := r["content"].(map[string]interface{}); ok {
			if t, _ := content["title"].(string); t != "" {
				return t
			}
		}
	case "Invoice":
		if items, ok := r["lineItem"].([]interface{}); ok && len(items) > 0 {
			if item, ok := items[0].(map[string]interface{}); ok {
				if l := conceptText(item["chargeItemCodeableConcept"]); l != "" {
					return l
				}
			}
		}
	}
	for _, elem := range conceptElements[rt] {
		if l := conceptText(r[elem]); l != "" {
			return l
		}
	}
	return rt
}

// primaryCode returns the first coding's code of the record's naming
// concept, or "" when it is text-only.
func primaryCode(r store.Resource) string {
	rt, _ := r["resourceType"].(string)
	for _, elem := range conceptElements[rt] {
		if c := firstCoding(r[elem]); c != nil {
			code, _ := c["code"].(string)
			return code
		}
	}
	return ""
}

// conceptText accepts a CodeableConcept or a list of them.
func conceptText(v interface{}) string {
	if list, ok := v.([]interface{}); ok {
		if len(list) == 0 {
			return ""
		}
		v = list[0]
	}
	cc, ok := v.(map[string]interface{})
	if !ok {
		return ""
	}
	if t, _ := cc["text"].(string); t != "" {
		return t
	}
	if c := firstCoding(cc); c != nil {
		if d, _ := c["display"].(string); d != "" {
			return d
		}
		code, _ := c["code"].(string)
		return code
	}
	return ""
}

func firstCoding(v interface{}) map[string]interface{} {
	if list, ok := v.([]interface{}); ok {
		if len(list) == 0 {
			return nil
		}
		v = list[0]
	}
	cc, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	codings, ok := cc["coding"].([]interface{})
	if !ok || len(codings) == 0 {
		return nil
	}
	c, _ := codings[0].(map[string]interface{})
	return c
}

func humanName(v interface{}) string {
	names, ok := v.([]interface{})
	if !ok || len(names) == 0 {
		return ""
	}
	n, ok := names[0].(map[string]interface{})
	if !ok {
		return ""
	}
	if t, _ := n["text"].(string); t != "" {
		return t
	}
	var parts []string
	if given, ok := n["given"].([]interface{}); ok {
		for _, g := range given {
			if s, _ := g.(string); s != "" {
				parts = append(parts, s)
			}
		}
	}
	if family, _ := n["family"].(string); family != "" {
		parts = append(parts, family)
	}
	return strings.Join(parts, " ")
}
