package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ehr/intake/internal/platform/fhir"
)

// plannedEntry is one transaction entry after server-side id assignment and
// reference rewriting, ready to be persisted.
type plannedEntry struct {
	resourceType string
	id           string
	subject      string
	content      Resource
}

// planTransaction validates a transaction Bundle, assigns ids to every entry
// and rewrites urn:uuid references to the assigned "Type/id". Nothing is
// persisted here, so a failed plan leaves every backend untouched.
func planTransaction(op string, bundle *fhir.Bundle, newID func() string, now time.Time) ([]plannedEntry, error) {
	if bundle == nil || bundle.ResourceType != "Bundle" {
		return nil, malformed(op, "body is not a Bundle")
	}
	if bundle.Type != fhir.BundleTypeTransaction {
		return nil, malformed(op, fmt.Sprintf("bundle type %q is not a transaction", bundle.Type))
	}

	assigned := make(map[string]string, len(bundle.Entry))
	planned := make([]plannedEntry, 0, len(bundle.Entry))
	for i, entry := range bundle.Entry {
		if entry.Request == nil || entry.Request.Method != "POST" {
			return nil, malformed(op, fmt.Sprintf("entry %d: only POST requests are supported", i))
		}
		var content Resource
		if err := json.Unmarshal(entry.Resource, &content); err != nil {
			return nil, malformed(op, fmt.Sprintf("entry %d: invalid resource: %v", i, err))
		}
		rt, _ := content["resourceType"].(string)
		if rt == "" || rt != entry.Request.URL {
			return nil, malformed(op, fmt.Sprintf("entry %d: resourceType %q does not match request url %q", i, rt, entry.Request.URL))
		}
		id := newID()
		if entry.FullURL != "" {
			if _, dup := assigned[entry.FullURL]; dup {
				return nil, malformed(op, fmt.Sprintf("entry %d: duplicate fullUrl %s", i, entry.FullURL))
			}
			assigned[entry.FullURL] = fhir.FormatReference(rt, id)
		}
		content["id"] = id
		content["meta"] = map[string]interface{}{
			"versionId":   "1",
			"lastUpdated": now.UTC().Format(time.RFC3339Nano),
		}
		planned = append(planned, plannedEntry{resourceType: rt, id: id, content: content})
	}

	for i := range planned {
		if err := rewriteReferences(planned[i].content, assigned); err != nil {
			return nil, malformed(op, fmt.Sprintf("%s: %v", planned[i].resourceType, err))
		}
		planned[i].subject = subjectOf(planned[i].resourceType, planned[i].id, planned[i].content)
	}
	return planned, nil
}

// rewriteReferences walks v and replaces every "reference" naming a bundle
// fullUrl with the literal reference assigned to that entry.
func rewriteReferences(v interface{}, assigned map[string]string) error {
	switch node := v.(type) {
	case map[string]interface{}:
		for k, child := range node {
			if ref, ok := child.(string); ok && k == "reference" {
				if lit, found := assigned[ref]; found {
					node[k] = lit
				} else if fhir.IsURNReference(ref) {
					return fmt.Errorf("unresolved reference %s", ref)
				}
				continue
			}
			if err := rewriteReferences(child, assigned); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, child := range node {
			if err := rewriteReferences(child, assigned); err != nil {
				return err
			}
		}
	}
	return nil
}

// subjectOf returns the "Patient/id" reference a stored resource belongs to,
// which the local backends index for subject-scoped search.
func subjectOf(resourceType, id string, content Resource) string {
	if resourceType == "Patient" {
		return fhir.FormatReference("Patient", id)
	}
	for _, key := range []string{"subject", "patient"} {
		if ref := patientRef(content[key]); ref != "" {
			return ref
		}
	}
	if participants, ok := content["participant"].([]interface{}); ok {
		for _, p := range participants {
			if pm, ok := p.(map[string]interface{}); ok {
				if ref := patientRef(pm["actor"]); ref != "" {
					return ref
				}
			}
		}
	}
	return ""
}

func patientRef(v interface{}) string {
	m, ok := v.(map[string]interface{})
	if !ok {
		return ""
	}
	ref, _ := m["reference"].(string)
	if strings.HasPrefix(ref, "Patient/") {
		return ref
	}
	return ""
}

func cloneResource(r Resource) Resource {
	raw, err := json.Marshal(r)
	if err != nil {
		return r
	}
	var out Resource
	if err := json.Unmarshal(raw, &out); err != nil {
		return r
	}
	return out
}
