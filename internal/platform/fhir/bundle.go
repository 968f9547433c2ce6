package fhir

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bundle types used by the intake pipeline.
const (
	BundleTypeTransaction         = "transaction"
	BundleTypeTransactionResponse = "transaction-response"
	BundleTypeSearchset           = "searchset"
)

// Bundle represents a FHIR Bundle resource.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Identifier   *Identifier   `json:"identifier,omitempty"`
	Type         string        `json:"type"`
	Total        *int          `json:"total,omitempty"`
	Link         []BundleLink  `json:"link,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
	Timestamp    *time.Time    `json:"timestamp,omitempty"`
}

type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
	Search   *BundleSearch   `json:"search,omitempty"`
	Request  *BundleRequest  `json:"request,omitempty"`
	Response *BundleResponse `json:"response,omitempty"`
}

type BundleSearch struct {
	Mode  string   `json:"mode,omitempty"`
	Score *float64 `json:"score,omitempty"`
}

type BundleRequest struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

type BundleResponse struct {
	Status       string          `json:"status"`
	Location     string          `json:"location,omitempty"`
	LastModified *time.Time      `json:"lastModified,omitempty"`
	Outcome      json.RawMessage `json:"outcome,omitempty"`
}

// NewTransactionBundle creates an empty transaction Bundle stamped with now.
func NewTransactionBundle(now time.Time) *Bundle {
	ts := now.UTC()
	return &Bundle{
		ResourceType: "Bundle",
		Type:         BundleTypeTransaction,
		Timestamp:    &ts,
	}
}

// AddCreate appends a POST entry for resource under the given fullUrl.
func (b *Bundle) AddCreate(fullURL, resourceType string, resource interface{}) error {
	raw, err := json.Marshal(resource)
	if err != nil {
		return fmt.Errorf("marshal %s entry: %w", resourceType, err)
	}
	b.Entry = append(b.Entry, BundleEntry{
		FullURL:  fullURL,
		Resource: raw,
		Request: &BundleRequest{
			Method: "POST",
			URL:    resourceType,
		},
	})
	return nil
}

// NewTransactionResponse creates a transaction-response Bundle from entry outcomes.
func NewTransactionResponse(entries []BundleEntry) *Bundle {
	now := time.Now().UTC()
	return &Bundle{
		ResourceType: "Bundle",
		Type:         BundleTypeTransactionResponse,
		Timestamp:    &now,
		Entry:        entries,
	}
}

// NewSearchBundle creates a searchset Bundle from a list of resources.
func NewSearchBundle(resources []map[string]interface{}) *Bundle {
	now := time.Now().UTC()
	entries := make([]BundleEntry, 0, len(resources))
	for _, r := range resources {
		raw, err := json.Marshal(r)
		if err != nil {
			continue
		}
		entries = append(entries, BundleEntry{
			FullURL:  extractFullURL(r),
			Resource: raw,
			Search:   &BundleSearch{Mode: "match"},
		})
	}
	total := len(entries)
	return &Bundle{
		ResourceType: "Bundle",
		Type:         BundleTypeSearchset,
		Total:        &total,
		Timestamp:    &now,
		Entry:        entries,
	}
}

// Resources decodes every entry resource into a generic map. Entries whose
// resource cannot be decoded are skipped.
func (b *Bundle) Resources() []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(b.Entry))
	for _, e := range b.Entry {
		if len(e.Resource) == 0 {
			continue
		}
		var m map[string]interface{}
		if err := json.Unmarshal(e.Resource, &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

// extractFullURL builds a relative fullUrl from a resource's resourceType and id.
func extractFullURL(m map[string]interface{}) string {
	rt, _ := m["resourceType"].(string)
	id, _ := m["id"].(string)
	if rt != "" && id != "" {
		return FormatReference(rt, id)
	}
	return ""
}
