// Package store is the client side of the remote clinical-data repository:
// one atomic transaction write, read by id, and subject-scoped search.
// Every backend returns *Error values so callers can classify failures
// without knowing which backend is configured.
package store

import (
	"context"

	"github.com/ehr/intake/internal/platform/fhir"
)

// Resource is a FHIR resource as decoded JSON.
type Resource = map[string]interface{}

// SearchQuery selects the resources of one type that point at a subject.
type SearchQuery struct {
	// Param is the search parameter carrying the subject reference
	// ("subject", "patient", ...).
	Param string
	// Subject is a literal reference such as "Patient/123".
	Subject string
	// Sort follows FHIR _sort syntax; only "-_lastUpdated" and "_lastUpdated"
	// are understood by the local backends.
	Sort  string
	Limit int
}

// TransactionResult describes a committed transaction.
type TransactionResult struct {
	BatchID string
	// Locations holds one "Type/id" per bundle entry, in entry order.
	Locations []string
}

// Repository is the contract the intake gateway and chart reader depend on.
// Implementations must be safe for concurrent use.
type Repository interface {
	// WriteTransaction applies every entry of a transaction Bundle or none.
	WriteTransaction(ctx context.Context, bundle *fhir.Bundle) (*TransactionResult, error)
	// Read fetches one resource. A missing resource yields an error
	// matching ErrNotFound.
	Read(ctx context.Context, resourceType, id string) (Resource, error)
	// Search lists resources of resourceType matching q.
	Search(ctx context.Context, resourceType string, q SearchQuery) ([]Resource, error)
}

// Pinger is implemented by backends that can report their reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
