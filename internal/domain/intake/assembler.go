package intake

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/intake/internal/platform/fhir"
	"github.com/ehr/intake/pkg/fhirmodels"
)

// RecordBatch is the complete set of records built from one submission,
// written as a single transaction.
type RecordBatch struct {
	// SubmissionID is the caller-facing id. It is independent of every
	// internal record id.
	SubmissionID string
	PatientID    string
	CreatedAt    time.Time
	Records      []Record

	index map[string]Record
}

// Lookup returns the record with the given internal id.
func (b *RecordBatch) Lookup(id string) (Record, bool) {
	r, ok := b.index[id]
	return r, ok
}

// Count returns the number of records of a FHIR resource type.
func (b *RecordBatch) Count(resourceType string) int {
	n := 0
	for _, r := range b.Records {
		if r.ResourceType() == resourceType {
			n++
		}
	}
	return n
}

// OfKind returns the records produced by one builder kind, in order.
func (b *RecordBatch) OfKind(kind string) []Record {
	var out []Record
	for _, r := range b.Records {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// Bundle renders the batch as a FHIR transaction Bundle. Every entry is a
// POST addressed by its urn:uuid fullUrl, so the repository resolves the
// internal references when it assigns real ids.
func (b *RecordBatch) Bundle() (*fhir.Bundle, error) {
	bundle := fhir.NewTransactionBundle(b.CreatedAt)
	bundle.Identifier = &fhir.Identifier{System: fhirmodels.IdentifierSubmission, Value: b.SubmissionID}
	for _, r := range b.Records {
		if err := bundle.AddCreate(r.FullURL(), r.ResourceType(), r.Resource); err != nil {
			return nil, fmt.Errorf("bundle record %s: %w", r.ID, err)
		}
	}
	return bundle, nil
}

type assembleConfig struct {
	now      func() time.Time
	newID    func() string
	builders []Builder
}

// AssembleOption customises Assemble.
type AssembleOption func(*assembleConfig)

// WithClock sets the time source stamped on records.
func WithClock(now func() time.Time) AssembleOption {
	return func(c *assembleConfig) { c.now = now }
}

// WithIDGenerator sets the generator for internal and submission ids.
func WithIDGenerator(newID func() string) AssembleOption {
	return func(c *assembleConfig) { c.newID = newID }
}

// WithBuilders replaces the builder set.
func WithBuilders(builders []Builder) AssembleOption {
	return func(c *assembleConfig) { c.builders = builders }
}

// Assemble runs every triggered builder in order and collects their records
// into one batch. The Patient id is generated before any builder runs so
// every record can reference it. Assemble performs no I/O.
func Assemble(s *Submission, opts ...AssembleOption) *RecordBatch {
	cfg := assembleConfig{
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.builders == nil {
		cfg.builders = Builders()
	}

	now := cfg.now()
	patientID := cfg.newID()
	ctx := BuildContext{
		PatientID: patientID,
		Subject:   fhir.Reference{Reference: fhir.URNReference(patientID), Type: "Patient"},
		Now:       now,
		NewID:     cfg.newID,
		built:     make(map[string][]Record),
	}

	batch := &RecordBatch{
		PatientID: patientID,
		CreatedAt: now,
		index:     make(map[string]Record),
	}
	for _, b := range cfg.builders {
		if !b.Triggered(s) {
			continue
		}
		records := b.Build(s, ctx)
		ctx.built[b.Kind] = append(ctx.built[b.Kind], records...)
		for _, r := range records {
			batch.Records = append(batch.Records, r)
			batch.index[r.ID] = r
		}
	}
	batch.SubmissionID = cfg.newID()
	return batch
}
