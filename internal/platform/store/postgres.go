package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/intake/internal/platform/fhir"
)

// PGStore keeps FHIR resources as JSONB rows in the fhir_resource table
// created by the bundled migrations. A transaction Bundle is written in one
// database transaction.
type PGStore struct {
	pool  *pgxpool.Pool
	newID func() string
	now   func() time.Time
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{
		pool:  pool,
		newID: func() string { return uuid.New().String() },
		now:   time.Now,
	}
}

func (s *PGStore) WriteTransaction(ctx context.Context, bundle *fhir.Bundle) (*TransactionResult, error) {
	const op = "transaction"
	now := s.now().UTC()
	planned, err := planTransaction(op, bundle, s.newID, now)
	if err != nil {
		return nil, err
	}
	batchID := s.newID()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, classifyPG(op, err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, p := range planned {
		content, err := json.Marshal(p.content)
		if err != nil {
			return nil, malformed(op, fmt.Sprintf("encoding %s: %v", p.resourceType, err))
		}
		batch.Queue(`INSERT INTO fhir_resource (resource_type, id, subject, content, batch_id, last_updated)
			VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)`,
			p.resourceType, p.id, p.subject, content, batchID, now)
	}

	br := tx.SendBatch(ctx, batch)
	for _, p := range planned {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return nil, classifyPG(op, fmt.Errorf("insert %s: %w", p.resourceType, err))
		}
	}
	if err := br.Close(); err != nil {
		return nil, classifyPG(op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, classifyPG(op, err)
	}

	result := &TransactionResult{BatchID: batchID, Locations: make([]string, 0, len(planned))}
	for _, p := range planned {
		result.Locations = append(result.Locations, fhir.FormatReference(p.resourceType, p.id))
	}
	return result, nil
}

func (s *PGStore) Read(ctx context.Context, resourceType, id string) (Resource, error) {
	const op = "read"
	var content []byte
	err := s.pool.QueryRow(ctx,
		`SELECT content FROM fhir_resource WHERE resource_type = $1 AND id = $2`,
		resourceType, id,
	).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(op, resourceType, id)
	}
	if err != nil {
		return nil, classifyPG(op, err)
	}
	var r Resource
	if err := json.Unmarshal(content, &r); err != nil {
		return nil, &Error{Kind: KindUnavailable, Op: op, Err: fmt.Errorf("decoding %s/%s: %w", resourceType, id, err)}
	}
	return r, nil
}

func (s *PGStore) Search(ctx context.Context, resourceType string, q SearchQuery) ([]Resource, error) {
	const op = "search"
	order := "DESC"
	if q.Sort == "_lastUpdated" {
		order = "ASC"
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 1000
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT content FROM fhir_resource
		 WHERE resource_type = $1 AND ($2 = '' OR subject = $2)
		 ORDER BY last_updated %s, id
		 LIMIT $3`, order),
		resourceType, q.Subject, limit,
	)
	if err != nil {
		return nil, classifyPG(op, err)
	}
	defer rows.Close()

	var out []Resource
	for rows.Next() {
		var content []byte
		if err := rows.Scan(&content); err != nil {
			return nil, classifyPG(op, err)
		}
		var r Resource
		if err := json.Unmarshal(content, &r); err != nil {
			return nil, &Error{Kind: KindUnavailable, Op: op, Err: fmt.Errorf("decoding %s: %w", resourceType, err)}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPG(op, err)
	}
	return out, nil
}

func (s *PGStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return classifyPG("ping", err)
	}
	return nil
}

// classifyPG maps database errors onto store kinds. Data and integrity
// violations are malformed writes and privilege errors are auth failures.
// Anything else counts as unavailability.
func classifyPG(op string, err error) *Error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case "22", "23":
			return &Error{Kind: KindMalformed, Op: op, Diagnostics: pgErr.Message, Err: err}
		case "28", "42":
			if pgErr.Code == "42501" || pgErr.Code[:2] == "28" {
				return &Error{Kind: KindAuth, Op: op, Diagnostics: pgErr.Message, Err: err}
			}
		}
	}
	return FromTransport(op, err)
}
