package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/intake/internal/platform/fhir"
)

type memRecord struct {
	content Resource
	subject string
	updated time.Time
	seq     int64
}

// MemoryStore is an in-process Repository used for local development and
// tests. Writes are applied under a single lock, so a transaction is either
// fully visible or not at all.
type MemoryStore struct {
	mu        sync.RWMutex
	resources map[string]map[string]*memRecord
	seq       int64

	failWrite   error
	failSearch  map[string]error
	searchDelay map[string]time.Duration

	newID func() string
	now   func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		resources:   make(map[string]map[string]*memRecord),
		failSearch:  make(map[string]error),
		searchDelay: make(map[string]time.Duration),
		newID:       func() string { return uuid.New().String() },
		now:         time.Now,
	}
}

// FailNextWrite makes the next WriteTransaction return err without applying
// anything.
func (s *MemoryStore) FailNextWrite(err error) {
	s.mu.Lock()
	s.failWrite = err
	s.mu.Unlock()
}

// FailSearch makes every search of resourceType return err until cleared
// with a nil err.
func (s *MemoryStore) FailSearch(resourceType string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failSearch, resourceType)
		return
	}
	s.failSearch[resourceType] = err
}

// DelaySearch makes searches of resourceType block for d or until the
// context is done.
func (s *MemoryStore) DelaySearch(resourceType string, d time.Duration) {
	s.mu.Lock()
	s.searchDelay[resourceType] = d
	s.mu.Unlock()
}

// Count returns the number of stored resources of every type.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, byID := range s.resources {
		n += len(byID)
	}
	return n
}

// Put stores a resource directly, bypassing transaction semantics. It
// returns the assigned id.
func (s *MemoryStore) Put(resource Resource) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, _ := resource["resourceType"].(string)
	id, _ := resource["id"].(string)
	if id == "" {
		id = s.newID()
	}
	content := cloneResource(resource)
	content["id"] = id
	s.insert(rt, id, content, s.now())
	return id
}

func (s *MemoryStore) insert(rt, id string, content Resource, at time.Time) {
	byID, ok := s.resources[rt]
	if !ok {
		byID = make(map[string]*memRecord)
		s.resources[rt] = byID
	}
	s.seq++
	byID[id] = &memRecord{
		content: content,
		subject: subjectOf(rt, id, content),
		updated: at,
		seq:     s.seq,
	}
}

func (s *MemoryStore) WriteTransaction(ctx context.Context, bundle *fhir.Bundle) (*TransactionResult, error) {
	const op = "transaction"
	if err := ctx.Err(); err != nil {
		return nil, FromTransport(op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failWrite; err != nil {
		s.failWrite = nil
		return nil, err
	}

	now := s.now()
	planned, err := planTransaction(op, bundle, s.newID, now)
	if err != nil {
		return nil, err
	}

	result := &TransactionResult{
		BatchID:   s.newID(),
		Locations: make([]string, 0, len(planned)),
	}
	for _, p := range planned {
		s.insert(p.resourceType, p.id, p.content, now)
		result.Locations = append(result.Locations, fhir.FormatReference(p.resourceType, p.id))
	}
	return result, nil
}

func (s *MemoryStore) Read(ctx context.Context, resourceType, id string) (Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, FromTransport("read", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.resources[resourceType][id]
	if !ok {
		return nil, notFound("read", resourceType, id)
	}
	return cloneResource(rec.content), nil
}

func (s *MemoryStore) Search(ctx context.Context, resourceType string, q SearchQuery) ([]Resource, error) {
	const op = "search"
	s.mu.RLock()
	delay := s.searchDelay[resourceType]
	failErr := s.failSearch[resourceType]
	s.mu.RUnlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, FromTransport(op, ctx.Err())
		case <-timer.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, FromTransport(op, err)
	}
	if failErr != nil {
		return nil, failErr
	}

	s.mu.RLock()
	var matches []*memRecord
	for _, rec := range s.resources[resourceType] {
		if q.Subject == "" || rec.subject == q.Subject {
			matches = append(matches, rec)
		}
	}
	s.mu.RUnlock()

	ascending := q.Sort == "_lastUpdated"
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if !a.updated.Equal(b.updated) {
			if ascending {
				return a.updated.Before(b.updated)
			}
			return a.updated.After(b.updated)
		}
		if ascending {
			return a.seq < b.seq
		}
		return a.seq > b.seq
	})
	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}

	out := make([]Resource, 0, len(matches))
	for _, rec := range matches {
		out = append(out, cloneResource(rec.content))
	}
	return out, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}
