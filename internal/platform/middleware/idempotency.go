package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ehr/intake/internal/platform/fhir"
)

const (
	IdempotencyKeyHeader      = "Idempotency-Key"
	IdempotencyReplayedHeader = "X-Idempotency-Replayed"

	DefaultIdempotencyTTL = 24 * time.Hour

	// idempotencyLockTTL bounds how long an abandoned in-flight marker
	// blocks its key.
	idempotencyLockTTL = 5 * time.Minute
)

// IdempotentResponse is a stored response replayed for a repeated key.
type IdempotentResponse struct {
	Method     string      `json:"method"`
	Path       string      `json:"path"`
	StatusCode int         `json:"statusCode"`
	Header     http.Header `json:"header,omitempty"`
	Body       []byte      `json:"body"`
}

// IdempotencyStore persists responses by idempotency key. Reserve claims a
// key for an in-flight request and reports false when another request holds
// it or a response is already stored; Set replaces the claim with the
// response and Release drops it. Implementations must be safe for concurrent
// use.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*IdempotentResponse, bool, error)
	Reserve(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string, resp *IdempotentResponse) error
	Release(ctx context.Context, key string) error
}

type memoryEntry struct {
	resp      IdempotentResponse
	pending   bool
	expiresAt time.Time
}

// MemoryIdempotencyStore keeps responses in process. Expired entries are
// dropped lazily on access.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &MemoryIdempotencyStore{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryIdempotencyStore) Get(_ context.Context, key string) (*IdempotentResponse, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(key)
	if e == nil || e.pending {
		return nil, false, nil
	}
	cp := e.resp
	cp.Header = e.resp.Header.Clone()
	cp.Body = append([]byte(nil), e.resp.Body...)
	return &cp, true, nil
}

func (s *MemoryIdempotencyStore) Set(_ context.Context, key string, resp *IdempotentResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *resp
	cp.Header = resp.Header.Clone()
	cp.Body = append([]byte(nil), resp.Body...)
	s.entries[key] = &memoryEntry{resp: cp, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryIdempotencyStore) Reserve(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live(key) != nil {
		return false, nil
	}
	s.entries[key] = &memoryEntry{pending: true, expiresAt: s.now().Add(idempotencyLockTTL)}
	return true, nil
}

func (s *MemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok && e.pending {
		delete(s.entries, key)
	}
	return nil
}

// live returns the unexpired entry for key. Callers hold s.mu.
func (s *MemoryIdempotencyStore) live(key string) *memoryEntry {
	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	if s.now().After(e.expiresAt) {
		delete(s.entries, key)
		return nil
	}
	return e
}

// RedisIdempotencyStore shares responses across replicas. Entries are JSON
// under "<prefix><key>" with the store's TTL; in-flight claims are SETNX
// markers under "<prefix>lock:<key>".
type RedisIdempotencyStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &RedisIdempotencyStore{client: client, prefix: "intake:idempotency:", ttl: ttl}
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (*IdempotentResponse, bool, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get idempotency key: %w", err)
	}
	var resp IdempotentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, false, fmt.Errorf("decode idempotency entry: %w", err)
	}
	return &resp, true, nil
}

func (s *RedisIdempotencyStore) Set(ctx context.Context, key string, resp *IdempotentResponse) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode idempotency entry: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.prefix+key, raw, s.ttl)
	pipe.Del(ctx, s.lockKey(key))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set idempotency key: %w", err)
	}
	return nil
}

func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("check idempotency key: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	ok, err := s.client.SetNX(ctx, s.lockKey(key), "1", idempotencyLockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	return ok, nil
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.lockKey(key)).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

func (s *RedisIdempotencyStore) lockKey(key string) string {
	return s.prefix + "lock:" + key
}

// Idempotency replays the stored response when a POST repeats an
// Idempotency-Key. Only 201 responses are stored, so a failed submission can
// be retried under the same key. A key reused for a different path gets 422
// and a repeat that arrives while the first request is in flight gets 409.
// Store failures are logged and the request proceeds unprotected. onReplay
// may be nil.
func Idempotency(store IdempotencyStore, logger zerolog.Logger, onReplay func()) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			key := req.Header.Get(IdempotencyKeyHeader)
			if req.Method != http.MethodPost || key == "" {
				return next(c)
			}
			if len(key) > 255 {
				return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("Idempotency-Key must be at most 255 characters"))
			}
			ctx := req.Context()
			path := req.URL.Path

			cached, ok, err := store.Get(ctx, key)
			if err != nil {
				logger.Warn().Err(err).Msg("idempotency lookup failed")
			}
			if ok {
				return replay(c, cached, onReplay)
			}

			reserved, err := store.Reserve(ctx, key)
			if err != nil {
				logger.Warn().Err(err).Msg("idempotency reserve failed")
			} else if !reserved {
				// Lost the race to a request that may have just finished.
				if cached, ok, _ := store.Get(ctx, key); ok {
					return replay(c, cached, onReplay)
				}
				return c.JSON(http.StatusConflict, fhir.NewOperationOutcome(
					fhir.IssueSeverityError,
					fhir.IssueTypeConflict,
					"A request with this idempotency key is still in progress",
				))
			}

			orig := c.Response().Writer
			rec := &idempotencyRecorder{ResponseWriter: orig, body: &bytes.Buffer{}}
			c.Response().Writer = rec
			err = next(c)
			c.Response().Writer = orig

			// The claim outlives a cancelled request context.
			storeCtx := context.WithoutCancel(ctx)
			if err != nil || rec.status != http.StatusCreated {
				if reserved {
					if rerr := store.Release(storeCtx, key); rerr != nil {
						logger.Warn().Err(rerr).Msg("idempotency release failed")
					}
				}
				return err
			}

			resp := &IdempotentResponse{
				Method:     req.Method,
				Path:       path,
				StatusCode: rec.status,
				Header:     contentHeaders(c.Response().Header()),
				Body:       rec.body.Bytes(),
			}
			if err := store.Set(storeCtx, key, resp); err != nil {
				logger.Warn().Err(err).Msg("idempotency store failed")
			}
			return nil
		}
	}
}

// replay writes a stored response, or 422 when the key belongs to another
// operation.
func replay(c echo.Context, cached *IdempotentResponse, onReplay func()) error {
	req := c.Request()
	if cached.Method != req.Method || cached.Path != req.URL.Path {
		return c.JSON(http.StatusUnprocessableEntity, fhir.NewOperationOutcome(
			fhir.IssueSeverityError,
			fhir.IssueTypeBusinessRule,
			"Idempotency key was already used for a different operation",
		))
	}
	if onReplay != nil {
		onReplay()
	}
	h := c.Response().Header()
	for k, vals := range cached.Header {
		h[k] = append([]string(nil), vals...)
	}
	h.Set(IdempotencyReplayedHeader, "true")
	return c.Blob(cached.StatusCode, h.Get(echo.HeaderContentType), cached.Body)
}

// idempotencyRecorder tees the body written by the handler so it can be
// stored once the handler returns.
type idempotencyRecorder struct {
	http.ResponseWriter
	body   *bytes.Buffer
	status int
}

func (r *idempotencyRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *idempotencyRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// contentHeaders keeps only the headers that describe the stored body.
func contentHeaders(h http.Header) http.Header {
	out := make(http.Header)
	if v := h.Get(echo.HeaderContentType); v != "" {
		out.Set(echo.HeaderContentType, v)
	}
	return out
}
