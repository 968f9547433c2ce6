package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/ehr/intake/internal/platform/fhir"
)

const (
	fhirContentType = "application/fhir+json"
	maxResponseBody = 16 << 20
)

// HTTPConfig configures an HTTPStore.
type HTTPConfig struct {
	BaseURL string
	// Timeout bounds each round trip. Zero means 30 seconds.
	Timeout time.Duration
	// Tokens supplies bearer tokens; nil sends unauthenticated requests.
	Tokens TokenSource
	// FailureThreshold is the number of consecutive unavailability failures
	// that opens the circuit. Zero disables the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the circuit stays open before a probe.
	OpenTimeout time.Duration
	Logger      zerolog.Logger
}

// response is a fully read repository response.
type response struct {
	status int
	header http.Header
	body   []byte
}

// HTTPStore talks to a FHIR R4 server over its REST API.
type HTTPStore struct {
	baseURL string
	client  *http.Client
	tokens  TokenSource
	breaker *gobreaker.CircuitBreaker[*response]
	logger  zerolog.Logger
}

// NewHTTPStore creates a repository client for the FHIR server at cfg.BaseURL.
func NewHTTPStore(cfg HTTPConfig) (*HTTPStore, error) {
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid FHIR base url %q: %w", cfg.BaseURL, err)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	s := &HTTPStore{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		tokens:  cfg.Tokens,
		logger:  cfg.Logger,
	}
	if cfg.FailureThreshold > 0 {
		threshold := cfg.FailureThreshold
		s.breaker = gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
			Name:        "fhir-repository",
			MaxRequests: 1,
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			// Only unavailability counts against the repository; a rejected
			// payload or credential is not a sign of an unhealthy server.
			IsSuccessful: func(err error) bool {
				return err == nil || KindOf(err) != KindUnavailable
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				s.logger.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("circuit breaker state change")
			},
		})
	}
	return s, nil
}

func (s *HTTPStore) WriteTransaction(ctx context.Context, bundle *fhir.Bundle) (*TransactionResult, error) {
	const op = "transaction"
	body, err := json.Marshal(bundle)
	if err != nil {
		return nil, malformed(op, fmt.Sprintf("encoding bundle: %v", err))
	}

	resp, err := s.do(ctx, op, http.MethodPost, s.baseURL, body)
	if err != nil {
		return nil, err
	}

	var out fhir.Bundle
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return nil, &Error{Kind: KindUnavailable, Op: op, StatusCode: resp.status, Err: fmt.Errorf("decoding transaction-response: %w", err)}
	}
	result := &TransactionResult{BatchID: out.ID}
	for _, e := range out.Entry {
		if e.Response == nil {
			continue
		}
		if rt, id, ok := fhir.ParseReference(strings.Split(e.Response.Location, "/_history")[0]); ok {
			result.Locations = append(result.Locations, fhir.FormatReference(rt, id))
		}
	}
	return result, nil
}

func (s *HTTPStore) Read(ctx context.Context, resourceType, id string) (Resource, error) {
	const op = "read"
	resp, err := s.do(ctx, op, http.MethodGet, s.baseURL+"/"+url.PathEscape(resourceType)+"/"+url.PathEscape(id), nil)
	if err != nil {
		var se *Error
		if errors.As(err, &se) && se.Kind == KindNotFound && se.Diagnostics == "" {
			se.Diagnostics = fhir.FormatReference(resourceType, id) + " not found"
		}
		return nil, err
	}
	var r Resource
	if err := json.Unmarshal(resp.body, &r); err != nil {
		return nil, &Error{Kind: KindUnavailable, Op: op, StatusCode: resp.status, Err: fmt.Errorf("decoding %s: %w", resourceType, err)}
	}
	return r, nil
}

func (s *HTTPStore) Search(ctx context.Context, resourceType string, q SearchQuery) ([]Resource, error) {
	const op = "search"
	params := url.Values{}
	if q.Param != "" && q.Subject != "" {
		params.Set(q.Param, q.Subject)
	}
	if q.Sort != "" {
		params.Set("_sort", q.Sort)
	}
	if q.Limit > 0 {
		params.Set("_count", strconv.Itoa(q.Limit))
	}
	target := s.baseURL + "/" + url.PathEscape(resourceType)
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	resp, err := s.do(ctx, op, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	var bundle fhir.Bundle
	if err := json.Unmarshal(resp.body, &bundle); err != nil {
		return nil, &Error{Kind: KindUnavailable, Op: op, StatusCode: resp.status, Err: fmt.Errorf("decoding searchset: %w", err)}
	}

	out := make([]Resource, 0, len(bundle.Entry))
	for _, r := range bundle.Resources() {
		// Included resources and OperationOutcome warnings share the bundle.
		if rt, _ := r["resourceType"].(string); rt == resourceType {
			out = append(out, r)
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Ping fetches the server's CapabilityStatement.
func (s *HTTPStore) Ping(ctx context.Context) error {
	_, err := s.do(ctx, "ping", http.MethodGet, s.baseURL+"/metadata", nil)
	return err
}

func (s *HTTPStore) do(ctx context.Context, op, method, target string, body []byte) (*response, error) {
	if s.breaker == nil {
		return s.roundTrip(ctx, op, method, target, body)
	}
	resp, err := s.breaker.Execute(func() (*response, error) {
		return s.roundTrip(ctx, op, method, target, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &Error{Kind: KindUnavailable, Op: op, Diagnostics: "repository circuit open", Err: err}
	}
	return resp, err
}

func (s *HTTPStore) roundTrip(ctx context.Context, op, method, target string, body []byte) (*response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, malformed(op, err.Error())
	}
	req.Header.Set("Accept", fhirContentType)
	if body != nil {
		req.Header.Set("Content-Type", fhirContentType)
	}
	if s.tokens != nil {
		tok, err := s.tokens.Token(ctx)
		if err != nil {
			var se *Error
			if errors.As(err, &se) {
				return nil, err
			}
			return nil, &Error{Kind: KindAuth, Op: op, Err: err}
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug().Err(err).Str("op", op).Str("method", method).Msg("repository request failed")
		return nil, FromTransport(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, FromTransport(op, err)
	}

	s.logger.Debug().
		Str("op", op).
		Str("method", method).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("repository request")

	if resp.StatusCode >= 400 {
		if resp.StatusCode == http.StatusUnauthorized {
			if inv, ok := s.tokens.(interface{ Invalidate() }); ok {
				inv.Invalidate()
			}
		}
		return nil, FromStatus(op, resp.StatusCode, resp.Header, data)
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: data}, nil
}
