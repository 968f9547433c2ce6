package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ehr/intake/internal/platform/fhir"
)

// Kind classifies a repository failure.
type Kind string

const (
	KindMalformed   Kind = "malformed"
	KindAuth        Kind = "auth"
	KindUnavailable Kind = "unavailable"
	KindRateLimited Kind = "rate-limited"
	KindNotFound    Kind = "not-found"
)

// ErrNotFound is matched (via errors.Is) by every not-found *Error.
var ErrNotFound = errors.New("resource not found")

// Error is returned by every Repository implementation.
type Error struct {
	Kind        Kind
	Op          string
	StatusCode  int
	Diagnostics string
	RetryAfter  time.Duration
	Timeout     bool
	Err         error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("store %s: %s", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Diagnostics != "" {
		msg += ": " + e.Diagnostics
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNotFound) match not-found errors that carry a
// different cause.
func (e *Error) Is(target error) bool {
	return target == ErrNotFound && e.Kind == KindNotFound
}

// KindOf returns the Kind of a store error, or "" for anything else.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

func notFound(op, resourceType, id string) *Error {
	return &Error{
		Kind:        KindNotFound,
		Op:          op,
		StatusCode:  http.StatusNotFound,
		Diagnostics: fhir.FormatReference(resourceType, id) + " not found",
		Err:         ErrNotFound,
	}
}

func malformed(op, diagnostics string) *Error {
	return &Error{Kind: KindMalformed, Op: op, Diagnostics: diagnostics}
}

// FromStatus classifies a non-2xx repository response. body may hold an
// OperationOutcome whose diagnostics are kept for the caller.
func FromStatus(op string, status int, header http.Header, body []byte) *Error {
	e := &Error{
		Op:          op,
		StatusCode:  status,
		Diagnostics: fhir.DiagnosticsOf(body),
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = KindAuth
	case status == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
		e.RetryAfter = parseRetryAfter(header.Get("Retry-After"))
	case status == http.StatusNotFound || status == http.StatusGone:
		e.Kind = KindNotFound
		e.Err = ErrNotFound
	case status == http.StatusRequestTimeout:
		e.Kind = KindUnavailable
		e.Timeout = true
	case status >= 400 && status < 500:
		e.Kind = KindMalformed
	case status == http.StatusGatewayTimeout:
		e.Kind = KindUnavailable
		e.Timeout = true
	default:
		e.Kind = KindUnavailable
	}
	return e
}

// FromTransport classifies an error raised before any response was received.
func FromTransport(op string, err error) *Error {
	e := &Error{Kind: KindUnavailable, Op: op, Err: err}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		e.Timeout = true
	}
	return e
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}
