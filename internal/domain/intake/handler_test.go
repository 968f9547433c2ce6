package intake

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/intake/internal/platform/store"
	"github.com/ehr/intake/internal/platform/validation"
)

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = validation.New()
	return e
}

func postIntake(t *testing.T, h *Handler, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	e := newTestEcho()
	req := httptest.NewRequest(http.MethodPost, "/intake", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Submit(c); err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return rec, resp
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestHandler_SubmitCreated(t *testing.T) {
	mem := store.NewMemoryStore()
	h := NewHandler(newTestService(mem, nil))

	rec, resp := postIntake(t, h, mustJSON(t, fullSubmission()))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !resp.Success || resp.Message != MessageSubmitted || resp.SubmissionID == "" {
		t.Errorf("unexpected response %+v", resp)
	}
	if mem.Count() == 0 {
		t.Error("expected resources persisted")
	}
}

func TestHandler_ValidationFailed(t *testing.T) {
	mem := store.NewMemoryStore()
	h := NewHandler(newTestService(mem, nil))

	s := minimalSubmission()
	s.Email = "not-an-email"
	s.DateOfBirth = "04/12/1985"
	s.Address.ZipCode = ""
	rec, resp := postIntake(t, h, mustJSON(t, s))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if resp.Success || resp.Message != "Validation failed" {
		t.Errorf("unexpected response %+v", resp)
	}
	for _, field := range []string{"email", "dateOfBirth", "address.zipCode"} {
		if len(resp.Errors[field]) == 0 {
			t.Errorf("expected error for %s, got %v", field, resp.Errors)
		}
	}
	if mem.Count() != 0 {
		t.Error("expected nothing written for an invalid submission")
	}
}

func TestHandler_MeasurementBounds(t *testing.T) {
	tests := []struct {
		name           string
		weight, height float64
		field          string
	}{
		{"tiny height", 180, 1e-200, "height"},
		{"height too tall", 180, 200, "height"},
		{"weight too heavy", 5000, 72, "weight"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := store.NewMemoryStore()
			h := NewHandler(newTestService(mem, nil))

			s := minimalSubmission()
			s.Weight = floatPtr(tt.weight)
			s.Height = floatPtr(tt.height)
			rec, resp := postIntake(t, h, mustJSON(t, s))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			if len(resp.Errors[tt.field]) == 0 {
				t.Errorf("expected error for %s, got %v", tt.field, resp.Errors)
			}
			if mem.Count() != 0 {
				t.Error("expected nothing written")
			}
		})
	}
}

func TestHandler_MissingRequiredFields(t *testing.T) {
	h := NewHandler(newTestService(store.NewMemoryStore(), nil))
	rec, resp := postIntake(t, h, `{"firstName":"Jane"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	for _, field := range []string{"lastName", "email", "phone", "gender", "address.line1"} {
		if len(resp.Errors[field]) == 0 {
			t.Errorf("expected error for %s, got %v", field, resp.Errors)
		}
	}
}

func TestHandler_InvalidJSON(t *testing.T) {
	h := NewHandler(newTestService(store.NewMemoryStore(), nil))
	rec, resp := postIntake(t, h, `{"firstName":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(resp.Errors["body"]) == 0 {
		t.Errorf("expected body error, got %+v", resp)
	}
}

func TestHandler_RemoteFailures(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
		wantRetry   string
		wantDetails string
	}{
		{
			name:        "rate limited",
			err:         &store.Error{Kind: store.KindRateLimited, Op: "transaction", RetryAfter: 30 * time.Second},
			wantStatus:  http.StatusTooManyRequests,
			wantMessage: MessageRateLimited,
			wantRetry:   "30",
		},
		{
			name:        "rate limited without hint",
			err:         &store.Error{Kind: store.KindRateLimited, Op: "transaction"},
			wantStatus:  http.StatusTooManyRequests,
			wantMessage: MessageRateLimited,
			wantRetry:   "1",
		},
		{
			name:        "unavailable",
			err:         &store.Error{Kind: store.KindUnavailable, Op: "transaction", StatusCode: 503},
			wantStatus:  http.StatusBadGateway,
			wantMessage: MessageUnavailable,
		},
		{
			name:        "timeout",
			err:         &store.Error{Kind: store.KindUnavailable, Op: "transaction", Timeout: true},
			wantStatus:  http.StatusGatewayTimeout,
			wantMessage: MessageUnavailable,
		},
		{
			name:        "auth",
			err:         &store.Error{Kind: store.KindAuth, Op: "transaction", StatusCode: 403},
			wantStatus:  http.StatusBadGateway,
			wantMessage: MessageUnavailable,
		},
		{
			name:        "malformed",
			err:         &store.Error{Kind: store.KindMalformed, Op: "transaction", Diagnostics: "invalid reference"},
			wantStatus:  http.StatusBadRequest,
			wantMessage: MessageMalformed,
			wantDetails: "invalid reference",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(newTestService(&fakeRepo{err: tt.err}, nil))
			rec, resp := postIntake(t, h, mustJSON(t, minimalSubmission()))

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if resp.Success || resp.Message != tt.wantMessage {
				t.Errorf("unexpected response %+v", resp)
			}
			if got := rec.Header().Get("Retry-After"); got != tt.wantRetry {
				t.Errorf("expected Retry-After %q, got %q", tt.wantRetry, got)
			}
			if resp.Details != tt.wantDetails {
				t.Errorf("expected details %q, got %q", tt.wantDetails, resp.Details)
			}
		})
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	e := newTestEcho()
	NewHandler(newTestService(store.NewMemoryStore(), nil)).RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodPost, "/intake", strings.NewReader(mustJSON(t, minimalSubmission())))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}
