package intake

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ehr/intake/internal/platform/store"
)

// State is a step of the submission lifecycle:
// Validated -> Built -> Submitted -> {Persisted | Rejected | TransientFailure}.
// There is no partial-success state.
type State string

const (
	StateValidated        State = "validated"
	StateBuilt            State = "built"
	StateSubmitted        State = "submitted"
	StatePersisted        State = "persisted"
	StateRejected         State = "rejected"
	StateTransientFailure State = "transient-failure"
)

// FailureClass classifies a failed submission.
type FailureClass string

const (
	ClassMalformedRequest  FailureClass = "malformed-request"
	ClassRemoteAuthFailure FailureClass = "remote-auth-failure"
	ClassRemoteUnavailable FailureClass = "remote-unavailable"
	ClassRateLimited       FailureClass = "rate-limited"
)

// Caller-facing messages, one per outcome.
const (
	MessageSubmitted   = "Intake submitted successfully"
	MessageMalformed   = "The clinical record service rejected the submission. Please review your answers and try again."
	MessageUnavailable = "The service is temporarily unavailable. Please try again later."
	MessageRateLimited = "Too many submissions at the moment. Please wait before trying again."
)

// Outcome describes a persisted submission.
type Outcome struct {
	SubmissionID string
	State        State
	BatchID      string
	Records      int
	// PatientRef is the repository's literal reference to the new Patient,
	// when the repository reported it.
	PatientRef string
}

// SubmissionError is a classified submission failure. The batch was never
// applied, whatever the class.
type SubmissionError struct {
	Class        FailureClass
	State        State
	SubmissionID string
	Message      string
	// Diagnostics holds the repository's explanation for malformed requests.
	Diagnostics string
	RetryAfter  time.Duration
	Timeout     bool
	Err         error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("submission %s: %s: %v", e.SubmissionID, e.Class, e.Err)
	}
	return fmt.Sprintf("submission %s: %s", e.SubmissionID, e.Class)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the same submission may succeed.
func (e *SubmissionError) Retryable() bool {
	return e.Class == ClassRemoteUnavailable || e.Class == ClassRateLimited
}

// HTTPStatus maps the failure class onto the inbound API's status code.
func (e *SubmissionError) HTTPStatus() int {
	switch e.Class {
	case ClassMalformedRequest:
		return http.StatusBadRequest
	case ClassRateLimited:
		return http.StatusTooManyRequests
	case ClassRemoteUnavailable:
		if e.Timeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}

// classify turns a repository failure into a SubmissionError.
func classify(submissionID string, err error) *SubmissionError {
	se := &SubmissionError{SubmissionID: submissionID, Err: err}

	var storeErr *store.Error
	if !errors.As(err, &storeErr) {
		se.Class = ClassRemoteUnavailable
		se.State = StateTransientFailure
		se.Message = MessageUnavailable
		se.Timeout = errors.Is(err, context.DeadlineExceeded)
		return se
	}

	switch storeErr.Kind {
	case store.KindMalformed, store.KindNotFound:
		se.Class = ClassMalformedRequest
		se.State = StateRejected
		se.Message = MessageMalformed
		se.Diagnostics = storeErr.Diagnostics
	case store.KindAuth:
		se.Class = ClassRemoteAuthFailure
		se.State = StateTransientFailure
		se.Message = MessageUnavailable
	case store.KindRateLimited:
		se.Class = ClassRateLimited
		se.State = StateTransientFailure
		se.Message = MessageRateLimited
		se.RetryAfter = storeErr.RetryAfter
	default:
		se.Class = ClassRemoteUnavailable
		se.State = StateTransientFailure
		se.Message = MessageUnavailable
		se.Timeout = storeErr.Timeout
	}
	return se
}
