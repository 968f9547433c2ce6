package fhir

import (
	"encoding/json"
	"strings"
)

// OperationOutcome severity levels per FHIR R4 spec.
const (
	IssueSeverityFatal       = "fatal"
	IssueSeverityError       = "error"
	IssueSeverityWarning     = "warning"
	IssueSeverityInformation = "information"
)

// OperationOutcome issue type codes per FHIR R4 spec.
const (
	IssueTypeInvalid      = "invalid"
	IssueTypeRequired     = "required"
	IssueTypeNotFound     = "not-found"
	IssueTypeProcessing   = "processing"
	IssueTypeSecurity     = "security"
	IssueTypeLogin        = "login"
	IssueTypeThrottled    = "throttled"
	IssueTypeException    = "exception"
	IssueTypeTimeout      = "timeout"
	IssueTypeTransient    = "transient"
	IssueTypeForbidden    = "forbidden"
	IssueTypeConflict     = "conflict"
	IssueTypeBusinessRule = "business-rule"
	IssueTypeTooCostly    = "too-costly"
)

// HasErrors returns true if the outcome contains any error or fatal issues.
func (o *OperationOutcome) HasErrors() bool {
	for _, issue := range o.Issue {
		if issue.Severity == IssueSeverityError || issue.Severity == IssueSeverityFatal {
			return true
		}
	}
	return false
}

// Diagnostics joins the diagnostics (or details text) of every issue.
func (o *OperationOutcome) Diagnostics() string {
	var parts []string
	for _, issue := range o.Issue {
		switch {
		case issue.Diagnostics != "":
			parts = append(parts, issue.Diagnostics)
		case issue.Details != nil && issue.Details.Text != "":
			parts = append(parts, issue.Details.Text)
		}
	}
	return strings.Join(parts, "; ")
}

// DiagnosticsOf extracts diagnostic text from a response body that may hold an
// OperationOutcome. Bodies that are not an OperationOutcome yield "".
func DiagnosticsOf(body []byte) string {
	var oo OperationOutcome
	if err := json.Unmarshal(body, &oo); err != nil || oo.ResourceType != "OperationOutcome" {
		return ""
	}
	return oo.Diagnostics()
}

// ThrottleOutcome creates a 429-style OperationOutcome indicating the server is
// rate-limiting the client.
func ThrottleOutcome() *OperationOutcome {
	return NewOperationOutcome(
		IssueSeverityError,
		IssueTypeThrottled,
		"Rate limit exceeded. Please retry after a delay.",
	)
}

// ForbiddenOutcome creates a 403-style OperationOutcome.
func ForbiddenOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeForbidden, diagnostics)
}

// InternalErrorOutcome creates an OperationOutcome for internal server errors.
func InternalErrorOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityFatal, IssueTypeException, diagnostics)
}
