package intake

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ehr/intake/internal/platform/validation"
)

// Response is the body of every POST /intake reply.
type Response struct {
	Success      bool                `json:"success"`
	Message      string              `json:"message"`
	SubmissionID string              `json:"submissionId,omitempty"`
	Errors       map[string][]string `json:"errors,omitempty"`
	Details      string              `json:"details,omitempty"`
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the intake endpoint. mw wraps only this route
// (idempotency, body limits).
func (h *Handler) RegisterRoutes(e *echo.Echo, mw ...echo.MiddlewareFunc) {
	e.POST("/intake", h.Submit, mw...)
}

func (h *Handler) Submit(c echo.Context) error {
	var sub Submission
	if err := c.Bind(&sub); err != nil {
		return c.JSON(http.StatusBadRequest, Response{
			Message: "Invalid request body",
			Errors:  map[string][]string{"body": {bindMessage(err)}},
		})
	}
	if err := c.Validate(&sub); err != nil {
		fields := validation.FieldErrors(err)
		if fields == nil {
			fields = map[string][]string{"body": {err.Error()}}
		}
		return c.JSON(http.StatusBadRequest, Response{
			Message: "Validation failed",
			Errors:  fields,
		})
	}

	out, err := h.svc.Submit(c.Request().Context(), &sub)
	if err != nil {
		var se *SubmissionError
		if !errors.As(err, &se) {
			// Already logged by the service.
			return c.JSON(http.StatusInternalServerError, Response{Message: "Internal server error"})
		}
		if se.Class == ClassRateLimited {
			retry := int(se.RetryAfter.Seconds())
			if retry < 1 {
				retry = 1
			}
			c.Response().Header().Set("Retry-After", strconv.Itoa(retry))
		}
		resp := Response{Message: se.Message}
		if se.Class == ClassMalformedRequest {
			resp.Details = se.Diagnostics
		}
		return c.JSON(se.HTTPStatus(), resp)
	}

	return c.JSON(http.StatusCreated, Response{
		Success:      true,
		Message:      MessageSubmitted,
		SubmissionID: out.SubmissionID,
	})
}

func bindMessage(err error) string {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if msg, ok := he.Message.(string); ok {
			return msg
		}
	}
	return err.Error()
}
