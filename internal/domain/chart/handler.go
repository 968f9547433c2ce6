package chart

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ehr/intake/internal/platform/fhir"
)

type Handler struct {
	reader *Reader
}

func NewHandler(reader *Reader) *Handler {
	return &Handler{reader: reader}
}

func (h *Handler) RegisterRoutes(e *echo.Echo, mw ...echo.MiddlewareFunc) {
	e.GET("/patient/:id", h.GetChart, mw...)
}

// GetChart returns the composite chart. ?annotate=false drops the links.
func (h *Handler) GetChart(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("patient id is required"))
	}
	annotate := true
	if v := c.QueryParam("annotate"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, fhir.ErrorOutcome("annotate must be true or false"))
		}
		annotate = b
	}

	chart, err := h.reader.Read(c.Request().Context(), id)
	switch {
	case err == nil:
	case errors.Is(err, ErrPatientNotFound):
		return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("Patient", id))
	case errors.Is(err, ErrAccessDenied):
		return c.JSON(http.StatusForbidden, fhir.ForbiddenOutcome("the clinical record service denied access to this patient"))
	default:
		return c.JSON(http.StatusInternalServerError, fhir.InternalErrorOutcome("failed to read patient chart"))
	}

	if !annotate {
		chart = chart.WithoutLinks()
	}
	return c.JSON(http.StatusOK, chart)
}
