// Package chart reconstructs a patient's chart from the repository: the
// Patient first, then one concurrent search per linked record class.
package chart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ehr/intake/internal/platform/fhir"
	"github.com/ehr/intake/internal/platform/metrics"
	"github.com/ehr/intake/internal/platform/store"
)

const (
	defaultQueryTimeout = 10 * time.Second
	defaultSearchLimit  = 200
)

// Config tunes a Reader.
type Config struct {
	// Strict fails the whole read when any section fails. By default a
	// failed section is returned empty and listed in Chart.Degraded.
	Strict         bool
	QueryTimeout   time.Duration
	SearchLimit    int
	ConsoleBaseURL string
}

type Reader struct {
	repo    store.Repository
	logger  zerolog.Logger
	metrics *metrics.Collector
	cfg     Config
}

func NewReader(repo store.Repository, logger zerolog.Logger, m *metrics.Collector, cfg Config) *Reader {
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = defaultQueryTimeout
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = defaultSearchLimit
	}
	return &Reader{
		repo:    repo,
		logger:  logger.With().Str("component", "chart").Logger(),
		metrics: m,
		cfg:     cfg,
	}
}

// SectionError reports the section that failed a strict read.
type SectionError struct {
	Section string
	Err     error
}

func (e *SectionError) Error() string {
	return fmt.Sprintf("chart section %s: %v", e.Section, e.Err)
}

func (e *SectionError) Unwrap() error {
	return e.Err
}

// Read builds the annotated chart of one patient. A missing Patient returns
// ErrPatientNotFound before any section is queried; a repository that
// refuses the credentials returns ErrAccessDenied.
func (r *Reader) Read(ctx context.Context, patientID string) (*Chart, error) {
	start := time.Now()
	log := r.logger.With().Str("patient_id", patientID).Logger()

	patient, err := r.readPatient(ctx, patientID)
	if err != nil {
		result := "error"
		switch {
		case errors.Is(err, ErrPatientNotFound):
			result = "not_found"
		case errors.Is(err, ErrAccessDenied):
			result = "denied"
		}
		r.metrics.ObserveChartRead(result, nil, time.Since(start))
		return nil, err
	}

	chart := &Chart{Patient: r.entry(patient)}
	subject := fhir.FormatReference("Patient", patientID)

	results := make([][]store.Resource, len(Sections))
	failures := make([]error, len(Sections))

	g, gctx := errgroup.WithContext(ctx)
	for i, sec := range Sections {
		g.Go(func() error {
			res, err := r.search(gctx, sec, subject)
			if err != nil {
				failures[i] = err
				if r.cfg.Strict {
					return &SectionError{Section: sec.Name, Err: err}
				}
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("chart read failed")
		r.metrics.ObserveChartRead("error", failedSections(failures), time.Since(start))
		return nil, err
	}

	for i, sec := range Sections {
		entries := make([]Entry, 0, len(results[i]))
		for _, res := range results[i] {
			entries = append(entries, r.entry(res))
		}
		*sec.slot(chart) = entries
		if failures[i] != nil {
			chart.Degraded = append(chart.Degraded, sec.Name)
			log.Warn().Err(failures[i]).Str("section", sec.Name).Msg("chart section degraded")
		}
	}

	result := "ok"
	if len(chart.Degraded) > 0 {
		result = "degraded"
	}
	r.metrics.ObserveChartRead(result, chart.Degraded, time.Since(start))
	return chart, nil
}

func (r *Reader) readPatient(ctx context.Context, id string) (store.Resource, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
	defer cancel()

	patient, err := r.repo.Read(ctx, "Patient", id)
	switch {
	case err == nil:
		return patient, nil
	case errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("%w: %s", ErrPatientNotFound, id)
	case store.KindOf(err) == store.KindAuth:
		return nil, fmt.Errorf("%w: %v", ErrAccessDenied, err)
	default:
		return nil, fmt.Errorf("read patient %s: %w", id, err)
	}
}

func (r *Reader) search(ctx context.Context, sec Section, subject string) ([]store.Resource, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
	defer cancel()

	return r.repo.Search(ctx, sec.ResourceType, store.SearchQuery{
		Param:   sec.Param,
		Subject: subject,
		Sort:    "-_lastUpdated",
		Limit:   r.cfg.SearchLimit,
	})
}

func (r *Reader) entry(res store.Resource) Entry {
	return Entry{Resource: res, Link: Annotate(res, r.cfg.ConsoleBaseURL)}
}

func failedSections(failures []error) []string {
	var out []string
	for i, err := range failures {
		if err != nil {
			out = append(out, Sections[i].Name)
		}
	}
	return out
}
