package intake

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/intake/internal/platform/metrics"
	"github.com/ehr/intake/internal/platform/store"
)

// Service is the submission gateway: it builds the batch for one validated
// submission and writes it with exactly one repository transaction. It never
// retries; retry policy belongs to the caller.
type Service struct {
	repo     store.Repository
	logger   zerolog.Logger
	metrics  *metrics.Collector
	assemble []AssembleOption
}

func NewService(repo store.Repository, logger zerolog.Logger, m *metrics.Collector, opts ...AssembleOption) *Service {
	return &Service{
		repo:     repo,
		logger:   logger.With().Str("component", "intake").Logger(),
		metrics:  m,
		assemble: opts,
	}
}

// Submit runs a submission through the lifecycle. sub must already have
// passed validation. On failure the returned error is a *SubmissionError
// unless the batch could not be encoded at all.
func (s *Service) Submit(ctx context.Context, sub *Submission) (*Outcome, error) {
	batch := Assemble(sub, s.assemble...)
	log := s.logger.With().Str("submission_id", batch.SubmissionID).Logger()
	log.Debug().Str("state", string(StateValidated)).Msg("submission state")
	log.Debug().Str("state", string(StateBuilt)).Int("records", len(batch.Records)).Msg("submission state")

	bundle, err := batch.Bundle()
	if err != nil {
		log.Error().Err(err).Int("records", len(batch.Records)).Msg("submission could not be encoded")
		return nil, fmt.Errorf("encode submission %s: %w", batch.SubmissionID, err)
	}

	log.Debug().Str("state", string(StateSubmitted)).Msg("submission state")
	start := time.Now()
	result, err := s.repo.WriteTransaction(ctx, bundle)
	elapsed := time.Since(start)
	if err != nil {
		se := classify(batch.SubmissionID, err)
		evt := log.Warn()
		if se.Class == ClassRemoteAuthFailure {
			// Credentials the repository refuses point at a deployment
			// misconfiguration, not a transient fault.
			evt = log.Error()
		}
		evt.Err(err).
			Str("state", string(se.State)).
			Str("class", string(se.Class)).
			Dur("latency", elapsed).
			Msg("submission failed")
		s.metrics.ObserveSubmission(string(se.State), string(se.Class), len(batch.Records), elapsed)
		return nil, se
	}

	out := &Outcome{
		SubmissionID: batch.SubmissionID,
		State:        StatePersisted,
		BatchID:      result.BatchID,
		Records:      len(batch.Records),
	}
	for _, loc := range result.Locations {
		if strings.HasPrefix(loc, "Patient/") {
			out.PatientRef = loc
			break
		}
	}

	log.Info().
		Str("state", string(StatePersisted)).
		Str("batch_id", result.BatchID).
		Int("records", out.Records).
		Dur("latency", elapsed).
		Msg("submission persisted")
	s.metrics.ObserveSubmission(string(StatePersisted), "", out.Records, elapsed)
	return out, nil
}
