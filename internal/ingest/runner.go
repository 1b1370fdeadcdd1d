package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/jonesrussell/grant-matcher/internal/domain"
	"github.com/jonesrussell/grant-matcher/internal/logger"
)

// RunLog records the audit trail of ingest batches.
type RunLog interface {
	Start(ctx context.Context, source domain.Source, startedAt time.Time) (int64, error)
	Finish(ctx context.Context, log *domain.ScrapeLog) error
}

// Service wraps the upsert engine with per-batch audit logging.
type Service struct {
	engine *Engine
	runs   RunLog
	log    logger.Logger
	now    func() time.Time
}

// NewService creates a Service. runs may be nil to disable audit rows.
func NewService(engine *Engine, runs RunLog, log logger.Logger) *Service {
	return &Service{
		engine: engine,
		runs:   runs,
		log:    log,
		now:    time.Now,
	}
}

// Run applies one batch for a source and records a scrape log row around it.
// The returned ScrapeLog reflects the batch outcome even when the audit row
// could not be written.
func (s *Service) Run(ctx context.Context, source domain.Source, records []domain.Record) (*Outcome, *domain.ScrapeLog, error) {
	startedAt := s.now().UTC()
	run := &domain.ScrapeLog{
		Source:      source,
		Status:      domain.ScrapeRunning,
		StartedAt:   startedAt,
		GrantsFound: len(records),
	}

	logged := false
	if s.runs != nil {
		id, err := s.runs.Start(ctx, source, startedAt)
		if err != nil {
			s.log.Warn("failed to record ingest run start",
				logger.String("source", string(source)), logger.Error(err))
		} else {
			run.ID = id
			logged = true
		}
	}

	outcome, upsertErr := s.engine.Upsert(ctx, records)

	completedAt := s.now().UTC()
	run.CompletedAt = &completedAt
	switch {
	case errors.Is(upsertErr, context.Canceled) || errors.Is(upsertErr, context.DeadlineExceeded):
		run.Status = domain.ScrapeCancelled
		run.ErrorMessage = upsertErr.Error()
	case upsertErr != nil:
		run.Status = domain.ScrapeError
		run.ErrorMessage = upsertErr.Error()
	default:
		run.Status = domain.ScrapeSuccess
		run.GrantsCreated = outcome.Created
		run.GrantsUpdated = outcome.Updated
		run.GrantsSkipped = outcome.Skipped
	}

	if logged {
		// Detached so a cancelled batch can still persist its outcome row.
		if err := s.runs.Finish(context.WithoutCancel(ctx), run); err != nil {
			s.log.Warn("failed to record ingest run outcome",
				logger.String("source", string(source)), logger.Error(err))
		}
	}

	if upsertErr != nil {
		return nil, run, upsertErr
	}
	return outcome, run, nil
}
