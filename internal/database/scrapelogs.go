package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jonesrussell/grant-matcher/internal/domain"
)

// ScrapeLogRepository persists ingest run audit rows.
type ScrapeLogRepository struct {
	db *sql.DB
}

// NewScrapeLogRepository creates a repository backed by db.
func NewScrapeLogRepository(db *sql.DB) *ScrapeLogRepository {
	return &ScrapeLogRepository{db: db}
}

// Start records a new running ingest batch and returns its id.
func (r *ScrapeLogRepository) Start(ctx context.Context, source domain.Source, startedAt time.Time) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO scrape_logs (source, status, started_at)
		VALUES ($1, $2, $3)
		RETURNING id`,
		string(source), string(domain.ScrapeRunning), startedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert scrape log: %w", err)
	}
	return id, nil
}

// Finish records the outcome of a run started with Start.
func (r *ScrapeLogRepository) Finish(ctx context.Context, log *domain.ScrapeLog) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE scrape_logs SET
			status = $1, completed_at = $2, error_message = $3,
			grants_found = $4, grants_created = $5, grants_updated = $6,
			grants_skipped = $7
		WHERE id = $8`,
		string(log.Status),
		log.CompletedAt,
		log.ErrorMessage,
		log.GrantsFound,
		log.GrantsCreated,
		log.GrantsUpdated,
		log.GrantsSkipped,
		log.ID,
	)
	if err != nil {
		return fmt.Errorf("finish scrape log: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("finish scrape log: no row with id %d", log.ID)
	}
	return nil
}

// ListRecent returns the most recent runs, newest first.
func (r *ScrapeLogRepository) ListRecent(ctx context.Context, limit int) ([]*domain.ScrapeLog, error) {
	rows, queryErr := r.db.QueryContext(ctx, `
		SELECT id, source, status, started_at, completed_at, error_message,
			grants_found, grants_created, grants_updated, grants_skipped
		FROM scrape_logs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("query scrape logs: %w", queryErr)
	}
	defer rows.Close()

	var logs []*domain.ScrapeLog
	for rows.Next() {
		var l domain.ScrapeLog
		scanErr := rows.Scan(
			&l.ID, &l.Source, &l.Status, &l.StartedAt, &l.CompletedAt,
			&l.ErrorMessage, &l.GrantsFound, &l.GrantsCreated,
			&l.GrantsUpdated, &l.GrantsSkipped,
		)
		if scanErr != nil {
			return nil, fmt.Errorf("scan scrape log: %w", scanErr)
		}
		logs = append(logs, &l)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("scrape log rows: %w", rowsErr)
	}
	return logs, nil
}
