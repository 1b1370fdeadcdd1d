//nolint:testpackage // Testing internal repository requires same package access
package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/jonesrussell/grant-matcher/internal/domain"
)

func TestScrapeLogRepository_StartAndFinish(t *testing.T) {
	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := NewScrapeLogRepository(db)
	ctx := context.Background()
	startedAt := time.Date(2026, 8, 20, 6, 0, 0, 0, time.UTC)
	completedAt := startedAt.Add(42 * time.Second)

	mock.ExpectQuery("INSERT INTO scrape_logs").
		WithArgs("ukri", "running", startedAt).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

	id, startErr := repo.Start(ctx, domain.SourceUKRI, startedAt)
	if startErr != nil {
		t.Fatalf("Start() error = %v", startErr)
	}
	if id != 11 {
		t.Errorf("Start() id = %d, want 11", id)
	}

	mock.ExpectExec("UPDATE scrape_logs").
		WithArgs("success", completedAt, "", 30, 5, 3, 22, int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	finishErr := repo.Finish(ctx, &domain.ScrapeLog{
		ID:            11,
		Status:        domain.ScrapeSuccess,
		CompletedAt:   &completedAt,
		GrantsFound:   30,
		GrantsCreated: 5,
		GrantsUpdated: 3,
		GrantsSkipped: 22,
	})
	if finishErr != nil {
		t.Errorf("Finish() error = %v", finishErr)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}

func TestScrapeLogRepository_ListRecent(t *testing.T) {
	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := NewScrapeLogRepository(db)
	startedAt := time.Date(2026, 8, 20, 6, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT(.+)FROM scrape_logs").
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "source", "status", "started_at", "completed_at",
			"error_message", "grants_found", "grants_created",
			"grants_updated", "grants_skipped",
		}).AddRow(11, "ukri", "success", startedAt, nil, "", 30, 5, 3, 22))

	logs, listErr := repo.ListRecent(context.Background(), 5)
	if listErr != nil {
		t.Fatalf("ListRecent() error = %v", listErr)
	}
	if len(logs) != 1 {
		t.Fatalf("ListRecent() returned %d logs, want 1", len(logs))
	}
	if logs[0].Status != domain.ScrapeSuccess {
		t.Errorf("log status = %q, want success", logs[0].Status)
	}
}
