//nolint:testpackage // Testing internal repository requires same package access
package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/jonesrussell/grant-matcher/internal/domain"
	"github.com/jonesrussell/grant-matcher/internal/ingest"
)

var grantCols = []string{
	"id", "title", "slug", "source", "summary", "description", "url",
	"funding_amount", "deadline", "opening_date", "status", "raw_data",
	"checklists", "content_hash", "scraped_at", "first_seen_at",
	"last_changed_at",
}

func grantRow(id int64, title, slug string) *sqlmock.Rows {
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(grantCols).AddRow(
		id, title, slug, "ukri", "summary", "description",
		"https://example.org/g", "£100k", nil, nil, "open", nil, nil,
		"abc123", now, now, nil,
	)
}

func TestGrantRepository_WithinTxInsert(t *testing.T) {
	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := NewGrantRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT(.+)FROM grants WHERE slug").
		WithArgs("ai-fund-ukri", "ukri").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("INSERT INTO grants").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectCommit()

	txErr := repo.WithinTx(ctx, func(tx ingest.Tx) error {
		_, findErr := tx.FindBySlug(ctx, "ai-fund-ukri", domain.SourceUKRI)
		if !errors.Is(findErr, ingest.ErrNotFound) {
			t.Errorf("FindBySlug() error = %v, want ErrNotFound", findErr)
		}

		id, insertErr := tx.Insert(ctx, &domain.Grant{
			Title:       "AI Fund",
			Slug:        "ai-fund-ukri",
			Source:      domain.SourceUKRI,
			Status:      domain.StatusOpen,
			ContentHash: "abc123",
			FirstSeenAt: time.Now(),
		})
		if insertErr != nil {
			return insertErr
		}
		if id != 7 {
			t.Errorf("Insert() id = %d, want 7", id)
		}
		return nil
	})
	if txErr != nil {
		t.Errorf("WithinTx() error = %v", txErr)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}

func TestGrantRepository_InsertConflictIsDuplicate(t *testing.T) {
	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := NewGrantRepository(db)
	ctx := context.Background()

	// ON CONFLICT DO NOTHING suppresses the row instead of erroring, so a
	// duplicate surfaces as an empty RETURNING set.
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO grants").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	txErr := repo.WithinTx(ctx, func(tx ingest.Tx) error {
		_, insertErr := tx.Insert(ctx, &domain.Grant{Title: "AI Fund"})
		if !errors.Is(insertErr, ingest.ErrDuplicate) {
			t.Errorf("Insert() error = %v, want ErrDuplicate", insertErr)
		}
		return nil
	})
	if txErr != nil {
		t.Errorf("WithinTx() error = %v", txErr)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}

func TestGrantRepository_TxUsableAfterDuplicateInsert(t *testing.T) {
	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := NewGrantRepository(db)
	ctx := context.Background()

	// A concurrent writer wins the insert; the losing transaction must stay
	// usable so the same batch can re-read the row and take the update path.
	// This only holds because the insert never raises a statement error:
	// PostgreSQL aborts a transaction (25P02) after any errored statement.
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO grants").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT(.+)FROM grants WHERE slug").
		WithArgs("ai-fund-ukri", "ukri").
		WillReturnRows(grantRow(9, "AI Fund", "ai-fund-ukri"))
	mock.ExpectExec("UPDATE grants SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	txErr := repo.WithinTx(ctx, func(tx ingest.Tx) error {
		grant := &domain.Grant{
			Title:  "AI Fund",
			Slug:   "ai-fund-ukri",
			Source: domain.SourceUKRI,
		}

		_, insertErr := tx.Insert(ctx, grant)
		if !errors.Is(insertErr, ingest.ErrDuplicate) {
			t.Fatalf("Insert() error = %v, want ErrDuplicate", insertErr)
		}

		existing, findErr := tx.FindBySlug(ctx, "ai-fund-ukri", domain.SourceUKRI)
		if findErr != nil {
			t.Fatalf("FindBySlug() after duplicate = %v, want row", findErr)
		}

		grant.ID = existing.ID
		return tx.Update(ctx, grant)
	})
	if txErr != nil {
		t.Errorf("WithinTx() error = %v", txErr)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}

func TestGrantRepository_WithinTxRollsBackOnError(t *testing.T) {
	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := NewGrantRepository(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	wantErr := errors.New("batch failed")
	txErr := repo.WithinTx(context.Background(), func(ingest.Tx) error {
		return wantErr
	})
	if !errors.Is(txErr, wantErr) {
		t.Errorf("WithinTx() error = %v, want %v", txErr, wantErr)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}

func TestGrantRepository_FindByURL(t *testing.T) {
	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := NewGrantRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT(.+)FROM grants WHERE url").
		WithArgs("https://example.org/g", "ukri").
		WillReturnRows(grantRow(3, "AI Fund", "ai-fund-ukri"))
	mock.ExpectCommit()

	txErr := repo.WithinTx(ctx, func(tx ingest.Tx) error {
		grant, findErr := tx.FindByURL(ctx, "https://example.org/g", domain.SourceUKRI)
		if findErr != nil {
			return findErr
		}
		if grant.ID != 3 || grant.Slug != "ai-fund-ukri" {
			t.Errorf("FindByURL() = id %d slug %q", grant.ID, grant.Slug)
		}
		return nil
	})
	if txErr != nil {
		t.Errorf("WithinTx() error = %v", txErr)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}

func TestGrantRepository_ListByStatus(t *testing.T) {
	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := NewGrantRepository(db)

	mock.ExpectQuery("SELECT(.+)FROM grants(.+)WHERE status").
		WithArgs("open", 10).
		WillReturnRows(grantRow(1, "AI Fund", "ai-fund-ukri"))

	grants, listErr := repo.ListByStatus(context.Background(), domain.StatusOpen, 10)
	if listErr != nil {
		t.Fatalf("ListByStatus() error = %v", listErr)
	}
	if len(grants) != 1 {
		t.Fatalf("ListByStatus() returned %d grants, want 1", len(grants))
	}
	if grants[0].Source != domain.SourceUKRI {
		t.Errorf("grant source = %q, want ukri", grants[0].Source)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}

func TestGrantRepository_UpdateChecklistsNotFound(t *testing.T) {
	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := NewGrantRepository(db)

	mock.ExpectExec("UPDATE grants SET checklists").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateChecklists(context.Background(), 42, domain.ChecklistSet{})
	if !errors.Is(err, ingest.ErrNotFound) {
		t.Errorf("UpdateChecklists() error = %v, want ErrNotFound", err)
	}
}
