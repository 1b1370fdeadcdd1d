package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jonesrussell/grant-matcher/internal/domain"
	"github.com/jonesrussell/grant-matcher/internal/ingest"
)

const grantColumns = `
	id, title, slug, source, summary, description, url, funding_amount,
	deadline, opening_date, status, raw_data, checklists, content_hash,
	scraped_at, first_seen_at, last_changed_at`

// GrantRepository persists grants. It implements ingest.Store.
type GrantRepository struct {
	db *sql.DB
}

// NewGrantRepository creates a repository backed by db.
func NewGrantRepository(db *sql.DB) *GrantRepository {
	return &GrantRepository{db: db}
}

// WithinTx runs fn inside a single transaction, committing only if fn
// returns nil.
func (r *GrantRepository) WithinTx(ctx context.Context, fn func(tx ingest.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if fnErr := fn(&grantTx{tx: tx}); fnErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %w", fnErr, rbErr)
		}
		return fnErr
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListByStatus returns up to limit grants with the given status, newest
// first. A limit of 0 means no limit.
func (r *GrantRepository) ListByStatus(ctx context.Context, status domain.Status, limit int) ([]*domain.Grant, error) {
	query := `SELECT` + grantColumns + `
		FROM grants
		WHERE status = $1
		ORDER BY first_seen_at DESC`
	args := []any{string(status)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, queryErr := r.db.QueryContext(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("query grants: %w", queryErr)
	}
	defer rows.Close()

	var grants []*domain.Grant
	for rows.Next() {
		grant, scanErr := scanGrant(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		grants = append(grants, grant)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("grant rows: %w", rowsErr)
	}
	return grants, nil
}

// GetBySlug fetches one grant outside a transaction.
func (r *GrantRepository) GetBySlug(ctx context.Context, slug string, source domain.Source) (*domain.Grant, error) {
	return findBySlug(ctx, r.db, slug, source)
}

// UpdateChecklists replaces the stored checklists of a grant.
func (r *GrantRepository) UpdateChecklists(ctx context.Context, grantID int64, checklists domain.ChecklistSet) error {
	payload, err := json.Marshal(checklists)
	if err != nil {
		return fmt.Errorf("marshal checklists: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE grants SET checklists = $1 WHERE id = $2`, payload, grantID)
	if err != nil {
		return fmt.Errorf("update checklists: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ingest.ErrNotFound
	}
	return nil
}

// grantTx adapts one sql.Tx to the ingest transaction surface.
type grantTx struct {
	tx *sql.Tx
}

func (t *grantTx) FindBySlug(ctx context.Context, slug string, source domain.Source) (*domain.Grant, error) {
	return findBySlug(ctx, t.tx, slug, source)
}

func (t *grantTx) FindByURL(ctx context.Context, url string, source domain.Source) (*domain.Grant, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT`+grantColumns+` FROM grants WHERE url = $1 AND source = $2`,
		url, string(source))
	return scanGrantRow(row, "find grant by url")
}

func (t *grantTx) Insert(ctx context.Context, grant *domain.Grant) (int64, error) {
	rawData, checklists, err := marshalGrantJSON(grant)
	if err != nil {
		return 0, err
	}

	// ON CONFLICT DO NOTHING keeps a concurrent-writer duplicate from
	// erroring the statement, which on PostgreSQL would abort the whole
	// transaction (25P02) and poison the rest of the batch. A missing
	// RETURNING row is the duplicate signal instead.
	var id int64
	scanErr := t.tx.QueryRowContext(ctx, `
		INSERT INTO grants
			(title, slug, source, summary, description, url, funding_amount,
			 deadline, opening_date, status, raw_data, checklists, content_hash,
			 scraped_at, first_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (slug, source) DO NOTHING
		RETURNING id`,
		grant.Title,
		grant.Slug,
		string(grant.Source),
		grant.Summary,
		grant.Description,
		grant.URL,
		grant.FundingAmount,
		grant.Deadline,
		grant.OpeningDate,
		string(grant.Status),
		rawData,
		checklists,
		grant.ContentHash,
		grant.ScrapedAt,
		grant.FirstSeenAt,
	).Scan(&id)

	if errors.Is(scanErr, sql.ErrNoRows) {
		return 0, ingest.ErrDuplicate
	}
	if scanErr != nil {
		return 0, fmt.Errorf("insert grant: %w", scanErr)
	}
	return id, nil
}

func (t *grantTx) Update(ctx context.Context, grant *domain.Grant) error {
	rawData, checklists, err := marshalGrantJSON(grant)
	if err != nil {
		return err
	}

	result, execErr := t.tx.ExecContext(ctx, `
		UPDATE grants SET
			title = $1, slug = $2, summary = $3, description = $4, url = $5,
			funding_amount = $6, deadline = $7, opening_date = $8, status = $9,
			raw_data = $10, checklists = $11, content_hash = $12,
			scraped_at = $13, last_changed_at = $14
		WHERE id = $15`,
		grant.Title,
		grant.Slug,
		grant.Summary,
		grant.Description,
		grant.URL,
		grant.FundingAmount,
		grant.Deadline,
		grant.OpeningDate,
		string(grant.Status),
		rawData,
		checklists,
		grant.ContentHash,
		grant.ScrapedAt,
		grant.LastChangedAt,
		grant.ID,
	)
	if execErr != nil {
		return fmt.Errorf("update grant: %w", execErr)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ingest.ErrNotFound
	}
	return nil
}

// querier is the shared query surface of *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func findBySlug(ctx context.Context, q querier, slug string, source domain.Source) (*domain.Grant, error) {
	row := q.QueryRowContext(ctx,
		`SELECT`+grantColumns+` FROM grants WHERE slug = $1 AND source = $2`,
		slug, string(source))
	return scanGrantRow(row, "find grant by slug")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGrantRow(row *sql.Row, op string) (*domain.Grant, error) {
	grant, err := scanGrant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ingest.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return grant, nil
}

func scanGrant(row rowScanner) (*domain.Grant, error) {
	var (
		grant      domain.Grant
		rawData    []byte
		checklists []byte
	)

	err := row.Scan(
		&grant.ID,
		&grant.Title,
		&grant.Slug,
		&grant.Source,
		&grant.Summary,
		&grant.Description,
		&grant.URL,
		&grant.FundingAmount,
		&grant.Deadline,
		&grant.OpeningDate,
		&grant.Status,
		&rawData,
		&checklists,
		&grant.ContentHash,
		&grant.ScrapedAt,
		&grant.FirstSeenAt,
		&grant.LastChangedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(rawData) > 0 {
		if err := json.Unmarshal(rawData, &grant.RawData); err != nil {
			return nil, fmt.Errorf("unmarshal raw_data: %w", err)
		}
	}
	if len(checklists) > 0 {
		if err := json.Unmarshal(checklists, &grant.Checklists); err != nil {
			return nil, fmt.Errorf("unmarshal checklists: %w", err)
		}
	}
	return &grant, nil
}

func marshalGrantJSON(grant *domain.Grant) (rawData, checklists []byte, err error) {
	if grant.RawData != nil {
		if rawData, err = json.Marshal(grant.RawData); err != nil {
			return nil, nil, fmt.Errorf("marshal raw_data: %w", err)
		}
	}
	if grant.Checklists != nil {
		if checklists, err = json.Marshal(grant.Checklists); err != nil {
			return nil, nil, fmt.Errorf("marshal checklists: %w", err)
		}
	}
	return rawData, checklists, nil
}
