package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/jonesrussell/grant-matcher/internal/domain"
)

// MatchRepository persists project-fit scoring results, one row per grant.
type MatchRepository struct {
	db *sql.DB
}

// NewMatchRepository creates a repository backed by db.
func NewMatchRepository(db *sql.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// Upsert writes a match result, replacing any earlier score for the grant.
func (r *MatchRepository) Upsert(ctx context.Context, match *domain.GrantMatch) error {
	subScores, err := json.Marshal(match.SubScores)
	if err != nil {
		return fmt.Errorf("marshal sub scores: %w", err)
	}

	_, execErr := r.db.ExecContext(ctx, `
		INSERT INTO grant_matches
			(grant_id, score, sub_scores, explanation, alignment_points,
			 concerns, matched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (grant_id) DO UPDATE SET
			score = EXCLUDED.score,
			sub_scores = EXCLUDED.sub_scores,
			explanation = EXCLUDED.explanation,
			alignment_points = EXCLUDED.alignment_points,
			concerns = EXCLUDED.concerns,
			matched_at = EXCLUDED.matched_at`,
		match.GrantID,
		match.Score,
		subScores,
		match.Explanation,
		pq.Array(match.AlignmentPoints),
		pq.Array(match.Concerns),
		match.MatchedAt,
	)
	if execErr != nil {
		return fmt.Errorf("upsert match: %w", execErr)
	}
	return nil
}

// ListTop returns the highest-scoring matches joined with their grant slug.
func (r *MatchRepository) ListTop(ctx context.Context, limit int) ([]*domain.GrantMatch, error) {
	rows, queryErr := r.db.QueryContext(ctx, `
		SELECT m.grant_id, g.slug, m.score, m.sub_scores, m.explanation,
			m.alignment_points, m.concerns, m.matched_at
		FROM grant_matches m
		JOIN grants g ON g.id = m.grant_id
		ORDER BY m.score DESC
		LIMIT $1`, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("query matches: %w", queryErr)
	}
	defer rows.Close()

	var matches []*domain.GrantMatch
	for rows.Next() {
		var (
			m         domain.GrantMatch
			subScores []byte
		)
		scanErr := rows.Scan(
			&m.GrantID, &m.Slug, &m.Score, &subScores, &m.Explanation,
			pq.Array(&m.AlignmentPoints), pq.Array(&m.Concerns), &m.MatchedAt,
		)
		if scanErr != nil {
			return nil, fmt.Errorf("scan match: %w", scanErr)
		}
		if len(subScores) > 0 {
			if err := json.Unmarshal(subScores, &m.SubScores); err != nil {
				return nil, fmt.Errorf("unmarshal sub scores: %w", err)
			}
		}
		matches = append(matches, &m)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("match rows: %w", rowsErr)
	}
	return matches, nil
}
