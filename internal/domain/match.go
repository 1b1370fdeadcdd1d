package domain

import "time"

// SubScores holds the per-checklist fit scores for a grant/project pair.
// A nil entry means the corresponding checklist was not generated, so no
// score exists for it.
type SubScores struct {
	Eligibility     *float64 `json:"eligibility,omitempty"`
	Competitiveness *float64 `json:"competitiveness,omitempty"`
	Exclusions      *float64 `json:"exclusions,omitempty"`
}

// GrantMatch is the scored outcome of matching one grant against a project.
type GrantMatch struct {
	GrantID         int64     `json:"grant_id"`
	Slug            string    `json:"slug"`
	Score           float64   `json:"score"`
	SubScores       SubScores `json:"sub_scores"`
	Explanation     string    `json:"explanation"`
	AlignmentPoints []string  `json:"alignment_points"`
	Concerns        []string  `json:"concerns"`
	MatchedAt       time.Time `json:"matched_at"`
}

// ScrapeStatus is the lifecycle status of an ingest run.
type ScrapeStatus string

const (
	// ScrapeRunning means the run is in progress.
	ScrapeRunning ScrapeStatus = "running"
	// ScrapeSuccess means the run completed.
	ScrapeSuccess ScrapeStatus = "success"
	// ScrapeError means the run failed.
	ScrapeError ScrapeStatus = "error"
	// ScrapeCancelled means the run was interrupted before it finished.
	ScrapeCancelled ScrapeStatus = "cancelled"
)

// ScrapeLog records the outcome of one ingest batch for a source.
type ScrapeLog struct {
	ID            int64        `json:"id"`
	Source        Source       `json:"source"`
	Status        ScrapeStatus `json:"status"`
	StartedAt     time.Time    `json:"started_at"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
	ErrorMessage  string       `json:"error_message,omitempty"`
	GrantsFound   int          `json:"grants_found"`
	GrantsCreated int          `json:"grants_created"`
	GrantsUpdated int          `json:"grants_updated"`
	GrantsSkipped int          `json:"grants_skipped"`
}

// Duration returns the run duration, or zero if the run has not completed.
func (l *ScrapeLog) Duration() time.Duration {
	if l.CompletedAt == nil {
		return 0
	}
	return l.CompletedAt.Sub(l.StartedAt)
}
