package domain_test

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/jonesrussell/grant-matcher/internal/domain"
)

func TestContentHash_Deterministic(t *testing.T) {
	t.Parallel()

	deadline := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := domain.Record{
		Title:         "AI for Manufacturing",
		Source:        domain.SourceInnovateUK,
		Summary:       "Funding for AI adoption",
		Description:   "Long description",
		URL:           "https://example.org/grants/ai",
		FundingAmount: "£500,000",
		Deadline:      &deadline,
		Status:        domain.StatusOpen,
	}
	b := a

	if a.ContentHash() != b.ContentHash() {
		t.Error("identical records produced different hashes")
	}
	if len(a.ContentHash()) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a.ContentHash()))
	}
}

func TestContentHash_TrackedFieldChangesHash(t *testing.T) {
	t.Parallel()

	base := domain.Record{
		Title:  "AI for Manufacturing",
		Source: domain.SourceInnovateUK,
	}
	changed := base
	changed.Title = "AI for Agriculture"

	if base.ContentHash() == changed.ContentHash() {
		t.Error("title change did not change the content hash")
	}
}

func TestContentHash_UntrackedFieldDoesNotChangeHash(t *testing.T) {
	t.Parallel()

	now := time.Now()
	base := domain.Record{
		Title:  "AI for Manufacturing",
		Source: domain.SourceInnovateUK,
	}
	rescrape := base
	rescrape.ScrapedAt = &now
	rescrape.RawData = map[string]any{"page": 3}

	if base.ContentHash() != rescrape.ContentHash() {
		t.Error("untracked field change altered the content hash")
	}
}

func TestGenerateSlug(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		title  string
		source domain.Source
		want   string
	}{
		{
			name:   "simple title",
			title:  "AI for Manufacturing",
			source: domain.SourceUKRI,
			want:   "ai-for-manufacturing-ukri",
		},
		{
			name:   "punctuation collapsed",
			title:  "Net Zero: Phase 2 (2026)",
			source: domain.SourceInnovateUK,
			want:   "net-zero-phase-2-2026-innovate-uk",
		},
		{
			name:   "leading and trailing noise stripped",
			title:  "  --Funding call--  ",
			source: domain.SourceNIHR,
			want:   "funding-call-nihr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := domain.GenerateSlug(tt.title, tt.source)
			if got != tt.want {
				t.Errorf("GenerateSlug(%q, %q) = %q, want %q", tt.title, tt.source, got, tt.want)
			}
		})
	}
}

func TestGenerateSlug_CapsLength(t *testing.T) {
	t.Parallel()

	slug := domain.GenerateSlug(strings.Repeat("very long title ", 60), domain.SourceUKRI)
	if len(slug) > 500 {
		t.Errorf("slug length = %d, want <= 500", len(slug))
	}
}

func TestGenerateSlug_CapsOnRuneBoundary(t *testing.T) {
	t.Parallel()

	// A 3-byte repeat unit makes the 500-byte cap land mid-rune unless the
	// truncation backs up to a boundary.
	slug := domain.GenerateSlug(strings.Repeat("aé", 400), domain.SourceUKRI)
	if len(slug) > 500 {
		t.Errorf("slug length = %d, want <= 500", len(slug))
	}
	if !utf8.ValidString(slug) {
		t.Errorf("slug %q is not valid UTF-8", slug)
	}
}

func TestComputedStatus(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.AddDate(0, -1, 0)
	future := now.AddDate(0, 1, 0)

	tests := []struct {
		name     string
		deadline *time.Time
		opening  *time.Time
		want     domain.Status
	}{
		{name: "future deadline is open", deadline: &future, want: domain.StatusOpen},
		{name: "past deadline is closed", deadline: &past, want: domain.StatusClosed},
		{name: "opening date only is open-ended", opening: &past, want: domain.StatusOpen},
		{name: "no dates is unknown", want: domain.StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := domain.Grant{Deadline: tt.deadline, OpeningDate: tt.opening}
			if got := g.ComputedStatus(now); got != tt.want {
				t.Errorf("ComputedStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSource_IsValid(t *testing.T) {
	t.Parallel()

	for _, s := range []domain.Source{domain.SourceUKRI, domain.SourceNIHR, domain.SourceCatapult, domain.SourceInnovateUK} {
		if !s.IsValid() {
			t.Errorf("Source(%q).IsValid() = false, want true", s)
		}
	}
	if domain.Source("horizon").IsValid() {
		t.Error(`Source("horizon").IsValid() = true, want false`)
	}
}
