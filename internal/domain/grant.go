// Package domain contains the core domain models for the grant-matcher service.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Source identifies the funding body a grant was scraped from.
type Source string

const (
	// SourceUKRI is UK Research and Innovation.
	SourceUKRI Source = "ukri"
	// SourceNIHR is the National Institute for Health and Care Research.
	SourceNIHR Source = "nihr"
	// SourceCatapult is the Catapult Network.
	SourceCatapult Source = "catapult"
	// SourceInnovateUK is Innovate UK.
	SourceInnovateUK Source = "innovate_uk"
)

// validSources maps every recognised Source value to true for O(1) lookup.
var validSources = map[Source]bool{
	SourceUKRI:       true,
	SourceNIHR:       true,
	SourceCatapult:   true,
	SourceInnovateUK: true,
}

// IsValid reports whether s is a recognised grant source.
func (s Source) IsValid() bool {
	return validSources[s]
}

// Status is the lifecycle status of a grant.
type Status string

const (
	// StatusOpen means the grant is currently accepting applications.
	StatusOpen Status = "open"
	// StatusClosed means the application deadline has passed.
	StatusClosed Status = "closed"
	// StatusUnknown means the status cannot be determined from dates.
	StatusUnknown Status = "unknown"
)

// Grant represents a funding opportunity tracked across scrape runs.
type Grant struct {
	ID            int64          `json:"id"`
	Title         string         `json:"title"`
	Slug          string         `json:"slug"`
	Source        Source         `json:"source"`
	Summary       string         `json:"summary"`
	Description   string         `json:"description"`
	URL           string         `json:"url"`
	FundingAmount string         `json:"funding_amount"`
	Deadline      *time.Time     `json:"deadline,omitempty"`
	OpeningDate   *time.Time     `json:"opening_date,omitempty"`
	Status        Status         `json:"status"`
	RawData       map[string]any `json:"raw_data,omitempty"`
	Checklists    ChecklistSet   `json:"checklists,omitempty"`
	ContentHash   string         `json:"content_hash"`
	ScrapedAt     *time.Time     `json:"scraped_at,omitempty"`
	FirstSeenAt   time.Time      `json:"first_seen_at"`
	LastChangedAt *time.Time     `json:"last_changed_at,omitempty"`
}

// ComputedStatus derives the grant status from its opening date and deadline.
// A future deadline means open; a passed deadline means closed; a grant with
// only an opening date is treated as open-ended.
func (g *Grant) ComputedStatus(now time.Time) Status {
	if g.Deadline != nil {
		if g.Deadline.Before(now) {
			return StatusClosed
		}
		return StatusOpen
	}
	if g.OpeningDate != nil {
		return StatusOpen
	}
	return StatusUnknown
}

// Record is an incoming scraped grant payload, prior to persistence.
// Slug and ContentHash are computed during ingest when empty.
type Record struct {
	Title         string         `json:"title"`
	Slug          string         `json:"slug,omitempty"`
	Source        Source         `json:"source"`
	Summary       string         `json:"summary,omitempty"`
	Description   string         `json:"description,omitempty"`
	URL           string         `json:"url,omitempty"`
	FundingAmount string         `json:"funding_amount,omitempty"`
	Deadline      *time.Time     `json:"deadline,omitempty"`
	OpeningDate   *time.Time     `json:"opening_date,omitempty"`
	Status        Status         `json:"status,omitempty"`
	RawData       map[string]any `json:"raw_data,omitempty"`
	ScrapedAt     *time.Time     `json:"scraped_at,omitempty"`
}

// hashFields is the fixed set of semantically-tracked fields covered by the
// content hash. Volatile fields (raw payload, scrape timestamps) are excluded
// so re-scrapes without meaningful change never count as updates.
type hashFields struct {
	Deadline      string `json:"deadline"`
	Description   string `json:"description"`
	FundingAmount string `json:"funding_amount"`
	Source        string `json:"source"`
	Status        string `json:"status"`
	Summary       string `json:"summary"`
	Title         string `json:"title"`
	URL           string `json:"url"`
}

// ContentHash returns the hex-encoded SHA-256 digest over the tracked fields
// of r. Fields are serialized in a fixed sorted order so the digest is
// deterministic across processes.
func (r *Record) ContentHash() string {
	status := r.Status
	if status == "" {
		status = StatusUnknown
	}

	deadline := ""
	if r.Deadline != nil {
		deadline = r.Deadline.UTC().Format(time.RFC3339)
	}

	fields := hashFields{
		Deadline:      deadline,
		Description:   r.Description,
		FundingAmount: r.FundingAmount,
		Source:        string(r.Source),
		Status:        string(status),
		Summary:       r.Summary,
		Title:         r.Title,
		URL:           r.URL,
	}

	// Struct fields marshal in declaration order, which is kept alphabetical.
	data, err := json.Marshal(fields)
	if err != nil {
		// Marshalling a flat string struct cannot fail.
		return ""
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// maxSlugLen matches the slug column width.
const maxSlugLen = 500

// GenerateSlug builds the natural key for a grant from its title and source.
func GenerateSlug(title string, source Source) string {
	slug := Slugify(title + " " + string(source))
	if len(slug) > maxSlugLen {
		// Back up to a rune boundary so a multi-byte character is never
		// split into invalid UTF-8.
		cut := maxSlugLen
		for cut > 0 && !utf8.RuneStart(slug[cut]) {
			cut--
		}
		slug = slug[:cut]
	}
	return strings.Trim(slug, "-")
}

// Slugify lowercases s, replaces runs of non-alphanumeric characters with a
// single hyphen, and strips leading/trailing hyphens.
func Slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	prevHyphen := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevHyphen = false
		case !prevHyphen && b.Len() > 0:
			b.WriteByte('-')
			prevHyphen = true
		}
	}

	return strings.TrimRight(b.String(), "-")
}
