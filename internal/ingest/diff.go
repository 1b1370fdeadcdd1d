package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonesrussell/grant-matcher/internal/domain"
)

// FieldChange records one field moving from Before to After.
type FieldChange struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// summaryFieldLimit is how many field names a summary spells out before
// collapsing to a count.
const summaryFieldLimit = 3

// Diff compares the hash-tracked fields of two grants and returns one
// FieldChange per differing field, in a fixed display order.
func Diff(before, after *domain.Grant) []FieldChange {
	var changes []FieldChange

	add := func(field, b, a string) {
		if b != a {
			changes = append(changes, FieldChange{Field: field, Before: b, After: a})
		}
	}

	add("Title", before.Title, after.Title)
	add("Summary", before.Summary, after.Summary)
	add("Description", before.Description, after.Description)
	add("URL", before.URL, after.URL)
	add("Funding Amount", before.FundingAmount, after.FundingAmount)
	add("Deadline", formatDate(before.Deadline), formatDate(after.Deadline))
	add("Status", string(before.Status), string(after.Status))

	return changes
}

// Summarize renders a field-change list as a short human-readable line, e.g.
// "Updated Title, Deadline". Past a few fields it collapses to a count.
func Summarize(changes []FieldChange) string {
	if len(changes) == 0 {
		return "Unchanged"
	}
	if len(changes) > summaryFieldLimit {
		return fmt.Sprintf("Updated %d fields", len(changes))
	}

	names := make([]string, len(changes))
	for i, c := range changes {
		names[i] = c.Field
	}
	return "Updated " + strings.Join(names, ", ")
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
