package matcher

import (
	"strings"
	"time"

	"github.com/jonesrussell/grant-matcher/internal/domain"
)

// Truncation caps for prompt context fields. Grant descriptions can run to
// tens of kilobytes of scraped text; the model only needs the head.
const (
	maxTitleLen         = 500
	maxSummaryLen       = 1000
	maxDescriptionLen   = 2000
	maxEligibilityLen   = 2000
	maxFundingAmountLen = 255
	maxProjectNotesLen  = 1000
)

// Project describes the applicant project grants are scored against.
type Project struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Sectors     []string `json:"sectors,omitempty"`
	Stage       string   `json:"stage,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

// grantContext is the sanitised grant payload embedded in prompts.
type grantContext struct {
	Slug          string `json:"slug"`
	Title         string `json:"title"`
	Summary       string `json:"summary"`
	Description   string `json:"description"`
	Eligibility   string `json:"eligibility"`
	Deadline      string `json:"deadline,omitempty"`
	FundingAmount string `json:"funding_amount"`
	Status        string `json:"status"`
	Source        string `json:"source"`
	URL           string `json:"url"`
}

// projectContext is the sanitised project payload embedded in prompts.
type projectContext struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Sectors     []string `json:"sectors,omitempty"`
	Stage       string   `json:"stage,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

func buildGrantContext(grant *domain.Grant) grantContext {
	deadline := ""
	if grant.Deadline != nil {
		deadline = grant.Deadline.UTC().Format(time.RFC3339)
	}

	return grantContext{
		Slug:          grant.Slug,
		Title:         truncate(grant.Title, maxTitleLen),
		Summary:       truncate(grant.Summary, maxSummaryLen),
		Description:   truncate(grant.Description, maxDescriptionLen),
		Eligibility:   truncate(extractEligibility(grant.RawData), maxEligibilityLen),
		Deadline:      deadline,
		FundingAmount: truncate(grant.FundingAmount, maxFundingAmountLen),
		Status:        string(grant.Status),
		Source:        string(grant.Source),
		URL:           grant.URL,
	}
}

func buildProjectContext(project *Project) projectContext {
	return projectContext{
		Name:        truncate(project.Name, maxTitleLen),
		Description: truncate(project.Description, maxDescriptionLen),
		Sectors:     project.Sectors,
		Stage:       project.Stage,
		Notes:       truncate(project.Notes, maxProjectNotesLen),
	}
}

// extractEligibility digs eligibility text out of the scraped raw payload.
// Sources disagree on structure: some put it at the top level, some under a
// sections map, and some nest it inside tabbed sections.
func extractEligibility(raw map[string]any) string {
	if raw == nil {
		return ""
	}

	if text, ok := raw["eligibility"].(string); ok && text != "" {
		return text
	}

	sections, ok := raw["sections"].(map[string]any)
	if !ok {
		return ""
	}
	if text := sectionText(sections["eligibility"]); text != "" {
		return text
	}

	for key, value := range sections {
		if isEligibilityKey(key) {
			if text := sectionText(value); text != "" {
				return text
			}
		}

		// Tabbed layouts nest their sections one level deeper.
		tab, ok := value.(map[string]any)
		if !ok {
			continue
		}
		nested, ok := tab["sections"].([]any)
		if !ok {
			continue
		}
		for _, entry := range nested {
			section, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			key, _ := section["key"].(string)
			if isEligibilityKey(key) {
				if text, ok := section["content"].(string); ok && text != "" {
					return text
				}
			}
		}
	}
	return ""
}

func isEligibilityKey(key string) bool {
	key = strings.ToLower(key)
	return strings.Contains(key, "eligibility") || strings.Contains(key, "who_can_apply")
}

func sectionText(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case map[string]any:
		if content, ok := v["content"].(string); ok {
			return content
		}
		if title, ok := v["title"].(string); ok {
			return title
		}
	}
	return ""
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
