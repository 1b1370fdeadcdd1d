package matcher

import (
	"encoding/json"
	"fmt"

	"github.com/jonesrussell/grant-matcher/internal/domain"
)

const fitSystemPrompt = "You are an expert grant matching assistant.\n" +
	"You will receive:\n" +
	"- A grant object with fields: title, summary, description, eligibility, deadline, funding_amount, status, source, url.\n" +
	"- A project object with fields: name, description, sectors, stage, notes.\n" +
	"Your task is to:\n" +
	"- Analyze how well the grant aligns with the project.\n" +
	"- Score eligibility, competitiveness, and exclusions each from 0.0 to 10.0.\n" +
	"  eligibility: how likely the project meets the hard requirements (10 = clearly eligible).\n" +
	"  competitiveness: how strong an application from this project would be (10 = very strong).\n" +
	"  exclusions: how clear the project is of disqualifying conditions (10 = no exclusions apply).\n" +
	"- List 3-5 alignment points (what matches well).\n" +
	"- List 2-4 concerns or mismatches.\n" +
	"- Provide a brief explanation (2-3 sentences) of the overall fit.\n" +
	"Rules:\n" +
	"- Base your analysis only on the provided grant and project data.\n" +
	"- Be honest about mismatches - don't inflate scores.\n" +
	"- If critical information is missing, omit that score rather than guessing.\n" +
	"- If critical information is missing, mention it in concerns.\n" +
	"Always respond with a single JSON object: " +
	`{"eligibility": float, "competitiveness": float, "exclusions": float, ` +
	`"explanation": string, "alignment_points": [string], "concerns": [string]}.`

const checklistSystemPrompt = "You are an assistant for grant applicants.\n" +
	"You receive a single grant object with fields such as " +
	"`title`, `summary`, `description`, `eligibility`, `deadline`, " +
	"`funding_amount`, `status`, `source`, `url`.\n" +
	"Your task is to produce a checklist of %s.\n" +
	"Rules:\n" +
	"- Use only the information in the provided grant object.\n" +
	"- If important information is missing, include a checklist item to verify it.\n" +
	"- Keep each item short and actionable.\n" +
	"- Do not invent amounts, dates, or sectors.\n" +
	"Always respond with a single JSON object: " +
	`{"checklist_items": [string]}.`

// checklistFocus maps each kind to the checklist the prompt asks for.
var checklistFocus = map[domain.ChecklistKind]string{
	domain.KindEligibility:     "5-10 hard eligibility requirements an applicant must satisfy",
	domain.KindCompetitiveness: "5-10 factors that would make an application competitive",
	domain.KindExclusions:      "3-8 conditions that would disqualify an applicant",
}

// fitResponse is the model's JSON reply to the fit prompt. Absent scores stay
// nil so the policy can distinguish "not assessed" from zero.
type fitResponse struct {
	Eligibility     *float64 `json:"eligibility"`
	Competitiveness *float64 `json:"competitiveness"`
	Exclusions      *float64 `json:"exclusions"`
	Explanation     string   `json:"explanation"`
	AlignmentPoints []string `json:"alignment_points"`
	Concerns        []string `json:"concerns"`
}

// checklistResponse is the model's JSON reply to a checklist prompt.
type checklistResponse struct {
	Items []string `json:"checklist_items"`
}

func buildFitPrompt(grant *domain.Grant, project *Project) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"task":    "grant_project_fit",
		"grant":   buildGrantContext(grant),
		"project": buildProjectContext(project),
	})
	if err != nil {
		return "", fmt.Errorf("marshal fit payload: %w", err)
	}
	return string(payload), nil
}

func buildChecklistPrompts(grant *domain.Grant, kind domain.ChecklistKind) (system, prompt string, err error) {
	payload, err := json.Marshal(map[string]any{
		"task":  "grant_checklist",
		"kind":  string(kind),
		"grant": buildGrantContext(grant),
	})
	if err != nil {
		return "", "", fmt.Errorf("marshal checklist payload: %w", err)
	}
	return fmt.Sprintf(checklistSystemPrompt, checklistFocus[kind]), string(payload), nil
}
