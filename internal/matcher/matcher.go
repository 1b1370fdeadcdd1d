package matcher

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jonesrussell/grant-matcher/internal/domain"
	"github.com/jonesrussell/grant-matcher/internal/logger"
	"github.com/jonesrussell/grant-matcher/internal/orchestrator"
)

// GrantSource is the grant persistence surface the matcher reads and writes.
type GrantSource interface {
	ListByStatus(ctx context.Context, status domain.Status, limit int) ([]*domain.Grant, error)
	GetBySlug(ctx context.Context, slug string, source domain.Source) (*domain.Grant, error)
	UpdateChecklists(ctx context.Context, grantID int64, checklists domain.ChecklistSet) error
}

// MatchSink receives scored matches.
type MatchSink interface {
	Upsert(ctx context.Context, match *domain.GrantMatch) error
}

// Config tunes a matching run. Zero backoffs take the orchestrator defaults.
type Config struct {
	Concurrency      int
	MaxAttempts      int
	ThrottleBackoff  time.Duration
	TransientBackoff time.Duration
}

// RunOptions are per-run knobs for MatchProject.
type RunOptions struct {
	// Limit caps how many open grants are scored. 0 means all.
	Limit int
	// OnProgress, when set, is called after each grant completes.
	OnProgress func(completed, total int)
	// IsCancelled, when set, is polled to stop the run early.
	IsCancelled func() bool
}

// RunReport summarizes one matching run.
type RunReport struct {
	Total     int                  `json:"total"`
	Scored    int                  `json:"scored"`
	Failed    int                  `json:"failed"`
	Cancelled int                  `json:"cancelled"`
	Errors    []string             `json:"errors,omitempty"`
	Matches   []*domain.GrantMatch `json:"matches"`
}

// Service scores grants against a project and generates checklists.
type Service struct {
	completer Completer
	grants    GrantSource
	matches   MatchSink
	orch      *orchestrator.Orchestrator
	policy    ScorePolicy
	cfg       Config
	log       logger.Logger
	now       func() time.Time
}

// NewService wires a matcher service.
func NewService(
	completer Completer,
	grants GrantSource,
	matches MatchSink,
	orch *orchestrator.Orchestrator,
	policy ScorePolicy,
	cfg Config,
	log logger.Logger,
) *Service {
	return &Service{
		completer: completer,
		grants:    grants,
		matches:   matches,
		orch:      orch,
		policy:    policy,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// MatchProject scores every open grant against the project and persists the
// results. One bad grant never aborts the run; its failure is reported in the
// returned run report.
func (s *Service) MatchProject(ctx context.Context, project *Project, opts RunOptions) (*RunReport, error) {
	grants, err := s.grants.ListByStatus(ctx, domain.StatusOpen, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("list open grants: %w", err)
	}

	items := make([]orchestrator.WorkItem, len(grants))
	for i, grant := range grants {
		items[i] = orchestrator.WorkItem{Index: i, Payload: grant}
	}

	score := func(ctx context.Context, item orchestrator.WorkItem) (any, error) {
		grant := item.Payload.(*domain.Grant)
		return s.scoreGrant(ctx, grant, project)
	}

	results := s.orch.Run(ctx, items, score, orchestrator.Options{
		Concurrency:      s.cfg.Concurrency,
		MaxAttempts:      s.cfg.MaxAttempts,
		ThrottleBackoff:  s.cfg.ThrottleBackoff,
		TransientBackoff: s.cfg.TransientBackoff,
		OnProgress:       opts.OnProgress,
		IsCancelled:      opts.IsCancelled,
	})

	report := &RunReport{Total: len(results)}
	for _, result := range results {
		switch {
		case result.Cancelled:
			report.Cancelled++
		case result.Err != nil:
			report.Failed++
			grant := grants[result.Index]
			report.Errors = append(report.Errors,
				fmt.Sprintf("%s: %v", grant.Slug, result.Err))
			s.log.Warn("grant scoring failed",
				logger.String("slug", grant.Slug), logger.Error(result.Err))
		default:
			match := result.Value.(*domain.GrantMatch)
			if err := s.matches.Upsert(ctx, match); err != nil {
				report.Failed++
				report.Errors = append(report.Errors,
					fmt.Sprintf("%s: store match: %v", match.Slug, err))
				continue
			}
			report.Scored++
			report.Matches = append(report.Matches, match)
		}
	}

	sort.Slice(report.Matches, func(i, j int) bool {
		return report.Matches[i].Score > report.Matches[j].Score
	})

	s.log.Info("matching run complete",
		logger.String("policy", s.policy.Name()),
		logger.Int("total", report.Total),
		logger.Int("scored", report.Scored),
		logger.Int("failed", report.Failed),
		logger.Int("cancelled", report.Cancelled))

	return report, nil
}

// scoreGrant runs one fit completion and folds the reply into a match.
func (s *Service) scoreGrant(ctx context.Context, grant *domain.Grant, project *Project) (*domain.GrantMatch, error) {
	prompt, err := buildFitPrompt(grant, project)
	if err != nil {
		return nil, err
	}

	reply, err := s.completer.Complete(ctx, fitSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	var fit fitResponse
	if err := decodeModelJSON(reply, &fit); err != nil {
		return nil, err
	}

	scores := domain.SubScores{
		Eligibility:     fit.Eligibility,
		Competitiveness: fit.Competitiveness,
		Exclusions:      fit.Exclusions,
	}

	return &domain.GrantMatch{
		GrantID:         grant.ID,
		Slug:            grant.Slug,
		Score:           s.policy.Overall(scores),
		SubScores:       scores,
		Explanation:     fit.Explanation,
		AlignmentPoints: fit.AlignmentPoints,
		Concerns:        fit.Concerns,
		MatchedAt:       s.now().UTC(),
	}, nil
}

// GenerateChecklists fills in the requested checklist kinds for one grant.
// Kinds the grant already has are kept unless force is set. An empty kind set
// means all kinds.
func (s *Service) GenerateChecklists(ctx context.Context, slug string, source domain.Source, kinds domain.KindSet, force bool) (domain.ChecklistSet, error) {
	grant, err := s.grants.GetBySlug(ctx, slug, source)
	if err != nil {
		return nil, fmt.Errorf("load grant %s: %w", slug, err)
	}

	checklists := grant.Checklists
	if checklists == nil {
		checklists = domain.ChecklistSet{}
	}

	var pending []domain.ChecklistKind
	for _, kind := range domain.AllChecklistKinds() {
		if !kinds.Contains(kind) {
			continue
		}
		if checklists.Has(kind) && !force {
			continue
		}
		pending = append(pending, kind)
	}
	if len(pending) == 0 {
		return checklists, nil
	}

	// Checklist completions share the scoring quota, so they go through the
	// same limiter and retry pipeline as project-fit calls.
	items := make([]orchestrator.WorkItem, len(pending))
	for i, kind := range pending {
		items[i] = orchestrator.WorkItem{Index: i, Payload: kind}
	}

	results := s.orch.Run(ctx, items, func(ctx context.Context, item orchestrator.WorkItem) (any, error) {
		return s.generateChecklist(ctx, grant, item.Payload.(domain.ChecklistKind))
	}, orchestrator.Options{
		Concurrency:      1,
		MaxAttempts:      s.cfg.MaxAttempts,
		ThrottleBackoff:  s.cfg.ThrottleBackoff,
		TransientBackoff: s.cfg.TransientBackoff,
	})

	for _, result := range results {
		kind := pending[result.Index]
		switch {
		case result.Cancelled:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("generate %s checklist: %w", kind, ctxErr)
			}
			return nil, fmt.Errorf("generate %s checklist: cancelled", kind)
		case result.Err != nil:
			return nil, fmt.Errorf("generate %s checklist: %w", kind, result.Err)
		default:
			checklists[kind] = result.Value.(*domain.Checklist)
		}
	}

	if err := s.grants.UpdateChecklists(ctx, grant.ID, checklists); err != nil {
		return nil, fmt.Errorf("store checklists: %w", err)
	}

	s.log.Info("checklists generated",
		logger.String("slug", slug),
		logger.Int("generated", len(pending)))

	return checklists, nil
}

func (s *Service) generateChecklist(ctx context.Context, grant *domain.Grant, kind domain.ChecklistKind) (*domain.Checklist, error) {
	system, prompt, err := buildChecklistPrompts(grant, kind)
	if err != nil {
		return nil, err
	}

	reply, err := s.completer.Complete(ctx, system, prompt)
	if err != nil {
		return nil, err
	}

	var parsed checklistResponse
	if err := decodeModelJSON(reply, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Items) == 0 {
		return nil, orchestrator.Structural(fmt.Errorf("empty %s checklist", kind))
	}

	return &domain.Checklist{
		Kind:        kind,
		Items:       parsed.Items,
		GeneratedAt: s.now().UTC().Format(time.RFC3339),
		Model:       s.completer.Model(),
	}, nil
}
