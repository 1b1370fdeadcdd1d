// Package ingest applies scraped grant records to the store, classifying each
// as created, updated, or skipped by comparing content hashes.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/grant-matcher/internal/domain"
	"github.com/jonesrussell/grant-matcher/internal/logger"
)

// ErrNotFound is returned by Tx lookups when no grant matches.
var ErrNotFound = errors.New("grant not found")

// ErrDuplicate is returned by Tx.Insert when a concurrent writer already
// created the same (slug, source) row.
var ErrDuplicate = errors.New("grant already exists")

// Tx is the set of per-transaction operations the engine needs.
type Tx interface {
	FindBySlug(ctx context.Context, slug string, source domain.Source) (*domain.Grant, error)
	FindByURL(ctx context.Context, url string, source domain.Source) (*domain.Grant, error)
	Insert(ctx context.Context, grant *domain.Grant) (int64, error)
	Update(ctx context.Context, grant *domain.Grant) error
}

// Store runs a function inside a single transaction. The whole batch commits
// or rolls back together.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// EventSink receives lifecycle notifications after a batch commits.
// Implementations must tolerate being called with grants they have not seen.
type EventSink interface {
	GrantCreated(ctx context.Context, grant *domain.Grant) error
	GrantUpdated(ctx context.Context, grant *domain.Grant) error
}

// Action classifies what the engine did with a single record.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionSkipped Action = "skipped"
)

// RecordChange is the audit entry for one processed record.
type RecordChange struct {
	Slug    string        `json:"slug"`
	Source  domain.Source `json:"source"`
	Action  Action        `json:"action"`
	Fields  []FieldChange `json:"fields,omitempty"`
	Summary string        `json:"summary,omitempty"`
}

// Outcome summarizes a whole batch.
type Outcome struct {
	Created int            `json:"created"`
	Updated int            `json:"updated"`
	Skipped int            `json:"skipped"`
	Changes []RecordChange `json:"changes"`
}

// Engine upserts grant records by content hash.
type Engine struct {
	store  Store
	events EventSink
	log    logger.Logger
	now    func() time.Time
}

// New creates an Engine. events may be nil when lifecycle notifications are
// disabled.
func New(store Store, events EventSink, log logger.Logger) *Engine {
	return &Engine{
		store:  store,
		events: events,
		log:    log,
		now:    time.Now,
	}
}

// Upsert writes records to the store in a single transaction and returns the
// per-record outcome. Records with no title or an unknown source fail the
// whole batch: a malformed payload this early means the scraper is broken,
// and partial writes would hide that.
func (e *Engine) Upsert(ctx context.Context, records []domain.Record) (*Outcome, error) {
	outcome := &Outcome{Changes: make([]RecordChange, 0, len(records))}

	var created, updated []*domain.Grant

	err := e.store.WithinTx(ctx, func(tx Tx) error {
		for i := range records {
			record := &records[i]
			if record.Title == "" {
				return fmt.Errorf("record %d: missing title", i)
			}
			if !record.Source.IsValid() {
				return fmt.Errorf("record %d: unknown source %q", i, record.Source)
			}

			change, grant, err := e.applyRecord(ctx, tx, record)
			if err != nil {
				return fmt.Errorf("record %d (%s): %w", i, record.Title, err)
			}

			outcome.Changes = append(outcome.Changes, change)
			switch change.Action {
			case ActionCreated:
				outcome.Created++
				created = append(created, grant)
			case ActionUpdated:
				outcome.Updated++
				updated = append(updated, grant)
			case ActionSkipped:
				outcome.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.notify(ctx, created, updated)

	e.log.Info("upsert batch complete",
		logger.Int("records", len(records)),
		logger.Int("created", outcome.Created),
		logger.Int("updated", outcome.Updated),
		logger.Int("skipped", outcome.Skipped))

	return outcome, nil
}

// applyRecord processes one record inside the batch transaction.
func (e *Engine) applyRecord(ctx context.Context, tx Tx, record *domain.Record) (RecordChange, *domain.Grant, error) {
	slug := record.Slug
	if slug == "" {
		slug = domain.GenerateSlug(record.Title, record.Source)
	}
	hash := record.ContentHash()

	existing, err := e.lookup(ctx, tx, slug, record)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return RecordChange{}, nil, err
	}

	if existing != nil {
		return e.updateExisting(ctx, tx, existing, record, slug, hash)
	}

	grant := e.buildGrant(record, slug, hash)
	id, err := tx.Insert(ctx, grant)
	if errors.Is(err, ErrDuplicate) {
		// Lost an insert race. The row exists now; take the update path.
		existing, err = e.lookup(ctx, tx, slug, record)
		if err != nil {
			return RecordChange{}, nil, fmt.Errorf("lookup after duplicate insert: %w", err)
		}
		return e.updateExisting(ctx, tx, existing, record, slug, hash)
	}
	if err != nil {
		return RecordChange{}, nil, err
	}
	grant.ID = id

	return RecordChange{
		Slug:    slug,
		Source:  record.Source,
		Action:  ActionCreated,
		Summary: "Created",
	}, grant, nil
}

// lookup finds an existing grant by (slug, source), falling back to
// (url, source) for grants whose title changed since the last scrape.
func (e *Engine) lookup(ctx context.Context, tx Tx, slug string, record *domain.Record) (*domain.Grant, error) {
	grant, err := tx.FindBySlug(ctx, slug, record.Source)
	if err == nil {
		return grant, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if record.URL == "" {
		return nil, ErrNotFound
	}
	return tx.FindByURL(ctx, record.URL, record.Source)
}

func (e *Engine) updateExisting(ctx context.Context, tx Tx, existing *domain.Grant, record *domain.Record, slug, hash string) (RecordChange, *domain.Grant, error) {
	if existing.ContentHash == hash {
		return RecordChange{
			Slug:    existing.Slug,
			Source:  existing.Source,
			Action:  ActionSkipped,
			Summary: "Unchanged",
		}, existing, nil
	}

	next := e.buildGrant(record, slug, hash)
	next.ID = existing.ID
	next.FirstSeenAt = existing.FirstSeenAt
	next.Checklists = existing.Checklists

	fields := Diff(existing, next)
	now := e.now()
	next.LastChangedAt = &now

	if err := tx.Update(ctx, next); err != nil {
		return RecordChange{}, nil, err
	}

	change := RecordChange{
		Slug:    next.Slug,
		Source:  next.Source,
		Action:  ActionUpdated,
		Fields:  fields,
		Summary: Summarize(fields),
	}

	if existing.Slug != next.Slug {
		e.log.Info("re-keyed grant matched by url",
			logger.String("old_slug", existing.Slug),
			logger.String("new_slug", next.Slug),
			logger.String("source", string(next.Source)))
	}

	return change, next, nil
}

// buildGrant materializes a record into a persistable grant.
func (e *Engine) buildGrant(record *domain.Record, slug, hash string) *domain.Grant {
	now := e.now()

	grant := &domain.Grant{
		Title:         record.Title,
		Slug:          slug,
		Source:        record.Source,
		Summary:       record.Summary,
		Description:   record.Description,
		URL:           record.URL,
		FundingAmount: record.FundingAmount,
		Deadline:      record.Deadline,
		OpeningDate:   record.OpeningDate,
		Status:        record.Status,
		RawData:       record.RawData,
		ContentHash:   hash,
		ScrapedAt:     record.ScrapedAt,
		FirstSeenAt:   now,
	}
	if grant.Status == "" {
		grant.Status = grant.ComputedStatus(now)
	}
	if grant.ScrapedAt == nil {
		grant.ScrapedAt = &now
	}
	return grant
}

func (e *Engine) notify(ctx context.Context, created, updated []*domain.Grant) {
	if e.events == nil {
		return
	}
	for _, grant := range created {
		if err := e.events.GrantCreated(ctx, grant); err != nil {
			e.log.Warn("failed to publish grant created event",
				logger.String("slug", grant.Slug), logger.Error(err))
		}
	}
	for _, grant := range updated {
		if err := e.events.GrantUpdated(ctx, grant); err != nil {
			e.log.Warn("failed to publish grant updated event",
				logger.String("slug", grant.Slug), logger.Error(err))
		}
	}
}
