// Package events publishes grant lifecycle events to a Redis stream.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/grant-matcher/internal/domain"
	"github.com/jonesrussell/grant-matcher/internal/logger"
)

// EventType identifies a grant lifecycle transition.
type EventType string

const (
	// TypeGrantCreated is emitted when ingest stores a new grant.
	TypeGrantCreated EventType = "grant.created"
	// TypeGrantUpdated is emitted when ingest changes a stored grant.
	TypeGrantUpdated EventType = "grant.updated"
)

// GrantEvent is the stream payload for one lifecycle transition.
type GrantEvent struct {
	EventID   uuid.UUID     `json:"event_id"`
	EventType EventType     `json:"event_type"`
	Timestamp time.Time     `json:"timestamp"`
	GrantID   int64         `json:"grant_id"`
	Slug      string        `json:"slug"`
	Source    domain.Source `json:"source"`
}

// Publisher publishes grant events to Redis Streams. A nil Publisher is a
// no-op, so callers never need to branch on whether Redis is configured.
type Publisher struct {
	client *redis.Client
	stream string
	log    logger.Logger
}

// NewPublisher creates a publisher writing to the named stream.
// Returns nil if client is nil.
func NewPublisher(client *redis.Client, stream string, log logger.Logger) *Publisher {
	if client == nil {
		return nil
	}
	return &Publisher{
		client: client,
		stream: stream,
		log:    log,
	}
}

// GrantCreated publishes a grant.created event.
func (p *Publisher) GrantCreated(ctx context.Context, grant *domain.Grant) error {
	return p.publish(ctx, TypeGrantCreated, grant)
}

// GrantUpdated publishes a grant.updated event.
func (p *Publisher) GrantUpdated(ctx context.Context, grant *domain.Grant) error {
	return p.publish(ctx, TypeGrantUpdated, grant)
}

func (p *Publisher) publish(ctx context.Context, eventType EventType, grant *domain.Grant) error {
	if p == nil || p.client == nil {
		return nil
	}

	event := GrantEvent{
		EventID:   uuid.New(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		GrantID:   grant.ID,
		Slug:      grant.Slug,
		Source:    grant.Source,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	result := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"event": string(payload),
		},
	})

	if publishErr := result.Err(); publishErr != nil {
		if p.log != nil {
			p.log.Error("Failed to publish event",
				logger.String("event_type", string(eventType)),
				logger.String("slug", grant.Slug),
				logger.Error(publishErr),
			)
		}
		return fmt.Errorf("publish to stream: %w", publishErr)
	}

	if p.log != nil {
		p.log.Info("Published grant event",
			logger.String("event_type", string(eventType)),
			logger.String("slug", grant.Slug),
			logger.String("stream_id", result.Val()),
		)
	}

	return nil
}
