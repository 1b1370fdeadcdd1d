package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/grant-matcher/internal/domain"
	"github.com/jonesrussell/grant-matcher/internal/logger"
)

func TestNewPublisher_NilClientReturnsNil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, NewPublisher(nil, "grants:events", logger.NewNop()))
}

func TestPublisher_NilPublisherIsNoOp(t *testing.T) {
	t.Parallel()

	var p *Publisher
	grant := &domain.Grant{ID: 1, Slug: "ai-fund-ukri", Source: domain.SourceUKRI}

	assert.NoError(t, p.GrantCreated(context.Background(), grant))
	assert.NoError(t, p.GrantUpdated(context.Background(), grant))
}
