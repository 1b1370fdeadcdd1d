package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/grant-matcher/internal/api"
	"github.com/jonesrussell/grant-matcher/internal/config"
	"github.com/jonesrussell/grant-matcher/internal/database"
	"github.com/jonesrussell/grant-matcher/internal/events"
	"github.com/jonesrussell/grant-matcher/internal/httpserver"
	"github.com/jonesrussell/grant-matcher/internal/ingest"
	"github.com/jonesrussell/grant-matcher/internal/logger"
	"github.com/jonesrussell/grant-matcher/internal/matcher"
	"github.com/jonesrussell/grant-matcher/internal/metrics"
	"github.com/jonesrussell/grant-matcher/internal/orchestrator"
	"github.com/jonesrussell/grant-matcher/internal/ratelimit"
)

const (
	healthCheckTimeout = 2 * time.Second
	rateLimiterName    = "anthropic"
)

// SetupHTTPServer wires the repositories, services and handlers and returns
// a server ready to run.
func SetupHTTPServer(
	cfg *config.Config,
	db *database.DB,
	redisClient *redis.Client,
	log logger.Logger,
) (*httpserver.Server, error) {
	grants := database.NewGrantRepository(db.DB())
	scrapeLogs := database.NewScrapeLogRepository(db.DB())
	matches := database.NewMatchRepository(db.DB())

	var limiterStore ratelimit.Store = ratelimit.NewMemoryStore()
	if redisClient != nil {
		limiterStore = ratelimit.NewRedisStore(redisClient, rateLimiterName)
	}

	limiter := ratelimit.New(ratelimit.Config{
		TargetPerMinute: float64(cfg.RateLimit.TargetPerMinute),
		Concurrency:     cfg.Matcher.Concurrency,
		SafetyFactor:    cfg.RateLimit.SafetyFactor,
		SpacingFactor:   cfg.RateLimit.SpacingFactor,
	}, limiterStore, log)

	policy, policyErr := matcher.NewScorePolicy(cfg.Matcher.ScorePolicy)
	if policyErr != nil {
		return nil, fmt.Errorf("score policy: %w", policyErr)
	}

	completer := matcher.NewAnthropicCompleter(
		cfg.Anthropic.APIKey, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)

	matcherSvc := matcher.NewService(
		completer, grants, matches,
		orchestrator.New(limiter, log),
		policy,
		matcher.Config{
			Concurrency: cfg.Matcher.Concurrency,
			MaxAttempts: cfg.Matcher.MaxAttempts,
		},
		log,
	)

	publisher := events.NewPublisher(redisClient, cfg.Redis.Stream, log)
	engine := ingest.New(grants, publisher, log)
	ingestSvc := ingest.NewService(engine, scrapeLogs, log)

	m := metrics.New()
	handler := api.NewHandler(ingestSvc, matcherSvc, matches, scrapeLogs, m, log)

	serverCfg := &httpserver.Config{
		Port:           cfg.Service.Port,
		ServiceName:    cfg.Service.Name,
		ServiceVersion: cfg.Service.Version,
		Debug:          cfg.Service.Debug,
	}

	server := httpserver.NewServer(serverCfg, log, func(router *gin.Engine) {
		handler.RegisterRoutes(router)

		checks := map[string]httpserver.HealthChecker{
			"database": httpserver.DatabaseHealthChecker(func() error {
				ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
				defer cancel()
				return db.Ping(ctx)
			}),
		}
		if redisClient != nil {
			checks["redis"] = httpserver.RedisHealthChecker(func() error {
				ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
				defer cancel()
				return redisClient.Ping(ctx).Err()
			})
		}

		httpserver.RegisterHealthRoutes(router, httpserver.HealthOptions{
			ServiceName:    cfg.Service.Name,
			ServiceVersion: cfg.Service.Version,
			Checks:         checks,
		})
	})

	return server, nil
}
