package ratelimit

import (
	"context"
	"time"

	"github.com/jonesrussell/grant-matcher/internal/logger"
)

// Default tuning values.
const (
	// DefaultSafetyFactor keeps the aggregate rate under the nominal quota.
	DefaultSafetyFactor = 0.8
	// DefaultSpacingFactor widens the per-worker interval as concurrency grows.
	DefaultSpacingFactor = 0.5
	// DefaultMinInterval guards against pathological floods.
	DefaultMinInterval = 10 * time.Millisecond
	// DefaultMaxInterval guards against pathological stalls.
	DefaultMaxInterval = 3 * time.Second
	// DefaultDecayFactor shrinks the multiplier on each success.
	DefaultDecayFactor = 0.95
	// DefaultGrowthFactor grows the multiplier on each throttling signal.
	DefaultGrowthFactor = 1.5
	// DefaultMaxMultiplier caps adaptive backoff.
	DefaultMaxMultiplier = 5.0

	// ttlIntervals is how many effective intervals the shared state lives
	// for, so a dead process cannot block future runs indefinitely.
	ttlIntervals = 3

	secondsPerMinute = 60.0
)

// Config configures a Limiter.
type Config struct {
	// TargetPerMinute is the quota of the external service, in requests per
	// minute across all cooperating workers.
	TargetPerMinute float64
	// Concurrency is the number of workers sharing the quota in one run.
	Concurrency int
	// SafetyFactor scales the target down to leave headroom (0 < f <= 1).
	SafetyFactor float64
	// SpacingFactor controls how much extra spacing each additional worker adds.
	SpacingFactor float64
	// MinInterval and MaxInterval clamp the per-worker interval.
	MinInterval time.Duration
	MaxInterval time.Duration
	// DecayFactor and GrowthFactor drive the adaptive multiplier.
	DecayFactor  float64
	GrowthFactor float64
	// MaxMultiplier is the adaptive backoff ceiling.
	MaxMultiplier float64
}

// SetDefaults applies default values to unset fields.
func (c *Config) SetDefaults() {
	if c.TargetPerMinute <= 0 {
		c.TargetPerMinute = secondsPerMinute
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.SafetyFactor <= 0 || c.SafetyFactor > 1 {
		c.SafetyFactor = DefaultSafetyFactor
	}
	if c.SpacingFactor <= 0 {
		c.SpacingFactor = DefaultSpacingFactor
	}
	if c.MinInterval <= 0 {
		c.MinInterval = DefaultMinInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = DefaultMaxInterval
	}
	if c.DecayFactor <= 0 || c.DecayFactor >= 1 {
		c.DecayFactor = DefaultDecayFactor
	}
	if c.GrowthFactor <= 1 {
		c.GrowthFactor = DefaultGrowthFactor
	}
	if c.MaxMultiplier < 1 {
		c.MaxMultiplier = DefaultMaxMultiplier
	}
}

// Limiter gates outbound calls so the aggregate rate across cooperating
// workers stays under the external quota. State lives in an injected Store;
// with a RedisStore multiple processes coordinate, with a MemoryStore
// coordination is per-process only.
type Limiter struct {
	cfg      Config
	store    Store
	log      logger.Logger
	interval time.Duration
}

// New creates a Limiter with the given configuration and state store.
func New(cfg Config, store Store, log logger.Logger) *Limiter {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NewNop()
	}

	base := time.Duration(secondsPerMinute / (cfg.TargetPerMinute * cfg.SafetyFactor) * float64(time.Second))
	interval := time.Duration(float64(base) * (1 + float64(cfg.Concurrency-1)*cfg.SpacingFactor))
	if interval < cfg.MinInterval {
		interval = cfg.MinInterval
	}
	if interval > cfg.MaxInterval {
		interval = cfg.MaxInterval
	}

	return &Limiter{
		cfg:      cfg,
		store:    store,
		log:      log,
		interval: interval,
	}
}

// Interval returns the per-worker base interval before adaptive scaling.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// Acquire blocks until the caller may issue a request, honoring the shared
// last-request timestamp and the current adaptive multiplier. It returns an
// error only when ctx is cancelled; store failures degrade to logging so a
// flaky store never stalls a run.
func (l *Limiter) Acquire(ctx context.Context) error {
	state := l.loadState(ctx)

	effective := time.Duration(float64(l.interval) * state.Multiplier)
	if !state.LastRequestAt.IsZero() {
		wait := effective - time.Since(state.LastRequestAt)
		if wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	state.LastRequestAt = time.Now()
	l.saveState(ctx, state, ttlIntervals*effective)
	return nil
}

// ReportSuccess decays the adaptive multiplier toward 1.0.
func (l *Limiter) ReportSuccess(ctx context.Context) {
	state := l.loadState(ctx)

	state.Multiplier *= l.cfg.DecayFactor
	if state.Multiplier < 1.0 {
		state.Multiplier = 1.0
	}

	l.saveState(ctx, state, l.stateTTL(state))
}

// ReportThrottled grows the adaptive multiplier so subsequent Acquire calls
// wait longer. The retryAfter hint is recorded for visibility; the actual
// retry sleep is handled by the caller.
func (l *Limiter) ReportThrottled(ctx context.Context, retryAfter time.Duration) {
	state := l.loadState(ctx)

	state.Multiplier *= l.cfg.GrowthFactor
	if state.Multiplier > l.cfg.MaxMultiplier {
		state.Multiplier = l.cfg.MaxMultiplier
	}
	state.ThrottleCount++

	l.saveState(ctx, state, l.stateTTL(state))

	l.log.Warn("rate limit throttled, backing off",
		logger.Float64("multiplier", state.Multiplier),
		logger.Duration("retry_after_hint", retryAfter),
	)
}

// Snapshot returns the current shared state for observability and tests.
func (l *Limiter) Snapshot(ctx context.Context) (State, error) {
	return l.store.Load(ctx)
}

func (l *Limiter) stateTTL(state State) time.Duration {
	return ttlIntervals * time.Duration(float64(l.interval)*state.Multiplier)
}

func (l *Limiter) loadState(ctx context.Context) State {
	state, err := l.store.Load(ctx)
	if err != nil {
		l.log.Warn("rate limiter store unavailable, proceeding without shared state",
			logger.Error(err),
		)
		state = State{Multiplier: 1.0}
	}
	return state
}

func (l *Limiter) saveState(ctx context.Context, state State, ttl time.Duration) {
	if err := l.store.Save(ctx, state, ttl); err != nil {
		l.log.Warn("failed to persist rate limiter state",
			logger.Error(err),
		)
	}
}
