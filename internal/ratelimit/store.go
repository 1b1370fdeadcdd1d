// Package ratelimit provides a cross-process adaptive rate limiter for
// outbound calls to quota-limited services.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// State is the shared limiter state cooperating workers read and write.
// It is persisted with a short TTL so a crashed run self-heals instead of
// wedging future runs.
type State struct {
	// LastRequestAt is when the most recent request was admitted.
	LastRequestAt time.Time `json:"last_request_at"`
	// Multiplier scales the base interval; grows on throttling signals and
	// decays toward 1.0 on success.
	Multiplier float64 `json:"adaptive_multiplier"`
	// ThrottleCount is the total number of throttling signals observed.
	ThrottleCount int64 `json:"throttle_count"`
}

// normalize fills in the zero-value multiplier for freshly-created state.
func (s *State) normalize() {
	if s.Multiplier < 1.0 {
		s.Multiplier = 1.0
	}
}

// Store persists limiter state shared across workers. Implementations are
// best-effort: the read-delay-write sequence is a throttle, not a mutex, and
// rare overshoot under high concurrency is accepted by design of the callers.
type Store interface {
	// Load returns the current state, or a zero state if none exists.
	Load(ctx context.Context) (State, error)
	// Save persists the state with the given expiry.
	Save(ctx context.Context, state State, ttl time.Duration) error
}

// MemoryStore is an in-process Store used when no shared store is reachable.
// Cross-process coordination is lost in this mode; within one process it is
// fully consistent.
type MemoryStore struct {
	mu        sync.Mutex
	state     State
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the current state, resetting it if the TTL has lapsed.
func (m *MemoryStore) Load(_ context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.expiresAt.IsZero() && time.Now().After(m.expiresAt) {
		m.state = State{}
		m.expiresAt = time.Time{}
	}

	state := m.state
	state.normalize()
	return state, nil
}

// Save stores the state with the given expiry.
func (m *MemoryStore) Save(_ context.Context, state State, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = state
	if ttl > 0 {
		m.expiresAt = time.Now().Add(ttl)
	} else {
		m.expiresAt = time.Time{}
	}
	return nil
}
