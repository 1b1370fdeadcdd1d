package api

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/grant-matcher/internal/matcher"
)

// RunStatus is the lifecycle state of a background matching run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Run tracks one background matching run.
type Run struct {
	ID        string             `json:"id"`
	Status    RunStatus          `json:"status"`
	Completed int                `json:"completed"`
	Total     int                `json:"total"`
	StartedAt time.Time          `json:"started_at"`
	EndedAt   *time.Time         `json:"ended_at,omitempty"`
	Error     string             `json:"error,omitempty"`
	Report    *matcher.RunReport `json:"report,omitempty"`

	mu        sync.Mutex
	cancelled bool
}

// snapshot returns a copy safe to serialize while the run mutates.
func (r *Run) snapshot() Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Run{
		ID:        r.ID,
		Status:    r.Status,
		Completed: r.Completed,
		Total:     r.Total,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
		Error:     r.Error,
		Report:    r.Report,
	}
}

func (r *Run) isCancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

func (r *Run) progress(completed, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Completed = completed
	r.Total = total
}

func (r *Run) finish(status RunStatus, report *matcher.RunReport, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	r.Status = status
	r.EndedAt = &now
	r.Report = report
	if err != nil {
		r.Error = err.Error()
	}
}

// RunManager tracks background matching runs by id.
type RunManager struct {
	mu   sync.Mutex
	runs map[string]*Run
}

// NewRunManager creates an empty manager.
func NewRunManager() *RunManager {
	return &RunManager{runs: make(map[string]*Run)}
}

// Create registers a new running entry and returns it.
func (m *RunManager) Create() *Run {
	run := &Run{
		ID:        uuid.NewString(),
		Status:    RunRunning,
		StartedAt: time.Now().UTC(),
	}
	m.mu.Lock()
	m.runs[run.ID] = run
	m.mu.Unlock()
	return run
}

// Get returns the run with the given id.
func (m *RunManager) Get(id string) (*Run, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	return run, ok
}

// Cancel marks a running run as cancelled. Reports whether the run existed
// and was still running.
func (m *RunManager) Cancel(id string) bool {
	run, ok := m.Get(id)
	if !ok {
		return false
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	if run.Status != RunRunning {
		return false
	}
	run.cancelled = true
	return true
}
