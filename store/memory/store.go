package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/voltgrid/jobcore"
	"github.com/voltgrid/jobcore/cron"
	"github.com/voltgrid/jobcore/id"
	"github.com/voltgrid/jobcore/job"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ job.Store      = (*Store)(nil)
	_ job.LogStore   = (*Store)(nil)
	_ cron.TaskStore = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
type Store struct {
	mu sync.RWMutex

	jobs  map[string]*job.Job
	logs  map[string][]*job.LogEntry // key: job ID
	tasks map[string]*cron.Task

	// byCorrelation indexes jobs by correlation ID.
	byCorrelation map[string]string
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs:          make(map[string]*job.Job),
		logs:          make(map[string][]*job.LogEntry),
		tasks:         make(map[string]*cron.Task),
		byCorrelation: make(map[string]string),
	}
}

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Job Store
// ──────────────────────────────────────────────────

// CreateJob persists a new job in queued state.
func (m *Store) CreateJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.insertJobLocked(j)
}

// insertJobLocked adds a job copy under the held write lock.
func (m *Store) insertJobLocked(j *job.Job) error {
	key := j.ID.String()
	if _, exists := m.jobs[key]; exists {
		return jobcore.ErrJobAlreadyExists
	}
	if j.CorrelationID != "" {
		if _, taken := m.byCorrelation[j.CorrelationID]; taken {
			return jobcore.ErrDuplicateCorrelation
		}
	}

	cp := *j
	m.jobs[key] = &cp
	if j.CorrelationID != "" {
		m.byCorrelation[j.CorrelationID] = key
	}
	return nil
}

// GetJob retrieves a job by ID.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, jobcore.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

// GetJobByCorrelation retrieves a job by its correlation ID.
func (m *Store) GetJobByCorrelation(_ context.Context, correlationID string) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key, ok := m.byCorrelation[correlationID]
	if !ok {
		return nil, jobcore.ErrJobNotFound
	}
	cp := *m.jobs[key]
	return &cp, nil
}

// GetJobsByEntity returns jobs linked to an external resource, newest first.
func (m *Store) GetJobsByEntity(_ context.Context, entityType, entityID string) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*job.Job
	for _, j := range m.jobs {
		if j.EntityType != entityType || j.EntityID != entityID {
			continue
		}
		cp := *j
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.After(result[k].CreatedAt)
	})

	return result, nil
}

// ListJobs returns jobs matching the given options, oldest first.
func (m *Store) ListJobs(_ context.Context, opts job.ListOpts) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*job.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if opts.Status != "" && j.Status != opts.Status {
			continue
		}
		if opts.Type != "" && j.Type != opts.Type {
			continue
		}
		if opts.Priority != "" && j.Priority != opts.Priority {
			continue
		}
		if opts.OwnerUserID != "" && j.OwnerUserID != opts.OwnerUserID {
			continue
		}
		cp := *j
		result = append(result, &cp)
	}

	// Sort by CreatedAt for deterministic output.
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.Before(result[k].CreatedAt)
	})

	// Apply offset / limit.
	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// CountJobs returns the number of jobs matching the given options.
func (m *Store) CountJobs(_ context.Context, opts job.CountOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, j := range m.jobs {
		if opts.Status != "" && j.Status != opts.Status {
			continue
		}
		if opts.Type != "" && j.Type != opts.Type {
			continue
		}
		count++
	}
	return count, nil
}

// UpdateJobIf persists j only if the stored row's status still equals
// expect. The check and the write happen under one lock, giving the
// compare-and-set semantics concurrent transitions rely on.
func (m *Store) UpdateJobIf(_ context.Context, j *job.Job, expect job.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	current, ok := m.jobs[key]
	if !ok {
		return jobcore.ErrJobNotFound
	}
	if current.Status != expect {
		return jobcore.ErrInvalidTransition
	}

	cp := *j
	cp.UpdatedAt = time.Now().UTC()
	m.jobs[key] = &cp
	return nil
}

// CreateRetry atomically verifies the original job is still failed and
// inserts retry as a new queued row. The original row is not touched.
func (m *Store) CreateRetry(_ context.Context, originalID id.JobID, retry *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	orig, ok := m.jobs[originalID.String()]
	if !ok {
		return jobcore.ErrJobNotFound
	}
	if orig.Status != job.StatusFailed {
		return jobcore.ErrNotFailed
	}

	return m.insertJobLocked(retry)
}

// ──────────────────────────────────────────────────
// Log Store
// ──────────────────────────────────────────────────

// AppendLog persists a new log entry. Pure append.
func (m *Store) AppendLog(_ context.Context, e *job.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[e.JobID.String()]; !ok {
		return jobcore.ErrJobNotFound
	}

	cp := *e
	m.logs[e.JobID.String()] = append(m.logs[e.JobID.String()], &cp)
	return nil
}

// ListLogs returns all log entries for a job in creation order.
func (m *Store) ListLogs(_ context.Context, jobID id.JobID) ([]*job.LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.logs[jobID.String()]
	result := make([]*job.LogEntry, len(entries))
	for i, e := range entries {
		cp := *e
		result[i] = &cp
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Task Store
// ──────────────────────────────────────────────────

// CreateTask persists a new scheduled task.
func (m *Store) CreateTask(_ context.Context, t *cron.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := t.ID.String()
	if _, exists := m.tasks[key]; exists {
		return jobcore.ErrTaskAlreadyExists
	}

	cp := *t
	m.tasks[key] = &cp
	return nil
}

// GetTask retrieves a scheduled task by ID.
func (m *Store) GetTask(_ context.Context, taskID id.ScheduleID) (*cron.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[taskID.String()]
	if !ok {
		return nil, jobcore.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

// ListRunnableTasks returns active, unpaused tasks in creation order.
func (m *Store) ListRunnableTasks(_ context.Context) ([]*cron.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*cron.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		if !t.IsActive || t.IsPaused {
			continue
		}
		cp := *t
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.Before(result[k].CreatedAt)
	})

	return result, nil
}

// UpdateTaskRun persists the run-bookkeeping fields of a task.
func (m *Store) UpdateTaskRun(_ context.Context, t *cron.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.tasks[t.ID.String()]
	if !ok {
		return jobcore.ErrTaskNotFound
	}

	stored.LastRunAt = t.LastRunAt
	stored.LastRunStatus = t.LastRunStatus
	stored.LastRunError = t.LastRunError
	stored.ConsecutiveFailures = t.ConsecutiveFailures
	stored.TotalRuns = t.TotalRuns
	stored.IsPaused = t.IsPaused
	stored.UpdatedAt = time.Now().UTC()
	return nil
}
