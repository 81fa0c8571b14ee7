package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/voltgrid/jobcore"
	"github.com/voltgrid/jobcore/id"
	"github.com/voltgrid/jobcore/job"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// Manager applies lifecycle transitions to jobs. All mutation of job
// rows goes through its typed operations.
type Manager struct {
	jobs   job.Store
	logs   job.LogStore
	logger *slog.Logger
}

// NewManager creates a Manager over the given stores.
func NewManager(jobs job.Store, logs job.LogStore, opts ...Option) *Manager {
	m := &Manager{
		jobs:   jobs,
		logs:   logs,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create enqueues a new job. Defaults: priority normal, three attempts,
// status queued. A correlation ID in the format
// "job_<epochMillis>_<random>" is generated when the caller does not
// supply one.
func (m *Manager) Create(ctx context.Context, jobType string, payload []byte, opts ...job.Option) (*job.Job, error) {
	if jobType == "" {
		return nil, fmt.Errorf("lifecycle: create: empty job type")
	}

	o := job.DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	now := time.Now().UTC()
	cid := o.CorrelationID
	if cid == "" {
		cid = job.NewCorrelationID(now)
	}

	j := &job.Job{
		Entity:        jobcore.NewEntity(),
		ID:            id.NewJobID(),
		Type:          jobType,
		Payload:       payload,
		Status:        job.StatusQueued,
		Priority:      o.Priority,
		Attempts:      0,
		MaxAttempts:   o.MaxAttempts,
		CorrelationID: cid,
		OwnerUserID:   o.OwnerUserID,
		EntityType:    o.EntityType,
		EntityID:      o.EntityID,
	}

	if err := m.jobs.CreateJob(ctx, j); err != nil {
		return nil, err
	}

	m.breadcrumb(ctx, j.ID, job.LevelInfo, fmt.Sprintf("job created (type %s)", jobType))
	m.logger.Info("job created",
		slog.String("job_id", j.ID.String()),
		slog.String("type", jobType),
		slog.String("correlation_id", cid),
	)
	return j, nil
}

// Get retrieves a job by ID.
func (m *Manager) Get(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return m.jobs.GetJob(ctx, jobID)
}

// GetByCorrelation retrieves a job by its correlation ID.
func (m *Manager) GetByCorrelation(ctx context.Context, correlationID string) (*job.Job, error) {
	return m.jobs.GetJobByCorrelation(ctx, correlationID)
}

// GetByEntity returns jobs linked to an external resource, newest first.
func (m *Manager) GetByEntity(ctx context.Context, entityType, entityID string) ([]*job.Job, error) {
	return m.jobs.GetJobsByEntity(ctx, entityType, entityID)
}

// List returns jobs matching the given options.
func (m *Manager) List(ctx context.Context, opts job.ListOpts) ([]*job.Job, error) {
	return m.jobs.ListJobs(ctx, opts)
}

// Count returns the number of jobs matching the given options.
func (m *Manager) Count(ctx context.Context, opts job.CountOpts) (int64, error) {
	return m.jobs.CountJobs(ctx, opts)
}

// Start transitions a job from queued to processing and consumes one
// attempt. Every start, including a restart after an in-place retry,
// increments the attempt count by exactly one.
func (m *Manager) Start(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	j, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.Status != job.StatusQueued {
		return nil, fmt.Errorf("%w: cannot start job in %q state", jobcore.ErrInvalidTransition, j.Status)
	}

	now := time.Now().UTC()
	j.Status = job.StatusProcessing
	j.StartedAt = &now
	j.Attempts++

	if err := m.jobs.UpdateJobIf(ctx, j, job.StatusQueued); err != nil {
		return nil, err
	}

	m.breadcrumb(ctx, j.ID, job.LevelInfo,
		fmt.Sprintf("processing started (attempt %d/%d)", j.Attempts, j.MaxAttempts))
	return j, nil
}

// Complete transitions a job from processing to completed, storing the
// worker-supplied result verbatim.
func (m *Manager) Complete(ctx context.Context, jobID id.JobID, result []byte) (*job.Job, error) {
	j, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.Status != job.StatusProcessing {
		return nil, fmt.Errorf("%w: cannot complete job in %q state", jobcore.ErrInvalidTransition, j.Status)
	}

	now := time.Now().UTC()
	j.Status = job.StatusCompleted
	j.CompletedAt = &now
	j.Result = result

	if err := m.jobs.UpdateJobIf(ctx, j, job.StatusProcessing); err != nil {
		return nil, err
	}

	m.breadcrumb(ctx, j.ID, job.LevelInfo, "job completed")
	m.logger.Info("job completed", slog.String("job_id", j.ID.String()))
	return j, nil
}

// Fail records a worker-reported failure. While attempts remain below
// the budget the job reverts to queued on the same row (in-place retry)
// and Fail returns true. Once the budget is exhausted the job becomes
// terminally failed and Fail returns false; from there only the manual
// Retry path applies.
func (m *Manager) Fail(ctx context.Context, jobID id.JobID, errorMessage string) (bool, error) {
	j, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	if j.Status != job.StatusProcessing {
		return false, fmt.Errorf("%w: cannot fail job in %q state", jobcore.ErrInvalidTransition, j.Status)
	}

	j.Error = errorMessage

	if j.Attempts < j.MaxAttempts {
		j.Status = job.StatusQueued
		if err := m.jobs.UpdateJobIf(ctx, j, job.StatusProcessing); err != nil {
			return false, err
		}
		m.breadcrumb(ctx, j.ID, job.LevelWarn,
			fmt.Sprintf("attempt %d/%d failed, requeued: %s", j.Attempts, j.MaxAttempts, errorMessage))
		m.logger.Warn("job requeued after failure",
			slog.String("job_id", j.ID.String()),
			slog.Int("attempts", j.Attempts),
			slog.Int("max_attempts", j.MaxAttempts),
		)
		return true, nil
	}

	now := time.Now().UTC()
	j.Status = job.StatusFailed
	j.FailedAt = &now
	if err := m.jobs.UpdateJobIf(ctx, j, job.StatusProcessing); err != nil {
		return false, err
	}

	m.breadcrumb(ctx, j.ID, job.LevelError,
		fmt.Sprintf("job failed after %d attempts: %s", j.Attempts, errorMessage))
	m.logger.Error("job failed",
		slog.String("job_id", j.ID.String()),
		slog.Int("attempts", j.Attempts),
		slog.String("error", errorMessage),
	)
	return false, nil
}

// Cancel transitions a job from queued or processing to cancelled.
// Cancellation is metadata-only: a worker already executing the job is
// expected to poll job status and stop itself; nothing here interrupts
// it. Cancelled jobs are strictly terminal and do not participate in
// attempt accounting.
func (m *Manager) Cancel(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	j, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.Status != job.StatusQueued && j.Status != job.StatusProcessing {
		return nil, fmt.Errorf("%w: cannot cancel job in %q state", jobcore.ErrInvalidTransition, j.Status)
	}

	from := j.Status
	now := time.Now().UTC()
	j.Status = job.StatusCancelled
	j.CancelledAt = &now

	if err := m.jobs.UpdateJobIf(ctx, j, from); err != nil {
		return nil, err
	}

	m.breadcrumb(ctx, j.ID, job.LevelInfo, "job cancelled")
	return j, nil
}

// Retry creates a brand-new job from a terminally failed one: fresh ID
// and correlation ID, attempts reset to zero, same type, payload and
// budget. The original row is left untouched at failed, preserving the
// audit trail. The read-as-failed check and the insert are a single
// atomic unit in the store.
func (m *Manager) Retry(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	orig, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if orig.Status != job.StatusFailed {
		return nil, fmt.Errorf("%w: job %s is %q", jobcore.ErrNotFailed, jobID, orig.Status)
	}

	now := time.Now().UTC()
	retry := &job.Job{
		Entity:        jobcore.NewEntity(),
		ID:            id.NewJobID(),
		Type:          orig.Type,
		Payload:       orig.Payload,
		Status:        job.StatusQueued,
		Priority:      orig.Priority,
		Attempts:      0,
		MaxAttempts:   orig.MaxAttempts,
		CorrelationID: job.NewCorrelationID(now),
		OwnerUserID:   orig.OwnerUserID,
		EntityType:    orig.EntityType,
		EntityID:      orig.EntityID,
	}

	if err := m.jobs.CreateRetry(ctx, orig.ID, retry); err != nil {
		return nil, err
	}

	m.breadcrumb(ctx, orig.ID, job.LevelInfo,
		fmt.Sprintf("manual retry created job %s", retry.ID))
	m.breadcrumb(ctx, retry.ID, job.LevelInfo,
		fmt.Sprintf("created by manual retry of job %s", orig.ID))
	m.logger.Info("job retried",
		slog.String("job_id", orig.ID.String()),
		slog.String("retry_job_id", retry.ID.String()),
	)
	return retry, nil
}

// Log appends an entry to a job's event stream. The job must exist.
func (m *Manager) Log(ctx context.Context, jobID id.JobID, level job.Level, message string, data []byte) error {
	if _, err := m.jobs.GetJob(ctx, jobID); err != nil {
		return err
	}

	return m.logs.AppendLog(ctx, &job.LogEntry{
		ID:        id.NewLogID(),
		JobID:     jobID,
		Level:     level,
		Message:   message,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	})
}

// Logs returns a job's event stream in creation order.
func (m *Manager) Logs(ctx context.Context, jobID id.JobID) ([]*job.LogEntry, error) {
	if _, err := m.jobs.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return m.logs.ListLogs(ctx, jobID)
}

// breadcrumb appends a lifecycle transition entry to the job log.
// Breadcrumb failures are logged and swallowed: the transition itself
// has already been persisted and must not be reported as failed.
func (m *Manager) breadcrumb(ctx context.Context, jobID id.JobID, level job.Level, message string) {
	err := m.logs.AppendLog(ctx, &job.LogEntry{
		ID:        id.NewLogID(),
		JobID:     jobID,
		Level:     level,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		m.logger.Warn("append job log",
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()),
		)
	}
}
