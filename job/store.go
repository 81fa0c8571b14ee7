package job

import (
	"context"

	"github.com/voltgrid/jobcore/id"
)

// ListOpts controls filtering and pagination for job list queries.
type ListOpts struct {
	// Status filters by lifecycle state. Empty means all states.
	Status Status
	// Type filters by job type. Empty means all types.
	Type string
	// Priority filters by priority. Empty means all priorities.
	Priority Priority
	// OwnerUserID filters by owning user. Empty means all owners.
	OwnerUserID string
	// Limit is the maximum number of jobs to return. Zero means no limit.
	Limit int
	// Offset is the number of jobs to skip.
	Offset int
}

// CountOpts controls filtering for job count queries.
type CountOpts struct {
	// Status filters by lifecycle state. Empty means all states.
	Status Status
	// Type filters by job type. Empty means all types.
	Type string
}

// Store defines the persistence contract for jobs. All mutation flows
// through the lifecycle manager's typed operations; no caller writes job
// fields directly.
type Store interface {
	// CreateJob persists a new job in queued state. Returns
	// jobcore.ErrDuplicateCorrelation when the correlation ID is taken.
	CreateJob(ctx context.Context, j *Job) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// GetJobByCorrelation retrieves a job by its correlation ID.
	GetJobByCorrelation(ctx context.Context, correlationID string) (*Job, error)

	// GetJobsByEntity returns jobs linked to an external resource,
	// newest first.
	GetJobsByEntity(ctx context.Context, entityType, entityID string) ([]*Job, error)

	// ListJobs returns jobs matching the given options, oldest first.
	ListJobs(ctx context.Context, opts ListOpts) ([]*Job, error)

	// CountJobs returns the number of jobs matching the given options.
	CountJobs(ctx context.Context, opts CountOpts) (int64, error)

	// UpdateJobIf persists j only if the stored row's status still equals
	// expect (compare-and-set). Returns jobcore.ErrInvalidTransition when
	// the stored status has moved on, so two concurrent transitions on
	// the same job cannot both succeed.
	UpdateJobIf(ctx context.Context, j *Job, expect Status) error

	// CreateRetry atomically verifies the original job is still in
	// failed state and inserts retry as a new queued row. The original
	// row is never mutated. Returns jobcore.ErrNotFailed when the
	// original has any other status.
	CreateRetry(ctx context.Context, originalID id.JobID, retry *Job) error
}

// LogStore defines the persistence contract for the append-only job log.
type LogStore interface {
	// AppendLog persists a new log entry. Pure append; entries are
	// immutable once written.
	AppendLog(ctx context.Context, e *LogEntry) error

	// ListLogs returns all log entries for a job in creation order.
	ListLogs(ctx context.Context, jobID id.JobID) ([]*LogEntry, error)
}
