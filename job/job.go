package job

import (
	"time"

	"github.com/voltgrid/jobcore"
	"github.com/voltgrid/jobcore/id"
)

// Status represents the lifecycle state of a job.
type Status string

const (
	// StatusQueued means the job is waiting to be picked up by a worker.
	StatusQueued Status = "queued"
	// StatusProcessing means a worker is currently executing the job.
	StatusProcessing Status = "processing"
	// StatusCompleted means the job finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed means the job exhausted its attempt budget.
	StatusFailed Status = "failed"
	// StatusCancelled means the job was explicitly cancelled.
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is a terminal state. No transition is ever
// applied to a job in a terminal state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Priority orders jobs within the queue.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Job represents a unit of work executed by an out-of-process worker.
// The Type and Payload fields are opaque to this core: it tracks that
// work happened, not how.
type Job struct {
	jobcore.Entity

	ID            id.JobID   `json:"id"`
	Type          string     `json:"type"`
	Payload       []byte     `json:"payload,omitempty"`
	Status        Status     `json:"status"`
	Priority      Priority   `json:"priority"`
	Attempts      int        `json:"attempts"`
	MaxAttempts   int        `json:"max_attempts"`
	CorrelationID string     `json:"correlation_id"`
	OwnerUserID   string     `json:"owner_user_id,omitempty"`
	EntityType    string     `json:"entity_type,omitempty"`
	EntityID      string     `json:"entity_id,omitempty"`
	Result        []byte     `json:"result,omitempty"`
	Error         string     `json:"error,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	FailedAt      *time.Time `json:"failed_at,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
}
