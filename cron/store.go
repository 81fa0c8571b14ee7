package cron

import (
	"context"

	"github.com/voltgrid/jobcore/id"
)

// TaskStore defines the persistence contract for scheduled tasks.
type TaskStore interface {
	// CreateTask persists a new scheduled task. Returns
	// jobcore.ErrTaskAlreadyExists when the ID is taken.
	CreateTask(ctx context.Context, t *Task) error

	// GetTask retrieves a scheduled task by ID.
	GetTask(ctx context.Context, taskID id.ScheduleID) (*Task, error)

	// ListRunnableTasks returns all tasks with IsActive set and IsPaused
	// clear, in creation order.
	ListRunnableTasks(ctx context.Context) ([]*Task, error)

	// UpdateTaskRun persists the run-bookkeeping fields of a task
	// (LastRunAt, LastRunStatus, LastRunError, ConsecutiveFailures,
	// TotalRuns, IsPaused). All other fields are owned by the external
	// task editor and left untouched.
	UpdateTaskRun(ctx context.Context, t *Task) error
}
