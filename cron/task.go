package cron

import (
	"time"

	"github.com/voltgrid/jobcore"
	"github.com/voltgrid/jobcore/id"
)

// RunStatus records the outcome of a task's most recent handoff attempt.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// Task represents a cron-triggered job definition. Tasks are created and
// edited externally; the scheduler reads them and writes only the run
// bookkeeping fields.
type Task struct {
	jobcore.Entity

	ID             id.ScheduleID `json:"id"`
	CronExpression string        `json:"cron_expression"`
	OrganizationID string        `json:"organization_id"`
	CreatedBy      string        `json:"created_by"`
	CapabilityID   string        `json:"capability_id"`
	JobType        string        `json:"job_type"`
	Payload        []byte        `json:"payload,omitempty"`
	IsActive       bool          `json:"is_active"`
	IsPaused       bool          `json:"is_paused"`

	// Run bookkeeping, owned by the scheduler.
	LastRunAt           *time.Time `json:"last_run_at,omitempty"`
	LastRunStatus       RunStatus  `json:"last_run_status,omitempty"`
	LastRunError        string     `json:"last_run_error,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	TotalRuns           int64      `json:"total_runs"`
}
