package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/voltgrid/jobcore"
	"github.com/voltgrid/jobcore/cron"
	"github.com/voltgrid/jobcore/id"
)

// taskColumns is the canonical column list for scheduled task queries.
const taskColumns = `
	id, cron_expression, organization_id, created_by, capability_id,
	job_type, payload, is_active, is_paused,
	last_run_at, last_run_status, last_run_error,
	consecutive_failures, total_runs,
	created_at, updated_at`

// CreateTask persists a new scheduled task.
func (s *Store) CreateTask(ctx context.Context, t *cron.Task) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobcore_scheduled_tasks (
			id, cron_expression, organization_id, created_by, capability_id,
			job_type, payload, is_active, is_paused,
			last_run_at, last_run_status, last_run_error,
			consecutive_failures, total_runs,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12,
			$13, $14,
			$15, $16
		)`,
		t.ID.String(), t.CronExpression, t.OrganizationID, t.CreatedBy, t.CapabilityID,
		t.JobType, t.Payload, t.IsActive, t.IsPaused,
		t.LastRunAt, string(t.LastRunStatus), t.LastRunError,
		t.ConsecutiveFailures, t.TotalRuns,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return jobcore.ErrTaskAlreadyExists
		}
		return fmt.Errorf("jobcore/postgres: create task: %w", err)
	}
	return nil
}

// GetTask retrieves a scheduled task by ID.
func (s *Store) GetTask(ctx context.Context, taskID id.ScheduleID) (*cron.Task, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT`+taskColumns+` FROM jobcore_scheduled_tasks WHERE id = $1`,
		taskID.String(),
	)

	t, err := scanTask(row)
	if err != nil {
		if isNoRows(err) {
			return nil, jobcore.ErrTaskNotFound
		}
		return nil, fmt.Errorf("jobcore/postgres: get task: %w", err)
	}
	return t, nil
}

// ListRunnableTasks returns active, unpaused tasks in creation order.
func (s *Store) ListRunnableTasks(ctx context.Context) ([]*cron.Task, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT`+taskColumns+` FROM jobcore_scheduled_tasks
		WHERE is_active AND NOT is_paused
		ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("jobcore/postgres: list runnable tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*cron.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("jobcore/postgres: scan task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("jobcore/postgres: iterate task rows: %w", err)
	}
	return tasks, nil
}

// UpdateTaskRun persists the run-bookkeeping fields of a task. All other
// columns belong to the external task editor and are not written here.
func (s *Store) UpdateTaskRun(ctx context.Context, t *cron.Task) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobcore_scheduled_tasks SET
			last_run_at = $2, last_run_status = $3, last_run_error = $4,
			consecutive_failures = $5, total_runs = $6, is_paused = $7,
			updated_at = NOW()
		WHERE id = $1`,
		t.ID.String(),
		t.LastRunAt, string(t.LastRunStatus), t.LastRunError,
		t.ConsecutiveFailures, t.TotalRuns, t.IsPaused,
	)
	if err != nil {
		return fmt.Errorf("jobcore/postgres: update task run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return jobcore.ErrTaskNotFound
	}
	return nil
}

// scanTask scans a single scheduled task row.
func scanTask(row pgx.Row) (*cron.Task, error) {
	var (
		t         cron.Task
		idStr     string
		statusStr string
	)
	err := row.Scan(
		&idStr, &t.CronExpression, &t.OrganizationID, &t.CreatedBy, &t.CapabilityID,
		&t.JobType, &t.Payload, &t.IsActive, &t.IsPaused,
		&t.LastRunAt, &statusStr, &t.LastRunError,
		&t.ConsecutiveFailures, &t.TotalRuns,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.LastRunStatus = cron.RunStatus(statusStr)

	parsedID, parseErr := id.ParseScheduleID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("jobcore/postgres: parse task id %q: %w", idStr, parseErr)
	}
	t.ID = parsedID

	return &t, nil
}
