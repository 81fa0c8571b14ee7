package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/voltgrid/jobcore"
	"github.com/voltgrid/jobcore/id"
	"github.com/voltgrid/jobcore/job"
)

// jobColumns is the canonical column list for job queries.
const jobColumns = `
	id, type, payload, status, priority, attempts, max_attempts,
	correlation_id, owner_user_id, entity_type, entity_id,
	result, error,
	started_at, completed_at, failed_at, cancelled_at,
	created_at, updated_at`

// CreateJob persists a new job in queued state.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobcore_jobs (
			id, type, payload, status, priority, attempts, max_attempts,
			correlation_id, owner_user_id, entity_type, entity_id,
			result, error,
			started_at, completed_at, failed_at, cancelled_at,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11,
			$12, $13,
			$14, $15, $16, $17,
			$18, $19
		)`,
		j.ID.String(), j.Type, j.Payload, string(j.Status), string(j.Priority),
		j.Attempts, j.MaxAttempts,
		j.CorrelationID, j.OwnerUserID, j.EntityType, j.EntityID,
		j.Result, j.Error,
		j.StartedAt, j.CompletedAt, j.FailedAt, j.CancelledAt,
		j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && strings.Contains(pgErr.ConstraintName, "correlation") {
				return jobcore.ErrDuplicateCorrelation
			}
			return jobcore.ErrJobAlreadyExists
		}
		return fmt.Errorf("jobcore/postgres: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT`+jobColumns+` FROM jobcore_jobs WHERE id = $1`,
		jobID.String(),
	)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, jobcore.ErrJobNotFound
		}
		return nil, fmt.Errorf("jobcore/postgres: get job: %w", err)
	}
	return j, nil
}

// GetJobByCorrelation retrieves a job by its correlation ID.
func (s *Store) GetJobByCorrelation(ctx context.Context, correlationID string) (*job.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT`+jobColumns+` FROM jobcore_jobs WHERE correlation_id = $1`,
		correlationID,
	)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, jobcore.ErrJobNotFound
		}
		return nil, fmt.Errorf("jobcore/postgres: get job by correlation: %w", err)
	}
	return j, nil
}

// GetJobsByEntity returns jobs linked to an external resource, newest first.
func (s *Store) GetJobsByEntity(ctx context.Context, entityType, entityID string) ([]*job.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT`+jobColumns+` FROM jobcore_jobs
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC`,
		entityType, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("jobcore/postgres: get jobs by entity: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListJobs returns jobs matching the given options, oldest first.
func (s *Store) ListJobs(ctx context.Context, opts job.ListOpts) ([]*job.Job, error) {
	query := `SELECT` + jobColumns + ` FROM jobcore_jobs WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(opts.Status))
		argIdx++
	}
	if opts.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", argIdx)
		args = append(args, opts.Type)
		argIdx++
	}
	if opts.Priority != "" {
		query += fmt.Sprintf(" AND priority = $%d", argIdx)
		args = append(args, string(opts.Priority))
		argIdx++
	}
	if opts.OwnerUserID != "" {
		query += fmt.Sprintf(" AND owner_user_id = $%d", argIdx)
		args = append(args, opts.OwnerUserID)
		argIdx++
	}

	query += " ORDER BY created_at ASC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("jobcore/postgres: list jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// CountJobs returns the number of jobs matching the given options.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	query := `SELECT COUNT(*) FROM jobcore_jobs WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(opts.Status))
		argIdx++
	}
	if opts.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", argIdx)
		args = append(args, opts.Type)
	}

	var count int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("jobcore/postgres: count jobs: %w", err)
	}
	return count, nil
}

// UpdateJobIf persists j only if the stored row's status still equals
// expect. The conditional UPDATE gives compare-and-set semantics: of two
// concurrent transitions on the same job, exactly one matches the
// expected status.
func (s *Store) UpdateJobIf(ctx context.Context, j *job.Job, expect job.Status) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobcore_jobs SET
			payload = $3, status = $4, priority = $5,
			attempts = $6, max_attempts = $7,
			result = $8, error = $9,
			started_at = $10, completed_at = $11,
			failed_at = $12, cancelled_at = $13,
			updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		j.ID.String(), string(expect),
		j.Payload, string(j.Status), string(j.Priority),
		j.Attempts, j.MaxAttempts,
		j.Result, j.Error,
		j.StartedAt, j.CompletedAt,
		j.FailedAt, j.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("jobcore/postgres: update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the row is gone or another transition won the race.
		var exists bool
		checkErr := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM jobcore_jobs WHERE id = $1)`,
			j.ID.String(),
		).Scan(&exists)
		if checkErr != nil {
			return fmt.Errorf("jobcore/postgres: update job: %w", checkErr)
		}
		if !exists {
			return jobcore.ErrJobNotFound
		}
		return jobcore.ErrInvalidTransition
	}
	return nil
}

// CreateRetry atomically verifies the original job is still failed and
// inserts retry as a new queued row, inside one transaction. The
// original row is never written.
func (s *Store) CreateRetry(ctx context.Context, originalID id.JobID, retry *job.Job) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("jobcore/postgres: begin retry tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var status string
	err = tx.QueryRow(ctx,
		`SELECT status FROM jobcore_jobs WHERE id = $1 FOR UPDATE`,
		originalID.String(),
	).Scan(&status)
	if err != nil {
		if isNoRows(err) {
			return jobcore.ErrJobNotFound
		}
		return fmt.Errorf("jobcore/postgres: lock original job: %w", err)
	}
	if job.Status(status) != job.StatusFailed {
		return jobcore.ErrNotFailed
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO jobcore_jobs (
			id, type, payload, status, priority, attempts, max_attempts,
			correlation_id, owner_user_id, entity_type, entity_id,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11,
			$12, $13
		)`,
		retry.ID.String(), retry.Type, retry.Payload,
		string(retry.Status), string(retry.Priority),
		retry.Attempts, retry.MaxAttempts,
		retry.CorrelationID, retry.OwnerUserID, retry.EntityType, retry.EntityID,
		retry.CreatedAt, retry.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return jobcore.ErrJobAlreadyExists
		}
		return fmt.Errorf("jobcore/postgres: insert retry job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("jobcore/postgres: commit retry tx: %w", err)
	}
	return nil
}

// scanJob scans a single job row.
func scanJob(row pgx.Row) (*job.Job, error) {
	var (
		j           job.Job
		idStr       string
		statusStr   string
		priorityStr string
	)
	err := row.Scan(
		&idStr, &j.Type, &j.Payload, &statusStr, &priorityStr,
		&j.Attempts, &j.MaxAttempts,
		&j.CorrelationID, &j.OwnerUserID, &j.EntityType, &j.EntityID,
		&j.Result, &j.Error,
		&j.StartedAt, &j.CompletedAt, &j.FailedAt, &j.CancelledAt,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.Status = job.Status(statusStr)
	j.Priority = job.Priority(priorityStr)

	parsedID, parseErr := id.ParseJobID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("jobcore/postgres: parse job id %q: %w", idStr, parseErr)
	}
	j.ID = parsedID

	return &j, nil
}

// collectJobs collects all jobs from query rows.
func collectJobs(rows pgx.Rows) ([]*job.Job, error) {
	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("jobcore/postgres: scan job row: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("jobcore/postgres: iterate job rows: %w", err)
	}
	return jobs, nil
}
