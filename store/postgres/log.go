package postgres

import (
	"context"
	"fmt"

	"github.com/voltgrid/jobcore"
	"github.com/voltgrid/jobcore/id"
	"github.com/voltgrid/jobcore/job"
)

// AppendLog persists a new log entry. Pure append; the schema has no
// update or delete path for log rows.
func (s *Store) AppendLog(ctx context.Context, e *job.LogEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobcore_job_logs (id, job_id, level, message, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID.String(), e.JobID.String(), string(e.Level), e.Message, e.Data, e.CreatedAt,
	)
	if err != nil {
		// A foreign key violation means the job row is gone.
		if isForeignKeyViolation(err) {
			return jobcore.ErrJobNotFound
		}
		return fmt.Errorf("jobcore/postgres: append log: %w", err)
	}
	return nil
}

// ListLogs returns all log entries for a job in creation order.
func (s *Store) ListLogs(ctx context.Context, jobID id.JobID) ([]*job.LogEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, job_id, level, message, data, created_at
		FROM jobcore_job_logs
		WHERE job_id = $1
		ORDER BY created_at ASC, id ASC`,
		jobID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("jobcore/postgres: list logs: %w", err)
	}
	defer rows.Close()

	var entries []*job.LogEntry
	for rows.Next() {
		var (
			e        job.LogEntry
			idStr    string
			jobStr   string
			levelStr string
		)
		if err := rows.Scan(&idStr, &jobStr, &levelStr, &e.Message, &e.Data, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("jobcore/postgres: scan log row: %w", err)
		}

		parsedID, parseErr := id.ParseLogID(idStr)
		if parseErr != nil {
			return nil, fmt.Errorf("jobcore/postgres: parse log id %q: %w", idStr, parseErr)
		}
		e.ID = parsedID

		parsedJob, parseErr := id.ParseJobID(jobStr)
		if parseErr != nil {
			return nil, fmt.Errorf("jobcore/postgres: parse job id %q: %w", jobStr, parseErr)
		}
		e.JobID = parsedJob
		e.Level = job.Level(levelStr)

		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("jobcore/postgres: iterate log rows: %w", err)
	}
	return entries, nil
}
