package postgres

// schemaStatements are applied in order by Migrate. Each statement is
// idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS jobcore_jobs (
		id              TEXT PRIMARY KEY,
		type            TEXT NOT NULL,
		payload         BYTEA,
		status          TEXT NOT NULL DEFAULT 'queued',
		priority        TEXT NOT NULL DEFAULT 'normal',
		attempts        INTEGER NOT NULL DEFAULT 0,
		max_attempts    INTEGER NOT NULL DEFAULT 3,
		correlation_id  TEXT NOT NULL UNIQUE,
		owner_user_id   TEXT NOT NULL DEFAULT '',
		entity_type     TEXT NOT NULL DEFAULT '',
		entity_id       TEXT NOT NULL DEFAULT '',
		result          BYTEA,
		error           TEXT NOT NULL DEFAULT '',
		started_at      TIMESTAMPTZ,
		completed_at    TIMESTAMPTZ,
		failed_at       TIMESTAMPTZ,
		cancelled_at    TIMESTAMPTZ,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_jobcore_jobs_active
		ON jobcore_jobs (status, created_at ASC)
		WHERE status IN ('queued', 'processing')`,

	`CREATE INDEX IF NOT EXISTS idx_jobcore_jobs_owner
		ON jobcore_jobs (owner_user_id, created_at ASC)`,

	`CREATE INDEX IF NOT EXISTS idx_jobcore_jobs_entity
		ON jobcore_jobs (entity_type, entity_id)`,

	`CREATE TABLE IF NOT EXISTS jobcore_job_logs (
		id              TEXT PRIMARY KEY,
		job_id          TEXT NOT NULL REFERENCES jobcore_jobs(id) ON DELETE CASCADE,
		level           TEXT NOT NULL,
		message         TEXT NOT NULL,
		data            BYTEA,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_jobcore_job_logs_job
		ON jobcore_job_logs (job_id, created_at ASC)`,

	`CREATE TABLE IF NOT EXISTS jobcore_scheduled_tasks (
		id                   TEXT PRIMARY KEY,
		cron_expression      TEXT NOT NULL,
		organization_id      TEXT NOT NULL,
		created_by           TEXT NOT NULL,
		capability_id        TEXT NOT NULL,
		job_type             TEXT NOT NULL,
		payload              BYTEA,
		is_active            BOOLEAN NOT NULL DEFAULT TRUE,
		is_paused            BOOLEAN NOT NULL DEFAULT FALSE,
		last_run_at          TIMESTAMPTZ,
		last_run_status      TEXT NOT NULL DEFAULT '',
		last_run_error       TEXT NOT NULL DEFAULT '',
		consecutive_failures INTEGER NOT NULL DEFAULT 0,
		total_runs           BIGINT NOT NULL DEFAULT 0,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_jobcore_scheduled_tasks_runnable
		ON jobcore_scheduled_tasks (created_at ASC)
		WHERE is_active AND NOT is_paused`,
}
