// Package cron provides the periodic scheduler that hands scheduled tasks
// off to the job queue.
//
// # Task
//
// A [Task] represents a recurring, capability-gated job trigger:
//   - CronExpression: standard 5-field cron expression (e.g., "0 9 * * 1-5")
//   - JobType / Payload: what gets enqueued when the task is due
//   - OrganizationID / CreatedBy / CapabilityID: the triple presented to
//     the external capability registry before every handoff
//   - IsActive / IsPaused: only active, unpaused tasks are scanned
//   - run bookkeeping: LastRunAt, LastRunStatus, LastRunError,
//     ConsecutiveFailures, TotalRuns
//
// Tasks are created and edited by an external collaborator; the scheduler
// only ever updates the run-bookkeeping fields.
//
// # Scheduler
//
// The [Scheduler] owns a single timer. Each tick scans all runnable tasks
// sequentially: it matches the cron expression against the current time,
// debounces tasks that fired within the last tick interval, checks the
// capability gate, and enqueues through the injected callback. One task's
// failure never aborts the scan; a task that fails five handoffs in a row
// is auto-paused and requires manual re-enabling.
//
// Ticks never overlap: a tick that overruns its interval simply delays
// the next one.
package cron
