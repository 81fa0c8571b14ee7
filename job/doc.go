// Package job defines the job entity, its lifecycle states, the
// append-only job log, and the persistence contracts both depend on.
//
// # Job Entity
//
// A [Job] represents a unit of asynchronous work tracked through a finite
// lifecycle. It embeds [jobcore.Entity] for timestamps, carries an opaque
// payload, and progresses through the state machine:
//
//	queued → processing → completed
//	queued → processing → queued (in-place retry while attempts remain)
//	queued → processing → failed
//	queued | processing → cancelled
//
// completed, failed, and cancelled are terminal: no further transition is
// ever applied to that row. Retrying a terminally failed job creates a
// brand-new row via the lifecycle manager; the original stays failed
// forever as an audit record.
//
// Fields of note:
//   - CorrelationID: stable caller-visible lookup key, unique, assigned
//     once at creation ("job_<epochMillis>_<random>")
//   - OwnerUserID: visibility scope enforced by the guard package
//   - Attempts / MaxAttempts: each start consumes one attempt
//   - EntityType / EntityID: optional link to an external resource
//
// # Job Log
//
// [LogEntry] rows form a per-job append-only event stream. There is no
// update or delete operation on the log, by contract.
//
// The actual work a job performs is opaque to this package: workers run
// out of process and report back through the lifecycle manager.
package job
