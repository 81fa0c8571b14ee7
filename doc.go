// Package jobcore is the asynchronous job-tracking core of the platform.
// It provides a durable job lifecycle engine (queued, processing,
// completed, failed, cancelled) with retry semantics, an append-only
// per-job event log, ownership-scoped visibility, and a cron scheduler
// that hands due scheduled tasks off to the queue under an external
// capability gate.
//
// jobcore is a library, not a service. It performs no business logic:
// workers execute jobs out of process and report back exclusively through
// the lifecycle operations. The HTTP transport, the worker layer, and the
// capability registry are external collaborators.
//
// # Architecture
//
// jobcore follows a composable store pattern: each subsystem (job, cron)
// defines its own store interface and a single backend implements all of
// them. Two backends ship with the module: store/memory for tests and
// development, and store/postgres for production.
//
//	st := memory.New()
//	mgr := lifecycle.NewManager(st, st)
//	g := guard.New(mgr)
//
//	j, err := mgr.Create(ctx, "document_ingestion", payload)
//
// All entity IDs use TypeID: type-prefixed, K-sortable, UUIDv7-based
// identifiers. Jobs additionally carry a caller-visible correlation ID in
// the format "job_<epochMillis>_<random>" for lookup without knowing the
// internal ID.
package jobcore
