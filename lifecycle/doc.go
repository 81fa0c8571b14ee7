// Package lifecycle implements the job state machine.
//
// [Manager] owns every mutation of job rows: create, start, complete,
// fail, cancel, retry. Each transition is a conditional compare-and-set
// on the stored status, so two concurrent transitions on the same job
// cannot both succeed.
//
// Two retry mechanics exist and are deliberately distinct:
//
//   - In-place retry: [Manager.Fail] reverts the same row to queued when
//     attempts remain. Same ID, same correlation ID.
//   - Manual retry: [Manager.Retry] creates a brand-new job from a
//     terminally failed one. The original row is never mutated again; it
//     stays failed forever as an audit record.
//
// The Manager also appends a breadcrumb to the job's append-only log on
// every transition, so the event stream reconstructs the full history of
// a job without consulting server logs.
//
// Workers call Start, Complete, and Fail directly; they are trusted at
// this layer. End-user operations go through the guard package, which
// adds ownership scoping on top.
package lifecycle
