// Package guard wraps lifecycle reads and end-user mutations with
// ownership scoping.
//
// Non-admin callers only see and operate on jobs they own. A job that
// exists but belongs to someone else is reported exactly like a job that
// does not exist, so the error shape never leaks another user's jobs.
// Admin callers are unrestricted; the bulk listing surface additionally
// requires the admin role outright.
//
// Worker-side transitions (start, complete, fail) bypass this package:
// authorization of who may run workers is external.
package guard

import (
	"context"

	"github.com/voltgrid/jobcore"
	"github.com/voltgrid/jobcore/id"
	"github.com/voltgrid/jobcore/job"
	"github.com/voltgrid/jobcore/lifecycle"
	"github.com/voltgrid/jobcore/status"
)

// Identity is the caller identity supplied by the external identity and
// role provider. This package does not authenticate anyone itself.
type Identity struct {
	UserID string
	Admin  bool
}

// BulkRetryResult reports the outcome of a bulk retry. One job's failure
// does not abort processing of the remaining jobs.
type BulkRetryResult struct {
	Successful int `json:"successful"`
	Failed     int `json:"failed"`

	// Retried maps the original job ID to the new job created for it.
	Retried map[string]*job.Job `json:"-"`
	// Errors maps the original job ID to the failure reason.
	Errors map[string]string `json:"errors,omitempty"`
}

// Guard scopes lifecycle operations to a caller identity.
type Guard struct {
	mgr *lifecycle.Manager
}

// New creates a Guard over a lifecycle manager.
func New(mgr *lifecycle.Manager) *Guard {
	return &Guard{mgr: mgr}
}

// visible reports whether who may see j.
func (g *Guard) visible(j *job.Job, who Identity) bool {
	if who.Admin {
		return true
	}
	return j.OwnerUserID != "" && j.OwnerUserID == who.UserID
}

// GetStatus returns the public snapshot of a job. A job owned by someone
// else is reported as not found.
func (g *Guard) GetStatus(ctx context.Context, who Identity, jobID id.JobID) (*status.Snapshot, error) {
	j, err := g.mgr.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !g.visible(j, who) {
		return nil, jobcore.ErrJobNotFound
	}

	s := status.Project(j)
	return &s, nil
}

// GetByCorrelation returns the public snapshot of the job carrying the
// given correlation ID, subject to the same visibility rule as GetStatus.
func (g *Guard) GetByCorrelation(ctx context.Context, who Identity, correlationID string) (*status.Snapshot, error) {
	j, err := g.mgr.GetByCorrelation(ctx, correlationID)
	if err != nil {
		return nil, err
	}
	if !g.visible(j, who) {
		return nil, jobcore.ErrJobNotFound
	}

	s := status.Project(j)
	return &s, nil
}

// GetByEntity returns snapshots of the jobs linked to an external
// resource, filtered to those visible to the caller.
func (g *Guard) GetByEntity(ctx context.Context, who Identity, entityType, entityID string) ([]status.Snapshot, error) {
	jobs, err := g.mgr.GetByEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}

	out := make([]status.Snapshot, 0, len(jobs))
	for _, j := range jobs {
		if g.visible(j, who) {
			out = append(out, status.Project(j))
		}
	}
	return out, nil
}

// GetLogs returns a job's event stream, subject to the same visibility
// rule as GetStatus.
func (g *Guard) GetLogs(ctx context.Context, who Identity, jobID id.JobID) ([]*job.LogEntry, error) {
	j, err := g.mgr.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !g.visible(j, who) {
		return nil, jobcore.ErrJobNotFound
	}

	return g.mgr.Logs(ctx, jobID)
}

// UserJobs returns snapshots of the caller's own jobs. Storage is always
// pre-filtered by the caller's user ID; there is no way to list another
// user's jobs through this surface. A non-admin caller with no user ID
// owns nothing and sees nothing: an empty owner filter would otherwise
// mean "all owners" at the store.
func (g *Guard) UserJobs(ctx context.Context, who Identity, opts job.ListOpts) ([]status.Snapshot, error) {
	if !who.Admin && who.UserID == "" {
		return []status.Snapshot{}, nil
	}
	opts.OwnerUserID = who.UserID

	jobs, err := g.mgr.List(ctx, opts)
	if err != nil {
		return nil, err
	}

	out := make([]status.Snapshot, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, status.Project(j))
	}
	return out, nil
}

// AllJobs is the privileged listing surface. Non-admin callers are
// rejected with jobcore.ErrAdminRequired.
func (g *Guard) AllJobs(ctx context.Context, who Identity, opts job.ListOpts) ([]*job.Job, error) {
	if !who.Admin {
		return nil, jobcore.ErrAdminRequired
	}
	return g.mgr.List(ctx, opts)
}

// CountJobs is the privileged counting surface. Non-admin callers are
// rejected with jobcore.ErrAdminRequired.
func (g *Guard) CountJobs(ctx context.Context, who Identity, opts job.CountOpts) (int64, error) {
	if !who.Admin {
		return 0, jobcore.ErrAdminRequired
	}
	return g.mgr.Count(ctx, opts)
}

// Cancel cancels a job the caller may see. A job owned by someone else
// is reported as not found, identical to a missing job.
func (g *Guard) Cancel(ctx context.Context, who Identity, jobID id.JobID) (*job.Job, error) {
	j, err := g.mgr.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !g.visible(j, who) {
		return nil, jobcore.ErrJobNotFound
	}

	return g.mgr.Cancel(ctx, jobID)
}

// Retry creates a new job from a terminally failed one the caller may
// see. A job owned by someone else is reported as not found.
func (g *Guard) Retry(ctx context.Context, who Identity, jobID id.JobID) (*job.Job, error) {
	j, err := g.mgr.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !g.visible(j, who) {
		return nil, jobcore.ErrJobNotFound
	}

	return g.mgr.Retry(ctx, jobID)
}

// BulkRetry applies Retry to each job independently and reports counts.
// A wrong state or wrong owner on one job never aborts the rest.
func (g *Guard) BulkRetry(ctx context.Context, who Identity, jobIDs []id.JobID) BulkRetryResult {
	res := BulkRetryResult{
		Retried: make(map[string]*job.Job),
		Errors:  make(map[string]string),
	}

	for _, jobID := range jobIDs {
		retried, err := g.Retry(ctx, who, jobID)
		if err != nil {
			res.Failed++
			res.Errors[jobID.String()] = err.Error()
			continue
		}
		res.Successful++
		res.Retried[jobID.String()] = retried
	}

	return res
}
