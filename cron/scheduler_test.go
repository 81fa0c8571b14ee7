package cron_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/voltgrid/jobcore"
	"github.com/voltgrid/jobcore/cron"
	"github.com/voltgrid/jobcore/id"
	"github.com/voltgrid/jobcore/job"
	"github.com/voltgrid/jobcore/store/memory"
)

// fakeClock returns a fixed instant so that cron matching is
// deterministic regardless of when the test runs.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// allowAll is a capability registry that admits everything.
type allowAll struct{}

func (allowAll) Check(_ context.Context, _, _, _ string) error { return nil }

// denyAll is a capability registry that rejects everything.
type denyAll struct{}

func (denyAll) Check(_ context.Context, _, _, _ string) error {
	return errors.New("capability revoked")
}

// enqueueSpy tracks handoff calls with thread safety.
type enqueueSpy struct {
	mu    sync.Mutex
	calls []enqueueCall
	err   error
}

type enqueueCall struct {
	JobType string
	Payload []byte
	Opts    int
}

func (e *enqueueSpy) Fn() cron.EnqueueFunc {
	return func(_ context.Context, jobType string, payload []byte, opts ...job.Option) (*job.Job, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.err != nil {
			return nil, e.err
		}
		e.calls = append(e.calls, enqueueCall{JobType: jobType, Payload: payload, Opts: len(opts)})
		return &job.Job{ID: id.NewJobID(), Type: jobType, Status: job.StatusQueued}, nil
	}
}

func (e *enqueueSpy) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

func (e *enqueueSpy) Types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.calls))
	for i, c := range e.calls {
		out[i] = c.JobType
	}
	return out
}

func registerTask(t *testing.T, s *memory.Store, expr, jobType string) *cron.Task {
	t.Helper()

	task := &cron.Task{
		Entity:         jobcore.NewEntity(),
		ID:             id.NewScheduleID(),
		CronExpression: expr,
		OrganizationID: "org-1",
		CreatedBy:      "user-ops",
		CapabilityID:   "cap.jobs.run",
		JobType:        jobType,
		Payload:        []byte(`{}`),
		IsActive:       true,
	}
	if err := s.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	return task
}

type schedulerFixture struct {
	sched *cron.Scheduler
	store *memory.Store
	clock *fakeClock
	spy   *enqueueSpy
}

func newTestScheduler(t *testing.T, caps cron.CapabilityRegistry) *schedulerFixture {
	t.Helper()

	s := memory.New()
	clock := &fakeClock{now: time.Date(2025, time.June, 2, 9, 30, 0, 0, time.UTC)}
	spy := &enqueueSpy{}

	sched := cron.NewScheduler(s, caps, spy.Fn(),
		cron.WithTickInterval(20*time.Millisecond),
		cron.WithClock(clock),
		cron.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return &schedulerFixture{sched: sched, store: s, clock: clock, spy: spy}
}

// waitFor polls cond until it holds or the deadline expires.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.After(3 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal(msg)
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func TestSchedulerFiresWhenDue(t *testing.T) {
	f := newTestScheduler(t, allowAll{})
	task := registerTask(t, f.store, "30 9 * * *", "daily_report")

	if err := f.sched.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.sched.Stop(context.Background())

	waitFor(t, func() bool { return f.spy.Count() >= 1 }, "timed out waiting for the task to fire")

	types := f.spy.Types()
	if types[0] != "daily_report" {
		t.Errorf("enqueued job type = %q, want daily_report", types[0])
	}

	waitFor(t, func() bool {
		got, err := f.store.GetTask(context.Background(), task.ID)
		return err == nil && got.TotalRuns == 1
	}, "timed out waiting for run bookkeeping")

	got, err := f.store.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.LastRunStatus != cron.RunSuccess {
		t.Errorf("last run status = %q, want success", got.LastRunStatus)
	}
	if got.LastRunAt == nil || !got.LastRunAt.Equal(f.clock.Now()) {
		t.Errorf("last run at = %v, want the scheduler clock instant", got.LastRunAt)
	}
}

func TestSchedulerDoesNotDoubleFire(t *testing.T) {
	f := newTestScheduler(t, allowAll{})
	registerTask(t, f.store, "* * * * *", "meter_sync")

	if err := f.sched.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.sched.Stop(context.Background())

	waitFor(t, func() bool { return f.spy.Count() >= 1 }, "timed out waiting for the task to fire")

	// The clock stands still, so many more ticks pass within the same
	// minute. The task must not fire again.
	time.Sleep(200 * time.Millisecond)
	if n := f.spy.Count(); n != 1 {
		t.Fatalf("task fired %d times for one minute, want 1", n)
	}
}

func TestSchedulerSkipsNotDue(t *testing.T) {
	f := newTestScheduler(t, allowAll{})
	registerTask(t, f.store, "0 3 * * *", "nightly_cleanup") // clock is at 09:30

	if err := f.sched.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.sched.Stop(context.Background())

	time.Sleep(150 * time.Millisecond)
	if n := f.spy.Count(); n != 0 {
		t.Fatalf("task fired %d times while not due, want 0", n)
	}
}

func TestSchedulerSkipsInvalidExpression(t *testing.T) {
	f := newTestScheduler(t, allowAll{})
	registerTask(t, f.store, "not a cron", "broken")
	registerTask(t, f.store, "* * * * *", "healthy")

	if err := f.sched.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.sched.Stop(context.Background())

	// The invalid task never aborts the scan of the healthy one.
	waitFor(t, func() bool { return f.spy.Count() >= 1 }, "timed out waiting for the healthy task")

	for _, jobType := range f.spy.Types() {
		if jobType == "broken" {
			t.Fatal("task with an invalid expression must not fire")
		}
	}
}

func TestSchedulerCapabilityDenied(t *testing.T) {
	f := newTestScheduler(t, denyAll{})
	task := registerTask(t, f.store, "* * * * *", "export")

	if err := f.sched.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.sched.Stop(context.Background())

	waitFor(t, func() bool {
		got, err := f.store.GetTask(context.Background(), task.ID)
		return err == nil && got.ConsecutiveFailures >= 1
	}, "timed out waiting for the denial to be recorded")

	if f.spy.Count() != 0 {
		t.Fatal("denied task must not reach the queue")
	}

	got, err := f.store.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.LastRunStatus != cron.RunFailed {
		t.Errorf("last run status = %q, want failed", got.LastRunStatus)
	}
	if !strings.Contains(got.LastRunError, "capability denied") {
		t.Errorf("last run error = %q, want the denial reason", got.LastRunError)
	}
	// A denial is not a run; the last-run instant stays unset.
	if got.LastRunAt != nil {
		t.Errorf("last run at = %v, want nil after a denial", got.LastRunAt)
	}
}

func TestSchedulerPausesAfterRepeatedFailures(t *testing.T) {
	f := newTestScheduler(t, denyAll{})
	task := registerTask(t, f.store, "* * * * *", "export")

	if err := f.sched.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.sched.Stop(context.Background())

	// A denial never stamps the last-run instant, so every tick fails the
	// task again until the pause threshold trips.
	waitFor(t, func() bool {
		got, err := f.store.GetTask(context.Background(), task.ID)
		return err == nil && got.IsPaused
	}, "timed out waiting for the task to pause")

	got, err := f.store.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.ConsecutiveFailures < 5 {
		t.Errorf("consecutive failures = %d, want at least 5 before pausing", got.ConsecutiveFailures)
	}

	// Paused tasks drop out of the runnable scan entirely.
	runnable, err := f.store.ListRunnableTasks(context.Background())
	if err != nil {
		t.Fatalf("ListRunnableTasks: %v", err)
	}
	if len(runnable) != 0 {
		t.Fatalf("paused task still listed as runnable")
	}
}

func TestSchedulerSuccessResetsFailures(t *testing.T) {
	f := newTestScheduler(t, allowAll{})
	task := registerTask(t, f.store, "* * * * *", "export")

	// Seed prior failures just under the pause threshold.
	task.ConsecutiveFailures = 4
	task.LastRunStatus = cron.RunFailed
	task.LastRunError = "capability revoked"
	if err := f.store.UpdateTaskRun(context.Background(), task); err != nil {
		t.Fatalf("UpdateTaskRun: %v", err)
	}

	if err := f.sched.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.sched.Stop(context.Background())

	waitFor(t, func() bool {
		got, err := f.store.GetTask(context.Background(), task.ID)
		return err == nil && got.LastRunStatus == cron.RunSuccess
	}, "timed out waiting for a successful run")

	got, err := f.store.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.ConsecutiveFailures != 0 {
		t.Errorf("consecutive failures = %d, want 0 after success", got.ConsecutiveFailures)
	}
	if got.LastRunError != "" {
		t.Errorf("last run error = %q, want cleared", got.LastRunError)
	}
	if got.IsPaused {
		t.Error("task must not be paused after a success")
	}
}

func TestSchedulerEnqueueFailureStampsRun(t *testing.T) {
	f := newTestScheduler(t, allowAll{})
	f.spy.err = errors.New("queue unavailable")
	task := registerTask(t, f.store, "* * * * *", "export")

	if err := f.sched.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.sched.Stop(context.Background())

	waitFor(t, func() bool {
		got, err := f.store.GetTask(context.Background(), task.ID)
		return err == nil && got.ConsecutiveFailures >= 1
	}, "timed out waiting for the failure to be recorded")

	got, err := f.store.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	// A failed handoff is still an attempted run.
	if got.LastRunAt == nil {
		t.Error("expected the last-run instant after an attempted handoff")
	}
	if got.LastRunStatus != cron.RunFailed {
		t.Errorf("last run status = %q, want failed", got.LastRunStatus)
	}
}

func TestSchedulerStartStopIdempotent(t *testing.T) {
	f := newTestScheduler(t, allowAll{})

	ctx := context.Background()
	if err := f.sched.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.sched.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if err := f.sched.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := f.sched.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}

	// A stopped scheduler can be started again.
	if err := f.sched.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := f.sched.Stop(ctx); err != nil {
		t.Fatalf("final Stop: %v", err)
	}
}
