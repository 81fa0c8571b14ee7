package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voltgrid/jobcore"
	"github.com/voltgrid/jobcore/job"
)

// EnqueueFunc is the callback the scheduler uses to hand work off to the
// job queue. This breaks the import cycle: the lifecycle manager provides
// the implementation. The scheduler performs no business logic of its
// own; enqueueing is its only side effect on the queue.
type EnqueueFunc func(ctx context.Context, jobType string, payload []byte, opts ...job.Option) (*job.Job, error)

// CapabilityRegistry is the external authorization gate consulted before
// every handoff. Check returns nil when the actor may exercise the
// capability within the organization, and a descriptive error otherwise.
type CapabilityRegistry interface {
	Check(ctx context.Context, orgID, actorID, capabilityID string) error
}

// pauseThreshold is the number of consecutive handoff failures after
// which a task is paused. A paused task requires manual re-enabling.
const pauseThreshold = 5

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTickInterval sets how often the scheduler scans for due tasks.
// The default is one minute, matching cron's minute granularity.
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.tickInterval = d }
}

// WithClock sets the time source used for cron matching and run
// bookkeeping. Tests inject a fake clock here.
func WithClock(c Clock) SchedulerOption {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the scheduler's logger.
func WithLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = logger }
}

// Scheduler scans scheduled tasks on a tick loop and enqueues the due
// ones. It owns its timer: Start on a running scheduler is a no-op, Stop
// clears the timer. Ticks run sequentially; two ticks never overlap.
type Scheduler struct {
	tasks   TaskStore
	caps    CapabilityRegistry
	enqueue EnqueueFunc
	clock   Clock
	logger  *slog.Logger

	tickInterval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a Scheduler with explicit dependencies.
func NewScheduler(tasks TaskStore, caps CapabilityRegistry, enqueue EnqueueFunc, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		tasks:        tasks,
		caps:         caps,
		enqueue:      enqueue,
		clock:        systemClock{},
		logger:       slog.Default(),
		tickInterval: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the tick loop. Calling Start on a running scheduler is
// a no-op.
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.stopCh = make(chan struct{})
	s.running = true
	s.wg.Add(1)
	go s.tickLoop(s.stopCh)

	s.logger.Info("cron scheduler started",
		slog.Duration("tick_interval", s.tickInterval),
	)
	return nil
}

// Stop signals the scheduler to stop and waits for the tick loop to
// finish. Calling Stop on a stopped scheduler is a no-op.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	close(s.stopCh)
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("cron scheduler stopped")
	return nil
}

// tickLoop fires on each tick interval. Ticks run synchronously, so a
// tick that overruns its interval delays the next one rather than
// running concurrently with it.
func (s *Scheduler) tickLoop(stopCh <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.tick(context.Background())
		}
	}
}

// tick scans all runnable tasks once. A storage failure on the initial
// list aborts this tick only; the next tick retries. Individual task
// failures are recorded against the task and never abort the scan.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.clock.Now()

	tasks, err := s.tasks.ListRunnableTasks(ctx)
	if err != nil {
		s.logger.Error("list scheduled tasks", slog.String("error", err.Error()))
		return
	}

	for _, t := range tasks {
		s.runTask(ctx, t, now)
	}
}

// runTask fires one task if it is due at now.
func (s *Scheduler) runTask(ctx context.Context, t *Task, now time.Time) {
	expr, err := ParseExpression(t.CronExpression)
	if err != nil {
		s.logger.Warn("invalid cron expression",
			slog.String("schedule_id", t.ID.String()),
			slog.String("expression", t.CronExpression),
			slog.String("error", err.Error()),
		)
		return
	}
	if !expr.Matches(now) {
		return
	}

	// Debounce: if the task already ran within the last tick interval,
	// two overlapping ticks must not fire it twice for the same minute.
	if t.LastRunAt != nil && now.Sub(*t.LastRunAt) < s.tickInterval {
		return
	}

	if err := s.caps.Check(ctx, t.OrganizationID, t.CreatedBy, t.CapabilityID); err != nil {
		denied := fmt.Errorf("%w: %v", jobcore.ErrCapabilityDenied, err)
		s.logger.Warn("capability denied for scheduled task",
			slog.String("schedule_id", t.ID.String()),
			slog.String("capability_id", t.CapabilityID),
			slog.String("error", err.Error()),
		)
		s.recordFailure(ctx, t, nil, denied)
		return
	}

	j, err := s.enqueue(ctx, t.JobType, t.Payload, job.WithOwner(t.CreatedBy))
	if err != nil {
		s.logger.Error("scheduled task handoff failed",
			slog.String("schedule_id", t.ID.String()),
			slog.String("job_type", t.JobType),
			slog.String("error", err.Error()),
		)
		s.recordFailure(ctx, t, &now, err)
		return
	}

	t.LastRunAt = &now
	t.LastRunStatus = RunSuccess
	t.LastRunError = ""
	t.ConsecutiveFailures = 0
	t.TotalRuns++
	if err := s.tasks.UpdateTaskRun(ctx, t); err != nil {
		s.logger.Error("record scheduled task run",
			slog.String("schedule_id", t.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Info("scheduled task fired",
		slog.String("schedule_id", t.ID.String()),
		slog.String("job_type", t.JobType),
		slog.String("job_id", j.ID.String()),
	)
}

// recordFailure updates a task's bookkeeping after a denied or failed
// handoff. lastRunAt is stamped only when an actual handoff was
// attempted; a capability denial leaves it untouched. Reaching
// pauseThreshold consecutive failures pauses the task.
func (s *Scheduler) recordFailure(ctx context.Context, t *Task, lastRunAt *time.Time, cause error) {
	if lastRunAt != nil {
		t.LastRunAt = lastRunAt
	}
	t.LastRunStatus = RunFailed
	t.LastRunError = cause.Error()
	t.ConsecutiveFailures++
	if t.ConsecutiveFailures >= pauseThreshold {
		t.IsPaused = true
		s.logger.Warn("scheduled task paused after repeated failures",
			slog.String("schedule_id", t.ID.String()),
			slog.Int("consecutive_failures", t.ConsecutiveFailures),
		)
	}

	if err := s.tasks.UpdateTaskRun(ctx, t); err != nil {
		s.logger.Error("record scheduled task failure",
			slog.String("schedule_id", t.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}
