package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voltgrid/jobcore"
	"github.com/voltgrid/jobcore/cron"
	"github.com/voltgrid/jobcore/id"
	"github.com/voltgrid/jobcore/job"
)

// ──────────────────────────────────────────────────
// Lifecycle tests
// ──────────────────────────────────────────────────

func TestLifecycle(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"Migrate", func() error { return s.Migrate(ctx) }},
		{"Ping", func() error { return s.Ping(ctx) }},
		{"Close", func() error { return s.Close() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); err != nil {
				t.Fatalf("%s returned error: %v", tt.name, err)
			}
		})
	}
}

// ──────────────────────────────────────────────────
// Job Store tests
// ──────────────────────────────────────────────────

func newJob(jobType, owner string, status job.Status) *job.Job {
	now := time.Now().UTC()
	return &job.Job{
		Entity:        jobcore.NewEntity(),
		ID:            id.NewJobID(),
		Type:          jobType,
		Payload:       []byte(`{"test":true}`),
		Status:        status,
		Priority:      job.PriorityNormal,
		MaxAttempts:   3,
		CorrelationID: job.NewCorrelationID(now),
		OwnerUserID:   owner,
	}
}

func TestJobCreateAndGet(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newJob("document_ingestion", "user-a", job.StatusQueued)

	tests := []struct {
		name    string
		fn      func() error
		wantErr error
	}{
		{
			name:    "create new job",
			fn:      func() error { return s.CreateJob(ctx, j) },
			wantErr: nil,
		},
		{
			name:    "create duplicate job",
			fn:      func() error { return s.CreateJob(ctx, j) },
			wantErr: jobcore.ErrJobAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got error %v, want %v", err, tt.wantErr)
			}
		})
	}

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Type != j.Type {
		t.Fatalf("got type %q, want %q", got.Type, j.Type)
	}

	_, err = s.GetJob(ctx, id.NewJobID())
	if !errors.Is(err, jobcore.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestJobDuplicateCorrelation(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j1 := newJob("export", "user-a", job.StatusQueued)
	j2 := newJob("export", "user-a", job.StatusQueued)
	j2.CorrelationID = j1.CorrelationID

	if err := s.CreateJob(ctx, j1); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := s.CreateJob(ctx, j2); !errors.Is(err, jobcore.ErrDuplicateCorrelation) {
		t.Fatalf("expected ErrDuplicateCorrelation, got %v", err)
	}
}

func TestJobGetByCorrelation(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newJob("export", "user-a", job.StatusQueued)
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	got, err := s.GetJobByCorrelation(ctx, j.CorrelationID)
	if err != nil {
		t.Fatalf("GetJobByCorrelation: %v", err)
	}
	if got.ID.String() != j.ID.String() {
		t.Fatalf("got job %s, want %s", got.ID, j.ID)
	}

	_, err = s.GetJobByCorrelation(ctx, "job_0_nope")
	if !errors.Is(err, jobcore.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestJobGetByEntity(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j1 := newJob("ingest", "user-a", job.StatusQueued)
	j1.EntityType, j1.EntityID = "document", "42"
	j2 := newJob("ingest", "user-a", job.StatusQueued)
	j2.EntityType, j2.EntityID = "document", "43"

	for _, j := range []*job.Job{j1, j2} {
		if err := s.CreateJob(ctx, j); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}

	got, err := s.GetJobsByEntity(ctx, "document", "42")
	if err != nil {
		t.Fatalf("GetJobsByEntity: %v", err)
	}
	if len(got) != 1 || got[0].ID.String() != j1.ID.String() {
		t.Fatalf("expected only j1, got %d jobs", len(got))
	}
}

func TestJobListFilters(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	jA := newJob("export", "user-a", job.StatusQueued)
	jB := newJob("export", "user-b", job.StatusQueued)
	jC := newJob("ingest", "user-a", job.StatusCompleted)
	jD := newJob("export", "user-b", job.StatusQueued)
	jD.Priority = job.PriorityHigh

	for _, j := range []*job.Job{jA, jB, jC, jD} {
		if err := s.CreateJob(ctx, j); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}

	tests := []struct {
		name string
		opts job.ListOpts
		want int
	}{
		{"all", job.ListOpts{}, 4},
		{"by owner", job.ListOpts{OwnerUserID: "user-a"}, 2},
		{"by status", job.ListOpts{Status: job.StatusQueued}, 3},
		{"by type", job.ListOpts{Type: "ingest"}, 1},
		{"by priority", job.ListOpts{Priority: job.PriorityHigh}, 1},
		{"owner and status", job.ListOpts{OwnerUserID: "user-a", Status: job.StatusCompleted}, 1},
		{"limit", job.ListOpts{Limit: 2}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListJobs(ctx, tt.opts)
			if err != nil {
				t.Fatalf("ListJobs: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("got %d jobs, want %d", len(got), tt.want)
			}
		})
	}

	count, err := s.CountJobs(ctx, job.CountOpts{Status: job.StatusQueued})
	if err != nil {
		t.Fatalf("CountJobs: %v", err)
	}
	if count != 3 {
		t.Fatalf("got count %d, want 3", count)
	}
}

func TestUpdateJobIf(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newJob("export", "user-a", job.StatusQueued)
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	// Transition queued -> processing succeeds.
	j.Status = job.StatusProcessing
	if err := s.UpdateJobIf(ctx, j, job.StatusQueued); err != nil {
		t.Fatalf("UpdateJobIf: %v", err)
	}

	// A second transition expecting queued loses the race.
	stale := *j
	stale.Status = job.StatusCancelled
	if err := s.UpdateJobIf(ctx, &stale, job.StatusQueued); !errors.Is(err, jobcore.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	// Unknown job.
	ghost := newJob("export", "user-a", job.StatusQueued)
	if err := s.UpdateJobIf(ctx, ghost, job.StatusQueued); !errors.Is(err, jobcore.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestCreateRetry(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	orig := newJob("export", "user-a", job.StatusFailed)
	if err := s.CreateJob(ctx, orig); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	retry := newJob("export", "user-a", job.StatusQueued)
	if err := s.CreateRetry(ctx, orig.ID, retry); err != nil {
		t.Fatalf("CreateRetry: %v", err)
	}

	// Original row untouched.
	got, err := s.GetJob(ctx, orig.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != job.StatusFailed {
		t.Fatalf("original status = %q, want failed", got.Status)
	}

	// Retry of a non-failed job is rejected.
	queued := newJob("export", "user-a", job.StatusQueued)
	if err := s.CreateJob(ctx, queued); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	retry2 := newJob("export", "user-a", job.StatusQueued)
	if err := s.CreateRetry(ctx, queued.ID, retry2); !errors.Is(err, jobcore.ErrNotFailed) {
		t.Fatalf("expected ErrNotFailed, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// Log Store tests
// ──────────────────────────────────────────────────

func TestLogAppendAndList(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newJob("export", "user-a", job.StatusQueued)
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	messages := []string{"first", "second", "third"}
	for _, msg := range messages {
		e := &job.LogEntry{
			ID:        id.NewLogID(),
			JobID:     j.ID,
			Level:     job.LevelInfo,
			Message:   msg,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.AppendLog(ctx, e); err != nil {
			t.Fatalf("AppendLog(%q): %v", msg, err)
		}
	}

	got, err := s.ListLogs(ctx, j.ID)
	if err != nil {
		t.Fatalf("ListLogs: %v", err)
	}
	if len(got) != len(messages) {
		t.Fatalf("got %d entries, want %d", len(got), len(messages))
	}
	for i, msg := range messages {
		if got[i].Message != msg {
			t.Errorf("entry %d message = %q, want %q (creation order)", i, got[i].Message, msg)
		}
	}

	// Appending to a missing job fails.
	e := &job.LogEntry{ID: id.NewLogID(), JobID: id.NewJobID(), Level: job.LevelInfo, Message: "x"}
	if err := s.AppendLog(ctx, e); !errors.Is(err, jobcore.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// Task Store tests
// ──────────────────────────────────────────────────

func newTask(active, paused bool) *cron.Task {
	return &cron.Task{
		Entity:         jobcore.NewEntity(),
		ID:             id.NewScheduleID(),
		CronExpression: "* * * * *",
		OrganizationID: "org-1",
		CreatedBy:      "user-a",
		CapabilityID:   "cap.jobs.run",
		JobType:        "report_generation",
		IsActive:       active,
		IsPaused:       paused,
	}
}

func TestCreateTaskDuplicate(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	task := newTask(true, false)
	if err := s.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	// A second create with the same ID must not overwrite the stored row.
	clash := newTask(false, true)
	clash.ID = task.ID
	if err := s.CreateTask(ctx, clash); !errors.Is(err, jobcore.ErrTaskAlreadyExists) {
		t.Fatalf("expected ErrTaskAlreadyExists, got %v", err)
	}

	got, err := s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if !got.IsActive || got.IsPaused {
		t.Fatal("stored task was overwritten by the rejected create")
	}
}

func TestListRunnableTasks(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	runnable := newTask(true, false)
	inactive := newTask(false, false)
	paused := newTask(true, true)

	for _, task := range []*cron.Task{runnable, inactive, paused} {
		if err := s.CreateTask(ctx, task); err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
	}

	got, err := s.ListRunnableTasks(ctx)
	if err != nil {
		t.Fatalf("ListRunnableTasks: %v", err)
	}
	if len(got) != 1 || got[0].ID.String() != runnable.ID.String() {
		t.Fatalf("expected only the runnable task, got %d tasks", len(got))
	}
}

func TestUpdateTaskRun(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	task := newTask(true, false)
	if err := s.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	now := time.Now().UTC()
	task.LastRunAt = &now
	task.LastRunStatus = cron.RunSuccess
	task.TotalRuns = 1
	if err := s.UpdateTaskRun(ctx, task); err != nil {
		t.Fatalf("UpdateTaskRun: %v", err)
	}

	got, err := s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.LastRunStatus != cron.RunSuccess || got.TotalRuns != 1 {
		t.Fatalf("bookkeeping not persisted: %+v", got)
	}
	if got.LastRunAt == nil {
		t.Fatal("expected LastRunAt to be set")
	}

	ghost := newTask(true, false)
	if err := s.UpdateTaskRun(ctx, ghost); !errors.Is(err, jobcore.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}
