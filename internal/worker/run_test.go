package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"montage/internal/jobs"
	"montage/internal/pkg/logger"
	"montage/internal/timeline"
)

type dirs string

func (d dirs) JobDir(id string) string { return filepath.Join(string(d), id) }

type fakeProcessor struct {
	store   *jobs.Store
	release chan struct{}
	fail    error

	mu        sync.Mutex
	announced []jobs.Status
	ctxErrs   []error
	jobIDs    []string
}

func (f *fakeProcessor) Announce(ctx context.Context, job jobs.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.announced = append(f.announced, job.Status)
}

func (f *fakeProcessor) ProcessJob(ctx context.Context, jobID string, design timeline.Design) error {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	id, _ := ctx.Value(logger.JobIDKey).(string)
	f.jobIDs = append(f.jobIDs, id)
	f.mu.Unlock()

	if f.fail != nil {
		_, _ = f.store.Fail(jobID, f.fail.Error())
		return f.fail
	}
	if _, err := f.store.MarkRunning(jobID); err != nil {
		return err
	}
	_, err := f.store.Complete(jobID, filepath.Join("out", jobID), "")
	return err
}

func newExecutor(t *testing.T, proc *fakeProcessor) (*Executor, *jobs.Store) {
	t.Helper()
	store := jobs.NewStore()
	proc.store = store
	e := New(Deps{Store: store, Processor: proc, Dirs: dirs(t.TempDir()), Log: logger.Discard()})
	return e, store
}

func waitAll(t *testing.T, e *Executor) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestSubmitReturnsPendingImmediately(t *testing.T) {
	proc := &fakeProcessor{release: make(chan struct{})}
	e, store := newExecutor(t, proc)

	job, err := e.Submit(context.Background(), timeline.Design{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != jobs.StatusPending || job.ID == "" {
		t.Fatalf("unexpected submitted job %+v", job)
	}
	if got, _ := store.Get(job.ID); got.Status != jobs.StatusPending {
		t.Errorf("expected stored job pending, got %s", got.Status)
	}
	if e.InFlight() != 1 {
		t.Errorf("expected one job in flight, got %d", e.InFlight())
	}

	close(proc.release)
	waitAll(t, e)

	if got, _ := store.Get(job.ID); got.Status != jobs.StatusCompleted || got.Progress != 100 {
		t.Errorf("expected completed job, got %+v", got)
	}
	if e.InFlight() != 0 {
		t.Errorf("expected nothing in flight, got %d", e.InFlight())
	}
	if len(proc.announced) != 1 || proc.announced[0] != jobs.StatusPending {
		t.Errorf("expected a single PENDING announcement, got %v", proc.announced)
	}
}

func TestSubmitAssignsWorkDir(t *testing.T) {
	proc := &fakeProcessor{}
	e, _ := newExecutor(t, proc)
	e.newID = func() string { return "fixed-id" }

	job, err := e.Submit(context.Background(), timeline.Design{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitAll(t, e)

	if filepath.Base(job.WorkDir) != "fixed-id" {
		t.Errorf("expected work dir named after job, got %s", job.WorkDir)
	}
	if proc.jobIDs[0] != "fixed-id" {
		t.Errorf("expected job id in processing context, got %q", proc.jobIDs[0])
	}

	if _, err := e.Submit(context.Background(), timeline.Design{}); err == nil {
		t.Error("expected duplicate id to be rejected")
	}
}

func TestJobOutlivesSubmitContext(t *testing.T) {
	proc := &fakeProcessor{release: make(chan struct{})}
	e, store := newExecutor(t, proc)

	ctx, cancel := context.WithCancel(context.Background())
	job, err := e.Submit(ctx, timeline.Design{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	cancel()
	close(proc.release)
	waitAll(t, e)

	if proc.ctxErrs[0] != nil {
		t.Errorf("processing context must not be cancelled, got %v", proc.ctxErrs[0])
	}
	if got, _ := store.Get(job.ID); got.Status != jobs.StatusCompleted {
		t.Errorf("expected completion after request cancel, got %s", got.Status)
	}
}

func TestFailedJobStaysInStore(t *testing.T) {
	proc := &fakeProcessor{fail: errors.New("bad status 404 for http://cdn.test/a.png")}
	e, store := newExecutor(t, proc)

	job, err := e.Submit(context.Background(), timeline.Design{})
	if err != nil {
		t.Fatalf("Submit must not report processing failures: %v", err)
	}
	waitAll(t, e)

	got, _ := store.Get(job.ID)
	if got.Status != jobs.StatusFailed || got.Error != proc.fail.Error() {
		t.Errorf("unexpected failed job %+v", got)
	}
}

func TestWaitHonoursDeadline(t *testing.T) {
	proc := &fakeProcessor{release: make(chan struct{})}
	e, _ := newExecutor(t, proc)
	defer close(proc.release)

	if _, err := e.Submit(context.Background(), timeline.Design{}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := e.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestConcurrentSubmits(t *testing.T) {
	proc := &fakeProcessor{}
	e, store := newExecutor(t, proc)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Submit(context.Background(), timeline.Design{}); err != nil {
				t.Errorf("Submit: %v", err)
			}
		}()
	}
	wg.Wait()
	waitAll(t, e)

	if store.Len() != 20 {
		t.Errorf("expected 20 jobs, got %d", store.Len())
	}
	for _, j := range store.List(jobs.ListFilter{}) {
		if j.Status != jobs.StatusCompleted {
			t.Errorf("job %s ended %s", j.ID, j.Status)
		}
	}
}
