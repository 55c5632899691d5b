// Package worker schedules submitted designs. Every job runs on its own
// goroutine; there is no queue, cap or cancellation.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"montage/internal/jobs"
	"montage/internal/pkg/logger"
	"montage/internal/timeline"
)

type Executor struct {
	store *jobs.Store
	proc  JobProcessor
	dirs  Dirs
	log   *logger.Logger

	wg       sync.WaitGroup
	inFlight atomic.Int64
	newID    func() string
}

func New(d Deps) *Executor {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Executor{
		store: d.Store,
		proc:  d.Processor,
		dirs:  d.Dirs,
		log:   log.WithComponent("worker"),
		newID: uuid.NewString,
	}
}

// Submit records a PENDING job for design and starts processing it in the
// background. It returns as soon as the job is stored; later failures only
// show up in the job's status.
//
// The job outlives ctx: cancelling the submitting request does not stop it.
func (e *Executor) Submit(ctx context.Context, design timeline.Design) (jobs.Job, error) {
	id := e.newID()
	job := jobs.New(id, e.dirs.JobDir(id))
	if err := e.store.Insert(job); err != nil {
		return jobs.Job{}, err
	}
	e.proc.Announce(ctx, job)

	jobCtx := logger.ContextWithJobID(context.WithoutCancel(ctx), id)
	jobLog := e.log.FromContext(jobCtx)
	jobLog.Info("job accepted", "workdir", job.WorkDir)

	e.wg.Add(1)
	e.inFlight.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.inFlight.Add(-1)

		startTime := time.Now()
		if err := e.proc.ProcessJob(jobCtx, id, design); err != nil {
			jobLog.Error("job failed",
				"error", err.Error(),
				"duration_ms", time.Since(startTime).Milliseconds(),
			)
			return
		}
		jobLog.Info("job completed",
			"duration_ms", time.Since(startTime).Milliseconds(),
		)
	}()

	return job, nil
}

// InFlight is the number of jobs not yet in a terminal state.
func (e *Executor) InFlight() int {
	return int(e.inFlight.Load())
}

// Wait blocks until every submitted job has finished or ctx is done.
func (e *Executor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		e.log.Warn("jobs still running at shutdown", "in_flight", e.InFlight())
		return ctx.Err()
	}
}
