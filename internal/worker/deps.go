package worker

import (
	"context"

	"montage/internal/jobs"
	"montage/internal/pkg/logger"
	"montage/internal/timeline"
)

// JobProcessor carries a pending job through to a terminal state.
type JobProcessor interface {
	ProcessJob(ctx context.Context, jobID string, design timeline.Design) error
	Announce(ctx context.Context, job jobs.Job)
}

// Dirs assigns each job its working directory.
type Dirs interface {
	JobDir(jobID string) string
}

type Deps struct {
	Store     *jobs.Store
	Processor JobProcessor
	Dirs      Dirs
	Log       *logger.Logger
}
