package processor

import (
	"context"
	"os"
	"time"

	"montage/internal/assets"
	"montage/internal/capability"
	"montage/internal/compiler"
	"montage/internal/events"
	"montage/internal/jobs"
	"montage/internal/pkg/errors"
	"montage/internal/pkg/logger"
	"montage/internal/ports"
	"montage/internal/timeline"
	"montage/internal/worker/renderer"
)

const maxLoggedErrorLen = 2000

type Deps struct {
	Store     *jobs.Store
	Resolver  *assets.Resolver
	Runner    renderer.Runner
	Caps      capability.Report
	Publisher events.Publisher
	// SP receives finished artifacts when set.
	SP ports.StorageProvider
	// CleanupInputs removes downloaded media and fonts after a successful render.
	CleanupInputs bool
	Log           *logger.Logger
}

type Processor struct {
	store     *jobs.Store
	runner    renderer.Runner
	caps      capability.Report
	publisher events.Publisher
	log       *logger.Logger

	inputHandler  *InputHandler
	outputHandler *OutputHandler
	cleanup       *Cleanup
}

func New(d Deps) *Processor {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("processor")

	publisher := d.Publisher
	if publisher == nil {
		publisher = events.Noop{}
	}
	resolver := d.Resolver
	if resolver == nil {
		resolver = assets.NewResolver(assets.WithStorage(d.SP))
	}

	return &Processor{
		store:         d.Store,
		runner:        d.Runner,
		caps:          d.Caps,
		publisher:     publisher,
		log:           log,
		inputHandler:  NewInputHandler(resolver),
		outputHandler: NewOutputHandler(d.SP, log),
		cleanup:       NewCleanup(d.CleanupInputs),
	}
}

// ProcessJob runs a pending job to completion: it prepares the working
// directory, downloads inputs, compiles the command, supervises the engine
// and records the outcome. Any failure marks the job FAILED and is returned.
func (p *Processor) ProcessJob(ctx context.Context, jobID string, design timeline.Design) error {
	log := p.jobLog(ctx, jobID)

	job, ok := p.store.Get(jobID)
	if !ok {
		return errors.NotFound("job", jobID)
	}

	// 1. Working directory
	if err := os.MkdirAll(job.WorkDir, 0o755); err != nil {
		return p.failJob(ctx, jobID, errors.Wrap(err, "processor.workdir", "failed to create working directory"))
	}

	// 2. Inputs, one at a time
	log.Debug("materializing inputs")
	inputs, err := p.inputHandler.Materialize(ctx, job.WorkDir, design.Items())
	if err != nil {
		return p.failJob(ctx, jobID, err)
	}
	log.Debug("inputs materialized", "media", len(inputs.Sources), "fonts", len(inputs.Fonts))

	// 3. Compile
	cmd, err := compiler.Compile(compiler.Input{
		Design:        design,
		Sources:       inputs.Sources,
		Fonts:         inputs.Fonts,
		HardwareAccel: p.caps.HardwareEncode,
		WorkDir:       job.WorkDir,
	})
	if err != nil {
		return p.failJob(ctx, jobID, err)
	}

	// 4. Running
	running, err := p.store.MarkRunning(jobID)
	if err != nil {
		return p.failJob(ctx, jobID, err)
	}
	p.Announce(ctx, running)

	// 5. Render
	log.Info("starting render",
		"inputs", len(cmd.Inputs),
		"duration_ms", cmd.DurationMs,
		"hardware", p.caps.HardwareEncode,
	)
	start := time.Now()
	if err := p.render(ctx, jobID, cmd); err != nil {
		return p.failJob(ctx, jobID, err)
	}
	log.Info("render finished", "elapsed_ms", time.Since(start).Milliseconds())

	// 6. Publish the artifact; failures are logged only
	objectKey := p.outputHandler.Publish(ctx, jobID, cmd.OutputPath)

	// 7. Completed
	done, err := p.store.Complete(jobID, cmd.OutputPath, objectKey)
	if err != nil {
		return p.failJob(ctx, jobID, err)
	}
	p.Announce(ctx, done)

	// 8. Cleanup
	p.cleanup.CleanupJob(job.WorkDir)
	return nil
}

// render runs the engine and applies its progress events to the store from
// a separate goroutine, so parsing never waits on store updates.
func (p *Processor) render(ctx context.Context, jobID string, cmd compiler.BuiltCommand) error {
	log := p.jobLog(ctx, jobID)

	progress := make(chan renderer.Event, 16)
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		sampler := renderer.NewSampler(10)
		for ev := range progress {
			job, err := p.store.SetProgress(jobID, ev.Percent)
			if err != nil {
				log.Warn("progress update rejected", "error", err.Error())
				continue
			}
			if sampler.ShouldLog(job.Progress) {
				log.Info("render progress", "progress", job.Progress, "elapsed_ms", ev.ElapsedMs)
			}
		}
	}()

	err := p.runner.Run(ctx, cmd.Args, cmd.DurationMs, progress)
	close(progress)
	<-consumed
	return err
}

// Announce publishes the job's current state. Broker failures never affect
// the job.
func (p *Processor) Announce(ctx context.Context, job jobs.Job) {
	err := p.publisher.Publish(ctx, events.Event{
		JobID:    job.ID,
		Status:   string(job.Status),
		Progress: job.Progress,
		Error:    job.Error,
		At:       job.UpdatedAt,
	})
	if err != nil {
		p.log.FromContext(ctx).Warn("event publish failed",
			"job_id", job.ID,
			"status", string(job.Status),
			"error", err.Error(),
		)
	}
}

func (p *Processor) jobLog(ctx context.Context, jobID string) *logger.Logger {
	return p.log.FromContext(logger.ContextWithJobID(ctx, jobID))
}

func (p *Processor) failJob(ctx context.Context, jobID string, cause error) error {
	log := p.jobLog(ctx, jobID)

	msg := cause.Error()
	logged := truncate(msg, maxLoggedErrorLen)

	var e *errors.Error
	if errors.As(cause, &e) {
		log.Error("job failed",
			"code", string(e.Code),
			"op", e.Op,
			"error", logged,
		)
	} else {
		log.Error("job failed", "error", logged)
	}

	failed, err := p.store.Fail(jobID, msg)
	if err != nil {
		log.Warn("could not record failure", "error", err.Error())
		return cause
	}
	p.Announce(ctx, failed)
	return cause
}
