// Package renderer supervises the ffmpeg process for one render.
package renderer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"montage/internal/pkg/errors"
	"montage/internal/pkg/logger"
)

var commandContext = exec.CommandContext

const stderrTailLines = 20

// Runner starts the engine and streams its progress.
type Runner interface {
	Run(ctx context.Context, args []string, totalMs int64, events chan<- Event) error
}

type Option func(*FFmpeg)

func WithBinary(binary string) Option {
	return func(f *FFmpeg) {
		if binary != "" {
			f.binary = binary
		}
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(f *FFmpeg) {
		if log != nil {
			f.log = log
		}
	}
}

type FFmpeg struct {
	binary string
	log    *logger.Logger
}

func NewFFmpeg(opts ...Option) *FFmpeg {
	f := &FFmpeg{binary: "ffmpeg", log: logger.NewDefault()}
	for _, opt := range opts {
		opt(f)
	}
	f.log = f.log.WithComponent("renderer")
	return f
}

// Run executes the engine with args and sends a progress event on events for
// every elapsed-time line. stdout and stderr are drained concurrently. Run
// does not close events.
func (f *FFmpeg) Run(ctx context.Context, args []string, totalMs int64, events chan<- Event) error {
	log := f.log.FromContext(ctx)

	cmd := commandContext(ctx, f.binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Process("renderer.run", err, "stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errors.Process("renderer.run", err, "stderr pipe")
	}
	if err := cmd.Start(); err != nil {
		return errors.Process("renderer.run", err, "failed to start "+f.binary)
	}
	log.Debug("engine started", "pid", cmd.Process.Pid, "args", len(args))

	tail := &lineTail{max: stderrTailLines}
	parser := NewProgressParser(totalMs)

	var g errgroup.Group
	g.Go(func() error {
		sc := bufio.NewScanner(stdout)
		for sc.Scan() {
			ev, ok := parser.Feed(sc.Text())
			if !ok || events == nil {
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}
		return drainAfter(sc, stdout)
	})
	g.Go(func() error {
		sc := bufio.NewScanner(stderr)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			line := sc.Text()
			log.Debug("engine stderr", "line", line)
			tail.add(line)
		}
		return drainAfter(sc, stderr)
	})

	ioErr := g.Wait()
	waitErr := cmd.Wait()

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			msg := fmt.Sprintf("engine exited with status %d", exitErr.ExitCode())
			if t := tail.String(); t != "" {
				msg += ": " + t
			}
			return errors.Process("renderer.run", nil, msg)
		}
		return errors.Process("renderer.run", waitErr, "engine wait failed")
	}
	if ioErr != nil {
		return errors.Process("renderer.run", ioErr, "reading engine output")
	}
	return nil
}

// drainAfter returns the scanner's error after discarding whatever is left in
// r, so the engine never blocks on a full pipe.
func drainAfter(sc *bufio.Scanner, r io.Reader) error {
	err := sc.Err()
	if err != nil {
		_, _ = io.Copy(io.Discard, r)
	}
	return err
}

type lineTail struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func (t *lineTail) add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *lineTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "; ")
}

var _ Runner = (*FFmpeg)(nil)
