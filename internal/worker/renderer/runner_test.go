package renderer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"montage/internal/pkg/errors"
	"montage/internal/pkg/logger"
)

func setHelperCommand(t *testing.T, mode string, captured *[]string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		if captured != nil {
			*captured = append([]string{name}, args...)
		}
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", fmt.Sprintf("ENGINE_HELPER_MODE=%s", mode))
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func collect(t *testing.T, run func(chan<- Event) error) ([]Event, error) {
	t.Helper()
	events := make(chan Event)
	done := make(chan []Event)
	go func() {
		var got []Event
		for ev := range events {
			got = append(got, ev)
		}
		done <- got
	}()
	err := run(events)
	close(events)
	return <-done, err
}

func TestFFmpegRunSuccess(t *testing.T) {
	var captured []string
	setHelperCommand(t, "success", &captured)

	f := NewFFmpeg(WithBinary("/opt/ffmpeg"), WithLogger(logger.Discard()))
	got, err := collect(t, func(events chan<- Event) error {
		return f.Run(context.Background(), []string{"-y", "-progress", "pipe:1", "out.mp4"}, 4000, events)
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(captured) == 0 || captured[0] != "/opt/ffmpeg" || captured[len(captured)-1] != "out.mp4" {
		t.Errorf("unexpected invocation %v", captured)
	}
	if len(got) == 0 {
		t.Fatal("expected progress events")
	}
	last := got[len(got)-1]
	if !last.Done || last.Percent != 100 {
		t.Errorf("expected final done event at 100%%, got %+v", last)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Percent < got[i-1].Percent {
			t.Errorf("progress decreased: %+v", got)
		}
	}
}

func TestFFmpegRunFailureIncludesStderr(t *testing.T) {
	setHelperCommand(t, "failure", nil)

	f := NewFFmpeg(WithLogger(logger.Discard()))
	_, err := collect(t, func(events chan<- Event) error {
		return f.Run(context.Background(), nil, 1000, events)
	})
	if !errors.IsCode(err, errors.CodeProcess) {
		t.Fatalf("expected process error, got %v", err)
	}
	if !strings.Contains(err.Error(), "status 3") || !strings.Contains(err.Error(), "Invalid filtergraph") {
		t.Errorf("expected exit status and stderr tail, got %q", err.Error())
	}
}

func TestFFmpegRunLoudStderrDoesNotDeadlock(t *testing.T) {
	setHelperCommand(t, "loud", nil)

	f := NewFFmpeg(WithLogger(logger.Discard()))
	got, err := collect(t, func(events chan<- Event) error {
		return f.Run(context.Background(), nil, 1000, events)
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(got) == 0 {
		t.Error("expected progress after heavy stderr output")
	}
}

func TestFFmpegRunOversizedLineKeepsDraining(t *testing.T) {
	setHelperCommand(t, "longline", nil)

	f := NewFFmpeg(WithLogger(logger.Discard()))
	done := make(chan error, 1)
	go func() { done <- f.Run(context.Background(), nil, 1000, nil) }()

	select {
	case err := <-done:
		if !errors.IsCode(err, errors.CodeProcess) || !strings.Contains(err.Error(), "reading engine output") {
			t.Fatalf("expected output read error, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run blocked after an oversized stdout line")
	}
}

func TestFFmpegRunSpawnFailure(t *testing.T) {
	f := NewFFmpeg(WithBinary("/nonexistent/montage-ffmpeg"), WithLogger(logger.Discard()))
	err := f.Run(context.Background(), nil, 1000, nil)
	if !errors.IsCode(err, errors.CodeProcess) {
		t.Fatalf("expected process error, got %v", err)
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("ENGINE_HELPER_MODE") {
	case "success":
		for _, us := range []int{0, 1000000, 2000000, 4000000} {
			fmt.Printf("frame=%d\nout_time_us=%d\nout_time_ms=%d\nout_time=00:00:0%d.000000\nprogress=continue\n", us/40000, us, us, us/1000000)
		}
		fmt.Println("progress=end")
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "[AVFilterGraph] Invalid filtergraph")
		os.Exit(3)
	case "loud":
		line := strings.Repeat("x", 1024)
		for i := 0; i < 512; i++ {
			fmt.Fprintln(os.Stderr, line)
		}
		fmt.Println("out_time_us=500000")
		fmt.Println("progress=end")
		os.Exit(0)
	case "longline":
		fmt.Println(strings.Repeat("y", 128*1024))
		line := strings.Repeat("z", 1024)
		for i := 0; i < 1024; i++ {
			fmt.Println(line)
		}
		os.Exit(0)
	default:
		os.Exit(0)
	}
}
