//go:build !windows

package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/tlcut/internal/ports"
	"github.com/forPelevin/tlcut/internal/types"
)

// fakeFFmpeg writes an executable shell script standing in for ffmpeg.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write fake ffmpeg: %v", err)
	}
	return p
}

func wait(t *testing.T, h ports.JobHandle) ports.JobResult {
	t.Helper()
	select {
	case <-h.Done():
		return h.Result()
	case <-time.After(10 * time.Second):
		t.Fatalf("job did not finish")
	}
	return ports.JobResult{}
}

func TestEngine_Completes(t *testing.T) {
	bin := fakeFFmpeg(t, "echo out_time_us=3750000\necho progress=continue\necho progress=end")
	a := New(bin, "", WithThreads(1))

	h, err := a.Submit(context.Background(), baseSpec(), "/tmp/out.mp4")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	res := wait(t, h)
	if res.Status != ports.JobCompleted || res.Err != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := a.PollProgress(); got != 100 {
		t.Fatalf("progress = %d, want 100", got)
	}
	if a.IsRunning() {
		t.Fatalf("engine still running after completion")
	}
	if h.OutputPath() != "/tmp/out.mp4" || h.ID() == "" {
		t.Fatalf("unexpected handle: %s %s", h.ID(), h.OutputPath())
	}
}

func TestEngine_FailureKeepsDiagnostic(t *testing.T) {
	bin := fakeFFmpeg(t, "echo 'Unknown encoder libx264' >&2\nexit 1")
	a := New(bin, "", WithThreads(1))

	h, err := a.Submit(context.Background(), baseSpec(), "/tmp/out.mp4")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	res := wait(t, h)
	if res.Status != ports.JobFailed || res.Err == nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !strings.Contains(res.Diagnostic, "Unknown encoder") {
		t.Fatalf("diagnostic lost: %q", res.Diagnostic)
	}
	if a.IsRunning() {
		t.Fatalf("failed job left the engine running")
	}
	if a.PollProgress() == 100 {
		t.Fatalf("failed job must not report 100%%")
	}
}

func TestEngine_SingleJobAndCancel(t *testing.T) {
	bin := fakeFFmpeg(t, "echo out_time_us=1000000\nexec sleep 30")
	a := New(bin, "", WithThreads(1))

	h, err := a.Submit(context.Background(), baseSpec(), "/tmp/out.mp4")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !a.IsRunning() {
		t.Fatalf("expected running job")
	}
	if _, err := a.Submit(context.Background(), baseSpec(), "/tmp/other.mp4"); !errors.Is(err, ports.ErrJobAlreadyRunning) {
		t.Fatalf("expected ErrJobAlreadyRunning, got %v", err)
	}
	if !a.Cancel() {
		t.Fatalf("cancel must report a running job")
	}
	res := wait(t, h)
	if res.Status != ports.JobCancelled {
		t.Fatalf("status = %s, want cancelled", res.Status)
	}
	if a.IsRunning() || a.Cancel() {
		t.Fatalf("engine must be idle after cancel")
	}

	// The engine accepts new work once the previous job is done.
	ok := fakeFFmpeg(t, "exit 0")
	a.ffmpeg = ok
	h, err = a.Submit(context.Background(), baseSpec(), "/tmp/out.mp4")
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if res := wait(t, h); res.Status != ports.JobCompleted {
		t.Fatalf("resubmitted job: %+v", res)
	}
}

func TestEngine_SpawnFailure(t *testing.T) {
	a := New(filepath.Join(t.TempDir(), "missing-ffmpeg"), "", WithThreads(1))
	if _, err := a.Submit(context.Background(), baseSpec(), "/tmp/out.mp4"); err == nil {
		t.Fatalf("expected spawn error")
	}
	if a.IsRunning() {
		t.Fatalf("spawn failure must not leave the engine running")
	}
}

func TestEngine_RejectsEmptySpec(t *testing.T) {
	a := New("ffmpeg", "", WithThreads(1))
	if _, err := a.Submit(context.Background(), types.RenderSpec{}, "/tmp/out.mp4"); err == nil {
		t.Fatalf("expected error for empty spec")
	}
}
