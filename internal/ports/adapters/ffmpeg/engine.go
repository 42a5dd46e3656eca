package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/forPelevin/tlcut/internal/ports"
	"github.com/forPelevin/tlcut/internal/types"
)

const (
	maxStderrBytes = 8 * 1024
	// stopGrace is how long ffmpeg gets to finish the container after SIGINT.
	stopGrace = 5 * time.Second
)

type job struct {
	id      string
	outPath string
	started time.Time
	total   float64
	cancel  context.CancelFunc
	done    chan struct{}

	mu        sync.Mutex
	cancelled bool
	result    ports.JobResult
}

func (j *job) ID() string            { return j.id }
func (j *job) OutputPath() string    { return j.outPath }
func (j *job) Done() <-chan struct{} { return j.done }

func (j *job) Result() ports.JobResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

func (j *job) finished() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// Submit starts rendering spec into outPath and returns immediately. A second
// Submit while a job is running fails with ports.ErrJobAlreadyRunning.
func (a *Adapter) Submit(ctx context.Context, spec types.RenderSpec, outPath string) (ports.JobHandle, error) {
	args, err := BuildArgs(spec, outPath, a.threads)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg render: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.job != nil && !a.job.finished() {
		return nil, ports.ErrJobAlreadyRunning
	}

	jctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(jctx, a.ffmpeg, args...)
	// Interrupt rather than kill so ffmpeg can write the trailer; kill after stopGrace.
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = stopGrace

	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderr, limit: maxStderrBytes}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg render: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg start: %w", err)
	}

	j := &job{
		id:      uuid.NewString(),
		outPath: outPath,
		started: time.Now(),
		total:   spec.TotalDuration,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	a.job = j
	a.progress = 0
	log := a.log.WithFields(logrus.Fields{"job": j.id, "output": outPath})
	log.WithField("segments", len(spec.Segments)).Debug("render started")

	go func() {
		sc := bufio.NewScanner(stdout)
		for sc.Scan() {
			if pos, ok := progressTime(sc.Text()); ok {
				a.advance(j, percent(pos, j.total))
			}
		}
		waitErr := cmd.Wait()
		a.finish(j, waitErr, jctx.Err() != nil, stderr.String(), log)
	}()
	return j, nil
}

// advance moves progress forward only; a stale job cannot touch it.
func (a *Adapter) advance(j *job, p int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.job == j && p > a.progress {
		a.progress = p
	}
}

func (a *Adapter) finish(j *job, waitErr error, ctxDone bool, diag string, log *logrus.Entry) {
	j.mu.Lock()
	res := ports.JobResult{OutputPath: j.outPath, Elapsed: time.Since(j.started)}
	switch {
	case j.cancelled || (ctxDone && waitErr != nil):
		res.Status = ports.JobCancelled
		res.Err = context.Canceled
	case waitErr != nil:
		res.Status = ports.JobFailed
		res.Err = fmt.Errorf("ffmpeg render: %w\n%s", waitErr, truncate(diag, 512))
		res.Diagnostic = diag
	default:
		res.Status = ports.JobCompleted
	}
	j.result = res
	j.mu.Unlock()

	a.mu.Lock()
	if a.job == j && res.Status == ports.JobCompleted {
		a.progress = 100
	}
	a.mu.Unlock()
	j.cancel()
	close(j.done)

	entry := log.WithFields(logrus.Fields{"status": res.Status, "elapsed_ms": res.Elapsed.Milliseconds()})
	if res.Status == ports.JobFailed {
		entry.WithField("stderr_tail", truncate(diag, 512)).Warn("render failed")
		return
	}
	entry.Info("render finished")
}

// PollProgress returns the running (or last) job's completion, 0..100.
func (a *Adapter) PollProgress() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.progress
}

// Cancel asks the running job to stop. It reports false when nothing runs.
func (a *Adapter) Cancel() bool {
	a.mu.Lock()
	j := a.job
	a.mu.Unlock()
	if j == nil || j.finished() {
		return false
	}
	j.mu.Lock()
	j.cancelled = true
	j.mu.Unlock()
	j.cancel()
	return true
}

func (a *Adapter) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.job != nil && !a.job.finished()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter keeps only the last limit bytes written to it.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}

var (
	_ ports.RenderEngine = (*Adapter)(nil)
	_ ports.Prober       = (*Adapter)(nil)
)
