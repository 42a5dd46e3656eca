package ports

import (
	"context"
	"errors"
	"time"

	"github.com/forPelevin/tlcut/internal/editor"
	"github.com/forPelevin/tlcut/internal/types"
)

var (
	ErrJobAlreadyRunning = errors.New("a render job is already running")
	ErrProbeFailed       = errors.New("probe failed")
)

// Prober reads media metadata from a file on disk.
type Prober interface {
	Probe(ctx context.Context, path string) (types.SourceFile, error)
}

type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether s is a final job status.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// JobResult is the terminal outcome of a render job. Diagnostic keeps the raw
// engine output tail for display.
type JobResult struct {
	Status     JobStatus
	Err        error
	Diagnostic string
	OutputPath string
	Elapsed    time.Duration
}

// JobHandle refers to one submitted render.
type JobHandle interface {
	ID() string
	OutputPath() string
	Done() <-chan struct{}
	// Result is only meaningful once Done is closed.
	Result() JobResult
}

// RenderEngine executes render specs one at a time. Progress is polled.
type RenderEngine interface {
	Submit(ctx context.Context, spec types.RenderSpec, outPath string) (JobHandle, error)
	PollProgress() int
	Cancel() bool
	IsRunning() bool
}

// ProjectStore persists a project document with its history.
type ProjectStore interface {
	Load(path string) (Project, error)
	Save(path string, p Project) error
}

type Project struct {
	Name  string
	State editor.State
}

// ExportRecord is one row of the export job log.
type ExportRecord struct {
	ID         string
	Project    string
	OutputPath string
	Spec       types.RenderSpec
	Status     JobStatus
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

type ExportLog interface {
	RecordStart(ctx context.Context, rec ExportRecord) error
	RecordFinish(ctx context.Context, id string, status JobStatus, errMsg string, at time.Time) error
	List(ctx context.Context, limit int) ([]ExportRecord, error)
}
