package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/forPelevin/tlcut/internal/ports"
	"github.com/forPelevin/tlcut/internal/types"
)

const (
	defaultPollInterval = 250 * time.Millisecond
	// probeParallelism bounds concurrent ffprobe processes.
	probeParallelism = 4
)

type Deps struct {
	Prober ports.Prober
	Engine ports.RenderEngine
	// Exports is optional; without it exports are not recorded.
	Exports ports.ExportLog
	Logger  *logrus.Entry

	PollInterval time.Duration
	Now          func() time.Time
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase {
	if d.Logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		d.Logger = logrus.NewEntry(l)
	}
	if d.PollInterval <= 0 {
		d.PollInterval = defaultPollInterval
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return Usecase{d: d}
}

// Opened is one probed path. When probing failed Source only carries the path
// and ProbeErr says why.
type Opened struct {
	Source   types.SourceFile
	ProbeErr error
}

// OpenSources probes paths concurrently. A failed probe never fails the call:
// the path comes back with an unknown-metadata descriptor instead. Only
// cancellation of ctx is returned as an error.
func (u Usecase) OpenSources(ctx context.Context, paths []string) ([]Opened, error) {
	out := make([]Opened, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(probeParallelism)
	for i, p := range paths {
		g.Go(func() error {
			src, err := u.d.Prober.Probe(gctx, p)
			if err == nil {
				out[i] = Opened{Source: src}
				return nil
			}
			if ctxErr := gctx.Err(); ctxErr != nil {
				return ctxErr
			}
			u.d.Logger.WithError(err).WithField("path", p).Warn("probe failed, using unknown metadata")
			out[i] = Opened{Source: types.SourceFile{Path: p}, ProbeErr: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Planner compiles the current edit into a render spec.
type Planner interface {
	Plan() (types.RenderSpec, error)
}

type ExportInput struct {
	Project string
	OutPath string
}

// Export compiles the plan and submits it. Compile errors are returned before
// the engine is touched.
func (u Usecase) Export(ctx context.Context, p Planner, in ExportInput) (ports.JobHandle, types.RenderSpec, error) {
	spec, err := p.Plan()
	if err != nil {
		return nil, types.RenderSpec{}, err
	}
	h, err := u.d.Engine.Submit(ctx, spec, in.OutPath)
	if err != nil {
		return nil, types.RenderSpec{}, err
	}
	u.d.Logger.WithFields(logrus.Fields{
		"job":      h.ID(),
		"output":   in.OutPath,
		"segments": len(spec.Segments),
		"duration": spec.TotalDuration,
	}).Info("export submitted")

	if u.d.Exports != nil {
		rec := ports.ExportRecord{
			ID:         h.ID(),
			Project:    in.Project,
			OutputPath: in.OutPath,
			Spec:       spec,
			Status:     ports.JobRunning,
			StartedAt:  u.d.Now(),
		}
		if err := u.d.Exports.RecordStart(ctx, rec); err != nil {
			u.d.Logger.WithError(err).Warn("record export start")
		}
	}
	return h, spec, nil
}

// Wait polls progress until the job ends and records the outcome. Cancelling
// ctx cancels the job and still waits for it to stop. onProgress may be nil;
// it sees every distinct percentage.
func (u Usecase) Wait(ctx context.Context, h ports.JobHandle, onProgress func(int)) (ports.JobResult, error) {
	tick := time.NewTicker(u.d.PollInterval)
	defer tick.Stop()
	logEvery := rate.Sometimes{Interval: 2 * time.Second}
	log := u.d.Logger.WithField("job", h.ID())

	last := -1
	report := func() {
		p := u.d.Engine.PollProgress()
		if p == last {
			return
		}
		last = p
		if onProgress != nil {
			onProgress(p)
		}
		logEvery.Do(func() { log.WithField("percent", p).Debug("export progress") })
	}

	done := ctx.Done()
loop:
	for {
		select {
		case <-h.Done():
			break loop
		case <-done:
			u.d.Engine.Cancel()
			done = nil
		case <-tick.C:
			report()
		}
	}

	res := h.Result()
	if res.Status == ports.JobCompleted {
		report()
	}
	u.record(h.ID(), res)

	switch res.Status {
	case ports.JobCompleted:
		return res, nil
	case ports.JobCancelled:
		return res, fmt.Errorf("export %s: %w", h.ID(), context.Canceled)
	}
	if res.Err == nil {
		res.Err = errors.New("render failed")
	}
	return res, res.Err
}

func (u Usecase) record(id string, res ports.JobResult) {
	if u.d.Exports == nil {
		return
	}
	msg := ""
	switch {
	case res.Diagnostic != "":
		msg = res.Diagnostic
	case res.Err != nil && res.Status != ports.JobCompleted:
		msg = res.Err.Error()
	}
	// The caller's ctx may already be cancelled; the outcome must still be written.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := u.d.Exports.RecordFinish(ctx, id, res.Status, msg, u.d.Now()); err != nil {
		u.d.Logger.WithError(err).WithField("job", id).Warn("record export finish")
	}
}

// History lists recorded exports, newest first.
func (u Usecase) History(ctx context.Context, limit int) ([]ports.ExportRecord, error) {
	if u.d.Exports == nil {
		return nil, nil
	}
	return u.d.Exports.List(ctx, limit)
}
