package api

import (
	"time"

	"github.com/forPelevin/tlcut/internal/domain/timeline"
	"github.com/forPelevin/tlcut/internal/pipeline"
	"github.com/forPelevin/tlcut/internal/ports"
	"github.com/forPelevin/tlcut/internal/types"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type GapResponse struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// OverlapResponse flags two clips sharing timeline time; First wins there.
type OverlapResponse struct {
	First     string  `json:"first"`
	Second    string  `json:"second"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	SameStart bool    `json:"same_start"`
}

type ProjectResponse struct {
	Name       string               `json:"name"`
	Path       string               `json:"path"`
	Clips      []types.Clip         `json:"clips"`
	Gaps       []GapResponse        `json:"gaps"`
	Overlaps   []OverlapResponse    `json:"overlaps"`
	Duration   float64              `json:"duration"`
	Crop       types.CropSettings   `json:"crop"`
	Color      types.ColorAdjust    `json:"color"`
	Export     types.ExportSettings `json:"export"`
	CanUndo    bool                 `json:"can_undo"`
	CanRedo    bool                 `json:"can_redo"`
	HistoryLen int                  `json:"history_len"`
}

func ProjectToResponse(p *pipeline.Project) ProjectResponse {
	s := p.Session
	cl := s.Clips()
	gaps := make([]GapResponse, 0)
	for _, g := range timeline.Gaps(cl) {
		gaps = append(gaps, GapResponse{Start: g.Start, End: g.End})
	}
	overlaps := make([]OverlapResponse, 0)
	for _, c := range timeline.Conflicts(cl) {
		overlaps = append(overlaps, OverlapResponse{
			First: c.First, Second: c.Second,
			Start: c.Overlap.Start, End: c.Overlap.End,
			SameStart: c.SameStart,
		})
	}
	if cl == nil {
		cl = []types.Clip{}
	}
	return ProjectResponse{
		Name:       p.Name,
		Path:       p.Path,
		Clips:      cl,
		Gaps:       gaps,
		Overlaps:   overlaps,
		Duration:   timeline.Span(cl),
		Crop:       s.Crop(),
		Color:      s.Color(),
		Export:     s.ExportSettings(),
		CanUndo:    s.CanUndo(),
		CanRedo:    s.CanRedo(),
		HistoryLen: s.HistoryLen(),
	}
}

type AddClipsRequest struct {
	Paths []string `json:"paths"`
}

type AddClipsResponse struct {
	Project  ProjectResponse `json:"project"`
	Warnings []string        `json:"warnings,omitempty"`
}

type SplitRequest struct {
	At float64 `json:"at"`
}

type SplitResponse struct {
	Split   bool            `json:"split"`
	Project ProjectResponse `json:"project"`
}

// ExportSettingsPatch names the export settings a request changes; absent
// fields keep their current value.
type ExportSettingsPatch struct {
	Format     *string           `json:"format,omitempty"`
	Codec      *string           `json:"codec,omitempty"`
	Resolution *types.Resolution `json:"resolution,omitempty"`
	FrameRate  *types.FrameRate  `json:"fps,omitempty"`
	Bitrate    *types.Bitrate    `json:"bitrate,omitempty"`
	CRF        *int              `json:"crf,omitempty"`
	Preset     *types.Preset     `json:"preset,omitempty"`
}

func (p ExportSettingsPatch) Apply(e types.ExportSettings) types.ExportSettings {
	if p.Format != nil {
		e.Format = *p.Format
	}
	if p.Codec != nil {
		e.Codec = *p.Codec
	}
	if p.Resolution != nil {
		e.Resolution = *p.Resolution
	}
	if p.FrameRate != nil {
		e.FrameRate = *p.FrameRate
	}
	if p.Bitrate != nil {
		e.Bitrate = *p.Bitrate
	}
	if p.CRF != nil {
		e.CRF = *p.CRF
	}
	if p.Preset != nil {
		e.Preset = *p.Preset
	}
	return e
}

type HistoryStepResponse struct {
	OK      bool            `json:"ok"`
	Project ProjectResponse `json:"project"`
}

type ExportRequest struct {
	// Output is a file path; empty picks a name under the exports directory.
	Output string `json:"output,omitempty"`
}

type ExportResponse struct {
	JobID  string `json:"job_id"`
	Output string `json:"output"`
}

type ProgressResponse struct {
	Running bool   `json:"running"`
	Percent int    `json:"percent"`
	JobID   string `json:"job_id,omitempty"`
	Output  string `json:"output,omitempty"`
	Status  string `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
}

type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

type ExportRecordResponse struct {
	ID         string           `json:"id"`
	Project    string           `json:"project"`
	OutputPath string           `json:"output_path"`
	Status     string           `json:"status"`
	Error      string           `json:"error,omitempty"`
	StartedAt  string           `json:"started_at"`
	FinishedAt string           `json:"finished_at,omitempty"`
	Spec       types.RenderSpec `json:"spec"`
}

func ExportRecordToResponse(r ports.ExportRecord) ExportRecordResponse {
	resp := ExportRecordResponse{
		ID:         r.ID,
		Project:    r.Project,
		OutputPath: r.OutputPath,
		Status:     string(r.Status),
		Error:      r.Error,
		StartedAt:  r.StartedAt.Format(time.RFC3339),
		Spec:       r.Spec,
	}
	if r.FinishedAt != nil {
		resp.FinishedAt = r.FinishedAt.Format(time.RFC3339)
	}
	return resp
}

type ExportsResponse struct {
	Exports []ExportRecordResponse `json:"exports"`
}

type SaveResponse struct {
	Path string `json:"path"`
}
