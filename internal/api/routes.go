package api

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/forPelevin/tlcut/internal/domain/clips"
	"github.com/forPelevin/tlcut/internal/domain/exportplan"
	"github.com/forPelevin/tlcut/internal/domain/timeline"
	"github.com/forPelevin/tlcut/internal/logging"
	"github.com/forPelevin/tlcut/internal/pipeline"
	"github.com/forPelevin/tlcut/internal/ports"
	"github.com/forPelevin/tlcut/internal/types"
	"github.com/forPelevin/tlcut/internal/usecase"
)

const maxBodyBytes = 1 << 20

// handlers serialise every request that touches the session.
type handlers struct {
	cfg ServerConfig
	log *logrus.Entry

	mu   sync.Mutex
	last *exportState
}

type exportState struct {
	id     string
	output string
	status ports.JobStatus
	err    string
}

func NewRouter(cfg ServerConfig) *chi.Mux {
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	h := &handlers{cfg: cfg, log: cfg.Logger.WithField("component", "api")}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(h.log))
	r.Use(LoggingMiddleware(h.log))
	r.Use(CORSMiddleware())

	r.Get("/health", h.health)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Token, h.log))

		r.Get("/project", h.project)
		r.Post("/save", h.save)

		r.Post("/clips", h.addClips)
		r.Patch("/clips/{id}", h.updateClip)
		r.Delete("/clips/{id}", h.deleteClip)
		r.Post("/clips/{id}/split", h.splitClip)

		r.Put("/crop", h.setCrop)
		r.Put("/color", h.setColor)
		r.Put("/export-settings", h.setExportSettings)

		r.Post("/undo", h.undo)
		r.Post("/redo", h.redo)

		r.Get("/plan", h.plan)
		r.Post("/export", h.startExport)
		r.Get("/export/progress", h.exportProgress)
		r.Post("/export/cancel", h.cancelExport)
		r.Get("/exports", h.listExports)
	})
	return r
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: Version,
		UptimeS: int64(time.Since(h.cfg.StartTime).Seconds()),
	})
}

func (h *handlers) project(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	WriteJSON(w, http.StatusOK, ProjectToResponse(h.cfg.Project))
}

func (h *handlers) save(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.cfg.App.Save(h.cfg.Project); err != nil {
		h.log.WithError(err).Error("save project")
		WriteError(w, http.StatusInternalServerError, err.Error(), "SAVE_FAILED")
		return
	}
	WriteJSON(w, http.StatusOK, SaveResponse{Path: h.cfg.Project.Path})
}

func (h *handlers) addClips(w http.ResponseWriter, r *http.Request) {
	var req AddClipsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Paths) == 0 {
		WriteError(w, http.StatusBadRequest, "paths is required", "BAD_REQUEST")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	before := len(h.cfg.Project.Session.Clips())
	_, err := h.cfg.App.AddSources(r.Context(), h.cfg.Project, req.Paths)
	resp := AddClipsResponse{Project: ProjectToResponse(h.cfg.Project)}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		resp.Warnings = []string{err.Error()}
		if len(resp.Project.Clips) == before {
			writeDomainError(w, err)
			return
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (h *handlers) updateClip(w http.ResponseWriter, r *http.Request) {
	var patch types.ClipPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	h.edit(w, func(p *pipeline.Project) error {
		return p.Session.UpdateClip(chi.URLParam(r, "id"), patch)
	})
}

func (h *handlers) deleteClip(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ripple, _ := strconv.ParseBool(r.URL.Query().Get("ripple"))
	h.edit(w, func(p *pipeline.Project) error {
		if ripple {
			return p.Session.RippleDelete(id)
		}
		return p.Session.RemoveClip(id)
	})
}

func (h *handlers) splitClip(w http.ResponseWriter, r *http.Request) {
	var req SplitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	ok, err := h.cfg.Project.Session.Split(chi.URLParam(r, "id"), req.At)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, SplitResponse{Split: ok, Project: ProjectToResponse(h.cfg.Project)})
}

func (h *handlers) setCrop(w http.ResponseWriter, r *http.Request) {
	var c types.CropSettings
	if !decodeBody(w, r, &c) {
		return
	}
	h.edit(w, func(p *pipeline.Project) error { return p.Session.SetCrop(c) })
}

func (h *handlers) setColor(w http.ResponseWriter, r *http.Request) {
	c := types.NeutralColor()
	if !decodeBody(w, r, &c) {
		return
	}
	h.edit(w, func(p *pipeline.Project) error { return p.Session.SetColor(c) })
}

// setExportSettings merges the body over the current settings, so a client
// can send only the fields it changes.
func (h *handlers) setExportSettings(w http.ResponseWriter, r *http.Request) {
	var patch ExportSettingsPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	h.edit(w, func(p *pipeline.Project) error {
		return p.Session.SetExportSettings(patch.Apply(p.Session.ExportSettings()))
	})
}

func (h *handlers) undo(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ok := h.cfg.Project.Session.Undo()
	WriteJSON(w, http.StatusOK, HistoryStepResponse{OK: ok, Project: ProjectToResponse(h.cfg.Project)})
}

func (h *handlers) redo(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ok := h.cfg.Project.Session.Redo()
	WriteJSON(w, http.StatusOK, HistoryStepResponse{OK: ok, Project: ProjectToResponse(h.cfg.Project)})
}

func (h *handlers) plan(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	spec, err := h.cfg.Project.Session.Plan()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, spec)
}

func (h *handlers) startExport(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	out := req.Output
	if out == "" {
		var err error
		if out, err = h.cfg.App.OutputPath(h.cfg.Project, ""); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	// The job outlives the request.
	job, _, err := h.cfg.App.Usecase.Export(context.Background(), h.cfg.Project.Session,
		usecase.ExportInput{Project: h.cfg.Project.Name, OutPath: out})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	st := &exportState{id: job.ID(), output: out, status: ports.JobRunning}
	h.last = st
	go func() {
		res, _ := h.cfg.App.Usecase.Wait(context.Background(), job, nil)
		h.mu.Lock()
		defer h.mu.Unlock()
		st.status = res.Status
		if res.Err != nil && res.Status != ports.JobCompleted {
			st.err = res.Err.Error()
		}
	}()
	WriteJSON(w, http.StatusAccepted, ExportResponse{JobID: job.ID(), Output: out})
}

func (h *handlers) exportProgress(w http.ResponseWriter, r *http.Request) {
	eng := h.cfg.App.Engine
	h.mu.Lock()
	defer h.mu.Unlock()
	resp := ProgressResponse{Running: eng.IsRunning(), Percent: eng.PollProgress()}
	if st := h.last; st != nil {
		resp.JobID, resp.Output, resp.Status, resp.Error = st.id, st.output, string(st.status), st.err
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (h *handlers) cancelExport(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, CancelResponse{Cancelled: h.cfg.App.Engine.Cancel()})
}

func (h *handlers) listExports(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			WriteError(w, http.StatusBadRequest, "limit must be a positive integer", "BAD_REQUEST")
			return
		}
		limit = n
	}
	recs, err := h.cfg.App.Usecase.History(r.Context(), limit)
	if err != nil {
		h.log.WithError(err).Error("list exports")
		WriteError(w, http.StatusInternalServerError, "failed to list exports", "INTERNAL_ERROR")
		return
	}
	resp := ExportsResponse{Exports: make([]ExportRecordResponse, len(recs))}
	for i, rec := range recs {
		resp.Exports[i] = ExportRecordToResponse(rec)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// edit runs one session edit under the lock and answers with the new project.
func (h *handlers) edit(w http.ResponseWriter, fn func(p *pipeline.Project) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := fn(h.cfg.Project); err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, ProjectToResponse(h.cfg.Project))
}

// decodeBody reads a JSON request body into v. Bodies of any other media
// type are refused, which keeps plain HTML forms from reaching a handler.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mt != "application/json" {
		WriteError(w, http.StatusUnsupportedMediaType, "content type must be application/json", "UNSUPPORTED_MEDIA_TYPE")
		return false
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "BAD_REQUEST")
		return false
	}
	return true
}

var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{clips.ErrClipNotFound, http.StatusNotFound, "CLIP_NOT_FOUND"},
	{ports.ErrJobAlreadyRunning, http.StatusConflict, "JOB_ALREADY_RUNNING"},
	{clips.ErrInvalidClipRange, http.StatusUnprocessableEntity, "INVALID_CLIP_RANGE"},
	{clips.ErrInvalidSource, http.StatusUnprocessableEntity, "INVALID_SOURCE"},
	{timeline.ErrInvalidInterval, http.StatusUnprocessableEntity, "INVALID_INTERVAL"},
	{exportplan.ErrEmptyTimeline, http.StatusUnprocessableEntity, "EMPTY_TIMELINE"},
	{exportplan.ErrInvalidCropRegion, http.StatusUnprocessableEntity, "INVALID_CROP_REGION"},
	{exportplan.ErrInvalidColorAdjust, http.StatusUnprocessableEntity, "INVALID_COLOR_ADJUST"},
	{exportplan.ErrUnsupportedFormatCodecPairing, http.StatusUnprocessableEntity, "UNSUPPORTED_FORMAT_CODEC"},
	{exportplan.ErrInvalidExportSettings, http.StatusUnprocessableEntity, "INVALID_EXPORT_SETTINGS"},
	{ports.ErrProbeFailed, http.StatusUnprocessableEntity, "PROBE_FAILED"},
}

func writeDomainError(w http.ResponseWriter, err error) {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			WriteError(w, e.status, err.Error(), e.code)
			return
		}
	}
	WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
}
