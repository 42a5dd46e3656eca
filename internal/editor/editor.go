// Package editor holds the state of one open project and is the only way to edit it.
//
// Every user-visible edit goes through commit, which takes a snapshot before the
// change is applied and records it in the history log once the change succeeds.
// A Session is owned by a single goroutine; callers that share it must serialise access.
package editor

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/forPelevin/tlcut/internal/domain/clips"
	"github.com/forPelevin/tlcut/internal/domain/exportplan"
	"github.com/forPelevin/tlcut/internal/domain/history"
	"github.com/forPelevin/tlcut/internal/types"
)

const minHistoryLimit = 2

type Session struct {
	store  *clips.Store
	crop   types.CropSettings
	color  types.ColorAdjust
	export types.ExportSettings

	hist *history.Log
	// live is true when the current state is newer than every history entry.
	live bool

	now          func() time.Time
	historyLimit int
	storeOpts    []clips.Option
}

type Option func(*Session)

func WithHistoryLimit(n int) Option {
	return func(s *Session) {
		if n < minHistoryLimit {
			n = minHistoryLimit
		}
		s.historyLimit = n
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func WithStoreOptions(opts ...clips.Option) Option {
	return func(s *Session) { s.storeOpts = append(s.storeOpts, opts...) }
}

// New returns an empty project with default export settings.
func New(opts ...Option) *Session {
	s := &Session{
		color:        types.NeutralColor(),
		export:       types.DefaultExportSettings(),
		live:         true,
		now:          time.Now,
		historyLimit: history.DefaultLimit,
	}
	for _, o := range opts {
		o(s)
	}
	s.store = clips.New(s.storeOpts...)
	s.hist = history.New(s.historyLimit)
	return s
}

// State is everything needed to persist a session, history included.
type State struct {
	Current types.Snapshot
	History []types.Snapshot
	Cursor  int
	Live    bool
}

// Restore rebuilds a session from persisted state. Every snapshot is validated
// so later undo/redo can never load a broken clip list.
func Restore(st State, opts ...Option) (*Session, error) {
	s := New(opts...)
	for i, e := range st.History {
		if err := clips.New().Replace(e.Clips); err != nil {
			return nil, fmt.Errorf("history entry %d: %w", i, err)
		}
	}
	if err := s.store.Replace(st.Current.Clips); err != nil {
		return nil, fmt.Errorf("clips: %w", err)
	}
	s.crop = st.Current.Crop
	s.color = st.Current.Color
	s.export = st.Current.Export
	s.hist = history.Restore(st.History, st.Cursor, s.historyLimit)
	s.live = st.Live || s.hist.Len() == 0
	if !s.live {
		// A document whose current state is not the entry under the cursor was
		// edited outside the session. Treat that state as the newest one.
		if entries := s.hist.Entries(); !sameState(s.Snapshot(), entries[s.hist.Cursor()]) {
			s.live = true
		}
	}
	return s, nil
}

// sameState compares two snapshots ignoring when they were taken.
func sameState(a, b types.Snapshot) bool {
	if a.Crop != b.Crop || a.Color != b.Color || a.Export != b.Export {
		return false
	}
	ac, bc := byStart(a.Clips), byStart(b.Clips)
	if len(ac) != len(bc) {
		return false
	}
	for i := range ac {
		if ac[i] != bc[i] {
			return false
		}
	}
	return true
}

func byStart(cl []types.Clip) []types.Clip {
	out := append([]types.Clip(nil), cl...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out
}

func (s *Session) State() State {
	return State{
		Current: s.Snapshot(),
		History: s.hist.Entries(),
		Cursor:  s.hist.Cursor(),
		Live:    s.live,
	}
}

func (s *Session) Snapshot() types.Snapshot {
	return types.Snapshot{
		Clips:   s.store.Clips(),
		Crop:    s.crop,
		Color:   s.color,
		Export:  s.export,
		TakenAt: s.now().UTC(),
	}
}

func (s *Session) Clips() []types.Clip { return s.store.Clips() }

func (s *Session) Clip(id string) (types.Clip, error) { return s.store.Get(id) }

func (s *Session) Crop() types.CropSettings { return s.crop }

func (s *Session) Color() types.ColorAdjust { return s.color }

func (s *Session) ExportSettings() types.ExportSettings { return s.export }

// AddClip places a whole source after the current end of the timeline.
func (s *Session) AddClip(src types.SourceFile) (types.Clip, error) {
	return s.addWith(src, s.store.AddClip)
}

// AddVideoToTimeline appends another source to an existing edit.
func (s *Session) AddVideoToTimeline(src types.SourceFile) (types.Clip, error) {
	return s.addWith(src, s.store.AddVideoToTimeline)
}

func (s *Session) addWith(src types.SourceFile, add func(types.SourceFile) ([]types.Clip, error)) (types.Clip, error) {
	err := s.commit(func() error {
		_, err := add(src)
		return err
	})
	if err != nil {
		return types.Clip{}, err
	}
	raw := s.store.Raw()
	return raw[len(raw)-1], nil
}

func (s *Session) UpdateClip(id string, p types.ClipPatch) error {
	if p.Empty() {
		_, err := s.store.Get(id)
		return err
	}
	return s.commit(func() error {
		_, err := s.store.UpdateClip(id, p)
		return err
	})
}

// Trim sets a clip's in/out points, clamped to the source duration.
func (s *Session) Trim(id string, in, out float64) error {
	c, err := s.store.Get(id)
	if err != nil {
		return err
	}
	in = clamp(in, 0, c.Source.Duration)
	out = clamp(out, 0, c.Source.Duration)
	if !(in < out) {
		return fmt.Errorf("%w: in %.3f must be before out %.3f", clips.ErrInvalidClipRange, in, out)
	}
	return s.UpdateClip(id, types.ClipPatch{InPoint: &in, OutPoint: &out})
}

// Move repositions a clip on the timeline; negative positions clamp to 0.
func (s *Session) Move(id string, start float64) error {
	if math.IsNaN(start) {
		return fmt.Errorf("%w: start time is NaN", clips.ErrInvalidClipRange)
	}
	start = math.Max(0, start)
	return s.UpdateClip(id, types.ClipPatch{StartTime: &start})
}

func (s *Session) RemoveClip(id string) error {
	return s.commit(func() error {
		_, err := s.store.RemoveClip(id)
		return err
	})
}

func (s *Session) RippleDelete(id string) error {
	return s.commit(func() error {
		_, err := s.store.RippleDelete(id)
		return err
	})
}

// Split cuts a clip at the playhead. It reports false, without touching
// history, when the playhead is not strictly inside the clip.
func (s *Session) Split(id string, at float64) (bool, error) {
	if _, err := s.store.Get(id); err != nil {
		return false, err
	}
	if !s.store.CanSplit(id, at) {
		return false, nil
	}
	err := s.commit(func() error {
		_, err := s.store.SplitAtTime(id, at)
		return err
	})
	return err == nil, err
}

// SetCrop replaces the project crop. An enabled region is checked against the
// source of the first clip on the timeline.
func (s *Session) SetCrop(c types.CropSettings) error {
	if c == s.crop {
		return nil
	}
	if c.Enabled {
		if cl := s.store.Clips(); len(cl) > 0 {
			if err := exportplan.ValidateCrop(c, cl[0].Source); err != nil {
				return err
			}
		} else if c.Width < 1 || c.Height < 1 || c.X < 0 || c.Y < 0 {
			return fmt.Errorf("%w: %dx%d+%d+%d", exportplan.ErrInvalidCropRegion, c.Width, c.Height, c.X, c.Y)
		}
	}
	return s.commit(func() error {
		s.crop = c
		return nil
	})
}

func (s *Session) SetColor(c types.ColorAdjust) error {
	if c == s.color {
		return nil
	}
	if c.Enabled {
		if err := exportplan.ValidateColor(c); err != nil {
			return err
		}
	}
	return s.commit(func() error {
		s.color = c
		return nil
	})
}

// SetExportSettings checks each field's own domain. Whether the codec fits the
// container is decided when the plan is compiled.
func (s *Session) SetExportSettings(e types.ExportSettings) error {
	if e == s.export {
		return nil
	}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %v", exportplan.ErrInvalidExportSettings, err)
	}
	return s.commit(func() error {
		s.export = e
		return nil
	})
}

func (s *Session) CanUndo() bool {
	if s.live {
		return s.hist.Len() > 0
	}
	return s.hist.CanUndo()
}

func (s *Session) CanRedo() bool {
	return !s.live && s.hist.CanRedo()
}

// Undo restores the state before the most recent edit.
func (s *Session) Undo() bool {
	if !s.CanUndo() {
		return false
	}
	if s.live {
		// Record the current state so Redo can come back to it.
		s.hist.Push(s.Snapshot())
		s.live = false
	}
	e, ok := s.hist.Undo()
	if !ok {
		return false
	}
	s.load(e)
	return true
}

func (s *Session) Redo() bool {
	if !s.CanRedo() {
		return false
	}
	e, ok := s.hist.Redo()
	if !ok {
		return false
	}
	s.load(e)
	return true
}

// HistoryLen is the number of retained history entries.
func (s *Session) HistoryLen() int { return s.hist.Len() }

// Plan compiles the current timeline into a render spec.
func (s *Session) Plan() (types.RenderSpec, error) {
	return exportplan.Compile(exportplan.Input{
		Clips:    s.store.Clips(),
		Crop:     s.crop,
		Color:    s.color,
		Settings: s.export,
	})
}

func (s *Session) commit(apply func() error) error {
	pre := s.Snapshot()
	if err := apply(); err != nil {
		return err
	}
	if s.live {
		s.hist.Push(pre)
	} else {
		// pre is already the entry under the cursor.
		s.hist.Truncate()
	}
	s.live = true
	return nil
}

// load swaps in a history entry. Entries were validated when recorded or restored.
func (s *Session) load(e types.Snapshot) {
	if err := s.store.Replace(e.Clips); err != nil {
		panic(fmt.Sprintf("editor: corrupt history entry: %v", err))
	}
	s.crop = e.Crop
	s.color = e.Color
	s.export = e.Export
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
