package clips

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/forPelevin/tlcut/internal/types"
)

func seqIDs() Option {
	n := 0
	return WithIDFunc(func() string {
		n++
		return fmt.Sprintf("c%d", n)
	})
}

func src(path string, dur float64) types.SourceFile {
	return types.SourceFile{Path: path, Duration: dur, Width: 1920, Height: 1080, Codec: "h264", Format: "mov"}
}

func TestAddClip_AppendsAfterRightmostEnd(t *testing.T) {
	s := New(seqIDs())
	if _, err := s.AddClip(src("/a.mp4", 30)); err != nil {
		t.Fatalf("add: %v", err)
	}
	got, err := s.AddVideoToTimeline(src("/b.mp4", 12))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 clips, got %d", len(got))
	}
	if got[0].StartTime != 0 || got[0].InPoint != 0 || got[0].OutPoint != 30 {
		t.Fatalf("unexpected first clip: %+v", got[0])
	}
	if got[1].StartTime != 30 || got[1].OutPoint != 12 {
		t.Fatalf("unexpected second clip: %+v", got[1])
	}
}

func TestAddClip_RejectsUnknownDuration(t *testing.T) {
	s := New()
	if _, err := s.AddClip(types.SourceFile{Path: "/broken.mp4"}); !errors.Is(err, ErrInvalidSource) {
		t.Fatalf("expected ErrInvalidSource, got %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("store must stay empty")
	}
}

func TestSplitRippleScenario(t *testing.T) {
	s := New(seqIDs())
	got, _ := s.AddClip(src("/a.mp4", 30))
	want := types.Clip{ID: "c1", Source: src("/a.mp4", 30), InPoint: 0, OutPoint: 30, StartTime: 0}
	if got[0] != want {
		t.Fatalf("add: got %+v, want %+v", got[0], want)
	}

	got, err := s.SplitAtTime("c1", 10)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 clips after split, got %d", len(got))
	}
	a, b := got[0], got[1]
	if a.InPoint != 0 || a.OutPoint != 10 || a.StartTime != 0 {
		t.Fatalf("unexpected clip A: %+v", a)
	}
	if b.InPoint != 10 || b.OutPoint != 30 || b.StartTime != 10 {
		t.Fatalf("unexpected clip B: %+v", b)
	}

	got, err = s.RippleDelete(a.ID)
	if err != nil {
		t.Fatalf("ripple: %v", err)
	}
	if len(got) != 1 || got[0].InPoint != 10 || got[0].OutPoint != 30 || got[0].StartTime != 0 {
		t.Fatalf("unexpected result after ripple delete: %+v", got)
	}
}

func TestSplitAtTime_OutsideIsNoop(t *testing.T) {
	for _, at := range []float64{0, 5, 15, 20, -1} {
		t.Run(fmt.Sprint(at), func(t *testing.T) {
			s := New(seqIDs())
			_, _ = s.AddClip(src("/a.mp4", 10))
			_, _ = s.UpdateClip("c1", types.ClipPatch{StartTime: ptr(5.0)})
			before := s.Clips()

			if s.CanSplit("c1", at) {
				t.Fatalf("CanSplit(%v) must be false", at)
			}
			got, err := s.SplitAtTime("c1", at)
			if err != nil {
				t.Fatalf("split: %v", err)
			}
			if len(got) != 1 || got[0] != before[0] {
				t.Fatalf("split at %v changed state: %+v", at, got)
			}
		})
	}
}

func TestSplitAtTime_CoverageIsExact(t *testing.T) {
	s := New(seqIDs())
	_, _ = s.AddClip(src("/a.mp4", 40))
	_, _ = s.UpdateClip("c1", types.ClipPatch{InPoint: ptr(4.0), OutPoint: ptr(34.0), StartTime: ptr(2.5)})
	orig, _ := s.Get("c1")

	got, err := s.SplitAtTime("c1", 13.25)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	a, b := got[0], got[1]
	if a.OutPoint != b.InPoint {
		t.Fatalf("source ranges must be contiguous: %v vs %v", a.OutPoint, b.InPoint)
	}
	if a.TimelineEnd() != b.StartTime {
		t.Fatalf("timeline ranges must be contiguous: %v vs %v", a.TimelineEnd(), b.StartTime)
	}
	if a.InPoint != orig.InPoint || b.OutPoint != orig.OutPoint {
		t.Fatalf("source coverage changed: %+v %+v", a, b)
	}
	if a.StartTime != orig.StartTime || b.TimelineEnd() != orig.TimelineEnd() {
		t.Fatalf("timeline coverage changed: %+v %+v", a, b)
	}
	if a.Source != b.Source {
		t.Fatalf("both halves must reference the same source")
	}
}

func TestRemoveClip_LeavesGap(t *testing.T) {
	s := New(seqIDs())
	_, _ = s.AddClip(src("/a.mp4", 5))
	_, _ = s.AddClip(src("/b.mp4", 5))
	_, _ = s.AddClip(src("/c.mp4", 5))

	got, err := s.RemoveClip("c2")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(got) != 2 || got[1].StartTime != 10 {
		t.Fatalf("remove must not shift clips: %+v", got)
	}
}

func TestRippleDelete_ShiftsOnlyLaterClips(t *testing.T) {
	s := New(seqIDs())
	_, _ = s.AddClip(src("/a.mp4", 5))
	_, _ = s.AddClip(src("/b.mp4", 3))
	_, _ = s.AddClip(src("/c.mp4", 7))
	_, _ = s.AddClip(src("/d.mp4", 2))
	before := s.Clips()

	got, err := s.RippleDelete("c2")
	if err != nil {
		t.Fatalf("ripple: %v", err)
	}
	byID := map[string]types.Clip{}
	for _, c := range got {
		byID[c.ID] = c
	}
	if byID["c1"].StartTime != before[0].StartTime {
		t.Fatalf("earlier clip moved: %+v", byID["c1"])
	}
	if byID["c3"].StartTime != before[2].StartTime-3 || byID["c4"].StartTime != before[3].StartTime-3 {
		t.Fatalf("later clips not shifted by deleted duration: %+v", got)
	}

	// Re-adding an equivalent clip at the freed position restores the span.
	_, _ = s.RippleDelete("c4")
	_, _ = s.AddClip(src("/d.mp4", 2))
	if span := s.Clips()[len(s.Clips())-1].TimelineEnd(); span != 5+7+2 {
		t.Fatalf("unexpected span %v", span)
	}
}

func TestRippleDelete_ClampsAtZero(t *testing.T) {
	s := New(seqIDs())
	_, _ = s.AddClip(src("/a.mp4", 10))
	_, _ = s.AddClip(src("/b.mp4", 10))
	_, _ = s.UpdateClip("c2", types.ClipPatch{StartTime: ptr(2.0)})

	got, err := s.RippleDelete("c1")
	if err != nil {
		t.Fatalf("ripple: %v", err)
	}
	if got[0].StartTime != 0 {
		t.Fatalf("start time must clamp to 0, got %v", got[0].StartTime)
	}
}

func TestUnknownIDs(t *testing.T) {
	s := New()
	if _, err := s.UpdateClip("nope", types.ClipPatch{}); !errors.Is(err, ErrClipNotFound) {
		t.Fatalf("update: %v", err)
	}
	if _, err := s.RemoveClip("nope"); !errors.Is(err, ErrClipNotFound) {
		t.Fatalf("remove: %v", err)
	}
	if _, err := s.RippleDelete("nope"); !errors.Is(err, ErrClipNotFound) {
		t.Fatalf("ripple: %v", err)
	}
	if _, err := s.SplitAtTime("nope", 1); !errors.Is(err, ErrClipNotFound) {
		t.Fatalf("split: %v", err)
	}
}

func TestUpdateClip_RejectsInvalidRanges(t *testing.T) {
	tests := []struct {
		name  string
		patch types.ClipPatch
	}{
		{"negative in", types.ClipPatch{InPoint: ptr(-1.0)}},
		{"out past source", types.ClipPatch{OutPoint: ptr(10.5)}},
		{"in after out", types.ClipPatch{InPoint: ptr(8.0), OutPoint: ptr(3.0)}},
		{"in equals out", types.ClipPatch{InPoint: ptr(4.0), OutPoint: ptr(4.0)}},
		{"negative start", types.ClipPatch{StartTime: ptr(-0.5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(seqIDs())
			_, _ = s.AddClip(src("/a.mp4", 10))
			before, _ := s.Get("c1")
			if _, err := s.UpdateClip("c1", tt.patch); !errors.Is(err, ErrInvalidClipRange) {
				t.Fatalf("expected ErrInvalidClipRange, got %v", err)
			}
			after, _ := s.Get("c1")
			if before != after {
				t.Fatalf("rejected update mutated clip: %+v", after)
			}
		})
	}
}

func TestClips_TieBreakKeepsInsertionOrder(t *testing.T) {
	s := New(seqIDs())
	_, _ = s.AddClip(src("/a.mp4", 4))
	_, _ = s.AddClip(src("/b.mp4", 4))
	_, _ = s.AddClip(src("/c.mp4", 4))
	_, _ = s.UpdateClip("c3", types.ClipPatch{StartTime: ptr(0.0)})

	got := s.Clips()
	if got[0].ID != "c1" || got[1].ID != "c3" || got[2].ID != "c2" {
		t.Fatalf("unexpected order: %s %s %s", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestRandomEdits_PreserveInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := New(seqIDs())
	for step := 0; step < 500; step++ {
		all := s.Raw()
		switch op := rng.Intn(5); {
		case op == 0 || len(all) == 0:
			_, _ = s.AddClip(src(fmt.Sprintf("/%d.mp4", step), 1+rng.Float64()*20))
		case op == 1:
			_, _ = s.RemoveClip(all[rng.Intn(len(all))].ID)
		case op == 2:
			c := all[rng.Intn(len(all))]
			_, _ = s.UpdateClip(c.ID, types.ClipPatch{
				InPoint:   ptr(rng.Float64()*30 - 5),
				OutPoint:  ptr(rng.Float64()*30 - 5),
				StartTime: ptr(rng.Float64()*60 - 10),
			})
		case op == 3:
			c := all[rng.Intn(len(all))]
			_, _ = s.SplitAtTime(c.ID, c.StartTime+rng.Float64()*c.Duration()*1.2)
		default:
			_, _ = s.RippleDelete(all[rng.Intn(len(all))].ID)
		}
		for _, c := range s.Clips() {
			if !(0 <= c.InPoint && c.InPoint < c.OutPoint && c.OutPoint <= c.Source.Duration) {
				t.Fatalf("step %d: bad source range %+v", step, c)
			}
			if c.StartTime < 0 {
				t.Fatalf("step %d: negative start %+v", step, c)
			}
		}
	}
}

func ptr[T any](v T) *T { return &v }
