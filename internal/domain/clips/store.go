// Package clips owns the ordered set of clips placed on the timeline.
package clips

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/forPelevin/tlcut/internal/domain/timeline"
	"github.com/forPelevin/tlcut/internal/types"
)

var (
	ErrClipNotFound     = errors.New("clip not found")
	ErrInvalidSource    = errors.New("invalid source file")
	ErrInvalidClipRange = errors.New("invalid clip range")
)

// Store keeps clips in insertion order and hands out copies sorted by start time.
// It is not safe for concurrent use.
type Store struct {
	clips []types.Clip
	newID func() string
}

type Option func(*Store)

// WithIDFunc replaces the uuid-based id generator.
func WithIDFunc(f func() string) Option {
	return func(s *Store) { s.newID = f }
}

func New(opts ...Option) *Store {
	s := &Store{newID: uuid.NewString}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Clips returns the clips ascending by StartTime; equal start times keep insertion order.
func (s *Store) Clips() []types.Clip {
	out := append([]types.Clip(nil), s.clips...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out
}

// Raw returns the clips in insertion order.
func (s *Store) Raw() []types.Clip {
	return append([]types.Clip(nil), s.clips...)
}

func (s *Store) Len() int { return len(s.clips) }

func (s *Store) Get(id string) (types.Clip, error) {
	i := s.index(id)
	if i < 0 {
		return types.Clip{}, fmt.Errorf("%w: %s", ErrClipNotFound, id)
	}
	return s.clips[i], nil
}

// Replace swaps the whole content, e.g. when restoring a history entry.
// Every clip is validated first; on error the store is left untouched.
func (s *Store) Replace(clips []types.Clip) error {
	seen := make(map[string]struct{}, len(clips))
	for _, c := range clips {
		if c.ID == "" {
			return fmt.Errorf("%w: empty id", ErrInvalidClipRange)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidClipRange, c.ID)
		}
		seen[c.ID] = struct{}{}
		if err := validate(c); err != nil {
			return err
		}
	}
	s.clips = append([]types.Clip(nil), clips...)
	return nil
}

// AddClip appends a clip covering the whole source right after the current
// rightmost timeline end (or at 0 on an empty timeline).
func (s *Store) AddClip(src types.SourceFile) ([]types.Clip, error) {
	if err := validateSource(src); err != nil {
		return nil, err
	}
	s.clips = append(s.clips, types.Clip{
		ID:        s.newID(),
		Source:    src,
		InPoint:   0,
		OutPoint:  src.Duration,
		StartTime: timeline.Span(s.clips),
	})
	return s.Clips(), nil
}

// AddVideoToTimeline adds another source to an existing edit. It always appends.
func (s *Store) AddVideoToTimeline(src types.SourceFile) ([]types.Clip, error) {
	return s.AddClip(src)
}

// UpdateClip applies a patch. The result must still satisfy the clip invariants,
// otherwise ErrInvalidClipRange is returned and nothing changes.
func (s *Store) UpdateClip(id string, p types.ClipPatch) ([]types.Clip, error) {
	i := s.index(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrClipNotFound, id)
	}
	c := s.clips[i]
	if p.InPoint != nil {
		c.InPoint = *p.InPoint
	}
	if p.OutPoint != nil {
		c.OutPoint = *p.OutPoint
	}
	if p.StartTime != nil {
		c.StartTime = *p.StartTime
	}
	if err := validate(c); err != nil {
		return nil, err
	}
	s.clips[i] = c
	return s.Clips(), nil
}

// RemoveClip deletes a clip and leaves a gap where it was.
func (s *Store) RemoveClip(id string) ([]types.Clip, error) {
	i := s.index(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrClipNotFound, id)
	}
	s.clips = append(s.clips[:i:i], s.clips[i+1:]...)
	return s.Clips(), nil
}

// RippleDelete deletes a clip and pulls every clip that starts strictly after it
// left by its duration. Start times never go below zero.
func (s *Store) RippleDelete(id string) ([]types.Clip, error) {
	i := s.index(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrClipNotFound, id)
	}
	gone := s.clips[i]
	rest := append(s.clips[:i:i], s.clips[i+1:]...)
	shift := gone.Duration()
	for j := range rest {
		if rest[j].StartTime > gone.StartTime {
			rest[j].StartTime = math.Max(0, rest[j].StartTime-shift)
		}
	}
	s.clips = rest
	return s.Clips(), nil
}

// CanSplit reports whether SplitAtTime would change anything.
func (s *Store) CanSplit(id string, at float64) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	c := s.clips[i]
	return timeline.StrictlyInside(timeline.Interval{Start: c.StartTime, End: c.TimelineEnd()}, at)
}

// SplitAtTime cuts a clip at a playhead position. A playhead outside the open
// interval (StartTime, TimelineEnd) leaves the store unchanged.
func (s *Store) SplitAtTime(id string, at float64) ([]types.Clip, error) {
	i := s.index(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrClipNotFound, id)
	}
	if !s.CanSplit(id, at) {
		return s.Clips(), nil
	}
	orig := s.clips[i]
	cut := orig.InPoint + (at - orig.StartTime)

	left := orig
	left.OutPoint = cut
	right := types.Clip{
		ID:        s.newID(),
		Source:    orig.Source,
		InPoint:   cut,
		OutPoint:  orig.OutPoint,
		StartTime: at,
	}
	s.clips[i] = left
	s.clips = append(s.clips, right)
	return s.Clips(), nil
}

func (s *Store) index(id string) int {
	for i := range s.clips {
		if s.clips[i].ID == id {
			return i
		}
	}
	return -1
}

func validateSource(src types.SourceFile) error {
	if src.Path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidSource)
	}
	if math.IsNaN(src.Duration) || math.IsInf(src.Duration, 0) || src.Duration <= 0 {
		return fmt.Errorf("%w: %s has unknown duration", ErrInvalidSource, src.Path)
	}
	return nil
}

func validate(c types.Clip) error {
	if err := validateSource(c.Source); err != nil {
		return err
	}
	switch {
	case math.IsNaN(c.InPoint) || math.IsNaN(c.OutPoint) || math.IsNaN(c.StartTime):
		return fmt.Errorf("%w: NaN field on clip %s", ErrInvalidClipRange, c.ID)
	case c.InPoint < 0:
		return fmt.Errorf("%w: in point %.3f < 0", ErrInvalidClipRange, c.InPoint)
	case c.OutPoint <= c.InPoint:
		return fmt.Errorf("%w: out point %.3f <= in point %.3f", ErrInvalidClipRange, c.OutPoint, c.InPoint)
	case c.OutPoint > c.Source.Duration:
		return fmt.Errorf("%w: out point %.3f past source duration %.3f", ErrInvalidClipRange, c.OutPoint, c.Source.Duration)
	case c.StartTime < 0 || math.IsInf(c.StartTime, 0):
		return fmt.Errorf("%w: start time %.3f", ErrInvalidClipRange, c.StartTime)
	}
	return nil
}
