package timeline

import (
	"errors"
	"fmt"
	"math"

	"github.com/forPelevin/tlcut/internal/types"
)

var ErrInvalidInterval = errors.New("invalid interval")

// Interval is a half-open range [Start, End) in seconds.
type Interval struct {
	Start float64
	End   float64
}

// New rejects NaN bounds and intervals whose end is not after their start.
func New(start, end float64) (Interval, error) {
	if math.IsNaN(start) || math.IsNaN(end) || math.IsInf(start, 0) || math.IsInf(end, 0) {
		return Interval{}, fmt.Errorf("%w: [%v, %v)", ErrInvalidInterval, start, end)
	}
	if end <= start {
		return Interval{}, fmt.Errorf("%w: end %v <= start %v", ErrInvalidInterval, end, start)
	}
	return Interval{Start: start, End: end}, nil
}

// OfClip is the clip's span on the timeline.
func OfClip(c types.Clip) (Interval, error) {
	return New(c.StartTime, c.TimelineEnd())
}

func (i Interval) Duration() float64 { return i.End - i.Start }

func Overlaps(a, b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

// StrictlyInside reports whether t lies in the open interval (Start, End).
func StrictlyInside(i Interval, t float64) bool {
	return t > i.Start && t < i.End
}

// Span is the rightmost timeline end over all clips, or 0 for none.
func Span(clips []types.Clip) float64 {
	var end float64
	for _, c := range clips {
		if e := c.TimelineEnd(); e > end {
			end = e
		}
	}
	return end
}

// Gaps lists the empty stretches between consecutive clips sorted by start time.
func Gaps(sorted []types.Clip) []Interval {
	var out []Interval
	var cursor float64
	for _, c := range sorted {
		if c.StartTime > cursor {
			out = append(out, Interval{Start: cursor, End: c.StartTime})
		}
		if e := c.TimelineEnd(); e > cursor {
			cursor = e
		}
	}
	return out
}

// Conflict is a pair of clips sharing timeline time. Where they overlap the
// clip earlier in the list wins.
type Conflict struct {
	First     string
	Second    string
	Overlap   Interval
	SameStart bool
}

// Conflicts lists every overlapping pair of clips sorted by start time.
// Clips with an invalid span are skipped.
func Conflicts(sorted []types.Clip) []Conflict {
	var out []Conflict
	for i, a := range sorted {
		ai, err := OfClip(a)
		if err != nil {
			continue
		}
		for _, b := range sorted[i+1:] {
			bi, err := OfClip(b)
			if err != nil {
				continue
			}
			if bi.Start >= ai.End {
				break
			}
			if !Overlaps(ai, bi) {
				continue
			}
			out = append(out, Conflict{
				First:     a.ID,
				Second:    b.ID,
				Overlap:   Interval{Start: math.Max(ai.Start, bi.Start), End: math.Min(ai.End, bi.End)},
				SameStart: ai.Start == bi.Start,
			})
		}
	}
	return out
}
