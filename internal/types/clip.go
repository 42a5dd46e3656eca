package types

import "time"

// SourceFile describes a probed input video. It is never mutated after probing.
type SourceFile struct {
	Path     string  `json:"path" yaml:"path"`
	Duration float64 `json:"duration" yaml:"duration"`
	Width    int     `json:"width" yaml:"width"`
	Height   int     `json:"height" yaml:"height"`
	Format   string  `json:"format" yaml:"format"`
	Codec    string  `json:"codec" yaml:"codec"`
	Size     int64   `json:"size" yaml:"size"`
	// Silent is set when the file has no audio stream.
	Silent bool `json:"silent,omitempty" yaml:"silent,omitempty"`
}

// Clip is a trimmed reference into a SourceFile placed on the timeline.
// InPoint and OutPoint are source-relative seconds, StartTime is timeline-relative.
type Clip struct {
	ID        string     `json:"id" yaml:"id"`
	Source    SourceFile `json:"source" yaml:"source"`
	InPoint   float64    `json:"in_point" yaml:"in_point"`
	OutPoint  float64    `json:"out_point" yaml:"out_point"`
	StartTime float64    `json:"start_time" yaml:"start_time"`
}

func (c Clip) Duration() float64 { return c.OutPoint - c.InPoint }

func (c Clip) TimelineEnd() float64 { return c.StartTime + c.Duration() }

// ClipPatch carries the fields of an UpdateClip call; nil fields are left alone.
type ClipPatch struct {
	InPoint   *float64 `json:"in_point,omitempty"`
	OutPoint  *float64 `json:"out_point,omitempty"`
	StartTime *float64 `json:"start_time,omitempty"`
}

func (p ClipPatch) Empty() bool {
	return p.InPoint == nil && p.OutPoint == nil && p.StartTime == nil
}

// CropSettings is a single project-wide crop region in source pixels.
type CropSettings struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	X       int  `json:"x" yaml:"x"`
	Y       int  `json:"y" yaml:"y"`
	Width   int  `json:"width" yaml:"width"`
	Height  int  `json:"height" yaml:"height"`
}

// ColorAdjust is a project-wide brightness/contrast/saturation correction.
type ColorAdjust struct {
	Enabled    bool    `json:"enabled" yaml:"enabled"`
	Brightness float64 `json:"brightness" yaml:"brightness"`
	Contrast   float64 `json:"contrast" yaml:"contrast"`
	Saturation float64 `json:"saturation" yaml:"saturation"`
}

// NeutralColor leaves the picture untouched.
func NeutralColor() ColorAdjust {
	return ColorAdjust{Brightness: 0, Contrast: 1, Saturation: 1}
}

// Snapshot is the full editable state of a project at one point in time.
type Snapshot struct {
	Clips   []Clip         `json:"clips" yaml:"clips"`
	Crop    CropSettings   `json:"crop" yaml:"crop"`
	Color   ColorAdjust    `json:"color" yaml:"color"`
	Export  ExportSettings `json:"export" yaml:"export"`
	TakenAt time.Time      `json:"taken_at" yaml:"taken_at"`
}

// Clone returns a deep copy so later edits never alias the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Clips = append([]Clip(nil), s.Clips...)
	return out
}
