package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const sourceMarker = "source"

// Resolution is an explicit output size; the zero value means "inherit from source".
type Resolution struct {
	Width  int
	Height int
}

func ParseResolution(s string) (Resolution, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == sourceMarker {
		return Resolution{}, nil
	}
	w, h, ok := strings.Cut(s, "x")
	if !ok {
		return Resolution{}, fmt.Errorf("resolution %q: want WxH or %q", s, sourceMarker)
	}
	wi, err := strconv.Atoi(w)
	if err != nil {
		return Resolution{}, fmt.Errorf("resolution %q: width: %w", s, err)
	}
	hi, err := strconv.Atoi(h)
	if err != nil {
		return Resolution{}, fmt.Errorf("resolution %q: height: %w", s, err)
	}
	if wi <= 0 || hi <= 0 {
		return Resolution{}, fmt.Errorf("resolution %q: dimensions must be > 0", s)
	}
	return Resolution{Width: wi, Height: hi}, nil
}

func (r Resolution) IsSource() bool { return r.Width == 0 && r.Height == 0 }

func (r Resolution) String() string {
	if r.IsSource() {
		return sourceMarker
	}
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

func (r Resolution) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Resolution) UnmarshalText(b []byte) error {
	v, err := ParseResolution(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// FrameRate is frames per second; zero means "inherit from source".
type FrameRate float64

const MaxFrameRate = 240

func ParseFrameRate(s string) (FrameRate, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == sourceMarker {
		return 0, nil
	}
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0, fmt.Errorf("frame rate %q: invalid fraction", s)
		}
		s = strconv.FormatFloat(n/d, 'f', -1, 64)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("frame rate %q: %w", s, err)
	}
	if !(v > 0) || v > MaxFrameRate {
		return 0, fmt.Errorf("frame rate %q: must be in (0, %d]", s, MaxFrameRate)
	}
	return FrameRate(v), nil
}

func (f FrameRate) IsSource() bool { return f == 0 }

func (f FrameRate) String() string {
	if f.IsSource() {
		return sourceMarker
	}
	return strconv.FormatFloat(float64(f), 'f', -1, 64)
}

func (f FrameRate) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *FrameRate) UnmarshalText(b []byte) error {
	v, err := ParseFrameRate(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// UnmarshalJSON also accepts a bare number.
func (f *FrameRate) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		return f.UnmarshalText([]byte(strconv.FormatFloat(n, 'f', -1, 64)))
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("frame rate: %w", err)
	}
	return f.UnmarshalText([]byte(s))
}

// Bitrate is a target video bitrate in kbps; zero means "auto" (CRF governs quality).
type Bitrate int

const autoMarker = "auto"

func ParseBitrate(s string) (Bitrate, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == autoMarker {
		return 0, nil
	}
	s = strings.TrimSuffix(s, "k")
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bitrate %q: %w", s, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("bitrate %q: must be > 0 kbps", s)
	}
	return Bitrate(v), nil
}

func (b Bitrate) IsAuto() bool { return b == 0 }

func (b Bitrate) String() string {
	if b.IsAuto() {
		return autoMarker
	}
	return strconv.Itoa(int(b))
}

func (b Bitrate) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *Bitrate) UnmarshalText(text []byte) error {
	v, err := ParseBitrate(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// UnmarshalJSON also accepts a bare number.
func (b *Bitrate) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		if n == 0 {
			*b = 0
			return nil
		}
		return b.UnmarshalText([]byte(strconv.Itoa(n)))
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("bitrate: %w", err)
	}
	return b.UnmarshalText([]byte(s))
}

// Preset is the encoder speed/effort trade-off, ordered fastest to slowest.
type Preset string

const (
	PresetUltrafast Preset = "ultrafast"
	PresetSuperfast Preset = "superfast"
	PresetVeryfast  Preset = "veryfast"
	PresetFaster    Preset = "faster"
	PresetFast      Preset = "fast"
	PresetMedium    Preset = "medium"
	PresetSlow      Preset = "slow"
	PresetSlower    Preset = "slower"
	PresetVeryslow  Preset = "veryslow"
)

var presetOrder = []Preset{
	PresetUltrafast, PresetSuperfast, PresetVeryfast, PresetFaster, PresetFast,
	PresetMedium, PresetSlow, PresetSlower, PresetVeryslow,
}

// Presets lists every preset from fastest/largest to slowest/smallest.
func Presets() []Preset { return append([]Preset(nil), presetOrder...) }

// Rank is the preset's position in the speed order, or -1 if unknown.
func (p Preset) Rank() int {
	for i, v := range presetOrder {
		if v == p {
			return i
		}
	}
	return -1
}

func (p Preset) Valid() bool { return p.Rank() >= 0 }

const (
	MinCRF = 0
	MaxCRF = 51
)

// ExportSettings are the user-facing encoding choices of a project.
type ExportSettings struct {
	Format     string     `json:"format" yaml:"format"`
	Codec      string     `json:"codec" yaml:"codec"`
	Resolution Resolution `json:"resolution" yaml:"resolution"`
	FrameRate  FrameRate  `json:"fps" yaml:"fps"`
	Bitrate    Bitrate    `json:"bitrate" yaml:"bitrate"`
	CRF        int        `json:"crf" yaml:"crf"`
	Preset     Preset     `json:"preset" yaml:"preset"`
}

func DefaultExportSettings() ExportSettings {
	return ExportSettings{
		Format: "mp4",
		Codec:  "h264",
		CRF:    23,
		Preset: PresetMedium,
	}
}

// Validate checks each field against its own domain.
func (s ExportSettings) Validate() error {
	if strings.TrimSpace(s.Format) == "" {
		return fmt.Errorf("format is empty")
	}
	if strings.TrimSpace(s.Codec) == "" {
		return fmt.Errorf("codec is empty")
	}
	if s.Resolution.Width < 0 || s.Resolution.Height < 0 ||
		(s.Resolution.Width == 0) != (s.Resolution.Height == 0) {
		return fmt.Errorf("resolution %dx%d is invalid", s.Resolution.Width, s.Resolution.Height)
	}
	if fps := float64(s.FrameRate); math.IsNaN(fps) || fps < 0 || fps > MaxFrameRate {
		return fmt.Errorf("fps must be in [0, %d]", MaxFrameRate)
	}
	if s.Bitrate < 0 {
		return fmt.Errorf("bitrate must be >= 0")
	}
	if s.CRF < MinCRF || s.CRF > MaxCRF {
		return fmt.Errorf("crf must be in [%d, %d], got %d", MinCRF, MaxCRF, s.CRF)
	}
	if !s.Preset.Valid() {
		return fmt.Errorf("unknown preset %q, want one of %v", s.Preset, Presets())
	}
	return nil
}
