// Package exportplan compiles timeline state into a RenderSpec.
//
// Compile is pure and deterministic: the same input always yields a field-for-field
// identical spec, and every error is reported before anything is emitted.
package exportplan

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/forPelevin/tlcut/internal/types"
)

var (
	ErrEmptyTimeline                 = errors.New("timeline is empty")
	ErrInvalidCropRegion             = errors.New("invalid crop region")
	ErrInvalidColorAdjust            = errors.New("invalid color adjustment")
	ErrUnsupportedFormatCodecPairing = errors.New("unsupported format/codec pairing")
	ErrInvalidExportSettings         = errors.New("invalid export settings")
)

type Input struct {
	Clips    []types.Clip
	Crop     types.CropSettings
	Color    types.ColorAdjust
	Settings types.ExportSettings
}

// Compile turns clips and project settings into one render job description.
//
// Clips are ordered by StartTime; equal start times keep the order they were
// given in. Timeline gaps are not rendered: segments play back to back.
func Compile(in Input) (types.RenderSpec, error) {
	if len(in.Clips) == 0 {
		return types.RenderSpec{}, ErrEmptyTimeline
	}
	if err := in.Settings.Validate(); err != nil {
		return types.RenderSpec{}, fmt.Errorf("%w: %v", ErrInvalidExportSettings, err)
	}
	format, codec, err := resolveFormat(in.Settings.Format, in.Settings.Codec)
	if err != nil {
		return types.RenderSpec{}, err
	}

	sorted := append([]types.Clip(nil), in.Clips...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartTime < sorted[j].StartTime })

	if in.Crop.Enabled {
		if err := ValidateCrop(in.Crop, sorted[0].Source); err != nil {
			return types.RenderSpec{}, err
		}
	}
	if in.Color.Enabled {
		if err := ValidateColor(in.Color); err != nil {
			return types.RenderSpec{}, err
		}
	}

	spec := types.RenderSpec{
		Container: format.Name,
		Segments:  make([]types.Segment, 0, len(sorted)),
		Stages:    []types.Stage{types.StageConcat},
	}
	for _, c := range sorted {
		spec.Segments = append(spec.Segments, types.Segment{
			SourcePath: c.Source.Path,
			InPoint:    c.InPoint,
			OutPoint:   c.OutPoint,
			Width:      c.Source.Width,
			Height:     c.Source.Height,
			Silent:     c.Source.Silent,
		})
		spec.TotalDuration += c.OutPoint - c.InPoint
	}

	if in.Crop.Enabled {
		spec.Crop = &types.CropRegion{X: in.Crop.X, Y: in.Crop.Y, Width: in.Crop.Width, Height: in.Crop.Height}
		spec.Stages = append(spec.Stages, types.StageCrop)
	}
	if in.Color.Enabled {
		c := in.Color
		spec.Color = &c
		spec.Stages = append(spec.Stages, types.StageColor)
	}

	spec.Video = types.VideoParams{
		Codec:      codec,
		Resolution: in.Settings.Resolution,
		FrameRate:  in.Settings.FrameRate,
		Preset:     in.Settings.Preset,
	}
	if !in.Settings.Resolution.IsSource() {
		spec.Stages = append(spec.Stages, types.StageScale)
	}
	if !in.Settings.FrameRate.IsSource() {
		spec.Stages = append(spec.Stages, types.StageFPS)
	}
	if in.Settings.Bitrate.IsAuto() {
		crf := in.Settings.CRF
		spec.Video.CRF = &crf
	} else {
		spec.Video.BitrateKbps = int(in.Settings.Bitrate)
	}

	spec.Audio = types.AudioParams{Mode: format.Audio, Codec: format.AudioCodec}
	return spec, nil
}

func resolveFormat(formatName, codec string) (Format, string, error) {
	f, ok := LookupFormat(formatName)
	if !ok {
		return Format{}, "", fmt.Errorf("%w: unknown format %q (supported: %s)",
			ErrUnsupportedFormatCodecPairing, formatName, strings.Join(FormatNames(), ", "))
	}
	codec = strings.ToLower(strings.TrimSpace(codec))
	if !f.SupportsCodec(codec) {
		return Format{}, "", fmt.Errorf("%w: %s cannot carry %q (supported: %s)",
			ErrUnsupportedFormatCodecPairing, f.Name, codec, strings.Join(f.Codecs, ", "))
	}
	return f, codec, nil
}

// ValidateCrop checks an enabled crop region against the bounds of src.
func ValidateCrop(c types.CropSettings, src types.SourceFile) error {
	switch {
	case c.Width < 1 || c.Height < 1:
		return fmt.Errorf("%w: size %dx%d must be at least 1x1", ErrInvalidCropRegion, c.Width, c.Height)
	case c.X < 0 || c.Y < 0:
		return fmt.Errorf("%w: offset %d,%d must not be negative", ErrInvalidCropRegion, c.X, c.Y)
	case src.Width <= 0 || src.Height <= 0:
		return fmt.Errorf("%w: source %s has unknown dimensions", ErrInvalidCropRegion, src.Path)
	case c.X+c.Width > src.Width || c.Y+c.Height > src.Height:
		return fmt.Errorf("%w: %dx%d+%d+%d exceeds source %dx%d",
			ErrInvalidCropRegion, c.Width, c.Height, c.X, c.Y, src.Width, src.Height)
	}
	return nil
}

// ValidateColor checks each adjustment against the range the engine accepts.
func ValidateColor(c types.ColorAdjust) error {
	check := func(name string, v, lo, hi float64) error {
		if math.IsNaN(v) || v < lo || v > hi {
			return fmt.Errorf("%w: %s %v outside [%v, %v]", ErrInvalidColorAdjust, name, v, lo, hi)
		}
		return nil
	}
	if err := check("brightness", c.Brightness, -1, 1); err != nil {
		return err
	}
	if err := check("contrast", c.Contrast, 0, 2); err != nil {
		return err
	}
	return check("saturation", c.Saturation, 0, 3)
}
