package exportplan

import (
	"errors"
	"reflect"
	"testing"

	"github.com/forPelevin/tlcut/internal/types"
)

func clip(id, path string, start, in, out float64) types.Clip {
	return types.Clip{
		ID:        id,
		Source:    types.SourceFile{Path: path, Duration: 60, Width: 1280, Height: 720},
		InPoint:   in,
		OutPoint:  out,
		StartTime: start,
	}
}

func TestCompile_EmptyTimeline(t *testing.T) {
	spec, err := Compile(Input{Settings: types.DefaultExportSettings()})
	if !errors.Is(err, ErrEmptyTimeline) {
		t.Fatalf("expected ErrEmptyTimeline, got %v", err)
	}
	if !reflect.DeepEqual(spec, types.RenderSpec{}) {
		t.Fatalf("expected zero spec on error, got %+v", spec)
	}
}

func TestCompile_TwoClipScenario(t *testing.T) {
	settings := types.DefaultExportSettings()
	settings.Format = "mp4"
	settings.Codec = "h264"

	// Passed out of order on purpose.
	spec, err := Compile(Input{
		Clips: []types.Clip{
			clip("b", "/b.mp4", 5, 0, 3),
			clip("a", "/a.mp4", 0, 0, 5),
		},
		Settings: settings,
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(spec.Segments) != 2 || spec.Segments[0].SourcePath != "/a.mp4" || spec.Segments[1].SourcePath != "/b.mp4" {
		t.Fatalf("unexpected segments: %+v", spec.Segments)
	}
	if spec.Crop != nil {
		t.Fatalf("expected no crop, got %+v", spec.Crop)
	}
	if !spec.Video.Resolution.IsSource() || !spec.Video.FrameRate.IsSource() {
		t.Fatalf("expected inherit-from-source markers, got %v / %v", spec.Video.Resolution, spec.Video.FrameRate)
	}
	if spec.Audio.Mode != types.AudioEncode || spec.Audio.Codec != "aac" {
		t.Fatalf("unexpected audio: %+v", spec.Audio)
	}
	if spec.TotalDuration != 8 {
		t.Fatalf("total duration = %v, want 8", spec.TotalDuration)
	}
	if !reflect.DeepEqual(spec.Stages, []types.Stage{types.StageConcat}) {
		t.Fatalf("unexpected stages: %v", spec.Stages)
	}
}

func TestCompile_GapsAreNotRendered(t *testing.T) {
	spec, err := Compile(Input{
		Clips: []types.Clip{
			clip("a", "/a.mp4", 0, 10, 12),
			clip("b", "/a.mp4", 100, 20, 21),
		},
		Settings: types.DefaultExportSettings(),
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if spec.TotalDuration != 3 {
		t.Fatalf("gap must not count toward duration, got %v", spec.TotalDuration)
	}
	if spec.Segments[1].InPoint != 20 || spec.Segments[1].OutPoint != 21 {
		t.Fatalf("segment must carry source range only: %+v", spec.Segments[1])
	}
}

func TestCompile_TieBreakUsesInputOrder(t *testing.T) {
	spec, err := Compile(Input{
		Clips: []types.Clip{
			clip("x", "/x.mp4", 2, 0, 1),
			clip("y", "/y.mp4", 2, 0, 1),
			clip("z", "/z.mp4", 0, 0, 1),
		},
		Settings: types.DefaultExportSettings(),
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	got := []string{spec.Segments[0].SourcePath, spec.Segments[1].SourcePath, spec.Segments[2].SourcePath}
	want := []string{"/z.mp4", "/x.mp4", "/y.mp4"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestCompile_Deterministic(t *testing.T) {
	in := Input{
		Clips: []types.Clip{
			clip("a", "/a.mp4", 0, 0, 5),
			clip("b", "/b.mp4", 5, 1, 4),
		},
		Crop:     types.CropSettings{Enabled: true, X: 10, Y: 10, Width: 640, Height: 360},
		Color:    types.ColorAdjust{Enabled: true, Brightness: 0.1, Contrast: 1.2, Saturation: 1},
		Settings: types.DefaultExportSettings(),
	}
	first, err := Compile(in)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	second, err := Compile(in)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("compile is not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestCompile_QualityControlsAreExclusive(t *testing.T) {
	clips := []types.Clip{clip("a", "/a.mp4", 0, 0, 5)}

	auto := types.DefaultExportSettings()
	spec, err := Compile(Input{Clips: clips, Settings: auto})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if spec.Video.CRF == nil || *spec.Video.CRF != 23 || spec.Video.BitrateKbps != 0 {
		t.Fatalf("auto bitrate must use crf only: %+v", spec.Video)
	}

	fixed := types.DefaultExportSettings()
	fixed.Bitrate = 4000
	spec, err = Compile(Input{Clips: clips, Settings: fixed})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if spec.Video.CRF != nil || spec.Video.BitrateKbps != 4000 {
		t.Fatalf("explicit bitrate must drop crf: %+v", spec.Video)
	}
}

func TestCompile_StageOrder(t *testing.T) {
	settings := types.DefaultExportSettings()
	settings.Resolution = types.Resolution{Width: 640, Height: 360}
	settings.FrameRate = 24
	spec, err := Compile(Input{
		Clips:    []types.Clip{clip("a", "/a.mp4", 0, 0, 5)},
		Crop:     types.CropSettings{Enabled: true, Width: 100, Height: 100},
		Color:    types.ColorAdjust{Enabled: true, Contrast: 1, Saturation: 1},
		Settings: settings,
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	want := []types.Stage{types.StageConcat, types.StageCrop, types.StageColor, types.StageScale, types.StageFPS}
	if !reflect.DeepEqual(spec.Stages, want) {
		t.Fatalf("stages = %v, want %v", spec.Stages, want)
	}
}

func TestCompile_AudioPerFormat(t *testing.T) {
	tests := []struct {
		format, codec string
		mode          types.AudioMode
	}{
		{"mp4", "h264", types.AudioEncode},
		{"mkv", "vp9", types.AudioPassthrough},
		{"webm", "vp9", types.AudioEncode},
		{"gif", "gif", types.AudioNone},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			s := types.DefaultExportSettings()
			s.Format, s.Codec = tt.format, tt.codec
			spec, err := Compile(Input{Clips: []types.Clip{clip("a", "/a.mp4", 0, 0, 5)}, Settings: s})
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			if spec.Audio.Mode != tt.mode {
				t.Fatalf("audio mode = %s, want %s", spec.Audio.Mode, tt.mode)
			}
			if tt.mode == types.AudioNone && spec.Audio.Codec != "" {
				t.Fatalf("no-audio format must not name an audio codec")
			}
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	clips := []types.Clip{clip("a", "/a.mp4", 0, 0, 5)}
	tests := []struct {
		name    string
		in      Input
		wantErr error
	}{
		{
			name:    "codec not valid for container",
			in:      Input{Clips: clips, Settings: types.ExportSettings{Format: "webm", Codec: "h264", CRF: 23, Preset: types.PresetMedium}},
			wantErr: ErrUnsupportedFormatCodecPairing,
		},
		{
			name:    "unknown container",
			in:      Input{Clips: clips, Settings: types.ExportSettings{Format: "flv", Codec: "h264", CRF: 23, Preset: types.PresetMedium}},
			wantErr: ErrUnsupportedFormatCodecPairing,
		},
		{
			name:    "crop past source edge",
			in:      Input{Clips: clips, Crop: types.CropSettings{Enabled: true, X: 1000, Width: 300, Height: 10}, Settings: types.DefaultExportSettings()},
			wantErr: ErrInvalidCropRegion,
		},
		{
			name:    "crop zero size",
			in:      Input{Clips: clips, Crop: types.CropSettings{Enabled: true}, Settings: types.DefaultExportSettings()},
			wantErr: ErrInvalidCropRegion,
		},
		{
			name:    "crf out of range",
			in:      Input{Clips: clips, Settings: types.ExportSettings{Format: "mp4", Codec: "h264", CRF: 60, Preset: types.PresetMedium}},
			wantErr: ErrInvalidExportSettings,
		},
		{
			name:    "color out of range",
			in:      Input{Clips: clips, Color: types.ColorAdjust{Enabled: true, Contrast: 5, Saturation: 1}, Settings: types.DefaultExportSettings()},
			wantErr: ErrInvalidColorAdjust,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := Compile(tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if len(spec.Segments) != 0 {
				t.Fatalf("no partial spec on error")
			}
		})
	}
}

func TestCompile_DisabledCropIgnored(t *testing.T) {
	spec, err := Compile(Input{
		Clips:    []types.Clip{clip("a", "/a.mp4", 0, 0, 5)},
		Crop:     types.CropSettings{Enabled: false, X: -50, Width: 99999},
		Settings: types.DefaultExportSettings(),
	})
	if err != nil {
		t.Fatalf("disabled crop must not be validated: %v", err)
	}
	if spec.Crop != nil {
		t.Fatalf("disabled crop must not be attached")
	}
}

func TestCompile_CarriesSilentSources(t *testing.T) {
	quiet := clip("b", "/b.mp4", 5, 0, 3)
	quiet.Source.Silent = true
	spec, err := Compile(Input{
		Clips:    []types.Clip{clip("a", "/a.mp4", 0, 0, 5), quiet},
		Settings: types.DefaultExportSettings(),
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if spec.Segments[0].Silent || !spec.Segments[1].Silent {
		t.Fatalf("silence must follow the source: %+v", spec.Segments)
	}
}
