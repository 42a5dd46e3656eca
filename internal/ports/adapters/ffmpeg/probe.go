package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/forPelevin/tlcut/internal/ports"
	"github.com/forPelevin/tlcut/internal/types"
)

// Probe reads duration, dimensions, container and codec of path with ffprobe.
func (a *Adapter) Probe(ctx context.Context, path string) (types.SourceFile, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	b, err := cmd.Output()
	if err != nil {
		return types.SourceFile{}, fmt.Errorf("%w: ffprobe %s: %v\n%s", ports.ErrProbeFailed, path, err, stderr.String())
	}
	src, err := parseProbe(b)
	if err != nil {
		return types.SourceFile{}, fmt.Errorf("%w: %s: %v", ports.ErrProbeFailed, path, err)
	}
	src.Path = path
	return src, nil
}

type probeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		Size       string `json:"size"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
		Tags      struct {
			Rotate string `json:"rotate"`
		} `json:"tags"`
	} `json:"streams"`
}

func parseProbe(b []byte) (types.SourceFile, error) {
	var p probeOutput
	if err := json.Unmarshal(b, &p); err != nil {
		return types.SourceFile{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	var src types.SourceFile
	// format_name is a comma list such as "mov,mp4,m4a,3gp,3g2,mj2".
	src.Format, _, _ = strings.Cut(p.Format.FormatName, ",")
	src.Duration = parseSeconds(p.Format.Duration)
	if n, err := strconv.ParseInt(p.Format.Size, 10, 64); err == nil {
		src.Size = n
	}

	video, audio := false, false
	for _, s := range p.Streams {
		if s.CodecType == "audio" {
			audio = true
		}
		if s.CodecType != "video" || video {
			continue
		}
		video = true
		src.Codec = s.CodecName
		src.Width, src.Height = s.Width, s.Height
		if r := strings.TrimPrefix(s.Tags.Rotate, "-"); r == "90" || r == "270" {
			src.Width, src.Height = src.Height, src.Width
		}
		if src.Duration == 0 {
			src.Duration = parseSeconds(s.Duration)
		}
	}
	if !video {
		return types.SourceFile{}, errors.New("no video stream")
	}
	src.Silent = !audio
	return src, nil
}

func parseSeconds(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
