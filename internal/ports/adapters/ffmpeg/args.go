package ffmpeg

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/forPelevin/tlcut/internal/types"
)

var errNoSegments = errors.New("render spec has no segments")

var videoEncoders = map[string]string{
	"h264":   "libx264",
	"h265":   "libx265",
	"mpeg4":  "mpeg4",
	"vp8":    "libvpx",
	"vp9":    "libvpx-vp9",
	"av1":    "libsvtav1",
	"prores": "prores_ks",
	"gif":    "gif",
}

var audioEncoders = map[string]string{
	"aac":  "aac",
	"opus": "libopus",
	"mp3":  "libmp3lame",
}

var muxers = map[string]string{
	"mp4":  "mp4",
	"mov":  "mov",
	"mkv":  "matroska",
	"webm": "webm",
	"avi":  "avi",
	"gif":  "gif",
}

// BuildArgs turns a render spec into an ffmpeg command line writing to outPath.
// Progress goes to stdout as key=value lines; stderr carries errors only.
func BuildArgs(spec types.RenderSpec, outPath string, threads int) ([]string, error) {
	if len(spec.Segments) == 0 {
		return nil, errNoSegments
	}
	venc, ok := videoEncoders[spec.Video.Codec]
	if !ok {
		return nil, fmt.Errorf("no encoder for video codec %q", spec.Video.Codec)
	}
	mux, ok := muxers[spec.Container]
	if !ok {
		return nil, fmt.Errorf("no muxer for container %q", spec.Container)
	}

	args := []string{"-y", "-hide_banner", "-nostats", "-loglevel", "error", "-progress", "pipe:1"}
	for _, seg := range spec.Segments {
		args = append(args,
			"-ss", fmtSeconds(seg.InPoint),
			"-t", fmtSeconds(seg.Duration()),
			"-i", seg.SourcePath,
		)
	}

	withAudio := spec.Audio.Mode != types.AudioNone
	args = append(args, "-filter_complex", filterGraph(spec, withAudio), "-map", "[vout]")
	if withAudio {
		args = append(args, "-map", "[aout]")
	}

	args = append(args, "-c:v", venc)
	args = append(args, qualityArgs(spec.Video, venc)...)
	if pix := pixelFormat(venc); pix != "" {
		args = append(args, "-pix_fmt", pix)
	}
	if venc == "libx265" && (spec.Container == "mp4" || spec.Container == "mov") {
		args = append(args, "-tag:v", "hvc1")
	}

	switch spec.Audio.Mode {
	case types.AudioNone:
		args = append(args, "-an")
	case types.AudioEncode:
		aenc, ok := audioEncoders[spec.Audio.Codec]
		if !ok {
			return nil, fmt.Errorf("no encoder for audio codec %q", spec.Audio.Codec)
		}
		args = append(args, "-c:a", aenc, "-b:a", audioBitrate(aenc))
	}

	if threads > 0 && venc != "gif" {
		args = append(args, "-threads", strconv.Itoa(threads))
	}
	if mux == "mp4" || mux == "mov" {
		args = append(args, "-movflags", "+faststart")
	}
	if mux == "gif" {
		args = append(args, "-loop", "0")
	}
	args = append(args, "-f", mux, outPath)
	return args, nil
}

// Audio of every segment is brought to one rate and layout before concat.
const (
	audioRate   = 48000
	audioLayout = "stereo"
)

// audioChain feeds segment i into concat. A source without audio gets
// generated silence of the segment's length.
func audioChain(i int, seg types.Segment) string {
	if seg.Silent {
		return fmt.Sprintf("anullsrc=r=%d:cl=%s,atrim=duration=%s[a%d]", audioRate, audioLayout, fmtSeconds(seg.Duration()), i)
	}
	return fmt.Sprintf("[%d:a:0]aresample=%d:async=1,aformat=sample_rates=%d:channel_layouts=%s[a%d]",
		i, audioRate, audioRate, audioLayout, i)
}

// filterGraph normalises every input to the first segment's frame size, joins
// them with concat and then applies spec.Stages after the concat in order.
func filterGraph(spec types.RenderSpec, withAudio bool) string {
	var parts []string
	w, h := spec.Segments[0].Width, spec.Segments[0].Height
	for i, seg := range spec.Segments {
		chain := "setsar=1"
		if w > 0 && h > 0 {
			chain = fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1", w, h, w, h)
		}
		parts = append(parts, fmt.Sprintf("[%d:v:0]%s[v%d]", i, chain, i))
		if withAudio {
			parts = append(parts, audioChain(i, seg))
		}
	}

	var concat strings.Builder
	for i := range spec.Segments {
		fmt.Fprintf(&concat, "[v%d]", i)
		if withAudio {
			fmt.Fprintf(&concat, "[a%d]", i)
		}
	}
	a := 0
	if withAudio {
		a = 1
	}
	fmt.Fprintf(&concat, "concat=n=%d:v=1:a=%d[vcat]", len(spec.Segments), a)
	if withAudio {
		concat.WriteString("[aout]")
	}
	parts = append(parts, concat.String())

	var post []string
	for _, st := range spec.Stages {
		switch st {
		case types.StageCrop:
			if c := spec.Crop; c != nil {
				post = append(post, fmt.Sprintf("crop=%d:%d:%d:%d", c.Width, c.Height, c.X, c.Y))
			}
		case types.StageColor:
			if c := spec.Color; c != nil {
				post = append(post, fmt.Sprintf("eq=brightness=%s:contrast=%s:saturation=%s",
					fmtFloat(c.Brightness), fmtFloat(c.Contrast), fmtFloat(c.Saturation)))
			}
		case types.StageScale:
			if r := spec.Video.Resolution; !r.IsSource() {
				post = append(post, fmt.Sprintf("scale=%d:%d", r.Width, r.Height))
			}
		case types.StageFPS:
			if f := spec.Video.FrameRate; !f.IsSource() {
				post = append(post, "fps="+fmtFloat(float64(f)))
			}
		}
	}

	if spec.Video.Codec == "gif" {
		post = append(post, "split[g0][g1];[g0]palettegen[pal];[g1][pal]paletteuse")
	}
	if len(post) == 0 {
		post = append(post, "null")
	}
	parts = append(parts, "[vcat]"+strings.Join(post, ",")+"[vout]")
	return strings.Join(parts, ";")
}

func qualityArgs(v types.VideoParams, venc string) []string {
	var out []string
	rank := v.Preset.Rank()
	switch venc {
	case "libx264", "libx265":
		out = append(out, "-preset", string(v.Preset))
	case "libvpx", "libvpx-vp9":
		// cpu-used 8 is the fastest libvpx setting.
		out = append(out, "-deadline", "good", "-cpu-used", strconv.Itoa(max(0, 8-rank)))
		if venc == "libvpx-vp9" {
			out = append(out, "-row-mt", "1")
		}
	case "libsvtav1":
		out = append(out, "-preset", strconv.Itoa(max(0, 12-rank)))
	case "prores_ks":
		// ProRes is intra-only with fixed-rate profiles; 3 is HQ.
		return []string{"-profile:v", "3"}
	case "gif":
		return nil
	}

	if v.BitrateKbps > 0 {
		return append(out, "-b:v", strconv.Itoa(v.BitrateKbps)+"k")
	}
	if v.CRF == nil {
		return out
	}
	crf := *v.CRF
	switch venc {
	case "mpeg4":
		// mpeg4 has no CRF; map 0..51 onto its 2..31 quantiser scale.
		out = append(out, "-q:v", strconv.Itoa(2+crf*29/types.MaxCRF))
	case "libvpx", "libvpx-vp9":
		// libvpx CRF runs 0..63 and needs -b:v 0 for constant quality.
		out = append(out, "-crf", strconv.Itoa(crf*63/types.MaxCRF), "-b:v", "0")
	case "libsvtav1":
		out = append(out, "-crf", strconv.Itoa(max(1, crf*63/types.MaxCRF)))
	default:
		out = append(out, "-crf", strconv.Itoa(crf))
	}
	return out
}

func pixelFormat(venc string) string {
	switch venc {
	case "gif":
		return ""
	case "prores_ks":
		return "yuv422p10le"
	}
	return "yuv420p"
}

func audioBitrate(aenc string) string {
	if aenc == "libopus" {
		return "128k"
	}
	return "192k"
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
