package exportplan

import (
	"sort"
	"strings"

	"github.com/forPelevin/tlcut/internal/types"
)

// Format describes what one output container can hold.
type Format struct {
	Name       string
	Extension  string
	Codecs     []string
	Audio      types.AudioMode
	AudioCodec string
}

func (f Format) SupportsCodec(codec string) bool {
	for _, c := range f.Codecs {
		if c == codec {
			return true
		}
	}
	return false
}

var formats = map[string]Format{
	"mp4": {
		Name:       "mp4",
		Extension:  ".mp4",
		Codecs:     []string{"h264", "h265", "mpeg4"},
		Audio:      types.AudioEncode,
		AudioCodec: "aac",
	},
	"mov": {
		Name:       "mov",
		Extension:  ".mov",
		Codecs:     []string{"h264", "h265", "prores"},
		Audio:      types.AudioEncode,
		AudioCodec: "aac",
	},
	"mkv": {
		Name:      "mkv",
		Extension: ".mkv",
		Codecs:    []string{"h264", "h265", "vp9", "av1", "mpeg4"},
		Audio:     types.AudioPassthrough,
	},
	"webm": {
		Name:       "webm",
		Extension:  ".webm",
		Codecs:     []string{"vp8", "vp9", "av1"},
		Audio:      types.AudioEncode,
		AudioCodec: "opus",
	},
	"avi": {
		Name:       "avi",
		Extension:  ".avi",
		Codecs:     []string{"mpeg4", "h264"},
		Audio:      types.AudioEncode,
		AudioCodec: "mp3",
	},
	"gif": {
		Name:      "gif",
		Extension: ".gif",
		Codecs:    []string{"gif"},
		Audio:     types.AudioNone,
	},
}

// LookupFormat finds a container by name, case-insensitively.
func LookupFormat(name string) (Format, bool) {
	f, ok := formats[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}

// FormatNames lists the supported containers alphabetically.
func FormatNames() []string {
	out := make([]string, 0, len(formats))
	for k := range formats {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
