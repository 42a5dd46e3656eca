package cli

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/forPelevin/tlcut/internal/domain/clips"
	"github.com/forPelevin/tlcut/internal/editor"
)

// parseTime reads seconds ("12.5") or a clock ("1:02.5", "01:00:02.5").
func parseTime(s string) (float64, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("time %q: too many fields", s)
	}
	var total float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return 0, fmt.Errorf("time %q: invalid field %q", s, p)
		}
		if i < len(parts)-1 && (v != math.Trunc(v) || (i > 0 && v >= 60)) {
			return 0, fmt.Errorf("time %q: invalid field %q", s, p)
		}
		if i == len(parts)-1 && len(parts) > 1 && v >= 60 {
			return 0, fmt.Errorf("time %q: seconds must be below 60", s)
		}
		total = total*60 + v
	}
	return total, nil
}

// resolveClip maps a clip id or a unique id prefix to the full id.
func resolveClip(s *editor.Session, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty clip id", clips.ErrClipNotFound)
	}
	var match []string
	for _, c := range s.Clips() {
		if c.ID == ref {
			return c.ID, nil
		}
		if strings.HasPrefix(c.ID, ref) {
			match = append(match, c.ID)
		}
	}
	switch len(match) {
	case 0:
		return "", fmt.Errorf("%w: %s", clips.ErrClipNotFound, ref)
	case 1:
		return match[0], nil
	}
	return "", fmt.Errorf("clip id %q is ambiguous (%d matches)", ref, len(match))
}

func fmtClock(sec float64) string {
	neg := sec < 0
	if neg {
		sec = -sec
	}
	h := int(sec / 3600)
	m := int(math.Mod(sec, 3600) / 60)
	s := math.Mod(sec, 60)
	out := fmt.Sprintf("%02d:%02d:%06.3f", h, m, s)
	if neg {
		return "-" + out
	}
	return out
}
