package ffmpeg

import (
	"math"
	"strconv"
	"strings"
)

// progressTime extracts the encoded position, in seconds, from one line of
// ffmpeg's -progress output. ok is false for every other key.
func progressTime(line string) (float64, bool) {
	key, val, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found {
		return 0, false
	}
	switch key {
	// out_time_ms is microseconds too; ffmpeg kept the old name.
	case "out_time_us", "out_time_ms":
		us, err := strconv.ParseInt(val, 10, 64)
		if err != nil || us < 0 {
			return 0, false
		}
		return float64(us) / 1e6, true
	case "out_time":
		return parseClock(val)
	}
	return 0, false
}

// parseClock reads HH:MM:SS.micro.
func parseClock(s string) (float64, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	sec, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil || h < 0 || m < 0 || sec < 0 {
		return 0, false
	}
	return float64(h*3600+m*60) + sec, true
}

// percent maps an encoded position onto 0..99. 100 is reserved for a job that
// finished successfully.
func percent(pos, total float64) int {
	if total <= 0 || pos <= 0 || math.IsNaN(pos) {
		return 0
	}
	p := int(math.Floor(pos / total * 100))
	if p > 99 {
		p = 99
	}
	return p
}
