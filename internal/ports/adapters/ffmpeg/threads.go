package ffmpeg

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
)

// maxThreads keeps x264/x265 in the range where more threads still help.
const maxThreads = 16

// DefaultThreads is the number of physical cores, falling back to logical CPUs.
func DefaultThreads() int {
	n, err := cpu.Counts(false)
	if err != nil || n <= 0 {
		n = runtime.NumCPU()
	}
	if n > maxThreads {
		n = maxThreads
	}
	return n
}
