// Package ffmpeg probes sources with ffprobe and renders specs with ffmpeg.
package ffmpeg

import (
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
)

// Adapter is both a ports.Prober and a ports.RenderEngine. It runs at most one
// render at a time.
type Adapter struct {
	ffmpeg  string
	ffprobe string
	threads int
	log     *logrus.Entry

	mu       sync.Mutex
	job      *job
	progress int
}

type Option func(*Adapter)

// WithThreads caps encoder threads; 0 lets the adapter pick from the CPU count.
func WithThreads(n int) Option {
	return func(a *Adapter) { a.threads = n }
}

func WithLogger(l *logrus.Entry) Option {
	return func(a *Adapter) { a.log = l }
}

func New(ffmpegPath, ffprobePath string, opts ...Option) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	a := &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath}
	for _, o := range opts {
		o(a)
	}
	if a.threads <= 0 {
		a.threads = DefaultThreads()
	}
	if a.log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		a.log = logrus.NewEntry(l)
	}
	a.log = a.log.WithField("component", "ffmpeg")
	return a
}

func fmtSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}
