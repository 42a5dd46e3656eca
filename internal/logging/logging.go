// Package logging builds the process logger. Logs go to stderr so stdout stays
// free for JSON output.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const timestampFormat = "2006-01-02 15:04:05"

// New returns a logger at level ("debug", "info", ...) in "text" or "json" format.
// An unknown level falls back to info.
func New(level, format string) *logrus.Logger {
	return NewWithOutput(os.Stderr, level, format)
}

func NewWithOutput(w io.Writer, level, format string) *logrus.Logger {
	l := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	if strings.EqualFold(format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: timestampFormat})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: timestampFormat})
	}
	l.SetOutput(w)
	return l
}

// Discard is a logger that drops everything. It stands in wherever a caller
// passes no logger.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// SanitizeToken masks a token for logging: first and last four characters,
// or "****" when it is too short to show any of it.
func SanitizeToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// Logf adapts an entry to the printf-style callback the pipeline takes.
func Logf(e *logrus.Entry) func(format string, args ...any) {
	return func(format string, args ...any) {
		e.Info(fmt.Sprintf(format, args...))
	}
}
