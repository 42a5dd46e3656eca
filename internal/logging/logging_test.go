package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewWithOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput(&buf, "debug", "json")
	l.WithField("component", "test").Debug("hello")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected a JSON line, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "hello" || rec["component"] != "test" || rec["level"] != "debug" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestNewWithOutput_LevelFallback(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput(&buf, "chatty", "text")
	if l.GetLevel() != logrus.InfoLevel {
		t.Fatalf("level = %s, want info", l.GetLevel())
	}
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug must be filtered at info level")
	}
}

func TestLogf(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput(&buf, "info", "text")
	Logf(logrus.NewEntry(l))("wrote %d clips", 3)
	if !strings.Contains(buf.String(), "wrote 3 clips") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "****"},
		{"short", "****"},
		{"12345678", "****"},
		{"0123456789abcdef", "0123...cdef"},
	}
	for _, tt := range tests {
		if got := SanitizeToken(tt.in); got != tt.want {
			t.Errorf("SanitizeToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	if l.Out != io.Discard {
		t.Fatalf("Discard must not write anywhere")
	}
	l.Error("dropped")
}
