package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/tlcut/internal/domain/exportplan"
	"github.com/forPelevin/tlcut/internal/ports/adapters/projectfile"
	"github.com/forPelevin/tlcut/internal/types"
)

func TestBuildOutputPath(t *testing.T) {
	now := time.Date(2026, 2, 12, 10, 30, 45, 1234, time.UTC)
	got := buildOutputPath("out", "My Cool.Project", ".mp4", now)
	base := filepath.Base(got)
	if filepath.Dir(got) != "out" {
		t.Fatalf("unexpected parent dir: %s", got)
	}
	if !strings.HasPrefix(base, "my-cool-project-20260212-103045Z-") || !strings.HasSuffix(base, ".mp4") {
		t.Fatalf("unexpected output name: %s", base)
	}
	if len(base) != len("my-cool-project-20260212-103045Z-")+6+len(".mp4") {
		t.Fatalf("unexpected suffix length: %s", base)
	}
	if got := filepath.Base(buildOutputPath("out", "!!!", ".gif", now)); !strings.HasPrefix(got, "export-") {
		t.Fatalf("empty name must fall back to export: %s", got)
	}
}

func TestNormalizePathSegment(t *testing.T) {
	tests := map[string]string{
		"  My Cool.Video  ": "my-cool-video",
		"___":               "",
		"abc123":            "abc123",
		"Name (v2)!":        "name-v2",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			if got := normalizePathSegment(in); got != want {
				t.Fatalf("normalizePathSegment(%q) = %q, want %q", in, got, want)
			}
		})
	}
}

func TestProjectName(t *testing.T) {
	for in, want := range map[string]string{
		"/p/demo.tlcut.json": "demo",
		"trip.yaml":          "trip",
		"plain":              "plain",
	} {
		if got := projectName(in); got != want {
			t.Fatalf("projectName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	ok := Config{DataDir: "/d", HistoryLimit: 10}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid config: %v", err)
	}
	for _, c := range []Config{
		{HistoryLimit: 10},
		{DataDir: "/d"},
		{DataDir: "/d", HistoryLimit: 10, Threads: -1},
	} {
		if err := c.Validate(); err == nil {
			t.Fatalf("expected error for %+v", c)
		}
	}
}

func openApp(t *testing.T, cfg Config) *App {
	t.Helper()
	if cfg.DataDir == "" {
		cfg.DataDir = t.TempDir()
	}
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = 50
	}
	a, err := Open(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestProjectLifecycle(t *testing.T) {
	a := openApp(t, Config{})
	path := filepath.Join(t.TempDir(), "demo.tlcut.json")

	p, err := a.NewProject(path, "")
	if err != nil {
		t.Fatalf("new project: %v", err)
	}
	if p.Name != "demo" {
		t.Fatalf("name = %q", p.Name)
	}
	if _, err := a.NewProject(path, "again"); err == nil {
		t.Fatalf("new project must not overwrite")
	}

	src := types.SourceFile{Path: "/v/a.mp4", Duration: 12, Width: 640, Height: 360}
	if _, err := p.Session.AddClip(src); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := a.Save(p); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := a.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Session.Clips()) != 1 || !loaded.Session.CanUndo() {
		t.Fatalf("clips and history must survive a save/load cycle")
	}
	if !loaded.Session.Undo() || len(loaded.Session.Clips()) != 0 {
		t.Fatalf("undo after load must restore the empty project")
	}
}

func TestLoadRejectsNewerDocuments(t *testing.T) {
	a := openApp(t, Config{NoExportLog: true})
	path := filepath.Join(t.TempDir(), "future.json")
	if err := os.WriteFile(path, []byte(`{"version": 99}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Load(path); !errors.Is(err, projectfile.ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestOutputPath(t *testing.T) {
	dataDir := t.TempDir()
	a := openApp(t, Config{DataDir: dataDir, NoExportLog: true})
	p, err := a.NewProject(filepath.Join(t.TempDir(), "reel.json"), "Summer Reel")
	if err != nil {
		t.Fatal(err)
	}
	settings := p.Session.ExportSettings()
	settings.Format, settings.Codec = "webm", "vp9"
	if err := p.Session.SetExportSettings(settings); err != nil {
		t.Fatal(err)
	}

	out, err := a.OutputPath(p, "")
	if err != nil {
		t.Fatalf("output path: %v", err)
	}
	if filepath.Dir(out) != filepath.Join(dataDir, "exports") || filepath.Ext(out) != ".webm" {
		t.Fatalf("unexpected output path %s", out)
	}
	if !strings.HasPrefix(filepath.Base(out), "summer-reel-") {
		t.Fatalf("unexpected output name %s", out)
	}
}

func TestExportEmptyTimeline(t *testing.T) {
	a := openApp(t, Config{NoExportLog: true})
	p, err := a.NewProject(filepath.Join(t.TempDir(), "empty.json"), "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Export(t.Context(), p, filepath.Join(t.TempDir(), "x.mp4"), nil); !errors.Is(err, exportplan.ErrEmptyTimeline) {
		t.Fatalf("expected ErrEmptyTimeline, got %v", err)
	}
	if a.Engine.IsRunning() {
		t.Fatalf("engine must stay idle")
	}
}
