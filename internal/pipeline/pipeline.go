// Package pipeline wires the adapters behind the use cases for the CLI and
// the HTTP server, and owns project loading, saving and export naming.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/forPelevin/tlcut/internal/config"
	"github.com/forPelevin/tlcut/internal/domain/exportplan"
	"github.com/forPelevin/tlcut/internal/editor"
	"github.com/forPelevin/tlcut/internal/logging"
	"github.com/forPelevin/tlcut/internal/ports"
	"github.com/forPelevin/tlcut/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/tlcut/internal/ports/adapters/projectfile"
	"github.com/forPelevin/tlcut/internal/ports/adapters/sqlite"
	"github.com/forPelevin/tlcut/internal/usecase"
)

type Config struct {
	FFmpegPath  string
	FFprobePath string
	Threads     int

	// DataDir holds the export log and, by default, rendered exports.
	DataDir      string
	HistoryLimit int

	// NoExportLog skips opening the SQLite export log.
	NoExportLog bool

	Logger *logrus.Logger
}

func (c Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data dir is empty")
	}
	if c.HistoryLimit < 1 {
		return fmt.Errorf("history limit must be > 0")
	}
	if c.Threads < 0 {
		return fmt.Errorf("threads must be >= 0")
	}
	return nil
}

// App is one wired instance of the editor backend.
type App struct {
	cfg      Config
	log      *logrus.Entry
	Engine   *ffmpeg.Adapter
	Projects ports.ProjectStore
	Usecase  usecase.Usecase
	db       *sqlite.DB
}

func Open(cfg Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	a := &App{
		cfg:      cfg,
		log:      logger.WithField("component", "pipeline"),
		Projects: projectfile.New(),
	}
	a.Engine = ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath,
		ffmpeg.WithThreads(cfg.Threads),
		ffmpeg.WithLogger(logrus.NewEntry(logger)),
	)

	deps := usecase.Deps{
		Prober: a.Engine,
		Engine: a.Engine,
		Logger: logger.WithField("component", "usecase"),
	}
	if !cfg.NoExportLog {
		db, err := sqlite.Open(config.DBPath(cfg.DataDir), logrus.NewEntry(logger))
		if err != nil {
			return nil, fmt.Errorf("export log: %w", err)
		}
		a.db = db
		deps.Exports = db
	}
	a.Usecase = usecase.New(deps)
	return a, nil
}

func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// Project is an open project: its file, display name and editing session.
type Project struct {
	Path    string
	Name    string
	Session *editor.Session
}

// NewProject creates an empty project document at path. It refuses to
// overwrite an existing file.
func (a *App) NewProject(path, name string) (*Project, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("project %s already exists", path)
	}
	if name == "" {
		name = projectName(path)
	}
	p := &Project{Path: path, Name: name, Session: editor.New(editor.WithHistoryLimit(a.cfg.HistoryLimit))}
	if err := a.Save(p); err != nil {
		return nil, err
	}
	a.log.WithField("path", path).Info("project created")
	return p, nil
}

func (a *App) Load(path string) (*Project, error) {
	doc, err := a.Projects.Load(path)
	if err != nil {
		return nil, err
	}
	s, err := editor.Restore(doc.State, editor.WithHistoryLimit(a.cfg.HistoryLimit))
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", path, err)
	}
	name := doc.Name
	if name == "" {
		name = projectName(path)
	}
	return &Project{Path: path, Name: name, Session: s}, nil
}

func (a *App) Save(p *Project) error {
	return a.Projects.Save(p.Path, ports.Project{Name: p.Name, State: p.Session.State()})
}

// AddSources probes paths and appends each one to the timeline in order.
// Paths whose metadata is unknown are reported and skipped; the rest are added.
func (a *App) AddSources(ctx context.Context, p *Project, paths []string) ([]usecase.Opened, error) {
	abs := make([]string, 0, len(paths))
	for _, in := range paths {
		ap, err := filepath.Abs(in)
		if err != nil {
			return nil, err
		}
		abs = append(abs, ap)
	}
	opened, err := a.Usecase.OpenSources(ctx, abs)
	if err != nil {
		return nil, err
	}
	var errs []error
	for _, o := range opened {
		if _, err := p.Session.AddVideoToTimeline(o.Source); err != nil {
			if o.ProbeErr != nil {
				err = fmt.Errorf("%w (%v)", err, o.ProbeErr)
			}
			errs = append(errs, fmt.Errorf("add %s: %w", o.Source.Path, err))
		}
	}
	return opened, errors.Join(errs...)
}

// OutputPath picks where an export of p lands when the user gave no path.
func (a *App) OutputPath(p *Project, outDir string) (string, error) {
	f, ok := exportplan.LookupFormat(p.Session.ExportSettings().Format)
	if !ok {
		return "", fmt.Errorf("%w: unknown format %q", exportplan.ErrUnsupportedFormatCodecPairing, p.Session.ExportSettings().Format)
	}
	if outDir == "" {
		outDir = config.ExportsDir(a.cfg.DataDir)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	return buildOutputPath(outDir, p.Name, f.Extension, time.Now().UTC()), nil
}

// Export renders p into outPath and blocks until the job ends.
func (a *App) Export(ctx context.Context, p *Project, outPath string, progress func(int)) (ports.JobResult, error) {
	h, _, err := a.Usecase.Export(ctx, p.Session, usecase.ExportInput{Project: p.Name, OutPath: outPath})
	if err != nil {
		return ports.JobResult{}, err
	}
	return a.Usecase.Wait(ctx, h, progress)
}

func buildOutputPath(outRoot, project, ext string, now time.Time) string {
	name := normalizePathSegment(project)
	if name == "" {
		name = "export"
	}
	ts := now.UTC().Format("20060102-150405Z")
	seed := fmt.Sprintf("%s|%d", project, now.UTC().UnixNano())
	suffix := hash(seed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s%s", name, ts, suffix, ext))
}

func projectName(path string) string {
	base := filepath.Base(path)
	for ext := filepath.Ext(base); ext != ""; ext = filepath.Ext(base) {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}
