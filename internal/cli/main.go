// Package cli is the tlcut command tree. Each editing command loads the
// project document, applies one edit and saves it back.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/forPelevin/tlcut/internal/config"
	"github.com/forPelevin/tlcut/internal/logging"
	"github.com/forPelevin/tlcut/internal/pipeline"
)

const defaultProject = "tlcut.json"

func Main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	e := &env{out: stdout, errOut: stderr}
	root := newRootCmd(e)
	root.SetArgs(args)
	err := root.Execute()
	return errors.Join(err, e.close())
}

// env is shared by every command of one invocation.
type env struct {
	project   string
	logLevel  string
	logFormat string

	out    io.Writer
	errOut io.Writer

	cfg    config.Config
	logger *logrus.Logger
	app    *pipeline.App
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "tlcut",
		Short:         "Edit a video timeline and export it with ffmpeg",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.setup()
		},
	}
	root.SetOut(e.out)
	root.SetErr(e.errOut)

	root.PersistentFlags().StringVarP(&e.project, "project", "p", defaultProject, "Project file (.json, .yaml or .yml)")
	root.PersistentFlags().StringVar(&e.logLevel, "log-level", "", "Log level (overrides "+config.EnvLogLevel+")")
	root.PersistentFlags().StringVar(&e.logFormat, "log-format", "", "Log format: text or json (overrides "+config.EnvLogFormat+")")

	root.AddCommand(
		newNewCmd(e),
		newAddCmd(e),
		newSplitCmd(e),
		newTrimCmd(e),
		newMoveCmd(e),
		newRmCmd(e),
		newCropCmd(e),
		newColorCmd(e),
		newSettingsCmd(e),
		newUndoCmd(e),
		newRedoCmd(e),
		newShowCmd(e),
		newPlanCmd(e),
		newExportCmd(e),
		newExportsCmd(e),
		newServeCmd(e),
	)
	return root
}

func (e *env) setup() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if e.logLevel != "" {
		cfg.LogLevel = e.logLevel
	}
	if e.logFormat != "" {
		cfg.LogFormat = e.logFormat
	}
	e.cfg = cfg
	e.logger = logging.NewWithOutput(e.errOut, cfg.LogLevel, cfg.LogFormat)

	app, err := pipeline.Open(pipeline.Config{
		FFmpegPath:   cfg.FFmpegPath,
		FFprobePath:  cfg.FFprobePath,
		Threads:      cfg.Threads,
		DataDir:      cfg.DataDir,
		HistoryLimit: cfg.HistoryLimit,
		Logger:       e.logger,
	})
	if err != nil {
		return err
	}
	e.app = app
	return nil
}

func (e *env) close() error {
	if e.app == nil {
		return nil
	}
	err := e.app.Close()
	e.app = nil
	return err
}

// edit loads the project, applies fn and saves the result when fn succeeds.
func (e *env) edit(fn func(p *pipeline.Project) error) error {
	p, err := e.app.Load(e.project)
	if err != nil {
		return err
	}
	if err := fn(p); err != nil {
		return err
	}
	return e.app.Save(p)
}

// view loads the project read-only.
func (e *env) view(fn func(p *pipeline.Project) error) error {
	p, err := e.app.Load(e.project)
	if err != nil {
		return err
	}
	return fn(p)
}
