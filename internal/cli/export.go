package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/tlcut/internal/ports"
)

func newExportCmd(e *env) *cobra.Command {
	var out, outDir string
	var quiet bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render the timeline with ffmpeg",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := e.app.Load(e.project)
			if err != nil {
				return err
			}
			if out == "" {
				if out, err = e.app.OutputPath(p, outDir); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var progress func(int)
			if !quiet {
				progress = func(pct int) { fmt.Fprintf(e.errOut, "\rexporting %3d%%", pct) }
			}
			res, err := e.app.Export(ctx, p, out, progress)
			if progress != nil && res.Status != "" {
				fmt.Fprintln(e.errOut)
			}
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return fmt.Errorf("export cancelled")
				}
				if res.Diagnostic != "" {
					return fmt.Errorf("%w\n%s", err, res.Diagnostic)
				}
				return err
			}
			fmt.Fprintf(e.out, "%s (%s)\n", res.OutputPath, res.Elapsed.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (defaults to a timestamped name)")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Directory for the default output name")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print progress")
	cmd.MarkFlagsMutuallyExclusive("out", "out-dir")
	return cmd
}

func newExportsCmd(e *env) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "exports",
		Short: "List recent exports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := e.app.Usecase.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintln(e.out, "no exports")
				return nil
			}
			tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tPROJECT\tOUTPUT")
			for _, r := range recs {
				status := string(r.Status)
				if r.Status == ports.JobFailed && r.Error != "" {
					status += ": " + firstLine(r.Error)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.StartedAt.Local().Format(time.DateTime), status, r.Project, r.OutputPath)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum rows, 0 for all")
	return cmd
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
