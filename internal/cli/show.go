package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/forPelevin/tlcut/internal/api"
	"github.com/forPelevin/tlcut/internal/domain/timeline"
	"github.com/forPelevin/tlcut/internal/pipeline"
	"github.com/forPelevin/tlcut/internal/types"
)

func newShowCmd(e *env) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the timeline and project settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.view(func(p *pipeline.Project) error {
				if asJSON {
					return writeJSON(e, api.ProjectToResponse(p))
				}
				s := p.Session
				fmt.Fprintf(e.out, "project: %s (%s)\n", p.Name, p.Path)
				printClips(e, p)
				for _, g := range timeline.Gaps(s.Clips()) {
					fmt.Fprintf(e.out, "gap %s - %s (not rendered)\n", fmtClock(g.Start), fmtClock(g.End))
				}
				for _, c := range timeline.Conflicts(s.Clips()) {
					fmt.Fprintln(e.out, fmtConflict(c))
				}
				fmt.Fprintf(e.out, "crop: %s\n", fmtCrop(s.Crop()))
				fmt.Fprintf(e.out, "color: %s\n", fmtColor(s.Color()))
				printSettings(e, s.ExportSettings())
				fmt.Fprintf(e.out, "undo: %t  redo: %t\n", s.CanUndo(), s.CanRedo())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the project as JSON")
	return cmd
}

func newPlanCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Compile the timeline and print the render spec as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.view(func(p *pipeline.Project) error {
				spec, err := p.Session.Plan()
				if err != nil {
					return err
				}
				return writeJSON(e, spec)
			})
		},
	}
}

func printClips(e *env, p *pipeline.Project) {
	cl := p.Session.Clips()
	if len(cl) == 0 {
		fmt.Fprintln(e.out, "timeline is empty")
		return
	}
	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTART\tEND\tIN\tOUT\tSOURCE")
	for _, c := range cl {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID, fmtClock(c.StartTime), fmtClock(c.TimelineEnd()),
			fmtClock(c.InPoint), fmtClock(c.OutPoint), filepath.Base(c.Source.Path))
	}
	_ = tw.Flush()
	fmt.Fprintf(e.out, "duration: %s\n", fmtClock(timeline.Span(cl)))
}

func printSettings(e *env, s types.ExportSettings) {
	quality := fmt.Sprintf("crf %d", s.CRF)
	if !s.Bitrate.IsAuto() {
		quality = fmt.Sprintf("%dk", int(s.Bitrate))
	}
	fmt.Fprintf(e.out, "export: %s/%s %s @ %s fps, %s, preset %s\n",
		s.Format, s.Codec, s.Resolution, s.FrameRate, quality, s.Preset)
}

func fmtCrop(c types.CropSettings) string {
	if !c.Enabled {
		return "off"
	}
	return fmt.Sprintf("%dx%d+%d+%d", c.Width, c.Height, c.X, c.Y)
}

func fmtColor(c types.ColorAdjust) string {
	if !c.Enabled {
		return "off"
	}
	return fmt.Sprintf("brightness %.2f contrast %.2f saturation %.2f", c.Brightness, c.Contrast, c.Saturation)
}

func writeJSON(e *env, v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fmtConflict(c timeline.Conflict) string {
	kind := "overlap"
	if c.SameStart {
		kind = "same start"
	}
	return fmt.Sprintf("warning: %s %s/%s %s - %s (%s wins)",
		kind, c.First, c.Second, fmtClock(c.Overlap.Start), fmtClock(c.Overlap.End), c.First)
}
