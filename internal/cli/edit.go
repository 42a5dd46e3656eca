package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forPelevin/tlcut/internal/logging"
	"github.com/forPelevin/tlcut/internal/pipeline"
	"github.com/forPelevin/tlcut/internal/types"
)

func newNewCmd(e *env) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create an empty project file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := e.app.NewProject(e.project, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "created %s (%s)\n", p.Path, p.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Project name (defaults to the file name)")
	return cmd
}

func newAddCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "add <file>...",
		Short: "Probe video files and append them to the timeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logf := logging.Logf(e.logger.WithField("component", "cli"))
			var addErr error
			err := e.edit(func(p *pipeline.Project) error {
				before := len(p.Session.Clips())
				opened, err := e.app.AddSources(cmd.Context(), p, args)
				for _, o := range opened {
					if o.ProbeErr != nil {
						logf("probe %s: %v", o.Source.Path, o.ProbeErr)
					}
				}
				if err != nil && len(p.Session.Clips()) == before {
					return err
				}
				addErr = err
				printClips(e, p)
				return nil
			})
			return errors.Join(err, addErr)
		},
	}
}

func newSplitCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "split <clip> <time>",
		Short: "Split a clip at a timeline position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := parseTime(args[1])
			if err != nil {
				return err
			}
			return e.edit(func(p *pipeline.Project) error {
				id, err := resolveClip(p.Session, args[0])
				if err != nil {
					return err
				}
				ok, err := p.Session.Split(id, at)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintf(e.out, "%s is not strictly inside clip %s; nothing split\n", fmtClock(at), id)
					return nil
				}
				printClips(e, p)
				return nil
			})
		},
	}
}

func newTrimCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "trim <clip> <in> <out>",
		Short: "Set a clip's source in and out points",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := parseTime(args[1])
			if err != nil {
				return err
			}
			out, err := parseTime(args[2])
			if err != nil {
				return err
			}
			return e.edit(func(p *pipeline.Project) error {
				id, err := resolveClip(p.Session, args[0])
				if err != nil {
					return err
				}
				if err := p.Session.Trim(id, in, out); err != nil {
					return err
				}
				printClips(e, p)
				return nil
			})
		},
	}
}

func newMoveCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "move <clip> <start>",
		Short: "Move a clip to a new timeline start",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseTime(args[1])
			if err != nil {
				return err
			}
			return e.edit(func(p *pipeline.Project) error {
				id, err := resolveClip(p.Session, args[0])
				if err != nil {
					return err
				}
				if err := p.Session.Move(id, start); err != nil {
					return err
				}
				printClips(e, p)
				return nil
			})
		},
	}
}

func newRmCmd(e *env) *cobra.Command {
	var ripple bool
	cmd := &cobra.Command{
		Use:   "rm <clip>",
		Short: "Remove a clip, leaving a gap unless --ripple is set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.edit(func(p *pipeline.Project) error {
				id, err := resolveClip(p.Session, args[0])
				if err != nil {
					return err
				}
				if ripple {
					err = p.Session.RippleDelete(id)
				} else {
					err = p.Session.RemoveClip(id)
				}
				if err != nil {
					return err
				}
				printClips(e, p)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&ripple, "ripple", false, "Close the gap by shifting later clips left")
	return cmd
}

func newCropCmd(e *env) *cobra.Command {
	var (
		c   types.CropSettings
		off bool
	)
	cmd := &cobra.Command{
		Use:   "crop",
		Short: "Set or clear the project crop region",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if off {
				c = types.CropSettings{}
			} else {
				for _, f := range []string{"width", "height"} {
					if !cmd.Flags().Changed(f) {
						return fmt.Errorf("--%s is required unless --off is set", f)
					}
				}
				c.Enabled = true
			}
			return e.edit(func(p *pipeline.Project) error {
				if err := p.Session.SetCrop(c); err != nil {
					return err
				}
				fmt.Fprintf(e.out, "crop: %s\n", fmtCrop(p.Session.Crop()))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&c.X, "x", 0, "Left offset in source pixels")
	cmd.Flags().IntVar(&c.Y, "y", 0, "Top offset in source pixels")
	cmd.Flags().IntVar(&c.Width, "width", 0, "Region width in source pixels")
	cmd.Flags().IntVar(&c.Height, "height", 0, "Region height in source pixels")
	cmd.Flags().BoolVar(&off, "off", false, "Disable cropping")
	cmd.MarkFlagsMutuallyExclusive("off", "width")
	cmd.MarkFlagsMutuallyExclusive("off", "height")
	return cmd
}

func newColorCmd(e *env) *cobra.Command {
	var (
		c   = types.NeutralColor()
		off bool
	)
	cmd := &cobra.Command{
		Use:   "color",
		Short: "Set or clear the project color adjustment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.edit(func(p *pipeline.Project) error {
				next := p.Session.Color()
				if off {
					next.Enabled = false
				} else {
					if cmd.Flags().Changed("brightness") {
						next.Brightness = c.Brightness
					}
					if cmd.Flags().Changed("contrast") {
						next.Contrast = c.Contrast
					}
					if cmd.Flags().Changed("saturation") {
						next.Saturation = c.Saturation
					}
					next.Enabled = true
				}
				if err := p.Session.SetColor(next); err != nil {
					return err
				}
				fmt.Fprintf(e.out, "color: %s\n", fmtColor(p.Session.Color()))
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&c.Brightness, "brightness", c.Brightness, "Brightness offset in [-1, 1]")
	cmd.Flags().Float64Var(&c.Contrast, "contrast", c.Contrast, "Contrast factor in [0, 2]")
	cmd.Flags().Float64Var(&c.Saturation, "saturation", c.Saturation, "Saturation factor in [0, 3]")
	cmd.Flags().BoolVar(&off, "off", false, "Disable the color adjustment")
	return cmd
}

func newSettingsCmd(e *env) *cobra.Command {
	var format, codec, resolution, fps, bitrate, preset string
	var crf int
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the export settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := false
			for _, f := range []string{"format", "codec", "resolution", "fps", "bitrate", "crf", "preset"} {
				changed = changed || cmd.Flags().Changed(f)
			}
			if !changed {
				return e.view(func(p *pipeline.Project) error {
					printSettings(e, p.Session.ExportSettings())
					return nil
				})
			}
			return e.edit(func(p *pipeline.Project) error {
				s := p.Session.ExportSettings()
				flags := cmd.Flags()
				if flags.Changed("format") {
					s.Format = format
				}
				if flags.Changed("codec") {
					s.Codec = codec
				}
				if flags.Changed("resolution") {
					r, err := types.ParseResolution(resolution)
					if err != nil {
						return err
					}
					s.Resolution = r
				}
				if flags.Changed("fps") {
					f, err := types.ParseFrameRate(fps)
					if err != nil {
						return err
					}
					s.FrameRate = f
				}
				if flags.Changed("bitrate") {
					b, err := types.ParseBitrate(bitrate)
					if err != nil {
						return err
					}
					s.Bitrate = b
				}
				if flags.Changed("crf") {
					s.CRF = crf
				}
				if flags.Changed("preset") {
					s.Preset = types.Preset(preset)
				}
				if err := p.Session.SetExportSettings(s); err != nil {
					return err
				}
				printSettings(e, p.Session.ExportSettings())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "Container: mp4, mov, mkv, webm, avi or gif")
	cmd.Flags().StringVar(&codec, "codec", "", "Video codec")
	cmd.Flags().StringVar(&resolution, "resolution", "", `Output size WxH or "source"`)
	cmd.Flags().StringVar(&fps, "fps", "", `Frame rate, e.g. 30 or 30000/1001, or "source"`)
	cmd.Flags().StringVar(&bitrate, "bitrate", "", `Video bitrate in kbps or "auto"`)
	cmd.Flags().IntVar(&crf, "crf", 0, "Constant rate factor 0-51, used when bitrate is auto")
	cmd.Flags().StringVar(&preset, "preset", "", fmt.Sprintf("Encoder preset, one of %v", types.Presets()))
	return cmd
}

func newUndoCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Undo the last edit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.edit(func(p *pipeline.Project) error {
				if !p.Session.Undo() {
					fmt.Fprintln(e.out, "nothing to undo")
					return nil
				}
				printClips(e, p)
				return nil
			})
		},
	}
}

func newRedoCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "redo",
		Short: "Redo the last undone edit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.edit(func(p *pipeline.Project) error {
				if !p.Session.Redo() {
					fmt.Fprintln(e.out, "nothing to redo")
					return nil
				}
				printClips(e, p)
				return nil
			})
		},
	}
}
