package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maauso/trimtofit/internal/job"
	"github.com/maauso/trimtofit/internal/progress"
	"github.com/maauso/trimtofit/internal/timeline"
)

// rangeFlags holds the mutually exclusive --remove and --keep flags.
type rangeFlags struct {
	remove []string
	keep   []string
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&f.remove, "remove", nil, "Range to cut out, as <start>-<end> (repeatable)")
	cmd.Flags().StringArrayVar(&f.keep, "keep", nil, "Range to keep, as <start>-<end> (repeatable)")
	cmd.MarkFlagsMutuallyExclusive("remove", "keep")
	cmd.MarkFlagsOneRequired("remove", "keep")
}

func (f *rangeFlags) resolve() (timeline.Mode, []timeline.Range, error) {
	mode, raw := timeline.ModeRemove, f.remove
	if len(f.keep) > 0 {
		mode, raw = timeline.ModeKeep, f.keep
	}
	ranges, err := parseRanges(raw)
	return mode, ranges, err
}

func parseRanges(values []string) ([]timeline.Range, error) {
	ranges := make([]timeline.Range, 0, len(values))
	for _, v := range values {
		r, err := timeline.ParseRange(v)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

func requireOutputForStdin(input, output string) error {
	if input == "-" && output == "" {
		return errors.New("--output is required when reading from stdin")
	}
	return nil
}

func newTrimCommand(ctx *commandContext) *cobra.Command {
	var ranges rangeFlags
	var output string
	var stdinFormat string
	var push bool

	cmd := &cobra.Command{
		Use:   "trim <input|->",
		Short: "Cut ranges out of a file, or keep only the given ranges",
		Example: `  trimtofit trim talk.mp3 --remove 0:00-0:12 --remove 41:30-42:05
  trimtofit trim talk.mp3 --keep 1:00-2:00 -o clip.mp3
  cat take.wav | trimtofit trim - --keep 5-10 -o take_cut.wav`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, parsed, err := ranges.resolve()
			if err != nil {
				return err
			}
			if err := requireOutputForStdin(args[0], output); err != nil {
				return err
			}

			input, cleanup, err := ctx.stdinInput(cmd, args[0], stdinFormat)
			if err != nil {
				return err
			}
			defer cleanup()

			req := job.TrimRequest{
				InputPath:  input,
				OutputPath: output,
				Mode:       mode,
				Ranges:     parsed,
				PushToS3:   push,
			}
			return ctx.runJob(cmd, "trimming", req, func(c context.Context, svc *job.Service, sink progress.Sink) (*job.Job, error) {
				return svc.Trim(c, req, sink)
			})
		},
	}

	ranges.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default <input>_trimmed.<ext>)")
	cmd.Flags().StringVar(&stdinFormat, "stdin-format", "wav", "Container of the audio read from stdin")
	cmd.Flags().BoolVar(&push, "push", false, "Upload the result to S3")
	return cmd
}

func newSpeedCommand(ctx *commandContext) *cobra.Command {
	var factor float64
	var output string
	var push bool

	cmd := &cobra.Command{
		Use:   "speed <input>",
		Short: "Change the tempo of a file without changing its pitch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := job.SpeedRequest{
				InputPath:  args[0],
				OutputPath: output,
				Factor:     factor,
				PushToS3:   push,
			}
			return ctx.runJob(cmd, "retiming", req, func(c context.Context, svc *job.Service, sink progress.Sink) (*job.Job, error) {
				return svc.ChangeSpeed(c, req, sink)
			})
		},
	}

	cmd.Flags().Float64VarP(&factor, "factor", "f", 1.25, "Tempo multiplier between 0.5 and 2.0")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default <input>_speed_<factor>x.<ext>)")
	cmd.Flags().BoolVar(&push, "push", false, "Upload the result to S3")
	return cmd
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var format string
	var output string
	var push bool

	cmd := &cobra.Command{
		Use:   "convert <input>",
		Short: "Re-encode a file into another container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := job.ConvertRequest{
				InputPath:  args[0],
				Format:     format,
				OutputPath: output,
				PushToS3:   push,
			}
			return ctx.runJob(cmd, "converting", req, func(c context.Context, svc *job.Service, sink progress.Sink) (*job.Job, error) {
				return svc.Convert(c, req, sink)
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "Target container (mp3, wav, flac, ogg, opus, m4a, aac)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default <input>_converted.<format>)")
	cmd.Flags().BoolVar(&push, "push", false, "Upload the result to S3")
	_ = cmd.MarkFlagRequired("format")
	return cmd
}

func newMergeCommand(ctx *commandContext) *cobra.Command {
	var output string
	var push bool

	cmd := &cobra.Command{
		Use:   "merge <input>...",
		Short: "Concatenate files in the order given",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := job.MergeRequest{
				InputPaths: args,
				OutputPath: output,
				PushToS3:   push,
			}
			return ctx.runJob(cmd, "merging", req, func(c context.Context, svc *job.Service, sink progress.Sink) (*job.Job, error) {
				return svc.Merge(c, req, sink)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file; .mp3 is added when it has no extension")
	cmd.Flags().BoolVar(&push, "push", false, "Upload the result to S3")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newPlanCommand() *cobra.Command {
	var ranges rangeFlags
	var duration string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show which ranges a trim would keep, without touching audio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			totalMs, err := timeline.ParseTimestamp(duration)
			if err != nil {
				return fmt.Errorf("--duration: %w", err)
			}
			mode, parsed, err := ranges.resolve()
			if err != nil {
				return err
			}

			plan, err := job.NewPlan(parsed, totalMs, mode)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(plan)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderPlan(plan))
			return nil
		},
	}

	ranges.register(cmd)
	cmd.Flags().StringVar(&duration, "duration", "", "Total duration of the source, e.g. 42:05 or 1500ms")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the plan as JSON")
	_ = cmd.MarkFlagRequired("duration")
	return cmd
}
