package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/maauso/trimtofit/internal/job"
	"github.com/maauso/trimtofit/internal/server"
	"github.com/maauso/trimtofit/internal/timeline"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect jobs on a trimtofit server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every job the server knows about",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := ctx.client()
			if err != nil {
				return err
			}
			jobs, err := cl.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderJobs(jobs))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := cl.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printField(cmd.OutOrStdout(), "status", fmt.Sprintf("%s %.0f%%", resp.Status, resp.Progress*100), valueColor)
			if resp.Error != "" {
				printField(cmd.OutOrStdout(), "error", resp.Error, warnColor)
			}
			printJobSummary(cmd.OutOrStdout(), jobFromResponse(resp))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "wait <id>",
		Short: "Follow a job until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := ctx.client()
			if err != nil {
				return err
			}
			sink, finish := newProgressSink(cmd.ErrOrStderr(), args[0], ctx.isQuiet())
			resp, err := cl.Wait(cmd.Context(), args[0], sink)
			finish()
			if err != nil {
				return err
			}
			printJobSummary(cmd.OutOrStdout(), jobFromResponse(resp))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a finished job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := ctx.client()
			if err != nil {
				return err
			}
			if err := cl.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	})

	return cmd
}

func renderJobs(jobs []server.JobResponse) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"ID", "Kind", "Status", "Progress", "Output"})
	for _, j := range jobs {
		tw.AppendRow(table.Row{
			j.ID,
			j.Kind,
			j.Status,
			fmt.Sprintf("%.0f%%", j.Progress*100),
			j.OutputPath,
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
	})
	return tw.Render()
}

// jobFromResponse rebuilds the fields printJobSummary needs.
func jobFromResponse(resp server.JobResponse) *job.Job {
	j := job.NewWithID(resp.ID, job.Kind(resp.Kind))
	j.Status = job.Status(resp.Status)
	j.Progress = resp.Progress
	j.Error = resp.Error
	j.InputPaths = resp.InputPaths
	j.OutputPath = resp.OutputPath
	j.OutputURL = resp.OutputURL
	j.SourceDurationMs = resp.SourceDurationMs
	j.OutputDurationMs = resp.OutputDurationMs
	j.SkippedInputs = resp.SkippedInputs
	j.CreatedAt = resp.CreatedAt
	if len(resp.KeepRanges) > 0 {
		j.KeepRanges = make([]timeline.Range, len(resp.KeepRanges))
		for i, r := range resp.KeepRanges {
			j.KeepRanges[i] = timeline.Range{Start: r.StartMs, End: r.EndMs}
		}
	}
	return j
}
