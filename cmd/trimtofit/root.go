package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var logLevel string
	var quiet bool
	var noColor bool
	var serverURL string

	ctx := newCommandContext(&logLevel, &quiet, &serverURL)

	rootCmd := &cobra.Command{
		Use:           "trimtofit",
		Short:         "Trim, retime, convert and merge audio files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Hide the progress bar")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", os.Getenv("TRIMTOFIT_SERVER"), "Run jobs on a trimtofit server instead of locally")

	rootCmd.AddCommand(newTrimCommand(ctx))
	rootCmd.AddCommand(newSpeedCommand(ctx))
	rootCmd.AddCommand(newConvertCommand(ctx))
	rootCmd.AddCommand(newMergeCommand(ctx))
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newJobsCommand(ctx))

	return rootCmd
}
