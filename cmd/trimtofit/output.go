package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/maauso/trimtofit/internal/job"
	"github.com/maauso/trimtofit/internal/progress"
	"github.com/maauso/trimtofit/internal/timeline"
)

var (
	labelColor = color.New(color.FgYellow)
	valueColor = color.New(color.FgGreen)
	fileColor  = color.New(color.FgMagenta)
	warnColor  = color.New(color.FgRed)
)

// newProgressSink returns a sink that drives a progress bar on w, and a
// function that completes the bar. No bar is drawn when w is not a terminal.
func newProgressSink(w io.Writer, description string, quiet bool) (progress.Sink, func()) {
	if quiet || !isTerminal(w) {
		return progress.Nop, func() {}
	}

	bar := progressbar.NewOptions(progress.Scale,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionThrottle(50*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	sink := func(fraction float64) {
		_ = bar.Set(int(fraction*progress.Scale + 0.5))
	}
	finish := func() {
		_ = bar.Finish()
	}
	return sink, finish
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func printField(w io.Writer, label string, value string, c *color.Color) {
	fmt.Fprintf(w, "%s %s\n", labelColor.Sprint(label+":"), c.Sprint(value))
}

// printJobSummary reports the outcome of a finished job.
func printJobSummary(w io.Writer, j *job.Job) {
	printField(w, "job", fmt.Sprintf("%s (%s)", j.ID, j.Kind), valueColor)
	printField(w, "input", strings.Join(j.InputPaths, ", "), valueColor)
	if j.SourceDurationMs > 0 {
		printField(w, "duration", timeline.FormatTimestamp(j.SourceDurationMs), valueColor)
	}
	printField(w, "output", j.OutputPath, fileColor)
	if j.OutputDurationMs > 0 {
		out := timeline.FormatTimestamp(j.OutputDurationMs)
		if j.SourceDurationMs > 0 {
			percent := float64(j.OutputDurationMs) / float64(j.SourceDurationMs) * 100
			out = fmt.Sprintf("%s (%.1f%%)", out, percent)
		}
		printField(w, "output duration", out, fileColor)
	}
	if j.OutputURL != "" {
		printField(w, "url", j.OutputURL, fileColor)
	}
	for _, skipped := range j.SkippedInputs {
		printField(w, "skipped", skipped, warnColor)
	}
}

// renderPlan renders the keep ranges of a plan as a table followed by totals.
func renderPlan(plan job.Plan) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Start", "End", "Length"})
	for i, r := range plan.Keep {
		tw.AppendRow(table.Row{
			i + 1,
			timeline.FormatTimestamp(r.Start),
			timeline.FormatTimestamp(r.End),
			timeline.FormatTimestamp(r.Len()),
		})
	}
	tw.AppendFooter(table.Row{"", "", "kept", timeline.FormatTimestamp(plan.KeptMs)})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})

	var b strings.Builder
	b.WriteString(tw.Render())
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s of %s (%s removed)\n",
		labelColor.Sprint("kept:"),
		valueColor.Sprint(timeline.FormatTimestamp(plan.KeptMs)),
		timeline.FormatTimestamp(plan.TotalMs),
		timeline.FormatTimestamp(plan.RemovedMs),
	)
	return b.String()
}
