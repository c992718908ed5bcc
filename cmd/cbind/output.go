package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"cbind/internal/diag"
	"cbind/internal/pipeline"
	"cbind/internal/report"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed, color.Bold)
	dimColor  = color.New(color.Faint)
)

// applyColorFlag maps --color onto color.NoColor.
func applyColorFlag(cmd *cobra.Command) error {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	switch strings.ToLower(mode) {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "", "auto":
		color.NoColor = !isTerminal(os.Stdout)
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
	return nil
}

type outputOptions struct {
	quiet   bool
	timings bool
}

func readOutputOptions(cmd *cobra.Command) (outputOptions, error) {
	flags := cmd.Root().PersistentFlags()
	quiet, err := flags.GetBool("quiet")
	if err != nil {
		return outputOptions{}, fmt.Errorf("failed to get quiet flag: %w", err)
	}
	timings, err := flags.GetBool("timings")
	if err != nil {
		return outputOptions{}, fmt.Errorf("failed to get timings flag: %w", err)
	}
	return outputOptions{quiet: quiet, timings: timings}, nil
}

// printSummary writes one status line per result followed by its
// warnings and errors.
func printSummary(out io.Writer, results []*pipeline.Result, opts outputOptions) {
	for _, res := range results {
		if res == nil {
			continue
		}
		mark := okColor.Sprint("ok")
		switch {
		case res.Bag.HasErrors():
			mark = errColor.Sprint("failed")
		case len(res.Omissions) > 0:
			mark = warnColor.Sprint("partial")
		}
		if !opts.quiet || res.Bag.HasErrors() {
			fmt.Fprintf(out, "%-8s %s %s\n", mark, res.Name,
				dimColor.Sprintf("(%d units, %d omitted, %.1f ms)", len(res.Units), len(res.Omissions), toMillis(res.Timings.Sum())))
		}
		for _, d := range res.Bag.Items() {
			if d.Severity < diag.SevWarning || (opts.quiet && d.Severity < diag.SevError) {
				continue
			}
			paint := warnColor
			if d.Severity >= diag.SevError {
				paint = errColor
			}
			fmt.Fprintf(out, "  %s\n", paint.Sprint(diag.FormatShort([]diag.Diagnostic{d}, false)))
		}
		if opts.timings {
			printStageTimings(out, res.Timings)
		}
	}
}

func printStageTimings(out io.Writer, timings pipeline.Timings) {
	for _, stage := range pipeline.Stages {
		if !timings.Has(stage) {
			continue
		}
		fmt.Fprintf(out, "  %-10s %7.1f ms\n", stage, toMillis(timings.Duration(stage)))
	}
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func addReportFlags(f *pflag.FlagSet) {
	f.String("report", "", "write the omission report to this file (- for stdout)")
	f.String("report-format", "text", "omission report format (text|yaml|json)")
	f.String("report-query", "", "jq expression applied to the report instead of --report-format")
}

// writeReport writes the omission report named by the report flags.
func writeReport(cmd *cobra.Command, results []*pipeline.Result, timings bool) error {
	f := cmd.Flags()
	path, _ := f.GetString("report")
	format, _ := f.GetString("report-format")
	query, _ := f.GetString("report-query")
	if path == "" {
		if query == "" {
			return nil
		}
		path = "-"
	}
	reportFormat, err := report.ParseFormat(format)
	if err != nil {
		return err
	}
	doc := report.FromResults(results, report.Options{MinSeverity: diag.SevWarning, Timings: timings})
	write := func(w io.Writer) error {
		if query != "" {
			return report.WriteQuery(cmd.Context(), w, doc, query)
		}
		return report.Write(w, doc, reportFormat)
	}
	if path == "-" {
		return write(cmd.OutOrStdout())
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
