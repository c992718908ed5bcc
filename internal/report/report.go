// Package report renders what a run left out of its output: skipped
// entries, unresolved macros, dropped declarations, layout disagreements
// and diagnostics.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"gopkg.in/yaml.v3"

	"cbind/internal/diag"
	"cbind/internal/observ"
	"cbind/internal/pipeline"
)

// Format selects the report encoding.
type Format string

const (
	FormatText Format = "text"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat validates a report format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatYAML, FormatJSON:
		return f, nil
	case "":
		return FormatText, nil
	case "yml":
		return FormatYAML, nil
	}
	return FormatText, fmt.Errorf("unknown report format %q (expected text|yaml|json)", s)
}

// Diagnostic is the serializable form of diag.Diagnostic.
type Diagnostic struct {
	Severity string `json:"severity" yaml:"severity"`
	Code     string `json:"code" yaml:"code"`
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
	Message  string `json:"message" yaml:"message"`
}

// Run summarizes one pipeline result.
type Run struct {
	Name        string              `json:"name" yaml:"name"`
	Units       int                 `json:"units" yaml:"units"`
	Omissions   []pipeline.Omission `json:"omissions,omitempty" yaml:"omissions,omitempty"`
	Mismatches  []pipeline.Mismatch `json:"layout_mismatches,omitempty" yaml:"layout_mismatches,omitempty"`
	Diagnostics []Diagnostic        `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
	Timings     *observ.Report      `json:"timings,omitempty" yaml:"timings,omitempty"`
}

// Document is a complete report.
type Document struct {
	Runs []Run `json:"runs" yaml:"runs"`
}

// Options tune FromResults.
type Options struct {
	// MinSeverity drops diagnostics below it.
	MinSeverity diag.Severity
	Timings     bool
}

// FromResults collects the reportable parts of results. Nil results, left
// by runs that failed before producing anything, are skipped.
func FromResults(results []*pipeline.Result, opts Options) Document {
	var doc Document
	for _, res := range results {
		if res == nil {
			continue
		}
		run := Run{Name: res.Name, Units: len(res.Units), Omissions: res.Omissions, Mismatches: res.Mismatches}
		if res.Bag != nil {
			for _, d := range res.Bag.Items() {
				if d.Severity < opts.MinSeverity {
					continue
				}
				item := Diagnostic{Severity: d.Severity.Label(), Code: d.Code.ID(), Message: d.Message}
				if d.Primary.IsValid() {
					item.Location = d.Primary.String()
				}
				run.Diagnostics = append(run.Diagnostics, item)
			}
		}
		if opts.Timings {
			rep := res.Report
			run.Timings = &rep
		}
		doc.Runs = append(doc.Runs, run)
	}
	return doc
}

// Write encodes doc in format.
func Write(w io.Writer, doc Document, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}
	return writeText(w, doc)
}

func writeText(w io.Writer, doc Document) error {
	var b strings.Builder
	for i, run := range doc.Runs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %d units, %d omissions\n", run.Name, run.Units, len(run.Omissions))
		rows := make([][2]string, 0, len(run.Omissions)+len(run.Mismatches))
		for _, o := range run.Omissions {
			rows = append(rows, [2]string{string(o.Kind) + " " + o.Name, o.Reason})
		}
		for _, m := range run.Mismatches {
			rows = append(rows, [2]string{"layout " + m.Declaration, m.Detail})
		}
		writeRows(&b, rows)
		for _, d := range run.Diagnostics {
			loc := d.Location
			if loc == "" {
				loc = "-"
			}
			fmt.Fprintf(&b, "  %s %s %s %s\n", d.Severity, d.Code, loc, d.Message)
		}
		if run.Timings != nil {
			for _, line := range strings.Split(strings.TrimRight(run.Timings.Summary(), "\n"), "\n") {
				b.WriteString("  " + line + "\n")
			}
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// writeRows pads the first column to its widest cell; names may hold
// non-ASCII identifiers.
func writeRows(b *strings.Builder, rows [][2]string) {
	width := 0
	for _, r := range rows {
		width = max(width, runewidth.StringWidth(r[0]))
	}
	for _, r := range rows {
		fmt.Fprintf(b, "  %s  %s\n", runewidth.FillRight(r[0], width), r[1])
	}
}
