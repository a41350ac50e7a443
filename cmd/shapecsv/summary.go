package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/ajitpratap0/shapecsv/internal/pipeline"
	cerrors "github.com/ajitpratap0/shapecsv/pkg/errors"
	"github.com/ajitpratap0/shapecsv/pkg/metrics"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
	labelColor   = color.New(color.FgCyan)
)

func printSuccess(w io.Writer, format string, args ...interface{}) {
	successColor.Fprint(w, "✓ ")
	fmt.Fprintf(w, format+"\n", args...)
}

func printWarnings(w io.Writer, warnings []string) {
	for _, msg := range warnings {
		warnColor.Fprintf(w, "! %s\n", msg)
	}
}

func printImportSummary(w io.Writer, result *pipeline.ImportResult, output string) {
	net := result.Document.Network
	target := output
	if target == "" || target == "-" {
		target = "stdout"
	}
	printSuccess(w, "imported network %q to %s", net.Name, target)
	labelColor.Fprint(w, "  run:      ")
	fmt.Fprintln(w, result.RunID)
	labelColor.Fprint(w, "  nodes:    ")
	fmt.Fprintln(w, len(net.Nodes))
	labelColor.Fprint(w, "  links:    ")
	fmt.Fprintln(w, len(net.Links))
	labelColor.Fprint(w, "  groups:   ")
	fmt.Fprintln(w, len(net.Groups))
	labelColor.Fprint(w, "  duration: ")
	fmt.Fprintln(w, result.Duration)
	printWarnings(w, result.Warnings)
}

func printExportSummary(w io.Writer, result *pipeline.ExportResult) {
	printSuccess(w, "exported to %s", result.NetworkDir)
	labelColor.Fprint(w, "  run:       ")
	fmt.Fprintln(w, result.RunID)
	for _, dir := range result.ScenarioDirs {
		labelColor.Fprint(w, "  scenario:  ")
		fmt.Fprintln(w, dir)
	}
	labelColor.Fprint(w, "  files:     ")
	fmt.Fprintln(w, len(result.Files))
	labelColor.Fprint(w, "  duration:  ")
	fmt.Fprintln(w, result.Duration)
	printWarnings(w, result.Warnings)
}

// printCounts lists the non-zero counters of the run, sorted by name.
func printCounts(w io.Writer, collector *metrics.Collector) {
	counts, err := collector.Counts()
	if err != nil {
		warnColor.Fprintf(w, "! metrics unavailable: %v\n", err)
		return
	}
	keys := make([]string, 0, len(counts))
	for k, v := range counts {
		if v > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return
	}
	labelColor.Fprintln(w, "  metrics:")
	for _, k := range keys {
		fmt.Fprintf(w, "    %-48s %g\n", k, counts[k])
	}
}

func printError(w io.Writer, err error) {
	errorColor.Fprint(w, "Error: ")
	fmt.Fprintln(w, err)

	var ce *cerrors.Error
	if !cerrors.As(err, &ce) || len(ce.Details) == 0 {
		return
	}
	keys := make([]string, 0, len(ce.Details))
	for k := range ce.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, ce.Details[k]))
	}
	fmt.Fprintf(w, "  %s\n", strings.Join(parts, " "))
}
