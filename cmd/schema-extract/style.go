// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/pdiddy/schema-extract/internal/chunk"
	"github.com/pdiddy/schema-extract/internal/extract"
	"github.com/pdiddy/schema-extract/pkg/types"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("69"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("69")).
			Padding(0, 1)
)

// chunkSummary is one row of the plan summary.
type chunkSummary struct {
	Properties  []string
	Definitions int
	Batch       int
	Tokens      int
}

// formatPlan renders the plan summary: one line per chunk, the coverage
// result and any warnings.
func formatPlan(w io.Writer, schemaPath string, threshold int, rows []chunkSummary, res *chunk.Result) {
	header := fmt.Sprintf("%s %s\n%s %d  %s %d",
		dimStyle.Render("Schema:"), schemaPath,
		dimStyle.Render("Threshold:"), threshold,
		dimStyle.Render("Chunks:"), len(rows),
	)
	fmt.Fprintln(w, boxStyle.Render(header))

	for i, r := range rows {
		fmt.Fprintf(w, "%s %s\n", titleStyle.Render(fmt.Sprintf("chunk %d", i+1)),
			dimStyle.Render(fmt.Sprintf("(%d properties, %d definitions, batch %d tok, chunk %d tok)",
				len(r.Properties), r.Definitions, r.Batch, r.Tokens)))
		fmt.Fprintf(w, "  %s\n", strings.Join(r.Properties, ", "))
	}

	switch {
	case res.Coverage.Passed:
		fmt.Fprintln(w, successStyle.Render("✓ all required properties covered"))
	default:
		fmt.Fprintln(w, errorStyle.Render("✗ required properties not covered: "+strings.Join(res.Coverage.Missing, ", ")))
	}
	for _, warn := range res.Warnings {
		fmt.Fprintln(w, warnStyle.Render("! "+warn))
	}
}

// formatRun renders the outcome of an extraction run.
func formatRun(w io.Writer, run *types.Run, out *extract.Output, resultPath string) {
	header := fmt.Sprintf("%s %s\n%s %s / %s\n%s %d  %s %d",
		dimStyle.Render("Run:"), run.ID,
		dimStyle.Render("Model:"), run.Provider, run.Model,
		dimStyle.Render("Chunks:"), len(out.Results),
		dimStyle.Render("Failed:"), out.Failed(),
	)
	fmt.Fprintln(w, boxStyle.Render(header))

	for _, r := range out.Results {
		label := fmt.Sprintf("chunk %d", r.Index)
		switch {
		case !r.OK():
			fmt.Fprintf(w, "%s %s\n", errorStyle.Render("✗ "+label), r.Failure.Error)
		case len(r.Violations) > 0:
			fmt.Fprintf(w, "%s %s\n", warnStyle.Render("! "+label),
				dimStyle.Render(fmt.Sprintf("%d schema violations, %d attempts, %s", len(r.Violations), r.Attempts, r.Elapsed.Round(time.Millisecond))))
			for _, v := range r.Violations {
				fmt.Fprintf(w, "    %s\n", v)
			}
		default:
			fmt.Fprintf(w, "%s %s\n", successStyle.Render("✓ "+label),
				dimStyle.Render(fmt.Sprintf("%d attempts, %s", r.Attempts, r.Elapsed.Round(time.Millisecond))))
		}
	}
	if resultPath != "" {
		fmt.Fprintf(w, "%s %s\n", dimStyle.Render("Result:"), resultPath)
	}
}

// formatRuns renders the run history table.
func formatRuns(w io.Writer, runs []types.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}

	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%-8s  %-20s  %-24s  %-24s  %6s  %6s",
		"ID", "Created", "Schema", "Document", "Chunks", "Failed")))
	for _, r := range runs {
		fmt.Fprintf(w, "%-8s  %-20s  %-24s  %-24s  %6d  %6d\n",
			r.ID[:min(8, len(r.ID))], r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			shorten(r.SchemaPath, 24), shorten(r.DocumentPath, 24), r.ChunkCount, r.Failed)
	}
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
