package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/defectset/pkg/pipeline"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorBlue   = lipgloss.Color("75")  // Light blue - commands
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Styles
// =============================================================================

var (
	StyleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	StyleDim     = lipgloss.NewStyle().Foreground(colorDim)
	StyleValue   = lipgloss.NewStyle().Foreground(colorWhite)
	StyleNumber  = lipgloss.NewStyle().Foreground(colorCyan)
	StyleSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
	StyleError   = lipgloss.NewStyle().Foreground(colorRed)
)

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleHeader  = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	styleCommand = lipgloss.NewStyle().Foreground(colorBlue)
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// =============================================================================
// Status Output
// =============================================================================

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconSuccess.Render(iconSuccess)+" "+fmt.Sprintf(format, args...))
}

func printError(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconError.Render(iconError)+" "+fmt.Sprintf(format, args...))
}

func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconWarning.Render(iconWarning)+" "+StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconInfo.Render(iconInfo)+" "+fmt.Sprintf(format, args...))
}

// printDetail prints an indented, dimmed line.
func printDetail(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, "  "+StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printDir prints an output directory line.
func printDir(w io.Writer, path string) {
	fmt.Fprintln(w, "  "+StyleDim.Render(iconArrow)+" "+StyleValue.Render(path))
}

// printNextStep prints a suggested next command.
func printNextStep(w io.Writer, description, cmd string) {
	fmt.Fprintln(w, StyleDim.Render(description+":")+" "+styleCommand.Render(cmd))
}

// =============================================================================
// Stage Results
// =============================================================================

// summaryTable renders one row per stage and a total row.
func summaryTable(results []*pipeline.StageResult, total time.Duration) string {
	var rows [][]string
	var sum pipeline.Summary
	for _, r := range results {
		rows = append(rows, []string{
			r.Stage,
			strconv.Itoa(r.Counts.Written),
			strconv.Itoa(r.Counts.Skipped),
			strconv.Itoa(r.Counts.Warnings),
			cacheCell(r),
			r.Duration.Round(time.Millisecond).String(),
		})
		sum.Stages = append(sum.Stages, r)
	}
	t := sum.Totals()
	rows = append(rows, []string{
		"total",
		strconv.Itoa(t.Written),
		strconv.Itoa(t.Skipped),
		strconv.Itoa(t.Warnings),
		"",
		total.Round(time.Millisecond).String(),
	})
	last := len(rows) - 1

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Stage", "Written", "Skipped", "Warnings", "Cached", "Time").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			switch {
			case row == table.HeaderRow:
				return base.Inherit(styleHeader)
			case row == last:
				return base.Bold(true)
			case col == 2 && rows[row][col] != "0":
				return base.Inherit(StyleError)
			case col == 3 && rows[row][col] != "0":
				return base.Inherit(StyleWarning)
			case col == 0:
				return base.Inherit(StyleNumber)
			}
			return base
		}).
		Render()
}

func cacheCell(r *pipeline.StageResult) string {
	if r.Stage != pipeline.StageImages && r.Stage != pipeline.StageEnhance {
		return ""
	}
	return strconv.Itoa(r.CacheHits)
}

// printResults prints the summary table followed by the stage details that
// deserve attention.
func printResults(w io.Writer, results []*pipeline.StageResult, total time.Duration) {
	fmt.Fprintln(w, summaryTable(results, total))
	for _, r := range results {
		if s := r.Sampling; s != nil && s.Accepted+s.Exhausted > 0 {
			printDetail(w, "sampling: %d accepted, %d exhausted, %.1f%% acceptance, %.1f mean draws",
				s.Accepted, s.Exhausted, 100*s.Rate, s.MeanTries)
		}
		if sp := r.Split; sp != nil && len(sp.Unknown) > 0 {
			printWarning(w, "%d group(s) without a partition: %v", len(sp.Unknown), sp.Unknown)
		}
	}
}

// printProblems lists up to limit problems of every stage.
func printProblems(w io.Writer, results []*pipeline.StageResult, limit int) {
	n := 0
	for _, r := range results {
		for _, p := range r.Problems {
			if n == limit {
				printDetail(w, "... see the log for the remaining problems")
				return
			}
			printDetail(w, "%s: %v", r.Stage, p)
			n++
		}
	}
}
