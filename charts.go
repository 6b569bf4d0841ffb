package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"sheetsql/internal/sheets"
)

// BarChart creates a horizontal bar chart
func BarChart(label string, value, max float64, width int, color lipgloss.Color) string {
	if max == 0 {
		max = value
	}

	percentage := 0.0
	if max > 0 {
		percentage = value / max
	}
	if percentage > 1 {
		percentage = 1
	}

	filledWidth := int(float64(width) * percentage)
	if filledWidth < 0 {
		filledWidth = 0
	}

	filled := strings.Repeat("█", filledWidth)
	empty := strings.Repeat("░", width-filledWidth)

	barStyle := lipgloss.NewStyle().Foreground(color)
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	return fmt.Sprintf("%s %s%s %.0f",
		label,
		barStyle.Render(filled),
		emptyStyle.Render(empty),
		value,
	)
}

// PercentageBar creates a percentage-based progress bar
func PercentageBar(label string, percentage float64, width int) string {
	if percentage > 100 {
		percentage = 100
	}
	if percentage < 0 {
		percentage = 0
	}

	filledWidth := int(float64(width) * percentage / 100)
	filled := strings.Repeat("█", filledWidth)
	empty := strings.Repeat("░", width-filledWidth)

	// Color based on percentage
	var color lipgloss.Color
	switch {
	case percentage >= 99.95:
		color = lipgloss.Color("82") // Green
	case percentage >= 75:
		color = lipgloss.Color("226") // Yellow
	case percentage >= 50:
		color = lipgloss.Color("214") // Orange
	default:
		color = lipgloss.Color("196") // Red
	}

	barStyle := lipgloss.NewStyle().Foreground(color)
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	return fmt.Sprintf("%s %s%s %.1f%%",
		label,
		barStyle.Render(filled),
		emptyStyle.Render(empty),
		percentage,
	)
}

// padLabel left-aligns labels to width terminal cells so the bars line up
func padLabel(label string, width int) string {
	w := lipgloss.Width(label)
	if w > width {
		label = ansi.Truncate(label, width, "…")
		w = lipgloss.Width(label)
	}
	return label + strings.Repeat(" ", width-w)
}

// columnFillChart shows, for every column of sh, the share of non-empty cells
func columnFillChart(sh *sheets.Sheet, barWidth int) string {
	if sh == nil || sh.NumColumns() == 0 {
		return ""
	}

	labelWidth := 0
	cols := sh.NormalizedColumns()
	for _, c := range cols {
		labelWidth = max(labelWidth, lipgloss.Width(c))
	}
	if labelWidth > 24 {
		labelWidth = 24
	}

	var b strings.Builder
	for i, c := range cols {
		b.WriteString(PercentageBar(padLabel(c, labelWidth), sh.ColumnFill(i), barWidth))
		b.WriteString("\n")
	}
	return b.String()
}

// rowCountChart compares the row counts of the loaded sheets
func rowCountChart(set *sheets.Set, barWidth int) string {
	all := set.Sheets()
	if len(all) == 0 {
		return ""
	}

	most, labelWidth := 0, 0
	for _, sh := range all {
		most = max(most, sh.NumRows())
		labelWidth = max(labelWidth, lipgloss.Width(sh.Name))
	}
	if labelWidth > 24 {
		labelWidth = 24
	}

	var b strings.Builder
	for _, sh := range all {
		b.WriteString(BarChart(padLabel(sh.Name, labelWidth), float64(sh.NumRows()), float64(most), barWidth, lipgloss.Color("62")))
		b.WriteString("\n")
	}
	return b.String()
}
