package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/graphdb/core/internal/engine"
	"github.com/graphdb/core/internal/eval"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{
		Light: "#399ee6",
		Dark:  "#59c2ff",
	})
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#828c99",
		Dark:  "#6c7680",
	})
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#f07171",
		Dark:  "#f07178",
	})
	connectorStyle = mutedStyle
)

// renderResultSet prints rs as a column-aligned table, or a muted
// one-line notice for a mutation that produced no rows/columns.
func renderResultSet(rs engine.ResultSet) {
	if len(rs.Columns) == 0 {
		fmt.Println(mutedStyle.Render("(no rows)"))
		return
	}

	widths := make([]int, len(rs.Columns))
	cells := make([][]string, len(rs.Rows))
	for i, c := range rs.Columns {
		widths[i] = len(c)
	}
	for r, row := range rs.Rows {
		cells[r] = make([]string, len(rs.Columns))
		for i, c := range rs.Columns {
			s := formatValue(row[c])
			cells[r][i] = s
			if len(s) > widths[i] {
				widths[i] = len(s)
			}
		}
	}

	var header strings.Builder
	for i, c := range rs.Columns {
		if i > 0 {
			header.WriteString("  ")
		}
		header.WriteString(padRight(c, widths[i]))
	}
	fmt.Println(headerStyle.Render(header.String()))

	var rule strings.Builder
	for i := range rs.Columns {
		if i > 0 {
			rule.WriteString("  ")
		}
		rule.WriteString(strings.Repeat("-", widths[i]))
	}
	fmt.Println(mutedStyle.Render(rule.String()))

	for _, row := range cells {
		var line strings.Builder
		for i, s := range row {
			if i > 0 {
				line.WriteString("  ")
			}
			line.WriteString(padRight(s, widths[i]))
		}
		fmt.Println(line.String())
	}
	fmt.Println(mutedStyle.Render(fmt.Sprintf("(%d rows)", len(rs.Rows))))
}

func padRight(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}

func formatValue(v eval.Value) string {
	return v.String()
}
