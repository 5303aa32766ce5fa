package render

import (
	"fmt"
	"strings"
	"unicode/utf8"

	humanize "github.com/dustin/go-humanize"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ALT-F4-LLC/issuesnap/internal/model"
)

const (
	maxTitleWidth = 40
	maxListWidth  = 24
)

// StyledText applies a lipgloss style to text when colors are enabled.
// When colors are disabled, it returns the plain text unchanged.
func StyledText(text string, style lipgloss.Style) string {
	if ColorsEnabled() {
		return style.Render(text)
	}
	return text
}

// ColorFromName maps model color name strings to lipgloss colors.
func ColorFromName(name string) lipgloss.Color {
	switch name {
	case "red":
		return lipgloss.Color("9")
	case "green":
		return lipgloss.Color("10")
	case "magenta":
		return lipgloss.Color("13")
	case "gray":
		return lipgloss.Color("8")
	default:
		return lipgloss.Color("15")
	}
}

// truncate shortens a string to maxLen runes, appending an ellipsis if truncated.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

func stateLabel(s model.State) string {
	return s.Icon() + " " + string(s)
}

// joinList renders a string list for a table cell. A nil list renders as a
// dash so that "no projects" is visibly distinct from an empty cell.
func joinList(items []string) string {
	if items == nil {
		return "-"
	}
	return truncate(strings.Join(items, ", "), maxListWidth)
}

func updatedLabel(r *model.Row) string {
	if t, ok := r.Updated(); ok {
		return humanize.Time(t)
	}
	return "-"
}

// EmptyState renders a styled empty-state message with an optional contextual hint.
// When colors are enabled the message is rendered in dim gray and the hint is italic.
// When quiet is true the hint is suppressed.
func EmptyState(message, hint string, quiet bool) string {
	if !ColorsEnabled() {
		if quiet || hint == "" {
			return message
		}
		return message + "\n" + hint
	}

	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	hintStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)

	result := dimStyle.Render(message)
	if !quiet && hint != "" {
		result += "\n" + hintStyle.Render(hint)
	}
	return result
}

// RenderRows renders loaded issue rows as a table.
func RenderRows(rows []*model.Row) string {
	if len(rows) == 0 {
		return EmptyState("No issues found.", "Load some with: issuesnap run", false)
	}

	if !ColorsEnabled() {
		return renderPlainRows(rows)
	}

	headers := []string{"#", "State", "Title", "Labels", "Projects", "Assignees", "Updated"}

	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, rowCells(r))
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers(headers...).
		Rows(cells...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)

			if row == table.HeaderRow {
				return s.Bold(true).Foreground(lipgloss.Color("15"))
			}
			if row < 0 || row >= len(rows) {
				return s
			}

			switch col {
			case 1: // State
				return s.Foreground(ColorFromName(rows[row].State.Color()))
			case 2: // Title
				return s.Bold(true)
			case 4: // Projects
				if rows[row].Projects == nil {
					return s.Foreground(lipgloss.Color("8"))
				}
				return s.Foreground(lipgloss.Color("12"))
			default:
				return s
			}
		})

	return t.Render()
}

func rowCells(r *model.Row) []string {
	return []string{
		model.FormatNumber(r.IssueID),
		stateLabel(r.State),
		truncate(r.Title, maxTitleWidth),
		joinList(r.Labels),
		joinList(r.Projects),
		joinList(r.Assignees),
		updatedLabel(r),
	}
}

func renderPlainRows(rows []*model.Row) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%-8s %-10s %-40s %-24s %-24s %-24s %s\n",
		"#", "State", "Title", "Labels", "Projects", "Assignees", "Updated")
	fmt.Fprintf(&b, "%s\n", strings.Repeat("-", 150))

	for _, r := range rows {
		c := rowCells(r)
		fmt.Fprintf(&b, "%-8s %-10s %-40s %-24s %-24s %-24s %s\n",
			c[0], c[1], c[2], c[3], c[4], c[5], c[6])
	}

	return b.String()
}

// RenderLoadRuns renders the load history as a table.
func RenderLoadRuns(runs []model.LoadRun) string {
	if len(runs) == 0 {
		return EmptyState("No loads recorded.", "Load some with: issuesnap run", false)
	}

	cells := make([][]string, 0, len(runs))
	for _, r := range runs {
		cells = append(cells, []string{
			r.ID,
			r.Table,
			humanize.Comma(int64(r.Rows)),
			humanize.Time(r.LoadedAt),
		})
	}

	if !ColorsEnabled() {
		var b strings.Builder
		fmt.Fprintf(&b, "%-36s %-24s %10s %s\n", "Run", "Table", "Rows", "Loaded")
		fmt.Fprintf(&b, "%s\n", strings.Repeat("-", 90))
		for _, c := range cells {
			fmt.Fprintf(&b, "%-36s %-24s %10s %s\n", c[0], c[1], c[2], c[3])
		}
		return b.String()
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers("Run", "Table", "Rows", "Loaded").
		Rows(cells...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
			if row == table.HeaderRow {
				return s.Bold(true).Foreground(lipgloss.Color("15"))
			}
			if col == 0 {
				return s.Foreground(lipgloss.Color("8"))
			}
			if col == 2 {
				return s.Align(lipgloss.Right)
			}
			return s
		}).
		Render()
}
