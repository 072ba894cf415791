package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/kylemclaren/claude-office/internal/office"
)

const (
	defaultBoardWidth = 120
	minColumnWidth    = 14
)

// RenderBoard draws the board as bordered columns side by side.
// focus and selected mark the highlighted card; pass -1 to highlight nothing.
func RenderBoard(board []office.BoardColumn, width, focus, selected int) string {
	if len(board) == 0 {
		return ""
	}
	if width <= 0 {
		width = defaultBoardWidth
	}
	// each column carries 2 border and 2 padding cells
	inner := width/len(board) - 4
	if inner < minColumnWidth {
		inner = minColumnWidth
	}

	cols := make([]string, len(board))
	for i, col := range board {
		var b strings.Builder
		b.WriteString(columnTitleStyle.Render(truncate(fmt.Sprintf("%s (%d)", col.Column, len(col.Tasks)), inner)))
		b.WriteString("\n")
		b.WriteString(dividerStyle.Render(strings.Repeat("─", inner)))
		if len(col.Tasks) == 0 {
			b.WriteString("\n")
			b.WriteString(subtitleStyle.Render("empty"))
		}
		for j, task := range col.Tasks {
			b.WriteString("\n")
			card := truncate(fmt.Sprintf("#%d %s", task.ID, task.Title), inner)
			if i == focus && j == selected {
				b.WriteString(selectedCardStyle.Render(padRight(card, inner)))
			} else {
				b.WriteString(cardStyle.Render(card))
			}
			if task.Assignee != nil {
				b.WriteString("\n")
				b.WriteString(assigneeStyle.Render(truncate("  @"+*task.Assignee, inner)))
			}
		}

		style := columnStyle
		if i == focus {
			style = focusedColumnStyle
		}
		cols[i] = style.Width(inner + 2).Render(b.String())
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

// RenderPlainBoard lists the board one column after another, for pipes
// and narrow terminals.
func RenderPlainBoard(board []office.BoardColumn) string {
	var b strings.Builder
	for i, col := range board {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s (%d)\n", strings.ToUpper(string(col.Column)), len(col.Tasks))
		for _, task := range col.Tasks {
			fmt.Fprintf(&b, "  #%d %s", task.ID, task.Title)
			if task.Assignee != nil {
				fmt.Fprintf(&b, " @%s", *task.Assignee)
			}
			if len(task.Dependencies) > 0 {
				fmt.Fprintf(&b, " (after %s)", joinIDs(task.Dependencies))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("#%d", id)
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, max int) string {
	if runewidth.StringWidth(s) <= max {
		return s
	}
	return runewidth.Truncate(s, max, "...")
}

func padRight(s string, width int) string {
	return runewidth.FillRight(s, width)
}
