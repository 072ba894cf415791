package tui

import (
	"strings"
	"testing"

	"github.com/kylemclaren/claude-office/internal/db"
	"github.com/kylemclaren/claude-office/internal/office"
)

func sampleBoard() []office.BoardColumn {
	alice := "alice"
	board := make([]office.BoardColumn, len(db.Columns))
	for i, col := range db.Columns {
		board[i] = office.BoardColumn{Column: col, Tasks: []*db.Task{}}
	}
	board[0].Tasks = append(board[0].Tasks, &db.Task{ID: 1, Title: "draft the announcement", Column: db.ColumnIdea})
	board[2].Tasks = append(board[2].Tasks, &db.Task{ID: 2, Title: "ship it", Column: db.ColumnWorkingOn, Assignee: &alice, Dependencies: []int64{1}})
	return board
}

func TestRenderPlainBoard(t *testing.T) {
	t.Parallel()

	out := RenderPlainBoard(sampleBoard())
	for _, want := range []string{
		"IDEA (1)\n  #1 draft the announcement\n",
		"WORKING ON (1)\n  #2 ship it @alice (after #1)\n",
		"DONE (0)\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
	if strings.Index(out, "IDEA") > strings.Index(out, "DONE") {
		t.Fatalf("expected columns in board order:\n%s", out)
	}
}

func TestRenderBoardShowsEveryColumn(t *testing.T) {
	t.Parallel()

	out := RenderBoard(sampleBoard(), 240, 0, 0)
	for _, col := range db.Columns {
		if !strings.Contains(out, string(col)) {
			t.Fatalf("expected column %q in:\n%s", col, out)
		}
	}
	if !strings.Contains(out, "#2 ship it") || !strings.Contains(out, "@alice") {
		t.Fatalf("expected the assigned card in:\n%s", out)
	}
	if RenderBoard(nil, 80, -1, -1) != "" {
		t.Fatal("expected an empty board to render nothing")
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate kept %q", got)
	}
	if got := truncate("a much longer title", 10); got != "a much ..." {
		t.Fatalf("truncate = %q", got)
	}
}

func TestRenderMarkdownEmpty(t *testing.T) {
	t.Parallel()

	out, err := RenderMarkdown("  ", 40)
	if err != nil || out != "" {
		t.Fatalf("expected nothing for a blank description, got %q, %v", out, err)
	}
	out, err = RenderMarkdown("# Plan\n\nShip **it**.", 40)
	if err != nil {
		t.Fatalf("RenderMarkdown: %v", err)
	}
	if !strings.Contains(out, "Plan") || !strings.Contains(out, "Ship") {
		t.Fatalf("unexpected markdown output %q", out)
	}
}
