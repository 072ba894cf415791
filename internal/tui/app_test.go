package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kylemclaren/claude-office/internal/db"
	"github.com/kylemclaren/claude-office/internal/office"
)

var epoch = time.Date(2024, time.January, 15, 9, 0, 0, 0, time.UTC)

type tuiHarness struct {
	ctx context.Context
	svc *office.Service
}

func newTUIHarness(t *testing.T) *tuiHarness {
	t.Helper()

	store := db.NewMemoryStore()
	t.Cleanup(func() {
		_ = store.Close()
	})
	return &tuiHarness{
		ctx: context.Background(),
		svc: office.NewService(store, office.WithClock(func() time.Time { return epoch })),
	}
}

func (h *tuiHarness) model() Model {
	return NewModel(h.ctx, h.svc, WithReviewer("carol"), WithClock(func() time.Time { return epoch }))
}

// drive runs cmd and feeds every resulting message back into m until the
// queue is empty or the program quits.
func drive(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()

	var model tea.Model = m
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		switch msg := next().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case tea.QuitMsg:
			return model.(Model)
		default:
			var follow tea.Cmd
			model, follow = model.Update(msg)
			queue = append(queue, follow)
		}
	}
	return model.(Model)
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) Model {
	t.Helper()

	for _, k := range keys {
		next, cmd := m.Update(k)
		m = drive(t, next.(Model), cmd)
	}
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	tabKey   = tea.KeyMsg{Type: tea.KeyTab}
	enterKey = tea.KeyMsg{Type: tea.KeyEnter}
	escKey   = tea.KeyMsg{Type: tea.KeyEsc}
)

func (h *tuiHarness) mustTask(t *testing.T, in office.TaskInput) *db.Task {
	t.Helper()

	task, err := h.svc.CreateTask(h.ctx, in)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	return task
}

func TestBoardMovesSelectedTask(t *testing.T) {
	t.Parallel()

	h := newTUIHarness(t)
	draft := h.mustTask(t, office.TaskInput{Title: "draft"})
	h.mustTask(t, office.TaskInput{Title: "polish"})

	m := h.model()
	m = drive(t, m, m.Init())
	if len(m.board) != len(db.Columns) || len(m.board[0].Tasks) != 2 {
		t.Fatalf("expected both tasks in idea, got %+v", m.board)
	}

	m = press(t, m, runes("]"))
	got, err := h.svc.GetTask(h.ctx, draft.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Column != db.ColumnApprovedIdea {
		t.Fatalf("expected draft in approved idea, got %s", got.Column)
	}
	if m.focus != 1 || m.selected != 0 {
		t.Fatalf("expected the selection to follow the task, got focus=%d selected=%d", m.focus, m.selected)
	}
	if !strings.Contains(m.statusMsg, "approved idea") || m.statusErr {
		t.Fatalf("unexpected status %q", m.statusMsg)
	}

	// back to idea, then a second [ at the first column does nothing
	m = press(t, m, runes("["), runes("["))
	history, err := h.svc.TaskHistory(h.ctx, draft.ID)
	if err != nil {
		t.Fatalf("TaskHistory: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected create plus two moves in history, got %d", len(history))
	}
	if m.focus != 0 {
		t.Fatalf("expected focus on idea, got %d", m.focus)
	}
}

func TestBoardNavigationClamps(t *testing.T) {
	t.Parallel()

	h := newTUIHarness(t)
	h.mustTask(t, office.TaskInput{Title: "one"})
	h.mustTask(t, office.TaskInput{Title: "two"})
	h.mustTask(t, office.TaskInput{Title: "blocked", Column: db.ColumnBlocked})

	m := h.model()
	m = drive(t, m, m.Init())

	m = press(t, m, runes("j"), runes("j"), runes("j"))
	if m.selected != 1 {
		t.Fatalf("expected selection to stop at the last card, got %d", m.selected)
	}
	m = press(t, m, runes("h"))
	if m.focus != 0 {
		t.Fatalf("expected focus to stay on the first column, got %d", m.focus)
	}
	m = press(t, m, runes("l"), runes("l"), runes("l"))
	if m.focus != 3 || m.selected != 0 {
		t.Fatalf("expected focus on blocked with selection clamped, got focus=%d selected=%d", m.focus, m.selected)
	}
	if task := m.selectedTask(); task == nil || task.Title != "blocked" {
		t.Fatalf("expected the blocked task selected, got %+v", task)
	}
	m = press(t, m, runes("l"), runes("l"), runes("l"))
	if m.focus != len(db.Columns)-1 || m.selectedTask() != nil {
		t.Fatalf("expected focus on an empty done column, got focus=%d", m.focus)
	}
	// moving from an empty column is a no-op
	m = press(t, m, runes("]"))
	if m.statusMsg != "" {
		t.Fatalf("expected no status, got %q", m.statusMsg)
	}
}

func TestTaskViewShowsHistory(t *testing.T) {
	t.Parallel()

	h := newTUIHarness(t)
	h.mustTask(t, office.TaskInput{Title: "write docs", Description: "Cover the **board** keys."})

	m := h.model()
	m = drive(t, m, m.Init())
	m = press(t, m, enterKey)
	if m.currentView != ViewTask || m.task == nil || m.task.Title != "write docs" {
		t.Fatalf("expected the task view for write docs, got view=%d task=%+v", m.currentView, m.task)
	}
	view := m.View()
	for _, want := range []string{"write docs", "History", "created"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in the task view:\n%s", want, view)
		}
	}

	m = press(t, m, escKey)
	if m.currentView != ViewBoard || m.task != nil {
		t.Fatalf("expected esc to return to the board, got view=%d", m.currentView)
	}
}

func TestCronViewTogglesJob(t *testing.T) {
	t.Parallel()

	h := newTUIHarness(t)
	if _, err := h.svc.CreateCoworker(h.ctx, office.CoworkerInput{Name: "alice"}); err != nil {
		t.Fatalf("CreateCoworker: %v", err)
	}
	job, err := h.svc.CreateCronJob(h.ctx, office.CronJobInput{Name: "standup", Coworker: "alice", Schedule: "0 9 * * *", Message: "standup"})
	if err != nil {
		t.Fatalf("CreateCronJob: %v", err)
	}

	m := h.model()
	m = drive(t, m, m.Init())
	if _, ok := m.nextRuns[job.ID]; !ok {
		t.Fatalf("expected a next run for the enabled job")
	}

	m = press(t, m, tabKey)
	if m.currentView != ViewCron {
		t.Fatalf("expected the cron view, got %d", m.currentView)
	}
	if !strings.Contains(m.View(), "standup") {
		t.Fatalf("expected the job in the cron table:\n%s", m.View())
	}

	m = press(t, m, runes("t"))
	got, err := h.svc.GetCronJob(h.ctx, job.ID)
	if err != nil {
		t.Fatalf("GetCronJob: %v", err)
	}
	if got.Enabled {
		t.Fatal("expected t to disable the job")
	}
	if _, ok := m.nextRuns[job.ID]; ok {
		t.Fatal("expected no next run for a disabled job")
	}
}

func TestRequestsViewReviews(t *testing.T) {
	t.Parallel()

	h := newTUIHarness(t)
	if _, err := h.svc.CreateCoworker(h.ctx, office.CoworkerInput{Name: "alice"}); err != nil {
		t.Fatalf("CreateCoworker: %v", err)
	}
	req, err := h.svc.CreateCronRequest(h.ctx, office.CronJobInput{Name: "weekly", Coworker: "alice", Schedule: "0 9 * * 1", Message: "weekly sync"})
	if err != nil {
		t.Fatalf("CreateCronRequest: %v", err)
	}

	m := h.model()
	m = drive(t, m, m.Init())
	m = press(t, m, tabKey, tabKey)
	if m.currentView != ViewRequests {
		t.Fatalf("expected the requests view, got %d", m.currentView)
	}

	m = press(t, m, runes("a"))
	got, err := h.svc.GetCronRequest(h.ctx, req.ID)
	if err != nil {
		t.Fatalf("GetCronRequest: %v", err)
	}
	if got.Status != db.CronRequestApproved || got.ReviewedBy == nil || *got.ReviewedBy != "carol" {
		t.Fatalf("expected approval by carol, got %+v", got)
	}

	// a reviewed request is terminal
	m = press(t, m, runes("x"))
	if !m.statusErr || !strings.Contains(m.statusMsg, "approved") {
		t.Fatalf("expected a rejected review error, got %q", m.statusMsg)
	}
}

func TestQuit(t *testing.T) {
	t.Parallel()

	h := newTUIHarness(t)
	m := h.model()
	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected q to quit")
	}
}
