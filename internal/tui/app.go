package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kylemclaren/claude-office/internal/db"
	"github.com/kylemclaren/claude-office/internal/office"
)

// View represents the current view
type View int

const (
	ViewBoard View = iota
	ViewTask
	ViewCron
	ViewRequests
)

var viewNames = []string{"Board", "Task", "Cron", "Requests"}

// Layout constants
const (
	headerHeight = 4
	footerHeight = 4
	minTableRows = 5
	maxTableWide = 160
)

// Model is the main TUI model
type Model struct {
	ctx      context.Context
	svc      *office.Service
	reviewer string
	now      func() time.Time

	currentView View
	width       int
	height      int

	// Board view
	board      []office.BoardColumn
	focus      int
	selected   int
	followTask int64

	// Task view
	task     *db.Task
	viewport viewport.Model

	// Cron view
	jobs     []*db.CronJob
	nextRuns map[int64]time.Time
	jobTable table.Model

	// Requests view
	requests     []*db.CronRequest
	requestTable table.Model

	help     help.Model
	showHelp bool

	statusMsg string
	statusErr bool
}

// Option configures a Model
type Option func(*Model)

// WithReviewer sets the name recorded when approving or rejecting requests.
func WithReviewer(name string) Option {
	return func(m *Model) { m.reviewer = name }
}

// WithClock overrides the clock used for next-run times.
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// NewModel creates a model over svc. Data loads in Init.
func NewModel(ctx context.Context, svc *office.Service, opts ...Option) Model {
	h := help.New()
	h.Styles.ShortKey = helpKeyStyle
	h.Styles.ShortDesc = helpDescStyle

	m := Model{
		ctx:      ctx,
		svc:      svc,
		reviewer: "office",
		now:      time.Now,
		help:     h,
		viewport: viewport.New(80, 20),
		nextRuns: make(map[int64]time.Time),
		jobTable: newTable([]table.Column{
			{Title: "ID", Width: 4},
			{Title: "Name", Width: 18},
			{Title: "Coworker", Width: 12},
			{Title: "Schedule", Width: 16},
			{Title: "Status", Width: 9},
			{Title: "Next Run", Width: 14},
			{Title: "Last Run", Width: 14},
		}),
		requestTable: newTable([]table.Column{
			{Title: "ID", Width: 4},
			{Title: "Name", Width: 18},
			{Title: "Coworker", Width: 12},
			{Title: "Schedule", Width: 16},
			{Title: "Status", Width: 9},
			{Title: "Requested", Width: 14},
			{Title: "Reviewer", Width: 12},
		}),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func newTable(columns []table.Column) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	ts := table.DefaultStyles()
	ts.Header = ts.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimTextColor).
		BorderBottom(true).
		Bold(true).
		Foreground(accentColor)
	ts.Selected = ts.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(primaryColor).
		Bold(true)
	t.SetStyles(ts)
	return t
}

// Messages
type boardLoadedMsg struct{ board []office.BoardColumn }
type taskLoadedMsg struct {
	task    *db.Task
	content string
}
type cronLoadedMsg struct {
	jobs     []*db.CronJob
	nextRuns map[int64]time.Time
}
type requestsLoadedMsg struct{ requests []*db.CronRequest }
type taskMovedMsg struct{ task *db.Task }
type jobToggledMsg struct {
	id      int64
	enabled bool
}
type requestReviewedMsg struct{ request *db.CronRequest }
type errMsg struct{ err error }

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadBoard(), m.loadCron(), m.loadRequests())
}

func (m Model) loadBoard() tea.Cmd {
	return func() tea.Msg {
		board, err := m.svc.Board(m.ctx, db.TaskFilter{})
		if err != nil {
			return errMsg{err}
		}
		return boardLoadedMsg{board}
	}
}

func (m Model) loadTask(id int64) tea.Cmd {
	width := m.viewport.Width
	return func() tea.Msg {
		task, err := m.svc.GetTask(m.ctx, id)
		if err != nil {
			return errMsg{err}
		}
		history, err := m.svc.TaskHistory(m.ctx, id)
		if err != nil {
			return errMsg{err}
		}
		durations, err := m.svc.ColumnDurations(m.ctx, id)
		if err != nil {
			return errMsg{err}
		}
		return taskLoadedMsg{task: task, content: renderTaskContent(task, history, durations, width)}
	}
}

func (m Model) loadCron() tea.Cmd {
	now := m.now()
	return func() tea.Msg {
		jobs, err := m.svc.ListCronJobs(m.ctx, nil)
		if err != nil {
			return errMsg{err}
		}
		next := make(map[int64]time.Time, len(jobs))
		for _, job := range jobs {
			if !job.Enabled {
				continue
			}
			// a job with a bad stored schedule just shows no next run
			if at, err := m.svc.NextCronRun(m.ctx, job.ID, now); err == nil {
				next[job.ID] = at
			}
		}
		return cronLoadedMsg{jobs: jobs, nextRuns: next}
	}
}

func (m Model) loadRequests() tea.Cmd {
	return func() tea.Msg {
		requests, err := m.svc.ListCronRequests(m.ctx, db.CronRequestFilter{})
		if err != nil {
			return errMsg{err}
		}
		return requestsLoadedMsg{requests}
	}
}

func (m Model) moveTask(id int64, to db.Column) tea.Cmd {
	return func() tea.Msg {
		task, err := m.svc.MoveTask(m.ctx, id, to)
		if err != nil {
			return errMsg{err}
		}
		return taskMovedMsg{task}
	}
}

func (m Model) toggleJob(job *db.CronJob) tea.Cmd {
	id, enable := job.ID, !job.Enabled
	return func() tea.Msg {
		var err error
		if enable {
			err = m.svc.EnableCronJob(m.ctx, id)
		} else {
			err = m.svc.DisableCronJob(m.ctx, id)
		}
		if err != nil {
			return errMsg{err}
		}
		return jobToggledMsg{id: id, enabled: enable}
	}
}

func (m Model) reviewRequest(id int64, approve bool) tea.Cmd {
	review := office.ReviewInput{Reviewer: m.reviewer}
	return func() tea.Msg {
		var (
			req *db.CronRequest
			err error
		)
		if approve {
			req, err = m.svc.ApproveCronRequest(m.ctx, id, review)
		} else {
			req, err = m.svc.RejectCronRequest(m.ctx, id, review)
		}
		if err != nil {
			return errMsg{err}
		}
		return requestReviewedMsg{req}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.currentView {
		case ViewBoard:
			return m.updateBoard(msg)
		case ViewTask:
			return m.updateTask(msg)
		case ViewCron:
			return m.updateCron(msg)
		case ViewRequests:
			return m.updateRequests(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

		rows := msg.Height - headerHeight - footerHeight - 2
		if rows < minTableRows {
			rows = minTableRows
		}
		tableWidth := msg.Width - 4
		if tableWidth > maxTableWide {
			tableWidth = maxTableWide
		}
		m.jobTable.SetHeight(rows)
		m.jobTable.SetWidth(tableWidth)
		m.requestTable.SetHeight(rows)
		m.requestTable.SetWidth(tableWidth)
		m.viewport.Width = msg.Width - 6
		m.viewport.Height = rows

	case boardLoadedMsg:
		m.board = msg.board
		if m.followTask != 0 {
			m.focusTask(m.followTask)
			m.followTask = 0
		}
		m.clampSelection()

	case taskLoadedMsg:
		m.task = msg.task
		m.viewport.SetContent(msg.content)
		m.viewport.GotoTop()

	case cronLoadedMsg:
		m.jobs = msg.jobs
		m.nextRuns = msg.nextRuns
		m.updateJobTable()

	case requestsLoadedMsg:
		m.requests = msg.requests
		m.updateRequestTable()

	case taskMovedMsg:
		m.setStatus(fmt.Sprintf("Moved #%d to %s", msg.task.ID, msg.task.Column), false)
		m.followTask = msg.task.ID
		return m, m.loadBoard()

	case jobToggledMsg:
		if msg.enabled {
			m.setStatus("Cron job enabled", false)
		} else {
			m.setStatus("Cron job disabled", false)
		}
		return m, m.loadCron()

	case requestReviewedMsg:
		m.setStatus(fmt.Sprintf("Request %q %s", msg.request.Name, msg.request.Status), false)
		return m, m.loadRequests()

	case errMsg:
		m.setStatus("Error: "+msg.err.Error(), true)
	}

	return m, nil
}

func (m Model) updateBoard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp
	case key.Matches(msg, keys.Tab):
		m.currentView = ViewCron
	case key.Matches(msg, keys.Refresh):
		return m, m.loadBoard()
	case key.Matches(msg, keys.Left):
		if m.focus > 0 {
			m.focus--
			m.clampSelection()
		}
	case key.Matches(msg, keys.Right):
		if m.focus < len(m.board)-1 {
			m.focus++
			m.clampSelection()
		}
	case key.Matches(msg, keys.Up):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(msg, keys.Down):
		if task := m.selectedTask(); task != nil && m.selected < len(m.board[m.focus].Tasks)-1 {
			m.selected++
		}
	case key.Matches(msg, keys.MoveBack), key.Matches(msg, keys.MoveForward):
		task := m.selectedTask()
		if task == nil {
			return m, nil
		}
		to := m.focus + 1
		if key.Matches(msg, keys.MoveBack) {
			to = m.focus - 1
		}
		if to < 0 || to >= len(db.Columns) {
			return m, nil
		}
		return m, m.moveTask(task.ID, db.Columns[to])
	case key.Matches(msg, keys.Enter):
		task := m.selectedTask()
		if task == nil {
			return m, nil
		}
		m.currentView = ViewTask
		m.task = task
		return m, m.loadTask(task.ID)
	}
	return m, nil
}

func (m Model) updateTask(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Back):
		m.currentView = ViewBoard
		m.task = nil
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) updateCron(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Tab):
		m.currentView = ViewRequests
		return m, nil
	case key.Matches(msg, keys.Back):
		m.currentView = ViewBoard
		return m, nil
	case key.Matches(msg, keys.Refresh):
		return m, m.loadCron()
	case key.Matches(msg, keys.Toggle):
		idx := m.jobTable.Cursor()
		if idx < 0 || idx >= len(m.jobs) {
			return m, nil
		}
		return m, m.toggleJob(m.jobs[idx])
	}
	var cmd tea.Cmd
	m.jobTable, cmd = m.jobTable.Update(msg)
	return m, cmd
}

func (m Model) updateRequests(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Tab), key.Matches(msg, keys.Back):
		m.currentView = ViewBoard
		return m, nil
	case key.Matches(msg, keys.Refresh):
		return m, m.loadRequests()
	case key.Matches(msg, keys.Approve), key.Matches(msg, keys.Reject):
		idx := m.requestTable.Cursor()
		if idx < 0 || idx >= len(m.requests) {
			return m, nil
		}
		return m, m.reviewRequest(m.requests[idx].ID, key.Matches(msg, keys.Approve))
	}
	var cmd tea.Cmd
	m.requestTable, cmd = m.requestTable.Update(msg)
	return m, cmd
}

// selectedTask is the highlighted card, or nil when the column is empty
func (m *Model) selectedTask() *db.Task {
	if m.focus < 0 || m.focus >= len(m.board) {
		return nil
	}
	tasks := m.board[m.focus].Tasks
	if m.selected < 0 || m.selected >= len(tasks) {
		return nil
	}
	return tasks[m.selected]
}

func (m *Model) focusTask(id int64) {
	for i, col := range m.board {
		for j, task := range col.Tasks {
			if task.ID == id {
				m.focus, m.selected = i, j
				return
			}
		}
	}
}

func (m *Model) clampSelection() {
	if m.focus >= len(m.board) {
		m.focus = max(len(m.board)-1, 0)
	}
	if len(m.board) == 0 {
		m.selected = 0
		return
	}
	if n := len(m.board[m.focus].Tasks); m.selected >= n {
		m.selected = max(n-1, 0)
	}
}

func (m *Model) updateJobTable() {
	now := m.now()
	rows := make([]table.Row, len(m.jobs))
	for i, job := range m.jobs {
		status := "disabled"
		if job.Enabled {
			status = "enabled"
		}
		next := "-"
		if at, ok := m.nextRuns[job.ID]; ok {
			next = formatTime(at, now)
		}
		last := "-"
		if job.LastRun != nil {
			last = formatTime(*job.LastRun, now)
		}
		rows[i] = table.Row{
			fmt.Sprintf("%d", job.ID),
			truncate(job.Name, 16),
			truncate(job.Coworker, 10),
			truncate(job.Schedule, 14),
			status,
			next,
			last,
		}
	}
	m.jobTable.SetRows(rows)
}

func (m *Model) updateRequestTable() {
	now := m.now()
	rows := make([]table.Row, len(m.requests))
	for i, req := range m.requests {
		reviewer := "-"
		if req.ReviewedBy != nil {
			reviewer = *req.ReviewedBy
		}
		rows[i] = table.Row{
			fmt.Sprintf("%d", req.ID),
			truncate(req.Name, 16),
			truncate(req.Coworker, 10),
			truncate(req.Schedule, 14),
			string(req.Status),
			formatTime(req.RequestedAt, now),
			truncate(reviewer, 10),
		}
	}
	m.requestTable.SetRows(rows)
}

func (m *Model) setStatus(msg string, isErr bool) {
	m.statusMsg = msg
	m.statusErr = isErr
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	switch m.currentView {
	case ViewBoard:
		if m.board == nil {
			b.WriteString(subtitleStyle.Render("Loading board..."))
		} else {
			b.WriteString(RenderBoard(m.board, m.width-4, m.focus, m.selected))
		}
	case ViewTask:
		b.WriteString(m.renderTask())
	case ViewCron:
		if len(m.jobs) == 0 {
			b.WriteString(emptyBoxStyle.Render("No cron jobs yet\n\nAdd one with `claude-office cron add`"))
		} else {
			b.WriteString(m.jobTable.View())
		}
	case ViewRequests:
		if len(m.requests) == 0 {
			b.WriteString(emptyBoxStyle.Render("No cron requests"))
		} else {
			b.WriteString(m.requestTable.View())
			b.WriteString("\n")
			b.WriteString(m.renderRequestDetail())
		}
	}
	b.WriteString("\n")

	if m.statusMsg != "" {
		if m.statusErr {
			b.WriteString(errorMsgStyle.Render("✗ " + m.statusMsg))
		} else {
			b.WriteString(successMsgStyle.Render("✓ " + m.statusMsg))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.showHelp {
		b.WriteString(m.help.FullHelpView(keys.FullHelp()))
	} else {
		b.WriteString(m.help.ShortHelpView(keys.viewHelp(m.currentView)))
	}

	return appStyle.Render(b.String())
}

func (m Model) renderHeader() string {
	tabs := make([]string, 0, len(viewNames))
	for i, name := range viewNames {
		v := View(i)
		if v == ViewTask && m.currentView != ViewTask {
			continue
		}
		if v == m.currentView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, tabStyle.Render(name))
		}
	}
	return logoStyle.Render("Claude Office") + "  " + lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

// renderRequestDetail shows the message and review of the selected request
func (m Model) renderRequestDetail() string {
	idx := m.requestTable.Cursor()
	if idx < 0 || idx >= len(m.requests) {
		return ""
	}
	req := m.requests[idx]
	line := requestStatusStyle(req.Status).Render(string(req.Status)) + "  " +
		subtitleStyle.Render(truncate(req.Message, max(m.width-20, 20)))
	if req.ReviewerNotes != nil && *req.ReviewerNotes != "" {
		line += "\n" + subtitleStyle.Render("notes: "+*req.ReviewerNotes)
	}
	return line
}

func (m Model) renderTask() string {
	if m.task == nil {
		return subtitleStyle.Render("Loading task...")
	}
	var b strings.Builder
	b.WriteString(logoStyle.Render(fmt.Sprintf("#%d %s", m.task.ID, m.task.Title)))
	b.WriteString("  ")
	b.WriteString(statusPending.Render(string(m.task.Column)))
	b.WriteString("\n\n")
	b.WriteString(m.viewport.View())
	return b.String()
}

// renderTaskContent is the scrollable body of the task view
func renderTaskContent(task *db.Task, history []*db.TaskHistory, durations []office.ColumnDuration, width int) string {
	var b strings.Builder

	assignee := "unassigned"
	if task.Assignee != nil {
		assignee = "@" + *task.Assignee
	}
	b.WriteString(subtitleStyle.Render(assignee))
	if len(task.Dependencies) > 0 {
		b.WriteString(subtitleStyle.Render("  depends on " + joinIDs(task.Dependencies)))
	}
	b.WriteString("\n\n")

	if desc, err := RenderMarkdown(task.Description, width); err != nil {
		b.WriteString(task.Description)
	} else if desc != "" {
		b.WriteString(desc)
	} else {
		b.WriteString(subtitleStyle.Render("No description"))
	}
	b.WriteString("\n\n")

	b.WriteString(columnTitleStyle.Render("History"))
	b.WriteString("\n")
	for _, h := range history {
		from := "created"
		if h.FromColumn != nil {
			from = string(*h.FromColumn)
		}
		fmt.Fprintf(&b, "%s  %s → %s\n", h.MovedAt.Local().Format("Jan 02 15:04"), from, h.ToColumn)
	}
	if len(durations) > 0 {
		b.WriteString("\n")
		b.WriteString(columnTitleStyle.Render("Time in column"))
		b.WriteString("\n")
		for _, d := range durations {
			fmt.Fprintf(&b, "%-18s %s\n", d.Column, d.Duration.Round(time.Second))
		}
	}
	return b.String()
}

func formatTime(t, now time.Time) string {
	if t.Before(now) {
		return t.Local().Format("Jan 02 15:04")
	}

	diff := t.Sub(now)
	if diff < time.Minute {
		return fmt.Sprintf("in %ds", int(diff.Seconds()))
	}
	if diff < time.Hour {
		return fmt.Sprintf("in %dm", int(diff.Minutes()))
	}
	if diff < 24*time.Hour {
		return fmt.Sprintf("in %dh %dm", int(diff.Hours()), int(diff.Minutes())%60)
	}
	return t.Local().Format("Jan 02 15:04")
}

// Run starts the TUI application
func Run(ctx context.Context, svc *office.Service, opts ...Option) error {
	m := NewModel(ctx, svc, opts...)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
