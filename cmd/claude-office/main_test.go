package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kylemclaren/claude-office/internal/config"
	"github.com/kylemclaren/claude-office/internal/db"
	"github.com/kylemclaren/claude-office/internal/office"
)

type cliHarness struct {
	t    *testing.T
	path string
}

// newCLI isolates the CLAUDE_OFFICE_* environment, so callers cannot run in
// parallel.
func newCLI(t *testing.T) *cliHarness {
	t.Helper()

	dir := t.TempDir()
	t.Setenv(config.EnvData, dir)
	for _, name := range []string{config.EnvConfig, config.EnvDBDriver, config.EnvDBPath, config.EnvDBDSN, config.EnvLogLevel, config.EnvLogFormat} {
		t.Setenv(name, "")
	}
	return &cliHarness{t: t, path: filepath.Join(dir, "office.db")}
}

func (c *cliHarness) run(args ...string) (string, string, error) {
	c.t.Helper()

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), append([]string{"--db", c.path}, args...), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func (c *cliHarness) must(args ...string) string {
	c.t.Helper()

	out, stderr, err := c.run(args...)
	if err != nil {
		c.t.Fatalf("claude-office %s: %v\nstderr: %s", strings.Join(args, " "), err, stderr)
	}
	return out
}

func (c *cliHarness) mustJSON(v any, args ...string) {
	c.t.Helper()

	out := c.must(append(args, "--json")...)
	if err := json.Unmarshal([]byte(out), v); err != nil {
		c.t.Fatalf("decoding %q: %v", out, err)
	}
}

func (c *cliHarness) mustFail(want string, args ...string) {
	c.t.Helper()

	_, _, err := c.run(args...)
	if err == nil || !strings.Contains(err.Error(), want) {
		c.t.Fatalf("claude-office %s: expected an error containing %q, got %v", strings.Join(args, " "), want, err)
	}
}

func TestCoworkersAndMessages(t *testing.T) {
	c := newCLI(t)

	c.must("coworker", "add", "alice", "--status", "heads down")
	c.must("coworker", "add", "bob", "--agent", "claude-haiku")
	c.mustFail("already exists", "coworker", "add", "alice")

	var coworkers []db.Coworker
	c.mustJSON(&coworkers, "coworker", "list")
	if len(coworkers) != 2 || coworkers[0].Name != "alice" || coworkers[1].Agent != "claude-haiku" {
		t.Fatalf("unexpected coworkers %+v", coworkers)
	}

	out := c.must("coworker", "status", "alice", "in", "a", "meeting")
	if !strings.Contains(out, "alice: in a meeting") {
		t.Fatalf("unexpected status output %q", out)
	}
	if out := c.must("coworker", "status", "alice"); !strings.Contains(out, "alice: -") {
		t.Fatalf("expected a cleared status, got %q", out)
	}

	c.must("message", "send", "alice", "bob", "standup", "moved", "to", "10")
	c.mustFail("not found", "message", "send", "alice", "ghost", "hello")

	var inbox []db.Message
	c.mustJSON(&inbox, "message", "list", "--to", "bob", "--unread")
	if len(inbox) != 1 || inbox[0].Body != "standup moved to 10" {
		t.Fatalf("unexpected inbox %+v", inbox)
	}
	c.must("message", "read", "1")
	c.mustJSON(&inbox, "message", "list", "--to", "bob", "--unread")
	if len(inbox) != 0 {
		t.Fatalf("expected no unread messages, got %+v", inbox)
	}
}

func TestCronJobs(t *testing.T) {
	c := newCLI(t)
	c.must("coworker", "add", "alice")

	c.must("cron", "add", "standup", "--coworker", "alice", "--schedule", "0 9 * * 1-5", "--message", "daily standup")
	c.mustFail("invalid", "cron", "add", "broken", "--coworker", "alice", "--schedule", "61 * * * *", "--message", "x")
	c.mustFail("invalid", "cron", "add", "berlin", "--coworker", "alice", "--schedule", "0 9 * * *", "--timezone", "Mars/Olympus", "--message", "x")
	c.mustFail("already exists", "cron", "add", "standup", "--coworker", "alice", "--schedule", "0 10 * * *", "--message", "again")

	// 2024-01-15 is a Monday
	if out := c.must("cron", "check", "1", "--at", "2024-01-15 09:00"); !strings.Contains(out, "is due") {
		t.Fatalf("expected the job to be due, got %q", out)
	}
	if out := c.must("cron", "check", "1", "--at", "2024-01-13T09:00:00Z"); !strings.Contains(out, "not due") {
		t.Fatalf("expected the job not to be due on Saturday, got %q", out)
	}

	var due office.DueReport
	c.mustJSON(&due, "cron", "due", "--at", "2024-01-15 09:00")
	if len(due.Due) != 1 || due.Due[0].Name != "standup" {
		t.Fatalf("unexpected due report %+v", due)
	}

	c.must("cron", "disable", "1")
	if out := c.must("cron", "check", "1", "--at", "2024-01-15 09:00"); !strings.Contains(out, "not due") {
		t.Fatalf("expected a disabled job not to be due, got %q", out)
	}
	c.must("cron", "enable", "1")

	var next []string
	c.mustJSON(&next, "cron", "next", "1", "--after", "2024-01-12 10:00", "--count", "2")
	if len(next) != 2 || !strings.HasPrefix(next[0], "2024-01-15T09:00:00") || !strings.HasPrefix(next[1], "2024-01-16T09:00:00") {
		t.Fatalf("unexpected next runs %v", next)
	}

	c.must("cron", "record", "1", "--at", "2024-01-15 09:00")
	c.must("cron", "record", "1", "--at", "2024-01-16 09:00", "--failed", "--error", "agent offline")
	var history []db.CronHistory
	c.mustJSON(&history, "cron", "history", "1")
	if len(history) != 2 || history[0].Success || history[0].ErrorMessage == nil || *history[0].ErrorMessage != "agent offline" {
		t.Fatalf("expected the failed run first, got %+v", history)
	}

	var job db.CronJob
	c.mustJSON(&job, "cron", "show", "1")
	if job.LastRun == nil || job.LastRun.Day() != 16 {
		t.Fatalf("expected last run on the 16th, got %v", job.LastRun)
	}

	c.must("cron", "delete", "1")
	c.mustFail("not found", "cron", "show", "1")
}

func TestCronRequestReview(t *testing.T) {
	c := newCLI(t)
	c.must("coworker", "add", "alice")

	c.must("cron-request", "create", "weekly", "--coworker", "alice", "--schedule", "0 9 * * 1", "--message", "weekly sync", "--timezone", "Europe/Berlin")
	c.must("cron-request", "create", "nightly", "--coworker", "alice", "--schedule", "0 2 * * *", "--message", "nightly build")

	var pending []db.CronRequest
	c.mustJSON(&pending, "cron-request", "list", "--status", "pending")
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending requests, got %+v", pending)
	}

	c.mustFail("reviewer", "cron-request", "approve", "1")

	var approved struct {
		Request db.CronRequest `json:"request"`
		Job     *db.CronJob    `json:"job"`
	}
	c.mustJSON(&approved, "cron-request", "approve", "1", "--reviewer", "bob", "--notes", "ok", "--create-job")
	if approved.Request.Status != db.CronRequestApproved || approved.Job == nil || approved.Job.Name != "weekly" {
		t.Fatalf("unexpected approval %+v", approved)
	}
	if approved.Job.Timezone == nil || *approved.Job.Timezone != "Europe/Berlin" {
		t.Fatalf("expected the job to keep the request timezone, got %v", approved.Job.Timezone)
	}

	c.mustFail("already approved", "cron-request", "reject", "1", "--reviewer", "carol")
	c.mustFail("want approved", "cron-request", "promote", "2")

	c.must("cron-request", "reject", "2", "--reviewer", "carol")
	out := c.must("cron-request", "show", "2")
	if !strings.Contains(out, "rejected") || !strings.Contains(out, "by carol") {
		t.Fatalf("unexpected request output %q", out)
	}
	c.mustFail("status", "cron-request", "list", "--status", "archived")

	c.must("cron-request", "delete", "2")
	c.mustFail("not found", "cron-request", "show", "2")
}

func TestTaskBoard(t *testing.T) {
	c := newCLI(t)
	c.must("coworker", "add", "alice")

	c.must("task", "add", "write", "docs", "-d", "Cover the **board**.", "--assignee", "alice")
	c.must("task", "add", "ship", "--depends-on", "1", "--column", "approved idea")
	c.mustFail("unknown column", "task", "add", "bad", "--column", "someday")

	var task db.Task
	c.mustJSON(&task, "task", "move", "1", "working", "on")
	if task.Column != db.ColumnWorkingOn {
		t.Fatalf("expected working on, got %s", task.Column)
	}
	c.mustFail("already in column", "task", "move", "1", "working on")

	c.mustJSON(&task, "task", "update", "2", "--title", "ship it", "--clear-deps")
	if task.Title != "ship it" || len(task.Dependencies) != 0 {
		t.Fatalf("unexpected update %+v", task)
	}

	var found []db.Task
	c.mustJSON(&found, "task", "search", "BOARD")
	if len(found) != 1 || found[0].ID != 1 {
		t.Fatalf("expected the description match, got %+v", found)
	}

	var history struct {
		History   []db.TaskHistory        `json:"history"`
		Durations []office.ColumnDuration `json:"durations"`
	}
	c.mustJSON(&history, "task", "history", "1")
	if len(history.History) != 2 || history.History[1].ToColumn != db.ColumnWorkingOn {
		t.Fatalf("unexpected history %+v", history.History)
	}

	var stats []office.ColumnCount
	c.mustJSON(&stats, "task", "stats")
	if len(stats) != len(db.Columns) || stats[1].Count != 1 || stats[2].Count != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	board := c.must("board", "--plain")
	for _, want := range []string{"APPROVED IDEA (1)\n  #2 ship it\n", "WORKING ON (1)\n  #1 write docs @alice\n", "DONE (0)"} {
		if !strings.Contains(board, want) {
			t.Fatalf("expected %q in board:\n%s", want, board)
		}
	}

	if out := c.must("task", "show", "1", "--raw"); !strings.Contains(out, "Cover the **board**.") {
		t.Fatalf("expected the raw description, got %q", out)
	}

	c.must("task", "delete", "2")
	c.mustFail("not found", "task", "history", "2")
}

func TestDeleteCoworkerCascades(t *testing.T) {
	c := newCLI(t)
	c.must("coworker", "add", "alice")
	c.must("coworker", "add", "bob")
	c.must("message", "send", "alice", "bob", "hi")
	c.must("message", "send", "bob", "alice", "hi back")
	c.must("cron", "add", "standup", "--coworker", "alice", "--schedule", "0 9 * * *", "--message", "standup")
	c.must("cron-request", "create", "weekly", "--coworker", "alice", "--schedule", "0 9 * * 1", "--message", "weekly")
	c.must("task", "add", "ship", "--assignee", "alice")

	var report office.CascadeReport
	c.mustJSON(&report, "coworker", "delete", "alice")
	want := office.CascadeReport{Coworker: "alice", Messages: 2, CronJobs: 1, CronRequests: 1, TasksUnassigned: 1}
	if report != want {
		t.Fatalf("expected %+v, got %+v", want, report)
	}

	var task db.Task
	c.mustJSON(&task, "task", "show", "1")
	if task.Assignee != nil {
		t.Fatalf("expected the task unassigned, got %q", *task.Assignee)
	}
	c.mustFail("not found", "coworker", "show", "alice")
	c.mustFail("not found", "coworker", "delete", "alice")
}

func TestUsage(t *testing.T) {
	c := newCLI(t)

	c.mustFail("unknown command", "frobnicate")
	c.mustFail("unknown command", "task", "frobnicate")
	c.mustFail("subcommand required", "cron")
	c.mustFail("expected 1 argument", "cron", "show")
	c.mustFail("invalid id", "cron", "show", "abc")
	c.mustFail("unknown flag", "task", "list", "--colour", "done")

	_, stderr, err := c.run("task", "--help")
	if err != nil {
		t.Fatalf("task --help: %v", err)
	}
	if !strings.Contains(stderr, "Commands:") || !strings.Contains(stderr, "move") {
		t.Fatalf("expected task help on stderr, got %q", stderr)
	}

	_, stderr, err = c.run("cron", "add", "--help")
	if err != nil {
		t.Fatalf("cron add --help: %v", err)
	}
	if !strings.Contains(stderr, "--schedule") || !strings.Contains(stderr, "Global Flags:") {
		t.Fatalf("expected cron add flags on stderr, got %q", stderr)
	}

	if out := c.must("version"); !strings.Contains(out, "claude-office") {
		t.Fatalf("unexpected version output %q", out)
	}

	_, stderr, err = c.run("upgrade", "--help")
	if err != nil {
		t.Fatalf("upgrade --help: %v", err)
	}
	if !strings.Contains(stderr, "--check") {
		t.Fatalf("expected upgrade flags on stderr, got %q", stderr)
	}
}

func TestMemoryDriverFlag(t *testing.T) {
	c := newCLI(t)

	// each invocation gets a fresh in-memory store
	c.must("--driver", "memory", "coworker", "add", "alice")
	var coworkers []db.Coworker
	c.mustJSON(&coworkers, "--driver", "memory", "coworker", "list")
	if len(coworkers) != 0 {
		t.Fatalf("expected an empty memory store, got %+v", coworkers)
	}
	c.mustFail("storage.driver", "--driver", "mysql", "coworker", "list")
}
