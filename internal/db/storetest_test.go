package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const postgresDSNEnv = "CLAUDE_OFFICE_TEST_POSTGRES_DSN"

type storeHarness struct {
	Ctx   context.Context
	Store Store
}

type backend struct {
	name string
	open func(t *testing.T) Store
	// serial backends share one database and must not run in parallel
	serial bool
}

func backends() []backend {
	all := []backend{
		{name: "memory", open: func(t *testing.T) Store { return NewMemoryStore() }},
		{name: "sqlite", open: openSQLiteForTest},
	}
	if os.Getenv(postgresDSNEnv) != "" {
		all = append(all, backend{name: "postgres", open: openPostgresForTest, serial: true})
	}
	return all
}

func openSQLiteForTest(t *testing.T) Store {
	t.Helper()

	store, err := OpenSQLite(filepath.Join(t.TempDir(), "office.db"), 0)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	return store
}

func openPostgresForTest(t *testing.T) Store {
	t.Helper()

	store, err := OpenPostgres(os.Getenv(postgresDSNEnv))
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	_, err = store.conn.Exec(`TRUNCATE coworkers, messages, cron_jobs, cron_history, cron_requests, tasks, task_history RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return store
}

// forEachBackend runs fn once per available backend, each with a fresh store
func forEachBackend(t *testing.T, fn func(t *testing.T, h *storeHarness)) {
	t.Helper()

	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			if !b.serial {
				t.Parallel()
			}
			store := b.open(t)
			t.Cleanup(func() {
				_ = store.Close()
			})
			fn(t, &storeHarness{Ctx: context.Background(), Store: store})
		})
	}
}

// ts returns a fixed UTC instant offset by minutes
func ts(minutes int) time.Time {
	return time.Date(2024, time.January, 15, 9, 0, 0, 0, time.UTC).Add(time.Duration(minutes) * time.Minute)
}

func strPtr(s string) *string {
	return &s
}

func (h *storeHarness) mustCreateCoworker(t *testing.T, name string) *Coworker {
	t.Helper()

	c := &Coworker{Name: name, Agent: "claude", CreatedAt: ts(0)}
	if err := h.Store.CreateCoworker(h.Ctx, c); err != nil {
		t.Fatalf("CreateCoworker(%s): %v", name, err)
	}
	return c
}

func (h *storeHarness) mustCreateCronJob(t *testing.T, name, coworker string) *CronJob {
	t.Helper()

	job := &CronJob{Name: name, Coworker: coworker, Schedule: "0 9 * * *", Message: "ping", Enabled: true, CreatedAt: ts(0)}
	if err := h.Store.CreateCronJob(h.Ctx, job); err != nil {
		t.Fatalf("CreateCronJob(%s): %v", name, err)
	}
	return job
}

func (h *storeHarness) mustCreateTask(t *testing.T, task *Task) *Task {
	t.Helper()

	if task.CreatedAt.IsZero() {
		task.CreatedAt = ts(0)
		task.UpdatedAt = ts(0)
	}
	if task.Column == "" {
		task.Column = ColumnIdea
	}
	if err := h.Store.CreateTask(h.Ctx, task); err != nil {
		t.Fatalf("CreateTask(%s): %v", task.Title, err)
	}
	return task
}
