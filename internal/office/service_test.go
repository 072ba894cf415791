package office

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kylemclaren/claude-office/internal/db"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testHarness struct {
	Ctx     context.Context
	Store   db.Store
	Clock   *fakeClock
	Service *Service
}

var epoch = time.Date(2024, time.January, 15, 9, 0, 0, 0, time.UTC)

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	return newHarnessWithStore(t, db.NewMemoryStore())
}

func newSQLiteHarness(t *testing.T) *testHarness {
	t.Helper()

	store, err := db.OpenSQLite(filepath.Join(t.TempDir(), "office.db"), 0)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	return newHarnessWithStore(t, store)
}

func newHarnessWithStore(t *testing.T, store db.Store) *testHarness {
	t.Helper()

	t.Cleanup(func() {
		_ = store.Close()
	})
	clock := newFakeClock(epoch)
	return &testHarness{
		Ctx:     context.Background(),
		Store:   store,
		Clock:   clock,
		Service: NewService(store, WithClock(clock.Now)),
	}
}

// forEachStore runs fn against the memory store and a SQLite file
func forEachStore(t *testing.T, fn func(t *testing.T, h *testHarness)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		t.Parallel()
		fn(t, newTestHarness(t))
	})
	t.Run("sqlite", func(t *testing.T) {
		t.Parallel()
		fn(t, newSQLiteHarness(t))
	})
}

func (h *testHarness) mustCoworker(t *testing.T, name string) *db.Coworker {
	t.Helper()

	c, err := h.Service.CreateCoworker(h.Ctx, CoworkerInput{Name: name, Agent: "claude"})
	if err != nil {
		t.Fatalf("CreateCoworker(%s): %v", name, err)
	}
	return c
}

func (h *testHarness) mustCronJob(t *testing.T, name, coworker, expr string, tz *string) *db.CronJob {
	t.Helper()

	job, err := h.Service.CreateCronJob(h.Ctx, CronJobInput{Name: name, Coworker: coworker, Schedule: expr, Timezone: tz, Message: "run " + name})
	if err != nil {
		t.Fatalf("CreateCronJob(%s): %v", name, err)
	}
	return job
}

func (h *testHarness) mustCronRequest(t *testing.T, name, coworker string) *db.CronRequest {
	t.Helper()

	req, err := h.Service.CreateCronRequest(h.Ctx, CronJobInput{Name: name, Coworker: coworker, Schedule: "0 9 * * 1", Message: "please run " + name})
	if err != nil {
		t.Fatalf("CreateCronRequest(%s): %v", name, err)
	}
	return req
}

func (h *testHarness) mustTask(t *testing.T, in TaskInput) *db.Task {
	t.Helper()

	task, err := h.Service.CreateTask(h.Ctx, in)
	if err != nil {
		t.Fatalf("CreateTask(%s): %v", in.Title, err)
	}
	return task
}

func strPtr(s string) *string {
	return &s
}

func colPtr(c db.Column) *db.Column {
	return &c
}

func utc(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func TestTouchIsStrictlyLater(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	prev := h.Service.timestamp()
	next := h.Service.touch(prev)
	if !next.After(prev) {
		t.Fatalf("expected %s to be after %s with a frozen clock", next, prev)
	}

	h.Clock.Advance(time.Hour)
	if got := h.Service.touch(prev); !got.Equal(epoch.Add(time.Hour)) {
		t.Fatalf("expected the clock time once it moves past prev, got %s", got)
	}
}
