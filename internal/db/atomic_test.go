package db

import (
	"errors"
	"strings"
	"testing"
)

func TestRunAtomicRollsBackOnError(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, h *storeHarness) {
		h.mustCreateCoworker(t, "alice")
		errBoom := errors.New("boom")

		err := h.Store.RunAtomic(h.Ctx, func(tx Store) error {
			if err := tx.CreateCoworker(h.Ctx, &Coworker{Name: "bob", CreatedAt: ts(1)}); err != nil {
				return err
			}
			if err := tx.CreateMessage(h.Ctx, &Message{Sender: "bob", Recipient: "alice", Body: "hi", CreatedAt: ts(1)}); err != nil {
				return err
			}
			if err := tx.UpdateCoworkerStatus(h.Ctx, "alice", strPtr("busy")); err != nil {
				return err
			}
			return errBoom
		})
		if err != errBoom {
			t.Fatalf("expected the callback error unchanged, got %v", err)
		}

		exists, err := h.Store.CoworkerExists(h.Ctx, "bob")
		if err != nil {
			t.Fatalf("CoworkerExists: %v", err)
		}
		if exists {
			t.Fatalf("expected bob to be rolled back")
		}
		messages, _ := h.Store.ListMessages(h.Ctx, MessageFilter{})
		if len(messages) != 0 {
			t.Fatalf("expected no messages after rollback, got %d", len(messages))
		}
		alice, _ := h.Store.GetCoworker(h.Ctx, "alice")
		if alice.Status != nil {
			t.Fatalf("expected alice's status to be rolled back, got %q", *alice.Status)
		}
	})
}

func TestRunAtomicCommits(t *testing.T) {
	t.Parallel()

	forEachBackend(t, func(t *testing.T, h *storeHarness) {
		err := h.Store.RunAtomic(h.Ctx, func(tx Store) error {
			if err := tx.CreateCoworker(h.Ctx, &Coworker{Name: "bob", CreatedAt: ts(0)}); err != nil {
				return err
			}
			// nested calls join the outer unit of work
			return tx.RunAtomic(h.Ctx, func(inner Store) error {
				return inner.CreateMessage(h.Ctx, &Message{Sender: "bob", Recipient: "alice", Body: "hi", CreatedAt: ts(0)})
			})
		})
		if err != nil {
			t.Fatalf("RunAtomic: %v", err)
		}

		if _, err := h.Store.GetCoworker(h.Ctx, "bob"); err != nil {
			t.Fatalf("GetCoworker: %v", err)
		}
		messages, _ := h.Store.ListMessages(h.Ctx, MessageFilter{Sender: strPtr("bob")})
		if len(messages) != 1 {
			t.Fatalf("expected 1 committed message, got %d", len(messages))
		}
	})
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	h := &storeHarness{Ctx: t.Context(), Store: store}
	task := h.mustCreateTask(t, &Task{Title: "original", Dependencies: []int64{1}})

	got, err := store.GetTask(h.Ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	got.Title = "changed"
	got.Dependencies[0] = 42
	task.Title = "changed too"

	again, _ := store.GetTask(h.Ctx, task.ID)
	if again.Title != "original" || again.Dependencies[0] != 1 {
		t.Fatalf("expected stored task to be unaffected, got %+v", again)
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	t.Parallel()

	store, err := Open(Options{Driver: "memory"})
	if err != nil {
		t.Fatalf("Open(memory): %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Fatalf("expected *MemoryStore, got %T", store)
	}

	store, err = Open(Options{Driver: "SQLite", Path: t.TempDir() + "/nested/office.db"})
	if err != nil {
		t.Fatalf("Open(sqlite): %v", err)
	}
	defer store.Close()
	if sqlStore, ok := store.(*DB); !ok || sqlStore.Driver() != "sqlite" {
		t.Fatalf("expected sqlite *DB, got %T", store)
	}

	if _, err := Open(Options{Driver: "oracle"}); err == nil || !strings.Contains(err.Error(), "oracle") {
		t.Fatalf("expected unknown driver error, got %v", err)
	}
	if _, err := Open(Options{Driver: "postgres"}); err == nil {
		t.Fatalf("expected error for postgres without dsn")
	}
}

func TestRebindNumbersPlaceholders(t *testing.T) {
	t.Parallel()

	got := postgresDialect.rebind("SELECT * FROM tasks WHERE a = ? AND b = ?")
	if got != "SELECT * FROM tasks WHERE a = $1 AND b = $2" {
		t.Fatalf("unexpected rebind: %q", got)
	}
	if q := sqliteDialect.rebind("a = ?"); q != "a = ?" {
		t.Fatalf("sqlite should keep ? placeholders, got %q", q)
	}
}
