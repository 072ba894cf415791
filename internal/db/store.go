package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Store is the persistence capability the office services depend on.
// SQLite, PostgreSQL and the in-memory double all implement it.
//
// Lookups of a single record by key return an error wrapping ErrNotFound
// when the record is absent. Bulk deletes return the number of rows removed.
type Store interface {
	CreateCoworker(ctx context.Context, c *Coworker) error
	GetCoworker(ctx context.Context, name string) (*Coworker, error)
	CoworkerExists(ctx context.Context, name string) (bool, error)
	ListCoworkers(ctx context.Context) ([]*Coworker, error)
	UpdateCoworkerStatus(ctx context.Context, name string, status *string) error
	DeleteCoworker(ctx context.Context, id int64) error

	CreateMessage(ctx context.Context, m *Message) error
	ListMessages(ctx context.Context, filter MessageFilter) ([]*Message, error)
	MarkMessageRead(ctx context.Context, id int64) error
	DeleteMessagesForCoworker(ctx context.Context, name string) (int64, error)

	CreateCronJob(ctx context.Context, job *CronJob) error
	GetCronJob(ctx context.Context, id int64) (*CronJob, error)
	CronJobExists(ctx context.Context, name, coworker string) (bool, error)
	ListCronJobs(ctx context.Context) ([]*CronJob, error)
	ListCronJobsForCoworker(ctx context.Context, coworker string) ([]*CronJob, error)
	SetCronJobEnabled(ctx context.Context, id int64, enabled bool) error
	SetCronJobLastRun(ctx context.Context, id int64, at time.Time) error
	DeleteCronJob(ctx context.Context, id int64) error
	DeleteCronJobsForCoworker(ctx context.Context, coworker string) (int64, error)

	AppendCronHistory(ctx context.Context, entry *CronHistory) error
	ListCronHistory(ctx context.Context, jobID int64, limit int) ([]*CronHistory, error)

	CreateCronRequest(ctx context.Context, req *CronRequest) error
	GetCronRequest(ctx context.Context, id int64) (*CronRequest, error)
	ListCronRequests(ctx context.Context, filter CronRequestFilter) ([]*CronRequest, error)
	// UpdateCronRequestStatus reviews a pending request. It fails with
	// ErrInvalidState if the request is no longer pending when the write lands.
	UpdateCronRequestStatus(ctx context.Context, id int64, status CronRequestStatus, reviewer string, notes *string, at time.Time) error
	DeleteCronRequest(ctx context.Context, id int64) error
	DeleteCronRequestsForCoworker(ctx context.Context, coworker string) (int64, error)

	CreateTask(ctx context.Context, task *Task) error
	GetTask(ctx context.Context, id int64) (*Task, error)
	// UpdateTask overwrites every mutable field of the stored task.
	UpdateTask(ctx context.Context, task *Task) error
	DeleteTask(ctx context.Context, id int64) error
	ListTasks(ctx context.Context, filter TaskFilter) ([]*Task, error)
	// SearchTasks matches query case-insensitively as a substring of the
	// title or the description. An empty query matches every task.
	SearchTasks(ctx context.Context, query string, filter TaskFilter) ([]*Task, error)
	CountTasksByColumn(ctx context.Context) (map[Column]int, error)

	AppendTaskHistory(ctx context.Context, entry *TaskHistory) error
	ListTaskHistory(ctx context.Context, taskID int64) ([]*TaskHistory, error)

	// RunAtomic runs fn against a Store scoped to a single transaction.
	// If fn returns an error every write made through the scoped Store is
	// discarded and that error is returned unchanged. Calls nested inside
	// fn join the outer transaction.
	RunAtomic(ctx context.Context, fn func(tx Store) error) error

	Close() error
}

// Options selects and configures a backend for Open.
type Options struct {
	// Driver is "sqlite", "postgres" or "memory".
	Driver string
	// Path is the SQLite database file.
	Path string
	// DSN is the PostgreSQL connection string.
	DSN string
	// BusyTimeout bounds how long SQLite waits on a locked database.
	BusyTimeout time.Duration
}

// Open creates the configured Store. The caller must Close it.
func Open(opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", "sqlite", "sqlite3":
		return OpenSQLite(opts.Path, opts.BusyTimeout)
	case "postgres", "postgresql":
		return OpenPostgres(opts.DSN)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q (supported: sqlite, postgres, memory)", opts.Driver)
	}
}
