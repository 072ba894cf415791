package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const defaultBusyTimeout = 5 * time.Second

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB is the database/sql backed Store. The same queries serve SQLite and
// PostgreSQL; the dialect covers placeholders, schema and error codes.
type DB struct {
	conn    *sql.DB
	q       querier
	tx      *sql.Tx
	dialect *dialect
}

var _ Store = (*DB)(nil)

// OpenSQLite opens (creating if needed) the SQLite database at dbPath.
func OpenSQLite(dbPath string, busyTimeout time.Duration) (*DB, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}

	params := url.Values{}
	params.Set("_foreign_keys", "on")
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", strconv.FormatInt(busyTimeout.Milliseconds(), 10))
	// take the write lock at BEGIN so two racing invocations queue on the
	// busy timeout instead of failing on lock upgrade
	params.Set("_txlock", "immediate")
	params.Set("_loc", "UTC")

	conn, err := sql.Open(sqliteDialect.driver, dbPath+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newDB(conn, sqliteDialect)
}

// OpenPostgres connects to the PostgreSQL database described by dsn.
func OpenPostgres(dsn string) (*DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	conn, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newDB(conn, postgresDialect)
}

func newDB(conn *sql.DB, d *dialect) (*DB, error) {
	db := &DB{conn: conn, q: conn, dialect: d}
	if err := db.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// Close closes the database connection. Closing a transaction-scoped DB
// is a no-op; the transaction ends when RunAtomic returns.
func (db *DB) Close() error {
	if db.tx != nil {
		return nil
	}
	return db.conn.Close()
}

// Driver returns the dialect name, "sqlite" or "postgres".
func (db *DB) Driver() string {
	return db.dialect.name
}

func (db *DB) migrate(ctx context.Context) error {
	for _, statement := range db.dialect.schema {
		if _, err := db.conn.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("migrate %s schema: %w", db.dialect.name, err)
		}
	}
	return nil
}

// RunAtomic runs fn inside a single transaction
func (db *DB) RunAtomic(ctx context.Context, fn func(tx Store) error) error {
	if db.tx != nil {
		return fn(db)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	scoped := &DB{conn: db.conn, q: tx, tx: tx, dialect: db.dialect}
	if err := fn(scoped); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (db *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.q.ExecContext(ctx, db.dialect.rebind(query), args...)
}

func (db *DB) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.q.QueryContext(ctx, db.dialect.rebind(query), args...)
}

func (db *DB) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return db.q.QueryRowContext(ctx, db.dialect.rebind(query), args...)
}

// insert runs an INSERT ... RETURNING id and returns the new id
func (db *DB) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	if err := db.queryRow(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// execOne runs a statement that must touch exactly one row
func (db *DB) execOne(ctx context.Context, what string, id int64, query string, args ...any) error {
	result, err := db.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s %d: %w", what, id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %d: %w", what, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return nil
}

func (db *DB) execCount(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := db.exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// matchesQuery reports whether query occurs in the task's title or
// description, ignoring case. Every backend searches through it.
func matchesQuery(task *Task, query string) bool {
	if query == "" {
		return true
	}
	needle := strings.ToLower(query)
	return strings.Contains(strings.ToLower(task.Title), needle) ||
		strings.Contains(strings.ToLower(task.Description), needle)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
