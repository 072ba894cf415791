package db

import (
	"errors"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

type dialect struct {
	name   string
	driver string
	schema []string
	// numbered reports whether placeholders are $1, $2, ... instead of ?
	numbered          bool
	isUniqueViolation func(err error) bool
}

// rebind rewrites ? placeholders for dialects that number them
func (d *dialect) rebind(query string) string {
	if !d.numbered || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var sqliteDialect = &dialect{
	name:   "sqlite",
	driver: "sqlite3",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS coworkers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			agent TEXT NOT NULL DEFAULT '',
			status TEXT,
			description TEXT NOT NULL DEFAULT '',
			philosophy TEXT NOT NULL DEFAULT '',
			visual_description TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sender TEXT NOT NULL,
			recipient TEXT NOT NULL,
			body TEXT NOT NULL,
			read INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_recipient ON messages(recipient)`,
		`CREATE TABLE IF NOT EXISTS cron_jobs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			coworker TEXT NOT NULL,
			schedule TEXT NOT NULL,
			timezone TEXT,
			message TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			last_run DATETIME,
			UNIQUE (name, coworker)
		)`,
		`CREATE TABLE IF NOT EXISTS cron_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			cron_job_id INTEGER NOT NULL,
			executed_at DATETIME NOT NULL,
			success INTEGER NOT NULL,
			error_message TEXT,
			FOREIGN KEY (cron_job_id) REFERENCES cron_jobs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cron_history_job ON cron_history(cron_job_id, executed_at)`,
		`CREATE TABLE IF NOT EXISTS cron_requests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			coworker TEXT NOT NULL,
			schedule TEXT NOT NULL,
			timezone TEXT,
			message TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
			requested_at DATETIME NOT NULL,
			reviewed_at DATETIME,
			reviewed_by TEXT,
			reviewer_notes TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			assignee TEXT,
			board_column TEXT NOT NULL,
			dependencies TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee)`,
		`CREATE TABLE IF NOT EXISTS task_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id INTEGER NOT NULL,
			from_column TEXT,
			to_column TEXT NOT NULL,
			moved_at DATETIME NOT NULL,
			FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
		)`,
	},
	isUniqueViolation: func(err error) bool {
		var sqliteErr sqlite3.Error
		if !errors.As(err, &sqliteErr) {
			return false
		}
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	},
}

var postgresDialect = &dialect{
	name:     "postgres",
	driver:   "postgres",
	numbered: true,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS coworkers (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			agent TEXT NOT NULL DEFAULT '',
			status TEXT,
			description TEXT NOT NULL DEFAULT '',
			philosophy TEXT NOT NULL DEFAULT '',
			visual_description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id BIGSERIAL PRIMARY KEY,
			sender TEXT NOT NULL,
			recipient TEXT NOT NULL,
			body TEXT NOT NULL,
			read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_recipient ON messages(recipient)`,
		`CREATE TABLE IF NOT EXISTS cron_jobs (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			coworker TEXT NOT NULL,
			schedule TEXT NOT NULL,
			timezone TEXT,
			message TEXT NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL,
			last_run TIMESTAMPTZ,
			UNIQUE (name, coworker)
		)`,
		`CREATE TABLE IF NOT EXISTS cron_history (
			id BIGSERIAL PRIMARY KEY,
			cron_job_id BIGINT NOT NULL REFERENCES cron_jobs(id) ON DELETE CASCADE,
			executed_at TIMESTAMPTZ NOT NULL,
			success BOOLEAN NOT NULL,
			error_message TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cron_history_job ON cron_history(cron_job_id, executed_at)`,
		`CREATE TABLE IF NOT EXISTS cron_requests (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			coworker TEXT NOT NULL,
			schedule TEXT NOT NULL,
			timezone TEXT,
			message TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
			requested_at TIMESTAMPTZ NOT NULL,
			reviewed_at TIMESTAMPTZ,
			reviewed_by TEXT,
			reviewer_notes TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			assignee TEXT,
			board_column TEXT NOT NULL,
			dependencies TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee)`,
		`CREATE TABLE IF NOT EXISTS task_history (
			id BIGSERIAL PRIMARY KEY,
			task_id BIGINT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			from_column TEXT,
			to_column TEXT NOT NULL,
			moved_at TIMESTAMPTZ NOT NULL
		)`,
	},
	isUniqueViolation: func(err error) bool {
		var pqErr *pq.Error
		if !errors.As(err, &pqErr) {
			return false
		}
		return pqErr.Code == "23505"
	},
}
