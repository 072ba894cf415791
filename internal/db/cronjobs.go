package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const cronJobColumns = `id, name, coworker, schedule, timezone, message, enabled, created_at, last_run`

// CreateCronJob inserts a new cron job and sets its ID
func (db *DB) CreateCronJob(ctx context.Context, job *CronJob) error {
	id, err := db.insert(ctx, `
		INSERT INTO cron_jobs (name, coworker, schedule, timezone, message, enabled, created_at, last_run)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, job.Name, job.Coworker, job.Schedule, job.Timezone, job.Message, job.Enabled, job.CreatedAt.UTC(), utcPtr(job.LastRun))
	if err != nil {
		if db.dialect.isUniqueViolation(err) {
			return fmt.Errorf("cron job %q for %q: %w", job.Name, job.Coworker, ErrAlreadyExists)
		}
		return fmt.Errorf("create cron job %q: %w", job.Name, err)
	}
	job.ID = id
	return nil
}

// GetCronJob retrieves a cron job by ID
func (db *DB) GetCronJob(ctx context.Context, id int64) (*CronJob, error) {
	row := db.queryRow(ctx, `SELECT `+cronJobColumns+` FROM cron_jobs WHERE id = ?`, id)
	job, err := scanCronJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cron job %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get cron job %d: %w", id, err)
	}
	return job, nil
}

// CronJobExists reports whether the coworker already has a job with this name
func (db *DB) CronJobExists(ctx context.Context, name, coworker string) (bool, error) {
	var n int
	err := db.queryRow(ctx, `SELECT COUNT(*) FROM cron_jobs WHERE name = ? AND coworker = ?`, name, coworker).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check cron job %q: %w", name, err)
	}
	return n > 0, nil
}

// ListCronJobs returns every cron job ordered by ID
func (db *DB) ListCronJobs(ctx context.Context) ([]*CronJob, error) {
	return db.listCronJobs(ctx, `SELECT `+cronJobColumns+` FROM cron_jobs ORDER BY id`)
}

// ListCronJobsForCoworker returns the coworker's cron jobs ordered by ID
func (db *DB) ListCronJobsForCoworker(ctx context.Context, coworker string) ([]*CronJob, error) {
	return db.listCronJobs(ctx, `SELECT `+cronJobColumns+` FROM cron_jobs WHERE coworker = ? ORDER BY id`, coworker)
}

func (db *DB) listCronJobs(ctx context.Context, query string, args ...any) ([]*CronJob, error) {
	rows, err := db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cron jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*CronJob
	for rows.Next() {
		job, err := scanCronJob(rows)
		if err != nil {
			return nil, fmt.Errorf("list cron jobs: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// SetCronJobEnabled enables or disables a cron job
func (db *DB) SetCronJobEnabled(ctx context.Context, id int64, enabled bool) error {
	return db.execOne(ctx, "cron job", id, `UPDATE cron_jobs SET enabled = ? WHERE id = ?`, enabled, id)
}

// SetCronJobLastRun records when a cron job last ran
func (db *DB) SetCronJobLastRun(ctx context.Context, id int64, at time.Time) error {
	return db.execOne(ctx, "cron job", id, `UPDATE cron_jobs SET last_run = ? WHERE id = ?`, at.UTC(), id)
}

// DeleteCronJob deletes a cron job and its history
func (db *DB) DeleteCronJob(ctx context.Context, id int64) error {
	return db.execOne(ctx, "cron job", id, `DELETE FROM cron_jobs WHERE id = ?`, id)
}

// DeleteCronJobsForCoworker removes every job bound to the coworker
func (db *DB) DeleteCronJobsForCoworker(ctx context.Context, coworker string) (int64, error) {
	n, err := db.execCount(ctx, `DELETE FROM cron_jobs WHERE coworker = ?`, coworker)
	if err != nil {
		return 0, fmt.Errorf("delete cron jobs for %q: %w", coworker, err)
	}
	return n, nil
}

// AppendCronHistory records a cron job execution
func (db *DB) AppendCronHistory(ctx context.Context, entry *CronHistory) error {
	id, err := db.insert(ctx, `
		INSERT INTO cron_history (cron_job_id, executed_at, success, error_message)
		VALUES (?, ?, ?, ?)
	`, entry.CronJobID, entry.ExecutedAt.UTC(), entry.Success, entry.ErrorMessage)
	if err != nil {
		return fmt.Errorf("append cron history for job %d: %w", entry.CronJobID, err)
	}
	entry.ID = id
	return nil
}

// ListCronHistory returns a job's executions, most recent first. A limit
// of zero or less returns every entry.
func (db *DB) ListCronHistory(ctx context.Context, jobID int64, limit int) ([]*CronHistory, error) {
	query := `
		SELECT id, cron_job_id, executed_at, success, error_message
		FROM cron_history WHERE cron_job_id = ?
		ORDER BY executed_at DESC, id DESC`
	args := []any{jobID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cron history for job %d: %w", jobID, err)
	}
	defer rows.Close()

	var entries []*CronHistory
	for rows.Next() {
		h := &CronHistory{}
		if err := rows.Scan(&h.ID, &h.CronJobID, &h.ExecutedAt, &h.Success, &h.ErrorMessage); err != nil {
			return nil, fmt.Errorf("list cron history for job %d: %w", jobID, err)
		}
		h.ExecutedAt = h.ExecutedAt.UTC()
		entries = append(entries, h)
	}
	return entries, rows.Err()
}

func scanCronJob(row rowScanner) (*CronJob, error) {
	job := &CronJob{}
	err := row.Scan(&job.ID, &job.Name, &job.Coworker, &job.Schedule, &job.Timezone, &job.Message, &job.Enabled, &job.CreatedAt, &job.LastRun)
	if err != nil {
		return nil, err
	}
	job.CreatedAt = job.CreatedAt.UTC()
	job.LastRun = utcPtr(job.LastRun)
	return job, nil
}
