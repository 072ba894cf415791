package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const cronRequestColumns = `id, name, coworker, schedule, timezone, message, status, requested_at, reviewed_at, reviewed_by, reviewer_notes`

// CreateCronRequest inserts a new cron request and sets its ID
func (db *DB) CreateCronRequest(ctx context.Context, req *CronRequest) error {
	id, err := db.insert(ctx, `
		INSERT INTO cron_requests (name, coworker, schedule, timezone, message, status, requested_at, reviewed_at, reviewed_by, reviewer_notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, req.Name, req.Coworker, req.Schedule, req.Timezone, req.Message, string(req.Status), req.RequestedAt.UTC(),
		utcPtr(req.ReviewedAt), req.ReviewedBy, req.ReviewerNotes)
	if err != nil {
		return fmt.Errorf("create cron request %q: %w", req.Name, err)
	}
	req.ID = id
	return nil
}

// GetCronRequest retrieves a cron request by ID
func (db *DB) GetCronRequest(ctx context.Context, id int64) (*CronRequest, error) {
	row := db.queryRow(ctx, `SELECT `+cronRequestColumns+` FROM cron_requests WHERE id = ?`, id)
	req, err := scanCronRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cron request %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get cron request %d: %w", id, err)
	}
	return req, nil
}

// ListCronRequests returns requests matching filter, newest first
func (db *DB) ListCronRequests(ctx context.Context, filter CronRequestFilter) ([]*CronRequest, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.Coworker != nil {
		where = append(where, "coworker = ?")
		args = append(args, *filter.Coworker)
	}

	query := `SELECT ` + cronRequestColumns + ` FROM cron_requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY requested_at DESC, id DESC"

	rows, err := db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cron requests: %w", err)
	}
	defer rows.Close()

	var requests []*CronRequest
	for rows.Next() {
		req, err := scanCronRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("list cron requests: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// UpdateCronRequestStatus moves a pending request to status. The write is
// conditional on the row still being pending, so two racing reviewers
// cannot both succeed.
func (db *DB) UpdateCronRequestStatus(ctx context.Context, id int64, status CronRequestStatus, reviewer string, notes *string, at time.Time) error {
	n, err := db.execCount(ctx, `
		UPDATE cron_requests
		SET status = ?, reviewed_at = ?, reviewed_by = ?, reviewer_notes = ?
		WHERE id = ? AND status = ?
	`, string(status), at.UTC(), reviewer, notes, id, string(CronRequestPending))
	if err != nil {
		return fmt.Errorf("update cron request %d: %w", id, err)
	}
	if n > 0 {
		return nil
	}

	current, err := db.GetCronRequest(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("cron request %d: status is already %s: %w", id, current.Status, ErrInvalidState)
}

// DeleteCronRequest deletes a cron request regardless of its status
func (db *DB) DeleteCronRequest(ctx context.Context, id int64) error {
	return db.execOne(ctx, "cron request", id, `DELETE FROM cron_requests WHERE id = ?`, id)
}

// DeleteCronRequestsForCoworker removes every request bound to the coworker
func (db *DB) DeleteCronRequestsForCoworker(ctx context.Context, coworker string) (int64, error) {
	n, err := db.execCount(ctx, `DELETE FROM cron_requests WHERE coworker = ?`, coworker)
	if err != nil {
		return 0, fmt.Errorf("delete cron requests for %q: %w", coworker, err)
	}
	return n, nil
}

func scanCronRequest(row rowScanner) (*CronRequest, error) {
	req := &CronRequest{}
	var status string
	err := row.Scan(&req.ID, &req.Name, &req.Coworker, &req.Schedule, &req.Timezone, &req.Message,
		&status, &req.RequestedAt, &req.ReviewedAt, &req.ReviewedBy, &req.ReviewerNotes)
	if err != nil {
		return nil, err
	}
	req.Status = CronRequestStatus(status)
	req.RequestedAt = req.RequestedAt.UTC()
	req.ReviewedAt = utcPtr(req.ReviewedAt)
	return req, nil
}
