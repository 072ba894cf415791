package db

import (
	"fmt"
	"strings"
	"time"
)

// Coworker is a named agent identity. Every other record attaches to one by name.
type Coworker struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Agent             string    `json:"agent"`
	Status            *string   `json:"status,omitempty"`
	Description       string    `json:"description,omitempty"`
	Philosophy        string    `json:"philosophy,omitempty"`
	VisualDescription string    `json:"visual_description,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Message is a note sent from one coworker to another
type Message struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// CronJob is a named schedule bound to a coworker. Names are unique per coworker.
type CronJob struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Coworker  string     `json:"coworker"`
	Schedule  string     `json:"schedule"`
	Timezone  *string    `json:"timezone,omitempty"`
	Message   string     `json:"message"`
	Enabled   bool       `json:"enabled"`
	CreatedAt time.Time  `json:"created_at"`
	LastRun   *time.Time `json:"last_run,omitempty"`
}

// CronHistory is one recorded execution of a cron job
type CronHistory struct {
	ID           int64     `json:"id"`
	CronJobID    int64     `json:"cron_job_id"`
	ExecutedAt   time.Time `json:"executed_at"`
	Success      bool      `json:"success"`
	ErrorMessage *string   `json:"error_message,omitempty"`
}

// CronRequestStatus represents the review state of a cron request
type CronRequestStatus string

const (
	CronRequestPending  CronRequestStatus = "pending"
	CronRequestApproved CronRequestStatus = "approved"
	CronRequestRejected CronRequestStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s CronRequestStatus) Valid() bool {
	switch s {
	case CronRequestPending, CronRequestApproved, CronRequestRejected:
		return true
	}
	return false
}

// Terminal reports whether the request has been reviewed.
func (s CronRequestStatus) Terminal() bool {
	return s == CronRequestApproved || s == CronRequestRejected
}

// ParseCronRequestStatus parses a status name case-insensitively.
func ParseCronRequestStatus(raw string) (CronRequestStatus, error) {
	status := CronRequestStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown cron request status %q (want pending, approved or rejected): %w", raw, ErrValidation)
	}
	return status, nil
}

// CronRequest is a proposed cron job awaiting review
type CronRequest struct {
	ID            int64             `json:"id"`
	Name          string            `json:"name"`
	Coworker      string            `json:"coworker"`
	Schedule      string            `json:"schedule"`
	Timezone      *string           `json:"timezone,omitempty"`
	Message       string            `json:"message"`
	Status        CronRequestStatus `json:"status"`
	RequestedAt   time.Time         `json:"requested_at"`
	ReviewedAt    *time.Time        `json:"reviewed_at,omitempty"`
	ReviewedBy    *string           `json:"reviewed_by,omitempty"`
	ReviewerNotes *string           `json:"reviewer_notes,omitempty"`
}

// Column is one of the fixed kanban columns a task sits in
type Column string

const (
	ColumnIdea           Column = "idea"
	ColumnApprovedIdea   Column = "approved idea"
	ColumnWorkingOn      Column = "working on"
	ColumnBlocked        Column = "blocked"
	ColumnReadyForReview Column = "ready for review"
	ColumnDone           Column = "done"
)

// Columns lists every column in board order.
var Columns = []Column{
	ColumnIdea,
	ColumnApprovedIdea,
	ColumnWorkingOn,
	ColumnBlocked,
	ColumnReadyForReview,
	ColumnDone,
}

// Valid reports whether c is one of the six board columns.
func (c Column) Valid() bool {
	return c.Index() >= 0
}

// Index returns the board position of c, or -1.
func (c Column) Index() int {
	for i, col := range Columns {
		if col == c {
			return i
		}
	}
	return -1
}

// ParseColumn accepts a column name ignoring case, surrounding space, and
// '-' or '_' in place of spaces ("working-on", "Ready_For_Review").
func ParseColumn(raw string) (Column, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", " ", "_", " ").Replace(normalized)
	normalized = strings.Join(strings.Fields(normalized), " ")
	col := Column(normalized)
	if !col.Valid() {
		return "", fmt.Errorf("unknown column %q: %w", raw, ErrValidation)
	}
	return col, nil
}

// Task is a card on the board
type Task struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Assignee     *string   `json:"assignee,omitempty"`
	Column       Column    `json:"column"`
	Dependencies []int64   `json:"dependencies"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TaskHistory records a task entering a column. FromColumn is nil for the
// entry written when the task is created.
type TaskHistory struct {
	ID         int64     `json:"id"`
	TaskID     int64     `json:"task_id"`
	FromColumn *Column   `json:"from_column,omitempty"`
	ToColumn   Column    `json:"to_column"`
	MovedAt    time.Time `json:"moved_at"`
}

// MessageFilter narrows ListMessages. Nil fields do not filter.
type MessageFilter struct {
	Sender     *string
	Recipient  *string
	UnreadOnly bool
}

// CronRequestFilter narrows ListCronRequests. Both fields are optional and combine with AND.
type CronRequestFilter struct {
	Status   *CronRequestStatus
	Coworker *string
}

// TaskFilter narrows task listings and searches by equality.
type TaskFilter struct {
	Assignee *string
	Column   *Column
}
