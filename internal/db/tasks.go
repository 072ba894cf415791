package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const taskColumns = `id, title, description, assignee, board_column, dependencies, created_at, updated_at`

// CreateTask inserts a new task and sets its ID
func (db *DB) CreateTask(ctx context.Context, task *Task) error {
	deps, err := encodeDependencies(task.Dependencies)
	if err != nil {
		return err
	}
	id, err := db.insert(ctx, `
		INSERT INTO tasks (title, description, assignee, board_column, dependencies, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, task.Title, task.Description, task.Assignee, string(task.Column), deps, task.CreatedAt.UTC(), task.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("create task %q: %w", task.Title, err)
	}
	task.ID = id
	return nil
}

// GetTask retrieves a task by ID
func (db *DB) GetTask(ctx context.Context, id int64) (*Task, error) {
	row := db.queryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return task, nil
}

// UpdateTask writes every mutable field of task
func (db *DB) UpdateTask(ctx context.Context, task *Task) error {
	deps, err := encodeDependencies(task.Dependencies)
	if err != nil {
		return err
	}
	return db.execOne(ctx, "task", task.ID, `
		UPDATE tasks
		SET title = ?, description = ?, assignee = ?, board_column = ?, dependencies = ?, updated_at = ?
		WHERE id = ?
	`, task.Title, task.Description, task.Assignee, string(task.Column), deps, task.UpdatedAt.UTC(), task.ID)
}

// DeleteTask deletes a task and its history
func (db *DB) DeleteTask(ctx context.Context, id int64) error {
	return db.execOne(ctx, "task", id, `DELETE FROM tasks WHERE id = ?`, id)
}

// ListTasks returns tasks matching filter ordered by ID
func (db *DB) ListTasks(ctx context.Context, filter TaskFilter) ([]*Task, error) {
	return db.SearchTasks(ctx, "", filter)
}

// SearchTasks returns tasks whose title or description contains query,
// ignoring case, ordered by ID. The filters run in SQL and the text match
// runs in Go, since SQLite's LOWER and LIKE only fold ASCII.
func (db *DB) SearchTasks(ctx context.Context, query string, filter TaskFilter) ([]*Task, error) {
	var (
		where []string
		args  []any
	)
	if filter.Assignee != nil {
		where = append(where, "assignee = ?")
		args = append(args, *filter.Assignee)
	}
	if filter.Column != nil {
		where = append(where, "board_column = ?")
		args = append(args, string(*filter.Column))
	}

	stmt := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += " ORDER BY id"

	rows, err := db.query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("search tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("search tasks: %w", err)
		}
		if !matchesQuery(task, query) {
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// CountTasksByColumn counts tasks per column. Empty columns are absent.
func (db *DB) CountTasksByColumn(ctx context.Context) (map[Column]int, error) {
	rows, err := db.query(ctx, `SELECT board_column, COUNT(*) FROM tasks GROUP BY board_column`)
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	defer rows.Close()

	counts := make(map[Column]int)
	for rows.Next() {
		var (
			col string
			n   int
		)
		if err := rows.Scan(&col, &n); err != nil {
			return nil, fmt.Errorf("count tasks: %w", err)
		}
		counts[Column(col)] = n
	}
	return counts, rows.Err()
}

// AppendTaskHistory records a column transition
func (db *DB) AppendTaskHistory(ctx context.Context, entry *TaskHistory) error {
	var from *string
	if entry.FromColumn != nil {
		s := string(*entry.FromColumn)
		from = &s
	}
	id, err := db.insert(ctx, `
		INSERT INTO task_history (task_id, from_column, to_column, moved_at)
		VALUES (?, ?, ?, ?)
	`, entry.TaskID, from, string(entry.ToColumn), entry.MovedAt.UTC())
	if err != nil {
		return fmt.Errorf("append history for task %d: %w", entry.TaskID, err)
	}
	entry.ID = id
	return nil
}

// ListTaskHistory returns a task's transitions, oldest first
func (db *DB) ListTaskHistory(ctx context.Context, taskID int64) ([]*TaskHistory, error) {
	rows, err := db.query(ctx, `
		SELECT id, task_id, from_column, to_column, moved_at
		FROM task_history WHERE task_id = ?
		ORDER BY moved_at, id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list history for task %d: %w", taskID, err)
	}
	defer rows.Close()

	var entries []*TaskHistory
	for rows.Next() {
		var (
			h    = &TaskHistory{}
			from *string
			to   string
		)
		if err := rows.Scan(&h.ID, &h.TaskID, &from, &to, &h.MovedAt); err != nil {
			return nil, fmt.Errorf("list history for task %d: %w", taskID, err)
		}
		if from != nil {
			col := Column(*from)
			h.FromColumn = &col
		}
		h.ToColumn = Column(to)
		h.MovedAt = h.MovedAt.UTC()
		entries = append(entries, h)
	}
	return entries, rows.Err()
}

func scanTask(row rowScanner) (*Task, error) {
	task := &Task{}
	var col, deps string
	err := row.Scan(&task.ID, &task.Title, &task.Description, &task.Assignee, &col, &deps, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, err
	}
	task.Column = Column(col)
	if err := json.Unmarshal([]byte(deps), &task.Dependencies); err != nil {
		return nil, fmt.Errorf("decode dependencies of task %d: %w", task.ID, err)
	}
	if task.Dependencies == nil {
		task.Dependencies = []int64{}
	}
	task.CreatedAt = task.CreatedAt.UTC()
	task.UpdatedAt = task.UpdatedAt.UTC()
	return task, nil
}

func encodeDependencies(deps []int64) (string, error) {
	if deps == nil {
		deps = []int64{}
	}
	raw, err := json.Marshal(deps)
	if err != nil {
		return "", fmt.Errorf("encode dependencies: %w", err)
	}
	return string(raw), nil
}
