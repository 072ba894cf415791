package office

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/kylemclaren/claude-office/internal/db"
)

// TaskInput describes a new task. An empty Column means idea.
type TaskInput struct {
	Title        string
	Description  string
	Assignee     *string
	Column       db.Column
	Dependencies []int64
}

// TaskUpdate changes any subset of a task's fields. Nil fields are left
// alone; Unassign clears the assignee.
type TaskUpdate struct {
	Title        *string
	Description  *string
	Assignee     *string
	Unassign     bool
	Column       *db.Column
	Dependencies *[]int64
}

// ColumnCount is the number of tasks in one column
type ColumnCount struct {
	Column db.Column `json:"column"`
	Count  int       `json:"count"`
}

// ColumnDuration is the total time a task has spent in a column
type ColumnDuration struct {
	Column   db.Column     `json:"column"`
	Duration time.Duration `json:"duration"`
}

// BoardColumn is a column and the tasks in it
type BoardColumn struct {
	Column db.Column  `json:"column"`
	Tasks  []*db.Task `json:"tasks"`
}

// CreateTask creates a task and writes its initial history entry
func (s *Service) CreateTask(ctx context.Context, in TaskInput) (*db.Task, error) {
	title, err := requireText("title", in.Title)
	if err != nil {
		return nil, err
	}
	col := db.ColumnIdea
	if in.Column != "" {
		if col, err = db.ParseColumn(string(in.Column)); err != nil {
			return nil, err
		}
	}

	now := s.timestamp()
	task := &db.Task{
		Title:        title,
		Description:  in.Description,
		Assignee:     optionalText(in.Assignee),
		Column:       col,
		Dependencies: dedupe(in.Dependencies),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.store.RunAtomic(ctx, func(tx db.Store) error {
		if err := tx.CreateTask(ctx, task); err != nil {
			return err
		}
		return tx.AppendTaskHistory(ctx, &db.TaskHistory{TaskID: task.ID, ToColumn: col, MovedAt: now})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("task_id", task.ID).Str("column", string(col)).Msg("task created")
	return task, nil
}

// GetTask retrieves a task by ID
func (s *Service) GetTask(ctx context.Context, id int64) (*db.Task, error) {
	return s.store.GetTask(ctx, id)
}

// ListTasks lists tasks ordered by ID
func (s *Service) ListTasks(ctx context.Context, filter db.TaskFilter) ([]*db.Task, error) {
	return s.SearchTasks(ctx, "", filter)
}

// SearchTasks returns tasks whose title or description contains query,
// ignoring case. An empty query matches every task.
func (s *Service) SearchTasks(ctx context.Context, query string, filter db.TaskFilter) ([]*db.Task, error) {
	if filter.Column != nil && !filter.Column.Valid() {
		return nil, fmt.Errorf("unknown column %q: %w", *filter.Column, db.ErrValidation)
	}
	tasks, err := s.store.SearchTasks(ctx, query, filter)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []*db.Task{}
	}
	return tasks, nil
}

// UpdateTask applies upd. Any successful update moves updated_at forward,
// and a column change is recorded in the task's history. Setting the
// current column is accepted here; only MoveTask rejects it.
func (s *Service) UpdateTask(ctx context.Context, id int64, upd TaskUpdate) (*db.Task, error) {
	if upd.Title != nil {
		title, err := requireText("title", *upd.Title)
		if err != nil {
			return nil, err
		}
		upd.Title = &title
	}
	if upd.Column != nil {
		col, err := db.ParseColumn(string(*upd.Column))
		if err != nil {
			return nil, err
		}
		upd.Column = &col
	}
	if upd.Unassign && upd.Assignee != nil {
		return nil, fmt.Errorf("cannot both assign and unassign a task: %w", db.ErrValidation)
	}

	return s.mutateTask(ctx, id, func(task *db.Task) error {
		if upd.Title != nil {
			task.Title = *upd.Title
		}
		if upd.Description != nil {
			task.Description = *upd.Description
		}
		if upd.Assignee != nil {
			task.Assignee = optionalText(upd.Assignee)
		}
		if upd.Unassign {
			task.Assignee = nil
		}
		if upd.Column != nil {
			task.Column = *upd.Column
		}
		if upd.Dependencies != nil {
			task.Dependencies = dedupe(*upd.Dependencies)
		}
		return nil
	})
}

// MoveTask moves a task to another column. Any column may follow any
// other; moving to the current column fails with ErrInvalidState.
func (s *Service) MoveTask(ctx context.Context, id int64, to db.Column) (*db.Task, error) {
	col, err := db.ParseColumn(string(to))
	if err != nil {
		return nil, err
	}
	return s.mutateTask(ctx, id, func(task *db.Task) error {
		if task.Column == col {
			return fmt.Errorf("task %d is already in column %s: %w", id, col, db.ErrInvalidState)
		}
		task.Column = col
		return nil
	})
}

// AssignTask sets the task's assignee
func (s *Service) AssignTask(ctx context.Context, id int64, assignee string) (*db.Task, error) {
	name, err := requireText("assignee", assignee)
	if err != nil {
		return nil, err
	}
	return s.UpdateTask(ctx, id, TaskUpdate{Assignee: &name})
}

// UnassignTask clears the task's assignee
func (s *Service) UnassignTask(ctx context.Context, id int64) (*db.Task, error) {
	return s.UpdateTask(ctx, id, TaskUpdate{Unassign: true})
}

// mutateTask loads a task, applies change, bumps updated_at and records a
// history entry if the column changed, all in one unit of work.
func (s *Service) mutateTask(ctx context.Context, id int64, change func(task *db.Task) error) (*db.Task, error) {
	var (
		updated *db.Task
		from    db.Column
	)
	err := s.store.RunAtomic(ctx, func(tx db.Store) error {
		task, err := tx.GetTask(ctx, id)
		if err != nil {
			return err
		}
		from = task.Column
		if err := change(task); err != nil {
			return err
		}
		task.UpdatedAt = s.touch(task.UpdatedAt)
		if err := tx.UpdateTask(ctx, task); err != nil {
			return err
		}
		if task.Column != from {
			entry := &db.TaskHistory{TaskID: id, FromColumn: &from, ToColumn: task.Column, MovedAt: task.UpdatedAt}
			if err := tx.AppendTaskHistory(ctx, entry); err != nil {
				return err
			}
		}
		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}

	if updated.Column != from {
		s.log.Info().Int64("task_id", id).Str("from", string(from)).Str("to", string(updated.Column)).Msg("task moved")
	} else {
		s.log.Debug().Int64("task_id", id).Msg("task updated")
	}
	return updated, nil
}

// DeleteTask deletes a task and its history
func (s *Service) DeleteTask(ctx context.Context, id int64) error {
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return err
	}
	s.log.Info().Int64("task_id", id).Msg("task deleted")
	return nil
}

// ColumnStats counts tasks in every column, in board order. Empty columns
// report zero.
func (s *Service) ColumnStats(ctx context.Context) ([]ColumnCount, error) {
	counts, err := s.store.CountTasksByColumn(ctx)
	if err != nil {
		return nil, err
	}
	stats := make([]ColumnCount, 0, len(db.Columns))
	for _, col := range db.Columns {
		stats = append(stats, ColumnCount{Column: col, Count: counts[col]})
	}
	return stats, nil
}

// TaskHistory returns a task's column transitions, oldest first
func (s *Service) TaskHistory(ctx context.Context, id int64) ([]*db.TaskHistory, error) {
	if _, err := s.store.GetTask(ctx, id); err != nil {
		return nil, err
	}
	history, err := s.store.ListTaskHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []*db.TaskHistory{}
	}
	return history, nil
}

// ColumnDurations sums how long a task has spent in each column it has
// visited, in board order. The current column counts up to now.
func (s *Service) ColumnDurations(ctx context.Context, id int64) ([]ColumnDuration, error) {
	history, err := s.TaskHistory(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	totals := make(map[db.Column]time.Duration)
	for i, entry := range history {
		end := now
		if i+1 < len(history) {
			end = history[i+1].MovedAt
		}
		if d := end.Sub(entry.MovedAt); d > 0 {
			totals[entry.ToColumn] += d
		} else if _, ok := totals[entry.ToColumn]; !ok {
			totals[entry.ToColumn] = 0
		}
	}

	durations := make([]ColumnDuration, 0, len(totals))
	for _, col := range db.Columns {
		if d, ok := totals[col]; ok {
			durations = append(durations, ColumnDuration{Column: col, Duration: d})
		}
	}
	return durations, nil
}

// Board groups tasks by column in board order. Every column is present.
func (s *Service) Board(ctx context.Context, filter db.TaskFilter) ([]BoardColumn, error) {
	filter.Column = nil
	tasks, err := s.SearchTasks(ctx, "", filter)
	if err != nil {
		return nil, err
	}
	board := make([]BoardColumn, len(db.Columns))
	for i, col := range db.Columns {
		board[i] = BoardColumn{Column: col, Tasks: []*db.Task{}}
	}
	for _, task := range tasks {
		if i := task.Column.Index(); i >= 0 {
			board[i].Tasks = append(board[i].Tasks, task)
		}
	}
	return board, nil
}

// dedupe drops repeated ids, keeping first occurrence order
func dedupe(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
