package office

import (
	"context"

	"github.com/kylemclaren/claude-office/internal/db"
)

// CoworkerInput describes a new coworker
type CoworkerInput struct {
	Name              string
	Agent             string
	Status            *string
	Description       string
	Philosophy        string
	VisualDescription string
}

// CascadeReport counts what a coworker delete removed
type CascadeReport struct {
	Coworker        string `json:"coworker"`
	Messages        int64  `json:"messages_deleted"`
	CronJobs        int64  `json:"cron_jobs_deleted"`
	CronRequests    int64  `json:"cron_requests_deleted"`
	TasksUnassigned int64  `json:"tasks_unassigned"`
}

// CreateCoworker registers a coworker. Names are unique.
func (s *Service) CreateCoworker(ctx context.Context, in CoworkerInput) (*db.Coworker, error) {
	name, err := requireText("name", in.Name)
	if err != nil {
		return nil, err
	}
	c := &db.Coworker{
		Name:              name,
		Agent:             in.Agent,
		Status:            optionalText(in.Status),
		Description:       in.Description,
		Philosophy:        in.Philosophy,
		VisualDescription: in.VisualDescription,
		CreatedAt:         s.timestamp(),
	}
	if err := s.store.CreateCoworker(ctx, c); err != nil {
		return nil, err
	}
	s.log.Info().Str("coworker", c.Name).Msg("coworker created")
	return c, nil
}

// GetCoworker retrieves a coworker by name
func (s *Service) GetCoworker(ctx context.Context, name string) (*db.Coworker, error) {
	return s.store.GetCoworker(ctx, name)
}

// ListCoworkers lists coworkers ordered by name
func (s *Service) ListCoworkers(ctx context.Context) ([]*db.Coworker, error) {
	coworkers, err := s.store.ListCoworkers(ctx)
	if err != nil {
		return nil, err
	}
	if coworkers == nil {
		coworkers = []*db.Coworker{}
	}
	return coworkers, nil
}

// SetCoworkerStatus sets the free-text status; nil clears it
func (s *Service) SetCoworkerStatus(ctx context.Context, name string, status *string) (*db.Coworker, error) {
	if err := s.store.UpdateCoworkerStatus(ctx, name, optionalText(status)); err != nil {
		return nil, err
	}
	return s.store.GetCoworker(ctx, name)
}

// DeleteCoworker removes a coworker and everything that refers to it in a
// single unit of work: messages, then cron jobs, then cron requests, then
// task assignments, then the coworker itself. Either every step applies or
// none does.
func (s *Service) DeleteCoworker(ctx context.Context, name string) (*CascadeReport, error) {
	report := &CascadeReport{Coworker: name}
	err := s.store.RunAtomic(ctx, func(tx db.Store) error {
		c, err := tx.GetCoworker(ctx, name)
		if err != nil {
			return err
		}
		if report.Messages, err = tx.DeleteMessagesForCoworker(ctx, name); err != nil {
			return err
		}
		if report.CronJobs, err = tx.DeleteCronJobsForCoworker(ctx, name); err != nil {
			return err
		}
		if report.CronRequests, err = tx.DeleteCronRequestsForCoworker(ctx, name); err != nil {
			return err
		}
		tasks, err := tx.ListTasks(ctx, db.TaskFilter{Assignee: &name})
		if err != nil {
			return err
		}
		for _, task := range tasks {
			task.Assignee = nil
			task.UpdatedAt = s.touch(task.UpdatedAt)
			if err := tx.UpdateTask(ctx, task); err != nil {
				return err
			}
		}
		report.TasksUnassigned = int64(len(tasks))
		return tx.DeleteCoworker(ctx, c.ID)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("coworker", name).
		Int64("messages", report.Messages).
		Int64("cron_jobs", report.CronJobs).
		Int64("cron_requests", report.CronRequests).
		Int64("tasks_unassigned", report.TasksUnassigned).
		Msg("coworker deleted")
	return report, nil
}
