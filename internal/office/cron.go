package office

import (
	"context"
	"fmt"
	"time"

	"github.com/kylemclaren/claude-office/internal/db"
	"github.com/kylemclaren/claude-office/internal/schedule"
)

// CronJobInput carries the fields shared by cron jobs and cron requests.
// A nil Timezone means UTC.
type CronJobInput struct {
	Name     string
	Coworker string
	Schedule string
	Timezone *string
	Message  string
}

// normalize trims the input and checks the schedule and timezone
func (in CronJobInput) normalize() (CronJobInput, error) {
	var err error
	if in.Name, err = requireText("name", in.Name); err != nil {
		return in, err
	}
	if in.Coworker, err = requireText("coworker", in.Coworker); err != nil {
		return in, err
	}
	if in.Message, err = requireText("message", in.Message); err != nil {
		return in, err
	}
	in.Timezone = optionalText(in.Timezone)
	if err := schedule.Validate(in.Schedule, deref(in.Timezone)); err != nil {
		return in, fmt.Errorf("%w: %w", db.ErrValidation, err)
	}
	in.Schedule = normalizeSchedule(in.Schedule)
	return in, nil
}

// SkippedJob is an enabled job whose stored schedule could not be evaluated
type SkippedJob struct {
	Job    *db.CronJob `json:"job"`
	Reason string      `json:"reason"`
}

// DueReport lists the jobs that fire during a given minute
type DueReport struct {
	At      time.Time     `json:"at"`
	Due     []*db.CronJob `json:"due"`
	Skipped []SkippedJob  `json:"skipped,omitempty"`
}

// CreateCronJob creates an enabled job for an existing coworker
func (s *Service) CreateCronJob(ctx context.Context, in CronJobInput) (*db.CronJob, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}

	job := &db.CronJob{
		Name:      in.Name,
		Coworker:  in.Coworker,
		Schedule:  in.Schedule,
		Timezone:  in.Timezone,
		Message:   in.Message,
		Enabled:   true,
		CreatedAt: s.timestamp(),
	}
	err = s.store.RunAtomic(ctx, func(tx db.Store) error {
		if err := requireCoworker(ctx, tx, in.Coworker); err != nil {
			return err
		}
		exists, err := tx.CronJobExists(ctx, in.Name, in.Coworker)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("cron job %q for %q: %w", in.Name, in.Coworker, db.ErrAlreadyExists)
		}
		return tx.CreateCronJob(ctx, job)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("job_id", job.ID).Str("coworker", job.Coworker).Str("schedule", job.Schedule).Msg("cron job created")
	return job, nil
}

// GetCronJob retrieves a cron job by ID
func (s *Service) GetCronJob(ctx context.Context, id int64) (*db.CronJob, error) {
	return s.store.GetCronJob(ctx, id)
}

// ListCronJobs lists every job, or only the coworker's when coworker is set
func (s *Service) ListCronJobs(ctx context.Context, coworker *string) ([]*db.CronJob, error) {
	if coworker != nil {
		return s.store.ListCronJobsForCoworker(ctx, *coworker)
	}
	return s.store.ListCronJobs(ctx)
}

// DeleteCronJob deletes a job and its run history
func (s *Service) DeleteCronJob(ctx context.Context, id int64) error {
	if err := s.store.DeleteCronJob(ctx, id); err != nil {
		return err
	}
	s.log.Info().Int64("job_id", id).Msg("cron job deleted")
	return nil
}

// EnableCronJob enables a job. Enabling an enabled job succeeds.
func (s *Service) EnableCronJob(ctx context.Context, id int64) error {
	return s.setEnabled(ctx, id, true)
}

// DisableCronJob disables a job. Disabling a disabled job succeeds.
func (s *Service) DisableCronJob(ctx context.Context, id int64) error {
	return s.setEnabled(ctx, id, false)
}

func (s *Service) setEnabled(ctx context.Context, id int64, enabled bool) error {
	if err := s.store.SetCronJobEnabled(ctx, id, enabled); err != nil {
		return err
	}
	s.log.Debug().Int64("job_id", id).Bool("enabled", enabled).Msg("cron job toggled")
	return nil
}

// CheckCronJob reports whether the job should run during the minute of ref.
// A zero ref means now. Disabled jobs never match and their schedule is not
// evaluated.
func (s *Service) CheckCronJob(ctx context.Context, id int64, ref time.Time) (bool, error) {
	job, err := s.store.GetCronJob(ctx, id)
	if err != nil {
		return false, err
	}
	if !job.Enabled {
		return false, nil
	}
	if ref.IsZero() {
		ref = s.now()
	}
	return matchJob(job, ref)
}

// NextCronRun returns the first time after the given instant that the job
// fires. A zero after means now; a zero result means it never fires again.
func (s *Service) NextCronRun(ctx context.Context, id int64, after time.Time) (time.Time, error) {
	job, err := s.store.GetCronJob(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	if after.IsZero() {
		after = s.now()
	}
	sched, err := schedule.Parse(job.Schedule)
	if err != nil {
		return time.Time{}, fmt.Errorf("cron job %d: %w", id, err)
	}
	loc, err := schedule.LoadLocation(deref(job.Timezone))
	if err != nil {
		return time.Time{}, fmt.Errorf("cron job %d: %w", id, err)
	}
	return sched.Next(after, loc), nil
}

// DueCronJobs returns every enabled job whose schedule fires during the
// minute of ref. Jobs whose schedule cannot be evaluated are reported as
// skipped rather than failing the whole check.
func (s *Service) DueCronJobs(ctx context.Context, ref time.Time) (*DueReport, error) {
	if ref.IsZero() {
		ref = s.now()
	}
	jobs, err := s.store.ListCronJobs(ctx)
	if err != nil {
		return nil, err
	}

	report := &DueReport{At: ref.UTC().Truncate(time.Minute), Due: []*db.CronJob{}}
	for _, job := range jobs {
		if !job.Enabled {
			continue
		}
		ok, err := matchJob(job, ref)
		if err != nil {
			s.log.Warn().Err(err).Int64("job_id", job.ID).Msg("skipping cron job with invalid schedule")
			report.Skipped = append(report.Skipped, SkippedJob{Job: job, Reason: err.Error()})
			continue
		}
		if ok {
			report.Due = append(report.Due, job)
		}
	}
	return report, nil
}

// GetCronHistory returns up to limit runs of a job, most recent first.
// A job without runs yields an empty list.
func (s *Service) GetCronHistory(ctx context.Context, id int64, limit int) ([]*db.CronHistory, error) {
	history, err := s.store.ListCronHistory(ctx, id, limit)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []*db.CronHistory{}
	}
	return history, nil
}

// RecordCronRun appends a history entry and sets the job's last run in one
// unit of work. A zero executedAt means now.
func (s *Service) RecordCronRun(ctx context.Context, id int64, executedAt time.Time, success bool, errMsg *string) (*db.CronHistory, error) {
	if executedAt.IsZero() {
		executedAt = s.timestamp()
	}
	entry := &db.CronHistory{
		CronJobID:    id,
		ExecutedAt:   executedAt.UTC().Truncate(time.Microsecond),
		Success:      success,
		ErrorMessage: optionalText(errMsg),
	}
	err := s.store.RunAtomic(ctx, func(tx db.Store) error {
		if _, err := tx.GetCronJob(ctx, id); err != nil {
			return err
		}
		if err := tx.AppendCronHistory(ctx, entry); err != nil {
			return err
		}
		return tx.SetCronJobLastRun(ctx, id, entry.ExecutedAt)
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug().Int64("job_id", id).Bool("success", success).Time("executed_at", entry.ExecutedAt).Msg("cron run recorded")
	return entry, nil
}

func matchJob(job *db.CronJob, ref time.Time) (bool, error) {
	ok, err := schedule.Matches(job.Schedule, ref, deref(job.Timezone))
	if err != nil {
		return false, fmt.Errorf("cron job %d (%q): %w", job.ID, job.Schedule, err)
	}
	return ok, nil
}

func requireCoworker(ctx context.Context, store db.Store, name string) error {
	exists, err := store.CoworkerExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("coworker %q: %w", name, db.ErrNotFound)
	}
	return nil
}

func normalizeSchedule(expr string) string {
	sched, err := schedule.Parse(expr)
	if err != nil {
		return expr
	}
	return sched.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
