package office

import (
	"context"
	"errors"
	"fmt"

	"github.com/kylemclaren/claude-office/internal/db"
)

// ReviewInput carries the reviewer's sign-off
type ReviewInput struct {
	Reviewer string
	Notes    *string
}

// CreateCronRequest files a pending request for an existing coworker.
// Requests are proposals, so several may share a name, and a name already
// used by a job is accepted.
func (s *Service) CreateCronRequest(ctx context.Context, in CronJobInput) (*db.CronRequest, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	req := &db.CronRequest{
		Name:        in.Name,
		Coworker:    in.Coworker,
		Schedule:    in.Schedule,
		Timezone:    in.Timezone,
		Message:     in.Message,
		Status:      db.CronRequestPending,
		RequestedAt: s.timestamp(),
	}
	err = s.store.RunAtomic(ctx, func(tx db.Store) error {
		if err := requireCoworker(ctx, tx, in.Coworker); err != nil {
			return err
		}
		return tx.CreateCronRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("request_id", req.ID).Str("coworker", req.Coworker).Str("name", req.Name).Msg("cron request filed")
	return req, nil
}

// GetCronRequest retrieves a cron request by ID
func (s *Service) GetCronRequest(ctx context.Context, id int64) (*db.CronRequest, error) {
	return s.store.GetCronRequest(ctx, id)
}

// ListCronRequests lists requests newest first; filters combine with AND
func (s *Service) ListCronRequests(ctx context.Context, filter db.CronRequestFilter) ([]*db.CronRequest, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, fmt.Errorf("unknown cron request status %q: %w", *filter.Status, db.ErrValidation)
	}
	return s.store.ListCronRequests(ctx, filter)
}

// ApproveCronRequest moves a pending request to approved. It does not
// create a job; see PromoteCronRequest.
func (s *Service) ApproveCronRequest(ctx context.Context, id int64, review ReviewInput) (*db.CronRequest, error) {
	return s.review(ctx, id, db.CronRequestApproved, review)
}

// RejectCronRequest moves a pending request to rejected
func (s *Service) RejectCronRequest(ctx context.Context, id int64, review ReviewInput) (*db.CronRequest, error) {
	return s.review(ctx, id, db.CronRequestRejected, review)
}

func (s *Service) review(ctx context.Context, id int64, status db.CronRequestStatus, review ReviewInput) (*db.CronRequest, error) {
	verb := "approve"
	if status == db.CronRequestRejected {
		verb = "reject"
	}
	reviewer, err := requireText("reviewer", review.Reviewer)
	if err != nil {
		return nil, err
	}

	var reviewed *db.CronRequest
	err = s.store.RunAtomic(ctx, func(tx db.Store) error {
		current, err := tx.GetCronRequest(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != db.CronRequestPending {
			return fmt.Errorf("cannot %s cron request %d: status is already %s: %w", verb, id, current.Status, db.ErrInvalidState)
		}
		// conditional on pending; a racing reviewer gets ErrInvalidState
		err = tx.UpdateCronRequestStatus(ctx, id, status, reviewer, optionalText(review.Notes), s.timestamp())
		if err != nil {
			if errors.Is(err, db.ErrInvalidState) {
				return fmt.Errorf("cannot %s %w", verb, err)
			}
			return err
		}
		reviewed, err = tx.GetCronRequest(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("request_id", id).Str("from", string(db.CronRequestPending)).Str("to", string(status)).Str("reviewer", reviewer).Msg("cron request reviewed")
	return reviewed, nil
}

// DeleteCronRequest deletes a request in any status
func (s *Service) DeleteCronRequest(ctx context.Context, id int64) error {
	if err := s.store.DeleteCronRequest(ctx, id); err != nil {
		return err
	}
	s.log.Info().Int64("request_id", id).Msg("cron request deleted")
	return nil
}

// PromoteCronRequest creates a cron job from an approved request. Pending
// and rejected requests fail with ErrInvalidState.
func (s *Service) PromoteCronRequest(ctx context.Context, id int64) (*db.CronJob, error) {
	req, err := s.store.GetCronRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != db.CronRequestApproved {
		return nil, fmt.Errorf("cannot promote cron request %d: status is %s, want approved: %w", id, req.Status, db.ErrInvalidState)
	}

	job, err := s.CreateCronJob(ctx, CronJobInput{
		Name:     req.Name,
		Coworker: req.Coworker,
		Schedule: req.Schedule,
		Timezone: req.Timezone,
		Message:  req.Message,
	})
	if err != nil {
		return nil, fmt.Errorf("promote cron request %d: %w", id, err)
	}
	return job, nil
}
