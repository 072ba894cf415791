// Package office holds the cron, cron request, task board, coworker and
// message services. Every service method depends only on db.Store, so the
// SQL backends and the in-memory store are interchangeable.
package office

import (
	"fmt"
	"strings"
	"time"

	"github.com/kylemclaren/claude-office/internal/db"
	"github.com/rs/zerolog"
)

// Service implements the office operations over a Store
type Service struct {
	store db.Store
	now   func() time.Time
	log   zerolog.Logger
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the logger used for state transitions
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

// NewService creates a Service. The caller keeps ownership of store.
func NewService(store db.Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		now:   time.Now,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying store
func (s *Service) Store() db.Store {
	return s.store
}

// timestamp is the current time at the precision every backend can hold
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// touch returns an updated_at value strictly later than prev
func (s *Service) touch(prev time.Time) time.Time {
	now := s.timestamp()
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}

func requireText(field, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%s is required: %w", field, db.ErrValidation)
	}
	return trimmed, nil
}

// optionalText normalizes an optional string: nil and blank both mean absent
func optionalText(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
