// Package schedule decides whether a standard five-field cron expression
// fires during a given calendar minute.
//
// Expressions are evaluated in the job's timezone. A job without a timezone
// is evaluated in UTC, both when it is validated at creation and when it is
// checked, so the result never depends on the host's local zone.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // timezone checks must not depend on the host's zoneinfo

	"github.com/robfig/cron/v3"
)

var (
	// ErrInvalidSchedule is matched by every InvalidScheduleError.
	ErrInvalidSchedule = errors.New("invalid cron schedule")
	// ErrInvalidTimezone is returned for timezone names the tz database does not know.
	ErrInvalidTimezone = errors.New("invalid timezone")
)

// InvalidScheduleError reports an expression that is not a valid
// five-field cron expression.
type InvalidScheduleError struct {
	Expr string
	Err  error
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("invalid cron schedule %q: %v", e.Expr, e.Err)
}

func (e *InvalidScheduleError) Unwrap() []error {
	return []error{ErrInvalidSchedule, e.Err}
}

// minute, hour, day-of-month, month, day-of-week; no seconds, no descriptors
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Schedule is a parsed cron expression.
type Schedule struct {
	expr string
	spec cron.Schedule
}

// Parse parses a standard five-field cron expression.
func Parse(expr string) (*Schedule, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return nil, &InvalidScheduleError{Expr: expr, Err: errors.New("empty expression")}
	}
	// robfig/cron accepts an inline TZ= prefix that would override the
	// job's timezone field.
	if strings.HasPrefix(trimmed, "TZ=") || strings.HasPrefix(trimmed, "CRON_TZ=") {
		return nil, &InvalidScheduleError{Expr: expr, Err: errors.New("timezone prefixes are not allowed, use the timezone field")}
	}
	spec, err := parser.Parse(trimmed)
	if err != nil {
		return nil, &InvalidScheduleError{Expr: expr, Err: err}
	}
	return &Schedule{expr: trimmed, spec: spec}, nil
}

// String returns the normalized expression.
func (s *Schedule) String() string {
	return s.expr
}

// Matches reports whether the schedule fires during the calendar minute
// containing ref, as seen in loc.
func (s *Schedule) Matches(ref time.Time, loc *time.Location) bool {
	minute := truncateToMinute(ref, loc)
	// Next is strictly-after, so step back one second from the minute start.
	return s.spec.Next(minute.Add(-time.Second)).Equal(minute)
}

// Next returns the first fire time strictly after the given instant, in loc.
// A zero time means the expression never fires again.
func (s *Schedule) Next(after time.Time, loc *time.Location) time.Time {
	return s.spec.Next(after.In(loc))
}

// LoadLocation resolves a timezone name. The empty name resolves to UTC;
// "Local" is rejected because it names the host's zone.
func LoadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.UTC, nil
	}
	if tz == "Local" {
		return nil, fmt.Errorf("%w %q: the host's local zone is not allowed", ErrInvalidTimezone, tz)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidTimezone, tz, err)
	}
	return loc, nil
}

// Matches parses expr and reports whether it fires during the minute of ref
// in the named timezone (UTC when tz is empty).
func Matches(expr string, ref time.Time, tz string) (bool, error) {
	sched, err := Parse(expr)
	if err != nil {
		return false, err
	}
	loc, err := LoadLocation(tz)
	if err != nil {
		return false, err
	}
	return sched.Matches(ref, loc), nil
}

// Validate checks both the expression and the timezone.
func Validate(expr, tz string) error {
	if _, err := Parse(expr); err != nil {
		return err
	}
	_, err := LoadLocation(tz)
	return err
}

// truncateToMinute zeroes seconds on the wall clock of loc rather than on
// the absolute instant, so zones with sub-minute offsets still line up.
func truncateToMinute(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), local.Minute(), 0, 0, loc)
}
