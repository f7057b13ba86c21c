/*
errors.go - Centralized error types for the wage engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The calculators themselves never fail: malformed input degrades to a zero
  or ineligible result. These errors are raised by the validators and the
  service layer so the host can block a save and tell the user why.

ERROR CATEGORIES:
  1. Input errors - unparseable clock strings, malformed periods
  2. Policy errors - break-time tables failing structural validation
  3. Rate errors - missing or overlapping hourly-rate records
  4. Lookup errors - referenced job/session does not exist

USAGE:
    if errors.Is(err, generic.ErrRateNotFound) {
        // block the save, ask the user to register a rate first
    }

SEE ALSO:
  - wage/job.go: policy validation
  - wage/rates.go: rate timeline validation
  - api/handlers.go: maps these to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidClock is returned when a start/end time is not "HH:mm".
	ErrInvalidClock = errors.New("invalid clock time")

	// ErrInvalidPolicy is returned when a job's break-time table or weekly
	// allowance settings fail structural validation.
	ErrInvalidPolicy = errors.New("invalid job policy")

	// ErrInvalidSession is returned when a work session is missing required fields.
	ErrInvalidSession = errors.New("invalid work session")

	// ErrRateNotFound is returned when no hourly rate is active for a job on a date.
	ErrRateNotFound = errors.New("no active hourly rate")

	// ErrInvalidRate is returned for a zero or negative hourly rate.
	ErrInvalidRate = errors.New("invalid hourly rate")

	// ErrOverlappingRate is returned when a new rate record would overlap history.
	ErrOverlappingRate = errors.New("hourly rate overlaps existing record")

	// ErrJobNotFound is returned when a referenced job doesn't exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrSessionNotFound is returned when a referenced work session doesn't exist.
	ErrSessionNotFound = errors.New("work session not found")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// PolicyError points at the offending row of a break-time table.
// Row is -1 when the problem is not tied to a single row.
type PolicyError struct {
	Row    int
	Field  string
	Reason string
}

func (e *PolicyError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("invalid job policy: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid job policy: break range %d: %s: %s", e.Row, e.Field, e.Reason)
}

func (e *PolicyError) Unwrap() error {
	return ErrInvalidPolicy
}

// RateOverlapError names the existing record a new rate collides with.
type RateOverlapError struct {
	JobID         string
	EffectiveDate TimePoint
	ConflictsWith string
}

func (e *RateOverlapError) Error() string {
	return fmt.Sprintf("hourly rate for job %s effective %s overlaps record %s",
		e.JobID, e.EffectiveDate, e.ConflictsWith)
}

func (e *RateOverlapError) Unwrap() error {
	return ErrOverlappingRate
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidClock) ||
		errors.Is(err, ErrInvalidPolicy) ||
		errors.Is(err, ErrInvalidSession) ||
		errors.Is(err, ErrRateNotFound) ||
		errors.Is(err, ErrInvalidRate) ||
		errors.Is(err, ErrOverlappingRate) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrJobNotFound) ||
		errors.Is(err, ErrSessionNotFound)
}
