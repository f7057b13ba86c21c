package wage

import (
	"context"

	"github.com/warp/wage-engine/generic"
)

// =============================================================================
// STORE - Persistence interfaces
// =============================================================================
//
// Implementations:
//   - store/sqlite: production SQLite
//   - store/memory: in-memory for tests and the CLI

// JobStore persists jobs and their policies.
type JobStore interface {
	SaveJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, id JobID) (Job, error) // generic.ErrJobNotFound
	ListJobs(ctx context.Context, userID string) ([]Job, error)
	DeleteJob(ctx context.Context, id JobID) error

	// ListUsers returns every user owning at least one job.
	ListUsers(ctx context.Context) ([]string, error)
}

// RateStore persists hourly rate histories.
type RateStore interface {
	RateSource

	// ReplaceRates swaps a job's whole history in one write.
	ReplaceRates(ctx context.Context, jobID JobID, rates []HourlyRate) error
	ListRates(ctx context.Context, jobID JobID) ([]HourlyRate, error)
}

// SessionFilter narrows ListSessions. Zero dates are unbounded.
type SessionFilter struct {
	UserID string
	From   generic.TimePoint
	To     generic.TimePoint
	JobID  *JobID
}

// Matches applies the filter in memory.
func (f SessionFilter) Matches(s Session) bool {
	if f.UserID != "" && s.UserID != f.UserID {
		return false
	}
	if f.JobID != nil && s.JobID != *f.JobID {
		return false
	}
	if !f.From.IsZero() && s.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && s.Date.After(f.To) {
		return false
	}
	return true
}

// SessionStore persists work sessions.
type SessionStore interface {
	SaveSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id SessionID) (Session, error) // generic.ErrSessionNotFound
	DeleteSession(ctx context.Context, id SessionID) error
	ListSessions(ctx context.Context, f SessionFilter) ([]Session, error) // ordered by date, start
}

// Store is everything the service needs.
type Store interface {
	JobStore
	RateStore
	SessionStore
}
