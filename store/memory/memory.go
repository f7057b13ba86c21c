// Package memory provides an in-memory wage.Store for tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/wage-engine/generic"
	"github.com/warp/wage-engine/wage"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	jobs     map[wage.JobID]wage.Job
	rates    map[wage.JobID][]wage.HourlyRate
	sessions []wage.Session // kept ordered by (date, start)
}

var _ wage.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		jobs:  make(map[wage.JobID]wage.Job),
		rates: make(map[wage.JobID][]wage.HourlyRate),
	}
}

// =============================================================================
// JOBS
// =============================================================================

func (m *Memory) SaveJob(_ context.Context, job wage.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

func (m *Memory) GetJob(_ context.Context, id wage.JobID) (wage.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return wage.Job{}, fmt.Errorf("%w: %s", generic.ErrJobNotFound, id)
	}
	return job, nil
}

func (m *Memory) ListJobs(_ context.Context, userID string) ([]wage.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []wage.Job
	for _, j := range m.jobs {
		if j.UserID == userID {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].CreatedAt.Before(out[k].CreatedAt)
		}
		return out[i].ID < out[k].ID
	})
	return out, nil
}

// DeleteJob removes the job together with its rates and sessions.
func (m *Memory) DeleteJob(_ context.Context, id wage.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return fmt.Errorf("%w: %s", generic.ErrJobNotFound, id)
	}
	delete(m.jobs, id)
	delete(m.rates, id)
	kept := m.sessions[:0]
	for _, s := range m.sessions {
		if s.JobID != id {
			kept = append(kept, s)
		}
	}
	m.sessions = kept
	return nil
}

func (m *Memory) ListUsers(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, j := range m.jobs {
		if _, ok := seen[j.UserID]; ok {
			continue
		}
		seen[j.UserID] = struct{}{}
		out = append(out, j.UserID)
	}
	sort.Strings(out)
	return out, nil
}

// =============================================================================
// RATES
// =============================================================================

func (m *Memory) ActiveRate(_ context.Context, jobID wage.JobID, date generic.TimePoint) (wage.HourlyRate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := wage.ActiveRate(m.rates[jobID], date); ok {
		return r, nil
	}
	return wage.HourlyRate{}, fmt.Errorf("%w: job %s on %s", generic.ErrRateNotFound, jobID, date)
}

func (m *Memory) ReplaceRates(_ context.Context, jobID wage.JobID, rates []wage.HourlyRate) error {
	if err := wage.ValidateTimeline(rates); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates[jobID] = append([]wage.HourlyRate(nil), rates...)
	return nil
}

func (m *Memory) ListRates(_ context.Context, jobID wage.JobID) ([]wage.HourlyRate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]wage.HourlyRate(nil), m.rates[jobID]...)
	sort.Slice(out, func(i, k int) bool { return out[i].EffectiveDate.Before(out[k].EffectiveDate) })
	return out, nil
}

// =============================================================================
// SESSIONS
// =============================================================================

// SaveSession inserts or replaces by ID.
func (m *Memory) SaveSession(_ context.Context, s wage.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(s.ID)

	// Binary search for insertion point keeps the slice ordered
	i := sort.Search(len(m.sessions), func(i int) bool {
		return sessionLess(s, m.sessions[i])
	})
	m.sessions = append(m.sessions, wage.Session{})
	copy(m.sessions[i+1:], m.sessions[i:])
	m.sessions[i] = s
	return nil
}

func (m *Memory) GetSession(_ context.Context, id wage.SessionID) (wage.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return wage.Session{}, fmt.Errorf("%w: %s", generic.ErrSessionNotFound, id)
}

func (m *Memory) DeleteSession(_ context.Context, id wage.SessionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.removeLocked(id) {
		return fmt.Errorf("%w: %s", generic.ErrSessionNotFound, id)
	}
	return nil
}

func (m *Memory) ListSessions(_ context.Context, f wage.SessionFilter) ([]wage.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []wage.Session
	for _, s := range m.sessions {
		if f.Matches(s) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) removeLocked(id wage.SessionID) bool {
	for i, s := range m.sessions {
		if s.ID == id {
			m.sessions = append(m.sessions[:i], m.sessions[i+1:]...)
			return true
		}
	}
	return false
}

func sessionLess(a, b wage.Session) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	return a.StartTime < b.StartTime
}
