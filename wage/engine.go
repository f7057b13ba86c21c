package wage

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ENGINE - Cached calculators
// =============================================================================

// Engine exposes the calculators through a shared derivation cache. Results
// are identical to the uncached functions; only repeated work is skipped.
type Engine struct {
	cache  *Cache
	logger zerolog.Logger
}

// NewEngine builds an engine with a fresh cache. observer may be nil.
func NewEngine(logger zerolog.Logger, observer CacheObserver) *Engine {
	return &Engine{
		cache:  NewCache(observer),
		logger: logger.With().Str("component", "wage_engine").Logger(),
	}
}

func (e *Engine) BreakTime(worked time.Duration, policy BreakPolicy) BreakTime {
	return e.cache.BreakTime(worked, policy)
}

func (e *Engine) WorkAndBreakTime(start, end string, job Job) WorkTime {
	return calculateWorkAndBreakTime(start, end, job, e.cache.BreakTime)
}

func (e *Engine) SessionWage(s Session, job Job, hourlyRate decimal.Decimal) SessionWage {
	return calculateSessionWage(s, job, hourlyRate, e.cache.BreakTime)
}

func (e *Engine) WeeklyAllowance(records []RatedSession, job Job) WeeklyAllowance {
	return e.cache.WeeklyAllowance(records, job)
}

func (e *Engine) MonthlyWeeklyAllowance(records []RatedSession, jobs []Job, year int, month time.Month) MonthlyAllowance {
	return calculateMonthlyWeeklyAllowance(records, jobs, year, month, e.cache.WeeklyAllowance)
}

func (e *Engine) MonthlyReport(records []RatedSession, jobs []Job, year int, month time.Month) MonthlyReport {
	return buildMonthlyReport(records, jobs, year, month, e.cache.BreakTime, e.cache.WeeklyAllowance)
}

// PoliciesChanged is the single invalidation signal. Call it after any job
// policy or hourly rate is created, edited or deleted.
func (e *Engine) PoliciesChanged() {
	breaks, weekly := e.cache.Len()
	e.cache.Invalidate()
	e.logger.Debug().Int("break_entries", breaks).Int("weekly_entries", weekly).Msg("derivation cache invalidated")
}

// CacheLen reports cached entry counts.
func (e *Engine) CacheLen() (breaks, weekly int) {
	return e.cache.Len()
}
