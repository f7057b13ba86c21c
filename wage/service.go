/*
service.go - Application service over the engine and the store

PURPOSE:
  Glues persistence, rate resolution, the cached engine and the report cache
  together. Every policy or rate write goes through here so the derivation
  cache is invalidated in exactly one place.

WRITE PATHS AND INVALIDATION:
  SaveJob / DeleteJob / AddRate -> Engine.PoliciesChanged + report cache drop
  SaveSession / DeleteSession   -> report cache drop for the owner only
                                   (derivations are keyed by record content)

MONTHLY REPORT:
  1. Report cache hit                          -> return it
  2. Load jobs for the user
  3. Load sessions over LoadWindow(year, month) (month + whole ISO weeks)
  4. Resolve hourly rates per (job, date)
  5. Engine.MonthlyReport, then store in the report cache

SEE ALSO:
  - engine.go: cached calculators
  - reportcache/redis.go: ReportCache implementation
*/
package wage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/wage-engine/generic"
)

// ReportCache stores built monthly reports per user. A nil ReportCache
// disables caching.
type ReportCache interface {
	Get(ctx context.Context, userID string, year int, month time.Month) (MonthlyReport, bool, error)
	Put(ctx context.Context, report MonthlyReport) error
	Invalidate(ctx context.Context, userID string) error
}

// ReportObserver is told how long each uncached report build took.
type ReportObserver interface {
	ObserveReportBuild(d time.Duration)
}

// Service is safe for concurrent use when its Store is.
type Service struct {
	Store   Store
	Engine  *Engine
	Reports ReportCache    // optional
	Metrics ReportObserver // optional
	Logger  zerolog.Logger

	now func() time.Time
}

// NewService wires a service. reports and metrics may be nil.
func NewService(store Store, engine *Engine, reports ReportCache, metrics ReportObserver, logger zerolog.Logger) *Service {
	return &Service{
		Store:   store,
		Engine:  engine,
		Reports: reports,
		Metrics: metrics,
		Logger:  logger.With().Str("component", "wage_service").Logger(),
		now:     time.Now,
	}
}

func (s *Service) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

// =============================================================================
// REPORTS
// =============================================================================

// MonthlyReport returns the user's report for one calendar month.
func (s *Service) MonthlyReport(ctx context.Context, userID string, year int, month time.Month) (MonthlyReport, error) {
	if month < time.January || month > time.December {
		return MonthlyReport{}, fmt.Errorf("%w: month %d", generic.ErrInvalidPeriod, month)
	}
	if s.Reports != nil {
		cached, ok, err := s.Reports.Get(ctx, userID, year, month)
		if err != nil {
			s.Logger.Warn().Err(err).Str("user_id", userID).Msg("report cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	return s.RefreshMonthlyReport(ctx, userID, year, month)
}

// RefreshMonthlyReport rebuilds the report and overwrites the cached copy.
func (s *Service) RefreshMonthlyReport(ctx context.Context, userID string, year int, month time.Month) (MonthlyReport, error) {
	started := time.Now()
	report, err := s.BuildMonthlyReport(ctx, userID, year, month)
	if err != nil {
		return MonthlyReport{}, err
	}
	if s.Metrics != nil {
		s.Metrics.ObserveReportBuild(time.Since(started))
	}

	if s.Reports != nil {
		if err := s.Reports.Put(ctx, report); err != nil {
			s.Logger.Warn().Err(err).Str("user_id", userID).Msg("report cache write failed")
		}
	}
	return report, nil
}

// BuildMonthlyReport always rebuilds, bypassing the report cache.
func (s *Service) BuildMonthlyReport(ctx context.Context, userID string, year int, month time.Month) (MonthlyReport, error) {
	if month < time.January || month > time.December {
		return MonthlyReport{}, fmt.Errorf("%w: month %d", generic.ErrInvalidPeriod, month)
	}
	jobs, err := s.Store.ListJobs(ctx, userID)
	if err != nil {
		return MonthlyReport{}, fmt.Errorf("list jobs: %w", err)
	}
	window := LoadWindow(year, month)
	sessions, err := s.Store.ListSessions(ctx, SessionFilter{UserID: userID, From: window.Start, To: window.End})
	if err != nil {
		return MonthlyReport{}, fmt.Errorf("list sessions: %w", err)
	}
	rated, missing, err := ResolveRates(ctx, sessions, s.Store)
	if err != nil {
		return MonthlyReport{}, err
	}
	if len(missing) > 0 {
		s.Logger.Warn().Str("user_id", userID).Int("sessions", len(missing)).
			Msg("hourly sessions without an active rate priced at zero")
	}

	report := s.Engine.MonthlyReport(rated, jobs, year, month)
	report.UserID = userID
	report.GeneratedAt = s.clock().UTC()
	s.Logger.Debug().Str("user_id", userID).Int("year", year).Int("month", int(month)).
		Int("sessions", len(report.Lines)).Str("total_income", report.TotalIncome.String()).
		Msg("monthly report built")
	return report, nil
}

// WeeklyAllowance evaluates the ISO week containing day for one job.
func (s *Service) WeeklyAllowance(ctx context.Context, userID string, jobID JobID, day generic.TimePoint) (WeeklyAllowance, error) {
	job, err := s.ownedJob(ctx, userID, jobID)
	if err != nil {
		return WeeklyAllowance{}, err
	}
	week := generic.ISOWeekPeriod(day)
	sessions, err := s.Store.ListSessions(ctx, SessionFilter{UserID: userID, From: week.Start, To: week.End, JobID: &jobID})
	if err != nil {
		return WeeklyAllowance{}, fmt.Errorf("list sessions: %w", err)
	}
	rated, _, err := ResolveRates(ctx, sessions, s.Store)
	if err != nil {
		return WeeklyAllowance{}, err
	}
	return s.Engine.WeeklyAllowance(rated, job), nil
}

// =============================================================================
// SESSIONS
// =============================================================================

// PreviewSession prices a session without saving it. Unlike the calculators
// it rejects bad input: malformed clocks wrap generic.ErrInvalidClock and an
// hourly session with no active rate wraps generic.ErrRateNotFound.
func (s *Service) PreviewSession(ctx context.Context, session Session) (SessionWage, error) {
	if err := session.Validate(); err != nil {
		return SessionWage{}, err
	}
	job, err := s.ownedJob(ctx, session.UserID, session.JobID)
	if err != nil {
		return SessionWage{}, err
	}
	rate := decimal.Zero
	if session.IsHourly() && session.HasTimes() {
		hr, err := s.Store.ActiveRate(ctx, job.ID, session.Date)
		if err != nil {
			return SessionWage{}, fmt.Errorf("job %s on %s: %w", job.ID, session.Date, err)
		}
		rate = hr.Rate
	}
	return s.Engine.SessionWage(session, job, rate), nil
}

// SaveSession validates and persists a session, assigning an ID when empty.
// An existing ID must belong to the same user.
func (s *Service) SaveSession(ctx context.Context, session Session) (Session, error) {
	if err := session.Validate(); err != nil {
		return Session{}, err
	}
	if _, err := s.ownedJob(ctx, session.UserID, session.JobID); err != nil {
		return Session{}, err
	}
	if session.ID == "" {
		session.ID = SessionID(uuid.NewString())
	} else if existing, err := s.Store.GetSession(ctx, session.ID); err == nil {
		if existing.UserID != session.UserID {
			return Session{}, fmt.Errorf("%w: %s", generic.ErrSessionNotFound, session.ID)
		}
		if session.CreatedAt.IsZero() {
			session.CreatedAt = existing.CreatedAt
		}
	} else if !errors.Is(err, generic.ErrSessionNotFound) {
		return Session{}, err
	}
	if session.WageType == "" {
		session.WageType = WageHourly
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = s.clock().UTC()
	}
	if err := s.Store.SaveSession(ctx, session); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}
	s.dropReports(ctx, session.UserID)
	return session, nil
}

// DeleteSession removes a session owned by userID.
func (s *Service) DeleteSession(ctx context.Context, userID string, id SessionID) error {
	session, err := s.Store.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if session.UserID != userID {
		return fmt.Errorf("%w: %s", generic.ErrSessionNotFound, id)
	}
	if err := s.Store.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.dropReports(ctx, userID)
	return nil
}

// =============================================================================
// POLICIES
// =============================================================================

// SaveJob validates and persists a job, then emits the policies-changed
// signal.
func (s *Service) SaveJob(ctx context.Context, job Job) (Job, error) {
	if err := job.Validate(); err != nil {
		return Job{}, err
	}
	now := s.clock().UTC()
	if job.ID == "" {
		job.ID = JobID(uuid.NewString())
		job.CreatedAt = now
	} else if existing, err := s.Store.GetJob(ctx, job.ID); err == nil {
		if existing.UserID != job.UserID {
			return Job{}, fmt.Errorf("%w: %s", generic.ErrJobNotFound, job.ID)
		}
		job.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, generic.ErrJobNotFound) {
		return Job{}, err
	} else {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	if err := s.Store.SaveJob(ctx, job); err != nil {
		return Job{}, fmt.Errorf("save job: %w", err)
	}
	s.policiesChanged(ctx, job.UserID)
	s.Logger.Info().Str("job_id", string(job.ID)).Str("user_id", job.UserID).Msg("job saved")
	return job, nil
}

// DeleteJob removes a job owned by userID.
func (s *Service) DeleteJob(ctx context.Context, userID string, id JobID) error {
	if _, err := s.ownedJob(ctx, userID, id); err != nil {
		return err
	}
	if err := s.Store.DeleteJob(ctx, id); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	s.policiesChanged(ctx, userID)
	return nil
}

// AddRate starts a new hourly rate on effective, closing the open one.
func (s *Service) AddRate(ctx context.Context, userID string, jobID JobID, rate decimal.Decimal, effective generic.TimePoint) (HourlyRate, error) {
	if _, err := s.ownedJob(ctx, userID, jobID); err != nil {
		return HourlyRate{}, err
	}
	if effective.IsZero() {
		return HourlyRate{}, fmt.Errorf("%w: effective_date is required", generic.ErrInvalidRate)
	}
	current, err := s.Store.ListRates(ctx, jobID)
	if err != nil {
		return HourlyRate{}, fmt.Errorf("list rates: %w", err)
	}
	next := HourlyRate{ID: RateID(uuid.NewString()), JobID: jobID, Rate: rate, EffectiveDate: effective}
	updated, err := InsertRate(current, next)
	if err != nil {
		return HourlyRate{}, err
	}
	if err := s.Store.ReplaceRates(ctx, jobID, updated); err != nil {
		return HourlyRate{}, fmt.Errorf("save rates: %w", err)
	}
	s.policiesChanged(ctx, userID)
	return next, nil
}

// Rates lists a job's rate history.
func (s *Service) Rates(ctx context.Context, userID string, jobID JobID) ([]HourlyRate, error) {
	if _, err := s.ownedJob(ctx, userID, jobID); err != nil {
		return nil, err
	}
	return s.Store.ListRates(ctx, jobID)
}

// PoliciesChanged drops every derived value for every user. Use it after
// policies are edited outside the service.
func (s *Service) PoliciesChanged(ctx context.Context) error {
	s.Engine.PoliciesChanged()
	if s.Reports == nil {
		return nil
	}
	users, err := s.Store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	for _, u := range users {
		s.dropReports(ctx, u)
	}
	return nil
}

// Job returns a job owned by userID.
func (s *Service) Job(ctx context.Context, userID string, id JobID) (Job, error) {
	return s.ownedJob(ctx, userID, id)
}

func (s *Service) ownedJob(ctx context.Context, userID string, id JobID) (Job, error) {
	job, err := s.Store.GetJob(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if job.UserID != userID {
		return Job{}, fmt.Errorf("%w: %s", generic.ErrJobNotFound, id)
	}
	return job, nil
}

func (s *Service) policiesChanged(ctx context.Context, userID string) {
	s.Engine.PoliciesChanged()
	s.dropReports(ctx, userID)
}

func (s *Service) dropReports(ctx context.Context, userID string) {
	if s.Reports == nil {
		return
	}
	if err := s.Reports.Invalidate(ctx, userID); err != nil {
		s.Logger.Warn().Err(err).Str("user_id", userID).Msg("report cache invalidation failed")
	}
}
