package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/wage-engine/generic"
	"github.com/warp/wage-engine/store/sqlite"
	"github.com/warp/wage-engine/wage"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedJob(t *testing.T, store *sqlite.Store, id, user string) wage.Job {
	t.Helper()
	job := wage.StatutoryJob(wage.JobID(id), "Cafe "+id)
	job.UserID = user
	job.Color = "#336699"
	require.NoError(t, store.SaveJob(context.Background(), job))
	return job
}

func session(id, jobID, day, start, end string) wage.Session {
	return wage.Session{
		ID:        wage.SessionID(id),
		UserID:    "user-1",
		JobID:     wage.JobID(jobID),
		Date:      generic.MustParseDate(day),
		StartTime: start,
		EndTime:   end,
		WageType:  wage.WageHourly,
	}
}

// =============================================================================
// JOBS
// =============================================================================

func TestStore_JobRoundTrip(t *testing.T) {
	// GIVEN: A statutory job saved
	store := newTestStore(t)
	ctx := context.Background()
	job := seedJob(t, store, "job-1", "user-1")

	// WHEN
	got, err := store.GetJob(ctx, "job-1")

	// THEN: Policy survives the JSON column
	require.NoError(t, err)
	assert.Equal(t, job.PolicyFingerprint(), got.PolicyFingerprint())
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "#336699", got.Color)
	assert.True(t, got.HourlyRateEligible)
}

func TestStore_GetJobNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetJob(context.Background(), "missing")

	assert.ErrorIs(t, err, generic.ErrJobNotFound)
}

func TestStore_ListJobsAndUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedJob(t, store, "a", "user-1")
	seedJob(t, store, "b", "user-1")
	seedJob(t, store, "c", "user-2")

	jobs, err := store.ListJobs(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"user-1", "user-2"}, users)
}

func TestStore_DeleteJobCascades(t *testing.T) {
	// GIVEN: A job with a rate and a session
	store := newTestStore(t)
	ctx := context.Background()
	seedJob(t, store, "job-1", "user-1")
	require.NoError(t, store.ReplaceRates(ctx, "job-1", []wage.HourlyRate{
		{ID: "r1", JobID: "job-1", Rate: decimal.NewFromInt(10000), EffectiveDate: generic.MustParseDate("2025-01-01")},
	}))
	require.NoError(t, store.SaveSession(ctx, session("s1", "job-1", "2025-03-03", "09:00", "14:00")))

	// WHEN
	require.NoError(t, store.DeleteJob(ctx, "job-1"))

	// THEN
	sessions, err := store.ListSessions(ctx, wage.SessionFilter{UserID: "user-1"})
	require.NoError(t, err)
	assert.Empty(t, sessions)
	rates, err := store.ListRates(ctx, "job-1")
	require.NoError(t, err)
	assert.Empty(t, rates)
	assert.ErrorIs(t, store.DeleteJob(ctx, "job-1"), generic.ErrJobNotFound)
}

// =============================================================================
// RATES
// =============================================================================

func TestStore_ActiveRateFollowsTimeline(t *testing.T) {
	// GIVEN: 10000 from January, 11000 from April (via InsertRate)
	store := newTestStore(t)
	ctx := context.Background()
	seedJob(t, store, "job-1", "user-1")

	rates, err := wage.InsertRate(nil, wage.HourlyRate{ID: "r1", JobID: "job-1", Rate: decimal.NewFromInt(10000), EffectiveDate: generic.MustParseDate("2025-01-01")})
	require.NoError(t, err)
	rates, err = wage.InsertRate(rates, wage.HourlyRate{ID: "r2", JobID: "job-1", Rate: decimal.NewFromInt(11000), EffectiveDate: generic.MustParseDate("2025-04-01")})
	require.NoError(t, err)
	require.NoError(t, store.ReplaceRates(ctx, "job-1", rates))

	// WHEN / THEN
	r, err := store.ActiveRate(ctx, "job-1", generic.MustParseDate("2025-03-31"))
	require.NoError(t, err)
	assert.Equal(t, "10000", r.Rate.String())
	require.NotNil(t, r.EndDate)
	assert.Equal(t, "2025-03-31", r.EndDate.String())

	r, err = store.ActiveRate(ctx, "job-1", generic.MustParseDate("2025-04-01"))
	require.NoError(t, err)
	assert.Equal(t, "11000", r.Rate.String())
	assert.Nil(t, r.EndDate)

	_, err = store.ActiveRate(ctx, "job-1", generic.MustParseDate("2024-12-31"))
	assert.ErrorIs(t, err, generic.ErrRateNotFound)
}

func TestStore_ReplaceRatesRejectsOverlap(t *testing.T) {
	store := newTestStore(t)
	seedJob(t, store, "job-1", "user-1")

	err := store.ReplaceRates(context.Background(), "job-1", []wage.HourlyRate{
		{ID: "r1", JobID: "job-1", Rate: decimal.NewFromInt(10000), EffectiveDate: generic.MustParseDate("2025-01-01")},
		{ID: "r2", JobID: "job-1", Rate: decimal.NewFromInt(11000), EffectiveDate: generic.MustParseDate("2025-04-01")},
	})

	assert.ErrorIs(t, err, generic.ErrOverlappingRate)
}

// =============================================================================
// SESSIONS
// =============================================================================

func TestStore_SessionRoundTripAndFilter(t *testing.T) {
	// GIVEN: Sessions across two jobs and dates
	store := newTestStore(t)
	ctx := context.Background()
	seedJob(t, store, "job-1", "user-1")
	seedJob(t, store, "job-2", "user-1")

	daily := session("d1", "job-2", "2025-03-04", "08:00", "18:00")
	daily.WageType = wage.WageDaily
	daily.FixedDailyWage = decimal.NewFromInt(80000)
	daily.MealAllowance = decimal.NewFromInt(8000)
	absent := session("a1", "job-1", "2025-03-05", "", "")
	absent.UnexcusedAbsence = true
	absent.Memo = "no show"

	for _, s := range []wage.Session{
		session("s2", "job-1", "2025-03-03", "18:00", "22:00"),
		session("s1", "job-1", "2025-03-03", "09:00", "14:00"),
		daily,
		absent,
		session("s9", "job-1", "2025-04-01", "09:00", "14:00"),
	} {
		require.NoError(t, store.SaveSession(ctx, s))
	}

	// WHEN: Filtering March for job-1
	jobID := wage.JobID("job-1")
	got, err := store.ListSessions(ctx, wage.SessionFilter{
		UserID: "user-1",
		From:   generic.MustParseDate("2025-03-01"),
		To:     generic.MustParseDate("2025-03-31"),
		JobID:  &jobID,
	})

	// THEN: Ordered by date then start
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, wage.SessionID("s1"), got[0].ID)
	assert.Equal(t, wage.SessionID("s2"), got[1].ID)
	assert.True(t, got[2].UnexcusedAbsence)
	assert.Equal(t, "no show", got[2].Memo)

	d, err := store.GetSession(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, wage.WageDaily, d.WageType)
	assert.True(t, d.FixedDailyWage.Equal(decimal.NewFromInt(80000)))
	assert.True(t, d.MealAllowance.Equal(decimal.NewFromInt(8000)))
	assert.Equal(t, "2025-03-04", d.Date.String())
}

func TestStore_SaveSessionUpserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedJob(t, store, "job-1", "user-1")
	s := session("s1", "job-1", "2025-03-03", "09:00", "14:00")
	require.NoError(t, store.SaveSession(ctx, s))

	s.EndTime = "15:00"
	require.NoError(t, store.SaveSession(ctx, s))

	got, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "15:00", got.EndTime)
}

func TestStore_CorruptDecimalsAreErrors(t *testing.T) {
	// GIVEN: A rate and a session whose stored amounts were damaged outside the store
	path := filepath.Join(t.TempDir(), "wage.db")
	store, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()
	seedJob(t, store, "job-1", "user-1")
	require.NoError(t, store.ReplaceRates(ctx, "job-1", []wage.HourlyRate{
		{ID: "r1", JobID: "job-1", Rate: decimal.NewFromInt(10000), EffectiveDate: generic.MustParseDate("2025-01-01")},
	}))
	require.NoError(t, store.SaveSession(ctx, session("s1", "job-1", "2025-03-03", "09:00", "14:00")))

	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer raw.Close()
	_, err = raw.Exec("UPDATE hourly_rates SET rate = 'ten thousand' WHERE id = 'r1'")
	require.NoError(t, err)
	_, err = raw.Exec("UPDATE work_sessions SET meal_allowance = '' WHERE id = 's1'")
	require.NoError(t, err)

	// WHEN / THEN: Reads fail instead of pricing at zero
	_, err = store.ListRates(ctx, "job-1")
	assert.ErrorContains(t, err, "rate r1")
	_, err = store.ActiveRate(ctx, "job-1", generic.MustParseDate("2025-03-03"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, generic.ErrRateNotFound)
	_, err = store.GetSession(ctx, "s1")
	assert.ErrorContains(t, err, "meal_allowance")
}

func TestStore_SaveSessionUnknownJob(t *testing.T) {
	store := newTestStore(t)

	err := store.SaveSession(context.Background(), session("s1", "ghost", "2025-03-03", "09:00", "14:00"))

	assert.ErrorIs(t, err, generic.ErrJobNotFound)
}

func TestStore_DeleteSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedJob(t, store, "job-1", "user-1")
	require.NoError(t, store.SaveSession(ctx, session("s1", "job-1", "2025-03-03", "09:00", "14:00")))

	require.NoError(t, store.DeleteSession(ctx, "s1"))
	_, err := store.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, generic.ErrSessionNotFound)
}

// =============================================================================
// REPORT RUNS
// =============================================================================

func TestStore_ReportRunsUpsertPerMonth(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveReportRun(ctx, sqlite.ReportRun{ID: "run-1", UserID: "user-1", Month: "2025-03", Status: "running", StartedAt: &now, CreatedAt: now}))
	require.NoError(t, store.SaveReportRun(ctx, sqlite.ReportRun{ID: "run-2", UserID: "user-1", Month: "2025-03", Status: "completed", TotalIncome: "200000", StartedAt: &now, CompletedAt: &now, CreatedAt: now}))

	runs, err := store.GetReportRuns(ctx, "")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "completed", runs[0].Status)
	assert.Equal(t, "200000", runs[0].TotalIncome)
	require.NotNil(t, runs[0].CompletedAt)

	completed, err := store.GetReportRuns(ctx, "completed")
	require.NoError(t, err)
	assert.Len(t, completed, 1)
}

// =============================================================================
// SERVICE INTEGRATION
// =============================================================================

func TestStore_ServiceMonthlyReport(t *testing.T) {
	// GIVEN: The service on top of SQLite
	store := newTestStore(t)
	ctx := context.Background()
	svc := wage.NewService(store, wage.NewEngine(zerolog.Nop(), nil), nil, nil, zerolog.Nop())

	job := wage.StatutoryJob("", "Cafe")
	job.UserID = "user-1"
	job, err := svc.SaveJob(ctx, job)
	require.NoError(t, err)
	_, err = svc.AddRate(ctx, "user-1", job.ID, decimal.NewFromInt(10000), generic.MustParseDate("2025-01-01"))
	require.NoError(t, err)
	for _, d := range []string{"2025-03-10", "2025-03-11", "2025-03-12"} {
		s := session("", string(job.ID), d, "09:00", "14:30")
		_, err := svc.SaveSession(ctx, s)
		require.NoError(t, err)
	}

	// WHEN
	r, err := svc.MonthlyReport(ctx, "user-1", 2025, time.March)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, "150000", r.TotalWage.String())
	assert.Equal(t, "50000", r.Allowance.TotalAllowance.String())
	assert.Equal(t, "200000", r.TotalIncome.String())
}
