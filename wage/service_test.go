package wage_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/wage-engine/generic"
	"github.com/warp/wage-engine/store/memory"
	"github.com/warp/wage-engine/wage"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type mapReports struct {
	mu          sync.Mutex
	reports     map[string]wage.MonthlyReport
	invalidated []string
}

func newMapReports() *mapReports {
	return &mapReports{reports: make(map[string]wage.MonthlyReport)}
}

func reportKey(user string, year int, month time.Month) string {
	return user + "/" + generic.StartOfMonth(year, month).String()
}

func (m *mapReports) Get(_ context.Context, user string, year int, month time.Month) (wage.MonthlyReport, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[reportKey(user, year, month)]
	return r, ok, nil
}

func (m *mapReports) Put(_ context.Context, r wage.MonthlyReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[reportKey(r.UserID, r.Year, r.Month)] = r
	return nil
}

func (m *mapReports) Invalidate(_ context.Context, user string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.reports {
		if len(k) > len(user) && k[:len(user)+1] == user+"/" {
			delete(m.reports, k)
		}
	}
	m.invalidated = append(m.invalidated, user)
	return nil
}

func newTestService(t *testing.T) (*wage.Service, *mapReports) {
	t.Helper()
	reports := newMapReports()
	svc := wage.NewService(memory.NewMemory(), wage.NewEngine(zerolog.Nop(), nil), reports, nil, zerolog.Nop())
	return svc, reports
}

func seedJob(t *testing.T, svc *wage.Service, rateValue string) wage.Job {
	t.Helper()
	ctx := context.Background()
	job := wage.StatutoryJob("", "Cafe")
	job.UserID = "user-1"
	job, err := svc.SaveJob(ctx, job)
	require.NoError(t, err)
	_, err = svc.AddRate(ctx, "user-1", job.ID, dec(rateValue), date("2025-01-01"))
	require.NoError(t, err)
	return job
}

func saveWeek(t *testing.T, svc *wage.Service, jobID wage.JobID, monday string) {
	t.Helper()
	for _, r := range fifteenHourWeek(string(jobID), monday) {
		s := r.Session
		s.ID = ""
		_, err := svc.SaveSession(context.Background(), s)
		require.NoError(t, err)
	}
}

// =============================================================================
// TESTS
// =============================================================================

func TestService_MonthlyReportEndToEnd(t *testing.T) {
	// GIVEN: A qualifying week in March
	svc, _ := newTestService(t)
	job := seedJob(t, svc, "10000")
	saveWeek(t, svc, job.ID, "2025-03-10")

	// WHEN
	r, err := svc.MonthlyReport(context.Background(), "user-1", 2025, time.March)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, "user-1", r.UserID)
	assert.Len(t, r.Lines, 3)
	assertDecimal(t, "150000", r.TotalWage, "wage")
	assertDecimal(t, "200000", r.TotalIncome, "income")
	assert.False(t, r.GeneratedAt.IsZero())
}

func TestService_MonthlyReportLoadsWholeBoundaryWeeks(t *testing.T) {
	// GIVEN: Work on Oct 1-3, inside the week starting Sep 29
	svc, _ := newTestService(t)
	job := seedJob(t, svc, "10000")
	saveWeek(t, svc, job.ID, "2025-10-01")

	// WHEN
	r, err := svc.MonthlyReport(context.Background(), "user-1", 2025, time.September)

	// THEN
	require.NoError(t, err)
	assert.Empty(t, r.Lines)
	assertDecimal(t, "50000", r.Allowance.TotalAllowance, "allowance")
}

func TestService_RateChangeInvalidatesReports(t *testing.T) {
	// GIVEN: A cached March report at 10000/h
	svc, reports := newTestService(t)
	ctx := context.Background()
	job := seedJob(t, svc, "10000")
	saveWeek(t, svc, job.ID, "2025-03-10")
	before, err := svc.MonthlyReport(ctx, "user-1", 2025, time.March)
	require.NoError(t, err)

	// WHEN: A raise from March 1
	_, err = svc.AddRate(ctx, "user-1", job.ID, dec("12000"), date("2025-03-01"))
	require.NoError(t, err)
	after, err := svc.MonthlyReport(ctx, "user-1", 2025, time.March)
	require.NoError(t, err)

	// THEN: Fresh numbers, not the cached ones
	assertDecimal(t, "150000", before.TotalWage, "before")
	assertDecimal(t, "180000", after.TotalWage, "after")
	assert.Contains(t, reports.invalidated, "user-1")
}

func TestService_PolicyEditInvalidatesDerivations(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	job := seedJob(t, svc, "10000")
	saveWeek(t, svc, job.ID, "2025-03-10")

	wa, err := svc.WeeklyAllowance(ctx, "user-1", job.ID, date("2025-03-12"))
	require.NoError(t, err)
	require.True(t, wa.Eligible)

	// WHEN: Threshold raised above the week's hours
	job.WeeklyAllowance.MinHours = dec("20")
	_, err = svc.SaveJob(ctx, job)
	require.NoError(t, err)

	// THEN
	wa, err = svc.WeeklyAllowance(ctx, "user-1", job.ID, date("2025-03-12"))
	require.NoError(t, err)
	assert.Equal(t, wage.ReasonInsufficientHours, wa.Reason)
}

func TestService_PreviewSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	job := seedJob(t, svc, "10000")

	s := hourly("", string(job.ID), "2025-03-03", "09:00", "14:00")
	sw, err := svc.PreviewSession(ctx, s)
	require.NoError(t, err)
	assertDecimal(t, "45000", sw.Wage, "wage")

	s.EndTime = "14h"
	_, err = svc.PreviewSession(ctx, s)
	assert.ErrorIs(t, err, generic.ErrInvalidClock)
	assert.True(t, generic.IsClientError(err))

	s.EndTime = "14:00"
	s.Date = date("2024-06-01")
	_, err = svc.PreviewSession(ctx, s)
	assert.ErrorIs(t, err, generic.ErrRateNotFound)
}

func TestService_SaveJobRejectsInvalidPolicy(t *testing.T) {
	svc, reports := newTestService(t)
	job := wage.StatutoryJob("", "Broken")
	job.UserID = "user-1"
	job.BreakTime.Ranges[1].MaxHours = dec("8")

	_, err := svc.SaveJob(context.Background(), job)

	assertPolicyErrorRow(t, err, 1)
	assert.Empty(t, reports.invalidated)
}

func TestService_OtherUsersJobsAreNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	job := seedJob(t, svc, "10000")

	_, err := svc.WeeklyAllowance(ctx, "intruder", job.ID, date("2025-03-03"))
	assert.True(t, generic.IsNotFound(err))

	err = svc.DeleteJob(ctx, "intruder", job.ID)
	assert.ErrorIs(t, err, generic.ErrJobNotFound)
}

func TestService_DeleteSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	job := seedJob(t, svc, "10000")
	saved, err := svc.SaveSession(ctx, hourly("", string(job.ID), "2025-03-03", "09:00", "14:00"))
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	require.NoError(t, svc.DeleteSession(ctx, "user-1", saved.ID))
	assert.ErrorIs(t, svc.DeleteSession(ctx, "user-1", saved.ID), generic.ErrSessionNotFound)
}

func TestService_SaveSessionRejectsOtherUsersID(t *testing.T) {
	// GIVEN: user-1 owns a session; another user owns a job
	svc, reports := newTestService(t)
	ctx := context.Background()
	job := seedJob(t, svc, "10000")
	saved, err := svc.SaveSession(ctx, hourly("", string(job.ID), "2025-03-03", "09:00", "17:00"))
	require.NoError(t, err)

	other := wage.StatutoryJob("", "Bar")
	other.UserID = "intruder"
	other, err = svc.SaveJob(ctx, other)
	require.NoError(t, err)
	reports.invalidated = nil

	// WHEN: The other user saves with user-1's session ID
	forged := hourly(string(saved.ID), string(other.ID), "2025-03-03", "09:00", "09:30")
	forged.UserID = "intruder"
	_, err = svc.SaveSession(ctx, forged)

	// THEN: Not found, and user-1's session is untouched
	assert.ErrorIs(t, err, generic.ErrSessionNotFound)
	stored, err := svc.Store.GetSession(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", stored.UserID)
	assert.Equal(t, job.ID, stored.JobID)
	assert.Equal(t, "17:00", stored.EndTime)
	assert.Empty(t, reports.invalidated)
}

func TestService_SaveSessionUpdatesOwnSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	job := seedJob(t, svc, "10000")
	saved, err := svc.SaveSession(ctx, hourly("", string(job.ID), "2025-03-03", "09:00", "17:00"))
	require.NoError(t, err)

	edit := hourly(string(saved.ID), string(job.ID), "2025-03-03", "09:00", "13:00")
	updated, err := svc.SaveSession(ctx, edit)

	require.NoError(t, err)
	assert.Equal(t, saved.ID, updated.ID)
	assert.Equal(t, saved.CreatedAt, updated.CreatedAt)
	stored, err := svc.Store.GetSession(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "13:00", stored.EndTime)
}
