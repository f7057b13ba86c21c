package wage_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/wage-engine/wage"
)

// =============================================================================
// MONTHLY ALLOWANCE
// =============================================================================

func TestMonthlyAllowance_SumsEligibleWeeks(t *testing.T) {
	// GIVEN: Two qualifying weeks in September 2025
	job := wage.StatutoryJob("job-1", "Cafe")
	records := append(fifteenHourWeek("job-1", "2025-09-01"), fifteenHourWeek("job-1", "2025-09-15")...)

	// WHEN
	m := wage.CalculateMonthlyWeeklyAllowance(records, []wage.Job{job}, 2025, time.September)

	// THEN
	assert.Equal(t, 5, m.TotalWeeks)
	assert.Equal(t, 2, m.EligibleWeeks)
	assertDecimal(t, "100000", m.TotalAllowance, "total")
	require.Len(t, m.JobAllowances, 1)
	assert.Equal(t, 2, m.JobAllowances[0].Weeks)
	assert.Equal(t, "Cafe", m.JobAllowances[0].JobName)
	require.Len(t, m.Weeks, 5)
	assert.True(t, m.Weeks[0].Eligible())
	assert.False(t, m.Weeks[1].Eligible())
}

func TestMonthlyAllowance_BoundaryWeekCountedByBothMonths(t *testing.T) {
	// GIVEN: A qualifying week Mon 2025-09-29 .. Sun 2025-10-05 with all work
	// on Oct 1-3
	job := wage.StatutoryJob("job-1", "Cafe")
	records := fifteenHourWeek("job-1", "2025-10-01")

	// WHEN: Both months are aggregated
	sep := wage.CalculateMonthlyWeeklyAllowance(records, []wage.Job{job}, 2025, time.September)
	oct := wage.CalculateMonthlyWeeklyAllowance(records, []wage.Job{job}, 2025, time.October)

	// THEN: Each month attributes the whole week to itself
	assertDecimal(t, "50000", sep.TotalAllowance, "september")
	assertDecimal(t, "50000", oct.TotalAllowance, "october")
	assert.Equal(t, 1, sep.EligibleWeeks)
	assert.Equal(t, 1, oct.EligibleWeeks)
	assert.True(t, sep.Weeks[len(sep.Weeks)-1].Week.Contains(date("2025-10-05")))
}

func TestMonthlyAllowance_JobOrderIsFirstEligible(t *testing.T) {
	// GIVEN: Job A listed first but B qualifies earlier
	a := wage.StatutoryJob("job-a", "A")
	b := wage.StatutoryJob("job-b", "B")
	records := append(fifteenHourWeek("job-b", "2025-09-01"), fifteenHourWeek("job-a", "2025-09-08")...)

	// WHEN
	m := wage.CalculateMonthlyWeeklyAllowance(records, []wage.Job{a, b}, 2025, time.September)

	// THEN
	require.Len(t, m.JobAllowances, 2)
	assert.Equal(t, wage.JobID("job-b"), m.JobAllowances[0].JobID)
	assert.Equal(t, wage.JobID("job-a"), m.JobAllowances[1].JobID)
	assert.Equal(t, 2, m.EligibleWeeks)
}

func TestMonthlyAllowance_TwoJobsSameWeekCountOnce(t *testing.T) {
	a := wage.StatutoryJob("job-a", "A")
	b := wage.StatutoryJob("job-b", "B")
	records := append(fifteenHourWeek("job-a", "2025-09-01"), fifteenHourWeek("job-b", "2025-09-01")...)

	m := wage.CalculateMonthlyWeeklyAllowance(records, []wage.Job{a, b}, 2025, time.September)

	assert.Equal(t, 1, m.EligibleWeeks)
	assertDecimal(t, "100000", m.TotalAllowance, "total")
}

func TestMonthlyAllowance_SkipsDisabledJobs(t *testing.T) {
	job := wage.StatutoryJob("job-1", "Cafe")
	job.WeeklyAllowance.Enabled = false

	m := wage.CalculateMonthlyWeeklyAllowance(fifteenHourWeek("job-1", "2025-09-01"), []wage.Job{job}, 2025, time.September)

	assert.True(t, m.TotalAllowance.IsZero())
	assert.Empty(t, m.JobAllowances)
	assert.Empty(t, m.Weeks[0].Results)
}

func TestLoadWindow_CoversWholeWeeks(t *testing.T) {
	w := wage.LoadWindow(2025, time.March)
	assert.Equal(t, "2025-02-24", w.Start.String())
	assert.Equal(t, "2025-04-06", w.End.String())

	w = wage.LoadWindow(2025, time.September)
	assert.Equal(t, "2025-09-01", w.Start.String())
	assert.Equal(t, "2025-10-05", w.End.String())
}

// =============================================================================
// MONTHLY REPORT
// =============================================================================

func TestBuildMonthlyReport_Totals(t *testing.T) {
	// GIVEN: March sessions plus one in the leading week from February
	job := wage.StatutoryJob("job-1", "Cafe")
	daily := hourly("d", "job-1", "2025-03-04", "09:00", "18:00")
	daily.WageType = wage.WageDaily
	daily.FixedDailyWage = dec("80000")
	daily.MealAllowance = dec("8000")

	records := []wage.RatedSession{
		rated(hourly("feb", "job-1", "2025-02-28", "09:00", "14:00"), "10000"),
		rated(daily, "0"),
		rated(hourly("h", "job-1", "2025-03-03", "09:00", "14:00"), "10000"),
		rated(hourly("norate", "job-1", "2025-03-05", "09:00", "10:00"), "0"),
	}

	// WHEN
	r := wage.BuildMonthlyReport(records, []wage.Job{job}, 2025, time.March)

	// THEN
	require.Len(t, r.Lines, 3)
	assert.Equal(t, wage.SessionID("h"), r.Lines[0].Session.ID, "sorted by date")
	assertDecimal(t, "133000", r.TotalWage, "wage")
	assertDecimal(t, "13.5", r.TotalWorkHours, "hours")
	assert.Equal(t, 90, r.TotalBreakMinutes)
	assertDecimal(t, "5000", r.UnpaidBreakDeduction, "unpaid break")
	assertDecimal(t, "8000", r.TotalMealAllowance, "meal")
	assert.Equal(t, 1, r.MissingRates)
	assertDecimal(t, "133000", r.TotalIncome, "income")

	require.Len(t, r.Jobs, 1)
	assert.Equal(t, 3, r.Jobs[0].Sessions)
}

func TestBuildMonthlyReport_IncomeIncludesAllowance(t *testing.T) {
	job := wage.StatutoryJob("job-1", "Cafe")
	records := fifteenHourWeek("job-1", "2025-03-10")

	r := wage.BuildMonthlyReport(records, []wage.Job{job}, 2025, time.March)

	assertDecimal(t, "150000", r.TotalWage, "wage")
	assertDecimal(t, "50000", r.Allowance.TotalAllowance, "allowance")
	assertDecimal(t, "200000", r.TotalIncome, "income")
}

func TestBuildMonthlyReport_BoundaryWeekAllowanceWithoutWage(t *testing.T) {
	// GIVEN: All work falls in October, inside the week that starts Sep 29
	job := wage.StatutoryJob("job-1", "Cafe")
	records := fifteenHourWeek("job-1", "2025-10-01")

	// WHEN
	r := wage.BuildMonthlyReport(records, []wage.Job{job}, 2025, time.September)

	// THEN: No September wage, but the boundary week's allowance is included
	assert.Empty(t, r.Lines)
	assert.True(t, r.TotalWage.IsZero())
	assertDecimal(t, "50000", r.TotalIncome, "income")
}

func TestBuildMonthlyReport_SkipsOrphanedSessions(t *testing.T) {
	records := []wage.RatedSession{rated(hourly("x", "gone", "2025-03-03", "09:00", "14:00"), "10000")}

	r := wage.BuildMonthlyReport(records, nil, 2025, time.March)

	assert.Empty(t, r.Lines)
	assert.True(t, r.TotalIncome.IsZero())
}
