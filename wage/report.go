package wage

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/wage-engine/generic"
)

// =============================================================================
// MONTHLY REPORT
// =============================================================================

// ReportLine is one session of the month with its recomputed wage.
type ReportLine struct {
	Session   Session
	JobName   string
	Rate      decimal.Decimal
	Wage      SessionWage
	RateFound bool // false for hourly sessions priced at zero for lack of a rate
}

// JobSummary totals one job's sessions inside the month.
type JobSummary struct {
	JobID        JobID
	JobName      string
	Sessions     int
	WorkHours    decimal.Decimal
	BreakMinutes int
	Wage         decimal.Decimal
}

// MonthlyReport is the reporting view of one calendar month.
//
// Wage totals count only sessions dated inside the month. The allowance side
// follows MonthlyAllowance and may include days from adjacent months.
type MonthlyReport struct {
	UserID string
	Year   int
	Month  time.Month

	Lines []ReportLine
	Jobs  []JobSummary

	TotalWage            decimal.Decimal
	TotalWorkHours       decimal.Decimal
	TotalBreakMinutes    int
	UnpaidBreakDeduction decimal.Decimal
	TotalMealAllowance   decimal.Decimal

	Allowance   MonthlyAllowance
	TotalIncome decimal.Decimal

	// MissingRates counts hourly sessions in the month that had no active rate.
	MissingRates int
	GeneratedAt  time.Time
}

// BuildMonthlyReport prices every session in the month and attaches the
// month's weekly allowance. records must cover LoadWindow(year, month).
func BuildMonthlyReport(records []RatedSession, jobs []Job, year int, month time.Month) MonthlyReport {
	return buildMonthlyReport(records, jobs, year, month, CalculateBreakTime, CalculateWeeklyAllowance)
}

func buildMonthlyReport(records []RatedSession, jobs []Job, year int, month time.Month, breakTime breakFunc, weekly weeklyFunc) MonthlyReport {
	report := MonthlyReport{
		Year:                 year,
		Month:                month,
		TotalWage:            decimal.Zero,
		TotalWorkHours:       decimal.Zero,
		UnpaidBreakDeduction: decimal.Zero,
		TotalMealAllowance:   decimal.Zero,
	}
	byID := make(map[JobID]Job, len(jobs))
	for _, j := range jobs {
		byID[j.ID] = j
	}

	var inMonth []RatedSession
	for _, r := range records {
		if r.Date.InMonth(year, month) {
			inMonth = append(inMonth, r)
		}
	}
	sort.SliceStable(inMonth, func(i, k int) bool {
		a, b := inMonth[i], inMonth[k]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.StartTime < b.StartTime
	})

	summaries := make(map[JobID]int)
	var workMinutes int64
	for _, r := range inMonth {
		job, ok := byID[r.JobID]
		if !ok {
			// orphaned session; its job was deleted
			continue
		}
		sw := calculateSessionWage(r.Session, job, r.HourlyRate, breakTime)
		line := ReportLine{
			Session:   r.Session,
			JobName:   job.Name,
			Rate:      r.HourlyRate,
			Wage:      sw,
			RateFound: !r.IsHourly() || r.HourlyRate.IsPositive() || !r.HasTimes(),
		}
		if !line.RateFound {
			report.MissingRates++
		}
		report.Lines = append(report.Lines, line)
		if report.UserID == "" {
			report.UserID = r.UserID
		}

		work := generic.Minutes(sw.WorkTime.Work)
		workMinutes += work
		report.TotalWage = report.TotalWage.Add(sw.Wage)
		report.TotalBreakMinutes += sw.WorkTime.Break.Minutes
		report.UnpaidBreakDeduction = report.UnpaidBreakDeduction.Add(sw.UnpaidBreakDeduction)
		report.TotalMealAllowance = report.TotalMealAllowance.Add(sw.MealAllowance)

		i, seen := summaries[job.ID]
		if !seen {
			i = len(report.Jobs)
			summaries[job.ID] = i
			report.Jobs = append(report.Jobs, JobSummary{JobID: job.ID, JobName: job.Name, WorkHours: decimal.Zero, Wage: decimal.Zero})
		}
		s := &report.Jobs[i]
		s.Sessions++
		s.WorkHours = s.WorkHours.Add(generic.HoursFromMinutes(work))
		s.BreakMinutes += sw.WorkTime.Break.Minutes
		s.Wage = s.Wage.Add(sw.Wage)
	}
	report.TotalWorkHours = generic.HoursFromMinutes(workMinutes)

	report.Allowance = calculateMonthlyWeeklyAllowance(records, jobs, year, month, weekly)
	report.TotalIncome = report.TotalWage.Add(report.Allowance.TotalAllowance)
	return report
}
