package wage

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/wage-engine/generic"
)

// =============================================================================
// MONTHLY WEEKLY-ALLOWANCE AGGREGATION
// =============================================================================
//
// Every ISO week that overlaps the month at all is evaluated in full and its
// whole allowance is attributed to the month being aggregated. A week that
// straddles two months is therefore counted by both months' aggregations.
// This is the observed attribution rule and is kept as-is; see DESIGN.md.

// WeekAllowance is one evaluated week of a monthly aggregation.
type WeekAllowance struct {
	Week    generic.Period
	Results []WeeklyAllowance // one per allowance-enabled job, in job order
	Amount  decimal.Decimal   // sum of eligible AllowanceAmount
}

// Eligible reports whether any job earned the allowance this week.
func (w WeekAllowance) Eligible() bool {
	for _, r := range w.Results {
		if r.Eligible {
			return true
		}
	}
	return false
}

// JobAllowance is a per-job subtotal across the month's weeks.
type JobAllowance struct {
	JobID   JobID
	JobName string
	Amount  decimal.Decimal
	Weeks   int // eligible weeks
}

// MonthlyAllowance is the weekly-allowance side of a month.
type MonthlyAllowance struct {
	Year  int
	Month time.Month

	TotalAllowance decimal.Decimal
	EligibleWeeks  int // weeks where at least one job was eligible
	TotalWeeks     int // ISO weeks overlapping the month

	// JobAllowances lists jobs in the order they first earned an allowance.
	JobAllowances []JobAllowance
	Weeks         []WeekAllowance
}

type weeklyFunc func([]RatedSession, Job) WeeklyAllowance

// CalculateMonthlyWeeklyAllowance runs the weekly calculator for every
// allowance-enabled job over every ISO week overlapping the month. records
// must cover those whole weeks, including days outside the month.
func CalculateMonthlyWeeklyAllowance(records []RatedSession, jobs []Job, year int, month time.Month) MonthlyAllowance {
	return calculateMonthlyWeeklyAllowance(records, jobs, year, month, CalculateWeeklyAllowance)
}

func calculateMonthlyWeeklyAllowance(records []RatedSession, jobs []Job, year int, month time.Month, weekly weeklyFunc) MonthlyAllowance {
	weeks := generic.ISOWeeksOverlapping(year, month)
	out := MonthlyAllowance{
		Year:           year,
		Month:          month,
		TotalAllowance: decimal.Zero,
		TotalWeeks:     len(weeks),
	}
	index := make(map[JobID]int)

	for _, week := range weeks {
		inWeek := recordsIn(records, week)
		wa := WeekAllowance{Week: week, Amount: decimal.Zero}

		for _, job := range jobs {
			if !job.WeeklyAllowance.Enabled {
				continue
			}
			res := weekly(inWeek, job)
			wa.Results = append(wa.Results, res)
			if !res.Eligible {
				continue
			}
			wa.Amount = wa.Amount.Add(res.AllowanceAmount)

			i, seen := index[job.ID]
			if !seen {
				i = len(out.JobAllowances)
				index[job.ID] = i
				out.JobAllowances = append(out.JobAllowances, JobAllowance{JobID: job.ID, JobName: job.Name, Amount: decimal.Zero})
			}
			out.JobAllowances[i].Amount = out.JobAllowances[i].Amount.Add(res.AllowanceAmount)
			out.JobAllowances[i].Weeks++
		}

		if wa.Eligible() {
			out.EligibleWeeks++
		}
		out.TotalAllowance = out.TotalAllowance.Add(wa.Amount)
		out.Weeks = append(out.Weeks, wa)
	}
	return out
}

// LoadWindow is the date range a caller must load to aggregate a month:
// the calendar month widened to whole overlapping ISO weeks.
func LoadWindow(year int, month time.Month) generic.Period {
	weeks := generic.ISOWeeksOverlapping(year, month)
	return generic.MonthPeriod(year, month).Union(generic.Period{Start: weeks[0].Start, End: weeks[len(weeks)-1].End})
}
