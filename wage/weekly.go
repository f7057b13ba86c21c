/*
weekly.go - Weekly attendance allowance

PURPOSE:
  Decides whether a job's hourly sessions in one ISO week (Monday-Sunday)
  earn the weekly attendance allowance, and how much.

ALGORITHM (per job, per week):
  1. Allowance disabled on the job          -> not eligible (disabled)
  2. Keep only this job's hourly sessions
  3. Any kept session flagged as unexcused absence marks the week, even when
     it has no start/end
  4. For sessions with start/end:
       totalWorkHours += net work hours (break deducted)
       totalWage      += wage - meal allowance (work-time wage only)
       workDays        = distinct calendar dates
  5. Absence                                -> not eligible (unexcused_absence)
  6. totalWorkHours < threshold             -> not eligible (insufficient_hours)
  7. No work days or no net hours           -> not eligible (no_work_days)
  8. averageHourlyRate = round(totalWage / totalWorkHours)
     averageDailyHours = totalWorkHours / workDays
     allowance         = round(averageDailyHours * averageHourlyRate)

  Ineligible results still carry the accumulated hours and days for display.

AVERAGE RATE:
  The average rate is re-derived from wages and net hours instead of read
  from the rate history. With a paid break the wage includes break time but
  the hours do not, so the average sits above the nominal rate.

SEE ALSO:
  - session.go: per-session wage
  - monthly.go: runs this for every week overlapping a month
*/
package wage

import (
	"github.com/shopspring/decimal"
	"github.com/warp/wage-engine/generic"
)

// IneligibleReason explains a not-eligible weekly result.
type IneligibleReason string

const (
	ReasonNone              IneligibleReason = ""
	ReasonDisabled          IneligibleReason = "disabled"
	ReasonUnexcusedAbsence  IneligibleReason = "unexcused_absence"
	ReasonInsufficientHours IneligibleReason = "insufficient_hours"
	ReasonNoWorkDays        IneligibleReason = "no_work_days"
)

// WeeklyAllowance is the derived allowance result for one job and one week.
type WeeklyAllowance struct {
	JobID    JobID
	Eligible bool
	Reason   IneligibleReason

	TotalWorkHours      decimal.Decimal
	TotalWage           decimal.Decimal
	AverageHourlyRate   decimal.Decimal
	AverageDailyHours   decimal.Decimal
	AllowanceAmount     decimal.Decimal
	WorkDays            int
	HasUnexcusedAbsence bool
}

func notEligible(jobID JobID, reason IneligibleReason) WeeklyAllowance {
	return WeeklyAllowance{
		JobID:             jobID,
		Reason:            reason,
		TotalWorkHours:    decimal.Zero,
		TotalWage:         decimal.Zero,
		AverageHourlyRate: decimal.Zero,
		AverageDailyHours: decimal.Zero,
		AllowanceAmount:   decimal.Zero,
	}
}

// CalculateWeeklyAllowance evaluates one week of records for one job. records
// should already be limited to a single ISO week (see WeeklyRecords); records
// of other jobs and daily-wage sessions are ignored.
func CalculateWeeklyAllowance(records []RatedSession, job Job) WeeklyAllowance {
	return calculateWeeklyAllowance(records, job, CalculateBreakTime)
}

func calculateWeeklyAllowance(records []RatedSession, job Job, breakTime breakFunc) WeeklyAllowance {
	if !job.WeeklyAllowance.Enabled {
		return notEligible(job.ID, ReasonDisabled)
	}

	result := notEligible(job.ID, ReasonNone)
	var workMinutes int64
	days := make(map[string]struct{})

	for _, r := range records {
		if r.JobID != job.ID || !r.IsHourly() {
			continue
		}
		if r.UnexcusedAbsence {
			result.HasUnexcusedAbsence = true
		}
		if !r.HasTimes() {
			continue
		}
		sw := calculateSessionWage(r.Session, job, r.HourlyRate, breakTime)
		if !sw.WorkTime.Valid {
			continue
		}
		workMinutes += generic.Minutes(sw.WorkTime.Work)
		// BaseWage is wage minus meal allowance; it stays zero when no rate resolved.
		result.TotalWage = result.TotalWage.Add(sw.BaseWage)
		days[r.Date.String()] = struct{}{}
	}

	result.TotalWorkHours = generic.HoursFromMinutes(workMinutes)
	result.WorkDays = len(days)

	threshold := job.WeeklyAllowance.Threshold()
	switch {
	case result.HasUnexcusedAbsence:
		result.Reason = ReasonUnexcusedAbsence
		return result
	case workMinutes < threshold.Mul(decimal.NewFromInt(60)).Ceil().IntPart():
		result.Reason = ReasonInsufficientHours
		return result
	case result.WorkDays == 0 || workMinutes == 0:
		result.Reason = ReasonNoWorkDays
		return result
	}

	hours := result.TotalWorkHours
	result.AverageHourlyRate = generic.RoundCurrency(result.TotalWage.Div(hours))
	result.AverageDailyHours = hours.Div(decimal.NewFromInt(int64(result.WorkDays)))
	result.AllowanceAmount = generic.RoundCurrency(result.AverageDailyHours.Mul(result.AverageHourlyRate))
	result.Eligible = true
	return result
}

// WeeklyRecords keeps the records whose date falls in the ISO week containing
// day. Comparison is by calendar date.
func WeeklyRecords(records []RatedSession, day generic.TimePoint) []RatedSession {
	return recordsIn(records, generic.ISOWeekPeriod(day))
}

func recordsIn(records []RatedSession, p generic.Period) []RatedSession {
	var out []RatedSession
	for _, r := range records {
		if p.Contains(r.Date) {
			out = append(out, r)
		}
	}
	return out
}
