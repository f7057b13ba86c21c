/*
session.go - Work sessions and the per-session wage calculator

PURPOSE:
  A Session is one contiguous work interval logged on a calendar date. This
  file turns its "HH:mm" start/end strings into total, break and net work
  time, and prices it either by the hour or as a fixed daily wage.

RULES:
  - end <= start means the shift crossed midnight: end moves to the next day
    before any duration math (22:00 - 02:00 is 4h).
  - Durations are whole minutes; hours = minutes / 60, never rounded.
  - workHours    = totalHours - breakHours
  - payableHours = totalHours when the break is paid, workHours otherwise
  - hourly wage  = round(payableHours * hourlyRate) + mealAllowance
    (one rounding step, after the multiplication)
  - daily wage   = fixedDailyWage + mealAllowance; the break is still derived
    for display but never touches the amount

MALFORMED INPUT:
  Unparseable clocks yield a WorkTime with Valid=false and zero durations.
  A missing or non-positive hourly rate prices the session at zero. Neither
  is an error here: the service layer rejects such sessions before saving.

SEE ALSO:
  - breaktime.go: break lookup
  - weekly.go: consumes SessionWage.BaseWage
*/
package wage

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/wage-engine/generic"
)

// =============================================================================
// SESSION
// =============================================================================

// WageType selects how a session is priced.
type WageType string

const (
	WageHourly WageType = "hourly"
	WageDaily  WageType = "daily"
)

// Session is a logged work interval.
type Session struct {
	ID        SessionID
	UserID    string
	JobID     JobID
	Date      generic.TimePoint
	StartTime string // "HH:mm"
	EndTime   string // "HH:mm"; not after StartTime means next day

	WageType       WageType
	FixedDailyWage decimal.Decimal // WageDaily only
	MealAllowance  decimal.Decimal

	// UnexcusedAbsence voids the job's weekly allowance for the ISO week.
	// Absence records may omit start/end.
	UnexcusedAbsence bool

	Memo      string
	CreatedAt time.Time
}

// HasTimes reports whether both start and end are filled in.
func (s Session) HasTimes() bool {
	return strings.TrimSpace(s.StartTime) != "" && strings.TrimSpace(s.EndTime) != ""
}

// IsHourly treats an unset wage type as hourly.
func (s Session) IsHourly() bool {
	return s.WageType == WageHourly || s.WageType == ""
}

// Validate rejects sessions that cannot be priced. Calculators never call
// this; it is the gate the service runs before persisting.
func (s Session) Validate() error {
	switch {
	case s.JobID == "":
		return sessionErr("job_id is required")
	case s.Date.IsZero():
		return sessionErr("date is required")
	case s.WageType != WageHourly && s.WageType != WageDaily && s.WageType != "":
		return sessionErr("wage_type must be hourly or daily")
	case s.MealAllowance.IsNegative():
		return sessionErr("meal_allowance must not be negative")
	case s.WageType == WageDaily && s.FixedDailyWage.IsNegative():
		return sessionErr("fixed_daily_wage must not be negative")
	}
	if !s.HasTimes() {
		if s.UnexcusedAbsence {
			return nil
		}
		return sessionErr("start_time and end_time are required")
	}
	if _, err := generic.ParseClock(s.StartTime); err != nil {
		return err
	}
	if _, err := generic.ParseClock(s.EndTime); err != nil {
		return err
	}
	return nil
}

type sessionError string

func (e sessionError) Error() string { return "invalid work session: " + string(e) }
func (e sessionError) Unwrap() error { return generic.ErrInvalidSession }

func sessionErr(msg string) error { return sessionError(msg) }

// =============================================================================
// WORK TIME
// =============================================================================

// WorkTime is the duration breakdown of one session.
type WorkTime struct {
	Total time.Duration
	Work  time.Duration
	Break BreakTime

	// Valid is false when start or end could not be parsed; all durations
	// are zero in that case.
	Valid bool
}

func (w WorkTime) TotalHours() decimal.Decimal { return generic.Hours(w.Total) }
func (w WorkTime) WorkHours() decimal.Decimal  { return generic.Hours(w.Work) }

// PayableHours adds a paid break back onto net work time.
func (w WorkTime) PayableHours() decimal.Decimal {
	if w.Break.Paid {
		return w.TotalHours()
	}
	return w.WorkHours()
}

type breakFunc func(time.Duration, BreakPolicy) BreakTime

// CalculateWorkAndBreakTime measures a start/end pair under the job's policy.
func CalculateWorkAndBreakTime(start, end string, job Job) WorkTime {
	return calculateWorkAndBreakTime(start, end, job, CalculateBreakTime)
}

func calculateWorkAndBreakTime(start, end string, job Job, breakTime breakFunc) WorkTime {
	s, err := generic.ParseClock(start)
	if err != nil {
		return WorkTime{}
	}
	e, err := generic.ParseClock(end)
	if err != nil {
		return WorkTime{}
	}

	total := generic.Span(s, e)
	bt := breakTime(total, job.BreakTime)
	work := total - bt.Duration()
	if work < 0 {
		work = 0
	}
	return WorkTime{Total: total, Work: work, Break: bt, Valid: true}
}

// =============================================================================
// SESSION WAGE
// =============================================================================

// SessionWage is the priced breakdown of one session.
type SessionWage struct {
	WorkTime   WorkTime
	HourlyRate decimal.Decimal

	// BaseWage is the part attributable to work time alone:
	// round(payableHours * rate) for hourly sessions, the fixed amount for daily.
	BaseWage      decimal.Decimal
	MealAllowance decimal.Decimal
	Wage          decimal.Decimal

	// UnpaidBreakDeduction is what the unpaid break would have earned at the
	// session's rate. Zero for paid breaks and daily sessions.
	UnpaidBreakDeduction decimal.Decimal
}

// CalculateSessionWage prices a session. hourlyRate is ignored for daily
// sessions.
func CalculateSessionWage(s Session, job Job, hourlyRate decimal.Decimal) SessionWage {
	return calculateSessionWage(s, job, hourlyRate, CalculateBreakTime)
}

func calculateSessionWage(s Session, job Job, hourlyRate decimal.Decimal, breakTime breakFunc) SessionWage {
	wt := calculateWorkAndBreakTime(s.StartTime, s.EndTime, job, breakTime)
	sw := SessionWage{
		WorkTime:             wt,
		HourlyRate:           hourlyRate,
		BaseWage:             decimal.Zero,
		MealAllowance:        s.MealAllowance,
		Wage:                 decimal.Zero,
		UnpaidBreakDeduction: decimal.Zero,
	}

	if !s.IsHourly() {
		sw.BaseWage = s.FixedDailyWage
		sw.Wage = s.FixedDailyWage.Add(s.MealAllowance)
		return sw
	}

	if !wt.Valid || !hourlyRate.IsPositive() {
		return sw
	}
	sw.BaseWage = generic.RoundCurrency(wt.PayableHours().Mul(hourlyRate))
	sw.Wage = sw.BaseWage.Add(s.MealAllowance)
	if !wt.Break.Paid && wt.Break.Minutes > 0 {
		sw.UnpaidBreakDeduction = generic.RoundCurrency(wt.Break.Hours().Mul(hourlyRate))
	}
	return sw
}

// ComputeWage returns only the payable amount of a session.
func ComputeWage(s Session, job Job, hourlyRate decimal.Decimal) decimal.Decimal {
	return CalculateSessionWage(s, job, hourlyRate).Wage
}
