package generic

import "time"

// =============================================================================
// PERIOD - Inclusive calendar-date range
// =============================================================================

// Period is the date window a computation runs over. Both ends are inclusive
// and compared by calendar date only.
//
// Examples:
//   - ISO week: Monday - Sunday
//   - Calendar month: 1st - last day
//   - Load window for a monthly report: first overlapping Monday - last overlapping Sunday
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Validate rejects a period whose end precedes its start.
func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	current := p.Start
	for current.BeforeOrEqual(p.End) {
		days = append(days, current)
		current = current.AddDays(1)
	}
	return days
}

// Union returns the smallest period covering both.
func (p Period) Union(other Period) Period {
	u := p
	if other.Start.Before(u.Start) {
		u.Start = other.Start
	}
	if other.End.After(u.End) {
		u.End = other.End
	}
	return u
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// PERIOD CALCULATORS
// =============================================================================

// ISOWeekPeriod returns the Monday-Sunday week containing date.
func ISOWeekPeriod(date TimePoint) Period {
	return Period{Start: StartOfISOWeek(date), End: EndOfISOWeek(date)}
}

// MonthPeriod returns the calendar month as a period.
func MonthPeriod(year int, month time.Month) Period {
	return Period{Start: StartOfMonth(year, month), End: EndOfMonth(year, month)}
}

// ISOWeeksOverlapping returns every ISO week whose Monday-Sunday span shares
// at least one day with the calendar month, in chronological order. The first
// and last weeks usually extend into the neighbouring months.
func ISOWeeksOverlapping(year int, month time.Month) []Period {
	m := MonthPeriod(year, month)
	var weeks []Period
	for monday := StartOfISOWeek(m.Start); monday.BeforeOrEqual(m.End); monday = monday.AddDays(7) {
		weeks = append(weeks, Period{Start: monday, End: monday.AddDays(6)})
	}
	return weeks
}
