package generic

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// TIME POINT - A calendar date (work sessions are keyed by date, not instant)
// =============================================================================

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// TimePoint is a calendar date. The time-of-day part is always midnight UTC so
// two TimePoints for the same day compare equal regardless of how they were built.
type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates any instant to its calendar date in the instant's own location.
func DateOf(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return TimePoint{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return DateOf(t), nil
}

// MustParseDate is ParseDate for literals in presets and tests.
func MustParseDate(s string) TimePoint {
	tp, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return tp
}

func Today() TimePoint {
	return DateOf(time.Now())
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

func (tp TimePoint) normalize() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint   { return DateOf(tp.normalize().AddDate(0, 0, n)) }
func (tp TimePoint) AddMonths(n int) TimePoint { return DateOf(tp.normalize().AddDate(0, n, 0)) }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }

func (tp TimePoint) String() string {
	return tp.Time.Format(DateLayout)
}

// InMonth reports whether the date falls in the given calendar month.
func (tp TimePoint) InMonth(year int, month time.Month) bool {
	return tp.Year() == year && tp.Month() == month
}

// MarshalJSON encodes the date as "YYYY-MM-DD".
func (tp TimePoint) MarshalJSON() ([]byte, error) {
	if tp.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(tp.String())
}

// UnmarshalJSON accepts "YYYY-MM-DD" or an empty string.
func (tp *TimePoint) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*tp = TimePoint{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*tp = parsed
	return nil
}

// =============================================================================
// ISO WEEK - Monday to Sunday
// =============================================================================

// StartOfISOWeek returns the Monday of the ISO week containing tp.
func StartOfISOWeek(tp TimePoint) TimePoint {
	// Weekday: Sunday=0 ... Saturday=6; ISO: Monday=1 ... Sunday=7
	offset := (int(tp.Weekday()) + 6) % 7
	return tp.AddDays(-offset)
}

// EndOfISOWeek returns the Sunday of the ISO week containing tp.
func EndOfISOWeek(tp TimePoint) TimePoint {
	return StartOfISOWeek(tp).AddDays(6)
}

// =============================================================================
// CLOCK - Wall-clock reading within a day ("HH:mm")
// =============================================================================

// Clock is minutes since midnight, 0..1439.
type Clock int

// ParseClock parses "HH:mm" or "HH:mm:ss" (seconds must be zero-padded but
// are otherwise ignored; the engine works at minute granularity).
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	h, err := parseClockField(parts[0], 23)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	m, err := parseClockField(parts[1], 59)
	if err != nil || len(parts[1]) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	if len(parts) == 3 {
		if _, err := parseClockField(parts[2], 59); err != nil || len(parts[2]) != 2 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
		}
	}
	return Clock(h*60 + m), nil
}

func parseClockField(s string, max int) (int, error) {
	if s == "" || len(s) > 2 {
		return 0, ErrInvalidClock
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > max {
		return 0, ErrInvalidClock
	}
	return n, nil
}

func (c Clock) Hour() int               { return int(c) / 60 }
func (c Clock) Minute() int             { return int(c) % 60 }
func (c Clock) Duration() time.Duration { return time.Duration(c) * time.Minute }
func (c Clock) String() string          { return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute()) }

// Span returns the length of the interval start..end. When end is not after
// start the interval is taken to cross midnight and end moves to the next day,
// so the result is always in (0, 24h].
func Span(start, end Clock) time.Duration {
	d := end.Duration() - start.Duration()
	if d <= 0 {
		d += 24 * time.Hour
	}
	return d
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

func StartOfMonth(year int, month time.Month) TimePoint { return NewTimePoint(year, month, 1) }

func EndOfMonth(year int, month time.Month) TimePoint {
	return DateOf(time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1))
}

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: month %q (use YYYY-MM)", ErrInvalidPeriod, s)
	}
	return t.Year(), t.Month(), nil
}
