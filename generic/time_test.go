package generic_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/wage-engine/generic"
)

func date(year int, month time.Month, day int) generic.TimePoint {
	return generic.NewTimePoint(year, month, day)
}

// =============================================================================
// CLOCK PARSING
// =============================================================================

func TestParseClock_Valid(t *testing.T) {
	cases := map[string]generic.Clock{
		"00:00":    0,
		"09:00":    9 * 60,
		"9:05":     9*60 + 5,
		"23:59":    23*60 + 59,
		"14:30:00": 14*60 + 30,
		" 08:15 ":  8*60 + 15,
	}
	for in, want := range cases {
		got, err := generic.ParseClock(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseClock_Malformed(t *testing.T) {
	for _, in := range []string{"", "9", "24:00", "12:60", "12:5", "ab:cd", "12:30:7", "1:2:3:4", "-1:00", "123:00"} {
		_, err := generic.ParseClock(in)
		assert.True(t, errors.Is(err, generic.ErrInvalidClock), "expected ErrInvalidClock for %q, got %v", in, err)
	}
}

func TestSpan_RollsOverMidnight(t *testing.T) {
	// GIVEN: a night shift 22:00 - 02:00
	// WHEN: measuring the span
	// THEN: end moves to the next day, 4 hours
	start, _ := generic.ParseClock("22:00")
	end, _ := generic.ParseClock("02:00")
	assert.Equal(t, 4*time.Hour, generic.Span(start, end))
}

func TestSpan_EqualClocksIsFullDay(t *testing.T) {
	c, _ := generic.ParseClock("09:00")
	assert.Equal(t, 24*time.Hour, generic.Span(c, c))
}

// =============================================================================
// HOURS / CURRENCY
// =============================================================================

func TestHours_MinuteGranularity(t *testing.T) {
	assert.True(t, generic.Hours(4*time.Hour+30*time.Minute).Equal(decimal.RequireFromString("4.5")))
	assert.True(t, generic.Hours(5*time.Hour+59*time.Second).Equal(decimal.NewFromInt(5)), "seconds are truncated")
}

func TestRoundCurrency_HalfAwayFromZero(t *testing.T) {
	assert.Equal(t, "45001", generic.RoundCurrency(decimal.RequireFromString("45000.5")).String())
	assert.Equal(t, "45000", generic.RoundCurrency(decimal.RequireFromString("45000.49")).String())
}

// =============================================================================
// ISO WEEK / MONTH
// =============================================================================

func TestStartOfISOWeek(t *testing.T) {
	// 2025-03-12 is a Wednesday; its ISO week starts Monday 2025-03-10.
	assert.Equal(t, "2025-03-10", generic.StartOfISOWeek(date(2025, time.March, 12)).String())
	// Sunday belongs to the week that started six days earlier.
	assert.Equal(t, "2025-03-10", generic.StartOfISOWeek(date(2025, time.March, 16)).String())
	// Monday is its own week start.
	assert.Equal(t, "2025-03-17", generic.StartOfISOWeek(date(2025, time.March, 17)).String())
	assert.Equal(t, "2025-03-23", generic.EndOfISOWeek(date(2025, time.March, 17)).String())
}

func TestISOWeeksOverlapping_IncludesPartialBoundaryWeeks(t *testing.T) {
	// GIVEN: March 2025 runs Saturday 1st to Monday 31st
	// WHEN: listing overlapping ISO weeks
	// THEN: first week starts Mon Feb 24, last week ends Sun Apr 6
	weeks := generic.ISOWeeksOverlapping(2025, time.March)
	require.Len(t, weeks, 6)
	assert.Equal(t, "2025-02-24", weeks[0].Start.String())
	assert.Equal(t, "2025-03-02", weeks[0].End.String())
	assert.Equal(t, "2025-03-31", weeks[5].Start.String())
	assert.Equal(t, "2025-04-06", weeks[5].End.String())

	month := generic.MonthPeriod(2025, time.March)
	for _, w := range weeks {
		assert.True(t, month.Contains(w.Start) || month.Contains(w.End), "week %s should overlap March", w)
	}
}

func TestISOWeeksOverlapping_MonthStartingMonday(t *testing.T) {
	// September 2025 starts on a Monday and ends on a Tuesday.
	weeks := generic.ISOWeeksOverlapping(2025, time.September)
	require.Len(t, weeks, 5)
	assert.Equal(t, "2025-09-01", weeks[0].Start.String())
	assert.Equal(t, "2025-10-05", weeks[4].End.String())
}

func TestPeriod_ContainsIsInclusive(t *testing.T) {
	p := generic.ISOWeekPeriod(date(2025, time.March, 12))
	assert.True(t, p.Contains(date(2025, time.March, 10)))
	assert.True(t, p.Contains(date(2025, time.March, 16)))
	assert.False(t, p.Contains(date(2025, time.March, 17)))
	assert.False(t, p.Contains(date(2025, time.March, 9)))
}

func TestPeriod_UnionAndValidate(t *testing.T) {
	a := generic.Period{Start: date(2025, 3, 1), End: date(2025, 3, 31)}
	b := generic.Period{Start: date(2025, 2, 24), End: date(2025, 3, 2)}
	u := a.Union(b)
	assert.Equal(t, "[2025-02-24, 2025-03-31]", u.String())
	assert.NoError(t, u.Validate())

	bad := generic.Period{Start: date(2025, 3, 2), End: date(2025, 3, 1)}
	assert.ErrorIs(t, bad.Validate(), generic.ErrInvalidPeriod)
}

func TestTimePoint_JSONRoundTrip(t *testing.T) {
	tp := date(2025, time.March, 9)
	b, err := tp.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2025-03-09"`, string(b))

	var back generic.TimePoint
	require.NoError(t, back.UnmarshalJSON(b))
	assert.True(t, back.Equal(tp))
}

func TestParseMonth(t *testing.T) {
	y, m, err := generic.ParseMonth("2025-03")
	require.NoError(t, err)
	assert.Equal(t, 2025, y)
	assert.Equal(t, time.March, m)

	_, _, err = generic.ParseMonth("March")
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}
