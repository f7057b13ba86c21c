/*
Package generic provides the calendar and arithmetic primitives of the wage engine.

PURPOSE:
  This package contains the domain-agnostic building blocks the wage
  calculators are written against: calendar dates, wall-clock readings,
  ISO weeks and months as periods, hour/currency arithmetic, and the error
  taxonomy. It knows nothing about jobs, break policies or allowances.

KEY CONCEPTS IN THIS FILE (types.go):
  - Hours: time.Duration converted to fractional hours (decimal)
  - RoundCurrency: the single rounding step applied to money
  - Minute granularity: durations are whole minutes; hours = minutes / 60

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal so sums of fractional hours do not drift
  2. Round once: money is rounded to whole currency units only at the end
  3. Calendar dates: dates compare by day, never by instant

USAGE:
  h := generic.Hours(4*time.Hour + 30*time.Minute)   // 4.5
  pay := generic.RoundCurrency(h.Mul(decimal.NewFromInt(10000)))

SEE ALSO:
  - time.go: TimePoint, Clock, ISO week helpers
  - period.go: Period and the week/month calculators
  - errors.go: Sentinel and structured errors
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// HOURS - Minute-granular durations as decimal hours
// =============================================================================

var (
	sixty       = decimal.NewFromInt(60)
	minutesHour = int64(time.Hour / time.Minute)
)

// Minutes returns the whole minutes in d (truncated).
func Minutes(d time.Duration) int64 {
	return int64(d / time.Minute)
}

// Hours converts a duration to fractional hours at minute granularity.
func Hours(d time.Duration) decimal.Decimal {
	return HoursFromMinutes(Minutes(d))
}

// HoursFromMinutes converts whole minutes to fractional hours.
func HoursFromMinutes(minutes int64) decimal.Decimal {
	if minutes%minutesHour == 0 {
		return decimal.NewFromInt(minutes / minutesHour)
	}
	return decimal.NewFromInt(minutes).Div(sixty)
}

// =============================================================================
// CURRENCY
// =============================================================================

// RoundCurrency rounds to whole currency units, half away from zero.
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}
