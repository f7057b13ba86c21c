package wage_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/warp/wage-engine/generic"
	"github.com/warp/wage-engine/wage"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(s string) generic.TimePoint {
	return generic.MustParseDate(s)
}

func hourly(id, jobID, day, start, end string) wage.Session {
	return wage.Session{
		ID:        wage.SessionID(id),
		UserID:    "user-1",
		JobID:     wage.JobID(jobID),
		Date:      date(day),
		StartTime: start,
		EndTime:   end,
		WageType:  wage.WageHourly,
	}
}

func rated(s wage.Session, rate string) wage.RatedSession {
	return wage.RatedSession{Session: s, HourlyRate: dec(rate)}
}

func absence(id, jobID, day string) wage.RatedSession {
	s := hourly(id, jobID, day, "", "")
	s.UnexcusedAbsence = true
	return wage.RatedSession{Session: s, HourlyRate: decimal.Zero}
}

// fifteenHourWeek is three 5.5h sessions (30m unpaid break each) at 10000/h
// on Mon-Wed of the given week: exactly 15 net hours, base wage 150000.
func fifteenHourWeek(jobID string, monday string) []wage.RatedSession {
	m := date(monday)
	var out []wage.RatedSession
	for i := 0; i < 3; i++ {
		d := m.AddDays(i).String()
		out = append(out, rated(hourly(jobID+"-"+d, jobID, d, "09:00", "14:30"), "10000"))
	}
	return out
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, what string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s: want %s, got %s", what, want, got)
	}
}

func assertPolicyErrorRow(t *testing.T, err error, row int) {
	t.Helper()
	require.ErrorIs(t, err, generic.ErrInvalidPolicy)
	var pe *generic.PolicyError
	require.True(t, errors.As(err, &pe))
	require.Equal(t, row, pe.Row)
}
