package wage

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/wage-engine/generic"
)

// BreakTime is the derived break for one session. Never stored.
type BreakTime struct {
	Minutes int
	Paid    bool
}

func (b BreakTime) Hours() decimal.Decimal  { return generic.HoursFromMinutes(int64(b.Minutes)) }
func (b BreakTime) Duration() time.Duration { return time.Duration(b.Minutes) * time.Minute }

// CalculateBreakTime returns the break owed for a session of the given total
// length under the job's policy.
//
// The table is scanned linearly and the first covering row wins, so
// overlapping rows resolve by table order. Tables hold a handful of rows and
// authors rely on that ordering.
func CalculateBreakTime(worked time.Duration, policy BreakPolicy) BreakTime {
	if !policy.Enabled {
		return BreakTime{}
	}
	bt := BreakTime{Paid: policy.Paid}
	if r, ok := policy.Match(worked); ok {
		bt.Minutes = r.BreakMinutes
	}
	return bt
}

// Match returns the first row covering the duration.
func (p BreakPolicy) Match(worked time.Duration) (BreakRange, bool) {
	for _, r := range p.Ranges {
		if r.Covers(worked) {
			return r, true
		}
	}
	return BreakRange{}, false
}
