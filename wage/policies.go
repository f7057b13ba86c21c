package wage

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// PRESET POLICIES
// =============================================================================

// StatutoryBreakRanges is the common labour-law table: 30 minutes from 4
// hours, 60 minutes from 8 hours.
func StatutoryBreakRanges() []BreakRange {
	return []BreakRange{
		{MinHours: decimal.NewFromInt(4), MaxHours: decimal.NewFromInt(8), BreakMinutes: 30},
		{MinHours: decimal.NewFromInt(8), MaxHours: decimal.NewFromInt(24), BreakMinutes: 60},
	}
}

// StatutoryJob is an hourly job with an unpaid statutory break and the
// weekly allowance at the default threshold.
func StatutoryJob(id JobID, name string) Job {
	return Job{
		ID:                 id,
		Name:               name,
		HourlyRateEligible: true,
		BreakTime: BreakPolicy{
			Enabled: true,
			Ranges:  StatutoryBreakRanges(),
		},
		WeeklyAllowance: WeeklyAllowancePolicy{
			Enabled:  true,
			MinHours: DefaultWeeklyAllowanceMinHours,
		},
	}
}

// FixedBreakJob gives the same break to any session of at least minHours.
func FixedBreakJob(id JobID, name string, minHours int64, breakMinutes int, paid bool) Job {
	return Job{
		ID:                 id,
		Name:               name,
		HourlyRateEligible: true,
		BreakTime: BreakPolicy{
			Enabled: true,
			Paid:    paid,
			Ranges: []BreakRange{
				{MinHours: decimal.NewFromInt(minHours), MaxHours: decimal.NewFromInt(24), BreakMinutes: breakMinutes},
			},
		},
	}
}

// DailyJob is paid per day; no break deduction and no weekly allowance.
func DailyJob(id JobID, name string) Job {
	return Job{ID: id, Name: name}
}
