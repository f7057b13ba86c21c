/*
Package wage implements the work-hours wage engine.

PURPOSE:
  Turns raw work sessions (date, start, end, job policy, hourly rate) into
  payable amounts: statutory break-time deduction, per-session wage,
  weekly attendance allowance, and monthly aggregation for reporting.

PIPELINE (data flows one way):
  session + job policy
    -> CalculateBreakTime          (breaktime.go)
    -> CalculateWorkAndBreakTime   (session.go)
    -> CalculateSessionWage        (session.go)
    -> CalculateWeeklyAllowance    (weekly.go)
    -> CalculateMonthlyWeeklyAllowance / BuildMonthlyReport (monthly.go, report.go)

  Every calculator is a pure function. Engine (engine.go) wraps them with a
  derivation cache that must be invalidated whenever a job policy or hourly
  rate changes.

KEY CONCEPTS IN THIS FILE (job.go):
  - Job: the employer/workplace a session is logged against, with its policy
  - BreakPolicy: ordered table of {MinHours, MaxHours, BreakMinutes} rows
  - WeeklyAllowancePolicy: on/off switch + minimum weekly hours (default 15)

SEE ALSO:
  - policies.go: preset job configurations
  - factory/job.go: JSON <-> Job conversion
*/
package wage

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/wage-engine/generic"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type JobID string
type SessionID string
type RateID string

// DefaultWeeklyAllowanceMinHours is the weekly threshold used when a job does
// not set one.
var DefaultWeeklyAllowanceMinHours = decimal.NewFromInt(15)

// =============================================================================
// JOB - Policy owner
// =============================================================================

// Job is a workplace the user logs sessions against. Its policy fields drive
// every derived value; editing them must be followed by Engine.PoliciesChanged.
type Job struct {
	ID     JobID
	UserID string
	Name   string
	Color  string

	// HourlyRateEligible marks jobs that are paid by the hour and therefore
	// need an hourly-rate history. Daily-wage-only jobs leave it false.
	HourlyRateEligible bool

	BreakTime       BreakPolicy
	WeeklyAllowance WeeklyAllowancePolicy

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BreakPolicy is the job's statutory break table.
type BreakPolicy struct {
	Enabled bool
	Paid    bool

	// Ranges are scanned in order and the first row with
	// MinHours <= duration < MaxHours wins. Rows need not be contiguous.
	Ranges []BreakRange
}

// BreakRange is one row of a break table.
type BreakRange struct {
	MinHours     decimal.Decimal
	MaxHours     decimal.Decimal
	BreakMinutes int
}

// WeeklyAllowancePolicy configures weekly attendance allowance eligibility.
type WeeklyAllowancePolicy struct {
	Enabled bool

	// MinHours is the weekly net-hours threshold. Zero means
	// DefaultWeeklyAllowanceMinHours.
	MinHours decimal.Decimal
}

// Threshold returns the effective minimum weekly hours.
func (p WeeklyAllowancePolicy) Threshold() decimal.Decimal {
	if p.MinHours.IsZero() {
		return DefaultWeeklyAllowanceMinHours
	}
	return p.MinHours
}

// Covers reports whether the worked duration falls in [MinHours, MaxHours).
// A malformed row (MaxHours <= MinHours) never matches.
func (r BreakRange) Covers(worked time.Duration) bool {
	h := generic.Hours(worked)
	return h.GreaterThanOrEqual(r.MinHours) && h.LessThan(r.MaxHours)
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the structural rules of a break table. The calculator
// tolerates malformed tables, so this must run before a table is persisted.
func (p BreakPolicy) Validate() error {
	for i, r := range p.Ranges {
		if r.MinHours.IsNegative() {
			return &generic.PolicyError{Row: i, Field: "min_hours", Reason: "must not be negative"}
		}
		if !r.MaxHours.GreaterThan(r.MinHours) {
			return &generic.PolicyError{Row: i, Field: "max_hours",
				Reason: fmt.Sprintf("must exceed min_hours (%s <= %s)", r.MaxHours, r.MinHours)}
		}
		if r.BreakMinutes < 0 {
			return &generic.PolicyError{Row: i, Field: "break_minutes", Reason: "must not be negative"}
		}
	}
	return nil
}

// Validate checks the whole job.
func (j Job) Validate() error {
	if strings.TrimSpace(j.Name) == "" {
		return &generic.PolicyError{Row: -1, Field: "name", Reason: "is required"}
	}
	if j.WeeklyAllowance.MinHours.IsNegative() {
		return &generic.PolicyError{Row: -1, Field: "weekly_allowance_min_hours", Reason: "must not be negative"}
	}
	return j.BreakTime.Validate()
}

// =============================================================================
// FINGERPRINTS - Stable cache keys over policy fields
// =============================================================================

// Fingerprint renders every field the break calculator reads.
func (p BreakPolicy) Fingerprint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "e=%t;p=%t", p.Enabled, p.Paid)
	for _, r := range p.Ranges {
		fmt.Fprintf(&b, ";%s-%s:%d", r.MinHours, r.MaxHours, r.BreakMinutes)
	}
	return b.String()
}

// PolicyFingerprint renders every field the weekly allowance calculator reads.
func (j Job) PolicyFingerprint() string {
	return fmt.Sprintf("job=%s;wa=%t/%s;bt=%s",
		j.ID, j.WeeklyAllowance.Enabled, j.WeeklyAllowance.Threshold(), j.BreakTime.Fingerprint())
}
