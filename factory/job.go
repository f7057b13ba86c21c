/*
Package factory provides JSON to Go job-policy conversion.

PURPOSE:
  Converts JSON job definitions into wage.Job values and back. The same shape
  is accepted by the API, stored in the jobs.config_json column, and read by
  `wagectl validate`, so a policy can be edited without code changes.

JSON SCHEMA:
  {
    "id": "cafe",
    "name": "Cafe",
    "color": "#ff8800",
    "hourly_rate_eligible": true,
    "break_time": {
      "enabled": true,
      "paid": false,
      "ranges": [
        {"min_hours": 4, "max_hours": 8,  "break_minutes": 30},
        {"min_hours": 8, "max_hours": 24, "break_minutes": 60}
      ]
    },
    "weekly_allowance": {"enabled": true, "min_hours": 15}
  }

KEY FEATURES:
  - Validates structure (wage.Job.Validate) on every parse
  - Missing weekly min_hours falls back to the 15 hour default
  - Range order is preserved; it decides overlapping matches

USAGE:
  f := factory.NewJobFactory()
  job, err := f.ParseJob(jsonString)

SEE ALSO:
  - wage/job.go: Job type and validation
  - wage/policies.go: Go-based preset configurations
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/wage-engine/generic"
	"github.com/warp/wage-engine/wage"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// JobJSON is the JSON representation of a job and its policy.
type JobJSON struct {
	ID                 string              `json:"id,omitempty"`
	UserID             string              `json:"user_id,omitempty"`
	Name               string              `json:"name"`
	Color              string              `json:"color,omitempty"`
	HourlyRateEligible bool                `json:"hourly_rate_eligible"`
	BreakTime          BreakPolicyJSON     `json:"break_time"`
	WeeklyAllowance    WeeklyAllowanceJSON `json:"weekly_allowance"`
}

// BreakPolicyJSON is a break-time table.
type BreakPolicyJSON struct {
	Enabled bool             `json:"enabled"`
	Paid    bool             `json:"paid"`
	Ranges  []BreakRangeJSON `json:"ranges,omitempty"`
}

// BreakRangeJSON is one row of a break-time table.
type BreakRangeJSON struct {
	MinHours     float64 `json:"min_hours"`
	MaxHours     float64 `json:"max_hours"`
	BreakMinutes int     `json:"break_minutes"`
}

// WeeklyAllowanceJSON configures the weekly allowance.
type WeeklyAllowanceJSON struct {
	Enabled  bool     `json:"enabled"`
	MinHours *float64 `json:"min_hours,omitempty"` // default 15
}

// =============================================================================
// JOB FACTORY
// =============================================================================

// JobFactory converts JSON jobs to Go structs.
type JobFactory struct{}

// NewJobFactory creates a new job factory.
func NewJobFactory() *JobFactory {
	return &JobFactory{}
}

// ParseJob parses and validates a JSON job definition.
func (f *JobFactory) ParseJob(jsonStr string) (wage.Job, error) {
	var jj JobJSON
	if err := json.Unmarshal([]byte(jsonStr), &jj); err != nil {
		return wage.Job{}, fmt.Errorf("%w: %v", generic.ErrInvalidPolicy, err)
	}
	return f.FromJSON(jj)
}

// FromJSON converts a decoded JobJSON and validates the result.
func (f *JobFactory) FromJSON(jj JobJSON) (wage.Job, error) {
	job := wage.Job{
		ID:                 wage.JobID(jj.ID),
		UserID:             jj.UserID,
		Name:               jj.Name,
		Color:              jj.Color,
		HourlyRateEligible: jj.HourlyRateEligible,
		BreakTime: wage.BreakPolicy{
			Enabled: jj.BreakTime.Enabled,
			Paid:    jj.BreakTime.Paid,
		},
		WeeklyAllowance: wage.WeeklyAllowancePolicy{
			Enabled:  jj.WeeklyAllowance.Enabled,
			MinHours: wage.DefaultWeeklyAllowanceMinHours,
		},
	}
	for _, r := range jj.BreakTime.Ranges {
		job.BreakTime.Ranges = append(job.BreakTime.Ranges, wage.BreakRange{
			MinHours:     decimal.NewFromFloat(r.MinHours),
			MaxHours:     decimal.NewFromFloat(r.MaxHours),
			BreakMinutes: r.BreakMinutes,
		})
	}
	if jj.WeeklyAllowance.MinHours != nil {
		job.WeeklyAllowance.MinHours = decimal.NewFromFloat(*jj.WeeklyAllowance.MinHours)
	}

	if err := job.Validate(); err != nil {
		return wage.Job{}, err
	}
	return job, nil
}

// ToJSON converts a job to its JSON shape.
func (f *JobFactory) ToJSON(job wage.Job) JobJSON {
	minHours := job.WeeklyAllowance.Threshold().InexactFloat64()
	jj := JobJSON{
		ID:                 string(job.ID),
		UserID:             job.UserID,
		Name:               job.Name,
		Color:              job.Color,
		HourlyRateEligible: job.HourlyRateEligible,
		BreakTime: BreakPolicyJSON{
			Enabled: job.BreakTime.Enabled,
			Paid:    job.BreakTime.Paid,
		},
		WeeklyAllowance: WeeklyAllowanceJSON{
			Enabled:  job.WeeklyAllowance.Enabled,
			MinHours: &minHours,
		},
	}
	for _, r := range job.BreakTime.Ranges {
		jj.BreakTime.Ranges = append(jj.BreakTime.Ranges, BreakRangeJSON{
			MinHours:     r.MinHours.InexactFloat64(),
			MaxHours:     r.MaxHours.InexactFloat64(),
			BreakMinutes: r.BreakMinutes,
		})
	}
	return jj
}

// Marshal renders a job as a JSON string.
func (f *JobFactory) Marshal(job wage.Job) (string, error) {
	b, err := json.Marshal(f.ToJSON(job))
	if err != nil {
		return "", fmt.Errorf("marshal job %s: %w", job.ID, err)
	}
	return string(b), nil
}

// =============================================================================
// PRESETS
// =============================================================================

// StatutoryJobJSON returns the JSON of wage.StatutoryJob with the given
// weekly threshold.
func StatutoryJobJSON(id, name string, weeklyMinHours float64) string {
	return fmt.Sprintf(`{
		"id": %q,
		"name": %q,
		"hourly_rate_eligible": true,
		"break_time": {
			"enabled": true,
			"paid": false,
			"ranges": [
				{"min_hours": 4, "max_hours": 8, "break_minutes": 30},
				{"min_hours": 8, "max_hours": 24, "break_minutes": 60}
			]
		},
		"weekly_allowance": {"enabled": true, "min_hours": %g}
	}`, id, name, weeklyMinHours)
}
