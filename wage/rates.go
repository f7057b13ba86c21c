package wage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/wage-engine/generic"
)

// =============================================================================
// HOURLY RATE TIMELINE
// =============================================================================

// HourlyRate is one entry of a job's rate history. Entries for a job never
// overlap, so at most one is active on any date.
type HourlyRate struct {
	ID            RateID
	JobID         JobID
	Rate          decimal.Decimal
	EffectiveDate generic.TimePoint
	EndDate       *generic.TimePoint // nil = open-ended
}

// ActiveOn reports whether the record covers date.
func (r HourlyRate) ActiveOn(date generic.TimePoint) bool {
	if r.EffectiveDate.After(date) {
		return false
	}
	return r.EndDate == nil || r.EndDate.AfterOrEqual(date)
}

// ActiveRate picks the record with the latest EffectiveDate <= date whose
// EndDate is open or covers date.
func ActiveRate(rates []HourlyRate, date generic.TimePoint) (HourlyRate, bool) {
	var best HourlyRate
	found := false
	for _, r := range rates {
		if !r.ActiveOn(date) {
			continue
		}
		if !found || r.EffectiveDate.After(best.EffectiveDate) {
			best, found = r, true
		}
	}
	return best, found
}

// ValidateTimeline checks that no two records of the same job overlap.
func ValidateTimeline(rates []HourlyRate) error {
	sorted := sortedByEffective(rates)
	for i, r := range sorted {
		if !r.Rate.IsPositive() {
			return fmt.Errorf("%w: record %s has rate %s", generic.ErrInvalidRate, r.ID, r.Rate)
		}
		if r.EndDate != nil && r.EndDate.Before(r.EffectiveDate) {
			return fmt.Errorf("%w: record %s", generic.ErrInvalidPeriod, r.ID)
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		if prev.JobID != r.JobID {
			continue
		}
		if prev.EndDate == nil || prev.EndDate.AfterOrEqual(r.EffectiveDate) {
			return &generic.RateOverlapError{JobID: string(r.JobID), EffectiveDate: r.EffectiveDate, ConflictsWith: string(prev.ID)}
		}
	}
	return nil
}

// InsertRate appends next to a job's history. The currently open record is
// closed on the day before next takes effect. next must start after every
// existing record.
func InsertRate(rates []HourlyRate, next HourlyRate) ([]HourlyRate, error) {
	if !next.Rate.IsPositive() {
		return nil, fmt.Errorf("%w: %s", generic.ErrInvalidRate, next.Rate)
	}
	out := make([]HourlyRate, 0, len(rates)+1)
	for _, r := range rates {
		if r.JobID != next.JobID {
			out = append(out, r)
			continue
		}
		if !r.EffectiveDate.Before(next.EffectiveDate) {
			return nil, &generic.RateOverlapError{JobID: string(next.JobID), EffectiveDate: next.EffectiveDate, ConflictsWith: string(r.ID)}
		}
		if r.EndDate == nil || r.EndDate.AfterOrEqual(next.EffectiveDate) {
			closed := next.EffectiveDate.AddDays(-1)
			r.EndDate = &closed
		}
		out = append(out, r)
	}
	out = append(out, next)
	if err := ValidateTimeline(out); err != nil {
		return nil, err
	}
	return out, nil
}

func sortedByEffective(rates []HourlyRate) []HourlyRate {
	sorted := append([]HourlyRate(nil), rates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].JobID != sorted[j].JobID {
			return sorted[i].JobID < sorted[j].JobID
		}
		return sorted[i].EffectiveDate.Before(sorted[j].EffectiveDate)
	})
	return sorted
}

// =============================================================================
// RATE RESOLUTION
// =============================================================================

// RatedSession is a session paired with the hourly rate active on its date.
// The weekly and monthly calculators only ever see rated sessions.
type RatedSession struct {
	Session
	HourlyRate decimal.Decimal
}

// RateSource resolves the single active rate for a job on a date.
type RateSource interface {
	// ActiveRate returns generic.ErrRateNotFound when nothing covers date.
	ActiveRate(ctx context.Context, jobID JobID, date generic.TimePoint) (HourlyRate, error)
}

// ResolveRates attaches rates to hourly sessions, memoizing lookups per
// (job, date). Daily sessions pass through with a zero rate. Hourly sessions
// with no active rate are returned in missing and still included in rated
// with a zero rate, so absence flags keep counting.
func ResolveRates(ctx context.Context, sessions []Session, src RateSource) (rated []RatedSession, missing []Session, err error) {
	type key struct {
		job  JobID
		date string
	}
	memo := make(map[key]decimal.Decimal)
	rated = make([]RatedSession, 0, len(sessions))

	for _, s := range sessions {
		if !s.IsHourly() {
			rated = append(rated, RatedSession{Session: s, HourlyRate: decimal.Zero})
			continue
		}
		k := key{job: s.JobID, date: s.Date.String()}
		rate, ok := memo[k]
		if !ok {
			hr, lookupErr := src.ActiveRate(ctx, s.JobID, s.Date)
			switch {
			case lookupErr == nil:
				rate = hr.Rate
			case isRateNotFound(lookupErr):
				rate = decimal.Zero
			default:
				return nil, nil, fmt.Errorf("resolve rate for job %s on %s: %w", s.JobID, s.Date, lookupErr)
			}
			memo[k] = rate
		}
		if !rate.IsPositive() && s.HasTimes() {
			missing = append(missing, s)
		}
		rated = append(rated, RatedSession{Session: s, HourlyRate: rate})
	}
	return rated, missing, nil
}

// Timeline is an in-memory RateSource over a fixed history.
type Timeline []HourlyRate

func (t Timeline) ActiveRate(_ context.Context, jobID JobID, date generic.TimePoint) (HourlyRate, error) {
	var forJob []HourlyRate
	for _, r := range t {
		if r.JobID == jobID {
			forJob = append(forJob, r)
		}
	}
	if r, ok := ActiveRate(forJob, date); ok {
		return r, nil
	}
	return HourlyRate{}, generic.ErrRateNotFound
}

func isRateNotFound(err error) bool {
	return errors.Is(err, generic.ErrRateNotFound)
}
