/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	jobs, rates and sessions for one user and one month. Each scenario
	demonstrates a specific part of the wage rules.

AVAILABLE SCENARIOS:

	part-time-cafe:  Statutory breaks, Mon/Wed/Fri shifts, weekly allowance
	two-jobs:        Cafe plus overnight warehouse shifts with a paid break,
	                 one unexcused absence voiding a week's allowance
	daily-wage:      Fixed daily wage with meal allowance, no breaks
	rate-change:     Hourly rate raised mid-month

HOW SCENARIOS WORK:
 1. Delete the user's existing jobs (cascades rates and sessions)
 2. Create jobs through the service (policy validation + invalidation)
 3. Add hourly rates
 4. Add sessions for the requested month

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "two-jobs", "month": "2025-03"}

NOTE:

	Scenarios wipe the acting user's data. Only use in development/demo
	environments.

SEE ALSO:
  - handlers.go: Handler and error mapping
  - wage/policies.go: Preset jobs
  - factory/job.go: StatutoryJobJSON
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/wage-engine/factory"
	"github.com/warp/wage-engine/generic"
	"github.com/warp/wage-engine/wage"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "part-time-cafe",
		Name:        "Part-Time Cafe",
		Description: "Statutory 30-minute break, three 5.5h shifts a week, weekly allowance",
	},
	{
		ID:          "two-jobs",
		Name:        "Two Jobs",
		Description: "Cafe plus overnight warehouse shifts with a paid break; one unexcused absence",
	},
	{
		ID:          "daily-wage",
		Name:        "Daily Wage",
		Description: "Weekend event work paid per day with a meal allowance",
	},
	{
		ID:          "rate-change",
		Name:        "Mid-Month Raise",
		Description: "Weekday shifts with the hourly rate raised on the 15th",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the scenario last loaded for the user, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario[userID(r)]
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario replaces the user's data with a demo scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	today := h.today()
	year, month := today.Year(), today.Month()
	if req.Month != "" {
		var err error
		if year, month, err = generic.ParseMonth(req.Month); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid month", err)
			return
		}
	}

	user := userID(r)
	if err := h.loadScenario(r.Context(), user, req.ScenarioID, year, month); err != nil {
		if errors.Is(err, errUnknownScenario) {
			writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("%s", req.ScenarioID))
			return
		}
		h.writeDomainError(w, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario[user] = req.ScenarioID
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": req.ScenarioID,
		"month":    fmt.Sprintf("%04d-%02d", year, int(month)),
	})
}

var errUnknownScenario = errors.New("unknown scenario")

func (h *Handler) loadScenario(ctx context.Context, user, id string, year int, month time.Month) error {
	var load func(context.Context, scenarioBuilder) error
	switch id {
	case "part-time-cafe":
		load = loadPartTimeCafe
	case "two-jobs":
		load = loadTwoJobs
	case "daily-wage":
		load = loadDailyWage
	case "rate-change":
		load = loadRateChange
	default:
		return errUnknownScenario
	}

	if err := h.clearUser(ctx, user); err != nil {
		return err
	}
	b := scenarioBuilder{h: h, user: user, year: year, month: month}
	if err := load(ctx, b); err != nil {
		return fmt.Errorf("scenario %s: %w", id, err)
	}
	h.Logger.Info().Str("scenario", id).Str("user_id", user).
		Int("year", year).Int("month", int(month)).Msg("scenario loaded")
	return nil
}

func (h *Handler) clearUser(ctx context.Context, user string) error {
	jobs, err := h.Service.Store.ListJobs(ctx, user)
	if err != nil {
		return err
	}
	for _, j := range jobs {
		if err := h.Service.DeleteJob(ctx, user, j.ID); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// SCENARIO BUILDER
// =============================================================================

type scenarioBuilder struct {
	h     *Handler
	user  string
	year  int
	month time.Month
}

func (b scenarioBuilder) job(ctx context.Context, job wage.Job) (wage.Job, error) {
	job.ID = ""
	job.UserID = b.user
	return b.h.Service.SaveJob(ctx, job)
}

func (b scenarioBuilder) rate(ctx context.Context, job wage.Job, amount int64, effective generic.TimePoint) error {
	_, err := b.h.Service.AddRate(ctx, b.user, job.ID, decimal.NewFromInt(amount), effective)
	return err
}

func (b scenarioBuilder) session(ctx context.Context, s wage.Session) error {
	s.UserID = b.user
	_, err := b.h.Service.SaveSession(ctx, s)
	return err
}

// days returns the dates of the month falling on one of the weekdays.
func (b scenarioBuilder) days(weekdays ...time.Weekday) []generic.TimePoint {
	var out []generic.TimePoint
	for _, d := range generic.MonthPeriod(b.year, b.month).Days() {
		for _, wd := range weekdays {
			if d.Weekday() == wd {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

// rateStart is early enough to cover the ISO weeks around the month.
func (b scenarioBuilder) rateStart() generic.TimePoint {
	return generic.StartOfMonth(b.year, b.month).AddMonths(-1)
}

func hourlySession(job wage.Job, date generic.TimePoint, start, end string) wage.Session {
	return wage.Session{JobID: job.ID, Date: date, StartTime: start, EndTime: end, WageType: wage.WageHourly}
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadPartTimeCafe(ctx context.Context, b scenarioBuilder) error {
	cafe, err := b.h.Jobs.ParseJob(factory.StatutoryJobJSON("", "Corner Cafe", 15))
	if err != nil {
		return err
	}
	if cafe, err = b.job(ctx, cafe); err != nil {
		return err
	}
	if err := b.rate(ctx, cafe, 10000, b.rateStart()); err != nil {
		return err
	}
	for _, d := range b.days(time.Monday, time.Wednesday, time.Friday) {
		if err := b.session(ctx, hourlySession(cafe, d, "09:00", "14:30")); err != nil {
			return err
		}
	}
	return nil
}

func loadTwoJobs(ctx context.Context, b scenarioBuilder) error {
	cafe, err := b.job(ctx, wage.StatutoryJob("", "Corner Cafe"))
	if err != nil {
		return err
	}
	warehouse, err := b.job(ctx, wage.FixedBreakJob("", "Night Warehouse", 8, 60, true))
	if err != nil {
		return err
	}
	if err := b.rate(ctx, cafe, 10000, b.rateStart()); err != nil {
		return err
	}
	if err := b.rate(ctx, warehouse, 13000, b.rateStart()); err != nil {
		return err
	}

	cafeDays := b.days(time.Monday, time.Wednesday, time.Friday)
	for i, d := range cafeDays {
		s := hourlySession(cafe, d, "09:00", "14:30")
		if i == 4 {
			s = wage.Session{JobID: cafe.ID, Date: d, WageType: wage.WageHourly, UnexcusedAbsence: true, Memo: "no show"}
		}
		if err := b.session(ctx, s); err != nil {
			return err
		}
	}
	for _, d := range b.days(time.Tuesday, time.Thursday) {
		if err := b.session(ctx, hourlySession(warehouse, d, "22:00", "06:00")); err != nil {
			return err
		}
	}
	return nil
}

func loadDailyWage(ctx context.Context, b scenarioBuilder) error {
	events, err := b.job(ctx, wage.DailyJob("", "Event Staff"))
	if err != nil {
		return err
	}
	for _, d := range b.days(time.Saturday, time.Sunday) {
		s := wage.Session{
			JobID:          events.ID,
			Date:           d,
			StartTime:      "10:00",
			EndTime:        "19:00",
			WageType:       wage.WageDaily,
			FixedDailyWage: decimal.NewFromInt(120000),
			MealAllowance:  decimal.NewFromInt(10000),
		}
		if err := b.session(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func loadRateChange(ctx context.Context, b scenarioBuilder) error {
	shop, err := b.job(ctx, wage.StatutoryJob("", "Book Shop"))
	if err != nil {
		return err
	}
	if err := b.rate(ctx, shop, 10000, b.rateStart()); err != nil {
		return err
	}
	if err := b.rate(ctx, shop, 11000, generic.NewTimePoint(b.year, b.month, 15)); err != nil {
		return err
	}
	weekdays := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	for _, d := range b.days(weekdays...) {
		if err := b.session(ctx, hourlySession(shop, d, "10:00", "14:00")); err != nil {
			return err
		}
	}
	return nil
}
