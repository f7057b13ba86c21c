/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the wage domain model from the external API contract, so engine types can
  change without breaking clients.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Jobs:      JobDTO (wraps factory.JobJSON), ValidateJobResponse
  Rates:     RateDTO, CreateRateRequest
  Sessions:  SessionDTO, SessionRequest, SessionWageDTO
  Reports:   MonthlyReportDTO, ReportLineDTO, JobSummaryDTO,
             WeeklyAllowanceDTO, MonthlyAllowanceDTO, ReportRunDTO
  Scenarios: ScenarioDTO, LoadScenarioRequest

  Money and hours are decimal strings ("12500", "7.5").

SEE ALSO:
  - handlers.go: Uses these types
  - factory/job.go: JobJSON type
*/
package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/wage-engine/factory"
	"github.com/warp/wage-engine/generic"
	"github.com/warp/wage-engine/store/sqlite"
	"github.com/warp/wage-engine/wage"
)

// =============================================================================
// JOBS
// =============================================================================

// JobDTO represents a job and its policy in API responses.
type JobDTO struct {
	factory.JobJSON
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// ValidateJobResponse is the result of POST /api/jobs/validate.
type ValidateJobResponse struct {
	Valid  bool   `json:"valid"`
	Error  string `json:"error,omitempty"`
	Row    *int   `json:"row,omitempty"` // offending break range, when known
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// =============================================================================
// RATES
// =============================================================================

// RateDTO is one hourly rate record.
type RateDTO struct {
	ID            string          `json:"id"`
	JobID         string          `json:"job_id"`
	Rate          decimal.Decimal `json:"rate"`
	EffectiveDate string          `json:"effective_date"`
	EndDate       *string         `json:"end_date,omitempty"`
}

// CreateRateRequest starts a new hourly rate.
type CreateRateRequest struct {
	Rate          decimal.Decimal `json:"rate"`
	EffectiveDate string          `json:"effective_date"`
}

// =============================================================================
// SESSIONS
// =============================================================================

// SessionRequest creates or previews a work session.
type SessionRequest struct {
	ID               string          `json:"id,omitempty"`
	JobID            string          `json:"job_id"`
	Date             string          `json:"date"`
	StartTime        string          `json:"start_time,omitempty"`
	EndTime          string          `json:"end_time,omitempty"`
	WageType         string          `json:"wage_type,omitempty"`
	FixedDailyWage   decimal.Decimal `json:"fixed_daily_wage"`
	MealAllowance    decimal.Decimal `json:"meal_allowance"`
	UnexcusedAbsence bool            `json:"unexcused_absence,omitempty"`
	Memo             string          `json:"memo,omitempty"`
}

// SessionDTO represents a stored work session.
type SessionDTO struct {
	ID               string          `json:"id"`
	JobID            string          `json:"job_id"`
	Date             string          `json:"date"`
	StartTime        string          `json:"start_time,omitempty"`
	EndTime          string          `json:"end_time,omitempty"`
	WageType         string          `json:"wage_type"`
	FixedDailyWage   decimal.Decimal `json:"fixed_daily_wage"`
	MealAllowance    decimal.Decimal `json:"meal_allowance"`
	UnexcusedAbsence bool            `json:"unexcused_absence"`
	Memo             string          `json:"memo,omitempty"`
	CreatedAt        string          `json:"created_at,omitempty"`
}

// SessionWageDTO is the priced breakdown of one session.
type SessionWageDTO struct {
	TotalMinutes         int64           `json:"total_minutes"`
	WorkMinutes          int64           `json:"work_minutes"`
	WorkHours            decimal.Decimal `json:"work_hours"`
	BreakMinutes         int             `json:"break_minutes"`
	BreakPaid            bool            `json:"break_paid"`
	HourlyRate           decimal.Decimal `json:"hourly_rate"`
	BaseWage             decimal.Decimal `json:"base_wage"`
	MealAllowance        decimal.Decimal `json:"meal_allowance"`
	Wage                 decimal.Decimal `json:"wage"`
	UnpaidBreakDeduction decimal.Decimal `json:"unpaid_break_deduction"`
}

// =============================================================================
// REPORTS
// =============================================================================

// ReportLineDTO is one priced session of a monthly report.
type ReportLineDTO struct {
	Session   SessionDTO     `json:"session"`
	JobName   string         `json:"job_name"`
	RateFound bool           `json:"rate_found"`
	Wage      SessionWageDTO `json:"wage"`
}

// JobSummaryDTO is a per-job subtotal.
type JobSummaryDTO struct {
	JobID        string          `json:"job_id"`
	JobName      string          `json:"job_name"`
	Sessions     int             `json:"sessions"`
	WorkHours    decimal.Decimal `json:"work_hours"`
	BreakMinutes int             `json:"break_minutes"`
	Wage         decimal.Decimal `json:"wage"`
}

// WeeklyAllowanceDTO is one job's weekly allowance evaluation.
type WeeklyAllowanceDTO struct {
	JobID               string          `json:"job_id"`
	WeekStart           string          `json:"week_start,omitempty"`
	WeekEnd             string          `json:"week_end,omitempty"`
	Eligible            bool            `json:"eligible"`
	Reason              string          `json:"reason,omitempty"`
	TotalWorkHours      decimal.Decimal `json:"total_work_hours"`
	TotalWage           decimal.Decimal `json:"total_wage"`
	AverageHourlyRate   decimal.Decimal `json:"average_hourly_rate"`
	AverageDailyHours   decimal.Decimal `json:"average_daily_hours"`
	AllowanceAmount     decimal.Decimal `json:"allowance_amount"`
	WorkDays            int             `json:"work_days"`
	HasUnexcusedAbsence bool            `json:"has_unexcused_absence"`
}

// JobAllowanceDTO is a job's allowance total for the month.
type JobAllowanceDTO struct {
	JobID   string          `json:"job_id"`
	JobName string          `json:"job_name"`
	Amount  decimal.Decimal `json:"amount"`
	Weeks   int             `json:"weeks"`
}

// MonthlyAllowanceDTO aggregates weekly allowances over a month.
type MonthlyAllowanceDTO struct {
	TotalAllowance decimal.Decimal      `json:"total_allowance"`
	EligibleWeeks  int                  `json:"eligible_weeks"`
	TotalWeeks     int                  `json:"total_weeks"`
	Jobs           []JobAllowanceDTO    `json:"jobs"`
	Weeks          []WeeklyAllowanceDTO `json:"weeks"`
}

// MonthlyReportDTO is the response of GET /api/reports/monthly.
type MonthlyReportDTO struct {
	UserID               string              `json:"user_id"`
	Month                string              `json:"month"`
	TotalWage            decimal.Decimal     `json:"total_wage"`
	TotalWorkHours       decimal.Decimal     `json:"total_work_hours"`
	TotalBreakMinutes    int                 `json:"total_break_minutes"`
	UnpaidBreakDeduction decimal.Decimal     `json:"unpaid_break_deduction"`
	TotalMealAllowance   decimal.Decimal     `json:"total_meal_allowance"`
	TotalIncome          decimal.Decimal     `json:"total_income"`
	MissingRates         int                 `json:"missing_rates"`
	Allowance            MonthlyAllowanceDTO `json:"weekly_allowance"`
	Jobs                 []JobSummaryDTO     `json:"jobs"`
	Lines                []ReportLineDTO     `json:"sessions"`
	GeneratedAt          string              `json:"generated_at,omitempty"`
}

// ReportRunDTO is one report warmer run.
type ReportRunDTO struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Month       string `json:"month"`
	Status      string `json:"status"`
	TotalIncome string `json:"total_income,omitempty"`
	Error       string `json:"error,omitempty"`
	StartedAt   string `json:"started_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// =============================================================================
// SCENARIOS / ERRORS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario and, optionally, its month.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
	Month      string `json:"month,omitempty"` // YYYY-MM, default current month
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toJobDTO(f *factory.JobFactory, job wage.Job) JobDTO {
	dto := JobDTO{JobJSON: f.ToJSON(job)}
	if !job.CreatedAt.IsZero() {
		dto.CreatedAt = job.CreatedAt.Format(time.RFC3339)
	}
	if !job.UpdatedAt.IsZero() {
		dto.UpdatedAt = job.UpdatedAt.Format(time.RFC3339)
	}
	return dto
}

func toRateDTO(r wage.HourlyRate) RateDTO {
	dto := RateDTO{
		ID:            string(r.ID),
		JobID:         string(r.JobID),
		Rate:          r.Rate,
		EffectiveDate: r.EffectiveDate.String(),
	}
	if r.EndDate != nil {
		end := r.EndDate.String()
		dto.EndDate = &end
	}
	return dto
}

func (req SessionRequest) toSession(userID string) (wage.Session, error) {
	date, err := generic.ParseDate(req.Date)
	if err != nil {
		return wage.Session{}, fmt.Errorf("%w: date %q (use YYYY-MM-DD)", generic.ErrInvalidSession, req.Date)
	}
	return wage.Session{
		ID:               wage.SessionID(req.ID),
		UserID:           userID,
		JobID:            wage.JobID(req.JobID),
		Date:             date,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		WageType:         wage.WageType(req.WageType),
		FixedDailyWage:   req.FixedDailyWage,
		MealAllowance:    req.MealAllowance,
		UnexcusedAbsence: req.UnexcusedAbsence,
		Memo:             req.Memo,
	}, nil
}

func toSessionDTO(s wage.Session) SessionDTO {
	dto := SessionDTO{
		ID:               string(s.ID),
		JobID:            string(s.JobID),
		Date:             s.Date.String(),
		StartTime:        s.StartTime,
		EndTime:          s.EndTime,
		WageType:         string(s.WageType),
		FixedDailyWage:   s.FixedDailyWage,
		MealAllowance:    s.MealAllowance,
		UnexcusedAbsence: s.UnexcusedAbsence,
		Memo:             s.Memo,
	}
	if !s.CreatedAt.IsZero() {
		dto.CreatedAt = s.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toSessionWageDTO(sw wage.SessionWage) SessionWageDTO {
	return SessionWageDTO{
		TotalMinutes:         generic.Minutes(sw.WorkTime.Total),
		WorkMinutes:          generic.Minutes(sw.WorkTime.Work),
		WorkHours:            sw.WorkTime.WorkHours(),
		BreakMinutes:         sw.WorkTime.Break.Minutes,
		BreakPaid:            sw.WorkTime.Break.Paid,
		HourlyRate:           sw.HourlyRate,
		BaseWage:             sw.BaseWage,
		MealAllowance:        sw.MealAllowance,
		Wage:                 sw.Wage,
		UnpaidBreakDeduction: sw.UnpaidBreakDeduction,
	}
}

func toWeeklyAllowanceDTO(w wage.WeeklyAllowance, week *generic.Period) WeeklyAllowanceDTO {
	dto := WeeklyAllowanceDTO{
		JobID:               string(w.JobID),
		Eligible:            w.Eligible,
		Reason:              string(w.Reason),
		TotalWorkHours:      w.TotalWorkHours,
		TotalWage:           w.TotalWage,
		AverageHourlyRate:   w.AverageHourlyRate,
		AverageDailyHours:   w.AverageDailyHours,
		AllowanceAmount:     w.AllowanceAmount,
		WorkDays:            w.WorkDays,
		HasUnexcusedAbsence: w.HasUnexcusedAbsence,
	}
	if week != nil {
		dto.WeekStart = week.Start.String()
		dto.WeekEnd = week.End.String()
	}
	return dto
}

func toMonthlyReportDTO(r wage.MonthlyReport) MonthlyReportDTO {
	dto := MonthlyReportDTO{
		UserID:               r.UserID,
		Month:                fmt.Sprintf("%04d-%02d", r.Year, int(r.Month)),
		TotalWage:            r.TotalWage,
		TotalWorkHours:       r.TotalWorkHours,
		TotalBreakMinutes:    r.TotalBreakMinutes,
		UnpaidBreakDeduction: r.UnpaidBreakDeduction,
		TotalMealAllowance:   r.TotalMealAllowance,
		TotalIncome:          r.TotalIncome,
		MissingRates:         r.MissingRates,
		Jobs:                 []JobSummaryDTO{},
		Lines:                []ReportLineDTO{},
		Allowance: MonthlyAllowanceDTO{
			TotalAllowance: r.Allowance.TotalAllowance,
			EligibleWeeks:  r.Allowance.EligibleWeeks,
			TotalWeeks:     r.Allowance.TotalWeeks,
			Jobs:           []JobAllowanceDTO{},
			Weeks:          []WeeklyAllowanceDTO{},
		},
	}
	if !r.GeneratedAt.IsZero() {
		dto.GeneratedAt = r.GeneratedAt.Format(time.RFC3339)
	}
	for _, j := range r.Jobs {
		dto.Jobs = append(dto.Jobs, JobSummaryDTO{
			JobID:        string(j.JobID),
			JobName:      j.JobName,
			Sessions:     j.Sessions,
			WorkHours:    j.WorkHours,
			BreakMinutes: j.BreakMinutes,
			Wage:         j.Wage,
		})
	}
	for _, l := range r.Lines {
		dto.Lines = append(dto.Lines, ReportLineDTO{
			Session:   toSessionDTO(l.Session),
			JobName:   l.JobName,
			RateFound: l.RateFound,
			Wage:      toSessionWageDTO(l.Wage),
		})
	}
	for _, ja := range r.Allowance.JobAllowances {
		dto.Allowance.Jobs = append(dto.Allowance.Jobs, JobAllowanceDTO{
			JobID:   string(ja.JobID),
			JobName: ja.JobName,
			Amount:  ja.Amount,
			Weeks:   ja.Weeks,
		})
	}
	for i := range r.Allowance.Weeks {
		week := r.Allowance.Weeks[i]
		for _, res := range week.Results {
			dto.Allowance.Weeks = append(dto.Allowance.Weeks, toWeeklyAllowanceDTO(res, &week.Week))
		}
	}
	return dto
}

func toReportRunDTO(run sqlite.ReportRun) ReportRunDTO {
	dto := ReportRunDTO{
		ID:          run.ID,
		UserID:      run.UserID,
		Month:       run.Month,
		Status:      run.Status,
		TotalIncome: run.TotalIncome,
		Error:       run.Error,
	}
	if run.StartedAt != nil {
		dto.StartedAt = run.StartedAt.Format(time.RFC3339)
	}
	if run.CompletedAt != nil {
		dto.CompletedAt = run.CompletedAt.Format(time.RFC3339)
	}
	return dto
}
