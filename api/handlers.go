/*
handlers.go - HTTP API handlers for the wage engine

PURPOSE:
  Exposes the wage service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to wage.Service.

ENDPOINTS:
  Jobs:
    GET    /api/jobs                      List the user's jobs
    POST   /api/jobs                      Create job from JSON
    POST   /api/jobs/validate             Validate a job policy without saving
    GET    /api/jobs/{id}                 Get job
    PUT    /api/jobs/{id}                 Replace job policy
    DELETE /api/jobs/{id}                 Delete job (cascades rates/sessions)

  Rates:
    GET    /api/jobs/{id}/rates           Rate history
    POST   /api/jobs/{id}/rates           Start a new rate
    GET    /api/jobs/{id}/rates/active    Rate active on ?date=

  Sessions:
    GET    /api/sessions                  List (?from=&to=&job_id=)
    POST   /api/sessions                  Create or update
    POST   /api/sessions/preview          Price without saving
    GET    /api/sessions/{id}             Get session
    DELETE /api/sessions/{id}             Delete session

  Reports:
    GET    /api/reports/monthly           ?year=&month=
    GET    /api/reports/monthly/export    Same, as .xlsx
    GET    /api/reports/weekly            ?job_id=&date=
    GET    /api/reports/runs              Report warmer runs
    POST   /api/policies/changed          Drop every derived value

USER SCOPING:
  The X-User-ID header selects the user (default "local"). There is no
  authentication; a job or session owned by another user is reported as
  not found.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: generic.IsClientError (invalid clock, policy, session, rate, period)
  - 404: generic.IsNotFound, or no active rate on the rates/active endpoint
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/warp/wage-engine/export"
	"github.com/warp/wage-engine/factory"
	"github.com/warp/wage-engine/generic"
	"github.com/warp/wage-engine/store/sqlite"
	"github.com/warp/wage-engine/wage"
)

// UserHeader carries the acting user.
const UserHeader = "X-User-ID"

// DefaultUser is used when UserHeader is absent.
const DefaultUser = "local"

const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// ReportRunStore lists and records report warmer runs.
type ReportRunStore interface {
	SaveReportRun(ctx context.Context, r sqlite.ReportRun) error
	GetReportRuns(ctx context.Context, status string) ([]sqlite.ReportRun, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *wage.Service
	Jobs    *factory.JobFactory
	Runs    ReportRunStore // optional
	Logger  zerolog.Logger

	now func() time.Time

	// Track currently loaded scenario per user
	mu              sync.Mutex
	currentScenario map[string]string
}

// NewHandler creates a new handler over the service. runs may be nil.
func NewHandler(svc *wage.Service, runs ReportRunStore, logger zerolog.Logger) *Handler {
	return &Handler{
		Service:         svc,
		Jobs:            factory.NewJobFactory(),
		Runs:            runs,
		Logger:          logger.With().Str("component", "api").Logger(),
		now:             time.Now,
		currentScenario: make(map[string]string),
	}
}

func (h *Handler) today() generic.TimePoint {
	if h.now == nil {
		return generic.Today()
	}
	return generic.DateOf(h.now())
}

func userID(r *http.Request) string {
	if u := r.Header.Get(UserHeader); u != "" {
		return u
	}
	return DefaultUser
}

// =============================================================================
// JOB HANDLERS
// =============================================================================

// ListJobs returns the user's jobs.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Service.Store.ListJobs(r.Context(), userID(r))
	if err != nil {
		h.writeDomainError(w, "Failed to list jobs", err)
		return
	}
	dtos := make([]JobDTO, len(jobs))
	for i, j := range jobs {
		dtos[i] = toJobDTO(h.Jobs, j)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetJob returns a single job.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.Service.Job(r.Context(), userID(r), wage.JobID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Failed to get job", err)
		return
	}
	writeJSON(w, http.StatusOK, toJobDTO(h.Jobs, job))
}

// CreateJob creates a job from its JSON policy.
// POST /api/jobs
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req factory.JobJSON
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.UserID = userID(r)

	job, err := h.Jobs.FromJSON(req)
	if err != nil {
		h.writeDomainError(w, "Invalid job policy", err)
		return
	}
	saved, err := h.Service.SaveJob(r.Context(), job)
	if err != nil {
		h.writeDomainError(w, "Failed to create job", err)
		return
	}
	writeJSON(w, http.StatusCreated, toJobDTO(h.Jobs, saved))
}

// UpdateJob replaces a job's policy. The derivation cache is dropped.
// PUT /api/jobs/{id}
func (h *Handler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userID(r)
	id := wage.JobID(chi.URLParam(r, "id"))
	if _, err := h.Service.Job(ctx, user, id); err != nil {
		h.writeDomainError(w, "Failed to get job", err)
		return
	}

	var req factory.JobJSON
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.ID = string(id)
	req.UserID = user

	job, err := h.Jobs.FromJSON(req)
	if err != nil {
		h.writeDomainError(w, "Invalid job policy", err)
		return
	}
	saved, err := h.Service.SaveJob(ctx, job)
	if err != nil {
		h.writeDomainError(w, "Failed to update job", err)
		return
	}
	writeJSON(w, http.StatusOK, toJobDTO(h.Jobs, saved))
}

// DeleteJob removes a job with its rates and sessions.
func (h *Handler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	id := wage.JobID(chi.URLParam(r, "id"))
	if err := h.Service.DeleteJob(r.Context(), userID(r), id); err != nil {
		h.writeDomainError(w, "Failed to delete job", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ValidateJob checks a job policy and reports the offending break range.
// POST /api/jobs/validate
func (h *Handler) ValidateJob(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if _, err := h.Jobs.ParseJob(string(body)); err != nil {
		resp := ValidateJobResponse{Valid: false, Error: err.Error()}
		var pe *generic.PolicyError
		if errors.As(err, &pe) {
			if pe.Row >= 0 {
				row := pe.Row
				resp.Row = &row
			}
			resp.Field = pe.Field
			resp.Reason = pe.Reason
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}
	writeJSON(w, http.StatusOK, ValidateJobResponse{Valid: true})
}

// =============================================================================
// RATE HANDLERS
// =============================================================================

// ListRates returns a job's rate history.
func (h *Handler) ListRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.Service.Rates(r.Context(), userID(r), wage.JobID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Failed to list rates", err)
		return
	}
	dtos := make([]RateDTO, len(rates))
	for i, rate := range rates {
		dtos[i] = toRateDTO(rate)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRate starts a new hourly rate, closing the open one.
// POST /api/jobs/{id}/rates
func (h *Handler) CreateRate(w http.ResponseWriter, r *http.Request) {
	var req CreateRateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	effective, err := generic.ParseDate(req.EffectiveDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective_date format (use YYYY-MM-DD)", err)
		return
	}

	rate, err := h.Service.AddRate(r.Context(), userID(r), wage.JobID(chi.URLParam(r, "id")), req.Rate, effective)
	if err != nil {
		h.writeDomainError(w, "Failed to add rate", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRateDTO(rate))
}

// GetActiveRate returns the rate active on ?date= (default today).
func (h *Handler) GetActiveRate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	date, ok := h.dateParam(w, r, "date")
	if !ok {
		return
	}
	job, err := h.Service.Job(ctx, userID(r), wage.JobID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Failed to get job", err)
		return
	}
	rate, err := h.Service.Store.ActiveRate(ctx, job.ID, date)
	if errors.Is(err, generic.ErrRateNotFound) {
		writeError(w, http.StatusNotFound, "No active rate", err)
		return
	}
	if err != nil {
		h.writeDomainError(w, "Failed to get rate", err)
		return
	}
	writeJSON(w, http.StatusOK, toRateDTO(rate))
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// ListSessions returns the user's sessions, filtered by ?from=&to=&job_id=.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	filter := wage.SessionFilter{UserID: userID(r)}
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *generic.TimePoint
	}{{"from", &filter.From}, {"to", &filter.To}} {
		if v := q.Get(p.name); v != "" {
			d, err := generic.ParseDate(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s format (use YYYY-MM-DD)", p.name), err)
				return
			}
			*p.dst = d
		}
	}
	if v := q.Get("job_id"); v != "" {
		id := wage.JobID(v)
		filter.JobID = &id
	}

	sessions, err := h.Service.Store.ListSessions(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, "Failed to list sessions", err)
		return
	}
	dtos := make([]SessionDTO, len(sessions))
	for i, s := range sessions {
		dtos[i] = toSessionDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSession returns a single session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.Service.Store.GetSession(r.Context(), wage.SessionID(chi.URLParam(r, "id")))
	if err == nil && s.UserID != userID(r) {
		err = fmt.Errorf("%w: %s", generic.ErrSessionNotFound, s.ID)
	}
	if err != nil {
		h.writeDomainError(w, "Failed to get session", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(s))
}

// CreateSession validates and saves a session.
// POST /api/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	session, err := req.toSession(userID(r))
	if err != nil {
		h.writeDomainError(w, "Invalid session", err)
		return
	}
	saved, err := h.Service.SaveSession(r.Context(), session)
	if err != nil {
		h.writeDomainError(w, "Failed to save session", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionDTO(saved))
}

// DeleteSession removes a session.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := wage.SessionID(chi.URLParam(r, "id"))
	if err := h.Service.DeleteSession(r.Context(), userID(r), id); err != nil {
		h.writeDomainError(w, "Failed to delete session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PreviewSession prices a session without saving it. A malformed clock or
// an hourly session with no active rate is a 400.
// POST /api/sessions/preview
func (h *Handler) PreviewSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	session, err := req.toSession(userID(r))
	if err != nil {
		h.writeDomainError(w, "Invalid session", err)
		return
	}
	sw, err := h.Service.PreviewSession(r.Context(), session)
	if err != nil {
		h.writeDomainError(w, "Cannot price session", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionWageDTO(sw))
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetMonthlyReport returns the user's report for ?year=&month=.
func (h *Handler) GetMonthlyReport(w http.ResponseWriter, r *http.Request) {
	report, ok := h.monthlyReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toMonthlyReportDTO(report))
}

// ExportMonthlyReport streams the report as an .xlsx workbook.
func (h *Handler) ExportMonthlyReport(w http.ResponseWriter, r *http.Request) {
	report, ok := h.monthlyReport(w, r)
	if !ok {
		return
	}
	filename := fmt.Sprintf("wage-%s-%04d-%02d.xlsx", report.UserID, report.Year, int(report.Month))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := export.WriteMonthlyReport(w, report); err != nil {
		// headers are already out; all we can do is log
		h.Logger.Error().Err(err).Str("user_id", report.UserID).Msg("xlsx export failed")
	}
}

func (h *Handler) monthlyReport(w http.ResponseWriter, r *http.Request) (wage.MonthlyReport, bool) {
	year, month, err := yearMonthParams(r, h.today())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year/month", err)
		return wage.MonthlyReport{}, false
	}
	report, err := h.Service.MonthlyReport(r.Context(), userID(r), year, month)
	if err != nil {
		h.writeDomainError(w, "Failed to build report", err)
		return wage.MonthlyReport{}, false
	}
	return report, true
}

// GetWeeklyAllowance evaluates the ISO week containing ?date= for ?job_id=.
func (h *Handler) GetWeeklyAllowance(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job_id is required", nil)
		return
	}
	date, ok := h.dateParam(w, r, "date")
	if !ok {
		return
	}
	res, err := h.Service.WeeklyAllowance(r.Context(), userID(r), wage.JobID(jobID), date)
	if err != nil {
		h.writeDomainError(w, "Failed to evaluate weekly allowance", err)
		return
	}
	week := generic.ISOWeekPeriod(date)
	writeJSON(w, http.StatusOK, toWeeklyAllowanceDTO(res, &week))
}

// ListReportRuns returns report warmer runs, optionally by ?status=.
func (h *Handler) ListReportRuns(w http.ResponseWriter, r *http.Request) {
	if h.Runs == nil {
		writeJSON(w, http.StatusOK, []ReportRunDTO{})
		return
	}
	runs, err := h.Runs.GetReportRuns(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list report runs", err)
		return
	}
	user := userID(r)
	dtos := []ReportRunDTO{}
	for _, run := range runs {
		if run.UserID == user {
			dtos = append(dtos, toReportRunDTO(run))
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// PoliciesChanged drops every cached derivation and report.
// POST /api/policies/changed
func (h *Handler) PoliciesChanged(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.PoliciesChanged(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to invalidate caches", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeBody(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
}

func (h *Handler) dateParam(w http.ResponseWriter, r *http.Request, name string) (generic.TimePoint, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return h.today(), true
	}
	d, err := generic.ParseDate(v)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s format (use YYYY-MM-DD)", name), err)
		return generic.TimePoint{}, false
	}
	return d, true
}

// yearMonthParams reads ?year=&month=, defaulting to the month of today.
func yearMonthParams(r *http.Request, today generic.TimePoint) (int, time.Month, error) {
	q := r.URL.Query()
	year, month := today.Year(), today.Month()
	if v := q.Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: year %q", generic.ErrInvalidPeriod, v)
		}
		year = y
	}
	if v := q.Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return 0, 0, fmt.Errorf("%w: month %q", generic.ErrInvalidPeriod, v)
		}
		month = time.Month(m)
	}
	return year, month, nil
}

// writeDomainError maps engine errors to HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.Logger.Error().Err(err).Msg(message)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
