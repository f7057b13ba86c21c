/*
Package sqlite provides a SQLite-backed implementation of wage.Store.

PURPOSE:
  Persists jobs (with their policy as JSON), hourly rate histories, work
  sessions and report-warmer runs. In production the same SQL runs on
  PostgreSQL with minor dialect differences.

INTERFACES IMPLEMENTED:
  wage.JobStore:     Jobs and their policies
  wage.RateStore:    Hourly rate timelines (includes the RateSource lookup)
  wage.SessionStore: Work sessions

KEY TABLES:
  jobs:          One row per job; config_json holds factory.JobJSON
  hourly_rates:  Non-overlapping [effective_date, end_date] records per job
  work_sessions: Logged sessions; amounts stored as decimal strings
  report_runs:   One row per (user, month) the report warmer rebuilt

DATES:
  Calendar dates are stored as "YYYY-MM-DD" so string comparison in SQL is
  date comparison. Timestamps are RFC3339 UTC.

INDEXES:
  - idx_sessions_user_date: Monthly report load (hot path)
  - idx_rates_job_effective: Active rate lookup

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/wage.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - wage/store.go: Interface definitions
  - store/memory: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/wage-engine/factory"
	"github.com/warp/wage-engine/generic"
	"github.com/warp/wage-engine/wage"
)

// Store implements wage.Store using SQLite.
type Store struct {
	db   *sql.DB
	mu   sync.RWMutex
	jobs *factory.JobFactory
}

var _ wage.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// each connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, jobs: factory.NewJobFactory()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Jobs (policy owners)
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		config_json TEXT NOT NULL,
		version INTEGER DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_user
		ON jobs(user_id);

	-- Hourly rate history
	CREATE TABLE IF NOT EXISTS hourly_rates (
		id TEXT PRIMARY KEY,
		job_id TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
		rate TEXT NOT NULL,
		effective_date TEXT NOT NULL,
		end_date TEXT,
		UNIQUE(job_id, effective_date)
	);

	CREATE INDEX IF NOT EXISTS idx_rates_job_effective
		ON hourly_rates(job_id, effective_date DESC);

	-- Work sessions
	CREATE TABLE IF NOT EXISTS work_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		job_id TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		start_time TEXT NOT NULL DEFAULT '',
		end_time TEXT NOT NULL DEFAULT '',
		wage_type TEXT NOT NULL DEFAULT 'hourly',
		fixed_daily_wage TEXT NOT NULL DEFAULT '0',
		meal_allowance TEXT NOT NULL DEFAULT '0',
		unexcused_absence BOOLEAN DEFAULT FALSE,
		memo TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_user_date
		ON work_sessions(user_id, date);
	CREATE INDEX IF NOT EXISTS idx_sessions_job_date
		ON work_sessions(job_id, date);

	-- Report warmer runs
	CREATE TABLE IF NOT EXISTS report_runs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		month TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		total_income TEXT,
		error TEXT,
		started_at TEXT,
		completed_at TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(user_id, month)
	);

	CREATE INDEX IF NOT EXISTS idx_report_runs_status
		ON report_runs(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// JOB STORE (wage.JobStore interface)
// =============================================================================

// SaveJob inserts or updates a job. The version column counts edits.
func (s *Store) SaveJob(ctx context.Context, job wage.Job) error {
	config, err := s.jobs.Marshal(job)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO jobs (id, user_id, name, config_json, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			config_json = excluded.config_json,
			version = jobs.version + 1,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC()
	created := job.CreatedAt
	if created.IsZero() {
		created = now
	}
	updated := job.UpdatedAt
	if updated.IsZero() {
		updated = now
	}
	_, err = s.db.ExecContext(ctx, query,
		job.ID, job.UserID, job.Name, config,
		created.UTC().Format(time.RFC3339), updated.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, id wage.JobID) (wage.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, config_json, created_at, updated_at FROM jobs WHERE id = ?", id)
	job, err := s.scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return wage.Job{}, fmt.Errorf("%w: %s", generic.ErrJobNotFound, id)
	}
	return job, err
}

// ListJobs returns a user's jobs in creation order.
func (s *Store) ListJobs(ctx context.Context, userID string) ([]wage.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, config_json, created_at, updated_at FROM jobs WHERE user_id = ? ORDER BY created_at, id",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []wage.Job
	for rows.Next() {
		job, err := s.scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// DeleteJob removes a job; rates and sessions cascade.
func (s *Store) DeleteJob(ctx context.Context, id wage.JobID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM jobs WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", generic.ErrJobNotFound, id)
	}
	return nil
}

// ListUsers returns every user owning at least one job.
func (s *Store) ListUsers(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT user_id FROM jobs ORDER BY user_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanJob(row rowScanner) (wage.Job, error) {
	var id, userID, config, createdAt, updatedAt string
	if err := row.Scan(&id, &userID, &config, &createdAt, &updatedAt); err != nil {
		return wage.Job{}, err
	}

	var jj factory.JobJSON
	if err := json.Unmarshal([]byte(config), &jj); err != nil {
		return wage.Job{}, fmt.Errorf("job %s: corrupt config_json: %w", id, err)
	}
	jj.ID = id
	jj.UserID = userID
	job, err := s.jobs.FromJSON(jj)
	if err != nil {
		return wage.Job{}, fmt.Errorf("job %s: %w", id, err)
	}
	job.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	job.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return job, nil
}

// =============================================================================
// RATE STORE (wage.RateStore interface)
// =============================================================================

// ActiveRate returns the record with the latest effective_date <= date whose
// end_date is open or >= date.
func (s *Store) ActiveRate(ctx context.Context, jobID wage.JobID, date generic.TimePoint) (wage.HourlyRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, job_id, rate, effective_date, end_date
		FROM hourly_rates
		WHERE job_id = ? AND effective_date <= ? AND (end_date IS NULL OR end_date >= ?)
		ORDER BY effective_date DESC
		LIMIT 1
	`
	d := date.String()
	r, err := scanRate(s.db.QueryRowContext(ctx, query, jobID, d, d))
	if errors.Is(err, sql.ErrNoRows) {
		return wage.HourlyRate{}, fmt.Errorf("%w: job %s on %s", generic.ErrRateNotFound, jobID, d)
	}
	return r, err
}

// ReplaceRates swaps a job's whole history atomically.
func (s *Store) ReplaceRates(ctx context.Context, jobID wage.JobID, rates []wage.HourlyRate) error {
	if err := wage.ValidateTimeline(rates); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM hourly_rates WHERE job_id = ?", jobID); err != nil {
		return err
	}
	for _, r := range rates {
		var end sql.NullString
		if r.EndDate != nil {
			end = nullString(r.EndDate.String())
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO hourly_rates (id, job_id, rate, effective_date, end_date) VALUES (?, ?, ?, ?, ?)",
			r.ID, jobID, r.Rate.String(), r.EffectiveDate.String(), end,
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return &generic.RateOverlapError{JobID: string(jobID), EffectiveDate: r.EffectiveDate, ConflictsWith: string(r.ID)}
			}
			return fmt.Errorf("failed to insert rate: %w", err)
		}
	}
	return tx.Commit()
}

// ListRates returns a job's history ordered by effective date.
func (s *Store) ListRates(ctx context.Context, jobID wage.JobID) ([]wage.HourlyRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, job_id, rate, effective_date, end_date FROM hourly_rates WHERE job_id = ? ORDER BY effective_date",
		jobID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rates []wage.HourlyRate
	for rows.Next() {
		r, err := scanRate(rows)
		if err != nil {
			return nil, err
		}
		rates = append(rates, r)
	}
	return rates, rows.Err()
}

func scanRate(row rowScanner) (wage.HourlyRate, error) {
	var r wage.HourlyRate
	var id, jobID, rate, effective string
	var end sql.NullString
	if err := row.Scan(&id, &jobID, &rate, &effective, &end); err != nil {
		return wage.HourlyRate{}, err
	}
	r.ID = wage.RateID(id)
	r.JobID = wage.JobID(jobID)
	var err error
	if r.Rate, err = decimal.NewFromString(rate); err != nil {
		return wage.HourlyRate{}, fmt.Errorf("rate %s: %w", id, err)
	}
	if r.EffectiveDate, err = generic.ParseDate(effective); err != nil {
		return wage.HourlyRate{}, fmt.Errorf("rate %s: %w", id, err)
	}
	if end.Valid {
		e, err := generic.ParseDate(end.String)
		if err != nil {
			return wage.HourlyRate{}, fmt.Errorf("rate %s: %w", id, err)
		}
		r.EndDate = &e
	}
	return r, nil
}

// =============================================================================
// SESSION STORE (wage.SessionStore interface)
// =============================================================================

const sessionColumns = `id, user_id, job_id, date, start_time, end_time, wage_type,
	fixed_daily_wage, meal_allowance, unexcused_absence, memo, created_at`

// SaveSession inserts or replaces a session by ID.
func (s *Store) SaveSession(ctx context.Context, ws wage.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO work_sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			job_id = excluded.job_id,
			date = excluded.date,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			wage_type = excluded.wage_type,
			fixed_daily_wage = excluded.fixed_daily_wage,
			meal_allowance = excluded.meal_allowance,
			unexcused_absence = excluded.unexcused_absence,
			memo = excluded.memo
	`

	created := ws.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	wageType := ws.WageType
	if wageType == "" {
		wageType = wage.WageHourly
	}
	_, err := s.db.ExecContext(ctx, query,
		ws.ID, ws.UserID, ws.JobID, ws.Date.String(),
		ws.StartTime, ws.EndTime, string(wageType),
		ws.FixedDailyWage.String(), ws.MealAllowance.String(),
		ws.UnexcusedAbsence, nullString(ws.Memo),
		created.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return fmt.Errorf("%w: %s", generic.ErrJobNotFound, ws.JobID)
		}
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID.
func (s *Store) GetSession(ctx context.Context, id wage.SessionID) (wage.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ws, err := scanSession(s.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM work_sessions WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return wage.Session{}, fmt.Errorf("%w: %s", generic.ErrSessionNotFound, id)
	}
	return ws, err
}

// DeleteSession removes a session.
func (s *Store) DeleteSession(ctx context.Context, id wage.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM work_sessions WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", generic.ErrSessionNotFound, id)
	}
	return nil
}

// ListSessions returns sessions matching f ordered by date and start time.
func (s *Store) ListSessions(ctx context.Context, f wage.SessionFilter) ([]wage.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.JobID != nil {
		where = append(where, "job_id = ?")
		args = append(args, *f.JobID)
	}
	if !f.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, f.To.String())
	}

	query := "SELECT " + sessionColumns + " FROM work_sessions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date, start_time, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []wage.Session
	for rows.Next() {
		ws, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, ws)
	}
	return sessions, rows.Err()
}

func scanSession(row rowScanner) (wage.Session, error) {
	var ws wage.Session
	var id, userID, jobID, date, wageType, fixed, meal, createdAt string
	var memo sql.NullString
	if err := row.Scan(&id, &userID, &jobID, &date, &ws.StartTime, &ws.EndTime, &wageType,
		&fixed, &meal, &ws.UnexcusedAbsence, &memo, &createdAt); err != nil {
		return wage.Session{}, err
	}
	d, err := generic.ParseDate(date)
	if err != nil {
		return wage.Session{}, fmt.Errorf("session %s: %w", id, err)
	}
	ws.ID = wage.SessionID(id)
	ws.UserID = userID
	ws.JobID = wage.JobID(jobID)
	ws.Date = d
	ws.WageType = wage.WageType(wageType)
	if ws.FixedDailyWage, err = decimal.NewFromString(fixed); err != nil {
		return wage.Session{}, fmt.Errorf("session %s fixed_daily_wage: %w", id, err)
	}
	if ws.MealAllowance, err = decimal.NewFromString(meal); err != nil {
		return wage.Session{}, fmt.Errorf("session %s meal_allowance: %w", id, err)
	}
	ws.Memo = memo.String
	ws.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return ws, nil
}

// =============================================================================
// REPORT RUNS (written by the report warmer)
// =============================================================================

// ReportRun records one warmer rebuild of a user's month.
type ReportRun struct {
	ID          string
	UserID      string
	Month       string // YYYY-MM
	Status      string // running, completed, failed
	TotalIncome string
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
}

// SaveReportRun upserts by (user, month).
func (s *Store) SaveReportRun(ctx context.Context, r ReportRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO report_runs (id, user_id, month, status, total_income, error,
			started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, month) DO UPDATE SET
			status = excluded.status,
			total_income = excluded.total_income,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.UserID, r.Month, r.Status, nullString(r.TotalIncome), nullString(r.Error),
		formatTimePtr(r.StartedAt), formatTimePtr(r.CompletedAt), r.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// GetReportRuns returns runs, newest first, optionally filtered by status.
func (s *Store) GetReportRuns(ctx context.Context, status string) ([]ReportRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, user_id, month, status, total_income, error, started_at, completed_at, created_at
		FROM report_runs
	`
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC, month DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ReportRun
	for rows.Next() {
		var r ReportRun
		var income, errText, startedAt, completedAt sql.NullString
		var createdAt string
		if err := rows.Scan(&r.ID, &r.UserID, &r.Month, &r.Status, &income, &errText,
			&startedAt, &completedAt, &createdAt); err != nil {
			return nil, err
		}
		r.TotalIncome = income.String
		r.Error = errText.String
		r.StartedAt = parseTimePtr(startedAt)
		r.CompletedAt = parseTimePtr(completedAt)
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"work_sessions", "hourly_rates", "report_runs", "jobs"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return nullString(t.UTC().Format(time.RFC3339))
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
