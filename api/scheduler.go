/*
scheduler.go - Background monthly report warmer

PURPOSE:
  Periodically rebuilds the current month's report for every user that owns
  a job, so the first dashboard load after a quiet period hits the report
  cache instead of the store.

DESIGN:
  - Runs a background goroutine with configurable interval
  - Runs once immediately on Start
  - Each rebuild is recorded as a ReportRun (running -> completed/failed)
  - Failures for one user do not stop the others

CONFIGURATION:
  - Interval: How often to rebuild (default: 1 hour)
  - Enabled:  Whether the warmer is active (default: true)

USAGE:
  warmer := NewReportWarmer(svc, store, metrics, logger)
  warmer.Start()
  // ... later
  warmer.Stop()

SEE ALSO:
  - wage/service.go: RefreshMonthlyReport
  - handlers.go: ListReportRuns endpoint
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/warp/wage-engine/store/sqlite"
	"github.com/warp/wage-engine/wage"
)

const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// WarmerObserver counts warmer rebuilds by status.
type WarmerObserver interface {
	ObserveWarmerRun(status string)
}

// WarmerSummary is the outcome of one RunNow pass.
type WarmerSummary struct {
	Month     string
	Completed int
	Failed    int
}

// ReportWarmer rebuilds current-month reports on a ticker.
type ReportWarmer struct {
	Service  *wage.Service
	Runs     ReportRunStore // optional
	Metrics  WarmerObserver // optional
	Interval time.Duration
	Enabled  bool
	Logger   zerolog.Logger

	now func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewReportWarmer creates a warmer. runs and metrics may be nil.
func NewReportWarmer(svc *wage.Service, runs ReportRunStore, metrics WarmerObserver, logger zerolog.Logger) *ReportWarmer {
	return &ReportWarmer{
		Service:  svc,
		Runs:     runs,
		Metrics:  metrics,
		Interval: 1 * time.Hour,
		Enabled:  true,
		Logger:   logger.With().Str("component", "report_warmer").Logger(),
		now:      time.Now,
	}
}

// Start begins the warmer.
func (rw *ReportWarmer) Start() {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if !rw.Enabled {
		rw.Logger.Info().Msg("disabled, not starting")
		return
	}
	if rw.ticker != nil {
		return
	}

	rw.ticker = time.NewTicker(rw.Interval)
	rw.stop = make(chan struct{})
	rw.wg.Add(1)

	go rw.run()

	rw.Logger.Info().Dur("interval", rw.Interval).Msg("started")
}

// Stop stops the warmer and waits for an in-flight pass to finish.
func (rw *ReportWarmer) Stop() {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.ticker != nil {
		rw.ticker.Stop()
		close(rw.stop)
		rw.wg.Wait()
		rw.ticker = nil
		rw.Logger.Info().Msg("stopped")
	}
}

func (rw *ReportWarmer) run() {
	defer rw.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-rw.stop
		cancel()
	}()

	// Run immediately on start
	rw.RunNow(ctx)

	for {
		select {
		case <-rw.ticker.C:
			rw.RunNow(ctx)
		case <-rw.stop:
			return
		}
	}
}

// RunNow rebuilds the current month for every user that owns a job.
func (rw *ReportWarmer) RunNow(ctx context.Context) WarmerSummary {
	now := rw.now().UTC()
	year, month := now.Year(), now.Month()
	summary := WarmerSummary{Month: fmt.Sprintf("%04d-%02d", year, int(month))}

	users, err := rw.Service.Store.ListUsers(ctx)
	if err != nil {
		rw.Logger.Error().Err(err).Msg("list users failed")
		return summary
	}

	for _, user := range users {
		if ctx.Err() != nil {
			break
		}
		run := sqlite.ReportRun{
			ID:        uuid.NewString(),
			UserID:    user,
			Month:     summary.Month,
			Status:    RunRunning,
			StartedAt: &now,
			CreatedAt: now,
		}
		rw.saveRun(ctx, run)

		report, err := rw.Service.RefreshMonthlyReport(ctx, user, year, month)
		completed := rw.now().UTC()
		run.CompletedAt = &completed
		if err != nil {
			run.Status = RunFailed
			run.Error = err.Error()
			summary.Failed++
			rw.Logger.Warn().Err(err).Str("user_id", user).Msg("report rebuild failed")
		} else {
			run.Status = RunCompleted
			run.TotalIncome = report.TotalIncome.String()
			summary.Completed++
		}
		rw.saveRun(ctx, run)
		if rw.Metrics != nil {
			rw.Metrics.ObserveWarmerRun(run.Status)
		}
	}

	rw.Logger.Info().Str("month", summary.Month).Int("completed", summary.Completed).
		Int("failed", summary.Failed).Msg("reports warmed")
	return summary
}

func (rw *ReportWarmer) saveRun(ctx context.Context, run sqlite.ReportRun) {
	if rw.Runs == nil {
		return
	}
	if err := rw.Runs.SaveReportRun(ctx, run); err != nil {
		rw.Logger.Warn().Err(err).Str("user_id", run.UserID).Msg("save report run failed")
	}
}
