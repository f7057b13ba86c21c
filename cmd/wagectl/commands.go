package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/warp/wage-engine/export"
	"github.com/warp/wage-engine/factory"
	"github.com/warp/wage-engine/generic"
	"github.com/warp/wage-engine/store/sqlite"
	"github.com/warp/wage-engine/wage"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <job.json>",
		Short: "Validate a job policy file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := loadJob(args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ok: %s\n", job.Name)
			fmt.Fprintf(out, "  break time:       %s\n", describeBreak(job.BreakTime))
			if job.WeeklyAllowance.Enabled {
				fmt.Fprintf(out, "  weekly allowance: from %sh\n", job.WeeklyAllowance.Threshold())
			} else {
				fmt.Fprintln(out, "  weekly allowance: off")
			}
			return nil
		},
	}
}

func breakCmd() *cobra.Command {
	var jobPath, start, end, rate string
	cmd := &cobra.Command{
		Use:   "break",
		Short: "Show break and work time of one shift",
		RunE: func(cmd *cobra.Command, args []string) error {
			job := wage.StatutoryJob("cli", "statutory")
			if jobPath != "" {
				var err error
				if job, err = loadJob(jobPath); err != nil {
					return err
				}
			}
			for _, c := range []string{start, end} {
				if _, err := generic.ParseClock(c); err != nil {
					return err
				}
			}

			wt := wage.CalculateWorkAndBreakTime(start, end, job)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "total: %sh\n", wt.TotalHours())
			fmt.Fprintf(out, "break: %dm (%s)\n", wt.Break.Minutes, paidLabel(wt.Break.Paid))
			fmt.Fprintf(out, "work:  %sh\n", wt.WorkHours())

			if rate != "" {
				r, err := decimal.NewFromString(rate)
				if err != nil {
					return fmt.Errorf("%w: %q", generic.ErrInvalidRate, rate)
				}
				s := wage.Session{JobID: job.ID, StartTime: start, EndTime: end, WageType: wage.WageHourly}
				sw := wage.CalculateSessionWage(s, job, r)
				fmt.Fprintf(out, "wage:  %s\n", sw.Wage)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&jobPath, "job", "", "Job policy JSON file (default statutory table)")
	cmd.Flags().StringVar(&start, "start", "", "Start time HH:mm")
	cmd.Flags().StringVar(&end, "end", "", "End time HH:mm (not after start = next day)")
	cmd.Flags().StringVar(&rate, "rate", "", "Hourly rate to price the shift")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func reportCmd() *cobra.Command {
	var dbPath, user, month, xlsxPath string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build a monthly report from a wage database",
		RunE: func(cmd *cobra.Command, args []string) error {
			year, m, err := generic.ParseMonth(month)
			if err != nil {
				return err
			}
			store, err := sqlite.New(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			logger := zerolog.New(cmd.ErrOrStderr()).Level(zerolog.WarnLevel)
			svc := wage.NewService(store, wage.NewEngine(logger, nil), nil, nil, logger)
			report, err := svc.BuildMonthlyReport(context.Background(), user, year, m)
			if err != nil {
				return err
			}

			if xlsxPath != "" {
				if err := writeWorkbook(xlsxPath, report); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(out, report)
			if xlsxPath != "" {
				fmt.Fprintf(out, "\nworkbook written to %s\n", xlsxPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "data/wage.db", "SQLite database path")
	cmd.Flags().StringVar(&user, "user", "local", "User ID")
	cmd.Flags().StringVar(&month, "month", "", "Month YYYY-MM")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Also write the report as an .xlsx workbook")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("month")
	return cmd
}

// =============================================================================
// HELPERS
// =============================================================================

func loadJob(path string) (wage.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return wage.Job{}, err
	}
	return factory.NewJobFactory().ParseJob(string(data))
}

func describeBreak(p wage.BreakPolicy) string {
	if !p.Enabled || len(p.Ranges) == 0 {
		return "none"
	}
	s := ""
	for i, r := range p.Ranges {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s-%sh: %dm", r.MinHours, r.MaxHours, r.BreakMinutes)
	}
	return s + " (" + paidLabel(p.Paid) + ")"
}

func paidLabel(paid bool) string {
	if paid {
		return "paid"
	}
	return "unpaid"
}

func writeWorkbook(path string, report wage.MonthlyReport) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteMonthlyReport(f, report); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printReport(out io.Writer, r wage.MonthlyReport) {
	fmt.Fprintf(out, "%s %04d-%02d\n", r.UserID, r.Year, int(r.Month))
	for _, j := range r.Jobs {
		fmt.Fprintf(out, "  %-20s %3d sessions %8sh %12s\n", j.JobName, j.Sessions, j.WorkHours, j.Wage)
	}
	fmt.Fprintf(out, "  %-20s %12s\n", "wage", r.TotalWage)
	fmt.Fprintf(out, "  %-20s %12s (%d/%d weeks)\n", "weekly allowance",
		r.Allowance.TotalAllowance, r.Allowance.EligibleWeeks, r.Allowance.TotalWeeks)
	fmt.Fprintf(out, "  %-20s %12s\n", "total income", r.TotalIncome)
	if r.MissingRates > 0 {
		fmt.Fprintf(out, "  warning: %d hourly sessions have no rate\n", r.MissingRates)
	}
}
