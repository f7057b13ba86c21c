/*
excel.go - Monthly report workbook export

PURPOSE:
  Writes a wage.MonthlyReport as an .xlsx workbook for payroll hand-off.

SHEETS:
  Summary           Totals and per-job breakdown
  Sessions          One row per in-month work session
  Weekly Allowance  One row per ISO week and allowance-enabled job

  Amounts are written as numbers so the sheet can be summed; the report
  itself remains the source of truth for rounding.

SEE ALSO:
  - wage/report.go: MonthlyReport
  - cmd/wagectl: report --xlsx
  - api/handlers.go: GET /api/reports/{month}.xlsx
*/
package export

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/warp/wage-engine/wage"
	"github.com/xuri/excelize/v2"
)

const (
	SheetSummary  = "Summary"
	SheetSessions = "Sessions"
	SheetWeekly   = "Weekly Allowance"
)

// sheetWriter appends rows to one sheet at a time.
type sheetWriter struct {
	file  *excelize.File
	sheet string
	row   int
	bold  int
}

func newSheetWriter() (*sheetWriter, error) {
	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}
	return &sheetWriter{file: f, bold: bold}, nil
}

func (w *sheetWriter) addSheet(name string) error {
	if w.sheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return err
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	w.sheet = name
	w.row = 1
	return nil
}

func (w *sheetWriter) header(columns ...string) error {
	values := make([]any, len(columns))
	for i, c := range columns {
		values[i] = c
	}
	if err := w.write(values...); err != nil {
		return err
	}
	start, _ := excelize.CoordinatesToCellName(1, w.row-1)
	end, _ := excelize.CoordinatesToCellName(len(columns), w.row-1)
	return w.file.SetCellStyle(w.sheet, start, end, w.bold)
}

func (w *sheetWriter) write(values ...any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, w.row)
		if err != nil {
			return err
		}
		if d, ok := v.(decimal.Decimal); ok {
			v = d.InexactFloat64()
		}
		if err := w.file.SetCellValue(w.sheet, cell, v); err != nil {
			return err
		}
	}
	w.row++
	return nil
}

func (w *sheetWriter) blank() { w.row++ }

// WriteMonthlyReport encodes report as an .xlsx workbook into out.
func WriteMonthlyReport(out io.Writer, report wage.MonthlyReport) error {
	w, err := newSheetWriter()
	if err != nil {
		return err
	}
	defer w.file.Close()

	if err := writeSummary(w, report); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}
	if err := writeSessions(w, report); err != nil {
		return fmt.Errorf("sessions sheet: %w", err)
	}
	if err := writeWeekly(w, report); err != nil {
		return fmt.Errorf("weekly sheet: %w", err)
	}
	w.file.SetActiveSheet(0)
	return w.file.Write(out)
}

func writeSummary(w *sheetWriter, r wage.MonthlyReport) error {
	if err := w.addSheet(SheetSummary); err != nil {
		return err
	}
	rows := [][]any{
		{"User", r.UserID},
		{"Month", fmt.Sprintf("%04d-%02d", r.Year, int(r.Month))},
		{"Total wage", r.TotalWage},
		{"Weekly allowance", r.Allowance.TotalAllowance},
		{"Total income", r.TotalIncome},
		{"Work hours", r.TotalWorkHours},
		{"Break minutes", r.TotalBreakMinutes},
		{"Unpaid break deduction", r.UnpaidBreakDeduction},
		{"Meal allowance", r.TotalMealAllowance},
		{"Sessions without rate", r.MissingRates},
	}
	if err := w.header("Item", "Value"); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.write(row...); err != nil {
			return err
		}
	}

	w.blank()
	if err := w.header("Job", "Sessions", "Work hours", "Break minutes", "Wage"); err != nil {
		return err
	}
	for _, j := range r.Jobs {
		if err := w.write(j.JobName, j.Sessions, j.WorkHours, j.BreakMinutes, j.Wage); err != nil {
			return err
		}
	}
	return nil
}

func writeSessions(w *sheetWriter, r wage.MonthlyReport) error {
	if err := w.addSheet(SheetSessions); err != nil {
		return err
	}
	if err := w.header("Date", "Job", "Type", "Start", "End", "Work hours", "Break minutes",
		"Break paid", "Rate", "Base wage", "Meal allowance", "Wage", "Memo"); err != nil {
		return err
	}
	for _, l := range r.Lines {
		s := l.Session
		rate := any(l.Rate)
		if !l.RateFound {
			rate = "missing"
		}
		if err := w.write(s.Date.String(), l.JobName, string(s.WageType), s.StartTime, s.EndTime,
			l.Wage.WorkTime.WorkHours(), l.Wage.WorkTime.Break.Minutes, l.Wage.WorkTime.Break.Paid,
			rate, l.Wage.BaseWage, l.Wage.MealAllowance, l.Wage.Wage, s.Memo); err != nil {
			return err
		}
	}
	return nil
}

func writeWeekly(w *sheetWriter, r wage.MonthlyReport) error {
	if err := w.addSheet(SheetWeekly); err != nil {
		return err
	}
	if err := w.header("Week start", "Week end", "Job", "Eligible", "Reason", "Work hours",
		"Work days", "Average rate", "Allowance"); err != nil {
		return err
	}
	names := make(map[wage.JobID]string, len(r.Jobs))
	for _, j := range r.Jobs {
		names[j.JobID] = j.JobName
	}
	for _, ja := range r.Allowance.JobAllowances {
		names[ja.JobID] = ja.JobName
	}
	for _, week := range r.Allowance.Weeks {
		for _, res := range week.Results {
			name := names[res.JobID]
			if name == "" {
				name = string(res.JobID)
			}
			if err := w.write(week.Week.Start.String(), week.Week.End.String(), name, res.Eligible,
				string(res.Reason), res.TotalWorkHours, res.WorkDays, res.AverageHourlyRate,
				res.AllowanceAmount); err != nil {
				return err
			}
		}
	}
	return nil
}
