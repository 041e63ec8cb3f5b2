package export

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/label-verifier/internal/core/async"
	"github.com/joseph-ayodele/label-verifier/internal/core/verdict"
)

// Sheet names of the batch workbook.
const (
	SheetSummary = "Summary"
	SheetResults = "Results"
	SheetFields  = "Fields"
)

// Item outcomes as shown in the Results sheet.
const (
	OutcomePass  = "PASS"
	OutcomeFail  = "FAIL"
	OutcomeError = "ERROR"
)

// Service produces XLSX workbooks for batch results.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// BatchXLSX returns a workbook (as bytes) with a summary sheet, one row per
// image and one row per evaluated field.
func (s *Service) BatchXLSX(res async.BatchResult) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// NewFile starts with "Sheet1"; rename it instead of leaving it empty.
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	for _, name := range []string{SheetResults, SheetFields} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("xlsx sheet: %w", err)
		}
	}
	idx, _ := f.GetSheetIndex(SheetSummary)
	f.SetActiveSheet(idx)

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}

	writeSummary(f, res, bold)
	writeResults(f, res, bold)
	fieldRows := writeFields(f, res, bold)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"batch_id", res.ID.String(),
		"rows", len(res.Items),
		"field_rows", fieldRows,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, res async.BatchResult, bold int) {
	rows := [][2]any{
		{"Batch ID", res.ID.String()},
		{"Started", res.StartedAt.UTC().Format(time.RFC3339)},
		{"Total", res.Summary.Total},
		{"Passed", res.Summary.Passed},
		{"Failed", res.Summary.Failed},
		{"Errors", res.Summary.Errors},
		{"Cancelled", res.Summary.Cancelled},
		{"Total Time", verdict.FormatElapsed(res.TotalElapsed)},
	}
	for i, r := range rows {
		setRow(f, SheetSummary, i+1, r[0], r[1])
	}
	_ = f.SetCellStyle(SheetSummary, "A1", fmt.Sprintf("A%d", len(rows)), bold)
	_ = f.SetColWidth(SheetSummary, "A", "A", 14)
	_ = f.SetColWidth(SheetSummary, "B", "B", 40)
}

func writeResults(f *excelize.File, res async.BatchResult, bold int) {
	headers := []any{"#", "Image", "Outcome", "State", "Rule Set", "Failing Fields", "Error Kind", "Message", "Elapsed"}
	setRow(f, SheetResults, 1, headers...)
	_ = f.SetRowStyle(SheetResults, 1, 1, bold)

	for i, it := range res.Items {
		var ruleSet, failing, kind, msg string
		outcome := OutcomeError
		switch {
		case it.Verdict != nil:
			ruleSet = it.Verdict.RuleSet
			failing = strings.Join(it.Verdict.Failing(), ", ")
			outcome = OutcomeFail
			if it.Verdict.OverallPass {
				outcome = OutcomePass
			}
		case it.Error != nil:
			kind = string(it.Error.Kind)
			msg = truncate(it.Error.Message, 200)
		}
		setRow(f, SheetResults, i+2,
			it.Index+1,
			it.ImageID,
			outcome,
			string(it.State),
			ruleSet,
			failing,
			kind,
			msg,
			verdict.FormatElapsed(it.Elapsed),
		)
	}

	_ = f.SetColWidth(SheetResults, "A", "A", 6)
	_ = f.SetColWidth(SheetResults, "B", "B", 36) // image
	_ = f.SetColWidth(SheetResults, "C", "E", 12)
	_ = f.SetColWidth(SheetResults, "F", "F", 40) // failing fields
	_ = f.SetColWidth(SheetResults, "G", "G", 18)
	_ = f.SetColWidth(SheetResults, "H", "H", 60) // message
	_ = f.SetColWidth(SheetResults, "I", "I", 10)
	_ = f.SetPanes(SheetResults, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeFields(f *excelize.File, res async.BatchResult, bold int) int {
	headers := []any{"Image", "Field", "Required", "Status", "Confidence", "Matched Text", "Evidence", "Conflicts"}
	setRow(f, SheetFields, 1, headers...)
	_ = f.SetRowStyle(SheetFields, 1, 1, bold)

	row := 2
	for _, it := range res.Items {
		if it.Verdict == nil {
			continue
		}
		for _, fr := range it.Verdict.Fields {
			text := ""
			if fr.MatchedFragment != nil {
				text = fr.MatchedFragment.Text
			}
			conflicts := make([]string, 0, len(fr.Conflicts))
			for _, c := range fr.Conflicts {
				conflicts = append(conflicts, c.Fragment.Text)
			}
			setRow(f, SheetFields, row,
				it.ImageID,
				fr.Rule,
				fr.Required,
				string(fr.Status),
				fr.Confidence,
				truncate(text, 140),
				truncate(fr.Evidence, 140),
				strings.Join(conflicts, " | "),
			)
			row++
		}
	}

	_ = f.SetColWidth(SheetFields, "A", "A", 36)
	_ = f.SetColWidth(SheetFields, "B", "B", 22)
	_ = f.SetColWidth(SheetFields, "C", "E", 12)
	_ = f.SetColWidth(SheetFields, "F", "H", 48)
	return row - 2
}

func setRow(f *excelize.File, sheet string, row int, values ...any) {
	cell, _ := excelize.CoordinatesToCellName(1, row)
	_ = f.SetSheetRow(sheet, cell, &values)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
