package document

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "Summary"
	seriesSheet  = "Series"
)

// XLSX renders a workbook with the summary, the chart and the daily rows.
type XLSX struct{}

// Render builds the workbook in memory.
func (XLSX) Render(report Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	rows := [][]interface{}{
		{report.Title},
		{"Generated", report.GeneratedAt.Format("2006-01-02 15:04")},
		{"Period", Period(report.Summary)},
		{},
		{"Relevant values"},
	}
	for _, l := range ValueLines(report.Summary) {
		rows = append(rows, []interface{}{l.Label, l.Value})
	}
	rows = append(rows, []interface{}{}, []interface{}{"Percentage change"})
	for _, l := range ChangeLines(report.Summary) {
		rows = append(rows, []interface{}{l.Label, l.Value})
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if len(row) == 0 {
			continue
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, err
		}
		if len(row) == 1 {
			if err := f.SetCellStyle(summarySheet, cell, cell, bold); err != nil {
				return nil, err
			}
		}
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 20); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(summarySheet, "B", "B", 36); err != nil {
		return nil, err
	}

	if err := f.AddPictureFromBytes(summarySheet, "D2", &excelize.Picture{
		Extension: ".png",
		File:      report.Chart,
		Format:    &excelize.GraphicOptions{ScaleX: 0.6, ScaleY: 0.6},
	}); err != nil {
		return nil, fmt.Errorf("embed chart: %w", err)
	}

	if err := writeSeriesSheet(f, report); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSeriesSheet(f *excelize.File, report Report) error {
	if _, err := f.NewSheet(seriesSheet); err != nil {
		return err
	}
	header := []interface{}{"Date", "TRM"}
	if err := f.SetSheetRow(seriesSheet, "A1", &header); err != nil {
		return err
	}
	for i, rec := range report.Series {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{rec.Date().Format("2006-01-02"), rec.Value.InexactFloat64()}
		if err := f.SetSheetRow(seriesSheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
