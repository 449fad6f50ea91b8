package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/jwalitptl/labalert/internal/model"
)

const (
	SheetName   = "Results"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var headers = []string{
	"ID", "Patient ID", "Patient", "Test", "Value", "Unit",
	"Reference Range", "Status", "Timestamp", "Doctor Notes",
}

// WriteResults writes records as a single-sheet workbook, one row per
// record under a header row.
func WriteResults(w io.Writer, records []*model.ResultRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	for r, rec := range records {
		row := []interface{}{
			rec.ID(),
			rec.PatientID(),
			rec.PatientName(),
			rec.TestType(),
			rec.Value(),
			rec.Unit(),
			rec.ReferenceRange(),
			rec.Status(),
			rec.Timestamp().Format("2006-01-02 15:04:05"),
			rec.DoctorNotes(),
		}
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return fmt.Errorf("failed to write row %d: %w", r+1, err)
			}
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// FileName names an export taken at the given label, e.g. "recent".
func FileName(label string) string {
	return fmt.Sprintf("lab-results-%s.xlsx", label)
}
