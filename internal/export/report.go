package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"planpoint/api/internal/workspace"
)

const reportSheet = "Points"

// BuildReport renders the given points, already filtered to the
// caller's visible set, into an XLSX workbook: one sheet, one row per
// point with a 1-based running index, the point name, the photo's
// original filename and the capture date. Column order is fixed.
func BuildReport(points []workspace.Point) (*Result, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return nil, fmt.Errorf("name report sheet: %w", err)
	}

	headers := []string{"ID", "PointName", "PhotoFilename", "Date"}
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(reportSheet, cell, header); err != nil {
			return nil, fmt.Errorf("write header %q: %w", header, err)
		}
	}

	for i, p := range points {
		filename := ""
		date := ""
		if p.Photo != nil {
			filename = p.Photo.OriginalName
			date = p.Photo.CaptureDate
		}
		values := []any{i + 1, p.Name, filename, date}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, fmt.Errorf("report cell: %w", err)
			}
			if err := f.SetCellValue(reportSheet, cell, value); err != nil {
				return nil, fmt.Errorf("write report row %d: %w", i+1, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize report: %w", err)
	}
	return &Result{
		Data:     buf.Bytes(),
		Filename: "points.xlsx",
		MimeType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}, nil
}
