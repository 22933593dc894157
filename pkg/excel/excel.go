// Package excel wraps excelize for the score sheet formats the API reads
// and writes: a merged title row, a styled header row, and data rows.
package excel

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ReadRows returns all rows of the workbook's first sheet as strings.
func ReadRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close() //nolint:errcheck

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

// Sheet describes a single styled worksheet to render.
type Sheet struct {
	Name    string
	Title   string
	Headers []string
	Rows    [][]string
}

// Render produces xlsx bytes for the sheet: title merged across all columns,
// bold filled header, frozen title+header rows, column widths sized to content.
func Render(sheet Sheet) ([]byte, error) {
	if len(sheet.Headers) == 0 {
		return nil, fmt.Errorf("sheet requires at least one header")
	}
	if sheet.Name == "" {
		sheet.Name = "Sheet1"
	}

	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	defaultSheet := f.GetSheetName(0)
	if defaultSheet != sheet.Name {
		if err := f.SetSheetName(defaultSheet, sheet.Name); err != nil {
			return nil, fmt.Errorf("rename sheet: %w", err)
		}
	}

	headerRow := 1
	if sheet.Title != "" {
		headerRow = 2
		endCell, _ := excelize.CoordinatesToCellName(len(sheet.Headers), 1)
		if err := f.MergeCell(sheet.Name, "A1", endCell); err != nil {
			return nil, fmt.Errorf("merge title: %w", err)
		}
		if err := f.SetCellValue(sheet.Name, "A1", sheet.Title); err != nil {
			return nil, fmt.Errorf("set title: %w", err)
		}
		titleStyle, err := f.NewStyle(&excelize.Style{
			Font:      &excelize.Font{Bold: true, Size: 14},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		})
		if err != nil {
			return nil, fmt.Errorf("title style: %w", err)
		}
		if err := f.SetCellStyle(sheet.Name, "A1", endCell, titleStyle); err != nil {
			return nil, fmt.Errorf("apply title style: %w", err)
		}
		if err := f.SetRowHeight(sheet.Name, 1, 24); err != nil {
			return nil, fmt.Errorf("title height: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "B4C6E7", Style: 1},
			{Type: "top", Color: "B4C6E7", Style: 1},
			{Type: "right", Color: "B4C6E7", Style: 1},
			{Type: "bottom", Color: "B4C6E7", Style: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	widths := make([]int, len(sheet.Headers))
	for col, header := range sheet.Headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, headerRow)
		if err := f.SetCellValue(sheet.Name, cell, header); err != nil {
			return nil, fmt.Errorf("set header: %w", err)
		}
		widths[col] = len(header)
	}
	startHeader, _ := excelize.CoordinatesToCellName(1, headerRow)
	endHeader, _ := excelize.CoordinatesToCellName(len(sheet.Headers), headerRow)
	if err := f.SetCellStyle(sheet.Name, startHeader, endHeader, headerStyle); err != nil {
		return nil, fmt.Errorf("apply header style: %w", err)
	}

	for i, row := range sheet.Rows {
		for col, value := range row {
			if col >= len(sheet.Headers) {
				break
			}
			cell, _ := excelize.CoordinatesToCellName(col+1, headerRow+1+i)
			if err := f.SetCellValue(sheet.Name, cell, value); err != nil {
				return nil, fmt.Errorf("set cell: %w", err)
			}
			if len(value) > widths[col] {
				widths[col] = len(value)
			}
		}
	}

	for col, width := range widths {
		name, _ := excelize.ColumnNumberToName(col + 1)
		w := float64(width) + 4
		if w > 48 {
			w = 48
		}
		if err := f.SetColWidth(sheet.Name, name, name, w); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	topLeft, _ := excelize.CoordinatesToCellName(1, headerRow+1)
	if err := f.SetPanes(sheet.Name, &excelize.Panes{
		Freeze:      true,
		YSplit:      headerRow,
		TopLeftCell: topLeft,
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze panes: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}
