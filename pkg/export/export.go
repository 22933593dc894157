// Package export renders report datasets into the download formats the API
// serves alongside xlsx: CSV for spreadsheet tooling and PDF for printing.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// Dataset is tabular report content. Row values are keyed by header name so
// builders can fill columns independently; missing keys render empty.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

func (d Dataset) record(row map[string]string) []string {
	record := make([]string, len(d.Headers))
	for i, header := range d.Headers {
		record[i] = row[header]
	}
	return record
}

// CSV encodes the dataset with a header line.
func CSV(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("dataset has no headers")
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, row := range data.Rows {
		if err := w.Write(data.record(row)); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}
	return buf.Bytes(), nil
}

// PDF renders the dataset as an A4 table with a centered title, a shaded
// header band and zebra rows.
func PDF(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("dataset has no headers")
	}

	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetMargins(12, 14, 12)
	doc.SetAutoPageBreak(true, 16)
	doc.AddPage()

	if title != "" {
		doc.SetFont("Helvetica", "B", 15)
		doc.CellFormat(0, 9, title, "", 1, "C", false, 0, "")
		doc.Ln(4)
	}

	pageWidth, _ := doc.GetPageSize()
	left, _, right, _ := doc.GetMargins()
	colWidth := (pageWidth - left - right) / float64(len(data.Headers))

	writeHeader := func() {
		doc.SetFont("Helvetica", "B", 9)
		doc.SetFillColor(221, 235, 247)
		for _, header := range data.Headers {
			doc.CellFormat(colWidth, 7, header, "1", 0, "C", true, 0, "")
		}
		doc.Ln(-1)
	}
	writeHeader()

	doc.SetFont("Helvetica", "", 9)
	for i, row := range data.Rows {
		if doc.GetY() > 270 {
			doc.AddPage()
			writeHeader()
			doc.SetFont("Helvetica", "", 9)
		}
		doc.SetFillColor(245, 248, 252)
		shade := i%2 == 1
		for _, value := range data.record(row) {
			doc.CellFormat(colWidth, 6.5, value, "1", 0, "", shade, 0, "")
		}
		doc.Ln(-1)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
