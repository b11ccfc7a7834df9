package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// ScheduleRow is one line of the exam schedule sheet.
type ScheduleRow struct {
	Date       string
	Time       string
	Room       string
	Student    string
	Title      string
	Supervisor string
	Examiners  string
}

var sheetHeaders = []string{"Tanggal", "Waktu", "Ruang", "Mahasiswa", "Judul", "Pembimbing", "Penguji"}

func (r ScheduleRow) record() []string {
	return []string{r.Date, r.Time, r.Room, r.Student, r.Title, r.Supervisor, r.Examiners}
}

// ScheduleSheet renders the defense schedule as PDF or CSV.
type ScheduleSheet struct{}

// NewScheduleSheet builds a schedule sheet renderer.
func NewScheduleSheet() *ScheduleSheet {
	return &ScheduleSheet{}
}

// RenderPDF produces a printable schedule table.
func (e *ScheduleSheet) RenderPDF(rows []ScheduleRow, title string) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}

	widths := []float64{25, 25, 30, 45, 70, 40, 42}

	pdf.SetFont("Arial", "B", 9)
	for i, header := range sheetHeaders {
		pdf.CellFormat(widths[i], 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, row := range rows {
		for i, value := range row.record() {
			pdf.CellFormat(widths[i], 7, value, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render schedule pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderCSV produces the same table in CSV form.
func (e *ScheduleSheet) RenderCSV(rows []ScheduleRow) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(sheetHeaders); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row.record()); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
