// Package export renders a confirmed roster as CSV or PDF.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"regexp"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"markr/internal/roster"
)

// Columns is the header row of every export.
var Columns = []string{"student_name", "student_id", "status", "date", "class"}

// Row is one student line.
type Row struct {
	StudentName string
	StudentID   string
	Status      string
	Date        string
	Class       string
}

func (r Row) record() []string {
	return []string{r.StudentName, r.StudentID, r.Status, r.Date, r.Class}
}

// Sheet is a full roster ready to render.
type Sheet struct {
	ClassID string
	Date    string
	Rows    []Row
}

// FromRoster builds a sheet from the roster in display order.
func FromRoster(classID, date string, students []roster.Student) Sheet {
	rows := make([]Row, 0, len(students))
	for _, st := range students {
		rows = append(rows, Row{
			StudentName: st.Name,
			StudentID:   st.StudentID,
			Status:      string(st.Status),
			Date:        date,
			Class:       classID,
		})
	}
	return Sheet{ClassID: classID, Date: date, Rows: rows}
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName returns attendance-{class}-{date}.{ext} with unsafe characters replaced.
func (s Sheet) FileName(ext string) string {
	base := fmt.Sprintf("attendance-%s-%s", s.ClassID, s.Date)
	return unsafeName.ReplaceAllString(base, "_") + "." + ext
}

// CSV renders the sheet as CSV bytes.
func CSV(s Sheet) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(Columns); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range s.Rows {
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

// PDF renders the sheet as a one-table A4 document.
func PDF(s Sheet) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetTitle(fmt.Sprintf("Attendance %s %s", s.ClassID, s.Date), true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, tr(fmt.Sprintf("ATTENDANCE - %s - %s", strings.ToUpper(s.ClassID), s.Date)), "", 1, "C", false, 0, "")
	pdf.Ln(3)

	widths := []float64{60, 35, 30, 30, 35}
	pdf.SetFont("Arial", "B", 10)
	for i, header := range Columns {
		pdf.CellFormat(widths[i], 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range s.Rows {
		for i, value := range row.record() {
			pdf.CellFormat(widths[i], 7, tr(value), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
