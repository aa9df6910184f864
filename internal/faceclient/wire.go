package faceclient

import (
	"encoding/json"
	"fmt"

	"markr/internal/roster"
)

// flexID accepts both JSON strings and numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

func pick(a, b flexID) string {
	if a != "" {
		return string(a)
	}
	return string(b)
}

func pickName(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// wireBBox accepts both {x, y, width, height} and the short {x, y, w, h} form.
type wireBBox struct {
	X      float64  `json:"x"`
	Y      float64  `json:"y"`
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`
	W      *float64 `json:"w"`
	H      *float64 `json:"h"`
}

func (b *wireBBox) toBBox() *roster.BBox {
	if b == nil {
		return nil
	}
	return &roster.BBox{X: b.X, Y: b.Y, Width: firstOf(b.Width, b.W), Height: firstOf(b.Height, b.H)}
}

func firstOf(a, b *float64) float64 {
	if a != nil {
		return *a
	}
	if b != nil {
		return *b
	}
	return 0
}

type presentEntry struct {
	StudentID      flexID       `json:"student_id"`
	ID             flexID       `json:"id"`
	StudentName    string       `json:"student_name"`
	Name           string       `json:"name"`
	Confidence     float64      `json:"confidence"`
	AttendanceRate float64      `json:"attendance_rate"`
	BBox           *wireBBox    `json:"bbox"`
}

type absentEntry struct {
	StudentID      flexID  `json:"student_id"`
	ID             flexID  `json:"id"`
	StudentName    string  `json:"student_name"`
	Name           string  `json:"name"`
	AttendanceRate float64 `json:"attendance_rate"`
}

type unmatchedEntry struct {
	Confidence float64      `json:"confidence"`
	BBox       *wireBBox    `json:"bbox"`
}

type captureResponse struct {
	SessionID       flexID           `json:"session_id"`
	FacesDetected   int              `json:"faces_detected"`
	MatchesFound    int              `json:"matches_found"`
	PresentStudents []presentEntry   `json:"present_students"`
	AbsentStudents  []absentEntry    `json:"absent_students"`
	UnmatchedFaces  []unmatchedEntry `json:"unmatched_faces"`
}

func (r captureResponse) toResult() roster.CaptureResult {
	res := roster.CaptureResult{
		SessionID:     string(r.SessionID),
		FacesDetected: r.FacesDetected,
		MatchesFound:  r.MatchesFound,
	}
	for _, p := range r.PresentStudents {
		res.Present = append(res.Present, roster.PresentStudent{
			StudentID:      pick(p.StudentID, p.ID),
			Name:           pickName(p.StudentName, p.Name),
			Confidence:     p.Confidence,
			AttendanceRate: p.AttendanceRate,
			BBox:           p.BBox.toBBox(),
		})
	}
	for _, a := range r.AbsentStudents {
		res.Absent = append(res.Absent, roster.AbsentStudent{
			StudentID:      pick(a.StudentID, a.ID),
			Name:           pickName(a.StudentName, a.Name),
			AttendanceRate: a.AttendanceRate,
		})
	}
	for _, u := range r.UnmatchedFaces {
		res.Unmatched = append(res.Unmatched, roster.UnmatchedFace{Confidence: u.Confidence, BBox: u.BBox.toBBox()})
	}
	return res
}
