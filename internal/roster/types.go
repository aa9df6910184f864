// Package roster holds the attendance review state for one capture session:
// the deduplicated student roster, the face detections found in uploaded
// photos, and the rules that reconcile them.
package roster

import (
	"errors"
	"time"
)

// Status is a student's attendance status or a detection's suggested status.
type Status string

const (
	StatusPresent   Status = "present"
	StatusAbsent    Status = "absent"
	StatusUnmarked  Status = "unmarked"
	StatusUnmatched Status = "unmatched"
)

// IsStudentStatus reports whether s can be assigned to a roster record.
func (s Status) IsStudentStatus() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusUnmarked:
		return true
	}
	return false
}

var (
	ErrUnknownFace    = errors.New("face not found")
	ErrUnknownStudent = errors.New("student not found")
	ErrInvalidStatus  = errors.New("invalid status")
)

// Photo is one uploaded class photo. Data is the base64 payload sent to
// the capture service and is never echoed back to clients; it is dropped
// once the photo has been captured.
type Photo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Data        string    `json:"-"`
	Captured    bool      `json:"captured"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// BBox is a face bounding box in photo pixel coordinates.
type BBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Detection is one face found in one photo.
type Detection struct {
	FaceID             string  `json:"face_id"`
	PhotoID            string  `json:"photo_id"`
	BBox               *BBox   `json:"bbox,omitempty"`
	MatchedStudentID   *string `json:"matched_student_id"`
	MatchedStudentName *string `json:"matched_student_name"`
	Confidence         float64 `json:"confidence"`
	SuggestedStatus    Status  `json:"suggested_status"`
}

// Matched reports whether the detection is assigned to a student.
func (d Detection) Matched() bool {
	return d.MatchedStudentID != nil && *d.MatchedStudentID != ""
}

// Student is one student's attendance record in the active session.
type Student struct {
	StudentID      string   `json:"student_id"`
	Name           string   `json:"name"`
	Status         Status   `json:"status"`
	Confidence     *float64 `json:"confidence"`
	AttendanceRate float64  `json:"attendance_rate"`
}

// PresentStudent is a matched face reported by the capture service.
type PresentStudent struct {
	StudentID      string
	Name           string
	Confidence     float64
	AttendanceRate float64
	BBox           *BBox
}

// AbsentStudent is a class member the capture service did not see.
type AbsentStudent struct {
	StudentID      string
	Name           string
	AttendanceRate float64
}

// UnmatchedFace is a detected face with no student match.
type UnmatchedFace struct {
	BBox       *BBox
	Confidence float64
}

// CaptureResult is the capture service's answer for one photo.
type CaptureResult struct {
	SessionID     string
	FacesDetected int
	MatchesFound  int
	Present       []PresentStudent
	Absent        []AbsentStudent
	Unmatched     []UnmatchedFace
}

// Totals are the face counters reported for one photo.
type Totals struct {
	FacesDetected int `json:"faces_detected"`
	MatchesFound  int `json:"matches_found"`
}

// Confirmation is one entry of a confirmation payload.
type Confirmation struct {
	StudentID string `json:"student_id"`
	Status    Status `json:"status"`
}
