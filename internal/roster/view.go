package roster

import (
	"sort"
	"strings"
)

// Sort keys for List.
const (
	SortByName           = "name"
	SortByAttendanceRate = "attendance_rate"
	SortByStatus         = "status"
)

// FilterAll disables the status filter.
const FilterAll = "all"

// Filter selects and orders the roster view.
type Filter struct {
	Search string `form:"search" json:"search" validate:"max=100"`
	Status string `form:"status" json:"status" validate:"omitempty,oneof=all present absent unmarked"`
	SortBy string `form:"sort" json:"sort" validate:"omitempty,oneof=name attendance_rate status"`
}

// Match reports whether rec is visible under f.
func (f Filter) Match(rec Student) bool {
	if f.Search != "" && !strings.Contains(strings.ToLower(rec.Name), strings.ToLower(f.Search)) {
		return false
	}
	if f.Status != "" && f.Status != FilterAll && string(rec.Status) != f.Status {
		return false
	}
	return true
}

// Roster returns every student in first-seen order.
func (s *State) Roster() []Student {
	out := make([]Student, 0, len(s.StudentOrder))
	for _, id := range s.StudentOrder {
		if rec, ok := s.Students[id]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// List returns the students visible under f, sorted by f.SortBy.
func (s *State) List(f Filter) []Student {
	out := make([]Student, 0, len(s.StudentOrder))
	for _, rec := range s.Roster() {
		if f.Match(rec) {
			out = append(out, rec)
		}
	}

	sortBy := f.SortBy
	if sortBy == "" {
		sortBy = SortByName
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch sortBy {
		case SortByAttendanceRate:
			return a.AttendanceRate > b.AttendanceRate
		case SortByStatus:
			return a.Status < b.Status
		case SortByName:
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
		return false
	})
	return out
}

// Faces returns detections in display order, optionally limited to a photo.
func (s *State) Faces(photoID string) []Detection {
	out := make([]Detection, 0, len(s.DetectionOrder))
	for _, id := range s.DetectionOrder {
		d, ok := s.Detections[id]
		if !ok {
			continue
		}
		if photoID != "" && d.PhotoID != photoID {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Confirmations builds the confirmation payload. Unmarked students are
// left out entirely.
func (s *State) Confirmations() []Confirmation {
	out := make([]Confirmation, 0, len(s.StudentOrder))
	for _, rec := range s.Roster() {
		if rec.Status == StatusUnmarked {
			continue
		}
		out = append(out, Confirmation{StudentID: rec.StudentID, Status: rec.Status})
	}
	return out
}

// Summary holds live counts over the roster and detections.
type Summary struct {
	Total          int     `json:"total"`
	Present        int     `json:"present"`
	Absent         int     `json:"absent"`
	Unmarked       int     `json:"unmarked"`
	Unmatched      int     `json:"unmatched"`
	FacesDetected  int     `json:"faces_detected"`
	MatchesFound   int     `json:"matches_found"`
	AttendanceRate float64 `json:"attendance_rate"`
}

// Summary counts the current state. It is computed on every call.
func (s *State) Summary() Summary {
	var sum Summary
	for _, rec := range s.Students {
		sum.Total++
		switch rec.Status {
		case StatusPresent:
			sum.Present++
		case StatusAbsent:
			sum.Absent++
		default:
			sum.Unmarked++
		}
	}
	for _, d := range s.Detections {
		if !d.Matched() {
			sum.Unmatched++
		}
	}
	t := s.Totals()
	sum.FacesDetected = t.FacesDetected
	sum.MatchesFound = t.MatchesFound
	if sum.Total > 0 {
		sum.AttendanceRate = float64(sum.Present) / float64(sum.Total)
	}
	return sum
}

// Confidence bands shown next to a detection.
const (
	BandHigh   = "high"
	BandMedium = "medium"
	BandLow    = "low"
)

// Band classifies a match confidence.
func Band(confidence float64) string {
	switch {
	case confidence >= 0.8:
		return BandHigh
	case confidence >= 0.5:
		return BandMedium
	}
	return BandLow
}

// NeedsReview reports a matched detection whose confidence is under threshold.
func NeedsReview(d Detection, threshold float64) bool {
	return d.Matched() && d.Confidence < threshold
}
