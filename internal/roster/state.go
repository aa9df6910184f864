package roster

import "fmt"

// State is the aggregated review state of a capture session. Students are
// keyed by external student id and detections by synthesized face id; the
// order slices keep display order stable across merges.
type State struct {
	Students       map[string]Student   `json:"students"`
	StudentOrder   []string             `json:"student_order"`
	Detections     map[string]Detection `json:"detections"`
	DetectionOrder []string             `json:"detection_order"`
	PhotoTotals    map[string]Totals    `json:"photo_totals"`
}

// NewState returns an empty state.
func NewState() *State {
	s := &State{}
	s.ensure()
	return s
}

func (s *State) ensure() {
	if s.Students == nil {
		s.Students = make(map[string]Student)
	}
	if s.Detections == nil {
		s.Detections = make(map[string]Detection)
	}
	if s.PhotoTotals == nil {
		s.PhotoTotals = make(map[string]Totals)
	}
}

// FaceID builds the detection id for the index-th face of a photo.
// Ids are unique across the whole session because the photo id is unique.
func FaceID(photoID string, status Status, index int) string {
	return fmt.Sprintf("%s_%s_%d", photoID, status, index)
}

// Merge folds one photo's capture result into the state.
//
// Present students overwrite any existing record. Absent students are
// written only when the student is not already present, so a later photo
// can never downgrade a positive match. The photo's previous detections
// and totals are dropped first, so re-merging a photo replaces its
// contribution. Face totals are tracked per photo and summed on read.
func (s *State) Merge(photoID string, res CaptureResult) {
	s.ensure()
	s.RemovePhoto(photoID)

	for _, p := range dedupPresent(res.Present) {
		conf := p.Confidence
		rec := Student{
			StudentID:      p.StudentID,
			Name:           p.Name,
			Status:         StatusPresent,
			Confidence:     &conf,
			AttendanceRate: p.AttendanceRate,
		}
		if prev, ok := s.Students[p.StudentID]; ok && rec.Name == "" {
			rec.Name = prev.Name
		}
		s.putStudent(rec)
	}

	for _, a := range dedupAbsent(res.Absent) {
		prev, ok := s.Students[a.StudentID]
		if ok && prev.Status == StatusPresent {
			continue
		}
		rec := Student{
			StudentID:      a.StudentID,
			Name:           a.Name,
			Status:         StatusAbsent,
			AttendanceRate: a.AttendanceRate,
		}
		if ok && rec.Name == "" {
			rec.Name = prev.Name
		}
		s.putStudent(rec)
	}

	for i, p := range res.Present {
		d := Detection{
			FaceID:          FaceID(photoID, StatusPresent, i),
			PhotoID:         photoID,
			BBox:            p.BBox,
			Confidence:      p.Confidence,
			SuggestedStatus: StatusPresent,
		}
		if p.StudentID != "" {
			id, name := p.StudentID, p.Name
			d.MatchedStudentID = &id
			if name != "" {
				d.MatchedStudentName = &name
			}
		} else {
			d.SuggestedStatus = StatusUnmatched
		}
		s.putDetection(d)
	}

	for i, u := range res.Unmatched {
		s.putDetection(Detection{
			FaceID:          FaceID(photoID, StatusUnmatched, i),
			PhotoID:         photoID,
			BBox:            u.BBox,
			Confidence:      u.Confidence,
			SuggestedStatus: StatusUnmatched,
		})
	}

	s.PhotoTotals[photoID] = Totals{FacesDetected: res.FacesDetected, MatchesFound: res.MatchesFound}
}

// RemovePhoto drops a photo's detections and face totals. Roster records
// are kept: a student seen only in the removed photo stays on the roster.
func (s *State) RemovePhoto(photoID string) int {
	s.ensure()
	removed := 0
	kept := s.DetectionOrder[:0]
	for _, id := range s.DetectionOrder {
		if d, ok := s.Detections[id]; ok && d.PhotoID == photoID {
			delete(s.Detections, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	s.DetectionOrder = kept
	delete(s.PhotoTotals, photoID)
	return removed
}

// Totals sums the face counters of every merged photo.
func (s *State) Totals() Totals {
	var t Totals
	for _, pt := range s.PhotoTotals {
		t.FacesDetected += pt.FacesDetected
		t.MatchesFound += pt.MatchesFound
	}
	return t
}

func (s *State) putStudent(rec Student) {
	if _, ok := s.Students[rec.StudentID]; !ok {
		s.StudentOrder = append(s.StudentOrder, rec.StudentID)
	}
	s.Students[rec.StudentID] = rec
}

func (s *State) putDetection(d Detection) {
	if _, ok := s.Detections[d.FaceID]; !ok {
		s.DetectionOrder = append(s.DetectionOrder, d.FaceID)
	}
	s.Detections[d.FaceID] = d
}

// dedupPresent keeps the last entry per student id, in first-seen order.
func dedupPresent(in []PresentStudent) []PresentStudent {
	idx := make(map[string]int, len(in))
	out := make([]PresentStudent, 0, len(in))
	for _, p := range in {
		if p.StudentID == "" {
			continue
		}
		if i, ok := idx[p.StudentID]; ok {
			out[i] = p
			continue
		}
		idx[p.StudentID] = len(out)
		out = append(out, p)
	}
	return out
}

func dedupAbsent(in []AbsentStudent) []AbsentStudent {
	idx := make(map[string]int, len(in))
	out := make([]AbsentStudent, 0, len(in))
	for _, a := range in {
		if a.StudentID == "" {
			continue
		}
		if i, ok := idx[a.StudentID]; ok {
			out[i] = a
			continue
		}
		idx[a.StudentID] = len(out)
		out = append(out, a)
	}
	return out
}
