package roster

// ReassignFace points a detection at a student. The student's roster status
// is set to status, creating the record when the student was not on the
// roster yet. An empty studentID unassigns the face.
func (s *State) ReassignFace(faceID, studentID string, status Status) error {
	s.ensure()
	d, ok := s.Detections[faceID]
	if !ok {
		return ErrUnknownFace
	}
	if studentID == "" {
		return s.UnassignFace(faceID)
	}
	if !status.IsStudentStatus() {
		return ErrInvalidStatus
	}

	id := studentID
	d.MatchedStudentID = &id
	d.MatchedStudentName = nil
	d.SuggestedStatus = status

	rec, exists := s.Students[studentID]
	if !exists {
		rec = Student{StudentID: studentID}
	}
	if rec.Name != "" {
		name := rec.Name
		d.MatchedStudentName = &name
	}
	rec.Status = status
	s.Detections[faceID] = d
	s.putStudent(rec)
	return nil
}

// UnassignFace clears a detection's match. The previously matched student's
// roster status is left as it was.
func (s *State) UnassignFace(faceID string) error {
	s.ensure()
	d, ok := s.Detections[faceID]
	if !ok {
		return ErrUnknownFace
	}
	d.MatchedStudentID = nil
	d.MatchedStudentName = nil
	d.SuggestedStatus = StatusUnmatched
	s.Detections[faceID] = d
	return nil
}

// SetStudentStatus overrides one student's status.
func (s *State) SetStudentStatus(studentID string, status Status) error {
	s.ensure()
	if !status.IsStudentStatus() {
		return ErrInvalidStatus
	}
	rec, ok := s.Students[studentID]
	if !ok {
		return ErrUnknownStudent
	}
	rec.Status = status
	s.Students[studentID] = rec
	return nil
}

// ToggleStudent flips present to absent and anything else to present.
func (s *State) ToggleStudent(studentID string) (Status, error) {
	s.ensure()
	rec, ok := s.Students[studentID]
	if !ok {
		return "", ErrUnknownStudent
	}
	next := StatusPresent
	if rec.Status == StatusPresent {
		next = StatusAbsent
	}
	rec.Status = next
	s.Students[studentID] = rec
	return next, nil
}

// BulkSetStatus sets status on every student visible under f and returns
// their ids. The visible set is resolved before any record changes, so a
// status filter does not shift while it is being applied.
func (s *State) BulkSetStatus(f Filter, status Status) ([]string, error) {
	if !status.IsStudentStatus() {
		return nil, ErrInvalidStatus
	}
	visible := s.List(f)
	ids := make([]string, 0, len(visible))
	for _, rec := range visible {
		ids = append(ids, rec.StudentID)
	}
	for _, id := range ids {
		rec := s.Students[id]
		rec.Status = status
		s.Students[id] = rec
	}
	return ids, nil
}
