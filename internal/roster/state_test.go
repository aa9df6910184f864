package roster

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func present(id, name string, conf float64) PresentStudent {
	return PresentStudent{StudentID: id, Name: name, Confidence: conf, AttendanceRate: 0.9}
}

func absent(id, name string) AbsentStudent {
	return AbsentStudent{StudentID: id, Name: name, AttendanceRate: 0.8}
}

func TestMergePresentWinsAcrossPhotos(t *testing.T) {
	s := NewState()
	s.Merge("photo-a", CaptureResult{
		SessionID: "sess-1",
		Present:   []PresentStudent{present("S1", "Atharva", 0.92)},
		Absent:    []AbsentStudent{absent("S2", "Riya")},
	})
	s.Merge("photo-b", CaptureResult{
		SessionID: "sess-1",
		Present:   []PresentStudent{present("S2", "Riya", 0.85)},
		Absent:    []AbsentStudent{absent("S1", "Atharva")},
	})

	require.Len(t, s.Students, 2)
	assert.Equal(t, StatusPresent, s.Students["S1"].Status)
	assert.Equal(t, StatusPresent, s.Students["S2"].Status)
}

func TestMergeAbsentOnlyWhenNeverPresent(t *testing.T) {
	s := NewState()
	s.Merge("p1", CaptureResult{Absent: []AbsentStudent{absent("S3", "Arjun")}})
	s.Merge("p2", CaptureResult{Absent: []AbsentStudent{absent("S3", "Arjun")}})

	require.Len(t, s.Students, 1)
	assert.Equal(t, StatusAbsent, s.Students["S3"].Status)
	assert.Nil(t, s.Students["S3"].Confidence)
}

func TestMergePresentAndAbsentInSamePhoto(t *testing.T) {
	s := NewState()
	s.Merge("p1", CaptureResult{
		Present: []PresentStudent{present("S1", "A", 0.9)},
		Absent:  []AbsentStudent{absent("S1", "A")},
	})
	assert.Equal(t, StatusPresent, s.Students["S1"].Status)
}

func TestMergeDedupsWithinPhotoLastWriteWins(t *testing.T) {
	s := NewState()
	s.Merge("p1", CaptureResult{
		Present: []PresentStudent{present("S1", "First", 0.6), present("S1", "Second", 0.95)},
	})

	require.Len(t, s.Students, 1)
	require.Len(t, s.StudentOrder, 1)
	rec := s.Students["S1"]
	assert.Equal(t, "Second", rec.Name)
	require.NotNil(t, rec.Confidence)
	assert.InDelta(t, 0.95, *rec.Confidence, 1e-9)
}

func TestMergeKeepsExistingNameWhenMissing(t *testing.T) {
	s := NewState()
	s.Merge("p1", CaptureResult{Absent: []AbsentStudent{absent("S1", "Priya")}})
	s.Merge("p2", CaptureResult{Present: []PresentStudent{present("S1", "", 0.8)}})

	assert.Equal(t, "Priya", s.Students["S1"].Name)
	assert.Equal(t, StatusPresent, s.Students["S1"].Status)
}

func TestMergeSamePhotoTwiceIsIdempotent(t *testing.T) {
	res := CaptureResult{
		FacesDetected: 3,
		MatchesFound:  2,
		Present:       []PresentStudent{present("S1", "A", 0.9), present("S2", "B", 0.7)},
		Unmatched:     []UnmatchedFace{{Confidence: 0.4, BBox: &BBox{X: 1, Y: 2, Width: 3, Height: 4}}},
	}
	s := NewState()
	s.Merge("p1", res)
	before := len(s.Detections)
	s.Merge("p1", res)

	assert.Equal(t, 3, before)
	assert.Len(t, s.Detections, before)
	assert.Len(t, s.DetectionOrder, before)
	assert.Equal(t, Totals{FacesDetected: 3, MatchesFound: 2}, s.Totals())
}

func TestMergeFaceIDsUniqueAcrossPhotos(t *testing.T) {
	s := NewState()
	for i := 0; i < 4; i++ {
		s.Merge(fmt.Sprintf("photo-%d", i), CaptureResult{
			Present:   []PresentStudent{present("S1", "A", 0.9)},
			Unmatched: []UnmatchedFace{{Confidence: 0.3}, {Confidence: 0.2}},
		})
	}

	seen := map[string]bool{}
	for _, id := range s.DetectionOrder {
		assert.False(t, seen[id], "duplicate face id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, 12)
	assert.Equal(t, "photo-2_unmatched_1", FaceID("photo-2", StatusUnmatched, 1))
	assert.Contains(t, s.Detections, "photo-3_present_0")
}

func TestMergeTotalsSumAcrossPhotos(t *testing.T) {
	s := NewState()
	s.Merge("p1", CaptureResult{FacesDetected: 5, MatchesFound: 4})
	s.Merge("p2", CaptureResult{FacesDetected: 3, MatchesFound: 1})

	assert.Equal(t, Totals{FacesDetected: 8, MatchesFound: 5}, s.Totals())
}

func TestMergeDetectionFields(t *testing.T) {
	s := NewState()
	s.Merge("p1", CaptureResult{
		Present:   []PresentStudent{{StudentID: "S1", Name: "Vikram", Confidence: 0.88}},
		Unmatched: []UnmatchedFace{{Confidence: 0.42}},
	})

	matched := s.Detections["p1_present_0"]
	require.NotNil(t, matched.MatchedStudentID)
	assert.Equal(t, "S1", *matched.MatchedStudentID)
	require.NotNil(t, matched.MatchedStudentName)
	assert.Equal(t, "Vikram", *matched.MatchedStudentName)
	assert.Equal(t, StatusPresent, matched.SuggestedStatus)

	unmatched := s.Detections["p1_unmatched_0"]
	assert.Nil(t, unmatched.MatchedStudentID)
	assert.Nil(t, unmatched.MatchedStudentName)
	assert.Equal(t, StatusUnmatched, unmatched.SuggestedStatus)
}

func TestRemovePhotoDropsDetectionsButKeepsRoster(t *testing.T) {
	s := NewState()
	s.Merge("p1", CaptureResult{FacesDetected: 2, Present: []PresentStudent{present("S1", "A", 0.9)}, Unmatched: []UnmatchedFace{{}}})
	s.Merge("p2", CaptureResult{FacesDetected: 1, Present: []PresentStudent{present("S2", "B", 0.9)}})

	removed := s.RemovePhoto("p1")

	assert.Equal(t, 2, removed)
	assert.Len(t, s.Detections, 1)
	assert.Equal(t, []string{"p2_present_0"}, s.DetectionOrder)
	assert.Len(t, s.Students, 2)
	assert.Equal(t, 1, s.Totals().FacesDetected)
}

func TestDedupInvariantOverManyMerges(t *testing.T) {
	s := NewState()
	ids := []string{"S1", "S2", "S3", "S4"}
	for round := 0; round < 10; round++ {
		res := CaptureResult{}
		for i, id := range ids {
			if (i+round)%2 == 0 {
				res.Present = append(res.Present, present(id, id, 0.9))
			} else {
				res.Absent = append(res.Absent, absent(id, id))
			}
		}
		s.Merge(fmt.Sprintf("p%d", round), res)
	}

	assert.Len(t, s.Students, len(ids))
	assert.Len(t, s.StudentOrder, len(ids))
	for _, id := range ids {
		assert.Equal(t, StatusPresent, s.Students[id].Status)
	}
}

func TestMergeSamePhotoWithFewerFacesDropsStaleDetections(t *testing.T) {
	s := NewState()
	s.Merge("p1", CaptureResult{FacesDetected: 2, Unmatched: []UnmatchedFace{{}, {}}})
	s.Merge("p2", CaptureResult{FacesDetected: 1, Unmatched: []UnmatchedFace{{}}})

	s.Merge("p1", CaptureResult{FacesDetected: 1, Unmatched: []UnmatchedFace{{Confidence: 0.4}}})

	assert.Len(t, s.Detections, 2)
	assert.NotContains(t, s.Detections, "p1_unmatched_1")
	assert.InDelta(t, 0.4, s.Detections["p1_unmatched_0"].Confidence, 1e-9)
	assert.Equal(t, []string{"p2_unmatched_0", "p1_unmatched_0"}, s.DetectionOrder)
	assert.Equal(t, 2, s.Summary().Unmatched)
	assert.Equal(t, 2, s.Totals().FacesDetected)
}
