package faceclient

import (
	"fmt"
	"hash/fnv"

	"markr/internal/roster"
)

var mockNames = []string{"Aarav Sharma", "Diya Patel", "Ishaan Nair", "Kavya Iyer", "Rohan Gupta", "Sara Khan"}

// mockCapture returns a stable result for the same class and photo so local
// runs without a backend still exercise merge and review.
func mockCapture(classID, imageData string) roster.CaptureResult {
	h := fnv.New32a()
	_, _ = h.Write([]byte(imageData))
	seed := h.Sum32()

	res := roster.CaptureResult{SessionID: "mock-" + classID}
	for i, name := range mockNames {
		id := fmt.Sprintf("%s-%02d", classID, i+1)
		if seed>>uint(i)&1 == 1 {
			res.Present = append(res.Present, roster.PresentStudent{
				StudentID:      id,
				Name:           name,
				Confidence:     0.6 + float64((seed>>uint(i+8))%40)/100,
				AttendanceRate: 0.85,
			})
			continue
		}
		res.Absent = append(res.Absent, roster.AbsentStudent{StudentID: id, Name: name, AttendanceRate: 0.7})
	}
	if seed%3 == 0 {
		res.Unmatched = append(res.Unmatched, roster.UnmatchedFace{Confidence: 0})
	}
	res.MatchesFound = len(res.Present)
	res.FacesDetected = len(res.Present) + len(res.Unmatched)
	return res
}
