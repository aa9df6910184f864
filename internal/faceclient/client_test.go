package faceclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markr/internal/auth"
	"markr/internal/roster"
)

func TestCaptureDecodesBackendShapes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/attendance/capture", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "10-A", body["class_name"])
		assert.Equal(t, "aGVsbG8=", body["image_data"])

		_, _ = w.Write([]byte(`{
			"session_id": "sess-1",
			"faces_detected": 3,
			"matches_found": 2,
			"present_students": [
				{"student_id": 17, "student_name": "Atharva", "confidence": 0.91},
				{"id": "S2", "name": "Riya", "confidence": 0.66, "bbox": {"x": 1, "y": 2, "width": 30, "height": 40}}
			],
			"absent_students": [{"id": 5, "name": "Arjun", "student_id": null}],
			"unmatched_faces": [{"face_index": 2, "confidence": 0}]
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second, false)
	res, err := c.Capture(context.Background(), "10-A", "aGVsbG8=")
	require.NoError(t, err)

	assert.Equal(t, "sess-1", res.SessionID)
	assert.Equal(t, 3, res.FacesDetected)
	assert.Equal(t, 2, res.MatchesFound)
	require.Len(t, res.Present, 2)
	assert.Equal(t, "17", res.Present[0].StudentID)
	assert.Equal(t, "Atharva", res.Present[0].Name)
	assert.Equal(t, "S2", res.Present[1].StudentID)
	assert.Equal(t, "Riya", res.Present[1].Name)
	assert.Equal(t, &roster.BBox{X: 1, Y: 2, Width: 30, Height: 40}, res.Present[1].BBox)
	require.Len(t, res.Absent, 1)
	assert.Equal(t, "5", res.Absent[0].StudentID)
	assert.Len(t, res.Unmatched, 1)
}

func TestCaptureNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": "You are not assigned to this class"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "", time.Second, false).Capture(context.Background(), "10-A", "x")
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.Code)
	assert.Equal(t, "You are not assigned to this class", se.BackendMessage())
}

func TestCaptureMalformedBodyIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "", time.Second, false).Capture(context.Background(), "10-A", "x")
	assert.ErrorContains(t, err, "decode")
}

func TestBearerPrefersForwardedToken(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"message": "ok", "records_created": 1}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "service-token", time.Second, false)
	confs := []roster.Confirmation{{StudentID: "S1", Status: roster.StatusPresent}}

	_, err := c.Confirm(context.Background(), "sess-1", confs)
	require.NoError(t, err)
	_, err = c.Confirm(auth.ContextWithToken(context.Background(), "operator-token"), "sess-1", confs)
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer service-token", "Bearer operator-token"}, seen)
}

func TestConfirmSendsPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/attendance/confirm", r.URL.Path)
		var body struct {
			SessionID     string                `json:"session_id"`
			Confirmations []roster.Confirmation `json:"confirmations"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "sess-9", body.SessionID)
		assert.Equal(t, []roster.Confirmation{{StudentID: "S1", Status: roster.StatusAbsent}}, body.Confirmations)
		_, _ = w.Write([]byte(`{"message": "Attendance recorded for 1 students", "records_created": 1}`))
	}))
	defer srv.Close()

	out, err := New(srv.URL, "", time.Second, false).Confirm(context.Background(), "sess-9",
		[]roster.Confirmation{{StudentID: "S1", Status: roster.StatusAbsent}})
	require.NoError(t, err)
	assert.Equal(t, 1, out.RecordsCreated)

	_, err = New(srv.URL, "", time.Second, false).Confirm(context.Background(), "", nil)
	assert.Error(t, err)
}

func TestSendSMSAndHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/attendance/sms":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Your ward was absent today", body["message"])
			assert.Equal(t, "10-A", body["targetClass"])
			_, _ = w.Write([]byte(`{"message": "sent", "recipients": 2}`))
		case "/api/health":
			_, _ = w.Write([]byte(`{"status": "healthy"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second, false)
	out, err := c.SendSMS(context.Background(), "Your ward was absent today", "10-A")
	require.NoError(t, err)
	assert.Equal(t, 2, out.Recipients)
	assert.NoError(t, c.Health(context.Background()))
}

func TestSkipModeIsDeterministic(t *testing.T) {
	c := New("http://unused", "", time.Second, true)

	a, err := c.Capture(context.Background(), "10-A", "photo-bytes")
	require.NoError(t, err)
	b, err := c.Capture(context.Background(), "10-A", "photo-bytes")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, "mock-10-A", a.SessionID)
	assert.Len(t, a.Present, a.MatchesFound)
	assert.Equal(t, len(mockNames), len(a.Present)+len(a.Absent))
	assert.NoError(t, c.Health(context.Background()))
}
