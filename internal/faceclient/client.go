// Package faceclient calls the external attendance backend that runs face
// recognition, records confirmed attendance and relays SMS.
package faceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"markr/internal/auth"
	"markr/internal/roster"
)

// ConfirmResult is the backend's answer to a confirmation.
type ConfirmResult struct {
	Message        string `json:"message"`
	RecordsCreated int    `json:"records_created"`
}

// SMSResult is the backend's answer to an SMS relay request.
type SMSResult struct {
	Message    string `json:"message"`
	Recipients int    `json:"recipients"`
}

// Client calls the attendance backend.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client with configurable timeout. token is the service
// credential used when the request context carries no operator token.
func New(baseURL, token string, timeout time.Duration, skip bool) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second // recognition on a full class photo is slow
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Skip:    skip,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Capture submits one photo for recognition against classID's roster.
func (c *Client) Capture(ctx context.Context, classID, imageData string) (roster.CaptureResult, error) {
	if classID == "" || imageData == "" {
		return roster.CaptureResult{}, errors.New("class and image data required")
	}
	if c.Skip {
		return mockCapture(classID, imageData), nil
	}

	var out captureResponse
	payload := map[string]string{"class_name": classID, "image_data": imageData}
	if err := c.postJSON(ctx, "/api/attendance/capture", payload, &out); err != nil {
		return roster.CaptureResult{}, err
	}
	return out.toResult(), nil
}

// Confirm submits the final per-student statuses for a session.
func (c *Client) Confirm(ctx context.Context, sessionID string, confirmations []roster.Confirmation) (ConfirmResult, error) {
	if sessionID == "" {
		return ConfirmResult{}, errors.New("session id required")
	}
	if confirmations == nil {
		confirmations = []roster.Confirmation{}
	}
	if c.Skip {
		return ConfirmResult{
			Message:        fmt.Sprintf("Attendance recorded for %d students (mock)", len(confirmations)),
			RecordsCreated: len(confirmations),
		}, nil
	}

	var out ConfirmResult
	payload := map[string]interface{}{"session_id": sessionID, "confirmations": confirmations}
	if err := c.postJSON(ctx, "/api/attendance/confirm", payload, &out); err != nil {
		return ConfirmResult{}, err
	}
	return out, nil
}

// SendSMS asks the backend to text the guardians of absentees in targetClass.
func (c *Client) SendSMS(ctx context.Context, message, targetClass string) (SMSResult, error) {
	if message == "" {
		return SMSResult{}, errors.New("message required")
	}
	if c.Skip {
		return SMSResult{Message: "SMS queued (mock)"}, nil
	}

	var out SMSResult
	payload := map[string]string{"message": message, "targetClass": targetClass}
	if err := c.postJSON(ctx, "/api/attendance/sms", payload, &out); err != nil {
		return SMSResult{}, err
	}
	return out, nil
}

// Health checks if the attendance backend is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("attendance backend unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("attendance backend unhealthy: %s", resp.Status)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.bearer(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("attendance backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(bodyBytes))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) bearer(ctx context.Context) string {
	if token, ok := auth.TokenFromContext(ctx); ok {
		return token
	}
	return c.Token
}

// StatusError is returned for non-2xx backend responses.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("attendance backend error %s: %s", e.Status, e.Body)
}

// BackendMessage extracts the backend's {"error": "..."} text when present.
func (e *StatusError) BackendMessage() string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(e.Body), &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return ""
}
