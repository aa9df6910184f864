package attendance

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"markr/internal/faceclient"
	"markr/internal/queue"
	"markr/internal/roster"
)

var testNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, G: 40, B: 40, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func photoUploads(t *testing.T, n int) []Upload {
	out := make([]Upload, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Upload{Name: "class.png", Data: pngBytes(t, 8, 8)})
	}
	return out
}

type captureReply struct {
	res roster.CaptureResult
	err error
}

type stubBackend struct {
	mu           sync.Mutex
	replies      []captureReply
	captureCalls int
	confirmCalls int
	confirmed    []roster.Confirmation
	confirmErr   error
	gate         chan struct{}
	entered      chan struct{}
	onConfirm    func()
}

func (b *stubBackend) Capture(ctx context.Context, classID, imageData string) (roster.CaptureResult, error) {
	b.mu.Lock()
	b.captureCalls++
	var reply captureReply
	if len(b.replies) > 0 {
		reply = b.replies[0]
		b.replies = b.replies[1:]
	} else {
		reply = captureReply{res: roster.CaptureResult{SessionID: "sess-default"}}
	}
	gate, entered := b.gate, b.entered
	b.mu.Unlock()

	if gate != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-gate
	}
	return reply.res, reply.err
}

func (b *stubBackend) Confirm(ctx context.Context, sessionID string, confirmations []roster.Confirmation) (faceclient.ConfirmResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmCalls++
	if b.onConfirm != nil {
		b.onConfirm()
	}
	if b.confirmErr != nil {
		return faceclient.ConfirmResult{}, b.confirmErr
	}
	b.confirmed = confirmations
	return faceclient.ConfirmResult{Message: "ok", RecordsCreated: len(confirmations)}, nil
}

func (b *stubBackend) calls() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.captureCalls, b.confirmCalls
}

type stubHistory struct {
	saved []HistoryRecord
	err   error
}

func (h *stubHistory) SaveConfirmed(ctx context.Context, rec HistoryRecord) (HistoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return HistoryRecord{}, err
	}
	if h.err != nil {
		return HistoryRecord{}, h.err
	}
	h.saved = append(h.saved, rec)
	return rec, nil
}

func (h *stubHistory) ListConfirmed(ctx context.Context, f HistoryFilter) ([]HistoryRecord, error) {
	return h.saved, nil
}

type stubPublisher struct {
	messages []queue.Message
	err      error
}

func (p *stubPublisher) Publish(ctx context.Context, msg queue.Message) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

var errBackendDown = errors.New("connection refused")

func newTestService(backend Backend) *Service {
	reg := NewRegistry(nil, nil)
	reg.now = func() time.Time { return testNow }
	svc := NewService(reg, backend, Options{MaxPhotoBytes: 1 << 20, MaxDimension: 64})
	svc.now = func() time.Time { return testNow }
	svc.intake.now = svc.now
	return svc
}

func newWorkflowWithClass(t *testing.T, svc *Service) View {
	t.Helper()
	v, err := svc.Create(context.Background(), "teacher-1", CreateRequest{ClassID: "10-A"})
	require.NoError(t, err)
	return v
}

func presentOf(id, name string, conf float64) roster.PresentStudent {
	return roster.PresentStudent{StudentID: id, Name: name, Confidence: conf, AttendanceRate: 0.9}
}

func absentOf(id, name string) roster.AbsentStudent {
	return roster.AbsentStudent{StudentID: id, Name: name, AttendanceRate: 0.8}
}
