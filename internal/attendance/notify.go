package attendance

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"markr/internal/faceclient"
	"markr/internal/logger"
	"markr/internal/metrics"
	"markr/internal/queue"
)

// JobAbsenceSMS is the queue message type for absence notifications.
const JobAbsenceSMS = "absence_sms"

// DefaultAbsenceMessage is sent when the operator leaves the SMS text empty.
const DefaultAbsenceMessage = "Your child was absent from class today. Please contact the school if this is an error."

// AbsenceJob asks the worker to notify guardians of absent students.
type AbsenceJob struct {
	Message     string   `json:"message"`
	TargetClass string   `json:"target_class"`
	SessionID   string   `json:"session_id"`
	StudentIDs  []string `json:"student_ids"`
}

// Encode wraps the job in a queue message.
func (j AbsenceJob) Encode() (queue.Message, error) {
	body, err := json.Marshal(j)
	if err != nil {
		return queue.Message{}, err
	}
	return queue.Message{Type: JobAbsenceSMS, Body: body}, nil
}

// DecodeAbsenceJob reads a job produced by Encode.
func DecodeAbsenceJob(msg queue.Message) (AbsenceJob, error) {
	if msg.Type != JobAbsenceSMS {
		return AbsenceJob{}, fmt.Errorf("unexpected job type %q", msg.Type)
	}
	var job AbsenceJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		return AbsenceJob{}, fmt.Errorf("decode absence job: %w", err)
	}
	if job.Message == "" {
		job.Message = DefaultAbsenceMessage
	}
	return job, nil
}

// SMSSender relays a message to the guardians of a class's absentees.
type SMSSender interface {
	SendSMS(ctx context.Context, message, targetClass string) (faceclient.SMSResult, error)
}

// Notifier delivers absence jobs. Delivery is fire-and-forget: failures are
// logged and counted, never retried.
type Notifier struct {
	sender  SMSSender
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewNotifier builds a notifier.
func NewNotifier(sender SMSSender, log *zap.Logger, m *metrics.Metrics) *Notifier {
	return &Notifier{sender: sender, log: logger.OrNop(log), metrics: m}
}

// Handle processes one queue message.
func (n *Notifier) Handle(ctx context.Context, msg queue.Message) error {
	job, err := DecodeAbsenceJob(msg)
	if err != nil {
		n.log.Warn("notification job dropped", zap.String("type", msg.Type), zap.Error(err))
		n.metrics.ObserveJob("deliver", err)
		return err
	}

	res, err := n.sender.SendSMS(ctx, job.Message, job.TargetClass)
	n.metrics.ObserveJob("deliver", err)
	if err != nil {
		n.log.Error("absence sms failed",
			zap.String("session_id", job.SessionID),
			zap.String("class_id", job.TargetClass),
			zap.Int("absent", len(job.StudentIDs)),
			zap.Error(err))
		return err
	}
	n.log.Info("absence sms sent",
		zap.String("session_id", job.SessionID),
		zap.String("class_id", job.TargetClass),
		zap.Int("absent", len(job.StudentIDs)),
		zap.Int("recipients", res.Recipients))
	return nil
}

// Run consumes the queue until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range messages {
		_ = n.Handle(ctx, msg)
	}
	return nil
}
