// Package attendance drives the capture workflow: photo intake, sequential
// capture against the attendance backend, manual review, confirmation and
// reset.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"markr/internal/apperr"
	"markr/internal/export"
	"markr/internal/faceclient"
	"markr/internal/logger"
	"markr/internal/metrics"
	"markr/internal/queue"
	"markr/internal/roster"
)

const dateLayout = "2006-01-02"

// Backend is the external attendance service.
type Backend interface {
	Capture(ctx context.Context, classID, imageData string) (roster.CaptureResult, error)
	Confirm(ctx context.Context, sessionID string, confirmations []roster.Confirmation) (faceclient.ConfirmResult, error)
}

// Publisher enqueues notification jobs.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// HistoryStore records confirmed sessions.
type HistoryStore interface {
	SaveConfirmed(ctx context.Context, rec HistoryRecord) (HistoryRecord, error)
	ListConfirmed(ctx context.Context, f HistoryFilter) ([]HistoryRecord, error)
}

// Options tunes intake and review.
type Options struct {
	MaxPhotoBytes   int64
	MaxDimension    int
	MaxPixels       int64
	ReviewThreshold float64
}

// Service coordinates workflows.
type Service struct {
	registry  *Registry
	backend   Backend
	history   HistoryStore
	publisher Publisher
	metrics   *metrics.Metrics
	log       *zap.Logger
	validate  *validator.Validate
	intake    Intake
	opts      Options
	now       func() time.Time
}

// NewService creates a service over a registry and the attendance backend.
func NewService(registry *Registry, backend Backend, opts Options) *Service {
	if opts.ReviewThreshold <= 0 {
		opts.ReviewThreshold = 0.75
	}
	return &Service{
		registry: registry,
		backend:  backend,
		log:      zap.NewNop(),
		validate: NewValidator(),
		intake:   Intake{MaxBytes: opts.MaxPhotoBytes, MaxDimension: opts.MaxDimension, MaxPixels: opts.MaxPixels},
		opts:     opts,
		now:      time.Now,
	}
}

// WithHistory enables writing confirmed sessions.
func (s *Service) WithHistory(h HistoryStore) *Service {
	s.history = h
	return s
}

// WithPublisher enables absence notifications.
func (s *Service) WithPublisher(p Publisher) *Service {
	s.publisher = p
	return s
}

// WithMetrics attaches Prometheus collectors.
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// WithLogger attaches a logger.
func (s *Service) WithLogger(l *zap.Logger) *Service {
	s.log = logger.OrNop(l)
	s.registry.log = s.log
	return s
}

// NewValidator returns a validator that knows the attendance_status tag.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return roster.Status(fl.Field().String()).IsStudentStatus()
	})
	return v
}

func (s *Service) check(req interface{}) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation(err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return apperr.Validation(strings.Join(msgs, "; "))
}

func (s *Service) refreshGauge() {
	s.metrics.SetActiveWorkflows(s.registry.Len())
}

// CreateRequest starts a workflow, optionally with a class already chosen.
type CreateRequest struct {
	ClassID string `json:"class_id" validate:"max=64"`
	Date    string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// Create starts a new workflow for operator.
func (s *Service) Create(ctx context.Context, operator string, req CreateRequest) (View, error) {
	if err := s.check(req); err != nil {
		return View{}, err
	}
	now := s.now().UTC()
	date := req.Date
	if date == "" {
		date = now.Format(dateLayout)
	}
	wf := newWorkflow(uuid.NewString(), operator, strings.TrimSpace(req.ClassID), date, now)
	s.registry.add(ctx, wf)
	s.refreshGauge()
	s.log.Info("workflow created", zap.String("workflow_id", wf.ID), zap.String("operator", operator), zap.String("class_id", wf.ClassID))
	return wf.view(s.opts.ReviewThreshold), nil
}

// Get returns the workflow's current state.
func (s *Service) Get(ctx context.Context, id string) (View, error) {
	var v View
	err := s.registry.read(ctx, id, func(wf *Workflow) error {
		v = wf.view(s.opts.ReviewThreshold)
		return nil
	})
	return v, err
}

// SelectClassRequest chooses the class and date before any photo is uploaded.
type SelectClassRequest struct {
	ClassID string `json:"class_id" validate:"required,max=64"`
	Date    string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// SelectClass sets the class. It is only allowed before the first upload.
func (s *Service) SelectClass(ctx context.Context, id string, req SelectClassRequest) (View, error) {
	if err := s.check(req); err != nil {
		return View{}, err
	}
	var v View
	err := s.registry.update(ctx, id, func(wf *Workflow) error {
		if err := wf.checkEditable(); err != nil {
			return err
		}
		if err := wf.checkIdle(); err != nil {
			return err
		}
		if len(wf.Photos) > 0 || wf.SessionID != "" {
			return apperr.Conflict("class cannot change after photos are uploaded")
		}
		wf.ClassID = strings.TrimSpace(req.ClassID)
		if req.Date != "" {
			wf.Date = req.Date
		}
		v = wf.view(s.opts.ReviewThreshold)
		return nil
	})
	return v, err
}

// UploadResult reports what happened to each file of an upload or retry.
type UploadResult struct {
	Accepted    []roster.Photo `json:"accepted"`
	Rejected    []Rejection    `json:"rejected"`
	Processed   []string       `json:"processed"`
	Unprocessed []string       `json:"unprocessed"`
	SessionID   string         `json:"session_id"`
	Step        Step           `json:"step"`
	Summary     roster.Summary `json:"summary"`
}

// Upload runs intake on the files and captures every accepted photo in
// order. A capture failure stops the batch; photos merged before it stay.
func (s *Service) Upload(ctx context.Context, id string, uploads []Upload) (UploadResult, error) {
	res := UploadResult{Rejected: []Rejection{}, Processed: []string{}, Unprocessed: []string{}}

	var classID string
	err := s.registry.read(ctx, id, func(wf *Workflow) error {
		if err := wf.checkEditable(); err != nil {
			return err
		}
		if err := wf.checkIdle(); err != nil {
			return err
		}
		if wf.ClassID == "" {
			return apperr.Validation("select a class before uploading photos")
		}
		classID = wf.ClassID
		return nil
	})
	if err != nil {
		return res, err
	}

	photos, rejected := s.intake.Process(uploads)
	for _, r := range rejected {
		s.log.Warn("photo rejected", zap.String("workflow_id", id), zap.String("file", r.Name), zap.String("reason", r.Reason))
	}
	res.Rejected = append(res.Rejected, rejected...)
	if len(photos) == 0 {
		return res, apperr.Validation("no valid image files")
	}

	err = s.registry.update(ctx, id, func(wf *Workflow) error {
		if err := wf.checkEditable(); err != nil {
			return err
		}
		if err := wf.checkIdle(); err != nil {
			return err
		}
		if wf.ClassID != classID {
			return apperr.Conflict("class changed during upload")
		}
		wf.Photos = append(wf.Photos, photos...)
		wf.activity = capturing
		return nil
	})
	if err != nil {
		return res, err
	}
	res.Accepted = photos

	err = s.captureBatch(ctx, id, classID, photos, &res)
	return res, err
}

// Retry captures photos left unprocessed by a failed batch.
func (s *Service) Retry(ctx context.Context, id string) (UploadResult, error) {
	res := UploadResult{Rejected: []Rejection{}, Processed: []string{}, Unprocessed: []string{}}

	var (
		classID string
		pending []roster.Photo
	)
	err := s.registry.update(ctx, id, func(wf *Workflow) error {
		if err := wf.checkEditable(); err != nil {
			return err
		}
		if err := wf.checkIdle(); err != nil {
			return err
		}
		for _, p := range wf.Photos {
			if p.Captured {
				continue
			}
			if p.Data == "" {
				res.Rejected = append(res.Rejected, Rejection{Name: p.Name, Reason: "photo data no longer available; upload it again"})
				continue
			}
			pending = append(pending, p)
		}
		if len(pending) == 0 {
			return apperr.Validation("no photos waiting for capture")
		}
		classID = wf.ClassID
		wf.activity = capturing
		return nil
	})
	if err != nil {
		return res, err
	}

	err = s.captureBatch(ctx, id, classID, pending, &res)
	return res, err
}

// captureBatch calls the backend for each photo in order, with no lock held
// during the call, and merges each result under the workflow lock.
func (s *Service) captureBatch(ctx context.Context, id, classID string, photos []roster.Photo, res *UploadResult) error {
	var batchErr error
	for i, p := range photos {
		start := time.Now()
		out, err := s.backend.Capture(ctx, classID, p.Data)
		s.metrics.ObserveCapture(err, time.Since(start))
		if err != nil {
			for _, rest := range photos[i:] {
				res.Unprocessed = append(res.Unprocessed, rest.ID)
			}
			s.log.Error("capture failed",
				zap.String("workflow_id", id),
				zap.String("photo_id", p.ID),
				zap.Int("unprocessed", len(photos)-i),
				zap.Error(err))
			batchErr = apperr.Capture(err, captureMessage(p.Name, err, len(photos)-i))
			break
		}

		mergeErr := s.registry.update(ctx, id, func(wf *Workflow) error {
			idx := wf.photoIndex(p.ID)
			if idx < 0 {
				return apperr.NotFound("photo removed during capture")
			}
			wf.state().Merge(p.ID, out)
			wf.Photos[idx].Captured = true
			wf.Photos[idx].Data = ""
			if wf.SessionID == "" {
				wf.SessionID = out.SessionID
			} else if out.SessionID != "" && out.SessionID != wf.SessionID {
				s.log.Debug("capture returned a different session id; keeping the first",
					zap.String("workflow_id", id),
					zap.String("kept", wf.SessionID),
					zap.String("ignored", out.SessionID))
			}
			wf.Step = StepReview
			return nil
		})
		if mergeErr != nil {
			for _, rest := range photos[i:] {
				res.Unprocessed = append(res.Unprocessed, rest.ID)
			}
			batchErr = mergeErr
			break
		}
		res.Processed = append(res.Processed, p.ID)
	}

	finishErr := s.registry.update(context.WithoutCancel(ctx), id, func(wf *Workflow) error {
		wf.activity = idle
		res.SessionID = wf.SessionID
		res.Step = wf.Step
		res.Summary = wf.state().Summary()
		return nil
	})
	if batchErr == nil {
		batchErr = finishErr
	}

	s.log.Info("capture batch finished",
		zap.String("workflow_id", id),
		zap.Int("processed", len(res.Processed)),
		zap.Int("unprocessed", len(res.Unprocessed)))
	return batchErr
}

func captureMessage(name string, err error, remaining int) string {
	reason := "the attendance service could not process it"
	var se *faceclient.StatusError
	if errors.As(err, &se) {
		if msg := se.BackendMessage(); msg != "" {
			reason = msg
		}
	}
	return fmt.Sprintf("capture failed for %s (%s); %d photo(s) not processed, retry when ready", name, reason, remaining)
}

// RemovePhoto drops a photo and its detections. Roster records stay.
func (s *Service) RemovePhoto(ctx context.Context, id, photoID string) (View, error) {
	var v View
	err := s.registry.update(ctx, id, func(wf *Workflow) error {
		if err := wf.checkEditable(); err != nil {
			return err
		}
		if err := wf.checkIdle(); err != nil {
			return err
		}
		idx := wf.photoIndex(photoID)
		if idx < 0 {
			return apperr.NotFound("photo not found")
		}
		wf.Photos = append(wf.Photos[:idx], wf.Photos[idx+1:]...)
		wf.state().RemovePhoto(photoID)
		v = wf.view(s.opts.ReviewThreshold)
		return nil
	})
	return v, err
}

// StudentList is a filtered roster with the live summary.
type StudentList struct {
	Students []roster.Student `json:"students"`
	Summary  roster.Summary   `json:"summary"`
}

// Students lists the roster under a filter.
func (s *Service) Students(ctx context.Context, id string, f roster.Filter) (StudentList, error) {
	if err := s.check(f); err != nil {
		return StudentList{}, err
	}
	var out StudentList
	err := s.registry.read(ctx, id, func(wf *Workflow) error {
		out.Students = wf.state().List(f)
		out.Summary = wf.state().Summary()
		return nil
	})
	return out, err
}

// StatusRequest sets one student's status.
type StatusRequest struct {
	Status roster.Status `json:"status" validate:"required,attendance_status"`
}

// StudentChange is the result of a single-student override.
type StudentChange struct {
	Student roster.Student `json:"student"`
	Summary roster.Summary `json:"summary"`
}

// SetStudentStatus overrides one student's status.
func (s *Service) SetStudentStatus(ctx context.Context, id, studentID string, req StatusRequest) (StudentChange, error) {
	if err := s.check(req); err != nil {
		return StudentChange{}, err
	}
	return s.mutateStudent(ctx, id, studentID, func(st *roster.State) error {
		return st.SetStudentStatus(studentID, req.Status)
	})
}

// ToggleStudent flips present and absent; unmarked becomes present.
func (s *Service) ToggleStudent(ctx context.Context, id, studentID string) (StudentChange, error) {
	return s.mutateStudent(ctx, id, studentID, func(st *roster.State) error {
		_, err := st.ToggleStudent(studentID)
		return err
	})
}

func (s *Service) mutateStudent(ctx context.Context, id, studentID string, fn func(*roster.State) error) (StudentChange, error) {
	var out StudentChange
	err := s.registry.update(ctx, id, func(wf *Workflow) error {
		if err := wf.checkEditable(); err != nil {
			return err
		}
		if err := fn(wf.state()); err != nil {
			return rosterError(err)
		}
		out.Student = wf.state().Students[studentID]
		out.Summary = wf.state().Summary()
		return nil
	})
	return out, err
}

// BulkRequest applies a status to every student visible under Filter.
type BulkRequest struct {
	Filter roster.Filter `json:"filter"`
	Status roster.Status `json:"status" validate:"required,attendance_status"`
}

// BulkChange lists the students a bulk override touched.
type BulkChange struct {
	Changed []string       `json:"changed"`
	Summary roster.Summary `json:"summary"`
}

// BulkSetStatus overrides the filtered subset only.
func (s *Service) BulkSetStatus(ctx context.Context, id string, req BulkRequest) (BulkChange, error) {
	if err := s.check(req); err != nil {
		return BulkChange{}, err
	}
	var out BulkChange
	err := s.registry.update(ctx, id, func(wf *Workflow) error {
		if err := wf.checkEditable(); err != nil {
			return err
		}
		changed, err := wf.state().BulkSetStatus(req.Filter, req.Status)
		if err != nil {
			return rosterError(err)
		}
		out.Changed = changed
		out.Summary = wf.state().Summary()
		return nil
	})
	return out, err
}

// AssignRequest reassigns a detected face. An empty StudentID unassigns it;
// an empty Status means present.
type AssignRequest struct {
	StudentID string        `json:"student_id" validate:"max=64"`
	Status    roster.Status `json:"status" validate:"omitempty,attendance_status"`
}

// FaceChange is the result of a face override.
type FaceChange struct {
	Detection DetectionView  `json:"detection"`
	Summary   roster.Summary `json:"summary"`
}

// AssignFace matches a detection to a student and sets that student's status.
func (s *Service) AssignFace(ctx context.Context, id, faceID string, req AssignRequest) (FaceChange, error) {
	if err := s.check(req); err != nil {
		return FaceChange{}, err
	}
	status := req.Status
	if status == "" {
		status = roster.StatusPresent
	}
	return s.mutateFace(ctx, id, faceID, func(st *roster.State) error {
		return st.ReassignFace(faceID, strings.TrimSpace(req.StudentID), status)
	})
}

// UnassignFace clears a detection's match and leaves the student's status.
func (s *Service) UnassignFace(ctx context.Context, id, faceID string) (FaceChange, error) {
	return s.mutateFace(ctx, id, faceID, func(st *roster.State) error {
		return st.UnassignFace(faceID)
	})
}

func (s *Service) mutateFace(ctx context.Context, id, faceID string, fn func(*roster.State) error) (FaceChange, error) {
	var out FaceChange
	err := s.registry.update(ctx, id, func(wf *Workflow) error {
		if err := wf.checkEditable(); err != nil {
			return err
		}
		if err := fn(wf.state()); err != nil {
			return rosterError(err)
		}
		out.Detection = detectionView(wf.state().Detections[faceID], s.opts.ReviewThreshold)
		out.Summary = wf.state().Summary()
		return nil
	})
	return out, err
}

func rosterError(err error) error {
	switch {
	case errors.Is(err, roster.ErrUnknownFace):
		return apperr.NotFound("face not found")
	case errors.Is(err, roster.ErrUnknownStudent):
		return apperr.NotFound("student not found")
	case errors.Is(err, roster.ErrInvalidStatus):
		return apperr.Validation("invalid status")
	}
	return err
}

// ConfirmRequest carries the operator's confirmation choices.
type ConfirmRequest struct {
	Note         string `json:"note" validate:"max=500"`
	NotifyAbsent bool   `json:"notify_absent"`
	SMSMessage   string `json:"sms_message" validate:"max=160"`
}

// ConfirmResult reports a successful confirmation. Warnings list side
// effects that failed without undoing it.
type ConfirmResult struct {
	Workflow           View     `json:"workflow"`
	Message            string   `json:"message"`
	RecordsCreated     int      `json:"records_created"`
	NotificationQueued bool     `json:"notification_queued"`
	Warnings           []string `json:"warnings,omitempty"`
}

// Confirm sends the final statuses to the backend. Without a session id it
// fails before any network call; on backend failure nothing changes.
func (s *Service) Confirm(ctx context.Context, id string, req ConfirmRequest) (ConfirmResult, error) {
	req.SMSMessage = strings.TrimSpace(req.SMSMessage)
	req.Note = strings.TrimSpace(req.Note)
	if err := s.check(req); err != nil {
		return ConfirmResult{}, err
	}

	var (
		sessionID     string
		confirmations []roster.Confirmation
	)
	err := s.registry.read(ctx, id, func(wf *Workflow) error {
		if wf.Status == StatusConfirmed {
			return apperr.Conflict("attendance already confirmed")
		}
		if err := wf.checkIdle(); err != nil {
			return err
		}
		if wf.SessionID == "" {
			return apperr.Validation("no active session: capture at least one photo before confirming")
		}
		sessionID = wf.SessionID
		confirmations = wf.state().Confirmations()
		wf.activity = confirming
		return nil
	})
	if err != nil {
		return ConfirmResult{}, err
	}

	out, callErr := s.backend.Confirm(ctx, sessionID, confirmations)
	s.metrics.ObserveConfirm(callErr)

	var (
		result  ConfirmResult
		history HistoryRecord
		absent  []string
		classID string
	)
	err = s.registry.update(context.WithoutCancel(ctx), id, func(wf *Workflow) error {
		wf.activity = idle
		if callErr != nil {
			return nil
		}
		now := s.now().UTC()
		wf.Status = StatusConfirmed
		wf.Note = req.Note
		wf.ConfirmedAt = &now

		sum := wf.state().Summary()
		classID = wf.ClassID
		for _, c := range confirmations {
			if c.Status == roster.StatusAbsent {
				absent = append(absent, c.StudentID)
			}
		}
		history = HistoryRecord{
			WorkflowID:    wf.ID,
			SessionID:     wf.SessionID,
			ClassID:       wf.ClassID,
			SessionDate:   wf.Date,
			Operator:      wf.Operator,
			Note:          wf.Note,
			Total:         sum.Total,
			Present:       sum.Present,
			Absent:        sum.Absent,
			Unmarked:      sum.Unmarked,
			FacesDetected: sum.FacesDetected,
			MatchesFound:  sum.MatchesFound,
			ConfirmedAt:   now,
		}
		result.Workflow = wf.view(s.opts.ReviewThreshold)
		return nil
	})
	if callErr != nil {
		s.log.Error("confirm failed", zap.String("workflow_id", id), zap.String("session_id", sessionID), zap.Error(callErr))
		return ConfirmResult{}, apperr.Confirm(callErr)
	}
	if err != nil {
		return ConfirmResult{}, err
	}

	result.Message = out.Message
	result.RecordsCreated = out.RecordsCreated
	s.log.Info("attendance confirmed",
		zap.String("workflow_id", id),
		zap.String("session_id", sessionID),
		zap.Int("confirmations", len(confirmations)))

	// Follow-ups run even when the caller went away after the backend accepted.
	sideCtx := context.WithoutCancel(ctx)
	if s.history != nil {
		if _, err := s.history.SaveConfirmed(sideCtx, history); err != nil {
			s.log.Warn("history write failed", zap.String("workflow_id", id), zap.Error(err))
			result.Warnings = append(result.Warnings, "attendance history could not be saved")
		}
	}

	if req.NotifyAbsent && len(absent) > 0 {
		queued, warning := s.enqueueAbsence(sideCtx, AbsenceJob{
			Message:     req.SMSMessage,
			TargetClass: classID,
			SessionID:   sessionID,
			StudentIDs:  absent,
		})
		result.NotificationQueued = queued
		if warning != "" {
			result.Warnings = append(result.Warnings, warning)
		}
	}
	return result, nil
}

func (s *Service) enqueueAbsence(ctx context.Context, job AbsenceJob) (bool, string) {
	if s.publisher == nil {
		return false, "absence notifications are not configured"
	}
	if job.Message == "" {
		job.Message = DefaultAbsenceMessage
	}
	msg, err := job.Encode()
	if err == nil {
		err = s.publisher.Publish(ctx, msg)
	}
	s.metrics.ObserveJob("enqueue", err)
	if err != nil {
		s.log.Warn("absence notification enqueue failed", zap.String("session_id", job.SessionID), zap.Error(err))
		return false, "absence notification could not be queued"
	}
	return true, ""
}

// Reset clears photos, detections, roster and session so the operator can
// start again. It is only available after a successful confirmation.
func (s *Service) Reset(ctx context.Context, id string) (View, error) {
	var v View
	err := s.registry.update(ctx, id, func(wf *Workflow) error {
		if err := wf.checkIdle(); err != nil {
			return err
		}
		if wf.Status != StatusConfirmed {
			return apperr.Conflict("reset is only available after attendance is confirmed")
		}
		wf.reset()
		v = wf.view(s.opts.ReviewThreshold)
		return nil
	})
	if err == nil {
		s.log.Info("workflow reset", zap.String("workflow_id", id))
	}
	return v, err
}

// Discard deletes a workflow that will not be confirmed.
func (s *Service) Discard(ctx context.Context, id string) error {
	err := s.registry.remove(ctx, id, func(wf *Workflow) error {
		return wf.checkIdle()
	})
	if err == nil {
		s.refreshGauge()
		s.log.Info("workflow discarded", zap.String("workflow_id", id))
	}
	return err
}

// Export returns the confirmed roster as a printable sheet.
func (s *Service) Export(ctx context.Context, id string) (export.Sheet, error) {
	var sheet export.Sheet
	err := s.registry.read(ctx, id, func(wf *Workflow) error {
		if wf.Status != StatusConfirmed {
			return apperr.Conflict("export is available after attendance is confirmed")
		}
		sheet = export.FromRoster(wf.ClassID, wf.Date, wf.state().Roster())
		return nil
	})
	return sheet, err
}

// History lists confirmed sessions.
func (s *Service) History(ctx context.Context, f HistoryFilter) ([]HistoryRecord, error) {
	if err := s.check(f); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []HistoryRecord{}, nil
	}
	records, err := s.history.ListConfirmed(ctx, f)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrInternal.Code, apperr.ErrInternal.Status, "failed to load attendance history")
	}
	return records, nil
}

// Sweep evicts idle workflows from memory.
func (s *Service) Sweep(ttl time.Duration) int {
	n := s.registry.Sweep(ttl)
	s.refreshGauge()
	return n
}
