package attendance

import (
	"time"

	"markr/internal/apperr"
	"markr/internal/roster"
)

// Step is the workflow's position in upload → review.
type Step string

const (
	StepUpload Step = "upload"
	StepReview Step = "review"
)

// SessionStatus is the confirmation state of a workflow.
type SessionStatus string

const (
	StatusPending   SessionStatus = "pending"
	StatusConfirmed SessionStatus = "confirmed"
)

type activity int

const (
	idle activity = iota
	capturing
	confirming
)

// Workflow is one operator's attendance capture for a class on a date.
type Workflow struct {
	ID          string         `json:"id"`
	Operator    string         `json:"operator"`
	ClassID     string         `json:"class_id"`
	Date        string         `json:"date"`
	Step        Step           `json:"step"`
	Status      SessionStatus  `json:"status"`
	SessionID   string         `json:"session_id"`
	Note        string         `json:"note"`
	Photos      []roster.Photo `json:"photos"`
	State       *roster.State  `json:"state"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	ConfirmedAt *time.Time     `json:"confirmed_at,omitempty"`

	activity activity
}

func newWorkflow(id, operator, classID, date string, now time.Time) *Workflow {
	return &Workflow{
		ID:        id,
		Operator:  operator,
		ClassID:   classID,
		Date:      date,
		Step:      StepUpload,
		Status:    StatusPending,
		State:     roster.NewState(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Busy reports whether a capture batch or confirmation is in flight.
func (w *Workflow) Busy() bool {
	return w.activity != idle
}

func (w *Workflow) state() *roster.State {
	if w.State == nil {
		w.State = roster.NewState()
	}
	return w.State
}

func (w *Workflow) photoIndex(photoID string) int {
	for i, p := range w.Photos {
		if p.ID == photoID {
			return i
		}
	}
	return -1
}

// checkEditable guards roster and photo mutations.
func (w *Workflow) checkEditable() error {
	if w.Status == StatusConfirmed {
		return apperr.Conflict("attendance already confirmed; reset to start a new session")
	}
	if w.activity == confirming {
		return apperr.Clone(apperr.ErrBusy, "confirmation in progress")
	}
	return nil
}

// checkIdle guards operations that cannot overlap a batch or a confirmation.
func (w *Workflow) checkIdle() error {
	switch w.activity {
	case capturing:
		return apperr.Clone(apperr.ErrBusy, "a capture batch is still in progress")
	case confirming:
		return apperr.Clone(apperr.ErrBusy, "confirmation in progress")
	}
	return nil
}

func (w *Workflow) reset() {
	w.Photos = nil
	w.State = roster.NewState()
	w.SessionID = ""
	w.Note = ""
	w.Step = StepUpload
	w.Status = StatusPending
	w.ConfirmedAt = nil
}

// DetectionView is a detection with its review hints.
type DetectionView struct {
	roster.Detection
	Band        string `json:"band"`
	NeedsReview bool   `json:"needs_review"`
}

// View is the client-facing rendering of a workflow.
type View struct {
	ID          string           `json:"id"`
	Operator    string           `json:"operator"`
	ClassID     string           `json:"class_id"`
	Date        string           `json:"date"`
	Step        Step             `json:"step"`
	Status      SessionStatus    `json:"status"`
	SessionID   string           `json:"session_id"`
	Note        string           `json:"note"`
	Busy        bool             `json:"busy"`
	Photos      []roster.Photo   `json:"photos"`
	Students    []roster.Student `json:"students"`
	Detections  []DetectionView  `json:"detections"`
	Summary     roster.Summary   `json:"summary"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	ConfirmedAt *time.Time       `json:"confirmed_at,omitempty"`
}

func (w *Workflow) view(threshold float64) View {
	st := w.state()
	photos := make([]roster.Photo, len(w.Photos))
	copy(photos, w.Photos)
	return View{
		ID:          w.ID,
		Operator:    w.Operator,
		ClassID:     w.ClassID,
		Date:        w.Date,
		Step:        w.Step,
		Status:      w.Status,
		SessionID:   w.SessionID,
		Note:        w.Note,
		Busy:        w.Busy(),
		Photos:      photos,
		Students:    st.Roster(),
		Detections:  detectionViews(st.Faces(""), threshold),
		Summary:     st.Summary(),
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
		ConfirmedAt: w.ConfirmedAt,
	}
}

func detectionView(d roster.Detection, threshold float64) DetectionView {
	return DetectionView{Detection: d, Band: roster.Band(d.Confidence), NeedsReview: roster.NeedsReview(d, threshold)}
}

func detectionViews(in []roster.Detection, threshold float64) []DetectionView {
	out := make([]DetectionView, 0, len(in))
	for _, d := range in {
		out = append(out, detectionView(d, threshold))
	}
	return out
}
