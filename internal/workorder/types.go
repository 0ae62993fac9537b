// Package workorder defines the typed work-order record that drives one
// campaign job through its pipeline, and the ordered steps within it.
package workorder

import "time"

// Step names, in pipeline order. Index order is significant: a step may
// only enter "working" if it is StepNames[0] or its predecessor is complete.
const (
	StepCount   = "Count"
	StepPrepare = "Prepare"
	StepTest    = "Test"
	StepDryRun  = "Dry-Run"
	StepSend    = "Send"
)

// StepNames is the canonical pipeline order.
var StepNames = []string{StepCount, StepPrepare, StepTest, StepDryRun, StepSend}

// Step status values.
const (
	StatusReady       = "ready"
	StatusWorking     = "working"
	StatusSleeping    = "sleeping"
	StatusComplete    = "complete"
	StatusError       = "error"
	StatusException   = "exception"
	StatusInterrupted = "interrupted"
)

// StateSleeping is the work-order lifecycle tag used while a continuous
// send job is parked in the sleep queue.
const StateSleeping = "Sleeping"

// Step is one phase of a work order.
type Step struct {
	Name      string     `json:"name" dynamodbav:"name"`
	Status    string     `json:"status" dynamodbav:"status"`
	Message   string     `json:"message" dynamodbav:"message"`
	IsActive  bool       `json:"isActive" dynamodbav:"isActive"`
	StartTime *time.Time `json:"startTime,omitempty" dynamodbav:"startTime,omitempty"`
	EndTime   *time.Time `json:"endTime,omitempty" dynamodbav:"endTime,omitempty"`
}

// WorkOrder is one campaign job.
type WorkOrder struct {
	ID string `json:"id" dynamodbav:"id"`

	EventCode string `json:"eventCode" dynamodbav:"eventCode"`
	SubEvent  string `json:"subEvent" dynamodbav:"subEvent"`
	Stage     string `json:"stage" dynamodbav:"stage"`

	Subjects  map[string]string `json:"subjects" dynamodbav:"subjects"`
	Languages map[string]bool   `json:"languages" dynamodbav:"languages"`

	Account  string `json:"account" dynamodbav:"account"`
	FromName string `json:"fromName,omitempty" dynamodbav:"fromName,omitempty"`
	ReplyTo  string `json:"replyTo,omitempty" dynamodbav:"replyTo,omitempty"`

	ZoomID   string `json:"zoomId,omitempty" dynamodbav:"zoomId,omitempty"`
	InPerson bool   `json:"inPerson,omitempty" dynamodbav:"inPerson,omitempty"`

	Testers []string `json:"testers" dynamodbav:"testers"`

	Config map[string]any `json:"config" dynamodbav:"config"`

	S3HTMLPaths map[string]string `json:"s3HTMLPaths" dynamodbav:"s3HTMLPaths"`

	SendContinuously bool       `json:"sendContinuously" dynamodbav:"sendContinuously"`
	SendUntil        *time.Time `json:"sendUntil,omitempty" dynamodbav:"sendUntil,omitempty"`
	SendInterval     int        `json:"sendInterval,omitempty" dynamodbav:"sendInterval,omitempty"` // seconds

	SalutationByName *bool `json:"salutationByName,omitempty" dynamodbav:"salutationByName,omitempty"`
	RegLinkPresent   bool  `json:"regLinkPresent,omitempty" dynamodbav:"regLinkPresent,omitempty"`

	Steps []Step `json:"steps" dynamodbav:"steps"`

	Locked        bool   `json:"locked" dynamodbav:"locked"`
	LockedBy      string `json:"lockedBy" dynamodbav:"lockedBy"`
	StopRequested bool   `json:"stopRequested" dynamodbav:"stopRequested"`

	State      string     `json:"state,omitempty" dynamodbav:"state,omitempty"`
	SleepUntil *time.Time `json:"sleepUntil,omitempty" dynamodbav:"sleepUntil,omitempty"`

	DryRunRecipients []RecipientPreview `json:"dryRunRecipients,omitempty" dynamodbav:"dryRunRecipients,omitempty"`

	CreatedAt time.Time `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" dynamodbav:"updatedAt"`
}

// RecipientPreview is a single entry written into a dry-run preview.
type RecipientPreview struct {
	Name     string    `json:"name" dynamodbav:"name"`
	Email    string    `json:"email" dynamodbav:"email"`
	SendTime time.Time `json:"sendtime"`
	Account  string    `json:"account,omitempty"`
}

// Pool returns the configured eligibility pool name, or "" if absent.
func (w *WorkOrder) Pool() string {
	if w.Config == nil {
		return ""
	}
	v, _ := w.Config["pool"].(string)
	return v
}

// StepByName returns the step with the given name, its index, and whether
// it was found.
func (w *WorkOrder) StepByName(name string) (*Step, int, bool) {
	for i := range w.Steps {
		if w.Steps[i].Name == name {
			return &w.Steps[i], i, true
		}
	}
	return nil, -1, false
}

// ActiveStep returns the single active step, if any.
func (w *WorkOrder) ActiveStep() (*Step, bool) {
	for i := range w.Steps {
		if w.Steps[i].IsActive {
			return &w.Steps[i], true
		}
	}
	return nil, false
}

// PredecessorComplete reports whether the step at index i may transition to
// working: it is the first step, or its immediate predecessor is complete.
func (w *WorkOrder) PredecessorComplete(index int) bool {
	if index <= 0 {
		return true
	}
	return w.Steps[index-1].Status == StatusComplete
}

// AtMostOneActive reports the invariant that at most one step is active.
func (w *WorkOrder) AtMostOneActive() bool {
	n := 0
	for _, s := range w.Steps {
		if s.IsActive {
			n++
		}
	}
	return n <= 1
}

// LockConsistent reports locked == (lockedBy != "").
func (w *WorkOrder) LockConsistent() bool {
	return w.Locked == (w.LockedBy != "")
}

// SleepConsistent reports state=Sleeping => sleepUntil set && locked.
func (w *WorkOrder) SleepConsistent() bool {
	if w.State != StateSleeping {
		return true
	}
	return w.SleepUntil != nil && w.Locked
}

// EnabledLanguages returns the enabled languages in map iteration order,
// which is not deterministic; the result is not sorted.
func (w *WorkOrder) EnabledLanguages() []string {
	var out []string
	for lang, enabled := range w.Languages {
		if enabled {
			out = append(out, lang)
		}
	}
	return out
}
