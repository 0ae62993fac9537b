// Package executor implements the step executor (C6): it enforces the
// preconditions spec.md §4.6 requires before a step handler runs, wraps
// the call with throttled progress reporting, classifies the error a
// handler returns into a terminal step status, and advances the pipeline
// on success. Grounded on the teacher's campaign_processor.go, which
// wraps each send-worker invocation the same way: precondition checks,
// then a single classify-and-record step around the actual work.
//
// Runtime, Handler, and the shared error taxonomy live here rather than in
// internal/steps so that package can depend on this one without a cycle:
// internal/steps implements concrete Handlers over this package's Runtime
// and returns this package's typed errors; executor never needs to import
// steps.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ignite/email-campaign-agent/internal/credentials"
	"github.com/ignite/email-campaign-agent/internal/eligibility"
	"github.com/ignite/email-campaign-agent/internal/metrics"
	"github.com/ignite/email-campaign-agent/internal/quota"
	"github.com/ignite/email-campaign-agent/internal/render"
	"github.com/ignite/email-campaign-agent/internal/store"
	"github.com/ignite/email-campaign-agent/internal/workorder"
)

// ErrInterrupted is returned by a handler when it observed a cooperative
// stop request mid-step.
var ErrInterrupted = errors.New("executor: interrupted")

// ErrPreconditionFailed is returned by Run itself (never by a handler) when
// the work order / step state does not satisfy the invariants of
// spec.md §4.6.
var ErrPreconditionFailed = errors.New("executor: precondition failed")

// ErrSendLimitReached is returned by the send-family handler when the
// 24-hour rolling quota has been hit or the configured limit is zero.
var ErrSendLimitReached = errors.New("executor: 24-hour send limit reached")

// ErrRecipientLogAppend is returned by the send-family handler when writing
// a recipient's audit-log entry fails. Per the redesigned behavior spec.md
// §9 calls for, this fails the step rather than silently continuing, but is
// classified as an ordinary step error rather than an unexpected exception.
var ErrRecipientLogAppend = errors.New("executor: failed to append recipient log entry")

// ValidationError is returned by a handler when a step-specific
// precondition fails (e.g. Test's regLinkAvailable check).
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string { return e.Message }

// ProgressReporter receives human-readable progress strings emitted by a
// running handler.
type ProgressReporter interface {
	Report(msg string)
}

// Sender submits one specialized recipient email through the SMTP
// transport gateway (internal/transport.Gateway satisfies this
// structurally; executor never imports internal/transport).
type Sender interface {
	Send(ctx context.Context, msg SendMessage) error
}

// TemplateFetcher retrieves rendered HTML by template name
// (*store.TemplateClient satisfies this structurally; tests substitute an
// in-memory fake instead of standing up an HTTP server).
type TemplateFetcher interface {
	GetTemplate(ctx context.Context, name string) ([]byte, error)
}

// SendMessage is one outbound email, already subject-rendered and
// per-recipient specialized, handed to a Sender.
type SendMessage struct {
	HTML     string
	Subject  string
	Language string
	Account  string
	Student  store.Student
	DryRun   bool
}

// Runtime bundles the collaborators every step handler needs: the store,
// the template/object-store clients, the credential cache, the transport
// gateway, a clock, and the tunables of spec.md §6. It is built once per
// agent process and threaded through every Executor.Run call, which sets
// WorkOrder and Progress for the duration of that call.
type Runtime struct {
	Store       store.Store
	Templates   TemplateFetcher
	Credentials *credentials.Cache
	Transport   Sender
	Quota       *quota.Checker
	Metrics     *metrics.Counters
	Now         func() time.Time

	CoordinatorEmail string
	PreviewText      string

	EmailBurstSize           int
	EmailRecoverySleepSecs   int
	EmailContinuousSleepSecs int
	SMTP24HourSendLimit      int

	WorkOrder *workorder.WorkOrder
	Progress  ProgressReporter
}

// Clock returns Now() when Now is set, and time.Now().UTC() otherwise
// (cmd/agent leaves Now unset; tests set it to pin the time).
func (rt *Runtime) Clock() time.Time {
	if rt.Now != nil {
		return rt.Now()
	}
	return time.Now().UTC()
}

// Report forwards msg to Progress if one is set, a no-op otherwise so
// handlers under test don't need a reporter.
func (rt *Runtime) Report(msg string) {
	if rt.Progress != nil {
		rt.Progress.Report(msg)
	}
}

// Handler is implemented by each concrete step (internal/steps).
type Handler interface {
	Run(ctx context.Context, rt *Runtime) error
}

// Executor runs step handlers under the preconditions, progress
// throttling, and exception classification of spec.md §4.6/§7.
type Executor struct {
	store   store.Store
	agentID string
}

// New constructs an Executor that persists progress and step outcomes
// through s, attributing the running agent as agentID.
func New(s store.Store, agentID string) *Executor {
	return &Executor{store: s, agentID: agentID}
}

// Run enforces preconditions, then calls handler.Run with rt.WorkOrder and
// rt.Progress set, then persists the classified outcome onto wo's step
// and, on success, activates the next step.
func (e *Executor) Run(ctx context.Context, wo *workorder.WorkOrder, stepName string, rt *Runtime, handler Handler) error {
	step, index, ok := wo.StepByName(stepName)
	if !ok {
		return fmt.Errorf("%w: no such step %q", ErrPreconditionFailed, stepName)
	}
	if !step.IsActive {
		return fmt.Errorf("%w: step %q is not active", ErrPreconditionFailed, stepName)
	}
	if !wo.Locked || wo.LockedBy != e.agentID {
		return fmt.Errorf("%w: work order %s is not locked by this agent", ErrPreconditionFailed, wo.ID)
	}
	if step.Status != workorder.StatusWorking {
		return fmt.Errorf("%w: step %q is not working", ErrPreconditionFailed, stepName)
	}

	rt.WorkOrder = wo
	rt.Progress = newThrottledReporter(ctx, e.store, wo, stepName, time.Second)

	now := time.Now().UTC()
	step.StartTime = &now

	err := handler.Run(ctx, rt)

	end := time.Now().UTC()
	step.EndTime = &end

	outcome, message := classify(err)
	step.Status = outcome
	if message != "" {
		step.Message = message
	}
	step.IsActive = outcome != workorder.StatusComplete && outcome != workorder.StatusSleeping

	if outcome == workorder.StatusComplete && index+1 < len(wo.Steps) {
		wo.Steps[index+1].Status = workorder.StatusReady
		wo.Steps[index+1].IsActive = true
	}

	if saveErr := e.store.UpdateWorkOrder(ctx, wo); saveErr != nil {
		if err != nil {
			return fmt.Errorf("executor: step %q failed (%w) and could not be persisted: %v", stepName, err, saveErr)
		}
		return fmt.Errorf("executor: step %q completed but could not be persisted: %w", stepName, saveErr)
	}

	return err
}

// classify maps a handler's returned error onto spec.md §4.6/§7's
// step-status taxonomy, returning (StatusComplete, "") for a nil error.
func classify(err error) (status, message string) {
	if err == nil {
		return workorder.StatusComplete, ""
	}

	var qa render.QAFailure
	var validation ValidationError
	var park ParkRequest

	switch {
	case errors.As(err, &park):
		return workorder.StatusSleeping, err.Error()
	case errors.Is(err, ErrInterrupted):
		return workorder.StatusInterrupted, err.Error()
	case errors.As(err, &qa):
		return workorder.StatusError, err.Error()
	case errors.As(err, &validation):
		return workorder.StatusError, err.Error()
	case errors.Is(err, eligibility.ErrMalformedPool):
		return workorder.StatusError, err.Error()
	case errors.Is(err, ErrSendLimitReached):
		return workorder.StatusError, err.Error()
	case errors.Is(err, ErrRecipientLogAppend):
		return workorder.StatusError, err.Error()
	default:
		return workorder.StatusException, err.Error()
	}
}

// ParkRequest is returned by the send-family handler in continuous mode
// when a pass completed with now < sendUntil: spec.md §4.8 wants the step
// left "sleeping" with this exact message, not failed.
type ParkRequest struct {
	SleepUntil time.Time
}

func (p ParkRequest) Error() string {
	return "Sleeping until " + p.SleepUntil.Format(time.RFC3339)
}

// throttledReporter implements ProgressReporter, writing the step's
// message through the store at most once per interval; the final Report
// call recorded before the handler returns is captured by the caller via
// step.Message regardless of throttling.
type throttledReporter struct {
	mu       sync.Mutex
	ctx      context.Context
	st       store.Store
	wo       *workorder.WorkOrder
	stepName string
	interval time.Duration
	last     time.Time
}

func newThrottledReporter(ctx context.Context, st store.Store, wo *workorder.WorkOrder, stepName string, interval time.Duration) *throttledReporter {
	return &throttledReporter{ctx: ctx, st: st, wo: wo, stepName: stepName, interval: interval}
}

// Report records msg onto the step in memory and flushes it to the store
// at most once per interval, so the push channel reflects progress
// without hammering the work-order table on every recipient.
func (r *throttledReporter) Report(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	step, _, ok := r.wo.StepByName(r.stepName)
	if !ok {
		return
	}
	step.Message = msg

	now := time.Now()
	if now.Sub(r.last) < r.interval {
		return
	}
	r.last = now
	_ = r.st.UpdateWorkOrder(r.ctx, r.wo)
}
