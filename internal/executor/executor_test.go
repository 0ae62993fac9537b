package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ignite/email-campaign-agent/internal/eligibility"
	"github.com/ignite/email-campaign-agent/internal/render"
	"github.com/ignite/email-campaign-agent/internal/store/storetest"
	"github.com/ignite/email-campaign-agent/internal/workorder"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus string
	}{
		{"nil is complete", nil, workorder.StatusComplete},
		{"interrupted", ErrInterrupted, workorder.StatusInterrupted},
		{"park request is sleeping", ParkRequest{SleepUntil: time.Now()}, workorder.StatusSleeping},
		{"qa failure is error", render.QAFailure{Message: "bad"}, workorder.StatusError},
		{"validation error is error", ValidationError{Message: "bad"}, workorder.StatusError},
		{"malformed pool is error", eligibility.ErrMalformedPool, workorder.StatusError},
		{"send limit is error", ErrSendLimitReached, workorder.StatusError},
			{"recipient log append is error", ErrRecipientLogAppend, workorder.StatusError},
		{"unknown error is exception", errors.New("boom"), workorder.StatusException},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := classify(tc.err)
			if status != tc.wantStatus {
				t.Errorf("classify(%v) status = %q, want %q", tc.err, status, tc.wantStatus)
			}
		})
	}
}

func TestRun_PreconditionChecks(t *testing.T) {
	fake := storetest.New()
	wo := &workorder.WorkOrder{
		ID:     "wo-1",
		Locked: true, LockedBy: "agent-1",
		Steps: []workorder.Step{
			{Name: workorder.StepCount, Status: workorder.StatusWorking, IsActive: true},
		},
	}
	fake.WorkOrders[wo.ID] = wo

	e := New(fake, "agent-1")
	rt := &Runtime{}

	t.Run("missing step", func(t *testing.T) {
		err := e.Run(context.Background(), wo, "NoSuchStep", rt, handlerFunc(func(ctx context.Context, rt *Runtime) error { return nil }))
		if !errors.Is(err, ErrPreconditionFailed) {
			t.Fatalf("expected ErrPreconditionFailed, got %v", err)
		}
	})

	t.Run("not locked by this agent", func(t *testing.T) {
		other := &workorder.WorkOrder{
			ID: "wo-2", Locked: true, LockedBy: "someone-else",
			Steps: []workorder.Step{{Name: workorder.StepCount, Status: workorder.StatusWorking, IsActive: true}},
		}
		err := e.Run(context.Background(), other, workorder.StepCount, rt, handlerFunc(func(ctx context.Context, rt *Runtime) error { return nil }))
		if !errors.Is(err, ErrPreconditionFailed) {
			t.Fatalf("expected ErrPreconditionFailed, got %v", err)
		}
	})

	t.Run("successful run advances next step", func(t *testing.T) {
		wo.Steps = []workorder.Step{
			{Name: workorder.StepCount, Status: workorder.StatusWorking, IsActive: true},
			{Name: workorder.StepPrepare, Status: workorder.StatusReady, IsActive: false},
		}
		err := e.Run(context.Background(), wo, workorder.StepCount, rt, handlerFunc(func(ctx context.Context, rt *Runtime) error {
			rt.Report("counting")
			return nil
		}))
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if wo.Steps[0].Status != workorder.StatusComplete {
			t.Errorf("step 0 status = %q, want complete", wo.Steps[0].Status)
		}
		if !wo.Steps[1].IsActive || wo.Steps[1].Status != workorder.StatusReady {
			t.Errorf("step 1 = %+v, want ready+active", wo.Steps[1])
		}
	})

	t.Run("handler error sets error status and message", func(t *testing.T) {
		wo.Steps = []workorder.Step{
			{Name: workorder.StepCount, Status: workorder.StatusWorking, IsActive: true},
		}
		err := e.Run(context.Background(), wo, workorder.StepCount, rt, handlerFunc(func(ctx context.Context, rt *Runtime) error {
			return ValidationError{Message: "bad state"}
		}))
		if err == nil {
			t.Fatal("expected error")
		}
		if wo.Steps[0].Status != workorder.StatusError {
			t.Errorf("status = %q, want error", wo.Steps[0].Status)
		}
		if wo.Steps[0].Message != "bad state" {
			t.Errorf("message = %q, want bad state", wo.Steps[0].Message)
		}
	})
}

func TestInterruptible_CompletesWithoutStop(t *testing.T) {
	calls := 0
	err := Interruptible(context.Background(), 10*time.Millisecond, func() (bool, error) {
		calls++
		return false, nil
	})
	if err != nil {
		t.Fatalf("Interruptible() error = %v", err)
	}
}

func TestInterruptible_StopsOnRequest(t *testing.T) {
	err := Interruptible(context.Background(), time.Hour, func() (bool, error) {
		return true, nil
	})
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("Interruptible() error = %v, want ErrInterrupted", err)
	}
}

type handlerFunc func(ctx context.Context, rt *Runtime) error

func (f handlerFunc) Run(ctx context.Context, rt *Runtime) error { return f(ctx, rt) }
