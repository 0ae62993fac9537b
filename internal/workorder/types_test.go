package workorder

import (
	"testing"
	"time"
)

func baseOrder() *WorkOrder {
	return &WorkOrder{
		ID: "wo-1",
		Steps: []Step{
			{Name: StepCount, Status: StatusComplete},
			{Name: StepPrepare, Status: StatusReady, IsActive: true},
			{Name: StepTest, Status: StatusReady},
			{Name: StepDryRun, Status: StatusReady},
			{Name: StepSend, Status: StatusReady},
		},
	}
}

func TestStepByName(t *testing.T) {
	w := baseOrder()
	step, idx, ok := w.StepByName(StepPrepare)
	if !ok || idx != 1 || step.Name != StepPrepare {
		t.Fatalf("StepByName(Prepare) = %+v, %d, %v", step, idx, ok)
	}
	if _, _, ok := w.StepByName("Nope"); ok {
		t.Fatalf("expected StepByName to miss on unknown name")
	}
}

func TestActiveStep(t *testing.T) {
	w := baseOrder()
	step, ok := w.ActiveStep()
	if !ok || step.Name != StepPrepare {
		t.Fatalf("ActiveStep() = %+v, %v", step, ok)
	}
}

func TestPredecessorComplete(t *testing.T) {
	w := baseOrder()
	if !w.PredecessorComplete(0) {
		t.Fatal("first step should always be allowed to start")
	}
	if !w.PredecessorComplete(1) {
		t.Fatal("Prepare should be allowed since Count is complete")
	}
	if w.PredecessorComplete(2) {
		t.Fatal("Test should not be allowed since Prepare is not complete")
	}
}

func TestAtMostOneActive(t *testing.T) {
	w := baseOrder()
	if !w.AtMostOneActive() {
		t.Fatal("expected invariant to hold for a single active step")
	}
	w.Steps[0].IsActive = true
	if w.AtMostOneActive() {
		t.Fatal("expected invariant violation with two active steps")
	}
}

func TestLockConsistent(t *testing.T) {
	w := baseOrder()
	if !w.LockConsistent() {
		t.Fatal("unlocked work order with empty lockedBy should be consistent")
	}
	w.Locked = true
	if w.LockConsistent() {
		t.Fatal("locked=true with empty lockedBy should violate the invariant")
	}
	w.LockedBy = "agent-1"
	if !w.LockConsistent() {
		t.Fatal("locked=true with non-empty lockedBy should be consistent")
	}
}

func TestSleepConsistent(t *testing.T) {
	w := baseOrder()
	if !w.SleepConsistent() {
		t.Fatal("non-sleeping work order is vacuously consistent")
	}
	w.State = StateSleeping
	if w.SleepConsistent() {
		t.Fatal("Sleeping without sleepUntil/locked should violate the invariant")
	}
	now := time.Now()
	w.SleepUntil = &now
	w.Locked = true
	if !w.SleepConsistent() {
		t.Fatal("Sleeping with sleepUntil and locked should be consistent")
	}
}

func TestEnabledLanguages(t *testing.T) {
	w := baseOrder()
	w.Languages = map[string]bool{"EN": true, "FR": false, "ES": true}
	langs := w.EnabledLanguages()
	if len(langs) != 2 {
		t.Fatalf("expected 2 enabled languages, got %v", langs)
	}
}

func TestPool(t *testing.T) {
	w := baseOrder()
	if w.Pool() != "" {
		t.Fatal("expected empty pool when config is nil")
	}
	w.Config = map[string]any{"pool": "everyone"}
	if w.Pool() != "everyone" {
		t.Fatalf("expected pool 'everyone', got %q", w.Pool())
	}
}
