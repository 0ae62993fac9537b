package steps

import (
	"context"
	"errors"
	"testing"

	"github.com/ignite/email-campaign-agent/internal/executor"
	"github.com/ignite/email-campaign-agent/internal/store"
	"github.com/ignite/email-campaign-agent/internal/store/storetest"
	"github.com/ignite/email-campaign-agent/internal/workorder"
)

func baseTestWorkOrder() *workorder.WorkOrder {
	return &workorder.WorkOrder{
		ID: "wo-1", EventCode: "vr20251001", SubEvent: "retreat", Stage: "eligible",
		Languages: map[string]bool{"EN": true},
		Subjects:  map[string]string{"EN": "Join us"},
		Testers:   []string{"t1"},
		S3HTMLPaths: map[string]string{
			"EN": "https://fake-bucket/vr20251001/vr20251001-retreat-eligible-EN.html",
		},
	}
}

func TestTestHandler_RequiresPrepare(t *testing.T) {
	fake := storetest.New()
	wo := baseTestWorkOrder()
	wo.S3HTMLPaths = nil
	rt := &executor.Runtime{Store: fake, WorkOrder: wo, Progress: &capturingReporter{}}

	err := (TestHandler{}).Run(context.Background(), rt)
	var ve executor.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestTestHandler_RegLinkNotAvailableFails(t *testing.T) {
	fake := storetest.New()
	fake.Events["vr20251001"] = store.Event{EventCode: "vr20251001"}
	wo := baseTestWorkOrder()
	wo.RegLinkPresent = true
	rt := &executor.Runtime{Store: fake, WorkOrder: wo, Progress: &capturingReporter{}}

	err := (TestHandler{}).Run(context.Background(), rt)
	var ve executor.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestTestHandler_SendsToEveryTesterAndLanguage(t *testing.T) {
	fake := storetest.New()
	fake.Events["vr20251001"] = store.Event{EventCode: "vr20251001"}
	fake.Stages["eligible"] = store.StageRecord{Stage: "eligible"}
	fake.Objects["https://fake-bucket/vr20251001/vr20251001-retreat-eligible-EN.html"] = []byte("<p>hi ||name||</p>")
	fake.Students["t1"] = store.Student{ID: "t1", Email: "tester1@example.com", First: "Tess"}

	wo := baseTestWorkOrder()
	sender := &fakeSender{}
	rt := &executor.Runtime{Store: fake, Transport: sender, WorkOrder: wo, Progress: &capturingReporter{}}

	if err := (TestHandler{}).Run(context.Background(), rt); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sender.count() != 1 {
		t.Fatalf("sent %d messages, want 1", sender.count())
	}
	if sender.sent[0].Subject != "TEST: Join us" {
		t.Fatalf("subject = %q", sender.sent[0].Subject)
	}
	if sender.sent[0].Student.Email != "tester1@example.com" {
		t.Fatalf("student email = %q, want looked-up tester1@example.com", sender.sent[0].Student.Email)
	}
}

func TestTestHandler_UnknownTesterFailsValidation(t *testing.T) {
	fake := storetest.New()
	fake.Events["vr20251001"] = store.Event{EventCode: "vr20251001"}
	fake.Stages["eligible"] = store.StageRecord{Stage: "eligible"}

	wo := baseTestWorkOrder()
	sender := &fakeSender{}
	rt := &executor.Runtime{Store: fake, Transport: sender, WorkOrder: wo, Progress: &capturingReporter{}}

	err := (TestHandler{}).Run(context.Background(), rt)
	var ve executor.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if sender.count() != 0 {
		t.Fatalf("expected no sends, got %d", sender.count())
	}
}
