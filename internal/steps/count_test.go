package steps

import (
	"context"
	"strings"
	"testing"

	"github.com/ignite/email-campaign-agent/internal/executor"
	"github.com/ignite/email-campaign-agent/internal/store"
	"github.com/ignite/email-campaign-agent/internal/store/storetest"
	"github.com/ignite/email-campaign-agent/internal/workorder"
)

type capturingReporter struct {
	messages []string
}

func (c *capturingReporter) Report(msg string) { c.messages = append(c.messages, msg) }

func TestCountHandler_ReportsPerLanguageCounts(t *testing.T) {
	fake := storetest.New()
	fake.Pools["everyone"] = store.Pool{Name: "everyone", Attributes: []store.PoolRule{{Type: "true"}}}
	fake.Stages["eligible"] = store.StageRecord{Stage: "eligible"}
	fake.Students["s1"] = store.Student{ID: "s1", Email: "s1@example.com"}
	fake.Students["s2"] = store.Student{ID: "s2", Email: "s2@example.com", Emails: map[string]string{"vr20251001-retreat-eligible-EN": "2024-01-01T00:00:00Z"}}
	fake.Students["s3"] = store.Student{ID: "s3", Email: "s3@example.com", Unsubscribe: true}

	wo := &workorder.WorkOrder{
		EventCode: "vr20251001", SubEvent: "retreat", Stage: "eligible",
		Languages: map[string]bool{"EN": true},
		Config:    map[string]any{"pool": "everyone"},
	}

	rt := &executor.Runtime{Store: fake, WorkOrder: wo}
	reporter := &capturingReporter{}
	rt.Progress = reporter

	if err := (CountHandler{}).Run(context.Background(), rt); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(reporter.messages) == 0 {
		t.Fatal("expected a progress message")
	}
	msg := reporter.messages[len(reporter.messages)-1]
	if !strings.Contains(msg, "Already received: EN:1") || !strings.Contains(msg, "Will send: EN:1") {
		t.Fatalf("message = %q", msg)
	}
}
