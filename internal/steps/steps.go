// Package steps implements the five concrete step handlers (C7) that run
// over internal/executor's shared Runtime: Count, Prepare, Test, Dry-Run,
// and Send. Each is built the way the teacher's
// internal/worker/campaign_processor.go and esp_pmta.go build a concrete
// send path over a shared set of collaborators, generalized here from one
// fixed ESP integration to the work order's full pipeline.
package steps

import (
	"fmt"
	"sort"

	"github.com/ignite/email-campaign-agent/internal/render"
	"github.com/ignite/email-campaign-agent/internal/store"
	"github.com/ignite/email-campaign-agent/internal/workorder"
)

// sortedLanguages returns wo's enabled languages in deterministic order;
// EnabledLanguages ranges over a map, so callers that emit ordered
// per-language output (Count's message, Prepare's uploads) need this.
func sortedLanguages(wo *workorder.WorkOrder) []string {
	langs := wo.EnabledLanguages()
	sort.Strings(langs)
	return langs
}

// renderContextFor assembles the render.Context shared by Test, Dry-Run,
// and Send's per-recipient specialization pass.
func renderContextFor(wo *workorder.WorkOrder, student store.Student, event store.Event, pools map[string]store.Pool, prompts []store.Prompt, lang, coordEmail, previewText string) render.Context {
	return render.Context{
		Student:     student,
		Event:       event,
		Pools:       pools,
		Prompts:     prompts,
		EventCode:   wo.EventCode,
		SubEvent:    wo.SubEvent,
		Language:    lang,
		PreviewText: previewText,
		CoordEmail:  coordEmail,
	}
}

// fatalf wraps an unexpected collaborator error with handler context; it
// is always classified by executor as "exception" since it carries none
// of the typed, expected failure modes.
func fatalf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
