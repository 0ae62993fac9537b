package steps

import (
	"context"

	"github.com/ignite/email-campaign-agent/internal/executor"
	"github.com/ignite/email-campaign-agent/internal/render"
	"github.com/ignite/email-campaign-agent/internal/selector"
)

// PrepareHandler implements the Prepare step of spec.md §4.7: for each
// enabled language it retrieves the rendered template, normalizes and
// QA-checks the HTML, then uploads it to the object store and records the
// URL on both the work order and the Event's embedded-email map. Per
// spec.md §9 Open Question (ii), reruns overwrite s3HTMLPaths rather than
// skipping languages already prepared.
type PrepareHandler struct{}

var _ executor.Handler = PrepareHandler{}

func (PrepareHandler) Run(ctx context.Context, rt *executor.Runtime) error {
	wo := rt.WorkOrder

	stage, err := rt.Store.GetStage(ctx, wo.Stage)
	if err != nil {
		return fatalf("steps: prepare: get stage %s: %w", wo.Stage, err)
	}

	if wo.S3HTMLPaths == nil {
		wo.S3HTMLPaths = map[string]string{}
	}

	for _, lang := range sortedLanguages(wo) {
		templateName := selector.CampaignString(wo, lang)

		raw, err := rt.Templates.GetTemplate(ctx, templateName)
		if err != nil {
			return fatalf("steps: prepare: get template %s: %w", templateName, err)
		}

		normalized := render.Normalize(string(raw))

		if err := render.QACheck(normalized, wo, *stage, lang); err != nil {
			return err
		}

		objectKey := wo.EventCode + "/" + templateName + ".html"
		url, err := rt.Store.PutObject(ctx, objectKey, []byte(normalized))
		if err != nil {
			return fatalf("steps: prepare: put object %s: %w", objectKey, err)
		}

		fullLang := selector.FullLanguageName(lang)
		if err := rt.Store.UpdateEmbeddedEmail(ctx, wo.EventCode, wo.SubEvent, wo.Stage, fullLang, url); err != nil {
			return fatalf("steps: prepare: update embedded email %s/%s: %w", wo.SubEvent, lang, err)
		}

		wo.S3HTMLPaths[lang] = url
		rt.Report("Prepared " + lang)
	}

	return nil
}
