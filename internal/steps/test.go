package steps

import (
	"context"

	"github.com/ignite/email-campaign-agent/internal/executor"
	"github.com/ignite/email-campaign-agent/internal/render"
	"github.com/ignite/email-campaign-agent/internal/selector"
)

// TestHandler implements the Test step of spec.md §4.7: it sends the
// prepared HTML to every configured tester in every enabled language,
// honoring cancellation every 3 emails.
type TestHandler struct{}

var _ executor.Handler = TestHandler{}

func (TestHandler) Run(ctx context.Context, rt *executor.Runtime) error {
	wo := rt.WorkOrder

	if len(wo.S3HTMLPaths) == 0 {
		return executor.ValidationError{Message: "Test requires Prepare to have run first: s3HTMLPaths is empty"}
	}
	if len(wo.Testers) == 0 {
		return executor.ValidationError{Message: "Test requires at least one tester"}
	}
	event, err := rt.Store.GetEvent(ctx, wo.EventCode)
	if err != nil {
		return fatalf("steps: test: get event %s: %w", wo.EventCode, err)
	}
	if wo.RegLinkPresent && !event.SubEvents[wo.SubEvent].RegLinkAvailable {
		return executor.ValidationError{Message: "Registration form not ready"}
	}

	pools, err := rt.Store.ScanPools(ctx)
	if err != nil {
		return fatalf("steps: test: scan pools: %w", err)
	}
	prompts, err := rt.Store.ScanPrompts(ctx)
	if err != nil {
		return fatalf("steps: test: scan prompts: %w", err)
	}
	stage, err := rt.Store.GetStage(ctx, wo.Stage)
	if err != nil {
		return fatalf("steps: test: get stage %s: %w", wo.Stage, err)
	}

	sent := 0
	for _, tester := range wo.Testers {
		student, err := rt.Store.GetStudent(ctx, tester)
		if err != nil {
			return executor.ValidationError{Message: "Tester " + tester + " not found"}
		}

		for _, lang := range sortedLanguages(wo) {
			url, ok := wo.S3HTMLPaths[lang]
			if !ok {
				continue
			}
			raw, err := rt.Store.GetObjectContent(ctx, url)
			if err != nil {
				return fatalf("steps: test: get object %s: %w", url, err)
			}

			prefix := ""
			if stage.Prefix != nil {
				prefix = stage.Prefix[lang]
			}
			subject := "TEST: " + prefix + wo.Subjects[lang]

			ctxRender := renderContextFor(wo, *student, *event, pools, prompts, selector.FullLanguageName(lang), rt.CoordinatorEmail, rt.PreviewText)
			html, err := render.Specialize(string(raw), ctxRender)
			if err != nil {
				return err
			}

			if err := rt.Transport.Send(ctx, executor.SendMessage{
				HTML:     html,
				Subject:  subject,
				Language: lang,
				Account:  wo.Account,
				Student:  *student,
				DryRun:   false,
			}); err != nil {
				return fatalf("steps: test: send to %s: %w", tester, err)
			}

			sent++
			if sent%3 == 0 {
				reloaded, err := rt.Store.GetWorkOrder(ctx, wo.ID)
				if err != nil {
					return fatalf("steps: test: reload work order: %w", err)
				}
				if reloaded.StopRequested {
					return executor.ErrInterrupted
				}
			}

			rt.Report("Tested " + tester + " (" + lang + ")")
		}
	}

	return nil
}
