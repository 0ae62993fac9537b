package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/email-campaign-agent/internal/executor"
	"github.com/ignite/email-campaign-agent/internal/render"
	"github.com/ignite/email-campaign-agent/internal/selector"
	"github.com/ignite/email-campaign-agent/internal/store"
	"github.com/ignite/email-campaign-agent/internal/workorder"
)

// sendFamily is the shared implementation backing DryRunHandler and
// SendHandler, mirroring the Dry-Run/Send-Once/Send-Continuously base
// class relationship in the original agent (spec.md §9): a single
// parameterized handler rather than near-duplicate code paths.
type sendFamily struct {
	DryRun     bool
	Continuous bool
}

// DryRunHandler implements the Dry-Run step of spec.md §4.7.
type DryRunHandler struct{ sendFamily }

// SendHandler implements the Send step of spec.md §4.7.
type SendHandler struct{ sendFamily }

// NewDryRunHandler constructs the Dry-Run handler.
func NewDryRunHandler() DryRunHandler { return DryRunHandler{sendFamily{DryRun: true}} }

// NewSendHandler constructs the Send handler; continuous controls whether
// a completed pass with now < sendUntil parks via the sleep queue instead
// of completing (spec.md §4.8/§9).
func NewSendHandler(continuous bool) SendHandler {
	return SendHandler{sendFamily{DryRun: false, Continuous: continuous}}
}

var (
	_ executor.Handler = DryRunHandler{}
	_ executor.Handler = SendHandler{}
)

func (h DryRunHandler) Run(ctx context.Context, rt *executor.Runtime) error { return h.sendFamily.run(ctx, rt) }
func (h SendHandler) Run(ctx context.Context, rt *executor.Runtime) error   { return h.sendFamily.run(ctx, rt) }

func (sf sendFamily) run(ctx context.Context, rt *executor.Runtime) error {
	wo := rt.WorkOrder

	limit := rt.SMTP24HourSendLimit
	if !sf.DryRun && wo.Account != "" {
		count, err := sf.count24h(ctx, rt, wo.Account)
		if err != nil {
			return fatalf("steps: send: count 24h sends: %w", err)
		}
		if count >= limit {
			return executor.ErrSendLimitReached
		}
	}

	pools, err := rt.Store.ScanPools(ctx)
	if err != nil {
		return fatalf("steps: send: scan pools: %w", err)
	}
	prompts, err := rt.Store.ScanPrompts(ctx)
	if err != nil {
		return fatalf("steps: send: scan prompts: %w", err)
	}
	event, err := rt.Store.GetEvent(ctx, wo.EventCode)
	if err != nil {
		return fatalf("steps: send: get event %s: %w", wo.EventCode, err)
	}
	students, err := rt.Store.ScanStudents(ctx)
	if err != nil {
		return fatalf("steps: send: scan students: %w", err)
	}
	stage, err := rt.Store.GetStage(ctx, wo.Stage)
	if err != nil {
		return fatalf("steps: send: get stage %s: %w", wo.Stage, err)
	}

	recipientCount := 0
	burstCount := 0
	var previews []workorder.RecipientPreview

	for _, lang := range sortedLanguages(wo) {
		campaignString := selector.CampaignString(wo, lang)

		if sf.DryRun {
			if err := rt.Store.DeleteDryrunRecipients(ctx, campaignString); err != nil {
				return fatalf("steps: dry-run: truncate %s: %w", campaignString, err)
			}
		}

		result, err := selector.Select(wo, lang, students, pools, *stage)
		if err != nil {
			return err
		}
		if rt.Metrics != nil {
			for _, student := range result.AlreadyReceived {
				rt.Metrics.RecordSkipped(campaignString + ":" + student.ID)
			}
		}

		url, ok := wo.S3HTMLPaths[lang]
		if !ok {
			continue
		}
		raw, err := rt.Store.GetObjectContent(ctx, url)
		if err != nil {
			return fatalf("steps: send: get object %s: %w", url, err)
		}

		prefix := ""
		if stage.Prefix != nil {
			prefix = stage.Prefix[lang]
		}
		subject := prefix + wo.Subjects[lang]
		fullLang := selector.FullLanguageName(lang)

		for _, student := range result.WillSend {
			recipientCount++

			if !sf.DryRun && recipientCount%10 == 0 && wo.Account != "" {
				count, err := sf.count24h(ctx, rt, wo.Account)
				if err != nil {
					return fatalf("steps: send: re-check 24h sends: %w", err)
				}
				if count >= limit {
					return executor.ErrSendLimitReached
				}
			}

			if recipientCount%5 == 0 {
				reloaded, err := rt.Store.GetWorkOrder(ctx, wo.ID)
				if err != nil {
					return fatalf("steps: send: reload work order: %w", err)
				}
				if reloaded.StopRequested {
					return executor.ErrInterrupted
				}
			}

			renderCtx := renderContextFor(wo, student, *event, pools, prompts, fullLang, rt.CoordinatorEmail, rt.PreviewText)
			html, err := render.Specialize(string(raw), renderCtx)
			if err != nil {
				return err
			}

			now := rt.Clock()

			if err := rt.Transport.Send(ctx, executor.SendMessage{
				HTML:     html,
				Subject:  subject,
				Language: lang,
				Account:  wo.Account,
				Student:  student,
				DryRun:   sf.DryRun,
			}); err != nil {
				if rt.Metrics != nil {
					rt.Metrics.RecordError(campaignString + ":" + student.ID)
				}
				return fatalf("steps: send: submit to %s: %w", student.Email, err)
			}

			entry := store.RecipientLogEntry{Name: student.First + " " + student.Last, Email: student.Email, SendTime: now, Account: wo.Account}

			if sf.DryRun {
				if err := rt.Store.AppendDryrunRecipient(ctx, campaignString, entry); err != nil {
					return fatalf("steps: dry-run: append recipient: %w", err)
				}
				previews = append(previews, workorder.RecipientPreview{Name: entry.Name, Email: entry.Email, SendTime: now, Account: wo.Account})
			} else {
				if err := rt.Store.UpdateStudentEmailSent(ctx, student.ID, campaignString, now); err != nil {
					return fatalf("steps: send: mark student sent: %w", err)
				}
				if err := rt.Store.AppendSendRecipient(ctx, campaignString, entry); err != nil {
					return fmt.Errorf("%w: %v", executor.ErrRecipientLogAppend, err)
				}
				if wo.Account != "" && rt.Quota != nil {
					rt.Quota.RecordSend(ctx, wo.Account)
				}
			}
			if rt.Metrics != nil {
				rt.Metrics.RecordSent(campaignString + ":" + student.ID)
			}

			rt.Report("Sent to " + student.Email + " (" + lang + ")")

			if !sf.DryRun {
				burstCount++
				if rt.EmailBurstSize > 0 && burstCount%rt.EmailBurstSize == 0 {
					sleepFor := time.Duration(rt.EmailRecoverySleepSecs) * time.Second
					if err := executor.Interruptible(ctx, sleepFor, func() (bool, error) {
						reloaded, err := rt.Store.GetWorkOrder(ctx, wo.ID)
						if err != nil {
							return false, fatalf("steps: send: reload during burst sleep: %w", err)
						}
						return reloaded.StopRequested, nil
					}); err != nil {
						return err
					}
				}
			}
		}
	}

	if sf.DryRun {
		wo.DryRunRecipients = previews
	}

	if sf.Continuous && wo.SendUntil != nil && rt.Clock().Before(*wo.SendUntil) {
		sleepSecs := wo.SendInterval
		if sleepSecs == 0 {
			sleepSecs = rt.EmailContinuousSleepSecs
		}
		return executor.ParkRequest{SleepUntil: rt.Clock().Add(time.Duration(sleepSecs) * time.Second)}
	}

	return nil
}

// count24h returns account's rolling 24-hour send count, preferring
// rt.Quota's cache when one is configured and falling back to a direct
// store scan otherwise (the path every existing test exercises).
func (sf sendFamily) count24h(ctx context.Context, rt *executor.Runtime, account string) (int, error) {
	if rt.Quota != nil {
		return rt.Quota.Count(ctx, account)
	}
	return rt.Store.CountEmailsSentByAccountInLast24h(ctx, account)
}
