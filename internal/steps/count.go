package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/ignite/email-campaign-agent/internal/executor"
	"github.com/ignite/email-campaign-agent/internal/selector"
)

// CountHandler implements the Count step of spec.md §4.7: for each
// enabled language it computes the already-received/will-send split via
// internal/selector and reports the result as the step message. It has no
// side effects on the work order or student tables.
type CountHandler struct{}

var _ executor.Handler = CountHandler{}

func (CountHandler) Run(ctx context.Context, rt *executor.Runtime) error {
	wo := rt.WorkOrder

	students, err := rt.Store.ScanStudents(ctx)
	if err != nil {
		return fatalf("steps: count: scan students: %w", err)
	}
	pools, err := rt.Store.ScanPools(ctx)
	if err != nil {
		return fatalf("steps: count: scan pools: %w", err)
	}
	stage, err := rt.Store.GetStage(ctx, wo.Stage)
	if err != nil {
		return fatalf("steps: count: get stage %s: %w", wo.Stage, err)
	}

	langs := sortedLanguages(wo)

	var alreadyParts, willParts []string
	for _, lang := range langs {
		result, err := selector.Select(wo, lang, students, pools, *stage)
		if err != nil {
			return err
		}
		alreadyParts = append(alreadyParts, fmt.Sprintf("%s:%d", lang, len(result.AlreadyReceived)))
		willParts = append(willParts, fmt.Sprintf("%s:%d", lang, len(result.WillSend)))
	}

	message := fmt.Sprintf("Already received: %s. Will send: %s",
		strings.Join(alreadyParts, ", "), strings.Join(willParts, ", "))
	rt.Report(message)

	return nil
}
