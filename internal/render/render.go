// Package render implements the shared per-recipient HTML specialization
// and QA checks of spec.md §4.7, grounded on the original agent's
// email.py template-substitution pass: a sequence of literal and regex
// replacements followed by an #if/#else/#endif filter, re-expressed here
// as a small ordered pipeline over Go's text/template-free string/regexp
// primitives (the substitution grammar is fixed and line-oriented, not a
// general template language, so text/template would be the wrong tool).
package render

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ignite/email-campaign-agent/internal/eligibility"
	"github.com/ignite/email-campaign-agent/internal/prompts"
	"github.com/ignite/email-campaign-agent/internal/store"
	"github.com/ignite/email-campaign-agent/internal/workorder"
)

// QAFailure is raised by QACheck when prepared HTML fails one of the four
// content checks; the message names which check failed.
type QAFailure struct {
	Message string
}

func (e QAFailure) Error() string { return e.Message }

var (
	ifRe       = regexp.MustCompile(`#if`)
	elseRe     = regexp.MustCompile(`#else`)
	endifRe    = regexp.MustCompile(`#endif`)
	zoomURLRe  = regexp.MustCompile(`https://[^\s"']*zoom\.us/[^\s"']*`)
	regLinkRe  = regexp.MustCompile(`https://(reg|csf)\.slsupport\.link/[^\s"']*`)
	commentRe  = regexp.MustCompile(`(?s)<!--.*?-->`)
	centerRe   = regexp.MustCompile(`(?s)<center>.*?</center>\s*$`)
	metaTagged = `<meta http-equiv="Content-Type" content="text/html charset=UTF-8" />`
	legacyMeta = `<meta charset="UTF-8">`
)

// Normalize strips a trailing <center>...</center> block, the first step
// of Prepare's HTML cleanup.
func Normalize(html string) string {
	i := strings.LastIndex(html, "<center>")
	if i < 0 || !centerRe.MatchString(html[i:]) {
		return html
	}
	return html[:i] + centerRe.ReplaceAllString(html[i:], "")
}

// QACheck runs the four content checks of spec.md §4.7 Prepare against
// normalized HTML for one language, returning a QAFailure describing the
// first one that fails.
func QACheck(html string, wo *workorder.WorkOrder, stage store.StageRecord, lang string) error {
	if err := checkBalancedConditionals(html); err != nil {
		return err
	}

	if wo.SalutationByName == nil || *wo.SalutationByName {
		if !strings.Contains(html, "||name||") {
			return QAFailure{Message: "QA failure: HTML is missing ||name|| for salutation-by-name"}
		}
	}

	if stage.QAStepCheckZoomID && !wo.InPerson {
		if wo.ZoomID == "" {
			return QAFailure{Message: "QA failure: zoomId is required but not set on the work order"}
		}
		found := false
		for _, u := range zoomURLRe.FindAllString(html, -1) {
			if strings.Contains(u, wo.ZoomID) {
				found = true
				break
			}
		}
		if !found {
			return QAFailure{Message: fmt.Sprintf("QA failure: no zoom.us URL in HTML contains zoomId %q", wo.ZoomID)}
		}
	}

	if wo.RegLinkPresent {
		urls := regLinkRe.FindAllString(html, -1)
		if len(urls) == 0 {
			return QAFailure{Message: "QA failure: regLinkPresent is set but no reg/csf.slsupport.link URL found"}
		}
		found := false
		for _, u := range urls {
			if containsParam(u, "aid", wo.EventCode) && containsParam(u, "pid", "123456789") {
				found = true
				break
			}
		}
		if !found {
			return QAFailure{Message: fmt.Sprintf("QA failure: no registration link carries both aid=%s and pid=123456789", wo.EventCode)}
		}
	}

	return nil
}

// containsParam reports whether url has a query parameter key=value,
// joined by either "?" or "&" per spec.md's "?|&" notation.
func containsParam(url, key, value string) bool {
	return strings.Contains(url, "?"+key+"="+value) || strings.Contains(url, "&"+key+"="+value)
}

// checkBalancedConditionals verifies every #if has a matching #endif with
// no dangling #else/#endif outside one, without evaluating conditions.
func checkBalancedConditionals(html string) error {
	depth := 0
	for _, line := range strings.Split(html, "\n") {
		switch {
		case ifRe.MatchString(line):
			depth++
		case endifRe.MatchString(line):
			if depth == 0 {
				return QAFailure{Message: "QA failure: #endif without a matching #if"}
			}
			depth--
		case elseRe.MatchString(line):
			if depth == 0 {
				return QAFailure{Message: "QA failure: #else without a matching #if"}
			}
		}
	}
	if depth != 0 {
		return QAFailure{Message: "QA failure: unterminated #if block"}
	}
	return nil
}

// Context carries everything Specialize needs to resolve the
// per-recipient substitutions and condition grammar for one recipient.
type Context struct {
	Student     store.Student
	Event       store.Event
	Pools       map[string]store.Pool
	Prompts     []store.Prompt
	EventCode   string
	SubEvent    string
	Language    string // full language name, e.g. "English"
	PreviewText string
	CoordEmail  string
}

// Specialize applies the ordered per-recipient substitution pipeline of
// spec.md §4.7 to html, returning the final message body.
func Specialize(html string, ctx Context) (string, error) {
	html = strings.ReplaceAll(html, "||name||", ctx.Student.First+" "+ctx.Student.Last)

	if strings.Contains(html, "||retreats||") {
		retreatsHTML, err := renderRetreats(ctx)
		if err != nil {
			return "", err
		}
		html = strings.ReplaceAll(html, "||retreats||", retreatsHTML)
	}

	if strings.Contains(html, "||balance||") {
		balance, err := renderBalance(ctx)
		if err != nil {
			return "", err
		}
		html = strings.ReplaceAll(html, "||balance||", balance)
	}

	preview := strings.ReplaceAll(ctx.PreviewText, `"`, "")
	html = strings.ReplaceAll(html, "*|MC_PREVIEW_TEXT|*", preview)
	html = strings.ReplaceAll(html, "*|MC:SUBJECT|*", preview)

	html = commentRe.ReplaceAllString(html, "")

	if !strings.Contains(html, metaTagged) {
		html = strings.ReplaceAll(html, legacyMeta, metaTagged)
	}

	coordHTML := fmt.Sprintf(`<u><a href="mailto:%s" target="_blank" style="mso-line-height-rule: exactly;-ms-text-size-adjust: 100%%;-webkit-text-size-adjust: 100%%;color: #FFFFFF;font-weight: normal;text-decoration: underline;"><span style="color:#0000FF">%s</span></a></u>`, ctx.CoordEmail, ctx.CoordEmail)
	html = strings.ReplaceAll(html, "||coord-email||", coordHTML)

	html = strings.ReplaceAll(html, "123456789", ctx.Student.ID)

	return filterConditionals(html, ctx)
}

func renderRetreats(ctx Context) (string, error) {
	program, ok := ctx.Student.Programs[ctx.EventCode]
	if !ok {
		return "", QAFailure{Message: "render failure: ||retreats|| used but student has no program for this event"}
	}
	if ctx.Event.Config.WhichRetreatsConfig == nil {
		return "", QAFailure{Message: "render failure: ||retreats|| used but event has no whichRetreatsConfig"}
	}

	keys := make([]string, 0, len(program.WhichRetreats))
	for k := range program.WhichRetreats {
		keys = append(keys, k)
	}
	sortStrings(keys)

	var sb strings.Builder
	sb.WriteString("<ul>")
	atLeastOne := false
	for _, key := range keys {
		if !program.WhichRetreats[key] {
			continue
		}
		retreatConfig, ok := ctx.Event.Config.WhichRetreatsConfig[key]
		if !ok {
			return "", QAFailure{Message: fmt.Sprintf("render failure: ||retreats|| no whichRetreatsConfig entry for retreat %q", key)}
		}
		text := prompts.Lookup(ctx.Prompts, retreatConfig.Prompt, ctx.Language, ctx.EventCode)
		atLeastOne = true
		sb.WriteString("<li><b>")
		sb.WriteString(text)
		sb.WriteString("</b></li>")
	}
	sb.WriteString("</ul>")

	if !atLeastOne {
		return "", QAFailure{Message: fmt.Sprintf("render failure: ||retreats|| matched no truthy whichRetreats entries for student %s", ctx.Student.ID)}
	}
	return sb.String(), nil
}

func renderBalance(ctx Context) (string, error) {
	program := ctx.Student.Programs[ctx.EventCode]
	if ctx.Event.Config.WhichRetreatsConfig == nil {
		return "", QAFailure{Message: "render failure: ||balance|| used in a non-multiple-retreats event (no whichRetreatsConfig)"}
	}

	total := 0.0
	for key, enabled := range program.WhichRetreats {
		if !enabled {
			continue
		}
		total += ctx.Event.Config.WhichRetreatsConfig[key].OfferingTotal
	}

	received := 0.0
	if oh, ok := program.OfferingHistory["retreat"]; ok {
		for _, inst := range oh.Installments {
			received += inst.OfferingAmount
		}
	}

	symbol, code := "$", "USD"
	if ctx.Event.Config.Currency == "EUR" {
		symbol, code = "€", "EUR"
	}

	return fmt.Sprintf("%s%s %s", symbol, strconv.FormatFloat(total-received, 'f', -1, 64), code), nil
}

// filterConditionals evaluates the #if/#else/#endif grammar line by line,
// passing through lines outside a false branch.
func filterConditionals(html string, ctx Context) (string, error) {
	lines := strings.Split(html, "\n")
	out := make([]string, 0, len(lines))

	inIf := false
	condition := false

	for _, line := range lines {
		if !inIf {
			if idx := strings.Index(line, "#if"); idx >= 0 {
				cond, err := evalCondition(line[idx+len("#if"):], ctx)
				if err != nil {
					return "", err
				}
				condition = cond
				inIf = true
				continue
			}
			if strings.Contains(line, "#endif") {
				return "", QAFailure{Message: "render failure: #endif without a matching #if"}
			}
			if strings.Contains(line, "#else") {
				return "", QAFailure{Message: "render failure: #else without a matching #if"}
			}
			out = append(out, line)
			continue
		}

		switch {
		case strings.Contains(line, "#endif"):
			inIf = false
		case strings.Contains(line, "#else"):
			condition = !condition
		default:
			if condition {
				out = append(out, line)
			}
		}
	}

	if inIf {
		return "", QAFailure{Message: "render failure: unterminated #if block"}
	}

	return strings.Join(out, "\n"), nil
}

// evalCondition evaluates one #if argument string against the condition
// grammar of spec.md §4.7: "oathed", "offering {subevent|installments}",
// "retreats <a> [<b>]".
func evalCondition(args string, ctx Context) (bool, error) {
	raw := strings.Fields(args)
	fields := make([]string, len(raw))
	for i, f := range raw {
		fields[i] = strings.Trim(f, "<>")
	}
	if len(fields) == 0 {
		return false, QAFailure{Message: "render failure: empty #if condition"}
	}

	switch fields[0] {
	case "oathed":
		ok, err := eligibility.CheckEligibility("oath", ctx.Student, ctx.EventCode, ctx.SubEvent, ctx.Pools)
		if err != nil {
			return false, err
		}
		return ok, nil

	case "offering":
		if len(fields) < 2 {
			return false, QAFailure{Message: "render failure: #if offering requires an argument"}
		}
		if fields[1] == "installments" {
			program := ctx.Student.Programs[ctx.EventCode]
			oh, ok := program.OfferingHistory["retreat"]
			if !ok || len(oh.Installments) == 0 {
				return false, nil
			}
			var received float64
			for _, inst := range oh.Installments {
				received += inst.OfferingAmount
			}

			if program.WhichRetreats == nil {
				return false, nil
			}
			if ctx.Event.Config.WhichRetreatsConfig == nil {
				return false, QAFailure{Message: "render failure: #if offering installments used in a non-multiple-retreats event (no whichRetreatsConfig)"}
			}

			keys := make([]string, 0, len(program.WhichRetreats))
			for key, enabled := range program.WhichRetreats {
				if enabled {
					keys = append(keys, key)
				}
			}
			sortStrings(keys)

			keyCount := len(keys)
			if program.LimitFee > 0 && keyCount > 2 {
				keyCount = 2
			}

			var required float64
			for i, key := range keys {
				if i >= keyCount {
					break
				}
				required += ctx.Event.Config.WhichRetreatsConfig[key].OfferingTotal
			}

			return required <= received, nil
		}
		program := ctx.Student.Programs[ctx.EventCode]
		_, ok := program.OfferingHistory[fields[1]]
		return ok, nil

	case "retreats":
		if len(fields) < 2 {
			return false, QAFailure{Message: "render failure: #if retreats requires at least one argument"}
		}
		program := ctx.Student.Programs[ctx.EventCode]
		for _, prefix := range fields[1:] {
			for key, enabled := range program.WhichRetreats {
				if enabled && strings.HasPrefix(key, prefix) {
					return true, nil
				}
			}
		}
		return false, nil

	default:
		return false, QAFailure{Message: fmt.Sprintf("render failure: unknown #if condition %q", fields[0])}
	}
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
