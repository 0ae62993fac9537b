package render

import (
	"errors"
	"testing"

	"github.com/ignite/email-campaign-agent/internal/store"
	"github.com/ignite/email-campaign-agent/internal/workorder"
)

func TestNormalize_StripsTrailingCenterBlock(t *testing.T) {
	html := "<p>body</p>\n<center>footer stuff</center>\n"
	got := Normalize(html)
	if got != "<p>body</p>\n" {
		t.Fatalf("Normalize() = %q", got)
	}
}

func TestQACheck_MissingNamePlaceholder(t *testing.T) {
	wo := &workorder.WorkOrder{}
	err := QACheck("<p>hello there</p>", wo, store.StageRecord{}, "EN")
	var qa QAFailure
	if !errors.As(err, &qa) {
		t.Fatalf("expected QAFailure, got %v", err)
	}
}

func TestQACheck_SalutationByNameFalseSkipsCheck(t *testing.T) {
	wo := &workorder.WorkOrder{}
	f := false
	wo.SalutationByName = &f
	if err := QACheck("<p>no placeholder</p>", wo, store.StageRecord{}, "EN"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQACheck_UnbalancedConditional(t *testing.T) {
	wo := &workorder.WorkOrder{}
	f := false
	wo.SalutationByName = &f
	err := QACheck("line1\n#if oathed\nline2\n", wo, store.StageRecord{}, "EN")
	var qa QAFailure
	if !errors.As(err, &qa) {
		t.Fatalf("expected QAFailure for unterminated #if, got %v", err)
	}
}

func TestQACheck_ZoomRequiredAndPresent(t *testing.T) {
	wo := &workorder.WorkOrder{ZoomID: "1234567", InPerson: false}
	f := false
	wo.SalutationByName = &f
	stage := store.StageRecord{QAStepCheckZoomID: true}

	err := QACheck(`<a href="https://zoom.us/j/1234567">join</a>`, wo, stage, "EN")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = QACheck(`<a href="https://zoom.us/j/9999999">join</a>`, wo, stage, "EN")
	var qa QAFailure
	if !errors.As(err, &qa) {
		t.Fatalf("expected QAFailure for mismatched zoom id, got %v", err)
	}
}

func TestQACheck_RegLinkRequiresAidAndPid(t *testing.T) {
	wo := &workorder.WorkOrder{EventCode: "vr20251001", RegLinkPresent: true}
	f := false
	wo.SalutationByName = &f

	good := `<a href="https://reg.slsupport.link/form?aid=vr20251001&pid=123456789">register</a>`
	if err := QACheck(good, wo, store.StageRecord{}, "EN"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := `<a href="https://reg.slsupport.link/form?aid=vr20251001">register</a>`
	err := QACheck(bad, wo, store.StageRecord{}, "EN")
	var qa QAFailure
	if !errors.As(err, &qa) {
		t.Fatalf("expected QAFailure for missing pid, got %v", err)
	}
}

func TestSpecialize_NameAndPlaceholderAndComments(t *testing.T) {
	html := "<!-- hidden --><p>Hi ||name||, your id is 123456789</p>"
	ctx := Context{
		Student:    store.Student{ID: "stu-1", First: "Ada", Last: "Lovelace"},
		EventCode:  "vr20251001",
		CoordEmail: "coord@example.com",
	}
	got, err := Specialize(html, ctx)
	if err != nil {
		t.Fatalf("Specialize() error = %v", err)
	}
	want := "<p>Hi Ada Lovelace, your id is stu-1</p>"
	if got != want {
		t.Fatalf("Specialize() = %q, want %q", got, want)
	}
}

func TestSpecialize_Retreats(t *testing.T) {
	html := "<p>||retreats||</p>"
	ctx := Context{
		Student: store.Student{
			ID: "stu-1",
			Programs: map[string]store.ProgramState{
				"vr20251001": {WhichRetreats: map[string]bool{"winter": true, "summer": false}},
			},
		},
		Event: store.Event{Config: store.EventConfig{
			WhichRetreatsConfig: map[string]store.RetreatConfig{
				"winter": {Prompt: "winter-prompt", OfferingTotal: 500},
				"summer": {Prompt: "vr20251001-summer-prompt", OfferingTotal: 500},
			},
		}},
		EventCode: "vr20251001",
		Language:  "English",
		Prompts: []store.Prompt{
			{Key: "vr20251001-winter-prompt", Language: "English", Text: "Winter Retreat"},
		},
	}
	got, err := Specialize(html, ctx)
	if err != nil {
		t.Fatalf("Specialize() error = %v", err)
	}
	if got != "<p><ul><li><b>Winter Retreat</b></li></ul></p>" {
		t.Fatalf("Specialize() = %q", got)
	}
}

func TestSpecialize_RetreatsNoneTruthyFails(t *testing.T) {
	html := "<p>||retreats||</p>"
	ctx := Context{
		Student: store.Student{
			ID:       "stu-1",
			Programs: map[string]store.ProgramState{"vr20251001": {WhichRetreats: map[string]bool{"winter": false}}},
		},
		Event: store.Event{Config: store.EventConfig{
			WhichRetreatsConfig: map[string]store.RetreatConfig{"winter": {Prompt: "vr20251001-winter-prompt"}},
		}},
		EventCode: "vr20251001",
	}
	_, err := Specialize(html, ctx)
	var qa QAFailure
	if !errors.As(err, &qa) {
		t.Fatalf("expected QAFailure, got %v", err)
	}
}

func TestSpecialize_RetreatsMissingWhichRetreatsConfigFails(t *testing.T) {
	html := "<p>||retreats||</p>"
	ctx := Context{
		Student: store.Student{
			ID:       "stu-1",
			Programs: map[string]store.ProgramState{"vr20251001": {WhichRetreats: map[string]bool{"winter": true}}},
		},
		EventCode: "vr20251001",
	}
	_, err := Specialize(html, ctx)
	var qa QAFailure
	if !errors.As(err, &qa) {
		t.Fatalf("expected QAFailure for missing whichRetreatsConfig, got %v", err)
	}
}

func TestSpecialize_BalanceUSDAndEUR(t *testing.T) {
	student := store.Student{
		Programs: map[string]store.ProgramState{
			"vr20251001": {
				WhichRetreats: map[string]bool{"retreat": true},
				OfferingHistory: map[string]store.OfferingHistory{
					"retreat": {
						Installments: map[string]store.InstallmentHistory{
							"first": {OfferingAmount: 400},
						},
					},
				},
			},
		},
	}
	whichRetreatsConfig := map[string]store.RetreatConfig{"retreat": {OfferingTotal: 1000}}

	usd, err := Specialize("||balance||", Context{
		Student:   student,
		EventCode: "vr20251001",
		Event:     store.Event{Config: store.EventConfig{WhichRetreatsConfig: whichRetreatsConfig}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if usd != "$600 USD" {
		t.Fatalf("Specialize() = %q, want $600 USD", usd)
	}

	eur, err := Specialize("||balance||", Context{
		Student:   student,
		EventCode: "vr20251001",
		Event:     store.Event{Config: store.EventConfig{Currency: "EUR", WhichRetreatsConfig: whichRetreatsConfig}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eur != "€600 EUR" {
		t.Fatalf("Specialize() = %q, want €600 EUR", eur)
	}
}

func TestSpecialize_BalanceMissingWhichRetreatsConfigFails(t *testing.T) {
	student := store.Student{
		Programs: map[string]store.ProgramState{
			"vr20251001": {WhichRetreats: map[string]bool{"retreat": true}},
		},
	}
	_, err := Specialize("||balance||", Context{Student: student, EventCode: "vr20251001"})
	var qa QAFailure
	if !errors.As(err, &qa) {
		t.Fatalf("expected QAFailure, got %v", err)
	}
}

func TestSpecialize_ConditionalOfferingBranch(t *testing.T) {
	student := store.Student{
		Programs: map[string]store.ProgramState{
			"vr20251001": {
				OfferingHistory: map[string]store.OfferingHistory{
					"retreat": {OfferingSKU: "SKU1"},
				},
			},
		},
	}
	html := "before\n#if offering retreat\nhas offering\n#else\nno offering\n#endif\nafter"
	got, err := Specialize(html, Context{Student: student, EventCode: "vr20251001"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "before\nhas offering\nafter"
	if got != want {
		t.Fatalf("Specialize() = %q, want %q", got, want)
	}
}

func TestSpecialize_ConditionalOfferingInstallmentsBranch(t *testing.T) {
	whichRetreatsConfig := map[string]store.RetreatConfig{
		"retreat-a": {OfferingTotal: 300},
		"retreat-b": {OfferingTotal: 300},
		"retreat-c": {OfferingTotal: 300},
	}
	html := "#if offering installments\npaid in full\n#else\nstill owed\n#endif"

	unpaid := store.Student{
		Programs: map[string]store.ProgramState{
			"vr20251001": {
				WhichRetreats: map[string]bool{"retreat-a": true},
				OfferingHistory: map[string]store.OfferingHistory{
					"retreat": {Installments: map[string]store.InstallmentHistory{"first": {OfferingAmount: 100}}},
				},
			},
		},
	}
	got, err := Specialize(html, Context{
		Student:   unpaid,
		EventCode: "vr20251001",
		Event:     store.Event{Config: store.EventConfig{WhichRetreatsConfig: whichRetreatsConfig}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "still owed" {
		t.Fatalf("Specialize() = %q, want still owed", got)
	}

	paid := store.Student{
		Programs: map[string]store.ProgramState{
			"vr20251001": {
				WhichRetreats: map[string]bool{"retreat-a": true},
				OfferingHistory: map[string]store.OfferingHistory{
					"retreat": {Installments: map[string]store.InstallmentHistory{"first": {OfferingAmount: 300}}},
				},
			},
		},
	}
	got, err = Specialize(html, Context{
		Student:   paid,
		EventCode: "vr20251001",
		Event:     store.Event{Config: store.EventConfig{WhichRetreatsConfig: whichRetreatsConfig}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "paid in full" {
		t.Fatalf("Specialize() = %q, want paid in full", got)
	}

	// With limitFee set and three enabled retreats, only the first two
	// (sorted) count toward the required total, so 600 received clears it
	// even though three retreats' full total would be 900.
	limited := store.Student{
		Programs: map[string]store.ProgramState{
			"vr20251001": {
				LimitFee:      1,
				WhichRetreats: map[string]bool{"retreat-a": true, "retreat-b": true, "retreat-c": true},
				OfferingHistory: map[string]store.OfferingHistory{
					"retreat": {Installments: map[string]store.InstallmentHistory{"first": {OfferingAmount: 600}}},
				},
			},
		},
	}
	got, err = Specialize(html, Context{
		Student:   limited,
		EventCode: "vr20251001",
		Event:     store.Event{Config: store.EventConfig{WhichRetreatsConfig: whichRetreatsConfig}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "paid in full" {
		t.Fatalf("Specialize() = %q, want paid in full (limitFee caps required count at 2)", got)
	}
}

func TestSpecialize_ConditionalRetreatsBranch(t *testing.T) {
	student := store.Student{
		Programs: map[string]store.ProgramState{
			"vr20251001": {WhichRetreats: map[string]bool{"retreatA-winter": true}},
		},
	}
	html := "#if retreats <retreatB> <retreatA>\nmatched\n#endif"
	got, err := Specialize(html, Context{Student: student, EventCode: "vr20251001"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "matched" {
		t.Fatalf("Specialize() = %q, want matched", got)
	}
}

func TestSpecialize_UnknownConditionIsHardError(t *testing.T) {
	_, err := Specialize("#if bogus\nx\n#endif", Context{EventCode: "vr20251001"})
	var qa QAFailure
	if !errors.As(err, &qa) {
		t.Fatalf("expected QAFailure, got %v", err)
	}
}
