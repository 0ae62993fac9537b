// Package selector implements the stage filter and recipient selector
// (C5): the five-step pipeline that turns a work order, a language, and
// the student/pool/stage tables into an already-received/will-send split,
// grounded directly on the original agent's steps/shared.go
// find_eligible_students pipeline.
package selector

import (
	"strings"

	"github.com/ignite/email-campaign-agent/internal/eligibility"
	"github.com/ignite/email-campaign-agent/internal/store"
	"github.com/ignite/email-campaign-agent/internal/workorder"
)

// langCodeToName maps the two-letter language codes the work order and
// student records use onto the full names student.writtenLangPref is
// compared against, ground truth taken from the original agent's
// _get_full_language_name table.
var langCodeToName = map[string]string{
	"EN": "English",
	"FR": "French",
	"SP": "Spanish",
	"DE": "German",
	"IT": "Italian",
	"PT": "Portuguese",
	"RU": "Russian",
	"ZH": "Chinese",
	"JA": "Japanese",
	"KO": "Korean",
	"AR": "Arabic",
	"HI": "Hindi",
	"TH": "Thai",
	"VI": "Vietnamese",
	"NL": "Dutch",
	"SV": "Swedish",
	"NO": "Norwegian",
	"DA": "Danish",
	"FI": "Finnish",
	"PL": "Polish",
	"CZ": "Czech",
	"CS": "Czech",
	"HU": "Hungarian",
	"RO": "Romanian",
	"BG": "Bulgarian",
	"HR": "Croatian",
	"SR": "Serbian",
	"SK": "Slovak",
	"SL": "Slovenian",
	"ET": "Estonian",
	"LV": "Latvian",
	"LT": "Lithuanian",
	"MT": "Maltese",
	"EL": "Greek",
	"HE": "Hebrew",
	"TR": "Turkish",
	"UK": "Ukrainian",
}

// FullLanguageName converts a two-letter code to its full name, or returns
// the code unchanged if it has no mapping.
func FullLanguageName(code string) string {
	if name, ok := langCodeToName[strings.ToUpper(code)]; ok {
		return name
	}
	return code
}

// Result is the outcome of Select for one (work order, language) pair.
type Result struct {
	AlreadyReceived []store.Student
	WillSend        []store.Student
}

// CampaignString produces the canonical, hyphen-joined campaign-string key
// for a work order and language, written on every append to the recipient
// and student-emails ledgers.
func CampaignString(wo *workorder.WorkOrder, lang string) string {
	return strings.Join([]string{wo.EventCode, wo.SubEvent, wo.Stage, lang}, "-")
}

// alreadyReceived reports whether student.Emails records campaignString,
// tolerating both the canonical hyphen-joined form and the legacy
// underscore-joined form on read (spec.md §9 campaign-string ambiguity).
func alreadyReceived(student store.Student, campaignString string) bool {
	if _, ok := student.Emails[campaignString]; ok {
		return true
	}
	_, ok := student.Emails[strings.ReplaceAll(campaignString, "-", "_")]
	return ok
}

// Select runs the five-step pipeline of spec.md §4.5 for a single
// language, returning the already-received and will-send partitions.
func Select(wo *workorder.WorkOrder, lang string, students []store.Student, pools map[string]store.Pool, stage store.StageRecord) (Result, error) {
	campaignString := CampaignString(wo, lang)
	langFullName := strings.ToLower(FullLanguageName(lang))
	poolName := wo.Pool()

	var result Result

	for _, student := range students {
		// Step 1: unsubscribe skip — not even counted as already-received.
		if student.Unsubscribe {
			continue
		}

		// Step 2: campaign-received classification.
		if alreadyReceived(student, campaignString) {
			result.AlreadyReceived = append(result.AlreadyReceived, student)
			continue
		}

		// Step 3: language rule.
		if langFullName != "english" {
			if student.WrittenLangPref == "" || !strings.EqualFold(student.WrittenLangPref, langFullName) {
				continue
			}
		}

		// Step 4: pool filter. Missing config.pool excludes everyone.
		if poolName == "" {
			continue
		}
		eligible, err := eligibility.CheckEligibility(poolName, student, wo.EventCode, wo.SubEvent, pools)
		if err != nil {
			return Result{}, err
		}
		if !eligible {
			continue
		}

		// Step 5: stage filter, AND-over stage.Pools.
		ok, err := passesStageFilter(stage, student, wo, pools)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			continue
		}

		result.WillSend = append(result.WillSend, student)
	}

	return result, nil
}

// passesStageFilter applies the AND-over-pools stage overlay of spec.md
// §4.5 step 5. A stage record with no pools is vacuously true.
func passesStageFilter(stage store.StageRecord, student store.Student, wo *workorder.WorkOrder, pools map[string]store.Pool) (bool, error) {
	for _, poolName := range stage.Pools {
		ok, err := eligibility.CheckEligibility(poolName, student, wo.EventCode, wo.SubEvent, pools)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
