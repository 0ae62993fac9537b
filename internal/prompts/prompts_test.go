package prompts

import (
	"testing"

	"github.com/ignite/email-campaign-agent/internal/store"
)

func TestLookup(t *testing.T) {
	table := []store.Prompt{
		{Key: "vr20251001-welcome", Language: "English", Text: "Welcome!"},
		{Key: "default-welcome", Language: "English", Text: "Default welcome (EN)"},
		{Key: "default-welcome", Language: "universal", Text: "Default welcome (any language)"},
	}

	cases := []struct {
		name     string
		key      string
		language string
		aid      string
		want     string
	}{
		{"aid-specific exact match", "welcome", "English", "vr20251001", "Welcome!"},
		{"falls back to default exact language", "welcome", "English", "other-event", "Default welcome (EN)"},
		{"falls back to universal default", "welcome", "French", "other-event", "Default welcome (any language)"},
		{"no match produces unknown placeholder", "missing", "French", "other-event", "other-event-missing-French-unknown"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Lookup(table, tc.key, tc.language, tc.aid); got != tc.want {
				t.Errorf("Lookup() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLookup_EmptyTable(t *testing.T) {
	got := Lookup(nil, "welcome", "English", "vr20251001")
	want := "vr20251001-welcome-English-promptsUndefined"
	if got != want {
		t.Errorf("Lookup() = %q, want %q", got, want)
	}
}
