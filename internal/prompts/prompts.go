// Package prompts implements the Prompt resolution used during template
// variable expansion (spec.md §4.7), grounded directly on the original
// agent's prompts.py prompt_lookup.
package prompts

import (
	"fmt"

	"github.com/ignite/email-campaign-agent/internal/store"
)

// universalLanguage is the wildcard language value a default prompt may
// carry to match any requested language.
const universalLanguage = "universal"

// Lookup resolves a prompt string for key/language/aid: first an
// application-specific prompt (`aid-key`, exact language match), then a
// default prompt (`default-key`, exact or universal language match),
// else a placeholder naming what was missing.
func Lookup(prompts []store.Prompt, key, language, aid string) string {
	if len(prompts) == 0 {
		return fmt.Sprintf("%s-%s-%s-promptsUndefined", aid, key, language)
	}

	aidKey := aid + "-" + key
	for _, p := range prompts {
		if p.Key == aidKey && p.Language == language {
			return p.Text
		}
	}

	defaultKey := "default-" + key
	for _, p := range prompts {
		if p.Key != defaultKey {
			continue
		}
		if p.Language == language || p.Language == universalLanguage {
			return p.Text
		}
	}

	return fmt.Sprintf("%s-%s-%s-unknown", aid, key, language)
}
