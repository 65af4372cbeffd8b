package parser

import (
	"strings"

	"github.com/rbright/suzerain/internal/grimoire"
)

// ExtractModifiers scans the original, un-normalized text for modifier phrases.
// Results keep registry order.
func ExtractModifiers(text string, modifiers []grimoire.Modifier) []grimoire.Modifier {
	lower := strings.ToLower(text)
	var out []grimoire.Modifier
	for _, mod := range modifiers {
		phrase := strings.ToLower(strings.TrimSpace(mod.Phrase))
		if phrase != "" && strings.Contains(lower, phrase) {
			out = append(out, mod)
		}
	}
	return out
}

// HasEffect reports whether any modifier carries effect.
func HasEffect(modifiers []grimoire.Modifier, effect string) bool {
	for _, mod := range modifiers {
		if mod.Effect == effect {
			return true
		}
	}
	return false
}

// Effects lists modifier effects in order.
func Effects(modifiers []grimoire.Modifier) []string {
	out := make([]string, 0, len(modifiers))
	for _, mod := range modifiers {
		out = append(out, mod.Effect)
	}
	return out
}
