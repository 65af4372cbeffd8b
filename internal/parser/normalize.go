package parser

import (
	"regexp"
	"strings"
)

// maxNormalizePasses bounds the fixpoint loop; stripping rarely exposes a second match.
const maxNormalizePasses = 4

// Normalizer strips filler words and modifier phrases from raw input.
type Normalizer struct {
	filler    *regexp.Regexp
	modifiers []string
}

// NewNormalizer compiles fillers into a single word-boundary pattern.
func NewNormalizer(fillers []string, modifierPhrases []string) *Normalizer {
	n := &Normalizer{}

	quoted := make([]string, 0, len(fillers))
	for _, word := range fillers {
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(word))
	}
	if len(quoted) > 0 {
		n.filler = regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
	}

	for _, phrase := range modifierPhrases {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase != "" {
			n.modifiers = append(n.modifiers, phrase)
		}
	}
	return n
}

// Normalize lowercases text, removes fillers and modifier phrases, and collapses whitespace.
// Normalize(Normalize(x)) == Normalize(x).
func (n *Normalizer) Normalize(text string) string {
	out := collapse(strings.ToLower(text))
	for range maxNormalizePasses {
		next := n.pass(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func (n *Normalizer) pass(text string) string {
	for _, phrase := range n.modifiers {
		text = strings.ReplaceAll(text, phrase, " ")
	}
	if n.filler != nil {
		text = n.filler.ReplaceAllString(text, " ")
	}
	return collapse(text)
}

func collapse(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
