package parser

import (
	"strings"
	"unicode"

	"github.com/rbright/suzerain/internal/grimoire"
)

// EscapeMatcher resolves escape-hatch commands by exact or whole-token comparison.
// MaxTokens rejects utterances longer than the limit when positive, so "stop" fires
// but "stop sign on the corner" does not.
type EscapeMatcher struct {
	MaxTokens int
}

// Match checks normalized text against hatches in registry order. First hit wins.
func (m EscapeMatcher) Match(normalized string, hatches []grimoire.Command) (Result, bool) {
	tokens := escapeTokens(normalized)
	if len(tokens) == 0 {
		return Result{}, false
	}
	if m.MaxTokens > 0 && len(tokens) > m.MaxTokens {
		return Result{}, false
	}
	joined := strings.Join(tokens, " ")

	for _, cmd := range hatches {
		for _, trigger := range cmd.Triggers() {
			want := escapeTokens(strings.ToLower(trigger))
			if len(want) == 0 {
				continue
			}
			if strings.Join(want, " ") == joined {
				return Result{Command: cmd, Score: 100, Method: MethodEscape, Trigger: trigger, Exact: true}, true
			}
			if containsRun(tokens, want) {
				return Result{Command: cmd, Score: 100, Method: MethodEscape, Trigger: trigger}, true
			}
		}
	}
	return Result{}, false
}

// escapeTokens splits on whitespace and trims surrounding punctuation, so a
// transcript of "Stop." still reads as the token "stop".
func escapeTokens(text string) []string {
	fields := strings.Fields(text)
	out := fields[:0]
	for _, f := range fields {
		f = strings.TrimFunc(f, unicode.IsPunct)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// containsRun reports whether want appears as a contiguous run of whole tokens.
func containsRun(tokens, want []string) bool {
	if len(want) > len(tokens) {
		return false
	}
outer:
	for i := 0; i+len(want) <= len(tokens); i++ {
		for j := range want {
			if tokens[i+j] != want[j] {
				continue outer
			}
		}
		return true
	}
	return false
}

// InterruptDetector checks monitor transcripts against the current escape hatches.
type InterruptDetector struct {
	d         *Dispatcher
	maxTokens int
}

// InterruptDetector returns a detector bound to the dispatcher's registry. maxTokens
// applies the isolated-utterance rule.
func (d *Dispatcher) InterruptDetector(maxTokens int) *InterruptDetector {
	return &InterruptDetector{d: d, maxTokens: maxTokens}
}

// Detect reports the escape phrase heard in text, if any.
func (i *InterruptDetector) Detect(text string) (string, bool) {
	c := i.d.compiled()
	if c == nil || len(c.hatches) == 0 {
		return "", false
	}
	res, ok := EscapeMatcher{MaxTokens: i.maxTokens}.Match(c.normalizer.Normalize(text), c.hatches)
	if !ok {
		return "", false
	}
	return res.Command.Phrase, true
}
