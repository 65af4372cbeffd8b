// Package parser turns transcribed or typed text into a grimoire command plus modifiers.
package parser

import "github.com/rbright/suzerain/internal/grimoire"

// Method names the matching stage that produced a result.
type Method string

const (
	MethodEscape   Method = "escape"
	MethodFuzzy    Method = "fuzzy"
	MethodSemantic Method = "semantic"
)

// Named defaults. The tie band and thresholds were tuned by hand; treat them as
// reasonable starting points rather than derived values.
const (
	DefaultThreshold       = 70.0
	DefaultEscapeThreshold = 95.0
	DefaultTieBand         = 10.0
	DefaultTopN            = 3
)

// Result is one matched command. Score is on a 0-100 scale for every method.
type Result struct {
	Command grimoire.Command
	Score   float64
	Method  Method
	// Trigger is the phrase or alias that scored best.
	Trigger string
	// Exact is set when the normalized input equals the trigger.
	Exact bool
}

// OutcomeKind classifies a dispatch attempt.
type OutcomeKind string

const (
	OutcomeMatched   OutcomeKind = "matched"
	OutcomeAmbiguous OutcomeKind = "ambiguous"
	OutcomeNoMatch   OutcomeKind = "no_match"
)

// Outcome is the resolved interpretation of one input. Ambiguous and no-match are
// normal outcomes the caller handles, never errors.
type Outcome struct {
	Kind       OutcomeKind
	Input      string
	Normalized string
	Match      Result
	Candidates []Result
}
