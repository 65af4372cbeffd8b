// Package grimoire holds the command and modifier registry that utterances are matched against.
package grimoire

import "strings"

// EffectDryRun is the modifier effect that forces preview instead of execution.
const EffectDryRun = "dry_run"

// Command is one authored trigger phrase and the instruction it expands to.
// Values are never mutated after load; reloads build a fresh Grimoire.
type Command struct {
	Phrase          string   `yaml:"phrase"`
	Aliases         []string `yaml:"aliases,omitempty"`
	Tags            []string `yaml:"tags,omitempty"`
	Expansion       string   `yaml:"expansion"`
	Confirmation    bool     `yaml:"confirmation,omitempty"`
	EscapeHatch     bool     `yaml:"escape_hatch,omitempty"`
	UseContinuation bool     `yaml:"use_continuation,omitempty"`
	Description     string   `yaml:"description,omitempty"`
}

// Triggers returns the canonical phrase followed by every alias.
func (c Command) Triggers() []string {
	out := make([]string, 0, 1+len(c.Aliases))
	out = append(out, c.Phrase)
	out = append(out, c.Aliases...)
	return out
}

// HasTag reports whether the command carries tag (case-insensitive).
func (c Command) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Modifier is a phrase that appends text to whatever command it accompanies.
type Modifier struct {
	Phrase string `yaml:"phrase"`
	Effect string `yaml:"effect"`
	Append string `yaml:"append,omitempty"`
}

// ParserOverrides lets a grimoire file tune matching for its own phrases.
type ParserOverrides struct {
	Threshold        float64  `yaml:"threshold,omitempty"`
	Scorer           string   `yaml:"scorer,omitempty"`
	StripFillerWords []string `yaml:"strip_filler_words,omitempty"`
}

// Grimoire is an immutable registry snapshot.
type Grimoire struct {
	Commands  []Command       `yaml:"commands"`
	Modifiers []Modifier      `yaml:"modifiers,omitempty"`
	Parser    ParserOverrides `yaml:"parser,omitempty"`
}

// EscapeHatches returns escape-hatch commands in registry order.
func (g *Grimoire) EscapeHatches() []Command {
	if g == nil {
		return nil
	}
	var out []Command
	for _, cmd := range g.Commands {
		if cmd.EscapeHatch {
			out = append(out, cmd)
		}
	}
	return out
}

// Lookup finds a command by canonical phrase or alias.
func (g *Grimoire) Lookup(phrase string) (Command, bool) {
	if g == nil {
		return Command{}, false
	}
	want := strings.TrimSpace(phrase)
	for _, cmd := range g.Commands {
		for _, trigger := range cmd.Triggers() {
			if strings.EqualFold(trigger, want) {
				return cmd, true
			}
		}
	}
	return Command{}, false
}

// ModifierPhrases lists every modifier phrase in registry order.
func (g *Grimoire) ModifierPhrases() []string {
	if g == nil {
		return nil
	}
	out := make([]string, 0, len(g.Modifiers))
	for _, mod := range g.Modifiers {
		out = append(out, mod.Phrase)
	}
	return out
}
