package grimoire

import (
	"fmt"
	"strings"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one grimoire validation finding.
type Issue struct {
	Severity Severity
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Severity, i.Message)
}

// HasErrors reports whether any issue is error severity.
func HasErrors(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate checks structural integrity: every command has a unique phrase and an
// expansion, every modifier has a unique phrase and an effect.
func Validate(g *Grimoire) []Issue {
	if g == nil {
		return []Issue{{Severity: SeverityError, Message: "grimoire is empty"}}
	}

	var issues []Issue
	add := func(sev Severity, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Message: fmt.Sprintf(format, args...)})
	}

	if len(g.Commands) == 0 {
		add(SeverityWarning, "no commands defined")
	}

	phrases := make(map[string]int, len(g.Commands))
	for i, cmd := range g.Commands {
		if cmd.Phrase == "" {
			add(SeverityError, "command %d: missing phrase", i+1)
			continue
		}
		key := strings.ToLower(cmd.Phrase)
		if first, ok := phrases[key]; ok {
			add(SeverityError, "command %d: duplicate phrase %q (first defined by command %d)", i+1, cmd.Phrase, first)
		} else {
			phrases[key] = i + 1
		}
		if cmd.Expansion == "" {
			add(SeverityError, "command %q: missing expansion", cmd.Phrase)
		}
	}

	triggers := make(map[string]string, len(phrases))
	for _, cmd := range g.Commands {
		if cmd.Phrase != "" {
			triggers[strings.ToLower(cmd.Phrase)] = cmd.Phrase
		}
	}
	for _, cmd := range g.Commands {
		for _, alias := range cmd.Aliases {
			key := strings.ToLower(alias)
			if owner, ok := triggers[key]; ok && owner != cmd.Phrase {
				add(SeverityWarning, "command %q: alias %q collides with %q", cmd.Phrase, alias, owner)
				continue
			}
			triggers[key] = cmd.Phrase
		}
	}

	modPhrases := make(map[string]struct{}, len(g.Modifiers))
	for i, mod := range g.Modifiers {
		if mod.Phrase == "" {
			add(SeverityError, "modifier %d: missing phrase", i+1)
			continue
		}
		if mod.Effect == "" {
			add(SeverityError, "modifier %q: missing effect", mod.Phrase)
		}
		key := strings.ToLower(mod.Phrase)
		if _, ok := modPhrases[key]; ok {
			add(SeverityError, "modifier %q: duplicate phrase", mod.Phrase)
		}
		modPhrases[key] = struct{}{}
	}

	if g.Parser.Threshold < 0 || g.Parser.Threshold > 100 {
		add(SeverityError, "parser.threshold must be between 0 and 100")
	}

	return issues
}
