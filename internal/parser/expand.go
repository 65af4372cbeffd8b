package parser

import (
	"strings"

	"github.com/rbright/suzerain/internal/grimoire"
)

// Expand joins the command's expansion with each modifier's appended text,
// separated by blank lines.
func Expand(cmd grimoire.Command, modifiers []grimoire.Modifier) string {
	parts := []string{cmd.Expansion}
	for _, mod := range modifiers {
		if mod.Append != "" {
			parts = append(parts, mod.Append)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}
