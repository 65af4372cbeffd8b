package parser

import (
	"sort"
	"strings"

	"github.com/rbright/suzerain/internal/fuzzy"
	"github.com/rbright/suzerain/internal/grimoire"
)

type candidate struct {
	text    string
	trigger string
	command int
}

// FuzzyMatcher scores input against every phrase and alias of one grimoire snapshot.
type FuzzyMatcher struct {
	scorer     fuzzy.Scorer
	threshold  float64
	commands   []grimoire.Command
	candidates []candidate
}

// NewFuzzyMatcher indexes g. A nil scorer selects token_set_ratio.
func NewFuzzyMatcher(g *grimoire.Grimoire, scorer fuzzy.Scorer, threshold float64) *FuzzyMatcher {
	if scorer == nil {
		scorer = fuzzy.TokenSetRatio
	}
	m := &FuzzyMatcher{scorer: scorer, threshold: threshold}
	if g == nil {
		return m
	}
	m.commands = g.Commands
	for i, cmd := range g.Commands {
		for _, trigger := range cmd.Triggers() {
			text := collapse(strings.ToLower(trigger))
			if text == "" {
				continue
			}
			m.candidates = append(m.candidates, candidate{text: text, trigger: trigger, command: i})
		}
	}
	return m
}

type scored struct {
	Result
	tiebreak float64
	order    int
}

// better orders by score, then plain ratio (so an exact phrase beats a token subset
// that token_set_ratio also scores 100), then registry order.
func (s scored) better(o scored) bool {
	if s.Score != o.Score {
		return s.Score > o.Score
	}
	if s.tiebreak != o.tiebreak {
		return s.tiebreak > o.tiebreak
	}
	return s.order < o.order
}

// perCommand keeps each command's best-scoring trigger, in registry order.
func (m *FuzzyMatcher) perCommand(normalized string) []scored {
	if normalized == "" || len(m.candidates) == 0 {
		return nil
	}
	best := make(map[int]scored, len(m.commands))
	for order, c := range m.candidates {
		s := scored{
			Result: Result{
				Command: m.commands[c.command],
				Score:   m.scorer(normalized, c.text),
				Method:  MethodFuzzy,
				Trigger: c.trigger,
				Exact:   normalized == c.text,
			},
			tiebreak: fuzzy.Ratio(normalized, c.text),
			order:    order,
		}
		if prev, ok := best[c.command]; !ok || s.better(prev) {
			best[c.command] = s
		}
	}

	out := make([]scored, 0, len(best))
	for _, s := range best {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].better(out[j]) })
	return out
}

// TopN returns up to n commands at or above the threshold, best first.
func (m *FuzzyMatcher) TopN(normalized string, n int) []Result {
	if n <= 0 {
		return nil
	}
	var out []Result
	for _, s := range m.perCommand(normalized) {
		if s.Score < m.threshold {
			break
		}
		out = append(out, s.Result)
		if len(out) == n {
			break
		}
	}
	return out
}
