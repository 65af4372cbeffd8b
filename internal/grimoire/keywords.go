package grimoire

import (
	"slices"
	"strings"
	"unicode"
)

// MaxKeywords bounds the vocabulary handed to speech recognizers.
const MaxKeywords = 20

var keywordStopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "in": {}, "on": {}, "at": {},
	"to": {}, "for": {}, "of": {}, "and": {}, "or": {},
}

// Keywords returns the distinctive words of every command phrase, lowercased,
// sorted and deduplicated, capped at limit. Short words and stopwords are left
// out. A non-positive limit means MaxKeywords.
func (g *Grimoire) Keywords(limit int) []string {
	if g == nil {
		return nil
	}
	if limit <= 0 {
		limit = MaxKeywords
	}
	seen := make(map[string]struct{})
	for _, cmd := range g.Commands {
		for _, word := range strings.Fields(strings.ToLower(cmd.Phrase)) {
			word = strings.TrimFunc(word, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
			if len([]rune(word)) <= 2 {
				continue
			}
			if _, stop := keywordStopwords[word]; stop {
				continue
			}
			seen[word] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for word := range seen {
		out = append(out, word)
	}
	slices.Sort(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
