package transcribe

import (
	"slices"
	"sync/atomic"
)

// keywordBoost is the Deepgram intensifier applied to every vocabulary word.
const keywordBoost = "2"

// Vocabulary holds words the recognizer should favor. It is safe to update while
// requests are in flight; each request reads the current list once. A nil
// Vocabulary is empty.
type Vocabulary struct {
	words atomic.Pointer[[]string]
}

// NewVocabulary returns a vocabulary holding words.
func NewVocabulary(words []string) *Vocabulary {
	v := &Vocabulary{}
	v.Set(words)
	return v
}

// Set replaces the word list.
func (v *Vocabulary) Set(words []string) {
	cp := slices.Clone(words)
	v.words.Store(&cp)
}

// Words returns the current word list.
func (v *Vocabulary) Words() []string {
	if v == nil {
		return nil
	}
	if p := v.words.Load(); p != nil {
		return *p
	}
	return nil
}
