// Package transcript merges recognized speech segments into one utterance.
package transcript

import "strings"

// Assemble joins final segments and a trailing interim segment, dropping
// continuation repeats and collapsing whitespace.
func Assemble(finals []string, interim string) string {
	var segments []string
	for _, s := range finals {
		segments = appendSegment(segments, s)
	}
	segments = appendSegment(segments, interim)
	return strings.Join(segments, " ")
}

// Builder accumulates streaming recognition results. The zero value is ready to use.
type Builder struct {
	segments []string
	interim  string
}

// Add records one result. Final results commit; interim results replace the pending
// tail.
func (b *Builder) Add(text string, final bool) {
	text = clean(text)
	if text == "" {
		return
	}
	if final {
		b.segments = appendSegment(b.segments, text)
		b.interim = ""
		return
	}
	b.interim = text
}

// Final reports whether any segment has been committed.
func (b *Builder) Final() bool { return len(b.segments) > 0 }

// Text returns the assembled utterance including any pending interim tail.
func (b *Builder) Text() string { return Assemble(b.segments, b.interim) }

// Reset clears the builder for the next utterance.
func (b *Builder) Reset() {
	b.segments = nil
	b.interim = ""
}

// appendSegment merges continuation segments so a recognizer that re-sends a growing
// hypothesis does not duplicate text.
func appendSegment(segments []string, text string) []string {
	text = clean(text)
	if text == "" {
		return segments
	}
	if len(segments) == 0 {
		return append(segments, text)
	}

	last := segments[len(segments)-1]
	switch {
	case text == last:
		return segments
	case strings.HasPrefix(text, last):
		segments[len(segments)-1] = text
		return segments
	case strings.HasPrefix(last, text):
		return segments
	default:
		return append(segments, text)
	}
}

func clean(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
