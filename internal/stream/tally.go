package stream

import "sync"

// Tally wraps a Handler and keeps the counters the supervisor reports.
type Tally struct {
	next Handler

	mu        sync.Mutex
	sessionID string
	toolUses  int
	result    string
	errors    int
}

// NewTally wraps next; a nil next discards events.
func NewTally(next Handler) *Tally {
	if next == nil {
		next = Discard
	}
	return &Tally{next: next}
}

// Handle records ev and forwards it.
func (t *Tally) Handle(ev Event) {
	t.mu.Lock()
	if ev.SessionID != "" {
		t.sessionID = ev.SessionID
	}
	switch ev.Kind {
	case KindToolUse:
		t.toolUses++
	case KindResult:
		t.result = ev.Text
	case KindError:
		t.errors++
	}
	t.mu.Unlock()

	t.next.Handle(ev)
}

// SessionID returns the last conversation id seen.
func (t *Tally) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// ToolUses returns the number of tool invocations seen.
func (t *Tally) ToolUses() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.toolUses
}

// Result returns the final result text, if any.
func (t *Tally) Result() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// Errors returns the number of error records seen.
func (t *Tally) Errors() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errors
}
