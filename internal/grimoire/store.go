package grimoire

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ErrNotLoaded is returned when a store has never held a grimoire.
var ErrNotLoaded = errors.New("grimoire not loaded")

// Snapshot is one loaded registry generation.
type Snapshot struct {
	Grimoire *Grimoire
	Version  uint64
	Source   string
	LoadedAt time.Time
}

// Store publishes registry snapshots. Readers always see a complete generation;
// a reload builds a new Grimoire and swaps the pointer.
type Store struct {
	current atomic.Pointer[Snapshot]
	version atomic.Uint64

	mu        sync.Mutex
	listeners []func(*Snapshot)
}

// NewStore creates a store holding g as version 1.
func NewStore(g *Grimoire, source string) *Store {
	s := &Store{}
	s.publish(g, source)
	return s
}

// Snapshot returns the current generation, or nil before the first publish.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Grimoire returns the current registry.
func (s *Store) Grimoire() (*Grimoire, error) {
	snap := s.current.Load()
	if snap == nil || snap.Grimoire == nil {
		return nil, ErrNotLoaded
	}
	return snap.Grimoire, nil
}

// Subscribe registers fn to run after every successful swap.
func (s *Store) Subscribe(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Replace swaps in g as a new generation and notifies subscribers.
func (s *Store) Replace(g *Grimoire, source string) *Snapshot {
	snap := s.publish(g, source)

	s.mu.Lock()
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
	return snap
}

// ReloadFile loads path, validates it, and swaps it in. On any error-severity issue the
// previous generation stays current.
func (s *Store) ReloadFile(path string) (*Snapshot, []Issue, error) {
	g, err := Load(path)
	if err != nil {
		return s.Snapshot(), nil, err
	}
	issues := Validate(g)
	if HasErrors(issues) {
		return s.Snapshot(), issues, fmt.Errorf("grimoire %q is invalid: %s", path, firstError(issues))
	}
	return s.Replace(g, path), issues, nil
}

func (s *Store) publish(g *Grimoire, source string) *Snapshot {
	snap := &Snapshot{
		Grimoire: g,
		Version:  s.version.Add(1),
		Source:   strings.TrimSpace(source),
		LoadedAt: time.Now(),
	}
	s.current.Store(snap)
	return snap
}

func firstError(issues []Issue) string {
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			return issue.Message
		}
	}
	return ""
}
