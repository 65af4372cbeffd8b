// Package semantic matches input to grimoire phrases by embedding cosine similarity.
package semantic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbright/suzerain/internal/grimoire"
)

// Embedder computes vectors for text. Implementations must be deterministic per input.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}

// Mode selects which triggers are embedded.
type Mode string

const (
	// ModeCipher embeds canonical phrases only, so topically similar plain requests
	// do not pull in a themed command.
	ModeCipher Mode = "cipher"
	// ModeGeneral embeds phrases and aliases as a broad fallback.
	ModeGeneral Mode = "general"
)

const (
	DefaultCipherThreshold  = 0.65
	DefaultGeneralThreshold = 0.50
)

// DefaultThreshold returns the cosine threshold for mode.
func DefaultThreshold(mode Mode) float64 {
	if mode == ModeGeneral {
		return DefaultGeneralThreshold
	}
	return DefaultCipherThreshold
}

// ErrNoEmbedder is returned by a matcher constructed without a provider.
var ErrNoEmbedder = errors.New("semantic matching has no embedding provider")

// Hit is the best-scoring trigger. Score is Similarity scaled to 0-100.
type Hit struct {
	Command    grimoire.Command
	Trigger    string
	Similarity float64
	Score      float64
}

type entry struct {
	trigger string
	command grimoire.Command
	vector  []float32
	norm    float64
}

type index struct {
	version uint64
	entries []entry
}

// Options configures a Matcher. Zero Threshold selects the mode default.
type Options struct {
	Mode      Mode
	Threshold float64
}

// Matcher owns one embedding index per registry generation. Queries against a newer
// generation rebuild the index first and swap it in whole.
type Matcher struct {
	store     *grimoire.Store
	embedder  Embedder
	mode      Mode
	threshold float64
	logger    *slog.Logger

	buildMu sync.Mutex
	current atomic.Pointer[index]
}

// NewMatcher creates a lazily initialized matcher.
func NewMatcher(store *grimoire.Store, embedder Embedder, opts Options, logger *slog.Logger) *Matcher {
	mode := opts.Mode
	if mode != ModeGeneral {
		mode = ModeCipher
	}
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold(mode)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Matcher{
		store:     store,
		embedder:  embedder,
		mode:      mode,
		threshold: threshold,
		logger:    logger,
	}
}

// Mode reports the configured mode.
func (m *Matcher) Mode() Mode { return m.mode }

// Threshold reports the cosine threshold.
func (m *Matcher) Threshold() float64 { return m.threshold }

// Initialize builds the index for the current registry if it is missing or stale.
// Safe to call concurrently; at most one build runs at a time.
func (m *Matcher) Initialize(ctx context.Context) error {
	_, err := m.ensure(ctx)
	return err
}

// Match embeds text and returns the most similar trigger above the threshold.
func (m *Matcher) Match(ctx context.Context, text string) (Hit, bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Hit{}, false, nil
	}
	idx, err := m.ensure(ctx)
	if err != nil {
		return Hit{}, false, err
	}
	if len(idx.entries) == 0 {
		return Hit{}, false, nil
	}

	vec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return Hit{}, false, fmt.Errorf("embed input: %w", err)
	}
	qnorm := norm(vec)

	best := -1
	bestSim := math.Inf(-1)
	for i, e := range idx.entries {
		sim := cosine(vec, qnorm, e.vector, e.norm)
		if sim > bestSim {
			best, bestSim = i, sim
		}
	}
	if best < 0 || bestSim < m.threshold {
		return Hit{}, false, nil
	}

	e := idx.entries[best]
	return Hit{
		Command:    e.command,
		Trigger:    e.trigger,
		Similarity: bestSim,
		Score:      math.Round(bestSim * 100),
	}, true, nil
}

func (m *Matcher) ensure(ctx context.Context) (*index, error) {
	if m.embedder == nil {
		return nil, ErrNoEmbedder
	}
	snap := m.store.Snapshot()
	if snap == nil || snap.Grimoire == nil {
		return nil, grimoire.ErrNotLoaded
	}
	if idx := m.current.Load(); idx != nil && idx.version == snap.Version {
		return idx, nil
	}

	m.buildMu.Lock()
	defer m.buildMu.Unlock()

	snap = m.store.Snapshot()
	if idx := m.current.Load(); idx != nil && idx.version == snap.Version {
		return idx, nil
	}

	idx, err := m.build(ctx, snap)
	if err != nil {
		return nil, err
	}
	m.current.Store(idx)
	return idx, nil
}

func (m *Matcher) build(ctx context.Context, snap *grimoire.Snapshot) (*index, error) {
	started := time.Now()

	var triggers []string
	var owners []grimoire.Command
	for _, cmd := range snap.Grimoire.Commands {
		texts := []string{cmd.Phrase}
		if m.mode == ModeGeneral {
			texts = cmd.Triggers()
		}
		for _, t := range texts {
			if t = strings.TrimSpace(t); t != "" {
				triggers = append(triggers, strings.ToLower(t))
				owners = append(owners, cmd)
			}
		}
	}

	idx := &index{version: snap.Version}
	if len(triggers) == 0 {
		return idx, nil
	}

	vectors, err := m.embedder.EmbedBatch(ctx, triggers)
	if err != nil {
		return nil, fmt.Errorf("embed grimoire phrases: %w", err)
	}
	if len(vectors) != len(triggers) {
		return nil, fmt.Errorf("embedder %s returned %d vectors for %d phrases", m.embedder.Name(), len(vectors), len(triggers))
	}

	idx.entries = make([]entry, len(triggers))
	for i := range triggers {
		idx.entries[i] = entry{
			trigger: triggers[i],
			command: owners[i],
			vector:  vectors[i],
			norm:    norm(vectors[i]),
		}
	}

	m.logger.Debug("semantic index built",
		"embedder", m.embedder.Name(),
		"mode", string(m.mode),
		"version", snap.Version,
		"entries", len(idx.entries),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return idx, nil
}

// Cosine returns the cosine similarity of a and b, 0 when either is empty or zero.
func Cosine(a, b []float32) float64 {
	return cosine(a, norm(a), b, norm(b))
}

func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if len(a) == 0 || len(a) != len(b) || an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (an * bn)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
