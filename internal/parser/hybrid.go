package parser

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rbright/suzerain/internal/fuzzy"
	"github.com/rbright/suzerain/internal/grimoire"
	"github.com/rbright/suzerain/internal/semantic"
)

// Semantic is the optional last-resort matcher.
type Semantic interface {
	Match(ctx context.Context, text string) (semantic.Hit, bool, error)
}

// Options tunes the dispatcher. Zero values take the package defaults; grimoire
// parser overrides apply on top of configured values.
type Options struct {
	Threshold       float64
	EscapeThreshold float64
	TieBand         float64
	TopN            int
	Scorer          string
	// ScorerFunc replaces the named scorer, including any grimoire override.
	ScorerFunc  fuzzy.Scorer
	FillerWords []string
	// EscapeMaxTokens applies the isolated-utterance rule to the primary escape stage.
	// Zero leaves it off.
	EscapeMaxTokens int
}

func (o Options) withDefaults() Options {
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	if o.EscapeThreshold <= 0 {
		o.EscapeThreshold = DefaultEscapeThreshold
	}
	if o.TieBand <= 0 {
		o.TieBand = DefaultTieBand
	}
	if o.TopN <= 0 {
		o.TopN = DefaultTopN
	}
	return o
}

// compiled is everything derived from one registry generation.
type compiled struct {
	version    uint64
	grimoire   *grimoire.Grimoire
	normalizer *Normalizer
	fuzzy      *FuzzyMatcher
	hatches    []grimoire.Command
}

// Dispatcher runs Escape, then Fuzzy, then Semantic and reports the first acceptable hit.
type Dispatcher struct {
	store    *grimoire.Store
	opts     Options
	semantic Semantic
	logger   *slog.Logger

	compileMu sync.Mutex
	current   atomic.Pointer[compiled]
}

// NewDispatcher creates a dispatcher over store. A nil sem disables the semantic stage.
func NewDispatcher(store *grimoire.Store, opts Options, sem Semantic, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{
		store:    store,
		opts:     opts.withDefaults(),
		semantic: sem,
		logger:   logger,
	}
}

// Normalize applies the current generation's normalizer.
func (d *Dispatcher) Normalize(text string) string {
	c := d.compiled()
	if c == nil {
		return collapse(text)
	}
	return c.normalizer.Normalize(text)
}

// Match returns the first acceptable result across all stages.
func (d *Dispatcher) Match(ctx context.Context, text string) (Result, bool) {
	c := d.compiled()
	if c == nil {
		return Result{}, false
	}
	normalized := c.normalizer.Normalize(text)
	if normalized == "" {
		return Result{}, false
	}

	if res, ok := d.escapeStage(c, normalized); ok {
		return res, true
	}
	if top := c.fuzzy.TopN(normalized, 1); len(top) > 0 {
		return d.promoteEscape(top[0]), true
	}
	return d.semanticStage(ctx, normalized)
}

// MatchTopN returns up to n fuzzy candidates, each at or above the threshold, best
// first. When fuzzy finds nothing the semantic hit (if any) is the sole candidate.
func (d *Dispatcher) MatchTopN(ctx context.Context, text string, n int) []Result {
	c := d.compiled()
	if c == nil {
		return nil
	}
	normalized := c.normalizer.Normalize(text)
	if normalized == "" {
		return nil
	}
	if top := c.fuzzy.TopN(normalized, n); len(top) > 0 {
		return top
	}
	if res, ok := d.semanticStage(ctx, normalized); ok {
		return []Result{res}
	}
	return nil
}

// Resolve interprets text. An escape hit or an exact trigger wins outright; otherwise
// the top candidates within the tie band of the best score come back as ambiguous.
func (d *Dispatcher) Resolve(ctx context.Context, text string) Outcome {
	out := Outcome{Kind: OutcomeNoMatch, Input: text}
	c := d.compiled()
	if c == nil {
		return out
	}
	out.Normalized = c.normalizer.Normalize(text)
	if out.Normalized == "" {
		return out
	}

	if res, ok := d.escapeStage(c, out.Normalized); ok {
		out.Kind, out.Match = OutcomeMatched, res
		return out
	}

	top := c.fuzzy.TopN(out.Normalized, d.opts.TopN)
	if len(top) == 0 {
		if res, ok := d.semanticStage(ctx, out.Normalized); ok {
			out.Kind, out.Match = OutcomeMatched, res
		}
		return out
	}

	if best := d.promoteEscape(top[0]); best.Method == MethodEscape {
		out.Kind, out.Match = OutcomeMatched, best
		return out
	}

	band := WithinBand(top, d.opts.TieBand)
	if len(band) > 1 && !top[0].Exact {
		out.Kind, out.Candidates = OutcomeAmbiguous, band
		return out
	}
	out.Kind, out.Match = OutcomeMatched, top[0]
	return out
}

// Extract returns the modifiers present in the original text.
func (d *Dispatcher) Extract(text string) []grimoire.Modifier {
	c := d.compiled()
	if c == nil {
		return nil
	}
	return ExtractModifiers(text, c.grimoire.Modifiers)
}

// WithinBand returns the leading results whose score is within band of the first.
// results must already be sorted best first.
func WithinBand(results []Result, band float64) []Result {
	if len(results) == 0 {
		return nil
	}
	top := results[0].Score
	out := []Result{results[0]}
	for _, r := range results[1:] {
		if top-r.Score > band {
			break
		}
		out = append(out, r)
	}
	return out
}

func (d *Dispatcher) escapeStage(c *compiled, normalized string) (Result, bool) {
	if len(c.hatches) == 0 {
		return Result{}, false
	}
	escape := EscapeMatcher{MaxTokens: d.opts.EscapeMaxTokens}
	return escape.Match(normalized, c.hatches)
}

// promoteEscape relabels a near-exact fuzzy hit on an escape hatch so it takes the
// escape path.
func (d *Dispatcher) promoteEscape(res Result) Result {
	if res.Command.EscapeHatch && res.Score >= d.opts.EscapeThreshold {
		res.Method = MethodEscape
	}
	return res
}

func (d *Dispatcher) semanticStage(ctx context.Context, normalized string) (Result, bool) {
	if d.semantic == nil {
		return Result{}, false
	}
	hit, ok, err := d.semantic.Match(ctx, normalized)
	if err != nil {
		d.logger.Warn("semantic match failed", "error", err.Error())
		return Result{}, false
	}
	if !ok {
		return Result{}, false
	}
	return Result{
		Command: hit.Command,
		Score:   hit.Score,
		Method:  MethodSemantic,
		Trigger: hit.Trigger,
	}, true
}

// compiled returns matchers for the store's current generation, rebuilding once
// per reload.
func (d *Dispatcher) compiled() *compiled {
	snap := d.store.Snapshot()
	if snap == nil || snap.Grimoire == nil {
		return nil
	}
	if c := d.current.Load(); c != nil && c.version == snap.Version {
		return c
	}

	d.compileMu.Lock()
	defer d.compileMu.Unlock()
	if c := d.current.Load(); c != nil && c.version == snap.Version {
		return c
	}

	g := snap.Grimoire
	opts := d.opts
	if g.Parser.Threshold > 0 {
		opts.Threshold = g.Parser.Threshold
	}
	scorerName := opts.Scorer
	if g.Parser.Scorer != "" {
		scorerName = g.Parser.Scorer
	}
	scorer, err := fuzzy.Lookup(scorerName)
	if err != nil {
		d.logger.Warn("unknown scorer, using token_set_ratio", "scorer", scorerName)
		scorer = fuzzy.TokenSetRatio
	}
	if opts.ScorerFunc != nil {
		scorer = opts.ScorerFunc
	}
	fillers := append(append([]string(nil), opts.FillerWords...), g.Parser.StripFillerWords...)

	c := &compiled{
		version:    snap.Version,
		grimoire:   g,
		normalizer: NewNormalizer(fillers, g.ModifierPhrases()),
		fuzzy:      NewFuzzyMatcher(g, scorer, opts.Threshold),
		hatches:    g.EscapeHatches(),
	}
	d.current.Store(c)
	return c
}
