package trust

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoConfirmer is returned when a decision needs confirmation and the gate has no way to ask.
var ErrNoConfirmer = errors.New("trust gate has no confirmer")

// Decision reasons.
const (
	ReasonPreview    = "preview"
	ReasonRestricted = "restricted"
	ReasonDeclined   = "declined"
	ReasonConfirmed  = "confirmed"
	ReasonAuto       = "auto"
)

// Subject is what the gate needs to know about a dispatch.
type Subject struct {
	Phrase      string
	Instruction string
	Destructive bool
}

// Decision is the gate outcome. A declined confirmation is a normal outcome, not an error.
type Decision struct {
	MayExecute bool
	Reason     string
	Level      Level
	// Base is the configured level the decision was made under.
	Base Level
}

// Confirmer asks a synchronous yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

// Confirm calls f.
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// Gate reads the policy at dispatch time and applies the per-level rules.
type Gate struct {
	policy    *Policy
	confirmer Confirmer
}

// NewGate creates a gate. confirmer may be nil when every reachable level auto-approves
// or refuses.
func NewGate(policy *Policy, confirmer Confirmer) *Gate {
	return &Gate{policy: policy, confirmer: confirmer}
}

// Policy exposes the gate's policy.
func (g *Gate) Policy() *Policy { return g.policy }

// Decide returns whether subject may execute. The policy is read once, so a reload
// mid-decision cannot mix levels from two generations.
func (g *Gate) Decide(ctx context.Context, subject Subject) (Decision, error) {
	base, level := g.policy.Levels()
	d := Decision{Level: level, Base: base}

	switch level {
	case LevelPreview:
		d.Reason = ReasonPreview
		if base > LevelPreview {
			d.Reason = ReasonRestricted
		}
		return d, nil
	case LevelExplicit:
		return g.confirm(ctx, subject, d)
	case LevelSupervised:
		if subject.Destructive {
			return g.confirm(ctx, subject, d)
		}
	}
	d.MayExecute, d.Reason = true, ReasonAuto
	return d, nil
}

func (g *Gate) confirm(ctx context.Context, subject Subject, d Decision) (Decision, error) {
	d.Reason = ReasonDeclined
	if g.confirmer == nil {
		return d, ErrNoConfirmer
	}

	prompt := fmt.Sprintf("Execute %q?", subject.Phrase)
	if subject.Destructive {
		prompt = fmt.Sprintf("Execute %q (destructive)?", subject.Phrase)
	}
	ok, err := g.confirmer.Confirm(ctx, prompt)
	if err != nil {
		return d, fmt.Errorf("confirm %q: %w", subject.Phrase, err)
	}
	if !ok {
		return d, nil
	}
	d.MayExecute, d.Reason = true, ReasonConfirmed
	return d, nil
}
