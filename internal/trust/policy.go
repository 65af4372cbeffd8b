package trust

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rbright/suzerain/internal/config"
)

// Restriction caps the level while the local clock is inside Window.
type Restriction struct {
	Window config.Window
	Max    Level
}

type policyState struct {
	base         Level
	restrictions []Restriction
}

// Policy holds the configured trust level. Updates swap the whole state so readers
// never observe a half-applied change.
type Policy struct {
	state atomic.Pointer[policyState]
	now   func() time.Time
}

// NewPolicy creates a policy at base with optional restrictions.
func NewPolicy(base Level, restrictions ...Restriction) (*Policy, error) {
	p := &Policy{now: time.Now}
	if err := p.Set(base, restrictions...); err != nil {
		return nil, err
	}
	return p, nil
}

// PolicyFromConfig builds a policy from the trust config section.
func PolicyFromConfig(cfg config.TrustConfig) (*Policy, error) {
	base, restrictions, err := fromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return NewPolicy(base, restrictions...)
}

// Apply swaps in a reloaded trust config section.
func (p *Policy) Apply(cfg config.TrustConfig) error {
	base, restrictions, err := fromConfig(cfg)
	if err != nil {
		return err
	}
	return p.Set(base, restrictions...)
}

// Set replaces the base level and restrictions.
func (p *Policy) Set(base Level, restrictions ...Restriction) error {
	if !base.Valid() {
		return fmt.Errorf("trust level %d out of range 1-5", int(base))
	}
	for _, r := range restrictions {
		if !r.Max.Valid() {
			return fmt.Errorf("restriction max level %d out of range 1-5", int(r.Max))
		}
	}
	p.state.Store(&policyState{
		base:         base,
		restrictions: append([]Restriction(nil), restrictions...),
	})
	return nil
}

// Base returns the configured level before time restrictions.
func (p *Policy) Base() Level {
	return p.state.Load().base
}

// Effective returns the level in force right now.
func (p *Policy) Effective() Level {
	return p.EffectiveAt(p.now())
}

// Levels returns the base and effective level from one policy generation.
func (p *Policy) Levels() (base, effective Level) {
	st := p.state.Load()
	return st.base, st.effectiveAt(p.now())
}

// EffectiveAt returns the level in force at t: the base level, lowered by the first
// restriction whose window contains t.
func (p *Policy) EffectiveAt(t time.Time) Level {
	return p.state.Load().effectiveAt(t)
}

func (st *policyState) effectiveAt(t time.Time) Level {
	minute := t.Hour()*60 + t.Minute()
	for _, r := range st.restrictions {
		if r.Window.Contains(minute) && st.base > r.Max {
			return r.Max
		}
	}
	return st.base
}

func fromConfig(cfg config.TrustConfig) (Level, []Restriction, error) {
	restrictions := make([]Restriction, 0, len(cfg.Restrictions))
	for i, rc := range cfg.Restrictions {
		w, err := config.ParseWindow(rc.Window)
		if err != nil {
			return 0, nil, fmt.Errorf("trust.restrictions[%d]: %w", i, err)
		}
		restrictions = append(restrictions, Restriction{Window: w, Max: Level(rc.MaxLevel)})
	}
	return Level(cfg.Level), restrictions, nil
}
