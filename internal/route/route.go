// Package route assigns a grimoire command to an assistant profile and a risk tier
// based on its tags.
package route

import (
	"strings"

	"github.com/rbright/suzerain/internal/grimoire"
)

// Category names the assistant profile a command runs under.
type Category string

const (
	CategoryTestRunner Category = "test-runner"
	CategoryDeployer   Category = "deployer"
	CategoryResearcher Category = "researcher"
	CategoryGeneral    Category = "general"
)

// Tier is the risk classification of a command.
type Tier string

const (
	TierSafe      Tier = "safe"
	TierTrusted   Tier = "trusted"
	TierDangerous Tier = "dangerous"
)

// Predicate inspects a command.
type Predicate func(cmd grimoire.Command) bool

// CategoryRule maps a predicate to a category. Rules are evaluated in order.
type CategoryRule struct {
	Category Category
	Match    Predicate
}

// TierRule maps a predicate to a tier. Rules are evaluated in order.
type TierRule struct {
	Tier  Tier
	Match Predicate
}

// AnyTag matches commands carrying at least one of tags.
func AnyTag(tags ...string) Predicate {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[strings.ToLower(t)] = struct{}{}
	}
	return func(cmd grimoire.Command) bool {
		for _, t := range cmd.Tags {
			if _, ok := set[strings.ToLower(strings.TrimSpace(t))]; ok {
				return true
			}
		}
		return false
	}
}

// RequiresConfirmation matches commands flagged for confirmation.
func RequiresConfirmation(cmd grimoire.Command) bool { return cmd.Confirmation }

// Either matches when any of ps matches.
func Either(ps ...Predicate) Predicate {
	return func(cmd grimoire.Command) bool {
		for _, p := range ps {
			if p(cmd) {
				return true
			}
		}
		return false
	}
}

// DefaultCategoryRules is the stock routing table. Testing wins over deployment,
// deployment over research.
func DefaultCategoryRules() []CategoryRule {
	return []CategoryRule{
		{Category: CategoryTestRunner, Match: AnyTag("testing", "audit", "quality", "lint", "types", "security")},
		{Category: CategoryDeployer, Match: AnyTag("deploy", "production", "staging", "git", "commit", "push", "ci", "devops", "docker")},
		{Category: CategoryResearcher, Match: AnyTag("research", "survey", "explain", "architecture", "debug", "status")},
	}
}

// DefaultTierRules is the stock risk table.
func DefaultTierRules() []TierRule {
	return []TierRule{
		{Tier: TierDangerous, Match: Either(RequiresConfirmation, AnyTag("production", "critical", "destructive", "push"))},
		{Tier: TierTrusted, Match: AnyTag("commit", "deploy", "staging", "refactor", "cleanup")},
	}
}

// Decision is the routing outcome for one command.
type Decision struct {
	Category Category
	Tier     Tier
	Profile  Profile
}

// Dangerous reports whether the command must be treated as destructive.
func (d Decision) Dangerous() bool { return d.Tier == TierDangerous }

// Router evaluates ordered rule tables.
type Router struct {
	categories []CategoryRule
	tiers      []TierRule
	profiles   map[Category]Profile
}

// New returns a router with the stock rules and profiles.
func New() *Router {
	return &Router{
		categories: DefaultCategoryRules(),
		tiers:      DefaultTierRules(),
		profiles:   DefaultProfiles(),
	}
}

// NewWithRules returns a router over custom tables. Missing profiles fall back to general.
func NewWithRules(categories []CategoryRule, tiers []TierRule, profiles map[Category]Profile) *Router {
	if profiles == nil {
		profiles = DefaultProfiles()
	}
	return &Router{categories: categories, tiers: tiers, profiles: profiles}
}

// Category returns the first matching category, or general.
func (r *Router) Category(cmd grimoire.Command) Category {
	for _, rule := range r.categories {
		if rule.Match(cmd) {
			return rule.Category
		}
	}
	return CategoryGeneral
}

// Tier returns the first matching tier, or safe.
func (r *Router) Tier(cmd grimoire.Command) Tier {
	for _, rule := range r.tiers {
		if rule.Match(cmd) {
			return rule.Tier
		}
	}
	return TierSafe
}

// Route classifies cmd.
func (r *Router) Route(cmd grimoire.Command) Decision {
	category := r.Category(cmd)
	profile, ok := r.profiles[category]
	if !ok {
		profile = r.profiles[CategoryGeneral]
	}
	return Decision{
		Category: category,
		Tier:     r.Tier(cmd),
		Profile:  profile,
	}
}
