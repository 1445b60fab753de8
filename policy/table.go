package policy

import (
	"sort"

	"github.com/kbukum/reconflow/dag"
	"github.com/kbukum/reconflow/profile"
)

// Table maps (category, tier) to policies. It is built once and never
// mutated, so it is shared across goroutines without locking. Accessors
// return copies.
type Table struct {
	version  string
	source   string
	policies map[string]map[profile.RiskTier]*Policy
	fallback *Policy
}

// Lookup returns the policy for (category, tier). The search order is the
// exact entry, then (DEFAULT, tier), then the built-in fallback. It never
// fails.
func (t *Table) Lookup(category string, tier profile.RiskTier) (*Policy, Source) {
	if byTier, ok := t.policies[category]; ok {
		if p, ok := byTier[tier]; ok {
			return p.Clone(), SourceExact
		}
	}
	if byTier, ok := t.policies[DefaultCategory]; ok {
		if p, ok := byTier[tier]; ok {
			return p.Clone(), SourceDefaultCategory
		}
	}
	return t.fallback.Clone(), SourceBuiltin
}

// Version is the document's version string.
func (t *Table) Version() string { return t.version }

// Source names where the table was loaded from.
func (t *Table) Source() string { return t.source }

// Fallback returns a copy of the built-in fallback policy.
func (t *Table) Fallback() *Policy { return t.fallback.Clone() }

// Len counts the (category, tier) entries.
func (t *Table) Len() int {
	n := 0
	for _, byTier := range t.policies {
		n += len(byTier)
	}
	return n
}

// Categories lists categories with at least one entry, sorted.
func (t *Table) Categories() []string {
	out := make([]string, 0, len(t.policies))
	for c := range t.policies {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Tiers lists the tiers defined for category, lowest first.
func (t *Table) Tiers(category string) []profile.RiskTier {
	byTier := t.policies[category]
	out := make([]profile.RiskTier, 0, len(byTier))
	for _, tier := range profile.Tiers {
		if _, ok := byTier[tier]; ok {
			out = append(out, tier)
		}
	}
	return out
}

// Entries returns copies of every policy ordered by category then tier.
func (t *Table) Entries() []*Policy {
	out := make([]*Policy, 0, t.Len())
	for _, c := range t.Categories() {
		for _, tier := range t.Tiers(c) {
			out = append(out, t.policies[c][tier].Clone())
		}
	}
	return out
}

// Info summarizes the table for listings.
type Info struct {
	Version    string              `json:"version"`
	Source     string              `json:"source"`
	Count      int                 `json:"count"`
	Categories map[string][]string `json:"categories"`
	Fallback   *Policy             `json:"fallback"`
	Conditions []string            `json:"conditions,omitempty"`
}

// Info describes the table. conds, when set, lists the registered condition names.
func (t *Table) Info(conds *dag.Conditions) Info {
	info := Info{
		Version:    t.version,
		Source:     t.source,
		Count:      t.Len(),
		Categories: make(map[string][]string, len(t.policies)),
		Fallback:   t.Fallback(),
	}
	for _, c := range t.Categories() {
		for _, tier := range t.Tiers(c) {
			info.Categories[c] = append(info.Categories[c], string(tier))
		}
	}
	if conds != nil {
		info.Conditions = conds.Names()
	}
	return info
}
