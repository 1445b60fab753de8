package profile

import (
	"fmt"
	"slices"
	"strings"
)

// Entity keys read from WorkItem.Entities.
const (
	EntityInstrument   = "instrument"
	EntityAccount      = "account"
	EntityCounterparty = "counterparty"
	EntityTradeID      = "trade_id"
)

// WorkItem is one reconciliation break: two records that should agree but
// do not, plus free-form entity references.
type WorkItem struct {
	ID          string            `json:"break_id" validate:"required"`
	Category    string            `json:"break_type" validate:"required"`
	Description string            `json:"description,omitempty"`
	SystemA     *Side             `json:"system_a" validate:"required"`
	SystemB     *Side             `json:"system_b" validate:"required"`
	Entities    map[string]string `json:"entities,omitempty"`
}

// Side is one system's view of the disputed record.
type Side struct {
	Source    string  `json:"source,omitempty"`
	Amount    float64 `json:"amount" validate:"finite"`
	Quantity  float64 `json:"quantity,omitempty" validate:"finite"`
	Price     float64 `json:"price,omitempty" validate:"finite"`
	Currency  string  `json:"currency,omitempty"`
	TradeDate string  `json:"trade_date,omitempty"`
	Reference string  `json:"reference,omitempty"`
}

// Entity returns the named entity reference or "".
func (w *WorkItem) Entity(key string) string {
	if w == nil || w.Entities == nil {
		return ""
	}
	return w.Entities[key]
}

// RiskTier orders work items by how much scrutiny they need.
type RiskTier string

const (
	TierLow      RiskTier = "LOW"
	TierMedium   RiskTier = "MEDIUM"
	TierHigh     RiskTier = "HIGH"
	TierCritical RiskTier = "CRITICAL"
)

// Tiers lists every tier from lowest to highest.
var Tiers = []RiskTier{TierLow, TierMedium, TierHigh, TierCritical}

// ParseRiskTier accepts a tier name in any case.
func ParseRiskTier(s string) (RiskTier, error) {
	t := RiskTier(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown risk tier %q", s)
	}
	return t, nil
}

// Valid reports whether t is one of the four tiers.
func (t RiskTier) Valid() bool {
	return slices.Contains(Tiers, t)
}

// Rank is 0 for LOW up to 3 for CRITICAL, -1 when invalid.
func (t RiskTier) Rank() int {
	return slices.Index(Tiers, t)
}

// UnmarshalText rejects unknown tier names.
func (t *RiskTier) UnmarshalText(b []byte) error {
	parsed, err := ParseRiskTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Materiality grades the financial size of a break.
type Materiality string

const (
	MaterialityLow    Materiality = "LOW"
	MaterialityMedium Materiality = "MEDIUM"
	MaterialityHigh   Materiality = "HIGH"
)

// Urgency grades how soon a break must be worked.
type Urgency string

const (
	UrgencyNormal   Urgency = "NORMAL"
	UrgencyHigh     Urgency = "HIGH"
	UrgencyCritical Urgency = "CRITICAL"
)

// Flag names a routing hint derived during classification.
type Flag string

const (
	// FlagRequiresCorrelation gates the matching/correlation task.
	FlagRequiresCorrelation Flag = "requires_correlation"
	// FlagRequiresDeepCause gates the pattern/root-cause task.
	FlagRequiresDeepCause Flag = "requires_deep_cause"
	// FlagRequiresCompliance marks items that need a compliance review.
	FlagRequiresCompliance Flag = "requires_compliance"
)

// Flags is the set of routing flags. A missing key is false.
type Flags map[Flag]bool

// Has reports whether f is set.
func (f Flags) Has(flag Flag) bool {
	return f[flag]
}

// Names returns the set flags in sorted order.
func (f Flags) Names() []string {
	out := make([]string, 0, len(f))
	for k, v := range f {
		if v {
			out = append(out, string(k))
		}
	}
	slices.Sort(out)
	return out
}

// Profile is the routing view of a work item. It is built once by the
// Classifier and never mutated.
type Profile struct {
	ID            string      `json:"id"`
	Category      string      `json:"category"`
	Magnitude     float64     `json:"magnitude"`
	RiskTier      RiskTier    `json:"risk_tier"`
	AssetClass    string      `json:"asset_class"`
	SourceSystems []string    `json:"source_systems,omitempty"`
	Materiality   Materiality `json:"materiality"`
	Urgency       Urgency     `json:"urgency"`
	Flags         Flags       `json:"routing_flags"`
	Reasons       []string    `json:"reasons,omitempty"`
}

// RoutingKey fingerprints everything that shapes a plan: category, tier and
// set flags. Equal keys compile to structurally equal plans.
func (p Profile) RoutingKey() string {
	return fmt.Sprintf("%s|%s|%s", p.Category, p.RiskTier, strings.Join(p.Flags.Names(), ","))
}
