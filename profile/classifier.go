// Package profile turns raw work items into routing profiles.
//
// Classification is pure: the same WorkItem and Rules always yield the same
// Profile. Each routing flag has its own predicate on Rules so it can be
// tested in isolation.
package profile

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/kbukum/reconflow/errors"
	"github.com/kbukum/reconflow/validation"
)

// Thresholds are the magnitude boundaries between tiers. A magnitude below
// Low is LOW, below Medium is MEDIUM, below High is HIGH, otherwise CRITICAL.
type Thresholds struct {
	Low    float64 `yaml:"low" mapstructure:"low" validate:"gt=0"`
	Medium float64 `yaml:"medium" mapstructure:"medium" validate:"gtfield=Low"`
	High   float64 `yaml:"high" mapstructure:"high" validate:"gtfield=Medium"`
}

// Rules holds every constant the classifier consults.
type Rules struct {
	Thresholds Thresholds `yaml:"thresholds" mapstructure:"thresholds"`
	// DeepCauseMagnitude forces deep-cause analysis above this magnitude.
	DeepCauseMagnitude float64 `yaml:"deep_cause_magnitude" mapstructure:"deep_cause_magnitude" validate:"gte=0"`

	PinnedCategories      []string `yaml:"pinned_categories" mapstructure:"pinned_categories"`
	CorrelationCategories []string `yaml:"correlation_categories" mapstructure:"correlation_categories"`
	DeepCauseCategories   []string `yaml:"deep_cause_categories" mapstructure:"deep_cause_categories"`
	ComplianceCategories  []string `yaml:"compliance_categories" mapstructure:"compliance_categories"`
	ComplexAssetClasses   []string `yaml:"complex_asset_classes" mapstructure:"complex_asset_classes"`
}

// DefaultRules returns the production classification constants.
func DefaultRules() Rules {
	return Rules{
		Thresholds:            Thresholds{Low: 5_000, Medium: 50_000, High: 100_000},
		DeepCauseMagnitude:    50_000,
		PinnedCategories:      []string{"REGULATORY_DATA", "LIFECYCLE_EVENT"},
		CorrelationCategories: []string{"TRADE_OMS_MISMATCH", "BROKER_VS_INTERNAL", "FO_VS_BO", "CUSTODIAN_MISMATCH"},
		DeepCauseCategories:   []string{"PNL_RECONCILIATION", "REGULATORY_DATA", "LIFECYCLE_EVENT"},
		ComplianceCategories:  []string{"REGULATORY_DATA", "BROKER_VS_INTERNAL"},
		ComplexAssetClasses:   []string{"DERIVATIVE", "STRUCTURED_PRODUCT", "EXOTIC_OPTION"},
	}
}

// Validate checks that thresholds are positive and strictly ascending.
func (r Rules) Validate() error {
	return validation.Validate(r)
}

// Magnitude is the absolute difference of the two sides' absolute amounts.
func Magnitude(item *WorkItem) float64 {
	return math.Abs(math.Abs(item.SystemA.Amount) - math.Abs(item.SystemB.Amount))
}

// TierFor maps a magnitude onto a tier using the ordered thresholds.
func (r Rules) TierFor(magnitude float64) RiskTier {
	switch {
	case magnitude < r.Thresholds.Low:
		return TierLow
	case magnitude < r.Thresholds.Medium:
		return TierMedium
	case magnitude < r.Thresholds.High:
		return TierHigh
	default:
		return TierCritical
	}
}

// IsPinned reports whether category is always CRITICAL.
func (r Rules) IsPinned(category string) bool {
	return slices.Contains(r.PinnedCategories, category)
}

// IsComplex reports whether assetClass raises the tier by one step.
func (r Rules) IsComplex(assetClass string) bool {
	return slices.Contains(r.ComplexAssetClasses, assetClass)
}

// RequiresCorrelation is true when category is one where the two sides must be
// matched against each other or candidate records.
func (r Rules) RequiresCorrelation(category string) bool {
	return slices.Contains(r.CorrelationCategories, category)
}

// RequiresDeepCause is true for deep-cause categories, for HIGH and CRITICAL
// tiers, and for any magnitude above DeepCauseMagnitude.
func (r Rules) RequiresDeepCause(category string, tier RiskTier, magnitude float64) bool {
	if slices.Contains(r.DeepCauseCategories, category) {
		return true
	}
	if tier.Rank() >= TierHigh.Rank() {
		return true
	}
	return magnitude > r.DeepCauseMagnitude
}

// RequiresCompliance is true for categories with regulatory exposure.
func (r Rules) RequiresCompliance(category string) bool {
	return slices.Contains(r.ComplianceCategories, category)
}

// AssetClass infers the asset class from the instrument identifier.
func AssetClass(instrument string) string {
	switch {
	case hasAnyPrefix(instrument, "FX", "USD", "EUR", "GBP"):
		return "FX"
	case hasAnySuffix(instrument, "OPT", "CALL", "PUT"):
		return "DERIVATIVE"
	case strings.HasSuffix(instrument, ".SW"):
		return "STRUCTURED_PRODUCT"
	default:
		return "EQUITY"
	}
}

// MaterialityFor grades magnitude against the LOW and MEDIUM thresholds.
func (r Rules) MaterialityFor(magnitude float64) Materiality {
	switch {
	case magnitude < r.Thresholds.Low:
		return MaterialityLow
	case magnitude < r.Thresholds.Medium:
		return MaterialityMedium
	default:
		return MaterialityHigh
	}
}

// UrgencyFor follows the tier: CRITICAL and HIGH map across, the rest are NORMAL.
func UrgencyFor(tier RiskTier) Urgency {
	switch tier {
	case TierCritical:
		return UrgencyCritical
	case TierHigh:
		return UrgencyHigh
	default:
		return UrgencyNormal
	}
}

// Classifier builds Profiles from WorkItems.
type Classifier struct {
	rules Rules
}

// NewClassifier returns a classifier over rules. Invalid rules are rejected.
func NewClassifier(rules Rules) (*Classifier, error) {
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("classifier rules: %w", err)
	}
	return &Classifier{rules: rules}, nil
}

// Rules returns the classifier's constants.
func (c *Classifier) Rules() Rules {
	return c.rules
}

// Classify profiles item. Malformed items fail with CLASSIFICATION_ERROR.
func (c *Classifier) Classify(item *WorkItem) (Profile, error) {
	if item == nil {
		return Profile{}, errors.Classification("", "work item is nil")
	}
	if err := validation.Validate(item); err != nil {
		return Profile{}, classificationError(err)
	}

	r := c.rules
	magnitude := Magnitude(item)
	assetClass := AssetClass(item.Entity(EntityInstrument))

	var reasons []string
	tier := r.TierFor(magnitude)
	reasons = append(reasons, fmt.Sprintf("magnitude %.2f falls in tier %s", magnitude, tier))
	switch {
	case r.IsPinned(item.Category):
		tier = TierCritical
		reasons = append(reasons, fmt.Sprintf("category %s is pinned to CRITICAL", item.Category))
	case r.IsComplex(assetClass) && tier.Rank() < TierHigh.Rank():
		tier = Tiers[tier.Rank()+1]
		reasons = append(reasons, fmt.Sprintf("complex asset class %s raises tier to %s", assetClass, tier))
	}

	flags := Flags{
		FlagRequiresCorrelation: r.RequiresCorrelation(item.Category),
		FlagRequiresDeepCause:   r.RequiresDeepCause(item.Category, tier, magnitude),
		FlagRequiresCompliance:  r.RequiresCompliance(item.Category),
	}
	for _, f := range flags.Names() {
		reasons = append(reasons, "flag "+f+" set")
	}

	return Profile{
		ID:            item.ID,
		Category:      item.Category,
		Magnitude:     magnitude,
		RiskTier:      tier,
		AssetClass:    assetClass,
		SourceSystems: sourceSystems(item),
		Materiality:   r.MaterialityFor(magnitude),
		Urgency:       UrgencyFor(tier),
		Flags:         flags,
		Reasons:       reasons,
	}, nil
}

func classificationError(err error) *errors.AppError {
	field := ""
	reason := err.Error()
	if appErr, ok := errors.AsAppError(err); ok {
		reason = appErr.Message
		if fields, ok := appErr.Details["fields"].([]validation.FieldError); ok && len(fields) > 0 {
			field = fields[0].Field
		}
	}
	return errors.Classification(field, reason).WithCause(err)
}

func sourceSystems(item *WorkItem) []string {
	var out []string
	for _, s := range []*Side{item.SystemA, item.SystemB} {
		if s.Source != "" && s.Source != "UNKNOWN" {
			out = append(out, s.Source)
		}
	}
	return out
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, p := range suffixes {
		if strings.HasSuffix(s, p) {
			return true
		}
	}
	return false
}
