package recon

import "github.com/kbukum/reconflow/validation"

// Settings are the business constants the tasks apply.
type Settings struct {
	// AmountToleranceBps is the relative tolerance on the amount difference.
	AmountToleranceBps float64 `yaml:"amount_tolerance_bps" mapstructure:"amount_tolerance_bps" validate:"gte=0"`
	// AbsoluteTolerance is the absolute tolerance on the amount difference.
	AbsoluteTolerance float64 `yaml:"absolute_tolerance" mapstructure:"absolute_tolerance" validate:"gte=0"`
	// RoundingTolerance bounds differences attributed to rounding.
	RoundingTolerance float64 `yaml:"rounding_tolerance" mapstructure:"rounding_tolerance" validate:"gte=0"`
	// QuantityTolerance is the largest quantity difference still treated as equal.
	QuantityTolerance float64 `yaml:"quantity_tolerance" mapstructure:"quantity_tolerance" validate:"gte=0"`

	// MinSimilarity drops match candidates scoring below it.
	MinSimilarity float64 `yaml:"min_similarity" mapstructure:"min_similarity" validate:"gte=0,lte=1"`
	// MatchThreshold is the score at which a candidate counts as a match.
	MatchThreshold float64 `yaml:"match_threshold" mapstructure:"match_threshold" validate:"gte=0,lte=1"`

	AutoResolveConfidence float64 `yaml:"auto_resolve_confidence" mapstructure:"auto_resolve_confidence" validate:"gte=0,lte=1"`
	AutoResolveMaxAmount  float64 `yaml:"auto_resolve_max_amount" mapstructure:"auto_resolve_max_amount" validate:"gte=0"`
	EscalationAmount      float64 `yaml:"escalation_amount" mapstructure:"escalation_amount" validate:"gt=0"`
	HighRiskScore         float64 `yaml:"high_risk_score" mapstructure:"high_risk_score" validate:"gte=0,lte=1"`
}

// DefaultSettings returns the production constants.
func DefaultSettings() Settings {
	return Settings{
		AmountToleranceBps:    5,
		AbsoluteTolerance:     50,
		RoundingTolerance:     1,
		QuantityTolerance:     0.01,
		MinSimilarity:         0.7,
		MatchThreshold:        0.9,
		AutoResolveConfidence: 0.9,
		AutoResolveMaxAmount:  10_000,
		EscalationAmount:      100_000,
		HighRiskScore:         0.75,
	}
}

// Validate checks every constant is in range.
func (s Settings) Validate() error {
	return validation.Validate(s)
}
