package profile

import (
	"math"
	"testing"

	"github.com/kbukum/reconflow/errors"
)

func newItem(category string, a, b float64, instrument string) *WorkItem {
	return &WorkItem{
		ID:       "BRK-001",
		Category: category,
		SystemA:  &Side{Source: "OMS", Amount: a},
		SystemB:  &Side{Source: "CUSTODIAN", Amount: b},
		Entities: map[string]string{EntityInstrument: instrument},
	}
}

func mustClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(DefaultRules())
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	return c
}

func TestMagnitude(t *testing.T) {
	tests := []struct {
		name string
		a, b float64
		want float64
	}{
		{"positive", 1000, 750, 250},
		{"reversed", 750, 1000, 250},
		{"opposite signs compare absolute values", -1000, 900, 100},
		{"equal", 10, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Magnitude(newItem("X", tt.a, tt.b, ""))
			if got != tt.want {
				t.Errorf("Magnitude() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTierFor(t *testing.T) {
	r := DefaultRules()
	tests := []struct {
		magnitude float64
		want      RiskTier
	}{
		{0, TierLow},
		{4999.99, TierLow},
		{5000, TierMedium},
		{49999, TierMedium},
		{50000, TierHigh},
		{99999, TierHigh},
		{100000, TierCritical},
		{1e9, TierCritical},
	}
	for _, tt := range tests {
		if got := r.TierFor(tt.magnitude); got != tt.want {
			t.Errorf("TierFor(%v) = %s, want %s", tt.magnitude, got, tt.want)
		}
	}
}

func TestAssetClass(t *testing.T) {
	tests := map[string]string{
		"FXSPOT-EURUSD": "FX",
		"USD-GOVT-10Y":  "FX",
		"AAPL-OPT":      "DERIVATIVE",
		"SPX-PUT":       "DERIVATIVE",
		"RATES.SW":      "STRUCTURED_PRODUCT",
		"AAPL":          "EQUITY",
		"":              "EQUITY",
	}
	for instrument, want := range tests {
		if got := AssetClass(instrument); got != want {
			t.Errorf("AssetClass(%q) = %s, want %s", instrument, got, want)
		}
	}
}

func TestRequiresCorrelation(t *testing.T) {
	r := DefaultRules()
	for _, c := range []string{"TRADE_OMS_MISMATCH", "BROKER_VS_INTERNAL", "FO_VS_BO", "CUSTODIAN_MISMATCH"} {
		if !r.RequiresCorrelation(c) {
			t.Errorf("expected %s to require correlation", c)
		}
	}
	if r.RequiresCorrelation("PNL_RECONCILIATION") {
		t.Error("PNL_RECONCILIATION should not require correlation")
	}
}

func TestRequiresDeepCause(t *testing.T) {
	r := DefaultRules()
	tests := []struct {
		name      string
		category  string
		tier      RiskTier
		magnitude float64
		want      bool
	}{
		{"category member", "PNL_RECONCILIATION", TierLow, 10, true},
		{"high tier", "FO_VS_BO", TierHigh, 10, true},
		{"critical tier", "FO_VS_BO", TierCritical, 10, true},
		{"magnitude above limit", "FO_VS_BO", TierMedium, 50_001, true},
		{"magnitude at limit", "FO_VS_BO", TierMedium, 50_000, false},
		{"none", "FO_VS_BO", TierLow, 100, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.RequiresDeepCause(tt.category, tt.tier, tt.magnitude); got != tt.want {
				t.Errorf("RequiresDeepCause() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRequiresCompliance(t *testing.T) {
	r := DefaultRules()
	if !r.RequiresCompliance("REGULATORY_DATA") || !r.RequiresCompliance("BROKER_VS_INTERNAL") {
		t.Error("expected regulatory categories to require compliance")
	}
	if r.RequiresCompliance("FO_VS_BO") {
		t.Error("FO_VS_BO should not require compliance")
	}
}

func TestClassify(t *testing.T) {
	c := mustClassifier(t)
	tests := []struct {
		name       string
		item       *WorkItem
		tier       RiskTier
		assetClass string
		flags      []string
	}{
		{
			name:       "low equity break",
			item:       newItem("CASH_RECONCILIATION", 1000, 1001.5, "AAPL"),
			tier:       TierLow,
			assetClass: "EQUITY",
			flags:      []string{},
		},
		{
			name:       "pinned category ignores magnitude",
			item:       newItem("REGULATORY_DATA", 10, 10, "AAPL"),
			tier:       TierCritical,
			assetClass: "EQUITY",
			flags:      []string{"requires_compliance", "requires_deep_cause"},
		},
		{
			name:       "derivative raises low to medium",
			item:       newItem("TRADE_OMS_MISMATCH", 100, 200, "AAPL-CALL"),
			tier:       TierMedium,
			assetClass: "DERIVATIVE",
			flags:      []string{"requires_correlation"},
		},
		{
			name:       "derivative raises medium to high",
			item:       newItem("FO_VS_BO", 0, 20_000, "SPX-OPT"),
			tier:       TierHigh,
			assetClass: "DERIVATIVE",
			flags:      []string{"requires_correlation", "requires_deep_cause"},
		},
		{
			name:       "derivative never raises past high",
			item:       newItem("FO_VS_BO", 0, 60_000, "SPX-OPT"),
			tier:       TierHigh,
			assetClass: "DERIVATIVE",
			flags:      []string{"requires_correlation", "requires_deep_cause"},
		},
		{
			name:       "critical by magnitude",
			item:       newItem("BROKER_VS_INTERNAL", 0, 250_000, "EURUSD"),
			tier:       TierCritical,
			assetClass: "FX",
			flags:      []string{"requires_compliance", "requires_correlation", "requires_deep_cause"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := c.Classify(tt.item)
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if p.RiskTier != tt.tier {
				t.Errorf("tier = %s, want %s", p.RiskTier, tt.tier)
			}
			if p.AssetClass != tt.assetClass {
				t.Errorf("asset class = %s, want %s", p.AssetClass, tt.assetClass)
			}
			got := p.Flags.Names()
			if len(got) != len(tt.flags) {
				t.Fatalf("flags = %v, want %v", got, tt.flags)
			}
			for i := range got {
				if got[i] != tt.flags[i] {
					t.Errorf("flags = %v, want %v", got, tt.flags)
				}
			}
			if len(p.Reasons) == 0 {
				t.Error("expected classification reasons")
			}
		})
	}
}

func TestClassifyDerivedAttributes(t *testing.T) {
	c := mustClassifier(t)
	p, err := c.Classify(newItem("FO_VS_BO", 0, 75_000, "AAPL"))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if p.Materiality != MaterialityHigh {
		t.Errorf("materiality = %s, want HIGH", p.Materiality)
	}
	if p.Urgency != UrgencyHigh {
		t.Errorf("urgency = %s, want HIGH", p.Urgency)
	}
	if len(p.SourceSystems) != 2 || p.SourceSystems[0] != "OMS" {
		t.Errorf("unexpected source systems %v", p.SourceSystems)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := mustClassifier(t)
	item := newItem("PNL_RECONCILIATION", 12_000, 3_000, "AAPL")
	a, _ := c.Classify(item)
	b, _ := c.Classify(item)
	if a.RoutingKey() != b.RoutingKey() {
		t.Errorf("routing keys differ: %s vs %s", a.RoutingKey(), b.RoutingKey())
	}
	if a.RoutingKey() != "PNL_RECONCILIATION|MEDIUM|requires_deep_cause" {
		t.Errorf("unexpected routing key %s", a.RoutingKey())
	}
}

func TestClassifyMalformed(t *testing.T) {
	c := mustClassifier(t)
	tests := []struct {
		name  string
		item  *WorkItem
		field string
	}{
		{"nil item", nil, ""},
		{"missing id", &WorkItem{Category: "X", SystemA: &Side{}, SystemB: &Side{}}, "break_id"},
		{"missing category", &WorkItem{ID: "B1", SystemA: &Side{}, SystemB: &Side{}}, "break_type"},
		{"missing side", &WorkItem{ID: "B1", Category: "X", SystemA: &Side{}}, "system_b"},
		{"non-finite amount", &WorkItem{ID: "B1", Category: "X", SystemA: &Side{Amount: math.NaN()}, SystemB: &Side{}}, "system_a.amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Classify(tt.item)
			if !errors.HasCode(err, errors.ErrCodeClassification) {
				t.Fatalf("expected CLASSIFICATION_ERROR, got %v", err)
			}
			appErr, _ := errors.AsAppError(err)
			if tt.field != "" && appErr.Details["field"] != tt.field {
				t.Errorf("field = %v, want %s", appErr.Details["field"], tt.field)
			}
		})
	}
}

func TestNewClassifierRejectsBadThresholds(t *testing.T) {
	r := DefaultRules()
	r.Thresholds.Medium = r.Thresholds.Low
	if _, err := NewClassifier(r); err == nil {
		t.Fatal("expected error for non-ascending thresholds")
	}
}

func TestParseRiskTier(t *testing.T) {
	if tier, err := ParseRiskTier(" high "); err != nil || tier != TierHigh {
		t.Errorf("ParseRiskTier(high) = %s, %v", tier, err)
	}
	if _, err := ParseRiskTier("SEVERE"); err == nil {
		t.Error("expected error for unknown tier")
	}
	var tier RiskTier
	if err := tier.UnmarshalText([]byte("critical")); err != nil || tier != TierCritical {
		t.Errorf("UnmarshalText = %s, %v", tier, err)
	}
	if TierLow.Rank() != 0 || TierCritical.Rank() != 3 || RiskTier("X").Rank() != -1 {
		t.Error("unexpected ranks")
	}
}
