package recon

import (
	"github.com/kbukum/reconflow/dag"
)

// Named checkpoint conditions.
const (
	CondWithinTolerance              = "within_tolerance"
	CondWithinToleranceAndConfidence = "within_tolerance_and_confidence"
	CondMatchFound                   = "match_found"
	CondWithinRoundingTolerance      = "within_rounding_tolerance"
)

// WithinTolerance holds when the tolerance rules passed.
func WithinTolerance(results dag.Results, _ float64) bool {
	ok, _ := dag.Read(results, PortWithinTolerance)
	return ok
}

// WithinToleranceAndConfidence holds when the tolerance rules passed and the
// root-cause confidence reaches threshold.
func WithinToleranceAndConfidence(results dag.Results, threshold float64) bool {
	conf, ok := dag.Read(results, PortPatternConfidence)
	return ok && WithinTolerance(results, threshold) && conf >= threshold
}

// MatchFound holds when the best match candidate scores at least threshold.
func MatchFound(results dag.Results, threshold float64) bool {
	best, ok := dag.Read(results, PortBestScore)
	return ok && best > 0 && best >= threshold
}

// WithinRoundingTolerance holds when the difference is small enough to be
// rounding.
func WithinRoundingTolerance(results dag.Results, _ float64) bool {
	ok, _ := dag.Read(results, PortWithinRounding)
	return ok
}

// RegisterConditions adds the reconciliation predicates to conds.
func RegisterConditions(conds *dag.Conditions) error {
	for name, fn := range map[string]dag.ConditionFunc{
		CondWithinTolerance:              WithinTolerance,
		CondWithinToleranceAndConfidence: WithinToleranceAndConfidence,
		CondMatchFound:                   MatchFound,
		CondWithinRoundingTolerance:      WithinRoundingTolerance,
	} {
		if err := conds.Register(name, fn); err != nil {
			return err
		}
	}
	return nil
}
