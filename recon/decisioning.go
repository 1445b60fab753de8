package recon

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/kbukum/reconflow/dag"
	"github.com/kbukum/reconflow/profile"
)

// Decisioning combines the upstream findings into a risk score and an action.
//
// Writes: risk_score, decision{action, confidence, explanation,
// details{risk_score, labels, requires_hil, auto_resolvable}}, status.
type Decisioning struct {
	Settings Settings
}

// Name implements dag.Task.
func (Decisioning) Name() string { return TaskDecisioning }

// Invoke implements dag.Task.
func (d Decisioning) Invoke(ctx context.Context, item *profile.WorkItem, results dag.Results) (dag.Result, error) {
	s := d.Settings
	diff, haveRules := dag.Read(results, PortDifference)
	if !haveRules {
		diff = profile.Magnitude(item)
	}
	within, _ := dag.Read(results, PortWithinTolerance)
	ccy, _ := dag.Read(results, PortCurrencyMismatch)
	best, haveMatch := dag.Read(results, PortBestScore)
	cause, haveCause := dag.Read(results, PortRootCause)
	causeConf, _ := dag.Read(results, PortPatternConfidence)

	var labels []string
	risk := 0.5 * math.Min(diff/s.EscalationAmount, 1)
	if ccy {
		risk += 0.2
		labels = append(labels, "currency_mismatch")
	}
	if !within {
		risk += 0.2
		labels = append(labels, "outside_tolerance")
	}
	if !haveRules {
		risk += 0.1
		labels = append(labels, "rules_unavailable")
	}
	if haveCause {
		risk += (1 - causeConf) * 0.1
		labels = append(labels, "cause:"+cause)
	}
	if haveMatch && best >= s.MatchThreshold {
		risk -= 0.1
		labels = append(labels, "matched")
	}
	risk = clamp01(risk)

	confidence := 1 - risk/2
	if haveCause {
		confidence = (confidence + causeConf) / 2
	}
	confidence = round4(clamp01(confidence))

	var action dag.Action
	var why []string
	switch {
	case risk >= s.HighRiskScore:
		action = dag.ActionEscalate
		why = append(why, fmt.Sprintf("risk score %.2f at or above %.2f", risk, s.HighRiskScore))
	case diff >= s.EscalationAmount:
		action = dag.ActionEscalate
		why = append(why, fmt.Sprintf("difference %.2f at or above escalation amount %.0f", diff, s.EscalationAmount))
	case within && diff <= s.AutoResolveMaxAmount && confidence >= s.AutoResolveConfidence:
		action = dag.ActionAutoResolve
		why = append(why, fmt.Sprintf("within tolerance, difference %.2f, confidence %.2f", diff, confidence))
	default:
		action = dag.ActionHILReview
		why = append(why, fmt.Sprintf("risk score %.2f needs review", risk))
	}
	if haveCause {
		why = append(why, "probable cause "+cause)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	risk = round4(risk)
	return dag.Result{
		"risk_score": risk,
		"decision": map[string]any{
			"action":      string(action),
			"confidence":  confidence,
			"explanation": strings.Join(why, "; "),
			"details": map[string]any{
				"risk_score":      risk,
				"labels":          labels,
				"requires_hil":    action != dag.ActionAutoResolve,
				"auto_resolvable": action == dag.ActionAutoResolve,
			},
		},
		"status": "DECIDED",
	}, nil
}

func clamp01(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}
