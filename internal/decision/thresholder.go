// Package decision turns calibrated probabilities into graded alert
// decisions and orchestrates the full assessment pipeline.
package decision

import (
	"github.com/novinai/sentinel/internal/domain"
)

// Fixed severity bands over the calibrated probability.
const (
	criticalBand = 0.5
	elevatedBand = 0.3
)

// CostConfig is the loss assigned to a false positive (needless alert) and
// a false negative (missed threat).
type CostConfig struct {
	FalsePositive float64
	FalseNegative float64
}

// CostsFor maps a user profile to its cost pair. Unknown profiles get the
// balanced costs.
func CostsFor(profile domain.CostProfile) CostConfig {
	switch profile {
	case domain.ProfileConservative:
		return CostConfig{FalsePositive: 10, FalseNegative: 1}
	case domain.ProfileVigilant:
		return CostConfig{FalsePositive: 1, FalseNegative: 10}
	default:
		return CostConfig{FalsePositive: 5, FalseNegative: 2}
	}
}

// Thresholds are the cost-derived decision boundaries.
type Thresholds struct {
	Tau      float64
	Ignore   float64
	Critical float64
}

// ThresholdsFor derives the decision thresholds from the profile's costs:
// tau is the break-even probability, the ignore threshold sits well below
// it, and the critical threshold halfway between tau and certainty.
func ThresholdsFor(profile domain.CostProfile) Thresholds {
	c := CostsFor(profile)
	tau := c.FalsePositive / (c.FalsePositive + c.FalseNegative)

	ignore := tau * 0.2
	if ignore < 0.03 {
		ignore = 0.03
	}
	crit := tau + (1-tau)*0.5
	if crit > 0.90 {
		crit = 0.90
	}
	return Thresholds{Tau: tau, Ignore: ignore, Critical: crit}
}

// Thresholder grades calibrated probabilities. The severity bands are
// global; the cost profile only moves the ignore boundary.
type Thresholder struct {
	alertThreshold float64
	waitThreshold  float64
}

// NewThresholder derives the alert band from the engine's threshold logit.
// The wait band starts at half the alert threshold.
func NewThresholder(cfg domain.EngineConfig) *Thresholder {
	alert := domain.Sigmoid(cfg.AlertThresholdLogit)
	return &Thresholder{
		alertThreshold: alert,
		waitThreshold:  alert * 0.5,
	}
}

// AlertThreshold returns the probability at which alerts begin.
func (t *Thresholder) AlertThreshold() float64 {
	return t.alertThreshold
}

// Decide grades the probability. Conformal uncertainty forces Wait
// regardless of the bands. Ignore requires the probability to clear both
// the cost-derived boundary and the wait band; anything else in between
// waits for more evidence.
func (t *Thresholder) Decide(p float64, uncertain bool, profile domain.CostProfile) domain.AlertDecision {
	if uncertain {
		return domain.DecisionWait
	}

	th := ThresholdsFor(profile)
	switch {
	case p >= criticalBand:
		return domain.DecisionCritical
	case p >= elevatedBand:
		return domain.DecisionElevated
	case p >= t.alertThreshold:
		return domain.DecisionStandard
	case p < th.Ignore && p < t.waitThreshold:
		return domain.DecisionIgnore
	default:
		return domain.DecisionWait
	}
}

// ShouldAlert reports whether a result warrants pushing to the alert topic.
func ShouldAlert(res *domain.ThinkingResult) bool {
	if res == nil {
		return false
	}
	return res.Decision == domain.DecisionElevated || res.Decision == domain.DecisionCritical
}
