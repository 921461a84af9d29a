package decision

import (
	"math"
	"testing"

	"github.com/novinai/sentinel/internal/domain"
)

func TestThresholdsForProfiles(t *testing.T) {
	tests := []struct {
		profile    domain.CostProfile
		wantTau    float64
		wantIgnore float64
		wantCrit   float64
	}{
		{domain.ProfileConservative, 10.0 / 11.0, 10.0 / 11.0 * 0.2, 0.90},
		{domain.ProfileBalanced, 5.0 / 7.0, 5.0 / 7.0 * 0.2, 5.0/7.0 + (1-5.0/7.0)*0.5},
		{domain.ProfileVigilant, 1.0 / 11.0, 0.03, 1.0/11.0 + (1-1.0/11.0)*0.5},
	}

	for _, tt := range tests {
		t.Run(string(tt.profile), func(t *testing.T) {
			th := ThresholdsFor(tt.profile)
			if math.Abs(th.Tau-tt.wantTau) > 1e-9 {
				t.Errorf("tau = %f, want %f", th.Tau, tt.wantTau)
			}
			if math.Abs(th.Ignore-tt.wantIgnore) > 1e-9 {
				t.Errorf("ignore = %f, want %f", th.Ignore, tt.wantIgnore)
			}
			if math.Abs(th.Critical-tt.wantCrit) > 1e-9 {
				t.Errorf("critical = %f, want %f", th.Critical, tt.wantCrit)
			}
		})
	}
}

func TestThresholdsUnknownProfileIsBalanced(t *testing.T) {
	if ThresholdsFor("") != ThresholdsFor(domain.ProfileBalanced) {
		t.Error("unknown profile should fall back to balanced costs")
	}
}

func TestDecideBands(t *testing.T) {
	th := NewThresholder(domain.DefaultEngineConfig())

	tests := []struct {
		name string
		p    float64
		want domain.AlertDecision
	}{
		{"critical", 0.62, domain.DecisionCritical},
		{"critical boundary", 0.5, domain.DecisionCritical},
		{"elevated", 0.35, domain.DecisionElevated},
		{"standard", 0.20, domain.DecisionStandard},
		{"standard boundary", 0.151, domain.DecisionStandard},
		{"wait band", 0.10, domain.DecisionWait},
		{"ignore", 0.02, domain.DecisionIgnore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := th.Decide(tt.p, false, domain.ProfileBalanced); got != tt.want {
				t.Errorf("Decide(%f) = %s, want %s", tt.p, got, tt.want)
			}
		})
	}
}

func TestDecideUncertainForcesWait(t *testing.T) {
	th := NewThresholder(domain.DefaultEngineConfig())

	for _, p := range []float64{0.02, 0.4, 0.95} {
		if got := th.Decide(p, true, domain.ProfileBalanced); got != domain.DecisionWait {
			t.Errorf("uncertain Decide(%f) = %s, want WAIT", p, got)
		}
	}
}

func TestDecideVigilantIgnoresLess(t *testing.T) {
	th := NewThresholder(domain.DefaultEngineConfig())

	// 0.05 is under the wait band but above the vigilant ignore boundary.
	if got := th.Decide(0.05, false, domain.ProfileVigilant); got != domain.DecisionWait {
		t.Errorf("vigilant Decide(0.05) = %s, want WAIT", got)
	}
	if got := th.Decide(0.05, false, domain.ProfileBalanced); got != domain.DecisionIgnore {
		t.Errorf("balanced Decide(0.05) = %s, want IGNORE", got)
	}
}

func TestAlertThresholdMatchesLogit(t *testing.T) {
	th := NewThresholder(domain.DefaultEngineConfig())
	if math.Abs(th.AlertThreshold()-0.15) > 0.001 {
		t.Errorf("alert threshold = %f, want ~0.15", th.AlertThreshold())
	}
}
