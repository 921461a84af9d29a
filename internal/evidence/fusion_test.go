package evidence

import (
	"math"
	"testing"

	"github.com/novinai/sentinel/internal/domain"
)

func newTestFuser() *Fuser {
	return NewFuser(1.6, 3.0)
}

func TestFuseShrinksCorrelatedPositives(t *testing.T) {
	f := newTestFuser()

	res := f.Fuse(FusionInput{
		Evidence:    domain.Evidence{Identity: 1.0, Time: 1.0, Behavior: 1.0},
		Reliability: FullReliability(),
		EntryPoint:  domain.EntryBackDoor,
	})

	naive := 3.0
	if res.Sum >= naive {
		t.Errorf("correlated positives must not stack linearly: sum=%f", res.Sum)
	}
	if res.TotalShrink <= 0 {
		t.Errorf("expected positive total shrink, got %f", res.TotalShrink)
	}
	if len(res.Shrinks) != 3 {
		t.Errorf("expected 3 pairwise shrinks, got %d", len(res.Shrinks))
	}
}

func TestFuseNoShrinkWhenNegative(t *testing.T) {
	f := newTestFuser()

	res := f.Fuse(FusionInput{
		Evidence:    domain.Evidence{Identity: -1.0, Time: -0.5, Behavior: -0.8},
		Reliability: FullReliability(),
		EntryPoint:  domain.EntryFrontDoor,
	})

	if res.TotalShrink != 0 {
		t.Errorf("benign evidence must not be shrunk, got %f", res.TotalShrink)
	}
	if len(res.Shrinks) != 0 {
		t.Errorf("expected no shrink entries, got %d", len(res.Shrinks))
	}
	if res.Sum != -2.3 {
		t.Errorf("sum = %f, want -2.3", res.Sum)
	}
}

func TestFuseVisitorPatternGating(t *testing.T) {
	f := newTestFuser()

	in := FusionInput{
		Evidence:     domain.Evidence{Time: 0.8, Behavior: 0.8},
		Reliability:  FullReliability(),
		EntryPoint:   domain.EntryFrontDoor,
		RangDoorbell: true,
	}
	res := f.Fuse(in)

	if !res.VisitorPattern {
		t.Fatal("front door + doorbell should trigger visitor pattern")
	}
	if res.TimeDamped <= 0 || res.BehaviorDamped <= 0 {
		t.Errorf("expected positive damped amounts, got time=%f behavior=%f",
			res.TimeDamped, res.BehaviorDamped)
	}

	// Same evidence at the back door: no gating.
	in.EntryPoint = domain.EntryBackDoor
	ungated := f.Fuse(in)
	if ungated.VisitorPattern {
		t.Error("back door must not trigger visitor pattern")
	}
	if res.Sum >= ungated.Sum {
		t.Errorf("gated sum %f should be below ungated %f", res.Sum, ungated.Sum)
	}
}

func TestFuseNoGatingAtBackDoorBreakIn(t *testing.T) {
	f := newTestFuser()

	res := f.Fuse(FusionInput{
		Evidence:    domain.Evidence{Identity: 1.5, Time: 0.9, Behavior: 0.9, Presence: 0.7},
		Reliability: FullReliability(),
		EntryPoint:  domain.EntryBackDoor,
	})

	if res.VisitorPattern {
		t.Fatal("no visitor signal present, pattern must be off")
	}
	if res.Sum <= 1.5 {
		t.Errorf("break-in evidence should stay strongly positive, got %f", res.Sum)
	}
}

func TestFuseGateBonusOnlyExpectedAtFront(t *testing.T) {
	f := newTestFuser()

	res := f.Fuse(FusionInput{
		Evidence:       domain.Evidence{},
		Reliability:    FullReliability(),
		EntryPoint:     domain.EntryFrontDoor,
		ExpectedWindow: true,
	})
	if res.GateBonus != -1.0 {
		t.Errorf("expected gate bonus -1.0 at front door in window, got %f", res.GateBonus)
	}

	res = f.Fuse(FusionInput{
		Evidence:       domain.Evidence{},
		Reliability:    FullReliability(),
		EntryPoint:     domain.EntryBackDoor,
		ExpectedWindow: true,
	})
	if res.GateBonus != 0 {
		t.Errorf("gate bonus must not apply at the back door, got %f", res.GateBonus)
	}
}

func TestFuseReliabilityWeighting(t *testing.T) {
	f := newTestFuser()

	full := f.Fuse(FusionInput{
		Evidence:    domain.Evidence{Identity: 1.2},
		Reliability: FullReliability(),
		EntryPoint:  domain.EntryBackDoor,
	})
	half := f.Fuse(FusionInput{
		Evidence:    domain.Evidence{Identity: 1.2},
		Reliability: Reliability{Identity: 0.5, Time: 1, Behavior: 1},
		EntryPoint:  domain.EntryBackDoor,
	})

	if math.Abs(half.Evidence.Identity-0.6) > 1e-9 {
		t.Errorf("identity should be reliability-weighted: got %f", half.Evidence.Identity)
	}
	if half.Sum >= full.Sum {
		t.Errorf("down-weighted channel should lower the sum: %f >= %f", half.Sum, full.Sum)
	}
}

func TestFuseCapsTotal(t *testing.T) {
	f := newTestFuser()

	res := f.Fuse(FusionInput{
		Evidence:    domain.Evidence{Identity: 1.5, Time: 1.6, Behavior: 1.6, Presence: 1.8},
		Reliability: FullReliability(),
		EntryPoint:  domain.EntryWindow,
	})
	if res.LLR > 1.6 {
		t.Errorf("fused LLR must respect pos cap: %f", res.LLR)
	}

	res = f.Fuse(FusionInput{
		Evidence:    domain.Evidence{Identity: -2.5, Time: -3, Behavior: -3, Token: -2.8},
		Reliability: FullReliability(),
		EntryPoint:  domain.EntryFrontDoor,
	})
	if res.LLR < -3.0 {
		t.Errorf("fused LLR must respect neg cap: %f", res.LLR)
	}
}

func TestFuseStickyChannelsPassThrough(t *testing.T) {
	f := newTestFuser()

	res := f.Fuse(FusionInput{
		Evidence:    domain.Evidence{Presence: 0.7, Token: -2.2},
		Reliability: FullReliability(),
		EntryPoint:  domain.EntryFrontDoor,
	})
	if res.Evidence.Presence != 0.7 || res.Evidence.Token != -2.2 {
		t.Errorf("sticky channels must pass through untouched: presence=%f token=%f",
			res.Evidence.Presence, res.Evidence.Token)
	}
}
