package policy

import (
	"context"
	"testing"
	"time"

	"github.com/novinai/sentinel/internal/domain"
)

func testEvent(hour int) *domain.Event {
	return &domain.Event{
		ID:         "ev-001",
		Timestamp:  time.Date(2026, 3, 10, hour, 15, 0, 0, time.UTC),
		Zone:       "front_porch",
		Camera:     "cam-front",
		EntryPoint: domain.EntryFrontDoor,
	}
}

func testResult(p float64, decision domain.AlertDecision) *domain.ThinkingResult {
	return &domain.ThinkingResult{
		Probability: p,
		Decision:    decision,
		Hint:        domain.HintWait,
	}
}

func TestEngineCreation(t *testing.T) {
	engine, err := NewEngine(nil, 5)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	defer engine.Close()

	if engine.PoliciesCount() != 0 {
		t.Errorf("expected 0 policies, got %d", engine.PoliciesCount())
	}
}

func TestLoadPolicy(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	cfg := &domain.PolicyConfig{
		ID:         "pol-001",
		Name:       "High probability escalation",
		Expression: "probability > 0.8",
		Action:     domain.PolicyEscalate,
		Enabled:    true,
	}

	if err := engine.LoadPolicy(cfg); err != nil {
		t.Fatalf("failed to load policy: %v", err)
	}

	if engine.PoliciesCount() != 1 {
		t.Errorf("expected 1 policy, got %d", engine.PoliciesCount())
	}
}

func TestLoadInvalidExpression(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	cfg := &domain.PolicyConfig{
		ID:         "bad-expr",
		Expression: "this is not valid CEL !!!",
		Action:     domain.PolicySuppress,
		Enabled:    true,
	}

	if err := engine.LoadPolicy(cfg); err == nil {
		t.Error("expected error for invalid CEL expression")
	}
}

func TestLoadNonBoolExpression(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	cfg := &domain.PolicyConfig{
		ID:         "non-bool",
		Expression: "probability * 2.0",
		Action:     domain.PolicySuppress,
		Enabled:    true,
	}

	if err := engine.LoadPolicy(cfg); err == nil {
		t.Error("expected error for non-bool expression")
	}
}

func TestLoadUnknownAction(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	cfg := &domain.PolicyConfig{
		ID:         "bad-action",
		Expression: "probability > 0.5",
		Action:     domain.PolicyAction("explode"),
		Enabled:    true,
	}

	if err := engine.LoadPolicy(cfg); err == nil {
		t.Error("expected error for unknown action")
	}
}

func TestDisabledPolicyIsUnloaded(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	cfg := &domain.PolicyConfig{
		ID:         "pol-toggle",
		Expression: "probability > 0.5",
		Action:     domain.PolicyNotify,
		Enabled:    true,
	}
	if err := engine.LoadPolicy(cfg); err != nil {
		t.Fatalf("load: %v", err)
	}

	cfg.Enabled = false
	if err := engine.LoadPolicy(cfg); err != nil {
		t.Fatalf("unload via disable: %v", err)
	}
	if engine.PoliciesCount() != 0 {
		t.Errorf("expected disabled policy to be removed, have %d", engine.PoliciesCount())
	}
}

func TestEvaluateMatch(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	cfg := &domain.PolicyConfig{
		ID:         "quiet-hours",
		HomeID:     "home-1",
		Expression: `hour >= 0 && hour < 5 && probability < 0.3`,
		Action:     domain.PolicySuppress,
		Reason:     "quiet hours",
		Enabled:    true,
	}
	if err := engine.LoadPolicy(cfg); err != nil {
		t.Fatalf("load: %v", err)
	}

	results, err := engine.EvaluateAll(context.Background(), &EvaluateInput{
		HomeID: "home-1",
		Event:  testEvent(2),
		Result: testResult(0.1, domain.DecisionWait),
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if !r.Matched {
		t.Error("expected policy to match at 2am with low probability")
	}
	if r.Action != domain.PolicySuppress {
		t.Errorf("action = %s, want suppress", r.Action)
	}
	if r.Reason != "quiet hours" {
		t.Errorf("reason = %q", r.Reason)
	}
	if r.Err != "" {
		t.Errorf("unexpected error: %s", r.Err)
	}
}

func TestEvaluateNoMatch(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	cfg := &domain.PolicyConfig{
		ID:         "quiet-hours",
		Expression: `hour >= 0 && hour < 5`,
		Action:     domain.PolicySuppress,
		Enabled:    true,
	}
	if err := engine.LoadPolicy(cfg); err != nil {
		t.Fatalf("load: %v", err)
	}

	results, err := engine.EvaluateAll(context.Background(), &EvaluateInput{
		HomeID: "home-1",
		Event:  testEvent(14),
		Result: testResult(0.1, domain.DecisionWait),
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(results) != 1 || results[0].Matched {
		t.Error("expected no match at 2pm")
	}
}

func TestHomeIsolation(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	err := engine.LoadPolicies([]*domain.PolicyConfig{
		{ID: "other-home", HomeID: "home-2", Expression: "true", Action: domain.PolicyNotify, Enabled: true},
		{ID: "global", HomeID: "", Expression: "true", Action: domain.PolicyNotify, Enabled: true},
		{ID: "this-home", HomeID: "home-1", Expression: "true", Action: domain.PolicyNotify, Enabled: true},
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	results, err := engine.EvaluateAll(context.Background(), &EvaluateInput{
		HomeID: "home-1",
		Event:  testEvent(12),
		Result: testResult(0.5, domain.DecisionWait),
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results (global + own home), got %d", len(results))
	}
	for _, r := range results {
		if r.PolicyID == "other-home" {
			t.Error("policy for another home was evaluated")
		}
	}
}

func TestActivityGetter(t *testing.T) {
	var gotHome, gotZone string
	var gotWindow int
	getter := func(ctx context.Context, homeID, zone string, windowSecs int) (int64, error) {
		gotHome, gotZone, gotWindow = homeID, zone, windowSecs
		return 7, nil
	}

	engine, _ := NewEngine(getter, 5)
	defer engine.Close()

	cfg := &domain.PolicyConfig{
		ID:         "busy-zone",
		Expression: "recent_event_count >= 5",
		Action:     domain.PolicyNotify,
		Enabled:    true,
	}
	if err := engine.LoadPolicy(cfg); err != nil {
		t.Fatalf("load: %v", err)
	}

	results, err := engine.EvaluateAll(context.Background(), &EvaluateInput{
		HomeID:         "home-1",
		Event:          testEvent(12),
		Result:         testResult(0.2, domain.DecisionWait),
		ActivityWindow: 600,
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !results[0].Matched {
		t.Error("expected match with recent_event_count=7")
	}
	if gotHome != "home-1" || gotZone != "front_porch" || gotWindow != 600 {
		t.Errorf("getter called with (%s, %s, %d)", gotHome, gotZone, gotWindow)
	}
}

func TestActivityGetterSkippedWithoutWindow(t *testing.T) {
	called := false
	getter := func(ctx context.Context, homeID, zone string, windowSecs int) (int64, error) {
		called = true
		return 100, nil
	}

	engine, _ := NewEngine(getter, 5)
	defer engine.Close()

	cfg := &domain.PolicyConfig{
		ID:         "busy-zone",
		Expression: "recent_event_count >= 5",
		Action:     domain.PolicyNotify,
		Enabled:    true,
	}
	if err := engine.LoadPolicy(cfg); err != nil {
		t.Fatalf("load: %v", err)
	}

	results, _ := engine.EvaluateAll(context.Background(), &EvaluateInput{
		HomeID: "home-1",
		Event:  testEvent(12),
		Result: testResult(0.2, domain.DecisionWait),
	})
	if called {
		t.Error("activity getter should not run with ActivityWindow=0")
	}
	if results[0].Matched {
		t.Error("recent_event_count should default to 0")
	}
}

func TestReloadPolicies(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	if err := engine.LoadPolicy(&domain.PolicyConfig{
		ID: "old", Expression: "true", Action: domain.PolicyNotify, Enabled: true,
	}); err != nil {
		t.Fatalf("load: %v", err)
	}

	err := engine.ReloadPolicies([]*domain.PolicyConfig{
		{ID: "new-a", Expression: "probability > 0.5", Action: domain.PolicyNotify, Enabled: true},
		{ID: "new-b", Expression: "knocked", Action: domain.PolicyNotify, Enabled: true},
		{ID: "new-disabled", Expression: "true", Action: domain.PolicyNotify, Enabled: false},
	})
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	if engine.PoliciesCount() != 2 {
		t.Errorf("expected 2 policies after reload, got %d", engine.PoliciesCount())
	}
	for _, cfg := range engine.GetLoadedPolicies() {
		if cfg.ID == "old" {
			t.Error("old policy survived reload")
		}
	}
}

func TestApplyPrecedence(t *testing.T) {
	tests := []struct {
		name    string
		base    domain.AlertDecision
		results []domain.PolicyResult
		want    domain.AlertDecision
		tags    int
	}{
		{
			name: "suppress downgrades",
			base: domain.DecisionStandard,
			results: []domain.PolicyResult{
				{PolicyID: "a", Matched: true, Action: domain.PolicySuppress},
			},
			want: domain.DecisionIgnore,
		},
		{
			name: "escalate wins over suppress",
			base: domain.DecisionWait,
			results: []domain.PolicyResult{
				{PolicyID: "a", Matched: true, Action: domain.PolicySuppress},
				{PolicyID: "b", Matched: true, Action: domain.PolicyEscalate},
			},
			want: domain.DecisionCritical,
		},
		{
			name: "notify leaves decision and tags",
			base: domain.DecisionElevated,
			results: []domain.PolicyResult{
				{PolicyID: "a", Matched: true, Action: domain.PolicyNotify},
			},
			want: domain.DecisionElevated,
			tags: 1,
		},
		{
			name: "unmatched ignored",
			base: domain.DecisionStandard,
			results: []domain.PolicyResult{
				{PolicyID: "a", Matched: false, Action: domain.PolicySuppress},
			},
			want: domain.DecisionStandard,
		},
		{
			name: "errored skipped",
			base: domain.DecisionStandard,
			results: []domain.PolicyResult{
				{PolicyID: "a", Matched: true, Action: domain.PolicySuppress, Err: "boom"},
			},
			want: domain.DecisionStandard,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, tags := Apply(tt.base, tt.results)
			if got != tt.want {
				t.Errorf("Apply() = %s, want %s", got, tt.want)
			}
			if len(tags) != tt.tags {
				t.Errorf("tags = %d, want %d", len(tags), tt.tags)
			}
		})
	}
}

func TestBuiltinPoliciesCompile(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	if err := engine.LoadPolicies(BuiltinPolicies()); err != nil {
		t.Fatalf("builtin policies failed to load: %v", err)
	}
	if engine.PoliciesCount() != len(BuiltinPolicies()) {
		t.Errorf("expected %d builtin policies loaded", len(BuiltinPolicies()))
	}
}

func TestBuiltinOvernightQuiet(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	if err := engine.LoadPolicies(BuiltinPolicies()); err != nil {
		t.Fatalf("load: %v", err)
	}

	ev := testEvent(2)
	ev.KnownFace = true

	results, err := engine.EvaluateAll(context.Background(), &EvaluateInput{
		HomeID: "home-1",
		Event:  ev,
		Result: testResult(0.1, domain.DecisionWait),
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	final, _ := Apply(domain.DecisionWait, results)
	if final != domain.DecisionIgnore {
		t.Errorf("expected overnight known-face visit suppressed, got %s", final)
	}
}
