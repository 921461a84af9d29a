// Package policy provides the CEL-Go based alert policy engine.
package policy

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/novinai/sentinel/internal/domain"
)

// Engine evaluates per-home alert policies against decision output.
type Engine struct {
	mu               sync.RWMutex
	env              *cel.Env
	compiledPolicies map[string]*CompiledPolicy
	activityGetter   ActivityGetter
	maxWorkers       int
}

// CompiledPolicy holds a pre-compiled CEL program.
type CompiledPolicy struct {
	Config  *domain.PolicyConfig
	Program cel.Program
}

// ActivityGetter returns the number of events seen in a zone within a
// time window. Used by policies that condition on recent activity.
type ActivityGetter func(ctx context.Context, homeID, zone string, windowSecs int) (int64, error)

// EvaluateInput is the decision context a policy expression sees.
type EvaluateInput struct {
	HomeID         string
	Event          *domain.Event
	Result         *domain.ThinkingResult
	ActivityWindow int // seconds; 0 disables the recent_event_count lookup
}

// NewEngine creates a new policy evaluation engine.
func NewEngine(activityGetter ActivityGetter, maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	env, err := cel.NewEnv(
		cel.Variable("probability", cel.DoubleType),
		cel.Variable("decision", cel.StringType),
		cel.Variable("hint", cel.StringType),
		cel.Variable("zone", cel.StringType),
		cel.Variable("entry_point", cel.StringType),
		cel.Variable("dwell_s", cel.DoubleType),
		cel.Variable("rang_doorbell", cel.BoolType),
		cel.Variable("knocked", cel.BoolType),
		cel.Variable("known_face", cel.BoolType),
		cel.Variable("token", cel.StringType),
		cel.Variable("away_prob", cel.DoubleType),
		cel.Variable("hour", cel.IntType),
		cel.Variable("recent_event_count", cel.IntType),
		cel.Variable("suppressed_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:              env,
		compiledPolicies: make(map[string]*CompiledPolicy),
		activityGetter:   activityGetter,
		maxWorkers:       maxWorkers,
	}, nil
}

// ValidatePolicy checks that a policy expression compiles and returns bool.
func (e *Engine) ValidatePolicy(cfg *domain.PolicyConfig) error {
	_, err := e.compilePolicy(cfg)
	return err
}

// LoadPolicy compiles and registers a single policy. Disabled policies
// are removed if previously loaded.
func (e *Engine) LoadPolicy(cfg *domain.PolicyConfig) error {
	if !cfg.Enabled {
		e.mu.Lock()
		delete(e.compiledPolicies, cfg.ID)
		e.mu.Unlock()
		return nil
	}

	compiled, err := e.compilePolicy(cfg)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.compiledPolicies[cfg.ID] = compiled
	e.mu.Unlock()

	return nil
}

// LoadPolicies compiles and registers multiple policies.
func (e *Engine) LoadPolicies(configs []*domain.PolicyConfig) error {
	for _, cfg := range configs {
		if err := e.LoadPolicy(cfg); err != nil {
			return err
		}
	}
	return nil
}

// ReloadPolicies clears all existing policies and loads new ones. This
// enables hot-reloading of policies from the database.
func (e *Engine) ReloadPolicies(configs []*domain.PolicyConfig) error {
	newPolicies := make(map[string]*CompiledPolicy)

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.compilePolicy(cfg)
		if err != nil {
			return err
		}
		newPolicies[cfg.ID] = compiled
	}

	e.mu.Lock()
	e.compiledPolicies = newPolicies
	e.mu.Unlock()

	return nil
}

// EvaluateAll evaluates every loaded policy for the home against the
// decision context in parallel and returns the per-policy results.
// Only policies belonging to the input's home (or with an empty HomeID,
// meaning global) are evaluated.
func (e *Engine) EvaluateAll(ctx context.Context, input *EvaluateInput) ([]domain.PolicyResult, error) {
	if input == nil || input.Event == nil || input.Result == nil {
		return nil, fmt.Errorf("evaluate input requires event and result")
	}

	e.mu.RLock()
	policies := make([]*CompiledPolicy, 0, len(e.compiledPolicies))
	for _, p := range e.compiledPolicies {
		if p.Config.HomeID == "" || p.Config.HomeID == input.HomeID {
			policies = append(policies, p)
		}
	}
	e.mu.RUnlock()

	if len(policies) == 0 {
		return nil, nil
	}

	var recentCount int64
	if e.activityGetter != nil && input.ActivityWindow > 0 {
		count, err := e.activityGetter(ctx, input.HomeID, input.Event.Zone, input.ActivityWindow)
		if err == nil {
			recentCount = count
		}
	}

	ev := input.Event
	res := input.Result
	activation := map[string]any{
		"probability":        res.Probability,
		"decision":           string(res.Decision),
		"hint":               string(res.Hint),
		"zone":               ev.Zone,
		"entry_point":        string(ev.EntryPoint),
		"dwell_s":            ev.DwellSeconds,
		"rang_doorbell":      ev.RangDoorbell,
		"knocked":            ev.Knocked,
		"known_face":         ev.KnownFace,
		"token":              string(ev.Token),
		"away_prob":          ev.AwayProb,
		"hour":               int64(ev.Timestamp.Hour()),
		"recent_event_count": recentCount,
		"suppressed_count":   int64(res.SuppressedCount),
	}

	results := make([]domain.PolicyResult, len(policies))
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)

	for i, p := range policies {
		wg.Add(1)
		go func(idx int, cp *CompiledPolicy) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = evaluatePolicy(cp, activation)
		}(i, p)
	}

	wg.Wait()

	return results, nil
}

func evaluatePolicy(p *CompiledPolicy, activation map[string]any) domain.PolicyResult {
	result := domain.PolicyResult{
		PolicyID: p.Config.ID,
		Action:   p.Config.Action,
		Reason:   p.Config.Reason,
	}

	out, _, err := p.Program.Eval(activation)
	if err != nil {
		result.Err = fmt.Sprintf("evaluation error: %v", err)
		return result
	}

	matched, ok := out.(types.Bool)
	if !ok {
		result.Err = fmt.Sprintf("expression returned %T, want bool", out)
		return result
	}
	result.Matched = bool(matched)

	return result
}

// Apply resolves the final decision from the base decision and matched
// policy results. Escalation has precedence over suppression; notify
// never changes the decision, only contributes tags. Results with
// evaluation errors are skipped.
func Apply(base domain.AlertDecision, results []domain.PolicyResult) (domain.AlertDecision, []string) {
	final := base
	var tags []string
	suppressed := false

	for _, r := range results {
		if !r.Matched || r.Err != "" {
			continue
		}
		switch r.Action {
		case domain.PolicyEscalate:
			final = domain.DecisionCritical
		case domain.PolicySuppress:
			suppressed = true
		case domain.PolicyNotify:
			tags = append(tags, r.PolicyID)
		}
	}

	if suppressed && final != domain.DecisionCritical {
		final = domain.DecisionIgnore
	}

	return final, tags
}

// PoliciesCount returns the number of loaded policies.
func (e *Engine) PoliciesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledPolicies)
}

// GetLoadedPolicies returns the currently loaded policy configurations.
func (e *Engine) GetLoadedPolicies() []*domain.PolicyConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	policies := make([]*domain.PolicyConfig, 0, len(e.compiledPolicies))
	for _, compiled := range e.compiledPolicies {
		policies = append(policies, compiled.Config)
	}
	return policies
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledPolicies = make(map[string]*CompiledPolicy)
	return nil
}

func (e *Engine) compilePolicy(cfg *domain.PolicyConfig) (*CompiledPolicy, error) {
	if cfg.Expression == "" {
		return nil, fmt.Errorf("policy %s: empty expression", cfg.ID)
	}

	switch cfg.Action {
	case domain.PolicySuppress, domain.PolicyEscalate, domain.PolicyNotify:
	default:
		return nil, fmt.Errorf("policy %s: unknown action %q", cfg.ID, cfg.Action)
	}

	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile policy %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("policy %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for policy %s: %w", cfg.ID, err)
	}

	return &CompiledPolicy{
		Config:  cfg,
		Program: program,
	}, nil
}
