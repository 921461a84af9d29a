package domain

// PolicyAction is what a matched alert policy does to a decision.
type PolicyAction string

const (
	// PolicySuppress downgrades the decision to Ignore (overnight modes,
	// known-noisy zones).
	PolicySuppress PolicyAction = "suppress"

	// PolicyEscalate forces the decision to Critical.
	PolicyEscalate PolicyAction = "escalate"

	// PolicyNotify leaves the decision unchanged but tags the result for
	// alert routing.
	PolicyNotify PolicyAction = "notify"
)

// PolicyConfig is a per-home CEL expression evaluated against the engine's
// decision output. Policies let users override alert behavior without code
// changes.
type PolicyConfig struct {
	ID          string       `json:"id"`
	HomeID      string       `json:"homeId"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Expression  string       `json:"expression"`
	Action      PolicyAction `json:"action"`
	Reason      string       `json:"reason"`
	Enabled     bool         `json:"enabled"`
}

// PolicyResult is the outcome of evaluating one policy.
type PolicyResult struct {
	PolicyID string       `json:"policyId"`
	Matched  bool         `json:"matched"`
	Action   PolicyAction `json:"action"`
	Reason   string       `json:"reason"`
	Err      string       `json:"err,omitempty"`
}
