package domain

import "time"

// AlertDecision is the graded action produced for an incident. Wait is a
// distinct abstain state, not a probability band between Standard and
// Ignore, so no total severity order is assumed.
type AlertDecision string

const (
	DecisionIgnore   AlertDecision = "IGNORE"
	DecisionWait     AlertDecision = "WAIT"
	DecisionStandard AlertDecision = "STANDARD"
	DecisionElevated AlertDecision = "ELEVATED"
	DecisionCritical AlertDecision = "CRITICAL"
)

// DecisionHint is the conformal calibrator's abstention signal.
type DecisionHint string

const (
	HintAlert  DecisionHint = "alert"
	HintIgnore DecisionHint = "ignore"
	HintWait   DecisionHint = "wait"
)

// CostProfile selects the user's false-positive / false-negative loss pair.
type CostProfile string

const (
	ProfileConservative CostProfile = "conservative"
	ProfileBalanced     CostProfile = "balanced"
	ProfileVigilant     CostProfile = "vigilant"
)

// QuestionKind enumerates the clarifying actions the active reasoner can
// propose.
type QuestionKind string

const (
	QuestionAwaitDoorbell      QuestionKind = "await_doorbell"
	QuestionCheckToken         QuestionKind = "check_token"
	QuestionRequestSecondAngle QuestionKind = "request_second_angle"
	QuestionImproveFaceCapture QuestionKind = "improve_face_capture"
)

// QuestionProposal is a clarifying question ranked by expected entropy
// reduction (value of information).
type QuestionProposal struct {
	Kind                     QuestionKind `json:"kind"`
	Camera                   string       `json:"camera,omitempty"`
	ExpectedEntropyReduction float64      `json:"expectedEntropyReduction"`
}

// Counterfactual is one hypothetical mitigating change and the LLR shift
// it would contribute.
type Counterfactual struct {
	Description string  `json:"description"`
	DeltaLLR    float64 `json:"deltaLlr"`
}

// ThinkingResult is the complete engine output for one processed event.
type ThinkingResult struct {
	AssessmentID string `json:"assessmentId"`
	IncidentID   uint64 `json:"incidentId"`
	HomeID       string `json:"homeId"`
	PersonTrack  string `json:"personTrack"`

	FusedEvidence Evidence      `json:"fusedEvidence"`
	RawLogit      float64       `json:"rawLogit"`
	Probability   float64       `json:"probability"`
	Hint          DecisionHint  `json:"hint"`
	Decision      AlertDecision `json:"decision"`

	Summary         string             `json:"summary"`
	Questions       []QuestionProposal `json:"questions,omitempty"`
	Counterfactuals []Counterfactual   `json:"counterfactuals,omitempty"`
	SuppressedCount int                `json:"suppressedCount"`

	Metadata AssessmentMetadata `json:"metadata"`
}

// AssessmentMetadata carries processing bookkeeping for audit.
type AssessmentMetadata struct {
	TraceID       string `json:"traceId"`
	ProcessMs     int64  `json:"processMs"`
	EngineVersion string `json:"engineVersion"`
}

// Outcome is a ground-truth label fed back into the learning loops.
type Outcome struct {
	ID           string    `json:"id"`
	HomeID       string    `json:"homeId"`
	AssessmentID string    `json:"assessmentId,omitempty"`
	RawLogit     float64   `json:"rawLogit"`
	WasThreat    bool      `json:"wasThreat"`
	RecordedAt   time.Time `json:"recordedAt"`
}
