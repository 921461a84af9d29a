// Package reason produces the explanatory artifacts of an assessment:
// clarifying questions ranked by value of information, and counterfactual
// changes that would have made the incident benign.
package reason

import (
	"math"
	"sort"

	"github.com/novinai/sentinel/internal/domain"
)

// ReasonerConfig holds the assumed answer probabilities and LLR deltas for
// the candidate questions.
type ReasonerConfig struct {
	RingLLR     float64
	TokenLLR    float64
	FaceGainLLR float64

	PRingGivenContext float64
	PTokenAvailable   float64
	PSecondAngleAvail float64
	PFaceImprovable   float64
}

// DefaultReasonerConfig returns the fixed question catalog parameters.
func DefaultReasonerConfig() ReasonerConfig {
	return ReasonerConfig{
		RingLLR:           -1.2,
		TokenLLR:          -2.2,
		FaceGainLLR:       -0.6,
		PRingGivenContext: 0.25,
		PTokenAvailable:   0.2,
		PSecondAngleAvail: 0.6,
		PFaceImprovable:   0.5,
	}
}

// entropy is the Bernoulli entropy in nats, defined as 0 at p in {0,1}.
func entropy(p float64) float64 {
	if p <= 0 || p >= 1 {
		return 0
	}
	return -p*math.Log(p) - (1-p)*math.Log(1-p)
}

// GenerateQuestions scores each candidate clarifying question by its
// expected entropy reduction over the current belief and returns the top k
// in descending order.
func GenerateQuestions(fusedSum, priorLogit float64, camera string, cfg ReasonerConfig, k int) []domain.QuestionProposal {
	p0 := domain.Sigmoid(priorLogit + fusedSum)
	h0 := entropy(p0)

	score := func(pYes, delta float64) float64 {
		pYesPost := domain.Sigmoid(priorLogit + fusedSum + delta)
		pNoPost := domain.Sigmoid(priorLogit + fusedSum)
		eH := pYes*entropy(pYesPost) + (1-pYes)*entropy(pNoPost)
		return math.Max(h0-eH, 0)
	}

	props := []domain.QuestionProposal{
		{
			Kind:                     domain.QuestionAwaitDoorbell,
			ExpectedEntropyReduction: score(cfg.PRingGivenContext, cfg.RingLLR),
		},
		{
			Kind:                     domain.QuestionCheckToken,
			ExpectedEntropyReduction: score(cfg.PTokenAvailable, cfg.TokenLLR),
		},
		{
			Kind:                     domain.QuestionRequestSecondAngle,
			Camera:                   camera,
			ExpectedEntropyReduction: score(cfg.PSecondAngleAvail, cfg.FaceGainLLR),
		},
		{
			Kind:                     domain.QuestionImproveFaceCapture,
			ExpectedEntropyReduction: score(cfg.PFaceImprovable, cfg.FaceGainLLR),
		},
	}

	sort.SliceStable(props, func(i, j int) bool {
		return props[i].ExpectedEntropyReduction > props[j].ExpectedEntropyReduction
	})

	if k > 0 && len(props) > k {
		props = props[:k]
	}
	return props
}
