package reason

import (
	"sort"

	"github.com/novinai/sentinel/internal/domain"
)

// mitigationCatalog is the fixed set of hypothetical changes considered by
// the counterfactual search.
func mitigationCatalog() []domain.Counterfactual {
	return []domain.Counterfactual{
		{Description: "Ring/knock (visitor protocol)", DeltaLLR: -1.2},
		{Description: "Valid delivery/service token", DeltaLLR: -2.2},
		{Description: "Reduce dwell time below 20s", DeltaLLR: -0.3},
		{Description: "Approach via public path", DeltaLLR: -0.6},
		{Description: "Recognized family/guest", DeltaLLR: -1.8},
	}
}

// MinimalChangesToThreshold greedily applies the strongest mitigations
// until the running logit drops to the threshold, returning the ones used.
// If the whole catalog is exhausted without crossing the threshold, the
// full list is returned; the caller must treat that as "no simple
// counterfactual exists".
func MinimalChangesToThreshold(fusedSum, priorLogit, thresholdLogit float64) []domain.Counterfactual {
	candidates := mitigationCatalog()
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].DeltaLLR < candidates[j].DeltaLLR
	})

	logit := priorLogit + fusedSum
	var chosen []domain.Counterfactual
	for _, c := range candidates {
		if logit <= thresholdLogit {
			break
		}
		logit += c.DeltaLLR
		chosen = append(chosen, c)
	}
	return chosen
}
