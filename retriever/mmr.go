package retriever

import (
	"math"

	"github.com/hupe1980/embedgo/distance"
)

// maximalMarginalRelevance selects up to k candidate indices balancing
// relevance to the query against redundancy with already selected
// candidates. Each round picks the candidate maximizing
//
//	lambda*sim(query, c) - (1-lambda)*max over selected s of sim(c, s)
//
// Ties keep the earlier candidate, so results are deterministic for a given
// candidate order.
func maximalMarginalRelevance(metric distance.Metric, query []float32, candidates [][]float32, lambda float32, k int) []int {
	if len(candidates) == 0 || k <= 0 {
		return nil
	}

	if k > len(candidates) {
		k = len(candidates)
	}

	relevance := make([]float32, len(candidates))
	for i, cand := range candidates {
		relevance[i] = distance.Similarity(metric, query, cand)
	}

	// maxSim[i] tracks the highest similarity between candidate i and any
	// selected candidate so far. Similarities can be negative, so start
	// below any reachable value.
	maxSim := make([]float32, len(candidates))
	for i := range maxSim {
		maxSim[i] = float32(math.Inf(-1))
	}
	picked := make([]bool, len(candidates))
	selected := make([]int, 0, k)

	for len(selected) < k {
		best := -1
		var bestScore float32

		for i := range candidates {
			if picked[i] {
				continue
			}

			score := lambda * relevance[i]
			if len(selected) > 0 {
				score -= (1 - lambda) * maxSim[i]
			}

			if best == -1 || score > bestScore {
				best = i
				bestScore = score
			}
		}

		if best == -1 {
			break
		}

		picked[best] = true
		selected = append(selected, best)

		for i := range candidates {
			if picked[i] {
				continue
			}

			if sim := distance.Similarity(metric, candidates[i], candidates[best]); sim > maxSim[i] {
				maxSim[i] = sim
			}
		}
	}

	return selected
}
