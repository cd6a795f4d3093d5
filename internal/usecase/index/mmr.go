package index

import "math"

// candidate is one similarity-ranked chunk entering the MMR re-rank.
// Rank is the position in the original similarity ordering (0 = best).
type candidate struct {
	rank   int
	sim    float64
	vector []float32
}

// rerankMMR selects up to k candidates by maximal marginal relevance:
// each pick maximizes lambda*sim(query,c) - (1-lambda)*max_sim(c, selected).
// Candidates must arrive in decreasing query-similarity order; ties break
// stable by that order. Returns the selected original ranks in pick order.
func rerankMMR(candidates []candidate, k int, lambda float64) []int {
	if k > len(candidates) {
		k = len(candidates)
	}
	if k <= 0 {
		return nil
	}

	selected := make([]int, 0, k)
	remaining := make([]bool, len(candidates))
	for i := range remaining {
		remaining[i] = true
	}

	// First pick is always the most query-similar candidate.
	selected = append(selected, 0)
	remaining[0] = false

	for len(selected) < k {
		best := -1
		bestScore := math.Inf(-1)

		for i, c := range candidates {
			if !remaining[i] {
				continue
			}
			redundancy := math.Inf(-1)
			for _, s := range selected {
				if sim := cosineSimilarity(c.vector, candidates[s].vector); sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*c.sim - (1-lambda)*redundancy
			// Strict > keeps the tie-break stable by similarity rank.
			if score > bestScore {
				best = i
				bestScore = score
			}
		}

		selected = append(selected, best)
		remaining[best] = false
	}

	ranks := make([]int, len(selected))
	for i, s := range selected {
		ranks[i] = candidates[s].rank
	}
	return ranks
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Zero or mismatched vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
