package retrieval

import "math"

// cosineSimilarity returns the cosine similarity between two vectors.
// Returns 0 for mismatched lengths or zero vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
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
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// maximalMarginalRelevance selects up to k candidate indices balancing
// relevance to the query against redundancy among the selected set.
//
// lambda controls the trade-off: 1 is pure relevance, 0 is pure diversity.
// Candidates are expected in descending relevance order; the first selection
// is always the most relevant candidate.
func maximalMarginalRelevance(query []float32, candidates [][]float32, k int, lambda float32) []int {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	relevance := make([]float32, len(candidates))
	for i, c := range candidates {
		relevance[i] = cosineSimilarity(query, c)
	}

	selected := make([]int, 0, k)
	remaining := make(map[int]struct{}, len(candidates))
	for i := range candidates {
		remaining[i] = struct{}{}
	}

	for len(selected) < k {
		bestIdx := -1
		bestScore := float32(math.Inf(-1))

		// Iterate in rank order so ties resolve to the more relevant
		// candidate deterministically.
		for i := range candidates {
			if _, ok := remaining[i]; !ok {
				continue
			}
			var maxSim float32
			for _, j := range selected {
				if sim := cosineSimilarity(candidates[i], candidates[j]); sim > maxSim {
					maxSim = sim
				}
			}
			score := lambda*relevance[i] - (1-lambda)*maxSim
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}

		if bestIdx < 0 {
			break
		}
		selected = append(selected, bestIdx)
		delete(remaining, bestIdx)
	}

	return selected
}
