package quiz

import "math/rand"

// shuffleIndexes returns the first limit indexes of a Fisher-Yates shuffle
// of [0, size).
func shuffleIndexes(rng *rand.Rand, size, limit int) []int {
	idx := make([]int, size)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < limit; i++ {
		j := i + rng.Intn(size-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:limit]
}

// weightedIndexes draws count distinct indexes, each draw proportional to the
// remaining weights. Weights must be positive.
func weightedIndexes(rng *rand.Rand, weights []float64, count int) []int {
	remaining := make([]int, len(weights))
	for i := range remaining {
		remaining[i] = i
	}

	selected := make([]int, 0, count)
	for len(selected) < count && len(remaining) > 0 {
		total := 0.0
		for _, idx := range remaining {
			total += weights[idx]
		}

		pos := len(remaining) - 1
		r := rng.Float64() * total
		cumulative := 0.0
		for i, idx := range remaining {
			cumulative += weights[idx]
			if r < cumulative {
				pos = i
				break
			}
		}

		selected = append(selected, remaining[pos])
		remaining = append(remaining[:pos], remaining[pos+1:]...)
	}
	return selected
}
