package analysis

import "sort"

// Ranking holds one query row's database neighbors ordered by ascending
// distance. The three slices are index-aligned.
type Ranking struct {
	Distances []float64
	Labels    []string
	CellIDs   []string
}

// RankRow orders the database entries for one query row by ascending
// distance. Ties keep the original database index order (stable sort) so the
// ranking is deterministic.
func RankRow(distances []float64, labels, cellIDs []string) Ranking {
	idx := make([]int, len(distances))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return distances[idx[a]] < distances[idx[b]]
	})

	rk := Ranking{
		Distances: make([]float64, len(idx)),
		Labels:    make([]string, len(idx)),
		CellIDs:   make([]string, len(idx)),
	}
	for out, in := range idx {
		rk.Distances[out] = distances[in]
		rk.Labels[out] = labels[in]
		rk.CellIDs[out] = cellIDs[in]
	}
	return rk
}
