package analysis

// TargetPair names a set of ontology labels that represent the same
// anatomical concept and are counted together in the vote window.
type TargetPair struct {
	Name   string
	Labels []string
}

// Record holds the derived statistics for a single query row. Records are
// created once during the extraction pass and read-only afterward.
type Record struct {
	Row     int
	QueryID string
	Group   string

	// NearestPerLabel maps every distinct database label to the distance of
	// its nearest occurrence, over all database rows.
	NearestPerLabel map[string]float64

	// Top window (default 5): label multiset, neighbor cell IDs, mean distance.
	TopLabels  []string
	TopCellIDs []string
	MeanTop    float64

	// Predicted is the majority label over the vote window (default 100).
	Predicted string

	// TargetCounts are the occurrence counts of the two target pairs within
	// the vote window.
	TargetCounts [2]int
}

// ExtractRecord derives a query row's statistics from its neighbor ranking.
// topN and voteN truncate to the database size when fewer rows are available.
func ExtractRecord(row int, queryID, group string, rk Ranking, targets [2]TargetPair, topN, voteN int) Record {
	rec := Record{
		Row:             row,
		QueryID:         queryID,
		Group:           group,
		NearestPerLabel: nearestPerLabel(rk),
	}

	if topN > len(rk.Labels) {
		topN = len(rk.Labels)
	}
	rec.TopLabels = append(rec.TopLabels, rk.Labels[:topN]...)
	rec.TopCellIDs = append(rec.TopCellIDs, rk.CellIDs[:topN]...)
	if topN > 0 {
		var sum float64
		for _, d := range rk.Distances[:topN] {
			sum += d
		}
		rec.MeanTop = sum / float64(topN)
	}

	if voteN > len(rk.Labels) {
		voteN = len(rk.Labels)
	}
	window := rk.Labels[:voteN]
	rec.Predicted = Classify(window)
	for t, target := range targets {
		for _, want := range target.Labels {
			for _, l := range window {
				if l == want {
					rec.TargetCounts[t]++
				}
			}
		}
	}

	return rec
}

// nearestPerLabel scans labels in rank order and records the distance of each
// label's first (nearest) occurrence. Every distinct database label appears
// exactly once in the result.
func nearestPerLabel(rk Ranking) map[string]float64 {
	min := make(map[string]float64)
	for i, label := range rk.Labels {
		if _, ok := min[label]; !ok {
			min[label] = rk.Distances[i]
		}
	}
	return min
}

// Classify returns the majority label of a neighbor window. Ties for the
// highest count break to the label whose first occurrence is closest in rank
// to the query ("closest-rank wins"), which keeps the result deterministic
// and always a member of the window.
func Classify(window []string) string {
	if len(window) == 0 {
		return ""
	}

	counts := make(map[string]int, len(window))
	firstRank := make(map[string]int, len(window))
	for i, label := range window {
		counts[label]++
		if _, ok := firstRank[label]; !ok {
			firstRank[label] = i
		}
	}

	best := ""
	bestCount := -1
	for label, c := range counts {
		switch {
		case c > bestCount:
			best, bestCount = label, c
		case c == bestCount && firstRank[label] < firstRank[best]:
			best = label
		}
	}
	return best
}
