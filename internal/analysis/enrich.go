package analysis

// EnrichedHit is a query whose target-label count exceeded the enrichment
// threshold, with its nearest database cells for provenance.
type EnrichedHit struct {
	QueryID     string
	Count       int
	NeighborIDs []string
}

// SelectEnriched flags every query whose first target-pair count exceeds
// threshold (strictly greater), preserving row order.
func SelectEnriched(records []Record, threshold int) []EnrichedHit {
	var hits []EnrichedHit
	for _, rec := range records {
		if rec.TargetCounts[0] <= threshold {
			continue
		}
		hits = append(hits, EnrichedHit{
			QueryID:     rec.QueryID,
			Count:       rec.TargetCounts[0],
			NeighborIDs: rec.TopCellIDs,
		})
	}
	return hits
}
