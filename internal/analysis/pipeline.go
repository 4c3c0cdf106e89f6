package analysis

import (
	"fmt"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// Params configures a pipeline run.
type Params struct {
	// TopWindow and VoteWindow are the neighbor window sizes (defaults 5 and
	// 100); both truncate when the database is smaller.
	TopWindow  int
	VoteWindow int

	// Targets are the two label pairs counted within the vote window.
	Targets [2]TargetPair

	// Markers split query groups into cohorts.
	Markers CohortMarkers

	// EnrichmentThreshold selects queries whose first target count exceeds it.
	EnrichmentThreshold int

	// Workers bounds the per-row extraction pool; 0 means NumCPU. Workers
	// write disjoint record slots, so results match the sequential pass.
	Workers int
}

// Result is the full output of one pipeline run.
type Result struct {
	Records []Record
	Agg     *Aggregate

	Table          Table
	PValues        []float64
	TableNoZeros   Table
	PValuesNoZeros []float64

	Enriched []EnrichedHit
}

// Run executes the whole analysis: pairwise distances, per-row ranking and
// statistics extraction, aggregation, contingency comparison and enrichment
// selection. Row order is preserved throughout.
func Run(queryEmb, dbEmb *mat.Dense, queryIDs, queryGroups, dbLabels, dbCellIDs []string, p Params) (*Result, error) {
	n, _ := queryEmb.Dims()
	m, _ := dbEmb.Dims()
	if len(queryIDs) != n {
		return nil, fmt.Errorf("analysis: %d query IDs for %d query rows", len(queryIDs), n)
	}
	if len(queryGroups) != n {
		return nil, fmt.Errorf("analysis: %d query groups for %d query rows", len(queryGroups), n)
	}
	if len(dbLabels) != m {
		return nil, fmt.Errorf("analysis: %d database labels for %d database rows", len(dbLabels), m)
	}
	if len(dbCellIDs) != m {
		return nil, fmt.Errorf("analysis: %d database cell IDs for %d database rows", len(dbCellIDs), m)
	}

	dist, err := PairwiseEuclidean(queryEmb, dbEmb)
	if err != nil {
		return nil, err
	}

	records := make([]Record, n)

	workers := p.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	rows := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range rows {
				rk := RankRow(dist[i], dbLabels, dbCellIDs)
				records[i] = ExtractRecord(i, queryIDs[i], queryGroups[i], rk, p.Targets, p.TopWindow, p.VoteWindow)
			}
		}()
	}
	for i := 0; i < n; i++ {
		rows <- i
	}
	close(rows)
	wg.Wait()

	res := &Result{Records: records}
	res.Agg = AggregateRecords(records, p.Markers)

	res.Table = BuildTable(res.Agg.Control, res.Agg.Disease)
	res.PValues = res.Table.PValues()
	res.TableNoZeros = res.Table.DropZeroColumns()
	res.PValuesNoZeros = res.TableNoZeros.PValues()

	res.Enriched = SelectEnriched(records, p.EnrichmentThreshold)

	return res, nil
}
