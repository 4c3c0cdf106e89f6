package analysis

import (
	"sort"
	"strings"
)

// Cohort is the coarse experimental split of a query group.
type Cohort int

const (
	CohortUnclassified Cohort = iota
	CohortControl
	CohortDisease
)

func (c Cohort) String() string {
	switch c {
	case CohortControl:
		return "control"
	case CohortDisease:
		return "disease"
	default:
		return "unclassified"
	}
}

// CohortMarkers holds the substrings that assign a query-group name to a
// cohort.
type CohortMarkers struct {
	Control string
	Disease string
}

// ClassifyCohort assigns a query-group name to a cohort. The control marker
// is checked first; names matching neither are Unclassified and excluded
// from coarse aggregation (expected behavior, not an error).
func ClassifyCohort(group string, m CohortMarkers) Cohort {
	switch {
	case m.Control != "" && strings.Contains(group, m.Control):
		return CohortControl
	case m.Disease != "" && strings.Contains(group, m.Disease):
		return CohortDisease
	default:
		return CohortUnclassified
	}
}

// GroupSummary accumulates per-query statistics for one query group.
type GroupSummary struct {
	// NearestPerLabel collects, per database label, the nearest distances
	// across all queries in the group.
	NearestPerLabel map[string][]float64

	// TopLabels is the pooled top-window label multiset across queries.
	TopLabels []string

	// MeanTop lists each query's mean top-window distance.
	MeanTop []float64

	// Classifications lists each query's majority label.
	Classifications []string
}

// MeanNearestPerLabel returns the mean nearest distance per database label.
func (g *GroupSummary) MeanNearestPerLabel() map[string]float64 {
	out := make(map[string]float64, len(g.NearestPerLabel))
	for label, dists := range g.NearestPerLabel {
		var sum float64
		for _, d := range dists {
			sum += d
		}
		out[label] = sum / float64(len(dists))
	}
	return out
}

// Aggregate holds the grouped view of all per-query records.
type Aggregate struct {
	// Groups maps each query-group name to its summary; GroupNames fixes a
	// deterministic iteration order.
	Groups     map[string]*GroupSummary
	GroupNames []string

	// Cohort classification lists: queries in control groups, disease
	// groups, and all queries regardless of cohort.
	Control []string
	Disease []string
	Overall []string
}

// AggregateRecords groups records by query-group name and by cohort.
// Records are consumed in row order, so output lists are deterministic.
func AggregateRecords(records []Record, m CohortMarkers) *Aggregate {
	agg := &Aggregate{Groups: make(map[string]*GroupSummary)}

	for _, rec := range records {
		g, ok := agg.Groups[rec.Group]
		if !ok {
			g = &GroupSummary{NearestPerLabel: make(map[string][]float64)}
			agg.Groups[rec.Group] = g
			agg.GroupNames = append(agg.GroupNames, rec.Group)
		}

		for label, d := range rec.NearestPerLabel {
			g.NearestPerLabel[label] = append(g.NearestPerLabel[label], d)
		}
		g.TopLabels = append(g.TopLabels, rec.TopLabels...)
		g.MeanTop = append(g.MeanTop, rec.MeanTop)
		g.Classifications = append(g.Classifications, rec.Predicted)

		agg.Overall = append(agg.Overall, rec.Predicted)
		switch ClassifyCohort(rec.Group, m) {
		case CohortControl:
			agg.Control = append(agg.Control, rec.Predicted)
		case CohortDisease:
			agg.Disease = append(agg.Disease, rec.Predicted)
		}
	}

	sort.Strings(agg.GroupNames)
	return agg
}
