// Package analysis implements the query-vs-reference neighbor analysis
// pipeline: pairwise distances, neighbor ranking, per-query statistics,
// cohort aggregation, contingency comparison and enrichment selection.
package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrDimensionMismatch is returned when the query and database embeddings do
// not share a dimensionality. There is no valid distance computation in that
// case, so callers treat this as fatal.
var ErrDimensionMismatch = errors.New("analysis: embedding dimensionality mismatch")

// PairwiseEuclidean computes the dense NxM matrix of Euclidean distances
// between every query row and every database row.
func PairwiseEuclidean(query, db *mat.Dense) ([][]float64, error) {
	n, d := query.Dims()
	m, dbDim := db.Dims()
	if d != dbDim {
		return nil, fmt.Errorf("%w: query is %d-dimensional, database is %d-dimensional", ErrDimensionMismatch, d, dbDim)
	}

	dist := make([][]float64, n)
	for i := 0; i < n; i++ {
		q := query.RawRowView(i)
		row := make([]float64, m)
		for j := 0; j < m; j++ {
			row[j] = euclidean(q, db.RawRowView(j))
		}
		dist[i] = row
	}
	return dist, nil
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for k := range a {
		diff := a[k] - b[k]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}
