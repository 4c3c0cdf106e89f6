package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// Table is a 2xk contingency table of classification counts: one row per
// cohort, one column per predicted label present in either cohort.
type Table struct {
	Labels  []string
	Control []float64
	Disease []float64
}

// BuildTable counts each distinct label within the control and disease
// classification lists. The column set is the union of labels across both
// lists, in sorted order.
func BuildTable(control, disease []string) Table {
	controlCounts := make(map[string]float64, len(control))
	for _, l := range control {
		controlCounts[l]++
	}
	diseaseCounts := make(map[string]float64, len(disease))
	for _, l := range disease {
		diseaseCounts[l]++
	}

	union := make(map[string]bool, len(controlCounts)+len(diseaseCounts))
	for l := range controlCounts {
		union[l] = true
	}
	for l := range diseaseCounts {
		union[l] = true
	}

	t := Table{Labels: make([]string, 0, len(union))}
	for l := range union {
		t.Labels = append(t.Labels, l)
	}
	sort.Strings(t.Labels)

	t.Control = make([]float64, len(t.Labels))
	t.Disease = make([]float64, len(t.Labels))
	for i, l := range t.Labels {
		t.Control[i] = controlCounts[l]
		t.Disease[i] = diseaseCounts[l]
	}
	return t
}

// Fractions normalizes each cohort's counts by that cohort's total. An empty
// cohort yields all-zero fractions rather than dividing by zero.
func (t Table) Fractions() (control, disease []float64) {
	control = normalize(t.Control)
	disease = normalize(t.Disease)
	return control, disease
}

func normalize(counts []float64) []float64 {
	var total float64
	for _, c := range counts {
		total += c
	}
	out := make([]float64, len(counts))
	if total == 0 {
		return out
	}
	for i, c := range counts {
		out[i] = c / total
	}
	return out
}

// PValues runs, per column, a two-sided exact binomial test comparing
// floor(1000*control_fraction) successes out of
// floor(1000*control_fraction)+floor(1000*disease_fraction) trials against
// null probability 0.5. The x1000-floor transform turns fractions into
// integer pseudo-counts usable by the discrete test while preserving
// relative magnitude.
func (t Table) PValues() []float64 {
	control, disease := t.Fractions()
	pvals := make([]float64, len(t.Labels))
	for i := range t.Labels {
		k := int(math.Floor(1000 * control[i]))
		n := k + int(math.Floor(1000*disease[i]))
		pvals[i] = BinomTest(k, n, 0.5)
	}
	return pvals
}

// DropZeroColumns returns a copy of the table with every column that has a
// zero count in either cohort removed.
func (t Table) DropZeroColumns() Table {
	out := Table{}
	for i, l := range t.Labels {
		if t.Control[i] == 0 || t.Disease[i] == 0 {
			continue
		}
		out.Labels = append(out.Labels, l)
		out.Control = append(out.Control, t.Control[i])
		out.Disease = append(out.Disease, t.Disease[i])
	}
	return out
}

// BinomTest computes the two-sided exact binomial test p-value for k
// successes in n trials under success probability p: the sum of the
// probabilities of all outcomes no more likely than the observed one.
// n == 0 is undefined and reported as 1.
func BinomTest(k, n int, p float64) float64 {
	if n <= 0 {
		return 1
	}
	if k < 0 {
		k = 0
	}
	if k > n {
		k = n
	}

	dist := distuv.Binomial{N: float64(n), P: p}
	observed := dist.Prob(float64(k))

	// Relative tolerance guards against float noise when summing outcomes
	// of equal probability.
	const relTol = 1 + 1e-7
	var pval float64
	for i := 0; i <= n; i++ {
		if prob := dist.Prob(float64(i)); prob <= observed*relTol {
			pval += prob
		}
	}
	if pval > 1 {
		pval = 1
	}
	return pval
}
