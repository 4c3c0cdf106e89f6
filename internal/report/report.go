package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/cellatlas/scquery/internal/analysis"
)

// Subdirectories of the working directory, one per artifact family. The
// letter prefixes keep directory listings in reading order.
const (
	dirNearestDist  = "A_nearest_dist_per_db_type"
	dirTopLabelFreq = "B_top_5_label_frequencies"
	dirTopDistances = "C_nearest_5_distances"
	dirClassCharts  = "D_classification_histograms"
	dirEmbeddings   = "E_embeddings"
	dirEnrichment   = "F_enrichment"
	dirExports      = "exports"
)

// ErrExists is returned when an artifact path is already occupied and the
// writer is not allowed to overwrite.
var ErrExists = fmt.Errorf("report: artifact already exists")

// Writer produces the full set of run artifacts under one working directory.
type Writer struct {
	Dir       string
	Charts    *Charter
	Overwrite bool
}

// artifact resolves a path under the working directory, creating parent
// directories and enforcing the overwrite policy.
func (w *Writer) artifact(parts ...string) (string, error) {
	path := filepath.Join(append([]string{w.Dir}, parts...)...)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if !w.Overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("%w: %s", ErrExists, path)
		}
	}
	return path, nil
}

// sanitizeName turns a label or matrix name into a safe file-name component.
func sanitizeName(name string) string {
	r := strings.NewReplacer(" ", "_", ":", "_", "/", "_")
	return r.Replace(name)
}

// NearestDistanceCharts writes, per query group, a bar chart of the mean
// nearest distance to each database label, ordered from closest to farthest.
func (w *Writer) NearestDistanceCharts(agg *analysis.Aggregate) error {
	for _, group := range agg.GroupNames {
		means := agg.Groups[group].MeanNearestPerLabel()

		labels := make([]string, 0, len(means))
		for l := range means {
			labels = append(labels, l)
		}
		sort.Slice(labels, func(i, j int) bool {
			if means[labels[i]] != means[labels[j]] {
				return means[labels[i]] < means[labels[j]]
			}
			return labels[i] < labels[j]
		})
		values := make([]float64, len(labels))
		for i, l := range labels {
			values[i] = means[l]
		}

		path, err := w.artifact(dirNearestDist, sanitizeName(group)+".png")
		if err != nil {
			return err
		}
		title := fmt.Sprintf("mean nearest distance per database type: %s", group)
		if err := w.Charts.Bar(path, title, labels, values); err != nil {
			return fmt.Errorf("failed to render %s: %w", path, err)
		}
	}
	return nil
}

// TopLabelFrequencyCharts writes, per query group, a bar chart of how often
// each database label appears among the five nearest neighbors, most
// frequent first.
func (w *Writer) TopLabelFrequencyCharts(agg *analysis.Aggregate) error {
	for _, group := range agg.GroupNames {
		counts := make(map[string]float64)
		for _, l := range agg.Groups[group].TopLabels {
			counts[l]++
		}

		labels := make([]string, 0, len(counts))
		for l := range counts {
			labels = append(labels, l)
		}
		sort.Slice(labels, func(i, j int) bool {
			if counts[labels[i]] != counts[labels[j]] {
				return counts[labels[i]] > counts[labels[j]]
			}
			return labels[i] < labels[j]
		})
		values := make([]float64, len(labels))
		for i, l := range labels {
			values[i] = counts[l]
		}

		path, err := w.artifact(dirTopLabelFreq, sanitizeName(group)+".png")
		if err != nil {
			return err
		}
		title := fmt.Sprintf("top-5 neighbor label frequencies: %s", group)
		if err := w.Charts.Bar(path, title, labels, values); err != nil {
			return fmt.Errorf("failed to render %s: %w", path, err)
		}
	}
	return nil
}

// TopDistanceHistograms writes, per query group, a histogram of each query's
// mean distance to its five nearest neighbors.
func (w *Writer) TopDistanceHistograms(agg *analysis.Aggregate) error {
	for _, group := range agg.GroupNames {
		path, err := w.artifact(dirTopDistances, sanitizeName(group)+".png")
		if err != nil {
			return err
		}
		title := fmt.Sprintf("mean top-5 neighbor distance: %s", group)
		if err := w.Charts.Histogram(path, title, agg.Groups[group].MeanTop, 20); err != nil {
			return fmt.Errorf("failed to render %s: %w", path, err)
		}
	}
	return nil
}

// classificationBar renders the frequency of each predicted label in one
// classification list.
func (w *Writer) classificationBar(name, title string, classifications []string) error {
	if len(classifications) == 0 {
		return nil
	}
	counts := make(map[string]float64)
	for _, l := range classifications {
		counts[l]++
	}
	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})
	values := make([]float64, len(labels))
	for i, l := range labels {
		values[i] = counts[l]
	}

	path, err := w.artifact(dirClassCharts, name+".png")
	if err != nil {
		return err
	}
	if err := w.Charts.Bar(path, title, labels, values); err != nil {
		return fmt.Errorf("failed to render %s: %w", path, err)
	}
	return nil
}

// ClassificationCharts writes the majority-vote classification frequency
// charts: one overall, one per group, and one per cohort.
func (w *Writer) ClassificationCharts(agg *analysis.Aggregate) error {
	if err := w.classificationBar("overall", "classification frequencies: all queries", agg.Overall); err != nil {
		return err
	}
	for _, group := range agg.GroupNames {
		title := fmt.Sprintf("classification frequencies: %s", group)
		if err := w.classificationBar(sanitizeName(group), title, agg.Groups[group].Classifications); err != nil {
			return err
		}
	}
	if err := w.classificationBar("control_all", "classification frequencies: control cohort", agg.Control); err != nil {
		return err
	}
	return w.classificationBar("disease_all", "classification frequencies: disease cohort", agg.Disease)
}

// ContingencyCharts writes the cohort-comparison grouped bars, one for the
// full contingency table and one for the zero-filtered table.
func (w *Writer) ContingencyCharts(res *analysis.Result) error {
	type chart struct {
		name  string
		title string
		table analysis.Table
		pvals []float64
	}
	for _, c := range []chart{
		{"grouped_bar", "control vs disease classification fractions", res.Table, res.PValues},
		{"grouped_bar_non_zero", "control vs disease classification fractions (shared labels)", res.TableNoZeros, res.PValuesNoZeros},
	} {
		if len(c.table.Labels) == 0 {
			continue
		}
		path, err := w.artifact(dirClassCharts, c.name+".png")
		if err != nil {
			return err
		}
		control, disease := c.table.Fractions()
		if err := w.Charts.GroupedFractions(path, c.title, c.table.Labels, control, disease, c.pvals); err != nil {
			return fmt.Errorf("failed to render %s: %w", path, err)
		}
	}
	return nil
}

// EnrichmentArtifacts writes the target-count histogram over all queries and
// the plain-text list of enriched queries with their nearest neighbors.
func (w *Writer) EnrichmentArtifacts(records []analysis.Record, hits []analysis.EnrichedHit, targetName string) error {
	counts := make([]float64, len(records))
	for i, rec := range records {
		counts[i] = float64(rec.TargetCounts[0])
	}
	if len(counts) > 0 {
		path, err := w.artifact(dirEnrichment, sanitizeName(targetName)+"_vote_counts.png")
		if err != nil {
			return err
		}
		title := fmt.Sprintf("%s label count in top-100 neighbors", targetName)
		if err := w.Charts.Histogram(path, title, counts, 20); err != nil {
			return fmt.Errorf("failed to render %s: %w", path, err)
		}
	}

	path, err := w.artifact(dirEnrichment, sanitizeName(targetName)+"_nearest_hits.txt")
	if err != nil {
		return err
	}
	var b strings.Builder
	for _, hit := range hits {
		fmt.Fprintf(&b, "%s:\n", hit.QueryID)
		for _, id := range hit.NeighborIDs {
			fmt.Fprintf(&b, "\t%s\n", id)
		}
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// EmbeddingCharts projects an embedding matrix onto its first two principal
// components and writes one scatter colored by query group and one
// consolidated to cohorts.
func (w *Writer) EmbeddingCharts(name string, x *mat.Dense, groups []string, markers analysis.CohortMarkers) error {
	xy, err := ProjectPCA(x)
	if err != nil {
		return fmt.Errorf("failed to project %s: %w", name, err)
	}

	path, err := w.artifact(dirEmbeddings, sanitizeName(name)+"_pca.png")
	if err != nil {
		return err
	}
	if err := w.Charts.Scatter(path, fmt.Sprintf("PCA of %s", name), xy, groups); err != nil {
		return fmt.Errorf("failed to render %s: %w", path, err)
	}

	cohorts := make([]analysis.Cohort, len(groups))
	for i, g := range groups {
		cohorts[i] = analysis.ClassifyCohort(g, markers)
	}
	path, err = w.artifact(dirEmbeddings, sanitizeName(name)+"_pca_cohorts.png")
	if err != nil {
		return err
	}
	if err := w.Charts.CohortScatter(path, fmt.Sprintf("PCA of %s by cohort", name), xy, cohorts); err != nil {
		return fmt.Errorf("failed to render %s: %w", path, err)
	}
	return nil
}
