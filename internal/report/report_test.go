package report

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/cellatlas/scquery/internal/analysis"
	"github.com/cellatlas/scquery/pkg/colormap"
)

func testWriter(t *testing.T) *Writer {
	t.Helper()
	palette, err := colormap.NewClassPalette(map[string]string{
		"control_3m": "#1f77b4",
		"disease_3m": "#d62728",
	}, []string{"control_3m", "disease_3m"})
	if err != nil {
		t.Fatalf("failed to build palette: %v", err)
	}
	return &Writer{
		Dir:       t.TempDir(),
		Charts:    &Charter{Width: 400, Height: 300, Palette: palette},
		Overwrite: true,
	}
}

func testAggregate() (*analysis.Aggregate, []analysis.Record) {
	records := []analysis.Record{
		{
			Row: 0, QueryID: "q1", Group: "control_3m",
			NearestPerLabel: map[string]float64{"brain": 0.5, "liver": 3.0},
			TopLabels:       []string{"brain", "brain", "liver"},
			TopCellIDs:      []string{"d1", "d2", "d4"},
			MeanTop:         1.2, Predicted: "brain",
			TargetCounts: [2]int{80, 1},
		},
		{
			Row: 1, QueryID: "q2", Group: "disease_3m",
			NearestPerLabel: map[string]float64{"brain": 2.5, "liver": 0.2},
			TopLabels:       []string{"liver", "liver", "brain"},
			TopCellIDs:      []string{"d4", "d5", "d1"},
			MeanTop:         0.9, Predicted: "liver",
			TargetCounts: [2]int{10, 85},
		},
	}
	agg := analysis.AggregateRecords(records, analysis.CohortMarkers{Control: "control", Disease: "disease"})
	return agg, records
}

func assertPNG(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("artifact %s is empty", path)
	}
}

func TestCreateWorkingDirectory(t *testing.T) {
	base := t.TempDir()

	override := filepath.Join(base, "fixed")
	dir, err := CreateWorkingDirectory(override, "ignored")
	if err != nil {
		t.Fatalf("CreateWorkingDirectory failed: %v", err)
	}
	if dir != override {
		t.Errorf("override not honored: %s", dir)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("directory not created: %v", err)
	}

	prefix := filepath.Join(base, "runs")
	dir, err = CreateWorkingDirectory("", prefix)
	if err != nil {
		t.Fatalf("CreateWorkingDirectory failed: %v", err)
	}
	if filepath.Dir(dir) != prefix {
		t.Errorf("timestamped directory %s not under %s", dir, prefix)
	}
}

func TestArtifactOverwritePolicy(t *testing.T) {
	w := testWriter(t)
	w.Overwrite = false

	path, err := w.artifact("sub", "a.txt")
	if err != nil {
		t.Fatalf("first artifact failed: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := w.artifact("sub", "a.txt"); err == nil {
		t.Fatal("expected existing artifact to be rejected")
	}

	w.Overwrite = true
	if _, err := w.artifact("sub", "a.txt"); err != nil {
		t.Fatalf("overwrite not allowed: %v", err)
	}
}

func TestGroupCharts(t *testing.T) {
	w := testWriter(t)
	agg, records := testAggregate()

	if err := w.NearestDistanceCharts(agg); err != nil {
		t.Fatalf("NearestDistanceCharts failed: %v", err)
	}
	if err := w.TopLabelFrequencyCharts(agg); err != nil {
		t.Fatalf("TopLabelFrequencyCharts failed: %v", err)
	}
	if err := w.TopDistanceHistograms(agg); err != nil {
		t.Fatalf("TopDistanceHistograms failed: %v", err)
	}
	if err := w.ClassificationCharts(agg); err != nil {
		t.Fatalf("ClassificationCharts failed: %v", err)
	}

	for _, rel := range []string{
		filepath.Join(dirNearestDist, "control_3m.png"),
		filepath.Join(dirTopLabelFreq, "disease_3m.png"),
		filepath.Join(dirTopDistances, "control_3m.png"),
		filepath.Join(dirClassCharts, "overall.png"),
		filepath.Join(dirClassCharts, "control_all.png"),
		filepath.Join(dirClassCharts, "disease_all.png"),
	} {
		assertPNG(t, filepath.Join(w.Dir, rel))
	}

	res := &analysis.Result{Records: records, Agg: agg}
	res.Table = analysis.BuildTable(agg.Control, agg.Disease)
	res.PValues = res.Table.PValues()
	res.TableNoZeros = res.Table.DropZeroColumns()
	res.PValuesNoZeros = res.TableNoZeros.PValues()
	if err := w.ContingencyCharts(res); err != nil {
		t.Fatalf("ContingencyCharts failed: %v", err)
	}
	assertPNG(t, filepath.Join(w.Dir, dirClassCharts, "grouped_bar.png"))
}

func TestEnrichmentArtifacts(t *testing.T) {
	w := testWriter(t)
	_, records := testAggregate()
	hits := analysis.SelectEnriched(records, 70)

	if err := w.EnrichmentArtifacts(records, hits, "UBERON:0000955 brain"); err != nil {
		t.Fatalf("EnrichmentArtifacts failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(w.Dir, dirEnrichment, "UBERON_0000955_brain_nearest_hits.txt"))
	if err != nil {
		t.Fatalf("hit report missing: %v", err)
	}
	want := "q1:\n\td1\n\td2\n\td4\n"
	if string(data) != want {
		t.Errorf("hit report = %q, want %q", data, want)
	}
	assertPNG(t, filepath.Join(w.Dir, dirEnrichment, "UBERON_0000955_brain_vote_counts.png"))
}

func TestEmbeddingCharts(t *testing.T) {
	w := testWriter(t)

	x := mat.NewDense(6, 3, []float64{
		0, 0, 1,
		0.1, 0.2, 1,
		0.2, 0.1, 1,
		5, 5, 1,
		5.1, 5.2, 1,
		5.2, 5.1, 1,
	})
	groups := []string{"control_3m", "control_3m", "control_3m", "disease_3m", "disease_3m", "disease_3m"}

	err := w.EmbeddingCharts("original_query_data", x, groups, analysis.CohortMarkers{Control: "control", Disease: "disease"})
	if err != nil {
		t.Fatalf("EmbeddingCharts failed: %v", err)
	}
	assertPNG(t, filepath.Join(w.Dir, dirEmbeddings, "original_query_data_pca.png"))
	assertPNG(t, filepath.Join(w.Dir, dirEmbeddings, "original_query_data_pca_cohorts.png"))
}

func TestProjectPCASeparatesClusters(t *testing.T) {
	x := mat.NewDense(4, 3, []float64{
		0, 0, 0,
		0.1, 0, 0,
		10, 10, 10,
		10.1, 10, 10,
	})
	xy, err := ProjectPCA(x)
	if err != nil {
		t.Fatalf("ProjectPCA failed: %v", err)
	}
	if len(xy) != 4 {
		t.Fatalf("expected 4 points, got %d", len(xy))
	}

	// The first component separates the two clusters.
	same := math.Abs(xy[0][0] - xy[1][0])
	cross := math.Abs(xy[0][0] - xy[2][0])
	if cross <= same {
		t.Errorf("clusters not separated on first component: within=%v across=%v", same, cross)
	}
}

func TestProjectPCATooSmall(t *testing.T) {
	if _, err := ProjectPCA(mat.NewDense(1, 3, nil)); err == nil {
		t.Error("expected error for a single row")
	}
	if _, err := ProjectPCA(mat.NewDense(3, 1, nil)); err == nil {
		t.Error("expected error for a single column")
	}
}

func TestContingencyCSV(t *testing.T) {
	w := testWriter(t)

	table := analysis.Table{
		Labels:  []string{"brain", "liver"},
		Control: []float64{2, 1},
		Disease: []float64{0, 3},
	}
	pvals := table.PValues()

	if err := w.ContingencyCSV("contingency", table, pvals); err != nil {
		t.Fatalf("ContingencyCSV failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(w.Dir, dirExports, "contingency.csv"))
	if err != nil {
		t.Fatalf("CSV missing: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[1], "brain,2,0,") {
		t.Errorf("unexpected brain row: %s", lines[1])
	}

	if err := w.ContingencyCSV("bad", table, pvals[:1]); err == nil {
		t.Error("expected error for misaligned p-values")
	}
}

func TestClassificationCSV(t *testing.T) {
	w := testWriter(t)
	_, records := testAggregate()

	if err := w.ClassificationCSV(records); err != nil {
		t.Fatalf("ClassificationCSV failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(w.Dir, dirExports, "classifications.csv"))
	if err != nil {
		t.Fatalf("CSV missing: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[1], "q1,control_3m,brain,") {
		t.Errorf("unexpected first row: %s", lines[1])
	}
}

func TestMatrixRoundTrip(t *testing.T) {
	w := testWriter(t)

	x := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	if err := w.WriteMatrix("query_reduced", x); err != nil {
		t.Fatalf("WriteMatrix failed: %v", err)
	}

	got, err := ReadMatrix(filepath.Join(w.Dir, dirExports, "query_reduced.f32.zst"))
	if err != nil {
		t.Fatalf("ReadMatrix failed: %v", err)
	}
	rows, cols := got.Dims()
	if rows != 2 || cols != 3 {
		t.Fatalf("unexpected dims %dx%d", rows, cols)
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if got.At(i, j) != x.At(i, j) {
				t.Errorf("value (%d,%d) = %v, want %v", i, j, got.At(i, j), x.At(i, j))
			}
		}
	}
}
