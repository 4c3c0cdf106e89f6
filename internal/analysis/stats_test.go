package analysis

import (
	"math"
	"testing"
)

var testTargets = [2]TargetPair{
	{Name: "brain/cortex", Labels: []string{"brain", "cortex"}},
	{Name: "bone/osteocyte", Labels: []string{"bone", "osteocyte"}},
}

func TestExtractRecordSpecScenario(t *testing.T) {
	// Database with 3 rows labeled A, A, B at distances 1.0, 2.0, 0.5.
	rk := RankRow(
		[]float64{1.0, 2.0, 0.5},
		[]string{"A", "A", "B"},
		[]string{"c1", "c2", "c3"},
	)

	rec := ExtractRecord(0, "q0", "control_3m", rk, testTargets, 5, 100)

	// Sorted order is B(0.5), A(1.0), A(2.0).
	if rec.NearestPerLabel["B"] != 0.5 || rec.NearestPerLabel["A"] != 1.0 {
		t.Errorf("unexpected nearest-per-label: %v", rec.NearestPerLabel)
	}
	if len(rec.NearestPerLabel) != 2 {
		t.Errorf("every distinct label must appear exactly once, got %v", rec.NearestPerLabel)
	}

	// Majority over the vote window uses all 3 rows since fewer than 100.
	if rec.Predicted != "A" {
		t.Errorf("predicted %q, want A (count 2 vs 1)", rec.Predicted)
	}

	// Top window truncates to the 3 available rows.
	if len(rec.TopLabels) != 3 || rec.TopLabels[0] != "B" {
		t.Errorf("unexpected top labels: %v", rec.TopLabels)
	}
	wantMean := (0.5 + 1.0 + 2.0) / 3
	if math.Abs(rec.MeanTop-wantMean) > 1e-12 {
		t.Errorf("mean top distance %v, want %v", rec.MeanTop, wantMean)
	}
}

func TestExtractRecordTargetCounts(t *testing.T) {
	rk := RankRow(
		[]float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6},
		[]string{"brain", "cortex", "liver", "brain", "bone", "osteocyte"},
		[]string{"c1", "c2", "c3", "c4", "c5", "c6"},
	)

	rec := ExtractRecord(0, "q0", "g", rk, testTargets, 5, 100)
	if rec.TargetCounts[0] != 3 {
		t.Errorf("target A count %d, want 3", rec.TargetCounts[0])
	}
	if rec.TargetCounts[1] != 2 {
		t.Errorf("target B count %d, want 2", rec.TargetCounts[1])
	}

	// Counts are bounded by the vote window.
	rec = ExtractRecord(0, "q0", "g", rk, testTargets, 5, 3)
	if rec.TargetCounts[0] != 2 || rec.TargetCounts[1] != 0 {
		t.Errorf("windowed target counts %v, want [2 0]", rec.TargetCounts)
	}
}

func TestNearestPerLabelCoversAllRows(t *testing.T) {
	// The nearest-per-label scan covers every database row, not just the
	// top windows.
	n := 250
	distances := make([]float64, n)
	labels := make([]string, n)
	ids := make([]string, n)
	for i := range distances {
		distances[i] = float64(i)
		labels[i] = "common"
		ids[i] = "c"
	}
	labels[n-1] = "rare"

	rk := RankRow(distances, labels, ids)
	rec := ExtractRecord(0, "q", "g", rk, testTargets, 5, 100)

	if _, ok := rec.NearestPerLabel["rare"]; !ok {
		t.Fatal("label beyond the top-100 window missing from nearest-per-label")
	}
	if rec.NearestPerLabel["rare"] != float64(n-1) {
		t.Errorf("rare label distance %v, want %v", rec.NearestPerLabel["rare"], float64(n-1))
	}
}

func TestClassifyMajority(t *testing.T) {
	got := Classify([]string{"B", "A", "A"})
	if got != "A" {
		t.Errorf("Classify = %q, want A", got)
	}
}

func TestClassifyTieBreakClosestRankWins(t *testing.T) {
	// Two labels tie at two occurrences each; B's first occurrence is
	// nearer the query.
	if got := Classify([]string{"B", "A", "A", "B"}); got != "B" {
		t.Errorf("Classify = %q, want B", got)
	}
	if got := Classify([]string{"A", "B", "B", "A"}); got != "A" {
		t.Errorf("Classify = %q, want A", got)
	}

	// Three-way tie, three occurrences each at interleaved ranks.
	window := []string{"C", "A", "B", "A", "B", "C", "B", "C", "A"}
	if got := Classify(window); got != "C" {
		t.Errorf("Classify = %q, want C", got)
	}
}

func TestClassifyResultAlwaysInWindow(t *testing.T) {
	windows := [][]string{
		{"X"},
		{"X", "Y"},
		{"q", "r", "s", "q"},
	}
	for _, w := range windows {
		got := Classify(w)
		found := false
		for _, l := range w {
			if l == got {
				found = true
			}
		}
		if !found {
			t.Errorf("Classify(%v) = %q, not a member of the window", w, got)
		}
	}

	if got := Classify(nil); got != "" {
		t.Errorf("Classify(nil) = %q, want empty", got)
	}
}
