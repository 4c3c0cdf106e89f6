package analysis

import (
	"sort"
	"testing"
)

func TestRankRowSortsAscending(t *testing.T) {
	distances := []float64{3.5, 0.1, 2.2, 0.9}
	labels := []string{"a", "b", "c", "d"}
	ids := []string{"i0", "i1", "i2", "i3"}

	rk := RankRow(distances, labels, ids)

	if !sort.Float64sAreSorted(rk.Distances) {
		t.Fatalf("distances not sorted: %v", rk.Distances)
	}
	wantLabels := []string{"b", "d", "c", "a"}
	wantIDs := []string{"i1", "i3", "i2", "i0"}
	for i := range wantLabels {
		if rk.Labels[i] != wantLabels[i] || rk.CellIDs[i] != wantIDs[i] {
			t.Fatalf("slices not index-aligned: %v / %v", rk.Labels, rk.CellIDs)
		}
	}

	// Re-sorting the output must exactly recover the input row's order.
	resorted := append([]float64(nil), distances...)
	sort.Float64s(resorted)
	for i := range resorted {
		if rk.Distances[i] != resorted[i] {
			t.Fatalf("rank output does not recover sorted distances")
		}
	}
}

func TestRankRowTiesKeepOriginalOrder(t *testing.T) {
	distances := []float64{1.0, 0.5, 0.5, 0.5}
	labels := []string{"w", "x", "y", "z"}
	ids := []string{"i0", "i1", "i2", "i3"}

	rk := RankRow(distances, labels, ids)

	want := []string{"i1", "i2", "i3", "i0"}
	for i := range want {
		if rk.CellIDs[i] != want[i] {
			t.Fatalf("ties not stable: got %v, want %v", rk.CellIDs, want)
		}
	}
}

func TestRankRowDoesNotMutateInput(t *testing.T) {
	distances := []float64{2, 1}
	RankRow(distances, []string{"a", "b"}, []string{"x", "y"})
	if distances[0] != 2 || distances[1] != 1 {
		t.Fatal("input distance row was mutated")
	}
}
