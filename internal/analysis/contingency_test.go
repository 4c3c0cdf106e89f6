package analysis

import (
	"math"
	"reflect"
	"testing"
)

func TestBuildTableSpecScenario(t *testing.T) {
	control := []string{"X", "X", "Y"}
	disease := []string{"X", "Y", "Y"}

	tab := BuildTable(control, disease)

	if !reflect.DeepEqual(tab.Labels, []string{"X", "Y"}) {
		t.Fatalf("unexpected labels: %v", tab.Labels)
	}
	if tab.Control[0] != 2 || tab.Control[1] != 1 {
		t.Errorf("unexpected control counts: %v", tab.Control)
	}
	if tab.Disease[0] != 1 || tab.Disease[1] != 2 {
		t.Errorf("unexpected disease counts: %v", tab.Disease)
	}

	ctrl, dis := tab.Fractions()
	if math.Abs(ctrl[0]-2.0/3.0) > 1e-12 || math.Abs(dis[1]-2.0/3.0) > 1e-12 {
		t.Errorf("unexpected fractions: %v / %v", ctrl, dis)
	}

	pvals := tab.PValues()
	// Column X: floor(1000*2/3)=666 successes of 666+333=999 trials.
	want := BinomTest(666, 999, 0.5)
	if math.Abs(pvals[0]-want) > 1e-15 {
		t.Errorf("p-value %v, want %v", pvals[0], want)
	}
	if pvals[0] > 1e-10 {
		t.Errorf("666/999 split should be highly significant, got %v", pvals[0])
	}
}

func TestFractionsSumToOne(t *testing.T) {
	tab := BuildTable(
		[]string{"A", "A", "B", "C", "C", "C"},
		[]string{"A", "B", "B", "B", "D"},
	)

	for _, pass := range []Table{tab, tab.DropZeroColumns()} {
		ctrl, dis := pass.Fractions()
		var sc, sd float64
		for i := range ctrl {
			sc += ctrl[i]
			sd += dis[i]
		}
		if math.Abs(sc-1) > 1e-12 {
			t.Errorf("control fractions sum to %v", sc)
		}
		if math.Abs(sd-1) > 1e-12 {
			t.Errorf("disease fractions sum to %v", sd)
		}
	}
}

func TestFractionsEmptyCohortGuarded(t *testing.T) {
	tab := BuildTable([]string{"A"}, nil)
	_, dis := tab.Fractions()
	for _, f := range dis {
		if f != 0 {
			t.Fatalf("empty cohort should yield zero fractions, got %v", dis)
		}
	}
	// p-values on a zero total must not panic and report 1 for the
	// undefined column.
	pvals := tab.PValues()
	if pvals[0] != BinomTest(1000, 1000, 0.5) {
		t.Errorf("unexpected p-value for one-sided table: %v", pvals[0])
	}
}

func TestDropZeroColumns(t *testing.T) {
	tab := BuildTable(
		[]string{"A", "B"},
		[]string{"A", "C"},
	)
	// B is control-only, C is disease-only; both columns have a zero.
	filtered := tab.DropZeroColumns()
	if !reflect.DeepEqual(filtered.Labels, []string{"A"}) {
		t.Fatalf("unexpected filtered labels: %v", filtered.Labels)
	}
	if filtered.Control[0] != 1 || filtered.Disease[0] != 1 {
		t.Errorf("unexpected filtered counts: %v / %v", filtered.Control, filtered.Disease)
	}

	// The original table is unchanged.
	if len(tab.Labels) != 3 {
		t.Errorf("DropZeroColumns mutated its receiver: %v", tab.Labels)
	}
}

func TestBinomTest(t *testing.T) {
	// A perfectly balanced outcome is not significant at all.
	if p := BinomTest(5, 10, 0.5); math.Abs(p-1) > 1e-9 {
		t.Errorf("BinomTest(5,10) = %v, want 1", p)
	}

	// Extreme outcome: only k=0 and k=10 are as unlikely, p = 2*0.5^10.
	if p := BinomTest(0, 10, 0.5); math.Abs(p-2*math.Pow(0.5, 10)) > 1e-12 {
		t.Errorf("BinomTest(0,10) = %v, want %v", p, 2*math.Pow(0.5, 10))
	}

	// Symmetry under k -> n-k at p=0.5.
	if a, b := BinomTest(3, 10, 0.5), BinomTest(7, 10, 0.5); math.Abs(a-b) > 1e-12 {
		t.Errorf("BinomTest not symmetric: %v vs %v", a, b)
	}

	// Undefined inputs are guarded.
	if p := BinomTest(0, 0, 0.5); p != 1 {
		t.Errorf("BinomTest(0,0) = %v, want 1", p)
	}
}
