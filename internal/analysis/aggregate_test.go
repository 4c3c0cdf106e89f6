package analysis

import (
	"math"
	"reflect"
	"testing"
)

var testMarkers = CohortMarkers{Control: "control", Disease: "disease"}

func TestClassifyCohort(t *testing.T) {
	cases := []struct {
		group string
		want  Cohort
	}{
		{"control_3m", CohortControl},
		{"control_4m_2w", CohortControl},
		{"disease_3m_1w", CohortDisease},
		{"mystery_sample", CohortUnclassified},
		{"", CohortUnclassified},
	}
	for _, c := range cases {
		if got := ClassifyCohort(c.group, testMarkers); got != c.want {
			t.Errorf("ClassifyCohort(%q) = %v, want %v", c.group, got, c.want)
		}
	}
}

func TestClassifyCohortEmptyMarkers(t *testing.T) {
	// Empty markers never match; everything is unclassified rather than
	// matching the empty substring.
	if got := ClassifyCohort("anything", CohortMarkers{}); got != CohortUnclassified {
		t.Errorf("ClassifyCohort with empty markers = %v, want unclassified", got)
	}
}

func makeRecord(group, predicted string, nearest map[string]float64, top []string, meanTop float64) Record {
	return Record{
		Group:           group,
		Predicted:       predicted,
		NearestPerLabel: nearest,
		TopLabels:       top,
		MeanTop:         meanTop,
	}
}

func TestAggregateRecords(t *testing.T) {
	records := []Record{
		makeRecord("control_3m", "A", map[string]float64{"A": 1, "B": 3}, []string{"A", "B"}, 1.5),
		makeRecord("control_3m", "B", map[string]float64{"A": 3, "B": 1}, []string{"B", "B"}, 2.5),
		makeRecord("disease_3m", "B", map[string]float64{"A": 2, "B": 2}, []string{"B", "A"}, 2.0),
		makeRecord("oddball", "C", map[string]float64{"A": 9}, []string{"C"}, 9.0),
	}

	agg := AggregateRecords(records, testMarkers)

	if !reflect.DeepEqual(agg.GroupNames, []string{"control_3m", "disease_3m", "oddball"}) {
		t.Fatalf("unexpected group names: %v", agg.GroupNames)
	}

	ctrl := agg.Groups["control_3m"]
	if len(ctrl.Classifications) != 2 || ctrl.Classifications[0] != "A" || ctrl.Classifications[1] != "B" {
		t.Errorf("unexpected control classifications: %v", ctrl.Classifications)
	}
	if !reflect.DeepEqual(ctrl.TopLabels, []string{"A", "B", "B", "B"}) {
		t.Errorf("unexpected pooled top labels: %v", ctrl.TopLabels)
	}

	means := ctrl.MeanNearestPerLabel()
	if math.Abs(means["A"]-2) > 1e-12 || math.Abs(means["B"]-2) > 1e-12 {
		t.Errorf("unexpected mean nearest per label: %v", means)
	}

	// Cohort lists: oddball excluded from both, present in overall.
	if !reflect.DeepEqual(agg.Control, []string{"A", "B"}) {
		t.Errorf("unexpected control list: %v", agg.Control)
	}
	if !reflect.DeepEqual(agg.Disease, []string{"B"}) {
		t.Errorf("unexpected disease list: %v", agg.Disease)
	}
	if !reflect.DeepEqual(agg.Overall, []string{"A", "B", "B", "C"}) {
		t.Errorf("unexpected overall list: %v", agg.Overall)
	}
}
