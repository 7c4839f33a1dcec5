package selection

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSelectFirstPicksByQuality(t *testing.T) {
	// All candidates share one feature vector, so diversity penalties are
	// uniform and the greedy loop reduces to quality order.
	attrs := map[string]string{"garmentType": "dress", "colorPalette": "warm"}
	candidates := []Candidate{
		{ID: "c-90", QualityScore: 90, Attributes: attrs},
		{ID: "c-85", QualityScore: 85, Attributes: attrs},
		{ID: "c-80", QualityScore: 80, Attributes: attrs},
		{ID: "c-40", QualityScore: 40, Attributes: attrs},
		{ID: "c-95", QualityScore: 95, Attributes: attrs},
	}

	result, err := NewSelector(Config{TargetCount: 3}).Select(candidates, testSnapshot())
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	if diff := cmp.Diff([]string{"c-95", "c-90", "c-85"}, result.SelectedIDs); diff != "" {
		t.Errorf("SelectedIDs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"c-80", "c-40"}, result.RejectedIDs); diff != "" {
		t.Errorf("RejectedIDs mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectPrefersDiversityOverNearDuplicate(t *testing.T) {
	candidates := []Candidate{
		{ID: "a1", QualityScore: 90, Attributes: map[string]string{"garmentType": "dress"}},
		{ID: "a2", QualityScore: 88, Attributes: map[string]string{"garmentType": "dress"}},
		{ID: "b1", QualityScore: 70, Attributes: map[string]string{"garmentType": "pants"}},
	}

	result, err := NewSelector(Config{TargetCount: 2}).Select(candidates, testSnapshot())
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	// a2 duplicates a1's features; the lower-quality but distinct b1 wins
	// the second slot.
	if diff := cmp.Diff([]string{"a1", "b1"}, result.SelectedIDs); diff != "" {
		t.Errorf("SelectedIDs mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectTargetAboveBatchSelectsAll(t *testing.T) {
	candidates := []Candidate{
		{ID: "c1", QualityScore: 80, Attributes: map[string]string{"garmentType": "dress"}},
		{ID: "c2", QualityScore: 70, Attributes: map[string]string{"garmentType": "top"}},
		{ID: "c3", QualityScore: 60, Attributes: map[string]string{"garmentType": "pants"}},
		{ID: "c4", QualityScore: 50, Attributes: map[string]string{"colorPalette": "cool"}},
	}

	result, err := NewSelector(Config{TargetCount: 10}).Select(candidates, testSnapshot())
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	if len(result.SelectedIDs) != 4 {
		t.Errorf("selected %d candidates, want all 4", len(result.SelectedIDs))
	}
	if len(result.RejectedIDs) != 0 {
		t.Errorf("rejected %d candidates, want 0", len(result.RejectedIDs))
	}
}

func TestSelectEmptyBatch(t *testing.T) {
	result, err := NewSelector(Config{TargetCount: 5}).Select(nil, testSnapshot())
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	if len(result.SelectedIDs) != 0 || len(result.RejectedIDs) != 0 {
		t.Errorf("empty batch selected %v rejected %v, want empty", result.SelectedIDs, result.RejectedIDs)
	}
	if result.DiversityScore != 0 {
		t.Errorf("DiversityScore = %v, want 0", result.DiversityScore)
	}
}

func TestSelectDeterministicAcrossInputOrder(t *testing.T) {
	candidates := []Candidate{
		{ID: "c1", QualityScore: 82, Attributes: map[string]string{"garmentType": "dress", "colorPalette": "warm"}},
		{ID: "c2", QualityScore: 78, Attributes: map[string]string{"garmentType": "top", "colorPalette": "cool"}},
		{ID: "c3", QualityScore: 74, Attributes: map[string]string{"garmentType": "pants", "colorPalette": "warm"}},
		{ID: "c4", QualityScore: 82, Attributes: map[string]string{"garmentType": "dress", "colorPalette": "cool"}},
		{ID: "c5", QualityScore: 66, Attributes: map[string]string{"garmentType": "top", "colorPalette": "warm"}},
	}
	reversed := make([]Candidate, len(candidates))
	for i, c := range candidates {
		reversed[len(candidates)-1-i] = c
	}

	selector := NewSelector(Config{TargetCount: 3})

	first, err := selector.Select(candidates, testSnapshot())
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	second, err := selector.Select(reversed, testSnapshot())
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	if diff := cmp.Diff(first.SelectedIDs, second.SelectedIDs); diff != "" {
		t.Errorf("selection depends on input order (-original +reversed):\n%s", diff)
	}
	if first.DiversityScore != second.DiversityScore {
		t.Errorf("DiversityScore differs: %v vs %v", first.DiversityScore, second.DiversityScore)
	}
}

func TestSelectQualityTieBreaksByID(t *testing.T) {
	attrs := map[string]string{"garmentType": "dress"}
	candidates := []Candidate{
		{ID: "z", QualityScore: 90, Attributes: attrs},
		{ID: "a", QualityScore: 90, Attributes: attrs},
		{ID: "m", QualityScore: 90, Attributes: attrs},
	}

	result, err := NewSelector(Config{TargetCount: 2}).Select(candidates, testSnapshot())
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	if diff := cmp.Diff([]string{"a", "m"}, result.SelectedIDs); diff != "" {
		t.Errorf("SelectedIDs mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectRejectsContractViolations(t *testing.T) {
	tests := []struct {
		name       string
		candidates []Candidate
	}{
		{
			name:       "empty id",
			candidates: []Candidate{{ID: "", QualityScore: 50}},
		},
		{
			name: "duplicate id",
			candidates: []Candidate{
				{ID: "c1", QualityScore: 50},
				{ID: "c1", QualityScore: 60},
			},
		},
		{
			name:       "quality above range",
			candidates: []Candidate{{ID: "c1", QualityScore: 101}},
		},
		{
			name:       "negative quality",
			candidates: []Candidate{{ID: "c1", QualityScore: -1}},
		},
	}

	selector := NewSelector(Config{TargetCount: 1})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := selector.Select(tt.candidates, testSnapshot()); err == nil {
				t.Error("Select() expected contract violation error")
			}
		})
	}
}

func TestSelectDiversityScoreBounds(t *testing.T) {
	candidates := []Candidate{
		{ID: "c1", QualityScore: 80, Attributes: map[string]string{"garmentType": "dress"}},
		{ID: "c2", QualityScore: 75, Attributes: map[string]string{"garmentType": "top"}},
		{ID: "c3", QualityScore: 70, Attributes: map[string]string{"garmentType": "pants"}},
	}

	result, err := NewSelector(Config{TargetCount: 3}).Select(candidates, testSnapshot())
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if result.DiversityScore < 0 || result.DiversityScore > 1 {
		t.Errorf("DiversityScore = %v outside [0,1]", result.DiversityScore)
	}

	// A selection of one has no pairs, so the score is defined as 0.
	single, err := NewSelector(Config{TargetCount: 1}).Select(candidates, testSnapshot())
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if single.DiversityScore != 0 {
		t.Errorf("single-selection DiversityScore = %v, want 0", single.DiversityScore)
	}
}
