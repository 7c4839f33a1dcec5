package selection

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/designers-bff/backend/internal/taxonomy"
)

func testSnapshot() *taxonomy.Snapshot {
	return &taxonomy.Snapshot{
		Version: "test",
		Attributes: []taxonomy.Attribute{
			{Name: "garmentType", Values: []string{"dress", "top", "pants"}},
			{Name: "colorPalette", Values: []string{"warm", "cool"}},
		},
	}
}

func TestFeatureVectorBuild(t *testing.T) {
	builder := NewFeatureVectorBuilder(testSnapshot())

	tests := []struct {
		name      string
		candidate Candidate
		want      Vector
	}{
		{
			name: "both values in vocabulary",
			candidate: Candidate{ID: "c1", Attributes: map[string]string{
				"garmentType":  "top",
				"colorPalette": "warm",
			}},
			want: Vector{0, 1, 0, 0, 1, 0, 0},
		},
		{
			name: "out-of-vocabulary value lands in unknown slot",
			candidate: Candidate{ID: "c2", Attributes: map[string]string{
				"garmentType":  "cape",
				"colorPalette": "cool",
			}},
			want: Vector{0, 0, 0, 1, 0, 1, 0},
		},
		{
			name:      "missing attributes land in unknown slots",
			candidate: Candidate{ID: "c3"},
			want:      Vector{0, 0, 0, 1, 0, 0, 1},
		},
		{
			name: "attribute outside the snapshot is ignored",
			candidate: Candidate{ID: "c4", Attributes: map[string]string{
				"garmentType":   "dress",
				"colorPalette":  "cool",
				"fabricTexture": "silk",
			}},
			want: Vector{1, 0, 0, 0, 0, 1, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := builder.Build(tt.candidate)
			if len(got) != testSnapshot().Dimension() {
				t.Fatalf("vector length = %d, want %d", len(got), testSnapshot().Dimension())
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Build() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFeatureVectorBuildDeterministic(t *testing.T) {
	builder := NewFeatureVectorBuilder(testSnapshot())
	c := Candidate{ID: "c1", Attributes: map[string]string{"garmentType": "pants", "colorPalette": "cool"}}

	first := builder.Build(c)
	second := builder.Build(c)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated builds differ (-first +second):\n%s", diff)
	}
}
