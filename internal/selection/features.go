package selection

import (
	"github.com/designers-bff/backend/internal/taxonomy"
)

// Vector is a candidate's one-hot feature encoding. Layout is one
// contiguous block per snapshot attribute, vocabulary order, with the
// reserved unknown slot last in each block. Quality is deliberately not
// part of the vector; it lives on the kernel diagonal instead.
type Vector []float64

// FeatureVectorBuilder maps candidates to fixed-length vectors against one
// frozen taxonomy snapshot. Pure; two builds of the same candidate against
// the same snapshot are identical.
type FeatureVectorBuilder struct {
	snapshot *taxonomy.Snapshot
}

func NewFeatureVectorBuilder(snapshot *taxonomy.Snapshot) *FeatureVectorBuilder {
	return &FeatureVectorBuilder{snapshot: snapshot}
}

// Build encodes one candidate. A value missing from the candidate or
// absent from the attribute's vocabulary lands in the unknown slot; Build
// never fails.
func (b *FeatureVectorBuilder) Build(c Candidate) Vector {
	vector := make(Vector, 0, b.snapshot.Dimension())

	for _, attr := range b.snapshot.Attributes {
		block := make([]float64, len(attr.Values)+1)

		value, ok := c.Attributes[attr.Name]
		hot := len(attr.Values) // unknown slot
		if ok {
			for i, v := range attr.Values {
				if v == value {
					hot = i
					break
				}
			}
		}
		block[hot] = 1.0

		vector = append(vector, block...)
	}

	return vector
}

// BuildAll encodes a batch in input order.
func (b *FeatureVectorBuilder) BuildAll(candidates []Candidate) []Vector {
	vectors := make([]Vector, len(candidates))
	for i, c := range candidates {
		vectors[i] = b.Build(c)
	}
	return vectors
}
