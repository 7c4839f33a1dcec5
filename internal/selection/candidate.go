package selection

import (
	"fmt"
	"math"
)

// Candidate is one quality-scored, attribute-tagged design from an
// over-generated batch. The quality score and attribute map come from the
// upstream vision validation step; a candidate is immutable within a run.
type Candidate struct {
	ID           string            `json:"id"`
	QualityScore float64           `json:"quality_score"`
	Attributes   map[string]string `json:"attributes"`
}

// ValidateCandidates enforces the input contract: ids present and unique,
// quality scores finite and within [0,100]. Missing attributes are NOT a
// contract violation; they fall into the unknown bucket downstream.
func ValidateCandidates(candidates []Candidate) error {
	seen := make(map[string]bool, len(candidates))
	for i, c := range candidates {
		if c.ID == "" {
			return fmt.Errorf("candidate %d: empty id", i)
		}
		if seen[c.ID] {
			return fmt.Errorf("candidate %q: duplicate id", c.ID)
		}
		seen[c.ID] = true

		if math.IsNaN(c.QualityScore) || math.IsInf(c.QualityScore, 0) {
			return fmt.Errorf("candidate %q: quality score is not a finite number", c.ID)
		}
		if c.QualityScore < 0 || c.QualityScore > 100 {
			return fmt.Errorf("candidate %q: quality score %.2f outside [0,100]", c.ID, c.QualityScore)
		}
	}
	return nil
}
