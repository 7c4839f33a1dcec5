package selection

import (
	"time"

	"go.uber.org/zap"

	"github.com/designers-bff/backend/internal/taxonomy"
	"github.com/designers-bff/backend/pkg/logger"
)

const (
	defaultQualityWeight   = 0.6
	defaultDiversityWeight = 0.4
)

// Config tunes the quality/diversity trade-off. Zero values fall back to
// the defaults (weights 0.6/0.4, sigma 1.0).
type Config struct {
	TargetCount     int
	Sigma           float64
	QualityWeight   float64
	DiversityWeight float64
}

// Result is the outcome of one selection run. SelectedIDs are in selection
// order; RejectedIDs keep input order. The two sets partition the batch.
type Result struct {
	SelectedIDs         []string `json:"selected_ids"`
	RejectedIDs         []string `json:"rejected_ids"`
	DiversityScore      float64  `json:"diversity_score"`
	SelectionDurationMs int64    `json:"selection_duration_ms"`
}

// Selector greedily picks a diverse, high-quality subset from a scored
// batch. It trades a diversity-optimality guarantee for a deterministic
// O(target * n^2) loop over the similarity kernel; no eigendecomposition.
type Selector struct {
	cfg Config
}

func NewSelector(cfg Config) *Selector {
	if cfg.QualityWeight == 0 && cfg.DiversityWeight == 0 {
		cfg.QualityWeight = defaultQualityWeight
		cfg.DiversityWeight = defaultDiversityWeight
	}
	return &Selector{cfg: cfg}
}

// Select runs the greedy loop over the batch. An empty batch yields an
// empty result; a target above the batch size is clamped. Only a contract
// violation in the candidates produces an error.
func (s *Selector) Select(candidates []Candidate, snapshot *taxonomy.Snapshot) (*Result, error) {
	if err := ValidateCandidates(candidates); err != nil {
		return nil, err
	}

	start := time.Now()

	if len(candidates) == 0 {
		return &Result{
			SelectedIDs:         []string{},
			RejectedIDs:         []string{},
			SelectionDurationMs: time.Since(start).Milliseconds(),
		}, nil
	}

	target := s.cfg.TargetCount
	if target > len(candidates) {
		target = len(candidates)
	}
	if target < 0 {
		target = 0
	}

	builder := NewFeatureVectorBuilder(snapshot)
	vectors := builder.BuildAll(candidates)

	qualities := make([]float64, len(candidates))
	for i, c := range candidates {
		qualities[i] = c.QualityScore
	}
	kernel := BuildKernel(vectors, qualities, s.cfg.Sigma)

	selected := make([]int, 0, target)
	remaining := make([]int, len(candidates))
	for i := range remaining {
		remaining[i] = i
	}

	for len(selected) < target && len(remaining) > 0 {
		best := -1
		var bestGain float64

		for _, i := range remaining {
			gain := s.marginalGain(kernel, candidates, selected, i)
			if best == -1 || gainBeats(gain, bestGain, candidates[i], candidates[best]) {
				best = i
				bestGain = gain
			}
		}

		selected = append(selected, best)
		remaining = removeIndex(remaining, best)
	}

	result := &Result{
		SelectedIDs:         make([]string, 0, len(selected)),
		RejectedIDs:         make([]string, 0, len(remaining)),
		DiversityScore:      1 - kernel.MeanPairwiseSimilarity(selected),
		SelectionDurationMs: time.Since(start).Milliseconds(),
	}
	for _, i := range selected {
		result.SelectedIDs = append(result.SelectedIDs, candidates[i].ID)
	}
	for _, i := range remaining {
		result.RejectedIDs = append(result.RejectedIDs, candidates[i].ID)
	}

	logger.Debug("Selection completed",
		zap.Int("candidates", len(candidates)),
		zap.Int("selected", len(result.SelectedIDs)),
		zap.Float64("diversity_score", result.DiversityScore),
		zap.Int64("duration_ms", result.SelectionDurationMs),
	)

	return result, nil
}

// marginalGain scores candidate i against the current selection. With an
// empty selection the diversity penalty is 0, so the first pick reduces to
// highest quality.
func (s *Selector) marginalGain(kernel Kernel, candidates []Candidate, selected []int, i int) float64 {
	var penalty float64
	if len(selected) > 0 {
		for _, j := range selected {
			penalty += kernel[i][j]
		}
		penalty /= float64(len(selected))
	}

	return s.cfg.QualityWeight*(candidates[i].QualityScore/100.0) - s.cfg.DiversityWeight*penalty
}

// gainBeats decides whether (gain, challenger) wins over the incumbent.
// Ties break by higher raw quality, then lowest candidate id, which keeps
// selection byte-for-byte reproducible.
func gainBeats(gain, bestGain float64, challenger, incumbent Candidate) bool {
	if gain != bestGain {
		return gain > bestGain
	}
	if challenger.QualityScore != incumbent.QualityScore {
		return challenger.QualityScore > incumbent.QualityScore
	}
	return challenger.ID < incumbent.ID
}

func removeIndex(remaining []int, index int) []int {
	out := remaining[:0]
	for _, i := range remaining {
		if i != index {
			out = append(out, i)
		}
	}
	return out
}
