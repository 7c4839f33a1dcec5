package coverage

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/designers-bff/backend/internal/selection"
	"github.com/designers-bff/backend/internal/taxonomy"
	"github.com/designers-bff/backend/pkg/logger"
)

const (
	defaultMaxEntropyBits         = 5.0
	defaultTargetCoveragePercent  = 80.0
	coverageShareOfDiversityScore = 0.6
	entropyShareOfDiversityScore  = 0.4
)

// Config carries the per-attribute coverage targets and entropy
// normalization. EntropyBitsPerAttribute overrides win over MaxEntropyBits;
// when neither is set for an attribute, log2 of its vocabulary size is
// used, which stays correct as the taxonomy grows.
type Config struct {
	TargetCoverage          map[string]float64
	DefaultTargetCoverage   float64
	MaxEntropyBits          float64
	EntropyBitsPerAttribute map[string]float64
}

// AttributeMetrics summarizes one attribute over the selected subset.
type AttributeMetrics struct {
	CoveragePercent float64  `json:"coverage_percent"`
	Entropy         float64  `json:"entropy"`
	Gini            float64  `json:"gini"`
	TargetCoverage  float64  `json:"target_coverage"`
	MeetsTarget     bool     `json:"meets_target"`
	UncoveredValues []string `json:"uncovered_values"`
}

// Report is the coverage analysis for one selected subset. Unavailable
// lists attributes seen on candidates but absent from the snapshot; those
// are skipped rather than failing the batch.
type Report struct {
	SelectedCount         int                         `json:"selected_count"`
	Distribution          map[string]map[string]int   `json:"distribution"`
	Metrics               map[string]AttributeMetrics `json:"metrics"`
	Unavailable           []string                    `json:"unavailable,omitempty"`
	AvgCoveragePercent    float64                     `json:"avg_coverage_percent"`
	OverallDiversityScore float64                     `json:"overall_diversity_score"`
}

// Analyzer computes attribute distributions and the information-theoretic
// coverage metrics for a selected subset.
type Analyzer struct {
	cfg Config
}

func NewAnalyzer(cfg Config) *Analyzer {
	if cfg.DefaultTargetCoverage <= 0 {
		cfg.DefaultTargetCoverage = defaultTargetCoveragePercent
	}
	if cfg.MaxEntropyBits < 0 {
		cfg.MaxEntropyBits = defaultMaxEntropyBits
	}
	return &Analyzer{cfg: cfg}
}

// Analyze walks snapshot attributes in snapshot order so repeated runs
// over the same inputs produce identical reports. An empty subset yields
// an empty report with all scores at 0.
func (a *Analyzer) Analyze(selected []selection.Candidate, snapshot *taxonomy.Snapshot) *Report {
	report := &Report{
		SelectedCount: len(selected),
		Distribution:  make(map[string]map[string]int),
		Metrics:       make(map[string]AttributeMetrics),
	}

	if len(selected) == 0 {
		return report
	}

	report.Unavailable = a.unavailableAttributes(selected, snapshot)

	var coverageSum, normalizedEntropySum float64
	for _, attr := range snapshot.Attributes {
		dist := a.distribution(selected, attr.Name)
		report.Distribution[attr.Name] = dist

		covered := 0
		uncovered := make([]string, 0)
		for _, v := range attr.Values {
			if dist[v] > 0 {
				covered++
			} else {
				uncovered = append(uncovered, v)
			}
		}

		target := a.targetFor(attr.Name)
		m := AttributeMetrics{
			CoveragePercent: 100 * float64(covered) / float64(len(attr.Values)),
			Entropy:         shannonEntropy(dist),
			Gini:            giniCoefficient(dist),
			TargetCoverage:  target,
			UncoveredValues: uncovered,
		}
		m.MeetsTarget = m.CoveragePercent >= target
		report.Metrics[attr.Name] = m

		coverageSum += m.CoveragePercent
		normalizedEntropySum += normalizedEntropy(m.Entropy, a.entropyBitsFor(attr))
	}

	if n := len(snapshot.Attributes); n > 0 {
		report.AvgCoveragePercent = coverageSum / float64(n)
		avgNormalizedEntropy := normalizedEntropySum / float64(n)
		report.OverallDiversityScore = coverageShareOfDiversityScore*(report.AvgCoveragePercent/100) +
			entropyShareOfDiversityScore*avgNormalizedEntropy
	}

	logger.Debug("Coverage analyzed",
		zap.Int("selected", len(selected)),
		zap.Float64("avg_coverage_percent", report.AvgCoveragePercent),
		zap.Float64("overall_diversity_score", report.OverallDiversityScore),
	)

	return report
}

// distribution counts observed values for one attribute. Candidates
// missing the attribute land in the reserved unknown bucket, as do values
// outside the vocabulary; those buckets feed entropy and Gini but never
// count toward coverage.
func (a *Analyzer) distribution(selected []selection.Candidate, attribute string) map[string]int {
	dist := make(map[string]int)
	for _, c := range selected {
		value, ok := c.Attributes[attribute]
		if !ok || value == "" {
			value = taxonomy.UnknownValue
		}
		dist[value]++
	}
	return dist
}

func (a *Analyzer) unavailableAttributes(selected []selection.Candidate, snapshot *taxonomy.Snapshot) []string {
	seen := make(map[string]bool)
	for _, c := range selected {
		for name := range c.Attributes {
			if !snapshot.Has(name) {
				seen[name] = true
			}
		}
	}
	if len(seen) == 0 {
		return nil
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (a *Analyzer) targetFor(attribute string) float64 {
	if t, ok := a.cfg.TargetCoverage[attribute]; ok {
		return t
	}
	return a.cfg.DefaultTargetCoverage
}

func (a *Analyzer) entropyBitsFor(attr taxonomy.Attribute) float64 {
	if bits, ok := a.cfg.EntropyBitsPerAttribute[attr.Name]; ok && bits > 0 {
		return bits
	}
	if a.cfg.MaxEntropyBits > 0 {
		return a.cfg.MaxEntropyBits
	}
	return math.Max(1, math.Log2(float64(len(attr.Values))))
}

// shannonEntropy is −Σ p·log2(p) over observed-value frequencies. Empty
// and single-valued distributions are 0, never NaN. Summation runs in
// sorted-value order; map order would perturb the result by an ulp
// between runs and repeated reports must be byte-identical.
func shannonEntropy(dist map[string]int) float64 {
	counts := sortedCounts(dist)

	total := 0
	for _, count := range counts {
		total += count
	}
	if total == 0 || len(counts) < 2 {
		return 0
	}

	var entropy float64
	for _, count := range counts {
		if count == 0 {
			continue
		}
		p := float64(count) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// giniCoefficient uses the standard formula over value counts sorted
// ascending: 0 is perfectly even, approaching 1 is maximally skewed.
func giniCoefficient(dist map[string]int) float64 {
	if len(dist) == 0 {
		return 0
	}

	counts := make([]float64, 0, len(dist))
	var total float64
	for _, count := range sortedCounts(dist) {
		counts = append(counts, float64(count))
		total += float64(count)
	}
	if total == 0 {
		return 0
	}
	sort.Float64s(counts)

	n := float64(len(counts))
	var weighted float64
	for i, x := range counts {
		weighted += (2*float64(i+1) - n - 1) * x
	}
	return weighted / (n * total)
}

// sortedCounts flattens a distribution to counts in sorted-value order.
func sortedCounts(dist map[string]int) []int {
	values := make([]string, 0, len(dist))
	for value := range dist {
		values = append(values, value)
	}
	sort.Strings(values)

	counts := make([]int, 0, len(values))
	for _, value := range values {
		counts = append(counts, dist[value])
	}
	return counts
}

func normalizedEntropy(entropy, maxBits float64) float64 {
	if maxBits <= 0 {
		return 0
	}
	normalized := entropy / maxBits
	if normalized > 1 {
		return 1
	}
	return normalized
}
