package gaps

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/designers-bff/backend/internal/coverage"
	"github.com/designers-bff/backend/internal/taxonomy"
	"github.com/designers-bff/backend/pkg/logger"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityRank orders severities low < medium < high < critical.
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

type Status string

const (
	StatusIdentified Status = "identified"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusIgnored    Status = "ignored"
)

// Gap is a persistent shortfall between observed and target coverage for
// one attribute. Lifecycle: identified when a report first shows a
// shortfall, in_progress once the prompt-construction side applies a
// boost, resolved when a later report meets the target. Ignored is an
// explicit external action, never automatic.
type Gap struct {
	ID                     string    `json:"id"`
	DesignerID             string    `json:"designer_id"`
	Attribute              string    `json:"attribute"`
	MissingValues          []string  `json:"missing_values"`
	UnderrepresentedValues []string  `json:"underrepresented_values"`
	Severity               Severity  `json:"severity"`
	Status                 Status    `json:"status"`
	CurrentCoverage        float64   `json:"current_coverage"`
	TargetCoverage         float64   `json:"target_coverage"`
	GapPercentage          float64   `json:"gap_percentage"`
	RecommendedBoost       float64   `json:"recommended_boost"`
	AppliedBoost           float64   `json:"applied_boost,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// Active reports whether the gap still needs attention.
func (g *Gap) Active() bool {
	return g.Status == StatusIdentified || g.Status == StatusInProgress
}

// TrackerConfig tunes gap classification. Zero values fall back to a max
// boost of 3.0 and an underrepresentation threshold of 5%.
type TrackerConfig struct {
	MaxBoostMultiplier        float64
	UnderrepresentedThreshold float64
}

// Tracker reconciles coverage reports against the known gap set for a
// designer. It owns classification and lifecycle transitions; persistence
// belongs to the storage collaborator.
type Tracker struct {
	cfg TrackerConfig
	now func() time.Time
}

func NewTracker(cfg TrackerConfig) *Tracker {
	if cfg.MaxBoostMultiplier <= 0 {
		cfg.MaxBoostMultiplier = 3.0
	}
	if cfg.UnderrepresentedThreshold <= 0 {
		cfg.UnderrepresentedThreshold = 0.05
	}
	return &Tracker{
		cfg: cfg,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Assess applies a new coverage report to the existing gap set and returns
// the updated set: refreshed active gaps, newly identified gaps, and gaps
// resolved by this report. A single passing report resolves a gap.
// Attributes with zero shortfall never produce a record.
func (t *Tracker) Assess(designerID string, report *coverage.Report, existing []Gap) []Gap {
	// Indices, not pointers: appending new gaps below may grow out's
	// backing array, which would strand writes through stale pointers.
	activeByAttribute := make(map[string]int)
	out := make([]Gap, 0, len(existing))
	for _, g := range existing {
		out = append(out, g)
		if g.Active() {
			activeByAttribute[g.Attribute] = len(out) - 1
		}
	}

	attributes := make([]string, 0, len(report.Metrics))
	for name := range report.Metrics {
		attributes = append(attributes, name)
	}
	sort.Strings(attributes)

	now := t.now()
	for _, attribute := range attributes {
		m := report.Metrics[attribute]
		gapPct := m.TargetCoverage - m.CoveragePercent
		idx, isTracked := activeByAttribute[attribute]

		if gapPct <= 0 {
			if isTracked {
				tracked := &out[idx]
				tracked.Status = StatusResolved
				tracked.CurrentCoverage = m.CoveragePercent
				tracked.GapPercentage = 0
				tracked.UpdatedAt = now
				logger.Info("Coverage gap resolved",
					zap.String("designer_id", designerID),
					zap.String("attribute", attribute),
					zap.Float64("coverage", m.CoveragePercent),
				)
			}
			continue
		}

		severity := classifySeverity(gapPct, len(m.UncoveredValues))
		boost := clampBoost(recommendedBoost(gapPct), t.cfg.MaxBoostMultiplier)
		under := t.underrepresented(report, attribute)

		if isTracked {
			tracked := &out[idx]
			tracked.MissingValues = m.UncoveredValues
			tracked.UnderrepresentedValues = under
			tracked.Severity = severity
			tracked.CurrentCoverage = m.CoveragePercent
			tracked.TargetCoverage = m.TargetCoverage
			tracked.GapPercentage = gapPct
			tracked.RecommendedBoost = boost
			tracked.UpdatedAt = now
			continue
		}

		out = append(out, Gap{
			ID:                     uuid.New().String(),
			DesignerID:             designerID,
			Attribute:              attribute,
			MissingValues:          m.UncoveredValues,
			UnderrepresentedValues: under,
			Severity:               severity,
			Status:                 StatusIdentified,
			CurrentCoverage:        m.CoveragePercent,
			TargetCoverage:         m.TargetCoverage,
			GapPercentage:          gapPct,
			RecommendedBoost:       boost,
			CreatedAt:              now,
			UpdatedAt:              now,
		})
		logger.Info("Coverage gap identified",
			zap.String("designer_id", designerID),
			zap.String("attribute", attribute),
			zap.String("severity", string(severity)),
			zap.Float64("gap_percentage", gapPct),
		)
	}

	return out
}

// MarkInProgress records that the external prompt-construction side has
// applied a boost for this gap.
func (t *Tracker) MarkInProgress(g *Gap, appliedBoost float64) {
	g.Status = StatusInProgress
	g.AppliedBoost = clampBoost(appliedBoost, t.cfg.MaxBoostMultiplier)
	g.UpdatedAt = t.now()
}

// Ignore is the explicit external opt-out for a gap.
func (t *Tracker) Ignore(g *Gap) {
	g.Status = StatusIgnored
	g.UpdatedAt = t.now()
}

// underrepresented lists vocabulary values whose share of the selected
// subset falls below the configured threshold. The unknown bucket is not a
// vocabulary value and never appears here.
func (t *Tracker) underrepresented(report *coverage.Report, attribute string) []string {
	if report.SelectedCount == 0 {
		return nil
	}

	var out []string
	for value, count := range report.Distribution[attribute] {
		if value == taxonomy.UnknownValue || count == 0 {
			continue
		}
		share := float64(count) / float64(report.SelectedCount)
		if share < t.cfg.UnderrepresentedThreshold {
			out = append(out, value)
		}
	}
	sort.Strings(out)
	return out
}

// classifySeverity checks the severity table top-down; first match wins.
func classifySeverity(gapPct float64, uncoveredCount int) Severity {
	switch {
	case gapPct >= 30 || uncoveredCount >= 5:
		return SeverityCritical
	case gapPct >= 15 || uncoveredCount >= 3:
		return SeverityHigh
	case gapPct >= 5 || uncoveredCount >= 1:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func recommendedBoost(gapPct float64) float64 {
	switch {
	case gapPct >= 30:
		return 2.0
	case gapPct >= 15:
		return 1.5
	case gapPct >= 5:
		return 1.2
	default:
		return 1.0
	}
}

func clampBoost(boost, max float64) float64 {
	if boost < 1.0 {
		return 1.0
	}
	if boost > max {
		return max
	}
	return boost
}
