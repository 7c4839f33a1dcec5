// Package curation orchestrates one selection run end to end: taxonomy
// resolution, diversity selection, coverage analysis, and gap
// reconciliation, with the result persisted atomically.
package curation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/designers-bff/backend/internal/coverage"
	"github.com/designers-bff/backend/internal/gaps"
	"github.com/designers-bff/backend/internal/metrics"
	"github.com/designers-bff/backend/internal/selection"
	"github.com/designers-bff/backend/internal/storage/models"
	"github.com/designers-bff/backend/internal/taxonomy"
	"github.com/designers-bff/backend/pkg/config"
	"github.com/designers-bff/backend/pkg/logger"
)

// ResultCache stores completed run responses keyed by batch id. Nil is a
// valid Engine cache; every lookup is then a miss.
type ResultCache interface {
	GetCurationResult(ctx context.Context, batchID string, out interface{}) (bool, error)
	SetCurationResult(ctx context.Context, batchID string, result interface{}, ttl time.Duration) error
}

// Request is one curation run over a generation batch. BatchID is
// assigned when empty; TargetCount and TaxonomyVersion fall back to the
// configured defaults.
type Request struct {
	BatchID         string                `json:"batch_id"`
	DesignerID      string                `json:"designer_id"`
	TaxonomyVersion string                `json:"taxonomy_version"`
	TargetCount     int                   `json:"target_count"`
	Candidates      []selection.Candidate `json:"candidates"`
}

// Response is the full outcome of a completed run. It is what gets
// serialized onto the batch row and into the result cache.
type Response struct {
	BatchID         string            `json:"batch_id"`
	DesignerID      string            `json:"designer_id"`
	TaxonomyVersion string            `json:"taxonomy_version"`
	Selection       *selection.Result `json:"selection"`
	Coverage        *coverage.Report  `json:"coverage"`
	Gaps            []gaps.Gap        `json:"gaps"`
	LatencyMS       int               `json:"latency_ms"`
}

type Engine struct {
	store     Store
	cache     ResultCache
	snapshots taxonomy.Provider
	selCfg    selection.Config
	analyzer  *coverage.Analyzer
	tracker   *gaps.Tracker
	adjuster  *gaps.Adjuster

	defaultTarget  int
	defaultVersion string
	cacheTTL       time.Duration
}

func NewEngine(cfg *config.Config, store Store, cache ResultCache, snapshots taxonomy.Provider) *Engine {
	return &Engine{
		store:     store,
		cache:     cache,
		snapshots: snapshots,
		selCfg: selection.Config{
			Sigma:           cfg.Curation.Sigma,
			QualityWeight:   cfg.Curation.QualityWeight,
			DiversityWeight: cfg.Curation.DiversityWeight,
		},
		analyzer: coverage.NewAnalyzer(coverage.Config{
			TargetCoverage:          cfg.Curation.TargetCoverage,
			DefaultTargetCoverage:   cfg.Curation.DefaultTargetCoverage,
			MaxEntropyBits:          cfg.Curation.MaxEntropyBits,
			EntropyBitsPerAttribute: cfg.Curation.EntropyBitsPerAttribute,
		}),
		tracker: gaps.NewTracker(gaps.TrackerConfig{
			MaxBoostMultiplier:        cfg.Curation.MaxBoostMultiplier,
			UnderrepresentedThreshold: cfg.Curation.UnderrepresentedThreshold,
		}),
		adjuster:       gaps.NewAdjuster(cfg.Curation.MaxBoostMultiplier),
		defaultTarget:  cfg.Curation.TargetCount,
		defaultVersion: cfg.Taxonomy.DefaultVersion,
		cacheTTL:       time.Duration(cfg.Redis.TTLSec) * time.Second,
	}
}

// Curate runs the full pipeline for one request. On success the batch row,
// coverage rows, and gap set are committed together; a failed run leaves
// the batch marked failed with its error, never partial results.
func (e *Engine) Curate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if req.DesignerID == "" {
		return nil, fmt.Errorf("designer_id is required")
	}
	if req.BatchID == "" {
		req.BatchID = uuid.New().String()
	}
	if req.TargetCount <= 0 {
		req.TargetCount = e.defaultTarget
	}
	if req.TaxonomyVersion == "" {
		req.TaxonomyVersion = e.defaultVersion
	}

	metrics.BatchSize.Observe(float64(len(req.Candidates)))

	now := time.Now().UTC()
	batch := &models.CurationBatch{
		ID:              req.BatchID,
		DesignerID:      req.DesignerID,
		TaxonomyVersion: req.TaxonomyVersion,
		Status:          models.BatchProcessing,
		CandidateCount:  len(req.Candidates),
		TargetCount:     req.TargetCount,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.store.CreateBatch(ctx, batch); err != nil {
		logger.Warn("Failed to record batch start", zap.String("batch_id", req.BatchID), zap.Error(err))
	}

	snapshot, err := e.snapshots.Snapshot(ctx, req.TaxonomyVersion)
	if err != nil {
		return nil, e.failBatch(req.BatchID, fmt.Errorf("load taxonomy %q: %w", req.TaxonomyVersion, err))
	}

	if err := ctx.Err(); err != nil {
		return nil, e.discardBatch(req.BatchID, err)
	}

	cfg := e.selCfg
	cfg.TargetCount = req.TargetCount
	result, err := selection.NewSelector(cfg).Select(req.Candidates, snapshot)
	if err != nil {
		return nil, e.failBatch(req.BatchID, fmt.Errorf("select: %w", err))
	}

	selected := pickByID(req.Candidates, result.SelectedIDs)
	report := e.analyzer.Analyze(selected, snapshot)

	existing, err := e.store.ActiveGaps(ctx, req.DesignerID)
	if err != nil {
		return nil, e.failBatch(req.BatchID, fmt.Errorf("load active gaps: %w", err))
	}
	gapSet := e.tracker.Assess(req.DesignerID, report, existing)

	resp := &Response{
		BatchID:         req.BatchID,
		DesignerID:      req.DesignerID,
		TaxonomyVersion: req.TaxonomyVersion,
		Selection:       result,
		Coverage:        report,
		Gaps:            gapSet,
		LatencyMS:       int(time.Since(start).Milliseconds()),
	}

	resultJSON, err := json.Marshal(resp)
	if err != nil {
		return nil, e.failBatch(req.BatchID, fmt.Errorf("marshal result: %w", err))
	}

	batch.Status = models.BatchCompleted
	batch.SelectedCount = len(result.SelectedIDs)
	batch.DiversityScore = result.DiversityScore
	batch.LatencyMS = resp.LatencyMS
	batch.ResultJSON = string(resultJSON)
	batch.UpdatedAt = time.Now().UTC()

	if err := e.store.SaveResult(ctx, batch, coverageRows(batch, report, snapshot), gapSet); err != nil {
		return nil, e.failBatch(req.BatchID, fmt.Errorf("save result: %w", err))
	}

	e.observeCompleted(start, result, gapSet)

	if e.cache != nil {
		if err := e.cache.SetCurationResult(ctx, req.BatchID, resp, e.cacheTTL); err != nil {
			logger.Warn("Failed to cache curation result", zap.String("batch_id", req.BatchID), zap.Error(err))
		}
	}

	logger.Info("Curation run completed",
		zap.String("batch_id", req.BatchID),
		zap.String("designer_id", req.DesignerID),
		zap.Int("candidates", len(req.Candidates)),
		zap.Int("selected", len(result.SelectedIDs)),
		zap.Float64("diversity_score", result.DiversityScore),
		zap.Float64("avg_coverage_percent", report.AvgCoveragePercent),
		zap.Int("latency_ms", resp.LatencyMS),
	)

	return resp, nil
}

// ActiveGaps returns the designer's open gaps ordered by attribute.
func (e *Engine) ActiveGaps(ctx context.Context, designerID string) ([]gaps.Gap, error) {
	return e.store.ActiveGaps(ctx, designerID)
}

// AdjustedWeights applies the designer's active gap boosts to a base
// weight table. The stored gaps are never modified.
func (e *Engine) AdjustedWeights(ctx context.Context, designerID string, base map[string]map[string]float64) (map[string]map[string]float64, []gaps.Adjustment, error) {
	active, err := e.store.ActiveGaps(ctx, designerID)
	if err != nil {
		return nil, nil, fmt.Errorf("load active gaps: %w", err)
	}
	adjusted, applied := e.adjuster.AdjustedWeights(base, active)
	return adjusted, applied, nil
}

// AcknowledgeGap moves a gap to in_progress with the boost the caller
// chose to apply. A zero appliedBoost adopts the recommended boost.
func (e *Engine) AcknowledgeGap(ctx context.Context, gapID string, appliedBoost float64) (*gaps.Gap, error) {
	g, err := e.store.GetGap(ctx, gapID)
	if err != nil {
		return nil, err
	}
	if appliedBoost <= 0 {
		appliedBoost = g.RecommendedBoost
	}
	e.tracker.MarkInProgress(g, appliedBoost)
	if err := e.store.UpdateGap(ctx, g); err != nil {
		return nil, fmt.Errorf("update gap: %w", err)
	}
	return g, nil
}

// IgnoreGap takes a gap out of the active set without resolving it.
func (e *Engine) IgnoreGap(ctx context.Context, gapID string) (*gaps.Gap, error) {
	g, err := e.store.GetGap(ctx, gapID)
	if err != nil {
		return nil, err
	}
	e.tracker.Ignore(g)
	if err := e.store.UpdateGap(ctx, g); err != nil {
		return nil, fmt.Errorf("update gap: %w", err)
	}
	return g, nil
}

func (e *Engine) CoverageTrend(ctx context.Context, designerID, attribute string, limit int) ([]models.CoverageMetric, error) {
	return e.store.CoverageTrend(ctx, designerID, attribute, limit)
}

func (e *Engine) failBatch(batchID string, cause error) error {
	metrics.CurationTotal.WithLabelValues(models.BatchFailed).Inc()
	if err := e.store.UpdateBatchStatus(context.Background(), batchID, models.BatchFailed, cause.Error()); err != nil {
		logger.Error("Failed to mark batch failed", zap.String("batch_id", batchID), zap.Error(err))
	}
	return cause
}

func (e *Engine) discardBatch(batchID string, cause error) error {
	metrics.CurationTotal.WithLabelValues(models.BatchDiscarded).Inc()
	if err := e.store.UpdateBatchStatus(context.Background(), batchID, models.BatchDiscarded, cause.Error()); err != nil {
		logger.Error("Failed to mark batch discarded", zap.String("batch_id", batchID), zap.Error(err))
	}
	return cause
}

func (e *Engine) observeCompleted(start time.Time, result *selection.Result, gapSet []gaps.Gap) {
	metrics.CurationDuration.Observe(time.Since(start).Seconds())
	metrics.CurationTotal.WithLabelValues(models.BatchCompleted).Inc()
	metrics.DiversityScore.Observe(result.DiversityScore)

	bySeverity := make(map[gaps.Severity]int)
	for i := range gapSet {
		if gapSet[i].Active() {
			bySeverity[gapSet[i].Severity]++
		}
	}
	for _, s := range []gaps.Severity{gaps.SeverityLow, gaps.SeverityMedium, gaps.SeverityHigh, gaps.SeverityCritical} {
		metrics.OpenGaps.WithLabelValues(string(s)).Set(float64(bySeverity[s]))
	}
}

// pickByID returns the candidates for ids, preserving id order. Selection
// order matters because downstream display follows it.
func pickByID(candidates []selection.Candidate, ids []string) []selection.Candidate {
	byID := make(map[string]selection.Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}
	out := make([]selection.Candidate, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

func coverageRows(batch *models.CurationBatch, report *coverage.Report, snapshot *taxonomy.Snapshot) []models.CoverageMetric {
	rows := make([]models.CoverageMetric, 0, len(report.Metrics))
	for _, attr := range snapshot.Attributes {
		m, ok := report.Metrics[attr.Name]
		if !ok {
			continue
		}
		rows = append(rows, models.CoverageMetric{
			BatchID:         batch.ID,
			DesignerID:      batch.DesignerID,
			Attribute:       attr.Name,
			CoveragePercent: m.CoveragePercent,
			Entropy:         m.Entropy,
			Gini:            m.Gini,
			MeetsTarget:     m.MeetsTarget,
			CreatedAt:       batch.UpdatedAt,
		})
	}
	return rows
}
