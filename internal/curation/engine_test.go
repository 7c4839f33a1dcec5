package curation

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/designers-bff/backend/internal/gaps"
	"github.com/designers-bff/backend/internal/selection"
	"github.com/designers-bff/backend/internal/storage/memory"
	"github.com/designers-bff/backend/internal/storage/models"
	"github.com/designers-bff/backend/internal/taxonomy"
	"github.com/designers-bff/backend/pkg/config"
)

type stubProvider struct {
	snapshot *taxonomy.Snapshot
}

func (p *stubProvider) Snapshot(ctx context.Context, version string) (*taxonomy.Snapshot, error) {
	if p.snapshot == nil {
		return nil, fmt.Errorf("unknown taxonomy version %q", version)
	}
	return p.snapshot, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Taxonomy: config.TaxonomyConfig{DefaultVersion: "current"},
		Curation: config.CurationConfig{
			TargetCount:               3,
			Sigma:                     1.0,
			QualityWeight:             0.6,
			DiversityWeight:           0.4,
			MaxBoostMultiplier:        3.0,
			UnderrepresentedThreshold: 0.05,
			DefaultTargetCoverage:     80,
		},
	}
}

func testEngine(provider taxonomy.Provider) (*Engine, *memory.Store) {
	store := memory.NewStore()
	return NewEngine(testConfig(), store, nil, provider), store
}

func curationSnapshot() *taxonomy.Snapshot {
	return &taxonomy.Snapshot{
		Version: "current",
		Attributes: []taxonomy.Attribute{
			{Name: "garmentType", Values: []string{"dress", "top", "pants", "jumpsuit", "set"}},
		},
	}
}

func testCandidates() []selection.Candidate {
	return []selection.Candidate{
		{ID: "c1", QualityScore: 90, Attributes: map[string]string{"garmentType": "dress"}},
		{ID: "c2", QualityScore: 85, Attributes: map[string]string{"garmentType": "dress"}},
		{ID: "c3", QualityScore: 80, Attributes: map[string]string{"garmentType": "top"}},
		{ID: "c4", QualityScore: 75, Attributes: map[string]string{"garmentType": "pants"}},
	}
}

func TestCurateEndToEnd(t *testing.T) {
	engine, store := testEngine(&stubProvider{snapshot: curationSnapshot()})

	resp, err := engine.Curate(context.Background(), Request{
		DesignerID: "designer-1",
		Candidates: testCandidates(),
	})
	if err != nil {
		t.Fatalf("Curate() error = %v", err)
	}

	if resp.BatchID == "" {
		t.Error("batch id not assigned")
	}
	if len(resp.Selection.SelectedIDs) != 3 {
		t.Errorf("selected %d candidates, want 3", len(resp.Selection.SelectedIDs))
	}
	// c2 duplicates c1's features, so the diverse c3 and c4 beat it.
	if diff := cmp.Diff([]string{"c1", "c3", "c4"}, resp.Selection.SelectedIDs); diff != "" {
		t.Errorf("SelectedIDs mismatch (-want +got):\n%s", diff)
	}
	if resp.Coverage.SelectedCount != 3 {
		t.Errorf("Coverage.SelectedCount = %d, want 3", resp.Coverage.SelectedCount)
	}

	// Coverage 60% against the 80% target leaves a gap on garmentType.
	if len(resp.Gaps) != 1 {
		t.Fatalf("gaps = %d, want 1", len(resp.Gaps))
	}
	if resp.Gaps[0].Attribute != "garmentType" {
		t.Errorf("gap attribute = %q, want garmentType", resp.Gaps[0].Attribute)
	}
	if resp.Gaps[0].Status != gaps.StatusIdentified {
		t.Errorf("gap status = %s, want identified", resp.Gaps[0].Status)
	}

	batch, err := store.GetBatch(context.Background(), resp.BatchID)
	if err != nil {
		t.Fatalf("GetBatch() error = %v", err)
	}
	if batch.Status != models.BatchCompleted {
		t.Errorf("batch status = %s, want completed", batch.Status)
	}
	if batch.SelectedCount != 3 {
		t.Errorf("batch selected count = %d, want 3", batch.SelectedCount)
	}

	var stored Response
	if err := json.Unmarshal([]byte(batch.ResultJSON), &stored); err != nil {
		t.Fatalf("stored result is not valid JSON: %v", err)
	}
	if diff := cmp.Diff(resp.Selection.SelectedIDs, stored.Selection.SelectedIDs); diff != "" {
		t.Errorf("stored result diverges from response (-resp +stored):\n%s", diff)
	}
}

func TestCurateRequiresDesigner(t *testing.T) {
	engine, _ := testEngine(&stubProvider{snapshot: curationSnapshot()})

	_, err := engine.Curate(context.Background(), Request{Candidates: testCandidates()})
	if err == nil {
		t.Fatal("Curate() without designer_id expected error")
	}
}

func TestCurateTaxonomyFailureMarksBatchFailed(t *testing.T) {
	engine, store := testEngine(&stubProvider{})

	_, err := engine.Curate(context.Background(), Request{
		BatchID:    "batch-1",
		DesignerID: "designer-1",
		Candidates: testCandidates(),
	})
	if err == nil {
		t.Fatal("Curate() with broken taxonomy expected error")
	}

	batch, err := store.GetBatch(context.Background(), "batch-1")
	if err != nil {
		t.Fatalf("GetBatch() error = %v", err)
	}
	if batch.Status != models.BatchFailed {
		t.Errorf("batch status = %s, want failed", batch.Status)
	}
	if batch.Error == "" {
		t.Error("failed batch carries no error message")
	}
}

func TestCurateContractViolationMarksBatchFailed(t *testing.T) {
	engine, store := testEngine(&stubProvider{snapshot: curationSnapshot()})

	_, err := engine.Curate(context.Background(), Request{
		BatchID:    "batch-1",
		DesignerID: "designer-1",
		Candidates: []selection.Candidate{
			{ID: "c1", QualityScore: 90},
			{ID: "c1", QualityScore: 80},
		},
	})
	if err == nil {
		t.Fatal("Curate() with duplicate candidate ids expected error")
	}

	batch, err := store.GetBatch(context.Background(), "batch-1")
	if err != nil {
		t.Fatalf("GetBatch() error = %v", err)
	}
	if batch.Status != models.BatchFailed {
		t.Errorf("batch status = %s, want failed", batch.Status)
	}
}

func TestCurateCancelledContextDiscardsBatch(t *testing.T) {
	engine, store := testEngine(&stubProvider{snapshot: curationSnapshot()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Curate(ctx, Request{
		BatchID:    "batch-1",
		DesignerID: "designer-1",
		Candidates: testCandidates(),
	})
	if err == nil {
		t.Fatal("Curate() with cancelled context expected error")
	}

	batch, err := store.GetBatch(context.Background(), "batch-1")
	if err != nil {
		t.Fatalf("GetBatch() error = %v", err)
	}
	if batch.Status != models.BatchDiscarded {
		t.Errorf("batch status = %s, want discarded", batch.Status)
	}
}

func TestCurateResolvesGapOnPassingRun(t *testing.T) {
	engine, store := testEngine(&stubProvider{snapshot: curationSnapshot()})

	// First run covers 3 of 5 garment types and opens a gap.
	first, err := engine.Curate(context.Background(), Request{
		DesignerID: "designer-1",
		Candidates: testCandidates(),
	})
	if err != nil {
		t.Fatalf("first Curate() error = %v", err)
	}
	if len(first.Gaps) != 1 {
		t.Fatalf("first run gaps = %d, want 1", len(first.Gaps))
	}

	// Second run covers 4 of 5 and passes the 80% target.
	second, err := engine.Curate(context.Background(), Request{
		DesignerID:  "designer-1",
		TargetCount: 4,
		Candidates: []selection.Candidate{
			{ID: "d1", QualityScore: 90, Attributes: map[string]string{"garmentType": "dress"}},
			{ID: "d2", QualityScore: 85, Attributes: map[string]string{"garmentType": "top"}},
			{ID: "d3", QualityScore: 80, Attributes: map[string]string{"garmentType": "pants"}},
			{ID: "d4", QualityScore: 75, Attributes: map[string]string{"garmentType": "jumpsuit"}},
		},
	})
	if err != nil {
		t.Fatalf("second Curate() error = %v", err)
	}

	if len(second.Gaps) != 1 {
		t.Fatalf("second run gaps = %d, want the resolved gap carried through", len(second.Gaps))
	}
	if second.Gaps[0].Status != gaps.StatusResolved {
		t.Errorf("gap status = %s, want resolved", second.Gaps[0].Status)
	}

	active, err := store.ActiveGaps(context.Background(), "designer-1")
	if err != nil {
		t.Fatalf("ActiveGaps() error = %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active gaps after passing run = %d, want 0", len(active))
	}
}

func TestAcknowledgeAndIgnoreGap(t *testing.T) {
	engine, store := testEngine(&stubProvider{snapshot: curationSnapshot()})

	resp, err := engine.Curate(context.Background(), Request{
		DesignerID: "designer-1",
		Candidates: testCandidates(),
	})
	if err != nil {
		t.Fatalf("Curate() error = %v", err)
	}
	gapID := resp.Gaps[0].ID

	acked, err := engine.AcknowledgeGap(context.Background(), gapID, 0)
	if err != nil {
		t.Fatalf("AcknowledgeGap() error = %v", err)
	}
	if acked.Status != gaps.StatusInProgress {
		t.Errorf("status = %s, want in_progress", acked.Status)
	}
	// Zero applied boost adopts the recommendation.
	if acked.AppliedBoost != acked.RecommendedBoost {
		t.Errorf("AppliedBoost = %v, want recommended %v", acked.AppliedBoost, acked.RecommendedBoost)
	}

	ignored, err := engine.IgnoreGap(context.Background(), gapID)
	if err != nil {
		t.Fatalf("IgnoreGap() error = %v", err)
	}
	if ignored.Status != gaps.StatusIgnored {
		t.Errorf("status = %s, want ignored", ignored.Status)
	}

	active, err := store.ActiveGaps(context.Background(), "designer-1")
	if err != nil {
		t.Fatalf("ActiveGaps() error = %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active gaps after ignore = %d, want 0", len(active))
	}
}

func TestAdjustedWeightsSurface(t *testing.T) {
	engine, _ := testEngine(&stubProvider{snapshot: curationSnapshot()})

	if _, err := engine.Curate(context.Background(), Request{
		DesignerID: "designer-1",
		Candidates: testCandidates(),
	}); err != nil {
		t.Fatalf("Curate() error = %v", err)
	}

	base := map[string]map[string]float64{
		"garmentType": {"dress": 1.0, "jumpsuit": 1.0, "set": 1.0},
	}
	adjusted, applied, err := engine.AdjustedWeights(context.Background(), "designer-1", base)
	if err != nil {
		t.Fatalf("AdjustedWeights() error = %v", err)
	}

	if len(applied) == 0 {
		t.Fatal("no boosts applied despite an open gap")
	}
	if adjusted["garmentType"]["jumpsuit"] <= 1.0 {
		t.Errorf("jumpsuit weight = %v, want boosted above 1.0", adjusted["garmentType"]["jumpsuit"])
	}
	if base["garmentType"]["jumpsuit"] != 1.0 {
		t.Errorf("base weights mutated: jumpsuit = %v", base["garmentType"]["jumpsuit"])
	}
}
