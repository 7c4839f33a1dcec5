// Package memory is an in-process store used by tests and by deployments
// that run the engine without sqlite. It mirrors the sqlite client's
// behavior, including the atomic result commit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/designers-bff/backend/internal/gaps"
	"github.com/designers-bff/backend/internal/storage/models"
)

type Store struct {
	mu       sync.Mutex
	batches  map[string]models.CurationBatch
	coverage []models.CoverageMetric
	gapRows  map[string]gaps.Gap
	nextID   int
}

func NewStore() *Store {
	return &Store{
		batches: make(map[string]models.CurationBatch),
		gapRows: make(map[string]gaps.Gap),
	}
}

func (s *Store) CreateBatch(ctx context.Context, batch *models.CurationBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.batches[batch.ID]; ok {
		existing.Status = batch.Status
		existing.CandidateCount = batch.CandidateCount
		existing.TargetCount = batch.TargetCount
		existing.UpdatedAt = batch.UpdatedAt
		s.batches[batch.ID] = existing
		return nil
	}

	s.batches[batch.ID] = *batch
	return nil
}

func (s *Store) UpdateBatchStatus(ctx context.Context, id, status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, ok := s.batches[id]
	if !ok {
		return fmt.Errorf("batch %q not found", id)
	}
	batch.Status = status
	batch.Error = errMsg
	batch.UpdatedAt = time.Now().UTC()
	s.batches[id] = batch
	return nil
}

func (s *Store) GetBatch(ctx context.Context, id string) (*models.CurationBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, ok := s.batches[id]
	if !ok {
		return nil, fmt.Errorf("batch %q not found", id)
	}
	return &batch, nil
}

func (s *Store) SaveResult(ctx context.Context, batch *models.CurationBatch, metrics []models.CoverageMetric, gapSet []gaps.Gap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.batches[batch.ID]
	if !ok {
		stored = *batch
	}
	stored.Status = batch.Status
	stored.SelectedCount = batch.SelectedCount
	stored.DiversityScore = batch.DiversityScore
	stored.LatencyMS = batch.LatencyMS
	stored.ResultJSON = batch.ResultJSON
	stored.Error = ""
	stored.UpdatedAt = batch.UpdatedAt
	s.batches[batch.ID] = stored

	for _, m := range metrics {
		s.nextID++
		m.ID = s.nextID
		s.coverage = append(s.coverage, m)
	}

	for _, g := range gapSet {
		s.gapRows[g.ID] = g
	}

	return nil
}

func (s *Store) ActiveGaps(ctx context.Context, designerID string) ([]gaps.Gap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []gaps.Gap
	for _, g := range s.gapRows {
		if g.DesignerID == designerID && g.Active() {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Attribute < out[j].Attribute })
	return out, nil
}

func (s *Store) GetGap(ctx context.Context, id string) (*gaps.Gap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.gapRows[id]
	if !ok {
		return nil, fmt.Errorf("gap %q not found", id)
	}
	return &g, nil
}

func (s *Store) UpdateGap(ctx context.Context, g *gaps.Gap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.gapRows[g.ID]; !ok {
		return fmt.Errorf("gap %q not found", g.ID)
	}
	s.gapRows[g.ID] = *g
	return nil
}

func (s *Store) CoverageTrend(ctx context.Context, designerID, attribute string, limit int) ([]models.CoverageMetric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.CoverageMetric
	for _, m := range s.coverage {
		if m.DesignerID == designerID && m.Attribute == attribute {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
