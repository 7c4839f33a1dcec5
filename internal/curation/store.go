package curation

import (
	"context"

	"github.com/designers-bff/backend/internal/gaps"
	"github.com/designers-bff/backend/internal/storage/models"
)

// Store is the persistence surface the engine needs. The sqlite client
// and the in-memory store both satisfy it.
type Store interface {
	CreateBatch(ctx context.Context, batch *models.CurationBatch) error
	UpdateBatchStatus(ctx context.Context, id, status, errMsg string) error
	GetBatch(ctx context.Context, id string) (*models.CurationBatch, error)

	// SaveResult commits the batch row, its coverage metrics, and the
	// refreshed gap set in a single atomic step.
	SaveResult(ctx context.Context, batch *models.CurationBatch, metrics []models.CoverageMetric, gapSet []gaps.Gap) error

	ActiveGaps(ctx context.Context, designerID string) ([]gaps.Gap, error)
	GetGap(ctx context.Context, id string) (*gaps.Gap, error)
	UpdateGap(ctx context.Context, g *gaps.Gap) error

	CoverageTrend(ctx context.Context, designerID, attribute string, limit int) ([]models.CoverageMetric, error)
}
