package handlers

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/designers-bff/backend/internal/curation"
	"github.com/designers-bff/backend/internal/metrics"
	"github.com/designers-bff/backend/internal/storage/models"
	"github.com/designers-bff/backend/internal/worker"
	"github.com/designers-bff/backend/pkg/logger"
)

// Cache is the slice of the redis client the handler needs. A nil Cache
// disables cached lookups and taxonomy invalidation.
type Cache interface {
	GetCurationResult(ctx context.Context, batchID string, out interface{}) (bool, error)
	InvalidateTaxonomy(ctx context.Context) error
}

type CurationHandler struct {
	engine *curation.Engine
	pool   *worker.Pool
	store  curation.Store
	cache  Cache
}

func NewCurationHandler(engine *curation.Engine, pool *worker.Pool, store curation.Store, cache Cache) *CurationHandler {
	return &CurationHandler{
		engine: engine,
		pool:   pool,
		store:  store,
		cache:  cache,
	}
}

// Select runs the full pipeline synchronously and returns the result.
func (h *CurationHandler) Select(c *fiber.Ctx) error {
	var req curation.Request
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.DesignerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "designer_id is required",
		})
	}
	if len(req.Candidates) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "candidates are required",
		})
	}

	resp, err := h.engine.Curate(c.Context(), req)
	if err != nil {
		logger.Error("Curation run failed", zap.Error(err))
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(resp)
}

// EnqueueBatch accepts a batch for background curation and returns 202
// with the batch id to poll.
func (h *CurationHandler) EnqueueBatch(c *fiber.Ctx) error {
	var req curation.Request
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.DesignerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "designer_id is required",
		})
	}
	if len(req.Candidates) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "candidates are required",
		})
	}

	batchID, err := h.pool.Enqueue(c.Context(), req)
	if err != nil {
		logger.Error("Failed to enqueue batch", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"batch_id": batchID,
		"status":   models.BatchQueued,
	})
}

// BatchStatus reports a batch's lifecycle state and, once completed, its
// full result. Completed results are served from cache when present.
func (h *CurationHandler) BatchStatus(c *fiber.Ctx) error {
	batchID := c.Params("id")

	if h.cache != nil {
		var cached curation.Response
		hit, err := h.cache.GetCurationResult(c.Context(), batchID, &cached)
		if err != nil {
			logger.Warn("Curation cache lookup failed", zap.String("batch_id", batchID), zap.Error(err))
		}
		if hit {
			metrics.CacheHits.WithLabelValues("curation").Inc()
			return c.JSON(fiber.Map{
				"batch_id": batchID,
				"status":   models.BatchCompleted,
				"result":   cached,
			})
		}
		metrics.CacheMisses.WithLabelValues("curation").Inc()
	}

	batch, err := h.store.GetBatch(c.Context(), batchID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Batch not found",
		})
	}

	resp := fiber.Map{
		"batch_id":        batch.ID,
		"designer_id":     batch.DesignerID,
		"status":          batch.Status,
		"candidate_count": batch.CandidateCount,
		"target_count":    batch.TargetCount,
		"created_at":      batch.CreatedAt,
		"updated_at":      batch.UpdatedAt,
	}
	if batch.Error != "" {
		resp["error"] = batch.Error
	}
	if batch.Status == models.BatchCompleted && batch.ResultJSON != "" {
		resp["result"] = json.RawMessage(batch.ResultJSON)
	}

	return c.JSON(resp)
}

// ActiveGaps lists the designer's open coverage gaps.
func (h *CurationHandler) ActiveGaps(c *fiber.Ctx) error {
	designerID := c.Query("designer_id")
	if designerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "designer_id is required",
		})
	}

	gapSet, err := h.engine.ActiveGaps(c.Context(), designerID)
	if err != nil {
		logger.Error("Failed to load active gaps", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load active gaps",
		})
	}

	return c.JSON(fiber.Map{
		"designer_id": designerID,
		"gaps":        gapSet,
		"count":       len(gapSet),
	})
}

// AcknowledgeGap transitions a gap to in_progress, or to ignored when the
// body asks for it.
func (h *CurationHandler) AcknowledgeGap(c *fiber.Ctx) error {
	gapID := c.Params("id")

	var req struct {
		AppliedBoost float64 `json:"applied_boost"`
		Ignore       bool    `json:"ignore"`
	}
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	var err error
	var g interface{}
	if req.Ignore {
		g, err = h.engine.IgnoreGap(c.Context(), gapID)
	} else {
		g, err = h.engine.AcknowledgeGap(c.Context(), gapID, req.AppliedBoost)
	}
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(g)
}

// AdjustedWeights applies active gap boosts to a caller-supplied base
// weight table and returns the adjusted copy.
func (h *CurationHandler) AdjustedWeights(c *fiber.Ctx) error {
	var req struct {
		DesignerID  string                        `json:"designer_id"`
		BaseWeights map[string]map[string]float64 `json:"base_weights"`
	}
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.DesignerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "designer_id is required",
		})
	}
	if len(req.BaseWeights) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "base_weights are required",
		})
	}

	adjusted, applied, err := h.engine.AdjustedWeights(c.Context(), req.DesignerID, req.BaseWeights)
	if err != nil {
		logger.Error("Failed to compute adjusted weights", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute adjusted weights",
		})
	}

	return c.JSON(fiber.Map{
		"designer_id":      req.DesignerID,
		"adjusted_weights": adjusted,
		"applied_boosts":   applied,
	})
}

// CoverageTrend returns recent coverage rows for one attribute, newest first.
func (h *CurationHandler) CoverageTrend(c *fiber.Ctx) error {
	designerID := c.Query("designer_id")
	attribute := c.Query("attribute")
	if designerID == "" || attribute == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "designer_id and attribute are required",
		})
	}
	limit := c.QueryInt("limit", 20)

	trend, err := h.engine.CoverageTrend(c.Context(), designerID, attribute, limit)
	if err != nil {
		logger.Error("Failed to load coverage trend", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load coverage trend",
		})
	}

	return c.JSON(fiber.Map{
		"designer_id": designerID,
		"attribute":   attribute,
		"trend":       trend,
	})
}

// InvalidateTaxonomy drops cached taxonomy snapshots after the files on
// disk change.
func (h *CurationHandler) InvalidateTaxonomy(c *fiber.Ctx) error {
	if h.cache == nil {
		return c.JSON(fiber.Map{"invalidated": false})
	}
	if err := h.cache.InvalidateTaxonomy(c.Context()); err != nil {
		logger.Error("Failed to invalidate taxonomy cache", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to invalidate taxonomy cache",
		})
	}
	return c.JSON(fiber.Map{"invalidated": true})
}
