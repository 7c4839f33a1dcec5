// Package worker runs queued curation batches in the background so the
// API can return a batch id immediately and let callers poll for status.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/designers-bff/backend/internal/curation"
	"github.com/designers-bff/backend/internal/metrics"
	"github.com/designers-bff/backend/internal/storage/models"
	"github.com/designers-bff/backend/pkg/logger"
)

type Pool struct {
	engine  *curation.Engine
	store   curation.Store
	jobs    chan curation.Request
	workers int
}

func NewPool(engine *curation.Engine, store curation.Store, workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Pool{
		engine:  engine,
		store:   store,
		jobs:    make(chan curation.Request, queueSize),
		workers: workers,
	}
}

// Enqueue records the batch as queued and hands it to the workers. It
// never blocks; a full queue is an error the caller surfaces as backpressure.
func (p *Pool) Enqueue(ctx context.Context, req curation.Request) (string, error) {
	if req.BatchID == "" {
		req.BatchID = uuid.New().String()
	}

	now := time.Now().UTC()
	batch := &models.CurationBatch{
		ID:              req.BatchID,
		DesignerID:      req.DesignerID,
		TaxonomyVersion: req.TaxonomyVersion,
		Status:          models.BatchQueued,
		CandidateCount:  len(req.Candidates),
		TargetCount:     req.TargetCount,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := p.store.CreateBatch(ctx, batch); err != nil {
		return "", fmt.Errorf("record queued batch: %w", err)
	}

	select {
	case p.jobs <- req:
		metrics.QueueDepth.Set(float64(len(p.jobs)))
		logger.Debug("Batch enqueued", zap.String("batch_id", req.BatchID), zap.Int("queue_depth", len(p.jobs)))
		return req.BatchID, nil
	default:
		if err := p.store.UpdateBatchStatus(ctx, req.BatchID, models.BatchDiscarded, "queue full"); err != nil {
			logger.Error("Failed to mark batch discarded", zap.String("batch_id", req.BatchID), zap.Error(err))
		}
		return "", fmt.Errorf("curation queue is full")
	}
}

// Run blocks until ctx is cancelled, processing jobs on the configured
// number of workers. Jobs still queued at shutdown are marked discarded.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		worker := i
		g.Go(func() error {
			p.work(ctx, worker)
			return nil
		})
	}
	err := g.Wait()
	p.drain()
	return err
}

func (p *Pool) work(ctx context.Context, id int) {
	log := logger.With(zap.Int("worker", id))
	log.Debug("Curation worker started")
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-p.jobs:
			metrics.QueueDepth.Set(float64(len(p.jobs)))
			if _, err := p.engine.Curate(ctx, req); err != nil {
				log.Error("Batch curation failed",
					zap.String("batch_id", req.BatchID),
					zap.Error(err),
				)
			}
		}
	}
}

func (p *Pool) drain() {
	for {
		select {
		case req := <-p.jobs:
			if err := p.store.UpdateBatchStatus(context.Background(), req.BatchID, models.BatchDiscarded, "shutdown"); err != nil {
				logger.Error("Failed to discard queued batch", zap.String("batch_id", req.BatchID), zap.Error(err))
			}
		default:
			metrics.QueueDepth.Set(0)
			return
		}
	}
}
