package taxonomy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/designers-bff/backend/internal/metrics"
	"github.com/designers-bff/backend/pkg/logger"
	"github.com/designers-bff/backend/pkg/retry"
)

// Provider hands out frozen snapshots. The engine resolves a snapshot once
// per run and never refreshes it mid-batch.
type Provider interface {
	Snapshot(ctx context.Context, version string) (*Snapshot, error)
}

// Source is the backing taxonomy collaborator a CachedProvider falls back
// to when the cache misses.
type Source interface {
	Fetch(ctx context.Context, version string) (*Snapshot, error)
}

// SnapshotCache is the subset of the redis client the provider needs.
type SnapshotCache interface {
	GetSnapshot(ctx context.Context, version string, out interface{}) (bool, error)
	SetSnapshot(ctx context.Context, version string, snapshot interface{}, ttl time.Duration) error
}

// FileSource reads versioned snapshot files published by the taxonomy
// collaborator under <dir>/<version>.json.
type FileSource struct {
	dir string
}

func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

func (s *FileSource) Fetch(ctx context.Context, version string) (*Snapshot, error) {
	path := filepath.Join(s.dir, version+".json")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy snapshot %q: %w", version, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy snapshot %q: %w", version, err)
	}
	if snap.Version == "" {
		snap.Version = version
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	return &snap, nil
}

// CachedProvider resolves snapshots cache-first. Cache failures degrade to
// the source; a run is never failed because redis is down.
type CachedProvider struct {
	source Source
	cache  SnapshotCache
	ttl    time.Duration
	retry  retry.Config
}

func NewCachedProvider(source Source, cache SnapshotCache, ttl time.Duration) *CachedProvider {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 2
	return &CachedProvider{
		source: source,
		cache:  cache,
		ttl:    ttl,
		retry:  cfg,
	}
}

func (p *CachedProvider) Snapshot(ctx context.Context, version string) (*Snapshot, error) {
	if p.cache != nil {
		var cached Snapshot
		hit, err := retry.DoWithResult(ctx, p.retry, func() (bool, error) {
			return p.cache.GetSnapshot(ctx, version, &cached)
		})
		if err != nil {
			logger.Warn("Taxonomy cache read failed, falling back to source",
				zap.String("version", version),
				zap.Error(err),
			)
		} else if hit {
			metrics.CacheHits.WithLabelValues("taxonomy").Inc()
			return &cached, nil
		}
		metrics.CacheMisses.WithLabelValues("taxonomy").Inc()
	}

	snap, err := p.source.Fetch(ctx, version)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if err := p.cache.SetSnapshot(ctx, version, snap, p.ttl); err != nil {
			logger.Warn("Failed to cache taxonomy snapshot",
				zap.String("version", version),
				zap.Error(err),
			)
		}
	}

	logger.Debug("Taxonomy snapshot loaded",
		zap.String("version", snap.Version),
		zap.Int("attributes", len(snap.Attributes)),
		zap.Int("dimension", snap.Dimension()),
	)

	return snap, nil
}
