package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/designers-bff/backend/pkg/logger"
)

// Client caches taxonomy snapshots and completed curation results.
// All payloads are stored as JSON strings.
type Client struct {
	rdb *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Log.Info("connected to redis")
	return &Client{rdb: rdb}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func taxonomyKey(version string) string {
	return "taxonomy:" + version
}

func curationKey(batchID string) string {
	return "curation:" + batchID
}

// GetSnapshot unmarshals a cached taxonomy snapshot into out. The bool
// reports whether the key was present.
func (c *Client) GetSnapshot(ctx context.Context, version string, out interface{}) (bool, error) {
	return c.get(ctx, taxonomyKey(version), out)
}

func (c *Client) SetSnapshot(ctx context.Context, version string, snap interface{}, ttl time.Duration) error {
	return c.set(ctx, taxonomyKey(version), snap, ttl)
}

func (c *Client) GetCurationResult(ctx context.Context, batchID string, out interface{}) (bool, error) {
	return c.get(ctx, curationKey(batchID), out)
}

func (c *Client) SetCurationResult(ctx context.Context, batchID string, result interface{}, ttl time.Duration) error {
	return c.set(ctx, curationKey(batchID), result, ttl)
}

// InvalidateTaxonomy drops every cached snapshot. Called when taxonomy
// files change on disk so the next run picks up the new vocabulary.
func (c *Client) InvalidateTaxonomy(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, taxonomyKey("*"), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan taxonomy keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete taxonomy keys: %w", err)
	}
	logger.Log.Info(fmt.Sprintf("invalidated %d taxonomy cache entries", len(keys)))
	return nil
}

func (c *Client) get(ctx context.Context, key string, out interface{}) (bool, error) {
	raw, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("unmarshal cached %s: %w", key, err)
	}
	return true, nil
}

func (c *Client) set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
