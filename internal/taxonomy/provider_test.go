package taxonomy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSnapshotFile(t *testing.T, dir, version, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, version+".json"), []byte(content), 0o644); err != nil {
		t.Fatalf("write snapshot file: %v", err)
	}
}

func TestFileSourceFetch(t *testing.T) {
	dir := t.TempDir()
	writeSnapshotFile(t, dir, "current", `{
		"version": "2024-03",
		"attributes": [
			{"name": "garmentType", "values": ["dress", "top"]}
		]
	}`)

	snap, err := NewFileSource(dir).Fetch(context.Background(), "current")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if snap.Version != "2024-03" {
		t.Errorf("Version = %q, want 2024-03", snap.Version)
	}
	if snap.Dimension() != 3 {
		t.Errorf("Dimension() = %d, want 3", snap.Dimension())
	}
}

func TestFileSourceFetchVersionFallsBackToFilename(t *testing.T) {
	dir := t.TempDir()
	writeSnapshotFile(t, dir, "v7", `{"attributes": [{"name": "garmentType", "values": ["dress"]}]}`)

	snap, err := NewFileSource(dir).Fetch(context.Background(), "v7")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if snap.Version != "v7" {
		t.Errorf("Version = %q, want v7", snap.Version)
	}
}

func TestFileSourceFetchErrors(t *testing.T) {
	dir := t.TempDir()
	writeSnapshotFile(t, dir, "bad", `{"attributes": [{"name": "garmentType", "values": ["unknown"]}]}`)

	src := NewFileSource(dir)

	if _, err := src.Fetch(context.Background(), "missing"); err == nil {
		t.Error("Fetch(missing) expected error for absent file")
	}
	if _, err := src.Fetch(context.Background(), "bad"); err == nil {
		t.Error("Fetch(bad) expected error for reserved vocabulary value")
	}
}

type stubCache struct {
	snapshots map[string]*Snapshot
	sets      int
}

func (c *stubCache) GetSnapshot(ctx context.Context, version string, out interface{}) (bool, error) {
	snap, ok := c.snapshots[version]
	if !ok {
		return false, nil
	}
	*out.(*Snapshot) = *snap
	return true, nil
}

func (c *stubCache) SetSnapshot(ctx context.Context, version string, snapshot interface{}, ttl time.Duration) error {
	c.sets++
	c.snapshots[version] = snapshot.(*Snapshot)
	return nil
}

func TestCachedProviderCacheAside(t *testing.T) {
	dir := t.TempDir()
	writeSnapshotFile(t, dir, "current", `{"version": "v1", "attributes": [{"name": "garmentType", "values": ["dress"]}]}`)

	cache := &stubCache{snapshots: make(map[string]*Snapshot)}
	provider := NewCachedProvider(NewFileSource(dir), cache, time.Minute)

	snap, err := provider.Snapshot(context.Background(), "current")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.Version != "v1" {
		t.Errorf("Version = %q, want v1", snap.Version)
	}
	if cache.sets != 1 {
		t.Fatalf("cache sets = %d, want 1", cache.sets)
	}

	// Second resolution must come from the cache, not the file.
	if err := os.Remove(filepath.Join(dir, "current.json")); err != nil {
		t.Fatalf("remove snapshot file: %v", err)
	}
	if _, err := provider.Snapshot(context.Background(), "current"); err != nil {
		t.Fatalf("Snapshot() from cache error = %v", err)
	}
	if cache.sets != 1 {
		t.Errorf("cache sets = %d after cached read, want 1", cache.sets)
	}
}

func TestCachedProviderNilCache(t *testing.T) {
	dir := t.TempDir()
	writeSnapshotFile(t, dir, "current", `{"version": "v1", "attributes": [{"name": "garmentType", "values": ["dress"]}]}`)

	provider := NewCachedProvider(NewFileSource(dir), nil, time.Minute)
	if _, err := provider.Snapshot(context.Background(), "current"); err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
}
