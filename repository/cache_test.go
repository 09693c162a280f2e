package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type countingRepository struct {
	repo     *Memory
	searches int
	failSave bool
}

func (c *countingRepository) Of(sandbox string) Accessor {
	return &countingAccessor{parent: c, base: c.repo.Of(sandbox)}
}

type countingAccessor struct {
	parent *countingRepository
	base   Accessor
}

func (a *countingAccessor) Search(ctx context.Context, f Filter) ([]Document, error) {
	a.parent.searches++
	return a.base.Search(ctx, f)
}

func (a *countingAccessor) Save(ctx context.Context, d Document) (string, error) {
	if a.parent.failSave {
		return "", errors.New("save failed")
	}
	return a.base.Save(ctx, d)
}

func (a *countingAccessor) RemoveSelection(ctx context.Context, f Filter) (int, error) {
	return a.base.RemoveSelection(ctx, f)
}

func setupCache(t *testing.T, ttl time.Duration) (*Cache, *countingRepository, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	base := &countingRepository{repo: NewMemory()}
	return NewCache(base, client, ttl, nil), base, mr
}

func TestCacheSearchMissThenHit(t *testing.T) {
	cache, base, mr := setupCache(t, time.Minute)
	ctx := context.Background()
	acc := cache.Of("sandbox")
	if _, err := base.repo.Of("sandbox").Save(ctx, Document{"name": "x", "docType": "T"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	first, err := acc.Search(ctx, Filter{"docType": "T"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	second, err := acc.Search(ctx, Filter{"docType": "T"})
	if err != nil {
		t.Fatalf("cached search: %v", err)
	}
	if base.searches != 1 {
		t.Fatalf("expected 1 backend search, got %d", base.searches)
	}
	if len(first) != 1 || len(second) != 1 || second[0]["name"] != "x" || second[0].ID() != first[0].ID() {
		t.Fatalf("unexpected results %#v %#v", first, second)
	}
	if ttl := mr.TTL(cacheKey("sandbox")); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}
}

func TestCacheEvictsOnSave(t *testing.T) {
	cache, base, mr := setupCache(t, time.Minute)
	ctx := context.Background()
	acc := cache.Of("sandbox")

	if _, err := acc.Search(ctx, Filter{}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if !mr.Exists(cacheKey("sandbox")) {
		t.Fatal("expected cached search")
	}
	if _, err := acc.Save(ctx, Document{"name": "new"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if mr.Exists(cacheKey("sandbox")) {
		t.Fatal("expected cache eviction after save")
	}
	docs, err := acc.Search(ctx, Filter{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(docs) != 1 || base.searches != 2 {
		t.Fatalf("expected fresh search, docs=%d searches=%d", len(docs), base.searches)
	}
}

func TestCacheEvictsOnRemoveSelection(t *testing.T) {
	cache, _, mr := setupCache(t, time.Minute)
	ctx := context.Background()
	acc := cache.Of("sandbox")
	acc.Save(ctx, Document{"done": true})
	acc.Search(ctx, Filter{})

	n, err := acc.RemoveSelection(ctx, Filter{"done": true})
	if err != nil || n != 1 {
		t.Fatalf("remove: n=%d err=%v", n, err)
	}
	if mr.Exists(cacheKey("sandbox")) {
		t.Fatal("expected cache eviction after remove")
	}
}

func TestCacheKeepsEntriesWhenSaveFails(t *testing.T) {
	cache, base, mr := setupCache(t, time.Minute)
	ctx := context.Background()
	acc := cache.Of("sandbox")
	acc.Search(ctx, Filter{})
	base.failSave = true

	if _, err := acc.Save(ctx, Document{"name": "x"}); err == nil {
		t.Fatal("expected save error")
	}
	if !mr.Exists(cacheKey("sandbox")) {
		t.Fatal("failed save should not evict")
	}
}

func TestCacheDisabledWithZeroTTL(t *testing.T) {
	cache, base, mr := setupCache(t, 0)
	ctx := context.Background()
	acc := cache.Of("sandbox")
	acc.Search(ctx, Filter{})
	acc.Search(ctx, Filter{})
	if base.searches != 2 {
		t.Fatalf("expected every search to hit backend, got %d", base.searches)
	}
	if mr.Exists(cacheKey("sandbox")) {
		t.Fatal("expected nothing cached")
	}
}

func TestCacheDropsCorruptEntries(t *testing.T) {
	cache, base, mr := setupCache(t, time.Minute)
	ctx := context.Background()
	mr.HSet(cacheKey("sandbox"), Filter{}.Key(), "not-json")

	if _, err := cache.Of("sandbox").Search(ctx, Filter{}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if base.searches != 1 {
		t.Fatalf("expected fallback to backend, got %d searches", base.searches)
	}
}
