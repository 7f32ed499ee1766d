package storage

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestLRUCacheSetGet(t *testing.T) {
	cache := NewLRUCache(10, time.Minute)

	cache.Set("a", "value-a")
	got, found := cache.Get("a")
	if !found {
		t.Fatal("expected to find key a")
	}
	if got != "value-a" {
		t.Errorf("got %v, want value-a", got)
	}

	if _, found := cache.Get("missing"); found {
		t.Error("expected miss for unknown key")
	}
}

func TestLRUCacheEvictsOldest(t *testing.T) {
	cache := NewLRUCache(3, time.Minute)

	cache.Set("a", 1)
	cache.Set("b", 2)
	cache.Set("c", 3)

	// Touch a so b becomes the eviction candidate.
	cache.Get("a")
	cache.Set("d", 4)

	if _, found := cache.Get("b"); found {
		t.Error("expected b to be evicted")
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, found := cache.Get(key); !found {
			t.Errorf("expected %s to survive eviction", key)
		}
	}
	if cache.Len() != 3 {
		t.Errorf("expected 3 items, got %d", cache.Len())
	}
}

func TestLRUCacheTTLExpiry(t *testing.T) {
	cache := NewLRUCache(10, 10*time.Millisecond)

	cache.Set("a", 1)
	time.Sleep(20 * time.Millisecond)

	if _, found := cache.Get("a"); found {
		t.Error("expected expired entry to miss")
	}
	if cache.Len() != 0 {
		t.Errorf("expected expired entry removed on read, got len %d", cache.Len())
	}
}

func TestLRUCacheUpdateExistingKey(t *testing.T) {
	cache := NewLRUCache(10, time.Minute)

	cache.Set("a", 1)
	cache.Set("a", 2)

	got, _ := cache.Get("a")
	if got != 2 {
		t.Errorf("got %v, want 2", got)
	}
	if cache.Len() != 1 {
		t.Errorf("expected 1 item, got %d", cache.Len())
	}
}

func TestLRUCacheDeleteAndClear(t *testing.T) {
	cache := NewLRUCache(10, time.Minute)

	cache.Set("a", 1)
	cache.Set("b", 2)

	cache.Delete("a")
	if _, found := cache.Get("a"); found {
		t.Error("expected a to be deleted")
	}

	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("expected empty cache after clear, got %d", cache.Len())
	}
}

func TestLRUCacheCleanupExpired(t *testing.T) {
	cache := NewLRUCache(10, 10*time.Millisecond)

	cache.Set("a", 1)
	cache.Set("b", 2)
	time.Sleep(20 * time.Millisecond)
	cache.Set("c", 3)

	removed := cache.CleanupExpired()
	if removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}
	if _, found := cache.Get("c"); !found {
		t.Error("expected fresh entry to survive cleanup")
	}
}

func TestLRUCacheConcurrentAccess(t *testing.T) {
	cache := NewLRUCache(100, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key-%d-%d", n, j)
				cache.Set(key, j)
				cache.Get(key)
			}
		}(i)
	}
	wg.Wait()

	if cache.Len() > 100 {
		t.Errorf("cache exceeded capacity: %d", cache.Len())
	}

	stats := cache.GetStats()
	if stats.Capacity != 100 {
		t.Errorf("expected capacity 100, got %d", stats.Capacity)
	}
}
