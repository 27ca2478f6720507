// ABOUTME: Tests for the TTL cache layer
// ABOUTME: Verifies lazy expiry, eviction and concurrent access

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestPutAndGet(t *testing.T) {
	c := New[string, int](time.Minute)

	c.Put("a", 1)
	got, ok := c.Get("a")
	if !ok || got != 1 {
		t.Fatalf("Get(a) = %d, %v; want 1, true", got, ok)
	}

	if _, ok := c.Get("missing"); ok {
		t.Errorf("Expected miss for absent key")
	}
}

func TestLazyExpiry(t *testing.T) {
	c := New[string, string](time.Minute)

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	c.Put("k", "v")
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("Expected hit before expiry")
	}

	clock = clock.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Errorf("Expected miss after TTL elapsed")
	}
	if c.Len() != 0 {
		t.Errorf("Expired entry should be removed on read, len = %d", c.Len())
	}
}

func TestPutRefreshesTTL(t *testing.T) {
	c := New[string, int](time.Minute)

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	c.Put("k", 1)
	clock = clock.Add(50 * time.Second)
	c.Put("k", 2)
	clock = clock.Add(50 * time.Second)

	got, ok := c.Get("k")
	if !ok || got != 2 {
		t.Errorf("Get(k) = %d, %v; want refreshed entry 2, true", got, ok)
	}
}

func TestEvict(t *testing.T) {
	c := New[int64, string](time.Minute)

	c.Put(42, "node")
	c.Evict(42)
	if _, ok := c.Get(42); ok {
		t.Errorf("Expected miss after eviction")
	}

	// Evicting an absent key is a no-op
	c.Evict(99)
}

func TestConcurrentAccess(t *testing.T) {
	c := New[string, int](time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("k%d", j%10)
				c.Put(key, n)
				c.Get(key)
				if j%50 == 0 {
					c.Evict(key)
				}
			}
		}(i)
	}
	wg.Wait()
}
