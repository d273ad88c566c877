package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestNew_RejectsBadConfig(t *testing.T) {
	t.Parallel()

	if _, err := New[string, int](0, time.Minute); err == nil {
		t.Error("maxSize = 0 should be rejected")
	}
	if _, err := New[string, int](-5, time.Minute); err == nil {
		t.Error("negative maxSize should be rejected")
	}
	if _, err := New[string, int](10, 0); err == nil {
		t.Error("zero ttl should be rejected")
	}
	if _, err := New[string, int](10, -time.Second); err == nil {
		t.Error("negative ttl should be rejected")
	}
}

func TestGetSet_RoundTrip(t *testing.T) {
	t.Parallel()

	c, err := New[string, int](10, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("should not find missing key")
	}

	c.Set("k", 42)
	got, ok := c.Get("k")
	if !ok {
		t.Fatal("should find k")
	}
	if got != 42 {
		t.Errorf("value = %d, want 42", got)
	}
}

func TestGet_ExpiredEntryIsAbsent(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c, err := New(10, 100*time.Second, WithClock[string, int](clock.Now))
	if err != nil {
		t.Fatal(err)
	}

	c.Set("k", 1)
	clock.Advance(99 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry should still be live just before the TTL")
	}

	// Expiry is inclusive: at exactly t0+ttl the entry is gone.
	clock.Advance(time.Second)
	if _, ok := c.Get("k"); ok {
		t.Error("entry should be absent at t0+ttl")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be discarded on read, len = %d", c.Len())
	}
}

func TestSet_OverwriteResetsExpiry(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c, err := New(10, 100*time.Second, WithClock[string, int](clock.Now))
	if err != nil {
		t.Fatal(err)
	}

	c.Set("k", 1)
	clock.Advance(90 * time.Second)
	c.Set("k", 2)
	clock.Advance(90 * time.Second)

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("overwrite should have reset the expiry")
	}
	if got != 2 {
		t.Errorf("value = %d, want 2", got)
	}
	if c.Len() != 1 {
		t.Errorf("overwrite should not grow the cache, len = %d", c.Len())
	}
}

func TestLRU_EvictsLeastRecentlyTouched(t *testing.T) {
	t.Parallel()

	c, err := New[string, int](2, 100*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok { // touch protects "a" from the next eviction
		t.Fatal("a should be present")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted as least recently used")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("a = (%d, %v), want (1, true)", v, ok)
	}
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Errorf("c = (%d, %v), want (3, true)", v, ok)
	}
	if c.Len() != 2 {
		t.Errorf("len = %d, want 2", c.Len())
	}
}

func TestLRU_CapacityNeverExceeded(t *testing.T) {
	t.Parallel()

	const maxSize = 8
	c, err := New[int, int](maxSize, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 100; i++ {
		c.Set(i, i)
		if n := c.Len(); n > maxSize {
			t.Fatalf("after %d inserts len = %d, exceeds maxSize %d", i+1, n, maxSize)
		}
	}
	// The survivors are the most recently inserted keys.
	for i := 100 - maxSize; i < 100; i++ {
		if _, ok := c.Get(i); !ok {
			t.Errorf("key %d should have survived", i)
		}
	}
}

func TestEvictionHook(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	var evicted, expired int
	c, err := New(2, time.Minute,
		WithClock[string, int](clock.Now),
		WithEvictionHook[string, int](func(_ string, wasExpired bool) {
			if wasExpired {
				expired++
			} else {
				evicted++
			}
		}),
	)
	if err != nil {
		t.Fatal(err)
	}

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3) // capacity eviction of "a"
	clock.Advance(2 * time.Minute)
	c.Get("b") // lazy expiry discovery

	if evicted != 1 {
		t.Errorf("capacity evictions = %d, want 1", evicted)
	}
	if expired != 1 {
		t.Errorf("expiry discards = %d, want 1", expired)
	}
}

func TestDeleteAndPurge(t *testing.T) {
	t.Parallel()

	c, err := New[string, int](10, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("a should be deleted")
	}
	c.Purge()
	if _, ok := c.Get("b"); ok {
		t.Error("purge should remove all keys")
	}
	if c.Len() != 0 {
		t.Errorf("len after purge = %d, want 0", c.Len())
	}
}

func TestConcurrent_SizeBoundHolds(t *testing.T) {
	t.Parallel()

	const maxSize = 16
	c, err := New[string, int](maxSize, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("k-%d", (seed*7+i)%40) // overlapping key space
				if i%3 == 0 {
					c.Get(key)
				} else {
					c.Set(key, i)
				}
			}
		}(g)
	}
	wg.Wait()

	if n := c.Len(); n > maxSize {
		t.Errorf("len = %d, exceeds maxSize %d after concurrent access", n, maxSize)
	}
}
