package cache

import (
	"sync"
	"testing"
	"time"
)

func TestCache_SetAndGet(t *testing.T) {
	c := New[string, int](time.Minute, time.Minute)
	defer c.Stop()

	c.Set("Z1", 1)

	v, ok := c.Get("Z1")
	if !ok || v != 1 {
		t.Errorf("expected (1, true), got (%d, %v)", v, ok)
	}

	v, ok = c.Get("K4")
	if ok || v != 0 {
		t.Errorf("expected zero value for a missing key, got (%d, %v)", v, ok)
	}
}

func TestCache_Expiry(t *testing.T) {
	c := New[string, string](time.Minute, time.Hour)
	defer c.Stop()

	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("Z1", "Zone One")

	now = now.Add(59 * time.Second)
	if _, ok := c.Get("Z1"); !ok {
		t.Error("expected entry to be live before its TTL")
	}

	now = now.Add(2 * time.Second)
	if _, ok := c.Get("Z1"); ok {
		t.Error("expected entry to be expired after its TTL")
	}
	if c.Len() != 1 {
		t.Errorf("expected expired entry to wait for cleanup, got len %d", c.Len())
	}

	c.cleanup()
	if c.Len() != 0 {
		t.Errorf("expected cleanup to sweep the expired entry, got len %d", c.Len())
	}
}

func TestCache_BackgroundCleanup(t *testing.T) {
	c := New[int, int](10*time.Millisecond, 20*time.Millisecond)
	defer c.Stop()

	c.Set(1, 1)
	deadline := time.Now().Add(2 * time.Second)
	for c.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("cleanup goroutine never swept the expired entry")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCache_DeleteAndClear(t *testing.T) {
	c := New[string, int](time.Minute, time.Minute)
	defer c.Stop()

	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be deleted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected b to remain")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d", c.Len())
	}
}

func TestCache_StopTwice(t *testing.T) {
	c := New[string, int](time.Minute, time.Minute)
	c.Stop()
	c.Stop()
}

func TestCache_Concurrent(t *testing.T) {
	c := New[int, int](time.Minute, time.Minute)
	defer c.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Set(i%5, i)
			c.Get(i % 5)
		}(i)
	}
	wg.Wait()

	if c.Len() != 5 {
		t.Errorf("expected 5 keys, got %d", c.Len())
	}
}
