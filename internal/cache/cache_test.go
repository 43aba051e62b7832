package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func TestLRUCache_GetSet(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %v, %v; want 1, true", v, ok)
	}

	// "b" is now least recently used.
	c.Set("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("a should be deleted")
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](0, time.Hour).WithClock(clock.now)
	c.Set("x", "one")
	c.Set("y", "two")

	clock.t = clock.t.Add(30 * time.Minute)
	c.Set("y", "three")

	clock.t = clock.t.Add(45 * time.Minute)
	if _, ok := c.Get("x"); ok {
		t.Error("x should have expired")
	}
	if v, ok := c.Get("y"); !ok || v != "three" {
		t.Errorf("Get(y) = %q, %v; want three, true", v, ok)
	}

	clock.t = clock.t.Add(time.Hour)
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}
}

func TestLRUCache_Add(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[bool](10, time.Hour).WithClock(clock.now)

	if !c.Add("k", true) {
		t.Fatal("first Add should store")
	}
	if c.Add("k", true) {
		t.Error("second Add should not store")
	}
	clock.t = clock.t.Add(2 * time.Hour)
	if !c.Add("k", true) {
		t.Error("Add after expiry should store")
	}

	c.Purge()
	if c.Size() != 0 {
		t.Errorf("Size() after Purge = %d, want 0", c.Size())
	}
}

func TestManager_Sweep(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)}
	a := NewLRUCache[int](0, time.Minute).WithClock(clock.now)
	b := NewLRUCache[int](0, time.Hour).WithClock(clock.now)
	a.Set("1", 1)
	b.Set("2", 2)

	m := NewManager()
	m.Register(a)
	m.Register(b)

	clock.t = clock.t.Add(2 * time.Minute)
	if n := m.Sweep(); n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}
}

func TestManager_StartStop(t *testing.T) {
	m := NewManager()
	m.Register(NewLRUCache[int](1, time.Millisecond))
	m.StartCleanup(5 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	m.Stop()
	m.Stop()

	done := make(chan struct{})
	go func() {
		m.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup loop did not stop")
	}
}
