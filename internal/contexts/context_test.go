package contexts

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func TestValueCachedComputesOnce(t *testing.T) {
	var calls atomic.Int32
	c := New("data", Value(func() (any, error) {
		return int(calls.Add(1)), nil
	}))
	for i := 0; i < 5; i++ {
		got, err := c.Value()
		if err != nil {
			t.Fatalf("Value: %v", err)
		}
		if got != 1 {
			t.Fatalf("expected cached value 1, got %v", got)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected factory to run once, ran %d", calls.Load())
	}
	if !c.IsCached() {
		t.Fatalf("expected context to be cached")
	}
}

func TestValueWithoutCacheRecomputes(t *testing.T) {
	var calls atomic.Int32
	released := false
	c := New("data", func() (any, ReleaseFunc, error) {
		n := int(calls.Add(1))
		return n, func() error { released = true; return nil }, nil
	}, WithoutCache())
	first, _ := c.Value()
	second, _ := c.Value()
	if first != 1 || second != 2 {
		t.Fatalf("expected recomputed values 1 and 2, got %v and %v", first, second)
	}
	if c.IsCached() || c.HasRelease() {
		t.Fatalf("uncached context must not hold value or release")
	}
	if err := c.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if released {
		t.Fatalf("uncached release must not run")
	}
}

func TestTwoPhaseReleaseRunsOnCleanup(t *testing.T) {
	status := "none"
	c := New("data", func() (any, ReleaseFunc, error) {
		status = "pending"
		return "abc", func() error { status = "done"; return nil }, nil
	})
	if status != "none" {
		t.Fatalf("factory must be lazy")
	}
	got, err := c.Value()
	if err != nil || got != "abc" {
		t.Fatalf("Value = %v, %v", got, err)
	}
	if status != "pending" || !c.HasRelease() {
		t.Fatalf("expected pending release, status %q", status)
	}
	if err := c.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if status != "done" {
		t.Fatalf("expected release to run, status %q", status)
	}
	if c.IsCached() || c.HasRelease() {
		t.Fatalf("expected cleared state after cleanup")
	}
	if err := c.Cleanup(); err != nil {
		t.Fatalf("second Cleanup: %v", err)
	}
}

func TestFactoryErrorIsNotCached(t *testing.T) {
	boom := errors.New("boom")
	fail := true
	c := New("data", Value(func() (any, error) {
		if fail {
			return nil, boom
		}
		return "ok", nil
	}))
	if _, err := c.Value(); !errors.Is(err, boom) {
		t.Fatalf("expected factory error, got %v", err)
	}
	if c.IsCached() {
		t.Fatalf("failed factory must not cache")
	}
	fail = false
	if got, err := c.Value(); err != nil || got != "ok" {
		t.Fatalf("expected retry to succeed, got %v, %v", got, err)
	}
}

func TestReleaseErrorClearsState(t *testing.T) {
	boom := errors.New("release failed")
	c := New("data", func() (any, ReleaseFunc, error) {
		return "abc", func() error { return boom }, nil
	})
	if _, err := c.Value(); err != nil {
		t.Fatalf("Value: %v", err)
	}
	if err := c.Cleanup(); !errors.Is(err, boom) {
		t.Fatalf("expected release error, got %v", err)
	}
	if c.IsCached() || c.HasRelease() {
		t.Fatalf("expected cleared state after failed release")
	}
	if err := c.Cleanup(); err != nil {
		t.Fatalf("expected no-op cleanup, got %v", err)
	}
}

type fakeResource struct {
	acquired int
	released int
}

func (r *fakeResource) Acquire() (any, error) {
	r.acquired++
	return "conn", nil
}

func (r *fakeResource) Release() error {
	r.released++
	return nil
}

func TestFromResource(t *testing.T) {
	res := &fakeResource{}
	c := New("conn", FromResource(res))
	for i := 0; i < 3; i++ {
		if _, err := c.Value(); err != nil {
			t.Fatalf("Value: %v", err)
		}
	}
	if err := c.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if res.acquired != 1 || res.released != 1 {
		t.Fatalf("expected one acquire and one release, got %d/%d", res.acquired, res.released)
	}
}

func TestConcurrentValueAndCleanupRunOnce(t *testing.T) {
	var opened, closed atomic.Int32
	c := New("data", func() (any, ReleaseFunc, error) {
		time.Sleep(20 * time.Millisecond)
		opened.Add(1)
		return "abc", func() error {
			time.Sleep(20 * time.Millisecond)
			closed.Add(1)
			return nil
		}, nil
	})

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := c.Value()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Value: %v", err)
	}
	if opened.Load() != 1 {
		t.Fatalf("expected one setup, got %d", opened.Load())
	}

	var cleanups errgroup.Group
	for i := 0; i < 8; i++ {
		cleanups.Go(c.Cleanup)
	}
	if err := cleanups.Wait(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if closed.Load() != 1 {
		t.Fatalf("expected one teardown, got %d", closed.Load())
	}
}
