package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"webpilot/internal/config"
)

func TestPoolStatsEmpty(t *testing.T) {
	p := NewPool(config.PoolConfig{Size: 2}, config.BrowserConfig{}, nil)

	stats := p.Stats()
	if stats.Capacity != 2 {
		t.Errorf("expected capacity 2, got %d", stats.Capacity)
	}
	if stats.Created != 0 {
		t.Errorf("expected 0 created, got %d", stats.Created)
	}
	if stats.Available != 0 {
		t.Errorf("expected 0 available, got %d", stats.Available)
	}
	if stats.InUse != 0 {
		t.Errorf("expected 0 in use, got %d", stats.InUse)
	}
}

func TestPoolAcquireAfterClose(t *testing.T) {
	p := NewPool(config.PoolConfig{Size: 1, AcquireTimeout: "100ms"}, config.BrowserConfig{}, nil)
	p.Close()

	_, err := p.Acquire(context.Background())
	if !errors.Is(err, ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}
}

func TestPoolReleaseNil(t *testing.T) {
	p := NewPool(config.PoolConfig{Size: 1}, config.BrowserConfig{}, nil)
	// Should not panic or change stats.
	p.Release(nil)
	if stats := p.Stats(); stats.Created != 0 || stats.Available != 0 {
		t.Errorf("unexpected stats after nil release: %+v", stats)
	}
}

func TestPoolCloseIdempotent(t *testing.T) {
	p := NewPool(config.PoolConfig{Size: 1}, config.BrowserConfig{}, nil)
	p.Close()
	p.Close()
}

func TestEventThrottler(t *testing.T) {
	t.Run("zero interval allows everything", func(t *testing.T) {
		th := newEventThrottler(0)
		for i := 0; i < 5; i++ {
			if !th.Allow("console") {
				t.Fatal("nil throttler should allow all events")
			}
		}
	})

	t.Run("throttles within interval", func(t *testing.T) {
		th := newEventThrottler(10_000)
		if !th.Allow("console") {
			t.Fatal("first event should pass")
		}
		if th.Allow("console") {
			t.Error("second event inside interval should be dropped")
		}
		// Independent keys do not interfere.
		if !th.Allow("net_request") {
			t.Error("different key should pass")
		}
	})

	t.Run("allows after interval", func(t *testing.T) {
		th := newEventThrottler(1)
		if !th.Allow("console") {
			t.Fatal("first event should pass")
		}
		time.Sleep(5 * time.Millisecond)
		if !th.Allow("console") {
			t.Error("event after interval should pass")
		}
	})
}
