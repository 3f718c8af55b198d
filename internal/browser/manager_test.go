package browser

import (
	"testing"

	"webpilot/internal/config"
	"webpilot/internal/metrics"
)

var _ Gauges = (*metrics.Collector)(nil)

// recordingGauges captures gauge publications without a real collector.
type recordingGauges struct {
	capacity, created, available int
	sessionsOpen                 int
	calls                        int
}

func (g *recordingGauges) SetPoolStats(capacity, created, available int) {
	g.capacity, g.created, g.available = capacity, created, available
	g.calls++
}

func (g *recordingGauges) SetSessionsOpen(n int) { g.sessionsOpen = n }

func TestManagerPublishesGauges(t *testing.T) {
	pool := NewPool(config.PoolConfig{Size: 3}, config.BrowserConfig{}, nil)
	defer pool.Close()

	g := &recordingGauges{}
	m := NewSessionManager(config.BrowserConfig{}, pool, nil, nil).UseMetrics(g)

	m.publishGauges()
	if g.calls != 1 {
		t.Fatalf("expected one pool stats publication, got %d", g.calls)
	}
	if g.capacity != 3 {
		t.Errorf("expected capacity 3, got %d", g.capacity)
	}
	if g.created != 0 || g.available != 0 {
		t.Errorf("unexpected pool gauges: created=%d available=%d", g.created, g.available)
	}
	if g.sessionsOpen != 0 {
		t.Errorf("expected 0 open sessions, got %d", g.sessionsOpen)
	}
}

func TestManagerPublishesWithoutGauges(t *testing.T) {
	pool := NewPool(config.PoolConfig{Size: 1}, config.BrowserConfig{}, nil)
	defer pool.Close()

	m := NewSessionManager(config.BrowserConfig{}, pool, nil, nil)
	// No gauges wired; must be a no-op.
	m.publishGauges()
}
