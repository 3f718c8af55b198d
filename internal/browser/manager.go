package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"webpilot/internal/config"
	"webpilot/internal/facts"
)

// EventSink receives page-level facts (console, network, navigation).
// Satisfied by *facts.Engine.
type EventSink interface {
	AddFacts(ctx context.Context, fs []facts.Fact) error
}

// Gauges receives pool occupancy and open session counts. Satisfied by
// *metrics.Collector.
type Gauges interface {
	SetPoolStats(capacity, created, available int)
	SetSessionsOpen(n int)
}

// SessionManager creates sessions on pooled browsers and streams their
// page events into the fact sink.
type SessionManager struct {
	cfg    config.BrowserConfig
	logger *zap.Logger
	pool   *Pool
	sink   EventSink
	gauges Gauges

	mu       sync.RWMutex
	sessions map[string]*sessionRecord
}

type sessionRecord struct {
	session *Session
	browser *rod.Browser
	cancel  context.CancelFunc
}

// NewSessionManager wires the pool and fact sink together. The sink may
// be nil when telemetry is disabled.
func NewSessionManager(cfg config.BrowserConfig, pool *Pool, sink EventSink, logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "sessions")),
		pool:     pool,
		sink:     sink,
		sessions: make(map[string]*sessionRecord),
	}
}

// UseMetrics publishes pool and session gauges through g after every
// session lifecycle change.
func (m *SessionManager) UseMetrics(g Gauges) *SessionManager {
	m.gauges = g
	return m
}

// PoolStats reports the underlying pool's occupancy.
func (m *SessionManager) PoolStats() PoolStats {
	return m.pool.Stats()
}

func (m *SessionManager) publishGauges() {
	if m.gauges == nil {
		return
	}
	st := m.pool.Stats()
	m.gauges.SetPoolStats(st.Capacity, st.Created, st.Available)
	m.mu.RLock()
	open := len(m.sessions)
	m.mu.RUnlock()
	m.gauges.SetSessionsOpen(open)
}

// CreateSession acquires a browser from the pool, opens a page with the
// configured viewport, and optionally navigates to url.
func (m *SessionManager) CreateSession(ctx context.Context, url string) (*Session, error) {
	b, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire browser: %w", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		m.pool.Release(b)
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.GetViewportWidth(),
		Height:            m.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		m.logger.Warn("failed to set viewport", zap.Error(err))
	}

	session := newSession(m.cfg, m.logger, b, page)

	streamCtx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.sessions[session.ID] = &sessionRecord{session: session, browser: b, cancel: cancel}
	m.mu.Unlock()

	m.startEventStream(streamCtx, session.ID, page)

	if url != "" {
		if _, err := session.Navigate(ctx, url); err != nil {
			_ = m.CloseSession(ctx, session.ID)
			return nil, err
		}
	}

	m.publishGauges()
	m.logger.Info("session created", zap.String("session", session.ID), zap.String("url", url))
	return session, nil
}

// Get returns a tracked session.
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return rec.session, true
}

// List returns metadata for all tracked sessions.
func (m *SessionManager) List() []SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(m.sessions))
	for _, rec := range m.sessions {
		infos = append(infos, rec.session.Info())
	}
	return infos
}

// CloseSession closes the page and returns its browser to the pool.
func (m *SessionManager) CloseSession(ctx context.Context, id string) error {
	m.mu.Lock()
	rec, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("session not found: %s", id)
	}

	rec.cancel()
	err := rec.session.Close()
	m.pool.Release(rec.browser)
	m.publishGauges()
	m.logger.Info("session closed", zap.String("session", id))
	return err
}

// Shutdown closes every session and the pool itself.
func (m *SessionManager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	records := make([]*sessionRecord, 0, len(m.sessions))
	for id, rec := range m.sessions {
		records = append(records, rec)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, rec := range records {
		rec.cancel()
		_ = rec.session.Close()
		m.pool.Release(rec.browser)
	}
	m.pool.Close()
	m.publishGauges()
	m.logger.Info("session manager shut down")
}

// startEventStream wires Rod CDP events into the fact sink.
func (m *SessionManager) startEventStream(ctx context.Context, sessionID string, page *rod.Page) {
	if m.sink == nil {
		return
	}

	throttler := newEventThrottler(m.cfg.EventThrottleMs)

	go page.Context(ctx).EachEvent(func(ev *proto.PageFrameNavigated) {
		now := time.Now()
		if err := m.sink.AddFacts(ctx, []facts.Fact{{
			Predicate: "navigation_event",
			Args:      []interface{}{sessionID, ev.Frame.URL, now.UnixMilli()},
			Timestamp: now,
		}}); err != nil {
			m.logger.Debug("navigation fact error", zap.String("session", sessionID), zap.Error(err))
		}
	})()

	go page.Context(ctx).EachEvent(
		func(ev *proto.RuntimeConsoleAPICalled) {
			if !throttler.Allow("console") {
				return
			}
			now := time.Now()
			msg := stringifyConsoleArgs(ev.Args)
			if err := m.sink.AddFacts(ctx, []facts.Fact{{
				Predicate: "console_event",
				Args:      []interface{}{string(ev.Type), msg, now.UnixMilli()},
				Timestamp: now,
			}}); err != nil {
				m.logger.Debug("console fact error", zap.String("session", sessionID), zap.Error(err))
			}
		},
		func(ev *proto.NetworkRequestWillBeSent) {
			if !throttler.Allow("net_request") {
				return
			}
			now := time.Now()
			if err := m.sink.AddFacts(ctx, []facts.Fact{{
				Predicate: "net_request",
				Args:      []interface{}{string(ev.RequestID), ev.Request.Method, ev.Request.URL, now.UnixMilli()},
				Timestamp: now,
			}}); err != nil {
				m.logger.Debug("net_request fact error", zap.String("session", sessionID), zap.Error(err))
			}
		},
		func(ev *proto.NetworkResponseReceived) {
			if !throttler.Allow("net_response") {
				return
			}
			now := time.Now()
			if err := m.sink.AddFacts(ctx, []facts.Fact{{
				Predicate: "net_response",
				Args:      []interface{}{string(ev.RequestID), int64(ev.Response.Status), now.UnixMilli()},
				Timestamp: now,
			}}); err != nil {
				m.logger.Debug("net_response fact error", zap.String("session", sessionID), zap.Error(err))
			}
		},
	)()
}

type eventThrottler struct {
	interval time.Duration
	mu       sync.Mutex
	last     map[string]time.Time
}

func newEventThrottler(ms int) *eventThrottler {
	if ms <= 0 {
		return nil
	}
	return &eventThrottler{
		interval: time.Duration(ms) * time.Millisecond,
		last:     make(map[string]time.Time),
	}
}

func (t *eventThrottler) Allow(key string) bool {
	if t == nil {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	if last, ok := t.last[key]; ok {
		if now.Sub(last) < t.interval {
			return false
		}
	}
	t.last[key] = now
	return true
}

func stringifyConsoleArgs(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		if !a.Value.Nil() {
			parts = append(parts, a.Value.String())
			continue
		}
		if a.Description != "" {
			parts = append(parts, a.Description)
		}
	}
	return strings.Join(parts, " ")
}
