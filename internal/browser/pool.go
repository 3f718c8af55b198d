package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"go.uber.org/zap"

	"webpilot/internal/config"
)

// chromiumFlags are applied to every launched browser. They keep Chromium
// stable in containers and suppress the automation banner.
var chromiumFlags = []string{
	"--no-sandbox",
	"--disable-dev-shm-usage",
	"--disable-gpu",
	"--disable-blink-features=AutomationControlled",
	"--no-first-run",
}

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("browser pool closed")

// Pool is a bounded set of browser instances. Browsers are launched
// lazily on first demand; Acquire blocks when all instances are checked
// out. Returned browsers are probed and dead ones replaced.
type Pool struct {
	cfg    config.PoolConfig
	bcfg   config.BrowserConfig
	logger *zap.Logger

	idle chan *rod.Browser

	mu      sync.Mutex
	created int
	closed  bool
}

// PoolStats is a point-in-time view of pool occupancy.
type PoolStats struct {
	Capacity  int `json:"capacity"`
	Created   int `json:"created"`
	Available int `json:"available"`
	InUse     int `json:"in_use"`
}

// NewPool builds a pool. No browser is launched until the first Acquire.
func NewPool(cfg config.PoolConfig, bcfg config.BrowserConfig, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		cfg:    cfg,
		bcfg:   bcfg,
		logger: logger.With(zap.String("component", "pool")),
		idle:   make(chan *rod.Browser, cfg.GetSize()),
	}
}

// Acquire returns a healthy browser, launching one if the pool is below
// capacity. Blocks up to the configured acquire timeout when the pool is
// exhausted.
func (p *Pool) Acquire(ctx context.Context) (*rod.Browser, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeoutDuration())
	defer cancel()

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}
		p.mu.Unlock()

		// Fast path: an idle browser is waiting.
		select {
		case b := <-p.idle:
			if p.healthy(b) {
				return b, nil
			}
			p.discard(b)
			continue
		default:
		}

		// Below capacity: launch a fresh instance.
		p.mu.Lock()
		if p.created < p.cfg.GetSize() {
			p.created++
			p.mu.Unlock()
			b, err := p.launch()
			if err != nil {
				p.mu.Lock()
				p.created--
				p.mu.Unlock()
				return nil, err
			}
			p.logger.Info("launched browser", zap.Int("created", p.Stats().Created))
			return b, nil
		}
		p.mu.Unlock()

		// At capacity: wait for a return.
		select {
		case b := <-p.idle:
			if p.healthy(b) {
				return b, nil
			}
			p.discard(b)
		case <-acquireCtx.Done():
			return nil, fmt.Errorf("acquire browser: %w", acquireCtx.Err())
		}
	}
}

// Release returns a browser to the pool. Dead browsers are discarded so
// the next Acquire launches a replacement.
func (p *Pool) Release(b *rod.Browser) {
	if b == nil {
		return
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()

	if closed || !p.healthy(b) {
		p.discard(b)
		return
	}

	select {
	case p.idle <- b:
	default:
		// Pool already full; should not happen, but never block.
		p.discard(b)
	}
}

// Stats reports current occupancy.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	available := len(p.idle)
	return PoolStats{
		Capacity:  p.cfg.GetSize(),
		Created:   p.created,
		Available: available,
		InUse:     p.created - available,
	}
}

// Close shuts down idle browsers and rejects future acquires. Browsers
// currently checked out are closed when released.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	for {
		select {
		case b := <-p.idle:
			p.discard(b)
		default:
			return
		}
	}
}

func (p *Pool) healthy(b *rod.Browser) bool {
	if b == nil {
		return false
	}
	_, err := b.Version()
	return err == nil
}

func (p *Pool) discard(b *rod.Browser) {
	if b != nil {
		_ = b.Close()
	}
	p.mu.Lock()
	if p.created > 0 {
		p.created--
	}
	p.mu.Unlock()
	p.logger.Debug("discarded browser")
}

// launch connects to the configured debugger URL, or starts a new
// Chromium with the standard flag set.
func (p *Pool) launch() (*rod.Browser, error) {
	controlURL := p.bcfg.DebuggerURL

	if controlURL == "" {
		l := launcher.New().Headless(p.bcfg.IsHeadless())
		if p.bcfg.BinPath != "" {
			l = l.Bin(p.bcfg.BinPath)
		}
		if p.bcfg.UserDataDir != "" {
			l = l.UserDataDir(p.bcfg.UserDataDir)
		}
		for _, rawFlag := range chromiumFlags {
			flagStr := strings.TrimLeft(rawFlag, "-")
			name, val, hasVal := strings.Cut(flagStr, "=")
			if hasVal {
				l = l.Set(flags.Flag(name), val)
			} else {
				l = l.Set(flags.Flag(name))
			}
		}

		url, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	return b, nil
}
