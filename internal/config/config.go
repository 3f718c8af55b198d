package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// WorkspaceDirName is the directory name for project-level WebPilot config.
	WorkspaceDirName = ".webpilot"
	// WorkspaceConfigFile is the config file name inside the workspace directory.
	WorkspaceConfigFile = "config.yaml"
	// MaxSearchDepth limits how many parent directories to walk when discovering a workspace.
	MaxSearchDepth = 10
)

// WorkspaceOptions controls workspace discovery behavior.
type WorkspaceOptions struct {
	// Disable skips workspace discovery entirely (--no-workspace flag).
	Disable bool
	// ExplicitDir uses this directory as workspace root instead of walking up (--workspace-dir flag).
	ExplicitDir string
}

// Config captures all tunable settings for the WebPilot server.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Browser      BrowserConfig      `yaml:"browser"`
	Pool         PoolConfig         `yaml:"pool"`
	Engine       EngineConfig       `yaml:"engine"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Facts        FactsConfig        `yaml:"facts"`
	MCP          MCPConfig          `yaml:"mcp"`
}

type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	LogFile string `yaml:"log_file"`
	// Logging level: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`
}

// BrowserConfig configures how we attach to or launch Chrome for Rod.
type BrowserConfig struct {
	// Control endpoint for Rod (e.g., ws://localhost:9222). When empty, a browser is launched.
	DebuggerURL string `yaml:"debugger_url"`
	// Optional path to the Chrome/Chromium binary. When empty, Rod locates one.
	BinPath string `yaml:"bin_path"`
	// Optional user data directory for launched browsers.
	UserDataDir string `yaml:"user_data_dir"`
	// Headless controls whether Chrome runs in headless mode (default: true).
	Headless *bool `yaml:"headless"`
	// Per-attempt navigation timeout (e.g., "30s").
	NavigationTimeout string `yaml:"navigation_timeout"`
	// Timeout for the post-navigation load wait (e.g., "15s").
	PageLoadTimeout string `yaml:"page_load_timeout"`
	// Number of navigation attempts before giving up (default: 3).
	NavigationRetries int `yaml:"navigation_retries"`
	// Delay between navigation attempts (e.g., "1s").
	NavigationRetryDelay string `yaml:"navigation_retry_delay"`
	// Settle delay after a successful navigation (e.g., "500ms").
	QuiesceDelay string `yaml:"quiesce_delay"`
	// Number of element lookup attempts before giving up (default: 3).
	FindRetries int `yaml:"find_retries"`
	// Delay between element lookup attempts (e.g., "500ms").
	FindRetryDelay string `yaml:"find_retry_delay"`
	// Viewport width for new sessions (default: 1920).
	ViewportWidth int `yaml:"viewport_width"`
	// Viewport height for new sessions (default: 1080).
	ViewportHeight int `yaml:"viewport_height"`
	// Directory where screenshots are written (default: "screenshots").
	ScreenshotDir string `yaml:"screenshot_dir"`
	// Optional throttle (ms) to sample high-frequency page events (console/network).
	EventThrottleMs int `yaml:"event_throttle_ms"`
}

// PoolConfig bounds how many concurrent browser instances may exist.
type PoolConfig struct {
	// Maximum number of browsers the pool will hold (default: 3).
	Size int `yaml:"size"`
	// How long Acquire waits for a free browser before failing (e.g., "30s").
	AcquireTimeout string `yaml:"acquire_timeout"`
}

// EngineConfig tunes the command execution engine.
type EngineConfig struct {
	// Default retry budget when a command carries no retry count (default: 3).
	MaxRetries int `yaml:"max_retries"`
	// Default per-command timeout (e.g., "10s").
	DefaultTimeout string `yaml:"default_timeout"`
	// Commands selected below this confidence are not auto-executed (default: 0.3).
	MinConfidence float64 `yaml:"min_confidence"`
	// Base delay between retry attempts (e.g., "2s").
	RetryDelay string `yaml:"retry_delay"`
}

// OrchestratorConfig tunes multi-step plan execution.
type OrchestratorConfig struct {
	// Maximum number of plans executing at once (default: 5).
	MaxConcurrentPlans int `yaml:"max_concurrent_plans"`
	// Base delay between step retry attempts (e.g., "500ms").
	StepRetryDelay string `yaml:"step_retry_delay"`
}

// FactsConfig controls the embedded deductive engine.
type FactsConfig struct {
	Enable          bool   `yaml:"enable"`
	SchemaPath      string `yaml:"schema_path"`
	DisableBuiltin  bool   `yaml:"disable_builtin_rules"`
	FactBufferLimit int    `yaml:"fact_buffer_limit"`
}

type MCPConfig struct {
	// When set, starts an SSE server on this port instead of stdio-only.
	SSEPort int `yaml:"sse_port"`
}

// DefaultConfig provides reasonable defaults for local development.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Name:     "webpilot",
			Version:  "0.1.0",
			LogFile:  "webpilot.log",
			LogLevel: "info",
		},
		Browser: BrowserConfig{
			NavigationTimeout:    "30s",
			PageLoadTimeout:      "15s",
			NavigationRetries:    3,
			NavigationRetryDelay: "1s",
			QuiesceDelay:         "500ms",
			FindRetries:          3,
			FindRetryDelay:       "500ms",
			ViewportWidth:        1920,
			ViewportHeight:       1080,
			ScreenshotDir:        "screenshots",
			EventThrottleMs:      0,
		},
		Pool: PoolConfig{
			Size:           3,
			AcquireTimeout: "30s",
		},
		Engine: EngineConfig{
			MaxRetries:     3,
			DefaultTimeout: "10s",
			MinConfidence:  0.3,
			RetryDelay:     "2s",
		},
		Orchestrator: OrchestratorConfig{
			MaxConcurrentPlans: 5,
			StepRetryDelay:     "500ms",
		},
		Facts: FactsConfig{
			Enable:          true,
			SchemaPath:      "",
			FactBufferLimit: 2048,
		},
		MCP: MCPConfig{
			SSEPort: 0,
		},
	}
}

// Load reads YAML config from disk and overlays defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, errors.New("config path is required")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// DiscoverWorkspace walks up from startDir looking for a .webpilot/config.yaml file.
// Returns the workspace root directory (parent of .webpilot/) or empty string if not found.
func DiscoverWorkspace(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving start directory: %w", err)
	}

	for i := 0; i < MaxSearchDepth; i++ {
		candidate := filepath.Join(dir, WorkspaceDirName, WorkspaceConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}

	return "", nil
}

// LoadWithWorkspace implements multi-layer config merge:
//
//	DefaultConfig() <- .webpilot/config.yaml <- explicit --config <- CLI flags
//
// Returns the merged config and the workspace directory (empty if none found).
func LoadWithWorkspace(explicitConfig string, opts WorkspaceOptions) (Config, string, error) {
	cfg := DefaultConfig()
	wsDir := ""

	if !opts.Disable {
		var err error
		if opts.ExplicitDir != "" {
			candidate := filepath.Join(opts.ExplicitDir, WorkspaceDirName, WorkspaceConfigFile)
			if _, statErr := os.Stat(candidate); statErr == nil {
				wsDir = opts.ExplicitDir
			}
		} else {
			cwd, cwdErr := os.Getwd()
			if cwdErr != nil {
				return cfg, "", fmt.Errorf("getting working directory: %w", cwdErr)
			}
			wsDir, err = DiscoverWorkspace(cwd)
			if err != nil {
				return cfg, "", fmt.Errorf("discovering workspace: %w", err)
			}
		}

		if wsDir != "" {
			wsConfigPath := filepath.Join(wsDir, WorkspaceDirName, WorkspaceConfigFile)
			raw, err := os.ReadFile(wsConfigPath)
			if err != nil {
				return cfg, "", fmt.Errorf("reading workspace config %s: %w", wsConfigPath, err)
			}
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, "", fmt.Errorf("parsing workspace config %s: %w", wsConfigPath, err)
			}
			cfg = resolveWorkspacePaths(cfg, wsDir)
		}
	}

	if explicitConfig != "" {
		raw, err := os.ReadFile(explicitConfig)
		if err != nil {
			return cfg, wsDir, fmt.Errorf("reading explicit config %s: %w", explicitConfig, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, wsDir, fmt.Errorf("parsing explicit config %s: %w", explicitConfig, err)
		}
	}

	return cfg, wsDir, cfg.Validate()
}

// resolveWorkspacePaths resolves relative paths in the config against the workspace directory.
func resolveWorkspacePaths(cfg Config, wsDir string) Config {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(wsDir, p)
	}

	cfg.Server.LogFile = resolve(cfg.Server.LogFile)
	cfg.Browser.ScreenshotDir = resolve(cfg.Browser.ScreenshotDir)
	cfg.Facts.SchemaPath = resolve(cfg.Facts.SchemaPath)
	return cfg
}

// Validate ensures required fields exist so the server can start deterministically.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return errors.New("server.name is required")
	}
	if c.Pool.Size < 0 {
		return errors.New("pool.size must not be negative")
	}
	if c.Engine.MinConfidence < 0 || c.Engine.MinConfidence > 1 {
		return errors.New("engine.min_confidence must be between 0 and 1")
	}
	if c.Orchestrator.MaxConcurrentPlans < 0 {
		return errors.New("orchestrator.max_concurrent_plans must not be negative")
	}
	return nil
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// NavigationTimeoutDuration returns the per-attempt navigation timeout with a sane default.
func (b BrowserConfig) NavigationTimeoutDuration() time.Duration {
	return parseDurationOr(b.NavigationTimeout, 30*time.Second)
}

// PageLoadTimeoutDuration returns the load-wait timeout with a sane default.
func (b BrowserConfig) PageLoadTimeoutDuration() time.Duration {
	return parseDurationOr(b.PageLoadTimeout, 15*time.Second)
}

// NavigationRetryDelayDuration returns the gap between navigation attempts.
func (b BrowserConfig) NavigationRetryDelayDuration() time.Duration {
	return parseDurationOr(b.NavigationRetryDelay, time.Second)
}

// QuiesceDelayDuration returns the settle delay after navigation.
func (b BrowserConfig) QuiesceDelayDuration() time.Duration {
	return parseDurationOr(b.QuiesceDelay, 500*time.Millisecond)
}

// FindRetryDelayDuration returns the gap between element lookup attempts.
func (b BrowserConfig) FindRetryDelayDuration() time.Duration {
	return parseDurationOr(b.FindRetryDelay, 500*time.Millisecond)
}

// GetNavigationRetries returns the navigation attempt budget with a sane default.
func (b BrowserConfig) GetNavigationRetries() int {
	if b.NavigationRetries <= 0 {
		return 3
	}
	return b.NavigationRetries
}

// GetFindRetries returns the element lookup attempt budget with a sane default.
func (b BrowserConfig) GetFindRetries() int {
	if b.FindRetries <= 0 {
		return 3
	}
	return b.FindRetries
}

// IsHeadless returns whether Chrome should run in headless mode (default: true).
func (b BrowserConfig) IsHeadless() bool {
	if b.Headless == nil {
		return true // default to headless
	}
	return *b.Headless
}

// GetViewportWidth returns the viewport width with a sane default.
func (b BrowserConfig) GetViewportWidth() int {
	if b.ViewportWidth <= 0 {
		return 1920
	}
	return b.ViewportWidth
}

// GetViewportHeight returns the viewport height with a sane default.
func (b BrowserConfig) GetViewportHeight() int {
	if b.ViewportHeight <= 0 {
		return 1080
	}
	return b.ViewportHeight
}

// GetScreenshotDir returns the screenshot directory with a sane default.
func (b BrowserConfig) GetScreenshotDir() string {
	if b.ScreenshotDir == "" {
		return "screenshots"
	}
	return b.ScreenshotDir
}

// GetSize returns the pool size with a sane default.
func (p PoolConfig) GetSize() int {
	if p.Size <= 0 {
		return 3
	}
	return p.Size
}

// AcquireTimeoutDuration returns the pool acquire timeout with a sane default.
func (p PoolConfig) AcquireTimeoutDuration() time.Duration {
	return parseDurationOr(p.AcquireTimeout, 30*time.Second)
}

// DefaultTimeoutDuration returns the default per-command timeout.
func (e EngineConfig) DefaultTimeoutDuration() time.Duration {
	return parseDurationOr(e.DefaultTimeout, 10*time.Second)
}

// RetryDelayDuration returns the base delay between retry attempts.
func (e EngineConfig) RetryDelayDuration() time.Duration {
	return parseDurationOr(e.RetryDelay, 2*time.Second)
}

// GetMaxRetries returns the retry budget with a sane default.
func (e EngineConfig) GetMaxRetries() int {
	if e.MaxRetries <= 0 {
		return 3
	}
	return e.MaxRetries
}

// GetMinConfidence returns the auto-execution confidence floor.
func (e EngineConfig) GetMinConfidence() float64 {
	if e.MinConfidence <= 0 {
		return 0.3
	}
	return e.MinConfidence
}

// GetMaxConcurrentPlans returns the plan concurrency bound with a sane default.
func (o OrchestratorConfig) GetMaxConcurrentPlans() int {
	if o.MaxConcurrentPlans <= 0 {
		return 5
	}
	return o.MaxConcurrentPlans
}

// StepRetryDelayDuration returns the base delay between step retry attempts.
func (o OrchestratorConfig) StepRetryDelayDuration() time.Duration {
	return parseDurationOr(o.StepRetryDelay, 500*time.Millisecond)
}
