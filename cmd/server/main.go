package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"webpilot/internal/browser"
	"webpilot/internal/command"
	"webpilot/internal/config"
	"webpilot/internal/engine"
	"webpilot/internal/events"
	"webpilot/internal/facts"
	mcpserver "webpilot/internal/mcp"
	"webpilot/internal/metrics"
	"webpilot/internal/orchestrator"
	"webpilot/internal/perception"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := flag.String("config", "", "Path to an explicit config file (merged over workspace config)")
	workspaceDir := flag.String("workspace-dir", "", "Use this directory as the workspace root instead of walking up")
	noWorkspace := flag.Bool("no-workspace", false, "Skip workspace discovery")
	ssePort := flag.Int("sse-port", 0, "Optional SSE port override (falls back to config)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, wsDir, err := config.LoadWithWorkspace(*configPath, config.WorkspaceOptions{
		Disable:     *noWorkspace,
		ExplicitDir: *workspaceDir,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *ssePort != 0 {
		cfg.MCP.SSEPort = *ssePort
	}

	// Stdio mode owns stdout and stderr for the protocol, so logs go
	// to a file there; SSE mode can log to stderr.
	logger, err := buildLogger(cfg.Server, cfg.MCP.SSEPort > 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if wsDir != "" {
		logger.Info("workspace discovered", zap.String("dir", wsDir))
	}

	factsEngine, err := facts.NewEngine(cfg.Facts, logger)
	if err != nil {
		logger.Fatal("failed to initialize facts engine", zap.Error(err))
	}

	pool := browser.NewPool(cfg.Pool, cfg.Browser, logger)
	defer pool.Close()
	sessions := browser.NewSessionManager(cfg.Browser, pool, factsEngine, logger)
	defer sessions.Shutdown(context.Background())

	registry := command.NewRegistry(logger)
	collector := metrics.NewCollector("webpilot", nil, logger)
	sessions.UseMetrics(collector)
	emitter := events.NewEmitter(logger, factsEngine)
	analyzer := perception.NewAnalyzer(logger)

	exec := engine.New(cfg.Engine, logger).
		UseAnalyzer(analyzer).
		UseEmitter(emitter).
		UseMetrics(collector).
		UseStats(registry.Stats())

	orch := orchestrator.New(cfg.Orchestrator, exec, registry, logger).
		UseEmitter(emitter).
		UseMetrics(collector)

	server, err := mcpserver.NewServer(cfg, logger, sessions, registry, exec, orch, factsEngine)
	if err != nil {
		logger.Fatal("failed to initialize MCP server", zap.Error(err))
	}

	var startErr error
	if cfg.MCP.SSEPort > 0 {
		logger.Info("starting SSE server", zap.Int("port", cfg.MCP.SSEPort))
		startErr = server.StartSSE(ctx, cfg.MCP.SSEPort)
	} else {
		logger.Info("starting stdio server")
		startErr = server.Start(ctx)
	}

	if startErr != nil && !errors.Is(startErr, context.Canceled) {
		logger.Fatal("server exited with error", zap.Error(startErr))
	}
}

func buildLogger(cfg config.ServerConfig, sseMode bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.LogLevel != "" {
		if err := level.Set(cfg.LogLevel); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	if !sseMode {
		if cfg.LogFile == "" {
			return zap.NewNop(), nil
		}
		zcfg.OutputPaths = []string{cfg.LogFile}
		zcfg.ErrorOutputPaths = []string{cfg.LogFile}
	}
	return zcfg.Build()
}
