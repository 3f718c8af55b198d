package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"webpilot/internal/browser"
	"webpilot/internal/command"
	"webpilot/internal/config"
	"webpilot/internal/engine"
	"webpilot/internal/facts"
	"webpilot/internal/orchestrator"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server wires the MCP runtime to the session manager, command
// registry, execution engine, and plan orchestrator.
type Server struct {
	cfg       config.Config
	logger    *zap.Logger
	sessions  *browser.SessionManager
	registry  *command.Registry
	exec      *engine.Engine
	orch      *orchestrator.Orchestrator
	facts     *facts.Engine
	tools     map[string]Tool
	mcpServer *mcpserver.MCPServer
}

// Tool describes the contract for MCP tool implementations.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// NewServer constructs the webpilot MCP server and registers all tools.
// The facts engine may be nil when the deductive layer is disabled.
func NewServer(cfg config.Config, logger *zap.Logger, sessions *browser.SessionManager, registry *command.Registry, exec *engine.Engine, orch *orchestrator.Orchestrator, factsEngine *facts.Engine) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mcpSrv := mcpserver.NewMCPServer(
		cfg.Server.Name,
		cfg.Server.Version,
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithLogging(),
		mcpserver.WithPromptCapabilities(false),
		mcpserver.WithRecovery(),
	)

	server := &Server{
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "mcp")),
		sessions:  sessions,
		registry:  registry,
		exec:      exec,
		orch:      orch,
		facts:     factsEngine,
		tools:     make(map[string]Tool),
		mcpServer: mcpSrv,
	}

	server.registerAllTools()
	return server, nil
}

// Start launches the stdio server (CLI client default).
func (s *Server) Start(ctx context.Context) error {
	stdio := mcpserver.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// StartSSE hosts the server over HTTP using SSE endpoints with graceful shutdown.
func (s *Server) StartSSE(ctx context.Context, port int) error {
	sseServer := mcpserver.NewSSEServer(s.mcpServer, mcpserver.WithBaseURL("http://localhost:"+strconv.Itoa(port)))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:    ":" + strconv.Itoa(port),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("sse server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// ExecuteTool executes a tool directly (used by demos/tests).
func (s *Server) ExecuteTool(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	tool, exists := s.tools[name]
	if !exists {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return tool.Execute(ctx, args)
}

func (s *Server) registerAllTools() {
	// Intent-driven automation
	s.registerTool(&AutomateTool{server: s})
	s.registerTool(&PlanPreviewTool{server: s})
	s.registerTool(&ExecuteCommandTool{server: s})
	s.registerTool(&ListCommandsTool{registry: s.registry})

	// Session lifecycle
	s.registerTool(&CreateSessionTool{sessions: s.sessions})
	s.registerTool(&ListSessionsTool{sessions: s.sessions})
	s.registerTool(&CloseSessionTool{sessions: s.sessions})
	s.registerTool(&PoolStatsTool{sessions: s.sessions})

	// Direct browser actions (routed through the engine so they get
	// preconditions, retries, and fallbacks)
	s.registerTool(&NavigateTool{server: s})
	s.registerTool(&ClickTool{server: s})
	s.registerTool(&TypeTextTool{server: s})
	s.registerTool(&PressKeyTool{server: s})
	s.registerTool(&WaitForTool{server: s})
	s.registerTool(&ExtractTool{server: s})
	s.registerTool(&ScreenshotTool{server: s})
	s.registerTool(&AnalyzePageTool{server: s})
	s.registerTool(&ScrollTool{server: s})
	s.registerTool(&GoBackTool{server: s})
	s.registerTool(&RefreshTool{server: s})

	// Fact buffer access
	if s.facts != nil {
		s.registerTool(&QueryFactsTool{facts: s.facts})
		s.registerTool(&ReadFactsTool{facts: s.facts})
		s.registerTool(&AddRuleTool{facts: s.facts})
	}
}

func (s *Server) registerTool(tool Tool) {
	s.tools[tool.Name()] = tool

	schema, err := json.Marshal(tool.InputSchema())
	if err != nil {
		schema = json.RawMessage(`{"type":"object"}`)
	}

	mcpTool := mcp.NewToolWithRawSchema(tool.Name(), tool.Description(), schema)
	s.mcpServer.AddTool(mcpTool, s.wrapTool(tool))
}

func (s *Server) wrapTool(tool Tool) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		if args == nil {
			args = map[string]interface{}{}
		}

		result, err := tool.Execute(ctx, args)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.NewTextContent(fmt.Sprintf("tool %s failed: %v", tool.Name(), err))},
				IsError: true,
			}, nil
		}

		payload := marshalToolPayload(tool.Name(), result)
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(string(payload))},
			IsError: false,
		}, nil
	}
}

func marshalToolPayload(toolName string, result interface{}) []byte {
	payload, marshalErr := json.Marshal(result)
	if marshalErr == nil {
		return payload
	}

	fallback := map[string]interface{}{
		"success": false,
		"error":   fmt.Sprintf("tool %s returned non-serializable payload: %v", toolName, marshalErr),
	}
	payload, fallbackErr := json.Marshal(fallback)
	if fallbackErr == nil {
		return payload
	}

	return []byte(fmt.Sprintf(`{"success":false,"error":"tool %s failed to encode payload"}`, toolName))
}
