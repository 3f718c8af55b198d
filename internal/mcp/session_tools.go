package mcp

import (
	"context"
	"fmt"

	"webpilot/internal/browser"
)

type CreateSessionTool struct {
	sessions *browser.SessionManager
}

func (t *CreateSessionTool) Name() string { return "create_session" }
func (t *CreateSessionTool) Description() string {
	return `Open a new browser session backed by the shared browser pool.

WHEN TO USE:
- Starting fresh automation without prior state
- Running independent flows in parallel

Returns: {session: {id, url, title}}. Use the id for subsequent tool calls.`
}
func (t *CreateSessionTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "Optional URL to navigate after opening the session",
			},
		},
	}
}
func (t *CreateSessionTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	url := getStringArg(args, "url")
	if url == "" {
		url = "about:blank"
	}

	sess, err := t.sessions.CreateSession(ctx, url)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"session": sess.Info()}, nil
}

type ListSessionsTool struct {
	sessions *browser.SessionManager
}

func (t *ListSessionsTool) Name() string { return "list_sessions" }
func (t *ListSessionsTool) Description() string {
	return `List all active browser sessions.

USE THIS FIRST to discover existing sessions before creating new ones.

Returns: Array of {id, url, title, created_at, last_active}.`
}
func (t *ListSessionsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *ListSessionsTool) Execute(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{"sessions": t.sessions.List()}, nil
}

type CloseSessionTool struct {
	sessions *browser.SessionManager
}

func (t *CloseSessionTool) Name() string { return "close_session" }
func (t *CloseSessionTool) Description() string {
	return `Close a browser session and return its browser to the pool.

Always close sessions you created once a flow is finished so pooled
browsers become available again.`
}
func (t *CloseSessionTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"session_id": map[string]interface{}{
				"type":        "string",
				"description": "Session to close",
			},
		},
		"required": []string{"session_id"},
	}
}
func (t *CloseSessionTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	id := getStringArg(args, "session_id")
	if id == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	if err := t.sessions.CloseSession(ctx, id); err != nil {
		return nil, err
	}
	return map[string]interface{}{"closed": id}, nil
}

type PoolStatsTool struct {
	sessions *browser.SessionManager
}

func (t *PoolStatsTool) Name() string { return "pool_stats" }
func (t *PoolStatsTool) Description() string {
	return `Report browser pool occupancy: capacity, browsers created, available, and in use.

Useful when session creation is slow or failing; a pool at capacity
means sessions must be closed before new ones can start.`
}
func (t *PoolStatsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *PoolStatsTool) Execute(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{"pool": t.sessions.PoolStats()}, nil
}
