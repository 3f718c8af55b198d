package mcp

import (
	"context"
	"fmt"

	"webpilot/internal/browser"
	"webpilot/internal/engine"
)

func getStringArg(args map[string]interface{}, key string) string {
	val, ok := args[key]
	if !ok {
		return ""
	}
	switch v := val.(type) {
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

func getIntArg(args map[string]interface{}, key string, fallback int) int {
	val, ok := args[key]
	if !ok {
		return fallback
	}
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

func getBoolArg(args map[string]interface{}, key string, fallback bool) bool {
	val, ok := args[key]
	if !ok {
		return fallback
	}
	if b, ok := val.(bool); ok {
		return b
	}
	return fallback
}

// getMapArg returns a nested object argument, or nil when absent.
func getMapArg(args map[string]interface{}, key string) map[string]interface{} {
	if m, ok := args[key].(map[string]interface{}); ok {
		return m
	}
	return nil
}

// resolveSession picks the session named by session_id, or the only
// open session when the argument is omitted.
func (s *Server) resolveSession(args map[string]interface{}) (*browser.Session, error) {
	id := getStringArg(args, "session_id")
	if id != "" {
		sess, ok := s.sessions.Get(id)
		if !ok {
			return nil, fmt.Errorf("session not found: %s", id)
		}
		return sess, nil
	}

	infos := s.sessions.List()
	switch len(infos) {
	case 0:
		return nil, fmt.Errorf("no open sessions; call create_session first")
	case 1:
		sess, ok := s.sessions.Get(infos[0].ID)
		if !ok {
			return nil, fmt.Errorf("session not found: %s", infos[0].ID)
		}
		return sess, nil
	default:
		return nil, fmt.Errorf("%d sessions open; pass session_id to pick one", len(infos))
	}
}

// runCommand executes a named registry command on a session through
// the engine and reports the full result shape.
func (s *Server) runCommand(ctx context.Context, args map[string]interface{}, commandName string, params map[string]interface{}) (interface{}, error) {
	sess, err := s.resolveSession(args)
	if err != nil {
		return nil, err
	}

	cmd, ok := s.registry.Get(commandName)
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", commandName)
	}

	res := s.exec.Execute(ctx, engine.Request{
		Driver:     sess,
		Command:    cmd,
		Parameters: params,
		MaxRetries: -1,
	})
	return res, nil
}

// sessionIDProperty is the shared session_id schema fragment.
func sessionIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Target session; optional when exactly one session is open",
	}
}
