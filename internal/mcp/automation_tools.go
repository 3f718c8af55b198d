package mcp

import (
	"context"
	"fmt"
	"time"

	"webpilot/internal/command"
	"webpilot/internal/engine"
	"webpilot/internal/intent"
)

// AutomateTool turns a natural-language instruction into a plan and
// executes it end to end on a session.
type AutomateTool struct {
	server *Server
}

func (t *AutomateTool) Name() string { return "automate" }
func (t *AutomateTool) Description() string {
	return `Execute a natural-language browser instruction end to end.

The instruction is classified, turned into a multi-step plan, and
executed with retries and fallbacks. Low-confidence classifications
are refused unless override is set.

EXAMPLES:
- "go to example.com"
- "search for 'rod browser automation'"
- "extract all links from the page"
- "click the login button"

Returns: {plan_id, status, summary, steps, extracted_data?, screenshot_path?}.`
}
func (t *AutomateTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"instruction": map[string]interface{}{
				"type":        "string",
				"description": "Natural-language instruction to execute",
			},
			"session_id": sessionIDProperty(),
			"override": map[string]interface{}{
				"type":        "boolean",
				"description": "Execute even when intent confidence is below the configured threshold",
			},
		},
		"required": []string{"instruction"},
	}
}
func (t *AutomateTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	instruction := getStringArg(args, "instruction")
	if instruction == "" {
		return nil, fmt.Errorf("instruction is required")
	}

	sess, err := t.server.resolveSession(args)
	if err != nil {
		return nil, err
	}

	override := getBoolArg(args, "override", false)
	return t.server.orch.Automate(ctx, sess, instruction, override)
}

// PlanPreviewTool shows the plan an instruction would produce without
// touching any session.
type PlanPreviewTool struct {
	server *Server
}

func (t *PlanPreviewTool) Name() string { return "plan_preview" }
func (t *PlanPreviewTool) Description() string {
	return `Show how an instruction would be understood and planned, without executing anything.

Returns the classified intent, its confidence, and the step graph the
automate tool would run. Use this to check an instruction before
committing to it.`
}
func (t *PlanPreviewTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"instruction": map[string]interface{}{
				"type":        "string",
				"description": "Natural-language instruction to plan",
			},
		},
		"required": []string{"instruction"},
	}
}
func (t *PlanPreviewTool) Execute(_ context.Context, args map[string]interface{}) (interface{}, error) {
	instruction := getStringArg(args, "instruction")
	if instruction == "" {
		return nil, fmt.Errorf("instruction is required")
	}

	instr := intent.Classify(instruction)
	plan, err := t.server.orch.Planner().BuildPlan(instr)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"instruction":   instr,
		"plan":          plan,
		"would_execute": instr.Confidence >= t.server.exec.MinConfidence(),
	}, nil
}

// ExecuteCommandTool runs a single registry command with explicit
// parameters, bypassing intent classification.
type ExecuteCommandTool struct {
	server *Server
}

func (t *ExecuteCommandTool) Name() string { return "execute_command" }
func (t *ExecuteCommandTool) Description() string {
	return `Run one registered command directly with explicit parameters.

USE WHEN the automate tool's interpretation is not what you want and
you know exactly which command to run. list_commands shows the
catalog with each command's parameters.

Returns the full execution result: status, output, confidence,
retry count, and fallbacks used.`
}
func (t *ExecuteCommandTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "Registered command name, e.g. click_element",
			},
			"parameters": map[string]interface{}{
				"type":        "object",
				"description": "Command parameters keyed by name",
			},
			"session_id": sessionIDProperty(),
			"timeout_ms": map[string]interface{}{
				"type":        "integer",
				"description": "Overall timeout in milliseconds; 0 uses the configured default",
			},
			"max_retries": map[string]interface{}{
				"type":        "integer",
				"description": "Retry budget; omit for the configured default, 0 disables retries",
			},
		},
		"required": []string{"command"},
	}
}
func (t *ExecuteCommandTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	name := getStringArg(args, "command")
	if name == "" {
		return nil, fmt.Errorf("command is required")
	}

	sess, err := t.server.resolveSession(args)
	if err != nil {
		return nil, err
	}
	cmd, ok := t.server.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", name)
	}

	req := engine.Request{
		Driver:     sess,
		Command:    cmd,
		Parameters: getMapArg(args, "parameters"),
		MaxRetries: getIntArg(args, "max_retries", -1),
	}
	if ms := getIntArg(args, "timeout_ms", 0); ms > 0 {
		req.Timeout = time.Duration(ms) * time.Millisecond
	}

	return t.server.exec.Execute(ctx, req), nil
}

// ListCommandsTool reports the command catalog with track records.
type ListCommandsTool struct {
	registry *command.Registry
}

func (t *ListCommandsTool) Name() string { return "list_commands" }
func (t *ListCommandsTool) Description() string {
	return `List every registered command: parameters, category, semantic tags, and
its execution track record (success rate, average duration, common errors).`
}
func (t *ListCommandsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *ListCommandsTool) Execute(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	cmds := t.registry.All()
	out := make([]map[string]interface{}, 0, len(cmds))
	for _, c := range cmds {
		entry := map[string]interface{}{
			"name":        c.Name,
			"description": c.Description,
			"category":    c.Category,
			"tags":        c.SemanticTags,
			"parameters":  c.Parameters,
		}
		if snap := t.registry.Stats().Snapshot(c.Name); snap.Executions > 0 {
			entry["stats"] = snap
		}
		out = append(out, entry)
	}
	return map[string]interface{}{"commands": out, "count": len(out)}, nil
}
