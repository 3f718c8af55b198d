package mcp

import (
	"context"
	"fmt"
	"time"

	"webpilot/internal/facts"
)

// QueryFactsTool runs a Mangle query over the fact buffer and derived
// relations.
type QueryFactsTool struct {
	facts *facts.Engine
}

func (t *QueryFactsTool) Name() string { return "query_facts" }
func (t *QueryFactsTool) Description() string {
	return `Query the execution fact stream with a Mangle goal.

Every command attempt, fallback, and plan outcome is recorded as a
fact. Use logic variables to bind result columns.

EXAMPLES:
- command_completed(Cmd, Status, DurationMs).
- attempt_failed(Cmd, Attempt, Reason).
- plan_completed(PlanId, Intent, Status).

Returns: {results, count}.`
}
func (t *QueryFactsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Mangle goal, e.g. command_completed(Cmd, Status, Dur).",
			},
		},
		"required": []string{"query"},
	}
}
func (t *QueryFactsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	query := getStringArg(args, "query")
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	results, err := t.facts.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"results": results, "count": len(results)}, nil
}

// ReadFactsTool dumps recent raw facts, optionally filtered by
// predicate or a time window.
type ReadFactsTool struct {
	facts *facts.Engine
}

func (t *ReadFactsTool) Name() string { return "read_facts" }
func (t *ReadFactsTool) Description() string {
	return `Read raw facts from the buffer without writing a query.

Filter by predicate name and/or a since_ms window (facts newer than
that many milliseconds ago). Newest facts come last.

Returns: {facts, count}.`
}
func (t *ReadFactsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"predicate": map[string]interface{}{
				"type":        "string",
				"description": "Only facts with this predicate",
			},
			"since_ms": map[string]interface{}{
				"type":        "integer",
				"description": "Only facts recorded within the last N milliseconds",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum facts to return (default 50)",
			},
		},
	}
}
func (t *ReadFactsTool) Execute(_ context.Context, args map[string]interface{}) (interface{}, error) {
	predicate := getStringArg(args, "predicate")
	sinceMs := getIntArg(args, "since_ms", 0)
	limit := getIntArg(args, "limit", 50)
	if limit <= 0 {
		limit = 50
	}

	var out []facts.Fact
	switch {
	case sinceMs > 0 && predicate != "":
		after := time.Now().Add(-time.Duration(sinceMs) * time.Millisecond)
		out = t.facts.QueryTemporal(predicate, after, time.Now())
	case predicate != "":
		out = t.facts.FactsByPredicate(predicate)
	default:
		out = t.facts.Facts()
	}

	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return map[string]interface{}{"facts": out, "count": len(out)}, nil
}

// AddRuleTool installs a derived relation over the fact stream.
type AddRuleTool struct {
	facts *facts.Engine
}

func (t *AddRuleTool) Name() string { return "add_rule" }
func (t *AddRuleTool) Description() string {
	return `Install a Mangle rule deriving a new relation from recorded facts.

EXAMPLE:
  Decl flaky_command(Command).
  flaky_command(Cmd) :- attempt_failed(Cmd, _, _), command_completed(Cmd, "completed", _).

Declare the head predicate alongside the rule. The derived relation
becomes queryable through query_facts.`
}
func (t *AddRuleTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"rule": map[string]interface{}{
				"type":        "string",
				"description": "Mangle rule source",
			},
		},
		"required": []string{"rule"},
	}
}
func (t *AddRuleTool) Execute(_ context.Context, args map[string]interface{}) (interface{}, error) {
	rule := getStringArg(args, "rule")
	if rule == "" {
		return nil, fmt.Errorf("rule is required")
	}
	if err := t.facts.AddRule(rule); err != nil {
		return nil, err
	}
	return map[string]interface{}{"added": true}, nil
}
