package orchestrator

import (
	"fmt"
	"time"

	"webpilot/internal/engine"
)

// PlanStep is one command invocation inside a plan. DependsOn names
// step IDs that must complete first.
type PlanStep struct {
	ID         string                 `json:"id"`
	Command    string                 `json:"command"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	DependsOn  []string               `json:"depends_on,omitempty"`
	Timeout    time.Duration          `json:"timeout"`
	MaxRetries int                    `json:"max_retries"`
	// Critical steps abort the plan on failure; others are skipped over.
	Critical bool `json:"critical"`
}

// Plan is an executable step graph for one instruction.
type Plan struct {
	ID        string     `json:"id"`
	IntentTag string     `json:"intent"`
	Steps     []PlanStep `json:"steps"`
	// EstimatedDuration is a planning-time guess, half the summed
	// step timeouts on the assumption most steps finish early.
	EstimatedDuration time.Duration `json:"estimated_duration"`
}

// Validate rejects plans whose dependency graph cannot execute:
// references to unknown steps, self-dependencies, or cycles. Unknown
// command names are the registry's concern and surface at execution.
func (p *Plan) Validate() error {
	if len(p.Steps) == 0 {
		return engine.Errorf(engine.KindUsage, "plan validate", "plan has no steps")
	}

	byID := make(map[string]int, len(p.Steps))
	for i, step := range p.Steps {
		if step.ID == "" {
			return engine.Errorf(engine.KindUsage, "plan validate", "step %d has no id", i)
		}
		if _, dup := byID[step.ID]; dup {
			return engine.Errorf(engine.KindUsage, "plan validate", "duplicate step id %q", step.ID)
		}
		byID[step.ID] = i
	}

	for _, step := range p.Steps {
		for _, dep := range step.DependsOn {
			if dep == step.ID {
				return engine.Errorf(engine.KindUsage, "plan validate", "step %q depends on itself", step.ID)
			}
			if _, ok := byID[dep]; !ok {
				return engine.Errorf(engine.KindUsage, "plan validate", "step %q depends on unknown step %q", step.ID, dep)
			}
		}
	}

	if hasCycle(p.Steps, byID) {
		return engine.Errorf(engine.KindUsage, "plan validate", "cycle in plan")
	}
	return nil
}

// hasCycle runs a three-color depth-first search over the dependency
// edges.
func hasCycle(steps []PlanStep, byID map[string]int) bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, len(steps))

	var visit func(i int) bool
	visit = func(i int) bool {
		color[i] = gray
		for _, dep := range steps[i].DependsOn {
			j := byID[dep]
			switch color[j] {
			case gray:
				return true
			case white:
				if visit(j) {
					return true
				}
			}
		}
		color[i] = black
		return false
	}

	for i := range steps {
		if color[i] == white && visit(i) {
			return true
		}
	}
	return false
}

// Step returns the step with the given ID.
func (p *Plan) Step(id string) (*PlanStep, bool) {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i], true
		}
	}
	return nil, false
}

// Summary renders a compact human-readable description of the graph.
func (p *Plan) Summary() string {
	return fmt.Sprintf("plan %s (%s): %d steps, ~%s", p.ID, p.IntentTag, len(p.Steps), p.EstimatedDuration)
}
