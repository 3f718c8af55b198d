package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// genDAGPlan builds a random plan whose dependencies always point to
// earlier steps, so it is acyclic by construction.
func genDAGPlan(t *rapid.T) *Plan {
	n := rapid.IntRange(1, 8).Draw(t, "steps")
	plan := &Plan{ID: "prop", IntentTag: "test"}
	for i := 0; i < n; i++ {
		step := PlanStep{
			ID:      fmt.Sprintf("s%d", i),
			Command: "press_key",
			Parameters: map[string]interface{}{
				"key": fmt.Sprintf("s%d", i),
			},
			Timeout: 2 * time.Second,
		}
		for j := 0; j < i; j++ {
			if rapid.Bool().Draw(t, fmt.Sprintf("dep_%d_%d", i, j)) {
				step.DependsOn = append(step.DependsOn, fmt.Sprintf("s%d", j))
			}
		}
		plan.Steps = append(plan.Steps, step)
	}
	return plan
}

func TestPlanExecutionTerminatesInTopoOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		plan := genDAGPlan(t)
		if err := plan.Validate(); err != nil {
			t.Fatalf("acyclic plan rejected: %v", err)
		}

		o, _ := testOrchestrator()
		d := &planDriver{}
		res, err := o.ExecutePlan(context.Background(), d, plan)
		if err != nil {
			t.Fatalf("execution error: %v", err)
		}
		if res.StepsSucceeded != len(plan.Steps) {
			t.Fatalf("%d of %d steps succeeded", res.StepsSucceeded, len(plan.Steps))
		}

		// Every step ran exactly once, after all of its dependencies.
		pos := make(map[string]int)
		for i, op := range d.ops {
			id := strings.TrimPrefix(op, "key ")
			if _, dup := pos[id]; dup {
				t.Fatalf("step %s ran twice", id)
			}
			pos[id] = i
		}
		if len(pos) != len(plan.Steps) {
			t.Fatalf("%d ops for %d steps", len(pos), len(plan.Steps))
		}
		for _, step := range plan.Steps {
			for _, dep := range step.DependsOn {
				if pos[dep] > pos[step.ID] {
					t.Fatalf("step %s ran before its dependency %s", step.ID, dep)
				}
			}
		}
	})
}

func TestPlanValidateRejectsInjectedCycle(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		plan := genDAGPlan(t)
		if len(plan.Steps) < 2 {
			t.Skip("need two steps for a cycle")
		}
		// Close a cycle: make an early step depend on a later one that
		// already depends on it, directly or via the injected edge.
		i := rapid.IntRange(0, len(plan.Steps)-2).Draw(t, "i")
		j := rapid.IntRange(i+1, len(plan.Steps)-1).Draw(t, "j")
		plan.Steps[j].DependsOn = append(plan.Steps[j].DependsOn, plan.Steps[i].ID)
		plan.Steps[i].DependsOn = append(plan.Steps[i].DependsOn, plan.Steps[j].ID)

		err := plan.Validate()
		if err == nil || !strings.Contains(err.Error(), "cycle in plan") {
			t.Fatalf("cycle not rejected: %v", err)
		}
	})
}
