package orchestrator

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"webpilot/internal/command"
	"webpilot/internal/intent"
)

// Planner turns classified instructions into step graphs.
type Planner struct {
	registry *command.Registry
	logger   *zap.Logger
}

func NewPlanner(registry *command.Registry, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{
		registry: registry,
		logger:   logger.With(zap.String("component", "planner")),
	}
}

// BuildPlan shapes a plan for the instruction. Each intent kind has a
// fixed skeleton; parameters come from the registry's inference.
func (p *Planner) BuildPlan(instr intent.UserInstruction) (*Plan, error) {
	plan := &Plan{
		ID:        uuid.NewString(),
		IntentTag: string(instr.Intent.Kind),
	}

	switch instr.Intent.Kind {
	case intent.KindNavigate:
		params, err := p.inferFor("navigate_to_url", instr)
		if err != nil {
			return nil, err
		}
		plan.Steps = []PlanStep{{
			ID: "nav_1", Command: "navigate_to_url", Parameters: params,
			Timeout: 10 * time.Second, MaxRetries: 3, Critical: true,
		}}

	case intent.KindClick:
		params, err := p.inferFor("click_element", instr)
		if err != nil {
			return nil, err
		}
		plan.Steps = []PlanStep{
			{
				ID: "analyze_1", Command: "analyze_page",
				Parameters: map[string]interface{}{"mode": "quick"},
				Timeout:    2 * time.Second,
			},
			{
				ID: "click_1", Command: "click_element", Parameters: params,
				DependsOn: []string{"analyze_1"},
				Timeout:   3 * time.Second, MaxRetries: 2, Critical: true,
			},
		}

	case intent.KindType:
		sel := instr.Intent.Target
		steps := []PlanStep{{
			ID: "wait_1", Command: "wait_for_element",
			Parameters: map[string]interface{}{"selector": sel},
			Timeout:    5 * time.Second, Critical: true,
		}}
		prev := "wait_1"
		if instr.Intent.ClearFirst {
			steps = append(steps, PlanStep{
				ID: "clear_1", Command: "clear_input",
				Parameters: map[string]interface{}{"selector": sel},
				DependsOn:  []string{prev},
				Timeout:    2 * time.Second,
			})
			prev = "clear_1"
		}
		steps = append(steps, PlanStep{
			ID: "type_1", Command: "input_text",
			Parameters: map[string]interface{}{
				"selector": sel, "text": instr.Intent.Text, "clear_first": false,
			},
			DependsOn: []string{prev},
			Timeout:   5 * time.Second, MaxRetries: 2, Critical: true,
		})
		plan.Steps = steps

	case intent.KindSearch:
		plan.Steps = []PlanStep{
			{
				ID: "analyze_1", Command: "analyze_page",
				Parameters: map[string]interface{}{"mode": "standard", "find_search": true},
				Timeout:    5 * time.Second, Critical: true,
			},
			{
				ID: "click_search", Command: "click_element",
				Parameters: map[string]interface{}{"selector": "@analyze_1.search_input"},
				DependsOn:  []string{"analyze_1"},
				Timeout:    3 * time.Second, Critical: true,
			},
			{
				ID: "type_query", Command: "input_text",
				Parameters: map[string]interface{}{
					"selector": "@analyze_1.search_input", "text": instr.Intent.Query,
				},
				DependsOn: []string{"click_search"},
				Timeout:   5 * time.Second, Critical: true,
			},
			{
				ID: "submit_search", Command: "press_key",
				Parameters: map[string]interface{}{"key": "enter"},
				DependsOn:  []string{"type_query"},
				Timeout:    2 * time.Second, Critical: true,
			},
		}

	case intent.KindExtract:
		sel, err := p.selectionFor(instr)
		if err != nil {
			return nil, err
		}
		plan.Steps = []PlanStep{
			{
				ID: "analyze_deep", Command: "analyze_page",
				Parameters: map[string]interface{}{"mode": "deep"},
				Timeout:    5 * time.Second,
			},
			{
				ID: "extract_1", Command: sel.Command.Name, Parameters: sel.Parameters,
				DependsOn: []string{"analyze_deep"},
				Timeout:   10 * time.Second, MaxRetries: 2, Critical: true,
			},
		}

	case intent.KindScreenshot:
		params, err := p.inferFor("take_screenshot", instr)
		if err != nil {
			return nil, err
		}
		plan.Steps = []PlanStep{{
			ID: "screenshot_1", Command: "take_screenshot", Parameters: params,
			Timeout: 10 * time.Second, Critical: true,
		}}

	case intent.KindWait:
		params, err := p.inferFor("wait_for_element", instr)
		if err != nil {
			return nil, err
		}
		plan.Steps = []PlanStep{{
			ID: "wait_1", Command: "wait_for_element", Parameters: params,
			Timeout: 15 * time.Second, Critical: true,
		}}

	case intent.KindGoBack:
		plan.Steps = []PlanStep{{
			ID: "back_1", Command: "go_back",
			Timeout: 5 * time.Second, Critical: true,
		}}

	case intent.KindRefresh:
		plan.Steps = []PlanStep{{
			ID: "refresh_1", Command: "refresh_page",
			Timeout: 10 * time.Second, Critical: true,
		}}

	default:
		// With no recognizable goal, survey the page so the caller
		// has something to work with.
		plan.Steps = []PlanStep{{
			ID: "analyze_default", Command: "analyze_page",
			Parameters: map[string]interface{}{"mode": "standard"},
			Timeout:    5 * time.Second,
		}}
	}

	var total time.Duration
	for _, s := range plan.Steps {
		total += s.Timeout
	}
	plan.EstimatedDuration = total / 2

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	p.logger.Debug("plan built",
		zap.String("plan", plan.ID),
		zap.String("intent", plan.IntentTag),
		zap.Int("steps", len(plan.Steps)))
	return plan, nil
}

func (p *Planner) inferFor(name string, instr intent.UserInstruction) (map[string]interface{}, error) {
	cmd, ok := p.registry.Get(name)
	if !ok {
		return nil, errUnknownCommand(name)
	}
	return p.registry.InferParameters(cmd, instr), nil
}

func (p *Planner) selectionFor(instr intent.UserInstruction) (*command.Selection, error) {
	return p.registry.ForIntent(instr)
}
