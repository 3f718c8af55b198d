// Package orchestrator plans and runs multi-step command sequences,
// bounding concurrency and threading step outputs through the graph.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"webpilot/internal/command"
	"webpilot/internal/config"
	"webpilot/internal/engine"
	"webpilot/internal/events"
	"webpilot/internal/intent"
	"webpilot/internal/metrics"
)

// contextKey is the reserved parameter under which accumulated step
// outputs are passed to later steps.
const contextKey = "_context"

// StepOutcome pairs a step with its execution result, or the reason it
// was skipped.
type StepOutcome struct {
	StepID  string         `json:"step_id"`
	Command string         `json:"command"`
	Result  *engine.Result `json:"result,omitempty"`
	Skipped bool           `json:"skipped,omitempty"`
	Reason  string         `json:"reason,omitempty"`
}

// PlanResult aggregates a whole plan run.
type PlanResult struct {
	PlanID         string                            `json:"plan_id"`
	CommandText    string                            `json:"command_text,omitempty"`
	IntentTag      string                            `json:"intent"`
	Status         string                            `json:"status"`
	Steps          []StepOutcome                     `json:"steps"`
	StepsTotal     int                               `json:"steps_total"`
	StepsSucceeded int                               `json:"steps_succeeded"`
	StepsFailed    int                               `json:"steps_failed"`
	StepsSkipped   int                               `json:"steps_skipped"`
	Outputs        map[string]map[string]interface{} `json:"outputs,omitempty"`
	ExtractedData  interface{}                       `json:"extracted_data,omitempty"`
	ScreenshotPath string                            `json:"screenshot_path,omitempty"`
	Summary        []string                          `json:"summary"`
	DurationMs     int64                             `json:"duration_ms"`
}

// Orchestrator executes plans against sessions with a bounded number
// of concurrent plans.
type Orchestrator struct {
	cfg     config.OrchestratorConfig
	logger  *zap.Logger
	exec    *engine.Engine
	planner *Planner
	emitter *events.Emitter
	metrics *metrics.Collector

	registry *command.Registry
	sem      *semaphore.Weighted
}

func New(cfg config.OrchestratorConfig, exec *engine.Engine, registry *command.Registry, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "orchestrator")),
		exec:     exec,
		planner:  NewPlanner(registry, logger),
		registry: registry,
		sem:      semaphore.NewWeighted(int64(cfg.GetMaxConcurrentPlans())),
	}
}

func (o *Orchestrator) UseEmitter(em *events.Emitter) *Orchestrator   { o.emitter = em; return o }
func (o *Orchestrator) UseMetrics(m *metrics.Collector) *Orchestrator { o.metrics = m; return o }

// Planner exposes the plan builder for callers that want to inspect a
// plan before running it.
func (o *Orchestrator) Planner() *Planner { return o.planner }

// Automate classifies an instruction, builds the plan, and runs it.
// Instructions classified below the engine's confidence threshold are
// refused unless override is set.
func (o *Orchestrator) Automate(ctx context.Context, d engine.Driver, rawText string, override bool) (*PlanResult, error) {
	instr := intent.Classify(rawText)
	if instr.Confidence < o.exec.MinConfidence() && !override {
		return nil, engine.Errorf(engine.KindUsage, "automate",
			"confidence %.2f below threshold %.2f; set override to execute anyway",
			instr.Confidence, o.exec.MinConfidence())
	}

	plan, err := o.planner.BuildPlan(instr)
	if err != nil {
		return nil, err
	}

	res, err := o.ExecutePlan(ctx, d, plan)
	if res != nil {
		res.CommandText = rawText
	}
	return res, err
}

// ExecutePlan validates and runs a plan to completion. Steps run in
// dependency order; a failed critical step aborts the remainder.
func (o *Orchestrator) ExecutePlan(ctx context.Context, d engine.Driver, plan *Plan) (*PlanResult, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return nil, engine.E(engine.KindTimeout, "plan admission", err)
	}
	defer o.sem.Release(1)

	start := time.Now()
	res := &PlanResult{
		PlanID:     plan.ID,
		IntentTag:  plan.IntentTag,
		StepsTotal: len(plan.Steps),
		Outputs:    make(map[string]map[string]interface{}),
	}

	done := make(map[string]bool, len(plan.Steps))    // reached any outcome
	success := make(map[string]bool, len(plan.Steps)) // completed
	aborted := false

	for len(done) < len(plan.Steps) {
		progressed := false

		for i := range plan.Steps {
			step := &plan.Steps[i]
			if done[step.ID] {
				continue
			}

			ready, blocked := depState(step, done, success)
			if blocked || aborted {
				done[step.ID] = true
				res.StepsSkipped++
				reason := "aborted by earlier critical failure"
				if blocked {
					reason = "dependency did not complete"
				}
				res.Steps = append(res.Steps, StepOutcome{
					StepID: step.ID, Command: step.Command, Skipped: true, Reason: reason,
				})
				res.Summary = append(res.Summary, fmt.Sprintf("- skipped %s (%s)", step.Command, reason))
				if o.metrics != nil {
					o.metrics.RecordStep("skipped")
				}
				progressed = true
				continue
			}
			if !ready {
				continue
			}

			stepRes := o.runStep(ctx, d, plan, step, res.Outputs)
			done[step.ID] = true
			progressed = true

			outcome := StepOutcome{StepID: step.ID, Command: step.Command, Result: stepRes}
			res.Steps = append(res.Steps, outcome)
			if o.metrics != nil {
				o.metrics.RecordStep(string(stepRes.Status))
			}

			if stepRes.Succeeded() {
				success[step.ID] = true
				res.StepsSucceeded++
				res.Outputs[step.ID] = stepRes.Output
				res.Summary = append(res.Summary, successLine(step, stepRes))
				harvest(res, stepRes)
			} else {
				res.StepsFailed++
				res.Summary = append(res.Summary, failureLine(step, stepRes))
				if step.Critical {
					aborted = true
				}
			}

			if ctx.Err() != nil {
				aborted = true
			}
		}

		if !progressed && len(done) < len(plan.Steps) {
			return nil, engine.Errorf(engine.KindUsage, "plan execute",
				"deadlock in plan %s: %d steps cannot be scheduled", plan.ID, len(plan.Steps)-len(done))
		}
	}

	res.DurationMs = time.Since(start).Milliseconds()
	switch {
	case aborted || criticalFailed(plan, success):
		res.Status = "failed"
	case res.StepsFailed > 0:
		res.Status = "partial"
	default:
		res.Status = "completed"
	}

	if o.emitter != nil {
		o.emitter.PlanCompleted(ctx, plan.ID, plan.IntentTag, res.Status)
	}
	if o.metrics != nil {
		o.metrics.RecordPlan(plan.IntentTag, res.Status, time.Duration(res.DurationMs)*time.Millisecond)
	}
	o.logger.Info("plan finished",
		zap.String("plan", plan.ID),
		zap.String("status", res.Status),
		zap.Int("succeeded", res.StepsSucceeded),
		zap.Int("failed", res.StepsFailed),
		zap.Int("skipped", res.StepsSkipped))
	return res, nil
}

// runStep resolves parameter references and executes one step.
func (o *Orchestrator) runStep(ctx context.Context, d engine.Driver, plan *Plan, step *PlanStep, outputs map[string]map[string]interface{}) *engine.Result {
	cmd, ok := o.registry.Get(step.Command)
	if !ok {
		return &engine.Result{
			Command:   step.Command,
			Status:    engine.StatusFailed,
			Error:     fmt.Sprintf("unknown command %q", step.Command),
			ErrorKind: engine.KindUsage,
			StartedAt: time.Now(), FinishedAt: time.Now(),
		}
	}

	params := resolveParams(step.Parameters, outputs)
	// Later steps can read every earlier output through the reserved
	// context entry.
	ctxView := make(map[string]interface{}, len(outputs))
	for id, out := range outputs {
		ctxView[id] = out
	}
	params[contextKey] = ctxView

	return o.exec.Execute(ctx, engine.Request{
		Driver:     d,
		Command:    cmd,
		Parameters: params,
		IntentTag:  plan.IntentTag,
		Timeout:    step.Timeout,
		MaxRetries: step.MaxRetries,
	})
}

// depState reports whether a step may run now, or is permanently
// blocked by a failed or skipped dependency.
func depState(step *PlanStep, done, success map[string]bool) (ready, blocked bool) {
	for _, dep := range step.DependsOn {
		if !done[dep] {
			return false, false
		}
		if !success[dep] {
			return false, true
		}
	}
	return true, false
}

// resolveParams copies step parameters, substituting "@step.field"
// string references with values from earlier step outputs.
func resolveParams(params map[string]interface{}, outputs map[string]map[string]interface{}) map[string]interface{} {
	resolved := make(map[string]interface{}, len(params)+1)
	for k, v := range params {
		s, ok := v.(string)
		if !ok || !strings.HasPrefix(s, "@") {
			resolved[k] = v
			continue
		}
		stepID, field, found := strings.Cut(s[1:], ".")
		if !found {
			resolved[k] = v
			continue
		}
		if out, ok := outputs[stepID]; ok {
			if val, ok := out[field]; ok {
				resolved[k] = val
				continue
			}
		}
		resolved[k] = v
	}
	return resolved
}

func criticalFailed(plan *Plan, success map[string]bool) bool {
	for _, s := range plan.Steps {
		if s.Critical && !success[s.ID] {
			return true
		}
	}
	return false
}

// harvest lifts well-known output fields to the plan level.
func harvest(res *PlanResult, stepRes *engine.Result) {
	if v, ok := stepRes.Output["extracted"]; ok {
		res.ExtractedData = v
	}
	if v, ok := stepRes.Output["screenshot"].(string); ok && v != "" {
		res.ScreenshotPath = v
	}
}

func successLine(step *PlanStep, r *engine.Result) string {
	switch step.Command {
	case "navigate_to_url":
		if url, ok := r.Output["url"].(string); ok {
			return fmt.Sprintf("✓ Navigated to %s", url)
		}
		return "✓ Navigated"
	case "click_element":
		if sel, ok := r.Output["clicked"].(string); ok {
			return fmt.Sprintf("✓ Clicked %s", sel)
		}
		return "✓ Clicked"
	case "input_text":
		if text, ok := r.Output["typed"].(string); ok {
			return fmt.Sprintf("✓ Typed %q", text)
		}
		return "✓ Typed text"
	case "wait_for_element":
		if sel, ok := r.Output["found"].(string); ok {
			return fmt.Sprintf("✓ Found %s", sel)
		}
		return "✓ Element appeared"
	case "extract_text", "extract_links", "extract_images", "extract_tables":
		return fmt.Sprintf("✓ Extracted data (%s)", step.Command)
	case "take_screenshot":
		if path, ok := r.Output["screenshot"].(string); ok {
			return fmt.Sprintf("✓ Screenshot saved to %s", path)
		}
		return "✓ Screenshot taken"
	case "press_key":
		if key, ok := r.Output["pressed"].(string); ok {
			return fmt.Sprintf("✓ Pressed %s", key)
		}
		return "✓ Key pressed"
	case "go_back":
		return "✓ Went back"
	case "refresh_page":
		return "✓ Page refreshed"
	case "analyze_page":
		return "✓ Page analyzed"
	default:
		return fmt.Sprintf("✓ %s", step.Command)
	}
}

func failureLine(step *PlanStep, r *engine.Result) string {
	return fmt.Sprintf("✗ %s: %s", step.Command, r.Error)
}

func errUnknownCommand(name string) error {
	return engine.Errorf(engine.KindUsage, "plan build", "unknown command %q", name)
}
