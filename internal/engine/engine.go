// Package engine executes catalog commands against a browser session,
// walking each one through precondition checks, retried attempts,
// success validation, and the command's declared fallback ladder.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"webpilot/internal/browser"
	"webpilot/internal/command"
	"webpilot/internal/config"
	"webpilot/internal/events"
	"webpilot/internal/metrics"
	"webpilot/internal/perception"
)

// Driver is the page operation surface a command executes against.
// Satisfied by *browser.Session.
type Driver interface {
	Navigate(ctx context.Context, rawURL string) (string, error)
	CurrentURL() string
	Title() (string, error)
	Exists(selector string) bool
	Visible(selector string) bool
	Clickable(selector string) bool
	Click(ctx context.Context, selector string) error
	ClickWithJS(ctx context.Context, selector string) error
	ClickParent(ctx context.Context, selector string) error
	ForceClick(ctx context.Context, selector string) error
	ScrollIntoView(ctx context.Context, selector string) error
	ScrollBy(ctx context.Context, dx, dy int) error
	Type(ctx context.Context, selector, text string, clear bool) error
	Clear(ctx context.Context, selector string) error
	PressKey(ctx context.Context, key string) error
	Focus(ctx context.Context, selector string) error
	Hover(ctx context.Context, selector string) error
	SelectOption(ctx context.Context, selector, value string) error
	WaitForElement(ctx context.Context, selector string, timeout time.Duration) error
	WaitForCondition(ctx context.Context, expr string, timeout time.Duration) error
	GoBack(ctx context.Context) error
	Refresh(ctx context.Context) error
	Screenshot(ctx context.Context, opts browser.ScreenshotOptions) (*browser.ScreenshotResult, error)
	Eval(ctx context.Context, js string) (interface{}, error)
	ExtractText(ctx context.Context, selector string) (string, error)
	ExtractLinks(ctx context.Context) ([]browser.Link, error)
	ExtractImages(ctx context.Context) ([]browser.Image, error)
	ExtractTables(ctx context.Context) ([]browser.Table, error)
	ExtractAttributes(ctx context.Context, selector string) (map[string]string, error)
	ExtractForm(ctx context.Context, selector string) (*browser.Form, error)
	ElementInfo(ctx context.Context, selector string) (*browser.ElementDetails, error)
	IsConnected() bool
}

// Collaborator proposes alternative parameters when the declared
// fallback ladder is exhausted of ideas. The returned feasibility
// becomes the result confidence.
type Collaborator interface {
	ProposeAlternative(ctx context.Context, commandName string, params map[string]interface{}, lastErr error) (map[string]interface{}, float64, error)
}

// ConditionFunc is a registered custom precondition.
type ConditionFunc func(ctx context.Context, d Driver, params map[string]interface{}) (bool, error)

// CriterionFunc is a registered custom success criterion evaluated
// against the command output.
type CriterionFunc func(output map[string]interface{}) bool

// Request describes one command execution.
type Request struct {
	Driver     Driver
	Command    *command.Command
	Parameters map[string]interface{}
	IntentTag  string

	// Timeout bounds the whole execution including fallbacks.
	// Zero means the configured default.
	Timeout time.Duration

	// MaxRetries overrides the configured retry budget for the
	// primary attempt. Negative means the configured default;
	// zero means no retries.
	MaxRetries int
}

// Engine runs requests. Optional collaborators are attached after
// construction; a bare engine still executes every builtin command.
type Engine struct {
	cfg    config.EngineConfig
	logger *zap.Logger

	analyzer *perception.Analyzer
	emitter  *events.Emitter
	metrics  *metrics.Collector
	stats    *command.StatsTracker
	collab   Collaborator

	conditions map[string]ConditionFunc
	criteria   map[string]CriterionFunc
}

func New(cfg config.EngineConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:        cfg,
		logger:     logger.With(zap.String("component", "engine")),
		conditions: make(map[string]ConditionFunc),
		criteria:   make(map[string]CriterionFunc),
	}
}

func (e *Engine) UseAnalyzer(a *perception.Analyzer) *Engine { e.analyzer = a; return e }
func (e *Engine) UseEmitter(em *events.Emitter) *Engine      { e.emitter = em; return e }
func (e *Engine) UseMetrics(m *metrics.Collector) *Engine    { e.metrics = m; return e }
func (e *Engine) UseStats(s *command.StatsTracker) *Engine   { e.stats = s; return e }
func (e *Engine) UseCollaborator(c Collaborator) *Engine     { e.collab = c; return e }

// RegisterCondition installs a named custom precondition.
func (e *Engine) RegisterCondition(name string, fn ConditionFunc) {
	e.conditions[name] = fn
}

// RegisterCriterion installs a named custom success criterion.
func (e *Engine) RegisterCriterion(name string, fn CriterionFunc) {
	e.criteria[name] = fn
}

// MinConfidence exposes the configured auto-execution threshold.
func (e *Engine) MinConfidence() float64 {
	return e.cfg.GetMinConfidence()
}

// Execute runs one command to a terminal status. The returned result
// always carries a status; errors are folded into it rather than
// returned separately so callers see one shape.
func (e *Engine) Execute(ctx context.Context, req Request) *Result {
	start := time.Now()
	res := &Result{
		Command:    req.Command.Name,
		Status:     StatusPending,
		StartedAt:  start,
		Confidence: 1.0,
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.cfg.DefaultTimeoutDuration()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	maxRetries := req.MaxRetries
	if maxRetries < 0 {
		maxRetries = e.cfg.GetMaxRetries()
	}

	if e.emitter != nil {
		e.emitter.CommandStarted(ctx, req.Command.Name, req.IntentTag)
	}

	output, execErr := e.run(ctx, req, maxRetries, res)

	res.FinishedAt = time.Now()
	res.DurationMs = res.FinishedAt.Sub(start).Milliseconds()
	res.Output = output

	switch {
	case execErr == nil:
		res.Status = StatusCompleted
		if len(res.FallbacksUsed) == 0 {
			res.Confidence = 1.0 - 0.1*float64(res.RetryCount)
			if res.Confidence < 0 {
				res.Confidence = 0
			}
		}
	case ctx.Err() == context.DeadlineExceeded:
		res.Status = StatusTimedOut
		res.Error = execErr.Error()
		res.ErrorKind = KindTimeout
		res.Confidence = 0
	default:
		res.Status = StatusFailed
		res.Error = execErr.Error()
		res.ErrorKind = KindOf(execErr)
		res.Confidence = 0
	}

	e.finalize(ctx, req, res)
	return res
}

// run walks the state machine up to a success output or a final error.
func (e *Engine) run(ctx context.Context, req Request, maxRetries int, res *Result) (map[string]interface{}, error) {
	res.Status = StatusCheckingPreconditions
	precondErr := e.checkPreconditions(ctx, req)

	var output map[string]interface{}
	var lastErr error

	if precondErr != nil {
		lastErr = precondErr
	} else {
		res.Status = StatusExecuting
		output, lastErr = e.attemptWithRetries(ctx, req, maxRetries, res)
		if lastErr == nil {
			res.Status = StatusValidatingSuccess
			lastErr = e.validate(req.Command, output)
		}
	}

	if lastErr == nil {
		return output, nil
	}
	if ctx.Err() != nil {
		return nil, lastErr
	}

	res.Status = StatusApplyingFallback
	output, conf, fbErr := e.applyFallbacks(ctx, req, lastErr, res)
	if fbErr != nil {
		return nil, fbErr
	}
	res.Confidence = conf
	return output, nil
}

// attemptWithRetries runs the primary dispatch, retrying transient
// failures with increasing delays.
func (e *Engine) attemptWithRetries(ctx context.Context, req Request, maxRetries int, res *Result) (map[string]interface{}, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		out, err := e.dispatch(ctx, req.Driver, req.Command.Name, req.Parameters)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if e.emitter != nil {
			e.emitter.AttemptFailed(ctx, req.Command.Name, attempt+1, err.Error())
		}
		if !IsTransient(err) || attempt >= maxRetries || ctx.Err() != nil {
			return nil, lastErr
		}

		res.RetryCount++
		if e.metrics != nil {
			e.metrics.RecordRetry(req.Command.Name)
		}
		if err := sleepWithContext(ctx, e.retryDelay(attempt+1)); err != nil {
			return nil, lastErr
		}
	}
}

// retryDelay grows from the configured base by half the base per
// retry, capped at double the base. With the default 2s base the
// sequence is 2s, 3s, 4s.
func (e *Engine) retryDelay(retry int) time.Duration {
	base := e.cfg.RetryDelayDuration()
	extra := base / 2 * time.Duration(retry-1)
	if extra > base {
		extra = base
	}
	return base + extra
}

func (e *Engine) finalize(ctx context.Context, req Request, res *Result) {
	if e.emitter != nil {
		e.emitter.CommandCompleted(ctx, req.Command.Name, string(res.Status), time.Duration(res.DurationMs)*time.Millisecond)
	}
	if e.metrics != nil {
		e.metrics.RecordCommand(req.Command.Name, string(res.Status), time.Duration(res.DurationMs)*time.Millisecond)
	}
	if e.stats != nil {
		e.stats.Record(command.Execution{
			Command:    req.Command.Name,
			Success:    res.Succeeded(),
			Duration:   time.Duration(res.DurationMs) * time.Millisecond,
			Error:      res.Error,
			FinishedAt: res.FinishedAt,
		})
	}
	e.logger.Debug("execution finished",
		zap.String("command", req.Command.Name),
		zap.String("status", string(res.Status)),
		zap.Int("retries", res.RetryCount),
		zap.Strings("fallbacks", res.FallbacksUsed),
		zap.Float64("confidence", res.Confidence))
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
