// Package events publishes execution lifecycle events to the log and
// to the fact store, keeping both in step so derived rules can reason
// over the same stream operators read.
package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	"webpilot/internal/facts"
)

// Sink receives facts. Satisfied by *facts.Engine.
type Sink interface {
	AddFacts(ctx context.Context, fs []facts.Fact) error
}

// Emitter publishes lifecycle events. A nil sink degrades to
// log-only emission.
type Emitter struct {
	logger *zap.Logger
	sink   Sink
}

func NewEmitter(logger *zap.Logger, sink Sink) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{
		logger: logger.With(zap.String("component", "events")),
		sink:   sink,
	}
}

func (e *Emitter) emit(ctx context.Context, predicate string, args ...interface{}) {
	if e.sink == nil {
		return
	}
	fact := facts.Fact{Predicate: predicate, Args: args, Timestamp: time.Now()}
	if err := e.sink.AddFacts(ctx, []facts.Fact{fact}); err != nil {
		e.logger.Debug("fact emission failed", zap.String("predicate", predicate), zap.Error(err))
	}
}

// CommandStarted records the beginning of a command execution.
func (e *Emitter) CommandStarted(ctx context.Context, command, intentTag string) {
	e.logger.Info("command started",
		zap.String("command", command),
		zap.String("intent", intentTag))
	e.emit(ctx, "command_started", command, intentTag, time.Now().UnixMilli())
}

// AttemptFailed records one failed attempt before retries or fallbacks.
func (e *Emitter) AttemptFailed(ctx context.Context, command string, attempt int, reason string) {
	e.logger.Warn("attempt failed",
		zap.String("command", command),
		zap.Int("attempt", attempt),
		zap.String("reason", reason))
	e.emit(ctx, "attempt_failed", command, int64(attempt), reason)
}

// FallbackApplied records that a recovery strategy ran.
func (e *Emitter) FallbackApplied(ctx context.Context, command, strategy string) {
	e.logger.Info("fallback applied",
		zap.String("command", command),
		zap.String("strategy", strategy))
	e.emit(ctx, "fallback_applied", command, strategy)
}

// CommandCompleted records the terminal status of a command.
func (e *Emitter) CommandCompleted(ctx context.Context, command, status string, duration time.Duration) {
	e.logger.Info("command completed",
		zap.String("command", command),
		zap.String("status", status),
		zap.Duration("duration", duration))
	e.emit(ctx, "command_completed", command, status, duration.Milliseconds())
}

// PlanCompleted records the terminal status of a whole plan.
func (e *Emitter) PlanCompleted(ctx context.Context, planID, intentTag, status string) {
	e.logger.Info("plan completed",
		zap.String("plan", planID),
		zap.String("intent", intentTag),
		zap.String("status", status))
	e.emit(ctx, "plan_completed", planID, intentTag, status)
}
