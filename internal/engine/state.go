package engine

import "time"

// Status is the lifecycle state of one command execution. Transitions
// run strictly forward: pending, checking preconditions, executing,
// validating success, applying fallback, then one of the terminal
// states.
type Status string

const (
	StatusPending               Status = "pending"
	StatusCheckingPreconditions Status = "checking_preconditions"
	StatusExecuting             Status = "executing"
	StatusValidatingSuccess     Status = "validating_success"
	StatusApplyingFallback      Status = "applying_fallback"
	StatusCompleted             Status = "completed"
	StatusFailed                Status = "failed"
	StatusTimedOut              Status = "timed_out"
)

// Terminal reports whether the status ends the execution.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusTimedOut
}

// Result is the JSON-serializable outcome of one execution.
type Result struct {
	Command       string                 `json:"command"`
	Status        Status                 `json:"status"`
	Output        map[string]interface{} `json:"output,omitempty"`
	Error         string                 `json:"error,omitempty"`
	ErrorKind     ErrorKind              `json:"error_kind,omitempty"`
	Confidence    float64                `json:"confidence"`
	RetryCount    int                    `json:"retry_count"`
	FallbacksUsed []string               `json:"fallbacks_used,omitempty"`
	StartedAt     time.Time              `json:"started_at"`
	FinishedAt    time.Time              `json:"finished_at"`
	DurationMs    int64                  `json:"duration_ms"`
}

// Succeeded reports whether the execution reached completion.
func (r *Result) Succeeded() bool {
	return r.Status == StatusCompleted
}
