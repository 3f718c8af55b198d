package command

import (
	"sync"
	"time"
)

const (
	historyCap   = 1000
	historyDrain = 100
)

// Execution is one recorded run of a command.
type Execution struct {
	Command    string        `json:"command"`
	Success    bool          `json:"success"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	FinishedAt time.Time     `json:"finished_at"`
}

// commandStats accumulates per-command counters.
type commandStats struct {
	executions   int64
	successes    int64
	totalDur     time.Duration
	commonErrors map[string]int64
}

// StatsSnapshot is a read-only view of one command's track record.
type StatsSnapshot struct {
	Command       string           `json:"command"`
	Executions    int64            `json:"executions"`
	Successes     int64            `json:"successes"`
	SuccessRate   float64          `json:"success_rate"`
	AvgDurationMs int64            `json:"avg_duration_ms"`
	CommonErrors  map[string]int64 `json:"common_errors,omitempty"`
}

// StatsTracker records execution outcomes and keeps a bounded recent
// history. When the history fills, the oldest entries are drained in a
// batch to avoid shifting on every insert.
type StatsTracker struct {
	mu      sync.RWMutex
	byCmd   map[string]*commandStats
	history []Execution
}

func NewStatsTracker() *StatsTracker {
	return &StatsTracker{byCmd: make(map[string]*commandStats)}
}

// Record adds one execution outcome.
func (t *StatsTracker) Record(exec Execution) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cs := t.byCmd[exec.Command]
	if cs == nil {
		cs = &commandStats{commonErrors: make(map[string]int64)}
		t.byCmd[exec.Command] = cs
	}
	cs.executions++
	cs.totalDur += exec.Duration
	if exec.Success {
		cs.successes++
	} else if exec.Error != "" {
		cs.commonErrors[exec.Error]++
	}

	t.history = append(t.history, exec)
	if len(t.history) > historyCap {
		t.history = t.history[historyDrain:]
	}
}

// SuccessRate returns successes/executions for a command, or 0 when it
// has never run.
func (t *StatsTracker) SuccessRate(cmd string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cs := t.byCmd[cmd]
	if cs == nil || cs.executions == 0 {
		return 0
	}
	return float64(cs.successes) / float64(cs.executions)
}

// Executions returns the total run count for a command.
func (t *StatsTracker) Executions(cmd string) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cs := t.byCmd[cmd]
	if cs == nil {
		return 0
	}
	return cs.executions
}

// Snapshot returns the aggregated view for one command.
func (t *StatsTracker) Snapshot(cmd string) StatsSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := StatsSnapshot{Command: cmd}
	cs := t.byCmd[cmd]
	if cs == nil || cs.executions == 0 {
		return snap
	}
	snap.Executions = cs.executions
	snap.Successes = cs.successes
	snap.SuccessRate = float64(cs.successes) / float64(cs.executions)
	snap.AvgDurationMs = int64(cs.totalDur/time.Millisecond) / cs.executions
	if len(cs.commonErrors) > 0 {
		snap.CommonErrors = make(map[string]int64, len(cs.commonErrors))
		for k, v := range cs.commonErrors {
			snap.CommonErrors[k] = v
		}
	}
	return snap
}

// History returns a copy of the recent execution history.
func (t *StatsTracker) History() []Execution {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Execution, len(t.history))
	copy(out, t.history)
	return out
}
