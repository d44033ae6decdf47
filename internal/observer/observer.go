package observer

import (
	"sync"
	"time"

	"github.com/exoforge/exo-orchestrator/internal/domain"
)

// Observer collects execution metrics and spots stuck runs
type Observer struct {
	stuckThreshold time.Duration

	completions []completion
	mu          sync.RWMutex
}

type completion struct {
	TraceID     string
	RequestID   string
	Duration    time.Duration
	Success     bool
	CompletedAt time.Time
}

// Metrics holds aggregated metrics
type Metrics struct {
	TotalCompleted int
	TotalFailed    int
	AvgDuration    time.Duration
}

// New creates a new Observer
func New(stuckThreshold time.Duration) *Observer {
	return &Observer{
		stuckThreshold: stuckThreshold,
	}
}

// IsStuck returns true if an execution started at the given time has been
// running longer than the stuck threshold
func (o *Observer) IsStuck(startedAt time.Time) bool {
	if startedAt.IsZero() {
		return false
	}
	return time.Since(startedAt) > o.stuckThreshold
}

// Record records a finished execution
func (o *Observer) Record(plan *domain.Plan, res domain.ExecutionResult) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.completions = append(o.completions, completion{
		TraceID:     res.TraceID,
		RequestID:   plan.RequestID,
		Duration:    res.Duration,
		Success:     res.Success,
		CompletedAt: time.Now(),
	})
}

// GetMetrics returns aggregated metrics. AvgDuration covers successful
// executions only.
func (o *Observer) GetMetrics() Metrics {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var metrics Metrics
	var totalDuration time.Duration

	for _, c := range o.completions {
		if c.Success {
			metrics.TotalCompleted++
			totalDuration += c.Duration
		} else {
			metrics.TotalFailed++
		}
	}

	if metrics.TotalCompleted > 0 {
		metrics.AvgDuration = totalDuration / time.Duration(metrics.TotalCompleted)
	}

	return metrics
}

// GetRecentCompletions returns trace IDs completed within the last duration
func (o *Observer) GetRecentCompletions(since time.Duration) []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	cutoff := time.Now().Add(-since)
	var result []string

	for _, c := range o.completions {
		if c.CompletedAt.After(cutoff) {
			result = append(result, c.TraceID)
		}
	}

	return result
}
