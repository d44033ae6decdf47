package journal

import "time"

// Event types emitted by the git layer and the orchestrator
const (
	EventGitInit            = "git.init"
	EventGitIdentity        = "git.identity"
	EventGitBranch          = "git.branch"
	EventGitCheckout        = "git.checkout"
	EventGitCommit          = "git.commit"
	EventGitRollback        = "git.rollback"
	EventExecutionStarted   = "execution.started"
	EventExecutionCompleted = "execution.completed"
	EventExecutionFailed    = "execution.failed"
	EventSweepCompleted     = "sweep.completed"
)

// Event is one append-only activity record
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	TraceID   string         `json:"trace_id,omitempty"`
	AgentID   string         `json:"agent_id,omitempty"`
	Target    string         `json:"target,omitempty"`
	Success   bool           `json:"success"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Sink receives events. Implementations must never block the caller;
// emission is best-effort and a failing sink must not affect the
// operation being journaled.
type Sink interface {
	Emit(e Event)
}

// ExecutionRecord summarizes one completed execution attempt
type ExecutionRecord struct {
	ID         string    `json:"id"`
	TraceID    string    `json:"trace_id"`
	RequestID  string    `json:"request_id"`
	AgentID    string    `json:"agent_id,omitempty"`
	Branch     string    `json:"branch,omitempty"`
	Commit     string    `json:"commit,omitempty"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration returns the wall-clock time of the execution
func (r ExecutionRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
