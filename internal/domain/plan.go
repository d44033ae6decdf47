package domain

// PlanStatus represents the lifecycle state of a plan file
type PlanStatus string

const (
	StatusApproved  PlanStatus = "approved"
	StatusExecuting PlanStatus = "executing"
	StatusCompleted PlanStatus = "completed"
	StatusFailed    PlanStatus = "failed"
)

// Plan is a fully validated task descriptor parsed from a plan file.
// TraceID and RequestID are always non-empty; a file that cannot supply
// them never produces a Plan value.
type Plan struct {
	TraceID     string
	RequestID   string
	AgentID     string
	Status      PlanStatus
	Title       string
	Description string
	FilePath    string
	Actions     []Action
}

// Action describes a single operation dispatched to the tool registry
type Action struct {
	Tool   string
	Params map[string]any
}

// ShortTraceID returns the first 8 characters of a trace id, used in
// branch names and compact listings
func ShortTraceID(traceID string) string {
	if len(traceID) > 8 {
		return traceID[:8]
	}
	return traceID
}
