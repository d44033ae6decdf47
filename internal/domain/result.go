package domain

import "time"

// ExecutionResult is the outcome of one ProcessTask call. Domain failures
// are carried in Err; the call itself never fails.
type ExecutionResult struct {
	Success  bool
	TraceID  string
	Branch   string
	Commit   string
	Err      error
	Duration time.Duration
}

// ErrorText returns the failure message, or "" on success
func (r ExecutionResult) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
