package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/exoforge/exo-orchestrator/internal/journal"
	"github.com/exoforge/exo-orchestrator/internal/lease"
)

// ExecutionResponse is the API response for one execution attempt
type ExecutionResponse struct {
	TraceID    string `json:"trace_id"`
	RequestID  string `json:"request_id"`
	AgentID    string `json:"agent_id,omitempty"`
	Branch     string `json:"branch,omitempty"`
	Commit     string `json:"commit,omitempty"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	Duration   string `json:"duration"`
}

// EventResponse is the API response for one journal event
type EventResponse struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	TraceID   string         `json:"trace_id,omitempty"`
	AgentID   string         `json:"agent_id,omitempty"`
	Target    string         `json:"target,omitempty"`
	Success   bool           `json:"success"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt string         `json:"created_at"`
}

// LeaseResponse is the API response for one active lease
type LeaseResponse struct {
	ResourceID string `json:"resource_id"`
	HolderID   string `json:"holder_id"`
	AcquiredAt string `json:"acquired_at"`
	Age        string `json:"age"`
}

// RunningResponse is the API response for one in-flight plan
type RunningResponse struct {
	Path      string `json:"path"`
	StartedAt string `json:"started_at"`
	Stuck     bool   `json:"stuck"`
}

// StatusResponse is the API response for overall status
type StatusResponse struct {
	Completed    int    `json:"completed"`
	Failed       int    `json:"failed"`
	AvgDuration  string `json:"avg_duration"`
	InFlight     int    `json:"in_flight"`
	ActiveLeases int    `json:"active_leases"`
}

func executionToResponse(rec journal.ExecutionRecord) ExecutionResponse {
	return ExecutionResponse{
		TraceID:    rec.TraceID,
		RequestID:  rec.RequestID,
		AgentID:    rec.AgentID,
		Branch:     rec.Branch,
		Commit:     rec.Commit,
		Success:    rec.Success,
		Error:      rec.Error,
		StartedAt:  rec.StartedAt.Format(time.RFC3339),
		FinishedAt: rec.FinishedAt.Format(time.RFC3339),
		Duration:   rec.Duration().Round(time.Millisecond).String(),
	}
}

func eventToResponse(e journal.Event) EventResponse {
	return EventResponse{
		ID:        e.ID,
		Type:      e.Type,
		TraceID:   e.TraceID,
		AgentID:   e.AgentID,
		Target:    e.Target,
		Success:   e.Success,
		Payload:   e.Payload,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
}

func leaseToResponse(l lease.Lease) LeaseResponse {
	return LeaseResponse{
		ResourceID: l.ResourceID,
		HolderID:   l.HolderID,
		AcquiredAt: l.AcquiredAt.Format(time.RFC3339),
		Age:        time.Since(l.AcquiredAt).Round(time.Second).String(),
	}
}

func limitParam(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}

func (s *Server) statusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var status StatusResponse

		if s.metrics != nil {
			m := s.metrics.GetMetrics()
			status.Completed = m.TotalCompleted
			status.Failed = m.TotalFailed
			status.AvgDuration = m.AvgDuration.Round(time.Millisecond).String()
		}
		if s.runs != nil {
			status.InFlight = len(s.runs.InFlight())
		}
		if s.leases != nil {
			active, err := s.leases.Active()
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			status.ActiveLeases = len(active)
		}

		writeJSON(w, status)
	}
}

func (s *Server) listExecutionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		records, err := s.journal.RecentExecutions(limitParam(r, 50))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		responses := make([]ExecutionResponse, len(records))
		for i, rec := range records {
			responses[i] = executionToResponse(rec)
		}
		writeJSON(w, responses)
	}
}

func (s *Server) listEventsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		events, err := s.journal.Recent(limitParam(r, 100))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		responses := make([]EventResponse, len(events))
		for i, e := range events {
			responses[i] = eventToResponse(e)
		}
		writeJSON(w, responses)
	}
}

func (s *Server) listLeasesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		active, err := s.leases.Active()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		responses := make([]LeaseResponse, len(active))
		for i, l := range active {
			responses[i] = leaseToResponse(l)
		}
		writeJSON(w, responses)
	}
}

func (s *Server) listRunningHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		if s.runs == nil {
			writeJSON(w, []RunningResponse{})
			return
		}

		running := s.runs.InFlight()
		responses := make([]RunningResponse, 0, len(running))
		for _, run := range running {
			resp := RunningResponse{
				Path:      run.Path,
				StartedAt: run.StartedAt.Format(time.RFC3339),
			}
			if s.metrics != nil {
				resp.Stuck = s.metrics.IsStuck(run.StartedAt)
			}
			responses = append(responses, resp)
		}
		writeJSON(w, responses)
	}
}
