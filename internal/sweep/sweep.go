package sweep

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/exoforge/exo-orchestrator/internal/journal"
	"github.com/exoforge/exo-orchestrator/internal/lease"
	"github.com/exoforge/exo-orchestrator/internal/parser"
	"github.com/exoforge/exo-orchestrator/internal/workspace"
)

// Sweeper reclaims leases abandoned by crashed workers and re-dispatches
// plans stranded in the active directory
type Sweeper struct {
	leases      *lease.Manager
	ws          *workspace.Workspace
	journal     journal.Sink
	dispatch    func(path string)
	maxLeaseAge time.Duration
}

// Result summarizes one sweep
type Result struct {
	LeasesReleased  int
	PlansDispatched int
}

// NewSweeper creates a Sweeper. dispatch is called for each stranded plan
// and must tolerate paths that are already being processed.
func NewSweeper(leases *lease.Manager, ws *workspace.Workspace, sink journal.Sink, dispatch func(path string), maxLeaseAge time.Duration) *Sweeper {
	return &Sweeper{
		leases:      leases,
		ws:          ws,
		journal:     sink,
		dispatch:    dispatch,
		maxLeaseAge: maxLeaseAge,
	}
}

// Sweep performs one maintenance pass
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	var res Result

	released, err := s.leases.ReleaseOlderThan(s.maxLeaseAge)
	if err != nil {
		return res, fmt.Errorf("releasing stale leases: %w", err)
	}
	res.LeasesReleased = released

	held := make(map[string]bool)
	active, err := s.leases.Active()
	if err != nil {
		return res, fmt.Errorf("listing active leases: %w", err)
	}
	for _, l := range active {
		held[l.ResourceID] = true
	}

	plans, err := s.ws.ListActive()
	if err != nil {
		return res, fmt.Errorf("listing active plans: %w", err)
	}
	for _, path := range plans {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		plan, err := parser.ParseFile(path)
		if err == nil && held[plan.RequestID] {
			continue
		}
		if err != nil && os.IsNotExist(err) {
			continue
		}
		// Invalid plans go through the normal path too, which
		// requeues them with a report.
		s.dispatch(path)
		res.PlansDispatched++
	}

	s.emit(res)
	return res, nil
}

func (s *Sweeper) emit(res Result) {
	if s.journal == nil {
		return
	}
	s.journal.Emit(journal.Event{
		Type:    journal.EventSweepCompleted,
		Success: true,
		Payload: map[string]any{
			"leases_released":  res.LeasesReleased,
			"plans_dispatched": res.PlansDispatched,
		},
	})
}
