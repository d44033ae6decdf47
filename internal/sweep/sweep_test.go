package sweep

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/exoforge/exo-orchestrator/internal/journal"
	"github.com/exoforge/exo-orchestrator/internal/lease"
	"github.com/exoforge/exo-orchestrator/internal/workspace"
)

func TestParseCron(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"0 22 * * *", false},   // 10 PM daily
		{"0 12 * * 1-5", false}, // noon weekdays
		{"*/5 * * * *", false},  // every 5 minutes
		{"invalid", true},
	}

	for _, tt := range tests {
		_, err := ParseCron(tt.expr)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCron(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
		}
	}
}

func TestSchedulerRejectsInvalidCron(t *testing.T) {
	if _, err := NewScheduler("not a cron"); err == nil {
		t.Error("invalid cron expression should error")
	}
}

func TestSchedulerNextRun(t *testing.T) {
	sched, err := NewScheduler("0 22 * * *")
	if err != nil {
		t.Fatal(err)
	}

	next := sched.NextRun()
	if next.IsZero() {
		t.Error("NextRun should return a time")
	}
	if !next.After(time.Now()) {
		t.Error("NextRun should be in the future")
	}
}

func TestSchedulerShouldRun(t *testing.T) {
	sched, err := NewScheduler("* * * * *") // Every minute
	if err != nil {
		t.Fatal(err)
	}

	sched.lastRun = time.Now().Add(-2 * time.Minute)
	if !sched.ShouldRun() {
		t.Error("Should run after cron interval passed")
	}

	sched.running = true
	if sched.ShouldRun() {
		t.Error("Should not run while a sweep is in progress")
	}
}

const sweepPlan = `---
trace_id: 0199a7b2-4c21-7d3e-9f10-5b6c7d8e9f01
request_id: stranded-plan
agent_id: planner-1
status: approved
---

# Stranded plan
`

const leasedPlan = `---
trace_id: 0199a7b2-4c21-7d3e-9f10-5b6c7d8e9f02
request_id: leased-plan
agent_id: planner-1
status: approved
---

# Leased plan
`

func newTestSweeper(t *testing.T, dispatch func(string), maxAge time.Duration) (*Sweeper, *lease.Manager, *workspace.Workspace) {
	t.Helper()

	leases, err := lease.New(filepath.Join(t.TempDir(), "leases.db"))
	if err != nil {
		t.Fatalf("creating lease manager: %v", err)
	}
	t.Cleanup(func() { leases.Close() })

	ws := workspace.New(t.TempDir())
	if err := ws.Provision(); err != nil {
		t.Fatalf("provisioning workspace: %v", err)
	}

	return NewSweeper(leases, ws, nil, dispatch, maxAge), leases, ws
}

func TestSweepReleasesStaleLeases(t *testing.T) {
	sweeper, leases, _ := newTestSweeper(t, func(string) {}, 0)

	if err := leases.Acquire("stale-resource", "crashed-worker"); err != nil {
		t.Fatalf("acquiring lease: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	res, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if res.LeasesReleased != 1 {
		t.Errorf("LeasesReleased = %d, want 1", res.LeasesReleased)
	}

	active, err := leases.Active()
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Errorf("expected no active leases after sweep, got %d", len(active))
	}
}

func TestSweepDispatchesStrandedPlans(t *testing.T) {
	var dispatched []string
	sweeper, leases, ws := newTestSweeper(t, func(path string) {
		dispatched = append(dispatched, filepath.Base(path))
	}, time.Hour)

	if err := os.WriteFile(filepath.Join(ws.ActiveDir(), "stranded.md"), []byte(sweepPlan), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ws.ActiveDir(), "leased.md"), []byte(leasedPlan), 0644); err != nil {
		t.Fatal(err)
	}
	if err := leases.Acquire("leased-plan", "other-worker"); err != nil {
		t.Fatalf("acquiring lease: %v", err)
	}

	res, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if res.PlansDispatched != 1 {
		t.Errorf("PlansDispatched = %d, want 1", res.PlansDispatched)
	}
	if len(dispatched) != 1 || dispatched[0] != "stranded.md" {
		t.Errorf("dispatched = %v, want [stranded.md]", dispatched)
	}
}

func TestSweepDispatchesInvalidPlans(t *testing.T) {
	var dispatched []string
	sweeper, _, ws := newTestSweeper(t, func(path string) {
		dispatched = append(dispatched, filepath.Base(path))
	}, time.Hour)

	if err := os.WriteFile(filepath.Join(ws.ActiveDir(), "broken.md"), []byte("no frontmatter"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if res.PlansDispatched != 1 {
		t.Errorf("PlansDispatched = %d, want 1", res.PlansDispatched)
	}
	if len(dispatched) != 1 || dispatched[0] != "broken.md" {
		t.Errorf("dispatched = %v, want [broken.md]", dispatched)
	}
}

func TestSweepEmitsEvent(t *testing.T) {
	var events []journal.Event
	sink := sinkFunc(func(e journal.Event) { events = append(events, e) })

	leases, err := lease.New(filepath.Join(t.TempDir(), "leases.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer leases.Close()

	ws := workspace.New(t.TempDir())
	if err := ws.Provision(); err != nil {
		t.Fatal(err)
	}

	sweeper := NewSweeper(leases, ws, sink, func(string) {}, time.Hour)
	if _, err := sweeper.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if len(events) != 1 || events[0].Type != journal.EventSweepCompleted {
		t.Errorf("events = %v, want one sweep.completed", events)
	}
}

type sinkFunc func(journal.Event)

func (f sinkFunc) Emit(e journal.Event) { f(e) }
