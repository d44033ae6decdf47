package observer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/exoforge/exo-orchestrator/internal/domain"
)

func TestObserver_DetectStuck(t *testing.T) {
	obs := New(5 * time.Minute)

	if !obs.IsStuck(time.Now().Add(-10 * time.Minute)) {
		t.Error("Execution running for 10 minutes should be detected as stuck")
	}
	if obs.IsStuck(time.Now().Add(-2 * time.Minute)) {
		t.Error("Execution running for 2 minutes should not be stuck")
	}
	if obs.IsStuck(time.Time{}) {
		t.Error("Zero start time should not be stuck")
	}
}

func TestObserver_Metrics(t *testing.T) {
	obs := New(5 * time.Minute)

	plan := &domain.Plan{RequestID: "add-healthcheck"}
	obs.Record(plan, domain.ExecutionResult{TraceID: "t1", Success: true, Duration: 5 * time.Minute})
	obs.Record(plan, domain.ExecutionResult{TraceID: "t2", Success: true, Duration: 10 * time.Minute})
	obs.Record(plan, domain.ExecutionResult{TraceID: "t3", Success: false, Duration: 30 * time.Second})

	metrics := obs.GetMetrics()

	if metrics.TotalCompleted != 2 {
		t.Errorf("TotalCompleted = %d, want 2", metrics.TotalCompleted)
	}
	if metrics.TotalFailed != 1 {
		t.Errorf("TotalFailed = %d, want 1", metrics.TotalFailed)
	}
	if metrics.AvgDuration != 7*time.Minute+30*time.Second {
		t.Errorf("AvgDuration = %v, want 7m30s", metrics.AvgDuration)
	}
}

func TestObserver_RecentCompletions(t *testing.T) {
	obs := New(5 * time.Minute)

	plan := &domain.Plan{RequestID: "add-healthcheck"}
	obs.Record(plan, domain.ExecutionResult{TraceID: "t1", Success: true})

	recent := obs.GetRecentCompletions(time.Minute)
	if len(recent) != 1 || recent[0] != "t1" {
		t.Errorf("GetRecentCompletions = %v, want [t1]", recent)
	}
}

func TestPlanWatcher_BatchesChanges(t *testing.T) {
	dir := t.TempDir()

	got := make(chan []string, 1)
	pw, err := NewPlanWatcher(func(files []string) {
		got <- files
	})
	if err != nil {
		t.Fatalf("NewPlanWatcher failed: %v", err)
	}
	defer pw.Stop()

	pw.SetDebounce(50 * time.Millisecond)
	if err := pw.Watch(dir); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pw.Start(ctx)

	for _, name := range []string{"one.md", "two.md", "skip.txt", ".hidden.md"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("# Plan"), 0644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}

	select {
	case files := <-got:
		names := make([]string, 0, len(files))
		for _, f := range files {
			names = append(names, filepath.Base(f))
		}
		sort.Strings(names)
		if len(names) != 2 || names[0] != "one.md" || names[1] != "two.md" {
			t.Errorf("callback files = %v, want [one.md two.md]", names)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watcher callback never fired")
	}
}

func TestPlanWatcher_IgnoresRemovals(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "plan.md")
	if err := os.WriteFile(path, []byte("# Plan"), 0644); err != nil {
		t.Fatal(err)
	}

	got := make(chan []string, 1)
	pw, err := NewPlanWatcher(func(files []string) {
		got <- files
	})
	if err != nil {
		t.Fatalf("NewPlanWatcher failed: %v", err)
	}
	defer pw.Stop()

	pw.SetDebounce(50 * time.Millisecond)
	if err := pw.Watch(dir); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pw.Start(ctx)

	if err := os.Rename(path, filepath.Join(t.TempDir(), "plan.md")); err != nil {
		t.Fatal(err)
	}

	select {
	case files := <-got:
		t.Errorf("unexpected callback for removal: %v", files)
	case <-time.After(300 * time.Millisecond):
	}
}
