//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/exoforge/exo-orchestrator/internal/gitops"
	"github.com/exoforge/exo-orchestrator/internal/journal"
	"github.com/exoforge/exo-orchestrator/internal/lease"
	"github.com/exoforge/exo-orchestrator/internal/orchestrator"
	"github.com/exoforge/exo-orchestrator/internal/report"
	"github.com/exoforge/exo-orchestrator/internal/scaffold"
	"github.com/exoforge/exo-orchestrator/internal/tools"
	"github.com/exoforge/exo-orchestrator/internal/workspace"
)

// TestFlow_ScaffoldToCommit drives the full pipeline in process:
// template -> inbox -> approve -> execute -> archive + journal.
func TestFlow_ScaffoldToCommit(t *testing.T) {
	base := t.TempDir()
	repoDir := filepath.Join(base, "repo")
	dbPath := filepath.Join(base, "exo.db")

	ws := workspace.New(filepath.Join(base, "workspace"))
	if err := ws.Provision(); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	store, err := journal.New(dbPath)
	if err != nil {
		t.Fatalf("journal.New failed: %v", err)
	}
	defer store.Close()

	recorder := journal.NewRecorder(store)
	defer recorder.Close()

	leases, err := lease.New(dbPath)
	if err != nil {
		t.Fatalf("lease.New failed: %v", err)
	}
	defer leases.Close()

	// Scaffold a plan into the inbox and approve it
	tpl := scaffold.GetTemplate("file-change")
	if tpl == nil {
		t.Fatal("file-change template missing")
	}
	inboxPath := filepath.Join(ws.InboxDir(), "pipeline-demo.md")
	if err := os.WriteFile(inboxPath, []byte(tpl.Render("pipeline-demo", "test-agent")), 0644); err != nil {
		t.Fatal(err)
	}

	activePath, err := ws.Activate(inboxPath)
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	repo := gitops.NewRepository(repoDir, gitops.Options{
		Journal:  recorder,
		BotName:  "Test Bot",
		BotEmail: "test@example.com",
	})

	orch := orchestrator.New(orchestrator.Config{
		Repo:       repo,
		Leases:     leases,
		Tools:      tools.NewRegistry(repoDir, tools.Options{}),
		Workspace:  ws,
		Reports:    report.NewReporter(ws.ReportsDir()),
		Journal:    recorder,
		Executions: store,
		HolderID:   "integration-test",
	})

	res := orch.ProcessTask(context.Background(), activePath)
	if res.Err != nil {
		t.Fatalf("ProcessTask failed: %v", res.Err)
	}
	if !res.Success {
		t.Fatal("ProcessTask reported failure")
	}

	// The template's action wrote its placeholder file
	if _, err := os.Stat(filepath.Join(repoDir, "path", "to", "file.txt")); err != nil {
		t.Errorf("Template action output missing: %v", err)
	}

	// Plan archived, report written
	archived, err := os.ReadDir(ws.ArchiveDir())
	if err != nil || len(archived) != 1 {
		t.Errorf("Archive entries = %d (err %v), want 1", len(archived), err)
	}
	reports, err := os.ReadDir(ws.ReportsDir())
	if err != nil || len(reports) != 1 {
		t.Errorf("Report entries = %d (err %v), want 1", len(reports), err)
	}

	// Lease released, execution recorded, events persisted
	active, err := leases.Active()
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("Active leases = %d, want 0", len(active))
	}

	recorder.Close()

	recs, err := store.RecentExecutions(10)
	if err != nil {
		t.Fatalf("RecentExecutions failed: %v", err)
	}
	if len(recs) != 1 || !recs[0].Success {
		t.Fatalf("Execution record missing or failed: %+v", recs)
	}
	if recs[0].TraceID != res.TraceID {
		t.Errorf("TraceID = %q, want %q", recs[0].TraceID, res.TraceID)
	}

	events, err := store.ByTrace(res.TraceID)
	if err != nil {
		t.Fatalf("ByTrace failed: %v", err)
	}
	types := make(map[string]int)
	for _, e := range events {
		types[e.Type]++
	}
	for _, want := range []string{
		journal.EventExecutionStarted,
		journal.EventGitBranch,
		journal.EventGitCommit,
		journal.EventExecutionCompleted,
	} {
		if types[want] == 0 {
			t.Errorf("No %s event recorded (got %v)", want, types)
		}
	}
}

// TestFlow_FailureRequeues verifies the failure path end to end: a bad
// action rolls the tree back and requeues the plan.
func TestFlow_FailureRequeues(t *testing.T) {
	base := t.TempDir()
	repoDir := filepath.Join(base, "repo")
	dbPath := filepath.Join(base, "exo.db")

	ws := workspace.New(filepath.Join(base, "workspace"))
	if err := ws.Provision(); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	store, err := journal.New(dbPath)
	if err != nil {
		t.Fatalf("journal.New failed: %v", err)
	}
	defer store.Close()

	recorder := journal.NewRecorder(store)
	defer recorder.Close()

	leases, err := lease.New(dbPath)
	if err != nil {
		t.Fatalf("lease.New failed: %v", err)
	}
	defer leases.Close()

	planPath := filepath.Join(ws.ActiveDir(), "escape.md")
	WritePlan(t, planPath, "T9ffffff-0000-1111-2222-333344445555", "escape",
		"Escape attempt", "```action\ntool: write_file\nparams:\n  path: ../outside.txt\n  content: x\n```\n")

	repo := gitops.NewRepository(repoDir, gitops.Options{
		Journal:  recorder,
		BotName:  "Test Bot",
		BotEmail: "test@example.com",
	})

	orch := orchestrator.New(orchestrator.Config{
		Repo:       repo,
		Leases:     leases,
		Tools:      tools.NewRegistry(repoDir, tools.Options{}),
		Workspace:  ws,
		Reports:    report.NewReporter(ws.ReportsDir()),
		Journal:    recorder,
		Executions: store,
		HolderID:   "integration-test",
	})

	res := orch.ProcessTask(context.Background(), planPath)
	if res.Err == nil {
		t.Fatal("ProcessTask succeeded on an escaping action")
	}
	if res.Success {
		t.Error("Success = true on failure")
	}

	// Nothing escaped the repository and nothing was left behind
	if _, err := os.Stat(filepath.Join(base, "outside.txt")); !os.IsNotExist(err) {
		t.Error("Action escaped the repository root")
	}

	requeued, err := os.ReadDir(ws.InboxDir())
	if err != nil || len(requeued) != 1 {
		t.Errorf("Inbox entries = %d (err %v), want 1", len(requeued), err)
	}

	recorder.Close()

	events, err := store.ByTrace(res.TraceID)
	if err != nil {
		t.Fatalf("ByTrace failed: %v", err)
	}
	var failed, rolledBack bool
	for _, e := range events {
		switch e.Type {
		case journal.EventExecutionFailed:
			failed = true
		case journal.EventGitRollback:
			rolledBack = true
		}
	}
	if !failed {
		t.Error("No execution.failed event recorded")
	}
	if !rolledBack {
		t.Error("No git.rollback event recorded")
	}
}
