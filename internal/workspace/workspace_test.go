package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestProvisionCreatesLayout(t *testing.T) {
	ws := New(t.TempDir())
	if err := ws.Provision(); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	for _, dir := range []string{ws.ActiveDir(), ws.ArchiveDir(), ws.InboxDir(), ws.ReportsDir()} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}

	// provisioning twice must not fail
	if err := ws.Provision(); err != nil {
		t.Fatalf("second Provision failed: %v", err)
	}
}

func TestArchiveMovesFile(t *testing.T) {
	ws := New(t.TempDir())
	if err := ws.Provision(); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	src := filepath.Join(ws.ActiveDir(), "plan.md")
	if err := os.WriteFile(src, []byte("# Plan"), 0644); err != nil {
		t.Fatalf("writing plan: %v", err)
	}

	dest, err := ws.Archive(src)
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if dest != filepath.Join(ws.ArchiveDir(), "plan.md") {
		t.Errorf("unexpected destination %s", dest)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source file still exists after archive")
	}
	content, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading archived plan: %v", err)
	}
	if string(content) != "# Plan" {
		t.Errorf("archived content = %q", content)
	}
}

func TestRequeueMovesToInbox(t *testing.T) {
	ws := New(t.TempDir())
	if err := ws.Provision(); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	src := filepath.Join(ws.ActiveDir(), "broken.md")
	if err := os.WriteFile(src, []byte("# Broken"), 0644); err != nil {
		t.Fatalf("writing plan: %v", err)
	}

	dest, err := ws.Requeue(src)
	if err != nil {
		t.Fatalf("Requeue failed: %v", err)
	}
	if filepath.Dir(dest) != ws.InboxDir() {
		t.Errorf("requeued outside inbox: %s", dest)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("requeued file missing: %v", err)
	}
}

func TestMoveDisambiguatesCollisions(t *testing.T) {
	ws := New(t.TempDir())
	if err := ws.Provision(); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	occupied := filepath.Join(ws.ArchiveDir(), "plan.md")
	if err := os.WriteFile(occupied, []byte("earlier run"), 0644); err != nil {
		t.Fatalf("writing existing archive entry: %v", err)
	}

	src := filepath.Join(ws.ActiveDir(), "plan.md")
	if err := os.WriteFile(src, []byte("later run"), 0644); err != nil {
		t.Fatalf("writing plan: %v", err)
	}

	dest, err := ws.Archive(src)
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if dest == occupied {
		t.Fatal("collision was not disambiguated")
	}
	if !strings.HasPrefix(filepath.Base(dest), "plan-") || !strings.HasSuffix(dest, ".md") {
		t.Errorf("unexpected disambiguated name %s", filepath.Base(dest))
	}

	// both files survive untouched
	earlier, _ := os.ReadFile(occupied)
	later, _ := os.ReadFile(dest)
	if string(earlier) != "earlier run" || string(later) != "later run" {
		t.Errorf("contents after collision: earlier=%q later=%q", earlier, later)
	}
}

func TestActivatePromotesFromInbox(t *testing.T) {
	ws := New(t.TempDir())
	if err := ws.Provision(); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	src := filepath.Join(ws.InboxDir(), "draft.md")
	if err := os.WriteFile(src, []byte("# Draft"), 0644); err != nil {
		t.Fatalf("writing draft: %v", err)
	}

	dest, err := ws.Activate(src)
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if filepath.Dir(dest) != ws.ActiveDir() {
		t.Errorf("activated outside active dir: %s", dest)
	}
}

func TestListActive(t *testing.T) {
	ws := New(t.TempDir())
	if err := ws.Provision(); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	for _, name := range []string{"a.md", "b.md", ".hidden.md", "notes.txt"} {
		path := filepath.Join(ws.ActiveDir(), name)
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(ws.ActiveDir(), "sub.md"), 0755); err != nil {
		t.Fatalf("creating subdir: %v", err)
	}

	plans, err := ws.ListActive()
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(plans) != 2 {
		t.Fatalf("expected 2 plans, got %d: %v", len(plans), plans)
	}
	for _, plan := range plans {
		base := filepath.Base(plan)
		if base != "a.md" && base != "b.md" {
			t.Errorf("unexpected plan %s", base)
		}
	}
}

func TestListInbox(t *testing.T) {
	ws := New(t.TempDir())
	if err := ws.Provision(); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	path := filepath.Join(ws.InboxDir(), "queued.md")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("writing plan: %v", err)
	}

	plans, err := ws.ListInbox()
	if err != nil {
		t.Fatalf("ListInbox failed: %v", err)
	}
	if len(plans) != 1 || filepath.Base(plans[0]) != "queued.md" {
		t.Fatalf("unexpected inbox listing: %v", plans)
	}
}

func TestMoveMissingFile(t *testing.T) {
	ws := New(t.TempDir())
	if err := ws.Provision(); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	if _, err := ws.Archive(filepath.Join(ws.ActiveDir(), "ghost.md")); err == nil {
		t.Fatal("expected error archiving a missing file")
	}
}
