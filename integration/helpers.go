//go:build integration

package integration

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// TempDBPath creates a temporary database path for testing
func TempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

// TestDirs holds the per-test directory layout the binary operates on
type TestDirs struct {
	Repo      string
	Workspace string
	DB        string
	Config    string
}

// Setup creates an isolated repo, workspace, database and config file
func Setup(t *testing.T) TestDirs {
	t.Helper()
	base := t.TempDir()

	dirs := TestDirs{
		Repo:      filepath.Join(base, "repo"),
		Workspace: filepath.Join(base, "workspace"),
		DB:        filepath.Join(base, "exo.db"),
		Config:    filepath.Join(base, "config.toml"),
	}

	config := fmt.Sprintf(`[general]
repo_path = %q
workspace_dir = %q
database_path = %q
max_parallel = 1

[git]
bot_name = "Test Bot"
bot_email = "test@example.com"

[sweep]
enabled = false

[notifications]
desktop = false

[web]
enabled = false

[tools]
allow_commands = true
`, dirs.Repo, dirs.Workspace, dirs.DB)

	if err := os.WriteFile(dirs.Config, []byte(config), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	return dirs
}

// WritePlan writes a plan file with the given frontmatter fields and body
func WritePlan(t *testing.T, path, traceID, requestID, title, body string) {
	t.Helper()
	content := fmt.Sprintf(`---
trace_id: %s
request_id: %s
status: approved
---

# %s

%s`, traceID, requestID, title, body)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create plan dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write plan: %v", err)
	}
}
