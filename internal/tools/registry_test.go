package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriteAndAppendFile(t *testing.T) {
	root := t.TempDir()
	reg := NewRegistry(root, Options{})
	ctx := context.Background()

	summary, err := reg.Execute(ctx, "write_file", map[string]any{
		"path":    "src/app.txt",
		"content": "hello",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(summary, "src/app.txt") {
		t.Errorf("summary = %q, want path mentioned", summary)
	}

	if _, err := reg.Execute(ctx, "append_file", map[string]any{
		"path":    "src/app.txt",
		"content": " world",
	}); err != nil {
		t.Fatal(err)
	}

	content, err := os.ReadFile(filepath.Join(root, "src", "app.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "hello world" {
		t.Errorf("content = %q, want %q", content, "hello world")
	}
}

func TestDeleteFileAndMkdir(t *testing.T) {
	root := t.TempDir()
	reg := NewRegistry(root, Options{})
	ctx := context.Background()

	if _, err := reg.Execute(ctx, "mkdir", map[string]any{"path": "a/b/c"}); err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(filepath.Join(root, "a", "b", "c")); err != nil || !info.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}

	if err := os.WriteFile(filepath.Join(root, "doomed.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Execute(ctx, "delete_file", map[string]any{"path": "doomed.txt"}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "doomed.txt")); !os.IsNotExist(err) {
		t.Error("file not deleted")
	}

	if _, err := reg.Execute(ctx, "delete_file", map[string]any{"path": "missing.txt"}); err == nil {
		t.Error("deleting a missing file should fail")
	}
}

func TestPathConfinement(t *testing.T) {
	root := t.TempDir()
	reg := NewRegistry(root, Options{})
	ctx := context.Background()

	tests := []struct {
		name string
		path string
	}{
		{"parent escape", "../outside.txt"},
		{"nested escape", "a/../../outside.txt"},
		{"absolute path", "/etc/passwd"},
		{"git metadata", ".git/config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Execute(ctx, "write_file", map[string]any{
				"path":    tt.path,
				"content": "x",
			})
			if err == nil {
				t.Fatalf("write to %q succeeded, want rejection", tt.path)
			}
			if !strings.Contains(err.Error(), tt.path) {
				t.Errorf("error %q does not name the offending path", err)
			}
		})
	}

	// Nothing escaped the root
	if _, err := os.Stat(filepath.Join(filepath.Dir(root), "outside.txt")); !os.IsNotExist(err) {
		t.Error("file escaped the workspace root")
	}
}

func TestUnknownToolAndMissingParams(t *testing.T) {
	reg := NewRegistry(t.TempDir(), Options{})
	ctx := context.Background()

	if _, err := reg.Execute(ctx, "format_disk", nil); err == nil || !strings.Contains(err.Error(), "unknown tool") {
		t.Errorf("unknown tool error = %v", err)
	}
	if _, err := reg.Execute(ctx, "write_file", map[string]any{"path": "a.txt"}); err == nil || !strings.Contains(err.Error(), "content") {
		t.Errorf("missing content error = %v", err)
	}
	if _, err := reg.Execute(ctx, "write_file", map[string]any{"path": 42, "content": "x"}); err == nil {
		t.Error("non-string path should fail")
	}
}

func TestRunCommandPolicy(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	locked := NewRegistry(root, Options{})
	if _, err := locked.Execute(ctx, "run_command", map[string]any{"command": "true"}); err == nil {
		t.Error("run_command should be disabled by default")
	}

	open := NewRegistry(root, Options{AllowCommands: true})
	out, err := open.Execute(ctx, "run_command", map[string]any{"command": "echo hi"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "hi" {
		t.Errorf("output = %q, want hi", out)
	}

	if _, err := open.Execute(ctx, "run_command", map[string]any{"command": "exit 3"}); err == nil || !strings.Contains(err.Error(), "command failed") {
		t.Errorf("failing command error = %v", err)
	}
}

func TestRunCommandTimeout(t *testing.T) {
	reg := NewRegistry(t.TempDir(), Options{AllowCommands: true, CommandTimeout: 100 * time.Millisecond})

	start := time.Now()
	_, err := reg.Execute(context.Background(), "run_command", map[string]any{"command": "sleep 5"})
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("error = %v, want timeout", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Error("timeout not enforced")
	}
}
