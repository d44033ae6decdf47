package tools

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DefaultCommandTimeout bounds run_command when no timeout is configured
const DefaultCommandTimeout = 60 * time.Second

// Registry executes plan actions inside one workspace root. Every path
// parameter is confined to the root; run_command is off unless enabled.
type Registry struct {
	root          string
	allowCommands bool
	cmdTimeout    time.Duration
}

// Options configures a Registry
type Options struct {
	AllowCommands  bool
	CommandTimeout time.Duration
}

// NewRegistry creates a Registry rooted at the given directory
func NewRegistry(root string, opts Options) *Registry {
	timeout := opts.CommandTimeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &Registry{
		root:          root,
		allowCommands: opts.AllowCommands,
		cmdTimeout:    timeout,
	}
}

// Execute runs one named tool with its parameters and returns a short
// human-readable summary of what it did.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) (string, error) {
	switch name {
	case "write_file":
		return r.writeFile(params)
	case "append_file":
		return r.appendFile(params)
	case "delete_file":
		return r.deleteFile(params)
	case "mkdir":
		return r.mkdir(params)
	case "run_command":
		return r.runCommand(ctx, params)
	default:
		return "", fmt.Errorf("unknown tool %q", name)
	}
}

func (r *Registry) writeFile(params map[string]any) (string, error) {
	rel, full, err := r.resolveParam(params, "path")
	if err != nil {
		return "", err
	}
	content, err := stringParam(params, "content")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", fmt.Errorf("creating parent dir for %s: %w", rel, err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", rel, err)
	}
	return fmt.Sprintf("wrote %s (%d bytes)", rel, len(content)), nil
}

func (r *Registry) appendFile(params map[string]any) (string, error) {
	rel, full, err := r.resolveParam(params, "path")
	if err != nil {
		return "", err
	}
	content, err := stringParam(params, "content")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", fmt.Errorf("creating parent dir for %s: %w", rel, err)
	}
	f, err := os.OpenFile(full, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", rel, err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		return "", fmt.Errorf("appending to %s: %w", rel, err)
	}
	return fmt.Sprintf("appended %d bytes to %s", len(content), rel), nil
}

func (r *Registry) deleteFile(params map[string]any) (string, error) {
	rel, full, err := r.resolveParam(params, "path")
	if err != nil {
		return "", err
	}
	if err := os.Remove(full); err != nil {
		return "", fmt.Errorf("deleting %s: %w", rel, err)
	}
	return fmt.Sprintf("deleted %s", rel), nil
}

func (r *Registry) mkdir(params map[string]any) (string, error) {
	rel, full, err := r.resolveParam(params, "path")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(full, 0755); err != nil {
		return "", fmt.Errorf("creating %s: %w", rel, err)
	}
	return fmt.Sprintf("created directory %s", rel), nil
}

func (r *Registry) runCommand(ctx context.Context, params map[string]any) (string, error) {
	if !r.allowCommands {
		return "", fmt.Errorf("run_command is disabled for this workspace")
	}
	command, err := stringParam(params, "command")
	if err != nil {
		return "", err
	}

	cctx, cancel := context.WithTimeout(ctx, r.cmdTimeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, "sh", "-c", command)
	cmd.Dir = r.root
	out, err := cmd.CombinedOutput()
	if cctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("command timed out after %s: %s", r.cmdTimeout, command)
	}
	if err != nil {
		return "", fmt.Errorf("command failed: %v: %s", err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// resolveParam reads a path parameter and confines it to the root
func (r *Registry) resolveParam(params map[string]any, key string) (rel string, full string, err error) {
	raw, err := stringParam(params, key)
	if err != nil {
		return "", "", err
	}
	if filepath.IsAbs(raw) {
		return "", "", fmt.Errorf("path %q must be relative to the workspace root", raw)
	}

	full = filepath.Join(r.root, raw)
	rel, err = filepath.Rel(r.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", "", fmt.Errorf("path %q escapes the workspace root", raw)
	}
	if rel == ".git" || strings.HasPrefix(rel, ".git"+string(filepath.Separator)) {
		return "", "", fmt.Errorf("path %q touches repository metadata", raw)
	}
	return rel, full, nil
}

func stringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", fmt.Errorf("missing %q parameter", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%q parameter must be a string", key)
	}
	return s, nil
}
