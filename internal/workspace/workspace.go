package workspace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/exoforge/exo-orchestrator/internal/parser"
)

// Workspace manages the plan directory contract. Plans arrive in active/,
// are archived on success, and go back to inbox/requests/ on failure.
// Plan files are only ever moved, never deleted.
type Workspace struct {
	base string
}

// New creates a Workspace under the given base directory
func New(base string) *Workspace {
	return &Workspace{base: base}
}

// Base returns the workspace base directory
func (w *Workspace) Base() string {
	return w.base
}

// ActiveDir holds plans approved for execution
func (w *Workspace) ActiveDir() string {
	return filepath.Join(w.base, "active")
}

// ArchiveDir holds successfully executed plans
func (w *Workspace) ArchiveDir() string {
	return filepath.Join(w.base, "archive")
}

// InboxDir holds failed or draft plans awaiting attention
func (w *Workspace) InboxDir() string {
	return filepath.Join(w.base, "inbox", "requests")
}

// ReportsDir holds execution reports
func (w *Workspace) ReportsDir() string {
	return filepath.Join(w.base, "reports")
}

// Provision creates the directory layout. Idempotent.
func (w *Workspace) Provision() error {
	for _, dir := range []string{w.ActiveDir(), w.ArchiveDir(), w.InboxDir(), w.ReportsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("provisioning %s: %w", dir, err)
		}
	}
	return nil
}

// Archive moves a plan file into the archive and returns its new path
func (w *Workspace) Archive(path string) (string, error) {
	return w.move(path, w.ArchiveDir())
}

// Requeue moves a plan file back to the inbox and returns its new path
func (w *Workspace) Requeue(path string) (string, error) {
	return w.move(path, w.InboxDir())
}

// Activate moves a plan file into the active directory, marking it
// approved for execution
func (w *Workspace) Activate(path string) (string, error) {
	return w.move(path, w.ActiveDir())
}

// ListActive returns the plan files currently in the active directory
func (w *Workspace) ListActive() ([]string, error) {
	return listPlans(w.ActiveDir())
}

// ListInbox returns the plan files waiting in the inbox
func (w *Workspace) ListInbox() ([]string, error) {
	return listPlans(w.InboxDir())
}

func listPlans(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var plans []string
	for _, entry := range entries {
		if entry.IsDir() || !parser.IsPlanFile(entry.Name()) {
			continue
		}
		plans = append(plans, filepath.Join(dir, entry.Name()))
	}
	return plans, nil
}

// move relocates a file into destDir, disambiguating name collisions with
// a timestamp suffix so nothing is overwritten.
func (w *Workspace) move(src, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("creating %s: %w", destDir, err)
	}

	base := filepath.Base(src)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	dest := filepath.Join(destDir, base)
	for i := 0; ; i++ {
		if _, err := os.Lstat(dest); errors.Is(err, os.ErrNotExist) {
			break
		}
		stamp := time.Now().UTC().Format("20060102-150405")
		if i == 0 {
			dest = filepath.Join(destDir, fmt.Sprintf("%s-%s%s", stem, stamp, ext))
		} else {
			dest = filepath.Join(destDir, fmt.Sprintf("%s-%s-%d%s", stem, stamp, i, ext))
		}
	}

	if err := os.Rename(src, dest); err != nil {
		if !errors.Is(err, syscall.EXDEV) {
			return "", fmt.Errorf("moving %s: %w", base, err)
		}
		if err := copyFile(src, dest); err != nil {
			return "", fmt.Errorf("moving %s across devices: %w", base, err)
		}
		if err := os.Remove(src); err != nil {
			return "", fmt.Errorf("removing %s after copy: %w", src, err)
		}
	}
	return dest, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
