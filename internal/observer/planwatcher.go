package observer

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/exoforge/exo-orchestrator/internal/parser"
)

// PlanChangeCallback is called with the plan files that changed
type PlanChangeCallback func(changedFiles []string)

// PlanWatcher monitors the active directory for plan files arriving or
// being rewritten. Arrivals via rename show up as create events.
type PlanWatcher struct {
	watcher  *fsnotify.Watcher
	callback PlanChangeCallback
	debounce time.Duration

	// Debounce state
	pending map[string]struct{}
	timer   *time.Timer
	mu      sync.Mutex

	cancel context.CancelFunc
}

// NewPlanWatcher creates a new watcher for plan files
func NewPlanWatcher(callback PlanChangeCallback) (*PlanWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	pw := &PlanWatcher{
		watcher:  watcher,
		callback: callback,
		debounce: 500 * time.Millisecond, // Debounce rapid changes
		pending:  make(map[string]struct{}),
	}

	return pw, nil
}

// Watch starts watching a directory for plan files
func (pw *PlanWatcher) Watch(dir string) error {
	return pw.watcher.Add(dir)
}

// Start begins watching for file changes
func (pw *PlanWatcher) Start(ctx context.Context) {
	ctx, pw.cancel = context.WithCancel(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-pw.watcher.Events:
				if !ok {
					return
				}
				pw.handleEvent(event)
			case err, ok := <-pw.watcher.Errors:
				if !ok {
					return
				}
				log.Printf("plan watcher: %v", err)
			}
		}
	}()
}

// Stop stops watching for file changes
func (pw *PlanWatcher) Stop() {
	if pw.cancel != nil {
		pw.cancel()
	}
	pw.watcher.Close()
}

func (pw *PlanWatcher) handleEvent(event fsnotify.Event) {
	if !parser.IsPlanFile(event.Name) {
		return
	}

	// Only care about writes and creates. Files moved out of the
	// directory show up as rename or remove and are ignored.
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	pw.mu.Lock()
	defer pw.mu.Unlock()

	pw.pending[event.Name] = struct{}{}

	// Reset or start debounce timer
	if pw.timer != nil {
		pw.timer.Stop()
	}
	pw.timer = time.AfterFunc(pw.debounce, pw.flush)
}

func (pw *PlanWatcher) flush() {
	pw.mu.Lock()
	pending := pw.pending
	pw.pending = make(map[string]struct{})
	pw.mu.Unlock()

	if pw.callback == nil || len(pending) == 0 {
		return
	}

	files := make([]string, 0, len(pending))
	for f := range pending {
		files = append(files, f)
	}
	pw.callback(files)
}

// SetDebounce sets the debounce duration for batching file changes
func (pw *PlanWatcher) SetDebounce(d time.Duration) {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	pw.debounce = d
}
