package orchestrator

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/exoforge/exo-orchestrator/internal/observer"
	"github.com/exoforge/exo-orchestrator/internal/workspace"
)

// ManagerConfig wires a Manager
type ManagerConfig struct {
	Orchestrator *Orchestrator
	Workspace    *workspace.Workspace

	// MaxParallel bounds concurrently processed plans. Defaults to 2.
	MaxParallel int
}

// Running describes one in-flight plan
type Running struct {
	Path      string
	StartedAt time.Time
}

// Manager watches the active directory and feeds arriving plans to the
// orchestrator through a bounded worker pool. Plans already being
// processed are not dispatched twice.
type Manager struct {
	orch        *Orchestrator
	ws          *workspace.Workspace
	maxParallel int

	ctx      context.Context
	pool     *errgroup.Group
	inflight map[string]time.Time
	mu       sync.Mutex
}

// NewManager creates a Manager
func NewManager(cfg ManagerConfig) *Manager {
	maxParallel := cfg.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 2
	}
	return &Manager{
		orch:        cfg.Orchestrator,
		ws:          cfg.Workspace,
		maxParallel: maxParallel,
		inflight:    make(map[string]time.Time),
	}
}

// Run provisions the workspace, scans for plans that arrived while the
// manager was down, then watches for new ones. Blocks until ctx is
// cancelled and all in-flight work has drained.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.ws.Provision(); err != nil {
		return err
	}

	pool := &errgroup.Group{}
	pool.SetLimit(m.maxParallel)
	m.mu.Lock()
	m.ctx = ctx
	m.pool = pool
	m.mu.Unlock()

	watcher, err := observer.NewPlanWatcher(func(files []string) {
		for _, f := range files {
			m.Dispatch(f)
		}
	})
	if err != nil {
		return err
	}
	if err := watcher.Watch(m.ws.ActiveDir()); err != nil {
		return err
	}
	watcher.Start(ctx)
	defer watcher.Stop()

	// Catch-up scan after the watcher is live so nothing arriving in
	// between is missed
	plans, err := m.ws.ListActive()
	if err != nil {
		return err
	}
	for _, p := range plans {
		m.Dispatch(p)
	}

	<-ctx.Done()
	return m.pool.Wait()
}

// Dispatch queues one plan file for processing. Safe to call from the
// watcher, the sweeper, and the catch-up scan at once; duplicate paths
// are ignored while the first dispatch is still running.
func (m *Manager) Dispatch(path string) {
	m.mu.Lock()
	if m.pool == nil {
		m.mu.Unlock()
		log.Printf("dispatch before manager start, dropping %s", path)
		return
	}
	if _, dup := m.inflight[path]; dup {
		m.mu.Unlock()
		return
	}
	m.inflight[path] = time.Now()
	ctx := m.ctx
	pool := m.pool
	m.mu.Unlock()

	pool.Go(func() error {
		defer func() {
			m.mu.Lock()
			delete(m.inflight, path)
			m.mu.Unlock()
		}()
		m.process(ctx, path)
		return nil
	})
}

// InFlight returns the plans currently being processed
func (m *Manager) InFlight() []Running {
	m.mu.Lock()
	defer m.mu.Unlock()

	running := make([]Running, 0, len(m.inflight))
	for path, started := range m.inflight {
		running = append(running, Running{Path: path, StartedAt: started})
	}
	return running
}

func (m *Manager) process(ctx context.Context, path string) {
	res := m.orch.ProcessTask(ctx, path)
	switch {
	case res.Success:
		log.Printf("executed %s: branch=%s commit=%s in %s", path, res.Branch, res.Commit, res.Duration.Round(time.Millisecond))
	case res.Err != nil && os.IsNotExist(res.Err):
		// Another worker took the file first; not worth a log line
	default:
		log.Printf("execution of %s failed: %s", path, res.ErrorText())
	}
}
