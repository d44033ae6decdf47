package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/exoforge/exo-orchestrator/internal/config"
	"github.com/exoforge/exo-orchestrator/internal/domain"
	"github.com/exoforge/exo-orchestrator/internal/gitops"
	"github.com/exoforge/exo-orchestrator/internal/journal"
	"github.com/exoforge/exo-orchestrator/internal/lease"
	"github.com/exoforge/exo-orchestrator/internal/notify"
	"github.com/exoforge/exo-orchestrator/internal/observer"
	"github.com/exoforge/exo-orchestrator/internal/orchestrator"
	"github.com/exoforge/exo-orchestrator/internal/report"
	"github.com/exoforge/exo-orchestrator/internal/sweep"
	"github.com/exoforge/exo-orchestrator/internal/tools"
	"github.com/exoforge/exo-orchestrator/internal/workspace"
	"github.com/exoforge/exo-orchestrator/web/api"
)

func newRepository(cfg *config.Config, sink journal.Sink) *gitops.Repository {
	return gitops.NewRepository(cfg.General.RepoPath, gitops.Options{
		Journal:     sink,
		BotName:     cfg.Git.BotName,
		BotEmail:    cfg.Git.BotEmail,
		Timeout:     time.Duration(cfg.Git.TimeoutSeconds) * time.Second,
		RetryOnLock: cfg.Git.RetryOnLock,
	})
}

func bootstrapTrace() gitops.Trace {
	return gitops.Trace{TraceID: uuid.NewString(), AgentID: "cli"}
}

func newOrchestrator(cfg *config.Config, recorder *journal.Recorder, store *journal.Store,
	leases *lease.Manager, ws *workspace.Workspace,
	finished func(*domain.Plan, domain.ExecutionResult)) *orchestrator.Orchestrator {

	registry := tools.NewRegistry(cfg.General.RepoPath, tools.Options{
		AllowCommands:  cfg.Tools.AllowCommands,
		CommandTimeout: time.Duration(cfg.Tools.CommandTimeoutSeconds) * time.Second,
	})

	return orchestrator.New(orchestrator.Config{
		Repo:       newRepository(cfg, recorder),
		Leases:     leases,
		Tools:      registry,
		Workspace:  ws,
		Reports:    report.NewReporter(ws.ReportsDir()),
		Journal:    recorder,
		Executions: store,
		HolderID:   cfg.General.HolderID,
		Finished:   finished,
	})
}

func buildNotifier(cfg *config.Config) notify.Notifier {
	return notify.NewMultiNotifier(
		notify.NewDesktopNotifier(cfg.Notifications.Desktop),
		notify.NewSlackNotifier(cfg.Notifications.SlackWebhook),
	)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.General.RepoPath == "" {
		return fmt.Errorf("repo_path not configured")
	}
	if err := checkPrerequisites(); err != nil {
		return err
	}

	store, leases, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	defer leases.Close()

	recorder := journal.NewRecorder(store)
	defer recorder.Close()

	ws := workspace.New(cfg.General.WorkspaceDir)

	obs := observer.New(time.Duration(cfg.General.StuckThresholdMinutes) * time.Minute)
	notifier := buildNotifier(cfg)

	orch := newOrchestrator(cfg, recorder, store, leases, ws,
		func(plan *domain.Plan, res domain.ExecutionResult) {
			obs.Record(plan, res)
			if err := notifier.Send(notify.ForResult(plan, res)); err != nil {
				log.Printf("notification failed: %v", err)
			}
		})

	mgr := orchestrator.NewManager(orchestrator.ManagerConfig{
		Orchestrator: orch,
		Workspace:    ws,
		MaxParallel:  cfg.General.MaxParallel,
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if cfg.Sweep.Enabled {
		sched, err := sweep.NewScheduler(cfg.Sweep.Schedule)
		if err != nil {
			return fmt.Errorf("sweep schedule: %w", err)
		}
		maxAge := time.Duration(cfg.Sweep.MaxLeaseAgeMinutes) * time.Minute
		sweeper := sweep.NewSweeper(leases, ws, recorder, mgr.Dispatch, maxAge)
		go sched.Start(func() error {
			_, err := sweeper.Sweep(ctx)
			return err
		})
		defer sched.Stop()
		log.Printf("sweep scheduled: %s (next %s)", cfg.Sweep.Schedule, sched.NextRun().Format(time.RFC3339))
	}

	var server *api.Server
	if cfg.Web.Enabled {
		server = api.NewServer(store, leases, recorder, mgr, obs, cfg.Web.Addr())
		go func() {
			log.Printf("web API listening on %s", cfg.Web.Addr())
			if err := server.Start(); err != nil {
				log.Printf("web server: %v", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()

	fmt.Printf("Exo Orchestrator watching %s (max_parallel=%d)\n",
		ws.ActiveDir(), cfg.General.MaxParallel)

	runErr := mgr.Run(ctx)

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("web shutdown: %v", err)
		}
	}

	return runErr
}
