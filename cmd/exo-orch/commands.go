package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/exoforge/exo-orchestrator/internal/config"
	"github.com/exoforge/exo-orchestrator/internal/journal"
	"github.com/exoforge/exo-orchestrator/internal/lease"
	"github.com/exoforge/exo-orchestrator/internal/scaffold"
	"github.com/exoforge/exo-orchestrator/internal/sweep"
	"github.com/exoforge/exo-orchestrator/internal/updater"
	"github.com/exoforge/exo-orchestrator/internal/workspace"
	"github.com/exoforge/exo-orchestrator/tui"
)

var (
	initRepo     string
	eventsLimit  int
	eventsTrace  string
	planTemplate string
	planAgent    string
	updateCheck  bool
)

func init() {
	// init command
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Provision the workspace and bootstrap the repository",
		RunE:  runInit,
	}
	initCmd.Flags().StringVar(&initRepo, "repo", "", "repository path (overrides config)")
	rootCmd.AddCommand(initCmd)

	// run command
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the orchestrator daemon",
		Long: `Run watches the active plan directory and executes every plan that
appears there, with periodic sweeps for stale leases and stranded plans
and an HTTP API for inspection.`,
		RunE: runDaemon,
	}
	rootCmd.AddCommand(runCmd)

	// exec command
	execCmd := &cobra.Command{
		Use:   "exec PLAN",
		Short: "Execute a single plan file",
		Args:  cobra.ExactArgs(1),
		RunE:  runExec,
	}
	rootCmd.AddCommand(execCmd)

	// status command
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show current status",
		RunE:  runStatus,
	}
	rootCmd.AddCommand(statusCmd)

	// leases command
	leasesCmd := &cobra.Command{
		Use:   "leases",
		Short: "List active leases",
		RunE:  runLeases,
	}
	leasesReleaseCmd := &cobra.Command{
		Use:   "release RESOURCE_ID",
		Short: "Force-release a lease",
		Args:  cobra.ExactArgs(1),
		RunE:  runLeaseRelease,
	}
	leasesCmd.AddCommand(leasesReleaseCmd)
	rootCmd.AddCommand(leasesCmd)

	// events command
	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "Show recorded activity",
		RunE:  runEvents,
	}
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 50, "number of events to show")
	eventsCmd.Flags().StringVar(&eventsTrace, "trace", "", "show all events for one trace id")
	rootCmd.AddCommand(eventsCmd)

	// plan command group
	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Create and approve plan files",
	}
	planNewCmd := &cobra.Command{
		Use:   "new REQUEST_ID",
		Short: "Scaffold a plan skeleton into the inbox",
		Args:  cobra.ExactArgs(1),
		RunE:  runPlanNew,
	}
	planNewCmd.Flags().StringVar(&planTemplate, "template", "file-change", "plan template id")
	planNewCmd.Flags().StringVar(&planAgent, "agent", "", "agent id recorded in the plan")
	planCmd.AddCommand(planNewCmd)
	planApproveCmd := &cobra.Command{
		Use:   "approve REQUEST_ID",
		Short: "Move an inbox plan into the active directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runPlanApprove,
	}
	planCmd.AddCommand(planApproveCmd)
	rootCmd.AddCommand(planCmd)

	// sweep command
	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one maintenance pass now",
		Long: `Sweep releases leases older than the configured maximum age and executes
plans stranded in the active directory without a holder, recovering work
left behind by a crashed run.`,
		RunE: runSweep,
	}
	rootCmd.AddCommand(sweepCmd)

	// dash command
	dashCmd := &cobra.Command{
		Use:   "dash",
		Short: "Launch the TUI dashboard",
		RunE:  runDash,
	}
	rootCmd.AddCommand(dashCmd)

	// update command
	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Update exo-orch to the latest release",
		RunE:  runUpdate,
	}
	updateCmd.Flags().BoolVar(&updateCheck, "check", false, "only check for a newer release")
	rootCmd.AddCommand(updateCmd)
}

func loadConfig() (*config.Config, error) {
	return config.LoadWithLocalFallback(configPath)
}

// checkPrerequisites verifies external binaries the orchestrator shells
// out to
func checkPrerequisites() error {
	if _, err := exec.LookPath("git"); err != nil {
		return fmt.Errorf("git is required but not found in PATH")
	}
	return nil
}

func openStores(cfg *config.Config) (*journal.Store, *lease.Manager, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.General.DatabasePath), 0755); err != nil {
		return nil, nil, err
	}
	store, err := journal.New(cfg.General.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening journal: %w", err)
	}
	leases, err := lease.New(cfg.General.DatabasePath)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("opening lease store: %w", err)
	}
	return store, leases, nil
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if initRepo != "" {
		cfg.General.RepoPath = config.ExpandPath(initRepo)
	}
	if cfg.General.RepoPath == "" {
		return fmt.Errorf("no repository configured; set repo_path in %s or pass --repo", config.DefaultConfigPath())
	}
	if err := checkPrerequisites(); err != nil {
		return err
	}

	ws := workspace.New(cfg.General.WorkspaceDir)
	if err := ws.Provision(); err != nil {
		return err
	}
	fmt.Printf("Workspace ready at %s\n", ws.Base())

	store, leases, err := openStores(cfg)
	if err != nil {
		return err
	}
	store.Close()
	leases.Close()
	fmt.Printf("Database ready at %s\n", cfg.General.DatabasePath)

	repo := newRepository(cfg, nil)
	ctx := cmd.Context()
	tr := bootstrapTrace()
	if err := repo.EnsureRepository(ctx, tr); err != nil {
		return fmt.Errorf("bootstrapping repository: %w", err)
	}
	if err := repo.EnsureIdentity(ctx, tr); err != nil {
		return fmt.Errorf("configuring identity: %w", err)
	}
	if err := repo.EnsureRootCommit(ctx, tr); err != nil {
		return fmt.Errorf("creating root commit: %w", err)
	}
	fmt.Printf("Repository ready at %s\n", cfg.General.RepoPath)

	return nil
}

func runExec(cmd *cobra.Command, args []string) error {
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
	if err := ws.Provision(); err != nil {
		return err
	}

	orch := newOrchestrator(cfg, recorder, store, leases, ws, nil)

	res := orch.ProcessTask(cmd.Context(), args[0])
	if res.Err != nil {
		return fmt.Errorf("execution failed after %s: %w", res.Duration.Round(time.Millisecond), res.Err)
	}

	fmt.Printf("Committed %s on %s in %s\n", res.Commit, res.Branch, res.Duration.Round(time.Millisecond))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, leases, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	defer leases.Close()

	completed, err := store.CountByType(journal.EventExecutionCompleted)
	if err != nil {
		return err
	}
	failed, err := store.CountByType(journal.EventExecutionFailed)
	if err != nil {
		return err
	}
	activeLeases, err := leases.Active()
	if err != nil {
		return err
	}

	ws := workspace.New(cfg.General.WorkspaceDir)
	active, _ := ws.ListActive()
	queued, _ := ws.ListInbox()

	fmt.Printf("Plans: %d active | %d queued | Executions: %d completed | %d failed | Leases: %d\n",
		len(active), len(queued), completed, failed, len(activeLeases))

	recent, err := store.RecentExecutions(5)
	if err != nil {
		return err
	}
	if len(recent) == 0 {
		return nil
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TRACE\tRESULT\tBRANCH\tDURATION\tWHEN")
	for _, rec := range recent {
		result := "ok"
		detail := rec.Branch
		if !rec.Success {
			result = "failed"
			detail = rec.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			shortID(rec.TraceID), result, detail,
			rec.Duration().Round(time.Millisecond), humanize.Time(rec.FinishedAt))
	}
	w.Flush()

	return nil
}

func runLeases(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, leases, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	defer leases.Close()

	active, err := leases.Active()
	if err != nil {
		return err
	}

	if len(active) == 0 {
		fmt.Println("No active leases")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RESOURCE\tHOLDER\tACQUIRED")
	for _, l := range active {
		fmt.Fprintf(w, "%s\t%s\t%s\n", l.ResourceID, l.HolderID, humanize.Time(l.AcquiredAt))
	}
	w.Flush()

	return nil
}

func runLeaseRelease(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, leases, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	defer leases.Close()

	if err := leases.Release(args[0]); err != nil {
		return err
	}
	fmt.Printf("Released lease for %s\n", args[0])
	return nil
}

func runEvents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, leases, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	defer leases.Close()

	var events []journal.Event
	if eventsTrace != "" {
		events, err = store.ByTrace(eventsTrace)
	} else {
		events, err = store.Recent(eventsLimit)
	}
	if err != nil {
		return err
	}

	if len(events) == 0 {
		fmt.Println("No events recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tTYPE\tTRACE\tTARGET\tOK")
	for _, e := range events {
		ok := "yes"
		if !e.Success {
			ok = "no"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			humanize.Time(e.CreatedAt), e.Type, shortID(e.TraceID), e.Target, ok)
	}
	w.Flush()

	return nil
}

func runPlanNew(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tpl := scaffold.GetTemplate(planTemplate)
	if tpl == nil {
		names := ""
		for i, t := range scaffold.BuiltinTemplates {
			if i > 0 {
				names += ", "
			}
			names += t.ID
		}
		return fmt.Errorf("unknown template %q (available: %s)", planTemplate, names)
	}

	ws := workspace.New(cfg.General.WorkspaceDir)
	if err := ws.Provision(); err != nil {
		return err
	}

	requestID := args[0]
	path := filepath.Join(ws.InboxDir(), requestID+".md")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("plan %s already exists", path)
	}

	if err := os.WriteFile(path, []byte(tpl.Render(requestID, planAgent)), 0644); err != nil {
		return err
	}

	fmt.Printf("Created %s from template %s\n", path, tpl.ID)
	fmt.Println("Edit the plan, then approve it with: exo-orch plan approve " + requestID)
	return nil
}

func runPlanApprove(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ws := workspace.New(cfg.General.WorkspaceDir)
	path := filepath.Join(ws.InboxDir(), args[0]+".md")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no inbox plan named %s", args[0])
		}
		return err
	}

	dest, err := ws.Activate(path)
	if err != nil {
		return err
	}
	fmt.Printf("Approved %s -> %s\n", args[0], dest)
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
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
	if err := ws.Provision(); err != nil {
		return err
	}

	orch := newOrchestrator(cfg, recorder, store, leases, ws, nil)

	ctx := cmd.Context()
	maxAge := time.Duration(cfg.Sweep.MaxLeaseAgeMinutes) * time.Minute
	sweeper := sweep.NewSweeper(leases, ws, recorder, func(path string) {
		res := orch.ProcessTask(ctx, path)
		if res.Err != nil {
			fmt.Printf("  requeued %s: %v\n", filepath.Base(path), res.Err)
		} else {
			fmt.Printf("  committed %s on %s\n", filepath.Base(path), res.Branch)
		}
	}, maxAge)

	res, err := sweeper.Sweep(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Sweep done: %d leases released, %d plans dispatched\n",
		res.LeasesReleased, res.PlansDispatched)
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	latest, err := updater.Latest()
	if err != nil {
		return err
	}
	if !updater.NeedsUpdate(version, latest) {
		fmt.Printf("exo-orch %s is up to date\n", version)
		return nil
	}

	fmt.Printf("Update available: %s -> %s\n", version, latest)
	if updateCheck {
		return nil
	}

	if err := updater.Apply(latest); err != nil {
		return err
	}
	fmt.Printf("Updated to %s\n", latest)
	return nil
}

func runDash(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, leases, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	defer leases.Close()

	ws := workspace.New(cfg.General.WorkspaceDir)

	fetch := func() (tui.Data, error) {
		var data tui.Data

		records, err := store.RecentExecutions(200)
		if err != nil {
			return data, err
		}
		var totalOK time.Duration
		for _, rec := range records {
			data.Executions = append(data.Executions, tui.ExecutionView{
				TraceID:    rec.TraceID,
				RequestID:  rec.RequestID,
				Branch:     rec.Branch,
				Success:    rec.Success,
				Error:      rec.Error,
				Duration:   rec.Duration(),
				FinishedAt: rec.FinishedAt,
			})
			if rec.Success {
				data.Completed++
				totalOK += rec.Duration()
			} else {
				data.Failed++
			}
		}
		if data.Completed > 0 {
			data.AvgDuration = totalOK / time.Duration(data.Completed)
		}

		events, err := store.Recent(200)
		if err != nil {
			return data, err
		}
		for _, e := range events {
			data.Events = append(data.Events, tui.EventView{
				Type:      e.Type,
				TraceID:   e.TraceID,
				Target:    e.Target,
				Success:   e.Success,
				CreatedAt: e.CreatedAt,
			})
		}

		active, err := leases.Active()
		if err != nil {
			return data, err
		}
		for _, l := range active {
			data.Leases = append(data.Leases, tui.LeaseView{
				ResourceID: l.ResourceID,
				HolderID:   l.HolderID,
				AcquiredAt: l.AcquiredAt,
			})
		}

		if queued, err := ws.ListInbox(); err == nil {
			data.QueuedCount = len(queued)
		}

		return data, nil
	}

	model := tui.NewModel(tui.ModelConfig{Fetch: fetch})
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
