package orchestrator

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/exoforge/exo-orchestrator/internal/domain"
	"github.com/exoforge/exo-orchestrator/internal/gitops"
	"github.com/exoforge/exo-orchestrator/internal/journal"
	"github.com/exoforge/exo-orchestrator/internal/lease"
	"github.com/exoforge/exo-orchestrator/internal/parser"
	"github.com/exoforge/exo-orchestrator/internal/workspace"
)

// ToolRegistry executes one plan action and returns a human-readable
// summary of what it did
type ToolRegistry interface {
	Execute(ctx context.Context, name string, params map[string]any) (string, error)
}

// Reporter persists one report per execution attempt
type Reporter interface {
	Write(plan *domain.Plan, res domain.ExecutionResult) (string, error)
}

// ExecutionRecorder persists one summary row per finished attempt
type ExecutionRecorder interface {
	RecordExecution(rec journal.ExecutionRecord) error
}

// Config wires an Orchestrator's collaborators
type Config struct {
	Repo       *gitops.Repository
	Leases     *lease.Manager
	Tools      ToolRegistry
	Workspace  *workspace.Workspace
	Reports    Reporter
	Journal    journal.Sink
	Executions ExecutionRecorder

	// HolderID identifies this process in lease records. Defaults to
	// hostname-pid.
	HolderID string

	// Finished is called after every completed attempt, successful or
	// not. Aborts without side effects (lease conflict, vanished file)
	// do not count as attempts.
	Finished func(plan *domain.Plan, res domain.ExecutionResult)
}

// Orchestrator drives one plan file through validate, lease, branch,
// execute, commit or rollback, report, release.
type Orchestrator struct {
	repo       *gitops.Repository
	leases     *lease.Manager
	tools      ToolRegistry
	ws         *workspace.Workspace
	reports    Reporter
	journal    journal.Sink
	executions ExecutionRecorder
	holder     string
	finished   func(plan *domain.Plan, res domain.ExecutionResult)

	// gitMu serializes repository work across plans. The lease guards
	// one logical task; the working tree is still a single shared
	// resource within this process.
	gitMu sync.Mutex
}

// New creates an Orchestrator
func New(cfg Config) *Orchestrator {
	holder := cfg.HolderID
	if holder == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "exo"
		}
		holder = fmt.Sprintf("%s-%d", hostname, os.Getpid())
	}
	return &Orchestrator{
		repo:       cfg.Repo,
		leases:     cfg.Leases,
		tools:      cfg.Tools,
		ws:         cfg.Workspace,
		reports:    cfg.Reports,
		journal:    cfg.Journal,
		executions: cfg.Executions,
		holder:     holder,
		finished:   cfg.Finished,
	}
}

// HolderID returns the lease holder identity of this orchestrator
func (o *Orchestrator) HolderID() string {
	return o.holder
}

// ProcessTask executes the plan at path. Domain failures never surface
// as errors; the result carries them. A plan that fails after
// identifying itself is requeued to the inbox with a failure report; a
// plan that cannot identify itself at all is requeued without a lease
// ever being taken.
func (o *Orchestrator) ProcessTask(ctx context.Context, path string) domain.ExecutionResult {
	start := time.Now()

	plan, err := parser.ParseFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Another worker already relocated the file. Nothing
			// to do and nothing to clean up.
			return domain.ExecutionResult{Err: err, Duration: time.Since(start)}
		}
		return o.fail(start, stubPlan(path), err)
	}

	if err := o.leases.Acquire(plan.RequestID, o.holder); err != nil {
		// Conflict or store trouble: abort with no side effects. The
		// file stays where it is for whoever holds the lease.
		return domain.ExecutionResult{TraceID: plan.TraceID, Err: err, Duration: time.Since(start)}
	}
	defer func() {
		if err := o.leases.Release(plan.RequestID); err != nil {
			log.Printf("releasing lease %s: %v", plan.RequestID, err)
		}
	}()

	// The previous holder may have archived the file between our parse
	// and our acquire. A vanished plan is already done.
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		return domain.ExecutionResult{TraceID: plan.TraceID, Err: statErr, Duration: time.Since(start)}
	}

	o.emit(journal.EventExecutionStarted, plan, true, map[string]any{"path": path})

	branch, sha, err := o.execute(ctx, plan)
	if err != nil {
		res := o.fail(start, plan, err)
		res.Branch = branch
		return res
	}
	return o.succeed(start, plan, branch, sha)
}

// execute runs the git portion of an attempt under the repository mutex:
// bootstrap, branch, actions, then commit. On action or commit failure
// the working tree is rolled back before the error is returned.
func (o *Orchestrator) execute(ctx context.Context, plan *domain.Plan) (branch, sha string, err error) {
	o.gitMu.Lock()
	defer o.gitMu.Unlock()

	tr := gitops.Trace{TraceID: plan.TraceID, AgentID: plan.AgentID}

	if err := o.repo.EnsureRepository(ctx, tr); err != nil {
		return "", "", err
	}
	if err := o.repo.EnsureIdentity(ctx, tr); err != nil {
		return "", "", err
	}
	if err := o.repo.EnsureRootCommit(ctx, tr); err != nil {
		return "", "", err
	}

	branch, err = o.repo.CreateBranch(ctx, tr, plan.RequestID)
	if err != nil {
		return "", "", err
	}
	if err := o.repo.CheckoutBranch(ctx, tr, branch); err != nil {
		return branch, "", err
	}

	for _, action := range plan.Actions {
		if _, err := o.tools.Execute(ctx, action.Tool, action.Params); err != nil {
			o.rollback(ctx, tr)
			return branch, "", fmt.Errorf("action %s: %w", action.Tool, err)
		}
	}

	sha, err = o.repo.Commit(ctx, tr, gitops.CommitMessage{
		Title:       plan.Title,
		Description: plan.Description,
	})
	if err != nil {
		o.rollback(ctx, tr)
		return branch, "", err
	}
	return branch, sha, nil
}

func (o *Orchestrator) rollback(ctx context.Context, tr gitops.Trace) {
	if err := o.repo.Rollback(ctx, tr); err != nil {
		log.Printf("rollback for %s failed: %v", tr.TraceID, err)
	}
}

func (o *Orchestrator) succeed(start time.Time, plan *domain.Plan, branch, sha string) domain.ExecutionResult {
	res := domain.ExecutionResult{
		Success:  true,
		TraceID:  plan.TraceID,
		Branch:   branch,
		Commit:   sha,
		Duration: time.Since(start),
	}

	if _, err := o.ws.Archive(plan.FilePath); err != nil {
		log.Printf("archiving %s: %v", plan.FilePath, err)
	}
	o.report(plan, res)
	o.emit(journal.EventExecutionCompleted, plan, true, map[string]any{
		"branch":      branch,
		"commit":      sha,
		"duration_ms": res.Duration.Milliseconds(),
	})
	o.record(start, plan, res)
	if o.finished != nil {
		o.finished(plan, res)
	}
	return res
}

func (o *Orchestrator) fail(start time.Time, plan *domain.Plan, cause error) domain.ExecutionResult {
	res := domain.ExecutionResult{
		TraceID:  plan.TraceID,
		Err:      cause,
		Duration: time.Since(start),
	}

	if plan.FilePath != "" {
		if _, err := o.ws.Requeue(plan.FilePath); err != nil {
			log.Printf("requeueing %s: %v", plan.FilePath, err)
		}
	}
	o.report(plan, res)
	o.emit(journal.EventExecutionFailed, plan, false, map[string]any{
		"reason":      cause.Error(),
		"duration_ms": res.Duration.Milliseconds(),
	})
	o.record(start, plan, res)
	if o.finished != nil {
		o.finished(plan, res)
	}
	return res
}

func (o *Orchestrator) report(plan *domain.Plan, res domain.ExecutionResult) {
	if o.reports == nil {
		return
	}
	if _, err := o.reports.Write(plan, res); err != nil {
		log.Printf("writing report for %s: %v", plan.RequestID, err)
	}
}

func (o *Orchestrator) emit(eventType string, plan *domain.Plan, success bool, payload map[string]any) {
	if o.journal == nil {
		return
	}
	o.journal.Emit(journal.Event{
		Type:    eventType,
		TraceID: plan.TraceID,
		AgentID: plan.AgentID,
		Target:  plan.RequestID,
		Success: success,
		Payload: payload,
	})
}

func (o *Orchestrator) record(start time.Time, plan *domain.Plan, res domain.ExecutionResult) {
	if o.executions == nil {
		return
	}
	rec := journal.ExecutionRecord{
		ID:         uuid.NewString(),
		TraceID:    res.TraceID,
		RequestID:  plan.RequestID,
		AgentID:    plan.AgentID,
		Branch:     res.Branch,
		Commit:     res.Commit,
		Success:    res.Success,
		Error:      res.ErrorText(),
		StartedAt:  start.UTC(),
		FinishedAt: start.Add(res.Duration).UTC(),
	}
	if err := o.executions.RecordExecution(rec); err != nil {
		log.Printf("recording execution %s: %v", res.TraceID, err)
	}
}

// stubPlan stands in for a plan that failed validation, so the failure
// path still has a file to requeue and a title for the report
func stubPlan(path string) *domain.Plan {
	return &domain.Plan{
		Title:    filepath.Base(path),
		FilePath: path,
	}
}
