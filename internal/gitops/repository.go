package gitops

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/exoforge/exo-orchestrator/internal/domain"
	"github.com/exoforge/exo-orchestrator/internal/journal"
)

const maxBranchAttempts = 5

// Trace identifies the execution attempt on whose behalf a git operation
// runs; it is attached to every journal event.
type Trace struct {
	TraceID string
	AgentID string
}

// Repository is an explicit handle to one working tree. All state lives on
// the handle; there is no package-level repository.
type Repository struct {
	dir         string
	runner      *Runner
	journal     journal.Sink
	botName     string
	botEmail    string
	timeout     time.Duration
	retryOnLock bool
}

// Options configures a Repository handle
type Options struct {
	Runner      *Runner
	Journal     journal.Sink
	BotName     string
	BotEmail    string
	Timeout     time.Duration
	RetryOnLock bool
}

// NewRepository creates a handle for the working tree at dir
func NewRepository(dir string, opts Options) *Repository {
	r := &Repository{
		dir:         dir,
		runner:      opts.Runner,
		journal:     opts.Journal,
		botName:     opts.BotName,
		botEmail:    opts.BotEmail,
		timeout:     opts.Timeout,
		retryOnLock: opts.RetryOnLock,
	}
	if r.runner == nil {
		r.runner = &Runner{}
	}
	if r.botName == "" {
		r.botName = "exo-orchestrator"
	}
	if r.botEmail == "" {
		r.botEmail = "exo-orchestrator@localhost"
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	return r
}

// Dir returns the working tree path
func (r *Repository) Dir() string {
	return r.dir
}

func (r *Repository) run(ctx context.Context, args ...string) (Outcome, error) {
	return r.runner.Run(ctx, r.dir, ExecOptions{Timeout: r.timeout, RetryOnLock: r.retryOnLock}, args...)
}

// emit journals an operation outcome. Best effort: a nil sink or a sink
// failure never affects the git operation itself.
func (r *Repository) emit(tr Trace, eventType, target string, success bool, payload map[string]any) {
	if r.journal == nil {
		return
	}
	r.journal.Emit(journal.Event{
		Type:    eventType,
		TraceID: tr.TraceID,
		AgentID: tr.AgentID,
		Target:  target,
		Success: success,
		Payload: payload,
	})
}

// EnsureRepository initializes the working tree as a git repository if it
// is not one already. Idempotent; the initialization event is emitted only
// on the call that actually runs git init.
func (r *Repository) EnsureRepository(ctx context.Context, tr Trace) error {
	if _, err := r.run(ctx, "rev-parse", "--git-dir"); err == nil {
		return nil
	}
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("creating repository dir: %w", err)
	}
	_, err := r.run(ctx, "init")
	r.emit(tr, journal.EventGitInit, r.dir, err == nil, nil)
	if err != nil {
		return fmt.Errorf("git init: %w", err)
	}
	return nil
}

// EnsureIdentity configures the bot author identity unless one is already
// configured. A pre-existing identity is never overwritten.
func (r *Repository) EnsureIdentity(ctx context.Context, tr Trace) error {
	if out, err := r.run(ctx, "config", "user.name"); err == nil && strings.TrimSpace(out.Stdout) != "" {
		return nil
	}
	if _, err := r.run(ctx, "config", "user.name", r.botName); err != nil {
		r.emit(tr, journal.EventGitIdentity, r.botName, false, nil)
		return fmt.Errorf("setting user.name: %w", err)
	}
	if _, err := r.run(ctx, "config", "user.email", r.botEmail); err != nil {
		r.emit(tr, journal.EventGitIdentity, r.botName, false, nil)
		return fmt.Errorf("setting user.email: %w", err)
	}
	r.emit(tr, journal.EventGitIdentity, r.botName, true, map[string]any{"email": r.botEmail})
	return nil
}

// EnsureRootCommit creates an empty initial commit when HEAD is unborn so
// branching and rollback always have a base. Idempotent.
func (r *Repository) EnsureRootCommit(ctx context.Context, tr Trace) error {
	if _, err := r.run(ctx, "rev-parse", "--verify", "HEAD"); err == nil {
		return nil
	}
	_, err := r.run(ctx, "commit", "--allow-empty", "-m", "Initialize repository")
	r.emit(tr, journal.EventGitCommit, "Initialize repository", err == nil, map[string]any{"root": true})
	if err != nil {
		return fmt.Errorf("creating root commit: %w", err)
	}
	return nil
}

// BranchName returns the deterministic branch name for a request
func BranchName(requestID, traceID string) string {
	return fmt.Sprintf("feat/%s-%s", requestID, domain.ShortTraceID(traceID))
}

// CreateBranch creates the branch for requestID. On a name collision the
// name is regenerated with a time-derived suffix and creation retried, so
// the returned name always refers to a branch created by this call.
func (r *Repository) CreateBranch(ctx context.Context, tr Trace, requestID string) (string, error) {
	base := BranchName(requestID, tr.TraceID)
	name := base
	for attempt := 0; attempt < maxBranchAttempts; attempt++ {
		if attempt > 0 {
			name = fmt.Sprintf("%s-%s", base, timeSuffix())
		}
		_, err := r.run(ctx, "branch", name)
		if err == nil {
			r.emit(tr, journal.EventGitBranch, name, true, map[string]any{"request_id": requestID})
			return name, nil
		}
		var gerr *GitError
		if errors.As(err, &gerr) && strings.Contains(gerr.Stderr, "already exists") {
			continue
		}
		r.emit(tr, journal.EventGitBranch, name, false, nil)
		return "", fmt.Errorf("creating branch %s: %w", name, err)
	}
	r.emit(tr, journal.EventGitBranch, base, false, nil)
	return "", fmt.Errorf("creating branch %s: collisions exhausted %d attempts", base, maxBranchAttempts)
}

// CheckoutBranch switches the working tree to the named branch. A checkout
// event is emitted whether or not the switch succeeds.
func (r *Repository) CheckoutBranch(ctx context.Context, tr Trace, name string) error {
	_, err := r.run(ctx, "checkout", name)
	r.emit(tr, journal.EventGitCheckout, name, err == nil, nil)
	if err != nil {
		return fmt.Errorf("checking out %s: %w", name, err)
	}
	return nil
}

// CommitMessage is the title and optional description of one commit
type CommitMessage struct {
	Title       string
	Description string
}

// Render produces the canonical commit message with the trace trailer
func (m CommitMessage) Render(traceID string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(m.Title))
	b.WriteString("\n\n")
	if desc := strings.TrimSpace(m.Description); desc != "" {
		b.WriteString(desc)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "[ExoTrace: %s]", traceID)
	return b.String()
}

// Commit stages all pending changes and commits them with the rendered
// message. Fails with KindNothingToCommit when the staging area is empty.
// Returns the short hash of the new commit.
func (r *Repository) Commit(ctx context.Context, tr Trace, msg CommitMessage) (string, error) {
	if _, err := r.run(ctx, "add", "-A"); err != nil {
		r.emit(tr, journal.EventGitCommit, msg.Title, false, nil)
		return "", fmt.Errorf("staging changes: %w", err)
	}

	// Exit 0 means the staging area is empty
	if _, err := r.run(ctx, "diff", "--cached", "--quiet"); err == nil {
		r.emit(tr, journal.EventGitCommit, msg.Title, false, map[string]any{"reason": "nothing to commit"})
		return "", &GitError{Kind: KindNothingToCommit, Args: []string{"commit"}}
	}

	if _, err := r.run(ctx, "commit", "-m", msg.Render(tr.TraceID)); err != nil {
		r.emit(tr, journal.EventGitCommit, msg.Title, false, nil)
		return "", fmt.Errorf("git commit: %w", err)
	}

	var hash string
	if out, err := r.run(ctx, "rev-parse", "--short", "HEAD"); err == nil {
		hash = strings.TrimSpace(out.Stdout)
	}
	r.emit(tr, journal.EventGitCommit, msg.Title, true, map[string]any{"commit": hash})
	return hash, nil
}

// Rollback discards all uncommitted modifications, deletions, and untracked
// files, restoring the working tree to the last commit.
func (r *Repository) Rollback(ctx context.Context, tr Trace) error {
	if _, err := r.run(ctx, "reset", "--hard", "HEAD"); err != nil && !unbornHead(err) {
		r.emit(tr, journal.EventGitRollback, r.dir, false, nil)
		return fmt.Errorf("git reset: %w", err)
	}
	if _, err := r.run(ctx, "clean", "-fd"); err != nil {
		r.emit(tr, journal.EventGitRollback, r.dir, false, nil)
		return fmt.Errorf("git clean: %w", err)
	}
	r.emit(tr, journal.EventGitRollback, r.dir, true, nil)
	return nil
}

// CurrentBranch returns the branch the working tree is on
func (r *Repository) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Stdout), nil
}

// StatusPorcelain returns the machine-readable working tree status
func (r *Repository) StatusPorcelain(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "status", "--porcelain")
	if err != nil {
		return "", err
	}
	return out.Stdout, nil
}

func unbornHead(err error) bool {
	var gerr *GitError
	if !errors.As(err, &gerr) {
		return false
	}
	return strings.Contains(gerr.Stderr, "unknown revision") ||
		strings.Contains(gerr.Stderr, "ambiguous argument 'HEAD'") ||
		strings.Contains(gerr.Stderr, "Failed to resolve")
}

func timeSuffix() string {
	return strconv.FormatInt(time.Now().UnixNano()%1_000_000, 10)
}
