package gitops

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind tags a git failure with its classification
type ErrorKind int

const (
	// KindRepository is any git failure without a more specific class
	KindRepository ErrorKind = iota
	// KindLock means another process holds the index lock; retryable
	KindLock
	// KindNothingToCommit means the staging area was empty at commit time
	KindNothingToCommit
	// KindCorruption means the object store is damaged; manual repair needed
	KindCorruption
	// KindTimeout means the subprocess was killed at the deadline
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindLock:
		return "index locked"
	case KindNothingToCommit:
		return "nothing to commit"
	case KindCorruption:
		return "repository corrupted"
	case KindTimeout:
		return "timed out"
	default:
		return "repository error"
	}
}

// Retryable reports whether retrying the command can help
func (k ErrorKind) Retryable() bool {
	return k == KindLock
}

// GitError is the tagged failure value returned by the command runner.
// Callers branch on Kind instead of matching error strings.
type GitError struct {
	Kind     ErrorKind
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *GitError) Error() string {
	verb := "git"
	if len(e.Args) > 0 {
		verb = "git " + e.Args[0]
	}
	detail := strings.TrimSpace(e.Stderr)
	if detail == "" {
		detail = strings.TrimSpace(e.Stdout)
	}
	if detail == "" {
		return fmt.Sprintf("%s: %s (exit %d)", verb, e.Kind, e.ExitCode)
	}
	return fmt.Sprintf("%s: %s (exit %d): %s", verb, e.Kind, e.ExitCode, detail)
}

// IsKind reports whether err carries a GitError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var gerr *GitError
	return errors.As(err, &gerr) && gerr.Kind == kind
}

// classify maps a non-zero command outcome to an error kind. It is a pure
// function of the outcome; lock patterns win so retry logic sees them first.
func classify(args []string, out Outcome) *GitError {
	e := &GitError{
		Args:     args,
		ExitCode: out.ExitCode,
		Stdout:   out.Stdout,
		Stderr:   out.Stderr,
	}
	switch {
	case strings.Contains(out.Stderr, "index.lock") || strings.Contains(out.Stderr, "Unable to create"):
		e.Kind = KindLock
	case strings.Contains(out.Stderr, "nothing to commit") || strings.Contains(out.Stdout, "nothing to commit"):
		e.Kind = KindNothingToCommit
	case strings.Contains(out.Stderr, "corrupted") || strings.Contains(out.Stderr, "loose object"):
		e.Kind = KindCorruption
	default:
		e.Kind = KindRepository
	}
	return e
}
