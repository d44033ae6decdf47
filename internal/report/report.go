package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/exoforge/exo-orchestrator/internal/domain"
)

const successTemplate = `# Execution Report: %s

**Status:** success
**Trace:** %s
**Request:** %s
**Agent:** %s
**Branch:** %s
**Commit:** %s
**Duration:** %s
**Completed:** %s

## Actions
%s

---
Generated by Exo Orchestrator
`

const failureTemplate = `# Execution Report: %s

**Status:** failed
**Trace:** %s
**Request:** %s
**Agent:** %s
**Duration:** %s
**Completed:** %s

## Error
` + "```" + `
%s
` + "```" + `

The plan was moved back to inbox/requests. Fix the problem above and
approve it again to retry.

---
Generated by Exo Orchestrator
`

// Reporter writes one markdown report per execution attempt
type Reporter struct {
	dir string
}

// NewReporter creates a Reporter writing into dir
func NewReporter(dir string) *Reporter {
	return &Reporter{dir: dir}
}

// BuildReport renders the report body for an execution result
func BuildReport(plan *domain.Plan, res domain.ExecutionResult) string {
	completed := time.Now().UTC().Format(time.RFC3339)
	duration := res.Duration.Round(time.Millisecond).String()

	if res.Success {
		return fmt.Sprintf(successTemplate,
			plan.Title,
			res.TraceID,
			plan.RequestID,
			plan.AgentID,
			res.Branch,
			res.Commit,
			duration,
			completed,
			actionList(plan.Actions),
		)
	}
	return fmt.Sprintf(failureTemplate,
		plan.Title,
		res.TraceID,
		plan.RequestID,
		plan.AgentID,
		duration,
		completed,
		res.ErrorText(),
	)
}

// Write renders and persists the report, returning its path. Reports for
// repeated attempts of the same plan never overwrite each other.
func (r *Reporter) Write(plan *domain.Plan, res domain.ExecutionResult) (string, error) {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return "", fmt.Errorf("creating reports dir: %w", err)
	}

	stem := fmt.Sprintf("%s-%s-%s",
		time.Now().UTC().Format("20060102-150405"),
		plan.RequestID,
		domain.ShortTraceID(res.TraceID),
	)
	path := filepath.Join(r.dir, stem+".md")
	for i := 1; ; i++ {
		if _, err := os.Lstat(path); os.IsNotExist(err) {
			break
		}
		path = filepath.Join(r.dir, fmt.Sprintf("%s-%d.md", stem, i))
	}

	if err := os.WriteFile(path, []byte(BuildReport(plan, res)), 0644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return path, nil
}

func actionList(actions []domain.Action) string {
	if len(actions) == 0 {
		return "- none"
	}
	lines := make([]string, 0, len(actions))
	for _, a := range actions {
		lines = append(lines, actionLine(a))
	}
	return strings.Join(lines, "\n")
}

func actionLine(a domain.Action) string {
	if path, ok := a.Params["path"].(string); ok {
		return fmt.Sprintf("- %s %s", a.Tool, path)
	}
	if command, ok := a.Params["command"].(string); ok {
		return fmt.Sprintf("- %s `%s`", a.Tool, command)
	}
	return fmt.Sprintf("- %s", a.Tool)
}
