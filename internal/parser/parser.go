package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/exoforge/exo-orchestrator/internal/domain"
)

var (
	titleRegex = regexp.MustCompile(`^#\s+(.+)$`)
	// request_id becomes part of a branch name, so it must be a clean slug
	requestIDRegex = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
)

// ValidationError reports a plan file that failed strict validation.
// The reason always names the offending field.
type ValidationError struct {
	Path   string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid plan %s: %s", filepath.Base(e.Path), e.Reason)
}

// IsPlanFile reports whether a file name looks like a plan file
func IsPlanFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, ".md") && !strings.HasPrefix(base, ".")
}

// ParseFile reads and validates a plan file
func ParseFile(path string) (*domain.Plan, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, content)
}

// Parse validates plan content. It returns either a fully populated Plan
// or a *ValidationError; never a partially filled value.
func Parse(path string, content []byte) (*domain.Plan, error) {
	fm, body, err := ParseFrontmatter(content)
	if err != nil {
		return nil, &ValidationError{Path: path, Field: "header", Reason: fmt.Sprintf("malformed header: %v", err)}
	}

	if fm.TraceID == "" {
		return nil, &ValidationError{Path: path, Field: "trace_id", Reason: "missing trace_id in header"}
	}
	if strings.ContainsAny(fm.TraceID, " \t") {
		return nil, &ValidationError{Path: path, Field: "trace_id", Reason: "trace_id must not contain whitespace"}
	}
	if fm.RequestID == "" {
		return nil, &ValidationError{Path: path, Field: "request_id", Reason: "missing request_id in header"}
	}
	if !requestIDRegex.MatchString(fm.RequestID) {
		return nil, &ValidationError{Path: path, Field: "request_id", Reason: fmt.Sprintf("request_id %q is not a lowercase slug", fm.RequestID)}
	}

	title := extractTitle(body)
	if title == "" {
		return nil, &ValidationError{Path: path, Field: "title", Reason: "missing title heading"}
	}

	actions, err := extractActions(body)
	if err != nil {
		return nil, &ValidationError{Path: path, Field: "actions", Reason: err.Error()}
	}

	return &domain.Plan{
		TraceID:     fm.TraceID,
		RequestID:   fm.RequestID,
		AgentID:     fm.AgentID,
		Status:      domain.PlanStatus(fm.Status),
		Title:       title,
		Description: extractDescription(body),
		FilePath:    path,
		Actions:     actions,
	}, nil
}

func extractTitle(content []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		if matches := titleRegex.FindStringSubmatch(scanner.Text()); matches != nil {
			return strings.TrimSpace(matches[1])
		}
	}
	return ""
}

func extractDescription(content []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	var lines []string
	foundTitle := false

	for scanner.Scan() {
		line := scanner.Text()
		if !foundTitle {
			if titleRegex.MatchString(line) {
				foundTitle = true
			}
			continue
		}

		// Skip empty lines immediately after the title
		if len(lines) == 0 && strings.TrimSpace(line) == "" {
			continue
		}

		// Stop at the next heading or the first action block
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "```action" {
			break
		}

		lines = append(lines, line)
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

type actionSpec struct {
	Tool   string         `yaml:"tool"`
	Params map[string]any `yaml:"params"`
}

// extractActions collects the fenced action blocks in order. Each block is
// a YAML document with a tool name and its parameters.
func extractActions(content []byte) ([]domain.Action, error) {
	var actions []domain.Action
	var block []string
	inAction := false

	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		if !inAction {
			if trimmed == "```action" {
				inAction = true
				block = block[:0]
			}
			continue
		}
		if trimmed == "```" {
			inAction = false
			var spec actionSpec
			if err := yaml.Unmarshal([]byte(strings.Join(block, "\n")), &spec); err != nil {
				return nil, fmt.Errorf("action block %d: %v", len(actions)+1, err)
			}
			if spec.Tool == "" {
				return nil, fmt.Errorf("action block %d: missing tool", len(actions)+1)
			}
			actions = append(actions, domain.Action{Tool: spec.Tool, Params: spec.Params})
			continue
		}
		block = append(block, line)
	}

	if inAction {
		return nil, fmt.Errorf("unterminated action block")
	}
	return actions, nil
}
