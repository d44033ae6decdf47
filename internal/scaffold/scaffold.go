// Package scaffold provides plan file templates for the orchestrator.
package scaffold

import (
	"fmt"

	"github.com/google/uuid"
)

// Template represents a plan file template
type Template struct {
	ID          string // Unique identifier
	Name        string // Display name
	Description string // Short description for the CLI listing
	Title       string // Default plan title
	Body        string // Markdown body below the title
}

const fileChangeBody = `Describe the intended change here, then adjust the actions below.

` + "```action" + `
tool: write_file
params:
  path: path/to/file.txt
  content: |
    replace me
` + "```" + `
`

const commandBody = `Describe what the command achieves and why it is safe to run.

` + "```action" + `
tool: run_command
params:
  command: make generate
` + "```" + `
`

const docsBody = `Describe which documentation is missing or stale.

` + "```action" + `
tool: write_file
params:
  path: docs/CHANGES.md
  content: |
    replace me
` + "```" + `
`

// BuiltinTemplates contains the default plan templates
var BuiltinTemplates = []Template{
	{
		ID:          "empty",
		Name:        "Empty Plan",
		Description: "A bare plan without actions, for manual editing",
		Title:       "Describe the change",
		Body:        "Describe the intended change here. Plans without actions\nstill branch and commit whatever the workspace contains.\n",
	},
	{
		ID:          "file-change",
		Name:        "File Change",
		Description: "Write or replace files in the repository",
		Title:       "Change repository files",
		Body:        fileChangeBody,
	},
	{
		ID:          "command",
		Name:        "Run Command",
		Description: "Run a build or generation command in the repository",
		Title:       "Run a repository command",
		Body:        commandBody,
	},
	{
		ID:          "docs",
		Name:        "Documentation Update",
		Description: "Add or refresh repository documentation",
		Title:       "Update documentation",
		Body:        docsBody,
	},
}

// GetTemplate returns a template by ID, or nil if not found
func GetTemplate(id string) *Template {
	for i := range BuiltinTemplates {
		if BuiltinTemplates[i].ID == id {
			return &BuiltinTemplates[i]
		}
	}
	return nil
}

// Render produces a complete plan file with a fresh trace ID
func (t *Template) Render(requestID, agentID string) string {
	if agentID == "" {
		agentID = "manual"
	}
	return fmt.Sprintf(`---
trace_id: %s
request_id: %s
agent_id: %s
status: approved
---

# %s

%s`, uuid.NewString(), requestID, agentID, t.Title, t.Body)
}
