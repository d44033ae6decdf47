package parser

import (
	"bytes"

	"gopkg.in/yaml.v3"
)

// Frontmatter represents the YAML header of a plan file
type Frontmatter struct {
	TraceID   string `yaml:"trace_id"`
	RequestID string `yaml:"request_id"`
	AgentID   string `yaml:"agent_id"`
	Status    string `yaml:"status"`
}

// ParseFrontmatter extracts the YAML frontmatter from markdown content.
// Returns the frontmatter, remaining content, and any error. Content
// without a frontmatter block yields an empty Frontmatter.
func ParseFrontmatter(content []byte) (*Frontmatter, []byte, error) {
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return &Frontmatter{}, content, nil
	}

	rest := content[4:]
	endIdx := bytes.Index(rest, []byte("\n---"))
	if endIdx == -1 {
		return &Frontmatter{}, content, nil
	}

	fmData := rest[:endIdx]
	remaining := rest[endIdx+4:] // skip \n---

	var fm Frontmatter
	if err := yaml.Unmarshal(fmData, &fm); err != nil {
		return nil, nil, err
	}

	return &fm, bytes.TrimLeft(remaining, "\n"), nil
}
