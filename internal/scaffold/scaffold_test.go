package scaffold

import (
	"strings"
	"testing"

	"github.com/exoforge/exo-orchestrator/internal/parser"
)

func TestGetTemplate(t *testing.T) {
	tmpl := GetTemplate("file-change")
	if tmpl == nil {
		t.Fatal("file-change template missing")
	}
	if tmpl.Name != "File Change" {
		t.Errorf("Name = %q", tmpl.Name)
	}

	if GetTemplate("no-such-template") != nil {
		t.Error("unknown ID should return nil")
	}
}

func TestRenderedPlansParse(t *testing.T) {
	for _, tmpl := range BuiltinTemplates {
		content := tmpl.Render("sample-request", "planner-1")

		plan, err := parser.Parse("plan.md", []byte(content))
		if err != nil {
			t.Errorf("template %s renders an invalid plan: %v", tmpl.ID, err)
			continue
		}
		if plan.RequestID != "sample-request" {
			t.Errorf("template %s: RequestID = %q", tmpl.ID, plan.RequestID)
		}
		if plan.AgentID != "planner-1" {
			t.Errorf("template %s: AgentID = %q", tmpl.ID, plan.AgentID)
		}
		if plan.TraceID == "" {
			t.Errorf("template %s: missing trace ID", tmpl.ID)
		}
		if plan.Title != tmpl.Title {
			t.Errorf("template %s: Title = %q, want %q", tmpl.ID, plan.Title, tmpl.Title)
		}
	}
}

func TestRenderGeneratesFreshTraceIDs(t *testing.T) {
	tmpl := GetTemplate("empty")
	first := tmpl.Render("req", "")
	second := tmpl.Render("req", "")
	if first == second {
		t.Error("consecutive renders should differ in trace ID")
	}
	if !strings.Contains(first, "agent_id: manual") {
		t.Error("empty agent ID should default to manual")
	}
}

func TestActionTemplatesCarryActions(t *testing.T) {
	for _, id := range []string{"file-change", "command", "docs"} {
		tmpl := GetTemplate(id)
		plan, err := parser.Parse("plan.md", []byte(tmpl.Render("req", "a")))
		if err != nil {
			t.Fatalf("template %s: %v", id, err)
		}
		if len(plan.Actions) == 0 {
			t.Errorf("template %s should carry at least one action", id)
		}
	}
}
