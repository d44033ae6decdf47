package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
		Background(lipgloss.Color("236")).
		Foreground(lipgloss.Color("255")).
		Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	runningStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	queuedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("244"))

	warningStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("214"))

	failedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("196"))

	statusBarStyle = lipgloss.NewStyle().
		Background(lipgloss.Color("236")).
		Foreground(lipgloss.Color("255"))

	tabActiveStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		Underline(true)

	tabInactiveStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("244"))

	selectedStyle = lipgloss.NewStyle().
		Background(lipgloss.Color("236")).
		Foreground(lipgloss.Color("255"))

	completedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	dimmedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240"))
)

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	// Header
	header := fmt.Sprintf(" Exo Orchestrator │ Running: %d │ Queued: %d │ Completed: %d │ Failed: %d │ Leases: %d ",
		len(m.data.Running), m.data.QueuedCount, m.data.Completed, m.data.Failed, len(m.data.Leases))
	b.WriteString(headerStyle.Width(m.width).Render(header))
	b.WriteString("\n")

	// Tab bar
	b.WriteString(m.renderTabs())
	b.WriteString("\n")

	// Content based on active tab
	switch m.activeTab {
	case TabDashboard:
		runningSection := m.renderRunning()
		b.WriteString(sectionStyle.Width(m.width - 2).Render(runningSection))
		b.WriteString("\n")

		leasesSection := m.renderLeaseSummary()
		b.WriteString(sectionStyle.Width(m.width - 2).Render(leasesSection))
		b.WriteString("\n")

		recentSection := m.renderRecent()
		b.WriteString(sectionStyle.Width(m.width - 2).Render(recentSection))
		b.WriteString("\n")

	case TabExecutions:
		b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderExecutions()))
		b.WriteString("\n")

	case TabEvents:
		b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderEvents()))
		b.WriteString("\n")

	case TabLeases:
		b.WriteString(sectionStyle.Width(m.width - 2).Render(m.renderLeases()))
		b.WriteString("\n")
	}

	// Load error (last fetch failed, data may be stale)
	if m.loadErr != nil {
		b.WriteString(warningStyle.Width(m.width).Render(fmt.Sprintf(" refresh failed: %v ", m.loadErr)))
		b.WriteString("\n")
	}

	// Status bar
	var statusBar string
	switch m.activeTab {
	case TabDashboard:
		statusBar = " [tab]switch [e]xecutions [l]eases [r]efresh [q]uit "
	default:
		statusBar = " [tab]switch [j/k]scroll [g]top [G]bottom [r]efresh [q]uit "
	}
	b.WriteString(statusBarStyle.Width(m.width).Render(statusBar))

	return b.String()
}

func (m Model) renderTabs() string {
	tabs := []string{"Dashboard", "Executions", "Events", "Leases"}
	var parts []string

	for i, tab := range tabs {
		if i == m.activeTab {
			parts = append(parts, tabActiveStyle.Render(fmt.Sprintf(" %s ", tab)))
		} else {
			parts = append(parts, tabInactiveStyle.Render(fmt.Sprintf(" %s ", tab)))
		}
	}

	return strings.Join(parts, "│")
}

func (m Model) renderRunning() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("RUNNING"))
	b.WriteString("\n")

	if len(m.data.Running) == 0 {
		b.WriteString(queuedStyle.Render("  No plans executing"))
		return b.String()
	}

	for _, run := range m.data.Running {
		name := filepath.Base(run.Path)
		line := fmt.Sprintf("  ● %-30s %8s", truncate(name, 30), formatDuration(time.Since(run.StartedAt)))
		if run.Stuck {
			line += "  ⚠ stuck"
			b.WriteString(warningStyle.Render(line))
		} else {
			b.WriteString(runningStyle.Render(line))
		}
		b.WriteString("\n")
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func (m Model) renderLeaseSummary() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("LEASES"))
	b.WriteString("\n")

	if len(m.data.Leases) == 0 {
		b.WriteString(queuedStyle.Render("  No active leases"))
		return b.String()
	}

	limit := 5
	for i, l := range m.data.Leases {
		if i >= limit {
			b.WriteString(dimmedStyle.Render(fmt.Sprintf("  … and %d more", len(m.data.Leases)-limit)))
			b.WriteString("\n")
			break
		}
		line := fmt.Sprintf("  ◆ %-24s %-20s %s",
			truncate(l.ResourceID, 24), truncate(l.HolderID, 20), humanize.Time(l.AcquiredAt))
		b.WriteString(queuedStyle.Render(line))
		b.WriteString("\n")
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func (m Model) renderRecent() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("RECENT (last 5)"))
	b.WriteString("\n")

	if len(m.data.Executions) == 0 {
		b.WriteString(queuedStyle.Render("  Nothing executed yet"))
		return b.String()
	}

	limit := 5
	for i, ex := range m.data.Executions {
		if i >= limit {
			break
		}
		b.WriteString(m.executionLine(ex, false))
		b.WriteString("\n")
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func (m Model) renderExecutions() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("EXECUTIONS"))
	b.WriteString("\n")

	if len(m.data.Executions) == 0 {
		b.WriteString(queuedStyle.Render("  Nothing executed yet"))
		return b.String()
	}

	maxVisible := m.visibleRows()
	for i, ex := range m.data.Executions {
		if i < m.scroll {
			continue
		}
		if i >= m.scroll+maxVisible {
			b.WriteString(dimmedStyle.Render(fmt.Sprintf("  … %d more below", len(m.data.Executions)-i)))
			b.WriteString("\n")
			break
		}
		b.WriteString(m.executionLine(ex, i == m.selectedRow))
		b.WriteString("\n")
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func (m Model) executionLine(ex ExecutionView, selected bool) string {
	marker := completedStyle.Render("✓")
	detail := truncate(ex.Branch, 32)
	if !ex.Success {
		marker = failedStyle.Render("✗")
		detail = truncate(ex.Error, 32)
	}

	line := fmt.Sprintf("  %s %-10s %-24s %-32s %7s  %s",
		marker, truncate(ex.TraceID, 10), truncate(ex.RequestID, 24), detail,
		formatDuration(ex.Duration), humanize.Time(ex.FinishedAt))

	if selected {
		return selectedStyle.Render(line)
	}
	return line
}

func (m Model) renderEvents() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("EVENTS"))
	b.WriteString("\n")

	if len(m.data.Events) == 0 {
		b.WriteString(queuedStyle.Render("  No events recorded"))
		return b.String()
	}

	maxVisible := m.visibleRows()
	for i, e := range m.data.Events {
		if i < m.scroll {
			continue
		}
		if i >= m.scroll+maxVisible {
			b.WriteString(dimmedStyle.Render(fmt.Sprintf("  … %d more below", len(m.data.Events)-i)))
			b.WriteString("\n")
			break
		}

		marker := "●"
		style := queuedStyle
		if !e.Success {
			marker = "✗"
			style = failedStyle
		} else if strings.HasPrefix(e.Type, "execution.") {
			style = runningStyle
		}

		line := fmt.Sprintf("  %s %-22s %-10s %-28s %s",
			marker, e.Type, truncate(e.TraceID, 10), truncate(e.Target, 28), humanize.Time(e.CreatedAt))
		if i == m.selectedRow {
			b.WriteString(selectedStyle.Render(line))
		} else {
			b.WriteString(style.Render(line))
		}
		b.WriteString("\n")
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func (m Model) renderLeases() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("ACTIVE LEASES"))
	b.WriteString("\n")

	if len(m.data.Leases) == 0 {
		b.WriteString(queuedStyle.Render("  No active leases"))
		return b.String()
	}

	for i, l := range m.data.Leases {
		line := fmt.Sprintf("  ◆ %-32s %-24s acquired %s",
			truncate(l.ResourceID, 32), truncate(l.HolderID, 24), humanize.Time(l.AcquiredAt))
		if i == m.selectedRow {
			b.WriteString(selectedStyle.Render(line))
		} else {
			b.WriteString(queuedStyle.Render(line))
		}
		b.WriteString("\n")
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
