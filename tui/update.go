package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, fetchCmd(m.fetch)
		case "j", "down":
			if m.selectedRow < m.rowCount()-1 {
				m.selectedRow++
			}
			maxVisible := m.visibleRows()
			if m.selectedRow >= m.scroll+maxVisible {
				m.scroll = m.selectedRow - maxVisible + 1
			}
		case "k", "up":
			if m.selectedRow > 0 {
				m.selectedRow--
			}
			if m.selectedRow < m.scroll {
				m.scroll = m.selectedRow
			}
		case "g":
			m.selectedRow = 0
			m.scroll = 0
		case "G":
			if n := m.rowCount(); n > 0 {
				m.selectedRow = n - 1
				if maxVisible := m.visibleRows(); n > maxVisible {
					m.scroll = n - maxVisible
				}
			}
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
			m.selectedRow = 0
			m.scroll = 0
		case "e":
			m.activeTab = TabExecutions
			m.selectedRow = 0
			m.scroll = 0
		case "l":
			m.activeTab = TabLeases
			m.selectedRow = 0
			m.scroll = 0
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		return m, tea.Batch(fetchCmd(m.fetch), tickCmd())

	case DataMsg:
		if msg.Err != nil {
			m.loadErr = msg.Err
			return m, nil
		}
		m.loadErr = nil
		m.data = msg.Data
		m.lastRefresh = time.Now()
		m.clampSelection()
		return m, nil
	}

	return m, nil
}

// rowCount returns how many selectable rows the active tab has
func (m Model) rowCount() int {
	switch m.activeTab {
	case TabExecutions:
		return len(m.data.Executions)
	case TabEvents:
		return len(m.data.Events)
	case TabLeases:
		return len(m.data.Leases)
	default:
		return 0
	}
}

// visibleRows returns how many rows fit on screen for list tabs
func (m Model) visibleRows() int {
	// Header, tab bar, section borders and status bar eat about 8 lines
	rows := m.height - 8
	if rows < 1 {
		return 12
	}
	return rows
}

func (m *Model) clampSelection() {
	if n := m.rowCount(); m.selectedRow >= n {
		m.selectedRow = n - 1
		if m.selectedRow < 0 {
			m.selectedRow = 0
		}
	}
	if m.scroll > m.selectedRow {
		m.scroll = m.selectedRow
	}
}
