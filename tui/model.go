package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Tab indices
const (
	TabDashboard = iota
	TabExecutions
	TabEvents
	TabLeases
	tabCount
)

// RunView represents an in-flight plan in the TUI
type RunView struct {
	Path      string
	StartedAt time.Time
	Stuck     bool
}

// ExecutionView represents a finished execution in the TUI
type ExecutionView struct {
	TraceID    string
	RequestID  string
	Branch     string
	Success    bool
	Error      string
	Duration   time.Duration
	FinishedAt time.Time
}

// EventView represents a journal event in the TUI
type EventView struct {
	Type      string
	TraceID   string
	Target    string
	Success   bool
	CreatedAt time.Time
}

// LeaseView represents an active lease in the TUI
type LeaseView struct {
	ResourceID string
	HolderID   string
	AcquiredAt time.Time
}

// Data is one refresh worth of dashboard state
type Data struct {
	Running    []RunView
	Executions []ExecutionView
	Events     []EventView
	Leases     []LeaseView

	Completed   int
	Failed      int
	AvgDuration time.Duration
	QueuedCount int
}

// Fetcher pulls fresh dashboard data. It runs off the UI goroutine.
type Fetcher func() (Data, error)

// Model is the TUI application model
type Model struct {
	// Data
	data    Data
	fetch   Fetcher
	loadErr error

	// UI state
	width       int
	height      int
	activeTab   int
	selectedRow int
	scroll      int

	// Refresh
	lastRefresh time.Time
}

// ModelConfig holds initial data for the TUI model
type ModelConfig struct {
	Fetch   Fetcher
	Initial Data
}

// NewModel creates a new TUI model
func NewModel(cfg ModelConfig) Model {
	return Model{
		data:      cfg.Initial,
		fetch:     cfg.Fetch,
		activeTab: TabDashboard,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		fetchCmd(m.fetch),
		tickCmd(),
	)
}

// TickMsg triggers a refresh
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// DataMsg carries the result of a refresh
type DataMsg struct {
	Data Data
	Err  error
}

func fetchCmd(fetch Fetcher) tea.Cmd {
	if fetch == nil {
		return nil
	}
	return func() tea.Msg {
		data, err := fetch()
		return DataMsg{Data: data, Err: err}
	}
}
