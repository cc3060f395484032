// Package tui implements the terminal user interface using Bubble Tea.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"

	"github.com/skillfleet/fleet/internal/activity"
	"github.com/skillfleet/fleet/internal/config"
	"github.com/skillfleet/fleet/internal/timeline"
)

// Model holds the conversation state shared by the console views.
type Model struct {
	// Configuration
	Cfg         *config.Config
	ProjectRoot string

	// Conversation
	ConversationID string
	Timeline       *timeline.Timeline

	// Job state
	JobID     string
	JobState  string
	Activity  activity.Tracker
	Now       time.Time // last presentation tick
	Streaming bool

	// Bubbles components
	Spinner spinner.Model

	// Terminal dimensions
	Width  int
	Height int

	// Ctrl+C confirmation state
	CtrlCPending bool // True when waiting for second Ctrl+C press
}

// NewModel creates a new Model with the given configuration.
func NewModel(cfg *config.Config, projectRoot string) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(primaryColor))

	return &Model{
		Cfg:         cfg,
		ProjectRoot: projectRoot,
		Timeline:    timeline.New(),
		Now:         time.Now(),
		Spinner:     sp,

		// Default dimensions (will be updated on WindowSizeMsg)
		Width:  80,
		Height: 24,
	}
}

// ActivitySummary derives the activity indicator at the last tick.
func (m *Model) ActivitySummary() activity.Summary {
	return m.Activity.Summary(m.Now, m.Cfg.ActivityThreshold())
}
