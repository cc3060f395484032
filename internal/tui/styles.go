package tui

import "github.com/charmbracelet/lipgloss"

// Color constants.
const (
	primaryColor   = "#7C3AED" // Purple
	secondaryColor = "#10B981" // Green
	warningColor   = "#F59E0B" // Amber
	errorColor     = "#EF4444" // Red
	dimColor       = "#6B7280" // Gray
)

// Style variables for consistent TUI rendering.
var (
	// BoxStyle provides a rounded border box with primary color.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(primaryColor)).
			Padding(0, 1)

	// TitleStyle renders titles in primary color with bold.
	TitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(primaryColor)).
			Bold(true)

	// SelectedStyle highlights selected items in primary color.
	SelectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(primaryColor)).
			Bold(true)

	// NormalStyle renders unselected items.
	NormalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9CA3AF"))

	// DimStyle renders dim/muted text.
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(dimColor))

	// SuccessStyle renders success messages in green.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(secondaryColor))

	// ErrorStyle renders error messages in red.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(errorColor))

	// WarningStyle renders warning messages in amber.
	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(warningColor))

	// StatusBarStyle provides styling for the status bar.
	StatusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#1F2937")).
			Foreground(lipgloss.Color("#9CA3AF")).
			Padding(0, 1)

	// UserStyle labels user messages.
	UserStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(secondaryColor)).
			Bold(true)

	// AssistantStyle labels assistant messages.
	AssistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(primaryColor)).
			Bold(true)

	// ThinkingStyle renders thinking chunks.
	ThinkingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(dimColor)).
			Italic(true)

	// HitlStyle frames hitl checkpoints in the timeline.
	HitlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(warningColor)).
			Bold(true)
)

// Activity indicators (pre-rendered strings).
var (
	// ActiveDot indicates the job produced output recently.
	ActiveDot = SuccessStyle.Render("●")

	// IdleDot indicates no recent output.
	IdleDot = DimStyle.Render("○")

	// CheckMark marks an answered checkpoint.
	CheckMark = SuccessStyle.Render("✓")
)
