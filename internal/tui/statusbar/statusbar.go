package statusbar

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/sqlgate/internal/tui/theme"
)

// Health is the last known gateway state.
type Health int

const (
	HealthUnknown Health = iota
	HealthUp
	HealthDegraded
	HealthDown
)

const defaultHints = "Ctrl+E: Execute │ Tab: Switch pane │ ?: Help │ q: Quit"

// Model is the status bar component.
type Model struct {
	width      int
	gateway    string
	health     Health
	detail     string
	activePane string
	message    string
}

// New creates a new status bar model.
func New() Model {
	return Model{activePane: "explorer"}
}

// SetWidth updates the component width.
func (m *Model) SetWidth(w int) {
	m.width = w
}

// SetGateway sets the gateway address shown on the left.
func (m *Model) SetGateway(url string) {
	m.gateway = url
}

// SetHealth records the result of the latest health probe. Detail is shown
// next to the indicator when the gateway is not fully up.
func (m *Model) SetHealth(h Health, detail string) {
	m.health = h
	m.detail = detail
}

// Health returns the last recorded state.
func (m Model) Health() Health {
	return m.health
}

// SetActivePane updates the displayed active pane name.
func (m *Model) SetActivePane(pane string) {
	m.activePane = pane
}

// SetMessage sets a temporary status message.
func (m *Model) SetMessage(msg string) {
	m.message = msg
}

// Message returns the current status message.
func (m Model) Message() string {
	return m.message
}

// View renders the status bar.
func (m Model) View() string {
	style := theme.StyleStatusBar.Width(m.width)

	var dot lipgloss.Style
	label := m.gateway
	switch m.health {
	case HealthUp:
		dot = lipgloss.NewStyle().Foreground(theme.ColorSuccess)
	case HealthDegraded:
		dot = lipgloss.NewStyle().Foreground(theme.ColorWarning)
	case HealthDown:
		dot = lipgloss.NewStyle().Foreground(theme.ColorError)
	default:
		dot = lipgloss.NewStyle().Foreground(theme.ColorMuted)
	}
	if label == "" {
		label = "no gateway"
	}
	if m.detail != "" && m.health != HealthUp {
		label += " (" + m.detail + ")"
	}
	left := dot.Render("●") + " " + label + "  " + theme.StyleMuted.Render("["+m.activePane+"]")

	right := defaultHints
	if m.message != "" {
		right = m.message
	}

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 4
	if padding < 1 {
		padding = 1
	}

	return style.Render(left + strings.Repeat(" ", padding) + right)
}
