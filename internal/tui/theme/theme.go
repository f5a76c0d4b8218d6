package theme

import "github.com/charmbracelet/lipgloss"

// Palette is a named set of console colors.
type Palette struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Error     lipgloss.Color
	Warning   lipgloss.Color
	Border    lipgloss.Color
	Muted     lipgloss.Color
	Highlight lipgloss.Color
	Bar       lipgloss.Color
	BarText   lipgloss.Color
}

var palettes = map[string]Palette{
	"default": {
		Primary:   "63",
		Secondary: "241",
		Success:   "42",
		Error:     "196",
		Warning:   "214",
		Border:    "238",
		Muted:     "245",
		Highlight: "229",
		Bar:       "236",
		BarText:   "252",
	},
	"mono": {
		Primary:   "252",
		Secondary: "245",
		Success:   "252",
		Error:     "255",
		Warning:   "250",
		Border:    "240",
		Muted:     "244",
		Highlight: "255",
		Bar:       "235",
		BarText:   "252",
	},
}

// Colors of the active palette.
var (
	ColorPrimary   lipgloss.Color
	ColorSecondary lipgloss.Color
	ColorSuccess   lipgloss.Color
	ColorError     lipgloss.Color
	ColorWarning   lipgloss.Color
	ColorBorder    lipgloss.Color
	ColorMuted     lipgloss.Color
	ColorHighlight lipgloss.Color
)

// Shared styles used across console components.
var (
	StyleBorder       lipgloss.Style
	StyleActiveBorder lipgloss.Style
	StyleTitle        lipgloss.Style
	StyleMuted        lipgloss.Style
	StyleError        lipgloss.Style
	StyleWarning      lipgloss.Style
	StyleSuccess      lipgloss.Style
	StyleSelected     lipgloss.Style
	StyleStatusBar    lipgloss.Style
)

func init() {
	Use("default")
}

// Names lists the available palettes.
func Names() []string {
	return []string{"default", "mono"}
}

// Use activates the named palette. Unknown names select the default and
// report false.
func Use(name string) bool {
	p, ok := palettes[name]
	if !ok {
		p = palettes["default"]
	}

	ColorPrimary = p.Primary
	ColorSecondary = p.Secondary
	ColorSuccess = p.Success
	ColorError = p.Error
	ColorWarning = p.Warning
	ColorBorder = p.Border
	ColorMuted = p.Muted
	ColorHighlight = p.Highlight

	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(p.Border)
	StyleActiveBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(p.Primary)
	StyleTitle = lipgloss.NewStyle().
		Foreground(p.Primary).
		Bold(true)
	StyleMuted = lipgloss.NewStyle().Foreground(p.Muted)
	StyleError = lipgloss.NewStyle().Foreground(p.Error)
	StyleWarning = lipgloss.NewStyle().Foreground(p.Warning)
	StyleSuccess = lipgloss.NewStyle().Foreground(p.Success)
	StyleSelected = lipgloss.NewStyle().
		Foreground(p.Highlight).
		Bold(true)
	StyleStatusBar = lipgloss.NewStyle().
		Background(p.Bar).
		Foreground(p.BarText).
		Padding(0, 1)

	return ok
}
