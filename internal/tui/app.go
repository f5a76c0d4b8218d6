package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/sqlgate/internal/client"
	"github.com/joacominatel/sqlgate/internal/config"
	"github.com/joacominatel/sqlgate/internal/tui/editor"
	"github.com/joacominatel/sqlgate/internal/tui/explorer"
	"github.com/joacominatel/sqlgate/internal/tui/results"
	"github.com/joacominatel/sqlgate/internal/tui/statusbar"
	"github.com/joacominatel/sqlgate/internal/tui/theme"
)

const (
	connectTimeout  = 10 * time.Second
	metadataTimeout = 30 * time.Second
	queryTimeout    = 60 * time.Second
	healthInterval  = 15 * time.Second
)

// Pane identifies a focusable area.
type Pane int

const (
	PaneExplorer Pane = iota
	PaneEditor
	PaneResults
)

func (p Pane) String() string {
	switch p {
	case PaneExplorer:
		return "explorer"
	case PaneEditor:
		return "editor"
	case PaneResults:
		return "results"
	default:
		return "unknown"
	}
}

// AppMode tracks the current UI state.
type AppMode int

const (
	ModeSelectGateway AppMode = iota // saved gateways list
	ModeConnect                      // manual URL input
	ModeMain
)

type (
	connectedMsg struct {
		client *client.Client
		err    error
	}
	metadataLoadedMsg struct {
		md  *client.Metadata
		err error
	}
	queryExecutedMsg struct {
		query  string
		result *client.Result
		err    error
	}
	healthMsg struct {
		health statusbar.Health
		detail string
	}
	healthTickMsg   struct{}
	gatewaySavedMsg struct {
		err error
	}
)

// Options configures the console.
type Options struct {
	// URL connects immediately, skipping the gateway list.
	URL string
	// ConfigPath is where new gateways are saved. Empty means the default.
	ConfigPath string
	// ExportDir receives result exports. Empty means the working directory.
	ExportDir string
}

// Model is the top-level bubbletea model orchestrating all components.
type Model struct {
	cfg        *config.Config
	opts       Options
	client     *client.Client
	explorer   explorer.Model
	editor     editor.Model
	results    results.Model
	statusbar  statusbar.Model
	urlInput   textinput.Model
	activePane Pane
	mode       AppMode
	width      int
	height     int
	err        error
	showHelp   bool
	connecting bool
	gwCursor   int
}

// NewModel creates the top-level model.
func NewModel(cfg *config.Config, opts Options) Model {
	theme.Use(cfg.Console.Preferences.Theme)

	ti := textinput.New()
	ti.Placeholder = config.DefaultConsoleURL
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60
	if cfg.Console.URL != "" {
		ti.SetValue(cfg.Console.URL)
	}

	mode := ModeConnect
	if opts.URL == "" && len(cfg.Console.Gateways) > 0 {
		mode = ModeSelectGateway
	}

	m := Model{
		cfg:        cfg,
		opts:       opts,
		explorer:   explorer.New(),
		editor:     editor.New(),
		results:    results.New(opts.ExportDir),
		statusbar:  statusbar.New(),
		urlInput:   ti,
		activePane: PaneExplorer,
		mode:       mode,
	}

	if def := cfg.Console.DefaultGateway(); def != nil {
		for i, g := range cfg.Console.Gateways {
			if g.Name == def.Name {
				m.gwCursor = i
			}
		}
	}
	return m
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.opts.URL != "" {
		cmds = append(cmds, connectCmd(m.opts.URL))
	}
	return tea.Batch(cmds...)
}

// Update handles all messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}
		if msg.String() == "?" && m.mode == ModeMain && m.activePane != PaneEditor {
			m.showHelp = true
			return m, nil
		}

		switch m.mode {
		case ModeSelectGateway:
			return m.updateSelectGateway(msg)
		case ModeConnect:
			return m.updateConnect(msg)
		case ModeMain:
			return m.updateMain(msg)
		}

	case connectedMsg:
		m.connecting = false
		if msg.err != nil {
			m.err = msg.err
			m.statusbar.SetMessage("")
			return m, nil
		}
		m.client = msg.client
		m.mode = ModeMain
		m.err = nil
		m.statusbar.SetGateway(msg.client.BaseURL())
		m.statusbar.SetHealth(statusbar.HealthUp, "")
		m.statusbar.SetMessage("")
		m.explorer.SetLoading(true)
		m.setFocus(PaneExplorer)
		m.layout()
		cmds := []tea.Cmd{loadMetadataCmd(m.client), checkHealthCmd(m.client)}
		if m.rememberGateway(msg.client.BaseURL()) {
			cmds = append(cmds, saveConfigCmd(m.opts.ConfigPath, *m.cfg))
		}
		return m, tea.Batch(cmds...)

	case gatewaySavedMsg:
		if msg.err != nil {
			m.statusbar.SetMessage("Warning: could not save gateway: " + msg.err.Error())
		}
		return m, nil

	case metadataLoadedMsg:
		if msg.err != nil {
			m.explorer.SetError(msg.err)
			m.statusbar.SetMessage("Failed to load tables")
			return m, nil
		}
		m.explorer.SetMetadata(m.client.BaseURL(), msg.md)
		m.editor.SetCompletions(m.explorer.TableNames(), m.explorer.ColumnNames())
		return m, nil

	case queryExecutedMsg:
		if msg.err != nil {
			m.results.SetError(msg.query, msg.err)
			m.statusbar.SetMessage(queryFailureMessage(msg.err))
			return m, nil
		}
		m.results.SetResult(msg.query, results.FromResult(msg.result))
		m.statusbar.SetMessage(msg.result.Message)
		return m, nil

	case healthMsg:
		m.statusbar.SetHealth(msg.health, msg.detail)
		return m, tea.Tick(healthInterval, func(time.Time) tea.Msg { return healthTickMsg{} })

	case healthTickMsg:
		if m.client == nil {
			return m, nil
		}
		return m, checkHealthCmd(m.client)

	case editor.ExecuteQueryMsg:
		return m.runQuery(msg.Query)

	case explorer.QuickQueryMsg:
		m.editor.SetQuery(msg.Query)
		return m.runQuery(msg.Query)

	case explorer.RefreshMsg:
		m.explorer.SetLoading(true)
		return m, loadMetadataCmd(m.client)

	case results.SetEditorQueryMsg:
		m.editor.SetQuery(msg.Query)
		m.setFocus(PaneEditor)
		return m, nil

	case results.StatusNotifyMsg:
		m.statusbar.SetMessage(msg.Message)
		return m, nil
	}

	if m.mode == ModeMain {
		return m.updateComponents(msg)
	}
	return m, nil
}

func (m Model) runQuery(query string) (tea.Model, tea.Cmd) {
	if m.client == nil {
		return m, nil
	}
	m.results.SetLoading(true)
	m.statusbar.SetMessage("Executing query...")
	return m, executeQueryCmd(m.client, query)
}

func queryFailureMessage(err error) string {
	if client.IsForbidden(err) {
		return "Rejected by gateway"
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Category != "" {
		return apiErr.Category
	}
	return "Query failed"
}

func (m Model) updateSelectGateway(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	count := len(m.cfg.Console.Gateways)

	switch msg.String() {
	case "up", "k":
		if m.gwCursor > 0 {
			m.gwCursor--
		}
	case "down", "j":
		// The last row is "New gateway".
		if m.gwCursor < count {
			m.gwCursor++
		}
	case "enter":
		if m.gwCursor < count {
			gw := m.cfg.Console.Gateways[m.gwCursor]
			return m.connect(gw.URL, "Connecting to "+gw.Name+"...")
		}
		return m.enterURL()
	case "n":
		return m.enterURL()
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) enterURL() (tea.Model, tea.Cmd) {
	m.mode = ModeConnect
	m.err = nil
	m.urlInput.Focus()
	return m, nil
}

func (m Model) connect(url, message string) (tea.Model, tea.Cmd) {
	if m.connecting {
		return m, nil
	}
	m.connecting = true
	m.err = nil
	m.statusbar.SetMessage(message)
	return m, connectCmd(url)
}

func (m Model) updateConnect(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		url := strings.TrimSpace(m.urlInput.Value())
		if url == "" {
			return m, nil
		}
		return m.connect(url, "Connecting...")
	case "esc":
		if len(m.cfg.Console.Gateways) > 0 {
			m.mode = ModeSelectGateway
			m.err = nil
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.urlInput, cmd = m.urlInput.Update(msg)
	return m, cmd
}

func (m Model) updateMain(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		if m.activePane != PaneEditor {
			return m, tea.Quit
		}
	case "tab":
		// Tab completes in the editor and switches panes otherwise.
		if m.activePane == PaneEditor {
			next, cmd := m.updateComponents(msg)
			if next.(Model).editor.CompletionActive() {
				return next, cmd
			}
		}
		m.cyclePane(1)
		return m, nil
	case "shift+tab":
		m.cyclePane(-1)
		return m, nil
	case "ctrl+r":
		if m.client != nil {
			m.explorer.SetLoading(true)
			return m, loadMetadataCmd(m.client)
		}
	}

	return m.updateComponents(msg)
}

func (m Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.activePane {
	case PaneExplorer:
		m.explorer, cmd = m.explorer.Update(msg)
	case PaneEditor:
		m.editor, cmd = m.editor.Update(msg)
	case PaneResults:
		m.results, cmd = m.results.Update(msg)
		if s := m.results.TakeStatus(); s != "" {
			m.statusbar.SetMessage(s)
		}
	}
	return m, cmd
}

func (m *Model) cyclePane(step int) {
	next := (int(m.activePane) + step + 3) % 3
	m.setFocus(Pane(next))
}

func (m *Model) setFocus(pane Pane) {
	m.activePane = pane
	m.explorer.SetFocused(pane == PaneExplorer)
	m.editor.SetFocused(pane == PaneEditor)
	m.results.SetFocused(pane == PaneResults)
	m.statusbar.SetActivePane(pane.String())
}

// paneSizes splits the window into explorer width, editor height and results
// height. Heights exclude borders.
func (m Model) paneSizes() (explorerWidth, editorHeight, resultsHeight int) {
	explorerWidth = min(max(m.width/4, 22), 35)
	avail := m.height - 1 - 2
	editorHeight = max(avail*40/100, 5)
	resultsHeight = max(avail-editorHeight-2, 1)
	return
}

func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	explorerWidth, editorHeight, resultsHeight := m.paneSizes()
	rightWidth := m.width - explorerWidth - 1

	m.explorer.SetSize(explorerWidth, m.height-3)
	m.editor.SetSize(rightWidth, editorHeight)
	m.results.SetSize(rightWidth, resultsHeight)
	m.statusbar.SetWidth(m.width)
}

func connectCmd(url string) tea.Cmd {
	return func() tea.Msg {
		c, err := client.New(url)
		if err != nil {
			return connectedMsg{err: err}
		}
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		if _, err := c.Health(ctx); err != nil {
			return connectedMsg{err: fmt.Errorf("gateway not reachable: %w", err)}
		}
		return connectedMsg{client: c}
	}
}

// rememberGateway adds url to the saved gateways. It reports whether the
// config changed.
func (m *Model) rememberGateway(url string) bool {
	gw, err := config.GatewayFromURL(url)
	if err != nil {
		return false
	}
	for _, g := range m.cfg.Console.Gateways {
		if g.URL == gw.URL {
			return false
		}
	}
	m.cfg.Console.AddGateway(gw)
	m.cfg.Console.URL = gw.URL
	return true
}

// saveConfigCmd writes a snapshot of the console settings.
func saveConfigCmd(path string, cfg config.Config) tea.Cmd {
	cfg.Console.Gateways = append([]config.Gateway(nil), cfg.Console.Gateways...)
	return func() tea.Msg {
		return gatewaySavedMsg{err: config.Save(path, &cfg)}
	}
}

func loadMetadataCmd(c *client.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), metadataTimeout)
		defer cancel()
		md, err := c.Metadata(ctx)
		return metadataLoadedMsg{md: md, err: err}
	}
}

func executeQueryCmd(c *client.Client, query string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()
		res, err := c.Execute(ctx, query)
		return queryExecutedMsg{query: query, result: res, err: err}
	}
}

// checkHealthCmd probes readiness: a 503 means the gateway is up but cannot
// reach its database.
func checkHealthCmd(c *client.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		_, err := c.Ready(ctx)
		if err == nil {
			return healthMsg{health: statusbar.HealthUp}
		}
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			return healthMsg{health: statusbar.HealthDegraded, detail: apiErr.Message}
		}
		return healthMsg{health: statusbar.HealthDown, detail: "unreachable"}
	}
}

// View renders the entire application.
func (m Model) View() string {
	if m.showHelp {
		return m.viewHelp()
	}
	switch m.mode {
	case ModeSelectGateway:
		return m.viewSelectGateway()
	case ModeConnect:
		return m.viewConnect()
	default:
		return m.viewMain()
	}
}

func (m Model) banner() []string {
	return []string{
		"",
		theme.StyleTitle.Padding(1, 0).Render("sqlgate"),
		theme.StyleMuted.Render("Read-only SQL over HTTP."),
		"",
	}
}

func (m Model) errorLine() string {
	if m.err == nil {
		return ""
	}
	return "\n" + theme.StyleError.Render("  Error: "+m.err.Error())
}

func (m Model) viewSelectGateway() string {
	parts := m.banner()
	parts = append(parts, theme.StyleTitle.Render("Saved Gateways"))

	for i, gw := range m.cfg.Console.Gateways {
		label := fmt.Sprintf("%s (%s)", gw.Name, gw.URL)
		if i == m.gwCursor {
			parts = append(parts, theme.StyleSelected.Render("> "+label))
		} else {
			parts = append(parts, "  "+label)
		}
	}

	newLabel := "  [New Gateway]"
	if m.gwCursor == len(m.cfg.Console.Gateways) {
		newLabel = theme.StyleSelected.Render("> [New Gateway]")
	}
	parts = append(parts, "", newLabel)

	if e := m.errorLine(); e != "" {
		parts = append(parts, e)
	}
	if msg := m.statusbar.Message(); msg != "" && m.connecting {
		parts = append(parts, "", theme.StyleMuted.Render("  "+msg))
	}
	parts = append(parts, "", theme.StyleMuted.Render("  ↑/↓: Navigate  Enter: Connect  n: New  q: Quit"))

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) viewConnect() string {
	back := ""
	if len(m.cfg.Console.Gateways) > 0 {
		back = "Esc: Back │ "
	}

	parts := m.banner()
	parts = append(parts,
		lipgloss.NewStyle().Foreground(theme.ColorPrimary).Render("Gateway URL:"),
		"  "+m.urlInput.View(),
	)
	if e := m.errorLine(); e != "" {
		parts = append(parts, e)
	}
	if m.connecting {
		parts = append(parts, "", theme.StyleMuted.Render("  Connecting..."))
	}
	parts = append(parts, "", theme.StyleMuted.Render("  "+back+"Enter: Connect │ Ctrl+C: Quit"))

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) border(p Pane) lipgloss.Style {
	if m.activePane == p {
		return theme.StyleActiveBorder
	}
	return theme.StyleBorder
}

func (m Model) viewMain() string {
	explorerWidth, editorHeight, resultsHeight := m.paneSizes()
	rightWidth := m.width - explorerWidth - 1

	explorerView := m.border(PaneExplorer).
		Width(explorerWidth - 2).
		Height(m.height - 3).
		Render(m.explorer.View())
	editorView := m.border(PaneEditor).
		Width(rightWidth - 2).
		Height(editorHeight).
		Render(m.editor.View())
	resultsView := m.border(PaneResults).
		Width(rightWidth - 2).
		Height(resultsHeight).
		Render(m.results.View())

	main := lipgloss.JoinHorizontal(lipgloss.Top,
		explorerView,
		lipgloss.JoinVertical(lipgloss.Left, editorView, resultsView),
	)
	return lipgloss.JoinVertical(lipgloss.Left, main, m.statusbar.View())
}

func (m Model) viewHelp() string {
	section := lipgloss.NewStyle().Foreground(theme.ColorHighlight).Bold(true)
	row := func(k, d string) string {
		return fmt.Sprintf("  %-16s", k) + theme.StyleMuted.Render(d)
	}

	help := lipgloss.JoinVertical(lipgloss.Left,
		theme.StyleTitle.Render("sqlgate console - Keyboard Shortcuts"),
		"",
		section.Render("Global"),
		row("q / Ctrl+C", "Quit"),
		row("Tab / Shift+Tab", "Switch panes"),
		row("Ctrl+R", "Reload tables"),
		row("?", "Toggle this help"),
		"",
		section.Render("Tables"),
		row("↑/k ↓/j", "Navigate"),
		row("Enter/→/l", "Expand table"),
		row("←/h", "Collapse"),
		row("s", "SELECT * LIMIT 100"),
		row("c", "Count rows"),
		row("r", "Reload tables"),
		"",
		section.Render("Query"),
		row("Ctrl+E / F5", "Execute query"),
		row("Ctrl+K", "Clear"),
		row("Ctrl+L", "Uppercase keywords"),
		row("Ctrl+P / Ctrl+N", "History"),
		row("Tab", "Complete table or column"),
		"",
		section.Render("Results"),
		row("↑↓←→ / hjkl", "Move cell cursor"),
		row("PgUp/PgDn", "Page"),
		row("y", "Copy cell"),
		row("Y / c", "Copy row as JSON / CSV"),
		row("f", "Filter by cell value"),
		row("e / E", "Export CSV / JSON"),
		"",
		theme.StyleMuted.Render("Press any key to close"),
	)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, help)
}

// Run starts the console and blocks until it exits.
func Run(cfg *config.Config, opts Options) error {
	p := tea.NewProgram(NewModel(cfg, opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
