package results

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/sqlgate/internal/client"
	"github.com/joacominatel/sqlgate/internal/tui/theme"
)

const maxColWidth = 40

// Model is the query results component.
type Model struct {
	table     *Table
	err       error
	lastQuery string
	width     int
	height    int
	focused   bool
	loading   bool
	colWidths []int

	cursorX   int
	cursorY   int
	scrollY   int
	colOffset int

	exportDir     string
	statusMessage string
}

// New creates a new results model. Exports are written to exportDir.
func New(exportDir string) Model {
	return Model{exportDir: exportDir}
}

// SetSize updates the component dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused sets the focus state.
func (m *Model) SetFocused(f bool) {
	m.focused = f
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(l bool) {
	m.loading = l
}

// SetResult shows a successful result of query.
func (m *Model) SetResult(query string, t *Table) {
	m.table = t
	m.err = nil
	m.lastQuery = query
	m.loading = false
	m.cursorX, m.cursorY, m.scrollY, m.colOffset = 0, 0, 0, 0
	m.statusMessage = ""
	m.calculateColumnWidths()
}

// SetError shows a failed query.
func (m *Model) SetError(query string, err error) {
	m.err = err
	m.table = nil
	m.lastQuery = query
	m.loading = false
	m.statusMessage = ""
}

// Table returns the displayed result, if any.
func (m Model) Table() *Table {
	return m.table
}

// Cursor returns the selected row and column.
func (m Model) Cursor() (row, col int) {
	return m.cursorY, m.cursorX
}

// TakeStatus returns and clears the pending status message.
func (m *Model) TakeStatus() string {
	s := m.statusMessage
	m.statusMessage = ""
	return s
}

func (m Model) hasRow() bool {
	return m.table != nil && m.cursorY >= 0 && m.cursorY < len(m.table.Rows) &&
		m.cursorX >= 0 && m.cursorX < len(m.table.Columns)
}

func (m *Model) calculateColumnWidths() {
	if m.table == nil || len(m.table.Columns) == 0 {
		m.colWidths = nil
		return
	}

	m.colWidths = make([]int, len(m.table.Columns))
	for i, col := range m.table.Columns {
		m.colWidths[i] = lipgloss.Width(col)
	}
	for r := range m.table.Rows {
		for c := range m.colWidths {
			if w := lipgloss.Width(m.table.Cell(r, c)); w > m.colWidths[c] {
				m.colWidths[c] = w
			}
		}
	}
	for i := range m.colWidths {
		m.colWidths[i] = min(max(m.colWidths[i], 1), maxColWidth)
	}
}

func (m Model) visibleRows() int {
	return max(1, m.height-4)
}

// Update handles messages for the results pane.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	rows := 0
	cols := 0
	if m.table != nil {
		rows = len(m.table.Rows)
		cols = len(m.table.Columns)
	}

	switch key.String() {
	case "up", "k":
		m.moveRow(-1, rows)
	case "down", "j":
		m.moveRow(1, rows)
	case "pgup":
		m.moveRow(-m.visibleRows(), rows)
	case "pgdown":
		m.moveRow(m.visibleRows(), rows)
	case "home", "g":
		m.moveRow(-rows, rows)
	case "end", "G":
		m.moveRow(rows, rows)
	case "left", "h":
		m.moveCol(-1, cols)
	case "right", "l":
		m.moveCol(1, cols)
	case "y":
		m.doCopyCell()
	case "Y":
		m.doCopyRowJSON()
	case "c":
		m.doCopyRowCSV()
	case "f":
		return m, m.doFilterByValue()
	case "e":
		return m, m.exportCmd("csv", WriteCSV)
	case "E":
		return m, m.exportCmd("json", WriteJSON)
	}

	return m, nil
}

func (m *Model) moveRow(delta, rows int) {
	if rows == 0 {
		return
	}
	m.cursorY = min(max(m.cursorY+delta, 0), rows-1)
	if m.cursorY < m.scrollY {
		m.scrollY = m.cursorY
	}
	if vis := m.visibleRows(); m.cursorY >= m.scrollY+vis {
		m.scrollY = m.cursorY - vis + 1
	}
}

func (m *Model) moveCol(delta, cols int) {
	if cols == 0 {
		return
	}
	m.cursorX = min(max(m.cursorX+delta, 0), cols-1)
	if m.cursorX < m.colOffset {
		m.colOffset = m.cursorX
	}
	for m.colOffset < m.cursorX && m.lastVisibleCol() < m.cursorX {
		m.colOffset++
	}
}

// lastVisibleCol returns the index of the last column that fits in the
// pane when rendering starts at colOffset.
func (m Model) lastVisibleCol() int {
	used := 2
	last := m.colOffset
	for i := m.colOffset; i < len(m.colWidths); i++ {
		w := m.colWidths[i] + 3
		if i > m.colOffset && used+w > m.width {
			break
		}
		used += w
		last = i
	}
	return last
}

// View renders the results pane.
func (m Model) View() string {
	title := theme.StyleTitle.Padding(0, 1).Render("Results")

	switch {
	case m.loading:
		return title + "\n" + theme.StyleMuted.Render("  Executing query...")
	case m.err != nil:
		return title + "\n" + m.renderError()
	case m.table == nil:
		return title + "\n" + theme.StyleMuted.Render("  Execute a query to see results")
	}

	stats := fmt.Sprintf("%d row(s) │ %s", m.table.RowCount, m.table.Elapsed)
	if len(m.table.Rows) > 0 {
		stats += fmt.Sprintf(" │ row %d/%d col %d/%d", m.cursorY+1, len(m.table.Rows), m.cursorX+1, len(m.table.Columns))
	}
	header := title + "  " + theme.StyleMuted.Render(stats)

	if len(m.table.Columns) == 0 {
		return header + "\n" + theme.StyleSuccess.Render("  "+m.table.Message)
	}

	last := m.lastVisibleCol()
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(m.renderHeader(last))
	b.WriteString("\n")
	b.WriteString(m.renderSeparator(last))

	end := min(len(m.table.Rows), m.scrollY+m.visibleRows())
	for r := m.scrollY; r < end; r++ {
		b.WriteString("\n")
		b.WriteString(m.renderRow(r, last))
	}
	return b.String()
}

// renderError shows the gateway's category, message, position and detail.
func (m Model) renderError() string {
	var apiErr *client.APIError
	if !errors.As(m.err, &apiErr) {
		return theme.StyleError.Render("  Error: " + m.err.Error())
	}

	lines := []string{theme.StyleError.Render(fmt.Sprintf("  %s: %s", apiErr.Category, apiErr.Message))}
	if apiErr.Position > 0 {
		lines = append(lines, theme.StyleMuted.Render(fmt.Sprintf("  at position %d", apiErr.Position)))
		if caret, ok := positionCaret(m.lastQuery, int(apiErr.Position)); ok {
			lines = append(lines, "  "+caret)
		}
	}
	if apiErr.Detail != "" {
		lines = append(lines, theme.StyleMuted.Render("  "+apiErr.Detail))
	}
	return strings.Join(lines, "\n")
}

// positionCaret renders the line of query containing the 1-based character
// position with a caret under it.
func positionCaret(query string, pos int) (string, bool) {
	runes := []rune(query)
	if pos < 1 || pos > len(runes) {
		return "", false
	}
	start := pos - 1
	for start > 0 && runes[start-1] != '\n' {
		start--
	}
	end := pos - 1
	for end < len(runes) && runes[end] != '\n' {
		end++
	}
	line := string(runes[start:end])
	caret := strings.Repeat(" ", pos-1-start) + "^"
	return line + "\n  " + caret, true
}

func (m Model) renderHeader(last int) string {
	parts := make([]string, 0, last-m.colOffset+1)
	for c := m.colOffset; c <= last; c++ {
		parts = append(parts, lipgloss.NewStyle().Bold(true).Foreground(theme.ColorPrimary).
			Render(fit(m.table.Columns[c], m.colWidths[c])))
	}
	return "  " + strings.Join(parts, " │ ")
}

func (m Model) renderRow(r, last int) string {
	parts := make([]string, 0, last-m.colOffset+1)
	for c := m.colOffset; c <= last; c++ {
		text := m.table.Cell(r, c)
		cell := fit(text, m.colWidths[c])
		switch {
		case m.focused && r == m.cursorY && c == m.cursorX:
			cell = lipgloss.NewStyle().Reverse(true).Render(cell)
		case m.table.Rows[r][c] == nil:
			cell = theme.StyleMuted.Render(cell)
		}
		parts = append(parts, cell)
	}
	prefix := "  "
	if r == m.cursorY {
		prefix = theme.StyleSelected.Render("›") + " "
	}
	return prefix + strings.Join(parts, " │ ")
}

func (m Model) renderSeparator(last int) string {
	parts := make([]string, 0, last-m.colOffset+1)
	for c := m.colOffset; c <= last; c++ {
		parts = append(parts, strings.Repeat("─", m.colWidths[c]))
	}
	return "  " + lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(strings.Join(parts, "─┼─"))
}

// fit truncates or pads s to exactly width display cells. Newlines are
// flattened so a cell never spans rows.
func fit(s string, width int) string {
	s = strings.NewReplacer("\n", "↵", "\r", "", "\t", " ").Replace(s)
	if lipgloss.Width(s) > width {
		runes := []rune(s)
		for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
			runes = runes[:len(runes)-1]
		}
		s = string(runes) + "…"
	}
	if pad := width - lipgloss.Width(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}
