package results

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/joacominatel/sqlgate/internal/tui/explorer"
)

// writeClipboard is replaced in tests.
var writeClipboard = clipboard.WriteAll

func (m *Model) copyText(text, what string) {
	if text == "" {
		m.statusMessage = "Nothing to copy"
		return
	}
	if err := writeClipboard(text); err != nil {
		m.statusMessage = "Copy failed: " + err.Error()
		return
	}
	m.statusMessage = "Copied " + what
}

func (m *Model) doCopyCell() {
	if !m.hasRow() {
		m.statusMessage = "Nothing to copy"
		return
	}
	val := m.table.Cell(m.cursorY, m.cursorX)
	m.copyText(val, truncateStatus(val, 40))
}

func (m *Model) doCopyRowJSON() {
	if !m.hasRow() {
		m.statusMessage = "No row to copy"
		return
	}
	s, err := RowJSON(m.table.Columns, m.table.Rows[m.cursorY])
	if err != nil {
		m.statusMessage = "Copy failed: " + err.Error()
		return
	}
	m.copyText(s, "row as JSON")
}

func (m *Model) doCopyRowCSV() {
	if !m.hasRow() {
		m.statusMessage = "No row to copy"
		return
	}
	s, err := RowCSV(m.table.Columns, m.table.Rows[m.cursorY])
	if err != nil {
		m.statusMessage = "Copy failed: " + err.Error()
		return
	}
	m.copyText(s, "row as CSV")
}

// filterQuery builds a query selecting rows of the last query's table that
// match the cell under the cursor.
func (m Model) filterQuery() (string, bool) {
	if !m.hasRow() {
		return "", false
	}
	table := extractTableName(m.lastQuery)
	if table == "" {
		return "", false
	}

	col := explorer.QuoteIdent(m.table.Columns[m.cursorX])
	v := m.table.Rows[m.cursorY][m.cursorX]
	cond := col + " IS NULL"
	if v != nil {
		cond = fmt.Sprintf("%s = '%s'", col, strings.ReplaceAll(FormatValue(v), "'", "''"))
	}
	return fmt.Sprintf("SELECT * FROM %s WHERE %s", table, cond), true
}

func (m *Model) doFilterByValue() tea.Cmd {
	query, ok := m.filterQuery()
	if !ok {
		m.statusMessage = "Cannot filter: no table in last query"
		return nil
	}
	return func() tea.Msg { return SetEditorQueryMsg{Query: query} }
}

// exportCmd writes the current table into dir with a timestamped name.
func (m Model) exportCmd(ext string, write func(io.Writer, *Table) error) tea.Cmd {
	table := m.table
	if table == nil {
		return nil
	}
	dir := m.exportDir
	return func() tea.Msg {
		name := filepath.Join(dir, fmt.Sprintf("sqlgate_export_%s.%s", time.Now().Format("20060102_150405"), ext))
		if err := writeFile(name, table, write); err != nil {
			return StatusNotifyMsg{Message: "Export failed: " + err.Error()}
		}
		return StatusNotifyMsg{Message: fmt.Sprintf("Exported %d rows to %s", len(table.Rows), name)}
	}
}

func writeFile(name string, t *Table, write func(io.Writer, *Table) error) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := write(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// extractTableName returns the relation following the first FROM.
func extractTableName(query string) string {
	tokens := strings.Fields(query)
	for i, tok := range tokens {
		if strings.EqualFold(tok, "FROM") && i+1 < len(tokens) {
			name := strings.TrimRight(tokens[i+1], ";,)")
			if name != "" && !strings.HasPrefix(name, "(") {
				return name
			}
		}
	}
	return ""
}

func truncateStatus(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
