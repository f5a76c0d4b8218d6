package results

import (
	"bytes"
	stdjson "encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/sqlgate/internal/client"
	"github.com/joacominatel/sqlgate/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *client.Result {
	return &client.Result{
		Success: true,
		Rows: []map[string]any{
			{"id": stdjson.Number("1"), "name": "ada", "tags": []any{"a", "b"}},
			{"id": stdjson.Number("2"), "name": nil, "tags": nil},
		},
		RowCount:      2,
		Fields:        []database.Field{{Name: "name"}, {Name: "id"}, {Name: "tags"}},
		ExecutionTime: 7,
		Message:       "Query executed successfully. Returned 2 rows.",
	}
}

func TestFromResult(t *testing.T) {
	tbl := FromResult(sampleResult())

	assert.Equal(t, []string{"name", "id", "tags"}, tbl.Columns)
	assert.Equal(t, int64(2), tbl.RowCount)
	assert.Equal(t, "7ms", tbl.Elapsed.String())
	assert.Equal(t, "ada", tbl.Cell(0, 0))
	assert.Equal(t, "1", tbl.Cell(0, 1))
	assert.Equal(t, `["a","b"]`, tbl.Cell(0, 2))
	assert.Equal(t, NullText, tbl.Cell(1, 0))
	assert.Equal(t, "", tbl.Cell(5, 0))
	assert.Equal(t, "", tbl.Cell(0, 9))
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{"text", "text"},
		{true, "true"},
		{float64(1.5), "1.5"},
		{float64(1e21), "1000000000000000000000"},
		{stdjson.Number("9007199254740993"), "9007199254740993"},
		{map[string]any{"k": "v"}, `{"k":"v"}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValue(tt.in))
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, FromResult(sampleResult())))
	assert.Equal(t, "name,id,tags\nada,1,\"[\"\"a\"\",\"\"b\"\"]\"\n,2,\n", buf.String())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, FromResult(sampleResult())))
	assert.Equal(t,
		`[{"name":"ada","id":1,"tags":["a","b"]},{"name":null,"id":2,"tags":null}]`+"\n",
		buf.String())
}

func TestRowHelpers(t *testing.T) {
	tbl := FromResult(sampleResult())

	s, err := RowJSON(tbl.Columns, tbl.Rows[1])
	require.NoError(t, err)
	assert.Equal(t, `{"name":null,"id":2,"tags":null}`, s)

	s, err = RowCSV(tbl.Columns, tbl.Rows[0])
	require.NoError(t, err)
	assert.Equal(t, "name,id,tags\nada,1,\"[\"\"a\"\",\"\"b\"\"]\"\n", s)
}

func newModel(t *testing.T) Model {
	m := New(t.TempDir())
	m.SetSize(80, 10)
	m.SetFocused(true)
	m.SetResult("SELECT name, id, tags FROM users", FromResult(sampleResult()))
	return m
}

func key(s string) tea.KeyMsg {
	switch s {
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_CursorStaysInBounds(t *testing.T) {
	m := newModel(t)

	for range 5 {
		m, _ = m.Update(key("down"))
		m, _ = m.Update(key("right"))
	}
	row, col := m.Cursor()
	assert.Equal(t, 1, row)
	assert.Equal(t, 2, col)

	for range 5 {
		m, _ = m.Update(key("up"))
		m, _ = m.Update(key("left"))
	}
	row, col = m.Cursor()
	assert.Equal(t, 0, row)
	assert.Equal(t, 0, col)
}

func TestModel_Copy(t *testing.T) {
	var copied string
	orig := writeClipboard
	writeClipboard = func(s string) error { copied = s; return nil }
	t.Cleanup(func() { writeClipboard = orig })

	m := newModel(t)
	m, _ = m.Update(key("y"))
	assert.Equal(t, "ada", copied)
	assert.Equal(t, "Copied ada", m.TakeStatus())
	assert.Equal(t, "", m.TakeStatus())

	m, _ = m.Update(key("Y"))
	assert.Equal(t, `{"name":"ada","id":1,"tags":["a","b"]}`, copied)

	writeClipboard = func(string) error { return errors.New("no display") }
	m, _ = m.Update(key("y"))
	assert.Equal(t, "Copy failed: no display", m.TakeStatus())
}

func TestModel_Filter(t *testing.T) {
	m := newModel(t)

	_, cmd := m.Update(key("f"))
	require.NotNil(t, cmd)
	assert.Equal(t, SetEditorQueryMsg{Query: "SELECT * FROM users WHERE name = 'ada'"}, cmd())

	m, _ = m.Update(key("down"))
	_, cmd = m.Update(key("f"))
	require.NotNil(t, cmd)
	assert.Equal(t, SetEditorQueryMsg{Query: "SELECT * FROM users WHERE name IS NULL"}, cmd())
}

func TestModel_Export(t *testing.T) {
	m := newModel(t)

	_, cmd := m.Update(key("e"))
	require.NotNil(t, cmd)
	msg, ok := cmd().(StatusNotifyMsg)
	require.True(t, ok)
	require.True(t, strings.HasPrefix(msg.Message, "Exported 2 rows to "), msg.Message)

	name := strings.TrimPrefix(msg.Message, "Exported 2 rows to ")
	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "name,id,tags\n"))
}

func TestModel_ErrorView(t *testing.T) {
	m := New("")
	m.SetSize(80, 10)
	m.SetError("SELECT * FORM users", &client.APIError{
		StatusCode: 400,
		Category:   "Query Error",
		Message:    `syntax error at or near "FORM"`,
		Position:   10,
		Detail:     "some detail",
	})

	view := m.View()
	assert.Contains(t, view, `Query Error: syntax error at or near "FORM"`)
	assert.Contains(t, view, "at position 10")
	assert.Contains(t, view, "some detail")
	assert.Contains(t, view, "SELECT * FORM users\n           ^")
}

func TestExtractTableName(t *testing.T) {
	assert.Equal(t, "users", extractTableName("select * from users where id = 1"))
	assert.Equal(t, `"Order"`, extractTableName(`SELECT * FROM "Order";`))
	assert.Equal(t, "", extractTableName("SELECT 1"))
	assert.Equal(t, "", extractTableName("SELECT * FROM (SELECT 1) s"))
}

func TestPositionCaret(t *testing.T) {
	got, ok := positionCaret("SELECT 1\nFROM x", 11)
	require.True(t, ok)
	assert.Equal(t, "FROM x\n   ^", got)

	_, ok = positionCaret("SELECT", 0)
	assert.False(t, ok)
	_, ok = positionCaret("SELECT", 7)
	assert.False(t, ok)
}

func TestFit(t *testing.T) {
	assert.Equal(t, "ab  ", fit("ab", 4))
	assert.Equal(t, "abc…", fit("abcdef", 4))
	assert.Equal(t, "a↵b ", fit("a\nb", 4))
	assert.Equal(t, 3, lipgloss.Width(fit("日本語テキスト", 3)))
}
