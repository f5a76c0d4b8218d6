package explorer

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/sqlgate/internal/client"
	"github.com/joacominatel/sqlgate/internal/tui/theme"
)

// NodeKind identifies the type of a tree node.
type NodeKind int

const (
	NodeRoot NodeKind = iota
	NodeTable
	NodeColumn
)

// TreeNode represents a single node in the table tree.
type TreeNode struct {
	Kind     NodeKind
	Name     string
	Children []*TreeNode
	Expanded bool

	Table    string // parent table name (for columns)
	DataType string
	Nullable bool
}

// flatItem is a visible item in the flattened tree view.
type flatItem struct {
	node  *TreeNode
	depth int
}

// QuickQueryMsg asks the app to run a generated query.
type QuickQueryMsg struct {
	Query string
}

// RefreshMsg asks the app to reload metadata.
type RefreshMsg struct{}

// Model is the explorer (tables and columns) component.
type Model struct {
	tree    *TreeNode
	items   []flatItem
	cursor  int
	width   int
	height  int
	focused bool
	loading bool
	err     error
}

// New creates a new explorer model.
func New() Model {
	return Model{}
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

// SetError shows a metadata failure in place of the tree.
func (m *Model) SetError(err error) {
	m.err = err
	m.loading = false
}

// SetMetadata rebuilds the tree from a metadata snapshot, keeping the
// expansion state of tables that still exist.
func (m *Model) SetMetadata(label string, md *client.Metadata) {
	expanded := map[string]bool{}
	if m.tree != nil {
		for _, t := range m.tree.Children {
			if t.Expanded {
				expanded[t.Name] = true
			}
		}
	}

	root := &TreeNode{Kind: NodeRoot, Name: label, Expanded: true}
	for _, table := range md.Tables {
		node := &TreeNode{Kind: NodeTable, Name: table, Expanded: expanded[table]}
		for _, col := range md.Columns[table] {
			node.Children = append(node.Children, &TreeNode{
				Kind:     NodeColumn,
				Name:     col.Name,
				Table:    table,
				DataType: col.DataType,
				Nullable: col.IsNullable,
			})
		}
		root.Children = append(root.Children, node)
	}

	m.tree = root
	m.err = nil
	m.loading = false
	m.flatten()
}

// TableNames returns every table in the tree.
func (m Model) TableNames() []string {
	if m.tree == nil {
		return nil
	}
	names := make([]string, 0, len(m.tree.Children))
	for _, t := range m.tree.Children {
		names = append(names, t.Name)
	}
	return names
}

// ColumnNames returns the distinct column names across all tables, sorted.
func (m Model) ColumnNames() []string {
	if m.tree == nil {
		return nil
	}
	seen := map[string]bool{}
	var names []string
	for _, t := range m.tree.Children {
		for _, c := range t.Children {
			if !seen[c.Name] {
				seen[c.Name] = true
				names = append(names, c.Name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// SelectedTable returns the table under the cursor, or the parent table of
// the column under the cursor.
func (m Model) SelectedTable() (string, bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return "", false
	}
	node := m.items[m.cursor].node
	switch node.Kind {
	case NodeTable:
		return node.Name, true
	case NodeColumn:
		return node.Table, true
	}
	return "", false
}

func (m *Model) flatten() {
	m.items = nil
	if m.tree != nil {
		m.flattenNode(m.tree, 0)
	}
	if m.cursor >= len(m.items) {
		m.cursor = max(0, len(m.items)-1)
	}
}

func (m *Model) flattenNode(node *TreeNode, depth int) {
	m.items = append(m.items, flatItem{node: node, depth: depth})
	if node.Expanded {
		for _, child := range node.Children {
			m.flattenNode(child, depth+1)
		}
	}
}

// Update handles messages for the explorer.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case "g", "home":
		m.cursor = 0
	case "G", "end":
		m.cursor = max(0, len(m.items)-1)
	case "enter", "right", "l":
		m.toggleExpand()
	case "left", "h":
		m.collapse()
	case "s":
		if table, ok := m.SelectedTable(); ok {
			return m, quickQuery(fmt.Sprintf("SELECT * FROM %s LIMIT 100", QuoteIdent(table)))
		}
	case "c":
		if table, ok := m.SelectedTable(); ok {
			return m, quickQuery(fmt.Sprintf("SELECT COUNT(*) FROM %s", QuoteIdent(table)))
		}
	case "r":
		return m, func() tea.Msg { return RefreshMsg{} }
	}

	return m, nil
}

func quickQuery(q string) tea.Cmd {
	return func() tea.Msg { return QuickQueryMsg{Query: q} }
}

func (m *Model) toggleExpand() {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return
	}
	node := m.items[m.cursor].node
	if node.Kind == NodeColumn {
		return
	}
	node.Expanded = !node.Expanded
	m.flatten()
}

func (m *Model) collapse() {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return
	}
	item := m.items[m.cursor]
	if item.node.Expanded {
		item.node.Expanded = false
		m.flatten()
		return
	}
	// On a column, jump back to its table.
	if item.node.Kind == NodeColumn {
		for i := m.cursor - 1; i >= 0; i-- {
			if m.items[i].node.Kind == NodeTable {
				m.cursor = i
				return
			}
		}
	}
}

// QuoteIdent returns name as a SQL identifier, quoting it unless it is a
// plain lowercase identifier.
func QuoteIdent(name string) string {
	plain := name != ""
	for i, r := range name {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z'):
		case i > 0 && r >= '0' && r <= '9':
		default:
			plain = false
		}
	}
	if plain {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// View renders the explorer.
func (m Model) View() string {
	title := theme.StyleTitle.Padding(0, 1).Render("Tables")

	switch {
	case m.loading:
		return title + "\n" + theme.StyleMuted.Render("  Loading...")
	case m.err != nil:
		return title + "\n" + theme.StyleError.Render("  "+m.err.Error())
	case m.tree == nil:
		return title + "\n" + theme.StyleMuted.Render("  No gateway")
	case len(m.tree.Children) == 0:
		return title + "\n" + theme.StyleMuted.Render("  No tables")
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")

	visibleHeight := max(1, m.height-2)
	scrollOffset := 0
	if m.cursor >= visibleHeight {
		scrollOffset = m.cursor - visibleHeight + 1
	}

	for i := scrollOffset; i < len(m.items) && i < scrollOffset+visibleHeight; i++ {
		b.WriteString(m.renderNode(m.items[i], i == m.cursor))
		if i < scrollOffset+visibleHeight-1 {
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (m Model) renderNode(item flatItem, selected bool) string {
	node := item.node
	indent := strings.Repeat("  ", item.depth)

	icon := "  "
	if node.Kind != NodeColumn {
		icon = "▶ "
		if node.Expanded {
			icon = "▼ "
		}
	}

	name := node.Name
	if node.Kind == NodeRoot {
		name = fmt.Sprintf("%s (%d)", node.Name, len(node.Children))
	}
	if node.Kind == NodeColumn && node.DataType != "" {
		typ := node.DataType
		if node.Nullable {
			typ += "?"
		}
		name = node.Name + " " + theme.StyleMuted.Render(typ)
	}

	line := indent + icon + name
	if m.width > 4 && lipgloss.Width(line) > m.width-2 {
		runes := []rune(indent + icon + node.Name)
		if len(runes) > m.width-4 {
			runes = runes[:m.width-4]
		}
		line = string(runes) + ".."
	}

	if selected {
		return theme.StyleSelected.Render(line)
	}
	return line
}
