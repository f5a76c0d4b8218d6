package tui

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joacominatel/sqlgate/internal/app"
	"github.com/joacominatel/sqlgate/internal/client"
	"github.com/joacominatel/sqlgate/internal/config"
	"github.com/joacominatel/sqlgate/internal/database"
	"github.com/joacominatel/sqlgate/internal/database/databasetest"
	"github.com/joacominatel/sqlgate/internal/logging"
	"github.com/joacominatel/sqlgate/internal/server"
	"github.com/joacominatel/sqlgate/internal/tui/statusbar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startGateway(t *testing.T, drv *databasetest.Driver) string {
	t.Helper()
	svc := app.NewService(drv, app.Options{})
	ts := httptest.NewServer(server.New(svc, logging.Discard(), config.Server{}).Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func connected(t *testing.T, url string, opts Options) Model {
	t.Helper()
	m := NewModel(&config.Config{}, opts)
	msg := connectCmd(url)()
	next, cmd := m.Update(msg)
	require.NotNil(t, cmd)
	m = next.(Model)
	require.Equal(t, ModeMain, m.mode, "%v", m.err)
	return m
}

func TestNewModel_InitialMode(t *testing.T) {
	cfg := &config.Config{}
	assert.Equal(t, ModeConnect, NewModel(cfg, Options{}).mode)

	cfg.Console.Gateways = []config.Gateway{{Name: "a", URL: "http://a"}, {Name: "b", URL: "http://b"}}
	cfg.Console.Preferences.DefaultGateway = "b"
	m := NewModel(cfg, Options{})
	assert.Equal(t, ModeSelectGateway, m.mode)
	assert.Equal(t, 1, m.gwCursor)

	assert.Equal(t, ModeConnect, NewModel(cfg, Options{URL: "http://a"}).mode)
}

func TestConnect_Unreachable(t *testing.T) {
	m := NewModel(&config.Config{}, Options{})

	next, _ := m.Update(connectCmd("http://127.0.0.1:1")())
	m = next.(Model)
	assert.Equal(t, ModeConnect, m.mode)
	require.Error(t, m.err)
	assert.Contains(t, m.err.Error(), "gateway not reachable")

	next, _ = m.Update(connectCmd("not a url")())
	assert.Error(t, next.(Model).err)
}

func TestConnect_SavesGateway(t *testing.T) {
	url := startGateway(t, &databasetest.Driver{})
	path := filepath.Join(t.TempDir(), "config.yaml")

	m := connected(t, url, Options{ConfigPath: path})
	require.Len(t, m.cfg.Console.Gateways, 1)
	assert.Equal(t, url, m.cfg.Console.Gateways[0].URL)

	msg := saveConfigCmd(path, *m.cfg)()
	require.NoError(t, msg.(gatewaySavedMsg).err)

	t.Setenv("HOME", t.TempDir())
	loaded, err := config.Load(config.LoadOptions{ConfigFile: path, EnvFile: filepath.Join(t.TempDir(), ".env")})
	require.NoError(t, err)
	require.Len(t, loaded.Console.Gateways, 1)
	assert.Equal(t, url, loaded.Console.Gateways[0].URL)

	assert.False(t, m.rememberGateway(url))
}

func TestMetadataAndQuery(t *testing.T) {
	drv := &databasetest.Driver{
		Tables:  []string{"users"},
		Columns: map[string][]database.Column{"users": {{Name: "id", DataType: "integer"}}},
		ExecFunc: func(context.Context, string, database.ExecOptions) (*database.QueryResult, error) {
			return &database.QueryResult{
				Rows:     []map[string]any{{"id": int32(1)}},
				Fields:   []database.Field{{Name: "id", DataTypeID: 23}},
				RowCount: 1,
			}, nil
		},
	}
	m := connected(t, startGateway(t, drv), Options{ConfigPath: filepath.Join(t.TempDir(), "c.yaml")})

	next, _ := m.Update(loadMetadataCmd(m.client)())
	m = next.(Model)
	assert.Equal(t, []string{"users"}, m.explorer.TableNames())

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	m = next.(Model)
	require.NotNil(t, cmd)

	next, cmd = m.Update(cmd())
	m = next.(Model)
	assert.Equal(t, "SELECT * FROM users LIMIT 100", m.editor.Value())
	require.NotNil(t, cmd)

	next, _ = m.Update(cmd())
	m = next.(Model)
	require.NotNil(t, m.results.Table())
	assert.Equal(t, []string{"id"}, m.results.Table().Columns)
	assert.Equal(t, "Query executed successfully. Returned 1 rows.", m.statusbar.Message())
}

func TestQueryRejected(t *testing.T) {
	m := connected(t, startGateway(t, &databasetest.Driver{}), Options{ConfigPath: filepath.Join(t.TempDir(), "c.yaml")})

	next, _ := m.Update(executeQueryCmd(m.client, "DROP TABLE users")())
	m = next.(Model)
	assert.Nil(t, m.results.Table())
	assert.Equal(t, "Rejected by gateway", m.statusbar.Message())
	assert.Contains(t, m.results.View(), "Only SELECT queries are allowed")
}

func TestQueryFailureMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "forbidden", err: &client.APIError{StatusCode: 403, Category: "Forbidden"}, want: "Rejected by gateway"},
		{name: "query error", err: &client.APIError{StatusCode: 400, Category: "Query Error"}, want: "Query Error"},
		{name: "transport", err: errors.New("connection refused"), want: "Query failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, queryFailureMessage(tt.err))
		})
	}
}

func TestHealthProbe(t *testing.T) {
	drv := &databasetest.Driver{}
	c, err := client.New(startGateway(t, drv))
	require.NoError(t, err)

	assert.Equal(t, healthMsg{health: statusbar.HealthUp}, checkHealthCmd(c)())

	drv.PingFunc = func(context.Context) error { return errors.New("db down") }
	msg := checkHealthCmd(c)().(healthMsg)
	assert.Equal(t, statusbar.HealthDegraded, msg.health)
	assert.Contains(t, msg.detail, "db down")

	down, err := client.New("http://127.0.0.1:1")
	require.NoError(t, err)
	assert.Equal(t, statusbar.HealthDown, checkHealthCmd(down)().(healthMsg).health)
}

func TestPaneCycling(t *testing.T) {
	m := connected(t, startGateway(t, &databasetest.Driver{}), Options{ConfigPath: filepath.Join(t.TempDir(), "c.yaml")})
	assert.Equal(t, PaneExplorer, m.activePane)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(Model)
	assert.Equal(t, PaneEditor, m.activePane)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(Model)
	assert.Equal(t, PaneResults, m.activePane)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, PaneEditor, next.(Model).activePane)
}
