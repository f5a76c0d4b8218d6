package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/joacominatel/sqlgate/internal/app"
	"github.com/joacominatel/sqlgate/internal/config"
	"github.com/joacominatel/sqlgate/internal/database"
	"github.com/joacominatel/sqlgate/internal/database/databasetest"
	"github.com/joacominatel/sqlgate/internal/logging"
	"github.com/joacominatel/sqlgate/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGateway(t *testing.T, drv *databasetest.Driver) *Client {
	t.Helper()
	svc := app.NewService(drv, app.Options{})
	ts := httptest.NewServer(server.New(svc, logging.Discard(), config.Server{}).Handler())
	t.Cleanup(ts.Close)

	c, err := New(ts.URL + "/")
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"http://localhost:3000", false},
		{"https://gw.example.com/base/", false},
		{"localhost:3000", true},
		{"ftp://host", true},
		{"http://", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			_, err := New(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClient_HealthAndReady(t *testing.T) {
	drv := &databasetest.Driver{}
	c := newGateway(t, drv)
	ctx := context.Background()

	st, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", st.Status)
	assert.WithinDuration(t, time.Now(), st.Timestamp, time.Minute)

	st, err = c.Ready(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ready", st.Status)

	drv.PingFunc = func(context.Context) error { return errors.New("db down") }
	_, err = c.Ready(ctx)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "Service Unavailable", apiErr.Category)
}

func TestClient_Metadata(t *testing.T) {
	c := newGateway(t, &databasetest.Driver{
		Tables: []string{"users"},
		Columns: map[string][]database.Column{
			"users": {{Name: "id", DataType: "integer"}},
		},
	})

	md, err := c.Metadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, md.Tables)
	assert.Equal(t, []database.Column{{Name: "id", DataType: "integer"}}, md.Columns["users"])
}

func TestClient_Execute(t *testing.T) {
	c := newGateway(t, &databasetest.Driver{
		ExecFunc: func(context.Context, string, database.ExecOptions) (*database.QueryResult, error) {
			return &database.QueryResult{
				Rows:     []map[string]any{{"n": int64(9007199254740993)}},
				Fields:   []database.Field{{Name: "n", DataTypeID: 20}},
				RowCount: 1,
			}, nil
		},
	})

	res, err := c.Execute(context.Background(), "SELECT 9007199254740993 AS n")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int64(1), res.RowCount)
	assert.Equal(t, []database.Field{{Name: "n", DataTypeID: 20}}, res.Fields)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "9007199254740993", res.Rows[0]["n"].(interface{ String() string }).String())
}

func TestClient_ExecuteErrors(t *testing.T) {
	c := newGateway(t, &databasetest.Driver{
		ExecFunc: func(context.Context, string, database.ExecOptions) (*database.QueryResult, error) {
			return nil, &pgconn.PgError{Code: "42P01", Message: `relation "nope" does not exist`, Position: 15}
		},
	})
	ctx := context.Background()

	_, err := c.Execute(ctx, "DROP TABLE users")
	assert.True(t, IsForbidden(err))
	assert.EqualError(t, err, "Forbidden: Only SELECT queries are allowed")

	_, err = c.Execute(ctx, "SELECT * FROM nope")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.False(t, IsForbidden(err))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Query Error", apiErr.Category)
	assert.Equal(t, int32(15), apiErr.Position)
	assert.Equal(t, `relation "nope" does not exist`, apiErr.Message)
}

func TestClient_NonJSONError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer ts.Close()

	c, err := New(ts.URL)
	require.NoError(t, err)

	_, err = c.Health(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "gateway returned 502: bad gateway", apiErr.Error())
}
