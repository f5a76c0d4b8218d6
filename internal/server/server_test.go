package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/joacominatel/sqlgate/internal/app"
	"github.com/joacominatel/sqlgate/internal/config"
	"github.com/joacominatel/sqlgate/internal/database"
	"github.com/joacominatel/sqlgate/internal/database/databasetest"
	"github.com/joacominatel/sqlgate/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandler(drv *databasetest.Driver, cfg config.Server) http.Handler {
	svc := app.NewService(drv, app.Options{})
	return New(svc, logging.Discard(), cfg).Handler()
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	h := newHandler(&databasetest.Driver{
		PingFunc: func(context.Context) error { return errors.New("unused") },
	}, config.Server{})

	w := do(h, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`, body["timestamp"])
}

func TestReady(t *testing.T) {
	drv := &databasetest.Driver{}
	h := newHandler(drv, config.Server{})

	w := do(h, http.MethodGet, "/api/ready", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", decode(t, w)["status"])

	drv.PingFunc = func(context.Context) error { return database.ErrNotConnected }
	w = do(h, http.MethodGet, "/api/ready", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Service Unavailable", body["error"])
	assert.Contains(t, body["message"], "not connected")
}

func TestMetadata(t *testing.T) {
	h := newHandler(&databasetest.Driver{
		Tables: []string{"users", "empty"},
		Columns: map[string][]database.Column{
			"users": {
				{Name: "id", DataType: "integer", IsNullable: false, OrdinalPos: 1},
				{Name: "email", DataType: "text", IsNullable: true, OrdinalPos: 2},
			},
		},
	}, config.Server{})

	w := do(h, http.MethodGet, "/api/sql-metadata", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"tables": ["users", "empty"],
		"columns": {
			"users": [
				{"name": "id", "type": "integer", "nullable": false},
				{"name": "email", "type": "text", "nullable": true}
			],
			"empty": []
		}
	}`, w.Body.String())
}

func TestMetadata_Failure(t *testing.T) {
	h := newHandler(&databasetest.Driver{
		TablesFunc: func(context.Context, string) ([]string, error) {
			return nil, errors.New("connection refused")
		},
	}, config.Server{})

	w := do(h, http.MethodGet, "/api/sql-metadata", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Internal server error", body["error"])
	assert.Equal(t, "connection refused", body["message"])
}

func TestExecute_BadRequests(t *testing.T) {
	drv := &databasetest.Driver{}
	h := newHandler(drv, config.Server{})

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"missing query", `{}`, app.MsgQueryRequired},
		{"empty query", `{"query": ""}`, app.MsgQueryRequired},
		{"blank query", `{"query": "  \n "}`, app.MsgQueryRequired},
		{"number query", `{"query": 42}`, app.MsgQueryRequired},
		{"null query", `{"query": null}`, app.MsgQueryRequired},
		{"no body", ``, app.MsgQueryRequired},
		{"array body", `[]`, app.MsgQueryRequired},
		{"malformed", `{"query": `, app.MsgInvalidJSON},
		{"not json", `SELECT 1`, app.MsgInvalidJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, http.MethodPost, "/api/execute-query", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"error": "Bad Request", "message": "`+tt.message+`"}`, w.Body.String())
		})
	}
	assert.Empty(t, drv.Queries)
}

func TestExecute_BodyTooLarge(t *testing.T) {
	drv := &databasetest.Driver{}
	h := newHandler(drv, config.Server{MaxBodyBytes: 32})

	w := do(h, http.MethodPost, "/api/execute-query", `{"query": "SELECT '`+strings.Repeat("x", 64)+`'"}`)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Bad Request", body["error"])
	assert.Equal(t, "Request body exceeds 32 bytes", body["message"])
	assert.Empty(t, drv.Queries)
}

func TestExecute_Forbidden(t *testing.T) {
	drv := &databasetest.Driver{}
	h := newHandler(drv, config.Server{})

	for _, q := range []string{"DROP TABLE users", "select * from t; delete from t", "SELECT created_at FROM t"} {
		w := do(h, http.MethodPost, "/api/execute-query", `{"query": "`+q+`"}`)
		require.Equal(t, http.StatusForbidden, w.Code, q)
		assert.JSONEq(t, `{"error": "Forbidden", "message": "Only SELECT queries are allowed"}`, w.Body.String())
	}
	assert.Empty(t, drv.Queries)
}

func TestExecute_Success(t *testing.T) {
	drv := &databasetest.Driver{
		ExecFunc: func(_ context.Context, _ string, _ database.ExecOptions) (*database.QueryResult, error) {
			return &database.QueryResult{
				Rows: []map[string]any{
					{"id": int32(1), "name": "ada"},
					{"id": int32(2), "name": nil},
				},
				Fields: []database.Field{
					{Name: "name", DataTypeID: 25},
					{Name: "id", DataTypeID: 23},
				},
				RowCount: 2,
				Duration: 12 * time.Millisecond,
			}, nil
		},
	}
	h := newHandler(drv, config.Server{})

	w := do(h, http.MethodPost, "/api/execute-query", `{"query": "SELECT name, id FROM users"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"success": true,
		"rows": [{"name": "ada", "id": 1}, {"name": null, "id": 2}],
		"rowCount": 2,
		"fields": [{"name": "name", "dataType": 25}, {"name": "id", "dataType": 23}],
		"executionTime": 12,
		"message": "Query executed successfully. Returned 2 rows."
	}`, w.Body.String())

	// Row keys follow the field order.
	assert.Contains(t, w.Body.String(), `{"name":"ada","id":1}`)
	assert.Equal(t, []string{"SELECT name, id FROM users"}, drv.Queries)
}

func TestExecute_EmptyResult(t *testing.T) {
	h := newHandler(&databasetest.Driver{}, config.Server{})

	w := do(h, http.MethodPost, "/api/execute-query", `{"query": "SELECT 1 WHERE false"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, []any{}, body["rows"])
	assert.Equal(t, []any{}, body["fields"])
	assert.Equal(t, "Query executed successfully. Returned 0 rows.", body["message"])
}

func TestExecute_QueryError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "syntax error with position",
			err:  &pgconn.PgError{Code: "42601", Message: `syntax error at or near "SELEC"`, Position: 1},
			want: `{"error": "Query Error", "message": "syntax error at or near \"SELEC\"", "position": 1}`,
		},
		{
			name: "error with detail",
			err: &pgconn.PgError{
				Code:    "22P02",
				Message: "invalid input syntax for type integer",
				Detail:  "value was abc",
			},
			want: `{"error": "Query Error", "message": "invalid input syntax for type integer", "detail": "value was abc"}`,
		},
		{
			name: "timeout",
			err:  database.TimeoutError(10000, context.DeadlineExceeded),
			want: `{"error": "Query Error", "message": "Query read timeout after 10000ms"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(&databasetest.Driver{
				ExecFunc: func(context.Context, string, database.ExecOptions) (*database.QueryResult, error) {
					return nil, tt.err
				},
			}, config.Server{})

			w := do(h, http.MethodPost, "/api/execute-query", `{"query": "SELECT 1"}`)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())
		})
	}
}

func TestPanicRecovery(t *testing.T) {
	h := newHandler(&databasetest.Driver{
		ExecFunc: func(context.Context, string, database.ExecOptions) (*database.QueryResult, error) {
			panic("boom")
		},
	}, config.Server{})

	w := do(h, http.MethodPost, "/api/execute-query", `{"query": "SELECT 1"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error": "Internal server error", "message": "boom"}`, w.Body.String())
}

func TestNotFound(t *testing.T) {
	h := newHandler(&databasetest.Driver{}, config.Server{})

	w := do(h, http.MethodGet, "/api/nope", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error": "Not Found", "message": "Cannot GET /api/nope"}`, w.Body.String())

	w = do(h, http.MethodGet, "/api/execute-query", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORS(t *testing.T) {
	h := newHandler(&databasetest.Driver{}, config.Server{})

	r := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	r.Header.Set("Origin", "https://example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	r = httptest.NewRequest(http.MethodOptions, "/api/execute-query", nil)
	r.Header.Set("Origin", "https://example.com")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	r.Header.Set("Access-Control-Request-Headers", "content-type")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	h := newHandler(&databasetest.Driver{}, config.Server{})

	w := do(h, http.MethodGet, "/api/health", "")
	assert.Regexp(t, `^[0-9a-f-]{36}$`, w.Header().Get(RequestIDHeader))

	r := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	r.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestServe_GracefulShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	svc := app.NewService(&databasetest.Driver{}, app.Options{})
	srv := New(svc, logging.Discard(), config.Server{ShutdownTimeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/api/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
