// Package databasetest provides an in-memory database.Driver for tests.
package databasetest

import (
	"context"
	"sync"

	"github.com/joacominatel/sqlgate/internal/database"
)

// Driver is a scriptable database.Driver. Unset hooks fall back to the
// Tables/Columns fixtures or to zero results.
type Driver struct {
	mu sync.Mutex

	Name    string
	Tables  []string
	Columns map[string][]database.Column

	ConnectFunc func(ctx context.Context, dsn string, opts database.PoolOptions) error
	PingFunc    func(ctx context.Context) error
	TablesFunc  func(ctx context.Context, schema string) ([]string, error)
	ColumnsFunc func(ctx context.Context, schema, table string) ([]database.Column, error)
	SchemaFunc  func(ctx context.Context, schema string) (map[string][]database.Column, error)
	ExecFunc    func(ctx context.Context, query string, opts database.ExecOptions) (*database.QueryResult, error)

	// Queries records every query passed to ExecuteQuery.
	Queries []string
	// ColumnCalls counts GetColumns calls.
	ColumnCalls int
	Closed      bool
}

var _ database.Driver = (*Driver)(nil)

// Connect implements database.Driver.
func (d *Driver) Connect(ctx context.Context, dsn string, opts database.PoolOptions) error {
	if d.ConnectFunc != nil {
		return d.ConnectFunc(ctx, dsn, opts)
	}
	return nil
}

// Close implements database.Driver.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed = true
	return nil
}

// Ping implements database.Driver.
func (d *Driver) Ping(ctx context.Context) error {
	if d.PingFunc != nil {
		return d.PingFunc(ctx)
	}
	return nil
}

// ListTables implements database.Driver.
func (d *Driver) ListTables(ctx context.Context, schema string) ([]string, error) {
	if d.TablesFunc != nil {
		return d.TablesFunc(ctx, schema)
	}
	return append([]string{}, d.Tables...), nil
}

// GetColumns implements database.Driver.
func (d *Driver) GetColumns(ctx context.Context, schema, table string) ([]database.Column, error) {
	d.mu.Lock()
	d.ColumnCalls++
	d.mu.Unlock()

	if d.ColumnsFunc != nil {
		return d.ColumnsFunc(ctx, schema, table)
	}
	return d.Columns[table], nil
}

// GetSchemaColumns implements database.Driver.
func (d *Driver) GetSchemaColumns(ctx context.Context, schema string) (map[string][]database.Column, error) {
	if d.SchemaFunc != nil {
		return d.SchemaFunc(ctx, schema)
	}
	out := make(map[string][]database.Column, len(d.Columns))
	for k, v := range d.Columns {
		out[k] = v
	}
	return out, nil
}

// ExecuteQuery implements database.Driver.
func (d *Driver) ExecuteQuery(ctx context.Context, query string, opts database.ExecOptions) (*database.QueryResult, error) {
	d.mu.Lock()
	d.Queries = append(d.Queries, query)
	d.mu.Unlock()

	if d.ExecFunc != nil {
		return d.ExecFunc(ctx, query, opts)
	}
	return &database.QueryResult{Rows: []map[string]any{}, Fields: []database.Field{}}, nil
}

// DatabaseName implements database.Driver.
func (d *Driver) DatabaseName() string {
	return d.Name
}
