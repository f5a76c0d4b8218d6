package database

import "context"

// Driver defines the interface for database operations.
// All implementations must be safe for concurrent use.
type Driver interface {
	// Connect establishes a connection pool to the database.
	Connect(ctx context.Context, dsn string, opts PoolOptions) error

	// Close releases the connection pool.
	Close() error

	// Ping checks if the database is reachable.
	Ping(ctx context.Context) error

	// ListTables returns the table names of a schema in engine order.
	ListTables(ctx context.Context, schema string) ([]string, error)

	// GetColumns returns all columns for a table.
	GetColumns(ctx context.Context, schema, table string) ([]Column, error)

	// GetSchemaColumns returns the columns of every table in a schema in one
	// round trip, keyed by table name.
	GetSchemaColumns(ctx context.Context, schema string) (map[string][]Column, error)

	// ExecuteQuery runs a SQL query and returns results.
	ExecuteQuery(ctx context.Context, query string, opts ExecOptions) (*QueryResult, error)

	// DatabaseName returns the name of the connected database.
	DatabaseName() string
}

// PoolOptions sizes the connection pool.
type PoolOptions struct {
	MaxConns int32
	MinConns int32
}
