package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joacominatel/sqlgate/internal/database"
)

const rollbackTimeout = 5 * time.Second

// Driver implements the database.Driver interface for PostgreSQL.
type Driver struct {
	pool   *pgxpool.Pool
	dbName string
}

// New creates a new PostgreSQL driver.
func New() *Driver {
	return &Driver{}
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Connect builds a connection pool for PostgreSQL. Connections are opened on
// demand and MinConns are filled in the background, so an unreachable server
// is reported by Ping and queries rather than here.
func (d *Driver) Connect(ctx context.Context, dsn string, opts database.PoolOptions) error {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("parse dsn: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MinConns = 1
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 && opts.MinConns <= cfg.MaxConns {
		cfg.MinConns = opts.MinConns
	}

	// The pool keeps using ctx to fill MinConns after Connect returns.
	pool, err := pgxpool.NewWithConfig(context.WithoutCancel(ctx), cfg)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	d.pool = pool
	d.dbName = cfg.ConnConfig.Database
	return nil
}

// Close closes the connection pool.
func (d *Driver) Close() error {
	if d.pool != nil {
		d.pool.Close()
		d.pool = nil
	}
	return nil
}

// Ping checks if the connection is alive.
func (d *Driver) Ping(ctx context.Context) error {
	if d.pool == nil {
		return database.ErrNotConnected
	}
	return d.pool.Ping(ctx)
}

// ListTables returns all table names in a schema.
func (d *Driver) ListTables(ctx context.Context, schema string) ([]string, error) {
	if d.pool == nil {
		return nil, database.ErrNotConnected
	}

	rows, err := d.pool.Query(ctx, queryListTables, schema)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

// GetColumns returns column metadata for a table.
func (d *Driver) GetColumns(ctx context.Context, schema, table string) ([]database.Column, error) {
	if d.pool == nil {
		return nil, database.ErrNotConnected
	}

	rows, err := d.pool.Query(ctx, queryGetColumns, schema, table)
	if err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}
	defer rows.Close()

	columns := []database.Column{}
	for rows.Next() {
		var col database.Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.DataType, &nullable, &col.OrdinalPos); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		col.IsNullable = nullable == "YES"
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}
	return columns, nil
}

// GetSchemaColumns returns the columns of every table in a schema with a
// single catalog query.
func (d *Driver) GetSchemaColumns(ctx context.Context, schema string) (map[string][]database.Column, error) {
	if d.pool == nil {
		return nil, database.ErrNotConnected
	}

	rows, err := d.pool.Query(ctx, querySchemaColumns, schema)
	if err != nil {
		return nil, fmt.Errorf("schema columns: %w", err)
	}
	defer rows.Close()

	columns := make(map[string][]database.Column)
	for rows.Next() {
		var table, nullable string
		var col database.Column
		if err := rows.Scan(&table, &col.Name, &col.DataType, &nullable, &col.OrdinalPos); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		col.IsNullable = nullable == "YES"
		columns[table] = append(columns[table], col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schema columns: %w", err)
	}
	return columns, nil
}

// ExecuteQuery runs a SQL query and returns the results.
func (d *Driver) ExecuteQuery(ctx context.Context, query string, opts database.ExecOptions) (*database.QueryResult, error) {
	if d.pool == nil {
		return nil, database.ErrNotConnected
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()

	var (
		result *database.QueryResult
		err    error
	)
	if opts.ReadOnly {
		result, err = d.executeReadOnly(ctx, query, opts)
	} else {
		result, err = collect(ctx, d.pool, query, opts.MaxRows)
	}
	if err != nil {
		if opts.Timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, database.TimeoutError(opts.Timeout.Milliseconds(), err)
		}
		return nil, fmt.Errorf("execute: %w", err)
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (d *Driver) executeReadOnly(ctx context.Context, query string, opts database.ExecOptions) (*database.QueryResult, error) {
	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer rollback(tx)

	if opts.Timeout > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf(setLocalStatementTimeout, opts.Timeout.Milliseconds())); err != nil {
			return nil, fmt.Errorf("set statement timeout: %w", err)
		}
	}

	return collect(ctx, tx, query, opts.MaxRows)
}

// rollback uses its own context so an expired request deadline does not
// leave the connection inside a transaction.
func rollback(tx pgx.Tx) {
	ctx, cancel := context.WithTimeout(context.Background(), rollbackTimeout)
	defer cancel()
	_ = tx.Rollback(ctx)
}

func collect(ctx context.Context, q querier, query string, maxRows int64) (*database.QueryResult, error) {
	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	descs := rows.FieldDescriptions()
	fields := make([]database.Field, len(descs))
	for i, f := range descs {
		fields[i] = database.Field{Name: f.Name, DataTypeID: f.DataTypeOID}
	}

	resultRows := []map[string]any{}
	for rows.Next() {
		if maxRows > 0 && int64(len(resultRows)) >= maxRows {
			return nil, fmt.Errorf("%w: more than %d rows", database.ErrRowLimit, maxRows)
		}
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		row := make(map[string]any, len(values))
		for i, v := range values {
			row[fields[i].Name] = normalizeValue(v)
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rowCount := rows.CommandTag().RowsAffected()
	if rowCount < int64(len(resultRows)) {
		rowCount = int64(len(resultRows))
	}

	return &database.QueryResult{
		Rows:     resultRows,
		Fields:   fields,
		RowCount: rowCount,
	}, nil
}

// DatabaseName returns the name of the connected database.
func (d *Driver) DatabaseName() string {
	return d.dbName
}
