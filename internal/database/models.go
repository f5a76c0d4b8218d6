package database

import "time"

// Column represents a table column with its metadata.
type Column struct {
	Name       string `json:"name"`
	DataType   string `json:"type"`
	IsNullable bool   `json:"nullable"`
	OrdinalPos int    `json:"-"`
}

// Field describes one column of a query result as reported by the engine.
type Field struct {
	Name       string `json:"name"`
	DataTypeID uint32 `json:"dataType"`
}

// QueryResult holds the result of a SQL query execution.
// Rows are keyed by column name; a later duplicate column name overwrites an
// earlier one.
type QueryResult struct {
	Rows     []map[string]any
	Fields   []Field
	RowCount int64
	Duration time.Duration
}

// ExecOptions controls how a query is submitted to the engine.
type ExecOptions struct {
	// Timeout bounds the query. Zero means no timeout.
	Timeout time.Duration
	// ReadOnly runs the query inside a READ ONLY transaction that is always
	// rolled back.
	ReadOnly bool
	// MaxRows aborts collection once more rows than this arrive. Zero means
	// unlimited.
	MaxRows int64
}
