package postgres

// SQL queries for PostgreSQL metadata introspection.
const (
	// Tables come back in engine order; callers must not rely on it.
	queryListTables = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1`

	queryGetColumns = `
		SELECT
			column_name,
			data_type,
			is_nullable,
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema = $1
		  AND table_name = $2
		ORDER BY ordinal_position`

	querySchemaColumns = `
		SELECT
			c.table_name,
			c.column_name,
			c.data_type,
			c.is_nullable,
			c.ordinal_position
		FROM information_schema.columns c
		JOIN information_schema.tables t
			ON t.table_schema = c.table_schema
			AND t.table_name = c.table_name
		WHERE c.table_schema = $1
		ORDER BY c.table_name, c.ordinal_position`

	setLocalStatementTimeout = `SET LOCAL statement_timeout = %d`
)
