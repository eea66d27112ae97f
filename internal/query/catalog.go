package query

import (
	"context"
	"fmt"
)

// Column is one parsed entry of a table's column metadata.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// listTablesQuery enumerates the tables of one database together with their
// columns, gathered into an array of (name, type) tuples so a single round
// trip covers both levels of the catalog.
const listTablesQuery = `
SELECT
    t.database AS database,
    t.name AS name,
    t.engine AS engine,
    t.create_table_query AS create_table_query,
    t.total_rows AS total_rows,
    t.total_bytes AS total_bytes,
    groupArray((c.name, c.type)) AS columns
FROM system.tables AS t
LEFT JOIN system.columns AS c
    ON c.database = t.database AND c.table = t.name
WHERE t.database = ?
GROUP BY
    t.database, t.name, t.engine, t.create_table_query, t.total_rows, t.total_bytes
ORDER BY t.name`

// ListDatabases enumerates the databases visible to the configured user.
// Rows are returned as the engine produced them.
func (e *Executor) ListDatabases(ctx context.Context) (*Result, error) {
	e.log.Debug("query: listing databases")
	return e.runQuery(ctx, "SHOW DATABASES")
}

// ListTables enumerates the tables of one database. The embedded columns
// value of each row is replaced with its parsed []Column form; everything
// else passes through unchanged.
func (e *Executor) ListTables(ctx context.Context, database string) (*Result, error) {
	if database == "" {
		return nil, &ValidationError{Reason: "database name must not be empty"}
	}
	e.log.Debug("query: listing tables", "database", database)

	res, err := e.runQuery(ctx, listTablesQuery, database)
	if err != nil {
		return nil, err
	}
	for _, row := range res.Rows {
		if raw, ok := row["columns"]; ok {
			if cols, ok := parseColumns(raw); ok {
				row["columns"] = cols
			}
		}
	}
	return res, nil
}

// parseColumns converts the normalized groupArray((name, type)) value into
// ordered column metadata. Unnamed tuples arrive as []any pairs, named
// tuples as maps; anything else is left to the caller untouched.
func parseColumns(v any) ([]Column, bool) {
	entries, ok := v.([]any)
	if !ok {
		return nil, false
	}
	cols := make([]Column, 0, len(entries))
	for _, entry := range entries {
		switch t := entry.(type) {
		case []any:
			if len(t) < 2 {
				return nil, false
			}
			cols = append(cols, Column{Name: fmt.Sprint(t[0]), Type: fmt.Sprint(t[1])})
		case map[string]any:
			cols = append(cols, Column{Name: fmt.Sprint(t["name"]), Type: fmt.Sprint(t["type"])})
		default:
			return nil, false
		}
	}
	return cols, true
}
