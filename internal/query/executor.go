// Package query executes read-only SQL against ClickHouse and converts
// result sets into row mappings suitable for the tool protocol.
package query

import (
	"context"
	"log/slog"
	"reflect"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Row is one result row keyed by column name.
type Row map[string]any

// Result is an ordered result set: column names in projection order plus the
// rows aligned to them.
type Result struct {
	Columns []string
	Rows    []Row
}

// ConnProvider supplies the shared connection handle.
type ConnProvider interface {
	Conn(ctx context.Context) (driver.Conn, error)
}

// Executor runs queries through the shared connection with read-only
// execution forced at the settings level of every call.
type Executor struct {
	log   *slog.Logger
	conns ConnProvider
}

func NewExecutor(log *slog.Logger, conns ConnProvider) *Executor {
	return &Executor{log: log, conns: conns}
}

// RunSelectQuery executes an arbitrary read statement and returns its rows.
// Empty or whitespace-only input is rejected before the connection is
// touched. Engine failures come back as *QueryError.
func (e *Executor) RunSelectQuery(ctx context.Context, sql string) (*Result, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, &ValidationError{Reason: "sql query must not be empty"}
	}
	e.log.Debug("query: executing select", "sql", sql)
	return e.runQuery(ctx, sql)
}

// runQuery is the single chokepoint between the tools and the engine. Every
// statement goes out with readonly=1 in the call settings, so a mutating
// statement is rejected by the server no matter what the SQL text claims.
// New tools must route through here rather than holding a connection.
func (e *Executor) runQuery(ctx context.Context, sql string, args ...any) (*Result, error) {
	conn, err := e.conns.Conn(ctx)
	if err != nil {
		return nil, err
	}

	qctx := clickhouse.Context(ctx, clickhouse.WithSettings(clickhouse.Settings{
		"readonly": 1,
	}))

	rows, err := conn.Query(qctx, sql, args...)
	if err != nil {
		return nil, newQueryError(err)
	}
	defer rows.Close()

	return collectRows(rows)
}

// collectRows drains a result set into ordered row mappings, scanning each
// column through its driver-reported scan type.
func collectRows(rows driver.Rows) (*Result, error) {
	columns := rows.Columns()
	types := rows.ColumnTypes()

	out := make([]Row, 0)
	for rows.Next() {
		dest := make([]any, len(columns))
		for i, ct := range types {
			dest[i] = reflect.New(ct.ScanType()).Interface()
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, newQueryError(err)
		}
		row := make(Row, len(columns))
		for i, name := range columns {
			row[name] = normalizeValue(reflect.ValueOf(dest[i]).Elem().Interface())
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, newQueryError(err)
	}

	return &Result{Columns: columns, Rows: out}, nil
}
