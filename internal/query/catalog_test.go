package query

import (
	"reflect"
	"testing"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/stretchr/testify/require"
)

func databasesRows() *fakeRows {
	return &fakeRows{
		columns: []string{"name"},
		types: []driver.ColumnType{
			fakeColumnType{"name", reflect.TypeOf(""), "String"},
		},
		data: [][]any{
			{"default"},
			{"system"},
			{"analytics"},
		},
	}
}

func tablesRows() *fakeRows {
	return &fakeRows{
		columns: []string{"database", "name", "engine", "columns"},
		types: []driver.ColumnType{
			fakeColumnType{"database", reflect.TypeOf(""), "String"},
			fakeColumnType{"name", reflect.TypeOf(""), "String"},
			fakeColumnType{"engine", reflect.TypeOf(""), "String"},
			fakeColumnType{"columns", reflect.TypeOf([][]any{}), "Array(Tuple(String, String))"},
		},
		data: [][]any{
			{"analytics", "events", "MergeTree", [][]any{
				{"id", "UInt64"},
				{"name", "String"},
			}},
		},
	}
}

func TestQuery_ListDatabases(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{rows: databasesRows}
	e := NewExecutor(testLogger(), &fakeProvider{conn: conn})

	res, err := e.ListDatabases(t.Context())
	require.NoError(t, err)
	require.Equal(t, []string{"name"}, res.Columns)
	require.Len(t, res.Rows, 3)
	require.Equal(t, "default", res.Rows[0]["name"])
	require.Equal(t, []string{"SHOW DATABASES"}, conn.queries)
}

func TestQuery_ListTables(t *testing.T) {
	t.Parallel()

	t.Run("rejects an empty database name without touching the connection", func(t *testing.T) {
		t.Parallel()

		provider := &fakeProvider{conn: &fakeConn{rows: tablesRows}}
		e := NewExecutor(testLogger(), provider)

		_, err := e.ListTables(t.Context(), "")
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		require.Equal(t, int64(0), provider.calls.Load())
	})

	t.Run("parses embedded column metadata in order", func(t *testing.T) {
		t.Parallel()

		conn := &fakeConn{rows: tablesRows}
		e := NewExecutor(testLogger(), &fakeProvider{conn: conn})

		res, err := e.ListTables(t.Context(), "analytics")
		require.NoError(t, err)
		require.Len(t, res.Rows, 1)

		row := res.Rows[0]
		require.Equal(t, "analytics", row["database"])
		require.Equal(t, "events", row["name"])
		require.Equal(t, "MergeTree", row["engine"])
		require.Equal(t, []Column{
			{Name: "id", Type: "UInt64"},
			{Name: "name", Type: "String"},
		}, row["columns"])

		// The database name travels as a bound argument, not interpolated text.
		require.Len(t, conn.args, 1)
		require.Equal(t, []any{"analytics"}, conn.args[0])
	})
}

func TestQuery_ParseColumns(t *testing.T) {
	t.Parallel()

	t.Run("tuple pairs", func(t *testing.T) {
		t.Parallel()
		cols, ok := parseColumns([]any{
			[]any{"id", "UInt64"},
			[]any{"name", "String"},
		})
		require.True(t, ok)
		require.Equal(t, []Column{{"id", "UInt64"}, {"name", "String"}}, cols)
	})

	t.Run("named tuples", func(t *testing.T) {
		t.Parallel()
		cols, ok := parseColumns([]any{
			map[string]any{"name": "ts", "type": "DateTime64(3)"},
		})
		require.True(t, ok)
		require.Equal(t, []Column{{"ts", "DateTime64(3)"}}, cols)
	})

	t.Run("empty array", func(t *testing.T) {
		t.Parallel()
		cols, ok := parseColumns([]any{})
		require.True(t, ok)
		require.Empty(t, cols)
	})

	t.Run("non-array value is left alone", func(t *testing.T) {
		t.Parallel()
		_, ok := parseColumns("id UInt64, name String")
		require.False(t, ok)
	})

	t.Run("malformed entry is left alone", func(t *testing.T) {
		t.Parallel()
		_, ok := parseColumns([]any{[]any{"only-name"}})
		require.False(t, ok)
	})
}
