package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lakeview-labs/clickhouse-mcp/internal/mcp/server/metrics"
	"github.com/lakeview-labs/clickhouse-mcp/internal/query"
)

type QueryInput struct {
	SQL string `json:"sql"`
}

type QueryOutput struct {
	Columns []string    `json:"columns"`
	Rows    []query.Row `json:"rows"`
	Count   int         `json:"count"`
}

// toolError converts a failure into a structured error payload. The tool
// boundary never lets an error escape as a protocol failure or a crash: a
// bad query must not take down a server handling other calls.
func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}

func RegisterQueryTool(log *slog.Logger, server *mcp.Server, querier Querier) error {
	req, err := jsonschema.For[QueryInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create query input schema: %w", err)
	}

	res, err := jsonschema.For[QueryOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create query output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name: "run_select_query",
		Description: "Execute a read-only SQL query against the ClickHouse server and return its rows. " +
			"The query runs with readonly mode forced on, so mutating statements are rejected by the server.",
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, req QueryInput) (*mcp.CallToolResult, QueryOutput, error) {
		startTime := time.Now()
		toolName := "run_select_query"

		log.Debug("mcp/tool: handling run_select_query", "sql", req.SQL)

		out, err := handleQuery(ctx, querier, req)
		duration := time.Since(startTime).Seconds()
		metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)

		if err != nil {
			metrics.ToolCallsTotal.WithLabelValues(toolName, "error").Inc()
			log.Warn("mcp/tool: run_select_query failed", "error", err)
			return toolError(err), QueryOutput{}, nil
		}
		metrics.ToolCallsTotal.WithLabelValues(toolName, "success").Inc()
		return nil, out, nil
	})
	return nil
}

func handleQuery(ctx context.Context, querier Querier, req QueryInput) (QueryOutput, error) {
	res, err := querier.RunSelectQuery(ctx, req.SQL)
	if err != nil {
		return QueryOutput{}, fmt.Errorf("error running query: %w", err)
	}
	return QueryOutput{
		Columns: res.Columns,
		Rows:    res.Rows,
		Count:   len(res.Rows),
	}, nil
}
