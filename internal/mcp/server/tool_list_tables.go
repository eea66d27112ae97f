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

type ListTablesInput struct {
	Database string `json:"database"`
}

type ListTablesOutput struct {
	Tables []query.Row `json:"tables"`
	Count  int         `json:"count"`
}

func RegisterListTablesTool(log *slog.Logger, server *mcp.Server, querier Querier) error {
	req, err := jsonschema.For[ListTablesInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create list_tables input schema: %w", err)
	}

	res, err := jsonschema.For[ListTablesOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create list_tables output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name: "list_tables",
		Description: "List all tables in a ClickHouse database, including each table's engine and " +
			"column metadata (name and type per column).",
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, req ListTablesInput) (*mcp.CallToolResult, ListTablesOutput, error) {
		startTime := time.Now()
		toolName := "list_tables"

		log.Debug("mcp/tool: handling list_tables", "database", req.Database)

		out, err := handleListTables(ctx, querier, req)
		duration := time.Since(startTime).Seconds()
		metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)

		if err != nil {
			metrics.ToolCallsTotal.WithLabelValues(toolName, "error").Inc()
			log.Warn("mcp/tool: list_tables failed", "database", req.Database, "error", err)
			return toolError(err), ListTablesOutput{}, nil
		}
		metrics.ToolCallsTotal.WithLabelValues(toolName, "success").Inc()
		return nil, out, nil
	})
	return nil
}

func handleListTables(ctx context.Context, querier Querier, req ListTablesInput) (ListTablesOutput, error) {
	result, err := querier.ListTables(ctx, req.Database)
	if err != nil {
		return ListTablesOutput{}, fmt.Errorf("error listing tables: %w", err)
	}
	return ListTablesOutput{
		Tables: result.Rows,
		Count:  len(result.Rows),
	}, nil
}
