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

type ListDatabasesInput struct{}

type ListDatabasesOutput struct {
	Databases []query.Row `json:"databases"`
	Count     int         `json:"count"`
}

func RegisterListDatabasesTool(log *slog.Logger, server *mcp.Server, querier Querier) error {
	req, err := jsonschema.For[ListDatabasesInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create list_databases input schema: %w", err)
	}

	res, err := jsonschema.For[ListDatabasesOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create list_databases output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         "list_databases",
		Description:  "List all databases on the ClickHouse server.",
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, req ListDatabasesInput) (*mcp.CallToolResult, ListDatabasesOutput, error) {
		startTime := time.Now()
		toolName := "list_databases"

		log.Debug("mcp/tool: handling list_databases")

		out, err := handleListDatabases(ctx, querier)
		duration := time.Since(startTime).Seconds()
		metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)

		if err != nil {
			metrics.ToolCallsTotal.WithLabelValues(toolName, "error").Inc()
			log.Warn("mcp/tool: list_databases failed", "error", err)
			return toolError(err), ListDatabasesOutput{}, nil
		}
		metrics.ToolCallsTotal.WithLabelValues(toolName, "success").Inc()
		return nil, out, nil
	})
	return nil
}

func handleListDatabases(ctx context.Context, querier Querier) (ListDatabasesOutput, error) {
	result, err := querier.ListDatabases(ctx)
	if err != nil {
		return ListDatabasesOutput{}, fmt.Errorf("error listing databases: %w", err)
	}
	return ListDatabasesOutput{
		Databases: result.Rows,
		Count:     len(result.Rows),
	}, nil
}
