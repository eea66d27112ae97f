package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lakeview-labs/clickhouse-mcp/internal/query"
)

const (
	// TransportStdio serves MCP over stdin/stdout, the transport MCP
	// clients spawn the server with.
	TransportStdio = "stdio"
	// TransportHTTP serves MCP over streamable HTTP.
	TransportHTTP = "http"
)

const (
	defaultReadHeaderTimeout = 5 * time.Second
	defaultShutdownTimeout   = 5 * time.Second
)

// Querier is the query surface the tools are built on.
type Querier interface {
	RunSelectQuery(ctx context.Context, sql string) (*query.Result, error)
	ListDatabases(ctx context.Context) (*query.Result, error)
	ListTables(ctx context.Context, database string) (*query.Result, error)
}

type Config struct {
	Logger  *slog.Logger
	Querier Querier

	Version   string
	Transport string

	// HTTP transport only.
	ListenAddr        string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	AllowedTokens     []string // Bearer tokens allowed for MCP endpoint authentication
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Querier == nil {
		return fmt.Errorf("querier is required")
	}
	if c.Transport == "" {
		c.Transport = TransportStdio
	}
	if c.Transport != TransportStdio && c.Transport != TransportHTTP {
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if c.Transport == TransportHTTP && c.ListenAddr == "" {
		return fmt.Errorf("listen address is required for the http transport")
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	return nil
}
