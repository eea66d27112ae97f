// Package clickhouse owns the process-wide ClickHouse connection handle.
package clickhouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/lakeview-labs/clickhouse-mcp/internal/config"
)

// clientName identifies this server to ClickHouse (system.query_log
// http_user_agent / client_name).
const clientName = "clickhouse-mcp"

// ConnError reports a failed connection attempt: unreachable host, TLS
// failure, or rejected credentials.
type ConnError struct {
	Addr string
	Err  error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("clickhouse: connect %s: %v", e.Addr, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

// OpenFunc opens a connection handle for the given configuration.
// Injectable so tests can count constructions without a live server.
type OpenFunc func(ctx context.Context, cfg *config.Config) (driver.Conn, error)

// Provider hands out the single shared connection handle, constructing it
// lazily on first use. Concurrent first callers are serialized by the mutex
// so exactly one handle is ever created. There is no automatic reconnect: if
// the transport breaks, the next query fails and the error is surfaced to
// the caller.
type Provider struct {
	log  *slog.Logger
	open OpenFunc

	mu   sync.Mutex
	conn driver.Conn
}

// NewProvider creates a Provider that dials ClickHouse with Open.
func NewProvider(log *slog.Logger) *Provider {
	return &Provider{log: log, open: Open}
}

// NewProviderWithOpen creates a Provider with a custom open function. Tests only.
func NewProviderWithOpen(log *slog.Logger, open OpenFunc) *Provider {
	return &Provider{log: log, open: open}
}

// Conn returns the shared connection handle, opening it on first call.
// Configuration resolution happens here, lazily, so a misconfigured
// environment surfaces as an error on the first tool call rather than at
// process start.
func (p *Provider) Conn(ctx context.Context) (driver.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		return p.conn, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	conn, err := p.open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	p.conn = conn

	p.log.Info("clickhouse: connection established",
		"addr", cfg.Addr(),
		"username", cfg.Username,
		"secure", cfg.Secure,
		"verify", cfg.Verify,
		"connectTimeout", cfg.ConnectTimeout,
		"sendReceiveTimeout", cfg.SendReceiveTimeout,
	)
	return p.conn, nil
}

// Reset closes and drops the cached handle so the next Conn call dials
// again. Tests only.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			p.log.Warn("clickhouse: error closing connection on reset", "error", err)
		}
		p.conn = nil
	}
}

// Options builds clickhouse-go options for the HTTP interface from the
// resolved configuration. TLS is enabled when secure is set; certificate
// verification is skipped only when verify is explicitly disabled.
func Options(cfg *config.Config) *clickhouse.Options {
	name := cfg.ClientName
	if name == "" {
		name = clientName
	}
	opts := &clickhouse.Options{
		Protocol: clickhouse.HTTP,
		Addr:     []string{cfg.Addr()},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: cfg.ConnectTimeout,
		ReadTimeout: cfg.SendReceiveTimeout,
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{
				{Name: name, Version: "1.0"},
			},
		},
	}
	if cfg.Secure {
		opts.TLS = &tls.Config{
			InsecureSkipVerify: !cfg.Verify,
		}
	}
	return opts
}

// Open dials ClickHouse and verifies the connection with a ping.
func Open(ctx context.Context, cfg *config.Config) (driver.Conn, error) {
	conn, err := clickhouse.Open(Options(cfg))
	if err != nil {
		return nil, &ConnError{Addr: cfg.Addr(), Err: err}
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, &ConnError{Addr: cfg.Addr(), Err: err}
	}
	return conn, nil
}
