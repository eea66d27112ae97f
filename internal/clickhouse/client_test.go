package clickhouse

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/stretchr/testify/require"

	"github.com/lakeview-labs/clickhouse-mcp/internal/config"
)

type stubConn struct {
	closed atomic.Bool
}

func (c *stubConn) Contributors() []string { return nil }

func (c *stubConn) ServerVersion() (*driver.ServerVersion, error) { return nil, nil }

func (c *stubConn) Select(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}

func (c *stubConn) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	return nil, errors.New("not implemented")
}

func (c *stubConn) QueryRow(ctx context.Context, query string, args ...any) driver.Row {
	return nil
}

func (c *stubConn) PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error) {
	return nil, errors.New("not implemented")
}

func (c *stubConn) Exec(ctx context.Context, query string, args ...any) error { return nil }

func (c *stubConn) AsyncInsert(ctx context.Context, query string, wait bool, args ...any) error {
	return nil
}

func (c *stubConn) Ping(context.Context) error { return nil }

func (c *stubConn) Stats() driver.Stats { return driver.Stats{} }

func (c *stubConn) Close() error {
	c.closed.Store(true)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvHost, "localhost")
	t.Setenv(config.EnvUser, "default")
	t.Setenv(config.EnvPassword, "")
	t.Setenv(config.EnvSecure, "false")
	config.Reset()
	t.Cleanup(config.Reset)
}

func TestClickHouse_Provider_SingleConstruction(t *testing.T) {
	setTestEnv(t)

	var constructions atomic.Int64
	p := NewProviderWithOpen(testLogger(), func(ctx context.Context, cfg *config.Config) (driver.Conn, error) {
		constructions.Add(1)
		return &stubConn{}, nil
	})

	first, err := p.Conn(t.Context())
	require.NoError(t, err)

	second, err := p.Conn(t.Context())
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, int64(1), constructions.Load())
}

func TestClickHouse_Provider_ConcurrentFirstUse(t *testing.T) {
	setTestEnv(t)

	var constructions atomic.Int64
	p := NewProviderWithOpen(testLogger(), func(ctx context.Context, cfg *config.Config) (driver.Conn, error) {
		constructions.Add(1)
		return &stubConn{}, nil
	})

	const callers = 32
	conns := make([]driver.Conn, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conns[i], errs[i] = p.Conn(context.Background())
		}()
	}
	wg.Wait()

	require.Equal(t, int64(1), constructions.Load())
	for i := range callers {
		require.NoError(t, errs[i])
		require.Same(t, conns[0], conns[i])
	}
}

func TestClickHouse_Provider_OpenErrorNotCached(t *testing.T) {
	setTestEnv(t)

	var constructions atomic.Int64
	dialErr := &ConnError{Addr: "localhost:8123", Err: errors.New("connection refused")}
	p := NewProviderWithOpen(testLogger(), func(ctx context.Context, cfg *config.Config) (driver.Conn, error) {
		if constructions.Add(1) == 1 {
			return nil, dialErr
		}
		return &stubConn{}, nil
	})

	_, err := p.Conn(t.Context())
	var connErr *ConnError
	require.ErrorAs(t, err, &connErr)

	// The failure is surfaced, not retried; but the next call dials again.
	conn, err := p.Conn(t.Context())
	require.NoError(t, err)
	require.NotNil(t, conn)
	require.Equal(t, int64(2), constructions.Load())
}

func TestClickHouse_Provider_ConfigErrorPropagates(t *testing.T) {
	t.Setenv(config.EnvUser, "default")
	t.Setenv(config.EnvPassword, "")
	config.Reset()
	t.Cleanup(config.Reset)

	p := NewProviderWithOpen(testLogger(), func(ctx context.Context, cfg *config.Config) (driver.Conn, error) {
		t.Fatal("open must not be called when configuration is invalid")
		return nil, nil
	})

	_, err := p.Conn(t.Context())
	var cfgErr *config.Error
	require.ErrorAs(t, err, &cfgErr)
}

func TestClickHouse_Provider_Reset(t *testing.T) {
	setTestEnv(t)

	var constructions atomic.Int64
	var conns []*stubConn
	p := NewProviderWithOpen(testLogger(), func(ctx context.Context, cfg *config.Config) (driver.Conn, error) {
		constructions.Add(1)
		conn := &stubConn{}
		conns = append(conns, conn)
		return conn, nil
	})

	_, err := p.Conn(t.Context())
	require.NoError(t, err)

	p.Reset()
	require.True(t, conns[0].closed.Load())

	_, err = p.Conn(t.Context())
	require.NoError(t, err)
	require.Equal(t, int64(2), constructions.Load())
}

func TestClickHouse_Options(t *testing.T) {
	t.Run("secure with verification", func(t *testing.T) {
		opts := Options(&config.Config{
			Host:     "ch.example.com",
			Port:     8443,
			Username: "default",
			Secure:   true,
			Verify:   true,
		})
		require.Equal(t, []string{"ch.example.com:8443"}, opts.Addr)
		require.NotNil(t, opts.TLS)
		require.False(t, opts.TLS.InsecureSkipVerify)
	})

	t.Run("secure without verification", func(t *testing.T) {
		opts := Options(&config.Config{
			Host:   "ch.example.com",
			Port:   8443,
			Secure: true,
			Verify: false,
		})
		require.NotNil(t, opts.TLS)
		require.True(t, opts.TLS.InsecureSkipVerify)
	})

	t.Run("insecure has no TLS", func(t *testing.T) {
		opts := Options(&config.Config{
			Host:   "localhost",
			Port:   8123,
			Secure: false,
		})
		require.Nil(t, opts.TLS)
	})
}
