// Package config resolves ClickHouse connection settings from the
// environment. Settings are read once per process and memoized; Reset exists
// for tests that need to re-resolve with a different environment.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	EnvHost               = "CLICKHOUSE_HOST"
	EnvPort               = "CLICKHOUSE_PORT"
	EnvUser               = "CLICKHOUSE_USER"
	EnvPassword           = "CLICKHOUSE_PASSWORD"
	EnvDatabase           = "CLICKHOUSE_DATABASE"
	EnvSecure             = "CLICKHOUSE_SECURE"
	EnvVerify             = "CLICKHOUSE_VERIFY"
	EnvConnectTimeout     = "CLICKHOUSE_CONNECT_TIMEOUT"
	EnvSendReceiveTimeout = "CLICKHOUSE_SEND_RECEIVE_TIMEOUT"
)

const (
	defaultSecurePort   = 8443
	defaultInsecurePort = 8123

	defaultConnectTimeout     = 30 * time.Second
	defaultSendReceiveTimeout = 300 * time.Second
)

// Error reports a missing or malformed setting.
type Error struct {
	Setting string
	Reason  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Setting, e.Reason)
}

// Config holds the resolved ClickHouse connection settings. It is immutable
// after resolution.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Database string

	Secure bool
	Verify bool

	ConnectTimeout     time.Duration
	SendReceiveTimeout time.Duration

	// ClientName optionally identifies this client in the server's query
	// log. Empty means the connection layer picks its default.
	ClientName string
}

// Addr returns the host:port pair for the HTTP interface.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

var (
	mu     sync.Mutex
	cached *Config
)

// Load resolves the configuration from the environment on first call and
// returns the same value afterwards. Resolution errors are not memoized, so
// a later call can succeed once the environment is fixed.
func Load() (*Config, error) {
	mu.Lock()
	defer mu.Unlock()
	if cached != nil {
		return cached, nil
	}
	cfg, err := resolve()
	if err != nil {
		return nil, err
	}
	cached = cfg
	return cached, nil
}

// Reset clears the memoized configuration. Tests only.
func Reset() {
	mu.Lock()
	cached = nil
	mu.Unlock()
}

func resolve() (*Config, error) {
	host := os.Getenv(EnvHost)
	if host == "" {
		return nil, &Error{Setting: EnvHost, Reason: "required setting is not set"}
	}
	user := os.Getenv(EnvUser)
	if user == "" {
		return nil, &Error{Setting: EnvUser, Reason: "required setting is not set"}
	}
	// The password may legitimately be the empty string, but the variable
	// itself must be present.
	password, ok := os.LookupEnv(EnvPassword)
	if !ok {
		return nil, &Error{Setting: EnvPassword, Reason: "required setting is not set"}
	}

	secure := boolSetting(EnvSecure, true)
	verify := boolSetting(EnvVerify, true)

	port := defaultInsecurePort
	if secure {
		port = defaultSecurePort
	}
	port, err := intSetting(EnvPort, port)
	if err != nil {
		return nil, err
	}

	connectTimeout, err := durationSetting(EnvConnectTimeout, defaultConnectTimeout)
	if err != nil {
		return nil, err
	}
	sendReceiveTimeout, err := durationSetting(EnvSendReceiveTimeout, defaultSendReceiveTimeout)
	if err != nil {
		return nil, err
	}

	return &Config{
		Host:               host,
		Port:               port,
		Username:           user,
		Password:           password,
		Database:           os.Getenv(EnvDatabase),
		Secure:             secure,
		Verify:             verify,
		ConnectTimeout:     connectTimeout,
		SendReceiveTimeout: sendReceiveTimeout,
	}, nil
}

func boolSetting(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

func intSetting(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &Error{Setting: key, Reason: fmt.Sprintf("expected an integer, got %q", v)}
	}
	return n, nil
}

// durationSetting reads an integer number of seconds.
func durationSetting(key string, def time.Duration) (time.Duration, error) {
	secs, err := intSetting(key, int(def/time.Second))
	if err != nil {
		return 0, err
	}
	return time.Duration(secs) * time.Second, nil
}
