package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultUserAgent      = "grpc_health_probe"
	DefaultConnectTimeout = time.Second
	DefaultRPCTimeout     = time.Second
)

type TLS struct {
	Enabled    bool
	CACert     string // trusted roots for verifying the server; empty means system roots
	ClientCert string
	ClientKey  string
	ServerName string // overrides the hostname checked against the server certificate
	NoVerify   bool
}

type Log struct {
	Dir     string // rotating JSON log directory; empty disables file logging
	Verbose bool
}

type Config struct {
	Addr           string // host:port of the gRPC server
	Service        string // empty checks overall server health
	UserAgent      string
	ConnectTimeout time.Duration
	RPCTimeout     time.Duration
	TLS            TLS
	Log            Log
}

// Default returns a Config carrying every default value.
func Default() Config {
	return Config{
		UserAgent:      DefaultUserAgent,
		ConnectTimeout: DefaultConnectTimeout,
		RPCTimeout:     DefaultRPCTimeout,
	}
}

// FromEnv overlays logging settings from the environment onto base.
func FromEnv(base Config) Config {
	cfg := base

	if v := strings.TrimSpace(os.Getenv("LOG_DIR")); v != "" {
		cfg.Log.Dir = v
	}

	if v := os.Getenv("LOG_VERBOSE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Log.Verbose = b
		}
	}

	return cfg
}

// Normalize trims surrounding whitespace from the target fields.
func (c Config) Normalize() Config {
	c.Addr = strings.TrimSpace(c.Addr)
	c.TLS.ServerName = strings.TrimSpace(c.TLS.ServerName)
	return c
}

const maxTimeoutMS = math.MaxInt64 / int64(time.Millisecond)

// Millis converts a millisecond setting for flag into a duration. Values
// at or below zero map to zero so that Validate reports them; values that
// do not fit in a time.Duration are rejected.
func Millis(flag string, ms int64) (time.Duration, error) {
	if ms <= 0 {
		return 0, nil
	}
	if ms > maxTimeoutMS {
		return 0, invalid("%s is too large (max %d ms)", flag, maxTimeoutMS)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// ValidationError reports a configuration that must not be used to dial.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Validate checks c without touching the network or the filesystem.
// The first violated rule is reported.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return invalid("--addr not specified")
	}
	if c.ConnectTimeout <= 0 {
		return invalid("--connect-timeout must be greater than zero")
	}
	if c.RPCTimeout <= 0 {
		return invalid("--rpc-timeout must be greater than zero")
	}

	if !c.TLS.Enabled {
		tlsOnly := []struct {
			flag string
			set  bool
		}{
			{"--tls-ca-cert", c.TLS.CACert != ""},
			{"--tls-server-name", c.TLS.ServerName != ""},
			{"--tls-client-cert", c.TLS.ClientCert != ""},
			{"--tls-client-key", c.TLS.ClientKey != ""},
			{"--tls-no-verify", c.TLS.NoVerify},
		}
		for _, f := range tlsOnly {
			if f.set {
				return invalid("specified %s without specifying --tls", f.flag)
			}
		}
	}

	if c.TLS.ClientCert != "" && c.TLS.ClientKey == "" {
		return invalid("specified --tls-client-cert without specifying --tls-client-key")
	}
	if c.TLS.ClientKey != "" && c.TLS.ClientCert == "" {
		return invalid("specified --tls-client-key without specifying --tls-client-cert")
	}
	return nil
}
