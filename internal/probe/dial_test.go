package probe

import (
	"context"
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/hamed0406/grpchealthprobe/internal/config"
)

func TestNewTLSConfig(t *testing.T) {
	dir := t.TempDir()
	cf := writeSelfSigned(t, dir, "grpc.test")

	tlsCfg, err := NewTLSConfig(config.TLS{
		Enabled:    true,
		CACert:     cf.CertPath,
		ClientCert: cf.CertPath,
		ClientKey:  cf.KeyPath,
		ServerName: "override.test",
	})
	require.NoError(t, err)
	require.NotNil(t, tlsCfg.RootCAs)
	require.Len(t, tlsCfg.Certificates, 1)
	require.Equal(t, "override.test", tlsCfg.ServerName)
	require.False(t, tlsCfg.InsecureSkipVerify)

	tlsCfg, err = NewTLSConfig(config.TLS{Enabled: true, CACert: cf.CertPath, NoVerify: true})
	require.NoError(t, err)
	require.True(t, tlsCfg.InsecureSkipVerify)
	require.NotNil(t, tlsCfg.RootCAs)
}

func TestNewTLSConfig_Errors(t *testing.T) {
	dir := t.TempDir()
	cf := writeSelfSigned(t, dir, "grpc.test")
	garbage := filepath.Join(dir, "garbage.pem")
	require.NoError(t, os.WriteFile(garbage, []byte("not a certificate"), 0o600))

	cases := []struct {
		name string
		tls  config.TLS
		want string
	}{
		{"missing ca", config.TLS{CACert: filepath.Join(dir, "nope.pem")}, "failed to read CA cert"},
		{"ca without pem", config.TLS{CACert: garbage}, "failed to append CA cert"},
		{"missing key", config.TLS{ClientCert: cf.CertPath, ClientKey: filepath.Join(dir, "nope.key")}, "failed to load client certificate"},
		{"unpaired", config.TLS{ClientCert: cf.CertPath}, "must be specified together"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTLSConfig(tc.tls)
			require.ErrorContains(t, err, tc.want)
		})
	}
}

func tlsServer(t *testing.T, cf certFiles, clientAuth bool) string {
	t.Helper()
	serverTLS := &tls.Config{Certificates: []tls.Certificate{cf.Pair}}
	if clientAuth {
		serverTLS.ClientAuth = tls.RequireAndVerifyClientCert
		serverTLS.ClientCAs = cf.Pool
	}
	return startServer(t,
		withHealth(map[string]healthpb.HealthCheckResponse_ServingStatus{"": healthpb.HealthCheckResponse_SERVING}),
		grpc.Creds(credentials.NewTLS(serverTLS)),
	)
}

func tlsConfig(addr string, tc config.TLS) config.Config {
	cfg := config.Default()
	cfg.Addr = addr
	cfg.ConnectTimeout = 2 * time.Second
	cfg.RPCTimeout = 2 * time.Second
	tc.Enabled = true
	cfg.TLS = tc
	return cfg
}

func TestRun_TLSWithServerNameOverride(t *testing.T) {
	cf := writeSelfSigned(t, t.TempDir(), "grpc.test")
	addr := tlsServer(t, cf, false)

	out := Run(context.Background(), tlsConfig(addr, config.TLS{CACert: cf.CertPath, ServerName: "grpc.test"}), zap.NewNop())
	require.Equal(t, Healthy, out.Kind, out.Message())
}

func TestRun_TLSHostnameMismatchFailsToConnect(t *testing.T) {
	cf := writeSelfSigned(t, t.TempDir(), "grpc.test")
	addr := tlsServer(t, cf, false)

	out := Run(context.Background(), tlsConfig(addr, config.TLS{CACert: cf.CertPath}), zap.NewNop())
	require.Equal(t, ConnectionFailed, out.Kind)
	require.Equal(t, ExitConnectionFailure, out.ExitCode())
	require.Contains(t, out.Message(), "failed to connect")
}

func TestRun_TLSNoVerifyIsLoggedAsInsecure(t *testing.T) {
	cf := writeSelfSigned(t, t.TempDir(), "grpc.test")
	addr := tlsServer(t, cf, false)

	core, logs := observer.New(zap.DebugLevel)
	out := Run(context.Background(), tlsConfig(addr, config.TLS{NoVerify: true}), zap.New(core))
	require.Equal(t, Healthy, out.Kind, out.Message())
	require.Equal(t, 1, logs.FilterMessage("tls_verification_disabled").Len())
	require.Zero(t, logs.FilterMessage("tls_verification_enabled").Len())
}

func TestRun_TLSClientIdentity(t *testing.T) {
	cf := writeSelfSigned(t, t.TempDir(), "grpc.test")
	addr := tlsServer(t, cf, true)

	out := Run(context.Background(), tlsConfig(addr, config.TLS{
		CACert:     cf.CertPath,
		ServerName: "grpc.test",
		ClientCert: cf.CertPath,
		ClientKey:  cf.KeyPath,
	}), zap.NewNop())
	require.Equal(t, Healthy, out.Kind, out.Message())
}

func TestRun_UnreadableCAIsConnectionFailure(t *testing.T) {
	addr := closedAddr(t)
	out := Run(context.Background(), tlsConfig(addr, config.TLS{CACert: filepath.Join(t.TempDir(), "missing.pem")}), zap.NewNop())
	require.Equal(t, ConnectionFailed, out.Kind)
	require.Contains(t, out.Message(), "failed to read CA cert")
}

func TestRun_StalledHandshakeHonorsConnectTimeout(t *testing.T) {
	addr := stalledAddr(t)
	cases := map[string]config.Config{
		"plaintext": plainConfig(addr),
		"tls":       tlsConfig(addr, config.TLS{NoVerify: true}),
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			cfg.ConnectTimeout = 300 * time.Millisecond

			start := time.Now()
			out := Run(context.Background(), cfg, zap.NewNop())
			elapsed := time.Since(start)

			require.Equal(t, ConnectionFailed, out.Kind, out.Message())
			require.Equal(t, ExitConnectionFailure, out.ExitCode())
			require.Contains(t, out.Message(), "failed to connect")
			require.GreaterOrEqual(t, elapsed, 250*time.Millisecond)
			require.Less(t, elapsed, 2*time.Second)
		})
	}
}
