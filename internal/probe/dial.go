package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hamed0406/grpchealthprobe/internal/config"
)

// NewTLSConfig builds the client TLS configuration. Certificate material is
// read in full and no file handle outlives the call.
func NewTLSConfig(c config.TLS) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		ServerName:         c.ServerName,
		InsecureSkipVerify: c.NoVerify, //nolint:gosec // explicit --tls-no-verify
	}

	if c.CACert != "" {
		pem, err := os.ReadFile(c.CACert)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert %s: %w", c.CACert, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("failed to append CA cert from %s", c.CACert)
		}
		tlsCfg.RootCAs = pool
	}

	if c.ClientCert != "" || c.ClientKey != "" {
		if c.ClientCert == "" || c.ClientKey == "" {
			return nil, errors.New("client certificate and key must be specified together")
		}
		pair, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate (%s, %s): %w", c.ClientCert, c.ClientKey, err)
		}
		tlsCfg.Certificates = []tls.Certificate{pair}
	}

	return tlsCfg, nil
}

func transportCredentials(cfg config.Config, logger *zap.Logger) (credentials.TransportCredentials, error) {
	if !cfg.TLS.Enabled {
		return insecure.NewCredentials(), nil
	}

	tlsCfg, err := NewTLSConfig(cfg.TLS)
	if err != nil {
		return nil, err
	}
	if cfg.TLS.NoVerify {
		fields := []zap.Field{zap.String("addr", cfg.Addr)}
		if cfg.TLS.CACert != "" {
			fields = append(fields, zap.String("ignored_ca_cert", cfg.TLS.CACert))
		}
		logger.Warn("tls_verification_disabled", fields...)
	} else {
		logger.Debug("tls_verification_enabled",
			zap.String("addr", cfg.Addr),
			zap.String("server_name", cfg.TLS.ServerName),
			zap.Bool("custom_ca", cfg.TLS.CACert != ""),
			zap.Bool("client_identity", len(tlsCfg.Certificates) > 0),
		)
	}
	return credentials.NewTLS(tlsCfg), nil
}

// Dial connects to cfg.Addr and waits until the connection is ready or
// cfg.ConnectTimeout elapses. The last connection error is kept in the
// returned error.
func Dial(ctx context.Context, cfg config.Config, logger *zap.Logger) (*grpc.ClientConn, error) {
	creds, err := transportCredentials(cfg, logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithUserAgent(cfg.UserAgent),
		grpc.WithBlock(),
		grpc.FailOnNonTempDialError(true),
		grpc.WithReturnConnectionError(),
	}

	//nolint:staticcheck // blocking dial bounds the handshake by ConnectTimeout
	return grpc.DialContext(ctx, cfg.Addr, opts...)
}
