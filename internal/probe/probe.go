package probe

import (
	"context"

	"go.uber.org/zap"

	"github.com/hamed0406/grpchealthprobe/internal/config"
)

// Run executes one probe: validate, dial, check, close. The connection is
// released on every path once acquired.
func Run(ctx context.Context, cfg config.Config, logger *zap.Logger) Outcome {
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		logger.Debug("invalid_configuration", zap.Error(err))
		return Outcome{Kind: InvalidConfiguration, Err: err}
	}

	logger.Debug("dial",
		zap.String("addr", cfg.Addr),
		zap.Bool("tls", cfg.TLS.Enabled),
		zap.Duration("connect_timeout", cfg.ConnectTimeout),
		zap.String("user_agent", cfg.UserAgent),
	)
	// dialing and the DNS diagnosis of a failed dial share one deadline
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	conn, err := Dial(connectCtx, cfg, logger)
	if err != nil {
		out := Outcome{Kind: ConnectionFailed, Addr: cfg.Addr, Err: err}
		out.DNSClass = diagnoseDNS(connectCtx, logger, cfg.Addr, cfg.ConnectTimeout)
		logger.Info("connection_failed", zap.String("addr", cfg.Addr), zap.Error(err))
		return out
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			logger.Warn("close_connection", zap.String("addr", cfg.Addr), zap.Error(cerr))
		}
	}()

	out := NewGRPCChecker(conn, cfg.RPCTimeout).Check(ctx, cfg.Service)
	logger.Info("health_check",
		zap.String("addr", cfg.Addr),
		zap.String("service", cfg.Service),
		zap.Stringer("outcome", out.Kind),
		zap.Stringer("status", out.Status),
		zap.Float64("latency_ms", out.LatencyMS),
		zap.Error(out.Err),
	)
	return out
}
