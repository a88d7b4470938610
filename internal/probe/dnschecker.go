package probe

import (
	"context"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
)

// diagnoseDNS classifies the host part of addr after a failed dial.
// IP literals, unix sockets and an already expired ctx yield an empty class.
func diagnoseDNS(ctx context.Context, logger *zap.Logger, addr string, timeout time.Duration) string {
	if ctx.Err() != nil || strings.HasPrefix(addr, "unix:") {
		return ""
	}
	host := extractHost(addr)
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}

	dns := CheckDNS(ctx, nil, host, timeout)
	logger.Info("dns_check",
		zap.String("domain", dns.Domain),
		zap.String("class", dns.Class),
		zap.Bool("has_a_or_aaaa", dns.HasAOrAAAA),
		zap.Strings("nameservers", dns.Nameservers),
		zap.String("cname", dns.CNAME),
		zap.String("resolver_error", dns.ResolverError),
	)
	return dns.Class
}

// extractHost pulls the hostname from a dial target such as "host:port",
// "[::1]:443" or "dns:///host:port".
func extractHost(target string) string {
	if i := strings.LastIndex(target, "/"); i >= 0 {
		target = target[i+1:]
	}
	host, _, err := net.SplitHostPort(target)
	if err != nil {
		return strings.Trim(target, "[]")
	}
	return host
}
