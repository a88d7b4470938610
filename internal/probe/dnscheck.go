package probe

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

const (
	ClassResolves    = "RESOLVES"
	ClassNXDomain    = "NXDOMAIN"
	ClassNoARecord   = "NO_A_RECORD"
	ClassServFail    = "SERVFAIL_or_TIMEOUT"
	ClassInvalidName = "INVALID_NAME"
)

type DNSStatus struct {
	Domain        string
	HasAOrAAAA    bool
	IPs           []net.IP
	CNAME         string
	HasNS         bool
	Nameservers   []string
	Class         string
	ResolverError string
}

const maxDNSTimeout = 3 * time.Second

// CheckDNS classifies how domain resolves. It is used to explain connection
// failures, so it never blocks longer than timeout (capped at three seconds).
func CheckDNS(ctx context.Context, r *net.Resolver, domain string, timeout time.Duration) DNSStatus {
	s := DNSStatus{Domain: strings.TrimSpace(domain)}
	if s.Domain == "" || strings.ContainsAny(s.Domain, "/: ") {
		s.Class = ClassInvalidName
		return s
	}
	if r == nil {
		r = net.DefaultResolver
	}
	if timeout <= 0 || timeout > maxDNSTimeout {
		timeout = maxDNSTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ips, err := r.LookupIP(ctx, "ip", s.Domain)
	if err == nil && len(ips) > 0 {
		s.HasAOrAAAA = true
		s.IPs = ips
		s.Class = ClassResolves
		return s
	}
	if err != nil {
		var de *net.DNSError
		s.ResolverError = err.Error()
		if errors.As(err, &de) {
			if de.IsNotFound {
				s.Class = ClassNXDomain
			} else if de.IsTemporary || de.Timeout() {
				s.Class = ClassServFail
			}
		}
	}

	if cname, err := r.LookupCNAME(ctx, s.Domain); err == nil && !strings.EqualFold(cname, s.Domain+".") {
		s.CNAME = strings.TrimSuffix(cname, ".")
	}

	if ns, err := r.LookupNS(ctx, s.Domain); err == nil && len(ns) > 0 {
		s.HasNS = true
		for _, n := range ns {
			s.Nameservers = append(s.Nameservers, strings.TrimSuffix(n.Host, "."))
		}
		if s.Class == ClassNXDomain {
			s.Class = ClassNoARecord
		}
	}

	if s.Class == "" {
		if s.HasNS {
			s.Class = ClassNoARecord
		} else if s.ResolverError != "" {
			s.Class = ClassServFail
		} else {
			s.Class = ClassNXDomain
		}
	}
	return s
}
