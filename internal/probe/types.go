package probe

import (
	"context"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Kind tags the single terminal state of a probe run.
type Kind int

const (
	Healthy Kind = iota
	Unhealthy
	ConnectionFailed
	RPCUnimplemented
	RPCTimedOut
	RPCFailed
	InvalidConfiguration
)

var kindNames = map[Kind]string{
	Healthy:              "healthy",
	Unhealthy:            "unhealthy",
	ConnectionFailed:     "connection_failed",
	RPCUnimplemented:     "rpc_unimplemented",
	RPCTimedOut:          "rpc_timed_out",
	RPCFailed:            "rpc_failed",
	InvalidConfiguration: "invalid_configuration",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Outcome is the result of one probe run. Which fields are meaningful
// depends on Kind:
//   - Status: Healthy, Unhealthy
//   - Addr, DNSClass: ConnectionFailed
//   - Timeout: RPCTimedOut
//   - Err: every failure kind
type Outcome struct {
	Kind      Kind
	Status    healthpb.HealthCheckResponse_ServingStatus
	Addr      string
	Timeout   time.Duration
	Err       error
	DNSClass  string
	LatencyMS float64
}

// Checker issues one health check for a service.
type Checker interface {
	Check(ctx context.Context, service string) Outcome
}
