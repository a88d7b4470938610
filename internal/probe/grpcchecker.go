package probe

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

type GRPCChecker struct {
	Client  healthpb.HealthClient
	Timeout time.Duration
	Clock   clockwork.Clock
}

func NewGRPCChecker(conn grpc.ClientConnInterface, timeout time.Duration) *GRPCChecker {
	return &GRPCChecker{
		Client:  healthpb.NewHealthClient(conn),
		Timeout: timeout,
		Clock:   clockwork.NewRealClock(),
	}
}

// Check issues exactly one Health/Check call bounded by the checker timeout.
func (g *GRPCChecker) Check(ctx context.Context, service string) Outcome {
	clock := g.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	start := clock.Now()
	resp, err := g.Client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	out := Classify(resp, err, g.Timeout)
	out.LatencyMS = float64(clock.Since(start)) / float64(time.Millisecond)
	return out
}

// Classify maps the result of a Check call to exactly one outcome.
// Unimplemented wins over DeadlineExceeded, which wins over any other failure.
func Classify(resp *healthpb.HealthCheckResponse, err error, timeout time.Duration) Outcome {
	if err != nil {
		switch status.Code(err) {
		case codes.Unimplemented:
			return Outcome{Kind: RPCUnimplemented, Err: err}
		case codes.DeadlineExceeded:
			return Outcome{Kind: RPCTimedOut, Timeout: timeout, Err: err}
		default:
			return Outcome{Kind: RPCFailed, Err: err}
		}
	}

	st := resp.GetStatus()
	if st == healthpb.HealthCheckResponse_SERVING {
		return Outcome{Kind: Healthy, Status: st}
	}
	return Outcome{Kind: Unhealthy, Status: st}
}
