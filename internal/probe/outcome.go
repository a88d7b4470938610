package probe

import (
	"fmt"

	"google.golang.org/grpc/status"
)

// Process exit codes.
const (
	ExitOK                = 0
	ExitInvalidArguments  = 1
	ExitConnectionFailure = 2
	ExitRPCFailure        = 3
	ExitUnhealthy         = 4
)

func (o Outcome) ExitCode() int {
	switch o.Kind {
	case Healthy:
		return ExitOK
	case Unhealthy:
		return ExitUnhealthy
	case ConnectionFailed:
		return ExitConnectionFailure
	case RPCUnimplemented, RPCTimedOut, RPCFailed:
		return ExitRPCFailure
	default:
		return ExitInvalidArguments
	}
}

// Message renders the one-line result printed on stdout.
func (o Outcome) Message() string {
	switch o.Kind {
	case Healthy:
		return fmt.Sprintf("status: %s", o.Status)
	case Unhealthy:
		return fmt.Sprintf("service unhealthy (responded with %q)", o.Status.String())
	case ConnectionFailed:
		msg := fmt.Sprintf("error: failed to connect service at %q: %v", o.Addr, o.Err)
		if o.DNSClass != "" && o.DNSClass != ClassResolves {
			msg += fmt.Sprintf(" (dns=%s)", o.DNSClass)
		}
		return msg
	case RPCUnimplemented:
		return fmt.Sprintf("error: this server does not implement the grpc health protocol (grpc.health.v1.Health): %s", rpcMessage(o.Err))
	case RPCTimedOut:
		return fmt.Sprintf("timeout: health rpc did not complete within %v", o.Timeout)
	case RPCFailed:
		return fmt.Sprintf("error: health rpc failed: %s", rpcMessage(o.Err))
	default:
		if o.Err == nil {
			return "invalid configuration"
		}
		return o.Err.Error()
	}
}

func rpcMessage(err error) string {
	if err == nil {
		return ""
	}
	if st, ok := status.FromError(err); ok {
		return st.Message()
	}
	return err.Error()
}
