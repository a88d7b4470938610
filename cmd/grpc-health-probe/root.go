package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hamed0406/grpchealthprobe/internal/config"
	"github.com/hamed0406/grpchealthprobe/internal/logging"
	"github.com/hamed0406/grpchealthprobe/internal/probe"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type flags struct {
	configFile       string
	addr             string
	service          string
	userAgent        string
	connectTimeoutMS int64
	rpcTimeoutMS     int64
	tls              bool
	tlsCACert        string
	tlsClientCert    string
	tlsClientKey     string
	tlsServerName    string
	tlsNoVerify      bool
	logDir           string
	verbose          bool
	noColor          bool
}

func (f *flags) register(fs *pflag.FlagSet) {
	def := config.Default()
	fs.StringVar(&f.configFile, "config", "", "YAML file with probe settings; flags override it")
	fs.StringVar(&f.addr, "addr", "", "(required) tcp host:port to connect")
	fs.StringVar(&f.service, "service", def.Service, "service name to check (empty checks overall server health)")
	fs.StringVar(&f.userAgent, "user-agent", def.UserAgent, "user-agent header value of health check requests")
	fs.Int64Var(&f.connectTimeoutMS, "connect-timeout", def.ConnectTimeout.Milliseconds(), "timeout in milliseconds for establishing connection")
	fs.Int64Var(&f.rpcTimeoutMS, "rpc-timeout", def.RPCTimeout.Milliseconds(), "timeout in milliseconds for health check rpc")
	fs.BoolVar(&f.tls, "tls", false, "use TLS")
	fs.StringVar(&f.tlsCACert, "tls-ca-cert", "", "(with --tls) file containing trusted certificates for verifying server")
	fs.StringVar(&f.tlsClientCert, "tls-client-cert", "", "(with --tls, requires --tls-client-key) client certificate for authenticating to the server")
	fs.StringVar(&f.tlsClientKey, "tls-client-key", "", "(with --tls, requires --tls-client-cert) client private key for authenticating to the server")
	fs.StringVar(&f.tlsServerName, "tls-server-name", "", "(with --tls) override the hostname used to verify the server certificate")
	fs.BoolVar(&f.tlsNoVerify, "tls-no-verify", false, "(with --tls) don't verify the server certificate (INSECURE)")
	fs.StringVar(&f.logDir, "log-dir", "", "directory for rotating JSON logs")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "verbose logs on stderr")
	fs.BoolVar(&f.noColor, "no-color", false, "disable colored output")
}

// resolve layers defaults, environment, config file and explicitly given flags.
func (f *flags) resolve(fs *pflag.FlagSet) (config.Config, error) {
	cfg := config.FromEnv(config.Default())
	if f.configFile != "" {
		var err error
		if cfg, err = config.LoadFile(f.configFile, cfg); err != nil {
			return cfg, err
		}
	}

	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("addr", func() { cfg.Addr = f.addr })
	set("service", func() { cfg.Service = f.service })
	set("user-agent", func() { cfg.UserAgent = f.userAgent })
	set("tls", func() { cfg.TLS.Enabled = f.tls })
	set("tls-ca-cert", func() { cfg.TLS.CACert = f.tlsCACert })
	set("tls-client-cert", func() { cfg.TLS.ClientCert = f.tlsClientCert })
	set("tls-client-key", func() { cfg.TLS.ClientKey = f.tlsClientKey })
	set("tls-server-name", func() { cfg.TLS.ServerName = f.tlsServerName })
	set("tls-no-verify", func() { cfg.TLS.NoVerify = f.tlsNoVerify })
	set("log-dir", func() { cfg.Log.Dir = f.logDir })
	set("verbose", func() { cfg.Log.Verbose = f.verbose })

	timeouts := []struct {
		flag string
		ms   int64
		dst  *time.Duration
	}{
		{"--connect-timeout", f.connectTimeoutMS, &cfg.ConnectTimeout},
		{"--rpc-timeout", f.rpcTimeoutMS, &cfg.RPCTimeout},
	}
	for _, t := range timeouts {
		if !fs.Changed(strings.TrimPrefix(t.flag, "--")) {
			continue
		}
		d, err := config.Millis(t.flag, t.ms)
		if err != nil {
			return cfg, err
		}
		*t.dst = d
	}
	return cfg.Normalize(), nil
}

// newRootCmd builds the probe command. The outcome of a run is stored in
// *out so the caller can turn it into the process exit code.
func newRootCmd(stdout, stderr io.Writer, out *probe.Outcome) *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "grpc-health-probe --addr=host:port [flags]",
		Short: "Check the health of a gRPC server via grpc.health.v1.Health/Check",
		Long: `grpc-health-probe issues a single grpc.health.v1.Health/Check call and
reports the result through its exit code:

  0  service is SERVING
  1  invalid arguments
  2  connection failure
  3  rpc failure (including unimplemented health protocol and timeout)
  4  service responded with a status other than SERVING`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.resolve(cmd.Flags())
			if err != nil {
				*out = probe.Outcome{Kind: probe.InvalidConfiguration, Err: err}
				return nil
			}

			logger, closeLog, err := logging.NewLogger(logging.Options{
				Dir:     cfg.Log.Dir,
				Verbose: cfg.Log.Verbose,
				Console: stderr,
			})
			if err != nil {
				*out = probe.Outcome{Kind: probe.InvalidConfiguration, Err: fmt.Errorf("--log-dir: %w", err)}
				return nil
			}
			defer func() { _ = closeLog() }()

			*out = probe.Run(cmd.Context(), cfg, logger)
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.Flags().SortFlags = false
	f.register(cmd.Flags())
	return cmd
}

// run executes the probe for args and returns the process exit code.
// Exactly one result line is written to stdout.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	out := probe.Outcome{Kind: -1}
	cmd := newRootCmd(stdout, stderr, &out)
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		out = probe.Outcome{Kind: probe.InvalidConfiguration, Err: err}
	}
	if out.Kind == -1 {
		// --help or --version already wrote their output
		return probe.ExitOK
	}

	printOutcome(stdout, out, useColor(stdout, cmd.Flags()))
	return out.ExitCode()
}

func useColor(w io.Writer, fs *pflag.FlagSet) bool {
	if noColor, _ := fs.GetBool("no-color"); noColor {
		return false
	}
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func printOutcome(w io.Writer, out probe.Outcome, colored bool) {
	c := color.New(color.FgRed)
	switch out.Kind {
	case probe.Healthy:
		c = color.New(color.FgGreen)
	case probe.Unhealthy, probe.RPCTimedOut:
		c = color.New(color.FgYellow)
	}
	if colored {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	_, _ = c.Fprintln(w, out.Message())
}
