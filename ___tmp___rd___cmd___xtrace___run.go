package main

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/xtrace-go/xtrace/internal/launch"
	"github.com/xtrace-go/xtrace/internal/output"
	"github.com/xtrace-go/xtrace/internal/protodesc"
	"github.com/xtrace-go/xtrace/internal/protoparse"
	"github.com/xtrace-go/xtrace/internal/xauth"
	"github.com/xtrace-go/xtrace/internal/xlog"
	"github.com/xtrace-go/xtrace/internal/xmetrics"
	"github.com/xtrace-go/xtrace/internal/xproxy"
)

// runOptions mirrors the flags/config keys SPEC_FULL.md §3 lists as the
// operator surface (deny-extensions, max list length, timestamp mode,
// output sink, buffering mode, .proto search path) plus the fake/real
// display pair and optional child command, the way the original xtrace
// took `-display`/a trailing command on argv.
type runOptions struct {
	display         string
	realDisplay     string
	denyExtensions  bool
	maxListLength   int
	timestampMode   string
	protoSearchPath []string
	metricsAddr     string
	interactive     bool
	logLevel        string
	noColor         bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "run [-- command [args...]]",
		Short: "Proxy a fake X11 display to the real one, tracing every packet",
		RunE: func(cmd *cobra.Command, args []string) error {
			bindViper(v, cmd)
			applyViper(v, opts)
			return runTrace(opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.display, "display", ":1", "fake display xtrace listens on")
	flags.StringVar(&opts.realDisplay, "real-display", ":0", "real display xtrace connects to")
	flags.BoolVar(&opts.denyExtensions, "deny-extensions", false, "report every QueryExtension as unsupported")
	flags.IntVar(&opts.maxListLength, "max-list-length", 20, "maximum list elements printed before truncating with ,...")
	flags.StringVar(&opts.timestampMode, "timestamp", "none", "timestamp mode: none, wall, relative, delta")
	flags.StringSliceVar(&opts.protoSearchPath, "proto-path", nil, "additional directories to search for .proto files")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (empty disables)")
	flags.BoolVar(&opts.interactive, "interactive", false, "single-step client requests one keypress at a time")
	flags.StringVar(&opts.logLevel, "log-level", "info", "xtrace diagnostic log level")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output even on a terminal")

	v.SetEnvPrefix("XTRACE")
	v.AutomaticEnv()
	if home, err := os.UserHomeDir(); err == nil {
		v.SetConfigFile(home + "/.xtrace.yaml")
		_ = v.ReadInConfig() // optional; absence is not an error
	}

	return cmd
}

func bindViper(v *viper.Viper, cmd *cobra.Command) {
	_ = v.BindPFlags(cmd.Flags())
}

func applyViper(v *viper.Viper, opts *runOptions) {
	if v.IsSet("display") {
		opts.display = v.GetString("display")
	}
	if v.IsSet("real-display") {
		opts.realDisplay = v.GetString("real-display")
	}
	if v.IsSet("deny-extensions") {
		opts.denyExtensions = v.GetBool("deny-extensions")
	}
	if v.IsSet("max-list-length") {
		opts.maxListLength = v.GetInt("max-list-length")
	}
	if v.IsSet("timestamp") {
		opts.timestampMode = v.GetString("timestamp")
	}
	if v.IsSet("proto-path") {
		opts.protoSearchPath = v.GetStringSlice("proto-path")
	}
	if v.IsSet("metrics-addr") {
		opts.metricsAddr = v.GetString("metrics-addr")
	}
	if v.IsSet("interactive") {
		opts.interactive = v.GetBool("interactive")
	}
	if v.IsSet("log-level") {
		opts.logLevel = v.GetString("log-level")
	}
	if v.IsSet("no-color") {
		opts.noColor = v.GetBool("no-color")
	}
}

func timestampMode(s string) output.TimestampMode {
	switch strings.ToLower(s) {
	case "wall":
		return output.TimestampWallClock
	case "relative":
		return output.TimestampRelative
	case "delta":
		return output.TimestampMonotonicDelta
	default:
		return output.TimestampNone
	}
}

func runTrace(opts *runOptions, childArgs []string) error {
	if err := xlog.SetLevel(opts.logLevel); err != nil {
		return err
	}

	tables, err := loadTables(opts.protoSearchPath)
	if err != nil {
		return fmt.Errorf("loading .proto corpus: %w", err)
	}

	fakeSock, err := displaySocket(opts.display)
	if err != nil {
		return err
	}
	realSock, err := displaySocket(opts.realDisplay)
	if err != nil {
		return err
	}

	colorEnabled := !opts.noColor && term.IsTerminal(int(os.Stdout.Fd()))
	out := output.New(os.Stdout, timestampMode(opts.timestampMode), colorEnabled)

	if opts.metricsAddr != "" {
		go func() {
			if err := xmetrics.Serve(opts.metricsAddr); err != nil {
				xlog.Errorf("metrics listener stopped: %v", err)
			}
		}()
	}

	cfg := xproxy.Config{
		ListenNetwork:  "unix",
		ListenAddress:  fakeSock,
		DialNetwork:    "unix",
		DialAddress:    realSock,
		Tables:         tables,
		MaxListLength:  opts.maxListLength,
		DenyExtensions: opts.denyExtensions,
		Out:            out,
	}

	if opts.interactive {
		stepper, err := xproxy.NewStepper()
		if err != nil {
			return fmt.Errorf("entering interactive mode: %w", err)
		}
		defer stepper.Close()
		cfg.Gate = stepper.Gate
	}

	srv, err := xproxy.Listen(cfg)
	if err != nil {
		return fmt.Errorf("listening on fake display %s: %w", opts.display, err)
	}
	defer srv.Close()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve() }()

	var proc *launch.Process
	if len(childArgs) > 0 {
		proc, err = launchChild(opts, childArgs)
		if err != nil {
			return err
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return err
	case <-sig:
		if proc != nil {
			proc.Kill()
		}
		return nil
	}
}

func launchChild(opts *runOptions, args []string) (*launch.Process, error) {
	authPath := ""
	if path, err := xauth.Path(); err == nil {
		if entries, err := xauth.Load(path); err == nil {
			if num, err := parseDisplayNumber(opts.realDisplay); err == nil {
				hostname, _ := os.Hostname()
				if entry, ok := xauth.FindLocal(entries, hostname, fmt.Sprint(num)); ok {
					fakeNum, _ := parseDisplayNumber(opts.display)
					tmp, err := os.CreateTemp("", "xtrace-xauth-*")
					if err == nil {
						tmp.Write(xauth.Encode(entry, hostname, fmt.Sprint(fakeNum)))
						tmp.Close()
						authPath = tmp.Name()
					}
				}
			}
		}
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Env = launch.Environ(opts.display, authPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return launch.New(cmd)
}

func loadTables(extraSearchPath []string) (*protodesc.Tables, error) {
	if len(extraSearchPath) == 0 {
		return protoparse.LoadEmbedded()
	}
	return protoparse.LoadDir(extraSearchPath, "all.proto")
}


