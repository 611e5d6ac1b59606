// Portctl switches a single UniFi switch port between two port
// configuration profiles, typically one that powers the port up and one
// that shuts it down.
//
// Usage:
//
//	portctl --config-file-path <path> --port-number <n> up|down
//	portctl --version
//
// The config file supplies the controller URL, credentials, the target
// device and the two profile IDs (see package config). A port number of
// zero or less is accepted and does nothing.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/nugget/portctl/internal/buildinfo"
	"github.com/nugget/portctl/internal/config"
	"github.com/nugget/portctl/internal/unifi"
)

// Profile selectors accepted as the positional argument.
const (
	profileUp   = "up"
	profileDown = "down"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run] so the whole
// command can be driven from tests.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Stderr, os.Args[1:])
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// options holds the parsed command line.
type options struct {
	configPath  string
	port        int
	portSet     bool
	profile     string
	logLevel    string
	showVersion bool
	showHelp    bool
}

// run is the real entry point. stdout receives help and version output;
// stderr receives structured logs. The returned error, if any, is what
// main prints before exiting non-zero.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}
	if opts.showHelp {
		return printUsage(stdout)
	}
	if opts.showVersion {
		fmt.Fprintln(stdout, buildinfo.String())
		return nil
	}
	if err := opts.validate(); err != nil {
		return err
	}

	cfgPath, err := config.Resolve(opts.configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	levelName := cfg.LogLevel
	if opts.logLevel != "" {
		levelName = opts.logLevel
	}
	level, err := config.ParseLogLevel(levelName)
	if err != nil {
		return err
	}
	logger := config.NewLogger(stderr, level, cfg.LogFormat).With("run_id", newRunID())
	logger.Debug("config loaded", "path", cfgPath, "build", buildinfo.Info())

	if opts.port <= 0 {
		logger.Info("port number is not positive, nothing to do", "port", opts.port)
		return nil
	}

	client, err := unifi.NewClient(unifi.Config{
		BaseURL:            cfg.BaseURL,
		Site:               cfg.Site,
		Username:           cfg.Login,
		Password:           cfg.Password,
		PortProfileUp:      cfg.PortProfileUp,
		PortProfileDown:    cfg.PortProfileDown,
		Timeout:            cfg.Timeout,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}, logger)
	if err != nil {
		return err
	}

	return togglePort(ctx, client, cfg.DeviceID, opts.port, opts.profile)
}

// togglePort maps the profile selector onto exactly one port operation.
func togglePort(ctx context.Context, pc unifi.PortController, deviceID string, port int, profile string) error {
	switch profile {
	case profileUp:
		return pc.EnablePort(ctx, deviceID, port)
	case profileDown:
		return pc.DisablePort(ctx, deviceID, port)
	default:
		return fmt.Errorf("unknown profile %q (expected %s or %s)", profile, profileUp, profileDown)
	}
}

// parseArgs parses the command line by hand. The flag package relies on
// package-level globals, and the surface is small enough that manual
// parsing stays readable. Both "--flag value" and "--flag=value" work.
func parseArgs(args []string) (options, error) {
	var opts options

	for i := 0; i < len(args); i++ {
		arg := args[i]

		name, value, hasValue := arg, "", false
		if strings.HasPrefix(arg, "-") {
			name, value, hasValue = strings.Cut(arg, "=")
		}

		// takeValue returns the flag's value, consuming the next
		// argument when it was not given inline.
		takeValue := func() (string, error) {
			if hasValue {
				return value, nil
			}
			if i+1 >= len(args) {
				return "", fmt.Errorf("flag %s requires a value", name)
			}
			i++
			return args[i], nil
		}

		switch name {
		case "-c", "--config-file-path":
			v, err := takeValue()
			if err != nil {
				return opts, err
			}
			opts.configPath = v
		case "-p", "--port-number":
			v, err := takeValue()
			if err != nil {
				return opts, err
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return opts, fmt.Errorf("invalid port number %q: not an integer", v)
			}
			opts.port = n
			opts.portSet = true
		case "--log-level":
			v, err := takeValue()
			if err != nil {
				return opts, err
			}
			opts.logLevel = v
		case "-V", "--version":
			opts.showVersion = true
		case "-h", "-help", "--help":
			opts.showHelp = true
		default:
			if strings.HasPrefix(arg, "-") {
				return opts, fmt.Errorf("unknown flag: %s", arg)
			}
			if opts.profile != "" {
				return opts, fmt.Errorf("unexpected argument: %s", arg)
			}
			opts.profile = arg
		}
	}

	return opts, nil
}

// validate checks that every required argument is present and that the
// profile selector is legal.
func (o options) validate() error {
	var errs []error
	if o.configPath == "" {
		errs = append(errs, errors.New("missing required flag --config-file-path"))
	}
	if !o.portSet {
		errs = append(errs, errors.New("missing required flag --port-number"))
	}
	switch o.profile {
	case profileUp, profileDown:
	case "":
		errs = append(errs, fmt.Errorf("missing profile argument (%s or %s)", profileUp, profileDown))
	default:
		errs = append(errs, fmt.Errorf("invalid profile %q (expected %s or %s)", o.profile, profileUp, profileDown))
	}
	return errors.Join(errs...)
}

// newRunID returns an identifier that ties together the log records of
// one invocation.
func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// printUsage writes the help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "portctl - switch a UniFi switch port between two port profiles")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: portctl --config-file-path <path> --port-number <n> <up|down>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Arguments:")
	fmt.Fprintln(w, "  up     Apply the port_profile_up profile")
	fmt.Fprintln(w, "  down   Apply the port_profile_down profile")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -c, --config-file-path <path>  Config file (.yaml, .yml or .json may be omitted)")
	fmt.Fprintln(w, "  -p, --port-number <n>          Switch port index; 0 or less does nothing")
	fmt.Fprintln(w, "      --log-level <level>        trace, debug, info, warn or error")
	fmt.Fprintln(w, "  -V, --version                  Show version information")
	fmt.Fprintln(w, "  -h, --help                     Show this help")
	return nil
}
