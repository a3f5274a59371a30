// Package main is the entry point for the levelbus command.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dshills/levelbus/internal/config"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// errHelp is returned by parseFlags after printing usage or version.
var errHelp = errors.New("help requested")

// Send modes selected with -mode.
const (
	modeExact       = "exact"
	modeDescendants = "descendants"
	modeAncestors   = "ancestors"
)

type options struct {
	configPath string
	logLevel   string
	script     string
	send       string
	data       string
	mode       string
	deferred   bool
	noSelf     bool
	watch      bool
	stats      bool
	traces     stringList
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	os.Exit(run())
}

func run() int {
	opts, err := parseFlags(os.Args[1:], os.Stdout, os.Stderr)
	if err != nil {
		if errors.Is(err, errHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		return 1
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 2
		}
	}

	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// Handle signals for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	once := func() int {
		return execute(ctx, cfg, opts, logger, os.Stdout)
	}
	if opts.watch {
		return watchScript(ctx, opts.script, logger, once)
	}
	return once()
}

func parseFlags(args []string, stdout, stderr io.Writer) (options, error) {
	var opts options
	var showVersion bool

	fs := flag.NewFlagSet("levelbus", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.configPath, "config", config.DefaultPath, "Path to configuration file")
	fs.StringVar(&opts.configPath, "c", config.DefaultPath, "Path to configuration file (shorthand)")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	fs.StringVar(&opts.send, "send", "", "Dotted path to send to after the script runs")
	fs.StringVar(&opts.data, "data", "", "JSON payload for -send")
	fs.StringVar(&opts.mode, "mode", modeExact, "Send shape (exact, descendants, ancestors)")
	fs.BoolVar(&opts.deferred, "deferred", false, "Queue the -send delivery instead of running it inline")
	fs.BoolVar(&opts.noSelf, "no-self", false, "Exclude the target level from descendant and ancestor sends")
	fs.Var(&opts.traces, "trace", "Print deliveries at this path as JSON lines (repeatable)")
	fs.BoolVar(&opts.watch, "watch", false, "Rerun the script whenever it changes")
	fs.BoolVar(&opts.stats, "stats", false, "Print space statistics as JSON on exit")
	fs.BoolVar(&showVersion, "version", false, "Show version information")
	fs.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "levelbus - hierarchical event space runner\n\n")
		fmt.Fprintf(stderr, "Usage: levelbus [options] [script.lua]\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  levelbus app.lua                          Run a script\n")
		fmt.Fprintf(stderr, "  levelbus -trace app -send app.window       Trace one send\n")
		fmt.Fprintf(stderr, "  levelbus -watch -stats app.lua            Rerun on every save\n")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return opts, errHelp
		}
		return opts, err
	}

	if showVersion {
		fmt.Fprintf(stdout, "levelbus %s\n", version)
		fmt.Fprintf(stdout, "Commit: %s\n", commit)
		fmt.Fprintf(stdout, "Built: %s\n", date)
		return opts, errHelp
	}

	switch opts.mode {
	case modeExact, modeDescendants, modeAncestors:
	default:
		return opts, fmt.Errorf("invalid mode %q (must be exact, descendants, or ancestors)", opts.mode)
	}

	switch fs.NArg() {
	case 0:
	case 1:
		opts.script = fs.Arg(0)
	default:
		return opts, fmt.Errorf("expected at most one script, got %d", fs.NArg())
	}

	if opts.watch && opts.script == "" {
		return opts, errors.New("-watch requires a script")
	}
	if opts.data != "" && opts.send == "" {
		return opts, errors.New("-data requires -send")
	}
	return opts, nil
}
