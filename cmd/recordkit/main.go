// Command recordkit verifies evidence folders against their hash manifests
// and turns provider record exports into access-log spreadsheets.
//
// Usage:
//
//	recordkit [-config file] [-log-level level] <command> [flags] <args>
//
// Commands:
//
//	verify <folder>                         check every file against the folder manifest
//	check [-alg sha256|sha512] <file> <hash> compare one file with a hash
//	normalize <root>                        convert HTML exports and rename their folders
//	accesslogs <root|file>                  normalize and write enriched spreadsheets
//	template <folder>                       write a hashes.txt template
//	transform -provider name <path>         map a provider JSON export to spreadsheets
//	unzip <root>                            extract every zip in place and delete it
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/kimhsiao/recordkit/internal/app"
	"github.com/kimhsiao/recordkit/internal/config"
	apperrors "github.com/kimhsiao/recordkit/internal/errors"
	"github.com/kimhsiao/recordkit/internal/logging"
)

// Version is set at build time
var Version = "dev"

type command struct {
	usage string
	run   func(ctx context.Context, a *app.App, args []string, out io.Writer) error
}

const (
	usageVerify     = "verify <folder>"
	usageCheck      = "check [-alg sha256|sha512] <file> <hash>"
	usageNormalize  = "normalize <root>"
	usageAccessLogs = "accesslogs <root|file>"
	usageTemplate   = "template <folder>"
	usageTransform  = "transform -provider microsoft|telegram <path>"
	usageUnzip      = "unzip <root>"
)

var commands = map[string]command{
	"verify":     {usageVerify, runVerify},
	"check":      {usageCheck, runCheck},
	"normalize":  {usageNormalize, runNormalize},
	"accesslogs": {usageAccessLogs, runAccessLogs},
	"template":   {usageTemplate, runTemplate},
	"transform":  {usageTransform, runTransform},
	"unzip":      {usageUnzip, runUnzip},
}

var commandOrder = []string{"verify", "check", "normalize", "accesslogs", "template", "transform", "unzip"}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("recordkit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", os.Getenv(config.EnvPrefix+"CONFIG"), "TOML or YAML configuration file")
	logLevel := fs.String("log-level", "", "debug, info, warn or error (overrides the config)")
	version := fs.Bool("version", false, "print version and exit")
	fs.Usage = func() { usage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *version {
		fmt.Fprintf(stdout, "recordkit %s\n", Version)
		return 0
	}
	if fs.NArg() < 1 {
		usage(stderr, fs)
		return 1
	}

	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		fmt.Fprintf(stderr, "Error: unknown command %q\n\n", fs.Arg(0))
		usage(stderr, fs)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	logging.Init(stderr, logging.ParseLevel(cfg.Logging.Level))

	a, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return apperrors.ExitCode(err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logging.Warn("shutdown incomplete", map[string]interface{}{"error": err.Error()})
		}
	}()

	err = cmd.run(ctx, a, fs.Args()[1:], stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return apperrors.ExitCode(err)
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, "recordkit - evidence folder verification and access-log tooling\n\n")
	fmt.Fprintf(w, "Usage: recordkit [flags] <command> [args]\n\nFlags:\n")
	fs.PrintDefaults()
	fmt.Fprintf(w, "\nCommands:\n")
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %s\n", commands[name].usage)
	}
}

// positional parses flags for a subcommand and requires exactly n arguments.
func positional(fs *flag.FlagSet, args []string, n int, usage string) ([]string, error) {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "usage: recordkit "+usage, err)
	}
	if fs.NArg() != n {
		return nil, apperrors.New(apperrors.ErrInvalid, "usage: recordkit "+usage)
	}
	return fs.Args(), nil
}
