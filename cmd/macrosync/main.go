// Command macrosync polls an input container for documents, runs every macro
// they declare through an automation engine and uploads the results to an
// output container.
//
// Usage:
//
//	macrosync [-config file] [-once] [-dry-run]
//
// With no flags it runs until interrupted, using the default containers
// "input" and "output" and a connection descriptor from MACROSYNC_CONNECTION.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/input-output-hk/macrosync/config"
	mserrors "github.com/input-output-hk/macrosync/errors"
	"github.com/input-output-hk/macrosync/logging"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
	exitConfig  = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stderr io.Writer, opts ...appOption) int {
	fs := flag.NewFlagSet("macrosync", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "configuration file (.cue, .yaml or .json)")
	once := fs.Bool("once", false, "run a single poll cycle and exit")
	dryRun := fs.Bool("dry-run", false, "list pending documents without processing them")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %v\n", fs.Args())
		return exitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "macrosync: %v\n", err)
		return exitConfig
	}
	if *dryRun {
		cfg.DryRun = true
	}

	logCfg := logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Console: stderr}
	if cfg.LogFileEnabled() {
		logCfg.File = cfg.Log.File
	}
	logger, closer, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintf(stderr, "macrosync: %v\n", err)
		return exitConfig
	}
	defer closer.Close()

	a, err := newApp(ctx, cfg, logger, opts...)
	if err != nil {
		logger.Error("startup failed", "error", err, "code", mserrors.CodeOf(err))
		return exitCode(err)
	}

	if err := a.probe(ctx); err != nil {
		logger.Error("startup probe failed", "error", err, "code", mserrors.CodeOf(err))
		return exitCode(err)
	}

	if err := a.run(ctx, *once); err != nil {
		logger.Error("macrosync stopped", "error", err, "code", mserrors.CodeOf(err))
		return exitCode(err)
	}
	return exitOK
}

func exitCode(err error) int {
	switch mserrors.CodeOf(err) {
	case mserrors.CodeInvalidConfig, mserrors.CodeUnauthorized:
		return exitConfig
	}
	return exitFailure
}
