package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"walker/internal/config"
	werrors "walker/internal/errors"
	"walker/internal/paths"
	"walker/internal/slogutil"
	"walker/internal/storage"
)

// getRepoRoot returns the repository root directory.
func getRepoRoot() (string, error) {
	if repoFlag != "" {
		return paths.FindRepoRoot(repoFlag)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return paths.FindRepoRoot(wd)
}

// mustGetRepoRoot returns the repository root or exits on error.
func mustGetRepoRoot() string {
	repoRoot, err := getRepoRoot()
	if err != nil {
		exitWithError("locating repository", err)
	}
	return repoRoot
}

// mustLoadConfig loads the repo configuration or exits on error.
func mustLoadConfig(repoRoot string) *config.Config {
	cfg, err := config.LoadConfig(repoRoot)
	if err != nil {
		exitWithError("loading config", err)
	}
	return cfg
}

// loggerLevel picks the level: -v/-vv/--quiet when given, else the config.
func loggerLevel(cfg *config.Config) slog.Level {
	if verboseFlag > 0 || quietFlag {
		return slogutil.LevelFromVerbosity(verboseFlag, quietFlag)
	}
	return slogutil.LevelFromString(cfg.Logging.Level)
}

// newLogger builds the command logger. The closer flushes the optional log
// file and must be closed before exit.
func newLogger(cfg *config.Config, repoRoot string) (*slog.Logger, io.Closer) {
	opts := slogutil.Options{
		Level:      loggerLevel(cfg),
		Format:     cfg.Logging.Format,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
	}
	if cfg.Logging.File != "" {
		opts.File = paths.Abs(cfg.Logging.File, repoRoot)
	}

	logger, closer, err := slogutil.Setup(os.Stderr, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cannot open log file %s: %v\n", opts.File, err)
		opts.File = ""
		logger, closer, _ = slogutil.Setup(os.Stderr, opts)
	}
	return logger, closer
}

// openStorage opens the snapshot database configured for repoRoot.
func openStorage(cfg *config.Config, repoRoot string, logger *slog.Logger) (*storage.DB, error) {
	return storage.Open(cfg.StoragePath(repoRoot), logger)
}

// newContext returns a context cancelled on SIGINT or SIGTERM.
func newContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// exitWithError prints err with any suggested fixes and exits with status 1.
func exitWithError(action string, err error) {
	printError(os.Stderr, action, err)
	os.Exit(1)
}

func printError(w io.Writer, action string, err error) {
	fmt.Fprintf(w, "Error %s: %v\n", action, err)
	var werr *werrors.WalkerError
	if !errors.As(err, &werr) {
		return
	}
	for _, fix := range werr.SuggestedFixes {
		if fix.Command != "" {
			fmt.Fprintf(w, "  try: %s\n", fix.Command)
		} else if fix.Description != "" {
			fmt.Fprintf(w, "  hint: %s\n", fix.Description)
		}
	}
}
