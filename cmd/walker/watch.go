package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"walker/internal/analyzer"
	"walker/internal/config"
	"walker/internal/metrics"
	"walker/internal/paths"
	"walker/internal/pipeline"
	"walker/internal/slogutil"
	"walker/internal/watcher"
)

var (
	watchDebounce       int
	watchMetricsAddr    string
	watchStopOnFirstRun bool
	watchSave           bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [glob...]",
	Short: "Watch sources and print the files to rebuild on each change",
	Long: `Run every source file through the change pipeline once, then watch the
repository. On each batch of changes the changed files go through the
pipeline again and every emitted file (the change plus the files that include
it) is printed, one repo-relative path per line.

Examples:
  walker watch
  walker watch 'src/**/*.coffee' --debounce 100
  walker watch --metrics-addr 127.0.0.1:9464`,
	Run: runWatch,
}

func init() {
	watchCmd.Flags().IntVar(&watchDebounce, "debounce", 0, "Quiet period in ms before a batch is processed (default from config)")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	watchCmd.Flags().BoolVar(&watchStopOnFirstRun, "stop-on-first-run", true, "Do not emit files on their first analysis")
	watchCmd.Flags().BoolVar(&watchSave, "save", false, "Save the session snapshot on exit")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)
	if cmd.Flags().Changed("debounce") {
		cfg.Watch.DebounceMs = watchDebounce
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.Watch.MetricsAddr = watchMetricsAddr
	}
	if cmd.Flags().Changed("stop-on-first-run") {
		cfg.Pipeline.StopOnFirstRun = watchStopOnFirstRun
	}

	logger, closer := newLogger(cfg, repoRoot)
	defer closer.Close()

	ctx, cancel := newContext()
	defer cancel()

	if err := watchRepo(ctx, repoRoot, cfg, args, os.Stdout, logger); err != nil {
		exitWithError("watching", err)
	}
}

// watchRepo runs until ctx is done. Emitted files are written to out.
func watchRepo(ctx context.Context, repoRoot string, cfg *config.Config, patterns []string, out io.Writer, logger *slog.Logger) error {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	if len(patterns) == 0 {
		patterns = cfg.Sources
	}
	sources, err := newSourceSet(repoRoot, patterns, cfg.Ignore)
	if err != nil {
		return err
	}

	a, err := analyzer.New(cfg.Config, nil, logger)
	if err != nil {
		return err
	}
	m := metrics.New()
	p := pipeline.New(a, pipeline.Options{StopOnFirstRun: cfg.Pipeline.StopOnFirstRun}, m, logger)
	emit := func(files []pipeline.File) {
		for _, f := range files {
			fmt.Fprintln(out, paths.Display(f.Path, repoRoot))
		}
	}

	files, err := sources.Expand()
	if err != nil {
		return err
	}
	for _, f := range files {
		emitted, err := p.ProcessPath(ctx, f, repoRoot)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("Initial analysis failed", "file", f, "error", err)
			continue
		}
		emit(emitted)
	}
	logger.Info("Initial pass complete", "files", len(files), "session", a.State().SessionID)

	var srv *http.Server
	if cfg.Watch.MetricsAddr != "" {
		srv = startMetricsServer(cfg.Watch.MetricsAddr, m, logger)
	}

	ignore := append(watcher.DefaultConfig().IgnorePatterns, cfg.Ignore...)
	w, err := watcher.New(repoRoot, watcher.Config{DebounceMs: cfg.Watch.DebounceMs, IgnorePatterns: ignore}, logger,
		func(events []watcher.Event) {
			for _, path := range watcher.ChangedPaths(events) {
				if !sources.Match(path) {
					continue
				}
				emitted, err := p.ProcessPath(ctx, path, repoRoot)
				if err != nil {
					logger.Warn("Failed to process change", "file", path, "error", err)
					continue
				}
				emit(emitted)
			}
		})
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	stats := w.Stats()
	logger.Info("Watching", "root", w.Root(), "dirs", stats["watchedDirs"],
		"debounceMs", stats["debounceMs"], "ignorePatterns", stats["ignorePatterns"])

	<-ctx.Done()
	if err := w.Stop(); err != nil {
		logger.Warn("Watcher stop failed", "error", err)
	}
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown failed", "error", err)
		}
	}

	if watchSave {
		return saveSession(repoRoot, cfg, p, logger)
	}
	return nil
}

func startMetricsServer(addr string, m *metrics.Metrics, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	m.RegisterMetricsEndpoint(mux)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err)
		}
	}()
	return srv
}

func saveSession(repoRoot string, cfg *config.Config, p *pipeline.Pipeline, logger *slog.Logger) error {
	db, err := openStorage(cfg, repoRoot, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return p.Snapshot(func(state *analyzer.State) error {
		return db.SaveSnapshot(ctx, repoRoot, state)
	})
}
