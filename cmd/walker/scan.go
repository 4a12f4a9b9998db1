package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"walker/internal/analyzer"
	"walker/internal/config"
	"walker/internal/depgraph"
	"walker/internal/paths"
	"walker/internal/slogutil"
)

var (
	scanSave   bool
	scanFormat string
)

var scanCmd = &cobra.Command{
	Use:   "scan [glob...]",
	Short: "Analyze source files and print their dependencies",
	Long: `Analyze every file matching the given globs (default: the configured sources)
in a fresh session and print what each file includes, what could not be
resolved and which files depend on it.

Examples:
  walker scan
  walker scan 'styles/**/*.styl'
  walker scan --save --format json`,
	Run: runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&scanSave, "save", false, "Save the session snapshot for dependents/export")
	scanCmd.Flags().StringVar(&scanFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(scanCmd)
}

// ScanResponse is the output of `walker scan`.
type ScanResponse struct {
	SessionID  string         `json:"sessionId"`
	RepoRoot   string         `json:"repoRoot"`
	Files      []FileReport   `json:"files"`
	Stats      depgraph.Stats `json:"stats"`
	Cycles     [][]string     `json:"cycles,omitempty"`
	Saved      bool           `json:"saved"`
	DurationMs int64          `json:"durationMs"`
}

// FileReport describes one analyzed file against the final graph.
type FileReport struct {
	File         string   `json:"file"`
	Dependencies []string `json:"dependencies"`
	Unresolved   []string `json:"unresolved,omitempty"`
	Dependents   []string `json:"dependents"`
	Skipped      bool     `json:"skipped,omitempty"`
}

func runScan(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)
	logger, closer := newLogger(cfg, repoRoot)
	defer closer.Close()

	ctx, cancel := newContext()
	defer cancel()

	resp, state, err := scanRepo(ctx, repoRoot, cfg, args, logger)
	if err != nil {
		exitWithError("scanning", err)
	}

	if scanSave {
		db, err := openStorage(cfg, repoRoot, logger)
		if err != nil {
			exitWithError("opening storage", err)
		}
		defer db.Close()
		if err := db.SaveSnapshot(ctx, repoRoot, state); err != nil {
			exitWithError("saving snapshot", err)
		}
		if cfg.Storage.KeepSessions > 0 {
			if n, err := db.PruneSessions(ctx, cfg.Storage.KeepSessions); err != nil {
				logger.Warn("Failed to prune old sessions", "error", err)
			} else if n > 0 {
				logger.Info("Pruned old sessions", "removed", n)
			}
		}
		resp.Saved = true
	}

	output, err := FormatResponse(resp, OutputFormat(scanFormat))
	if err != nil {
		exitWithError("formatting output", err)
	}
	fmt.Fprintln(os.Stdout, output)
}

// scanRepo reads the matching files concurrently and analyzes them one at a
// time in path order. Reports are built from the final graph, so every
// file's dependents are complete.
func scanRepo(ctx context.Context, repoRoot string, cfg *config.Config, patterns []string, logger *slog.Logger) (*ScanResponse, *analyzer.State, error) {
	start := time.Now()
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	if len(patterns) == 0 {
		patterns = cfg.Sources
	}
	sources, err := newSourceSet(repoRoot, patterns, cfg.Ignore)
	if err != nil {
		return nil, nil, err
	}
	files, err := sources.Expand()
	if err != nil {
		return nil, nil, err
	}
	contents, err := readSources(ctx, files)
	if err != nil {
		return nil, nil, err
	}

	a, err := analyzer.New(cfg.Config, nil, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("Scanning", "files", len(files), "extensions", a.Extensions())

	results := make([]*analyzer.Result, len(files))
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		results[i] = a.Analyze(string(contents[i]), f, repoRoot)
	}

	state := a.State()
	resp := &ScanResponse{
		SessionID: state.SessionID,
		RepoRoot:  repoRoot,
		Files:     make([]FileReport, 0, len(files)),
		Stats:     state.Graph.Stats(),
		Cycles:    state.Graph.Cycles(),
	}
	for _, res := range results {
		resp.Files = append(resp.Files, FileReport{
			File:         paths.Display(res.File, repoRoot),
			Dependencies: displayAll(a.Dependencies(res.File), repoRoot),
			Unresolved:   res.Unresolved,
			Dependents:   displayAll(a.Dependents(res.File), repoRoot),
			Skipped:      res.Skipped,
		})
	}
	for _, c := range resp.Cycles {
		logger.Warn("Include cycle", "files", displayAll(c, repoRoot))
	}
	resp.DurationMs = time.Since(start).Milliseconds()
	logger.Info("Scan complete", "files", len(files), "edges", resp.Stats.Edges, "duration_ms", resp.DurationMs)
	return resp, state, nil
}

func displayAll(list []string, repoRoot string) []string {
	out := make([]string, len(list))
	for i, p := range list {
		out[i] = paths.Display(p, repoRoot)
	}
	return out
}
