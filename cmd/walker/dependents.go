package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"walker/internal/paths"
	"walker/internal/storage"
)

var dependentsFormat string

var dependentsCmd = &cobra.Command{
	Use:   "dependents <file>",
	Short: "List the files that depend on a file",
	Long: `Load the latest saved session (see 'walker scan --save') and print every
file that includes the given file, directly or transitively.

Examples:
  walker dependents styles/base.styl
  walker dependents lib/util.js --format json`,
	Args: cobra.ExactArgs(1),
	Run:  runDependents,
}

func init() {
	dependentsCmd.Flags().StringVar(&dependentsFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(dependentsCmd)
}

// DependentsResponse is the output of `walker dependents`.
type DependentsResponse struct {
	File       string   `json:"file"`
	SessionID  string   `json:"sessionId"`
	Direct     []string `json:"direct"`
	Transitive []string `json:"transitive"`
	Known      bool     `json:"known"`
}

func runDependents(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)
	logger, closer := newLogger(cfg, repoRoot)
	defer closer.Close()

	target := dependentsTarget(args[0], repoRoot)

	db, err := openStorage(cfg, repoRoot, logger)
	if err != nil {
		exitWithError("opening storage", err)
	}
	defer db.Close()

	ctx, cancel := newContext()
	defer cancel()

	resp, err := queryDependents(ctx, db, repoRoot, target)
	if err != nil {
		exitWithError("loading dependents", err)
	}

	output, err := FormatResponse(resp, OutputFormat(dependentsFormat))
	if err != nil {
		exitWithError("formatting output", err)
	}
	fmt.Fprintln(os.Stdout, output)
}

// dependentsTarget anchors a relative file argument at the repository root
// so it matches the keys a saved session uses.
func dependentsTarget(arg, repoRoot string) string {
	return paths.Abs(arg, repoRoot)
}

func queryDependents(ctx context.Context, db *storage.DB, repoRoot, target string) (*DependentsResponse, error) {
	snap, err := db.LoadLatestSnapshot(ctx, repoRoot)
	if err != nil {
		return nil, err
	}
	state := snap.State()
	g := state.Graph

	return &DependentsResponse{
		File:       displayAll([]string{target}, repoRoot)[0],
		SessionID:  snap.SessionID,
		Direct:     displayAll(g.DirectDependents(target), repoRoot),
		Transitive: displayAll(g.Dependents(target), repoRoot),
		Known:      state.IsProcessed(target) || len(g.DirectDependents(target)) > 0,
	}, nil
}
