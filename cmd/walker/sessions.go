package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"walker/internal/storage"
)

var (
	sessionsFormat string
	sessionsPrune  int
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List saved sessions",
	Long: `List the sessions saved by 'walker scan --save' and 'walker watch --save',
newest first. --prune N keeps only the newest N.`,
	Run: runSessions,
}

func init() {
	sessionsCmd.Flags().StringVar(&sessionsFormat, "format", "human", "Output format (json, human)")
	sessionsCmd.Flags().IntVar(&sessionsPrune, "prune", -1, "Delete all but the newest N sessions")
	rootCmd.AddCommand(sessionsCmd)
}

// SessionsResponse is the output of `walker sessions`.
type SessionsResponse struct {
	Sessions []storage.SessionInfo `json:"sessions"`
	Pruned   int                   `json:"pruned,omitempty"`
}

func runSessions(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)
	logger, closer := newLogger(cfg, repoRoot)
	defer closer.Close()

	db, err := openStorage(cfg, repoRoot, logger)
	if err != nil {
		exitWithError("opening storage", err)
	}
	defer db.Close()

	ctx, cancel := newContext()
	defer cancel()

	resp := &SessionsResponse{}
	if sessionsPrune >= 0 {
		n, err := db.PruneSessions(ctx, sessionsPrune)
		if err != nil {
			exitWithError("pruning sessions", err)
		}
		resp.Pruned = n
	}
	resp.Sessions, err = db.ListSessions(ctx)
	if err != nil {
		exitWithError("listing sessions", err)
	}

	output, err := FormatResponse(resp, OutputFormat(sessionsFormat))
	if err != nil {
		exitWithError("formatting output", err)
	}
	fmt.Fprintln(os.Stdout, output)
}
