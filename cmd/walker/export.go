package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"walker/internal/export"
	"walker/internal/storage"
)

var (
	exportFormat   string
	exportCompress bool
	exportOutput   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the saved dependency graph",
	Long: `Render the latest saved session as JSON, Graphviz DOT, Mermaid or text.

Examples:
  walker export
  walker export --format dot -o deps.dot
  walker export --format json --compress -o deps.json.zst`,
	Run: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "text", "Output format (json, dot, mermaid, text)")
	exportCmd.Flags().BoolVar(&exportCompress, "compress", false, "zstd-compress the output")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) {
	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		exitWithError("parsing flags", err)
	}

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

	var out io.Writer = os.Stdout
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			exitWithError("creating output", err)
		}
		defer f.Close()
		out = f
	}

	if err := exportSnapshot(ctx, db, repoRoot, out, format, exportCompress); err != nil {
		exitWithError("exporting", err)
	}
	logger.Info("Export complete", "format", string(format), "compressed", exportCompress, "output", exportOutput)
}

func exportSnapshot(ctx context.Context, db *storage.DB, repoRoot string, w io.Writer, format export.Format, compress bool) error {
	snap, err := db.LoadLatestSnapshot(ctx, repoRoot)
	if err != nil {
		return err
	}
	meta := export.Metadata{
		SessionID: snap.SessionID,
		RepoRoot:  repoRoot,
		Generated: time.Now().UTC(),
	}
	return export.NewExporter(meta, snap.State().Graph, snap.Unresolved).Write(w, format, compress)
}
