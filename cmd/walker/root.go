package main

import (
	"github.com/spf13/cobra"

	"walker/internal/version"
)

var (
	// repoFlag overrides repository root detection
	repoFlag    string
	verboseFlag int
	quietFlag   bool
)

var rootCmd = &cobra.Command{
	Use:   "walker",
	Short: "walker - incremental include/require dependency tracking",
	Long: `walker finds the include and require statements in Stylus, CoffeeScript and
JavaScript sources, resolves them to files on disk and keeps a reverse
dependency graph, so a change to one file tells you every file that has to be
rebuilt because of it.`,
	Version:       version.Info(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("walker version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", "",
		"Repository root (default: nearest parent with .walker or .git)")
	rootCmd.PersistentFlags().CountVarP(&verboseFlag, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress all log output")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version.Full())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
