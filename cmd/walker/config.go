package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"walker/internal/config"
	"walker/internal/strategy"
)

var configFormat string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect walker configuration",
	Long:  "View the configuration loaded from .walker/config.{json,yaml,toml} and the environment",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Display the configuration after defaults, the config file and environment
overrides are applied.

Examples:
  walker config show
  walker config show --format yaml
  walker config show --format toml > .walker/config.toml`,
	Run: runConfigShow,
}

var configEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "List supported environment variables",
	Run:   runConfigEnv,
}

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "human", "Output format (human, json, yaml, toml)")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEnvCmd)
	rootCmd.AddCommand(configCmd)
}

// ConfigShowResponse is the JSON and YAML form of config show.
type ConfigShowResponse struct {
	ConfigPath   string               `json:"configPath,omitempty" yaml:"configPath,omitempty"`
	UsedDefaults bool                 `json:"usedDefaults" yaml:"usedDefaults"`
	EnvOverrides []config.EnvOverride `json:"envOverrides,omitempty" yaml:"envOverrides,omitempty"`
	Config       *config.Config       `json:"config" yaml:"config"`
}

func runConfigShow(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()

	result, err := config.LoadConfigWithDetails(repoRoot)
	if err != nil {
		exitWithError("loading config", err)
	}
	if err := writeConfig(os.Stdout, result, configFormat); err != nil {
		exitWithError("formatting config", err)
	}
}

func writeConfig(w io.Writer, result *config.LoadResult, format string) error {
	resp := ConfigShowResponse{
		ConfigPath:   result.ConfigPath,
		UsedDefaults: result.UsedDefaults,
		EnvOverrides: result.EnvOverrides,
		Config:       result.Config,
	}

	switch format {
	case "json":
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(resp); err != nil {
			return err
		}
		return enc.Close()
	case "toml":
		// Only the config itself: the output is meant to be loadable.
		return toml.NewEncoder(w).SetIndentTables(true).Encode(result.Config)
	case "human":
		writeConfigHuman(w, result)
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func writeConfigHuman(w io.Writer, result *config.LoadResult) {
	cfg := result.Config
	defaults := config.DefaultConfig()

	fmt.Fprintln(w, "walker Configuration")
	fmt.Fprintln(w, strings.Repeat("─", 50))
	if result.UsedDefaults {
		fmt.Fprintln(w, "Source: defaults (no config file found)")
	} else {
		fmt.Fprintf(w, "Source: %s\n", result.ConfigPath)
	}
	if len(result.EnvOverrides) > 0 {
		fmt.Fprintln(w, "\nEnvironment Overrides:")
		for _, ov := range result.EnvOverrides {
			fmt.Fprintf(w, "  %s=%s → %s\n", ov.EnvVar, ov.Value, ov.Path)
		}
	}
	fmt.Fprintln(w)

	printConfigSection(w, "version", cfg.Version, defaults.Version)
	printConfigSection(w, "sources", strings.Join(cfg.Sources, ", "), strings.Join(defaults.Sources, ", "))
	printConfigSection(w, "ignore", strings.Join(cfg.Ignore, ", "), strings.Join(defaults.Ignore, ", "))

	fmt.Fprintln(w, "\nfinders:")
	printChains(w, cfg.Finders)
	fmt.Fprintln(w, "\nresolvers:")
	printChains(w, cfg.Resolvers)

	fmt.Fprintln(w, "\npipeline:")
	printConfigSection(w, "  stopOnFirstRun", cfg.Pipeline.StopOnFirstRun, defaults.Pipeline.StopOnFirstRun)

	fmt.Fprintln(w, "\nwatch:")
	printConfigSection(w, "  debounceMs", cfg.Watch.DebounceMs, defaults.Watch.DebounceMs)
	printConfigSection(w, "  metricsAddr", valueOrDefault(cfg.Watch.MetricsAddr, "(disabled)"), "(disabled)")

	fmt.Fprintln(w, "\nstorage:")
	printConfigSection(w, "  path", cfg.Storage.Path, defaults.Storage.Path)
	printConfigSection(w, "  keepSessions", cfg.Storage.KeepSessions, defaults.Storage.KeepSessions)

	fmt.Fprintln(w, "\nlogging:")
	printConfigSection(w, "  level", cfg.Logging.Level, defaults.Logging.Level)
	printConfigSection(w, "  format", cfg.Logging.Format, defaults.Logging.Format)
	printConfigSection(w, "  file", valueOrDefault(cfg.Logging.File, "(stderr only)"), "(stderr only)")

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Use 'walker config show --format json' for full configuration")
	fmt.Fprintln(w, "Use 'walker config env' to see supported environment variables")
}

func printChains(w io.Writer, chains map[string][]strategy.Spec) {
	exts := make([]string, 0, len(chains))
	for ext := range chains {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	for _, ext := range exts {
		names := make([]string, len(chains[ext]))
		for i, s := range chains[ext] {
			names[i] = s.Name
		}
		fmt.Fprintf(w, "  %s: %s\n", ext, strings.Join(names, " → "))
	}
}

func printConfigSection(w io.Writer, name string, value, defaultValue interface{}) {
	modified := ""
	if !isEqual(value, defaultValue) {
		modified = fmt.Sprintf(" (default: %v)", defaultValue)
	}
	fmt.Fprintf(w, "%s: %v%s\n", name, value, modified)
}

func isEqual(a, b interface{}) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

type envVarInfo struct {
	name    string
	desc    string
	varType string
}

var envVarDocs = []envVarInfo{
	{config.ConfigPathEnv, "Path to a config file (json, yaml or toml)", "string"},
	{"WALKER_LOG_LEVEL", "Log level (debug, info, warn, error)", "string"},
	{"WALKER_LOG_FORMAT", "Log format (text, json)", "string"},
	{"WALKER_LOG_FILE", "Also write logs to this file", "string"},
	{"WALKER_STOP_ON_FIRST_RUN", "Hold back files on their first analysis", "bool"},
	{"WALKER_WATCH_DEBOUNCE_MS", "Watch quiet period in milliseconds", "int"},
	{"WALKER_METRICS_ADDR", "Prometheus listen address for watch", "string"},
	{"WALKER_STORAGE_PATH", "Snapshot database path", "string"},
}

func runConfigEnv(cmd *cobra.Command, args []string) {
	writeEnvHelp(os.Stdout)
}

func writeEnvHelp(w io.Writer) {
	fmt.Fprintln(w, "Supported walker Environment Variables")
	fmt.Fprintln(w, strings.Repeat("─", 50))
	fmt.Fprintln(w)
	for _, v := range envVarDocs {
		fmt.Fprintf(w, "  %-26s %s (%s)\n", v.name, v.desc, v.varType)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Example usage:")
	fmt.Fprintln(w, "  WALKER_LOG_LEVEL=debug walker scan")
}
