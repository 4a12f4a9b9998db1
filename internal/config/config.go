package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"walker/internal/analyzer"
	werrors "walker/internal/errors"
	"walker/internal/slogutil"
	"walker/internal/strategy"
)

// CurrentVersion is the config schema version this build understands.
const CurrentVersion = 1

// ConfigPathEnv names a config file to load instead of the repo's own.
const ConfigPathEnv = "WALKER_CONFIG_PATH"

// keyDelimiter replaces viper's "." so extension keys such as ".styl" stay
// single keys.
const keyDelimiter = "::"

// configNames are tried in order inside <repo>/.walker.
var configNames = []string{"config.json", "config.yaml", "config.yml", "config.toml"}

// Config represents the complete walker configuration.
type Config struct {
	Version int      `json:"version" mapstructure:"version" yaml:"version" toml:"version"`
	Sources []string `json:"sources" mapstructure:"sources" yaml:"sources" toml:"sources"`
	Ignore  []string `json:"ignore" mapstructure:"ignore" yaml:"ignore" toml:"ignore"`

	analyzer.Config `mapstructure:",squash" yaml:",inline"`

	Pipeline PipelineConfig `json:"pipeline" mapstructure:"pipeline" yaml:"pipeline" toml:"pipeline"`
	Watch    WatchConfig    `json:"watch" mapstructure:"watch" yaml:"watch" toml:"watch"`
	Storage  StorageConfig  `json:"storage" mapstructure:"storage" yaml:"storage" toml:"storage"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging" yaml:"logging" toml:"logging"`
}

// PipelineConfig controls the change pipeline.
type PipelineConfig struct {
	StopOnFirstRun bool `json:"stopOnFirstRun" mapstructure:"stopOnFirstRun" yaml:"stopOnFirstRun" toml:"stopOnFirstRun"`
}

// WatchConfig controls `walker watch`.
type WatchConfig struct {
	DebounceMs  int    `json:"debounceMs" mapstructure:"debounceMs" yaml:"debounceMs" toml:"debounceMs"`
	MetricsAddr string `json:"metricsAddr" mapstructure:"metricsAddr" yaml:"metricsAddr" toml:"metricsAddr"`
}

// StorageConfig locates the snapshot database. A relative path is taken
// from the repo root.
type StorageConfig struct {
	Path         string `json:"path" mapstructure:"path" yaml:"path" toml:"path"`
	KeepSessions int    `json:"keepSessions" mapstructure:"keepSessions" yaml:"keepSessions" toml:"keepSessions"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `json:"level" mapstructure:"level" yaml:"level" toml:"level"`
	Format     string `json:"format" mapstructure:"format" yaml:"format" toml:"format"`
	File       string `json:"file,omitempty" mapstructure:"file" yaml:"file,omitempty" toml:"file,omitempty"`
	MaxSize    string `json:"maxSize,omitempty" mapstructure:"maxSize" yaml:"maxSize,omitempty" toml:"maxSize,omitempty"`
	MaxBackups int    `json:"maxBackups,omitempty" mapstructure:"maxBackups" yaml:"maxBackups,omitempty" toml:"maxBackups,omitempty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Sources: []string{"**/*.styl", "**/*.coffee", "**/*.cjsx", "**/*.js", "**/*.jsx"},
		Ignore:  []string{"node_modules/**", ".git/**", ".walker/**"},
		Config:  analyzer.DefaultConfig(),
		Pipeline: PipelineConfig{
			StopOnFirstRun: true,
		},
		Watch: WatchConfig{
			DebounceMs: 200,
		},
		Storage: StorageConfig{
			Path:         filepath.Join(".walker", "walker.db"),
			KeepSessions: 5,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: slogutil.FormatText,
		},
	}
}

// LoadResult describes where a configuration came from.
type LoadResult struct {
	Config       *Config
	ConfigPath   string
	UsedDefaults bool
	EnvOverrides []EnvOverride
}

// LoadConfig loads the repo configuration with env overrides applied.
func LoadConfig(repoRoot string) (*Config, error) {
	result, err := LoadConfigWithDetails(repoRoot)
	if err != nil {
		return nil, err
	}
	return result.Config, nil
}

// LoadConfigWithDetails loads configuration from WALKER_CONFIG_PATH when set,
// otherwise from the first of .walker/config.{json,yaml,yml,toml}. Without a
// file the defaults are used. Env overrides are applied last.
func LoadConfigWithDetails(repoRoot string) (*LoadResult, error) {
	result := &LoadResult{}

	path := os.Getenv(ConfigPathEnv)
	if path == "" {
		path = findConfigFile(repoRoot)
	}

	if path == "" {
		result.Config = DefaultConfig()
		result.UsedDefaults = true
	} else {
		cfg, err := loadConfigFromPath(path)
		if err != nil {
			return nil, err
		}
		result.Config = cfg
		result.ConfigPath = path
	}

	result.EnvOverrides = applyEnvOverrides(result.Config)
	if err := result.Config.Validate(); err != nil {
		return nil, werrors.New(werrors.ConfigInvalid, "invalid configuration", err).
			WithDetails(map[string]interface{}{"path": result.ConfigPath})
	}
	return result, nil
}

func findConfigFile(repoRoot string) string {
	for _, name := range configNames {
		p := filepath.Join(repoRoot, ".walker", name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// loadConfigFromPath reads one config file. Scalar sections overlay the
// defaults; finder and resolver chains merge index-wise over the built-in
// chains.
func loadConfigFromPath(path string) (*Config, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, werrors.New(werrors.ConfigInvalid, fmt.Sprintf("cannot read config %s", path), err)
	}

	cfg := DefaultConfig()
	cfg.Config = analyzer.Config{}
	if err := v.Unmarshal(cfg, replaceSlices); err != nil {
		return nil, werrors.New(werrors.ConfigInvalid, fmt.Sprintf("cannot decode config %s", path), err)
	}

	merged, err := analyzer.MergeConfig(analyzer.DefaultConfig(), cfg.Config)
	if err != nil {
		return nil, werrors.New(werrors.ConfigInvalid, fmt.Sprintf("invalid strategy chains in %s", path), err)
	}
	cfg.Config = merged
	return cfg, nil
}

// replaceSlices makes a list in the file replace the default list instead of
// overwriting it element by element.
func replaceSlices(dc *mapstructure.DecoderConfig) {
	dc.ZeroFields = true
}

// Save writes the configuration to .walker/config.json
func (c *Config) Save(repoRoot string) error {
	dir := filepath.Join(repoRoot, ".walker")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks field values that the loaders cannot type-check.
func (c *Config) Validate() error {
	var errs []error
	if c.Version != CurrentVersion {
		errs = append(errs, &ConfigError{Field: "version", Message: fmt.Sprintf("unsupported config version %d", c.Version)})
	}
	if !slogutil.IsValidLevel(c.Logging.Level) {
		errs = append(errs, &ConfigError{Field: "logging.level", Message: fmt.Sprintf("unknown level %q", c.Logging.Level)})
	}
	if c.Logging.Format != slogutil.FormatText && c.Logging.Format != slogutil.FormatJSON {
		errs = append(errs, &ConfigError{Field: "logging.format", Message: fmt.Sprintf("unknown format %q", c.Logging.Format)})
	}
	if c.Logging.MaxBackups < 0 {
		errs = append(errs, &ConfigError{Field: "logging.maxBackups", Message: "must not be negative"})
	}
	if c.Watch.DebounceMs < 0 {
		errs = append(errs, &ConfigError{Field: "watch.debounceMs", Message: "must not be negative"})
	}
	if c.Storage.Path == "" {
		errs = append(errs, &ConfigError{Field: "storage.path", Message: "must not be empty"})
	}
	if c.Storage.KeepSessions < 0 {
		errs = append(errs, &ConfigError{Field: "storage.keepSessions", Message: "must not be negative"})
	}
	for _, kind := range []struct {
		field  string
		chains map[string][]strategy.Spec
	}{
		{"finders", c.Finders},
		{"resolvers", c.Resolvers},
	} {
		for _, ext := range sortedKeys(kind.chains) {
			for i, spec := range kind.chains[ext] {
				if spec.Name == "" {
					errs = append(errs, &ConfigError{
						Field:   fmt.Sprintf("%s.%s[%d]", kind.field, ext, i),
						Message: "strategy name is required",
					})
				}
			}
		}
	}
	return errors.Join(errs...)
}

// StoragePath returns the snapshot database path for repoRoot.
func (c *Config) StoragePath(repoRoot string) string {
	if filepath.IsAbs(c.Storage.Path) {
		return c.Storage.Path
	}
	return filepath.Join(repoRoot, c.Storage.Path)
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}

// EnvOverride records one environment variable applied over the config.
type EnvOverride struct {
	EnvVar string `json:"envVar"`
	Path   string `json:"path"`
	Value  string `json:"value"`
}

// envVarMappings maps environment variables to config paths.
var envVarMappings = map[string]string{
	"WALKER_LOG_LEVEL":         "logging.level",
	"WALKER_LOG_FORMAT":        "logging.format",
	"WALKER_LOG_FILE":          "logging.file",
	"WALKER_STOP_ON_FIRST_RUN": "pipeline.stopOnFirstRun",
	"WALKER_WATCH_DEBOUNCE_MS": "watch.debounceMs",
	"WALKER_METRICS_ADDR":      "watch.metricsAddr",
	"WALKER_STORAGE_PATH":      "storage.path",
}

// GetSupportedEnvVars lists the override variables, sorted.
func GetSupportedEnvVars() []string {
	return sortedKeys(envVarMappings)
}

// applyEnvOverrides applies every set override variable in name order.
// Values that do not parse for their field are skipped.
func applyEnvOverrides(cfg *Config) []EnvOverride {
	var applied []EnvOverride
	for _, envVar := range GetSupportedEnvVars() {
		raw, ok := os.LookupEnv(envVar)
		if !ok {
			continue
		}
		path := envVarMappings[envVar]
		value, ok := parseEnvValue(path, raw)
		if !ok || !applyOverride(cfg, path, value) {
			continue
		}
		applied = append(applied, EnvOverride{EnvVar: envVar, Path: path, Value: raw})
	}
	return applied
}

func parseEnvValue(path, raw string) (interface{}, bool) {
	switch path {
	case "pipeline.stopOnFirstRun":
		b, err := strconv.ParseBool(raw)
		return b, err == nil
	case "watch.debounceMs":
		n, err := strconv.Atoi(raw)
		return n, err == nil && n >= 0
	default:
		return raw, true
	}
}

// applyOverride sets the field at path. It reports false for unknown paths
// and values of the wrong type.
func applyOverride(cfg *Config, path string, value interface{}) bool {
	switch path {
	case "logging.level":
		s, ok := value.(string)
		if !ok || !slogutil.IsValidLevel(s) {
			return false
		}
		cfg.Logging.Level = s
	case "logging.format":
		s, ok := value.(string)
		if !ok || (s != slogutil.FormatText && s != slogutil.FormatJSON) {
			return false
		}
		cfg.Logging.Format = s
	case "logging.file":
		s, ok := value.(string)
		if !ok {
			return false
		}
		cfg.Logging.File = s
	case "pipeline.stopOnFirstRun":
		b, ok := value.(bool)
		if !ok {
			return false
		}
		cfg.Pipeline.StopOnFirstRun = b
	case "watch.debounceMs":
		n, ok := value.(int)
		if !ok {
			return false
		}
		cfg.Watch.DebounceMs = n
	case "watch.metricsAddr":
		s, ok := value.(string)
		if !ok {
			return false
		}
		cfg.Watch.MetricsAddr = s
	case "storage.path":
		s, ok := value.(string)
		if !ok || s == "" {
			return false
		}
		cfg.Storage.Path = s
	default:
		return false
	}
	return true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
