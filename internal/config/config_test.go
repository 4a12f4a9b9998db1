package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	werrors "walker/internal/errors"
)

// clearEnv unsets every override variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range append(GetSupportedEnvVars(), ConfigPathEnv) {
		if old, ok := os.LookupEnv(name); ok {
			os.Unsetenv(name)
			t.Cleanup(func() { os.Setenv(name, old) })
		}
	}
}

func writeConfig(t *testing.T, repoRoot, name, content string) string {
	t.Helper()
	dir := filepath.Join(repoRoot, ".walker")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create .walker dir: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != CurrentVersion {
		t.Errorf("Version = %d, want %d", cfg.Version, CurrentVersion)
	}
	if !cfg.Pipeline.StopOnFirstRun {
		t.Error("StopOnFirstRun should default to true")
	}
	if cfg.Watch.DebounceMs != 200 {
		t.Errorf("Watch.DebounceMs = %d, want 200", cfg.Watch.DebounceMs)
	}
	for _, ext := range []string{".styl", ".coffee", ".cjsx", ".js", ".jsx"} {
		if len(cfg.Finders[ext]) == 0 || len(cfg.Resolvers[ext]) == 0 {
			t.Errorf("default chains missing for %s", ext)
		}
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad version", func(c *Config) { c.Version = 7 }, "version"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"negative debounce", func(c *Config) { c.Watch.DebounceMs = -1 }, "watch.debounceMs"},
		{"empty storage path", func(c *Config) { c.Storage.Path = "" }, "storage.path"},
		{"unnamed strategy", func(c *Config) { c.Finders[".js"][0].Name = "" }, "finders..js[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("Validate() = %v, want ConfigError", err)
			}
			if cerr.Field != tt.field {
				t.Errorf("Field = %q, want %q", cerr.Field, tt.field)
			}
		})
	}
}

func TestConfigError_Error(t *testing.T) {
	err := &ConfigError{Field: "watch.debounceMs", Message: "must not be negative"}
	want := "config error in field 'watch.debounceMs': must not be negative"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestLoadConfigWithDetails_Defaults(t *testing.T) {
	clearEnv(t)

	result, err := LoadConfigWithDetails(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfigWithDetails() error = %v", err)
	}
	if !result.UsedDefaults {
		t.Error("UsedDefaults should be true when no config file exists")
	}
	if result.ConfigPath != "" {
		t.Errorf("ConfigPath = %q, want empty string", result.ConfigPath)
	}
	if !reflect.DeepEqual(result.Config, DefaultConfig()) {
		t.Error("config should equal the defaults")
	}
}

func TestLoadConfig_FromJSON(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	path := writeConfig(t, root, "config.json", `{
		"version": 1,
		"sources": ["src/**/*.js"],
		"pipeline": {"stopOnFirstRun": false},
		"watch": {"debounceMs": 50},
		"finders": {
			"styl": [{"config": {"exclude": ["nib", "vars"]}}]
		},
		"resolvers": {
			".js": [{"config": {"basePaths": ["lib"], "existingFilesOnly": false}}],
			".less": [{"name": "basic", "config": {"extensions": ["less"]}}]
		}
	}`)

	result, err := LoadConfigWithDetails(root)
	if err != nil {
		t.Fatalf("LoadConfigWithDetails() error = %v", err)
	}
	cfg := result.Config

	if result.ConfigPath != path || result.UsedDefaults {
		t.Errorf("ConfigPath = %q, UsedDefaults = %v", result.ConfigPath, result.UsedDefaults)
	}
	if !reflect.DeepEqual(cfg.Sources, []string{"src/**/*.js"}) {
		t.Errorf("Sources = %v, want the file's list only", cfg.Sources)
	}
	if cfg.Pipeline.StopOnFirstRun {
		t.Error("StopOnFirstRun should be false")
	}
	if cfg.Watch.DebounceMs != 50 {
		t.Errorf("DebounceMs = %d, want 50", cfg.Watch.DebounceMs)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("unset sections keep defaults, Logging.Level = %q", cfg.Logging.Level)
	}

	styl := cfg.Finders[".styl"]
	if len(styl) != 1 || styl[0].Name != "regex" {
		t.Fatalf("styl finders = %+v", styl)
	}
	if _, ok := styl[0].Config["pattern"]; !ok {
		t.Error("default pattern should survive the merge")
	}

	js := cfg.Resolvers[".js"]
	if len(js) != 1 || js[0].Name != "common-js" {
		t.Fatalf("js resolvers = %+v", js)
	}
	if len(cfg.Resolvers[".less"]) != 1 {
		t.Error("new extension should be added")
	}
	if len(cfg.Finders[".coffee"]) != 1 {
		t.Error("untouched defaults should remain")
	}
}

func TestLoadConfig_FromYAMLAndTOML(t *testing.T) {
	clearEnv(t)

	cases := map[string]string{
		"config.yaml": "version: 1\nwatch:\n  debounceMs: 75\nlogging:\n  level: debug\n",
		"config.toml": "version = 1\n[watch]\ndebounceMs = 75\n[logging]\nlevel = \"debug\"\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			writeConfig(t, root, name, content)

			cfg, err := LoadConfig(root)
			if err != nil {
				t.Fatalf("LoadConfig() error = %v", err)
			}
			if cfg.Watch.DebounceMs != 75 || cfg.Logging.Level != "debug" {
				t.Errorf("DebounceMs = %d, Level = %q", cfg.Watch.DebounceMs, cfg.Logging.Level)
			}
		})
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", "{ invalid }"},
		{"bad version", `{"version": 9}`},
		{"unnamed extra strategy", `{"finders": {".js": [{}, {"config": {}}]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeConfig(t, root, "config.json", tt.content)

			_, err := LoadConfigWithDetails(root)
			if !werrors.HasCode(err, werrors.ConfigInvalid) {
				t.Errorf("error = %v, want CONFIG_INVALID", err)
			}
		})
	}
}

func TestLoadConfigWithDetails_EnvConfigPath(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "custom.yaml")
	if err := os.WriteFile(configPath, []byte("version: 1\nstorage:\n  keepSessions: 9\n"), 0644); err != nil {
		t.Fatal(err)
	}

	os.Setenv(ConfigPathEnv, configPath)
	defer os.Unsetenv(ConfigPathEnv)

	result, err := LoadConfigWithDetails(tmpDir)
	if err != nil {
		t.Fatalf("LoadConfigWithDetails() error = %v", err)
	}
	if result.ConfigPath != configPath {
		t.Errorf("ConfigPath = %q, want %q", result.ConfigPath, configPath)
	}
	if result.Config.Storage.KeepSessions != 9 {
		t.Errorf("KeepSessions = %d, want 9", result.Config.Storage.KeepSessions)
	}

	os.Setenv(ConfigPathEnv, filepath.Join(tmpDir, "missing.json"))
	if _, err := LoadConfigWithDetails(tmpDir); err == nil {
		t.Error("a missing WALKER_CONFIG_PATH file should be an error")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config, overrides []EnvOverride)
	}{
		{
			name:    "logging level override",
			envVars: map[string]string{"WALKER_LOG_LEVEL": "debug"},
			validate: func(t *testing.T, cfg *Config, overrides []EnvOverride) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
				}
				if len(overrides) != 1 || overrides[0].Path != "logging.level" {
					t.Errorf("overrides = %+v", overrides)
				}
			},
		},
		{
			name: "multiple overrides",
			envVars: map[string]string{
				"WALKER_STOP_ON_FIRST_RUN": "false",
				"WALKER_WATCH_DEBOUNCE_MS": "500",
				"WALKER_METRICS_ADDR":      ":9101",
				"WALKER_STORAGE_PATH":      "/tmp/walker.db",
			},
			validate: func(t *testing.T, cfg *Config, overrides []EnvOverride) {
				if cfg.Pipeline.StopOnFirstRun {
					t.Error("StopOnFirstRun should be false")
				}
				if cfg.Watch.DebounceMs != 500 || cfg.Watch.MetricsAddr != ":9101" {
					t.Errorf("Watch = %+v", cfg.Watch)
				}
				if cfg.Storage.Path != "/tmp/walker.db" {
					t.Errorf("Storage.Path = %q", cfg.Storage.Path)
				}
				if len(overrides) != 4 {
					t.Errorf("len(overrides) = %d, want 4", len(overrides))
				}
			},
		},
		{
			name: "invalid values ignored",
			envVars: map[string]string{
				"WALKER_WATCH_DEBOUNCE_MS": "soon",
				"WALKER_STOP_ON_FIRST_RUN": "maybe",
				"WALKER_LOG_FORMAT":        "xml",
			},
			validate: func(t *testing.T, cfg *Config, overrides []EnvOverride) {
				if cfg.Watch.DebounceMs != 200 || !cfg.Pipeline.StopOnFirstRun || cfg.Logging.Format != "text" {
					t.Error("invalid values should keep defaults")
				}
				if len(overrides) != 0 {
					t.Errorf("len(overrides) = %d, want 0", len(overrides))
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}
			defer func() {
				for k := range tt.envVars {
					os.Unsetenv(k)
				}
			}()

			cfg := DefaultConfig()
			tt.validate(t, cfg, applyEnvOverrides(cfg))
		})
	}
}

func TestApplyOverride_InvalidPaths(t *testing.T) {
	tests := []struct {
		path  string
		value interface{}
	}{
		{"unknown", "value"},
		{"logging", "value"},
		{"logging.level", 3},
		{"watch.debounceMs", "100"},
		{"pipeline.stopOnFirstRun", "true"},
		{"storage.path", ""},
	}
	for _, tt := range tests {
		if applyOverride(DefaultConfig(), tt.path, tt.value) {
			t.Errorf("applyOverride(%q, %v) should fail", tt.path, tt.value)
		}
	}
}

func TestGetSupportedEnvVars(t *testing.T) {
	vars := GetSupportedEnvVars()
	if len(vars) != len(envVarMappings) {
		t.Fatalf("got %d vars, want %d", len(vars), len(envVarMappings))
	}
	for _, v := range vars {
		if !strings.HasPrefix(v, "WALKER_") {
			t.Errorf("unexpected variable %s", v)
		}
	}
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()

	cfg := DefaultConfig()
	cfg.Watch.MetricsAddr = "127.0.0.1:9200"
	if err := cfg.Save(root); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := LoadConfig(root)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if loaded.Watch.MetricsAddr != "127.0.0.1:9200" {
		t.Errorf("MetricsAddr = %q", loaded.Watch.MetricsAddr)
	}
	if len(loaded.Finders) != len(cfg.Finders) {
		t.Errorf("Finders = %d extensions, want %d", len(loaded.Finders), len(cfg.Finders))
	}
}

func TestStoragePath(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.StoragePath("/repo"); got != filepath.Join("/repo", ".walker", "walker.db") {
		t.Errorf("StoragePath = %q", got)
	}
	cfg.Storage.Path = "/var/lib/walker.db"
	if got := cfg.StoragePath("/repo"); got != "/var/lib/walker.db" {
		t.Errorf("StoragePath = %q", got)
	}
}
