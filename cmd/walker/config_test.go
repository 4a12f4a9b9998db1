package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"walker/internal/config"
)

func defaultsResult() *config.LoadResult {
	return &config.LoadResult{Config: config.DefaultConfig(), UsedDefaults: true}
}

func TestWriteConfig_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := writeConfig(&buf, defaultsResult(), "json"); err != nil {
		t.Fatalf("writeConfig failed: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["usedDefaults"] != true {
		t.Errorf("usedDefaults = %v", decoded["usedDefaults"])
	}
	cfg, ok := decoded["config"].(map[string]interface{})
	if !ok {
		t.Fatalf("config missing: %v", decoded)
	}
	if _, ok := cfg["finders"]; !ok {
		t.Error("finders should be a top-level config key")
	}
}

func TestWriteConfig_YAMLAndTOML(t *testing.T) {
	var y bytes.Buffer
	if err := writeConfig(&y, defaultsResult(), "yaml"); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	for _, want := range []string{"finders:", "resolvers:", "keepSessions: 5"} {
		if !strings.Contains(y.String(), want) {
			t.Errorf("yaml output missing %q:\n%s", want, y.String())
		}
	}

	var tm bytes.Buffer
	if err := writeConfig(&tm, defaultsResult(), "toml"); err != nil {
		t.Fatalf("toml: %v", err)
	}
	for _, want := range []string{"[storage]", "[logging]"} {
		if !strings.Contains(tm.String(), want) {
			t.Errorf("toml output missing %q:\n%s", want, tm.String())
		}
	}
}

func TestWriteConfig_Human(t *testing.T) {
	result := defaultsResult()
	result.Config.Watch.DebounceMs = 500
	result.EnvOverrides = []config.EnvOverride{{EnvVar: "WALKER_WATCH_DEBOUNCE_MS", Path: "watch.debounceMs", Value: "500"}}

	var buf bytes.Buffer
	if err := writeConfig(&buf, result, "human"); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"Source: defaults (no config file found)",
		"WALKER_WATCH_DEBOUNCE_MS=500",
		"debounceMs: 500 (default: 200)",
		"  .js: regex\n",
		"  .js: common-js\n",
		"metricsAddr: (disabled)\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteConfig_Unsupported(t *testing.T) {
	var buf bytes.Buffer
	if err := writeConfig(&buf, defaultsResult(), "ini"); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestEnvVarDocsCoverSupportedVars(t *testing.T) {
	documented := make(map[string]bool)
	for _, v := range envVarDocs {
		documented[v.name] = true
	}
	for _, name := range config.GetSupportedEnvVars() {
		if !documented[name] {
			t.Errorf("%s is not documented", name)
		}
	}

	var buf bytes.Buffer
	writeEnvHelp(&buf)
	if !strings.Contains(buf.String(), config.ConfigPathEnv) {
		t.Errorf("help missing %s", config.ConfigPathEnv)
	}
}

func TestValueHelpers(t *testing.T) {
	if !isEqual(200, 200) || isEqual(true, false) {
		t.Error("isEqual compares printed values")
	}
	if valueOrDefault("", "x") != "x" || valueOrDefault("y", "x") != "y" {
		t.Error("valueOrDefault")
	}
}
