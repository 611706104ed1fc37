// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v, want nil", err)
	}
}

func TestPresets(t *testing.T) {
	dev, err := Preset("dev")
	if err != nil {
		t.Fatalf("Preset(dev) error: %v", err)
	}
	if dev.Analysis.MinutesBack != 5 {
		t.Errorf("dev minutes_back = %d, want 5", dev.Analysis.MinutesBack)
	}
	if dev.Analysis.MaxRecent != 5 {
		t.Errorf("dev max_recent = %d, want 5", dev.Analysis.MaxRecent)
	}

	prod, err := Preset("prod")
	if err != nil {
		t.Fatalf("Preset(prod) error: %v", err)
	}
	if prod.Analysis.MinutesBack != 60 {
		t.Errorf("prod minutes_back = %d, want 60", prod.Analysis.MinutesBack)
	}

	ext, err := Preset("extended")
	if err != nil {
		t.Fatalf("Preset(extended) error: %v", err)
	}
	if ext.Analysis.MinutesBack != 120 {
		t.Errorf("extended minutes_back = %d, want 120", ext.Analysis.MinutesBack)
	}
	if ext.Advisor.MaxTokens != 2000 {
		t.Errorf("extended advisor max_tokens = %d, want 2000", ext.Advisor.MaxTokens)
	}

	if _, err := Preset("staging"); err == nil {
		t.Error("Preset(staging) should fail")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	c := Default()
	c.Phoenix.Endpoint = "not a url"
	c.Analysis.MinutesBack = -1
	c.Advisor.Temperature = 3.5
	c.Export.Formats = []string{"csv", "pdf"}

	err := c.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want errors")
	}
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("error type = %T, want ValidationErrors", err)
	}
	if len(verrs) != 4 {
		t.Errorf("got %d validation errors, want 4: %v", len(verrs), verrs)
	}
}

func TestValidateEndpointScheme(t *testing.T) {
	c := Default()
	c.Phoenix.Endpoint = "ftp://example.com"
	if err := c.Validate(); err == nil {
		t.Error("ftp endpoint should be rejected")
	}
	c.Phoenix.Endpoint = "https://phoenix.internal:6006"
	if err := c.Validate(); err != nil {
		t.Errorf("https endpoint rejected: %v", err)
	}
}

func TestLoadPartialFileFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[phoenix]
endpoint = "http://phoenix.lab:6006"

[analysis]
minutes_back = 15
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if c.Phoenix.Endpoint != "http://phoenix.lab:6006" {
		t.Errorf("endpoint = %q", c.Phoenix.Endpoint)
	}
	if c.Analysis.MinutesBack != 15 {
		t.Errorf("minutes_back = %d, want 15", c.Analysis.MinutesBack)
	}
	// Unset keys come from defaults.
	if c.Advisor.Model != "gpt-4o-mini" {
		t.Errorf("advisor model = %q, want default", c.Advisor.Model)
	}
	if c.Storage.MaxRuns != 50 {
		t.Errorf("max_runs = %d, want 50", c.Storage.MaxRuns)
	}
}

func TestLoadPartialFileKeepsEnabledDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[phoenix]
project = "myproj"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	// A file that never mentions [advisor] or [cache] must not flip
	// their enabled flags off.
	if !c.Advisor.Enabled {
		t.Error("advisor.enabled = false, want default true")
	}
	if !c.Cache.Enabled {
		t.Error("cache.enabled = false, want default true")
	}
}

func TestLoadExplicitDisableSticks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[advisor]
enabled = false

[cache]
enabled = false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if c.Advisor.Enabled {
		t.Error("advisor.enabled = true, want explicit false")
	}
	if c.Cache.Enabled {
		t.Error("cache.enabled = true, want explicit false")
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	c, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error: %v", err)
	}
	if c.Phoenix.Endpoint != "http://localhost:6006" {
		t.Errorf("endpoint = %q, want default", c.Phoenix.Endpoint)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	c := Default()
	c.Phoenix.Project = "my-project"
	c.Advisor.APIKey = "sk-secret"
	if err := c.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "sk-secret") {
		t.Error("API key must not be serialized")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() after Save() error: %v", err)
	}
	if loaded.Phoenix.Project != "my-project" {
		t.Errorf("project = %q, want my-project", loaded.Phoenix.Project)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("PHOENIXLENS_ENDPOINT", "http://override:6006")
	t.Setenv("PHOENIXLENS_PROJECT", "env-project")
	t.Setenv("PHOENIXLENS_MINUTES_BACK", "42")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	c := Default()
	c.ApplyEnvOverrides()
	if c.Phoenix.Endpoint != "http://override:6006" {
		t.Errorf("endpoint = %q", c.Phoenix.Endpoint)
	}
	if c.Phoenix.Project != "env-project" {
		t.Errorf("project = %q", c.Phoenix.Project)
	}
	if c.Analysis.MinutesBack != 42 {
		t.Errorf("minutes_back = %d", c.Analysis.MinutesBack)
	}
	if c.Advisor.APIKey != "sk-env" {
		t.Errorf("api key not taken from OPENAI_API_KEY")
	}
}

func TestEnvOverridePrecedence(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-ambient")
	t.Setenv("PHOENIXLENS_OPENAI_KEY", "sk-dedicated")

	c := Default()
	c.ApplyEnvOverrides()
	if c.Advisor.APIKey != "sk-dedicated" {
		t.Errorf("api key = %q, want dedicated key to win", c.Advisor.APIKey)
	}
}

func TestEnvOverrideBadInt(t *testing.T) {
	t.Setenv("PHOENIXLENS_MINUTES_BACK", "soon")
	c := Default()
	c.ApplyEnvOverrides()
	if c.Analysis.MinutesBack != 60 {
		t.Errorf("bad int override applied: %d", c.Analysis.MinutesBack)
	}
}

func TestGetSet(t *testing.T) {
	c := Default()

	if err := c.Set("phoenix.project", "traces"); err != nil {
		t.Fatalf("Set(phoenix.project) error: %v", err)
	}
	got, err := c.Get("phoenix.project")
	if err != nil || got != "traces" {
		t.Errorf("Get(phoenix.project) = %q, %v", got, err)
	}

	if err := c.Set("analysis.minutes_back", "30"); err != nil {
		t.Fatalf("Set(analysis.minutes_back) error: %v", err)
	}
	if c.Analysis.MinutesBack != 30 {
		t.Errorf("minutes_back = %d, want 30", c.Analysis.MinutesBack)
	}

	if err := c.Set("export.formats", "csv, xlsx"); err != nil {
		t.Fatalf("Set(export.formats) error: %v", err)
	}
	if len(c.Export.Formats) != 2 || c.Export.Formats[1] != "xlsx" {
		t.Errorf("formats = %v", c.Export.Formats)
	}

	// Invalid values are rejected and rolled back.
	if err := c.Set("analysis.minutes_back", "-5"); err == nil {
		t.Error("Set(-5) should fail validation")
	}
	if c.Analysis.MinutesBack != 30 {
		t.Errorf("failed Set mutated config: %d", c.Analysis.MinutesBack)
	}

	if err := c.Set("advisor.favorite_color", "blue"); err == nil {
		t.Error("unknown key should fail")
	}
	if _, err := c.Get("advisor.favorite_color"); err == nil {
		t.Error("unknown key should fail")
	}
}

func TestGetCoversAllKeys(t *testing.T) {
	c := Default()
	for _, key := range Keys() {
		if _, err := c.Get(key); err != nil {
			t.Errorf("Get(%q) error: %v", key, err)
		}
	}
}

func TestGlobal(t *testing.T) {
	defer SetGlobal(nil)

	c := Default()
	c.Phoenix.Project = "global-test"
	SetGlobal(c)
	if Global().Phoenix.Project != "global-test" {
		t.Error("Global() did not return the installed config")
	}

	SetGlobal(nil)
	if Global() == nil {
		t.Error("Global() must fall back to defaults, not nil")
	}
}
