package config

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func templateDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "vat.yaml"), []byte("issuer: x\nkeywords: [x]\nfields:\n  n: {regex: '(x)'}\n"), 0o600); err != nil {
		t.Fatalf("failed to write template: %v", err)
	}
	return dir
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Mode != "stdio" {
		t.Errorf("Expected default mode to be 'stdio', got '%s'", cfg.Mode)
	}
	if cfg.MaxSpans != 5000 {
		t.Errorf("Expected default max spans to be 5000, got %d", cfg.MaxSpans)
	}
	if cfg.RadiusX != 220 || cfg.RadiusY != 60 {
		t.Errorf("Expected default radius 220x60, got %gx%g", cfg.RadiusX, cfg.RadiusY)
	}
	if cfg.Format != "json" {
		t.Errorf("Expected default format to be 'json', got '%s'", cfg.Format)
	}
	if cfg.ServerName != "docfields" {
		t.Errorf("Expected default server name to be 'docfields', got '%s'", cfg.ServerName)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level to be 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.MaxFileSize != 100*1024*1024 {
		t.Errorf("Expected default max file size to be 100MB, got %d", cfg.MaxFileSize)
	}
}

func TestConfigValidate(t *testing.T) {
	dir := templateDir(t)
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Templates = []string{dir}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "server mode", mutate: func(c *Config) { c.Mode = ModeServer }},
		{name: "invalid mode", mutate: func(c *Config) { c.Mode = "http" }, wantErr: "mode"},
		{name: "invalid port", mutate: func(c *Config) { c.Mode = ModeServer; c.Port = 70000 }, wantErr: "port"},
		{name: "no templates", mutate: func(c *Config) { c.Templates = nil }, wantErr: "template"},
		{name: "missing template path", mutate: func(c *Config) { c.Templates = []string{filepath.Join(dir, "nope")} }, wantErr: "template path"},
		{name: "zero file size", mutate: func(c *Config) { c.MaxFileSize = 0 }, wantErr: "file size"},
		{name: "zero spans", mutate: func(c *Config) { c.MaxSpans = 0 }, wantErr: "maxspans"},
		{name: "negative radius", mutate: func(c *Config) { c.RadiusY = -1 }, wantErr: "radii"},
		{name: "no workers", mutate: func(c *Config) { c.Workers = 0 }, wantErr: "workers"},
		{name: "bad format", mutate: func(c *Config) { c.Format = "csv" }, wantErr: "format"},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "trace" }, wantErr: "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_Flags(t *testing.T) {
	dir := templateDir(t)

	cfg, err := Load("docfields", []string{
		"--templates", dir,
		"--workers", "8",
		"--maxspans", "100",
		"--radiusx", "150.5",
		"--format", "XLSX",
		"-o", "out.xlsx",
		"--loglevel", "debug",
		"a.json", "b.pdf",
	}, io.Discard)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if len(cfg.Templates) != 1 || cfg.Templates[0] != dir {
		t.Errorf("Load() Templates = %v, want [%s]", cfg.Templates, dir)
	}
	if cfg.Workers != 8 {
		t.Errorf("Load() Workers = %d, want 8", cfg.Workers)
	}
	if cfg.MaxSpans != 100 {
		t.Errorf("Load() MaxSpans = %d, want 100", cfg.MaxSpans)
	}
	if cfg.RadiusX != 150.5 {
		t.Errorf("Load() RadiusX = %g, want 150.5", cfg.RadiusX)
	}
	if cfg.Format != FormatXLSX {
		t.Errorf("Load() Format = %s, want xlsx", cfg.Format)
	}
	if cfg.Output != "out.xlsx" {
		t.Errorf("Load() Output = %s, want out.xlsx", cfg.Output)
	}
	if !cfg.IsDebug() {
		t.Error("Load() expected debug log level")
	}
	if strings.Join(cfg.Inputs, ",") != "a.json,b.pdf" {
		t.Errorf("Load() Inputs = %v", cfg.Inputs)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	a, b := templateDir(t), templateDir(t)
	t.Setenv("DOCFIELDS_TEMPLATES", a+","+b)
	t.Setenv("DOCFIELDS_WORKERS", "3")
	t.Setenv("DOCFIELDS_LOGLEVEL", "warn")

	cfg, err := Load("docfields", nil, io.Discard)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if len(cfg.Templates) != 2 || cfg.Templates[0] != a || cfg.Templates[1] != b {
		t.Errorf("Load() Templates = %v, want [%s %s]", cfg.Templates, a, b)
	}
	if cfg.Workers != 3 {
		t.Errorf("Load() Workers = %d, want 3", cfg.Workers)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("Load() LogLevel = %s, want warn", cfg.LogLevel)
	}
}

func TestLoad_FlagOverridesEnvironment(t *testing.T) {
	dir := templateDir(t)
	t.Setenv("DOCFIELDS_TEMPLATES", dir)
	t.Setenv("DOCFIELDS_WORKERS", "3")

	cfg, err := Load("docfields", []string{"--workers=5"}, io.Discard)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Workers != 5 {
		t.Errorf("Load() Workers = %d, want 5", cfg.Workers)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := templateDir(t)
	path := filepath.Join(t.TempDir(), "docfields.yaml")
	content := "templates:\n  - " + dir + "\nmaxspans: 42\nradiusy: 30\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load("docfields", []string{"--config", path}, io.Discard)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.MaxSpans != 42 {
		t.Errorf("Load() MaxSpans = %d, want 42", cfg.MaxSpans)
	}
	if cfg.RadiusY != 30 {
		t.Errorf("Load() RadiusY = %g, want 30", cfg.RadiusY)
	}
}

func TestLoad_Invalid(t *testing.T) {
	dir := templateDir(t)
	tests := []struct {
		name string
		args []string
	}{
		{"invalid mode", []string{"--templates", dir, "--mode", "http"}},
		{"invalid log level", []string{"--templates", dir, "--loglevel", "loud"}},
		{"unknown flag", []string{"--templates", dir, "--colour"}},
		{"missing templates", []string{"--templates", filepath.Join(dir, "missing")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load("docfields", tt.args, io.Discard); err == nil {
				t.Error("Load() expected error")
			}
		})
	}
}

func TestLoad_VersionFlag(t *testing.T) {
	for _, flag := range []string{"--version", "-version", "-v"} {
		_, err := Load("docfields", []string{flag}, io.Discard)
		if !errors.Is(err, ErrVersionRequested) {
			t.Errorf("Load(%s) error = %v, want ErrVersionRequested", flag, err)
		}
	}
}

func TestConfigAddress(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "0.0.0.0"
	cfg.Port = 9090
	if got := cfg.Address(); got != "0.0.0.0:9090" {
		t.Errorf("Address() = %s, want 0.0.0.0:9090", got)
	}
}

func TestConfigModes(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.IsStdioMode() || cfg.IsServerMode() {
		t.Error("default config should be stdio mode")
	}
	cfg.Mode = ModeServer
	if cfg.IsStdioMode() || !cfg.IsServerMode() {
		t.Error("expected server mode")
	}
}

func TestConfigString(t *testing.T) {
	s := DefaultConfig().String()
	for _, want := range []string{"Mode: stdio", "Workers: 4", "MaxSpans: 5000", "Format: json"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %s, missing %q", s, want)
		}
	}
}
