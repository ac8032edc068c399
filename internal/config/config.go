package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Output formats
	FormatJSON = "json"
	FormatXLSX = "xlsx"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB
	DefaultMaxSpans    = 5000
	DefaultRadiusX     = 220.0
	DefaultRadiusY     = 60.0
	DefaultWorkers     = 4

	// EnvPrefix prefixes every environment variable, e.g. DOCFIELDS_TEMPLATES.
	EnvPrefix = "DOCFIELDS"
)

// ErrVersionRequested is returned by Load when --version is present.
var ErrVersionRequested = errors.New("version requested")

// Config holds the configuration shared by the docfields commands.
type Config struct {
	// MCP transport
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Template files or directories, in declaration order
	Templates []string

	// Positional extraction limits
	MaxSpans int
	RadiusX  float64
	RadiusY  float64

	// Batch processing
	Workers     int
	MetricsAddr string
	Format      string
	Output      string

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum input file size in bytes

	// Inputs are the positional arguments left after flag parsing.
	Inputs []string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Mode:        ModeStdio,
		Host:        DefaultHost,
		Port:        DefaultPort,
		Templates:   []string{"templates"},
		MaxSpans:    DefaultMaxSpans,
		RadiusX:     DefaultRadiusX,
		RadiusY:     DefaultRadiusY,
		Workers:     DefaultWorkers,
		Format:      FormatJSON,
		Version:     "1.0.0",
		ServerName:  "docfields",
		LogLevel:    DefaultLogLevel,
		MaxFileSize: DefaultMaxFileSize,
	}
}

// Load parses args (without the program name) together with DOCFIELDS_*
// environment variables and an optional --config file. Flags override the
// environment, which overrides the file.
func Load(program string, args []string, usage io.Writer) (*Config, error) {
	cfg := DefaultConfig()
	v := viper.New()
	fs := pflag.NewFlagSet(program, pflag.ContinueOnError)
	fs.SetOutput(usage)

	setupViperEnvironment(v, cfg)
	defineCommandLineFlags(fs, cfg)
	bindFlagsToViper(v, fs)
	setupUsageMessage(fs, program, usage)

	if checkVersionFlag(args) {
		return nil, ErrVersionRequested
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	populateConfigFromViper(v, cfg)
	cfg.Inputs = fs.Args()

	for i, p := range cfg.Templates {
		if abs, err := filepath.Abs(p); err == nil {
			cfg.Templates[i] = abs
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(v *viper.Viper, cfg *Config) {
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault("mode", cfg.Mode)
	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("templates", cfg.Templates)
	v.SetDefault("maxspans", cfg.MaxSpans)
	v.SetDefault("radiusx", cfg.RadiusX)
	v.SetDefault("radiusy", cfg.RadiusY)
	v.SetDefault("workers", cfg.Workers)
	v.SetDefault("metricsaddr", cfg.MetricsAddr)
	v.SetDefault("format", cfg.Format)
	v.SetDefault("output", cfg.Output)
	v.SetDefault("loglevel", cfg.LogLevel)
	v.SetDefault("maxfilesize", cfg.MaxFileSize)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.String("config", "", "Optional YAML configuration file")
	fs.String("mode", cfg.Mode, "MCP mode: 'stdio' for standard I/O, 'server' for HTTP (SSE)")
	fs.String("host", cfg.Host, "Server host address (server mode only)")
	fs.Int("port", cfg.Port, "Server port (server mode only)")
	fs.StringSlice("templates", cfg.Templates, "Template files or directories, in declaration order")
	fs.Int("maxspans", cfg.MaxSpans, "Span count above which positional extraction is skipped")
	fs.Float64("radiusx", cfg.RadiusX, "Horizontal proximity radius around a label")
	fs.Float64("radiusy", cfg.RadiusY, "Vertical proximity radius around a label")
	fs.Int("workers", cfg.Workers, "Documents processed concurrently")
	fs.String("metricsaddr", cfg.MetricsAddr, "Address for the Prometheus /metrics endpoint (disabled when empty)")
	fs.String("format", cfg.Format, "Output format: json or xlsx")
	fs.StringP("output", "o", cfg.Output, "Output file (stdout when empty)")
	fs.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.Int64("maxfilesize", cfg.MaxFileSize, "Maximum input file size in bytes")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper(v *viper.Viper, fs *pflag.FlagSet) {
	for _, name := range []string{
		"mode", "host", "port", "templates", "maxspans", "radiusx", "radiusy",
		"workers", "metricsaddr", "format", "output", "loglevel", "maxfilesize",
	} {
		_ = v.BindPFlag(name, fs.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage(fs *pflag.FlagSet, program string, w io.Writer) {
	fs.Usage = func() {
		fmt.Fprintf(w, "Usage of %s:\n", program)
		fmt.Fprintf(w, "\ndocfields - extract structured fields from invoices and receipts\n\n")
		fmt.Fprintf(w, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(w, "\nExamples:\n")
		fmt.Fprintf(w, "  %s --templates=./templates invoice.pdf            # JSON to stdout\n", program)
		fmt.Fprintf(w, "  %s --format=xlsx -o review.xlsx docs/*.json        # review workbook\n", program)
		fmt.Fprintf(w, "\nEnvironment Variables:\n")
		fmt.Fprintf(w, "  DOCFIELDS_TEMPLATES    Template paths\n")
		fmt.Fprintf(w, "  DOCFIELDS_LOGLEVEL     Log level\n")
		fmt.Fprintf(w, "  DOCFIELDS_WORKERS      Concurrent documents\n")
		fmt.Fprintf(w, "  DOCFIELDS_MAXSPANS     Span ceiling\n")
		fmt.Fprintf(w, "  DOCFIELDS_METRICSADDR  Metrics listen address\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag(args []string) bool {
	for _, arg := range args {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return true
		}
	}
	return false
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(v *viper.Viper, cfg *Config) {
	cfg.Mode = v.GetString("mode")
	cfg.Host = v.GetString("host")
	cfg.Port = v.GetInt("port")
	cfg.Templates = splitList(v.GetStringSlice("templates"))
	cfg.MaxSpans = v.GetInt("maxspans")
	cfg.RadiusX = v.GetFloat64("radiusx")
	cfg.RadiusY = v.GetFloat64("radiusy")
	cfg.Workers = v.GetInt("workers")
	cfg.MetricsAddr = v.GetString("metricsaddr")
	cfg.Format = strings.ToLower(v.GetString("format"))
	cfg.Output = v.GetString("output")
	cfg.LogLevel = v.GetString("loglevel")
	cfg.MaxFileSize = v.GetInt64("maxfilesize")
}

// splitList accepts both repeated values and a single comma-separated
// value, as DOCFIELDS_TEMPLATES=a,b arrives.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if len(c.Templates) == 0 {
		return errors.New("at least one template path is required")
	}
	for _, p := range c.Templates {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("cannot access template path %s: %w", p, err)
		}
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}
	if c.MaxSpans <= 0 {
		return errors.New("maxspans must be positive")
	}
	if c.RadiusX <= 0 || c.RadiusY <= 0 {
		return errors.New("proximity radii must be positive")
	}
	if c.Workers < 1 {
		return errors.New("workers must be at least 1")
	}

	if c.Format != FormatJSON && c.Format != FormatXLSX {
		return fmt.Errorf("invalid format: %s (must be one of: json, xlsx)", c.Format)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Templates: %v, Workers: %d, MaxSpans: %d, Radius: %gx%g, Format: %s, LogLevel: %s, MaxFileSize: %d}",
		c.Mode, c.Templates, c.Workers, c.MaxSpans, c.RadiusX, c.RadiusY, c.Format, c.LogLevel, c.MaxFileSize)
}

// IsServerMode returns true if the MCP server runs over HTTP
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the MCP server runs over stdio
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
