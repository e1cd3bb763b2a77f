// Package config provides configuration management for the workbook tool server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig      `mapstructure:"server"`
	Graph   GraphConfig       `mapstructure:"graph"`
	Tracker TrackerConfig     `mapstructure:"tracker"`
	Columns map[string]string `mapstructure:"columns"`
	Journal JournalConfig     `mapstructure:"journal"`
	Tracing TracingConfig     `mapstructure:"tracing"`
	Log     LogConfig         `mapstructure:"log"`

	// Dir is the directory the configuration was loaded from.
	Dir string `mapstructure:"-"`
}

// ServerConfig holds the HTTP listener configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	RateLimit    float64       `mapstructure:"rate_limit"` // requests per second, 0 disables
	RateBurst    int           `mapstructure:"rate_burst"`
	AuthSecret   string        `mapstructure:"auth_secret"` // HS256 secret for inbound bearer tokens, empty disables
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// GraphConfig holds the spreadsheet store connection settings.
type GraphConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	AuthorityURL   string        `mapstructure:"authority_url"`
	Scope          string        `mapstructure:"scope"`
	TenantID       string        `mapstructure:"tenant_id"`
	ClientID       string        `mapstructure:"client_id"`
	ClientSecret   string        `mapstructure:"client_secret"`
	AccessToken    string        `mapstructure:"access_token"` // static token, bypasses client credentials
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	LocatorTTL     time.Duration `mapstructure:"locator_ttl"`
}

// TrackerConfig locates the trade tracker workbook used by excel.logTrades.
type TrackerConfig struct {
	URL          string `mapstructure:"url"`
	FileName     string `mapstructure:"file_name"`
	DriveID      string `mapstructure:"drive_id"`
	ItemID       string `mapstructure:"item_id"`
	DefaultSheet string `mapstructure:"default_sheet"`
	SearchColumn string `mapstructure:"search_column"`
}

// JournalConfig holds the local audit journal settings.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	JSON       bool   `mapstructure:"json"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// DefaultColumns is the trade tracker layout: canonical trade field to column letter.
var DefaultColumns = map[string]string{
	"open_date":        "C",
	"close_date":       "D",
	"open_time":        "E",
	"close_time":       "F",
	"sold_call_strike": "G",
	"sold_put_strike":  "H",
	"strategy":         "I",
	"credit":           "J",
	"debit":            "K",
	"contracts":        "L",
	"width":            "M",
	"open_fees":        "N",
	"close_fees":       "O",
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/excel-mcp"
	}
	return filepath.Join(home, ".config", "excel-mcp")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// A missing .env file is not an error.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		// Containers run from environment only; the template is a convenience.
		_ = createTemplateConfig(configDir)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Dir = configDir

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration that Load produces with no file and no environment.
func Default() *Config {
	v := viper.New()
	dir := DefaultConfigDir()
	setDefaults(v, dir)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	cfg.Dir = dir
	return cfg
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.rate_burst", 30)
	v.SetDefault("server.auth_secret", "")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "120s")

	v.SetDefault("graph.base_url", "https://graph.microsoft.com/v1.0")
	v.SetDefault("graph.authority_url", "https://login.microsoftonline.com")
	v.SetDefault("graph.scope", "https://graph.microsoft.com/.default")
	v.SetDefault("graph.request_timeout", "30s")
	v.SetDefault("graph.retry_attempts", 3)
	v.SetDefault("graph.locator_ttl", "30m")

	v.SetDefault("tracker.url", "")
	v.SetDefault("tracker.file_name", "")
	v.SetDefault("tracker.default_sheet", "Sheet1")
	v.SetDefault("tracker.search_column", "C")

	for field, column := range DefaultColumns {
		v.SetDefault("columns."+field, column)
	}

	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", filepath.Join(configDir, "journal.db"))

	v.SetDefault("tracing.enabled", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.json", false)
	v.SetDefault("log.file", false)
	v.SetDefault("log.file_path", filepath.Join(configDir, "logs", "excel-mcp.log"))
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age", 30)
}

func applyEnvOverrides(cfg *Config) {
	// Service principal
	if v := os.Getenv("AZURE_TENANT_ID"); v != "" {
		cfg.Graph.TenantID = v
	}
	if v := os.Getenv("AZURE_CLIENT_ID"); v != "" {
		cfg.Graph.ClientID = v
	}
	if v := os.Getenv("AZURE_CLIENT_SECRET"); v != "" {
		cfg.Graph.ClientSecret = v
	}
	if v := os.Getenv("GRAPH_ACCESS_TOKEN"); v != "" {
		cfg.Graph.AccessToken = v
	}

	// Trade tracker workbook
	if v := os.Getenv("TRADE_TRACKER_URL"); v != "" {
		cfg.Tracker.URL = v
	}
	if v := os.Getenv("TRADE_TRACKER_FILE"); v != "" {
		cfg.Tracker.FileName = v
	}

	// Listener
	if v := os.Getenv("HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MCP_AUTH_SECRET"); v != "" {
		cfg.Server.AuthSecret = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must be non-negative")
	}
	if c.Server.AuthSecret != "" && len(c.Server.AuthSecret) < 32 {
		return fmt.Errorf("server.auth_secret must be at least 32 bytes")
	}
	if c.Graph.RequestTimeout <= 0 {
		return fmt.Errorf("graph.request_timeout must be positive")
	}
	if c.Graph.RetryAttempts < 1 {
		return fmt.Errorf("graph.retry_attempts must be at least 1")
	}
	if strings.TrimSpace(c.Tracker.SearchColumn) == "" {
		return fmt.Errorf("tracker.search_column cannot be empty")
	}
	if len(c.Columns) == 0 {
		return fmt.Errorf("columns mapping cannot be empty")
	}
	return nil
}

// HasClientCredentials reports whether a service principal is configured.
func (c *Config) HasClientCredentials() bool {
	return c.Graph.TenantID != "" && c.Graph.ClientID != "" && c.Graph.ClientSecret != ""
}

// MissingCredentials lists the environment variables still needed for client credentials.
func (c *Config) MissingCredentials() []string {
	var missing []string
	if c.Graph.TenantID == "" {
		missing = append(missing, "AZURE_TENANT_ID")
	}
	if c.Graph.ClientID == "" {
		missing = append(missing, "AZURE_CLIENT_ID")
	}
	if c.Graph.ClientSecret == "" {
		missing = append(missing, "AZURE_CLIENT_SECRET")
	}
	return missing
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
