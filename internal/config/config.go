package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Server  ServerConfig
	UI      UIConfig
	Tenant  TenantConfig
	Journal JournalConfig
}

// ServerConfig holds backend connection settings.
type ServerConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	PageSize   int    `mapstructure:"page_size"`
	DateFormat string `mapstructure:"date_format"`
	Timezone   string `mapstructure:"timezone"`
}

// TenantConfig holds tenant resolution overrides.
type TenantConfig struct {
	// Domain forces domain-based tenant lookup. Empty means resolve the
	// tenant from the authenticated session instead.
	Domain string
}

// JournalConfig holds the local submission journal settings.
type JournalConfig struct {
	// Path to the sqlite journal file. Empty disables the journal.
	Path string
}

// Load reads configuration from file and env. Env var overrides use prefix RECONSOLE_.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.timeout_seconds", 15)
	v.SetDefault("ui.page_size", 10)
	v.SetDefault("ui.date_format", "2006-01-02")
	v.SetDefault("ui.timezone", "Australia/Melbourne")
	v.SetDefault("tenant.domain", "")
	v.SetDefault("journal.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "reconsole", "journal.db"))

	v.SetConfigType("toml")

	cfgPath := os.Getenv("RECONSOLE_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "reconsole"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("RECONSOLE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.Server.TimeoutSeconds <= 0 {
		c.Server.TimeoutSeconds = 15
	}
	if c.UI.PageSize < 1 || c.UI.PageSize > 100 {
		c.UI.PageSize = 10
	}
	c.Server.BaseURL = strings.TrimRight(strings.TrimSpace(c.Server.BaseURL), "/")
	return c, nil
}

// Save writes the provided config to disk, creating the config directory if needed.
// Used by the TUI settings view for non-sensitive preferences.
func Save(cfg Config) error {
	path := os.Getenv("RECONSOLE_CONFIG")
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".config", "reconsole", "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("server.base_url", cfg.Server.BaseURL)
	v.Set("server.timeout_seconds", cfg.Server.TimeoutSeconds)
	v.Set("ui.page_size", cfg.UI.PageSize)
	v.Set("ui.date_format", cfg.UI.DateFormat)
	v.Set("ui.timezone", cfg.UI.Timezone)
	v.Set("tenant.domain", cfg.Tenant.Domain)
	v.Set("journal.path", cfg.Journal.Path)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
