// Package config loads hardlinks.toml.
//
// Lookup order: an explicit path, $HL_CONFIG, ./.hardlinks/hardlinks.toml,
// $XDG_CONFIG_HOME/hardlinks/hardlinks.toml. A missing file is not an error
// when searching; defaults apply. Any key can be overridden from the
// environment as HL_<SECTION>_<KEY>, e.g. HL_LOG_LEVEL=debug.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// FileName is the config file name without directory.
const FileName = "hardlinks.toml"

// Config is the full hl configuration.
type Config struct {
	Catalog CatalogConfig `mapstructure:"catalog" toml:"catalog" json:"catalog"`
	Vault   VaultConfig   `mapstructure:"vault" toml:"vault" json:"vault"`
	Log     LogConfig     `mapstructure:"log" toml:"log" json:"log"`
	Spool   SpoolConfig   `mapstructure:"spool" toml:"spool" json:"spool"`
	Server  ServerConfig  `mapstructure:"server" toml:"server" json:"server"`
	Session SessionConfig `mapstructure:"session" toml:"session" json:"session"`

	// path of the file that was read, empty when only defaults applied
	source string
}

// CatalogConfig locates the SQLite catalog.
type CatalogConfig struct {
	Path            string `mapstructure:"path" toml:"path" json:"path"`
	DefaultResource string `mapstructure:"default_resource" toml:"default_resource" json:"default_resource"`
}

// VaultConfig locates payload storage.
type VaultConfig struct {
	Root string `mapstructure:"root" toml:"root" json:"root"`
}

// LogConfig configures internal/logging.
type LogConfig struct {
	Level      string `mapstructure:"level" toml:"level" json:"level"`
	File       string `mapstructure:"file" toml:"file" json:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" toml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups" json:"max_backups"`
}

// SpoolConfig configures the rule spool daemon.
type SpoolConfig struct {
	Dir      string `mapstructure:"dir" toml:"dir" json:"dir"`
	Debounce string `mapstructure:"debounce" toml:"debounce" json:"debounce"`
}

// ServerConfig configures the event server.
type ServerConfig struct {
	Port int `mapstructure:"port" toml:"port" json:"port"`
}

// SessionConfig names the user commands run as.
type SessionConfig struct {
	User string `mapstructure:"user" toml:"user" json:"user"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Path:            filepath.Join(".hardlinks", "catalog.db"),
			DefaultResource: "10014",
		},
		Vault: VaultConfig{Root: filepath.Join(".hardlinks", "vault")},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Spool: SpoolConfig{
			Dir:      filepath.Join(".hardlinks", "spool"),
			Debounce: "100ms",
		},
		Server:  ServerConfig{Port: 8080},
		Session: SessionConfig{User: "rods"},
	}
}

// Load reads the configuration. path may be empty to search.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetConfigType("toml")
	v.SetEnvPrefix("HL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv("HL_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		for _, dir := range SearchPaths() {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.source = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SearchPaths returns the directories searched for FileName.
func SearchPaths() []string {
	paths := []string{".hardlinks"}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "hardlinks"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "hardlinks"))
	}
	return paths
}

// Source returns the file the configuration was read from, if any.
func (c *Config) Source() string {
	return c.source
}

// Validate checks values that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	if c.Catalog.Path == "" {
		return fmt.Errorf("catalog.path must be set")
	}
	if c.Vault.Root == "" {
		return fmt.Errorf("vault.root must be set")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if _, err := c.DebounceInterval(); err != nil {
		return err
	}
	return nil
}

// DebounceInterval parses spool.debounce.
func (c *Config) DebounceInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Spool.Debounce)
	if err != nil {
		return 0, fmt.Errorf("invalid spool.debounce %q: %w", c.Spool.Debounce, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("spool.debounce must be positive, got %s", d)
	}
	return d, nil
}

// WriteDefault writes the built-in configuration to path. It refuses to
// overwrite an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString("# hardlinks configuration\n\n"); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(Default()); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return f.Close()
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("catalog.path", d.Catalog.Path)
	v.SetDefault("catalog.default_resource", d.Catalog.DefaultResource)
	v.SetDefault("vault.root", d.Vault.Root)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("spool.dir", d.Spool.Dir)
	v.SetDefault("spool.debounce", d.Spool.Debounce)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("session.user", d.Session.User)
}
