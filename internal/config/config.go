package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// StateDirName holds the log and metrics files under the data root.
const StateDirName = ".biobot"

// Config represents the complete biobot configuration
type Config struct {
	// Root is the shared data directory both sides of an experiment use.
	Root     string         `mapstructure:"root"`
	Registry RegistryConfig `mapstructure:"registry"`
	Mailbox  MailboxConfig  `mapstructure:"mailbox"`
	IDs      IDsConfig      `mapstructure:"ids"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	UI       UIConfig       `mapstructure:"ui"`
	Wait     WaitConfig     `mapstructure:"wait"`
}

// RegistryConfig selects where the experiment index lives
type RegistryConfig struct {
	// Backend is "file" (JSON document) or "sqlite"
	Backend string `mapstructure:"backend"`
	// File is the JSON record path, relative to Root unless absolute
	File string `mapstructure:"file"`
	// SQLiteFile is the database path, relative to Root unless absolute
	SQLiteFile string `mapstructure:"sqlite_file"`
}

// MailboxConfig selects where messages are stored
type MailboxConfig struct {
	// Backend is "file" or "afs"
	Backend string `mapstructure:"backend"`
	// Dir is the mailbox directory for the file backend, relative to Root
	// unless absolute
	Dir string `mapstructure:"dir"`
	// AFSURL is the base URL for the afs backend, e.g. "file:///srv/dropbox"
	AFSURL string `mapstructure:"afs_url"`
}

// IDsConfig controls experiment identifier generation
type IDsConfig struct {
	// CollisionPolicy is "suffix" (append -1, -2, ...) or "retry" (wait for
	// the next second)
	CollisionPolicy string `mapstructure:"collision_policy"`
	// MaxAttempts bounds the identifiers tried for one new experiment
	MaxAttempts int `mapstructure:"max_attempts"`
	// UTC formats identifiers in UTC instead of local time
	UTC bool `mapstructure:"utc"`
}

// LoggingConfig controls the debug log under the state directory
type LoggingConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig controls the Prometheus textfile
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Textfile is the output path, relative to Root unless absolute
	Textfile string `mapstructure:"textfile"`
}

// UIConfig controls terminal output
type UIConfig struct {
	// Spinner draws a progress animation when stdout is a terminal
	Spinner bool `mapstructure:"spinner"`
}

// WaitConfig controls the wait command
type WaitConfig struct {
	// Timeout is the default wait limit; 0 waits forever
	Timeout time.Duration `mapstructure:"timeout"`
	// PollInterval is how often the mailbox is re-checked
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Root: ".",
		Registry: RegistryConfig{
			Backend:    "file",
			File:       "experiment_ids.json",
			SQLiteFile: "experiment_ids.db",
		},
		Mailbox: MailboxConfig{
			Backend: "file",
			Dir:     "virtual_dropbox",
		},
		IDs: IDsConfig{
			CollisionPolicy: "suffix",
			MaxAttempts:     10,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Textfile: filepath.Join(StateDirName, "metrics.prom"),
		},
		UI: UIConfig{
			Spinner: true,
		},
		Wait: WaitConfig{
			Timeout:      5 * time.Minute,
			PollInterval: 500 * time.Millisecond,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("root", defaults.Root)

	// Registry defaults
	viper.SetDefault("registry.backend", defaults.Registry.Backend)
	viper.SetDefault("registry.file", defaults.Registry.File)
	viper.SetDefault("registry.sqlite_file", defaults.Registry.SQLiteFile)

	// Mailbox defaults
	viper.SetDefault("mailbox.backend", defaults.Mailbox.Backend)
	viper.SetDefault("mailbox.dir", defaults.Mailbox.Dir)
	viper.SetDefault("mailbox.afs_url", defaults.Mailbox.AFSURL)

	// Identifier defaults
	viper.SetDefault("ids.collision_policy", defaults.IDs.CollisionPolicy)
	viper.SetDefault("ids.max_attempts", defaults.IDs.MaxAttempts)
	viper.SetDefault("ids.utc", defaults.IDs.UTC)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	viper.SetDefault("metrics.textfile", defaults.Metrics.Textfile)

	viper.SetDefault("ui.spinner", defaults.UI.Spinner)

	// Wait defaults
	viper.SetDefault("wait.timeout", defaults.Wait.Timeout)
	viper.SetDefault("wait.poll_interval", defaults.Wait.PollInterval)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// StateDir returns the directory holding logs and metrics.
func (c *Config) StateDir() string {
	return filepath.Join(c.RootDir(), StateDirName)
}

// RootDir returns Root with ~ expanded.
func (c *Config) RootDir() string {
	return expandHome(c.Root)
}

// Resolve returns p with ~ expanded and, if relative, joined to the root.
func (c *Config) Resolve(p string) string {
	p = expandHome(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.RootDir(), p)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return path
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "biobot")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return StateDirName
	}
	return filepath.Join(home, ".config", "biobot")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
