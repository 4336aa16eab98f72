// Package config provides CLI commands for inspecting biobot configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	appconfig "github.com/biobot-lab/biobot/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View biobot configuration",
	Long: `View biobot configuration.

Without arguments, displays the effective configuration.
Use 'config init' to create a commented config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/biobot/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

// Register adds all config-related commands to the given parent command.
func Register(parent *cobra.Command) {
	parent.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "# Config file: (none - using defaults)\n")
	}

	settings := viper.AllSettings()
	delete(settings, "config")

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(settings); err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}

	if _, err := appconfig.Load(); err != nil {
		fmt.Fprintf(out, "\n# Invalid configuration:\n# %v\n", err)
	}
	return nil
}

const defaultConfigContent = `# Biobot Configuration

# Shared data directory used by both sides of an experiment
root: .

# Experiment registry
registry:
  # Backend: file (JSON document) or sqlite
  backend: file
  file: experiment_ids.json
  sqlite_file: experiment_ids.db

# Message mailbox
mailbox:
  # Backend: file or afs
  backend: file
  dir: virtual_dropbox
  # Base URL for the afs backend, e.g. file:///srv/dropbox
  afs_url: ""

# Experiment identifiers
ids:
  # What to do when a generated identifier is taken: suffix or retry
  collision_policy: suffix
  max_attempts: 10
  # Format identifiers in UTC instead of local time
  utc: false

# Debug log written to <root>/.biobot/debug.log
logging:
  enabled: true
  # Options: debug, info, warn, error
  level: info
  max_size_mb: 10
  max_backups: 3
  compress: false

# Prometheus textfile for node_exporter's textfile collector
metrics:
  enabled: false
  textfile: .biobot/metrics.prom

ui:
  # Show a spinner while commands run (terminals only)
  spinner: true

# Defaults for the wait command
wait:
  timeout: 5m
  poll_interval: 500ms
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := appconfig.ConfigDir()
	configFile := appconfig.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s", configFile)
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configFile, []byte(defaultConfigContent), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configFile := appconfig.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(appconfig.ConfigDir(), "config.yaml"))
	fmt.Fprintf(out, "  2. $HOME/.config/biobot/config.yaml\n")
	fmt.Fprintf(out, "  3. ./config.yaml (current directory)\n")
	fmt.Fprintln(out, "\nEnvironment variables: BIOBOT_* (e.g., BIOBOT_IDS_COLLISION_POLICY)")

	return nil
}
