package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	configcmd "github.com/biobot-lab/biobot/internal/cmd/config"
	"github.com/biobot-lab/biobot/internal/config"
	"github.com/biobot-lab/biobot/internal/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "biobot",
	Short: "Coordinate observation and intervention rounds for biobot experiments",
	Long: `Biobot coordinates an experiment between an observing side, which captures
observations, and an intervening side, which proposes interventions.

Both sides share a data root holding the experiment registry and a mailbox
of JSON messages. Each command performs one step of a round and exits.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Interrupts cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/biobot/config.yaml)")
	rootCmd.PersistentFlags().String("root", "", "shared data directory (default is the current directory)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("no-spinner", false, "disable the progress spinner")

	configcmd.Register(rootCmd)

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errors.NewValidationError(err.Error())
	})
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	flags := rootCmd.PersistentFlags()
	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("root", flags.Lookup("root"))
	_ = viper.BindPFlag("logging.level", flags.Lookup("log-level"))

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/biobot")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("BIOBOT")
	// Replace dots with underscores for nested keys in env vars
	// e.g., BIOBOT_IDS_COLLISION_POLICY for ids.collision_policy
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
