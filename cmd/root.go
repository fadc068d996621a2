package cmd

import (
	"github.com/kamusis/cubepub/internal/config"
	"github.com/kamusis/cubepub/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile  string
	v        *viper.Viper
	settings *config.Settings
)

var rootCmd = &cobra.Command{
	Use:   "cubepub",
	Short: "cubepub publishes OLAP models to a BI server",
	Long: `Reconcile a local analysis model with a BI server and publish its
datasource connection, schema and metadata, or import plain files into the
server repository.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.cubepub/config.yaml)")

	// Server profile (global - inherited by all subcommands)
	rootCmd.PersistentFlags().StringP(
		"server", "s", "",
		"Server profile name (default: the configured default server)",
	)

	// Timeout configuration (global)
	rootCmd.PersistentFlags().Int(
		"connection-timeout", 5000,
		"Connection timeout in milliseconds.",
	)

	rootCmd.PersistentFlags().String(
		"log-level", "warn",
		"Log level: trace, debug, info, warn, error, off.",
	)

	// Output configuration (global)
	rootCmd.PersistentFlags().Bool(
		"plain", false,
		"Use plain ASCII output instead of Unicode box-drawing characters.",
	)
}

// initConfig reads the config file and environment, then configures logging.
func initConfig(cmd *cobra.Command) error {
	v = viper.New()
	_ = v.BindPFlag(config.KeyConnectionTimeout, cmd.Flags().Lookup("connection-timeout"))
	_ = v.BindPFlag(config.KeyLogLevel, cmd.Flags().Lookup("log-level"))

	if err := config.Init(v, cfgFile); err != nil {
		return err
	}
	s, err := config.Load(v)
	if err != nil {
		return err
	}
	settings = s

	logging.Configure(logging.Config{
		Level:  v.GetString(config.KeyLogLevel),
		Format: v.GetString(config.KeyLogFormat),
		Output: "stderr",
	})
	logging.Default().Debug().
		Str("config", v.ConfigFileUsed()).
		Str("command", cmd.CommandPath()).
		Msg("configuration loaded")
	return nil
}
