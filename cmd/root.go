// Package cmd implements the sitemap command-line interface.
package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	infralogger "github.com/jonesrussell/north-cloud/sitemap/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/sitemap/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/sitemap/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "sitemap",
	Short:         "Resumable XML sitemap generator",
	Long:          `Generates, publishes and serves partitioned XML sitemaps in resumable batches.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command until it finishes or a shutdown signal arrives.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default is $CONFIG_PATH or ./config.yml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindEnv("config", "CONFIG_PATH")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sitemap version %s\n", config.DefaultVersion)
		},
	})

	rootCmd.AddCommand(
		newServeCommand(),
		newGenerateCommand(),
		newStatusCommand(),
		newMigrateCommand(),
		newImportCommand(),
		newPurgeCommand(),
	)
}

// loadConfig reads the configuration selected by --config and applies --debug.
func loadConfig() (*config.Config, infralogger.Logger, error) {
	cfg, err := bootstrap.LoadConfig(viper.GetString("config"))
	if err != nil {
		return nil, nil, err
	}
	if viper.GetBool("debug") {
		cfg.Service.Debug = true
		cfg.Logging.Level = "debug"
	}

	log, logErr := bootstrap.CreateLogger(cfg)
	if logErr != nil {
		return nil, nil, logErr
	}
	return cfg, log, nil
}

// openApp loads configuration and assembles the service. The caller closes the app.
func openApp(ctx context.Context) (*bootstrap.App, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}

	app, appErr := bootstrap.NewApp(ctx, cfg, log)
	if appErr != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("initialize app: %w", appErr)
	}
	return app, nil
}

func closeApp(app *bootstrap.App) {
	if err := app.Close(); err != nil {
		app.Logger.Warn("Failed to close connections", infralogger.Error(err))
	}
	_ = app.Logger.Sync()
}
