package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"duplicator/internal/config"
	"duplicator/internal/constants"
	"duplicator/internal/delivery"
	"duplicator/internal/logger"
	"duplicator/internal/relay"
	"duplicator/pkg/logging"
)

var (
	configFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "relay-service",
		Short:         "Relays chat messages to a destination channel through a webhook",
		Long:          "Relay Service observes new messages on the source platform and re-posts them to one destination channel under the original author's name and avatar",
		RunE:          serveCmd().RunE,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (optional, environment variables are always read)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(checkConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		logging.NewEarlyLog().Error("%v", err)
		os.Exit(1)
	}
}

func loadConfig(earlyLog *logging.EarlyLog) (*config.Config, error) {
	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		earlyLog.Error("Failed to load config: %v", err)
		return nil, err
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			earlyLog := logging.NewEarlyLog()

			cfg, err := loadConfig(earlyLog)
			if err != nil {
				return err
			}

			log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				earlyLog.Error("Failed to init logger: %v", err)
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			ctx = logging.WithServiceName(ctx, constants.ServiceName)

			log.InfowCtx(ctx, "Starting Relay Service",
				"source", cfg.Source.Type,
				"target_channel_id", cfg.Relay.TargetChannelID,
			)

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.ErrorwCtx(ctx, "Failed to initialize application", "error", err)
				return err
			}

			if err := app.Run(ctx); err != nil {
				log.ErrorwCtx(ctx, "Application error", "error", err)
				return err
			}
			return nil
		},
	}
}

func checkConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			earlyLog := logging.NewEarlyLog()

			cfg, err := loadConfig(earlyLog)
			if err != nil {
				return err
			}

			target, err := delivery.ParseWebhookURL(cfg.Delivery.WebhookURL)
			if err != nil {
				earlyLog.Error("Invalid webhook url: %v", err)
				return err
			}

			if _, err := relay.CompileRules(cfg.Relay.Rules); err != nil {
				earlyLog.Error("Invalid relay rules: %v", err)
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"configuration ok: source=%s target_channel=%s delivery=%s cache_capacity=%d workers=%d rules=%d\n",
				cfg.Source.Type, cfg.Relay.TargetChannelID, target, cfg.Relay.CacheCapacity, cfg.Relay.Workers, len(cfg.Relay.Rules),
			)
			return nil
		},
	}
}
