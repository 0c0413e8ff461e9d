package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/absmach/fedledger/cli"
	"github.com/absmach/fedledger/pkg/sdk"
	"github.com/spf13/cobra"
)

const defConfigPath = "fedledger.toml"

func main() {
	var (
		configPath     string
		coordinatorURL string
	)

	rootCmd := &cobra.Command{
		Use:   "fedledger-cli",
		Short: "Fedledger CLI",
		Long:  `Fedledger CLI manages models, training rounds and participants on a fedledger coordinator.`,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := cli.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if coordinatorURL != "" {
				cfg.Coordinator.URL = coordinatorURL
			}

			cli.SetSDK(sdk.NewSDK(sdk.Config{
				CoordinatorURL:  cfg.Coordinator.URL,
				TLSVerification: cfg.Coordinator.TLSVerification,
			}))
			cli.SetBroker(cfg.MQTT)

			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defConfigPath, "Config file path")
	rootCmd.PersistentFlags().StringVarP(&coordinatorURL, "coordinator-url", "u", "", "Coordinator URL")

	rootCmd.AddCommand(cli.NewModelsCmd())
	rootCmd.AddCommand(cli.NewRoundsCmd())
	rootCmd.AddCommand(cli.NewParticipantsCmd())
	rootCmd.AddCommand(cli.NewStatsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}
