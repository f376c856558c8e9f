package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"helmetguard-client/config"
)

var configPath string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "helmetguard: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "./config/config.yaml"
	}

	cmd := &cobra.Command{
		Use:   "helmetguard",
		Short: "HelmetGuard rider client",
		Long: `HelmetGuard watches helmet telemetry, keeps a rolling pre-crash video buffer,
records incident clips and alerts emergency contacts when the helmet reports an emergency.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultPath, "Path to the configuration file")

	runCmd := newRunCmd()
	cmd.RunE = runCmd.RunE
	cmd.AddCommand(
		runCmd,
		newProbeCmd(),
		newShareLocationCmd(),
	)
	return cmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}
	return cfg, nil
}
