// Command claimbot runs the image-board claim bot and its offline tooling.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tbourn/claimbot/internal/config"
	"github.com/tbourn/claimbot/internal/sysutil"
)

// Set at link time with -ldflags "-X main.version=...".
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	if err := rootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd(out io.Writer) *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "claimbot",
		Short:         "Discord image-board claim bot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	// load runs before every subcommand that needs configuration.
	load := func() (config.Config, error) {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return config.Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
		cfg, err := config.Load()
		if err != nil {
			return cfg, err
		}
		sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, nil)
		return cfg, nil
	}

	cmd.AddCommand(
		serveCmd(load),
		claimsCmd(load),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "claimbot %s (build: %s)\n", version, buildTime)
			},
		},
	)
	return cmd
}

type loader func() (config.Config, error)

func serveCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and serve the ops HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}
