package main

import (
	"context"
	"fmt"
	"os"

	"github.com/de-tools/report-ledger/pkg/runtime/bootstrap"
	"github.com/de-tools/report-ledger/pkg/server"
	"github.com/de-tools/report-ledger/pkg/services/config"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	envPath string
)

func main() {
	var rootCmd = &cobra.Command{
		Use:          "web",
		Short:        "Start the report ledger web server",
		RunE:         runServer,
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to an optional YAML/TOML/JSON config file")
	rootCmd.Flags().StringVar(&envPath, "env-file", ".env", "Path to a .env file loaded before the environment is read")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	envErr := godotenv.Load(envPath)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	logger := bootstrap.NewLogger(cfg.Log)
	if envErr != nil && !os.IsNotExist(envErr) {
		logger.Warn().Err(envErr).Str("path", envPath).Msg("failed to load env file")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	ctx := logger.WithContext(cmd.Context())

	committer, cleanup, err := bootstrap.OpenCommitter(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	webAPI := server.NewWebAPI(server.Config{
		Addr:            cfg.Server.Addr(),
		BasePath:        cfg.Server.BasePath,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		CORSOrigins:     cfg.Server.CORSOrigins,
		MintRateLimit:   cfg.Server.MintRateLimit,
		MintBurst:       cfg.Server.MintBurst,
		Dependencies: server.Dependencies{
			Reports: committer,
			Logger:  logger,
		},
	})

	logger.Info().
		Str("base_path", cfg.Server.BasePath).
		Str("db_driver", cfg.Database.Driver).
		Stringer("private_key", cfg.Ledger.PrivateKey).
		Msg("configuration loaded")

	if err := webAPI.Start(ctx); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("server stopped")
		return err
	}
	return nil
}
