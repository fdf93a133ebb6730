package main

import (
	"context"
	"fmt"
	"os"

	"github.com/de-tools/report-ledger/pkg/runtime/bootstrap"
	"github.com/de-tools/report-ledger/pkg/runtime/terminal"
	"github.com/de-tools/report-ledger/pkg/services/config"
	"github.com/de-tools/report-ledger/pkg/services/report"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()

	cli := terminal.NewCLI(terminal.Options{
		Services: openServices,
		Output:   os.Stdout,
	})

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openServices(ctx context.Context) (report.Service, func(), error) {
	cfg, err := config.Load(os.Getenv("REPORT_LEDGER_CONFIG"))
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg.Log.Format = "console"
	logger := bootstrap.NewLogger(cfg.Log)
	zerolog.DefaultContextLogger = &logger
	ctx = logger.WithContext(ctx)

	committer, cleanup, err := bootstrap.OpenCommitter(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return committer, cleanup, nil
}
