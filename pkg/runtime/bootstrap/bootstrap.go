// Package bootstrap builds the long-lived collaborators shared by the web
// server and the command line tool from a validated configuration.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/de-tools/report-ledger/pkg/services/config"
	"github.com/de-tools/report-ledger/pkg/services/ledger"
	"github.com/de-tools/report-ledger/pkg/services/report"
	"github.com/de-tools/report-ledger/pkg/store/sqldb"
	"github.com/de-tools/report-ledger/pkg/store/sqldb/commitment"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// NewLogger builds the process logger. Unknown levels fall back to info.
func NewLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Str("service", "report-ledger").Logger()
}

type Store struct {
	DB          *sql.DB
	Commitments commitment.Store
}

func (s *Store) Close() error {
	return s.DB.Close()
}

func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	db, dialect, err := sqldb.NewDB(ctx, sqldb.Settings{
		Driver:       cfg.Driver,
		DSN:          cfg.DSN,
		MaxOpenConns: cfg.MaxOpenConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open commitment database: %w", err)
	}

	commitments, err := commitment.NewStore(db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create commitment store: %w", err)
	}

	zerolog.Ctx(ctx).Info().Str("driver", string(dialect)).Msg("commitment store ready")
	return &Store{DB: db, Commitments: commitments}, nil
}

type Ledger struct {
	Client   *ledger.Client
	Explorer ledger.Explorer
	close    func()
}

func (l *Ledger) Close() {
	l.close()
}

func OpenLedger(ctx context.Context, cfg config.LedgerConfig) (*Ledger, error) {
	account, err := ledger.NewAccount(cfg.PrivateKey.Value())
	if err != nil {
		return nil, err
	}
	contractABI, err := ledger.LoadContractABI(cfg.ABIPath)
	if err != nil {
		return nil, err
	}

	rpcClient, err := ledger.Dial(ctx, cfg.RPCURL)
	if err != nil {
		return nil, err
	}

	client, err := ledger.NewClient(ctx, rpcClient, account, common.HexToAddress(cfg.ContractAddress), contractABI, ledger.Options{
		GasMargin:            cfg.GasMargin,
		MaxFeePerGas:         ledger.Gwei(cfg.MaxFeeGwei),
		MaxPriorityFeePerGas: ledger.Gwei(cfg.PriorityFeeGwei),
		ConfirmTimeout:       cfg.ConfirmTimeout,
		PollInterval:         cfg.PollInterval,
	})
	if err != nil {
		rpcClient.Close()
		return nil, fmt.Errorf("failed to connect to ledger: %w", err)
	}

	explorer := newExplorer(zerolog.Ctx(ctx), cfg)
	zerolog.Ctx(ctx).Info().
		Str("signer", client.Address().Hex()).
		Str("contract", common.HexToAddress(cfg.ContractAddress).Hex()).
		Str("chain_id", client.ChainID().String()).
		Str("explorer", explorer.BaseURL()).
		Msg("connected to ledger")

	return &Ledger{Client: client, Explorer: explorer, close: rpcClient.Close}, nil
}

func newExplorer(logger *zerolog.Logger, cfg config.LedgerConfig) ledger.Explorer {
	explorer := ledger.NewExplorer(cfg.ExplorerURL, cfg.RPCURL)
	if explorer.BaseURL() == "" {
		logger.Warn().Msg("EXPLORER_URL is unset and cannot be derived from the rpc url; commitments will have no explorer link")
	}
	return explorer
}

// OpenCommitter wires the ledger and the store into the commit workflow. The
// returned cleanup releases both.
func OpenCommitter(ctx context.Context, cfg *config.Config) (*report.Committer, func(), error) {
	l, err := OpenLedger(ctx, cfg.Ledger)
	if err != nil {
		return nil, nil, err
	}
	s, err := OpenStore(ctx, cfg.Database)
	if err != nil {
		l.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := s.Close(); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to close commitment database")
		}
		l.Close()
	}
	return report.NewCommitter(l.Client, s.Commitments, l.Explorer), cleanup, nil
}
