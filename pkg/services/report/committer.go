package report

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/de-tools/report-ledger/pkg/adapters"
	"github.com/de-tools/report-ledger/pkg/models/domain"
	"github.com/de-tools/report-ledger/pkg/services/canonical"
	"github.com/de-tools/report-ledger/pkg/services/ledger"
	"github.com/de-tools/report-ledger/pkg/store/sqldb/commitment"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

var (
	ErrLedgerTimeout    = errors.New("ledger confirmation timed out")
	ErrLedgerSubmission = errors.New("ledger submission failed")
)

// CommitError is returned when the ledger did not confirm the commitment.
// TxID is set when a transaction was broadcast before the failure.
type CommitError struct {
	Reason ledger.FailureReason
	TxID   string
	Err    error
}

func (e *CommitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("commit report: %s", e.Reason)
	}
	return fmt.Sprintf("commit report: %s: %v", e.Reason, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

func (e *CommitError) Is(target error) bool {
	switch target {
	case ErrLedgerTimeout:
		return e.Reason == ledger.ReasonTimeout
	case ErrLedgerSubmission:
		return e.Reason != ledger.ReasonTimeout
	}
	return false
}

type Ledger interface {
	Commit(ctx context.Context, payload string) ledger.TransactionResult
	Lookup(ctx context.Context, id *big.Int) (common.Hash, error)
}

type Service interface {
	Commit(ctx context.Context, report domain.Report) (*domain.CommitmentRecord, error)
	LatestByPeriod(ctx context.Context, period domain.Period) (*domain.CommitmentRecord, error)
	LookupHash(ctx context.Context, id *big.Int) (string, error)
}

const persistTimeout = 10 * time.Second

type Committer struct {
	ledger   Ledger
	store    commitment.Store
	explorer ledger.Explorer
	now      func() time.Time
}

func NewCommitter(l Ledger, store commitment.Store, explorer ledger.Explorer) *Committer {
	return &Committer{
		ledger:   l,
		store:    store,
		explorer: explorer,
		now:      time.Now,
	}
}

// Commit canonicalizes the report, records it on the ledger and stores the
// resulting proof. A confirmed commitment is returned even when it could not
// be stored locally; the failure is logged with the transaction id.
func (c *Committer) Commit(ctx context.Context, report domain.Report) (*domain.CommitmentRecord, error) {
	logger := zerolog.Ctx(ctx).With().
		Str("start_date", report.Period.Start).
		Str("end_date", report.Period.End).
		Logger()
	logger.Info().Str("state", "received").Msg("report received")

	payload, err := canonical.Canonicalize(report)
	if err != nil {
		logger.Warn().Err(err).Str("state", "rejected").Msg("report cannot be canonicalized")
		return nil, fmt.Errorf("canonicalize report: %w", err)
	}
	logger.Debug().
		Str("state", "canonicalized").
		Str("fingerprint", canonical.Fingerprint(payload)).
		Int("payload_bytes", len(payload)).
		Msg("report canonicalized")

	logger.Info().Str("state", "submitted").Msg("submitting report to ledger")
	switch result := c.ledger.Commit(logger.WithContext(ctx), payload).(type) {
	case ledger.Confirmed:
		return c.persist(ctx, logger, report, result), nil
	case ledger.Failed:
		logger.Error().
			Err(result.Err).
			Str("state", "rejected").
			Str("reason", string(result.Reason)).
			Str("tx_hash", result.TxID).
			Msg("ledger did not confirm report")
		return nil, &CommitError{Reason: result.Reason, TxID: result.TxID, Err: result.Err}
	default:
		return nil, &CommitError{Reason: ledger.ReasonNetworkError, Err: fmt.Errorf("unexpected ledger result %T", result)}
	}
}

func (c *Committer) persist(
	ctx context.Context,
	logger zerolog.Logger,
	report domain.Report,
	confirmed ledger.Confirmed,
) *domain.CommitmentRecord {
	txID := ledger.NormalizeTxID(confirmed.TxID)
	record := &domain.CommitmentRecord{
		Period:      report.Period,
		Metrics:     report.Metrics,
		TxID:        txID,
		ExplorerURL: c.explorer.TxURL(txID),
		CreatedAt:   c.now().UTC(),
	}
	logger = logger.With().Str("tx_hash", txID).Logger()
	logger.Info().
		Str("state", "confirmed").
		Uint64("block", confirmed.BlockNumber).
		Uint64("gas_used", confirmed.GasUsed).
		Msg("report confirmed on ledger")

	// stored even if the caller has gone away
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	row := adapters.MapDomainCommitmentToStore(*record)
	if err := c.store.Insert(persistCtx, &row); err != nil {
		logger.Error().Err(err).Str("state", "persist_failed").Msg("failed to store confirmed commitment")
		return record
	}
	record.CreatedAt = row.CreatedAt
	logger.Info().Str("state", "persisted").Int64("id", row.ID).Msg("commitment stored")
	return record
}

// LatestByPeriod returns nil when nothing was committed for the period.
func (c *Committer) LatestByPeriod(ctx context.Context, period domain.Period) (*domain.CommitmentRecord, error) {
	row, err := c.store.LatestByPeriod(ctx, adapters.MapDomainPeriodToStore(period))
	if errors.Is(err, commitment.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return adapters.MapStoreCommitmentToDomain(row), nil
}

func (c *Committer) LookupHash(ctx context.Context, id *big.Int) (string, error) {
	hash, err := c.ledger.Lookup(ctx, id)
	if err != nil {
		return "", err
	}
	return hash.Hex(), nil
}
