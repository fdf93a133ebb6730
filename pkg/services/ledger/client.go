package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"
)

// ErrReportNotFound is returned by Lookup when the ledger holds no hash for an id.
var ErrReportNotFound = errors.New("report not found on ledger")

// Backend is the subset of the JSON-RPC API the client needs. *ethclient.Client
// satisfies it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type Options struct {
	// GasMargin is added to every gas estimate.
	GasMargin            uint64
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	ConfirmTimeout       time.Duration
	PollInterval         time.Duration
}

func DefaultOptions() Options {
	return Options{
		GasMargin:            50_000,
		MaxFeePerGas:         Gwei(50),
		MaxPriorityFeePerGas: Gwei(2),
		ConfirmTimeout:       120 * time.Second,
		PollInterval:         time.Second,
	}
}

func Gwei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(params.GWei))
}

type Client struct {
	backend  Backend
	account  *Account
	contract common.Address
	abi      abi.ABI
	chainID  *big.Int
	opts     Options
}

// Dial connects to the ledger node at rpcURL.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger rpc: %w", err)
	}
	return client, nil
}

// NewClient reads the chain id once; an unreachable node fails here rather
// than on the first commit.
func NewClient(
	ctx context.Context,
	backend Backend,
	account *Account,
	contract common.Address,
	contractABI abi.ABI,
	opts Options,
) (*Client, error) {
	if backend == nil {
		return nil, fmt.Errorf("ledger backend is nil")
	}
	if account == nil {
		return nil, fmt.Errorf("ledger account is nil")
	}
	defaults := DefaultOptions()
	if opts.MaxFeePerGas == nil {
		opts.MaxFeePerGas = defaults.MaxFeePerGas
	}
	if opts.MaxPriorityFeePerGas == nil {
		opts.MaxPriorityFeePerGas = defaults.MaxPriorityFeePerGas
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = defaults.ConfirmTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaults.PollInterval
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read chain id: %w", err)
	}

	return &Client{
		backend:  backend,
		account:  account,
		contract: contract,
		abi:      contractABI,
		chainID:  chainID,
		opts:     opts,
	}, nil
}

func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

func (c *Client) Address() common.Address {
	return c.account.Address()
}

// Commit records payload on the ledger and blocks until the transaction is
// mined or the confirmation timeout elapses. It never reports success before
// a successful receipt is observed.
func (c *Client) Commit(ctx context.Context, payload string) TransactionResult {
	logger := zerolog.Ctx(ctx).With().
		Str("component", "ledger").
		Str("from", c.account.Address().Hex()).
		Logger()

	data, err := c.abi.Pack(recordMethod, payload)
	if err != nil {
		return c.fail(ctx, &logger, ReasonSubmissionRejected, "", fmt.Errorf("encode call: %w", err))
	}

	// nonce is read fresh for every commit
	nonce, err := c.backend.PendingNonceAt(ctx, c.account.Address())
	if err != nil {
		return c.fail(ctx, &logger, ReasonNetworkError, "", fmt.Errorf("read nonce: %w", err))
	}
	baseline, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return c.fail(ctx, &logger, ReasonNetworkError, "", fmt.Errorf("read gas price: %w", err))
	}
	logger.Info().
		Uint64("nonce", nonce).
		Str("gas_price_wei", baseline.String()).
		Msg("read account nonce and fee baseline")
	if baseline.Cmp(c.opts.MaxFeePerGas) > 0 {
		logger.Warn().
			Str("gas_price_wei", baseline.String()).
			Str("max_fee_per_gas_wei", c.opts.MaxFeePerGas.String()).
			Msg("network gas price exceeds configured fee cap")
	}

	estimate, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: c.account.Address(),
		To:   &c.contract,
		Data: data,
	})
	if err != nil {
		return c.fail(ctx, &logger, classify(err, ReasonSimulationFailed), "", fmt.Errorf("estimate gas: %w", err))
	}
	gasLimit := estimate + c.opts.GasMargin
	logger.Info().Uint64("gas_estimate", estimate).Uint64("gas_limit", gasLimit).Msg("estimated gas")

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: c.opts.MaxPriorityFeePerGas,
		GasFeeCap: c.opts.MaxFeePerGas,
		Gas:       gasLimit,
		To:        &c.contract,
		Value:     big.NewInt(0),
		Data:      data,
	})
	signed, err := c.account.sign(tx, c.chainID)
	if err != nil {
		return c.fail(ctx, &logger, ReasonSubmissionRejected, "", fmt.Errorf("sign transaction: %w", err))
	}

	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return c.fail(ctx, &logger, classify(err, ReasonSubmissionRejected), "", fmt.Errorf("send transaction: %w", err))
	}
	txID := signed.Hash().Hex()
	logger = logger.With().Str("tx_hash", txID).Logger()
	logger.Info().Msg("transaction sent, waiting for receipt")

	// Once broadcast, the receipt wait is bounded by ConfirmTimeout, not by the caller.
	waitCtx := context.WithoutCancel(ctx)
	receipt, err := c.waitMined(waitCtx, &logger, signed.Hash())
	if err != nil {
		return c.fail(waitCtx, &logger, ReasonNetworkError, txID, fmt.Errorf("wait for receipt: %w", err))
	}
	if receipt.TxHash != (common.Hash{}) {
		txID = receipt.TxHash.Hex()
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return c.fail(ctx, &logger, ReasonExecutionReverted, txID, nil)
	}

	var block uint64
	if receipt.BlockNumber != nil {
		block = receipt.BlockNumber.Uint64()
	}
	logger.Info().Uint64("block_number", block).Uint64("gas_used", receipt.GasUsed).Msg("transaction confirmed")

	return Confirmed{
		TxID:        txID,
		BlockNumber: block,
		GasUsed:     receipt.GasUsed,
	}
}

func (c *Client) waitMined(ctx context.Context, logger *zerolog.Logger, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			return receipt, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			logger.Debug().Err(err).Msg("receipt poll failed")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Lookup reads a recorded report hash through the contract's view function.
func (c *Client) Lookup(ctx context.Context, id *big.Int) (common.Hash, error) {
	if id == nil || id.Sign() < 0 {
		return common.Hash{}, fmt.Errorf("report id must be a non-negative integer")
	}
	data, err := c.abi.Pack(lookupMethod, id)
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode lookup call: %w", err)
	}

	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{
		From: c.account.Address(),
		To:   &c.contract,
		Data: data,
	}, nil)
	if err != nil {
		if isRevert(err) {
			return common.Hash{}, fmt.Errorf("report %s: %w (%v)", id, ErrReportNotFound, err)
		}
		return common.Hash{}, fmt.Errorf("call %s: %w", lookupMethod, err)
	}
	if len(out) == 0 {
		return common.Hash{}, fmt.Errorf("report %s: %w", id, ErrReportNotFound)
	}

	values, err := c.abi.Unpack(lookupMethod, out)
	if err != nil {
		return common.Hash{}, fmt.Errorf("decode %s result: %w", lookupMethod, err)
	}
	if len(values) != 1 {
		return common.Hash{}, fmt.Errorf("decode %s result: expected 1 value, got %d", lookupMethod, len(values))
	}
	raw, ok := values[0].([32]byte)
	if !ok {
		return common.Hash{}, fmt.Errorf("decode %s result: unexpected type %T", lookupMethod, values[0])
	}

	hash := common.Hash(raw)
	if hash == (common.Hash{}) {
		return common.Hash{}, fmt.Errorf("report %s: %w", id, ErrReportNotFound)
	}
	return hash, nil
}

func (c *Client) fail(
	ctx context.Context,
	logger *zerolog.Logger,
	reason FailureReason,
	txID string,
	err error,
) Failed {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		reason = ReasonTimeout
	case errors.Is(err, context.Canceled), ctx.Err() != nil:
		reason = ReasonCanceled
	}

	event := logger.Error()
	if reason == ReasonTimeout && txID != "" {
		event = logger.Warn()
	}
	event.Err(err).Str("reason", string(reason)).Bool("retryable", reason.Retryable()).Msg("ledger commit failed")

	return Failed{Reason: reason, TxID: txID, Err: err}
}

// revertErrorCode is the JSON-RPC code nodes attach to execution reverts.
const revertErrorCode = 3

// isRevert reports whether a call failed because the contract reverted, as
// opposed to the node refusing or failing to serve the request.
func isRevert(err error) bool {
	var rpcErr rpc.Error
	if !errors.As(err, &rpcErr) {
		return false
	}
	if rpcErr.ErrorCode() == revertErrorCode {
		return true
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) && dataErr.ErrorData() != nil {
		return true
	}
	return strings.Contains(rpcErr.Error(), "execution reverted")
}

// classify separates errors returned by the node (the request was understood
// and refused) from transport failures.
func classify(err error, nodeReason FailureReason) FailureReason {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return nodeReason
	}
	return ReasonNetworkError
}
