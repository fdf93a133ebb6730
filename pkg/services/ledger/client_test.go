package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

var (
	testContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	testChainID  = big.NewInt(1337)
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) ChainID(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *mockBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *mockBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *mockBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	args := m.Called(ctx, txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Receipt), args.Error(1)
}

func (m *mockBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	args := m.Called(ctx, msg, blockNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// nodeError mimics a JSON-RPC error object returned by the node.
type nodeError struct {
	code int
	msg  string
}

func (e nodeError) Error() string  { return e.msg }
func (e nodeError) ErrorCode() int { return e.code }

type revertDataError struct {
	nodeError
	data string
}

func (e revertDataError) ErrorData() interface{} { return e.data }

type fixture struct {
	backend *mockBackend
	account *Account
	client  *Client
	ctx     context.Context
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()

	account, err := NewAccount(testKey)
	require.NoError(t, err)
	contractABI, err := LoadContractABI("")
	require.NoError(t, err)

	backend := new(mockBackend)
	backend.On("ChainID", mock.Anything).Return(testChainID, nil).Once()

	opts := DefaultOptions()
	opts.ConfirmTimeout = 200 * time.Millisecond
	opts.PollInterval = time.Millisecond

	client, err := NewClient(context.Background(), backend, account, testContract, contractABI, opts)
	require.NoError(t, err)

	logger := zerolog.New(zerolog.NewTestWriter(t))
	return &fixture{
		backend: backend,
		account: account,
		client:  client,
		ctx:     logger.WithContext(context.Background()),
	}
}

func (f *fixture) expectPreparation(estimate uint64) {
	f.backend.On("PendingNonceAt", mock.Anything, f.account.Address()).Return(uint64(7), nil).Once()
	f.backend.On("SuggestGasPrice", mock.Anything).Return(Gwei(1), nil).Once()
	f.backend.On("EstimateGas", mock.Anything, mock.MatchedBy(func(msg ethereum.CallMsg) bool {
		return msg.From == f.account.Address() && msg.To != nil && *msg.To == testContract && len(msg.Data) > 4
	})).Return(estimate, nil).Once()
}

func TestNewAccount(t *testing.T) {
	withPrefix, err := NewAccount("0x" + testKey)
	require.NoError(t, err)
	plain, err := NewAccount(testKey)
	require.NoError(t, err)

	assert.Equal(t, plain.Address(), withPrefix.Address())
	assert.Equal(t, plain.Address().Hex(), plain.String())
	assert.NotContains(t, plain.String(), testKey)

	_, err = NewAccount("")
	assert.Error(t, err)
	_, err = NewAccount("not-a-key")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "not-a-key")
}

func TestNewClient_FailsWhenChainUnreachable(t *testing.T) {
	account, err := NewAccount(testKey)
	require.NoError(t, err)
	contractABI, err := LoadContractABI("")
	require.NoError(t, err)

	backend := new(mockBackend)
	backend.On("ChainID", mock.Anything).Return(nil, errors.New("connection refused"))

	client, err := NewClient(context.Background(), backend, account, testContract, contractABI, DefaultOptions())
	assert.Error(t, err)
	assert.Nil(t, client)
}

func TestClient_Commit_Confirmed(t *testing.T) {
	f := setupFixture(t)
	f.expectPreparation(21_000)

	var sent *types.Transaction
	f.backend.On("SendTransaction", mock.Anything, mock.AnythingOfType("*types.Transaction")).
		Run(func(args mock.Arguments) { sent = args.Get(1).(*types.Transaction) }).
		Return(nil).Once()
	f.backend.On("TransactionReceipt", mock.Anything, mock.Anything).Return(nil, ethereum.NotFound).Twice()
	f.backend.On("TransactionReceipt", mock.Anything, mock.Anything).Return(&types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(42),
		GasUsed:     30_123,
	}, nil).Once()

	result := f.client.Commit(f.ctx, `{"a":1}`)

	confirmed, ok := result.(Confirmed)
	require.True(t, ok, "expected Confirmed, got %#v", result)
	require.NotNil(t, sent)
	assert.Equal(t, sent.Hash().Hex(), confirmed.TxID)
	assert.Len(t, confirmed.TxID, 66)
	assert.Equal(t, "0x", confirmed.TxID[:2])
	assert.Equal(t, uint64(42), confirmed.BlockNumber)
	assert.Equal(t, uint64(30_123), confirmed.GasUsed)

	assert.Equal(t, uint8(types.DynamicFeeTxType), sent.Type())
	assert.Equal(t, uint64(7), sent.Nonce())
	assert.Equal(t, uint64(71_000), sent.Gas())
	assert.Equal(t, 0, sent.GasFeeCap().Cmp(Gwei(50)))
	assert.Equal(t, 0, sent.GasTipCap().Cmp(Gwei(2)))
	assert.Equal(t, 0, sent.ChainId().Cmp(testChainID))
	assert.Equal(t, testContract, *sent.To())

	sender, err := types.Sender(types.LatestSignerForChainID(testChainID), sent)
	require.NoError(t, err)
	assert.Equal(t, f.account.Address(), sender)

	expectedData, err := f.client.abi.Pack(recordMethod, `{"a":1}`)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(expectedData, sent.Data()))

	f.backend.AssertExpectations(t)
}

func TestClient_Commit_ReadsNonceEveryCall(t *testing.T) {
	f := setupFixture(t)
	f.backend.On("PendingNonceAt", mock.Anything, f.account.Address()).Return(uint64(3), nil).Once()
	f.backend.On("PendingNonceAt", mock.Anything, f.account.Address()).Return(uint64(4), nil).Once()
	f.backend.On("SuggestGasPrice", mock.Anything).Return(Gwei(1), nil)
	f.backend.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(21_000), nil)

	var nonces []uint64
	f.backend.On("SendTransaction", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { nonces = append(nonces, args.Get(1).(*types.Transaction).Nonce()) }).
		Return(nil)
	f.backend.On("TransactionReceipt", mock.Anything, mock.Anything).
		Return(&types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(1)}, nil)

	_, ok := f.client.Commit(f.ctx, "first").(Confirmed)
	require.True(t, ok)
	_, ok = f.client.Commit(f.ctx, "second").(Confirmed)
	require.True(t, ok)

	assert.Equal(t, []uint64{3, 4}, nonces)
	f.backend.AssertNumberOfCalls(t, "PendingNonceAt", 2)
}

func TestClient_Commit_Failures(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(f *fixture)
		reason     FailureReason
		withTxID   bool
		sendCalled bool
	}{
		{
			name: "reverted on chain",
			setup: func(f *fixture) {
				f.expectPreparation(21_000)
				f.backend.On("SendTransaction", mock.Anything, mock.Anything).Return(nil).Once()
				f.backend.On("TransactionReceipt", mock.Anything, mock.Anything).Return(&types.Receipt{
					Status:      types.ReceiptStatusFailed,
					BlockNumber: big.NewInt(9),
				}, nil).Once()
			},
			reason:     ReasonExecutionReverted,
			withTxID:   true,
			sendCalled: true,
		},
		{
			name: "simulation rejected by node",
			setup: func(f *fixture) {
				f.backend.On("PendingNonceAt", mock.Anything, mock.Anything).Return(uint64(1), nil).Once()
				f.backend.On("SuggestGasPrice", mock.Anything).Return(Gwei(1), nil).Once()
				f.backend.On("EstimateGas", mock.Anything, mock.Anything).
					Return(uint64(0), nodeError{code: 3, msg: "execution reverted: empty report"}).Once()
			},
			reason: ReasonSimulationFailed,
		},
		{
			name: "estimate transport failure",
			setup: func(f *fixture) {
				f.backend.On("PendingNonceAt", mock.Anything, mock.Anything).Return(uint64(1), nil).Once()
				f.backend.On("SuggestGasPrice", mock.Anything).Return(Gwei(1), nil).Once()
				f.backend.On("EstimateGas", mock.Anything, mock.Anything).
					Return(uint64(0), errors.New("dial tcp: connection refused")).Once()
			},
			reason: ReasonNetworkError,
		},
		{
			name: "insufficient funds",
			setup: func(f *fixture) {
				f.expectPreparation(21_000)
				f.backend.On("SendTransaction", mock.Anything, mock.Anything).
					Return(nodeError{code: -32000, msg: "insufficient funds for gas * price + value"}).Once()
			},
			reason:     ReasonSubmissionRejected,
			sendCalled: true,
		},
		{
			name: "nonce unavailable",
			setup: func(f *fixture) {
				f.backend.On("PendingNonceAt", mock.Anything, mock.Anything).
					Return(uint64(0), errors.New("503 service unavailable")).Once()
			},
			reason: ReasonNetworkError,
		},
		{
			name: "confirmation timeout",
			setup: func(f *fixture) {
				f.expectPreparation(21_000)
				f.backend.On("SendTransaction", mock.Anything, mock.Anything).Return(nil).Once()
				f.backend.On("TransactionReceipt", mock.Anything, mock.Anything).Return(nil, ethereum.NotFound)
			},
			reason:     ReasonTimeout,
			withTxID:   true,
			sendCalled: true,
		},
		{
			name: "receipt polling errors until timeout",
			setup: func(f *fixture) {
				f.expectPreparation(21_000)
				f.backend.On("SendTransaction", mock.Anything, mock.Anything).Return(nil).Once()
				f.backend.On("TransactionReceipt", mock.Anything, mock.Anything).Return(nil, errors.New("bad gateway"))
			},
			reason:     ReasonTimeout,
			withTxID:   true,
			sendCalled: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := setupFixture(t)
			tc.setup(f)

			result := f.client.Commit(f.ctx, "payload")

			failed, ok := result.(Failed)
			require.True(t, ok, "expected Failed, got %#v", result)
			assert.Equal(t, tc.reason, failed.Reason)
			if tc.withTxID {
				assert.Len(t, failed.TxID, 66)
			} else {
				assert.Empty(t, failed.TxID)
			}
			if !tc.sendCalled {
				f.backend.AssertNotCalled(t, "SendTransaction", mock.Anything, mock.Anything)
			}
			assert.Contains(t, failed.Message(), string(tc.reason))
		})
	}
}

func TestClient_Commit_CanceledContext(t *testing.T) {
	f := setupFixture(t)
	ctx, cancel := context.WithCancel(f.ctx)
	cancel()

	f.backend.On("PendingNonceAt", mock.Anything, mock.Anything).Return(uint64(0), context.Canceled).Once()

	failed, ok := f.client.Commit(ctx, "payload").(Failed)
	require.True(t, ok)
	assert.Equal(t, ReasonCanceled, failed.Reason)
	assert.True(t, failed.Reason.Retryable())
}

func TestClient_Commit_CallerCanceledAfterSend(t *testing.T) {
	f := setupFixture(t)
	f.expectPreparation(21_000)
	ctx, cancel := context.WithCancel(f.ctx)
	defer cancel()

	f.backend.On("SendTransaction", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil).Once()
	liveCtx := mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil })
	f.backend.On("TransactionReceipt", liveCtx, mock.Anything).Return(nil, ethereum.NotFound).Twice()
	f.backend.On("TransactionReceipt", liveCtx, mock.Anything).Return(&types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(9),
	}, nil).Once()

	result := f.client.Commit(ctx, "payload")

	confirmed, ok := result.(Confirmed)
	require.True(t, ok, "expected Confirmed, got %#v", result)
	assert.Equal(t, uint64(9), confirmed.BlockNumber)
	require.Error(t, ctx.Err())
	f.backend.AssertExpectations(t)
}

func TestClient_Lookup(t *testing.T) {
	stored := common.HexToHash("0x9c22ff5f21f0b81b113e63f7db6da94fedef11b2119b4088b89664fb9a3cb658")

	t.Run("found", func(t *testing.T) {
		f := setupFixture(t)
		out, err := f.client.abi.Methods[lookupMethod].Outputs.Pack([32]byte(stored))
		require.NoError(t, err)
		f.backend.On("CallContract", mock.Anything, mock.MatchedBy(func(msg ethereum.CallMsg) bool {
			return msg.To != nil && *msg.To == testContract
		}), (*big.Int)(nil)).Return(out, nil).Once()

		hash, err := f.client.Lookup(f.ctx, big.NewInt(1))
		require.NoError(t, err)
		assert.Equal(t, stored, hash)
	})

	t.Run("zero hash", func(t *testing.T) {
		f := setupFixture(t)
		out, err := f.client.abi.Methods[lookupMethod].Outputs.Pack([32]byte{})
		require.NoError(t, err)
		f.backend.On("CallContract", mock.Anything, mock.Anything, mock.Anything).Return(out, nil).Once()

		_, err = f.client.Lookup(f.ctx, big.NewInt(2))
		assert.ErrorIs(t, err, ErrReportNotFound)
	})

	t.Run("reverted call", func(t *testing.T) {
		f := setupFixture(t)
		f.backend.On("CallContract", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, nodeError{code: 3, msg: "execution reverted: Report does not exist"}).Once()

		_, err := f.client.Lookup(f.ctx, big.NewInt(3))
		assert.ErrorIs(t, err, ErrReportNotFound)
	})

	t.Run("revert with data", func(t *testing.T) {
		f := setupFixture(t)
		f.backend.On("CallContract", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, revertDataError{nodeError: nodeError{code: -32015, msg: "VM execution error"}, data: "0x08c379a0"}).Once()

		_, err := f.client.Lookup(f.ctx, big.NewInt(3))
		assert.ErrorIs(t, err, ErrReportNotFound)
	})

	for _, nodeErr := range []nodeError{
		{code: -32005, msg: "rate limit exceeded"},
		{code: -32601, msg: "the method eth_call does not exist/is not available"},
		{code: -32000, msg: "header not found"},
	} {
		t.Run(fmt.Sprintf("node error %d", nodeErr.code), func(t *testing.T) {
			f := setupFixture(t)
			f.backend.On("CallContract", mock.Anything, mock.Anything, mock.Anything).
				Return(nil, nodeErr).Once()

			_, err := f.client.Lookup(f.ctx, big.NewInt(5))
			require.Error(t, err)
			assert.NotErrorIs(t, err, ErrReportNotFound)
			assert.ErrorIs(t, err, nodeErr)
		})
	}

	t.Run("transport failure", func(t *testing.T) {
		f := setupFixture(t)
		f.backend.On("CallContract", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("connection reset")).Once()

		_, err := f.client.Lookup(f.ctx, big.NewInt(4))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrReportNotFound)
	})

	t.Run("negative id", func(t *testing.T) {
		f := setupFixture(t)
		_, err := f.client.Lookup(f.ctx, big.NewInt(-1))
		assert.Error(t, err)
		f.backend.AssertNotCalled(t, "CallContract", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestFailureReason_Retryable(t *testing.T) {
	assert.True(t, ReasonTimeout.Retryable())
	assert.True(t, ReasonNetworkError.Retryable())
	assert.False(t, ReasonExecutionReverted.Retryable())
	assert.False(t, ReasonSimulationFailed.Retryable())
	assert.False(t, ReasonSubmissionRejected.Retryable())
}
