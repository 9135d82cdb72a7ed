package strategy

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"swapengine/internal/chain"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	evmTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUniswapFixture(t *testing.T) (*UniswapStrategy, *fakeSigner, *fakeProvider, *journal) {
	t.Helper()
	j := &journal{}
	signer := newFakeSigner(t, j)
	provider := &fakeProvider{
		quoter:  common.HexToAddress(DefaultUniswapQuoter),
		quotes:  map[uint32]*big.Int{},
		journal: j,
	}
	s, err := NewUniswapStrategy(testDeps(signer, provider))
	require.NoError(t, err)
	return s, signer, provider, j
}

func decodeExactInputSingle(t *testing.T, data []byte) exactInputSingleParams {
	t.Helper()
	method := routerABI.Methods["exactInputSingle"]
	require.Equal(t, method.ID, data[:4])
	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	return *abi.ConvertType(args[0], new(exactInputSingleParams)).(*exactInputSingleParams)
}

func TestUniswapExecuteSwapApprovesBeforeSwapping(t *testing.T) {
	s, signer, provider, j := newUniswapFixture(t)
	provider.quotes[500] = big.NewInt(1000)
	provider.quotes[3000] = big.NewInt(2000)
	provider.receiptLogs = []*evmTypes.Log{transferLog(common.HexToAddress(testTokenOut), signer.Address(), 1995)}

	var approvals []string
	hooks := &Hooks{
		OnApprovalStart:    func(_ context.Context, ev ApprovalEvent) { approvals = append(approvals, "start:"+ev.Spender) },
		OnApprovalComplete: func(_ context.Context, ev ApprovalEvent) { approvals = append(approvals, "complete:"+ev.TxHash) },
	}

	result, err := s.ExecuteSwap(context.Background(), testRequest(signer.Address(), 1_000_000), hooks)
	require.NoError(t, err)

	sent := signer.sentCopy()
	require.Len(t, sent, 2)
	assert.Equal(t, common.HexToAddress(testTokenIn), sent[0].To)
	assert.Equal(t, chain.ERC20ABI.Methods["approve"].ID, sent[0].Data[:4])
	assert.Equal(t, common.HexToAddress(DefaultUniswapRouter), sent[1].To)

	entries := j.list()
	assert.Equal(t, "allowance", entries[0])
	assert.Equal(t, "send:"+common.HexToAddress(testTokenIn).Hex(), entries[1])
	assert.Equal(t, "send:"+common.HexToAddress(DefaultUniswapRouter).Hex(), entries[len(entries)-1])

	require.Len(t, approvals, 2)
	assert.Equal(t, "start:"+common.HexToAddress(DefaultUniswapRouter).Hex(), approvals[0])

	params := decodeExactInputSingle(t, sent[1].Data)
	assert.Equal(t, int64(3000), params.Fee.Int64())
	assert.Equal(t, int64(1990), params.AmountOutMinimum.Int64())
	assert.Equal(t, int64(0), params.SqrtPriceLimitX96.Int64())
	assert.Equal(t, signer.Address(), params.Recipient)
	assert.Equal(t, testNow.Add(time.Hour).Unix(), params.Deadline.Int64())
	assert.Equal(t, int64(1_000_000), params.AmountIn.Int64())

	assert.True(t, result.Success)
	assert.Equal(t, StatusConfirmed, result.Status)
	assert.Equal(t, "Uniswap V3", result.StrategyName)
	assert.Equal(t, TrackingTransaction, result.TrackingInfo.TrackingMethod)
	assert.Equal(t, result.ID, result.TrackingInfo.TrackingID)
	assert.Equal(t, "https://etherscan.io/tx/"+result.ID, result.ExplorerURL)
	assert.Equal(t, uint64(100), result.BlockNumber)
	require.NotNil(t, result.AmountOut)
	assert.Equal(t, int64(1995), result.AmountOut.Int64())
}

func TestUniswapSkipsApprovalWhenAllowanceCoversAmount(t *testing.T) {
	s, signer, provider, _ := newUniswapFixture(t)
	provider.allowance = big.NewInt(1_000_000)
	provider.quotes[3000] = big.NewInt(500)

	_, err := s.ExecuteSwap(context.Background(), testRequest(signer.Address(), 1_000_000), nil)
	require.NoError(t, err)

	sent := signer.sentCopy()
	require.Len(t, sent, 1)
	assert.Equal(t, common.HexToAddress(DefaultUniswapRouter), sent[0].To)
}

func TestCheckApprovalNeededFailsSafeOnQueryError(t *testing.T) {
	s, signer, provider, _ := newUniswapFixture(t)
	provider.allowanceErr = errors.New("rpc unavailable")

	needed, err := s.CheckApprovalNeeded(context.Background(), testRequest(signer.Address(), 10))
	require.NoError(t, err)
	assert.True(t, needed)
	assert.Equal(t, 3, provider.allowanceCalls)
}

func TestCheckApprovalNeededIsIdempotent(t *testing.T) {
	s, signer, provider, _ := newUniswapFixture(t)
	provider.allowance = big.NewInt(5)
	req := testRequest(signer.Address(), 10)

	first, err := s.CheckApprovalNeeded(context.Background(), req)
	require.NoError(t, err)
	second, err := s.CheckApprovalNeeded(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, first)
	assert.Equal(t, first, second)
	assert.Empty(t, signer.sentCopy())
}

func TestCheckApprovalNeededNativeToken(t *testing.T) {
	s, signer, provider, _ := newUniswapFixture(t)
	req := testRequest(signer.Address(), 10)
	req.TokenIn = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"

	needed, err := s.CheckApprovalNeeded(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, needed)
	assert.Zero(t, provider.allowanceCalls)
}

func TestUniswapEstimateOutput(t *testing.T) {
	s, signer, provider, _ := newUniswapFixture(t)
	provider.quotes[10000] = big.NewInt(4000)

	req := testRequest(signer.Address(), 2000)
	req.Options = &Options{SlippageBps: 100}
	quote, err := s.EstimateOutput(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, quote.SlippageProtected)
	assert.Equal(t, int64(4000), quote.EstimatedOutput.Int64())
	assert.Equal(t, int64(3960), quote.MinimumOutput.Int64())
	assert.Equal(t, "2", quote.ExecutionPrice.String())
	assert.Equal(t, 100, quote.SlippageBps)
}

func TestUniswapEstimateOutputWithoutPoolIsUnprotected(t *testing.T) {
	s, signer, _, _ := newUniswapFixture(t)

	quote, err := s.EstimateOutput(context.Background(), testRequest(signer.Address(), 2000))
	require.NoError(t, err)
	assert.False(t, quote.SlippageProtected)
	assert.Zero(t, quote.EstimatedOutput.Sign())
	assert.Zero(t, quote.MinimumOutput.Sign())
}

func TestUniswapRefusesSwapWithoutPoolPrice(t *testing.T) {
	s, signer, provider, _ := newUniswapFixture(t)
	provider.allowance = chain.MaxUint256

	_, err := s.ExecuteSwap(context.Background(), testRequest(signer.Address(), 1000), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoPoolPrice)
	assert.Equal(t, "Uniswap V3: no pool price available for this pair", err.Error())
	assert.Empty(t, signer.sentCopy())
}

func TestUniswapUnprotectedSwapWhenAllowed(t *testing.T) {
	j := &journal{}
	signer := newFakeSigner(t, j)
	provider := &fakeProvider{quoter: common.HexToAddress(DefaultUniswapQuoter), allowance: chain.MaxUint256, journal: j}
	deps := testDeps(signer, provider)
	deps.Uniswap.AllowUnprotectedSwap = true
	s, err := NewUniswapStrategy(deps)
	require.NoError(t, err)

	_, err = s.ExecuteSwap(context.Background(), testRequest(signer.Address(), 1000), nil)
	require.NoError(t, err)

	sent := signer.sentCopy()
	require.Len(t, sent, 1)
	params := decodeExactInputSingle(t, sent[0].Data)
	assert.Zero(t, params.AmountOutMinimum.Sign())
	assert.Equal(t, int64(500), params.Fee.Int64())
}

func TestUniswapNativeTokenInSendsValue(t *testing.T) {
	s, signer, provider, _ := newUniswapFixture(t)
	provider.quotes[500] = big.NewInt(10)

	req := testRequest(signer.Address(), 1000)
	req.TokenIn = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"
	_, err := s.ExecuteSwap(context.Background(), req, nil)
	require.NoError(t, err)

	sent := signer.sentCopy()
	require.Len(t, sent, 1)
	require.NotNil(t, sent[0].Value)
	assert.Equal(t, int64(1000), sent[0].Value.Int64())
	params := decodeExactInputSingle(t, sent[0].Data)
	assert.Equal(t, common.HexToAddress(DefaultWrappedNative), params.TokenIn)
}

func TestUniswapRevertedSwap(t *testing.T) {
	s, signer, provider, _ := newUniswapFixture(t)
	provider.allowance = chain.MaxUint256
	provider.quotes[3000] = big.NewInt(10)
	provider.revertAll = true

	_, err := s.ExecuteSwap(context.Background(), testRequest(signer.Address(), 1000), nil)
	require.Error(t, err)

	var settlementErr *SettlementFailedError
	require.ErrorAs(t, err, &settlementErr)
	assert.Equal(t, "Uniswap V3: transaction reverted on-chain", err.Error())
}

func TestUniswapRetriesReceiptAfterRPCError(t *testing.T) {
	s, signer, provider, _ := newUniswapFixture(t)
	provider.allowance = chain.MaxUint256
	provider.quotes[3000] = big.NewInt(10)
	provider.receiptErrs = []error{errors.New("connection reset by peer")}

	result, err := s.ExecuteSwap(context.Background(), testRequest(signer.Address(), 1000), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, result.Status)
	assert.Equal(t, 2, provider.receiptCalls)
	assert.Len(t, signer.sentCopy(), 1)
}

func TestUniswapInterruptedTrackingIsPending(t *testing.T) {
	s, signer, provider, _ := newUniswapFixture(t)
	provider.allowance = chain.MaxUint256
	provider.quotes[3000] = big.NewInt(10)
	provider.receiptErr = errors.New("connection reset by peer")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	result, err := s.ExecuteSwap(ctx, testRequest(signer.Address(), 1000), nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, StatusPending, result.Status)
	require.NotEmpty(t, result.ID)
	assert.Equal(t, result.ID, result.TrackingInfo.TrackingID)
	assert.Equal(t, TrackingTransaction, result.TrackingInfo.TrackingMethod)
	assert.Len(t, signer.sentCopy(), 1)
}

func TestFailedApprovalStopsSwap(t *testing.T) {
	s, signer, provider, _ := newUniswapFixture(t)
	provider.quotes[3000] = big.NewInt(10)
	provider.revertAll = true

	completed := false
	hooks := &Hooks{OnApprovalComplete: func(context.Context, ApprovalEvent) { completed = true }}
	_, err := s.ExecuteSwap(context.Background(), testRequest(signer.Address(), 1000), hooks)
	require.Error(t, err)

	var approvalErr *ApprovalFailedError
	require.ErrorAs(t, err, &approvalErr)
	assert.Equal(t, "Uniswap V3: token approval failed", err.Error())
	assert.Len(t, signer.sentCopy(), 1)
	assert.False(t, completed)
}

func TestUserRejectionIsClassified(t *testing.T) {
	s, signer, provider, _ := newUniswapFixture(t)
	provider.allowance = chain.MaxUint256
	provider.quotes[3000] = big.NewInt(10)
	signer.sendErr = errors.New("User rejected the request")

	_, err := s.ExecuteSwap(context.Background(), testRequest(signer.Address(), 1000), nil)
	require.Error(t, err)
	assert.Equal(t, "Uniswap V3: transaction rejected by user", err.Error())
}

func TestExecuteSwapValidation(t *testing.T) {
	s, signer, _, _ := newUniswapFixture(t)

	cases := map[string]func(*SwapRequest){
		"same token":     func(r *SwapRequest) { r.TokenOut = r.TokenIn },
		"zero amount":    func(r *SwapRequest) { r.Amount = big.NewInt(0) },
		"nil amount":     func(r *SwapRequest) { r.Amount = nil },
		"bad token":      func(r *SwapRequest) { r.TokenIn = "0x1234" },
		"other user":     func(r *SwapRequest) { r.UserAddress = "0x3333333333333333333333333333333333333333" },
		"slippage range": func(r *SwapRequest) { r.Options = &Options{SlippageBps: 10000} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := testRequest(signer.Address(), 1000)
			mutate(req)

			_, err := s.ExecuteSwap(context.Background(), req, nil)
			require.Error(t, err)
			var validation *ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Contains(t, err.Error(), "Uniswap V3: invalid ")
		})
	}
	assert.Empty(t, signer.sentCopy())
}

func TestExecuteSwapRequiresSigner(t *testing.T) {
	s, err := NewUniswapStrategy(testDeps(nil, &fakeProvider{}))
	require.NoError(t, err)

	_, err = s.ExecuteSwap(context.Background(), testRequest(common.HexToAddress("0x3333333333333333333333333333333333333333"), 1), nil)
	require.ErrorIs(t, err, ErrSignerRequired)
}

func TestHashStatusLookup(t *testing.T) {
	s, _, provider, _ := newUniswapFixture(t)
	pending := common.HexToHash("0x01")
	provider.missing = map[common.Hash]bool{pending: true}

	status, err := s.GetTransactionStatus(context.Background(), pending.Hex())
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status.Status)

	done := common.HexToHash("0x02")
	status, err = s.GetTransactionStatus(context.Background(), done.Hex())
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, status.Status)
	assert.Equal(t, TrackingTransaction, status.Method)
	assert.Equal(t, uint64(100), status.BlockNumber)

	_, err = s.GetTransactionStatus(context.Background(), "not-a-hash")
	require.Error(t, err)
}
