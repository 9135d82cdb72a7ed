package strategy

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"swapengine/internal/chain"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	evmTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/zeromicro/go-zero/core/logx"
)

const (
	DirectStrategyID = "direct"

	DefaultUniswapRouter = "0xE592427A0AEce92De3Edee1F18E0157C05861564"
	DefaultUniswapQuoter = "0x61fFE014bA17989E743c5F6cB21bF9697530B21e"
	DefaultWrappedNative = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"

	defaultUniswapSlippageBps = 50
	defaultUniswapDeadline    = time.Hour
)

var defaultFeeTiers = []uint32{500, 3000, 10000}

// DirectMetadata Uniswap V3 单池直接兑换
var DirectMetadata = StrategyMetadata{
	Name:                 "Uniswap V3",
	SettlementModel:      SettlementImmediate,
	GasRequired:          true,
	MevProtected:         false,
	ApprovalAddress:      DefaultUniswapRouter,
	ApprovalAddressLabel: "Uniswap V3 SwapRouter",
}

const quoterABIJSON = `[{"inputs":[{"components":[{"internalType":"address","name":"tokenIn","type":"address"},{"internalType":"address","name":"tokenOut","type":"address"},{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"uint24","name":"fee","type":"uint24"},{"internalType":"uint160","name":"sqrtPriceLimitX96","type":"uint160"}],"internalType":"struct IQuoterV2.QuoteExactInputSingleParams","name":"params","type":"tuple"}],"name":"quoteExactInputSingle","outputs":[{"internalType":"uint256","name":"amountOut","type":"uint256"},{"internalType":"uint160","name":"sqrtPriceX96After","type":"uint160"},{"internalType":"uint32","name":"initializedTicksCrossed","type":"uint32"},{"internalType":"uint256","name":"gasEstimate","type":"uint256"}],"stateMutability":"nonpayable","type":"function"}]`

const routerABIJSON = `[{"inputs":[{"components":[{"internalType":"address","name":"tokenIn","type":"address"},{"internalType":"address","name":"tokenOut","type":"address"},{"internalType":"uint24","name":"fee","type":"uint24"},{"internalType":"address","name":"recipient","type":"address"},{"internalType":"uint256","name":"deadline","type":"uint256"},{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"uint256","name":"amountOutMinimum","type":"uint256"},{"internalType":"uint160","name":"sqrtPriceLimitX96","type":"uint160"}],"internalType":"struct ISwapRouter.ExactInputSingleParams","name":"params","type":"tuple"}],"name":"exactInputSingle","outputs":[{"internalType":"uint256","name":"amountOut","type":"uint256"}],"stateMutability":"payable","type":"function"}]`

var (
	quoterABI = chain.MustParseABI(quoterABIJSON)
	routerABI = chain.MustParseABI(routerABIJSON)
)

type quoteExactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	AmountIn          *big.Int
	Fee               *big.Int
	SqrtPriceLimitX96 *big.Int
}

type exactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	Deadline          *big.Int
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

// UniswapConfig 直接兑换的参数，零值字段使用默认值
type UniswapConfig struct {
	Router               string
	Quoter               string
	WrappedNative        string
	FeeTiers             []uint32
	SlippageBps          int
	Deadline             time.Duration
	AllowUnprotectedSwap bool
}

func (c UniswapConfig) withDefaults() UniswapConfig {
	if c.Router == "" {
		c.Router = DefaultUniswapRouter
	}
	if c.Quoter == "" {
		c.Quoter = DefaultUniswapQuoter
	}
	if c.WrappedNative == "" {
		c.WrappedNative = DefaultWrappedNative
	}
	if len(c.FeeTiers) == 0 {
		c.FeeTiers = defaultFeeTiers
	}
	if c.SlippageBps <= 0 {
		c.SlippageBps = defaultUniswapSlippageBps
	}
	if c.Deadline <= 0 {
		c.Deadline = defaultUniswapDeadline
	}
	return c
}

// PoolQuote 最优费率池的报价
type PoolQuote struct {
	Fee       uint32
	AmountOut *big.Int
}

// UniswapStrategy 通过 SwapRouter.exactInputSingle 立即结算
type UniswapStrategy struct {
	*base
	cfg UniswapConfig
}

func NewUniswapStrategy(deps Deps) (*UniswapStrategy, error) {
	cfg := deps.Uniswap.withDefaults()
	for name, addr := range map[string]string{"router": cfg.Router, "quoter": cfg.Quoter, "wrapped native": cfg.WrappedNative} {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("uniswap %s address %q is invalid", name, addr)
		}
	}

	meta := DirectMetadata
	meta.ApprovalAddress = common.HexToAddress(cfg.Router).Hex()

	s := &UniswapStrategy{cfg: cfg}
	s.base = newBase(DirectStrategyID, meta, deps, s)
	return s, nil
}

func (s *UniswapStrategy) validate(*SwapRequest) error {
	return nil
}

func (s *UniswapStrategy) errorRules() []errorRule {
	return []errorRule{
		{[]string{"no pool price"}, "no pool price available for this pair"},
		{[]string{"too little received", "slippage"}, "slippage exceeded, price moved beyond tolerance"},
		{[]string{"liquidity"}, "insufficient liquidity or slippage too high"},
		{[]string{"transaction too old", "deadline"}, "swap deadline passed before inclusion"},
		{[]string{"reverted"}, "transaction reverted on-chain"},
	}
}

// poolTokens 原生代币按 wrapped 代币在池中报价
func (s *UniswapStrategy) poolTokens(req *SwapRequest) (common.Address, common.Address) {
	tokenIn, tokenOut := req.TokenIn, req.TokenOut
	if chain.IsNativeToken(tokenIn) {
		tokenIn = s.cfg.WrappedNative
	}
	if chain.IsNativeToken(tokenOut) {
		tokenOut = s.cfg.WrappedNative
	}
	return common.HexToAddress(tokenIn), common.HexToAddress(tokenOut)
}

// bestPoolQuote 遍历费率档位取输出最大的池，全部失败时返回 nil
func (s *UniswapStrategy) bestPoolQuote(ctx context.Context, req *SwapRequest) *PoolQuote {
	logger := logx.WithContext(ctx)
	if s.deps.Provider == nil {
		return nil
	}

	tokenIn, tokenOut := s.poolTokens(req)
	quoter := common.HexToAddress(s.cfg.Quoter)

	var best *PoolQuote
	for _, fee := range s.cfg.FeeTiers {
		data, err := quoterABI.Pack("quoteExactInputSingle", quoteExactInputSingleParams{
			TokenIn:           tokenIn,
			TokenOut:          tokenOut,
			AmountIn:          req.Amount,
			Fee:               new(big.Int).SetUint64(uint64(fee)),
			SqrtPriceLimitX96: big.NewInt(0),
		})
		if err != nil {
			logger.Errorf("构建报价调用失败 fee=%d: %v", fee, err)
			continue
		}

		raw, err := s.deps.Provider.CallContract(ctx, ethereum.CallMsg{To: &quoter, Data: data}, nil)
		if err != nil {
			logger.Infof("费率 %d 的池不可用: %v", fee, err)
			continue
		}
		out, err := quoterABI.Unpack("quoteExactInputSingle", raw)
		if err != nil || len(out) == 0 {
			logger.Infof("费率 %d 的报价解析失败: %v", fee, err)
			continue
		}
		amountOut, ok := out[0].(*big.Int)
		if !ok || amountOut.Sign() <= 0 {
			continue
		}
		if best == nil || amountOut.Cmp(best.AmountOut) > 0 {
			best = &PoolQuote{Fee: fee, AmountOut: amountOut}
		}
	}
	return best
}

// estimateOutput 没有池价格时返回零最小输出并标记为无保护
func (s *UniswapStrategy) estimateOutput(ctx context.Context, req *SwapRequest) (*Quote, error) {
	slippage := s.slippageBps(req, s.cfg.SlippageBps)

	pool := s.bestPoolQuote(ctx, req)
	if pool == nil {
		logx.WithContext(ctx).Infof("[%s] 无法获取池价格，报价无滑点保护", s.meta.Name)
		return &Quote{
			EstimatedOutput:   big.NewInt(0),
			MinimumOutput:     big.NewInt(0),
			SlippageBps:       slippage,
			SlippageProtected: false,
		}, nil
	}

	return &Quote{
		EstimatedOutput:   pool.AmountOut,
		MinimumOutput:     applySlippage(pool.AmountOut, slippage),
		ExecutionPrice:    executionPrice(req.Amount, pool.AmountOut),
		SlippageBps:       slippage,
		SlippageProtected: true,
		Raw:               pool,
	}, nil
}

func (s *UniswapStrategy) performSwap(ctx context.Context, req *SwapRequest) (*ExecutionHandle, error) {
	logger := logx.WithContext(ctx)

	slippage := s.slippageBps(req, s.cfg.SlippageBps)
	fee := s.cfg.FeeTiers[0]
	minOut := big.NewInt(0)

	if pool := s.bestPoolQuote(ctx, req); pool != nil {
		fee = pool.Fee
		minOut = applySlippage(pool.AmountOut, slippage)
	} else if !s.cfg.AllowUnprotectedSwap {
		return nil, ErrNoPoolPrice
	} else {
		logger.Errorf("⚠️ [%s] 无池价格，按配置以零最小输出提交", s.meta.Name)
	}

	deadline := s.cfg.Deadline
	if req.Options != nil && req.Options.Deadline > 0 {
		deadline = req.Options.Deadline
	}

	tokenIn, tokenOut := s.poolTokens(req)
	recipient := common.HexToAddress(req.UserAddress)

	data, err := routerABI.Pack("exactInputSingle", exactInputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		Fee:               new(big.Int).SetUint64(uint64(fee)),
		Recipient:         recipient,
		Deadline:          big.NewInt(s.deps.Now().Add(deadline).Unix()),
		AmountIn:          req.Amount,
		AmountOutMinimum:  minOut,
		SqrtPriceLimitX96: big.NewInt(0),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to pack exactInputSingle: %w", err)
	}

	var value *big.Int
	if chain.IsNativeToken(req.TokenIn) {
		value = req.Amount
	}

	txHash, err := s.deps.Signer.SendTransaction(ctx, chain.TxRequest{
		To:    common.HexToAddress(s.cfg.Router),
		Data:  data,
		Value: value,
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("[%s] swap 交易已发送: %s (fee=%d, minOut=%s)", s.meta.Name, txHash.Hex(), fee, minOut.String())

	return &ExecutionHandle{
		ID:           txHash.Hex(),
		IsOrderBased: false,
		Wait: func(ctx context.Context) (*Settlement, error) {
			return s.waitForSwap(ctx, txHash, tokenOut, recipient)
		},
	}, nil
}

func (s *UniswapStrategy) waitForSwap(ctx context.Context, txHash common.Hash, tokenOut, recipient common.Address) (*Settlement, error) {
	receipt, err := chain.WaitForReceipt(ctx, s.deps.Provider, txHash, s.deps.ReceiptInterval)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for swap receipt: %w", err)
	}
	if receipt.Status != evmTypes.ReceiptStatusSuccessful {
		return nil, &SettlementFailedError{ID: txHash.Hex(), Status: StatusFailed, Reason: "transaction reverted on-chain"}
	}

	settlement := &Settlement{
		Status:    StatusConfirmed,
		TxHash:    txHash.Hex(),
		GasUsed:   receipt.GasUsed,
		AmountOut: chain.ReceivedAmount(receipt, tokenOut, recipient),
	}
	if receipt.BlockNumber != nil {
		settlement.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return settlement, nil
}

func (s *UniswapStrategy) processResult(_ *SwapRequest, handle *ExecutionHandle, settlement *Settlement) *SwapResult {
	return &SwapResult{
		Success:      true,
		Status:       settlement.Status,
		ID:           handle.ID,
		StrategyName: s.meta.Name,
		ExplorerURL:  chain.TxExplorerURL(s.deps.ChainID, handle.ID),
		Timestamp:    s.deps.Now(),
		BlockNumber:  settlement.BlockNumber,
		GasUsed:      settlement.GasUsed,
		AmountOut:    settlement.AmountOut,
		TrackingInfo: TrackingInfo{
			CanTrack:       true,
			TrackingMethod: TrackingTransaction,
			TrackingID:     handle.ID,
		},
	}
}

var _ Strategy = (*UniswapStrategy)(nil)
