package strategy

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"swapengine/internal/chain"
	"swapengine/internal/cowapi"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/zeromicro/go-zero/core/logx"
)

const (
	BatchAuctionStrategyID = "batch_auction"

	DefaultCowSwapApiUrl     = "https://api.cow.fi/mainnet"
	DefaultCowSettlement     = "0x9008D19f58AAbD9eD0D60971565AA8510560ab41"
	DefaultCowVaultRelayer   = "0xC92E8bdf79f0507f65a392b0ab4667716BFE0110"
	defaultCowSlippageBps    = 50
	defaultCowValidFor       = 30 * time.Minute
	defaultCowPollInterval   = 5 * time.Second
	defaultCowMaxPollAttempt = 20
)

// BatchAuctionMetadata CoW Protocol 批量拍卖
var BatchAuctionMetadata = StrategyMetadata{
	Name:                 "CowSwap",
	SettlementModel:      SettlementBatchAuction,
	GasRequired:          false,
	MevProtected:         true,
	ApprovalAddress:      DefaultCowVaultRelayer,
	ApprovalAddressLabel: "CoW Protocol Vault Relayer",
}

// CowSwapConfig 批量拍卖参数，零值字段使用默认值
type CowSwapConfig struct {
	ApiUrl          string
	Settlement      string
	VaultRelayer    string
	AppData         string
	SlippageBps     int
	ValidFor        time.Duration
	PollInterval    time.Duration
	MaxPollAttempts int
	HTTPClient      *http.Client
}

func (c CowSwapConfig) withDefaults() CowSwapConfig {
	if c.ApiUrl == "" {
		c.ApiUrl = DefaultCowSwapApiUrl
	}
	if c.Settlement == "" {
		c.Settlement = DefaultCowSettlement
	}
	if c.VaultRelayer == "" {
		c.VaultRelayer = DefaultCowVaultRelayer
	}
	if c.AppData == "" {
		c.AppData = cowapi.ZeroAppDataHex
	}
	if c.SlippageBps <= 0 {
		c.SlippageBps = defaultCowSlippageBps
	}
	if c.ValidFor <= 0 {
		c.ValidFor = defaultCowValidFor
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultCowPollInterval
	}
	if c.MaxPollAttempts <= 0 {
		c.MaxPollAttempts = defaultCowMaxPollAttempt
	}
	return c
}

// CowOrder 待签名的订单，字段与 EIP-712 Order 类型一一对应
type CowOrder struct {
	SellToken         common.Address
	BuyToken          common.Address
	Receiver          common.Address
	SellAmount        *big.Int
	BuyAmount         *big.Int
	ValidTo           uint32
	AppData           string
	FeeAmount         *big.Int
	Kind              string
	PartiallyFillable bool
	SellTokenBalance  string
	BuyTokenBalance   string
}

// CowSwapStrategy 签名链下订单，由求解器批量结算
type CowSwapStrategy struct {
	*base
	cfg    CowSwapConfig
	client *cowapi.Client
}

func NewCowSwapStrategy(deps Deps) (*CowSwapStrategy, error) {
	cfg := deps.CowSwap.withDefaults()
	if !common.IsHexAddress(cfg.Settlement) || !common.IsHexAddress(cfg.VaultRelayer) {
		return nil, fmt.Errorf("cowswap settlement %q or vault relayer %q is invalid", cfg.Settlement, cfg.VaultRelayer)
	}
	if _, err := hexutil.Decode(cfg.AppData); err != nil || len(cfg.AppData) != 66 {
		return nil, fmt.Errorf("cowswap appData %q must be a 32 byte hex hash", cfg.AppData)
	}

	meta := BatchAuctionMetadata
	meta.ApprovalAddress = common.HexToAddress(cfg.VaultRelayer).Hex()

	s := &CowSwapStrategy{
		cfg:    cfg,
		client: cowapi.NewClient(cfg.ApiUrl, cfg.HTTPClient),
	}
	s.base = newBase(BatchAuctionStrategyID, meta, deps, s)
	return s, nil
}

func (s *CowSwapStrategy) validate(req *SwapRequest) error {
	if chain.IsNativeToken(req.TokenIn) {
		return &ValidationError{Field: "tokenIn", Reason: "batch auction orders cannot sell the native token"}
	}
	return nil
}

func (s *CowSwapStrategy) errorRules() []errorRule {
	return []errorRule{
		{[]string{"noliquidity", "insufficientliquidity", "no liquidity"}, "insufficient liquidity for this trade size"},
		{[]string{"sellamountdoesnotcoverfee"}, "sell amount too small to cover network fees"},
		{[]string{"price below minimum", "limit price"}, "price below minimum acceptable"},
		{[]string{"insufficientallowance"}, "insufficient allowance for the vault relayer"},
		{[]string{"insufficientbalance"}, "insufficient token balance"},
		{[]string{"unsupportedtoken"}, "token not supported by the batch auction"},
		{[]string{"order tracking failed"}, "order tracking failed - order may still be processing"},
	}
}

func (s *CowSwapStrategy) quoteRequest(req *SwapRequest, validTo uint32) *cowapi.QuoteRequest {
	user := common.HexToAddress(req.UserAddress).Hex()
	return &cowapi.QuoteRequest{
		SellToken:           common.HexToAddress(req.TokenIn).Hex(),
		BuyToken:            common.HexToAddress(req.TokenOut).Hex(),
		From:                user,
		Receiver:            user,
		ValidTo:             validTo,
		AppData:             s.cfg.AppData,
		PartiallyFillable:   false,
		SellTokenBalance:    cowapi.BalanceERC20,
		BuyTokenBalance:     cowapi.BalanceERC20,
		Kind:                cowapi.KindSell,
		SellAmountBeforeFee: req.Amount.String(),
	}
}

func (s *CowSwapStrategy) validTo() uint32 {
	return uint32(s.deps.Now().Add(s.cfg.ValidFor).Unix())
}

func parseAmount(field, value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s %q in quote", field, value)
	}
	return amount, nil
}

func (s *CowSwapStrategy) estimateOutput(ctx context.Context, req *SwapRequest) (*Quote, error) {
	resp, err := s.client.Quote(ctx, s.quoteRequest(req, s.validTo()))
	if err != nil {
		return nil, err
	}
	buyAmount, err := parseAmount("buyAmount", resp.Quote.BuyAmount)
	if err != nil {
		return nil, err
	}

	slippage := s.slippageBps(req, s.cfg.SlippageBps)
	return &Quote{
		EstimatedOutput:   buyAmount,
		MinimumOutput:     applySlippage(buyAmount, slippage),
		ExecutionPrice:    executionPrice(req.Amount, buyAmount),
		SlippageBps:       slippage,
		SlippageProtected: true,
		Raw:               resp,
	}, nil
}

// BuildOrder 由报价构建订单：手续费为 0，卖出数量为请求数量，买入数量扣除滑点
func (s *CowSwapStrategy) BuildOrder(req *SwapRequest, quote *cowapi.QuoteResponse) (*CowOrder, error) {
	buyAmount, err := parseAmount("buyAmount", quote.Quote.BuyAmount)
	if err != nil {
		return nil, err
	}
	minBuy := applySlippage(buyAmount, s.slippageBps(req, s.cfg.SlippageBps))
	if minBuy.Sign() <= 0 {
		return nil, errors.New("quote returned no liquidity for this trade")
	}

	validTo := quote.Quote.ValidTo
	if validTo == 0 {
		validTo = s.validTo()
	}

	return &CowOrder{
		SellToken:         common.HexToAddress(req.TokenIn),
		BuyToken:          common.HexToAddress(req.TokenOut),
		Receiver:          common.HexToAddress(req.UserAddress),
		SellAmount:        new(big.Int).Set(req.Amount),
		BuyAmount:         minBuy,
		ValidTo:           validTo,
		AppData:           s.cfg.AppData,
		FeeAmount:         big.NewInt(0),
		Kind:              cowapi.KindSell,
		PartiallyFillable: false,
		SellTokenBalance:  cowapi.BalanceERC20,
		BuyTokenBalance:   cowapi.BalanceERC20,
	}, nil
}

// OrderTypedData 生成 GPv2 Order 的 EIP-712 结构化数据
func OrderTypedData(order *CowOrder, chainID *big.Int, settlement string) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Order": {
				{Name: "sellToken", Type: "address"},
				{Name: "buyToken", Type: "address"},
				{Name: "receiver", Type: "address"},
				{Name: "sellAmount", Type: "uint256"},
				{Name: "buyAmount", Type: "uint256"},
				{Name: "validTo", Type: "uint32"},
				{Name: "appData", Type: "bytes32"},
				{Name: "feeAmount", Type: "uint256"},
				{Name: "kind", Type: "string"},
				{Name: "partiallyFillable", Type: "bool"},
				{Name: "sellTokenBalance", Type: "string"},
				{Name: "buyTokenBalance", Type: "string"},
			},
		},
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              "Gnosis Protocol",
			Version:           "v2",
			ChainId:           (*math.HexOrDecimal256)(new(big.Int).Set(chainID)),
			VerifyingContract: common.HexToAddress(settlement).Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"sellToken":         order.SellToken.Hex(),
			"buyToken":          order.BuyToken.Hex(),
			"receiver":          order.Receiver.Hex(),
			"sellAmount":        order.SellAmount.String(),
			"buyAmount":         order.BuyAmount.String(),
			"validTo":           strconv.FormatUint(uint64(order.ValidTo), 10),
			"appData":           order.AppData,
			"feeAmount":         order.FeeAmount.String(),
			"kind":              order.Kind,
			"partiallyFillable": order.PartiallyFillable,
			"sellTokenBalance":  order.SellTokenBalance,
			"buyTokenBalance":   order.BuyTokenBalance,
		},
	}
}

func (s *CowSwapStrategy) performSwap(ctx context.Context, req *SwapRequest) (*ExecutionHandle, error) {
	logger := logx.WithContext(ctx)

	chainID, err := s.deps.Signer.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	quote, err := s.client.Quote(ctx, s.quoteRequest(req, s.validTo()))
	if err != nil {
		return nil, err
	}

	order, err := s.BuildOrder(req, quote)
	if err != nil {
		return nil, err
	}

	signature, err := s.deps.Signer.SignTypedData(ctx, OrderTypedData(order, chainID, s.cfg.Settlement))
	if err != nil {
		return nil, fmt.Errorf("failed to sign order: %w", err)
	}

	creation := &cowapi.OrderCreation{
		SellToken:         order.SellToken.Hex(),
		BuyToken:          order.BuyToken.Hex(),
		Receiver:          order.Receiver.Hex(),
		SellAmount:        order.SellAmount.String(),
		BuyAmount:         order.BuyAmount.String(),
		ValidTo:           order.ValidTo,
		AppData:           order.AppData,
		FeeAmount:         order.FeeAmount.String(),
		Kind:              order.Kind,
		PartiallyFillable: order.PartiallyFillable,
		SellTokenBalance:  order.SellTokenBalance,
		BuyTokenBalance:   order.BuyTokenBalance,
		SigningScheme:     cowapi.SchemeEIP712,
		Signature:         hexutil.Encode(signature),
		From:              s.deps.Signer.Address().Hex(),
	}
	if quote.ID != 0 {
		id := quote.ID
		creation.QuoteID = &id
	}

	uid, err := s.client.SubmitOrder(ctx, creation)
	if err != nil {
		return nil, err
	}
	logger.Infof("[%s] 订单已提交: %s (buyAmount>=%s, validTo=%d)", s.meta.Name, uid, order.BuyAmount.String(), order.ValidTo)

	return &ExecutionHandle{
		ID:           uid,
		IsOrderBased: true,
		Wait: func(ctx context.Context) (*Settlement, error) {
			return s.pollOrder(ctx, uid)
		},
	}, nil
}

// pollOrder 固定间隔轮询订单，超过次数上限返回 pending 而不是错误
func (s *CowSwapStrategy) pollOrder(ctx context.Context, uid string) (*Settlement, error) {
	logger := logx.WithContext(ctx)
	maxAttempts := s.cfg.MaxPollAttempts
	logger.Infof("开始轮询订单状态: %s (最多 %d 次尝试)", uid, maxAttempts)

	lastStatus := cowapi.StatusOpen
	for i := 0; i < maxAttempts; i++ {
		order, err := s.client.GetOrder(ctx, uid)
		if err != nil {
			logger.Errorf("查询订单失败 (尝试 %d/%d): %v", i+1, maxAttempts, err)
		} else {
			lastStatus = order.Status
			switch order.Status {
			case cowapi.StatusFulfilled:
				return s.fulfilledSettlement(ctx, uid, order), nil
			case cowapi.StatusCancelled, cowapi.StatusExpired:
				return nil, &SettlementFailedError{ID: uid, Status: order.Status, Reason: "order " + order.Status + " before settlement"}
			}
		}

		if i < maxAttempts-1 {
			select {
			case <-ctx.Done():
				logger.Errorf("订单 %s 跟踪中断，订单可能仍在处理: %v", uid, ctx.Err())
				return &Settlement{Status: StatusPending, OrderStatus: lastStatus}, nil
			case <-time.After(s.cfg.PollInterval):
			}
		}
	}

	logger.Infof("⏰ 订单 %s 在 %d 次轮询后仍未成交，返回 pending", uid, maxAttempts)
	return &Settlement{Status: StatusPending, OrderStatus: lastStatus}, nil
}

func (s *CowSwapStrategy) fulfilledSettlement(ctx context.Context, uid string, order *cowapi.Order) *Settlement {
	settlement := &Settlement{
		Status:      StatusConfirmed,
		OrderStatus: order.Status,
	}
	if amount, ok := new(big.Int).SetString(order.ExecutedBuyAmount, 10); ok {
		settlement.AmountOut = amount
	}

	trades, err := s.client.Trades(ctx, uid)
	if err != nil {
		logx.WithContext(ctx).Errorf("查询订单 %s 成交记录失败: %v", uid, err)
		return settlement
	}
	if len(trades) > 0 {
		last := trades[len(trades)-1]
		settlement.SettlementTxHash = last.TxHash
		settlement.TxHash = last.TxHash
		settlement.BlockNumber = last.BlockNumber
	}
	return settlement
}

func (s *CowSwapStrategy) processResult(_ *SwapRequest, handle *ExecutionHandle, settlement *Settlement) *SwapResult {
	return &SwapResult{
		Success:          true,
		Status:           settlement.Status,
		ID:               handle.ID,
		StrategyName:     s.meta.Name,
		ExplorerURL:      chain.OrderExplorerURL(s.deps.ChainID, handle.ID),
		Timestamp:        s.deps.Now(),
		BlockNumber:      settlement.BlockNumber,
		AmountOut:        settlement.AmountOut,
		SettlementTxHash: settlement.SettlementTxHash,
		TrackingInfo: TrackingInfo{
			CanTrack:       true,
			TrackingMethod: TrackingOrder,
			TrackingID:     handle.ID,
		},
	}
}

// GetTransactionStatus 先按订单查询，失败再按交易哈希查询
func (s *CowSwapStrategy) GetTransactionStatus(ctx context.Context, id string) (*TransactionStatus, error) {
	order, err := s.client.GetOrder(ctx, id)
	if err == nil {
		return &TransactionStatus{
			ID:          id,
			Status:      orderStatus(order.Status),
			Method:      TrackingOrder,
			ExplorerURL: chain.OrderExplorerURL(s.deps.ChainID, id),
		}, nil
	}

	logx.WithContext(ctx).Infof("[%s] 订单查询失败，回退到交易哈希查询: %v", s.meta.Name, err)
	return s.base.GetTransactionStatus(ctx, id)
}

func orderStatus(status string) string {
	switch status {
	case cowapi.StatusFulfilled:
		return StatusConfirmed
	case cowapi.StatusCancelled:
		return StatusCancelled
	case cowapi.StatusExpired:
		return StatusExpired
	case cowapi.StatusOpen, cowapi.StatusPresignaturePending:
		return StatusPending
	default:
		return StatusUnknown
	}
}

var _ Strategy = (*CowSwapStrategy)(nil)
