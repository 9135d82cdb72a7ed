package strategy

import (
	"context"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// 结算模式
const (
	SettlementImmediate    = "immediate"
	SettlementBatchAuction = "batch_auction"
)

// 结果状态
const (
	StatusConfirmed = "confirmed"
	StatusPending   = "pending"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
	StatusUnknown   = "unknown"
)

// 跟踪方式
const (
	TrackingTransaction = "transaction_based"
	TrackingOrder       = "order_based"
)

// SwapRequest 一次兑换请求，调用期间不可修改
type SwapRequest struct {
	TokenIn     string
	TokenOut    string
	Amount      *big.Int
	UserAddress string
	StrategyID  string
	Options     *Options
}

// Options 单次请求级别的参数覆盖，零值表示使用策略默认值
type Options struct {
	SlippageBps int
	Deadline    time.Duration
}

// StrategyMetadata 注册时声明的静态描述
type StrategyMetadata struct {
	Name                 string `json:"name"`
	SettlementModel      string `json:"settlementModel"`
	GasRequired          bool   `json:"gasRequired"`
	MevProtected         bool   `json:"mevProtected"`
	ApprovalAddress      string `json:"approvalAddress"`
	ApprovalAddressLabel string `json:"approvalAddressLabel"`
}

// Quote 报价，每次请求重新计算
type Quote struct {
	EstimatedOutput   *big.Int
	MinimumOutput     *big.Int
	ExecutionPrice    decimal.Decimal
	SlippageBps       int
	SlippageProtected bool
	Raw               any
}

// Settlement 跟踪阶段得到的结算信息
type Settlement struct {
	Status           string
	TxHash           string
	BlockNumber      uint64
	GasUsed          uint64
	AmountOut        *big.Int
	OrderStatus      string
	SettlementTxHash string
}

// ExecutionHandle 提交后的句柄，ID 可能是交易哈希也可能是订单 UID
type ExecutionHandle struct {
	ID           string
	IsOrderBased bool
	Wait         func(ctx context.Context) (*Settlement, error)
}

type TrackingInfo struct {
	CanTrack       bool   `json:"canTrack"`
	TrackingMethod string `json:"trackingMethod"`
	TrackingID     string `json:"trackingId"`
}

// SwapResult 一次尝试的最终结果
type SwapResult struct {
	Success          bool
	Status           string
	ID               string
	StrategyID       string
	StrategyName     string
	ExplorerURL      string
	Timestamp        time.Time
	BlockNumber      uint64
	GasUsed          uint64
	AmountOut        *big.Int
	SettlementTxHash string
	TrackingInfo     TrackingInfo
}

// TransactionStatus 状态查询结果
type TransactionStatus struct {
	ID          string
	Status      string
	Method      string
	BlockNumber uint64
	ExplorerURL string
}

// ApprovalEvent 授权开始/完成时的通知内容
type ApprovalEvent struct {
	Token   string
	Spender string
	TxHash  string
}

// Hooks 执行过程中的回调，字段均可为空
type Hooks struct {
	OnApprovalStart    func(ctx context.Context, ev ApprovalEvent)
	OnApprovalComplete func(ctx context.Context, ev ApprovalEvent)
}

func (h *Hooks) approvalStart(ctx context.Context, ev ApprovalEvent) {
	if h != nil && h.OnApprovalStart != nil {
		h.OnApprovalStart(ctx, ev)
	}
}

func (h *Hooks) approvalComplete(ctx context.Context, ev ApprovalEvent) {
	if h != nil && h.OnApprovalComplete != nil {
		h.OnApprovalComplete(ctx, ev)
	}
}

// applySlippage 返回 amount * (10000 - bps) / 10000
func applySlippage(amount *big.Int, bps int) *big.Int {
	if amount == nil {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, big.NewInt(int64(10000-bps)))
	return out.Quo(out, big.NewInt(10000))
}

func executionPrice(amountIn, amountOut *big.Int) decimal.Decimal {
	if amountIn == nil || amountOut == nil || amountIn.Sign() == 0 {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amountOut, 0).DivRound(decimal.NewFromBigInt(amountIn, 0), 18)
}
