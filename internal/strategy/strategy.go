package strategy

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"swapengine/internal/chain"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	evmTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/zeromicro/go-zero/core/logx"
)

const (
	defaultAllowanceRetries = 3
	defaultRetryDelay       = time.Second
	defaultChainID          = 1
)

// Strategy 统一的兑换执行接口
type Strategy interface {
	ID() string
	Name() string
	Metadata() StrategyMetadata
	ExecuteSwap(ctx context.Context, req *SwapRequest, hooks *Hooks) (*SwapResult, error)
	CheckApprovalNeeded(ctx context.Context, req *SwapRequest) (bool, error)
	EstimateOutput(ctx context.Context, req *SwapRequest) (*Quote, error)
	GetTransactionStatus(ctx context.Context, id string) (*TransactionStatus, error)
}

// Deps 构造策略所需的外部依赖与配置
type Deps struct {
	Signer   chain.Signer
	Provider chain.Provider
	ChainID  int64

	Uniswap UniswapConfig
	CowSwap CowSwapConfig

	ReceiptInterval  time.Duration
	AllowanceRetries int
	RetryDelay       time.Duration
	Now              func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.ChainID == 0 {
		d.ChainID = defaultChainID
	}
	if d.ReceiptInterval <= 0 {
		d.ReceiptInterval = chain.DefaultReceiptInterval
	}
	if d.AllowanceRetries <= 0 {
		d.AllowanceRetries = defaultAllowanceRetries
	}
	if d.RetryDelay <= 0 {
		d.RetryDelay = defaultRetryDelay
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// backend 各结算方式需要实现的步骤
type backend interface {
	validate(req *SwapRequest) error
	performSwap(ctx context.Context, req *SwapRequest) (*ExecutionHandle, error)
	processResult(req *SwapRequest, handle *ExecutionHandle, settlement *Settlement) *SwapResult
	estimateOutput(ctx context.Context, req *SwapRequest) (*Quote, error)
	errorRules() []errorRule
}

// base 固定执行顺序：校验 -> 检查授权 -> 授权 -> 提交 -> 跟踪 -> 整理结果
type base struct {
	id   string
	meta StrategyMetadata
	deps Deps
	impl backend
}

func newBase(id string, meta StrategyMetadata, deps Deps, impl backend) *base {
	return &base{
		id:   id,
		meta: meta,
		deps: deps.withDefaults(),
		impl: impl,
	}
}

func (b *base) ID() string                 { return b.id }
func (b *base) Name() string               { return b.meta.Name }
func (b *base) Metadata() StrategyMetadata { return b.meta }

// ValidateRequest 检查与策略无关的请求格式
func ValidateRequest(req *SwapRequest) error {
	if req == nil {
		return &ValidationError{Field: "request", Reason: "is required"}
	}
	if !common.IsHexAddress(req.TokenIn) {
		return &ValidationError{Field: "tokenIn", Reason: "not a valid address"}
	}
	if !common.IsHexAddress(req.TokenOut) {
		return &ValidationError{Field: "tokenOut", Reason: "not a valid address"}
	}
	if strings.EqualFold(req.TokenIn, req.TokenOut) {
		return &ValidationError{Field: "tokenOut", Reason: "must differ from tokenIn"}
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	if !common.IsHexAddress(req.UserAddress) {
		return &ValidationError{Field: "userAddress", Reason: "not a valid address"}
	}
	if req.Options != nil && (req.Options.SlippageBps < 0 || req.Options.SlippageBps >= 10000) {
		return &ValidationError{Field: "slippageBps", Reason: "must be within [0, 10000)"}
	}
	return nil
}

func (b *base) validateRequest(req *SwapRequest) error {
	if err := ValidateRequest(req); err != nil {
		return err
	}
	return b.impl.validate(req)
}

func (b *base) fail(err error) error {
	var se *StrategyError
	if errors.As(err, &se) {
		return err
	}
	return &StrategyError{
		Strategy: b.meta.Name,
		Message:  describeError(err, b.impl.errorRules()),
		Err:      err,
	}
}

// ExecuteSwap 按固定顺序执行一次兑换，失败时返回带策略名的错误
func (b *base) ExecuteSwap(ctx context.Context, req *SwapRequest, hooks *Hooks) (*SwapResult, error) {
	logger := logx.WithContext(ctx)

	if err := b.validateRequest(req); err != nil {
		return nil, b.fail(err)
	}
	if b.deps.Signer == nil {
		return nil, b.fail(ErrSignerRequired)
	}
	if b.deps.Signer.Address() != common.HexToAddress(req.UserAddress) {
		return nil, b.fail(&ValidationError{Field: "userAddress", Reason: "does not match signer"})
	}

	if b.needsApproval(ctx, req) {
		if err := b.approve(ctx, req, hooks); err != nil {
			return nil, b.fail(err)
		}
	}

	logger.Infof("[%s] 提交兑换: %s -> %s, amount=%s", b.meta.Name, req.TokenIn, req.TokenOut, req.Amount.String())
	handle, err := b.impl.performSwap(ctx, req)
	if err != nil {
		return nil, b.fail(err)
	}

	logger.Infof("[%s] 已提交 %s，开始跟踪", b.meta.Name, handle.ID)
	settlement, err := b.track(ctx, handle)
	if err != nil {
		return nil, b.fail(err)
	}

	result := b.impl.processResult(req, handle, settlement)
	result.StrategyID = b.id
	logger.Infof("[%s] 兑换结束: id=%s status=%s", b.meta.Name, result.ID, result.Status)
	return result, nil
}

// track 已提交的兑换只有链上回滚或订单取消/过期才算失败，
// 其余跟踪中断（RPC 异常、ctx 结束）按 pending 返回，调用方据此不再回退
func (b *base) track(ctx context.Context, handle *ExecutionHandle) (*Settlement, error) {
	settlement, err := handle.Wait(ctx)
	if err == nil {
		return settlement, nil
	}

	var failed *SettlementFailedError
	if errors.As(err, &failed) {
		return nil, err
	}

	logx.WithContext(ctx).Errorf("[%s] 跟踪 %s 中断，可能仍在处理，返回 pending: %v", b.meta.Name, handle.ID, err)
	settlement = &Settlement{Status: StatusPending}
	if !handle.IsOrderBased {
		settlement.TxHash = handle.ID
	}
	return settlement, nil
}

// CheckApprovalNeeded 查询失败时按需要授权处理
func (b *base) CheckApprovalNeeded(ctx context.Context, req *SwapRequest) (bool, error) {
	if err := b.validateRequest(req); err != nil {
		return false, b.fail(err)
	}
	return b.needsApproval(ctx, req), nil
}

func (b *base) needsApproval(ctx context.Context, req *SwapRequest) bool {
	logger := logx.WithContext(ctx)

	if chain.IsNativeToken(req.TokenIn) {
		return false
	}
	if b.deps.Provider == nil {
		logger.Errorf("[%s] 缺少 provider，默认需要授权", b.meta.Name)
		return true
	}

	token := common.HexToAddress(req.TokenIn)
	owner := common.HexToAddress(req.UserAddress)
	spender := common.HexToAddress(b.meta.ApprovalAddress)

	var (
		allowance *big.Int
		err       error
	)
	for i := 0; i < b.deps.AllowanceRetries; i++ {
		allowance, err = chain.Allowance(ctx, b.deps.Provider, token, owner, spender)
		if err == nil {
			break
		}
		logger.Infof("Allowance 查询失败 (尝试 %d/%d): %v", i+1, b.deps.AllowanceRetries, err)
		if i < b.deps.AllowanceRetries-1 {
			select {
			case <-ctx.Done():
				return true
			case <-time.After(time.Duration(i+1) * b.deps.RetryDelay):
			}
		}
	}
	if err != nil {
		logger.Errorf("[%s] allowance 查询最终失败，默认需要授权: %v", b.meta.Name, err)
		return true
	}

	logger.Infof("当前 allowance: %s, 需要: %s", allowance.String(), req.Amount.String())
	return allowance.Cmp(req.Amount) < 0
}

func (b *base) approve(ctx context.Context, req *SwapRequest, hooks *Hooks) error {
	logger := logx.WithContext(ctx)

	token := common.HexToAddress(req.TokenIn)
	spender := common.HexToAddress(b.meta.ApprovalAddress)
	ev := ApprovalEvent{Token: token.Hex(), Spender: spender.Hex()}

	data, err := chain.EncodeApprove(spender, chain.MaxUint256)
	if err != nil {
		return &ApprovalFailedError{Token: ev.Token, Spender: ev.Spender, Err: err}
	}

	hooks.approvalStart(ctx, ev)
	logger.Infof("执行 ERC20 approve 操作，spender: %s (%s)", ev.Spender, b.meta.ApprovalAddressLabel)

	txHash, err := b.deps.Signer.SendTransaction(ctx, chain.TxRequest{To: token, Data: data})
	if err != nil {
		return &ApprovalFailedError{Token: ev.Token, Spender: ev.Spender, Err: err}
	}
	ev.TxHash = txHash.Hex()

	receipt, err := chain.WaitForReceipt(ctx, b.deps.Provider, txHash, b.deps.ReceiptInterval)
	if err != nil {
		return &ApprovalFailedError{Token: ev.Token, Spender: ev.Spender, TxHash: ev.TxHash, Err: err}
	}
	if receipt.Status != evmTypes.ReceiptStatusSuccessful {
		return &ApprovalFailedError{Token: ev.Token, Spender: ev.Spender, TxHash: ev.TxHash}
	}

	logger.Infof("✅ approve 交易确认成功: %s", ev.TxHash)
	hooks.approvalComplete(ctx, ev)
	return nil
}

func (b *base) EstimateOutput(ctx context.Context, req *SwapRequest) (*Quote, error) {
	if err := b.validateRequest(req); err != nil {
		return nil, b.fail(err)
	}
	quote, err := b.impl.estimateOutput(ctx, req)
	if err != nil {
		return nil, b.fail(err)
	}
	return quote, nil
}

// GetTransactionStatus 基于交易哈希查询回执
func (b *base) GetTransactionStatus(ctx context.Context, id string) (*TransactionStatus, error) {
	if len(id) != 66 || !strings.HasPrefix(id, "0x") {
		return nil, b.fail(&ValidationError{Field: "id", Reason: "not a transaction hash"})
	}
	if b.deps.Provider == nil {
		return nil, b.fail(errors.New("provider is required for status lookups"))
	}

	status := &TransactionStatus{
		ID:          id,
		Method:      TrackingTransaction,
		ExplorerURL: chain.TxExplorerURL(b.deps.ChainID, id),
	}

	receipt, err := b.deps.Provider.TransactionReceipt(ctx, common.HexToHash(id))
	if errors.Is(err, ethereum.NotFound) {
		status.Status = StatusPending
		return status, nil
	}
	if err != nil {
		return nil, b.fail(fmt.Errorf("failed to get receipt: %w", err))
	}

	status.Status = StatusFailed
	if receipt.Status == evmTypes.ReceiptStatusSuccessful {
		status.Status = StatusConfirmed
	}
	if receipt.BlockNumber != nil {
		status.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return status, nil
}

func (b *base) slippageBps(req *SwapRequest, fallback int) int {
	if req.Options != nil && req.Options.SlippageBps > 0 {
		return req.Options.SlippageBps
	}
	return fallback
}
