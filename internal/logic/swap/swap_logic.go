package swap

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"swapengine/internal/chain"
	"swapengine/internal/config"
	"swapengine/internal/executor"
	"swapengine/internal/model"
	"swapengine/internal/strategy"
	"swapengine/internal/svc"
	"swapengine/internal/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"github.com/zeromicro/go-zero/core/logx"
)

type SwapLogic struct {
	ctx    context.Context
	svcCtx *svc.ServiceContext
	logx.Logger
}

func NewSwapLogic(ctx context.Context, svcCtx *svc.ServiceContext) *SwapLogic {
	return &SwapLogic{
		ctx:    ctx,
		svcCtx: svcCtx,
		Logger: logx.WithContext(ctx),
	}
}

// Quote 单个策略报价
func (l *SwapLogic) Quote(req *types.SwapReq) (*types.QuoteResp, error) {
	sreq, err := toSwapRequest(req, l.svcCtx.Config.Swap.DefaultStrategy)
	if err != nil {
		return nil, err
	}
	exec, _, err := l.executor("")
	if err != nil {
		return nil, err
	}

	quote := exec.GetQuote(l.ctx, sreq)
	if quote == nil {
		return nil, fmt.Errorf("no quote available from strategy %s", sreq.StrategyID)
	}
	resp := toQuoteResp(sreq.StrategyID, quote, req.TokenOutDecimals)
	return &resp, nil
}

// Quotes 并发向多个策略询价，单个策略失败只体现在对应条目的 error 中
func (l *SwapLogic) Quotes(req *types.QuotesReq) (*types.QuotesResp, error) {
	sreq, err := toSwapRequest(&req.SwapReq, l.svcCtx.Config.Swap.DefaultStrategy)
	if err != nil {
		return nil, err
	}
	exec, _, err := l.executor("")
	if err != nil {
		return nil, err
	}

	ids := uniqueIDs(req.Strategies)
	if len(ids) == 0 {
		ids = l.svcCtx.Registry.AvailableStrategies()
	}
	l.Infof("向 %d 个策略询价: %v", len(ids), ids)

	outcomes := exec.GetMultipleQuotes(l.ctx, sreq, ids)
	resp := &types.QuotesResp{Quotes: make([]types.QuoteResp, 0, len(ids))}
	for _, id := range ids {
		outcome := outcomes[id]
		if outcome.Quote == nil {
			resp.Quotes = append(resp.Quotes, types.QuoteResp{Strategy: id, Error: outcome.Error})
			continue
		}
		resp.Quotes = append(resp.Quotes, toQuoteResp(id, outcome.Quote, req.TokenOutDecimals))
	}
	return resp, nil
}

// Approval 检查 tokenIn 对策略授权地址的 allowance 是否足够
func (l *SwapLogic) Approval(req *types.SwapReq) (*types.ApprovalResp, error) {
	sreq, err := toSwapRequest(req, l.svcCtx.Config.Swap.DefaultStrategy)
	if err != nil {
		return nil, err
	}
	exec, _, err := l.executor("")
	if err != nil {
		return nil, err
	}

	needed, err := exec.CheckApprovalNeeded(l.ctx, sreq)
	if err != nil {
		return nil, err
	}
	meta, err := l.metadata(sreq.StrategyID)
	if err != nil {
		return nil, err
	}

	return &types.ApprovalResp{
		Strategy:             sreq.StrategyID,
		ApprovalNeeded:       needed,
		ApprovalAddress:      meta.ApprovalAddress,
		ApprovalAddressLabel: meta.ApprovalAddressLabel,
	}, nil
}

// Execute 使用托管钱包签名执行兑换；配置或请求中带回退策略时按顺序回退
func (l *SwapLogic) Execute(req *types.SwapReq) (*types.SwapResp, error) {
	l.Infof("=== 开始 Swap 操作 for address %s ===", req.UserAddress)

	sreq, err := toSwapRequest(req, l.svcCtx.Config.Swap.DefaultStrategy)
	if err != nil {
		return nil, err
	}
	if err := strategy.ValidateRequest(sreq); err != nil {
		return nil, err
	}

	exec, chainConf, err := l.executor(sreq.UserAddress)
	if err != nil {
		return nil, err
	}
	exec.OnApprovalStart(func(ev executor.Event) {
		l.Infow("开始授权",
			logx.Field("strategy", ev.StrategyID),
			logx.Field("token", ev.Approval.Token),
			logx.Field("spender", ev.Approval.Spender))
	})
	exec.OnApprovalComplete(func(ev executor.Event) {
		l.Infow("授权完成", logx.Field("strategy", ev.StrategyID), logx.Field("tx", ev.Approval.TxHash))
	})
	exec.OnError(func(ev executor.Event) {
		l.Errorw("策略执行失败", logx.Field("strategy", ev.StrategyID), logx.Field("error", ev.Err.Error()))
	})

	fallbacks := req.Fallbacks
	if len(fallbacks) == 0 {
		fallbacks = l.svcCtx.Config.Swap.Fallbacks
	}

	var result *strategy.SwapResult
	if len(fallbacks) == 0 {
		result, err = exec.ExecuteSwap(l.ctx, sreq)
	} else {
		result, err = exec.ExecuteSwapWithFallback(l.ctx, sreq, fallbacks)
	}
	if err != nil {
		return nil, err
	}

	resp := toSwapResp(result, chainConf)
	l.saveRecord(sreq, result, resp.ExplorerUrl)
	l.Infof("✅ Swap 结束: id=%s status=%s strategy=%s", resp.Id, resp.Status, resp.Strategy)
	return resp, nil
}

// Status 查询交易或订单状态，并同步到兑换记录
func (l *SwapLogic) Status(req *types.StatusReq) (*types.StatusResp, error) {
	exec, chainConf, err := l.executor("")
	if err != nil {
		return nil, err
	}

	status, err := exec.CheckTransactionStatus(l.ctx, req.Id, req.Strategy)
	if err != nil {
		return nil, err
	}

	if err := l.svcCtx.SwapRecordsDao.UpdateStatus(l.ctx, status.ID, status.Status, ""); err != nil && !errors.Is(err, model.ErrNotFound) {
		l.Errorf("更新兑换记录状态失败 %s: %v", status.ID, err)
	}

	explorerURL := status.ExplorerURL
	if status.Method == strategy.TrackingTransaction && chainConf.Explorer != "" {
		explorerURL = chainConf.Explorer + status.ID
	}
	return &types.StatusResp{
		Id:          status.ID,
		Status:      status.Status,
		Method:      status.Method,
		BlockNumber: status.BlockNumber,
		ExplorerUrl: explorerURL,
	}, nil
}

// Strategies 列出已注册策略，授权地址以当前配置为准
func (l *SwapLogic) Strategies() (*types.StrategiesResp, error) {
	ids := l.svcCtx.Registry.AvailableStrategies()
	resp := &types.StrategiesResp{
		Default:    l.svcCtx.Config.Swap.DefaultStrategy,
		Fallbacks:  l.svcCtx.Config.Swap.Fallbacks,
		Strategies: make([]types.StrategyItem, 0, len(ids)),
	}
	for _, id := range ids {
		meta, err := l.metadata(id)
		if err != nil {
			return nil, err
		}
		resp.Strategies = append(resp.Strategies, types.StrategyItem{
			Id:                   id,
			Name:                 meta.Name,
			SettlementModel:      meta.SettlementModel,
			GasRequired:          meta.GasRequired,
			MevProtected:         meta.MevProtected,
			ApprovalAddress:      meta.ApprovalAddress,
			ApprovalAddressLabel: meta.ApprovalAddressLabel,
		})
	}
	return resp, nil
}

// History 按用户地址查询最近的兑换记录
func (l *SwapLogic) History(req *types.HistoryReq) (*types.HistoryResp, error) {
	if !common.IsHexAddress(req.UserAddress) {
		return nil, &strategy.ValidationError{Field: "userAddress", Reason: "not a valid address"}
	}

	records, err := l.svcCtx.SwapRecordsDao.ListByUser(l.ctx, req.UserAddress, req.Limit)
	if err != nil {
		l.Errorf("查询兑换记录失败: %v", err)
		return nil, err
	}

	resp := &types.HistoryResp{Records: make([]types.SwapRecordItem, 0, len(records))}
	for _, r := range records {
		resp.Records = append(resp.Records, types.SwapRecordItem{
			TrackingId:   r.TrackingId,
			Strategy:     r.StrategyName,
			TokenIn:      r.TokenIn,
			TokenOut:     r.TokenOut,
			AmountIn:     r.AmountIn,
			AmountOut:    r.AmountOut,
			Status:       r.Status,
			SettlementTx: r.SettlementTx,
			ExplorerUrl:  r.ExplorerUrl,
			CreatedAt:    r.CreatedAt.Unix(),
		})
	}
	return resp, nil
}

// executor signerAddress 为空时只构造只读依赖（报价、授权检查、状态查询）
func (l *SwapLogic) executor(signerAddress string) (*executor.Executor, config.ChainConf, error) {
	swapConf := l.svcCtx.Config.Swap
	client, chainConf, err := l.svcCtx.EthClient(l.ctx, swapConf.Chain)
	if err != nil {
		l.Errorf("连接 RPC 失败: %v", err)
		return nil, chainConf, err
	}

	deps := strategyDeps(swapConf, chainConf.ChainId)
	deps.Provider = client
	if signerAddress != "" {
		signer, err := l.signer(client, signerAddress)
		if err != nil {
			return nil, chainConf, err
		}
		deps.Signer = signer
	}
	return executor.New(l.svcCtx.Registry, deps), chainConf, nil
}

// signer 从钱包表取出私钥
func (l *SwapLogic) signer(client *ethclient.Client, address string) (chain.Signer, error) {
	wallet, err := l.svcCtx.WalletsDao.FindOneByAddress(l.ctx, address)
	if err != nil {
		l.Errorf("查询钱包失败 for address %s: %v", address, err)
		return nil, errors.New("wallet not found")
	}

	signer, err := chain.NewKeySignerFromHex(wallet.EncryptedPrivateKey, client)
	if err != nil {
		l.Errorf("私钥解析失败: %v", err)
		return nil, errors.New("invalid private key")
	}
	if signer.Address() != common.HexToAddress(address) {
		return nil, fmt.Errorf("stored key does not belong to %s", address)
	}
	return signer, nil
}

func (l *SwapLogic) metadata(id string) (strategy.StrategyMetadata, error) {
	s, err := l.svcCtx.Registry.CreateStrategy(id, strategyDeps(l.svcCtx.Config.Swap, 0))
	if err != nil {
		return strategy.StrategyMetadata{}, err
	}
	return s.Metadata(), nil
}

func (l *SwapLogic) saveRecord(req *strategy.SwapRequest, result *strategy.SwapResult, explorerURL string) {
	record := &model.SwapRecords{
		TrackingId:   result.ID,
		StrategyId:   result.StrategyID,
		StrategyName: result.StrategyName,
		UserAddress:  req.UserAddress,
		TokenIn:      req.TokenIn,
		TokenOut:     req.TokenOut,
		AmountIn:     req.Amount.String(),
		Status:       result.Status,
		SettlementTx: result.SettlementTxHash,
		ExplorerUrl:  explorerURL,
	}
	if result.AmountOut != nil {
		record.AmountOut = result.AmountOut.String()
	}
	if err := l.svcCtx.SwapRecordsDao.Insert(l.ctx, record); err != nil {
		l.Errorf("保存兑换记录失败 %s: %v", result.ID, err)
	}
}

func toSwapRequest(req *types.SwapReq, defaultStrategy string) (*strategy.SwapRequest, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(req.Amount), 10)
	if !ok {
		return nil, &strategy.ValidationError{Field: "amount", Reason: "must be an integer in base units"}
	}
	if req.DeadlineSeconds < 0 {
		return nil, &strategy.ValidationError{Field: "deadlineSeconds", Reason: "must not be negative"}
	}

	id := req.Strategy
	if id == "" {
		id = defaultStrategy
	}

	out := &strategy.SwapRequest{
		TokenIn:     req.TokenIn,
		TokenOut:    req.TokenOut,
		Amount:      amount,
		UserAddress: req.UserAddress,
		StrategyID:  id,
	}
	if req.SlippageBps != 0 || req.DeadlineSeconds != 0 {
		out.Options = &strategy.Options{
			SlippageBps: req.SlippageBps,
			Deadline:    time.Duration(req.DeadlineSeconds) * time.Second,
		}
	}
	return out, nil
}

func strategyDeps(c config.SwapConf, chainID int64) strategy.Deps {
	return strategy.Deps{
		ChainID:         chainID,
		ReceiptInterval: c.ReceiptInterval,
		Uniswap: strategy.UniswapConfig{
			Router:               c.Uniswap.Router,
			Quoter:               c.Uniswap.Quoter,
			WrappedNative:        c.Uniswap.WrappedNative,
			FeeTiers:             c.Uniswap.FeeTiers,
			SlippageBps:          c.Uniswap.SlippageBps,
			Deadline:             c.Uniswap.Deadline,
			AllowUnprotectedSwap: c.Uniswap.AllowUnprotectedSwap,
		},
		CowSwap: strategy.CowSwapConfig{
			ApiUrl:          c.CowSwap.ApiUrl,
			Settlement:      c.CowSwap.Settlement,
			VaultRelayer:    c.CowSwap.VaultRelayer,
			AppData:         c.CowSwap.AppData,
			SlippageBps:     c.CowSwap.SlippageBps,
			ValidFor:        c.CowSwap.ValidFor,
			PollInterval:    c.CowSwap.PollInterval,
			MaxPollAttempts: c.CowSwap.MaxPollAttempts,
			HTTPClient:      &http.Client{Timeout: c.CowSwap.Timeout},
		},
	}
}

func toQuoteResp(id string, q *strategy.Quote, decimals int32) types.QuoteResp {
	return types.QuoteResp{
		Strategy:          id,
		EstimatedOutput:   bigString(q.EstimatedOutput),
		MinimumOutput:     bigString(q.MinimumOutput),
		FormattedOutput:   formatAmount(q.EstimatedOutput, decimals),
		ExecutionPrice:    q.ExecutionPrice.String(),
		SlippageBps:       q.SlippageBps,
		SlippageProtected: q.SlippageProtected,
	}
}

func toSwapResp(r *strategy.SwapResult, chainConf config.ChainConf) *types.SwapResp {
	explorerURL := r.ExplorerURL
	if r.TrackingInfo.TrackingMethod == strategy.TrackingTransaction && chainConf.Explorer != "" {
		explorerURL = chainConf.Explorer + r.ID
	}
	return &types.SwapResp{
		Success:          r.Success,
		Status:           r.Status,
		Id:               r.ID,
		Strategy:         r.StrategyName,
		ExplorerUrl:      explorerURL,
		Timestamp:        r.Timestamp.Unix(),
		BlockNumber:      r.BlockNumber,
		GasUsed:          r.GasUsed,
		AmountOut:        bigString(r.AmountOut),
		SettlementTxHash: r.SettlementTxHash,
		TrackingInfo: types.TrackingInfo{
			CanTrack:       r.TrackingInfo.CanTrack,
			TrackingMethod: r.TrackingInfo.TrackingMethod,
			TrackingId:     r.TrackingInfo.TrackingID,
		},
	}
}

// formatAmount 按代币精度换算为可读数量，decimals 未知时返回空
func formatAmount(amount *big.Int, decimals int32) string {
	if amount == nil || decimals <= 0 {
		return ""
	}
	return decimal.NewFromBigInt(amount, -decimals).String()
}

func bigString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
