package executor

import (
	"context"
	"sync"

	"swapengine/internal/strategy"

	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/sync/errgroup"
)

// QuoteOutcome 单个策略的报价结果，Quote 与 Error 二选一
type QuoteOutcome struct {
	Quote *strategy.Quote
	Error string
}

// Executor 统一的兑换入口：解析策略、执行、报价、回退与事件
type Executor struct {
	registry *strategy.Registry
	deps     strategy.Deps
	events   *Emitter
}

func New(registry *strategy.Registry, deps strategy.Deps) *Executor {
	return &Executor{
		registry: registry,
		deps:     deps,
		events:   NewEmitter(),
	}
}

func (e *Executor) Events() *Emitter { return e.events }

func (e *Executor) On(t EventType, h Handler) func() { return e.events.On(t, h) }

func (e *Executor) OnApprovalStart(h Handler) func()    { return e.On(EventApprovalStart, h) }
func (e *Executor) OnApprovalComplete(h Handler) func() { return e.On(EventApprovalComplete, h) }
func (e *Executor) OnSwapStart(h Handler) func()        { return e.On(EventSwapStart, h) }
func (e *Executor) OnSwapComplete(h Handler) func()     { return e.On(EventSwapComplete, h) }
func (e *Executor) OnError(h Handler) func()            { return e.On(EventError, h) }

func (e *Executor) Subscribe(buffer int) (<-chan Event, func()) { return e.events.Subscribe(buffer) }

func (e *Executor) create(id string) (strategy.Strategy, error) {
	return e.registry.CreateStrategy(id, e.deps)
}

var errNilRequest = &strategy.ValidationError{Field: "request", Reason: "is required"}

// ExecuteSwap 使用 req.StrategyID 指定的策略执行一次兑换
func (e *Executor) ExecuteSwap(ctx context.Context, req *strategy.SwapRequest) (*strategy.SwapResult, error) {
	logger := logx.WithContext(ctx)
	if req == nil {
		return nil, errNilRequest
	}

	s, err := e.create(req.StrategyID)
	if err != nil {
		e.events.Emit(Event{Type: EventError, StrategyID: req.StrategyID, Request: req, Err: err})
		return nil, err
	}

	base := Event{StrategyID: s.ID(), Strategy: s.Name(), Request: req}
	emit := func(t EventType, mutate func(*Event)) {
		ev := base
		ev.Type = t
		if mutate != nil {
			mutate(&ev)
		}
		e.events.Emit(ev)
	}

	hooks := &strategy.Hooks{
		OnApprovalStart: func(_ context.Context, a strategy.ApprovalEvent) {
			emit(EventApprovalStart, func(ev *Event) { ev.Approval = &a })
		},
		OnApprovalComplete: func(_ context.Context, a strategy.ApprovalEvent) {
			emit(EventApprovalComplete, func(ev *Event) { ev.Approval = &a })
		},
	}

	emit(EventSwapStart, nil)
	logger.Infof("开始兑换: strategy=%s user=%s", s.ID(), req.UserAddress)

	result, err := s.ExecuteSwap(ctx, req, hooks)
	if err != nil {
		logger.Errorf("兑换失败: %v", err)
		emit(EventError, func(ev *Event) { ev.Err = err })
		return nil, err
	}

	emit(EventSwapComplete, func(ev *Event) { ev.Result = result })
	return result, nil
}

// ExecuteSwapWithFallback 依次尝试主策略与回退策略，pending 结果视为成功
func (e *Executor) ExecuteSwapWithFallback(ctx context.Context, req *strategy.SwapRequest, fallbacks []string) (*strategy.SwapResult, error) {
	logger := logx.WithContext(ctx)

	if err := strategy.ValidateRequest(req); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var (
		attempted []string
		lastErr   error
	)
	for _, id := range append([]string{req.StrategyID}, fallbacks...) {
		if seen[id] {
			continue
		}
		seen[id] = true
		attempted = append(attempted, id)

		attempt := *req
		attempt.StrategyID = id
		result, err := e.ExecuteSwap(ctx, &attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err
		logger.Errorf("策略 %s 执行失败，尝试下一个: %v", id, err)

		if ctx.Err() != nil {
			break
		}
	}

	return nil, &strategy.AllStrategiesFailedError{Attempted: attempted, Last: lastErr}
}

// GetQuote 失败时返回 nil，不返回错误
func (e *Executor) GetQuote(ctx context.Context, req *strategy.SwapRequest) *strategy.Quote {
	logger := logx.WithContext(ctx)
	if req == nil {
		return nil
	}

	s, err := e.create(req.StrategyID)
	if err != nil {
		logger.Errorf("获取报价失败: %v", err)
		return nil
	}
	quote, err := s.EstimateOutput(ctx, req)
	if err != nil {
		logger.Errorf("获取报价失败: %v", err)
		return nil
	}
	return quote
}

// GetMultipleQuotes 并发查询多个策略，单个失败不影响其他策略
func (e *Executor) GetMultipleQuotes(ctx context.Context, req *strategy.SwapRequest, ids []string) map[string]QuoteOutcome {
	outcomes := make(map[string]QuoteOutcome, len(ids))
	if req == nil {
		for _, id := range ids {
			outcomes[id] = QuoteOutcome{Error: errNilRequest.Error()}
		}
		return outcomes
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)

	for _, id := range ids {
		g.Go(func() error {
			outcome := e.quoteOne(ctx, req, id)
			mu.Lock()
			outcomes[id] = outcome
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (e *Executor) quoteOne(ctx context.Context, req *strategy.SwapRequest, id string) QuoteOutcome {
	s, err := e.create(id)
	if err != nil {
		return QuoteOutcome{Error: err.Error()}
	}
	attempt := *req
	attempt.StrategyID = id
	quote, err := s.EstimateOutput(ctx, &attempt)
	if err != nil {
		return QuoteOutcome{Error: err.Error()}
	}
	return QuoteOutcome{Quote: quote}
}

func (e *Executor) CheckApprovalNeeded(ctx context.Context, req *strategy.SwapRequest) (bool, error) {
	if req == nil {
		return false, errNilRequest
	}
	s, err := e.create(req.StrategyID)
	if err != nil {
		return false, err
	}
	return s.CheckApprovalNeeded(ctx, req)
}

// orderUIDLength 0x + 56 字节订单 UID
const orderUIDLength = 2 + 56*2

// CheckTransactionStatus 未指定策略时按 ID 长度推断：订单 UID 走批量拍卖，其余按交易哈希
func (e *Executor) CheckTransactionStatus(ctx context.Context, id, strategyID string) (*strategy.TransactionStatus, error) {
	if id == "" {
		return nil, &strategy.ValidationError{Field: "id", Reason: "is required"}
	}
	if strategyID == "" {
		strategyID = strategy.DirectStrategyID
		if len(id) == orderUIDLength {
			strategyID = strategy.BatchAuctionStrategyID
		}
	}

	s, err := e.create(strategyID)
	if err != nil {
		return nil, err
	}
	status, err := s.GetTransactionStatus(ctx, id)
	if err != nil {
		logx.WithContext(ctx).Errorf("查询状态失败 %s: %v", id, err)
		return nil, err
	}
	return status, nil
}
