package strategy

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/multierr"
)

// Constructor 根据依赖构造策略实例
type Constructor func(deps Deps) (Strategy, error)

type Registration struct {
	Metadata StrategyMetadata
	New      Constructor
}

// Registry 策略 ID 到构造函数的映射，启动时注册后只读
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Registration
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Registration)}
}

// DefaultRegistry 注册 direct 与 batch_auction 两种策略
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(DirectStrategyID, Registration{
		Metadata: DirectMetadata,
		New: func(deps Deps) (Strategy, error) {
			return NewUniswapStrategy(deps)
		},
	})
	r.MustRegister(BatchAuctionStrategyID, Registration{
		Metadata: BatchAuctionMetadata,
		New: func(deps Deps) (Strategy, error) {
			return NewCowSwapStrategy(deps)
		},
	})
	return r
}

func (r *Registry) Register(id string, reg Registration) error {
	if id == "" {
		return errors.New("strategy id is required")
	}
	if reg.New == nil {
		return fmt.Errorf("strategy %q has no constructor", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[id]; exists {
		return fmt.Errorf("strategy %q already registered", id)
	}
	r.entries[id] = reg
	return nil
}

func (r *Registry) MustRegister(id string, reg Registration) {
	if err := r.Register(id, reg); err != nil {
		panic(err)
	}
}

// CreateStrategy 未注册的 ID 返回 UnknownStrategyError
func (r *Registry) CreateStrategy(id string, deps Deps) (Strategy, error) {
	r.mu.RLock()
	reg, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownStrategyError{ID: id, Available: r.AvailableStrategies()}
	}

	s, err := reg.New(deps)
	if err != nil {
		return nil, fmt.Errorf("failed to create strategy %q: %w", id, err)
	}
	return s, nil
}

// AvailableStrategies 按字典序返回
func (r *Registry) AvailableStrategies() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) StrategyInfo(id string) (StrategyMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.entries[id]
	return reg.Metadata, ok
}

// CreateWithFallback 依次尝试构造，返回第一个成功的实例
func (r *Registry) CreateWithFallback(primary string, fallbacks []string, deps Deps) (Strategy, error) {
	var errs error
	for _, id := range append([]string{primary}, fallbacks...) {
		s, err := r.CreateStrategy(id, deps)
		if err == nil {
			return s, nil
		}
		errs = multierr.Append(errs, err)
	}
	return nil, fmt.Errorf("no strategy could be created: %w", errs)
}
