package strategy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{BatchAuctionStrategyID, DirectStrategyID}, r.AvailableStrategies())

	info, ok := r.StrategyInfo(BatchAuctionStrategyID)
	require.True(t, ok)
	assert.Equal(t, "CowSwap", info.Name)
	assert.True(t, info.MevProtected)
	assert.False(t, info.GasRequired)
	assert.Equal(t, SettlementBatchAuction, info.SettlementModel)

	info, ok = r.StrategyInfo(DirectStrategyID)
	require.True(t, ok)
	assert.Equal(t, "Uniswap V3", info.Name)
	assert.Equal(t, SettlementImmediate, info.SettlementModel)

	_, ok = r.StrategyInfo("nope")
	assert.False(t, ok)
}

func TestCreateStrategy(t *testing.T) {
	r := DefaultRegistry()

	s, err := r.CreateStrategy(DirectStrategyID, Deps{})
	require.NoError(t, err)
	assert.Equal(t, DirectStrategyID, s.ID())
	assert.Equal(t, "Uniswap V3", s.Name())

	_, err = r.CreateStrategy("unknown", Deps{})
	var unknown *UnknownStrategyError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "unknown", unknown.ID)
	assert.ElementsMatch(t, []string{DirectStrategyID, BatchAuctionStrategyID}, unknown.Available)
}

func TestCreateStrategyConstructorError(t *testing.T) {
	r := DefaultRegistry()
	_, err := r.CreateStrategy(DirectStrategyID, Deps{Uniswap: UniswapConfig{Router: "not-an-address"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "router")
}

func TestCreateWithFallback(t *testing.T) {
	r := DefaultRegistry()

	s, err := r.CreateWithFallback("missing", []string{BatchAuctionStrategyID, DirectStrategyID}, Deps{})
	require.NoError(t, err)
	assert.Equal(t, BatchAuctionStrategyID, s.ID())

	_, err = r.CreateWithFallback("missing", []string{"also-missing"}, Deps{})
	require.Error(t, err)
	var unknown *UnknownStrategyError
	assert.True(t, errors.As(err, &unknown))
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	reg := Registration{Metadata: DirectMetadata, New: func(deps Deps) (Strategy, error) { return NewUniswapStrategy(deps) }}

	require.NoError(t, r.Register("x", reg))
	assert.Error(t, r.Register("x", reg))
	assert.Error(t, r.Register("", reg))
	assert.Error(t, r.Register("y", Registration{}))
}
