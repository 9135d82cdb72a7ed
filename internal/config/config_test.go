package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func validConfig() Config {
	var c Config
	c.Postgres.DSN = "host=localhost user=swap dbname=swap sslmode=disable"
	c.Chains = map[string]ChainConf{
		"ETH": {Name: "Ethereum", RpcUrl: "https://eth.llamarpc.com", ChainId: 1},
	}
	c.Swap = SwapConf{
		Chain:           "ETH",
		DefaultStrategy: "direct",
		Uniswap:         UniswapConf{SlippageBps: 50, Deadline: time.Hour},
		CowSwap:         CowSwapConf{SlippageBps: 50, PollInterval: 5 * time.Second, MaxPollAttempts: 20},
	}
	return c
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	c := validConfig()
	c.Postgres.DSN = ""
	c.Swap.Chain = "BSC"
	c.Swap.Uniswap.SlippageBps = 10000
	c.Swap.CowSwap.VaultRelayer = "relayer"
	c.Swap.CowSwap.MaxPollAttempts = 0

	err := c.Validate()
	require.Error(t, err)

	errs := multierr.Errors(err)
	assert.Len(t, errs, 5)
	assert.Contains(t, err.Error(), "Postgres.DSN")
	assert.Contains(t, err.Error(), `Swap.Chain "BSC"`)
	assert.Contains(t, err.Error(), "Swap.Uniswap.SlippageBps")
	assert.Contains(t, err.Error(), "Swap.CowSwap.VaultRelayer")
	assert.Contains(t, err.Error(), "MaxPollAttempts")
}

func TestValidateChainEntries(t *testing.T) {
	c := validConfig()
	c.Chains["BSC"] = ChainConf{Name: "BSC"}

	errs := multierr.Errors(c.Validate())
	assert.Len(t, errs, 2)
}
