package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/zeromicro/go-zero/rest"
	"go.uber.org/multierr"
)

type ChainConf struct {
	Name     string `json:"Name"`
	RpcUrl   string `json:"RpcUrl"`
	ChainId  int64  `json:"ChainId"`
	Explorer string `json:",optional"` // 例如 https://etherscan.io/tx/，为空时按 ChainId 选择
}

// UniswapConf configures the direct pool swap.
type UniswapConf struct {
	Router               string        `json:",optional"`
	Quoter               string        `json:",optional"`
	WrappedNative        string        `json:",optional"`
	FeeTiers             []uint32      `json:",optional"`
	SlippageBps          int           `json:",default=50"`
	Deadline             time.Duration `json:",default=1h"`
	AllowUnprotectedSwap bool          `json:",optional"`
}

// CowSwapConf configures the batch-auction order venue.
type CowSwapConf struct {
	ApiUrl          string        `json:",default=https://api.cow.fi/mainnet"`
	Settlement      string        `json:",optional"`
	VaultRelayer    string        `json:",optional"`
	AppData         string        `json:",optional"`
	SlippageBps     int           `json:",default=50"`
	ValidFor        time.Duration `json:",default=30m"`
	PollInterval    time.Duration `json:",default=5s"`
	MaxPollAttempts int           `json:",default=20"`
	Timeout         time.Duration `json:",default=30s"`
}

type SwapConf struct {
	Chain           string        `json:",default=ETH"`
	DefaultStrategy string        `json:",default=direct"`
	Fallbacks       []string      `json:",optional"`
	ReceiptInterval time.Duration `json:",default=3s"`
	Uniswap         UniswapConf
	CowSwap         CowSwapConf
}

type Config struct {
	rest.RestConf
	Postgres struct {
		DSN string
	}
	// Chains maps a chain name (e.g., "ETH") to its configuration.
	Chains map[string]ChainConf
	Swap   SwapConf
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var err error

	if c.Postgres.DSN == "" {
		err = multierr.Append(err, fmt.Errorf("Postgres.DSN is required"))
	}
	if len(c.Chains) == 0 {
		err = multierr.Append(err, fmt.Errorf("at least one chain must be configured"))
	}
	for name, ch := range c.Chains {
		if ch.RpcUrl == "" {
			err = multierr.Append(err, fmt.Errorf("chain %s: RpcUrl is required", name))
		}
		if ch.ChainId <= 0 {
			err = multierr.Append(err, fmt.Errorf("chain %s: ChainId must be positive", name))
		}
	}
	if _, ok := c.Chains[c.Swap.Chain]; !ok {
		err = multierr.Append(err, fmt.Errorf("Swap.Chain %q is not configured", c.Swap.Chain))
	}

	err = multierr.Append(err, checkBps("Swap.Uniswap.SlippageBps", c.Swap.Uniswap.SlippageBps))
	err = multierr.Append(err, checkBps("Swap.CowSwap.SlippageBps", c.Swap.CowSwap.SlippageBps))
	for field, addr := range map[string]string{
		"Swap.Uniswap.Router":        c.Swap.Uniswap.Router,
		"Swap.Uniswap.Quoter":        c.Swap.Uniswap.Quoter,
		"Swap.Uniswap.WrappedNative": c.Swap.Uniswap.WrappedNative,
		"Swap.CowSwap.Settlement":    c.Swap.CowSwap.Settlement,
		"Swap.CowSwap.VaultRelayer":  c.Swap.CowSwap.VaultRelayer,
	} {
		if addr != "" && !common.IsHexAddress(addr) {
			err = multierr.Append(err, fmt.Errorf("%s %q is not an address", field, addr))
		}
	}
	if c.Swap.CowSwap.MaxPollAttempts <= 0 {
		err = multierr.Append(err, fmt.Errorf("Swap.CowSwap.MaxPollAttempts must be positive"))
	}
	if c.Swap.CowSwap.PollInterval <= 0 {
		err = multierr.Append(err, fmt.Errorf("Swap.CowSwap.PollInterval must be positive"))
	}
	return err
}

func checkBps(field string, bps int) error {
	if bps < 0 || bps >= 10000 {
		return fmt.Errorf("%s must be within [0, 10000), got %d", field, bps)
	}
	return nil
}
