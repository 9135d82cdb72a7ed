package chain

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	evmTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/zeromicro/go-zero/core/logx"
)

// DefaultReceiptInterval 默认的回执轮询间隔
const DefaultReceiptInterval = 3 * time.Second

// Provider 只读链访问，*ethclient.Client 满足该接口
type Provider interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*evmTypes.Receipt, error)
}

// TxRequest 待签名发送的交易
type TxRequest struct {
	To       common.Address
	Data     []byte
	Value    *big.Int
	GasLimit uint64 // 0 表示估算
}

// Signer 持有账户私钥能力的签名者
type Signer interface {
	Address() common.Address
	ChainID(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error)
	SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error)
}

// WaitForReceipt 轮询交易回执直到上链或 ctx 结束，RPC 临时错误只记录并继续轮询
func WaitForReceipt(ctx context.Context, p Provider, txHash common.Hash, interval time.Duration) (*evmTypes.Receipt, error) {
	if interval <= 0 {
		interval = DefaultReceiptInterval
	}
	logger := logx.WithContext(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := p.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if errors.Is(err, ethereum.NotFound) {
			logger.Infof("交易 %s 尚未确认，继续等待...", txHash.Hex())
		} else {
			logger.Errorf("查询交易 %s 回执失败，稍后重试: %v", txHash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
