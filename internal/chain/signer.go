package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	evmTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/zeromicro/go-zero/core/logx"
)

const defaultGasLimit = 300000

// Backend 发送交易所需的节点能力，*ethclient.Client 满足该接口
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *evmTypes.Transaction) error
}

// KeySigner 使用本地私钥签名并通过 Backend 广播
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	backend Backend

	mu      sync.Mutex
	chainID *big.Int
}

func NewKeySigner(key *ecdsa.PrivateKey, backend Backend) *KeySigner {
	return &KeySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		backend: backend,
	}
}

// NewKeySignerFromHex 解析十六进制私钥（可带 0x 前缀）
func NewKeySignerFromHex(hexKey string, backend Backend) (*KeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewKeySigner(key, backend), nil
}

func (s *KeySigner) Address() common.Address {
	return s.address
}

// ChainID 首次查询后缓存
func (s *KeySigner) ChainID(ctx context.Context) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chainID != nil {
		return new(big.Int).Set(s.chainID), nil
	}
	id, err := s.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}
	s.chainID = id
	return new(big.Int).Set(id), nil
}

// SendTransaction 构建、签名并发送交易，返回本地计算的交易哈希
func (s *KeySigner) SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error) {
	logger := logx.WithContext(ctx)

	chainID, err := s.ChainID(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	value := req.Value
	if value == nil {
		value = big.NewInt(0)
	}

	nonce, err := s.backend.PendingNonceAt(ctx, s.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get gas price: %w", err)
	}

	gasLimit := req.GasLimit
	if gasLimit == 0 {
		to := req.To
		estimated, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{
			From:  s.address,
			To:    &to,
			Value: value,
			Data:  req.Data,
		})
		if err != nil {
			logger.Infof("Gas 估算失败，使用默认值 %d: %v", defaultGasLimit, err)
			estimated = defaultGasLimit
		}
		// 增加 gas limit 缓冲
		gasLimit = estimated * 120 / 100
	}

	tx := evmTypes.NewTx(&evmTypes.LegacyTx{
		Nonce:    nonce,
		To:       &req.To,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     req.Data,
	})

	signedTx, err := evmTypes.SignTx(tx, evmTypes.NewEIP155Signer(chainID), s.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := s.backend.SendTransaction(ctx, signedTx); err != nil {
		// 有些 RPC 节点会在错误信息中返回成功的交易哈希
		if strings.Contains(err.Error(), "result") && strings.Contains(err.Error(), "0x") {
			logger.Infof("⚠️ RPC 返回误导性错误，但交易可能已成功发送: %v", err)
			logger.Infof("使用本地计算的交易哈希继续流程: %s", signedTx.Hash().Hex())
		} else {
			return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
		}
	}

	return signedTx.Hash(), nil
}

// SignTypedData 对 EIP-712 结构化数据签名，v 值为 27/28
func (s *KeySigner) SignTypedData(_ context.Context, data apitypes.TypedData) ([]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return nil, fmt.Errorf("failed to hash typed data: %w", err)
	}

	sig, err := crypto.Sign(hash, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign typed data: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}
