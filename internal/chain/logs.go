package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	evmTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// TransferEventSignature Transfer(address,address,uint256)
var TransferEventSignature = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// TokenTransfer 解析后的 ERC20 Transfer 事件
type TokenTransfer struct {
	Token  common.Address
	From   common.Address
	To     common.Address
	Amount *big.Int
	Index  uint
}

// ParseTransfers 提取回执中全部标准 Transfer 事件
func ParseTransfers(logs []*evmTypes.Log) []TokenTransfer {
	var transfers []TokenTransfer
	for _, lg := range logs {
		if lg == nil || len(lg.Topics) != 3 || lg.Topics[0] != TransferEventSignature {
			continue
		}
		// ERC721 的 Transfer 有 4 个 topic，这里已排除
		if len(lg.Data) < 32 {
			continue
		}
		transfers = append(transfers, TokenTransfer{
			Token:  lg.Address,
			From:   common.BytesToAddress(lg.Topics[1].Bytes()),
			To:     common.BytesToAddress(lg.Topics[2].Bytes()),
			Amount: new(big.Int).SetBytes(lg.Data[:32]),
			Index:  lg.Index,
		})
	}
	return transfers
}

// ReceivedAmount 统计 recipient 从 token 合约收到的总额，无匹配事件时返回 nil
func ReceivedAmount(receipt *evmTypes.Receipt, token, recipient common.Address) *big.Int {
	if receipt == nil {
		return nil
	}
	var total *big.Int
	for _, t := range ParseTransfers(receipt.Logs) {
		if t.Token != token || t.To != recipient {
			continue
		}
		if total == nil {
			total = new(big.Int)
		}
		total.Add(total, t.Amount)
	}
	return total
}
