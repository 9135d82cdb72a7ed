package chain

import "fmt"

var txExplorers = map[int64]string{
	1:        "https://etherscan.io/tx/%s",
	11155111: "https://sepolia.etherscan.io/tx/%s",
	56:       "https://bscscan.com/tx/%s",
	97:       "https://testnet.bscscan.com/tx/%s",
	100:      "https://gnosisscan.io/tx/%s",
	137:      "https://polygonscan.com/tx/%s",
	8453:     "https://basescan.org/tx/%s",
	10:       "https://optimistic.etherscan.io/tx/%s",
	42161:    "https://arbiscan.io/tx/%s",
}

var orderExplorers = map[int64]string{
	1:        "https://explorer.cow.fi/orders/%s",
	100:      "https://explorer.cow.fi/gc/orders/%s",
	11155111: "https://explorer.cow.fi/sepolia/orders/%s",
	8453:     "https://explorer.cow.fi/base/orders/%s",
	42161:    "https://explorer.cow.fi/arb1/orders/%s",
}

// TxExplorerURL 根据链 ID 构建交易浏览器链接
func TxExplorerURL(chainID int64, txHash string) string {
	if template, ok := txExplorers[chainID]; ok {
		return fmt.Sprintf(template, txHash)
	}
	return fmt.Sprintf("https://explorer.example.com/tx/%s", txHash)
}

// OrderExplorerURL 根据链 ID 构建批量拍卖订单浏览器链接
func OrderExplorerURL(chainID int64, orderUID string) string {
	if template, ok := orderExplorers[chainID]; ok {
		return fmt.Sprintf(template, orderUID)
	}
	return fmt.Sprintf("https://explorer.cow.fi/orders/%s", orderUID)
}
