package cowapi

// Order status values reported by the orderbook.
const (
	StatusOpen                = "open"
	StatusFulfilled           = "fulfilled"
	StatusCancelled           = "cancelled"
	StatusExpired             = "expired"
	StatusPresignaturePending = "presignaturePending"
)

const (
	KindSell       = "sell"
	BalanceERC20   = "erc20"
	SchemeEIP712   = "eip712"
	ZeroAppDataHex = "0x0000000000000000000000000000000000000000000000000000000000000000"
)

// QuoteRequest is the body of POST /api/v1/quote for a sell order.
type QuoteRequest struct {
	SellToken           string `json:"sellToken"`
	BuyToken            string `json:"buyToken"`
	From                string `json:"from"`
	Receiver            string `json:"receiver"`
	ValidTo             uint32 `json:"validTo"`
	AppData             string `json:"appData"`
	PartiallyFillable   bool   `json:"partiallyFillable"`
	SellTokenBalance    string `json:"sellTokenBalance"`
	BuyTokenBalance     string `json:"buyTokenBalance"`
	Kind                string `json:"kind"`
	SellAmountBeforeFee string `json:"sellAmountBeforeFee"`
}

// OrderParameters is the quoted order echoed back by the orderbook.
type OrderParameters struct {
	SellToken         string `json:"sellToken"`
	BuyToken          string `json:"buyToken"`
	Receiver          string `json:"receiver"`
	SellAmount        string `json:"sellAmount"`
	BuyAmount         string `json:"buyAmount"`
	ValidTo           uint32 `json:"validTo"`
	AppData           string `json:"appData"`
	FeeAmount         string `json:"feeAmount"`
	Kind              string `json:"kind"`
	PartiallyFillable bool   `json:"partiallyFillable"`
	SellTokenBalance  string `json:"sellTokenBalance"`
	BuyTokenBalance   string `json:"buyTokenBalance"`
}

type QuoteResponse struct {
	Quote      OrderParameters `json:"quote"`
	From       string          `json:"from"`
	Expiration string          `json:"expiration"`
	ID         int64           `json:"id"`
}

// OrderCreation is the body of POST /api/v1/orders.
type OrderCreation struct {
	SellToken         string `json:"sellToken"`
	BuyToken          string `json:"buyToken"`
	Receiver          string `json:"receiver"`
	SellAmount        string `json:"sellAmount"`
	BuyAmount         string `json:"buyAmount"`
	ValidTo           uint32 `json:"validTo"`
	AppData           string `json:"appData"`
	FeeAmount         string `json:"feeAmount"`
	Kind              string `json:"kind"`
	PartiallyFillable bool   `json:"partiallyFillable"`
	SellTokenBalance  string `json:"sellTokenBalance"`
	BuyTokenBalance   string `json:"buyTokenBalance"`
	SigningScheme     string `json:"signingScheme"`
	Signature         string `json:"signature"`
	From              string `json:"from"`
	QuoteID           *int64 `json:"quoteId,omitempty"`
}

// Order is the subset of GET /api/v1/orders/{uid} the engine reads.
type Order struct {
	UID                string `json:"uid"`
	Owner              string `json:"owner"`
	Status             string `json:"status"`
	SellToken          string `json:"sellToken"`
	BuyToken           string `json:"buyToken"`
	SellAmount         string `json:"sellAmount"`
	BuyAmount          string `json:"buyAmount"`
	ExecutedSellAmount string `json:"executedSellAmount"`
	ExecutedBuyAmount  string `json:"executedBuyAmount"`
	ValidTo            uint32 `json:"validTo"`
	CreationDate       string `json:"creationDate"`
}

type Trade struct {
	BlockNumber uint64 `json:"blockNumber"`
	LogIndex    uint64 `json:"logIndex"`
	OrderUID    string `json:"orderUid"`
	Owner       string `json:"owner"`
	SellAmount  string `json:"sellAmount"`
	BuyAmount   string `json:"buyAmount"`
	TxHash      string `json:"txHash"`
}

// APIError is the orderbook error body.
type APIError struct {
	StatusCode  int    `json:"-"`
	ErrorType   string `json:"errorType"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	if e.ErrorType == "" {
		return "orderbook error: " + e.Description
	}
	return "orderbook error " + e.ErrorType + ": " + e.Description
}
