package types

// SwapReq 报价、授权检查与执行共用的请求体
type SwapReq struct {
	UserAddress      string   `json:"user_address"`
	TokenIn          string   `json:"token_in"`  // 0xEeee... 或 0x000... 表示原生币
	TokenOut         string   `json:"token_out"` // e.g., "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48" for USDC
	Amount           string   `json:"amount"`    // 最小单位整数, e.g., "1000000000000000000"
	Strategy         string   `json:"strategy,optional"`
	SlippageBps      int      `json:"slippage_bps,optional"`
	DeadlineSeconds  int64    `json:"deadline_seconds,optional"`
	TokenOutDecimals int32    `json:"token_out_decimals,optional"` // 仅用于格式化返回金额
	Fallbacks        []string `json:"fallbacks,optional"`
}

// QuotesReq 同一请求向多个策略询价，为空时询问全部已注册策略
type QuotesReq struct {
	SwapReq
	Strategies []string `json:"strategies,optional"`
}

type QuoteResp struct {
	Strategy          string `json:"strategy"`
	EstimatedOutput   string `json:"estimated_output"`
	MinimumOutput     string `json:"minimum_output"`
	FormattedOutput   string `json:"formatted_output,omitempty"`
	ExecutionPrice    string `json:"execution_price"`
	SlippageBps       int    `json:"slippage_bps"`
	SlippageProtected bool   `json:"slippage_protected"`
	Error             string `json:"error,omitempty"`
}

type QuotesResp struct {
	Quotes []QuoteResp `json:"quotes"`
}

type ApprovalResp struct {
	Strategy             string `json:"strategy"`
	ApprovalNeeded       bool   `json:"approval_needed"`
	ApprovalAddress      string `json:"approval_address"`
	ApprovalAddressLabel string `json:"approval_address_label"`
}

type TrackingInfo struct {
	CanTrack       bool   `json:"can_track"`
	TrackingMethod string `json:"tracking_method"`
	TrackingId     string `json:"tracking_id"`
}

// SwapResp 执行结果，Id 为交易哈希或订单 UID
type SwapResp struct {
	Success          bool         `json:"success"`
	Status           string       `json:"status"`
	Id               string       `json:"id"`
	Strategy         string       `json:"strategy"`
	ExplorerUrl      string       `json:"explorer_url"`
	Timestamp        int64        `json:"timestamp"`
	BlockNumber      uint64       `json:"block_number,omitempty"`
	GasUsed          uint64       `json:"gas_used,omitempty"`
	AmountOut        string       `json:"amount_out,omitempty"`
	SettlementTxHash string       `json:"settlement_tx_hash,omitempty"`
	TrackingInfo     TrackingInfo `json:"tracking_info"`
}

type StatusReq struct {
	Id       string `json:"id"`
	Strategy string `json:"strategy,optional"`
}

type StatusResp struct {
	Id          string `json:"id"`
	Status      string `json:"status"`
	Method      string `json:"method"`
	BlockNumber uint64 `json:"block_number,omitempty"`
	ExplorerUrl string `json:"explorer_url"`
}

type StrategyItem struct {
	Id                   string `json:"id"`
	Name                 string `json:"name"`
	SettlementModel      string `json:"settlement_model"`
	GasRequired          bool   `json:"gas_required"`
	MevProtected         bool   `json:"mev_protected"`
	ApprovalAddress      string `json:"approval_address"`
	ApprovalAddressLabel string `json:"approval_address_label"`
}

type StrategiesResp struct {
	Default    string         `json:"default"`
	Fallbacks  []string       `json:"fallbacks"`
	Strategies []StrategyItem `json:"strategies"`
}

type HistoryReq struct {
	UserAddress string `form:"user_address"`
	Limit       int    `form:"limit,optional"`
}

type SwapRecordItem struct {
	TrackingId   string `json:"tracking_id"`
	Strategy     string `json:"strategy"`
	TokenIn      string `json:"token_in"`
	TokenOut     string `json:"token_out"`
	AmountIn     string `json:"amount_in"`
	AmountOut    string `json:"amount_out,omitempty"`
	Status       string `json:"status"`
	SettlementTx string `json:"settlement_tx,omitempty"`
	ExplorerUrl  string `json:"explorer_url"`
	CreatedAt    int64  `json:"created_at"`
}

type HistoryResp struct {
	Records []SwapRecordItem `json:"records"`
}
