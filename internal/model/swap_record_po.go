package model

import "time"

// SwapRecords 每次兑换尝试的落库记录，TrackingId 为交易哈希或订单 UID
type SwapRecords struct {
	Id           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	TrackingId   string    `gorm:"column:tracking_id;uniqueIndex;size:130"`
	StrategyId   string    `gorm:"column:strategy_id;size:32"`
	StrategyName string    `gorm:"column:strategy_name;size:64"`
	UserAddress  string    `gorm:"column:user_address;index;size:42"`
	TokenIn      string    `gorm:"column:token_in;size:42"`
	TokenOut     string    `gorm:"column:token_out;size:42"`
	AmountIn     string    `gorm:"column:amount_in"`
	AmountOut    string    `gorm:"column:amount_out"`
	Status       string    `gorm:"column:status;size:16"`
	SettlementTx string    `gorm:"column:settlement_tx;size:66"`
	ExplorerUrl  string    `gorm:"column:explorer_url"`
	ErrorMessage string    `gorm:"column:error_message"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (SwapRecords) TableName() string {
	return "swap_records"
}
