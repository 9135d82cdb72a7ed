package model

import "time"

// Wallets 托管钱包，兑换时按地址取出签名私钥
type Wallets struct {
	Id                  int64     `gorm:"column:id;primaryKey"`
	UserId              string    `gorm:"column:user_id"`
	Address             string    `gorm:"column:address;uniqueIndex"`
	EncryptedPrivateKey string    `gorm:"column:encrypted_private_key"`
	ChainType           string    `gorm:"column:chain_type"`
	CreatedAt           time.Time `gorm:"column:created_at"`
	UpdatedAt           time.Time `gorm:"column:updated_at"`
}

func (Wallets) TableName() string {
	return "wallets"
}
