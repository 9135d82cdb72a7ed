package model

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

var ErrNotFound = gorm.ErrRecordNotFound

// WalletsDao 签名钱包查询
type WalletsDao interface {
	FindOneByAddress(ctx context.Context, address string) (*Wallets, error)
}

type walletsDao struct {
	db *gorm.DB
}

func NewWalletsDao(db *gorm.DB) WalletsDao {
	return &walletsDao{
		db: db,
	}
}

// FindOneByAddress 地址大小写不敏感
func (d *walletsDao) FindOneByAddress(ctx context.Context, address string) (*Wallets, error) {
	var resp Wallets
	err := d.db.WithContext(ctx).Where("LOWER(address) = ?", strings.ToLower(address)).First(&resp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &resp, nil
}
