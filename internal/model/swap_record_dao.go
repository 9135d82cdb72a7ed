package model

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

const defaultHistoryLimit = 20

// SwapRecordsDao swap_records 表的读写
type SwapRecordsDao interface {
	Insert(ctx context.Context, data *SwapRecords) error
	UpdateStatus(ctx context.Context, trackingId, status, settlementTx string) error
	FindOneByTrackingId(ctx context.Context, trackingId string) (*SwapRecords, error)
	ListByUser(ctx context.Context, userAddress string, limit int) ([]*SwapRecords, error)
}

type swapRecordsDao struct {
	db *gorm.DB
}

func NewSwapRecordsDao(db *gorm.DB) SwapRecordsDao {
	return &swapRecordsDao{
		db: db,
	}
}

func (d *swapRecordsDao) Insert(ctx context.Context, data *SwapRecords) error {
	return d.db.WithContext(ctx).Create(data).Error
}

// UpdateStatus settlementTx 为空时保留原值
func (d *swapRecordsDao) UpdateStatus(ctx context.Context, trackingId, status, settlementTx string) error {
	updates := map[string]any{"status": status}
	if settlementTx != "" {
		updates["settlement_tx"] = settlementTx
	}
	res := d.db.WithContext(ctx).Model(&SwapRecords{}).Where("tracking_id = ?", trackingId).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *swapRecordsDao) FindOneByTrackingId(ctx context.Context, trackingId string) (*SwapRecords, error) {
	var resp SwapRecords
	err := d.db.WithContext(ctx).Where("tracking_id = ?", trackingId).First(&resp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &resp, nil
}

// ListByUser 按创建时间倒序
func (d *swapRecordsDao) ListByUser(ctx context.Context, userAddress string, limit int) ([]*SwapRecords, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	var records []*SwapRecords
	err := d.db.WithContext(ctx).
		Where("LOWER(user_address) = ?", strings.ToLower(userAddress)).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
