package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"shopify_sync_v1/internal/model"
)

// ==================== 仓储接口 ====================

// FulfillmentRepository 履约导出仓储
type FulfillmentRepository interface {
	// EligibleForExport 已生成内部订单、已发货、未履约且未导出的渠道订单
	EligibleForExport(ctx context.Context, channelID int64) ([]model.ImportedOrder, error)
	// CreateExport 单事务：写入导出记录并把订单标记为已履约
	CreateExport(ctx context.Context, export *model.FulfillmentExport, importedOrderIDs []int64) error
	GetExport(ctx context.Context, id int64) (*model.FulfillmentExport, error)
	ListExports(ctx context.Context, limit int) ([]model.FulfillmentExport, error)

	// 店铺侧履约
	MarkFulfilled(ctx context.Context, importedOrderID int64) error
	RecordError(ctx context.Context, importedOrderID int64, message string) error
}

// ==================== 仓储实现 ====================

type fulfillmentRepo struct {
	db *gorm.DB
}

// NewFulfillmentRepository 创建履约仓储
func NewFulfillmentRepository(db *gorm.DB) FulfillmentRepository {
	return &fulfillmentRepo{db: db}
}

func (r *fulfillmentRepo) EligibleForExport(ctx context.Context, channelID int64) ([]model.ImportedOrder, error) {
	var rows []model.ImportedOrder
	err := r.db.WithContext(ctx).
		Preload("CreatedOrder.ShippingRule.CourierService.Courier").
		Joins("JOIN created_orders co ON co.id = imported_orders.created_order_id").
		Where("imported_orders.channel_id = ?", channelID).
		Where("imported_orders.fulfilled = ?", false).
		Where("imported_orders.fulfillment_export_id IS NULL").
		Where("co.dispatched_at IS NOT NULL").
		Order("imported_orders.id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *fulfillmentRepo) CreateExport(ctx context.Context, export *model.FulfillmentExport, importedOrderIDs []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		export.OrderCount = len(importedOrderIDs)
		if err := tx.Omit("Orders").Create(export).Error; err != nil {
			return err
		}
		res := tx.Model(&model.ImportedOrder{}).
			Where("id IN ? AND fulfillment_export_id IS NULL", importedOrderIDs).
			Updates(map[string]interface{}{
				"fulfilled":             true,
				"fulfillment_export_id": export.ID,
			})
		if res.Error != nil {
			return res.Error
		}
		// 并发导出时已被其他批次占用
		if res.RowsAffected != int64(len(importedOrderIDs)) {
			return fmt.Errorf("%w: 期望标记 %d 个订单，实际 %d", ErrInvariantViolation, len(importedOrderIDs), res.RowsAffected)
		}
		return nil
	})
}

func (r *fulfillmentRepo) GetExport(ctx context.Context, id int64) (*model.FulfillmentExport, error) {
	var export model.FulfillmentExport
	if err := r.db.WithContext(ctx).Preload("Orders").First(&export, id).Error; err != nil {
		return nil, translate(err)
	}
	return &export, nil
}

func (r *fulfillmentRepo) ListExports(ctx context.Context, limit int) ([]model.FulfillmentExport, error) {
	if limit <= 0 {
		limit = 20
	}
	var exports []model.FulfillmentExport
	err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&exports).Error
	return exports, err
}

func (r *fulfillmentRepo) MarkFulfilled(ctx context.Context, importedOrderID int64) error {
	return r.db.WithContext(ctx).Model(&model.ImportedOrder{}).
		Where("id = ?", importedOrderID).
		Update("fulfilled", true).Error
}

func (r *fulfillmentRepo) RecordError(ctx context.Context, importedOrderID int64, message string) error {
	return r.db.WithContext(ctx).Create(&model.FulfillmentError{
		ImportedOrderID: importedOrderID,
		Error:           message,
	}).Error
}
