package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"shopify_sync_v1/internal/model"
)

// ==================== 仓储接口 ====================

// OrderRepository 渠道 / 内部订单 / 导入记录仓储
type OrderRepository interface {
	// 渠道
	GetChannelByCode(ctx context.Context, code string) (*model.Channel, error)
	EnsureChannel(ctx context.Context, code, name string) (*model.Channel, error)

	// 内部订单
	CreateOrder(ctx context.Context, order *model.CreatedOrder) error
	GetOrder(ctx context.Context, id int64) (*model.CreatedOrder, error)
	FindCreatedOrder(ctx context.Context, channelID int64, externalID string) (*model.CreatedOrder, error)
	MarkDispatched(ctx context.Context, orderID int64, trackingNumber string, shippingRuleID *int64, at time.Time) error

	// 导入记录
	CreateImport(ctx context.Context, imp *model.OrderImport) error
	CreateImportedOrder(ctx context.Context, row *model.ImportedOrder) error
	ImportedOrdersByImport(ctx context.Context, importID int64) ([]model.ImportedOrder, error)
	CountCreatedOrders(ctx context.Context, channelID int64) (int64, error)

	WithTx(tx *gorm.DB) OrderRepository
	Transaction(ctx context.Context, fn func(txRepo OrderRepository) error) error
}

// ==================== 仓储实现 ====================

type orderRepo struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepo{db: db}
}

func (r *orderRepo) GetChannelByCode(ctx context.Context, code string) (*model.Channel, error) {
	var ch model.Channel
	if err := r.db.WithContext(ctx).Where("channel_code = ?", code).First(&ch).Error; err != nil {
		return nil, translate(err)
	}
	return &ch, nil
}

func (r *orderRepo) EnsureChannel(ctx context.Context, code, name string) (*model.Channel, error) {
	ch := model.Channel{ChannelCode: code, Name: name}
	err := r.db.WithContext(ctx).
		Where(model.Channel{ChannelCode: code}).
		Attrs(model.Channel{Name: name}).
		FirstOrCreate(&ch).Error
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// CreateOrder 订单与订单行一起写入
func (r *orderRepo) CreateOrder(ctx context.Context, order *model.CreatedOrder) error {
	return r.db.WithContext(ctx).Omit("ShippingRule").Create(order).Error
}

func (r *orderRepo) GetOrder(ctx context.Context, id int64) (*model.CreatedOrder, error) {
	var order model.CreatedOrder
	if err := r.db.WithContext(ctx).Preload("Items").First(&order, id).Error; err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

// FindCreatedOrder 幂等键查询，没有时返回 nil
func (r *orderRepo) FindCreatedOrder(ctx context.Context, channelID int64, externalID string) (*model.CreatedOrder, error) {
	var order model.CreatedOrder
	err := r.db.WithContext(ctx).
		Where("channel_id = ? AND external_id = ?", channelID, externalID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepo) MarkDispatched(ctx context.Context, orderID int64, trackingNumber string, shippingRuleID *int64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.CreatedOrder{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"dispatched_at":    at,
			"tracking_number":  trackingNumber,
			"shipping_rule_id": shippingRuleID,
		}).Error
}

func (r *orderRepo) CreateImport(ctx context.Context, imp *model.OrderImport) error {
	return r.db.WithContext(ctx).Create(imp).Error
}

func (r *orderRepo) CreateImportedOrder(ctx context.Context, row *model.ImportedOrder) error {
	return r.db.WithContext(ctx).Omit("CreatedOrder").Create(row).Error
}

func (r *orderRepo) ImportedOrdersByImport(ctx context.Context, importID int64) ([]model.ImportedOrder, error) {
	var rows []model.ImportedOrder
	err := r.db.WithContext(ctx).
		Where("import_id = ?", importID).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *orderRepo) CountCreatedOrders(ctx context.Context, channelID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.CreatedOrder{}).
		Where("channel_id = ?", channelID).
		Count(&count).Error
	return count, err
}

func (r *orderRepo) WithTx(tx *gorm.DB) OrderRepository {
	return &orderRepo{db: tx}
}

func (r *orderRepo) Transaction(ctx context.Context, fn func(txRepo OrderRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
