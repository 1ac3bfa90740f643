package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"shopify_sync_v1/internal/model"
)

// ==================== 仓储接口 ====================

// ListingRepository 刊登 / 变体 / 更新记录仓储
type ListingRepository interface {
	// 刊登
	CreateListing(ctx context.Context, listing *model.ShopifyListing, variations []model.ShopifyVariation) error
	GetListing(ctx context.Context, id int64) (*model.ShopifyListing, error)
	GetListingByRange(ctx context.Context, rangeID int64) (*model.ShopifyListing, error)
	GetListingByProductID(ctx context.Context, productID int64) (*model.ShopifyListing, error)
	UpdateListingDetails(ctx context.Context, id int64, title, description string) error
	ListVariations(ctx context.Context, listingID int64) ([]model.ShopifyVariation, error)
	LoadBundle(ctx context.Context, listingID int64) (*ListingBundle, error)

	// 远端 ID 写回
	RecordCreatedProduct(ctx context.Context, listingID, productID int64, variants []VariationRemoteIDs) error
	SetVariationRemoteIDs(ctx context.Context, ids VariationRemoteIDs) error

	// 更新记录
	StartUpdate(ctx context.Context, listingID int64, op model.UpdateOperation) (*model.ShopifyUpdate, error)
	MarkUpdateComplete(ctx context.Context, update *model.ShopifyUpdate) error
	MarkUpdateError(ctx context.Context, update *model.ShopifyUpdate, reason string) error
	GetUpdate(ctx context.Context, id int64) (*model.ShopifyUpdate, error)
	LastUpdate(ctx context.Context, listingID int64) (*model.ShopifyUpdate, error)
	InFlightUpdate(ctx context.Context, listingID int64) (*model.ShopifyUpdate, error)

	WithTx(tx *gorm.DB) ListingRepository
	Transaction(ctx context.Context, fn func(txRepo ListingRepository) error) error
}

// VariationRemoteIDs 变体远端 ID，两个字段必须同时为空或同时有值
type VariationRemoteIDs struct {
	VariationID     int64
	VariantID       *int64
	InventoryItemID *int64
}

func (v VariationRemoteIDs) valid() bool {
	return (v.VariantID == nil) == (v.InventoryItemID == nil)
}

// ==================== 仓储实现 ====================

type listingRepo struct {
	db *gorm.DB
}

// NewListingRepository 创建刊登仓储
func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepo{db: db}
}

// CreateListing 刊登与变体在一个事务内创建，远端 ID 一律为空
func (r *listingRepo) CreateListing(ctx context.Context, listing *model.ShopifyListing, variations []model.ShopifyVariation) error {
	if listing.ProductID != nil {
		return fmt.Errorf("%w: 新建刊登不能携带 product_id", ErrInvariantViolation)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Variations", "Range").Create(listing).Error; err != nil {
			return err
		}
		for i := range variations {
			variations[i].ListingID = listing.ID
			variations[i].VariantID = nil
			variations[i].InventoryItemID = nil
		}
		if len(variations) > 0 {
			if err := tx.Omit("Product").Create(&variations).Error; err != nil {
				return err
			}
		}
		listing.Variations = variations
		return nil
	})
}

func (r *listingRepo) GetListing(ctx context.Context, id int64) (*model.ShopifyListing, error) {
	var listing model.ShopifyListing
	if err := r.db.WithContext(ctx).First(&listing, id).Error; err != nil {
		return nil, translate(err)
	}
	return &listing, nil
}

func (r *listingRepo) GetListingByRange(ctx context.Context, rangeID int64) (*model.ShopifyListing, error) {
	var listing model.ShopifyListing
	if err := r.db.WithContext(ctx).Where("range_id = ?", rangeID).First(&listing).Error; err != nil {
		return nil, translate(err)
	}
	return &listing, nil
}

func (r *listingRepo) GetListingByProductID(ctx context.Context, productID int64) (*model.ShopifyListing, error) {
	var listing model.ShopifyListing
	if err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&listing).Error; err != nil {
		return nil, translate(err)
	}
	return &listing, nil
}

func (r *listingRepo) UpdateListingDetails(ctx context.Context, id int64, title, description string) error {
	return r.db.WithContext(ctx).Model(&model.ShopifyListing{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"title": title, "description": description}).Error
}

func (r *listingRepo) ListVariations(ctx context.Context, listingID int64) ([]model.ShopifyVariation, error) {
	var variations []model.ShopifyVariation
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("listing_id = ?", listingID).
		Order("id ASC").
		Find(&variations).Error
	return variations, err
}

// ==================== 远端 ID 写回 ====================

// RecordCreatedProduct product_id 的唯一写入路径
// 要求存在进行中的 create_product 更新，且刊登尚未绑定商品
func (r *listingRepo) RecordCreatedProduct(ctx context.Context, listingID, productID int64, variants []VariationRemoteIDs) error {
	for _, v := range variants {
		if !v.valid() {
			return fmt.Errorf("%w: 变体 %d 的 variant_id 与 inventory_item_id 必须同时设置", ErrInvariantViolation, v.VariationID)
		}
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var update model.ShopifyUpdate
		err := tx.Where("listing_id = ? AND completed_at IS NULL", listingID).First(&update).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: 刊登 %d 没有进行中的创建任务", ErrInvariantViolation, listingID)
		}
		if err != nil {
			return err
		}
		if update.OperationType != model.OpCreateProduct {
			return fmt.Errorf("%w: 刊登 %d 当前任务不是创建", ErrInvariantViolation, listingID)
		}

		res := tx.Model(&model.ShopifyListing{}).
			Where("id = ? AND product_id IS NULL", listingID).
			Update("product_id", productID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: 刊登 %d 已绑定远端商品", ErrInvariantViolation, listingID)
		}

		for _, v := range variants {
			res := tx.Model(&model.ShopifyVariation{}).
				Where("id = ? AND listing_id = ?", v.VariationID, listingID).
				Updates(map[string]interface{}{
					"variant_id":        v.VariantID,
					"inventory_item_id": v.InventoryItemID,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: 变体 %d 不属于刊登 %d", ErrInvariantViolation, v.VariationID, listingID)
			}
		}
		return nil
	})
}

// SetVariationRemoteIDs 单独刷新变体远端 ID
func (r *listingRepo) SetVariationRemoteIDs(ctx context.Context, ids VariationRemoteIDs) error {
	if !ids.valid() {
		return fmt.Errorf("%w: 变体 %d 的 variant_id 与 inventory_item_id 必须同时设置", ErrInvariantViolation, ids.VariationID)
	}
	return r.db.WithContext(ctx).Model(&model.ShopifyVariation{}).
		Where("id = ?", ids.VariationID).
		Updates(map[string]interface{}{
			"variant_id":        ids.VariantID,
			"inventory_item_id": ids.InventoryItemID,
		}).Error
}

// ==================== 更新记录 ====================

// StartUpdate 检查并插入在同一事务内完成，部分唯一索引兜底并发插入
func (r *listingRepo) StartUpdate(ctx context.Context, listingID int64, op model.UpdateOperation) (*model.ShopifyUpdate, error) {
	update := &model.ShopifyUpdate{ListingID: listingID, OperationType: op}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.ShopifyUpdate{}).
			Where("listing_id = ? AND completed_at IS NULL", listingID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrUpdateInFlight
		}
		return tx.Create(update).Error
	})
	if err == nil {
		return update, nil
	}
	if errors.Is(err, ErrUpdateInFlight) {
		return nil, err
	}

	// 插入冲突时再次确认是否被并发任务占用
	if inflight, ierr := r.InFlightUpdate(ctx, listingID); ierr == nil && inflight != nil {
		return nil, ErrUpdateInFlight
	}
	return nil, err
}

// MarkUpdateComplete 幂等，已结束的记录不再改写
func (r *listingRepo) MarkUpdateComplete(ctx context.Context, update *model.ShopifyUpdate) error {
	return r.terminate(ctx, update, false, "")
}

// MarkUpdateError 幂等，已结束的记录不再改写
func (r *listingRepo) MarkUpdateError(ctx context.Context, update *model.ShopifyUpdate, reason string) error {
	return r.terminate(ctx, update, true, reason)
}

func (r *listingRepo) terminate(ctx context.Context, update *model.ShopifyUpdate, failed bool, reason string) error {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&model.ShopifyUpdate{}).
		Where("id = ? AND completed_at IS NULL", update.ID).
		Updates(map[string]interface{}{
			"completed_at": now,
			"error":        failed,
			"error_reason": reason,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// 已结束，回读当前状态
		fresh, err := r.GetUpdate(ctx, update.ID)
		if err != nil {
			return err
		}
		*update = *fresh
		return nil
	}
	update.CompletedAt = &now
	update.Error = failed
	update.ErrorReason = reason
	return nil
}

func (r *listingRepo) GetUpdate(ctx context.Context, id int64) (*model.ShopifyUpdate, error) {
	var update model.ShopifyUpdate
	if err := r.db.WithContext(ctx).First(&update, id).Error; err != nil {
		return nil, translate(err)
	}
	return &update, nil
}

// LastUpdate 最近一条更新，没有时返回 nil
func (r *listingRepo) LastUpdate(ctx context.Context, listingID int64) (*model.ShopifyUpdate, error) {
	var update model.ShopifyUpdate
	err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("id DESC").
		First(&update).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &update, nil
}

// InFlightUpdate 进行中的更新，没有时返回 nil
func (r *listingRepo) InFlightUpdate(ctx context.Context, listingID int64) (*model.ShopifyUpdate, error) {
	var update model.ShopifyUpdate
	err := r.db.WithContext(ctx).
		Where("listing_id = ? AND completed_at IS NULL", listingID).
		First(&update).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &update, nil
}

// ==================== 事务支持 ====================

func (r *listingRepo) WithTx(tx *gorm.DB) ListingRepository {
	return &listingRepo{db: tx}
}

func (r *listingRepo) Transaction(ctx context.Context, fn func(txRepo ListingRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
