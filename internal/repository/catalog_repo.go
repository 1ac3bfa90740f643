package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shopify_sync_v1/internal/model"
)

// ==================== 仓储接口 ====================

// CatalogRepository 商品目录仓储 (系列 / SKU / 图片)
type CatalogRepository interface {
	CreateRange(ctx context.Context, r *model.ProductRange) error
	GetRange(ctx context.Context, id int64) (*model.ProductRange, error)
	GetRangeBySKU(ctx context.Context, sku string) (*model.ProductRange, error)
	UpdateRangeStatus(ctx context.Context, id int64, status model.RangeStatus) error
	SetRangeOptions(ctx context.Context, rangeID int64, names []string) error
	RangeOptions(ctx context.Context, rangeID int64) ([]model.ProductRangeOption, error)

	CreateProduct(ctx context.Context, p *model.BaseProduct) error
	GetProduct(ctx context.Context, id int64) (*model.BaseProduct, error)
	ProductsByRange(ctx context.Context, rangeID int64) ([]model.BaseProduct, error)
	ProductsBySKU(ctx context.Context, skus []string) (map[string]model.BaseProduct, error)
	UpdateStockLevel(ctx context.Context, productID int64, level int) error

	// 图片按内容哈希幂等创建
	SaveImage(ctx context.Context, img *model.ProductImage) error
	AddRangeImage(ctx context.Context, rangeID, imageID int64, position int) error
	AddProductImage(ctx context.Context, productID, imageID int64, position int) error
	RangeImages(ctx context.Context, rangeID int64) ([]model.ProductImage, error)
	ProductImages(ctx context.Context, productIDs []int64) (map[int64][]model.ProductImage, error)

	WithTx(tx *gorm.DB) CatalogRepository
	Transaction(ctx context.Context, fn func(txRepo CatalogRepository) error) error
}

// ==================== 仓储实现 ====================

type catalogRepo struct {
	db *gorm.DB
}

// NewCatalogRepository 创建目录仓储
func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepo{db: db}
}

func (r *catalogRepo) CreateRange(ctx context.Context, pr *model.ProductRange) error {
	return r.db.WithContext(ctx).Create(pr).Error
}

func (r *catalogRepo) GetRange(ctx context.Context, id int64) (*model.ProductRange, error) {
	var pr model.ProductRange
	if err := r.db.WithContext(ctx).First(&pr, id).Error; err != nil {
		return nil, translate(err)
	}
	return &pr, nil
}

func (r *catalogRepo) GetRangeBySKU(ctx context.Context, sku string) (*model.ProductRange, error) {
	var pr model.ProductRange
	if err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&pr).Error; err != nil {
		return nil, translate(err)
	}
	return &pr, nil
}

func (r *catalogRepo) UpdateRangeStatus(ctx context.Context, id int64, status model.RangeStatus) error {
	return r.db.WithContext(ctx).Model(&model.ProductRange{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// SetRangeOptions 按给定顺序重写选项
func (r *catalogRepo) SetRangeOptions(ctx context.Context, rangeID int64, names []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("range_id = ?", rangeID).Delete(&model.ProductRangeOption{}).Error; err != nil {
			return err
		}
		if len(names) == 0 {
			return nil
		}
		options := make([]model.ProductRangeOption, 0, len(names))
		for i, name := range names {
			options = append(options, model.ProductRangeOption{RangeID: rangeID, Name: name, Position: i})
		}
		return tx.Create(&options).Error
	})
}

func (r *catalogRepo) RangeOptions(ctx context.Context, rangeID int64) ([]model.ProductRangeOption, error) {
	var options []model.ProductRangeOption
	err := r.db.WithContext(ctx).
		Where("range_id = ?", rangeID).
		Order("position ASC, id ASC").
		Find(&options).Error
	return options, err
}

func (r *catalogRepo) CreateProduct(ctx context.Context, p *model.BaseProduct) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *catalogRepo) GetProduct(ctx context.Context, id int64) (*model.BaseProduct, error) {
	var p model.BaseProduct
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *catalogRepo) ProductsByRange(ctx context.Context, rangeID int64) ([]model.BaseProduct, error) {
	var products []model.BaseProduct
	err := r.db.WithContext(ctx).
		Where("range_id = ?", rangeID).
		Order("id ASC").
		Find(&products).Error
	return products, err
}

func (r *catalogRepo) ProductsBySKU(ctx context.Context, skus []string) (map[string]model.BaseProduct, error) {
	result := make(map[string]model.BaseProduct, len(skus))
	if len(skus) == 0 {
		return result, nil
	}
	var products []model.BaseProduct
	if err := r.db.WithContext(ctx).Where("sku IN ?", skus).Find(&products).Error; err != nil {
		return nil, err
	}
	for _, p := range products {
		result[p.SKU] = p
	}
	return result, nil
}

func (r *catalogRepo) UpdateStockLevel(ctx context.Context, productID int64, level int) error {
	return r.db.WithContext(ctx).Model(&model.BaseProduct{}).
		Where("id = ?", productID).
		Update("stock_level", level).Error
}

func (r *catalogRepo) SaveImage(ctx context.Context, img *model.ProductImage) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "content_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"url", "square_url", "updated_at"}),
	}).Create(img).Error
	if err != nil {
		return err
	}
	// 冲突更新时部分驱动不回填主键
	if img.ID == 0 {
		return r.db.WithContext(ctx).Where("content_hash = ?", img.ContentHash).First(img).Error
	}
	return nil
}

func (r *catalogRepo) AddRangeImage(ctx context.Context, rangeID, imageID int64, position int) error {
	return r.db.WithContext(ctx).Create(&model.ProductRangeImageLink{
		RangeID:  rangeID,
		ImageID:  imageID,
		Position: position,
	}).Error
}

func (r *catalogRepo) AddProductImage(ctx context.Context, productID, imageID int64, position int) error {
	return r.db.WithContext(ctx).Create(&model.ProductImageLink{
		ProductID: productID,
		ImageID:   imageID,
		Position:  position,
	}).Error
}

func (r *catalogRepo) RangeImages(ctx context.Context, rangeID int64) ([]model.ProductImage, error) {
	var links []model.ProductRangeImageLink
	err := r.db.WithContext(ctx).
		Preload("Image").
		Where("range_id = ?", rangeID).
		Order("position ASC, id ASC").
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	images := make([]model.ProductImage, 0, len(links))
	for _, l := range links {
		images = append(images, l.Image)
	}
	return images, nil
}

func (r *catalogRepo) ProductImages(ctx context.Context, productIDs []int64) (map[int64][]model.ProductImage, error) {
	result := make(map[int64][]model.ProductImage, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}
	var links []model.ProductImageLink
	err := r.db.WithContext(ctx).
		Preload("Image").
		Where("product_id IN ?", productIDs).
		Order("product_id ASC, position ASC, id ASC").
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	for _, l := range links {
		result[l.ProductID] = append(result[l.ProductID], l.Image)
	}
	return result, nil
}

func (r *catalogRepo) WithTx(tx *gorm.DB) CatalogRepository {
	return &catalogRepo{db: tx}
}

func (r *catalogRepo) Transaction(ctx context.Context, fn func(txRepo CatalogRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
