package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ==================== 店铺刊登 ====================

// ShopifyListing 系列在店铺侧的刊登，ProductID 在首次创建成功后写入
type ShopifyListing struct {
	BaseModel
	RangeID     int64  `gorm:"uniqueIndex;not null" json:"range_id"`
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	ProductID   *int64 `gorm:"index" json:"product_id"`

	Range      *ProductRange      `gorm:"foreignKey:RangeID" json:"-"`
	Variations []ShopifyVariation `gorm:"foreignKey:ListingID" json:"variations,omitempty"`
}

func (ShopifyListing) TableName() string {
	return "shopify_listings"
}

// ShopifyVariation 刊登下的变体，与 BaseProduct 一一对应
type ShopifyVariation struct {
	BaseModel
	ListingID       int64           `gorm:"index;not null" json:"listing_id"`
	ProductID       int64           `gorm:"uniqueIndex;not null" json:"product_id"`
	Price           decimal.Decimal `gorm:"type:decimal(6,2)" json:"price"`
	VariantID       *int64          `gorm:"index" json:"variant_id"`
	InventoryItemID *int64          `json:"inventory_item_id"`

	Product *BaseProduct `gorm:"foreignKey:ProductID" json:"-"`
}

func (ShopifyVariation) TableName() string {
	return "shopify_variations"
}

// HasRemoteIDs 远端 ID 是否已写入
func (v *ShopifyVariation) HasRemoteIDs() bool {
	return v.VariantID != nil && v.InventoryItemID != nil
}

// ==================== 标签与集合 ====================

type ShopifyTag struct {
	BaseModel
	Name string `gorm:"size:255;uniqueIndex;not null" json:"name"`
}

func (ShopifyTag) TableName() string {
	return "shopify_tags"
}

// ShopifyListingTag 刊登-标签关系，按 ID 保持插入顺序
type ShopifyListingTag struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	ListingID int64 `gorm:"uniqueIndex:idx_listing_tag;not null"`
	TagID     int64 `gorm:"uniqueIndex:idx_listing_tag;not null;index"`
}

func (ShopifyListingTag) TableName() string {
	return "shopify_listing_tags"
}

// ShopifyCollection 远端集合的本地镜像
type ShopifyCollection struct {
	BaseModel
	Name         string `gorm:"size:255;not null" json:"name"`
	CollectionID int64  `gorm:"uniqueIndex;not null" json:"collection_id"`
}

func (ShopifyCollection) TableName() string {
	return "shopify_collections"
}

// ShopifyListingCollection 刊登-集合关系
type ShopifyListingCollection struct {
	ID           int64 `gorm:"primaryKey;autoIncrement"`
	ListingID    int64 `gorm:"uniqueIndex:idx_listing_collection;not null"`
	CollectionID int64 `gorm:"uniqueIndex:idx_listing_collection;not null;index"`

	Collection *ShopifyCollection `gorm:"foreignKey:CollectionID;constraint:OnDelete:CASCADE"`
}

func (ShopifyListingCollection) TableName() string {
	return "shopify_listing_collections"
}

// ==================== 更新记录 ====================

// UpdateOperation 更新类型
type UpdateOperation string

const (
	OpCreateProduct UpdateOperation = "create_product"
	OpUpdateProduct UpdateOperation = "update_product"
)

// 失败原因
const (
	ReasonRemoteGone = "remote_gone"
	ReasonTransient  = "transient"
	ReasonPermanent  = "permanent"
	ReasonDeadline   = "deadline"
	ReasonEnqueue    = "enqueue_failed"
)

// ShopifyUpdate 一次创建/更新流程的持久记录
// 同一刊登最多一条 completed_at 为空的记录 (部分唯一索引)
type ShopifyUpdate struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt     time.Time       `json:"created_at"`
	ListingID     int64           `gorm:"not null;index:idx_shopify_update_inflight,unique,where:completed_at IS NULL" json:"listing_id"`
	OperationType UpdateOperation `gorm:"size:32;not null" json:"operation_type"`
	CompletedAt   *time.Time      `json:"completed_at"`
	Error         bool            `gorm:"default:false" json:"error"`
	ErrorReason   string          `gorm:"size:64" json:"error_reason,omitempty"`
}

func (ShopifyUpdate) TableName() string {
	return "shopify_updates"
}

// Ongoing 是否仍在进行
func (u *ShopifyUpdate) Ongoing() bool {
	return u.CompletedAt == nil
}
