package model

import (
	"sort"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// RangeStatus 商品系列状态
type RangeStatus string

const (
	RangeComplete RangeStatus = "complete"
	RangeCreating RangeStatus = "creating"
	RangeError    RangeStatus = "error"
)

// ProductRange 商品系列，一个系列对应一个店铺商品
type ProductRange struct {
	BaseModel
	SKU         string      `gorm:"size:64;uniqueIndex;not null" json:"sku"`
	Name        string      `gorm:"size:255;not null" json:"name"`
	Description string      `gorm:"type:text" json:"description"`
	Status      RangeStatus `gorm:"size:20;default:complete" json:"status"`

	// --- 关联关系 ---
	Options  []ProductRangeOption    `gorm:"foreignKey:RangeID" json:"options,omitempty"`
	Products []BaseProduct           `gorm:"foreignKey:RangeID" json:"products,omitempty"`
	Images   []ProductRangeImageLink `gorm:"foreignKey:RangeID" json:"images,omitempty"`
}

func (ProductRange) TableName() string {
	return "product_ranges"
}

// ProductRangeOption 变体选项名，Position 决定选项顺序
type ProductRangeOption struct {
	BaseModel
	RangeID  int64  `gorm:"index:idx_range_option,unique;not null" json:"range_id"`
	Name     string `gorm:"size:100;index:idx_range_option,unique;not null" json:"name"`
	Position int    `gorm:"default:0" json:"position"`
}

func (ProductRangeOption) TableName() string {
	return "product_range_options"
}

// BaseProduct 可售 SKU
type BaseProduct struct {
	BaseModel
	RangeID     int64  `gorm:"index;not null" json:"range_id"`
	SKU         string `gorm:"size:64;uniqueIndex;not null" json:"sku"`
	Brand       string `gorm:"size:100" json:"brand"`
	Barcode     string `gorm:"size:64" json:"barcode"`
	WeightGrams int    `gorm:"default:0" json:"weight_grams"`
	HSCode      string `gorm:"size:32" json:"hs_code"`

	// --- 价格与库存 ---
	PurchasePrice decimal.Decimal `gorm:"type:decimal(10,2)" json:"purchase_price"`
	RetailPrice   decimal.Decimal `gorm:"type:decimal(10,2)" json:"retail_price"`
	StockLevel    int             `gorm:"default:0" json:"stock_level"`

	// --- 属性 ---
	VariationOptionValues  datatypes.JSONMap `json:"variation_option_values"`
	ListingAttributeValues datatypes.JSONMap `json:"listing_attribute_values"`

	Images []ProductImageLink `gorm:"foreignKey:ProductID" json:"images,omitempty"`
}

func (BaseProduct) TableName() string {
	return "base_products"
}

// OptionValue 取变体选项值
func (p *BaseProduct) OptionValue(name string) string {
	if p.VariationOptionValues == nil {
		return ""
	}
	if v, ok := p.VariationOptionValues[name]; ok && v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// ProductImage 图片，ID 即去重键
type ProductImage struct {
	BaseModel
	ContentHash string `gorm:"size:64;uniqueIndex;not null" json:"content_hash"`
	URL         string `gorm:"size:500;not null" json:"url"`
	SquareURL   string `gorm:"size:500" json:"square_url"`
}

func (ProductImage) TableName() string {
	return "product_images"
}

// UploadURL 优先使用方图
func (i *ProductImage) UploadURL() string {
	if i.SquareURL != "" {
		return i.SquareURL
	}
	return i.URL
}

// ProductRangeImageLink 系列图片
type ProductRangeImageLink struct {
	ID       int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	RangeID  int64        `gorm:"index;not null" json:"range_id"`
	ImageID  int64        `gorm:"index;not null" json:"image_id"`
	Position int          `gorm:"default:0" json:"position"`
	Image    ProductImage `gorm:"foreignKey:ImageID" json:"image"`
}

func (ProductRangeImageLink) TableName() string {
	return "product_range_image_links"
}

// ProductImageLink 变体图片
type ProductImageLink struct {
	ID        int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID int64        `gorm:"index;not null" json:"product_id"`
	ImageID   int64        `gorm:"index;not null" json:"image_id"`
	Position  int          `gorm:"default:0" json:"position"`
	Image     ProductImage `gorm:"foreignKey:ImageID" json:"image"`
}

func (ProductImageLink) TableName() string {
	return "product_image_links"
}

// SortOptions 按 Position 排序，位置相同按 ID
func SortOptions(options []ProductRangeOption) {
	sort.SliceStable(options, func(i, j int) bool {
		if options[i].Position != options[j].Position {
			return options[i].Position < options[j].Position
		}
		return options[i].ID < options[j].ID
	})
}
