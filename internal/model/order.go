package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ==================== 渠道 ====================

// Channel 销售渠道
type Channel struct {
	BaseModel
	Name        string `gorm:"size:100;not null" json:"name"`
	ChannelCode string `gorm:"size:50;uniqueIndex;not null" json:"channel_code"`
	Inactive    bool   `gorm:"default:false" json:"inactive"`
}

func (Channel) TableName() string {
	return "channels"
}

// 渠道编码
const (
	ChannelCodeWish    = "wish"
	ChannelCodeShopify = "shopify"
)

// ==================== 内部订单 ====================

// CreatedOrder 由导入生成的内部订单，(channel_id, external_id) 唯一
type CreatedOrder struct {
	BaseModel
	ChannelID   int64  `gorm:"uniqueIndex:idx_created_order_external;not null" json:"channel_id"`
	ExternalID  string `gorm:"size:100;uniqueIndex:idx_created_order_external;not null" json:"external_id"`
	OrderNumber string `gorm:"size:50;index" json:"order_number"`

	// --- 收件信息 ---
	CustomerName string `gorm:"size:255" json:"customer_name"`
	Address1     string `gorm:"size:255" json:"address1"`
	Address2     string `gorm:"size:255" json:"address2"`
	City         string `gorm:"size:100" json:"city"`
	PostCode     string `gorm:"size:32" json:"post_code"`
	Country      string `gorm:"size:100" json:"country"`
	Phone        string `gorm:"size:50" json:"phone"`

	// --- 金额 ---
	Price         decimal.Decimal `gorm:"type:decimal(10,2)" json:"price"`
	ShippingPrice decimal.Decimal `gorm:"type:decimal(10,2)" json:"shipping_price"`
	TotalToPay    decimal.Decimal `gorm:"type:decimal(10,2)" json:"total_to_pay"`

	// --- 发货 ---
	DispatchedAt   *time.Time    `gorm:"index" json:"dispatched_at"`
	TrackingNumber string        `gorm:"size:100" json:"tracking_number"`
	ShippingRuleID *int64        `json:"shipping_rule_id"`
	ShippingRule   *ShippingRule `gorm:"foreignKey:ShippingRuleID" json:"shipping_rule,omitempty"`

	Items []CreatedOrderProduct `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

func (CreatedOrder) TableName() string {
	return "created_orders"
}

// CreatedOrderProduct 订单行
type CreatedOrderProduct struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   int64           `gorm:"index;not null" json:"order_id"`
	ProductID *int64          `gorm:"index" json:"product_id"`
	SKU       string          `gorm:"size:64" json:"sku"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	ItemPrice decimal.Decimal `gorm:"type:decimal(10,2)" json:"item_price"`
}

func (CreatedOrderProduct) TableName() string {
	return "created_order_products"
}

// ==================== 导入记录 ====================

// 导入来源
const (
	ImportSourceFile = "file"
	ImportSourceFeed = "feed"
)

// 已存在订单的导入错误
const ErrorAlreadyCreated = "Already Created"

// OrderImport 一次导入批次
type OrderImport struct {
	BaseModel
	ChannelID int64  `gorm:"index;not null" json:"channel_id"`
	Source    string `gorm:"size:20;not null" json:"source"`
	Filename  string `gorm:"size:255" json:"filename"`
}

func (OrderImport) TableName() string {
	return "order_imports"
}

// ImportedOrder 渠道订单的导入结果
type ImportedOrder struct {
	BaseModel
	ImportID        int64         `gorm:"index;not null" json:"import_id"`
	ChannelID       int64         `gorm:"index;not null" json:"channel_id"`
	ExternalOrderID string        `gorm:"size:100;index;not null" json:"external_order_id"`
	TransactionID   string        `gorm:"size:100" json:"transaction_id"`
	CreatedOrderID  *int64        `gorm:"index" json:"created_order_id"`
	CreatedOrder    *CreatedOrder `gorm:"foreignKey:CreatedOrderID" json:"created_order,omitempty"`
	Error           string        `gorm:"type:text" json:"error"`

	// --- 履约 ---
	Fulfilled           bool   `gorm:"default:false;index" json:"fulfilled"`
	FulfillmentExportID *int64 `gorm:"index" json:"fulfillment_export_id"`
}

func (ImportedOrder) TableName() string {
	return "imported_orders"
}

// ==================== 履约导出 ====================

// FulfillmentExport 履约文件，生成后不再修改
type FulfillmentExport struct {
	BaseModel
	Filename    string `gorm:"size:255;not null" json:"filename"`
	ArtifactURL string `gorm:"size:500" json:"artifact_url"`
	OrderCount  int    `json:"order_count"`

	Orders []ImportedOrder `gorm:"foreignKey:FulfillmentExportID" json:"orders,omitempty"`
}

func (FulfillmentExport) TableName() string {
	return "fulfillment_exports"
}

// FulfillmentError 店铺履约失败记录
type FulfillmentError struct {
	BaseModel
	ImportedOrderID int64  `gorm:"index;not null" json:"imported_order_id"`
	Error           string `gorm:"type:text" json:"error"`
}

func (FulfillmentError) TableName() string {
	return "fulfillment_errors"
}
