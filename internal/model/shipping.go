package model

// ==================== 物流 ====================

// Courier 承运商
type Courier struct {
	BaseModel
	Name string `gorm:"size:100;uniqueIndex;not null" json:"name"`
}

func (Courier) TableName() string {
	return "couriers"
}

// CourierService 承运商服务
type CourierService struct {
	BaseModel
	Name      string   `gorm:"size:100;not null" json:"name"`
	CourierID int64    `gorm:"index;not null" json:"courier_id"`
	Courier   *Courier `gorm:"foreignKey:CourierID" json:"courier,omitempty"`
}

func (CourierService) TableName() string {
	return "courier_services"
}

// ShippingRule 发货规则
type ShippingRule struct {
	BaseModel
	Name             string          `gorm:"size:100;not null" json:"name"`
	CourierServiceID *int64          `gorm:"index" json:"courier_service_id"`
	CourierService   *CourierService `gorm:"foreignKey:CourierServiceID" json:"courier_service,omitempty"`
}

func (ShippingRule) TableName() string {
	return "shipping_rules"
}

// CourierName 规则 -> 服务 -> 承运商名称，缺失时返回空串
func (r *ShippingRule) CourierName() string {
	if r == nil || r.CourierService == nil || r.CourierService.Courier == nil {
		return ""
	}
	return r.CourierService.Courier.Name
}

// AllModels 需要自动迁移的全部模型
func AllModels() []interface{} {
	return []interface{}{
		// Catalog
		&ProductRange{}, &ProductRangeOption{}, &BaseProduct{},
		&ProductImage{}, &ProductRangeImageLink{}, &ProductImageLink{},
		// Listing
		&ShopifyListing{}, &ShopifyVariation{}, &ShopifyTag{}, &ShopifyListingTag{},
		&ShopifyCollection{}, &ShopifyListingCollection{}, &ShopifyUpdate{},
		// Shipping
		&Courier{}, &CourierService{}, &ShippingRule{},
		// Order
		&Channel{}, &CreatedOrder{}, &CreatedOrderProduct{},
		&OrderImport{}, &ImportedOrder{}, &FulfillmentExport{}, &FulfillmentError{},
	}
}
