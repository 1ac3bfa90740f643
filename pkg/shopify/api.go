package shopify

import "context"

// API 会话内可用的远程操作
type API interface {
	// 商品
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id int64) (*Product, error)
	CreateProduct(ctx context.Context, input *ProductInput) (*Product, error)
	UpdateProduct(ctx context.Context, id int64, input *ProductInput) (*Product, error)
	UpdateVariant(ctx context.Context, variantID int64, input *VariantInput) (*Variant, error)
	AddProductImage(ctx context.Context, productID int64, src string, variantIDs []int64) (*Image, error)

	// 库存
	UpdateVariantStock(ctx context.Context, variant *Variant, newQty int, locationID int64) error
	SetCustoms(ctx context.Context, inventoryItemID int64, countryOfOrigin, hsCode string) error
	InventoryLocations(ctx context.Context) ([]Location, error)

	// 集合
	ListCollections(ctx context.Context) ([]Collection, error)
	AddProductToCollection(ctx context.Context, productID, collectionID int64) error
	RemoveProductFromCollection(ctx context.Context, productID, collectionID int64) error
	ClearCollections(ctx context.Context, productID int64) error

	// 订单
	ListOrders(ctx context.Context) ([]Order, error)
	FulfillOrder(ctx context.Context, orderID, locationID int64, trackingNumber string) (*Fulfillment, error)
}

// Scope 会话作用域提供者，编排层只依赖这个接口
type Scope interface {
	WithSession(ctx context.Context, fn func(ctx context.Context, api API) error) error
}

var (
	_ API   = (*Session)(nil)
	_ Scope = (*Client)(nil)
)
