package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shopify_sync_v1/internal/model"
	"shopify_sync_v1/pkg/queue"
	"shopify_sync_v1/pkg/shopify"
)

// ==================== 测试数据库 ====================

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取底层连接失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(model.AllModels()...); err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// ==================== 假店铺 ====================

type imageCall struct {
	ProductID  int64
	Src        string
	VariantIDs []int64
}

type customsCall struct {
	InventoryItemID int64
	Country         string
	HSCode          string
}

type stockCall struct {
	VariantID  int64
	Qty        int
	LocationID int64
}

// fakeShop 内存版店铺，实现 Scope 与 API，按顺序记录每次调用
type fakeShop struct {
	mu sync.Mutex

	ops      []string
	sessions int

	products    map[int64]*shopify.Product
	nextID      int64
	collections []shopify.Collection
	locations   []shopify.Location
	orders      []shopify.Order

	failOn map[string]error

	created        []shopify.ProductInput
	updated        []shopify.ProductInput
	variantUpdates []int64
	images         []imageCall
	customs        []customsCall
	stock          []stockCall
	collectAdds    []int64
	clears         []int64
	fulfilled      []int64
	mutationTimes  []time.Time
}

func newFakeShop() *fakeShop {
	return &fakeShop{
		products:  map[int64]*shopify.Product{},
		nextID:    1000,
		locations: []shopify.Location{{ID: 55, Name: "Warehouse", Active: true}},
		failOn:    map[string]error{},
	}
}

func (f *fakeShop) WithSession(ctx context.Context, fn func(ctx context.Context, api shopify.API) error) error {
	f.mu.Lock()
	f.sessions++
	f.mu.Unlock()
	return fn(ctx, f)
}

func (f *fakeShop) record(op string, mutating bool) error {
	f.ops = append(f.ops, op)
	if mutating {
		f.mutationTimes = append(f.mutationTimes, time.Now())
	}
	return f.failOn[op]
}

func (f *fakeShop) opsSnapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

func notFound(op string) error {
	return &shopify.RemoteError{Kind: shopify.KindNotFound, Op: op, Status: 404, Message: "Not Found"}
}

func transient(op string) error {
	return &shopify.RemoteError{Kind: shopify.KindTransient, Op: op, Status: 503, Message: "Service Unavailable"}
}

func permanent(op string) error {
	return &shopify.RemoteError{Kind: shopify.KindPermanent, Op: op, Status: 422, Message: "Unprocessable"}
}

// addProduct 预置远端商品
func (f *fakeShop) addProduct(p shopify.Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := p
	f.products[p.ID] = &cp
}

func (f *fakeShop) product(id int64) shopify.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.products[id]
}

func (f *fakeShop) ListProducts(ctx context.Context) ([]shopify.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListProducts", false); err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(f.products))
	for id := range f.products {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]shopify.Product, 0, len(ids))
	for _, id := range ids {
		out = append(out, *f.products[id])
	}
	return out, nil
}

func (f *fakeShop) GetProduct(ctx context.Context, id int64) (*shopify.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetProduct", false); err != nil {
		return nil, err
	}
	p, ok := f.products[id]
	if !ok {
		return nil, notFound("get_product")
	}
	cp := *p
	return &cp, nil
}

func (f *fakeShop) CreateProduct(ctx context.Context, input *shopify.ProductInput) (*shopify.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateProduct", true); err != nil {
		return nil, err
	}
	f.created = append(f.created, *input)
	f.nextID++
	p := &shopify.Product{ID: f.nextID, Title: input.Title, Status: shopify.StatusActive}
	if input.BodyHTML != nil {
		p.BodyHTML = *input.BodyHTML
	}
	if input.Vendor != nil {
		p.Vendor = *input.Vendor
	}
	for i, v := range input.Variants {
		p.Variants = append(p.Variants, shopify.Variant{
			ID:              f.nextID*10 + int64(i),
			ProductID:       f.nextID,
			SKU:             v.SKU,
			Price:           v.Price,
			InventoryItemID: f.nextID*100 + int64(i),
		})
	}
	f.products[p.ID] = p
	cp := *p
	return &cp, nil
}

func (f *fakeShop) UpdateProduct(ctx context.Context, id int64, input *shopify.ProductInput) (*shopify.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateProduct", true); err != nil {
		return nil, err
	}
	f.updated = append(f.updated, *input)
	p, ok := f.products[id]
	if !ok {
		return nil, notFound("update_product")
	}
	if input.Title != "" {
		p.Title = input.Title
	}
	if input.BodyHTML != nil {
		p.BodyHTML = *input.BodyHTML
	}
	if input.Vendor != nil {
		p.Vendor = *input.Vendor
	}
	if input.Tags != nil {
		p.Tags = *input.Tags
	}
	if input.Status != "" {
		p.Status = input.Status
	}
	if input.PublishedAt != nil {
		p.PublishedAt = input.PublishedAt
	}
	if input.Images != nil && len(*input.Images) == 0 {
		p.Images = nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeShop) UpdateVariant(ctx context.Context, variantID int64, input *shopify.VariantInput) (*shopify.Variant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateVariant", true); err != nil {
		return nil, err
	}
	f.variantUpdates = append(f.variantUpdates, variantID)
	return &shopify.Variant{ID: variantID, SKU: input.SKU, Price: input.Price}, nil
}

func (f *fakeShop) AddProductImage(ctx context.Context, productID int64, src string, variantIDs []int64) (*shopify.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AddProductImage", true); err != nil {
		return nil, err
	}
	f.images = append(f.images, imageCall{ProductID: productID, Src: src, VariantIDs: variantIDs})
	img := shopify.Image{ID: int64(len(f.images)), ProductID: productID, Src: src, VariantIDs: variantIDs}
	if p, ok := f.products[productID]; ok {
		p.Images = append(p.Images, img)
	}
	return &img, nil
}

func (f *fakeShop) UpdateVariantStock(ctx context.Context, variant *shopify.Variant, newQty int, locationID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateVariantStock", true); err != nil {
		return err
	}
	f.stock = append(f.stock, stockCall{VariantID: variant.ID, Qty: newQty, LocationID: locationID})
	for _, p := range f.products {
		for i := range p.Variants {
			if p.Variants[i].ID == variant.ID {
				p.Variants[i].InventoryQuantity = newQty
			}
		}
	}
	return nil
}

func (f *fakeShop) SetCustoms(ctx context.Context, inventoryItemID int64, country, hsCode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SetCustoms", true); err != nil {
		return err
	}
	f.customs = append(f.customs, customsCall{InventoryItemID: inventoryItemID, Country: country, HSCode: hsCode})
	return nil
}

func (f *fakeShop) InventoryLocations(ctx context.Context) ([]shopify.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("InventoryLocations", false); err != nil {
		return nil, err
	}
	return append([]shopify.Location(nil), f.locations...), nil
}

func (f *fakeShop) ListCollections(ctx context.Context) ([]shopify.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListCollections", false); err != nil {
		return nil, err
	}
	return append([]shopify.Collection(nil), f.collections...), nil
}

func (f *fakeShop) AddProductToCollection(ctx context.Context, productID, collectionID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(fmt.Sprintf("AddProductToCollection(%d,%d)", productID, collectionID), true); err != nil {
		return err
	}
	f.collectAdds = append(f.collectAdds, collectionID)
	return nil
}

func (f *fakeShop) RemoveProductFromCollection(ctx context.Context, productID, collectionID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("RemoveProductFromCollection", true)
}

func (f *fakeShop) ClearCollections(ctx context.Context, productID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(fmt.Sprintf("ClearCollections(%d)", productID), true); err != nil {
		return err
	}
	f.clears = append(f.clears, productID)
	return nil
}

func (f *fakeShop) ListOrders(ctx context.Context) ([]shopify.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListOrders", false); err != nil {
		return nil, err
	}
	return append([]shopify.Order(nil), f.orders...), nil
}

func (f *fakeShop) FulfillOrder(ctx context.Context, orderID, locationID int64, trackingNumber string) (*shopify.Fulfillment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(fmt.Sprintf("FulfillOrder(%d)", orderID), true); err != nil {
		return nil, err
	}
	f.fulfilled = append(f.fulfilled, orderID)
	return &shopify.Fulfillment{ID: orderID * 10, OrderID: orderID, Status: "success", TrackingNumber: trackingNumber}, nil
}

var (
	_ shopify.API   = (*fakeShop)(nil)
	_ shopify.Scope = (*fakeShop)(nil)
)

// ==================== 假队列 ====================

type fakeQueue struct {
	mu        sync.Mutex
	published []queue.Job
	err       error
}

func (q *fakeQueue) Publish(ctx context.Context, job queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.published = append(q.published, job)
	return nil
}

func (q *fakeQueue) Consume(ctx context.Context) (*queue.Delivery, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (q *fakeQueue) Ack(ctx context.Context, d *queue.Delivery) error { return nil }

func (q *fakeQueue) Close() error { return nil }

var errBrokerDown = errors.New("broker unavailable")
