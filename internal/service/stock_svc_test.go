package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopify_sync_v1/internal/model"
	"shopify_sync_v1/internal/repository"
	"shopify_sync_v1/pkg/shopify"
)

type putCall struct {
	Path string
	Body map[string]map[string]interface{}
	At   time.Time
}

// 三个远端商品：P1 无库存上架，P2 有库存草稿，P3 有库存上架
func TestStockReconcile_FlipsStatuses(t *testing.T) {
	const products = `{"products":[
		{"id":1,"status":"active","updated_at":"2024-05-01T10:00:00Z","variants":[{"id":11,"sku":"P1","inventory_quantity":0}]},
		{"id":2,"status":"draft","updated_at":"2024-05-02T10:00:00Z","variants":[{"id":21,"sku":"P2a","inventory_quantity":1},{"id":22,"sku":"P2b","inventory_quantity":2}]},
		{"id":3,"status":"active","updated_at":"2024-05-03T10:00:00Z","variants":[{"id":31,"sku":"P3","inventory_quantity":3}]}
	]}`

	var mu sync.Mutex
	var puts []putCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/products.json"):
			_, _ = io.WriteString(w, products)
		case r.Method == http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			var decoded map[string]map[string]interface{}
			_ = json.Unmarshal(body, &decoded)
			mu.Lock()
			puts = append(puts, putCall{Path: r.URL.Path, Body: decoded, At: time.Now()})
			mu.Unlock()
			_, _ = io.WriteString(w, `{"product":{"id":0}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := shopify.NewClient(shopify.Config{
		AccessToken: "tok",
		BaseURL:     srv.URL,
		ReadRPS:     50,
		ReadBurst:   10,
	}, nil)
	db := setupServiceDB(t)
	svc := NewStockService(repository.NewCatalogRepository(db), client, false, 0, nil)

	result, err := svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &StockResult{Checked: 3, Drafted: 1, Activated: 1}, result)

	require.Len(t, puts, 2)
	assert.Equal(t, "/products/1.json", puts[0].Path)
	assert.Equal(t, "draft", puts[0].Body["product"]["status"])
	assert.Equal(t, "/products/2.json", puts[1].Path)
	assert.Equal(t, "active", puts[1].Body["product"]["status"])
	assert.Equal(t, "2024-05-02T10:00:00Z", puts[1].Body["product"]["published_at"])

	gap := puts[1].At.Sub(puts[0].At)
	assert.GreaterOrEqual(t, gap, shopify.DefaultRequestPause)
}

func TestStockReconcile_PushesLocalLevels(t *testing.T) {
	db := setupServiceDB(t)
	catalog := repository.NewCatalogRepository(db)
	ctx := context.Background()

	pr := &model.ProductRange{SKU: "R", Name: "R"}
	require.NoError(t, catalog.CreateRange(ctx, pr))
	require.NoError(t, catalog.CreateProduct(ctx, &model.BaseProduct{RangeID: pr.ID, SKU: "EMPTY", StockLevel: 0}))
	require.NoError(t, catalog.CreateProduct(ctx, &model.BaseProduct{RangeID: pr.ID, SKU: "FULL", StockLevel: 7}))

	shop := newFakeShop()
	updated := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	shop.addProduct(shopify.Product{ID: 1, Status: shopify.StatusActive,
		Variants: []shopify.Variant{{ID: 11, SKU: "EMPTY", InventoryQuantity: 4}}})
	shop.addProduct(shopify.Product{ID: 2, Status: shopify.StatusDraft, UpdatedAt: &updated,
		Variants: []shopify.Variant{{ID: 21, SKU: "FULL", InventoryQuantity: 0}, {ID: 22, SKU: "UNKNOWN", InventoryQuantity: 0}}})

	svc := NewStockService(catalog, shop, true, 0, nil)
	result, err := svc.Reconcile(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Pushed)
	assert.Equal(t, 1, result.Drafted)
	assert.Equal(t, 1, result.Activated)
	assert.Equal(t, []stockCall{{VariantID: 11, Qty: 0, LocationID: 55}, {VariantID: 21, Qty: 7, LocationID: 55}}, shop.stock)
	assert.Equal(t, shopify.StatusDraft, shop.product(1).Status)
	assert.Equal(t, shopify.StatusActive, shop.product(2).Status)
	assert.Equal(t, &updated, shop.product(2).PublishedAt)
	assert.Equal(t, 1, shop.sessions)
}

func TestStockReconcile_StopsOnRemoteError(t *testing.T) {
	shop := newFakeShop()
	shop.addProduct(shopify.Product{ID: 1, Status: shopify.StatusActive})
	shop.failOn["UpdateProduct"] = transient("update_product")

	svc := NewStockService(repository.NewCatalogRepository(setupServiceDB(t)), shop, false, 0, nil)
	_, err := svc.Reconcile(context.Background())
	assert.ErrorIs(t, err, shopify.ErrTransient)
}
