package repository

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shopify_sync_v1/internal/model"
)

// ==================== 测试辅助 ====================

func setupRepoTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	// 内存库每个连接独立，限制为单连接
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

// seedListing 创建系列、SKU 与刊登
func seedListing(t *testing.T, db *gorm.DB, rangeSKU string, skus ...string) (*model.ShopifyListing, []model.BaseProduct) {
	t.Helper()
	ctx := context.Background()
	catalog := NewCatalogRepository(db)

	pr := &model.ProductRange{SKU: rangeSKU, Name: rangeSKU + " range"}
	if err := catalog.CreateRange(ctx, pr); err != nil {
		t.Fatalf("创建系列失败: %v", err)
	}

	products := make([]model.BaseProduct, 0, len(skus))
	variations := make([]model.ShopifyVariation, 0, len(skus))
	for _, sku := range skus {
		p := model.BaseProduct{
			RangeID:               pr.ID,
			SKU:                   sku,
			Brand:                 "Acme",
			VariationOptionValues: datatypes.JSONMap{"Size": sku},
		}
		if err := catalog.CreateProduct(ctx, &p); err != nil {
			t.Fatalf("创建 SKU 失败: %v", err)
		}
		products = append(products, p)
		variations = append(variations, model.ShopifyVariation{ProductID: p.ID, Price: decimal.RequireFromString("9.99")})
	}

	listing := &model.ShopifyListing{RangeID: pr.ID, Title: rangeSKU}
	if err := NewListingRepository(db).CreateListing(ctx, listing, variations); err != nil {
		t.Fatalf("创建刊登失败: %v", err)
	}
	return listing, products
}

func int64Ptr(v int64) *int64 { return &v }
