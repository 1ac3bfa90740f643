package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"shopify_sync_v1/internal/repository"
	"shopify_sync_v1/pkg/shopify"
)

// StockResult 一次库存对账的统计
type StockResult struct {
	Checked   int `json:"checked"`
	Drafted   int `json:"drafted"`
	Activated int `json:"activated"`
	Pushed    int `json:"pushed"`
}

// StockService 按远端库存切换商品上下架
type StockService struct {
	catalog    repository.CatalogRepository
	scope      shopify.Scope
	pushStock  bool
	locationID int64
	logger     *zap.Logger
}

// NewStockService pushStock 开启时先把本地库存写到远端再统计
func NewStockService(catalog repository.CatalogRepository, scope shopify.Scope, pushStock bool, locationID int64, logger *zap.Logger) *StockService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockService{
		catalog:    catalog,
		scope:      scope,
		pushStock:  pushStock,
		locationID: locationID,
		logger:     logger.Named("StockService"),
	}
}

// Reconcile 库存为 0 的上架商品转草稿，有库存的草稿重新上架
func (s *StockService) Reconcile(ctx context.Context) (*StockResult, error) {
	result := &StockResult{}
	err := s.scope.WithSession(ctx, func(ctx context.Context, api shopify.API) error {
		products, err := api.ListProducts(ctx)
		if err != nil {
			return fmt.Errorf("读取远端商品失败: %w", err)
		}

		if s.pushStock {
			pushed, err := s.pushLevels(ctx, api, products)
			if err != nil {
				return err
			}
			result.Pushed = pushed
		}

		for i := range products {
			p := &products[i]
			result.Checked++
			sum := p.TotalInventory()

			switch {
			case sum == 0 && p.Status == shopify.StatusActive:
				if _, err := api.UpdateProduct(ctx, p.ID, &shopify.ProductInput{Status: shopify.StatusDraft}); err != nil {
					return fmt.Errorf("商品 %d 转草稿失败: %w", p.ID, err)
				}
				result.Drafted++
				s.logger.Info("无库存，转为草稿", zap.Int64("product_id", p.ID))

			case sum > 0 && p.Status == shopify.StatusDraft:
				input := &shopify.ProductInput{Status: shopify.StatusActive, PublishedAt: p.UpdatedAt}
				if _, err := api.UpdateProduct(ctx, p.ID, input); err != nil {
					return fmt.Errorf("商品 %d 上架失败: %w", p.ID, err)
				}
				result.Activated++
				s.logger.Info("有库存，重新上架", zap.Int64("product_id", p.ID), zap.Int("stock", sum))
			}
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	s.logger.Info("库存对账完成",
		zap.Int("checked", result.Checked),
		zap.Int("drafted", result.Drafted),
		zap.Int("activated", result.Activated),
		zap.Int("pushed", result.Pushed))
	return result, nil
}

// pushLevels 远端数量与本地 stock_level 不一致时覆盖远端，并就地更新 products
func (s *StockService) pushLevels(ctx context.Context, api shopify.API, products []shopify.Product) (int, error) {
	var skus []string
	for _, p := range products {
		for _, v := range p.Variants {
			if v.SKU != "" {
				skus = append(skus, v.SKU)
			}
		}
	}
	if len(skus) == 0 {
		return 0, nil
	}
	local, err := s.catalog.ProductsBySKU(ctx, skus)
	if err != nil {
		return 0, fmt.Errorf("读取本地库存失败: %w", err)
	}

	locationID := s.locationID
	pushed := 0
	for i := range products {
		for j := range products[i].Variants {
			v := &products[i].Variants[j]
			bp, ok := local[v.SKU]
			if !ok || bp.StockLevel == v.InventoryQuantity {
				continue
			}
			if locationID == 0 {
				if locationID, err = firstLocation(ctx, api); err != nil {
					return pushed, err
				}
			}
			if err := api.UpdateVariantStock(ctx, v, bp.StockLevel, locationID); err != nil {
				return pushed, fmt.Errorf("更新变体 %s 库存失败: %w", v.SKU, err)
			}
			v.InventoryQuantity = bp.StockLevel
			pushed++
		}
	}
	return pushed, nil
}

// firstLocation 第一个仓位
func firstLocation(ctx context.Context, api shopify.API) (int64, error) {
	locations, err := api.InventoryLocations(ctx)
	if err != nil {
		return 0, fmt.Errorf("读取仓位失败: %w", err)
	}
	if len(locations) == 0 {
		return 0, fmt.Errorf("店铺没有可用仓位")
	}
	return locations[0].ID, nil
}
