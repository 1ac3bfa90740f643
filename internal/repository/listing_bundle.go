package repository

import (
	"context"
	"fmt"

	"shopify_sync_v1/internal/model"
)

// ListingBundle 生成远端载荷所需的完整刊登数据
type ListingBundle struct {
	Listing     model.ShopifyListing
	Range       model.ProductRange
	Options     []model.ProductRangeOption // 按 position 排序
	RangeImages []model.ProductImage       // 按 position 排序
	Variations  []VariationBundle          // 按变体 ID 排序
	Tags        []model.ShopifyTag         // 按关系插入顺序
	Collections []model.ShopifyCollection  // 按关系插入顺序
}

// VariationBundle 单个变体及其 SKU、图片
type VariationBundle struct {
	Variation model.ShopifyVariation
	Product   model.BaseProduct
	Images    []model.ProductImage
}

// VariationBySKU 按 SKU 查找变体
func (b *ListingBundle) VariationBySKU(sku string) (*VariationBundle, bool) {
	for i := range b.Variations {
		if b.Variations[i].Product.SKU == sku {
			return &b.Variations[i], true
		}
	}
	return nil, false
}

// LoadBundle 读取刊登及其系列、变体、图片、标签、集合
func (r *listingRepo) LoadBundle(ctx context.Context, listingID int64) (*ListingBundle, error) {
	listing, err := r.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}

	catalog := NewCatalogRepository(r.db)
	pr, err := catalog.GetRange(ctx, listing.RangeID)
	if err != nil {
		return nil, fmt.Errorf("读取系列失败: %w", err)
	}
	options, err := catalog.RangeOptions(ctx, pr.ID)
	if err != nil {
		return nil, fmt.Errorf("读取系列选项失败: %w", err)
	}
	rangeImages, err := catalog.RangeImages(ctx, pr.ID)
	if err != nil {
		return nil, fmt.Errorf("读取系列图片失败: %w", err)
	}

	variations, err := r.ListVariations(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("读取变体失败: %w", err)
	}
	productIDs := make([]int64, 0, len(variations))
	for _, v := range variations {
		productIDs = append(productIDs, v.ProductID)
	}
	productImages, err := catalog.ProductImages(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("读取变体图片失败: %w", err)
	}

	bundle := &ListingBundle{
		Listing:     *listing,
		Range:       *pr,
		Options:     options,
		RangeImages: rangeImages,
	}
	for _, v := range variations {
		if v.Product == nil {
			return nil, fmt.Errorf("%w: 变体 %d 缺少 SKU 记录", ErrInvariantViolation, v.ID)
		}
		bundle.Variations = append(bundle.Variations, VariationBundle{
			Variation: v,
			Product:   *v.Product,
			Images:    productImages[v.ProductID],
		})
	}

	tags, err := NewTagRepository(r.db).ListingTags(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("读取标签失败: %w", err)
	}
	collections, err := NewCollectionRepository(r.db).ListingCollections(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("读取集合失败: %w", err)
	}
	bundle.Tags = tags
	bundle.Collections = collections

	return bundle, nil
}
