package service

import (
	"errors"
	"fmt"
	"strings"

	"shopify_sync_v1/internal/model"
	"shopify_sync_v1/internal/repository"
	"shopify_sync_v1/pkg/shopify"
)

// 店铺侧常量
const (
	CustomsCountryOfOrigin = "CN"
	WeightUnitGrams        = "g"
	InventoryTracked       = "shopify"
	maxProductOptions      = 3
)

var ErrInvalidListing = errors.New("listing cannot be projected")

// ListingPayload 刊登投影结果
type ListingPayload struct {
	Product *shopify.ProductInput
	// Images 去重后的全部图片：系列图在前，变体图按变体顺序在后
	Images []model.ProductImage
	// Linked 只出现在变体上的图片及引用它的变体
	Linked  []LinkedImage
	Customs []CustomsEntry
}

// LinkedImage VariationIDs 为本地 ShopifyVariation ID，上传时再换成远端变体 ID
type LinkedImage struct {
	Image        model.ProductImage
	VariationIDs []int64
}

type CustomsEntry struct {
	VariationID     int64
	SKU             string
	CountryOfOrigin string
	HSCode          string
}

// PlainImages 第一轮上传的图片 (不含变体关联图)
func (p *ListingPayload) PlainImages() []model.ProductImage {
	linked := make(map[int64]bool, len(p.Linked))
	for _, l := range p.Linked {
		linked[l.Image.ID] = true
	}
	out := make([]model.ProductImage, 0, len(p.Images))
	for _, img := range p.Images {
		if !linked[img.ID] {
			out = append(out, img)
		}
	}
	return out
}

// BuildListingPayload 由刊登数据生成远端载荷，不做任何 IO
func BuildListingPayload(b *repository.ListingBundle) (*ListingPayload, error) {
	if len(b.Variations) == 0 {
		return nil, fmt.Errorf("%w: 刊登 %d 没有变体", ErrInvalidListing, b.Listing.ID)
	}

	single := len(b.Variations) == 1
	optionNames := projectOptionNames(b.Options)
	if !single {
		if len(optionNames) == 0 {
			return nil, fmt.Errorf("%w: 多变体刊登缺少选项", ErrInvalidListing)
		}
		if len(optionNames) > maxProductOptions {
			return nil, fmt.Errorf("%w: 选项数 %d 超过上限 %d", ErrInvalidListing, len(optionNames), maxProductOptions)
		}
	}

	body := b.Listing.Description
	vendor := projectVendor(b.Variations)
	tags := projectTags(b.Tags)
	input := &shopify.ProductInput{
		Title:    b.Listing.Title,
		BodyHTML: &body,
		Vendor:   &vendor,
		Tags:     &tags,
	}
	if !single {
		for i, name := range optionNames {
			input.Options = append(input.Options, shopify.ProductOption{Name: name, Position: i + 1})
		}
	}

	payload := &ListingPayload{Product: input}
	for i := range b.Variations {
		vb := &b.Variations[i]
		v := VariantDetails(vb)
		if !single {
			values := make([]string, 0, len(optionNames))
			for _, name := range optionNames {
				values = append(values, vb.Product.OptionValue(name))
			}
			v.SetOptionValues(values)
		}
		input.Variants = append(input.Variants, v)

		payload.Customs = append(payload.Customs, CustomsEntry{
			VariationID:     vb.Variation.ID,
			SKU:             vb.Product.SKU,
			CountryOfOrigin: CustomsCountryOfOrigin,
			HSCode:          vb.Product.HSCode,
		})
	}

	payload.Images, payload.Linked = projectImages(b)
	return payload, nil
}

// VariantDetails 变体明细，不含选项值
func VariantDetails(vb *repository.VariationBundle) shopify.VariantInput {
	return shopify.VariantInput{
		SKU:                 vb.Product.SKU,
		Barcode:             vb.Product.Barcode,
		Grams:               vb.Product.WeightGrams,
		Price:               shopify.NewMoney(vb.Variation.Price),
		WeightUnit:          WeightUnitGrams,
		InventoryManagement: InventoryTracked,
	}
}

func projectOptionNames(options []model.ProductRangeOption) []string {
	sorted := make([]model.ProductRangeOption, len(options))
	copy(sorted, options)
	model.SortOptions(sorted)
	names := make([]string, 0, len(sorted))
	for _, o := range sorted {
		names = append(names, o.Name)
	}
	return names
}

// projectVendor 取 product id 最小的变体品牌
func projectVendor(variations []repository.VariationBundle) string {
	var vendor string
	var lowest int64
	for i, vb := range variations {
		if i == 0 || vb.Product.ID < lowest {
			lowest = vb.Product.ID
			vendor = vb.Product.Brand
		}
	}
	return vendor
}

func projectTags(tags []model.ShopifyTag) string {
	seen := make(map[string]bool, len(tags))
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		if seen[t.Name] {
			continue
		}
		seen[t.Name] = true
		names = append(names, t.Name)
	}
	return strings.Join(names, ",")
}

// projectImages 按图片 ID 去重，保持首次出现顺序
func projectImages(b *repository.ListingBundle) ([]model.ProductImage, []LinkedImage) {
	inRange := make(map[int64]bool, len(b.RangeImages))
	seen := make(map[int64]bool)
	var images []model.ProductImage

	for _, img := range b.RangeImages {
		inRange[img.ID] = true
		if !seen[img.ID] {
			seen[img.ID] = true
			images = append(images, img)
		}
	}

	var linked []LinkedImage
	linkedIdx := make(map[int64]int)
	for _, vb := range b.Variations {
		for _, img := range vb.Images {
			if !seen[img.ID] {
				seen[img.ID] = true
				images = append(images, img)
			}
			if inRange[img.ID] {
				continue
			}
			idx, ok := linkedIdx[img.ID]
			if !ok {
				idx = len(linked)
				linkedIdx[img.ID] = idx
				linked = append(linked, LinkedImage{Image: img})
			}
			ids := linked[idx].VariationIDs
			if len(ids) == 0 || ids[len(ids)-1] != vb.Variation.ID {
				linked[idx].VariationIDs = append(ids, vb.Variation.ID)
			}
		}
	}
	return images, linked
}
