package shopify

import (
	"context"
	"fmt"
	"net/http"
)

// ==================== 商品操作 ====================

// ListProducts 拉取全部商品
func (s *Session) ListProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	err := s.getPages(ctx, "list_products", "/products.json", map[string]string{"limit": "250"}, func(body []byte) error {
		var page productsEnvelope
		if err := decodeJSON(body, &page); err != nil {
			return err
		}
		products = append(products, page.Products...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

// GetProduct 获取单个商品，不存在时返回 NotFound
func (s *Session) GetProduct(ctx context.Context, id int64) (*Product, error) {
	var env productEnvelope
	if _, err := s.getJSON(ctx, "get_product", fmt.Sprintf("/products/%d.json", id), nil, &env); err != nil {
		return nil, err
	}
	return &env.Product, nil
}

// CreateProduct 创建商品
func (s *Session) CreateProduct(ctx context.Context, input *ProductInput) (*Product, error) {
	var env productEnvelope
	body := map[string]interface{}{"product": input}
	if err := s.sendJSON(ctx, "create_product", http.MethodPost, "/products.json", body, &env); err != nil {
		return nil, err
	}
	return &env.Product, nil
}

// UpdateProduct 更新商品
func (s *Session) UpdateProduct(ctx context.Context, id int64, input *ProductInput) (*Product, error) {
	var env productEnvelope
	body := map[string]interface{}{"product": input}
	if err := s.sendJSON(ctx, "update_product", http.MethodPut, fmt.Sprintf("/products/%d.json", id), body, &env); err != nil {
		return nil, err
	}
	return &env.Product, nil
}

// UpdateVariant 更新单个变体
func (s *Session) UpdateVariant(ctx context.Context, variantID int64, input *VariantInput) (*Variant, error) {
	var env variantEnvelope
	payload := *input
	payload.ID = variantID
	body := map[string]interface{}{"variant": payload}
	if err := s.sendJSON(ctx, "update_variant", http.MethodPut, fmt.Sprintf("/variants/%d.json", variantID), body, &env); err != nil {
		return nil, err
	}
	return &env.Variant, nil
}

// AddProductImage 添加商品图片，可关联变体
func (s *Session) AddProductImage(ctx context.Context, productID int64, src string, variantIDs []int64) (*Image, error) {
	var env imageEnvelope
	body := map[string]interface{}{"image": ImageInput{Src: src, VariantIDs: variantIDs}}
	path := fmt.Sprintf("/products/%d/images.json", productID)
	if err := s.sendJSON(ctx, "add_product_image", http.MethodPost, path, body, &env); err != nil {
		return nil, err
	}
	return &env.Image, nil
}
