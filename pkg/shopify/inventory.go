package shopify

import (
	"context"
	"fmt"
	"net/http"
)

// ==================== 库存与报关 ====================

// UpdateVariantStock 设置变体在指定仓位的可用库存
func (s *Session) UpdateVariantStock(ctx context.Context, variant *Variant, newQty int, locationID int64) error {
	if variant == nil || variant.InventoryItemID == 0 {
		return &RemoteError{Kind: KindPermanent, Op: "update_variant_stock", Message: "变体缺少 inventory_item_id"}
	}
	body := InventoryLevel{
		InventoryItemID: variant.InventoryItemID,
		LocationID:      locationID,
		Available:       newQty,
	}
	var env inventoryLevelEnvelope
	if err := s.sendJSON(ctx, "update_variant_stock", http.MethodPost, "/inventory_levels/set.json", body, &env); err != nil {
		return err
	}
	variant.InventoryQuantity = newQty
	return nil
}

// SetCustoms 设置原产国与海关编码
func (s *Session) SetCustoms(ctx context.Context, inventoryItemID int64, countryOfOrigin, hsCode string) error {
	body := map[string]interface{}{
		"inventory_item": map[string]interface{}{
			"id":                     inventoryItemID,
			"country_code_of_origin": countryOfOrigin,
			"harmonized_system_code": hsCode,
		},
	}
	path := fmt.Sprintf("/inventory_items/%d.json", inventoryItemID)
	return s.sendJSON(ctx, "set_customs", http.MethodPut, path, body, nil)
}

// InventoryLocations 获取仓位列表
func (s *Session) InventoryLocations(ctx context.Context) ([]Location, error) {
	var env locationsEnvelope
	if _, err := s.getJSON(ctx, "inventory_locations", "/locations.json", nil, &env); err != nil {
		return nil, err
	}
	return env.Locations, nil
}
