package shopify

import (
	"context"
	"fmt"
	"net/http"
)

// ==================== 订单 ====================

// ListOrders 拉取可导入订单 (已付款、已确认、未取消)
func (s *Session) ListOrders(ctx context.Context) ([]Order, error) {
	var orders []Order
	query := map[string]string{
		"status":           "open",
		"financial_status": "paid",
		"limit":            "250",
	}
	err := s.getPages(ctx, "list_orders", "/orders.json", query, func(body []byte) error {
		var page ordersEnvelope
		if err := decodeJSON(body, &page); err != nil {
			return err
		}
		for _, o := range page.Orders {
			if o.Importable() {
				orders = append(orders, o)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// FulfillOrder 在指定仓位发货
func (s *Session) FulfillOrder(ctx context.Context, orderID, locationID int64, trackingNumber string) (*Fulfillment, error) {
	body := map[string]interface{}{
		"fulfillment": map[string]interface{}{
			"location_id":     locationID,
			"tracking_number": trackingNumber,
			"notify_customer": false,
		},
	}
	var env fulfillmentEnvelope
	path := fmt.Sprintf("/orders/%d/fulfillments.json", orderID)
	if err := s.sendJSON(ctx, "fulfill_order", http.MethodPost, path, body, &env); err != nil {
		return nil, err
	}
	return &env.Fulfillment, nil
}
