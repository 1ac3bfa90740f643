package shopify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

// ==================== 集合操作 ====================

// ListCollections 拉取全部手动集合
func (s *Session) ListCollections(ctx context.Context) ([]Collection, error) {
	var collections []Collection
	err := s.getPages(ctx, "list_collections", "/custom_collections.json", map[string]string{"limit": "250"}, func(body []byte) error {
		var page collectionsEnvelope
		if err := decodeJSON(body, &page); err != nil {
			return err
		}
		collections = append(collections, page.CustomCollections...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return collections, nil
}

// AddProductToCollection 把商品加入集合
func (s *Session) AddProductToCollection(ctx context.Context, productID, collectionID int64) error {
	body := map[string]interface{}{
		"collect": Collect{ProductID: productID, CollectionID: collectionID},
	}
	var env collectEnvelope
	return s.sendJSON(ctx, "add_product_to_collection", http.MethodPost, "/collects.json", body, &env)
}

// RemoveProductFromCollection 把商品移出指定集合
func (s *Session) RemoveProductFromCollection(ctx context.Context, productID, collectionID int64) error {
	collects, err := s.listCollects(ctx, "remove_product_from_collection", map[string]string{
		"product_id":    strconv.FormatInt(productID, 10),
		"collection_id": strconv.FormatInt(collectionID, 10),
	})
	if err != nil {
		return err
	}
	for _, c := range collects {
		if err := s.deleteCollect(ctx, "remove_product_from_collection", c.ID); err != nil {
			return err
		}
	}
	return nil
}

// ClearCollections 查出商品当前所有集合关系并逐个删除
func (s *Session) ClearCollections(ctx context.Context, productID int64) error {
	collects, err := s.listCollects(ctx, "clear_collections", map[string]string{
		"product_id": strconv.FormatInt(productID, 10),
	})
	if err != nil {
		return err
	}
	for _, c := range collects {
		if err := s.deleteCollect(ctx, "clear_collections", c.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) listCollects(ctx context.Context, op string, query map[string]string) ([]Collect, error) {
	var collects []Collect
	q := map[string]string{"limit": "250"}
	for k, v := range query {
		q[k] = v
	}
	err := s.getPages(ctx, op, "/collects.json", q, func(body []byte) error {
		var page collectsEnvelope
		if err := decodeJSON(body, &page); err != nil {
			return err
		}
		collects = append(collects, page.Collects...)
		return nil
	})
	return collects, err
}

func (s *Session) deleteCollect(ctx context.Context, op string, collectID int64) error {
	return s.sendJSON(ctx, op, http.MethodDelete, fmt.Sprintf("/collects/%d.json", collectID), nil, nil)
}
