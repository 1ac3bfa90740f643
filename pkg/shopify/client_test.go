package shopify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==================== 测试辅助 ====================

type recordedCall struct {
	Method string
	Path   string
	Query  string
	Body   string
	Token  string
	At     time.Time
}

type fakeShop struct {
	mu      sync.Mutex
	calls   []recordedCall
	handler http.HandlerFunc
}

func (f *fakeShop) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Body:   string(body),
		Token:  r.Header.Get(accessTokenHeader),
		At:     time.Now(),
	})
	f.mu.Unlock()
	f.handler(w, r)
}

func (f *fakeShop) Calls() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

func newTestClient(t *testing.T, pause time.Duration, handler http.HandlerFunc) (*Client, *fakeShop) {
	shop := &fakeShop{handler: handler}
	srv := httptest.NewServer(shop)
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		AccessToken:    "tok-123",
		BaseURL:        srv.URL,
		RequestPause:   pause,
		RequestTimeout: 2 * time.Second,
	}, nil)
	return client, shop
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// ==================== 会话作用域 ====================

func TestWithSession_NestedReusesOuter(t *testing.T) {
	client, _ := newTestClient(t, 10*time.Millisecond, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{}`)
	})

	var outer, inner API
	err := client.WithSession(context.Background(), func(ctx context.Context, api API) error {
		outer = api
		return client.WithSession(ctx, func(ctx context.Context, api API) error {
			inner = api
			return nil
		})
	})
	require.NoError(t, err)
	assert.Same(t, outer, inner)
}

func TestWithSession_ClosedSessionRejectsCalls(t *testing.T) {
	client, shop := newTestClient(t, 10*time.Millisecond, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"locations":[]}`)
	})

	var leaked API
	err := client.WithSession(context.Background(), func(ctx context.Context, api API) error {
		leaked = api
		return nil
	})
	require.NoError(t, err)

	_, err = leaked.InventoryLocations(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPermanent))
	assert.Empty(t, shop.Calls())
}

func TestSession_SendsAccessToken(t *testing.T) {
	client, shop := newTestClient(t, 10*time.Millisecond, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"locations":[{"id":7,"name":"Main","active":true}]}`)
	})

	var locations []Location
	err := client.WithSession(context.Background(), func(ctx context.Context, api API) error {
		var err error
		locations, err = api.InventoryLocations(ctx)
		return err
	})
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, int64(7), locations[0].ID)

	calls := shop.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "tok-123", calls[0].Token)
	assert.Equal(t, "/locations.json", calls[0].Path)
}

// ==================== 错误分类 ====================

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", 404, ErrNotFound},
		{"throttled", 429, ErrTransient},
		{"server error", 503, ErrTransient},
		{"validation", 422, ErrPermanent},
		{"auth", 401, ErrPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, time.Millisecond, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, `{"errors":"boom"}`)
			})

			err := client.WithSession(context.Background(), func(ctx context.Context, api API) error {
				_, err := api.GetProduct(ctx, 42)
				return err
			})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)

			var re *RemoteError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, tt.status, re.Status)
			assert.Equal(t, "get_product", re.Op)
		})
	}
}

func TestErrorClassification_Timeout(t *testing.T) {
	shop := &fakeShop{handler: func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		writeJSON(w, 200, `{}`)
	}}
	srv := httptest.NewServer(shop)
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, RequestTimeout: 50 * time.Millisecond, RequestPause: time.Millisecond}, nil)
	err := client.WithSession(context.Background(), func(ctx context.Context, api API) error {
		_, err := api.GetProduct(ctx, 1)
		return err
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransient))
	assert.Equal(t, KindTransient, KindOf(err))
}

func TestErrorClassification_BadJSONIsPermanent(t *testing.T) {
	client, _ := newTestClient(t, time.Millisecond, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"product":`)
	})
	err := client.WithSession(context.Background(), func(ctx context.Context, api API) error {
		_, err := api.GetProduct(ctx, 1)
		return err
	})
	assert.True(t, errors.Is(err, ErrPermanent))
}

// ==================== 节流 ====================

func TestPacing_MutatingCallsSeparated(t *testing.T) {
	pause := 80 * time.Millisecond
	client, shop := newTestClient(t, pause, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"product":{"id":1}}`)
	})

	err := client.WithSession(context.Background(), func(ctx context.Context, api API) error {
		for i := 0; i < 3; i++ {
			if _, err := api.UpdateProduct(ctx, 1, &ProductInput{Status: StatusDraft}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	calls := shop.Calls()
	require.Len(t, calls, 3)
	for i := 1; i < len(calls); i++ {
		gap := calls[i].At.Sub(calls[i-1].At)
		assert.GreaterOrEqual(t, gap, pause, "call %d gap %v", i, gap)
	}
}

func TestPacing_ReadCountsTowardNextWrite(t *testing.T) {
	pause := 80 * time.Millisecond
	client, shop := newTestClient(t, pause, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			writeJSON(w, 200, `{"product":{"id":1}}`)
			return
		}
		writeJSON(w, 200, `{"product":{"id":1}}`)
	})

	err := client.WithSession(context.Background(), func(ctx context.Context, api API) error {
		if _, err := api.GetProduct(ctx, 1); err != nil {
			return err
		}
		if _, err := api.GetProduct(ctx, 1); err != nil {
			return err
		}
		_, err := api.UpdateProduct(ctx, 1, &ProductInput{Title: "x"})
		return err
	})
	require.NoError(t, err)

	calls := shop.Calls()
	require.Len(t, calls, 3)
	// 两次读调用之间不等待
	assert.Less(t, calls[1].At.Sub(calls[0].At), pause)
	// 写调用距上一次读调用至少 pause
	assert.GreaterOrEqual(t, calls[2].At.Sub(calls[1].At), pause)
}

func TestPacing_SharedAcrossSessions(t *testing.T) {
	pause := 60 * time.Millisecond
	client, shop := newTestClient(t, pause, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{}`)
	})

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_ = client.WithSession(context.Background(), func(ctx context.Context, api API) error {
				return api.AddProductToCollection(ctx, id, 9)
			})
		}(int64(i + 1))
	}
	wg.Wait()

	calls := shop.Calls()
	require.Len(t, calls, 3)
	for i := 1; i < len(calls); i++ {
		assert.GreaterOrEqual(t, calls[i].At.Sub(calls[i-1].At), pause-5*time.Millisecond)
	}
}

// ==================== 分页与集合 ====================

func TestListProducts_FollowsLinkHeader(t *testing.T) {
	var srvURL string
	client, shop := newTestClient(t, time.Millisecond, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page_info") == "" {
			w.Header().Set("Link", fmt.Sprintf(`<%s/products.json?limit=250&page_info=p2>; rel="next"`, srvURL))
			writeJSON(w, 200, `{"products":[{"id":1,"status":"active"}]}`)
			return
		}
		writeJSON(w, 200, `{"products":[{"id":2,"status":"draft"}]}`)
	})
	srvURL = strings.TrimSuffix(client.http.BaseURL, "/")

	var products []Product
	err := client.WithSession(context.Background(), func(ctx context.Context, api API) error {
		var err error
		products, err = api.ListProducts(ctx)
		return err
	})
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, int64(1), products[0].ID)
	assert.Equal(t, int64(2), products[1].ID)
	assert.Len(t, shop.Calls(), 2)
}

func TestClearCollections_DeletesEachCollect(t *testing.T) {
	client, shop := newTestClient(t, time.Millisecond, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			writeJSON(w, 200, `{"collects":[{"id":11,"product_id":42,"collection_id":1},{"id":12,"product_id":42,"collection_id":2}]}`)
			return
		}
		w.WriteHeader(200)
	})

	err := client.WithSession(context.Background(), func(ctx context.Context, api API) error {
		return api.ClearCollections(ctx, 42)
	})
	require.NoError(t, err)

	calls := shop.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "/collects.json", calls[0].Path)
	assert.Contains(t, calls[0].Query, "product_id=42")
	assert.Equal(t, http.MethodDelete, calls[1].Method)
	assert.Equal(t, "/collects/11.json", calls[1].Path)
	assert.Equal(t, "/collects/12.json", calls[2].Path)
}

func TestCreateProduct_OmitsEmptyOptions(t *testing.T) {
	client, shop := newTestClient(t, time.Millisecond, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 201, `{"product":{"id":99,"variants":[{"id":5,"sku":"A-1","inventory_item_id":6}]}}`)
	})

	var created *Product
	err := client.WithSession(context.Background(), func(ctx context.Context, api API) error {
		var err error
		created, err = api.CreateProduct(ctx, &ProductInput{
			Title:    "Mug",
			Variants: []VariantInput{{SKU: "A-1", Price: 9.5, Grams: 250}},
		})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(99), created.ID)

	calls := shop.Calls()
	require.Len(t, calls, 1)
	assert.NotContains(t, calls[0].Body, `"options"`)
	assert.NotContains(t, calls[0].Body, `"images"`)
	assert.Contains(t, calls[0].Body, `"price":9.50`)
}

func TestUpdateProduct_ClearImagesSendsEmptyList(t *testing.T) {
	client, shop := newTestClient(t, time.Millisecond, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"product":{"id":42}}`)
	})
	empty := []ImageInput{}
	err := client.WithSession(context.Background(), func(ctx context.Context, api API) error {
		_, err := api.UpdateProduct(ctx, 42, &ProductInput{Title: "Mug", Images: &empty})
		return err
	})
	require.NoError(t, err)
	assert.Contains(t, shop.Calls()[0].Body, `"images":[]`)
}

func TestUpdateProduct_EmptyBodySent(t *testing.T) {
	client, shop := newTestClient(t, time.Millisecond, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"product":{"id":42}}`)
	})
	empty := ""
	err := client.WithSession(context.Background(), func(ctx context.Context, api API) error {
		_, err := api.UpdateProduct(ctx, 42, &ProductInput{Title: "Mug", BodyHTML: &empty, Vendor: &empty})
		return err
	})
	require.NoError(t, err)
	body := shop.Calls()[0].Body
	assert.Contains(t, body, `"body_html":""`)
	assert.Contains(t, body, `"vendor":""`)
}

func TestListOrders_FiltersImportable(t *testing.T) {
	client, _ := newTestClient(t, time.Millisecond, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"orders":[
			{"id":1,"financial_status":"paid","confirmed":true},
			{"id":2,"financial_status":"paid","confirmed":false},
			{"id":3,"financial_status":"paid","confirmed":true,"cancelled_at":"2024-01-01T00:00:00Z"},
			{"id":4,"financial_status":"pending","confirmed":true}
		]}`)
	})
	var orders []Order
	err := client.WithSession(context.Background(), func(ctx context.Context, api API) error {
		var err error
		orders, err = api.ListOrders(ctx)
		return err
	})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(1), orders[0].ID)
}

func TestMoney_JSON(t *testing.T) {
	var v Variant
	require.NoError(t, decodeJSON([]byte(`{"price":"12.5"}`), &v))
	assert.Equal(t, Money(12.5), v.Price)

	out, err := Money(3).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "3.00", string(out))
}
