package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"shopify_sync_v1/internal/model"
	"shopify_sync_v1/internal/repository"
	"shopify_sync_v1/pkg/shopify"
)

const orderFileHeader = "Order Id,Transaction ID,SKU,Quantity,Price (each),Shipping (each),Name,Street Address 1,Street Address 2,City,Zipcode,Country,Phone Number\n"

// countingCreator 记录调用次数，委托给真实实现
type countingCreator struct {
	inner OrderCreator
	calls []string
}

func (c *countingCreator) Create(ctx context.Context, channel *model.Channel, draft *OrderDraft) (*model.CreatedOrder, error) {
	c.calls = append(c.calls, draft.ExternalID)
	return c.inner.Create(ctx, channel, draft)
}

type orderFixture struct {
	db      *gorm.DB
	orders  repository.OrderRepository
	creator *countingCreator
	shop    *fakeShop
	svc     *OrderImportService
}

func newOrderFixture(t *testing.T) *orderFixture {
	db := setupServiceDB(t)
	catalog := repository.NewCatalogRepository(db)
	ctx := context.Background()

	pr := &model.ProductRange{SKU: "MUG", Name: "Mug"}
	require.NoError(t, catalog.CreateRange(ctx, pr))
	require.NoError(t, catalog.CreateProduct(ctx, &model.BaseProduct{RangeID: pr.ID, SKU: "MUG-RED", StockLevel: 5}))
	require.NoError(t, catalog.CreateProduct(ctx, &model.BaseProduct{RangeID: pr.ID, SKU: "MUG-BLUE", StockLevel: 5}))

	orders := repository.NewOrderRepository(db)
	creator := &countingCreator{inner: NewLocalOrderCreator(orders, catalog)}
	shop := newFakeShop()
	return &orderFixture{
		db:      db,
		orders:  orders,
		creator: creator,
		shop:    shop,
		svc:     NewOrderImportService(orders, creator, shop, "", "", nil),
	}
}

func (f *orderFixture) importedRows(t *testing.T, importID int64) map[string]model.ImportedOrder {
	rows, err := f.orders.ImportedOrdersByImport(context.Background(), importID)
	require.NoError(t, err)
	out := make(map[string]model.ImportedOrder, len(rows))
	for _, r := range rows {
		out[r.ExternalOrderID] = r
	}
	return out
}

func TestParseOrderFile_GroupsRows(t *testing.T) {
	csv := orderFileHeader +
		"A1,T1,MUG-RED,2,4.50,1.00,Jo Bloggs,1 High St,,Leeds,LS1 1AA,United Kingdom (Great Britain),0123\n" +
		"A1,T1,MUG-BLUE,1,5.00,0.50,Jo Bloggs,1 High St,,Leeds,LS1 1AA,United Kingdom (Great Britain),0123\n" +
		"B2,T2,MUG-RED,1,4.50,1.00,Ann,2 Low Rd,Flat 3,York,YO1 1AA,France,999\n"

	drafts, err := ParseOrderFile(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, drafts, 2)

	a := drafts[0]
	assert.Equal(t, "A1", a.ExternalID)
	assert.Equal(t, "T1", a.TransactionID)
	assert.Equal(t, "United Kingdom", a.Country)
	require.Len(t, a.Lines, 2)
	price, shipping, total := a.Totals()
	assert.True(t, decimal.RequireFromString("14.00").Equal(price))
	assert.True(t, decimal.RequireFromString("2.50").Equal(shipping))
	assert.True(t, decimal.RequireFromString("16.50").Equal(total))

	assert.Equal(t, "France", drafts[1].Country)
	assert.Equal(t, "Flat 3", drafts[1].Address2)
}

func TestParseOrderFile_StripsByteOrderMark(t *testing.T) {
	csv := "\ufeff" + orderFileHeader +
		"A1,T1,MUG-RED,1,4.50,1.00,Jo Bloggs,1 High St,,Leeds,LS1 1AA,United Kingdom,0123\n"

	drafts, err := ParseOrderFile(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "A1", drafts[0].ExternalID)
}

func TestParseOrderFile_MissingColumnRejectsFile(t *testing.T) {
	csv := "Order Id,Transaction ID,SKU,Quantity\nA1,T1,MUG-RED,1\n"
	_, err := ParseOrderFile(strings.NewReader(csv))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidOrderFile))
	assert.Contains(t, err.Error(), "Price (each)")

	_, err = ParseOrderFile(strings.NewReader(""))
	assert.True(t, errors.Is(err, ErrInvalidOrderFile))
}

// 已存在内部订单的渠道订单只记录 Already Created，不再创建
func TestImportFile_AlreadyCreatedSkipsCreator(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	channel, err := f.orders.EnsureChannel(ctx, model.ChannelCodeWish, "Wish")
	require.NoError(t, err)
	require.NoError(t, f.orders.CreateOrder(ctx, &model.CreatedOrder{ChannelID: channel.ID, ExternalID: "X1", OrderNumber: "WISH-000001"}))

	csv := orderFileHeader +
		"X1,T9,MUG-RED,1,4.50,1.00,Jo,1 High St,,Leeds,LS1,United Kingdom,1\n"
	result, err := f.svc.ImportFile(ctx, "orders.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, result.AlreadyCreated)
	assert.Zero(t, result.Created)
	assert.Empty(t, f.creator.calls)

	rows := f.importedRows(t, result.ImportID)
	require.Contains(t, rows, "X1")
	assert.Equal(t, model.ErrorAlreadyCreated, rows["X1"].Error)
	assert.Nil(t, rows["X1"].CreatedOrderID)
}

func TestImportFile_CreatesOnceAcrossReimports(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	csv := orderFileHeader +
		"A1,T1,MUG-RED,2,4.50,1.00,Jo,1 High St,,Leeds,LS1,United Kingdom (Great Britain),1\n" +
		"B2,T2,MUG-BLUE,1,5.00,0,Ann,2 Low Rd,,York,YO1,United Kingdom,2\n"

	first, err := f.svc.ImportFile(ctx, "day1.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{ImportID: first.ImportID, Created: 2}, first)

	rows := f.importedRows(t, first.ImportID)
	require.NotNil(t, rows["A1"].CreatedOrderID)
	order, err := f.orders.GetOrder(ctx, *rows["A1"].CreatedOrderID)
	require.NoError(t, err)
	assert.Equal(t, "WISH-000001", order.OrderNumber)
	assert.Equal(t, "United Kingdom", order.Country)
	assert.True(t, decimal.RequireFromString("11.00").Equal(order.TotalToPay))
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)

	second, err := f.svc.ImportFile(ctx, "day1.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 2, second.AlreadyCreated)
	assert.Zero(t, second.Created)
	assert.Len(t, f.creator.calls, 2)

	var count int64
	f.db.Model(&model.CreatedOrder{}).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestImportFile_RowErrorsDoNotStopBatch(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	csv := orderFileHeader +
		"A1,T1,NOPE,1,4.50,1.00,Jo,1 High St,,Leeds,LS1,UK,1\n" +
		"B2,T2,MUG-RED,x,4.50,1.00,Ann,2 Low Rd,,York,YO1,UK,2\n" +
		"C3,T3,MUG-BLUE,1,5.00,1.00,Sam,3 Mid Rd,,Hull,HU1,UK,3\n"

	result, err := f.svc.ImportFile(ctx, "mixed.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 2, result.Failed)

	rows := f.importedRows(t, result.ImportID)
	assert.Contains(t, rows["A1"].Error, "NOPE")
	assert.Contains(t, rows["B2"].Error, "数量无效")
	assert.Empty(t, rows["C3"].Error)
	// 解析失败的订单不会进入创建流程
	assert.Equal(t, []string{"A1", "C3"}, f.creator.calls)
}

func TestImportFeed_ImportsStorefrontOrders(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	f.shop.orders = []shopify.Order{{
		ID:              7001,
		Name:            "#1001",
		FinancialStatus: "paid",
		Confirmed:       true,
		ShippingAddress: &shopify.Address{Name: "Jo", Address1: "1 High St", City: "Leeds", Zip: "LS1", Country: "United Kingdom"},
		LineItems:       []shopify.LineItem{{ID: 1, SKU: "MUG-RED", Quantity: 3, Price: shopify.NewMoney(decimal.RequireFromString("4.00"))}},
		ShippingLines:   []shopify.ShippingLine{{Title: "Standard", Price: shopify.NewMoney(decimal.RequireFromString("2.99"))}},
	}}

	result, err := f.svc.ImportFeed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)

	rows := f.importedRows(t, result.ImportID)
	row := rows["7001"]
	assert.Equal(t, "#1001", row.TransactionID)
	require.NotNil(t, row.CreatedOrderID)
	order, err := f.orders.GetOrder(ctx, *row.CreatedOrderID)
	require.NoError(t, err)
	assert.Equal(t, "SHOPIFY-000001", order.OrderNumber)
	assert.True(t, decimal.RequireFromString("2.99").Equal(order.ShippingPrice))
	assert.True(t, decimal.RequireFromString("14.99").Equal(order.TotalToPay))

	again, err := f.svc.ImportFeed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, again.AlreadyCreated)
}

func TestImportFeed_RemoteErrorCreatesNothing(t *testing.T) {
	f := newOrderFixture(t)
	f.shop.failOn["ListOrders"] = transient("list_orders")

	_, err := f.svc.ImportFeed(context.Background())
	assert.ErrorIs(t, err, shopify.ErrTransient)

	var count int64
	f.db.Model(&model.OrderImport{}).Count(&count)
	assert.Zero(t, count)
}
