package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"shopify_sync_v1/internal/model"
	"shopify_sync_v1/internal/repository"
	"shopify_sync_v1/pkg/shopify"
)

// ==================== 导入文件格式 ====================

const (
	colOrderID       = "Order Id"
	colTransactionID = "Transaction ID"
	colSKU           = "SKU"
	colQuantity      = "Quantity"
	colPrice         = "Price (each)"
	colShipping      = "Shipping (each)"
	colName          = "Name"
	colAddress1      = "Street Address 1"
	colAddress2      = "Street Address 2"
	colCity          = "City"
	colZipcode       = "Zipcode"
	colCountry       = "Country"
	colPhone         = "Phone Number"
)

var requiredOrderColumns = []string{
	colOrderID, colTransactionID, colSKU, colQuantity, colPrice, colShipping,
	colName, colAddress1, colAddress2, colCity, colZipcode, colCountry, colPhone,
}

// countryNames 渠道国家名到内部国家名
var countryNames = map[string]string{
	"United Kingdom (Great Britain)": "United Kingdom",
}

var ErrInvalidOrderFile = errors.New("invalid order import file")

// ==================== 订单草稿 ====================

// OrderDraft 渠道订单的中间表示
type OrderDraft struct {
	ExternalID    string
	TransactionID string
	CustomerName  string
	Address1      string
	Address2      string
	City          string
	PostCode      string
	Country       string
	Phone         string
	Lines         []OrderLine
	// 订单级运费，店铺订单的运费不按行拆分
	OrderShipping decimal.Decimal

	// 行数据解析失败时记录在订单上，不影响其他订单
	parseErr error
}

type OrderLine struct {
	SKU       string
	Quantity  int
	ItemPrice decimal.Decimal
	Shipping  decimal.Decimal // 每件运费
}

// Totals 商品金额、运费、应付合计
func (d *OrderDraft) Totals() (price, shipping, total decimal.Decimal) {
	price, shipping = decimal.Zero, d.OrderShipping
	for _, l := range d.Lines {
		qty := decimal.NewFromInt(int64(l.Quantity))
		price = price.Add(l.ItemPrice.Mul(qty))
		shipping = shipping.Add(l.Shipping.Mul(qty))
	}
	return price, shipping, price.Add(shipping)
}

// ParseOrderFile 解析导入文件，同一 Order Id 的多行合并为一个订单
func ParseOrderFile(r io.Reader) ([]*OrderDraft, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: 文件为空", ErrInvalidOrderFile)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrderFile, err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	var missing []string
	for _, col := range requiredOrderColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: 缺少列 %s", ErrInvalidOrderFile, strings.Join(missing, ", "))
	}

	var drafts []*OrderDraft
	byID := make(map[string]*OrderDraft)
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: 第 %d 行: %v", ErrInvalidOrderFile, line, err)
		}
		get := func(col string) string {
			i := index[col]
			if i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		externalID := get(colOrderID)
		if externalID == "" {
			continue
		}
		d, ok := byID[externalID]
		if !ok {
			d = &OrderDraft{
				ExternalID:    externalID,
				TransactionID: get(colTransactionID),
				CustomerName:  get(colName),
				Address1:      get(colAddress1),
				Address2:      get(colAddress2),
				City:          get(colCity),
				PostCode:      get(colZipcode),
				Country:       mapCountry(get(colCountry)),
				Phone:         get(colPhone),
			}
			byID[externalID] = d
			drafts = append(drafts, d)
		}

		orderLine, err := parseOrderLine(get(colSKU), get(colQuantity), get(colPrice), get(colShipping))
		if err != nil {
			if d.parseErr == nil {
				d.parseErr = fmt.Errorf("第 %d 行: %w", line, err)
			}
			continue
		}
		d.Lines = append(d.Lines, orderLine)
	}
	return drafts, nil
}

func parseOrderLine(sku, qty, price, shipping string) (OrderLine, error) {
	if sku == "" {
		return OrderLine{}, fmt.Errorf("SKU 为空")
	}
	q, err := strconv.Atoi(qty)
	if err != nil || q <= 0 {
		return OrderLine{}, fmt.Errorf("数量无效: %q", qty)
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return OrderLine{}, fmt.Errorf("单价无效: %q", price)
	}
	s := decimal.Zero
	if shipping != "" {
		if s, err = decimal.NewFromString(shipping); err != nil {
			return OrderLine{}, fmt.Errorf("运费无效: %q", shipping)
		}
	}
	return OrderLine{SKU: sku, Quantity: q, ItemPrice: p, Shipping: s}, nil
}

func mapCountry(name string) string {
	if mapped, ok := countryNames[name]; ok {
		return mapped
	}
	return name
}

// draftFromShopify 店铺订单转草稿
func draftFromShopify(o *shopify.Order) *OrderDraft {
	d := &OrderDraft{
		ExternalID:    strconv.FormatInt(o.ID, 10),
		TransactionID: o.Name,
		OrderShipping: o.ShippingTotal(),
	}
	if a := o.ShippingAddress; a != nil {
		d.CustomerName = a.Name
		d.Address1 = a.Address1
		d.Address2 = a.Address2
		d.City = a.City
		d.PostCode = a.Zip
		d.Country = mapCountry(a.Country)
		d.Phone = a.Phone
	}
	for _, li := range o.LineItems {
		d.Lines = append(d.Lines, OrderLine{SKU: li.SKU, Quantity: li.Quantity, ItemPrice: li.Price.Decimal(), Shipping: decimal.Zero})
	}
	if len(d.Lines) == 0 {
		d.parseErr = fmt.Errorf("订单没有商品行")
	}
	return d
}

// ==================== 订单创建 ====================

// OrderCreator 把草稿变成内部订单
type OrderCreator interface {
	Create(ctx context.Context, channel *model.Channel, draft *OrderDraft) (*model.CreatedOrder, error)
}

// LocalOrderCreator 直接写入本地订单表
type LocalOrderCreator struct {
	orders  repository.OrderRepository
	catalog repository.CatalogRepository
}

func NewLocalOrderCreator(orders repository.OrderRepository, catalog repository.CatalogRepository) *LocalOrderCreator {
	return &LocalOrderCreator{orders: orders, catalog: catalog}
}

func (c *LocalOrderCreator) Create(ctx context.Context, channel *model.Channel, draft *OrderDraft) (*model.CreatedOrder, error) {
	skus := make([]string, 0, len(draft.Lines))
	for _, l := range draft.Lines {
		skus = append(skus, l.SKU)
	}
	products, err := c.catalog.ProductsBySKU(ctx, skus)
	if err != nil {
		return nil, fmt.Errorf("查询 SKU 失败: %w", err)
	}

	price, shipping, total := draft.Totals()
	order := &model.CreatedOrder{
		ChannelID:     channel.ID,
		ExternalID:    draft.ExternalID,
		CustomerName:  draft.CustomerName,
		Address1:      draft.Address1,
		Address2:      draft.Address2,
		City:          draft.City,
		PostCode:      draft.PostCode,
		Country:       draft.Country,
		Phone:         draft.Phone,
		Price:         price,
		ShippingPrice: shipping,
		TotalToPay:    total,
	}
	for _, l := range draft.Lines {
		p, ok := products[l.SKU]
		if !ok {
			return nil, fmt.Errorf("未知 SKU: %s", l.SKU)
		}
		productID := p.ID
		order.Items = append(order.Items, model.CreatedOrderProduct{
			ProductID: &productID,
			SKU:       l.SKU,
			Quantity:  l.Quantity,
			ItemPrice: l.ItemPrice,
		})
	}

	err = c.orders.Transaction(ctx, func(tx repository.OrderRepository) error {
		n, err := tx.CountCreatedOrders(ctx, channel.ID)
		if err != nil {
			return err
		}
		order.OrderNumber = fmt.Sprintf("%s-%06d", strings.ToUpper(channel.ChannelCode), n+1)
		return tx.CreateOrder(ctx, order)
	})
	if err != nil {
		return nil, fmt.Errorf("保存订单失败: %w", err)
	}
	return order, nil
}

// ==================== 导入服务 ====================

// ImportResult 一次导入的统计
type ImportResult struct {
	ImportID       int64 `json:"import_id"`
	Created        int   `json:"created"`
	AlreadyCreated int   `json:"already_created"`
	Failed         int   `json:"failed"`
}

type OrderImportService struct {
	orders      repository.OrderRepository
	creator     OrderCreator
	scope       shopify.Scope
	wishCode    string
	shopifyCode string
	logger      *zap.Logger
}

func NewOrderImportService(orders repository.OrderRepository, creator OrderCreator, scope shopify.Scope, wishCode, shopifyCode string, logger *zap.Logger) *OrderImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if wishCode == "" {
		wishCode = model.ChannelCodeWish
	}
	if shopifyCode == "" {
		shopifyCode = model.ChannelCodeShopify
	}
	return &OrderImportService{
		orders:      orders,
		creator:     creator,
		scope:       scope,
		wishCode:    wishCode,
		shopifyCode: shopifyCode,
		logger:      logger.Named("OrderImportService"),
	}
}

// ImportFile 导入渠道订单文件，缺列时整个文件拒绝
func (s *OrderImportService) ImportFile(ctx context.Context, filename string, r io.Reader) (*ImportResult, error) {
	drafts, err := ParseOrderFile(r)
	if err != nil {
		return nil, err
	}
	channel, err := s.orders.EnsureChannel(ctx, s.wishCode, "Wish")
	if err != nil {
		return nil, fmt.Errorf("读取渠道失败: %w", err)
	}
	imp := &model.OrderImport{ChannelID: channel.ID, Source: model.ImportSourceFile, Filename: filename}
	if err := s.orders.CreateImport(ctx, imp); err != nil {
		return nil, fmt.Errorf("创建导入记录失败: %w", err)
	}
	return s.importDrafts(ctx, channel, imp, drafts)
}

// ImportFeed 拉取店铺订单
func (s *OrderImportService) ImportFeed(ctx context.Context) (*ImportResult, error) {
	var drafts []*OrderDraft
	err := s.scope.WithSession(ctx, func(ctx context.Context, api shopify.API) error {
		orders, err := api.ListOrders(ctx)
		if err != nil {
			return fmt.Errorf("拉取店铺订单失败: %w", err)
		}
		for i := range orders {
			if orders[i].Importable() {
				drafts = append(drafts, draftFromShopify(&orders[i]))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	channel, err := s.orders.EnsureChannel(ctx, s.shopifyCode, "Shopify")
	if err != nil {
		return nil, fmt.Errorf("读取渠道失败: %w", err)
	}
	imp := &model.OrderImport{ChannelID: channel.ID, Source: model.ImportSourceFeed}
	if err := s.orders.CreateImport(ctx, imp); err != nil {
		return nil, fmt.Errorf("创建导入记录失败: %w", err)
	}
	return s.importDrafts(ctx, channel, imp, drafts)
}

// importDrafts 逐个订单处理，单个失败记录错误后继续
func (s *OrderImportService) importDrafts(ctx context.Context, channel *model.Channel, imp *model.OrderImport, drafts []*OrderDraft) (*ImportResult, error) {
	result := &ImportResult{ImportID: imp.ID}
	for _, d := range drafts {
		row := &model.ImportedOrder{
			ImportID:        imp.ID,
			ChannelID:       channel.ID,
			ExternalOrderID: d.ExternalID,
			TransactionID:   d.TransactionID,
		}

		existing, err := s.orders.FindCreatedOrder(ctx, channel.ID, d.ExternalID)
		switch {
		case err != nil:
			row.Error = err.Error()
			result.Failed++
		case existing != nil:
			row.Error = model.ErrorAlreadyCreated
			result.AlreadyCreated++
		case d.parseErr != nil:
			row.Error = d.parseErr.Error()
			result.Failed++
		default:
			order, err := s.creator.Create(ctx, channel, d)
			if err != nil {
				row.Error = err.Error()
				result.Failed++
			} else {
				row.CreatedOrderID = &order.ID
				result.Created++
			}
		}

		if err := s.orders.CreateImportedOrder(ctx, row); err != nil {
			return result, fmt.Errorf("保存导入订单 %s 失败: %w", d.ExternalID, err)
		}
		if row.Error != "" && row.Error != model.ErrorAlreadyCreated {
			s.logger.Warn("订单导入失败", zap.String("order_id", d.ExternalID), zap.String("error", row.Error))
		}
	}

	s.logger.Info("订单导入完成",
		zap.String("channel", channel.ChannelCode),
		zap.Int("created", result.Created),
		zap.Int("already_created", result.AlreadyCreated),
		zap.Int("failed", result.Failed))
	return result, nil
}
