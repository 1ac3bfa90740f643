package shopify

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ==================== 金额 ====================

// Money 两位小数金额，远端返回字符串，写出时为数字
type Money float64

// NewMoney 由 decimal 四舍五入到两位小数
func NewMoney(d decimal.Decimal) Money {
	return Money(d.Round(2).InexactFloat64())
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.NewFromFloat(float64(m)).Round(2)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(m), 'f', 2, 64)), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*m = 0
		return nil
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return err
	}
	*m = NewMoney(d)
	return nil
}

// ==================== 商品 ====================

// 商品状态
const (
	StatusActive   = "active"
	StatusDraft    = "draft"
	StatusArchived = "archived"
)

// Product 远端商品
type Product struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	BodyHTML    string          `json:"body_html"`
	Vendor      string          `json:"vendor"`
	Tags        string          `json:"tags"`
	Status      string          `json:"status"`
	PublishedAt *time.Time      `json:"published_at"`
	UpdatedAt   *time.Time      `json:"updated_at"`
	Options     []ProductOption `json:"options"`
	Variants    []Variant       `json:"variants"`
	Images      []Image         `json:"images"`
}

// TotalInventory 所有变体库存之和
func (p *Product) TotalInventory() int {
	total := 0
	for _, v := range p.Variants {
		total += v.InventoryQuantity
	}
	return total
}

type ProductOption struct {
	Name     string   `json:"name"`
	Position int      `json:"position,omitempty"`
	Values   []string `json:"values,omitempty"`
}

// Variant 远端变体
type Variant struct {
	ID                  int64   `json:"id"`
	ProductID           int64   `json:"product_id"`
	SKU                 string  `json:"sku"`
	Title               string  `json:"title"`
	Option1             *string `json:"option1"`
	Option2             *string `json:"option2"`
	Option3             *string `json:"option3"`
	Barcode             string  `json:"barcode"`
	Grams               int     `json:"grams"`
	Price               Money   `json:"price"`
	WeightUnit          string  `json:"weight_unit"`
	InventoryManagement string  `json:"inventory_management"`
	InventoryItemID     int64   `json:"inventory_item_id"`
	InventoryQuantity   int     `json:"inventory_quantity"`
}

type Image struct {
	ID         int64   `json:"id"`
	ProductID  int64   `json:"product_id"`
	Position   int     `json:"position"`
	Src        string  `json:"src"`
	VariantIDs []int64 `json:"variant_ids"`
}

// ==================== 写入载荷 ====================

// ProductInput 创建/更新商品载荷，零值字段不发送，指针字段非 nil 时即使为空也发送
type ProductInput struct {
	Title       string          `json:"title,omitempty"`
	BodyHTML    *string         `json:"body_html,omitempty"`
	Vendor      *string         `json:"vendor,omitempty"`
	Tags        *string         `json:"tags,omitempty"`
	Status      string          `json:"status,omitempty"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
	Options     []ProductOption `json:"options,omitempty"`
	Variants    []VariantInput  `json:"variants,omitempty"`
	// 非 nil 的空切片表示清空图片
	Images *[]ImageInput `json:"images,omitempty"`
}

// VariantInput 变体载荷
type VariantInput struct {
	ID                  int64   `json:"id,omitempty"`
	SKU                 string  `json:"sku"`
	Option1             *string `json:"option1,omitempty"`
	Option2             *string `json:"option2,omitempty"`
	Option3             *string `json:"option3,omitempty"`
	Barcode             string  `json:"barcode,omitempty"`
	Grams               int     `json:"grams"`
	Price               Money   `json:"price"`
	WeightUnit          string  `json:"weight_unit,omitempty"`
	InventoryManagement string  `json:"inventory_management,omitempty"`
}

// SetOptionValues 按顺序写入 option1..option3
func (v *VariantInput) SetOptionValues(values []string) {
	slots := []**string{&v.Option1, &v.Option2, &v.Option3}
	for i := range slots {
		*slots[i] = nil
		if i < len(values) {
			val := values[i]
			*slots[i] = &val
		}
	}
}

// OptionValues 读取已设置的选项值
func (v *VariantInput) OptionValues() []string {
	var out []string
	for _, o := range []*string{v.Option1, v.Option2, v.Option3} {
		if o == nil {
			break
		}
		out = append(out, *o)
	}
	return out
}

type ImageInput struct {
	Src        string  `json:"src"`
	VariantIDs []int64 `json:"variant_ids,omitempty"`
}

// ==================== 集合 / 库存 / 位置 ====================

// Collection 远端手动集合
type Collection struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Handle string `json:"handle"`
}

type Collect struct {
	ID           int64 `json:"id"`
	ProductID    int64 `json:"product_id"`
	CollectionID int64 `json:"collection_id"`
}

type Location struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type InventoryLevel struct {
	InventoryItemID int64 `json:"inventory_item_id"`
	LocationID      int64 `json:"location_id"`
	Available       int   `json:"available"`
}

// ==================== 订单 ====================

// Order 远端订单
type Order struct {
	ID              int64          `json:"id"`
	Name            string         `json:"name"`
	Email           string         `json:"email"`
	FinancialStatus string         `json:"financial_status"`
	Confirmed       bool           `json:"confirmed"`
	CancelledAt     *time.Time     `json:"cancelled_at"`
	CreatedAt       *time.Time     `json:"created_at"`
	TotalPrice      Money          `json:"total_price"`
	ShippingAddress *Address       `json:"shipping_address"`
	LineItems       []LineItem     `json:"line_items"`
	ShippingLines   []ShippingLine `json:"shipping_lines"`
}

// Importable 已付款、已确认且未取消
func (o *Order) Importable() bool {
	return o.FinancialStatus == "paid" && o.Confirmed && o.CancelledAt == nil
}

// ShippingTotal 运费合计
func (o *Order) ShippingTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.ShippingLines {
		total = total.Add(l.Price.Decimal())
	}
	return total
}

type Address struct {
	Name     string `json:"name"`
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
	City     string `json:"city"`
	Zip      string `json:"zip"`
	Country  string `json:"country"`
	Phone    string `json:"phone"`
}

type LineItem struct {
	ID       int64  `json:"id"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
	Price    Money  `json:"price"`
}

type ShippingLine struct {
	Title string `json:"title"`
	Price Money  `json:"price"`
}

type Fulfillment struct {
	ID             int64  `json:"id"`
	OrderID        int64  `json:"order_id"`
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number"`
}

// ==================== 响应包装 ====================

type productEnvelope struct {
	Product Product `json:"product"`
}

type productsEnvelope struct {
	Products []Product `json:"products"`
}

type variantEnvelope struct {
	Variant Variant `json:"variant"`
}

type imageEnvelope struct {
	Image Image `json:"image"`
}

type collectionsEnvelope struct {
	CustomCollections []Collection `json:"custom_collections"`
}

type collectsEnvelope struct {
	Collects []Collect `json:"collects"`
}

type collectEnvelope struct {
	Collect Collect `json:"collect"`
}

type locationsEnvelope struct {
	Locations []Location `json:"locations"`
}

type inventoryLevelEnvelope struct {
	InventoryLevel InventoryLevel `json:"inventory_level"`
}

type ordersEnvelope struct {
	Orders []Order `json:"orders"`
}

type fulfillmentEnvelope struct {
	Fulfillment Fulfillment `json:"fulfillment"`
}

func decodeJSON(body []byte, v interface{}) error {
	return json.Unmarshal(body, v)
}
