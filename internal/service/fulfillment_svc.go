package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"shopify_sync_v1/internal/model"
	"shopify_sync_v1/internal/repository"
	"shopify_sync_v1/pkg/shopify"
)

var ErrNothingToExport = errors.New("no orders to export")

// ==================== 导出格式 ====================

var fulfillmentHeader = []string{"Shipping Provider", "Origin Country Code", "Order Id", "Tracking Number", "Ship Note"}

// 渠道侧承运商名称与内部名称不一致的映射
var shippingProviderOverrides = map[string]string{
	"Landmark": "LandmarkGlobal",
}

const (
	defaultShippingProvider = "N/A"
	defaultOriginCountry    = "GB"
	fulfillmentFilePattern  = "wish_bulk_filfillment_%s.csv"
)

func shippingProvider(rule *model.ShippingRule) string {
	name := rule.CourierName()
	if name == "" {
		return defaultShippingProvider
	}
	if mapped, ok := shippingProviderOverrides[name]; ok {
		return mapped
	}
	return name
}

// BuildFulfillmentFile 生成批量履约 CSV，仅含逗号、引号或换行的值加引号
func BuildFulfillmentFile(rows []model.ImportedOrder) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(fulfillmentHeader); err != nil {
		return nil, err
	}
	for _, row := range rows {
		var rule *model.ShippingRule
		tracking := ""
		if row.CreatedOrder != nil {
			rule = row.CreatedOrder.ShippingRule
			tracking = row.CreatedOrder.TrackingNumber
		}
		record := []string{shippingProvider(rule), defaultOriginCountry, row.ExternalOrderID, tracking, ""}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ==================== 履约服务 ====================

type FulfillmentService struct {
	fulfillments repository.FulfillmentRepository
	orders       repository.OrderRepository
	storage      StorageProvider
	scope        shopify.Scope
	locationID   int64
	wishCode     string
	shopifyCode  string
	logger       *zap.Logger

	now func() time.Time
}

func NewFulfillmentService(
	fulfillments repository.FulfillmentRepository,
	orders repository.OrderRepository,
	storage StorageProvider,
	scope shopify.Scope,
	locationID int64,
	wishCode, shopifyCode string,
	logger *zap.Logger,
) *FulfillmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if wishCode == "" {
		wishCode = model.ChannelCodeWish
	}
	if shopifyCode == "" {
		shopifyCode = model.ChannelCodeShopify
	}
	return &FulfillmentService{
		fulfillments: fulfillments,
		orders:       orders,
		storage:      storage,
		scope:        scope,
		locationID:   locationID,
		wishCode:     wishCode,
		shopifyCode:  shopifyCode,
		logger:       logger.Named("FulfillmentService"),
		now:          time.Now,
	}
}

// ExportMarketplace 导出已发货未履约的渠道订单，一个订单只会出现在一个导出文件里
func (s *FulfillmentService) ExportMarketplace(ctx context.Context) (*model.FulfillmentExport, error) {
	channel, err := s.orders.EnsureChannel(ctx, s.wishCode, "Wish")
	if err != nil {
		return nil, fmt.Errorf("读取渠道失败: %w", err)
	}
	rows, err := s.fulfillments.EligibleForExport(ctx, channel.ID)
	if err != nil {
		return nil, fmt.Errorf("查询待导出订单失败: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNothingToExport
	}

	data, err := BuildFulfillmentFile(rows)
	if err != nil {
		return nil, fmt.Errorf("生成履约文件失败: %w", err)
	}
	filename := fmt.Sprintf(fulfillmentFilePattern, s.now().Format("2006-01-02"))
	url, err := s.storage.Upload(ctx, data, filename, "text/csv")
	if err != nil {
		return nil, fmt.Errorf("上传履约文件失败: %w", err)
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	export := &model.FulfillmentExport{Filename: filename, ArtifactURL: url}
	if err := s.fulfillments.CreateExport(ctx, export, ids); err != nil {
		if delErr := s.storage.Delete(context.WithoutCancel(ctx), url); delErr != nil {
			s.logger.Warn("清理履约文件失败", zap.String("url", url), zap.Error(delErr))
		}
		return nil, fmt.Errorf("保存履约导出失败: %w", err)
	}

	s.logger.Info("履约文件已导出",
		zap.Int64("export_id", export.ID),
		zap.String("filename", filename),
		zap.Int("orders", export.OrderCount))
	return export, nil
}

// StorefrontResult 店铺履约统计
type StorefrontResult struct {
	Fulfilled int `json:"fulfilled"`
	Failed    int `json:"failed"`
}

// FulfillStorefrontOrders 已发货的店铺订单回写远端履约，失败记录后继续
func (s *FulfillmentService) FulfillStorefrontOrders(ctx context.Context) (*StorefrontResult, error) {
	channel, err := s.orders.EnsureChannel(ctx, s.shopifyCode, "Shopify")
	if err != nil {
		return nil, fmt.Errorf("读取渠道失败: %w", err)
	}
	rows, err := s.fulfillments.EligibleForExport(ctx, channel.ID)
	if err != nil {
		return nil, fmt.Errorf("查询待履约订单失败: %w", err)
	}
	result := &StorefrontResult{}
	if len(rows) == 0 {
		return result, nil
	}

	err = s.scope.WithSession(ctx, func(ctx context.Context, api shopify.API) error {
		locationID := s.locationID
		if locationID == 0 {
			id, err := firstLocation(ctx, api)
			if err != nil {
				return err
			}
			locationID = id
		}

		for _, row := range rows {
			if err := ctx.Err(); err != nil {
				return err
			}
			if ferr := s.fulfillOne(ctx, api, locationID, row); ferr != nil {
				result.Failed++
				s.logger.Warn("店铺订单履约失败", zap.String("order_id", row.ExternalOrderID), zap.Error(ferr))
				if err := s.fulfillments.RecordError(ctx, row.ID, ferr.Error()); err != nil {
					return fmt.Errorf("记录履约错误失败: %w", err)
				}
				continue
			}
			if err := s.fulfillments.MarkFulfilled(ctx, row.ID); err != nil {
				return fmt.Errorf("标记履约失败: %w", err)
			}
			result.Fulfilled++
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	s.logger.Info("店铺履约完成", zap.Int("fulfilled", result.Fulfilled), zap.Int("failed", result.Failed))
	return result, nil
}

func (s *FulfillmentService) fulfillOne(ctx context.Context, api shopify.API, locationID int64, row model.ImportedOrder) error {
	orderID, err := strconv.ParseInt(row.ExternalOrderID, 10, 64)
	if err != nil {
		return fmt.Errorf("店铺订单号无效: %q", row.ExternalOrderID)
	}
	tracking := ""
	if row.CreatedOrder != nil {
		tracking = row.CreatedOrder.TrackingNumber
	}
	_, err = api.FulfillOrder(ctx, orderID, locationID, tracking)
	return err
}

func (s *FulfillmentService) ListExports(ctx context.Context, limit int) ([]model.FulfillmentExport, error) {
	return s.fulfillments.ListExports(ctx, limit)
}

func (s *FulfillmentService) GetExport(ctx context.Context, id int64) (*model.FulfillmentExport, error) {
	return s.fulfillments.GetExport(ctx, id)
}

// DownloadURL 履约文件的临时下载地址
func (s *FulfillmentService) DownloadURL(ctx context.Context, id int64, expires time.Duration) (string, error) {
	export, err := s.fulfillments.GetExport(ctx, id)
	if err != nil {
		return "", err
	}
	url, err := s.storage.GetSignedURL(ctx, export.ArtifactURL, expires)
	if err != nil {
		return "", fmt.Errorf("生成下载地址失败: %w", err)
	}
	return url, nil
}
