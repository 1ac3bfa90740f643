package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"shopify_sync_v1/internal/model"
	"shopify_sync_v1/internal/repository"
	"shopify_sync_v1/pkg/queue"
	"shopify_sync_v1/pkg/shopify"
)

// errRemoteGone 更新时远端商品已不存在
var errRemoteGone = errors.New("remote product no longer exists")

// ListingService 刊登创建/更新编排
type ListingService struct {
	uow    *repository.CatalogUnitOfWork
	scope  shopify.Scope
	queue  queue.Queue
	logger *zap.Logger
}

func NewListingService(uow *repository.CatalogUnitOfWork, scope shopify.Scope, q queue.Queue, logger *zap.Logger) *ListingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListingService{
		uow:    uow,
		scope:  scope,
		queue:  q,
		logger: logger.Named("ListingService"),
	}
}

// ==================== 入口 ====================

// Upload 创建更新记录并投递任务，未创建过的刊登走创建流程
func (s *ListingService) Upload(ctx context.Context, listingID int64) (*model.ShopifyUpdate, error) {
	listing, err := s.uow.Listings.GetListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("读取刊登失败: %w", err)
	}

	op := model.OpUpdateProduct
	if listing.ProductID == nil {
		op = model.OpCreateProduct
	}
	update, err := s.uow.Listings.StartUpdate(ctx, listingID, op)
	if err != nil {
		return nil, err
	}

	job := queue.Job{ListingID: listingID, UpdateID: update.ID}
	if err := s.queue.Publish(ctx, job); err != nil {
		if merr := s.uow.Listings.MarkUpdateError(context.WithoutCancel(ctx), update, model.ReasonEnqueue); merr != nil {
			s.logger.Error("标记投递失败出错", zap.Int64("update_id", update.ID), zap.Error(merr))
		}
		return update, fmt.Errorf("投递任务失败: %w", err)
	}

	s.logger.Info("刊登任务已投递",
		zap.Int64("listing_id", listingID),
		zap.Int64("update_id", update.ID),
		zap.String("op", string(op)))
	return update, nil
}

// CreateListing 同步执行创建流程
func (s *ListingService) CreateListing(ctx context.Context, listingID int64) error {
	update, err := s.uow.Listings.StartUpdate(ctx, listingID, model.OpCreateProduct)
	if err != nil {
		return err
	}
	return s.finish(ctx, update, s.runCreate(ctx, update))
}

// UpdateListing 同步执行更新流程
func (s *ListingService) UpdateListing(ctx context.Context, listingID int64) error {
	update, err := s.uow.Listings.StartUpdate(ctx, listingID, model.OpUpdateProduct)
	if err != nil {
		return err
	}
	return s.finish(ctx, update, s.runUpdate(ctx, update))
}

// RunJob 队列任务入口，已结束的更新直接跳过
func (s *ListingService) RunJob(ctx context.Context, job queue.Job) error {
	update, err := s.uow.Listings.GetUpdate(ctx, job.UpdateID)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("任务对应的更新记录不存在，丢弃", zap.Int64("update_id", job.UpdateID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("读取更新记录失败: %w", err)
	}
	if update.ListingID != job.ListingID {
		return fmt.Errorf("%w: 任务刊登 %d 与更新记录刊登 %d 不一致",
			repository.ErrInvariantViolation, job.ListingID, update.ListingID)
	}
	if !update.Ongoing() {
		s.logger.Info("更新已结束，跳过重复投递", zap.Int64("update_id", update.ID))
		return nil
	}

	switch update.OperationType {
	case model.OpCreateProduct:
		return s.finish(ctx, update, s.runCreate(ctx, update))
	case model.OpUpdateProduct:
		return s.finish(ctx, update, s.runUpdate(ctx, update))
	default:
		return s.finish(ctx, update, fmt.Errorf("未知的更新类型: %s", update.OperationType))
	}
}

// ==================== 创建流程 ====================

func (s *ListingService) runCreate(ctx context.Context, update *model.ShopifyUpdate) error {
	bundle, err := s.uow.Listings.LoadBundle(ctx, update.ListingID)
	if err != nil {
		return fmt.Errorf("读取刊登数据失败: %w", err)
	}
	if bundle.Listing.ProductID != nil {
		return fmt.Errorf("%w: 刊登 %d 已关联远端商品 %d",
			repository.ErrInvariantViolation, bundle.Listing.ID, *bundle.Listing.ProductID)
	}
	payload, err := BuildListingPayload(bundle)
	if err != nil {
		return err
	}

	return s.scope.WithSession(ctx, func(ctx context.Context, api shopify.API) error {
		product, err := api.CreateProduct(ctx, payload.Product)
		if err != nil {
			return fmt.Errorf("创建远端商品失败: %w", err)
		}

		ids := matchRemoteVariants(bundle, product.Variants)
		if err := s.uow.Listings.RecordCreatedProduct(ctx, bundle.Listing.ID, product.ID, ids); err != nil {
			return fmt.Errorf("写回远端 ID 失败: %w", err)
		}
		remote := remoteIDIndex(ids)

		// 单变体创建时平台会忽略变体明细，需要单独补写
		if len(bundle.Variations) == 1 {
			vb := &bundle.Variations[0]
			if rid, ok := remote[vb.Variation.ID]; ok {
				details := VariantDetails(vb)
				if _, err := api.UpdateVariant(ctx, *rid.VariantID, &details); err != nil {
					return fmt.Errorf("补写变体明细失败: %w", err)
				}
			}
		}

		for _, c := range payload.Customs {
			rid, ok := remote[c.VariationID]
			if !ok {
				continue
			}
			if err := api.SetCustoms(ctx, *rid.InventoryItemID, c.CountryOfOrigin, c.HSCode); err != nil {
				return fmt.Errorf("设置海关信息失败 (sku=%s): %w", c.SKU, err)
			}
		}

		if err := s.applyImages(ctx, api, product.ID, payload, remote); err != nil {
			return err
		}
		return s.applyCollections(ctx, api, product.ID, bundle.Collections)
	})
}

// ==================== 更新流程 ====================

func (s *ListingService) runUpdate(ctx context.Context, update *model.ShopifyUpdate) error {
	bundle, err := s.uow.Listings.LoadBundle(ctx, update.ListingID)
	if err != nil {
		return fmt.Errorf("读取刊登数据失败: %w", err)
	}
	if bundle.Listing.ProductID == nil {
		return fmt.Errorf("%w: 刊登 %d 尚未创建远端商品", repository.ErrInvariantViolation, bundle.Listing.ID)
	}
	productID := *bundle.Listing.ProductID
	payload, err := BuildListingPayload(bundle)
	if err != nil {
		return err
	}

	return s.scope.WithSession(ctx, func(ctx context.Context, api shopify.API) error {
		current, err := api.GetProduct(ctx, productID)
		if errors.Is(err, shopify.ErrNotFound) {
			return fmt.Errorf("%w: %d: %w", errRemoteGone, productID, err)
		}
		if err != nil {
			return fmt.Errorf("读取远端商品失败: %w", err)
		}

		input := updateInput(payload, current)
		updated, err := api.UpdateProduct(ctx, productID, input)
		if err != nil {
			return fmt.Errorf("更新远端商品失败: %w", err)
		}

		ids := matchRemoteVariants(bundle, updated.Variants)
		for _, rid := range ids {
			if err := s.uow.Listings.SetVariationRemoteIDs(ctx, rid); err != nil {
				return fmt.Errorf("保存变体远端 ID 失败: %w", err)
			}
		}

		if err := s.applyImages(ctx, api, productID, payload, remoteIDIndex(ids)); err != nil {
			return err
		}
		if err := api.ClearCollections(ctx, productID); err != nil {
			return fmt.Errorf("清空集合失败: %w", err)
		}
		return s.applyCollections(ctx, api, productID, bundle.Collections)
	})
}

// updateInput 元数据 + 清空图片 + 按 sku 对应的远端变体明细
// 远端存在但本地没有的变体只带 ID，避免被删除
func updateInput(payload *ListingPayload, current *shopify.Product) *shopify.ProductInput {
	input := *payload.Product
	input.Images = &[]shopify.ImageInput{}

	bySKU := make(map[string]shopify.VariantInput, len(payload.Product.Variants))
	for _, v := range payload.Product.Variants {
		bySKU[v.SKU] = v
	}
	input.Variants = make([]shopify.VariantInput, 0, len(current.Variants))
	for _, rv := range current.Variants {
		v, ok := bySKU[rv.SKU]
		if !ok {
			input.Variants = append(input.Variants, shopify.VariantInput{ID: rv.ID, SKU: rv.SKU, Price: rv.Price, Grams: rv.Grams})
			continue
		}
		v.ID = rv.ID
		input.Variants = append(input.Variants, v)
	}
	return &input
}

// ==================== 图片与集合 ====================

// applyImages 先传普通图片，再传变体关联图并带上远端变体 ID
func (s *ListingService) applyImages(ctx context.Context, api shopify.API, productID int64, payload *ListingPayload, remote map[int64]repository.VariationRemoteIDs) error {
	for _, img := range payload.PlainImages() {
		if _, err := api.AddProductImage(ctx, productID, img.UploadURL(), nil); err != nil {
			return fmt.Errorf("上传图片 %d 失败: %w", img.ID, err)
		}
	}
	for _, l := range payload.Linked {
		variantIDs := make([]int64, 0, len(l.VariationIDs))
		for _, vid := range l.VariationIDs {
			if rid, ok := remote[vid]; ok {
				variantIDs = append(variantIDs, *rid.VariantID)
			}
		}
		if _, err := api.AddProductImage(ctx, productID, l.Image.UploadURL(), variantIDs); err != nil {
			return fmt.Errorf("上传变体图片 %d 失败: %w", l.Image.ID, err)
		}
	}
	return nil
}

func (s *ListingService) applyCollections(ctx context.Context, api shopify.API, productID int64, collections []model.ShopifyCollection) error {
	for _, c := range collections {
		if err := api.AddProductToCollection(ctx, productID, c.CollectionID); err != nil {
			return fmt.Errorf("加入集合 %s 失败: %w", c.Name, err)
		}
	}
	return nil
}

// matchRemoteVariants 远端变体按 sku 对应本地变体，找不到的忽略
func matchRemoteVariants(b *repository.ListingBundle, variants []shopify.Variant) []repository.VariationRemoteIDs {
	var ids []repository.VariationRemoteIDs
	for _, rv := range variants {
		vb, ok := b.VariationBySKU(rv.SKU)
		if !ok {
			continue
		}
		variantID, itemID := rv.ID, rv.InventoryItemID
		ids = append(ids, repository.VariationRemoteIDs{
			VariationID:     vb.Variation.ID,
			VariantID:       &variantID,
			InventoryItemID: &itemID,
		})
	}
	return ids
}

func remoteIDIndex(ids []repository.VariationRemoteIDs) map[int64]repository.VariationRemoteIDs {
	out := make(map[int64]repository.VariationRemoteIDs, len(ids))
	for _, id := range ids {
		if id.VariantID != nil && id.InventoryItemID != nil {
			out[id.VariationID] = id
		}
	}
	return out
}

// ==================== 终态 ====================

// finish 写入更新记录终态，使用不随任务取消的上下文
func (s *ListingService) finish(ctx context.Context, update *model.ShopifyUpdate, runErr error) error {
	tctx := context.WithoutCancel(ctx)
	if runErr == nil {
		if err := s.uow.Listings.MarkUpdateComplete(tctx, update); err != nil {
			return fmt.Errorf("标记更新完成失败: %w", err)
		}
		s.logger.Info("刊登同步完成",
			zap.Int64("listing_id", update.ListingID),
			zap.Int64("update_id", update.ID))
		return nil
	}

	reason := failureReason(ctx, runErr)
	if err := s.uow.Listings.MarkUpdateError(tctx, update, reason); err != nil {
		s.logger.Error("标记更新失败出错", zap.Int64("update_id", update.ID), zap.Error(err))
	}
	s.logger.Error("刊登同步失败",
		zap.Int64("listing_id", update.ListingID),
		zap.Int64("update_id", update.ID),
		zap.String("reason", reason),
		zap.Error(runErr))
	return runErr
}

func failureReason(ctx context.Context, err error) string {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return model.ReasonDeadline
	case errors.Is(err, errRemoteGone):
		return model.ReasonRemoteGone
	case errors.Is(err, shopify.ErrTransient):
		return model.ReasonTransient
	default:
		return model.ReasonPermanent
	}
}

// ==================== 查询 ====================

// ListingStatus 刊登同步状态
type ListingStatus struct {
	ListingID  int64                `json:"listing_id"`
	ProductID  *int64               `json:"product_id"`
	Ongoing    bool                 `json:"ongoing"`
	LastUpdate *model.ShopifyUpdate `json:"last_update"`
}

func (s *ListingService) ListingStatus(ctx context.Context, listingID int64) (*ListingStatus, error) {
	listing, err := s.uow.Listings.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	last, err := s.uow.Listings.LastUpdate(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("读取更新记录失败: %w", err)
	}
	return &ListingStatus{
		ListingID:  listing.ID,
		ProductID:  listing.ProductID,
		Ongoing:    last != nil && last.Ongoing(),
		LastUpdate: last,
	}, nil
}

// ListingIsActive 远端商品是否存在
func (s *ListingService) ListingIsActive(ctx context.Context, listingID int64) (bool, error) {
	listing, err := s.uow.Listings.GetListing(ctx, listingID)
	if err != nil {
		return false, err
	}
	if listing.ProductID == nil {
		return false, nil
	}

	active := false
	err = s.scope.WithSession(ctx, func(ctx context.Context, api shopify.API) error {
		_, err := api.GetProduct(ctx, *listing.ProductID)
		if errors.Is(err, shopify.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		active = true
		return nil
	})
	return active, err
}

// ==================== 从系列创建刊登 ====================

// CreateListingFromRange 为系列创建刊登及每个 SKU 的变体，不触发远端调用
// prices 缺省时使用 SKU 零售价
func (s *ListingService) CreateListingFromRange(ctx context.Context, rangeID int64, title, description string, prices map[int64]decimal.Decimal) (*model.ShopifyListing, error) {
	var listing *model.ShopifyListing
	err := s.uow.Transaction(ctx, func(tx *repository.CatalogUnitOfWork) error {
		pr, err := tx.Catalog.GetRange(ctx, rangeID)
		if err != nil {
			return fmt.Errorf("读取系列失败: %w", err)
		}
		products, err := tx.Catalog.ProductsByRange(ctx, rangeID)
		if err != nil {
			return fmt.Errorf("读取系列 SKU 失败: %w", err)
		}
		if len(products) == 0 {
			return fmt.Errorf("%w: 系列 %s 没有 SKU", ErrInvalidListing, pr.SKU)
		}

		if title == "" {
			title = pr.Name
		}
		if description == "" {
			description = pr.Description
		}
		variations := make([]model.ShopifyVariation, 0, len(products))
		for _, p := range products {
			price, ok := prices[p.ID]
			if !ok {
				price = p.RetailPrice
			}
			variations = append(variations, model.ShopifyVariation{ProductID: p.ID, Price: price})
		}

		listing = &model.ShopifyListing{RangeID: rangeID, Title: title, Description: description}
		return tx.Listings.CreateListing(ctx, listing, variations)
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}
