package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"shopify_sync_v1/internal/model"
	"shopify_sync_v1/internal/repository"
	"shopify_sync_v1/pkg/shopify"
)

// CollectionService 远端集合镜像到本地
type CollectionService struct {
	collections repository.CollectionRepository
	scope       shopify.Scope
	logger      *zap.Logger
}

func NewCollectionService(collections repository.CollectionRepository, scope shopify.Scope, logger *zap.Logger) *CollectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollectionService{
		collections: collections,
		scope:       scope,
		logger:      logger.Named("CollectionService"),
	}
}

// Refresh 以远端集合列表覆盖本地镜像
func (s *CollectionService) Refresh(ctx context.Context) (int, error) {
	var desired []repository.RemoteCollection
	err := s.scope.WithSession(ctx, func(ctx context.Context, api shopify.API) error {
		remote, err := api.ListCollections(ctx)
		if err != nil {
			return fmt.Errorf("读取远端集合失败: %w", err)
		}
		for _, c := range remote {
			desired = append(desired, repository.RemoteCollection{CollectionID: c.ID, Name: c.Title})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := s.collections.ReplaceCollections(ctx, desired); err != nil {
		return 0, fmt.Errorf("更新本地集合失败: %w", err)
	}
	s.logger.Info("集合同步完成", zap.Int("count", len(desired)))
	return len(desired), nil
}

func (s *CollectionService) List(ctx context.Context) ([]model.ShopifyCollection, error) {
	return s.collections.List(ctx)
}

// SetListingCollections 按远端集合 ID 设置刊登所属集合
func (s *CollectionService) SetListingCollections(ctx context.Context, listingID int64, remoteIDs []int64) error {
	localIDs := make([]int64, 0, len(remoteIDs))
	for _, rid := range remoteIDs {
		c, err := s.collections.GetByRemoteID(ctx, rid)
		if err != nil {
			return fmt.Errorf("集合 %d 不存在: %w", rid, err)
		}
		localIDs = append(localIDs, c.ID)
	}
	return s.collections.SetListingCollections(ctx, listingID, localIDs)
}
