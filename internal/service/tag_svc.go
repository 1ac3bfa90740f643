package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"shopify_sync_v1/internal/model"
	"shopify_sync_v1/internal/repository"
)

// TagService 刊登标签维护
type TagService struct {
	tags   repository.TagRepository
	logger *zap.Logger
}

func NewTagService(tags repository.TagRepository, logger *zap.Logger) *TagService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TagService{tags: tags, logger: logger.Named("TagService")}
}

// CreateTag 按名称幂等创建
func (s *TagService) CreateTag(ctx context.Context, name string) (*model.ShopifyTag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("标签名不能为空")
	}
	tags, err := s.tags.EnsureTags(ctx, []string{name})
	if err != nil {
		return nil, fmt.Errorf("创建标签失败: %w", err)
	}
	return &tags[0], nil
}

func (s *TagService) List(ctx context.Context) ([]model.ShopifyTag, error) {
	return s.tags.List(ctx)
}

// ReplaceTag 把一个标签拆成多个新标签，原标签删除
func (s *TagService) ReplaceTag(ctx context.Context, tagID int64, newNames []string) ([]model.ShopifyTag, error) {
	created, err := s.tags.TagReplace(ctx, tagID, newNames)
	if err != nil {
		return nil, fmt.Errorf("替换标签失败: %w", err)
	}
	s.logger.Info("标签已替换", zap.Int64("tag_id", tagID), zap.Int("new_tags", len(created)))
	return created, nil
}

// SetListingTags 按名称设置刊登标签，顺序即刊登标签顺序
func (s *TagService) SetListingTags(ctx context.Context, listingID int64, names []string) ([]model.ShopifyTag, error) {
	tags, err := s.tags.EnsureTags(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("创建标签失败: %w", err)
	}
	ids := make([]int64, 0, len(tags))
	for _, t := range tags {
		ids = append(ids, t.ID)
	}
	if err := s.tags.SetListingTags(ctx, listingID, ids); err != nil {
		return nil, fmt.Errorf("设置刊登标签失败: %w", err)
	}
	return tags, nil
}

func (s *TagService) ListingTags(ctx context.Context, listingID int64) ([]model.ShopifyTag, error) {
	return s.tags.ListingTags(ctx, listingID)
}
