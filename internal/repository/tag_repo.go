package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shopify_sync_v1/internal/model"
)

// ==================== 仓储接口 ====================

// TagRepository 标签仓储
type TagRepository interface {
	EnsureTags(ctx context.Context, names []string) ([]model.ShopifyTag, error)
	GetByID(ctx context.Context, id int64) (*model.ShopifyTag, error)
	GetByName(ctx context.Context, name string) (*model.ShopifyTag, error)
	List(ctx context.Context) ([]model.ShopifyTag, error)
	ListingTags(ctx context.Context, listingID int64) ([]model.ShopifyTag, error)
	SetListingTags(ctx context.Context, listingID int64, tagIDs []int64) error
	// TagReplace 单事务：创建新标签、把引用旧标签的刊登改挂到所有新标签、删除旧标签
	TagReplace(ctx context.Context, tagID int64, newNames []string) ([]model.ShopifyTag, error)
}

// ==================== 仓储实现 ====================

type tagRepo struct {
	db *gorm.DB
}

// NewTagRepository 创建标签仓储
func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepo{db: db}
}

// EnsureTags 按名称幂等创建，返回顺序与入参一致 (去重)
func (r *tagRepo) EnsureTags(ctx context.Context, names []string) ([]model.ShopifyTag, error) {
	clean := normalizeTagNames(names)
	if len(clean) == 0 {
		return nil, nil
	}

	db := r.db.WithContext(ctx)
	rows := make([]model.ShopifyTag, 0, len(clean))
	for _, n := range clean {
		rows = append(rows, model.ShopifyTag{Name: n})
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&rows).Error; err != nil {
		return nil, err
	}

	var existing []model.ShopifyTag
	if err := db.Where("name IN ?", clean).Find(&existing).Error; err != nil {
		return nil, err
	}
	byName := make(map[string]model.ShopifyTag, len(existing))
	for _, t := range existing {
		byName[t.Name] = t
	}
	out := make([]model.ShopifyTag, 0, len(clean))
	for _, n := range clean {
		out = append(out, byName[n])
	}
	return out, nil
}

func (r *tagRepo) GetByID(ctx context.Context, id int64) (*model.ShopifyTag, error) {
	var tag model.ShopifyTag
	if err := r.db.WithContext(ctx).First(&tag, id).Error; err != nil {
		return nil, translate(err)
	}
	return &tag, nil
}

func (r *tagRepo) GetByName(ctx context.Context, name string) (*model.ShopifyTag, error) {
	var tag model.ShopifyTag
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&tag).Error; err != nil {
		return nil, translate(err)
	}
	return &tag, nil
}

func (r *tagRepo) List(ctx context.Context) ([]model.ShopifyTag, error) {
	var tags []model.ShopifyTag
	err := r.db.WithContext(ctx).Order("name ASC").Find(&tags).Error
	return tags, err
}

func (r *tagRepo) ListingTags(ctx context.Context, listingID int64) ([]model.ShopifyTag, error) {
	var tags []model.ShopifyTag
	err := r.db.WithContext(ctx).
		Table("shopify_tags").
		Select("shopify_tags.*").
		Joins("JOIN shopify_listing_tags lt ON lt.tag_id = shopify_tags.id").
		Where("lt.listing_id = ?", listingID).
		Order("lt.id ASC").
		Scan(&tags).Error
	return tags, err
}

func (r *tagRepo) SetListingTags(ctx context.Context, listingID int64, tagIDs []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("listing_id = ?", listingID).Delete(&model.ShopifyListingTag{}).Error; err != nil {
			return err
		}
		return insertListingTags(tx, listingID, tagIDs)
	})
}

func (r *tagRepo) TagReplace(ctx context.Context, tagID int64, newNames []string) ([]model.ShopifyTag, error) {
	var created []model.ShopifyTag
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &tagRepo{db: tx}

		var old model.ShopifyTag
		if err := tx.First(&old, tagID).Error; err != nil {
			return translate(err)
		}

		// 新名称中包含旧名称时保留旧标签及其关系
		keepOld := false
		names := make([]string, 0, len(newNames))
		for _, n := range normalizeTagNames(newNames) {
			if n == old.Name {
				keepOld = true
				continue
			}
			names = append(names, n)
		}
		tags, err := txRepo.EnsureTags(ctx, names)
		if err != nil {
			return err
		}
		created = tags

		var listingIDs []int64
		if err := tx.Model(&model.ShopifyListingTag{}).
			Where("tag_id = ?", tagID).
			Order("id ASC").
			Pluck("listing_id", &listingIDs).Error; err != nil {
			return err
		}

		newIDs := make([]int64, 0, len(tags))
		for _, t := range tags {
			newIDs = append(newIDs, t.ID)
		}
		for _, listingID := range listingIDs {
			if err := insertListingTags(tx, listingID, newIDs); err != nil {
				return err
			}
		}

		if keepOld {
			return nil
		}
		if err := tx.Where("tag_id = ?", tagID).Delete(&model.ShopifyListingTag{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.ShopifyTag{}, tagID).Error
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// insertListingTags 已存在的关系保持原位置
func insertListingTags(tx *gorm.DB, listingID int64, tagIDs []int64) error {
	if len(tagIDs) == 0 {
		return nil
	}
	edges := make([]model.ShopifyListingTag, 0, len(tagIDs))
	for _, id := range tagIDs {
		edges = append(edges, model.ShopifyListingTag{ListingID: listingID, TagID: id})
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edges).Error
}

func normalizeTagNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
