package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shopify_sync_v1/internal/model"
)

// RemoteCollection 远端集合 (镜像输入)
type RemoteCollection struct {
	CollectionID int64
	Name         string
}

// ==================== 仓储接口 ====================

// CollectionRepository 集合镜像仓储
type CollectionRepository interface {
	List(ctx context.Context) ([]model.ShopifyCollection, error)
	GetByRemoteID(ctx context.Context, collectionID int64) (*model.ShopifyCollection, error)
	// ReplaceCollections 按远端 ID upsert，删除不在 desired 中的本地记录并级联删除关系
	ReplaceCollections(ctx context.Context, desired []RemoteCollection) error
	ListingCollections(ctx context.Context, listingID int64) ([]model.ShopifyCollection, error)
	SetListingCollections(ctx context.Context, listingID int64, collectionIDs []int64) error
}

// ==================== 仓储实现 ====================

type collectionRepo struct {
	db *gorm.DB
}

// NewCollectionRepository 创建集合仓储
func NewCollectionRepository(db *gorm.DB) CollectionRepository {
	return &collectionRepo{db: db}
}

func (r *collectionRepo) List(ctx context.Context) ([]model.ShopifyCollection, error) {
	var collections []model.ShopifyCollection
	err := r.db.WithContext(ctx).Order("collection_id ASC").Find(&collections).Error
	return collections, err
}

func (r *collectionRepo) GetByRemoteID(ctx context.Context, collectionID int64) (*model.ShopifyCollection, error) {
	var c model.ShopifyCollection
	if err := r.db.WithContext(ctx).Where("collection_id = ?", collectionID).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *collectionRepo) ReplaceCollections(ctx context.Context, desired []RemoteCollection) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		keep := make([]int64, 0, len(desired))
		seen := make(map[int64]bool, len(desired))
		for _, d := range desired {
			if seen[d.CollectionID] {
				continue
			}
			seen[d.CollectionID] = true
			keep = append(keep, d.CollectionID)

			row := model.ShopifyCollection{Name: d.Name, CollectionID: d.CollectionID}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "collection_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"name"}),
			}).Create(&row).Error; err != nil {
				return err
			}
		}

		// 找出需要删除的本地记录
		stale := tx.Model(&model.ShopifyCollection{})
		if len(keep) > 0 {
			stale = stale.Where("collection_id NOT IN ?", keep)
		}
		var staleIDs []int64
		if err := stale.Pluck("id", &staleIDs).Error; err != nil {
			return err
		}
		if len(staleIDs) == 0 {
			return nil
		}

		if err := tx.Where("collection_id IN ?", staleIDs).Delete(&model.ShopifyListingCollection{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", staleIDs).Delete(&model.ShopifyCollection{}).Error
	})
}

func (r *collectionRepo) ListingCollections(ctx context.Context, listingID int64) ([]model.ShopifyCollection, error) {
	var collections []model.ShopifyCollection
	err := r.db.WithContext(ctx).
		Table("shopify_collections").
		Select("shopify_collections.*").
		Joins("JOIN shopify_listing_collections lc ON lc.collection_id = shopify_collections.id").
		Where("lc.listing_id = ?", listingID).
		Order("lc.id ASC").
		Scan(&collections).Error
	return collections, err
}

// SetListingCollections collectionIDs 为本地集合 ID
func (r *collectionRepo) SetListingCollections(ctx context.Context, listingID int64, collectionIDs []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("listing_id = ?", listingID).Delete(&model.ShopifyListingCollection{}).Error; err != nil {
			return err
		}
		if len(collectionIDs) == 0 {
			return nil
		}
		edges := make([]model.ShopifyListingCollection, 0, len(collectionIDs))
		seen := make(map[int64]bool, len(collectionIDs))
		for _, id := range collectionIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			edges = append(edges, model.ShopifyListingCollection{ListingID: listingID, CollectionID: id})
		}
		return tx.Omit("Collection").Create(&edges).Error
	})
}
