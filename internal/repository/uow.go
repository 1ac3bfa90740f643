package repository

import (
	"context"

	"gorm.io/gorm"
)

// ==================== 事务支持 ====================

// CatalogUnitOfWork 目录与刊登的工作单元（事务）
type CatalogUnitOfWork struct {
	db          *gorm.DB
	Catalog     CatalogRepository
	Listings    ListingRepository
	Tags        TagRepository
	Collections CollectionRepository
}

// NewCatalogUnitOfWork 创建工作单元
func NewCatalogUnitOfWork(db *gorm.DB) *CatalogUnitOfWork {
	return &CatalogUnitOfWork{
		db:          db,
		Catalog:     NewCatalogRepository(db),
		Listings:    NewListingRepository(db),
		Tags:        NewTagRepository(db),
		Collections: NewCollectionRepository(db),
	}
}

// Transaction 执行事务
func (u *CatalogUnitOfWork) Transaction(ctx context.Context, fn func(uow *CatalogUnitOfWork) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewCatalogUnitOfWork(tx))
	})
}
