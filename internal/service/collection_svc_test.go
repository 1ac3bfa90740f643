package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopify_sync_v1/internal/model"
	"shopify_sync_v1/internal/repository"
	"shopify_sync_v1/pkg/shopify"
)

func snapshotCollections(t *testing.T, repo repository.CollectionRepository) map[int64]string {
	all, err := repo.List(context.Background())
	require.NoError(t, err)
	out := make(map[int64]string, len(all))
	for _, c := range all {
		out[c.CollectionID] = c.Name
	}
	return out
}

func TestCollectionRefresh_MirrorsRemote(t *testing.T) {
	db := setupServiceDB(t)
	repo := repository.NewCollectionRepository(db)
	shop := newFakeShop()
	svc := NewCollectionService(repo, shop, nil)
	ctx := context.Background()

	shop.collections = []shopify.Collection{{ID: 1, Title: "Summer"}, {ID: 2, Title: "Sale"}}
	n, err := svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, map[int64]string{1: "Summer", 2: "Sale"}, snapshotCollections(t, repo))

	// 无远端变化时再次同步结果不变
	before, _ := repo.List(ctx)
	_, err = svc.Refresh(ctx)
	require.NoError(t, err)
	after, _ := repo.List(ctx)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].Name, after[i].Name)
	}

	shop.collections = []shopify.Collection{{ID: 2, Title: "Clearance"}, {ID: 3, Title: "New"}}
	_, err = svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{2: "Clearance", 3: "New"}, snapshotCollections(t, repo))
}

func TestCollectionRefresh_RemoteErrorKeepsLocal(t *testing.T) {
	db := setupServiceDB(t)
	repo := repository.NewCollectionRepository(db)
	require.NoError(t, repo.ReplaceCollections(context.Background(), []repository.RemoteCollection{{CollectionID: 9, Name: "Keep"}}))

	shop := newFakeShop()
	shop.failOn["ListCollections"] = transient("list_collections")
	_, err := NewCollectionService(repo, shop, nil).Refresh(context.Background())
	assert.ErrorIs(t, err, shopify.ErrTransient)
	assert.Equal(t, map[int64]string{9: "Keep"}, snapshotCollections(t, repo))
}

func TestSetListingCollections_ByRemoteID(t *testing.T) {
	f := newListingFixture(t)
	ctx := context.Background()
	listing := f.seedTee(t)
	svc := NewCollectionService(f.uow.Collections, f.shop, nil)

	require.NoError(t, svc.SetListingCollections(ctx, listing.ID, []int64{903, 902}))
	got, err := f.uow.Collections.ListingCollections(ctx, listing.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(903), got[0].CollectionID)

	assert.Error(t, svc.SetListingCollections(ctx, listing.ID, []int64{404}))
}

func TestTagService(t *testing.T) {
	f := newListingFixture(t)
	ctx := context.Background()
	listing, _, _ := f.seedMug(t)
	svc := NewTagService(f.uow.Tags, nil)

	_, err := svc.CreateTag(ctx, "  ")
	assert.Error(t, err)

	tags, err := svc.SetListingTags(ctx, listing.ID, []string{"mug", "kitchen"})
	require.NoError(t, err)
	require.Len(t, tags, 2)

	_, err = svc.ReplaceTag(ctx, tags[1].ID, []string{"home", "dining"})
	require.NoError(t, err)

	got, err := svc.ListingTags(ctx, listing.ID)
	require.NoError(t, err)
	names := make([]string, 0, len(got))
	for _, tg := range got {
		names = append(names, tg.Name)
	}
	assert.Equal(t, []string{"mug", "home", "dining"}, names)

	// 替换后的标签体现在载荷里
	bundle, err := f.uow.Listings.LoadBundle(ctx, listing.ID)
	require.NoError(t, err)
	payload, err := BuildListingPayload(bundle)
	require.NoError(t, err)
	assert.Equal(t, "mug,home,dining", *payload.Product.Tags)

	var count int64
	f.db.Model(&model.ShopifyTag{}).Where("name = ?", "kitchen").Count(&count)
	assert.Zero(t, count)
}
