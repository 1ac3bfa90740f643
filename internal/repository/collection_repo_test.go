package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopify_sync_v1/internal/model"
)

func TestReplaceCollections_UpsertAndDelete(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewCollectionRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.ReplaceCollections(ctx, []RemoteCollection{
		{CollectionID: 1, Name: "Mugs"},
		{CollectionID: 2, Name: "Plates"},
	}))

	listing, _ := seedListing(t, db, "R1", "A-1")
	plates, err := repo.GetByRemoteID(ctx, 2)
	require.NoError(t, err)
	mugs, err := repo.GetByRemoteID(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, repo.SetListingCollections(ctx, listing.ID, []int64{plates.ID, mugs.ID}))

	// 远端删除 Plates、改名 Mugs、新增 Bowls
	require.NoError(t, repo.ReplaceCollections(ctx, []RemoteCollection{
		{CollectionID: 1, Name: "Cups"},
		{CollectionID: 3, Name: "Bowls"},
	}))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all[0].CollectionID)
	assert.Equal(t, "Cups", all[0].Name)
	assert.Equal(t, mugs.ID, all[0].ID, "upsert 保持本地主键")
	assert.Equal(t, int64(3), all[1].CollectionID)

	// 指向已删除集合的关系被级联删除
	linked, err := repo.ListingCollections(ctx, listing.ID)
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, int64(1), linked[0].CollectionID)

	var edges int64
	db.Model(&model.ShopifyListingCollection{}).Count(&edges)
	if edges != 1 {
		t.Errorf("edges = %d, want 1", edges)
	}
}

func TestReplaceCollections_Idempotent(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewCollectionRepository(db)
	ctx := context.Background()
	desired := []RemoteCollection{{CollectionID: 10, Name: "A"}, {CollectionID: 11, Name: "B"}}

	require.NoError(t, repo.ReplaceCollections(ctx, desired))
	first, _ := repo.List(ctx)
	require.NoError(t, repo.ReplaceCollections(ctx, desired))
	second, _ := repo.List(ctx)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Name, second[i].Name)
		assert.True(t, first[i].UpdatedAt.Equal(second[i].UpdatedAt))
	}
}

func TestReplaceCollections_EmptyDesiredClearsAll(t *testing.T) {
	db := setupRepoTestDB(t)
	repo := NewCollectionRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.ReplaceCollections(ctx, []RemoteCollection{{CollectionID: 1, Name: "A"}}))
	require.NoError(t, repo.ReplaceCollections(ctx, nil))

	all, _ := repo.List(ctx)
	assert.Empty(t, all)
}
