package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestCache(t *testing.T) (*GrantCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewGrantCache(client, time.Minute), mr
}

func TestGrantCacheRoundTrip(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	_, ok := cache.Get(ctx, ResourceOrg, 1)
	assert.False(t, ok)

	uid := int64(7)
	grants := []RoleGrant{{
		ID: 1, UserID: &uid, ResourceType: ResourceOrg, ResourceID: 1, Role: RoleOwner,
	}}
	cache.Put(ctx, ResourceOrg, 1, grants)

	got, ok := cache.Get(ctx, ResourceOrg, 1)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, RoleOwner, got[0].Role)
	require.NotNil(t, got[0].UserID)
	assert.Equal(t, uid, *got[0].UserID)

	// Resource types are keyed separately.
	_, ok = cache.Get(ctx, ResourceDoc, 1)
	assert.False(t, ok)
}

func TestGrantCacheEmptyListIsCached(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	// An empty grant list is a positive result, not a miss.
	cache.Put(ctx, ResourceDoc, 5, nil)
	got, ok := cache.Get(ctx, ResourceDoc, 5)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestGrantCacheInvalidate(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	cache.Put(ctx, ResourceWorkspace, 2, []RoleGrant{{ID: 1, Role: RoleViewer}})
	cache.Invalidate(ctx, ResourceWorkspace, 2)

	_, ok := cache.Get(ctx, ResourceWorkspace, 2)
	assert.False(t, ok)
}

func TestGrantCacheCorruptEntryDropped(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("grants:org:3", "not json"))
	_, ok := cache.Get(ctx, ResourceOrg, 3)
	assert.False(t, ok)
	// The bad entry is deleted, not left to poison later reads.
	assert.False(t, mr.Exists("grants:org:3"))
}

func TestGrantCacheExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cache := NewGrantCache(client, 50*time.Millisecond)
	ctx := context.Background()

	cache.Put(ctx, ResourceOrg, 4, []RoleGrant{{ID: 1, Role: RoleMember}})
	mr.FastForward(100 * time.Millisecond)

	_, ok := cache.Get(ctx, ResourceOrg, 4)
	assert.False(t, ok)
}

func TestGrantCacheServerDownDegradesToMiss(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	cache.Put(ctx, ResourceOrg, 6, []RoleGrant{{ID: 1, Role: RoleEditor}})
	mr.Close()

	_, ok := cache.Get(ctx, ResourceOrg, 6)
	assert.False(t, ok)
	// Writes are advisory and must not panic either.
	cache.Put(ctx, ResourceOrg, 6, nil)
	cache.Invalidate(ctx, ResourceOrg, 6)
}

func TestStoreFindGrantsUsesCache(t *testing.T) {
	st := setupTestDB(t)
	cache, _ := setupTestCache(t)
	st = st.WithGrantCache(cache)
	ctx := context.Background()

	org := seedTeamOrg(t, st, "Acme", "acme")
	uid := int64(9)
	require.NoError(t, st.AddGrant(ctx, &RoleGrant{
		UserID: &uid, ResourceType: ResourceOrg, ResourceID: org.ID, Role: RoleViewer,
	}))

	// First read populates the cache.
	grants, err := st.FindGrants(ctx, ResourceOrg, org.ID)
	require.NoError(t, err)
	require.Len(t, grants, 1)

	cached, ok := cache.Get(ctx, ResourceOrg, org.ID)
	require.True(t, ok)
	assert.Len(t, cached, 1)

	// A mutation invalidates it.
	require.NoError(t, st.RemoveGrant(ctx, grants[0].ID))
	_, ok = cache.Get(ctx, ResourceOrg, org.ID)
	assert.False(t, ok)

	grants, err = st.FindGrants(ctx, ResourceOrg, org.ID)
	require.NoError(t, err)
	assert.Empty(t, grants)
}
