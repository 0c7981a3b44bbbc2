package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
)

func fileKey(version string) model.CacheKey {
	return model.CacheKey{
		Kind:     model.CacheKindFileContents,
		Resource: model.FileResource("octocat", "hello-world", "main.go"),
		Version:  version,
	}
}

func TestCacheRepo_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCacheRepo(db)
	ctx := context.Background()

	storedAt := time.Date(2026, 2, 1, 8, 30, 0, 0, time.UTC)
	key := fileKey(model.CommitPair("base1", "head1"))
	require.NoError(t, repo.Put(ctx, model.CacheEntry{Key: key, Payload: []byte(`{"Head":"a","Base":"b"}`), StoredAt: storedAt}))

	got, err := repo.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, `{"Head":"a","Base":"b"}`, string(got.Payload))
	assert.True(t, storedAt.Equal(got.StoredAt))
	assert.Equal(t, key, got.Key)
}

func TestCacheRepo_GetMiss(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCacheRepo(db)

	got, err := repo.Get(context.Background(), fileKey("x..y"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCacheRepo_NewVersionSupersedesOld(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCacheRepo(db)
	ctx := context.Background()

	oldKey := fileKey(model.CommitPair("base1", "head1"))
	newKey := fileKey(model.CommitPair("base1", "head2"))
	now := time.Now()

	require.NoError(t, repo.Put(ctx, model.CacheEntry{Key: oldKey, Payload: []byte("old"), StoredAt: now}))
	require.NoError(t, repo.Put(ctx, model.CacheEntry{Key: newKey, Payload: []byte("new"), StoredAt: now}))

	got, err := repo.Get(ctx, oldKey)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = repo.Get(ctx, newKey)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "new", string(got.Payload))
}

func TestCacheRepo_MutableKeyOverwrites(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCacheRepo(db)
	ctx := context.Background()

	key := model.CacheKey{Kind: model.CacheKindAuthStatus, Resource: "github"}
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	require.NoError(t, repo.Put(ctx, model.CacheEntry{Key: key, Payload: []byte("v1"), StoredAt: first}))
	require.NoError(t, repo.Put(ctx, model.CacheEntry{Key: key, Payload: []byte("v2"), StoredAt: second}))

	got, err := repo.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "v2", string(got.Payload))
	assert.True(t, second.Equal(got.StoredAt))
}

func TestCacheRepo_DeletePrefixAndStats(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCacheRepo(db)
	ctx := context.Background()
	now := time.Now()

	pr := model.PRRef{Owner: "octocat", Repo: "hello-world", Number: 7}
	other := model.PRRef{Owner: "octocat", Repo: "hello-world", Number: 70}

	detailKey := model.CacheKey{Kind: model.CacheKindPRDetail, Resource: pr.String()}
	otherKey := model.CacheKey{Kind: model.CacheKindPRDetail, Resource: other.String()}
	require.NoError(t, repo.Put(ctx, model.CacheEntry{Key: detailKey, Payload: []byte("12345"), StoredAt: now}))
	require.NoError(t, repo.Put(ctx, model.CacheEntry{Key: otherKey, Payload: []byte("123"), StoredAt: now}))
	require.NoError(t, repo.Put(ctx, model.CacheEntry{Key: fileKey("a..b"), Payload: []byte("12"), StoredAt: now}))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Entries)
	assert.Equal(t, int64(10), stats.TotalBytes)
	assert.Equal(t, 2, stats.ByKind[model.CacheKindPRDetail])
	assert.Equal(t, 1, stats.ByKind[model.CacheKindFileContents])

	n, err := repo.DeletePrefix(ctx, model.CachePrefix(model.CacheKindPRDetail, pr.String()))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "prefix must not match #70 when deleting #7")

	got, err := repo.Get(ctx, otherKey)
	require.NoError(t, err)
	assert.NotNil(t, got)

	n, err = repo.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
