package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/teamflow/internal/database"
)

// =============================================================================
// 🧪 DBStore 测试
// =============================================================================

func setupDBStore(t *testing.T) *DBStore {
	t.Helper()

	db, err := database.Open("sqlite", ":memory:", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, zap.NewNop()))

	return NewDBStore(db, zap.NewNop())
}

func TestDBStore_SetGet(t *testing.T) {
	store := setupDBStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "report", []byte("研究报告内容"), time.Minute))

	val, err := store.Get(ctx, "report")
	require.NoError(t, err)
	assert.Equal(t, []byte("研究报告内容"), val)
}

func TestDBStore_Miss(t *testing.T) {
	store := setupDBStore(t)

	_, err := store.Get(context.Background(), "absent")

	assert.True(t, IsCacheMiss(err))
}

func TestDBStore_GetUpdatesAccessStats(t *testing.T) {
	store := setupDBStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "hot", []byte("v"), time.Minute))

	_, err := store.Get(ctx, "hot")
	require.NoError(t, err)
	_, err = store.Get(ctx, "hot")
	require.NoError(t, err)

	var entry database.CacheEntry
	require.NoError(t, store.db.Where("key = ?", "hot").First(&entry).Error)
	assert.Equal(t, int64(2), entry.AccessCount)
	assert.False(t, entry.AccessedAt.IsZero())
}

func TestDBStore_ExpiredEntryMissesAndRemoved(t *testing.T) {
	store := setupDBStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", []byte("v"), 10*time.Millisecond))

	time.Sleep(25 * time.Millisecond)

	_, err := store.Get(ctx, "short")
	assert.True(t, IsCacheMiss(err))

	// 读取时顺手删除了过期行
	var count int64
	require.NoError(t, store.db.Model(&database.CacheEntry{}).Where("key = ?", "short").Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestDBStore_SetOverwrites(t *testing.T) {
	store := setupDBStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("old"), time.Minute))
	require.NoError(t, store.Set(ctx, "k", []byte("new"), time.Minute))

	val, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), val)

	// 覆盖写不产生重复行
	var count int64
	require.NoError(t, store.db.Model(&database.CacheEntry{}).Where("key = ?", "k").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDBStore_Delete(t *testing.T) {
	store := setupDBStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k1", []byte("v1"), time.Minute))
	require.NoError(t, store.Set(ctx, "k2", []byte("v2"), time.Minute))

	require.NoError(t, store.Delete(ctx, "k1", "k2"))

	_, err := store.Get(ctx, "k1")
	assert.True(t, IsCacheMiss(err))

	assert.NoError(t, store.Delete(ctx))
}

func TestDBStore_SweepExpired(t *testing.T) {
	store := setupDBStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "e1", []byte("v"), 10*time.Millisecond))
	require.NoError(t, store.Set(ctx, "e2", []byte("v"), 10*time.Millisecond))
	require.NoError(t, store.Set(ctx, "live", []byte("v"), time.Minute))

	time.Sleep(25 * time.Millisecond)

	removed, err := store.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	_, err = store.Get(ctx, "live")
	assert.NoError(t, err)
}

func TestDBStore_Stats(t *testing.T) {
	store := setupDBStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "live", []byte("v"), time.Minute))
	require.NoError(t, store.Set(ctx, "dead", []byte("v"), 5*time.Millisecond))

	time.Sleep(15 * time.Millisecond)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Active)
}

func TestDBStore_Ping(t *testing.T) {
	store := setupDBStore(t)

	assert.NoError(t, store.Ping(context.Background()))
	assert.NoError(t, store.Close())
}
