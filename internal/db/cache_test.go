package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felo/mail-render/internal/pipeline"
	"github.com/felo/mail-render/internal/sanitize"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestCache(t *testing.T, ttl time.Duration) (*RenderCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	return NewRenderCache(SetupTestDB(t), ttl).WithClock(clock.now), clock
}

func TestCacheKey(t *testing.T) {
	light := sanitize.Options{Theme: sanitize.ThemeLight}
	dark := sanitize.Options{Theme: sanitize.ThemeDark}
	images := sanitize.Options{Theme: sanitize.ThemeLight, LoadExternalImages: true}

	assert.Len(t, CacheKey(SourceUpload, "m1", "", light), 64)
	assert.Equal(t, CacheKey(SourceUpload, "m1", "", light), CacheKey(SourceUpload, "m1", "", light))
	assert.Equal(t, CacheKey(SourceUpload, "m1", "", light), CacheKey(SourceUpload, "m1", "", sanitize.Options{}), "empty theme means light")
	assert.NotEqual(t, CacheKey(SourceUpload, "m1", "", light), CacheKey(SourceUpload, "m2", "", light))
	assert.NotEqual(t, CacheKey(SourceUpload, "m1", "", light), CacheKey(SourceUpload, "m1", "", dark))
	assert.NotEqual(t, CacheKey(SourceUpload, "m1", "", light), CacheKey(SourceUpload, "m1", "", images))
	assert.NotEqual(t, CacheKey(SourceUpload, "m1", "", light), CacheKey(SourceAPI, "m1", "", light), "sources do not share IDs")
	assert.NotEqual(t, CacheKey(SourceAPI, "m1", "d1", light), CacheKey(SourceAPI, "m1", "d2", light), "content is part of the key")
}

func TestRenderCache_PutGet(t *testing.T) {
	cache, _ := newTestCache(t, time.Hour)
	key := CacheKey(SourceUpload, "m1", "", sanitize.Options{})
	want := pipeline.Result{ProcessedHTML: "<p>x</p>", PlainText: "x", HasBlockedImages: true}

	_, ok, err := cache.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Put(key, "m1", want))
	got, ok, err := cache.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	updated := pipeline.Result{ProcessedHTML: "<p>y</p>", PlainText: "y"}
	require.NoError(t, cache.Put(key, "m1", updated))
	got, _, err = cache.Get(key)
	require.NoError(t, err)
	assert.Equal(t, updated, got)
}

func TestRenderCache_Expiry(t *testing.T) {
	cache, clock := newTestCache(t, time.Minute)
	key := CacheKey(SourceUpload, "m1", "", sanitize.Options{})
	require.NoError(t, cache.Put(key, "m1", pipeline.Result{PlainText: "x"}))

	clock.t = clock.t.Add(59 * time.Second)
	_, ok, err := cache.Get(key)
	require.NoError(t, err)
	assert.True(t, ok)

	clock.t = clock.t.Add(2 * time.Second)
	_, ok, err = cache.Get(key)
	require.NoError(t, err)
	assert.False(t, ok, "expired entries are misses")

	n, err := cache.PurgeExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = cache.PurgeExpired()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRenderCache_Invalidate(t *testing.T) {
	cache, _ := newTestCache(t, time.Hour)
	lightKey := CacheKey(SourceUpload, "m1", "", sanitize.Options{Theme: sanitize.ThemeLight})
	darkKey := CacheKey(SourceUpload, "m1", "", sanitize.Options{Theme: sanitize.ThemeDark})
	otherKey := CacheKey(SourceUpload, "m2", "", sanitize.Options{})

	require.NoError(t, cache.Put(lightKey, "m1", pipeline.Result{PlainText: "l"}))
	require.NoError(t, cache.Put(darkKey, "m1", pipeline.Result{PlainText: "d"}))
	require.NoError(t, cache.Put(otherKey, "m2", pipeline.Result{PlainText: "o"}))

	require.NoError(t, cache.Invalidate("m1"))

	for _, key := range []string{lightKey, darkKey} {
		_, ok, err := cache.Get(key)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	_, ok, err := cache.Get(otherKey)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeleteMessage_DropsCachedRenders(t *testing.T) {
	database := SetupTestDB(t)
	cache := NewRenderCache(database, time.Hour)
	ids := InsertTestMessages(t, database, CreateTestMessage("s", "a@example.com", "b"))
	key := CacheKey(SourceUpload, ids[0], "", sanitize.Options{})
	require.NoError(t, cache.Put(key, ids[0], pipeline.Result{PlainText: "b"}))

	require.NoError(t, database.DeleteMessage(ids[0]))

	_, ok, err := cache.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)
}
