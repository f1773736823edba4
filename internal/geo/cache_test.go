package geo

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amass-me/locale-engine/internal/store"
	"github.com/amass-me/locale-engine/pkg/model"
)

var uae = model.Market{Code: "AE", DisplayName: "UAE"}

func TestCache_PutPersistsRecordLayout(t *testing.T) {
	st := store.NewMemory()
	c := NewCache(st, 0, nil)
	fetched := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	entry := c.Put(context.Background(), model.GeoLookupResult{Market: uae, FetchedAt: fetched})
	assert.Equal(t, fetched.Add(24*time.Hour), entry.ExpiresAt)

	var raw map[string]json.RawMessage
	require.NoError(t, st.GetJSON(context.Background(), CacheKey, &raw))
	assert.JSONEq(t, `{"code":"AE","name":"UAE"}`, string(raw["value"]))
	assert.Equal(t, "1772359200000", string(raw["ts"]))
}

func TestCache_Fresh(t *testing.T) {
	c := NewCache(nil, time.Hour, nil)
	now := time.Now()

	_, ok := c.Fresh(now)
	assert.False(t, ok)

	c.Put(context.Background(), model.GeoLookupResult{Market: uae, FetchedAt: now})
	res, ok := c.Fresh(now.Add(59 * time.Minute))
	require.True(t, ok)
	assert.Equal(t, "AE", res.Market.Code)

	_, ok = c.Fresh(now.Add(time.Hour))
	assert.False(t, ok, "entry expires exactly at ExpiresAt")

	e, ok := c.Entry()
	require.True(t, ok, "expired entry stays available")
	assert.Equal(t, "AE", e.Value.Market.Code)
}

func TestCache_RestoreAcrossInstances(t *testing.T) {
	st := store.NewMemory()
	fetched := time.Now().Add(-2 * time.Hour).Truncate(time.Millisecond)
	NewCache(st, 0, nil).Put(context.Background(), model.GeoLookupResult{Market: uae, FetchedAt: fetched})

	restored := NewCache(st, 0, nil)
	require.NoError(t, restored.Restore(context.Background()))

	res, ok := restored.Fresh(time.Now())
	require.True(t, ok)
	assert.Equal(t, "AE", res.Market.Code)
	assert.True(t, res.FetchedAt.Equal(fetched))
}

func TestCache_RestoreKeepsExpiredEntry(t *testing.T) {
	st := store.NewMemory()
	require.NoError(t, st.SetJSON(context.Background(), CacheKey, map[string]any{
		"value": map[string]string{"code": "CN", "name": "China"},
		"ts":    time.Now().Add(-48 * time.Hour).UnixMilli(),
	}))

	c := NewCache(st, 0, nil)
	require.NoError(t, c.Restore(context.Background()))

	_, fresh := c.Fresh(time.Now())
	assert.False(t, fresh)
	e, ok := c.Entry()
	require.True(t, ok)
	assert.Equal(t, "CN", e.Value.Market.Code)
}

func TestCache_RestoreMissingOrInvalid(t *testing.T) {
	st := store.NewMemory()
	c := NewCache(st, 0, nil)
	require.NoError(t, c.Restore(context.Background()))
	_, ok := c.Entry()
	assert.False(t, ok)

	require.NoError(t, st.SetJSON(context.Background(), CacheKey, map[string]any{"value": map[string]string{}, "ts": 0}))
	require.NoError(t, c.Restore(context.Background()))
	_, ok = c.Entry()
	assert.False(t, ok)
}

func TestCache_RestoreDoesNotOverwriteNewerLookup(t *testing.T) {
	st := store.NewMemory()
	require.NoError(t, st.SetJSON(context.Background(), CacheKey, map[string]any{
		"value": map[string]string{"code": "CN", "name": "China"},
		"ts":    time.Now().UnixMilli(),
	}))

	c := NewCache(st, 0, nil)
	c.entry.Store(&model.CacheEntry{
		Value:     model.GeoLookupResult{Market: uae, FetchedAt: time.Now()},
		ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, c.Restore(context.Background()))

	e, _ := c.Entry()
	assert.Equal(t, "AE", e.Value.Market.Code)
}
