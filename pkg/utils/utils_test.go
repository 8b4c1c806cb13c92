package utils

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *AssetStore {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "assetstore-test-*")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			t.Logf("Error removing temp dir: %v", err)
		}
	})
	store, err := OpenAssetStore(filepath.Join(tmpDir, "assets.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAssetStore(t *testing.T) {
	store := openTestStore(t)

	val, err := store.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, val)

	require.NoError(t, store.Put("map", []byte("png-bytes")))
	val, err = store.Get("map")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), val)

	require.NoError(t, store.Delete("map"))
	val, err = store.Get("map")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestAssetStorePersistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "assets.db")
	store, err := OpenAssetStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Put("k", []byte("v")))
	require.NoError(t, store.Close())

	store, err = OpenAssetStore(dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	val, err := store.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)
}

func TestCacheKey(t *testing.T) {
	tests := []struct {
		source, prefix, want string
	}{
		{"https://example.com/data/world.png", "", "world.png@https://example.com/data/world.png"},
		{"https://example.com/data/world.png", "[ASSETS]", "ASSETS_world.png@https://example.com/data/world.png"},
		{"https://example.com/cities.csv", "[world cities]", "world_cities_cities.csv@https://example.com/cities.csv"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CacheKey(tt.source, tt.prefix))
	}
}

func TestGetCachedReaderUsesStore(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		data, err := ReadSource(ctx, srv.URL+"/asset", store, "[TEST]")
		require.NoError(t, err)
		assert.Equal(t, "payload", string(data))
	}
	assert.Equal(t, int32(1), hits.Load())

	_, err := ReadSource(ctx, srv.URL+"/missing", store, "[TEST]")
	assert.ErrorIs(t, err, ErrNotFound)

	// Without a store every read goes to the server.
	r, err := GetCachedReader(ctx, srv.URL+"/asset", nil, "[TEST]")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "payload", string(data))
	assert.Equal(t, int32(2), hits.Load())

	_, err = GetCachedReader(ctx, srv.URL+"/missing", nil, "[TEST]")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEvictCached(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	store := openTestStore(t)
	ctx := context.Background()
	url := srv.URL + "/asset"

	_, err := ReadSource(ctx, url, store, "[TEST]")
	require.NoError(t, err)
	require.NoError(t, EvictCached(url, store, "[TEST]"))
	val, err := store.Get(CacheKey(url, "[TEST]"))
	require.NoError(t, err)
	assert.Nil(t, val)

	_, err = ReadSource(ctx, url, store, "[TEST]")
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())

	assert.NoError(t, EvictCached(url, nil, "[TEST]"))
	assert.NoError(t, EvictCached("data/map.png", store, "[TEST]"))
}

func TestGetCachedReaderLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locations.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o644))

	data, err := ReadSource(context.Background(), path, nil, "[TEST]")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	_, err = ReadSource(context.Background(), filepath.Join(t.TempDir(), "nope.json"), nil, "[TEST]")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFetchURLHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := FetchURL(ctx, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
}
