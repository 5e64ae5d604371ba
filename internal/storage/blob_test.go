package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bobmcallan/snaptrail/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestBlobLogger creates a logger for blob tests.
func newTestBlobLogger() *common.Logger {
	return common.NewLogger("error")
}

func newTestFileBlobStore(t *testing.T) (*FileBlobStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewFileBlobStore(newTestBlobLogger(), dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, dir
}

func TestFileBlobStore_CreateGet(t *testing.T) {
	store, dir := newTestFileBlobStore(t)
	ctx := context.Background()
	key := "holdings_jsonl/A/2025-01-03.jsonl"
	data := []byte("{\"kind\":\"header\"}\n")

	require.NoError(t, store.Create(ctx, key, data))

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.FileExists(t, filepath.Join(dir, "holdings_jsonl", "A", "2025-01-03.jsonl"))

	// No temp files left behind
	entries, err := os.ReadDir(filepath.Join(dir, "holdings_jsonl", "A"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileBlobStore_CreateExisting(t *testing.T) {
	store, _ := newTestFileBlobStore(t)
	ctx := context.Background()
	key := "funds_jsonl/A/2025-01-03.jsonl"

	require.NoError(t, store.Create(ctx, key, []byte("first")))
	err := store.Create(ctx, key, []byte("second"))
	assert.ErrorIs(t, err, ErrBlobExists)

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))
}

func TestFileBlobStore_CreateReplacesEmptyFile(t *testing.T) {
	store, dir := newTestFileBlobStore(t)
	ctx := context.Background()

	path := filepath.Join(dir, "holdings_jsonl", "A", "2025-01-03.jsonl")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, nil, 0644))

	exists, err := store.Exists(ctx, "holdings_jsonl/A/2025-01-03.jsonl")
	require.NoError(t, err)
	assert.False(t, exists, "empty file does not count")

	require.NoError(t, store.Create(ctx, "holdings_jsonl/A/2025-01-03.jsonl", []byte("data")))
	got, err := store.Get(ctx, "holdings_jsonl/A/2025-01-03.jsonl")
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))
}

func TestFileBlobStore_CreateReplacesBlankFile(t *testing.T) {
	store, dir := newTestFileBlobStore(t)
	ctx := context.Background()
	key := "funds_jsonl/A/2025-01-03.jsonl"

	path := filepath.Join(dir, "funds_jsonl", "A", "2025-01-03.jsonl")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(" \n\n"), 0644))

	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists, "whitespace-only file does not count")

	require.NoError(t, store.Create(ctx, key, []byte("data")))
	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))

	assert.ErrorIs(t, store.Create(ctx, key, []byte("other")), ErrBlobExists)
}

func TestFileBlobStore_ConcurrentCreateSingleWinner(t *testing.T) {
	store, _ := newTestFileBlobStore(t)
	ctx := context.Background()
	key := "holdings_jsonl/A/2025-01-03.jsonl"

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.Create(ctx, key, []byte{byte('a' + i)})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrBlobExists)
		}
	}
	assert.Equal(t, 1, wins)
}

func TestFileBlobStore_GetNotFound(t *testing.T) {
	store, _ := newTestFileBlobStore(t)
	_, err := store.Get(context.Background(), "nonexistent.jsonl")
	assert.ErrorIs(t, err, ErrBlobNotFound)
}

func TestFileBlobStore_PathTraversal(t *testing.T) {
	store, dir := newTestFileBlobStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "../../etc/escape.jsonl", []byte("x")))
	assert.FileExists(t, filepath.Join(dir, "etc", "escape.jsonl"))
}

func TestFileBlobStore_List(t *testing.T) {
	store, _ := newTestFileBlobStore(t)
	ctx := context.Background()

	for _, key := range []string{
		"holdings_jsonl/A/2025-01-03.jsonl",
		"holdings_jsonl/A/2025-01-02.jsonl",
		"holdings_jsonl/B/2025-01-03.jsonl",
		"funds_jsonl/A/2025-01-03.jsonl",
	} {
		require.NoError(t, store.Create(ctx, key, []byte("x")))
	}

	res, err := store.List(ctx, ListOptions{Prefix: "holdings_jsonl/A/"})
	require.NoError(t, err)
	require.Len(t, res.Blobs, 2)
	assert.Equal(t, "holdings_jsonl/A/2025-01-02.jsonl", res.Blobs[0].Key)
	assert.False(t, res.Truncated)

	res, err = store.List(ctx, ListOptions{Prefix: "holdings_jsonl/", MaxKeys: 2})
	require.NoError(t, err)
	assert.Len(t, res.Blobs, 2)
	assert.True(t, res.Truncated)

	res, err = store.List(ctx, ListOptions{Prefix: "missing/"})
	require.NoError(t, err)
	assert.Empty(t, res.Blobs)
}

func TestNewBlobStore_Factory(t *testing.T) {
	logger := newTestBlobLogger()

	store, err := NewBlobStore(context.Background(), logger, common.RawConfig{Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileBlobStore{}, store)

	_, err = NewBlobStore(context.Background(), logger, common.RawConfig{Backend: "gcs"})
	assert.Error(t, err)

	_, err = NewBlobStore(context.Background(), logger, common.RawConfig{Backend: common.BackendS3})
	assert.Error(t, err, "bucket required")
}
