package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bordumb/RadicleApp/internal/common/logger"
	"github.com/bordumb/RadicleApp/internal/db"
	"github.com/bordumb/RadicleApp/internal/radicle"
)

const (
	testRID    = "rad:z3gqcJUoA1n9HaHKufZs5FCSGazv5"
	testCommit = "f2de534b5e81d7c6e2dcaf58c3dd91573c0a0354"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock { return &clock{t: time.Unix(1700000000, 0)} }

func newSQLiteStore(t *testing.T, path string) *SQLiteStore {
	t.Helper()
	pool, err := db.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	store, err := NewSQLiteStore(context.Background(), pool)
	require.NoError(t, err)
	return store
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	c, err := New(Options{TTL: time.Minute, Logger: logger.Nop()})
	require.NoError(t, err)
	c.now = clk.now

	require.NoError(t, c.Set(ctx, "k", []string{"a", "b"}))
	var got []string
	ok, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got)

	clk.advance(time.Minute)
	ok, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c, err := New(Options{MemoryEntries: 2, Logger: logger.Nop()})
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "a", 1))
	require.NoError(t, c.Set(ctx, "b", 2))
	var v int
	ok, _ := c.Get(ctx, "a", &v)
	require.True(t, ok)
	require.NoError(t, c.Set(ctx, "c", 3))

	assert.Equal(t, 2, c.Len())
	ok, _ = c.Get(ctx, "b", &v)
	assert.False(t, ok, "b was least recently used")
	ok, _ = c.Get(ctx, "a", &v)
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestSQLiteLayerSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	clk := newClock()

	first, err := New(Options{TTL: time.Hour, Compress: true, Store: newSQLiteStore(t, path), Logger: logger.Nop()})
	require.NoError(t, err)
	first.now = clk.now
	defer first.Close()
	page := radicle.DiffPage{Files: []radicle.FileDiff{{Path: "src/main.rs", Status: radicle.StatusModified}}}
	require.NoError(t, first.Set(ctx, "diff:page", page))

	second, err := New(Options{TTL: time.Hour, Compress: true, Store: newSQLiteStore(t, path), Logger: logger.Nop()})
	require.NoError(t, err)
	second.now = clk.now
	defer second.Close()

	var got radicle.DiffPage
	ok, err := second.Get(ctx, "diff:page", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, page, got)
	assert.Equal(t, 1, second.Len(), "sqlite hits are promoted to memory")
}

func TestPurgeRemovesExpiredRows(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	c, err := New(Options{TTL: time.Minute, Store: newSQLiteStore(t, filepath.Join(t.TempDir(), "cache.db")), Logger: logger.Nop()})
	require.NoError(t, err)
	c.now = clk.now

	require.NoError(t, c.Set(ctx, "old", "x"))
	clk.advance(30 * time.Second)
	require.NoError(t, c.Set(ctx, "new", "y"))
	clk.advance(45 * time.Second)

	n, err := c.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, c.Len())

	var v string
	ok, err := c.Get(ctx, "new", &v)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "y", v)
}

func newCachingClient(t *testing.T) (*CachingClient, *radicle.MockClient) {
	t.Helper()
	c, err := New(Options{Logger: logger.Nop()})
	require.NoError(t, err)
	mock := radicle.NewMockClient()
	return NewCachingClient(mock, c, 50, logger.Nop()), mock
}

func TestCachingClientCachesCommitAddressedReads(t *testing.T) {
	ctx := context.Background()
	client, mock := newCachingClient(t)
	mock.AddTree(testRID, testCommit, "", radicle.Entry{Path: "src", Name: "src", Kind: radicle.KindDirectory})
	mock.AddDiffPage(testRID, testCommit, "", &radicle.DiffPage{Files: []radicle.FileDiff{{Path: "a"}}})

	for i := 0; i < 3; i++ {
		entries, err := client.ListDirectory(ctx, testRID, testCommit, "")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		page, err := client.GetDiffPage(ctx, testRID, testCommit, "")
		require.NoError(t, err)
		require.Len(t, page.Files, 1)
	}
	assert.Equal(t, 1, mock.ListDirectoryCalls(testRID, testCommit, ""))
	assert.Equal(t, 1, mock.DiffPageCalls(testRID, testCommit, ""))
}

func TestCachingClientSkipsSymbolicRevisions(t *testing.T) {
	ctx := context.Background()
	client, mock := newCachingClient(t)
	mock.AddTree(testRID, "main", "", radicle.Entry{Path: "README", Name: "README", Kind: radicle.KindFile})

	for i := 0; i < 2; i++ {
		_, err := client.ListDirectory(ctx, testRID, "main", "")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, mock.ListDirectoryCalls(testRID, "main", ""))
}

func TestCachingClientNeverCachesFailures(t *testing.T) {
	ctx := context.Background()
	client, mock := newCachingClient(t)
	mock.AddTree(testRID, testCommit, "src")
	mock.FailTree(testRID, testCommit, "src", radicle.NewNetworkError("list directory", errors.New("connection reset")))

	_, err := client.ListDirectory(ctx, testRID, testCommit, "src")
	require.Error(t, err)

	entries, err := client.ListDirectory(ctx, testRID, testCommit, "src")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 2, mock.ListDirectoryCalls(testRID, testCommit, "src"))
}

func TestCachingClientKeysDiffPagesByPageSize(t *testing.T) {
	ctx := context.Background()
	c, err := New(Options{Store: newSQLiteStore(t, filepath.Join(t.TempDir(), "cache.db")), Logger: logger.Nop()})
	require.NoError(t, err)
	defer c.Close()
	mock := radicle.NewMockClient()
	mock.AddDiffPage(testRID, testCommit, "2", &radicle.DiffPage{Files: []radicle.FileDiff{{Path: "b"}}})

	small := NewCachingClient(mock, c, 2, logger.Nop())
	_, err = small.GetDiffPage(ctx, testRID, testCommit, "2")
	require.NoError(t, err)
	_, err = small.GetDiffPage(ctx, testRID, testCommit, "2")
	require.NoError(t, err)
	assert.Equal(t, 1, mock.DiffPageCalls(testRID, testCommit, "2"))

	large := NewCachingClient(mock, c, 50, logger.Nop())
	_, err = large.GetDiffPage(ctx, testRID, testCommit, "2")
	require.NoError(t, err)
	assert.Equal(t, 2, mock.DiffPageCalls(testRID, testCommit, "2"), "a different page size misses the cache")
}

func TestIsCommitID(t *testing.T) {
	assert.True(t, isCommitID(testCommit))
	assert.False(t, isCommitID("main"))
	assert.False(t, isCommitID("zzde534b5e81d7c6e2dcaf58c3dd91573c0a0354"))
}
