package cache

import (
	"context"
	"encoding/hex"
	"strconv"

	"go.uber.org/zap"

	"github.com/bordumb/RadicleApp/internal/common/logger"
	"github.com/bordumb/RadicleApp/internal/radicle"
)

// CachingClient decorates a radicle.Client. Reads addressed by an immutable
// commit id are served from the cache; failures are never cached.
type CachingClient struct {
	radicle.Client
	cache        *Cache
	diffPageSize int
	logger       *logger.Logger
}

// NewCachingClient wraps next with cache. diffPageSize is the page size next
// requests diffs with; it is part of every diff page key so pages cut at
// different sizes never mix.
func NewCachingClient(next radicle.Client, cache *Cache, diffPageSize int, log *logger.Logger) *CachingClient {
	if log == nil {
		log = logger.Default()
	}
	return &CachingClient{
		Client:       next,
		cache:        cache,
		diffPageSize: diffPageSize,
		logger:       log.WithFields(zap.String("component", "caching-client")),
	}
}

// isCommitID reports whether rev is a full object id. Branch names and other
// symbolic revisions move, so their listings are not cached.
func isCommitID(rev string) bool {
	if len(rev) != 40 && len(rev) != 64 {
		return false
	}
	_, err := hex.DecodeString(rev)
	return err == nil
}

func (c *CachingClient) ListDirectory(ctx context.Context, repoID, revision, path string) ([]radicle.Entry, error) {
	if !isCommitID(revision) {
		return c.Client.ListDirectory(ctx, repoID, revision, path)
	}
	key := "tree:" + repoID + ":" + revision + ":" + path
	var entries []radicle.Entry
	if c.lookup(ctx, key, &entries) {
		return entries, nil
	}
	entries, err := c.Client.ListDirectory(ctx, repoID, revision, path)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, entries)
	return entries, nil
}

func (c *CachingClient) GetDiffPage(ctx context.Context, repoID, commitID, pageToken string) (*radicle.DiffPage, error) {
	if !isCommitID(commitID) {
		return c.Client.GetDiffPage(ctx, repoID, commitID, pageToken)
	}
	key := "diff:" + strconv.Itoa(c.diffPageSize) + ":" + repoID + ":" + commitID + ":" + pageToken
	var page radicle.DiffPage
	if c.lookup(ctx, key, &page) {
		return &page, nil
	}
	fetched, err := c.Client.GetDiffPage(ctx, repoID, commitID, pageToken)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, fetched)
	return fetched, nil
}

func (c *CachingClient) GetBlob(ctx context.Context, repoID, revision, path string) (*radicle.Blob, error) {
	if !isCommitID(revision) {
		return c.Client.GetBlob(ctx, repoID, revision, path)
	}
	key := "blob:" + repoID + ":" + revision + ":" + path
	var blob radicle.Blob
	if c.lookup(ctx, key, &blob) {
		return &blob, nil
	}
	fetched, err := c.Client.GetBlob(ctx, repoID, revision, path)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, fetched)
	return fetched, nil
}

func (c *CachingClient) GetCommit(ctx context.Context, repoID, commitID string) (*radicle.Commit, error) {
	if !isCommitID(commitID) {
		return c.Client.GetCommit(ctx, repoID, commitID)
	}
	key := "commit:" + repoID + ":" + commitID
	var commit radicle.Commit
	if c.lookup(ctx, key, &commit) {
		return &commit, nil
	}
	fetched, err := c.Client.GetCommit(ctx, repoID, commitID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, fetched)
	return fetched, nil
}

// lookup treats cache read errors as misses.
func (c *CachingClient) lookup(ctx context.Context, key string, dst any) bool {
	ok, err := c.cache.Get(ctx, key, dst)
	if err != nil {
		c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return ok
}

func (c *CachingClient) store(ctx context.Context, key string, v any) {
	if err := c.cache.Set(ctx, key, v); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
