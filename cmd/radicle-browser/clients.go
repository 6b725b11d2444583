package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bordumb/RadicleApp/internal/cache"
	"github.com/bordumb/RadicleApp/internal/common/config"
	"github.com/bordumb/RadicleApp/internal/common/logger"
	"github.com/bordumb/RadicleApp/internal/db"
	"github.com/bordumb/RadicleApp/internal/localgit"
	"github.com/bordumb/RadicleApp/internal/radicle"
)

const purgeInterval = time.Minute

// provideClients builds the seed client, wraps it in the response cache when
// enabled and picks the content fetcher trees and diffs load through.
func provideClients(ctx context.Context, cfg *config.Config, log *logger.Logger) (radicle.Client, radicle.ContentFetcher, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var client radicle.Client = radicle.NewHTTPClient(radicle.HTTPClientConfig{
		BaseURL:      cfg.Radicle.BaseURL(),
		Timeout:      cfg.Radicle.RequestTimeoutDuration(),
		DiffPageSize: cfg.Radicle.DiffPageSize,
		UserAgent:    cfg.Radicle.UserAgent,
	}, log)

	if cfg.Cache.Enabled {
		c, err := provideCache(ctx, cfg, log, &cleanups)
		if err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		client = cache.NewCachingClient(client, c, cfg.Radicle.DiffPageSize, log)
	}

	var fetcher radicle.ContentFetcher = client
	if cfg.LocalGit.RepoPath != "" {
		local, err := localgit.Open(cfg.LocalGit.RepoPath, cfg.LocalGit.RepoID, cfg.Radicle.DiffPageSize, log)
		if err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		log.Info("Serving trees and diffs from local clone",
			zap.String("path", cfg.LocalGit.RepoPath),
			zap.String("repo_id", cfg.LocalGit.RepoID))
		fetcher = local
	}
	return client, fetcher, cleanup, nil
}

func provideCache(ctx context.Context, cfg *config.Config, log *logger.Logger, cleanups *[]func()) (*cache.Cache, error) {
	opts := cache.Options{
		TTL:           cfg.Cache.TTL(),
		MemoryEntries: cfg.Cache.MemoryEntries,
		Compress:      cfg.Cache.Compress,
		Logger:        log,
	}
	if cfg.Cache.DBPath != "" {
		pool, err := db.Open(cfg.Cache.DBPath)
		if err != nil {
			return nil, err
		}
		*cleanups = append(*cleanups, func() { _ = pool.Close() })
		store, err := cache.NewSQLiteStore(ctx, pool)
		if err != nil {
			return nil, err
		}
		opts.Store = store
	}

	c, err := cache.New(opts)
	if err != nil {
		return nil, err
	}
	*cleanups = append(*cleanups, c.Close)
	go purgeLoop(ctx, c, log)
	return c, nil
}

func purgeLoop(ctx context.Context, c *cache.Cache, log *logger.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.Purge(ctx)
			if err != nil {
				log.Warn("cache purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Debug("purged expired cache entries", zap.Int64("count", n))
			}
		}
	}
}
