// Command contentsync re-renders every blog post and guide into the cache so the
// site never waits on the content vendor.
package main

import (
	"context"
	"os"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"realty_site/internal/adapters/craft"
	"realty_site/internal/adapters/observability"
	redisad "realty_site/internal/adapters/redis"
	"realty_site/internal/app"
	"realty_site/internal/domain"
	"realty_site/internal/shared"
)

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	log.Info().
		Str("base", cfg.CraftBase).
		Int("workers", cfg.ContentWorkers).
		Msg("contentsync starting")

	if cfg.RedisAddr == "" {
		log.Fatal().Msg("REDIS_ADDR is required to warm the content cache")
	}
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()
	if err := cache.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("redis ping failed")
	}

	svc := app.NewContentService(
		craft.New(cfg.CraftBase, cfg.CraftToken),
		cache,
		shared.NewRetrier(cfg.RetryMax, cfg.RetryBase),
		app.ContentOptionsFrom(cfg),
	)

	workers := cfg.ContentWorkers
	if workers <= 0 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	var (
		wg     sync.WaitGroup
		failed atomic.Int64
	)

	for _, kind := range []domain.ContentKind{domain.KindBlog, domain.KindGuides} {
		list, err := svc.Refresh(ctx, kind)
		if err != nil {
			log.Warn().Str("kind", string(kind)).Err(err).Msg("list refresh failed")
			failed.Add(1)
			continue
		}
		log.Info().Str("kind", string(kind)).Int("articles", len(list)).Msg("list refreshed")

		for _, a := range list {
			// acquire before launching the goroutine; release inside it
			if err := sem.Acquire(ctx, 1); err != nil {
				log.Fatal().Err(err).Msg("semaphore acquire failed")
			}

			wg.Add(1)
			go func(kind domain.ContentKind, slug string) {
				defer wg.Done()
				defer sem.Release(1)

				if _, err := svc.RefreshArticle(ctx, kind, slug); err != nil {
					failed.Add(1)
					log.Warn().Str("kind", string(kind)).Str("slug", slug).Err(err).Msg("article refresh failed")
					return
				}
				log.Debug().Str("kind", string(kind)).Str("slug", slug).Msg("article refreshed")
			}(kind, a.Slug)
		}
	}

	wg.Wait()
	if n := failed.Load(); n > 0 {
		log.Error().Int64("failures", n).Msg("contentsync finished with failures")
		os.Exit(1)
	}
	log.Info().Msg("contentsync completed")
}
