package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"bds-membership/internal/domain/model"
	"bds-membership/internal/domain/ports/repository"
	"bds-membership/internal/infra/metrics"
	red "bds-membership/internal/infra/redis"
)

var (
	_ repository.SubscriptionPlanRepository = (*planRepoCacheDecorator)(nil)
	_ repository.EventRepository            = (*eventRepoCacheDecorator)(nil)
)

type planRepoCacheDecorator struct {
	inner repository.SubscriptionPlanRepository
	cache red.RedisClient
	ttl   time.Duration
	log   zerolog.Logger
}

// NewPlanRepoCacheDecorator caches plan reads outside transactions. Reads
// inside a transaction always go to the database so row locks still apply.
func NewPlanRepoCacheDecorator(inner repository.SubscriptionPlanRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.SubscriptionPlanRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &planRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   logger.With().Str("component", "planCache").Logger(),
	}
}

func (d *planRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPlan, error) {
	if tx != repository.NoTX {
		return d.inner.FindByID(ctx, tx, id)
	}
	var plan model.SubscriptionPlan
	return cached(ctx, d.cache, d.log, "plan", fmt.Sprintf("plan:%s", id), d.ttl, &plan, func() (*model.SubscriptionPlan, error) {
		return d.inner.FindByID(ctx, tx, id)
	})
}

type eventRepoCacheDecorator struct {
	inner repository.EventRepository
	cache red.RedisClient
	ttl   time.Duration
	log   zerolog.Logger
}

// NewEventRepoCacheDecorator caches event rows (title and price columns).
// Keep ttl short: admins edit prices while registration is open.
func NewEventRepoCacheDecorator(inner repository.EventRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.EventRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &eventRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   logger.With().Str("component", "eventCache").Logger(),
	}
}

func (d *eventRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Event, error) {
	if tx != repository.NoTX {
		return d.inner.FindByID(ctx, tx, id)
	}
	var ev model.Event
	return cached(ctx, d.cache, d.log, "event", fmt.Sprintf("event:%s", id), d.ttl, &ev, func() (*model.Event, error) {
		return d.inner.FindByID(ctx, tx, id)
	})
}

// cached is read-through: a hit decodes into dst, a miss loads and stores.
// Cache failures fall back to the loader.
func cached[T any](ctx context.Context, cache red.RedisClient, log zerolog.Logger, name, key string, ttl time.Duration, dst *T, load func() (*T, error)) (*T, error) {
	val, err := cache.Get(ctx, key)
	switch {
	case err == nil:
		if json.Unmarshal([]byte(val), dst) == nil {
			metrics.IncCacheRequest(name, "hit")
			return dst, nil
		}
		log.Warn().Str("key", key).Msg("dropping undecodable cache entry")
		_ = cache.Del(ctx, key)
	case !errors.Is(err, red.Nil):
		metrics.IncCacheRequest(name, "error")
		log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	metrics.IncCacheRequest(name, "miss")
	v, err := load()
	if err != nil {
		return nil, err
	}
	if v != nil {
		if b, err := json.Marshal(v); err == nil {
			if err := cache.Set(ctx, key, b, ttl); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("cache write failed")
			}
		}
	}
	return v, nil
}
