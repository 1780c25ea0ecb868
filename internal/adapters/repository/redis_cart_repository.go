package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/storefront/core/internal/domain/entities"
	"github.com/storefront/core/internal/infrastructure/logger"
	"github.com/storefront/core/internal/ports"
)

const maxWatchRetries = 16

// redisReader is satisfied by both the client and a WATCH transaction
type redisReader interface {
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	HGetAll(ctx context.Context, key string) *redis.StringStringMapCmd
}

// RedisCartRepository keeps the cart store in two redis keys: a list holding
// visitor ids in mapping order and a hash from id to "computers,phones,printers".
//
// Update uses WATCH/MULTI, so writers in different processes never overwrite
// each other; a conflicting writer retries against the fresh store.
type RedisCartRepository struct {
	client    redis.UniversalClient
	orderKey  string
	countsKey string
	logger    *logger.Logger
}

// NewRedisCartRepository creates a redis-backed cart repository under keyPrefix
func NewRedisCartRepository(client redis.UniversalClient, keyPrefix string, appLogger *logger.Logger) ports.CartRepository {
	return &RedisCartRepository{
		client:    client,
		orderKey:  keyPrefix + ":visitors:order",
		countsKey: keyPrefix + ":visitors:counts",
		logger:    appLogger.WithComponent("redis_cart_repository"),
	}
}

func (r *RedisCartRepository) Load(ctx context.Context) (*entities.CartStore, error) {
	start := time.Now()
	store, err := r.load(ctx, r.client)
	r.logger.LogStoreOperation("load", storeLen(store), msSince(start), err)
	return store, err
}

func (r *RedisCartRepository) Persist(ctx context.Context, store *entities.CartStore) error {
	start := time.Now()
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.orderKey, r.countsKey)
		r.write(ctx, pipe, store.Records())
		return nil
	})
	if err != nil {
		err = fmt.Errorf("persist cart store: %w", err)
	}
	r.logger.LogStoreOperation("persist", store.Len(), msSince(start), err)
	return err
}

// Update writes only the records fn added or changed
func (r *RedisCartRepository) Update(ctx context.Context, fn func(store *entities.CartStore) error) error {
	txf := func(tx *redis.Tx) error {
		store, err := r.load(ctx, tx)
		if err != nil {
			return err
		}

		before := make(map[string]entities.Counts, store.Len())
		for _, rec := range store.Records() {
			before[rec.ID] = rec.Counts
		}

		if err := fn(store); err != nil {
			return err
		}

		var newIDs []interface{}
		var changed []entities.VisitorRecord
		for _, rec := range store.Records() {
			old, ok := before[rec.ID]
			if !ok {
				newIDs = append(newIDs, rec.ID)
			}
			if !ok || old != rec.Counts {
				changed = append(changed, rec)
			}
		}
		if len(changed) == 0 {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(newIDs) > 0 {
				pipe.RPush(ctx, r.orderKey, newIDs...)
			}
			pipe.HSet(ctx, r.countsKey, countsFields(changed)...)
			return nil
		})
		return err
	}

	for attempt := 1; attempt <= maxWatchRetries; attempt++ {
		err := r.client.Watch(ctx, txf, r.orderKey, r.countsKey)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		r.logger.Debugw("Cart store changed during update, retrying", "attempt", attempt)
	}
	return fmt.Errorf("update cart store: gave up after %d conflicting writers", maxWatchRetries)
}

func (r *RedisCartRepository) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCartRepository) load(ctx context.Context, c redisReader) (*entities.CartStore, error) {
	ids, err := c.LRange(ctx, r.orderKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read visitor order: %w", err)
	}
	counts, err := c.HGetAll(ctx, r.countsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("read visitor counts: %w", err)
	}
	if len(ids) != len(counts) {
		return nil, fmt.Errorf("%w: %d ordered ids but %d count entries", entities.ErrCorruptStore, len(ids), len(counts))
	}

	store := entities.NewCartStore()
	for _, id := range ids {
		value, ok := counts[id]
		if !ok {
			return nil, fmt.Errorf("%w: no counts for visitor %s", entities.ErrCorruptStore, id)
		}
		rec, err := parseRecordLine(id + "," + value)
		if err != nil {
			return nil, fmt.Errorf("%w: visitor %s: %v", entities.ErrCorruptStore, id, err)
		}
		if err := store.Insert(rec.ID, rec.Counts); err != nil {
			return nil, fmt.Errorf("%w: visitor %s: %v", entities.ErrCorruptStore, id, err)
		}
	}
	return store, nil
}

func (r *RedisCartRepository) write(ctx context.Context, pipe redis.Pipeliner, records []entities.VisitorRecord) {
	if len(records) == 0 {
		return
	}
	ids := make([]interface{}, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	pipe.RPush(ctx, r.orderKey, ids...)
	pipe.HSet(ctx, r.countsKey, countsFields(records)...)
}

func countsFields(records []entities.VisitorRecord) []interface{} {
	fields := make([]interface{}, 0, 2*len(records))
	for _, rec := range records {
		fields = append(fields, rec.ID, fmt.Sprintf("%d,%d,%d", rec.Counts.Computers, rec.Counts.Phones, rec.Counts.Printers))
	}
	return fields
}
