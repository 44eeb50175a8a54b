package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"parkshare/pkg/logger"
)

const (
	idempotencyKeyPrefix      = "idempotency:"
	idempotencyInflightPrefix = "idempotency:inflight:"
)

// RedisIdempotencyStore shares cached responses between API replicas.
type RedisIdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
	log *logger.Logger
}

func NewRedisIdempotencyStore(rdb *redis.Client, ttl time.Duration, log *logger.Logger) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{rdb: rdb, ttl: ttl, log: log}
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (*CachedResponse, bool) {
	raw, err := s.rdb.Get(ctx, idempotencyKeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Error("Failed to read idempotency entry", "error", err)
		}
		return nil, false
	}

	var cached CachedResponse
	if err := json.Unmarshal(raw, &cached); err != nil {
		s.log.Error("Failed to decode idempotency entry", "error", err)
		return nil, false
	}
	return &cached, true
}

func (s *RedisIdempotencyStore) Set(ctx context.Context, key string, response *CachedResponse) {
	response.CreatedAt = time.Now()
	raw, err := json.Marshal(response)
	if err != nil {
		s.log.Error("Failed to encode idempotency entry", "error", err)
		return
	}
	if err := s.rdb.Set(ctx, idempotencyKeyPrefix+key, raw, s.ttl).Err(); err != nil {
		s.log.Error("Failed to store idempotency entry", "error", err)
	}
}

// Reserve claims key with SET NX. When redis cannot answer the request runs
// anyway; ledger references still keep a duplicate from charging twice.
func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key string) bool {
	ok, err := s.rdb.SetNX(ctx, idempotencyInflightPrefix+key, time.Now().Unix(), inflightTTL).Result()
	if err != nil {
		s.log.Error("Failed to reserve idempotency key", "error", err)
		return true
	}
	return ok
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) {
	if err := s.rdb.Del(ctx, idempotencyInflightPrefix+key).Err(); err != nil {
		s.log.Warn("Failed to release idempotency key", "error", err)
	}
}

// Stop is a no-op; the redis client is closed with the other connections.
func (s *RedisIdempotencyStore) Stop() {}
