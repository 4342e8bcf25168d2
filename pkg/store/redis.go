package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Mindburn-Labs/turnkernel/pkg/thread"
)

// DefaultRedisTTL expires abandoned threads.
const DefaultRedisTTL = 24 * time.Hour

// RedisStore keeps thread state under "turnkernel:thread:<id>" with a TTL
// refreshed on every save.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a store backed by Redis.
func NewRedisStore(addr, password string, db int, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisStore{client: rdb, ttl: ttl}
}

func redisKey(threadID string) string { return "turnkernel:thread:" + threadID }

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the client.
func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) Load(ctx context.Context, threadID string) (thread.State, error) {
	if err := checkID(threadID); err != nil {
		return thread.State{}, err
	}
	b, err := s.client.Get(ctx, redisKey(threadID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return thread.State{}, nil
	}
	if err != nil {
		return thread.State{}, fmt.Errorf("store: redis load %s: %w", threadID, err)
	}
	return decode(b)
}

func (s *RedisStore) Save(ctx context.Context, threadID string, st thread.State) error {
	if err := checkID(threadID); err != nil {
		return err
	}
	if st.Empty() {
		return s.Delete(ctx, threadID)
	}
	b, err := encode(st)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKey(threadID), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("store: redis save %s: %w", threadID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, threadID string) error {
	if err := checkID(threadID); err != nil {
		return err
	}
	if err := s.client.Del(ctx, redisKey(threadID)).Err(); err != nil {
		return fmt.Errorf("store: redis delete %s: %w", threadID, err)
	}
	return nil
}
