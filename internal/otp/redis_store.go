package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps code hashes and attempt counters in redis with the code's
// TTL, so codes survive an API restart and expire on their own.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func codeKey(sessionID string) string     { return "otp:" + sessionID }
func attemptsKey(sessionID string) string { return "otp:" + sessionID + ":attempts" }

func (s *RedisStore) Save(ctx context.Context, sessionID, hash string, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, codeKey(sessionID), hash, ttl)
	pipe.Set(ctx, attemptsKey(sessionID), 0, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store otp: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (string, int, error) {
	hash, err := s.client.Get(ctx, codeKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", 0, ErrNotIssued
	}
	if err != nil {
		return "", 0, fmt.Errorf("failed to read otp: %w", err)
	}

	attempts, err := s.client.Get(ctx, attemptsKey(sessionID)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", 0, fmt.Errorf("failed to read otp attempts: %w", err)
	}

	return hash, attempts, nil
}

func (s *RedisStore) IncrAttempts(ctx context.Context, sessionID string) (int, error) {
	n, err := s.client.Incr(ctx, attemptsKey(sessionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment otp attempts: %w", err)
	}
	return int(n), nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, codeKey(sessionID), attemptsKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete otp: %w", err)
	}
	return nil
}
