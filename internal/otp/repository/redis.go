package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"identity-service/internal/otp/domain"
)

const redisKeyPrefix = "identity:otp:"

// RedisRepository stores one hash per phone with fields code_hash and expires_at (unix ms).
// Keys are kept for retention past expiry so a late verification still reports expiry.
type RedisRepository struct {
	client    redis.UniversalClient
	retention time.Duration
}

// NewRedisRepository returns an OTP challenge repository backed by client.
func NewRedisRepository(client redis.UniversalClient, retention time.Duration) *RedisRepository {
	return &RedisRepository{client: client, retention: retention}
}

// Get returns the challenge for phone, or nil if the key does not exist.
func (r *RedisRepository) Get(ctx context.Context, phone string) (*domain.Challenge, error) {
	vals, err := r.client.HGetAll(ctx, redisKeyPrefix+phone).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}
	ms, err := strconv.ParseInt(vals["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("otp record %s: %w", phone, err)
	}
	return &domain.Challenge{Phone: phone, CodeHash: vals["code_hash"], ExpiresAt: time.UnixMilli(ms).UTC()}, nil
}

// Upsert overwrites the challenge for c.Phone and resets the key TTL.
func (r *RedisRepository) Upsert(ctx context.Context, c *domain.Challenge) error {
	if c == nil || c.Phone == "" {
		return errors.New("otp challenge requires a phone")
	}
	key := redisKeyPrefix + c.Phone
	ttl := time.Until(c.ExpiresAt) + r.retention
	if ttl <= 0 {
		ttl = r.retention
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "code_hash", c.CodeHash, "expires_at", strconv.FormatInt(c.ExpiresAt.UnixMilli(), 10))
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	return err
}
