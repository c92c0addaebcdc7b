package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"identity-service/internal/verification/domain"
)

const (
	redisKeyPrefix = "identity:verification:"

	fieldToken     = "token"
	fieldExpiresAt = "expires_at"
	fieldUsed      = "used"
)

// markUsedScript flips the used field from "0" to "1" atomically, only while the hash still
// holds the token in ARGV[1].
var markUsedScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "token") == ARGV[1] and redis.call("HGET", KEYS[1], "used") == "0" then
	redis.call("HSET", KEYS[1], "used", "1")
	return 1
end
return 0
`)

// RedisRepository stores one hash per email. Keys carry no TTL: like the table rows they are
// overwritten on refresh and never evicted, so a replayed link keeps reporting used or expired.
type RedisRepository struct {
	client redis.UniversalClient
}

// NewRedisRepository returns a verification token repository backed by client.
func NewRedisRepository(client redis.UniversalClient) *RedisRepository {
	return &RedisRepository{client: client}
}

func (r *RedisRepository) key(email string) string {
	return redisKeyPrefix + email
}

// Get returns the token for email, or nil if the key does not exist.
func (r *RedisRepository) Get(ctx context.Context, email string) (*domain.Token, error) {
	vals, err := r.client.HGetAll(ctx, r.key(email)).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}
	expiresMs, err := strconv.ParseInt(vals[fieldExpiresAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("verification record %s: %w", email, err)
	}
	return &domain.Token{
		Email:     email,
		Token:     vals[fieldToken],
		ExpiresAt: time.UnixMilli(expiresMs).UTC(),
		Used:      vals[fieldUsed] == "1",
	}, nil
}

// Upsert overwrites the hash for t.Email and clears any TTL left on the key.
func (r *RedisRepository) Upsert(ctx context.Context, t *domain.Token) error {
	if t == nil || t.Email == "" {
		return errors.New("verification token requires an email")
	}
	used := "0"
	if t.Used {
		used = "1"
	}
	key := r.key(t.Email)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldToken, t.Token,
			fieldExpiresAt, strconv.FormatInt(t.ExpiresAt.UnixMilli(), 10),
			fieldUsed, used,
		)
		pipe.Persist(ctx, key)
		return nil
	})
	return err
}

// MarkUsed flips the used flag if the hash still holds token and is unused.
func (r *RedisRepository) MarkUsed(ctx context.Context, email, token string) (bool, error) {
	n, err := markUsedScript.Run(ctx, r.client, []string{r.key(email)}, token).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
