package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/musayazlik/postify/internal/entity"

	"github.com/redis/go-redis/v9"
)

const defaultCodeKeyPrefix = "verification_code:"

// consumeCodeScript deletes the hash only when the code matches and
// expires_at (unix millis) is still after ARGV[2].
var consumeCodeScript = redis.NewScript(`
local stored = redis.call("HGET", KEYS[1], "code")
if not stored or stored ~= ARGV[1] then
  return 0
end
local expires = tonumber(redis.call("HGET", KEYS[1], "expires_at"))
if not expires or expires <= tonumber(ARGV[2]) then
  return 0
end
redis.call("DEL", KEYS[1])
return 1
`)

type redisVerificationCodeRepository struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisVerificationCodeRepository(client redis.UniversalClient, prefix string) VerificationCodeRepository {
	if prefix == "" {
		prefix = defaultCodeKeyPrefix
	}
	return &redisVerificationCodeRepository{client: client, prefix: prefix}
}

func (r *redisVerificationCodeRepository) Replace(ctx context.Context, code *entity.VerificationCode) error {
	key := r.key(code.Email)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"code", code.Code,
			"expires_at", code.ExpiresAt.UnixMilli(),
			"created_at", code.CreatedAt.UnixMilli(),
		)
		if ttl := code.ExpiresAt.Sub(code.CreatedAt); ttl > 0 {
			pipe.PExpire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store verification code: %w", err)
	}
	return nil
}

func (r *redisVerificationCodeRepository) Consume(ctx context.Context, email string, code string, now time.Time) (bool, error) {
	result, err := consumeCodeScript.Run(ctx, r.client, []string{r.key(email)}, code, now.UnixMilli()).Int64()
	if err != nil {
		return false, fmt.Errorf("consume verification code: %w", err)
	}
	return result == 1, nil
}

// DeleteExpired is a no-op: keys carry a TTL and expire on their own.
func (r *redisVerificationCodeRepository) DeleteExpired(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (r *redisVerificationCodeRepository) key(email string) string {
	return r.prefix + email
}
