package auth

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
)

const tokenBlacklistPrefix = "parlour:token:blacklist:"

// Revoker 记录已注销的令牌
type Revoker interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type RedisRevoker struct {
	rdb     *redis.Client
	timeout time.Duration
}

func NewRedisRevoker(rdb *redis.Client, timeout time.Duration) *RedisRevoker {
	return &RedisRevoker{rdb: rdb, timeout: timeout}
}

func (r *RedisRevoker) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		// 已经过期的令牌无需记录
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.rdb.Set(ctx, tokenBlacklistPrefix+jti, "revoked", ttl).Err(); err != nil {
		return goerr.Wrap(err, "failed to revoke token", goerr.V("jti", jti))
	}
	return nil
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, jti string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	exists, err := r.rdb.Exists(ctx, tokenBlacklistPrefix+jti).Result()
	if err != nil {
		return false, goerr.Wrap(err, "failed to check token blacklist", goerr.V("jti", jti))
	}
	return exists > 0, nil
}
