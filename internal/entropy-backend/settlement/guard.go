package settlement

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/entropy-casino-backend/internal/entropy-backend/pending"
)

// Guard estende o claim da tabela para várias instâncias do processo
type Guard interface {
	Acquire(ctx context.Context, requestID [32]byte) (bool, error)
}

// RedisGuard usa SETNX settled:<requestId>; a chave expira depois de ttl
type RedisGuard struct {
	r   *redis.Client
	ttl time.Duration
}

func NewRedisGuard(r *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisGuard{r: r, ttl: ttl}
}

func GuardKey(requestID [32]byte) string { return "settled:" + pending.IDString(requestID) }

func (g *RedisGuard) Acquire(ctx context.Context, requestID [32]byte) (bool, error) {
	return g.r.SetNX(ctx, GuardKey(requestID), time.Now().Unix(), g.ttl).Result()
}
