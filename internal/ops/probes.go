package ops

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
)

// DatabaseProbe checks Postgres connectivity via a pool-level ping.
type DatabaseProbe struct {
	pool *pgxpool.Pool
}

func NewDatabaseProbe(pool *pgxpool.Pool) *DatabaseProbe {
	return &DatabaseProbe{pool: pool}
}

func (p *DatabaseProbe) Name() string { return "database" }

func (p *DatabaseProbe) Check(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// RedisProbe checks connectivity to the Redis instance backing job locks.
type RedisProbe struct {
	client *redis.Client
}

func NewRedisProbe(client *redis.Client) *RedisProbe {
	return &RedisProbe{client: client}
}

func (p *RedisProbe) Name() string { return "redis" }

func (p *RedisProbe) Check(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// compile-time checks
var (
	_ HealthProbe = (*DatabaseProbe)(nil)
	_ HealthProbe = (*RedisProbe)(nil)
)
