package app

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Pinger is the minimal surface shared by the database pool and the broker
// publisher for readiness probing.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BuildReadinessChecks returns one check per optional adapter. A nil
// argument yields a nil check, which ReadyzHandler skips; callers must pass
// nil (not a typed nil inside the interface) for unconfigured adapters.
func BuildReadinessChecks(pool Pinger, rdb *redis.Client, broker Pinger) (dbCheck, redisCheck, kafkaCheck func(ctx context.Context) error) {
	if pool != nil {
		dbCheck = pool.Ping
	}
	if rdb != nil {
		redisCheck = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
	}
	if broker != nil {
		kafkaCheck = broker.Ping
	}
	return dbCheck, redisCheck, kafkaCheck
}
