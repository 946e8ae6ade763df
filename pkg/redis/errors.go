package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

var (
	ErrEmptyConnectionURL           = errors.New("redis: REDIS_URL is empty")
	ErrFailedToParseRedisConnString = errors.New("redis: invalid connection URL")
	ErrRedisNotReady                = errors.New("redis: server did not answer PING in time")
	ErrHealthcheckFailed            = errors.New("redis: healthcheck failed")
)

// Healthcheck pings the server. Works with any UniversalClient so cluster
// deployments can back the rate limit store too.
func Healthcheck(client redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		err := client.Ping(ctx).Err()
		if err == nil {
			return nil
		}
		return errors.Join(ErrHealthcheckFailed, err)
	}
}
