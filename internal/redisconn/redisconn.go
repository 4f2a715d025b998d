// Package redisconn opens the shared Redis client handed to internal/cache
// and internal/matchqueue. Grounded on internal/redis/redis.go.
package redisconn

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Connect parses redisURL and verifies the connection with a ping.
func Connect(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return client, nil
}
