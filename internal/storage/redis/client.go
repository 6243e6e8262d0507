// Package redis stores combat snapshots in Redis, either as the primary
// backend or as a cache in front of PostgreSQL.
package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cory-johannsen/encounter/internal/config"
)

// Client is the go-redis surface used by this package. Both single-node and
// cluster clients satisfy it.
type Client interface {
	goredis.UniversalClient
}

// NewClient creates a client for the configured instance. go-redis dials
// lazily; call Ping to verify reachability.
//
// Precondition: cfg.Addr must be non-empty.
func NewClient(cfg config.RedisConfig) (Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis: addr is required")
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), nil
}

// Ping verifies the server answers.
func Ping(ctx context.Context, c Client) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pinging redis: %w", err)
	}
	return nil
}
