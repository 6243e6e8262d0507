package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/cory-johannsen/encounter/internal/config"
	"github.com/cory-johannsen/encounter/internal/storage/redis"
)

// NewRedis starts an in-memory Redis server and a client connected to it.
// Both are closed by t.Cleanup.
func NewRedis(t *testing.T) (redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.NewClient(config.RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("creating redis client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}
