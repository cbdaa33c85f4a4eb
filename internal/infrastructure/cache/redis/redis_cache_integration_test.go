//go:build integration

package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/dreschagin/vitals-bridge/internal/application/port"
)

func TestRedisCacheIntegration(t *testing.T) {
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		host = "localhost"
	}

	cache, err := NewRedisCache(Options{
		Host:         host,
		Port:         "6379",
		PoolSize:     2,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	if err != nil {
		t.Skipf("redis is not available: %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	key := "vitals:test:" + time.Now().Format("150405.000000")

	var missing map[string]string
	if err := cache.Get(ctx, key, &missing); !errors.Is(err, port.ErrCacheMiss) {
		t.Fatalf("Get() error = %v, want ErrCacheMiss", err)
	}

	if err := cache.Set(ctx, key, map[string]string{"kind": "CLS"}, 10*time.Second); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var got map[string]string
	if err := cache.Get(ctx, key, &got); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got["kind"] != "CLS" {
		t.Fatalf("Get() = %v", got)
	}

	n, err := cache.DeletePattern(ctx, "vitals:test:*")
	if err != nil || n < 1 {
		t.Fatalf("DeletePattern() = %d, %v", n, err)
	}
}
