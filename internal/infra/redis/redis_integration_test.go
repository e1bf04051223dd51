//go:build integration

package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"tg2fa-relay/internal/config"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	c, err := NewClient(context.Background(), config.RedisConfig{URL: url})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRateLimiterAgainstRedis(t *testing.T) {
	ctx := context.Background()
	rl := NewRateLimiter(testClient(t))
	key := UserCommandKey(time.Now().UnixNano(), "start")

	for i := 0; i < 2; i++ {
		if ok, err := rl.Allow(ctx, key, 2, time.Minute); err != nil || !ok {
			t.Fatalf("call %d: expected allowed, got %v/%v", i, ok, err)
		}
	}
	if ok, _ := rl.Allow(ctx, key, 2, time.Minute); ok {
		t.Error("expected limit to apply")
	}
}
