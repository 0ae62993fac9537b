package quota

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/email-campaign-agent/internal/store"
	"github.com/ignite/email-campaign-agent/internal/store/storetest"
)

func TestCount_WithoutRedisReadsThroughToStore(t *testing.T) {
	fake := storetest.New()
	fake.SendLog["camp"] = []store.RecipientLogEntry{
		{Account: "acme", SendTime: time.Now()},
		{Account: "acme", SendTime: time.Now()},
		{Account: "other", SendTime: time.Now()},
	}

	c := New(fake, nil)
	count, err := c.Count(context.Background(), "acme")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("Count() = %d, want 2", count)
	}
}

func TestRecordSend_NoopWithoutRedis(t *testing.T) {
	fake := storetest.New()
	c := New(fake, nil)
	c.RecordSend(context.Background(), "acme") // must not panic
}

func TestCount_CachesInRedisAndReflectsRecordSend(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer redisClient.Close()

	fake := storetest.New()
	fake.SendLog["camp"] = []store.RecipientLogEntry{{Account: "acme", SendTime: time.Now()}}

	c := New(fake, redisClient)
	ctx := context.Background()

	count, err := c.Count(ctx, "acme")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("Count() = %d, want 1", count)
	}

	// Mutate the store directly: with the cache primed, Count should still
	// answer from Redis rather than re-scanning.
	fake.SendLog["camp"] = append(fake.SendLog["camp"], store.RecipientLogEntry{Account: "acme", SendTime: time.Now()})
	cached, err := c.Count(ctx, "acme")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if cached != 1 {
		t.Fatalf("Count() = %d, want cached 1", cached)
	}

	c.RecordSend(ctx, "acme")
	bumped, err := c.Count(ctx, "acme")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if bumped != 2 {
		t.Fatalf("Count() after RecordSend = %d, want 2", bumped)
	}
}
