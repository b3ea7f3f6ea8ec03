package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a test Redis client.
// Tests are skipped when no local Redis is reachable; the integration suite
// runs the same checks against a container.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewRedisProvider_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisProvider should panic with nil redis client")
		}
	}()

	NewRedisProvider[string](nil, "")
}

func TestNewRedisProvider_DefaultPrefix(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	p := NewRedisProvider[string](client, "")
	if p.prefix != DefaultRedisPrefix {
		t.Errorf("prefix = %q, want %q", p.prefix, DefaultRedisPrefix)
	}
}

func TestRedisProvider(t *testing.T) {
	client := setupTestRedis(t)
	runRedisProviderSuite(t, client)
}

// runRedisProviderSuite is shared with the container-backed integration test.
func runRedisProviderSuite(t *testing.T, client *redis.Client) {
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		p := NewRedisProvider[map[string]any](client, "test:setget:")
		value := map[string]any{"story": map[string]any{"name": "Home"}}

		if err := p.Set(ctx, "k", NewEntry(value, time.Now(), time.Minute)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		entry, ok, err := p.Get(ctx, "k")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !ok {
			t.Fatal("expected hit")
		}
		story, _ := entry.Value["story"].(map[string]any)
		if story["name"] != "Home" {
			t.Errorf("story name = %v, want Home", story["name"])
		}
	})

	t.Run("miss", func(t *testing.T) {
		p := NewRedisProvider[string](client, "test:miss:")
		if _, ok, err := p.Get(ctx, "absent"); ok || err != nil {
			t.Errorf("Get(absent) = %v, %v; want false, nil", ok, err)
		}
	})

	t.Run("dead entry removed", func(t *testing.T) {
		p := NewRedisProvider[string](client, "test:dead:")
		now := time.Now()
		p.now = func() time.Time { return now }

		if err := p.Set(ctx, "k", NewEntry("v", now, 10*time.Second)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		p.now = func() time.Time { return now.Add(10 * time.Second) }
		if _, ok, _ := p.Get(ctx, "k"); !ok {
			t.Fatal("entry should be live exactly at ttl")
		}

		p.now = func() time.Time { return now.Add(10*time.Second + time.Millisecond) }
		if _, ok, _ := p.Get(ctx, "k"); ok {
			t.Fatal("entry should be dead past ttl")
		}

		exists, err := client.Exists(ctx, "test:dead:k").Result()
		if err != nil {
			t.Fatalf("Exists failed: %v", err)
		}
		if exists != 0 {
			t.Error("dead entry should be deleted from Redis")
		}
	})

	t.Run("flush only touches prefix", func(t *testing.T) {
		p := NewRedisProvider[string](client, "test:flush:")
		for _, key := range []string{"a", "b", "c"} {
			if err := p.Set(ctx, key, NewEntry(key, time.Now(), time.Minute)); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
		}
		if err := client.Set(ctx, "unrelated", "keep", 0).Err(); err != nil {
			t.Fatalf("Set unrelated failed: %v", err)
		}

		if err := p.Flush(ctx); err != nil {
			t.Fatalf("Flush failed: %v", err)
		}

		for _, key := range []string{"a", "b", "c"} {
			if _, ok, _ := p.Get(ctx, key); ok {
				t.Errorf("%s should be flushed", key)
			}
		}
		if v, _ := client.Get(ctx, "unrelated").Result(); v != "keep" {
			t.Error("flush removed a key outside its prefix")
		}
	})

	t.Run("invalid entry", func(t *testing.T) {
		p := NewRedisProvider[string](client, "test:invalid:")
		if err := client.Set(ctx, "test:invalid:k", "not json", time.Minute).Err(); err != nil {
			t.Fatalf("Set raw failed: %v", err)
		}
		if _, _, err := p.Get(ctx, "k"); err == nil {
			t.Error("expected error for corrupted entry")
		}
	})
}
