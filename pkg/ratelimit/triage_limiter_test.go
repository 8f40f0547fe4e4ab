package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestSlidingWindowLimiter(t *testing.T) {
	backends := []struct {
		name   string
		client func(t *testing.T) *redis.Client
	}{
		{"memory", func(t *testing.T) *redis.Client { return nil }},
		{"redis", newRedis},
	}

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			now := time.UnixMilli(1_700_000_000_000)
			l := NewSlidingWindowLimiter(b.client(t), 2, time.Minute)
			l.now = func() time.Time { return now }

			for i := 0; i < 2; i++ {
				if ok, _ := l.Allow(ctx, "+628111"); !ok {
					t.Fatalf("event %d rejected", i)
				}
			}

			ok, wait := l.Allow(ctx, "+628111")
			if ok {
				t.Fatal("third event allowed")
			}
			if wait != time.Minute {
				t.Errorf("wait = %v, want 1m", wait)
			}

			if ok, _ := l.Allow(ctx, "+628222"); !ok {
				t.Error("other key rejected")
			}

			now = now.Add(time.Minute + time.Millisecond)
			if ok, _ := l.Allow(ctx, "+628111"); !ok {
				t.Error("event after window rejected")
			}
		})
	}
}

func TestSlidingWindowLimiterDisabled(t *testing.T) {
	l := NewSlidingWindowLimiter(nil, 0, time.Minute)
	for i := 0; i < 100; i++ {
		if ok, _ := l.Allow(context.Background(), "k"); !ok {
			t.Fatal("disabled limiter rejected")
		}
	}
}

func TestDeduplicator(t *testing.T) {
	backends := []struct {
		name   string
		client func(t *testing.T) *redis.Client
	}{
		{"memory", func(t *testing.T) *redis.Client { return nil }},
		{"redis", newRedis},
	}

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			d := NewDeduplicator(b.client(t), "wa:sid", time.Hour)

			first, err := d.FirstSeen(ctx, "SM1")
			if err != nil || !first {
				t.Fatalf("FirstSeen(SM1) = %v, %v", first, err)
			}
			again, _ := d.FirstSeen(ctx, "SM1")
			if again {
				t.Error("retry reported as first")
			}
			other, _ := d.FirstSeen(ctx, "SM2")
			if !other {
				t.Error("SM2 reported as duplicate")
			}
			empty, _ := d.FirstSeen(ctx, "")
			if !empty {
				t.Error("empty key reported as duplicate")
			}
		})
	}
}

func TestDeduplicatorMemoryExpires(t *testing.T) {
	now := time.Now()
	d := NewDeduplicator(nil, "wa:sid", time.Minute)
	d.now = func() time.Time { return now }

	_, _ = d.FirstSeen(context.Background(), "SM1")
	now = now.Add(time.Minute)
	if first, _ := d.FirstSeen(context.Background(), "SM1"); !first {
		t.Error("key still remembered after ttl")
	}
}
