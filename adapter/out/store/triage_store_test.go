package store

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"triage_server/core/domain"
)

func newMemoryStore(t *testing.T) *Store {
	t.Helper()
	return New(NewMemoryBackend(), nil, zerolog.Nop())
}

func newRedisStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(NewRedisBackend(client, nil, zerolog.Nop()), nil, zerolog.Nop()), mr
}

// forEachBackend runs fn against both backends.
func forEachBackend(t *testing.T, fn func(t *testing.T, s *Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, newMemoryStore(t)) })
	t.Run("redis", func(t *testing.T) {
		s, _ := newRedisStore(t)
		fn(t, s)
	})
}

func TestAddMessageKeepsLastTwelve(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		base := time.UnixMilli(1_700_000_000_000)

		for i := 0; i < 13; i++ {
			msg := domain.NewChatMessage(domain.RoleUser, fmt.Sprintf("msg-%d", i), base.Add(time.Duration(i)*time.Second))
			if err := s.AddMessage(ctx, "+62811", msg); err != nil {
				t.Fatalf("AddMessage() error = %v", err)
			}
		}

		history := s.GetHistory(ctx, "+62811")
		if len(history) != 12 {
			t.Fatalf("len(history) = %d, want 12", len(history))
		}
		for i, m := range history {
			want := fmt.Sprintf("msg-%d", i+1)
			if m.Text != want {
				t.Errorf("history[%d].Text = %q, want %q", i, m.Text, want)
			}
		}
	})
}

func TestEmptyDefaults(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()

		if h := s.GetHistory(ctx, "nobody"); h == nil || len(h) != 0 {
			t.Errorf("GetHistory() = %#v, want empty non-nil slice", h)
		}
		if q := s.GetFollowQueue(ctx, "nobody"); q == nil || len(q) != 0 {
			t.Errorf("GetFollowQueue() = %#v, want empty non-nil slice", q)
		}
		if u := s.GetUsers(ctx); u == nil || len(u) != 0 {
			t.Errorf("GetUsers() = %#v, want empty non-nil slice", u)
		}
		if m := s.GetMeta(ctx, "nobody"); m.TurnCount != 0 || m.LastSignals != nil {
			t.Errorf("GetMeta() = %#v, want zero meta", m)
		}
	})
}

func TestMalformedValuesDegradeToEmpty(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		b := s.Backend()

		for _, key := range []string{historyKey("u"), metaKey("u"), followKey("u"), keyUsers} {
			if err := b.Set(ctx, key, []byte("{not json")); err != nil {
				t.Fatalf("Set(%s) error = %v", key, err)
			}
		}

		if h := s.GetHistory(ctx, "u"); len(h) != 0 {
			t.Errorf("GetHistory() len = %d, want 0", len(h))
		}
		if m := s.GetMeta(ctx, "u"); m.TurnCount != 0 {
			t.Errorf("GetMeta().TurnCount = %d, want 0", m.TurnCount)
		}
		if q := s.GetFollowQueue(ctx, "u"); len(q) != 0 {
			t.Errorf("GetFollowQueue() len = %d, want 0", len(q))
		}
		if u := s.GetUsers(ctx); len(u) != 0 {
			t.Errorf("GetUsers() len = %d, want 0", len(u))
		}

		// Compound writes restart from empty instead of failing.
		if err := s.AddMessage(ctx, "u", domain.ChatMessage{Role: domain.RoleUser, Text: "halo", Timestamp: 1}); err != nil {
			t.Fatalf("AddMessage() error = %v", err)
		}
		if h := s.GetHistory(ctx, "u"); len(h) != 1 {
			t.Errorf("GetHistory() len = %d after append, want 1", len(h))
		}
	})
}

func TestAddUserIsIdempotent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		for _, u := range []string{"+1", "+2", "+1", "+3", "+2"} {
			if err := s.AddUser(ctx, u); err != nil {
				t.Fatalf("AddUser(%s) error = %v", u, err)
			}
		}
		got := s.GetUsers(ctx)
		want := []string{"+1", "+2", "+3"}
		if len(got) != len(want) {
			t.Fatalf("GetUsers() = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("GetUsers()[%d] = %s, want %s", i, got[i], want[i])
			}
		}
	})
}

func TestUpdateFollowQueueUnchangedSkipsWrite(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		err := s.UpdateFollowQueue(ctx, "u", func(q []domain.FollowUpTask) ([]domain.FollowUpTask, bool) {
			return q, false
		})
		if err != nil {
			t.Fatalf("UpdateFollowQueue() error = %v", err)
		}
		if _, err := s.Backend().Get(ctx, followKey("u")); err != ErrNotFound {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})
}

func TestConcurrentAddMessageLosesNothing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_ = s.AddMessage(ctx, "u", domain.ChatMessage{Role: domain.RoleUser, Text: fmt.Sprint(i), Timestamp: int64(i)})
			}(i)
		}
		wg.Wait()

		if h := s.GetHistory(ctx, "u"); len(h) != 8 {
			t.Errorf("len(history) = %d, want 8", len(h))
		}
	})
}

func TestBackendsProduceIdenticalBytes(t *testing.T) {
	ctx := context.Background()
	mem := newMemoryStore(t)
	rds, _ := newRedisStore(t)

	signals := domain.SignalBundle{VehicleTier: domain.VehiclePremium, Urgency: 9, Seriousness: 50,
		Symptoms: domain.Symptoms{NoMove: true}}

	for _, s := range []*Store{mem, rds} {
		for i := 0; i < 14; i++ {
			role := domain.RoleUser
			if i%2 == 1 {
				role = domain.RoleAssistant
			}
			if err := s.AddMessage(ctx, "+62811", domain.ChatMessage{Role: role, Text: fmt.Sprintf("t%d", i), Timestamp: int64(1000 + i)}); err != nil {
				t.Fatalf("AddMessage() error = %v", err)
			}
		}
		if err := s.SetMeta(ctx, "+62811", domain.ConversationMeta{LastSignals: &signals, LeadTier: domain.LeadA, TurnCount: 7}); err != nil {
			t.Fatalf("SetMeta() error = %v", err)
		}
		if err := s.SaveFollowQueue(ctx, "+62811", []domain.FollowUpTask{{DueAt: 5000, Kind: domain.FollowUpStage1}}); err != nil {
			t.Fatalf("SaveFollowQueue() error = %v", err)
		}
		if err := s.AddUser(ctx, "+62811"); err != nil {
			t.Fatalf("AddUser() error = %v", err)
		}
	}

	for _, key := range []string{historyKey("+62811"), metaKey("+62811"), followKey("+62811"), keyUsers} {
		a, err := mem.Backend().Get(ctx, key)
		if err != nil {
			t.Fatalf("memory Get(%s) error = %v", key, err)
		}
		b, err := rds.Backend().Get(ctx, key)
		if err != nil {
			t.Fatalf("redis Get(%s) error = %v", key, err)
		}
		if !bytes.Equal(a, b) {
			t.Errorf("key %s differs:\nmemory: %s\nredis:  %s", key, a, b)
		}
	}
}

func TestRedisUnavailableDegrades(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	if err := s.AddMessage(ctx, "u", domain.ChatMessage{Role: domain.RoleUser, Text: "a", Timestamp: 1}); err != nil {
		t.Fatalf("AddMessage() error = %v", err)
	}
	mr.Close()

	if h := s.GetHistory(ctx, "u"); len(h) != 0 {
		t.Errorf("GetHistory() len = %d with redis down, want 0", len(h))
	}
	if err := s.AddMessage(ctx, "u", domain.ChatMessage{Role: domain.RoleUser, Text: "b", Timestamp: 2}); err == nil {
		t.Error("AddMessage() error = nil with redis down, want error")
	}
}
