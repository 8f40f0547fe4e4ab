package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"triage_server/core/domain"
	"triage_server/core/port/out"
)

var _ out.ConversationStore = (*Store)(nil)

// Store implements out.ConversationStore on top of a Backend.
type Store struct {
	backend      Backend
	historyLimit int
	log          zerolog.Logger
}

// Config holds Store configuration.
type Config struct {
	HistoryLimit int
}

// New creates a Store over backend. The backend is chosen once at startup.
func New(backend Backend, cfg *Config, log zerolog.Logger) *Store {
	limit := domain.DefaultHistoryLimit
	if cfg != nil && cfg.HistoryLimit > 0 {
		limit = cfg.HistoryLimit
	}
	return &Store{
		backend:      backend,
		historyLimit: limit,
		log:          log.With().Str("component", "store").Str("backend", backend.Name()).Logger(),
	}
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// =============================================================================
// Chat History
// =============================================================================

func (s *Store) GetHistory(ctx context.Context, user string) []domain.ChatMessage {
	history := []domain.ChatMessage{}
	s.load(ctx, historyKey(user), &history)
	if history == nil {
		return []domain.ChatMessage{}
	}
	return history
}

// AddMessage appends msg and keeps only the newest historyLimit messages.
func (s *Store) AddMessage(ctx context.Context, user string, msg domain.ChatMessage) error {
	key := historyKey(user)
	return s.backend.Update(ctx, key, func(old []byte) ([]byte, bool, error) {
		history := decodeOrEmpty[[]domain.ChatMessage](s, key, old)
		history = append(history, msg)
		history = domain.TruncateHistory(history, s.historyLimit)
		data, err := encode(history)
		return data, true, err
	})
}

// =============================================================================
// Conversation Meta
// =============================================================================

func (s *Store) GetMeta(ctx context.Context, user string) domain.ConversationMeta {
	var meta domain.ConversationMeta
	if !s.load(ctx, metaKey(user), &meta) {
		return domain.ConversationMeta{}
	}
	return meta
}

func (s *Store) SetMeta(ctx context.Context, user string, meta domain.ConversationMeta) error {
	return s.save(ctx, metaKey(user), meta)
}

// =============================================================================
// Follow-Up Queue
// =============================================================================

func (s *Store) GetFollowQueue(ctx context.Context, user string) []domain.FollowUpTask {
	queue := []domain.FollowUpTask{}
	s.load(ctx, followKey(user), &queue)
	if queue == nil {
		return []domain.FollowUpTask{}
	}
	return queue
}

func (s *Store) SaveFollowQueue(ctx context.Context, user string, queue []domain.FollowUpTask) error {
	if queue == nil {
		queue = []domain.FollowUpTask{}
	}
	return s.save(ctx, followKey(user), queue)
}

func (s *Store) UpdateFollowQueue(ctx context.Context, user string, fn func([]domain.FollowUpTask) ([]domain.FollowUpTask, bool)) error {
	key := followKey(user)
	return s.backend.Update(ctx, key, func(old []byte) ([]byte, bool, error) {
		queue := decodeOrEmpty[[]domain.FollowUpTask](s, key, old)
		next, changed := fn(queue)
		if !changed {
			return nil, false, nil
		}
		if next == nil {
			next = []domain.FollowUpTask{}
		}
		data, err := encode(next)
		return data, true, err
	})
}

// =============================================================================
// User Registry
// =============================================================================

func (s *Store) GetUsers(ctx context.Context) []string {
	users := []string{}
	s.load(ctx, keyUsers, &users)
	if users == nil {
		return []string{}
	}
	return users
}

// AddUser registers user once; the registry keeps insertion order.
func (s *Store) AddUser(ctx context.Context, user string) error {
	return s.backend.Update(ctx, keyUsers, func(old []byte) ([]byte, bool, error) {
		users := decodeOrEmpty[[]string](s, keyUsers, old)
		for _, u := range users {
			if u == user {
				return nil, false, nil
			}
		}
		data, err := encode(append(users, user))
		return data, true, err
	})
}

// =============================================================================
// Codec
// =============================================================================

// load decodes key into dest. Missing, unreachable and malformed values all leave dest
// untouched and report false.
func (s *Store) load(ctx context.Context, key string, dest interface{}) bool {
	data, err := s.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Warn().Err(err).Str("key", key).Msg("read failed, using empty default")
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("malformed value, using empty default")
		return false
	}
	return true
}

func (s *Store) save(ctx context.Context, key string, value interface{}) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	return s.backend.Set(ctx, key, data)
}

func encode(value interface{}) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return data, nil
}

// decodeOrEmpty decodes a slice value for a compound update. Malformed data restarts
// the value from empty.
func decodeOrEmpty[T ~[]E, E any](s *Store, key string, data []byte) T {
	if len(data) == 0 {
		return T{}
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("malformed value, restarting from empty")
		return T{}
	}
	if v == nil {
		return T{}
	}
	return v
}
