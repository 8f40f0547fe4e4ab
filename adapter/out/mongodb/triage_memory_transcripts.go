package mongodb

import (
	"context"
	"sync"
	"time"

	"triage_server/core/port/out"
)

// perUserTranscripts bounds the in-memory archive.
const perUserTranscripts = 20

var _ out.TranscriptArchive = (*MemoryTranscripts)(nil)

// MemoryTranscripts is the archive used when MONGODB_URL is not configured.
type MemoryTranscripts struct {
	mu      sync.RWMutex
	records map[string][]*out.HandoffRecord
}

// NewMemoryTranscripts creates an empty archive.
func NewMemoryTranscripts() *MemoryTranscripts {
	return &MemoryTranscripts{records: make(map[string][]*out.HandoffRecord)}
}

func (m *MemoryTranscripts) ArchiveHandoff(ctx context.Context, record *out.HandoffRecord) error {
	if record == nil {
		return nil
	}
	rec := *record
	if rec.CreatedAt == 0 {
		rec.CreatedAt = time.Now().UnixMilli()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	list := append(m.records[rec.UserID], &rec)
	if len(list) > perUserTranscripts {
		list = list[len(list)-perUserTranscripts:]
	}
	m.records[rec.UserID] = list
	return nil
}

func (m *MemoryTranscripts) ListHandoffs(ctx context.Context, user string, limit int) ([]*out.HandoffRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.records[user]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	records := make([]*out.HandoffRecord, 0, limit)
	for i := len(list) - 1; i >= 0 && len(records) < limit; i-- {
		rec := *list[i]
		records = append(records, &rec)
	}
	return records, nil
}
