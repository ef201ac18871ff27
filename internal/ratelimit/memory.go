package ratelimit

import (
	"context"
	"sync"
	"time"

	"leadgen-engine/internal/domain"
)

// MemoryLog keeps the send log in process memory.
type MemoryLog struct {
	mu      sync.Mutex
	entries []domain.SendLogEntry
}

func NewMemoryLog() *MemoryLog { return &MemoryLog{} }

func (m *MemoryLog) CountSends(_ context.Context, senderID string, ch domain.Channel, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.SenderID == senderID && e.Channel == ch && !e.At.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryLog) LogSend(_ context.Context, e domain.SendLogEntry) error {
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
	return nil
}

func (m *MemoryLog) Entries() []domain.SendLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.SendLogEntry, len(m.entries))
	copy(out, m.entries)
	return out
}
