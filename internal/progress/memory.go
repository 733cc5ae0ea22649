package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryTracker keeps state in process memory and forgets entries that
// have not been updated for ttl.
type MemoryTracker struct {
	mu      sync.Mutex
	entries map[string]State
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

func NewMemoryTracker(ttl time.Duration, logger *slog.Logger) *MemoryTracker {
	return &MemoryTracker{
		entries: make(map[string]State),
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
	}
}

func (m *MemoryTracker) Update(ctx context.Context, id string, p Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.entries[id]
	if !ok {
		prev = Pending()
	}
	m.entries[id] = prev.Apply(p, m.now())
	return nil
}

func (m *MemoryTracker) Get(ctx context.Context, id string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.entries[id]; ok {
		return s, nil
	}
	return Pending(), nil
}

// Sweep drops expired entries and returns how many were removed.
func (m *MemoryTracker) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.ttl)
	removed := 0
	for id, s := range m.entries {
		if s.UpdatedAt.Before(cutoff) {
			delete(m.entries, id)
			removed++
		}
	}
	return removed
}

// Run sweeps periodically until ctx is cancelled.
func (m *MemoryTracker) Run(ctx context.Context) {
	if m.ttl <= 0 {
		return
	}
	interval := max(m.ttl/2, time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug("expired progress entries", "count", n)
			}
		}
	}
}
