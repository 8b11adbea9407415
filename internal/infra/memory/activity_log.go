package memory

import (
	"context"
	"sync"
	"time"
)

// ActivityLog tracks last completion times per user in memory.
type ActivityLog struct {
	mu   sync.RWMutex
	last map[string]time.Time
}

func NewActivityLog() *ActivityLog {
	return &ActivityLog{last: make(map[string]time.Time)}
}

func (l *ActivityLog) LastCompletedAt(_ context.Context, userID string) (time.Time, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	at, ok := l.last[userID]
	return at, ok, nil
}

func (l *ActivityLog) RecordCompletion(_ context.Context, userID string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.last[userID]; !ok || at.After(existing) {
		l.last[userID] = at
	}
	return nil
}
