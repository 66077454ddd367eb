package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"copilot-salud-backend/internal/intent"
	"copilot-salud-backend/internal/pipeline"
)

var ErrEntryNotFound = errors.New("history entry not found")

// maxEntriesPerUser bounds the in-memory trail; older entries are evicted.
const maxEntriesPerUser = 50

// HistoryEntry records one answered query for a user's session trail.
type HistoryEntry struct {
	ID        string          `json:"id"`
	Query     string          `json:"query"`
	Status    pipeline.Status `json:"status"`
	Intent    intent.Tag      `json:"intent"`
	Insight   string          `json:"insight,omitempty"`
	ChartType string          `json:"chart_type,omitempty"`
	AskedAt   time.Time       `json:"asked_at"`
}

type HistoryStore interface {
	Record(ctx context.Context, username, query string, result pipeline.Result) (string, error)
	History(ctx context.Context, username string) ([]HistoryEntry, error)
	Get(ctx context.Context, username, entryID string) (HistoryEntry, error)
	Clear(ctx context.Context, username string)
}

type inMemoryHistoryStore struct {
	entries map[string][]HistoryEntry // keyed by username
	clock   func() time.Time
	mu      sync.RWMutex
}

func NewInMemoryHistoryStore() HistoryStore {
	return &inMemoryHistoryStore{
		entries: make(map[string][]HistoryEntry),
		clock:   time.Now,
	}
}

func (s *inMemoryHistoryStore) Record(ctx context.Context, username, query string, result pipeline.Result) (string, error) {
	entry := HistoryEntry{
		ID:      uuid.NewString(),
		Query:   query,
		Status:  result.Status,
		Intent:  result.Intent.Tag,
		AskedAt: s.clock().UTC(),
	}
	if result.Analysis != nil {
		entry.Insight = result.Analysis.MainInsight
	}
	if result.Chart != nil {
		entry.ChartType = result.Chart.Spec.Type
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	trail := append(s.entries[username], entry)
	if len(trail) > maxEntriesPerUser {
		trail = trail[len(trail)-maxEntriesPerUser:]
	}
	s.entries[username] = trail
	return entry.ID, nil
}

func (s *inMemoryHistoryStore) History(ctx context.Context, username string) ([]HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	trail := s.entries[username]
	out := make([]HistoryEntry, len(trail))
	copy(out, trail)
	return out, nil
}

func (s *inMemoryHistoryStore) Get(ctx context.Context, username, entryID string) (HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, entry := range s.entries[username] {
		if entry.ID == entryID {
			return entry, nil
		}
	}
	return HistoryEntry{}, ErrEntryNotFound
}

func (s *inMemoryHistoryStore) Clear(ctx context.Context, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, username)
}
