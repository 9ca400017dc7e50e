package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStorage is an in-memory Storage implementation, useful for tests and
// simple single-process deployments.
type MemoryStorage struct {
	mu       sync.RWMutex
	snaps    []PriceRecord
	entries  map[string]CacheEntry
	settings map[string]string
	jobs     map[string]ScheduledJob
	tokens   map[string]APIToken
}

// NewMemory returns an empty MemoryStorage.
func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		entries:  make(map[string]CacheEntry),
		settings: make(map[string]string),
		jobs:     make(map[string]ScheduledJob),
		tokens:   make(map[string]APIToken),
	}
}

func (m *MemoryStorage) Close() error { return nil }

func (m *MemoryStorage) Ping(ctx context.Context) error { return nil }

func (m *MemoryStorage) SaveSnapshot(ctx context.Context, rec PriceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = time.Now()
	}
	m.snaps = append(m.snaps, rec)
	return nil
}

func (m *MemoryStorage) LatestSnapshot(ctx context.Context) (*PriceRecord, error) {
	list, err := m.ListSnapshots(ctx, 1)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// ListSnapshots returns up to limit records, newest first. A non-positive
// limit returns everything.
func (m *MemoryStorage) ListSnapshots(ctx context.Context, limit int) ([]PriceRecord, error) {
	m.mu.RLock()
	out := make([]PriceRecord, len(m.snaps))
	copy(out, m.snaps)
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FetchedAt.After(out[j].FetchedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func entryKey(cacheName, key string) string {
	return cacheName + "\x00" + key
}

func (m *MemoryStorage) MatchCacheEntry(ctx context.Context, cacheName, key string) (*CacheEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[entryKey(cacheName, key)]
	if !ok {
		return nil, nil
	}
	cp := e
	return &cp, nil
}

func (m *MemoryStorage) PutCacheEntry(ctx context.Context, entry CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.StoredAt.IsZero() {
		entry.StoredAt = time.Now()
	}
	m.entries[entryKey(entry.CacheName, entry.Key)] = entry
	return nil
}

func (m *MemoryStorage) PutCacheEntries(ctx context.Context, entries []CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, e := range entries {
		if e.StoredAt.IsZero() {
			e.StoredAt = now
		}
		m.entries[entryKey(e.CacheName, e.Key)] = e
	}
	return nil
}

func (m *MemoryStorage) GetSetting(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings[key], nil
}

func (m *MemoryStorage) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

func (m *MemoryStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := 0
	if success {
		status = 1
	}
	m.jobs[name] = ScheduledJob{
		Name:           name,
		LastRunAt:      started,
		LastDurationMs: dur.Milliseconds(),
		LastSuccess:    status,
		LastError:      errMsg,
	}
	return nil
}

func (m *MemoryStorage) GetScheduledJob(ctx context.Context, name string) (*ScheduledJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[name]
	if !ok {
		return nil, nil
	}
	cp := j
	return &cp, nil
}

func (m *MemoryStorage) CreateToken(ctx context.Context, tok APIToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[tok.ID]; ok {
		return fmt.Errorf("token %s already exists", tok.ID)
	}
	if tok.CreatedAt.IsZero() {
		tok.CreatedAt = time.Now()
	}
	m.tokens[tok.ID] = tok
	return nil
}

func (m *MemoryStorage) GetToken(ctx context.Context, id string) (*APIToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tok, ok := m.tokens[id]
	if !ok {
		return nil, nil
	}
	return &tok, nil
}

func (m *MemoryStorage) ListTokens(ctx context.Context) ([]APIToken, error) {
	m.mu.RLock()
	out := make([]APIToken, 0, len(m.tokens))
	for _, tok := range m.tokens {
		out = append(out, tok)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStorage) DeleteToken(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, id)
	return nil
}

func (m *MemoryStorage) UpdateTokenLastUsed(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tok, ok := m.tokens[id]; ok {
		tok.LastUsedAt = &at
		m.tokens[id] = tok
	}
	return nil
}
