package shellcache

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/bher20/fuelkl/internal/storage"
)

// Entry pairs a store key with a response.
type Entry struct {
	Key      string
	Response *Response
}

// Store holds named caches of responses. Individual puts are atomic; PutAll
// stores every entry or none.
type Store interface {
	// Match returns nil, nil when nothing is stored under key.
	Match(ctx context.Context, cacheName, key string) (*Response, error)
	Put(ctx context.Context, cacheName, key string, resp *Response) error
	PutAll(ctx context.Context, cacheName string, entries []Entry) error
}

// MemoryStore keeps responses in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	caches map[string]map[string]*Response
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{caches: make(map[string]map[string]*Response)}
}

func (m *MemoryStore) Match(ctx context.Context, cacheName, key string) (*Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	resp, ok := m.caches[cacheName][key]
	if !ok {
		return nil, nil
	}
	return resp.Clone(), nil
}

func (m *MemoryStore) Put(ctx context.Context, cacheName, key string, resp *Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache(cacheName)[key] = resp.Clone()
	return nil
}

func (m *MemoryStore) PutAll(ctx context.Context, cacheName string, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.cache(cacheName)
	for _, e := range entries {
		c[e.Key] = e.Response.Clone()
	}
	return nil
}

func (m *MemoryStore) cache(name string) map[string]*Response {
	c, ok := m.caches[name]
	if !ok {
		c = make(map[string]*Response)
		m.caches[name] = c
	}
	return c
}

// StorageStore persists cache entries through a storage backend so the
// shell survives restarts of the server.
type StorageStore struct {
	st storage.Storage
}

func NewStorageStore(st storage.Storage) *StorageStore {
	return &StorageStore{st: st}
}

func (s *StorageStore) Match(ctx context.Context, cacheName, key string) (*Response, error) {
	e, err := s.st.MatchCacheEntry(ctx, cacheName, key)
	if err != nil || e == nil {
		return nil, err
	}
	header := http.Header{}
	if len(e.Header) > 0 {
		if err := json.Unmarshal(e.Header, &header); err != nil {
			return nil, fmt.Errorf("decode stored header for %s: %w", key, err)
		}
	}
	return &Response{Status: e.Status, Header: header, Body: e.Body}, nil
}

func (s *StorageStore) Put(ctx context.Context, cacheName, key string, resp *Response) error {
	e, err := toEntry(cacheName, key, resp)
	if err != nil {
		return err
	}
	return s.st.PutCacheEntry(ctx, e)
}

func (s *StorageStore) PutAll(ctx context.Context, cacheName string, entries []Entry) error {
	out := make([]storage.CacheEntry, 0, len(entries))
	for _, en := range entries {
		e, err := toEntry(cacheName, en.Key, en.Response)
		if err != nil {
			return err
		}
		out = append(out, e)
	}
	return s.st.PutCacheEntries(ctx, out)
}

func toEntry(cacheName, key string, resp *Response) (storage.CacheEntry, error) {
	header, err := json.Marshal(resp.Header)
	if err != nil {
		return storage.CacheEntry{}, fmt.Errorf("encode header for %s: %w", key, err)
	}
	return storage.CacheEntry{
		CacheName: cacheName,
		Key:       key,
		Status:    resp.Status,
		Header:    header,
		Body:      resp.Body,
	}, nil
}
