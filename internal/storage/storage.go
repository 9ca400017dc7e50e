package storage

import (
	"context"
	"time"
)

// Storage abstracts persistence for price history, the shell cache and
// worker bookkeeping.
type Storage interface {
	// Price history
	SaveSnapshot(ctx context.Context, rec PriceRecord) error
	LatestSnapshot(ctx context.Context) (*PriceRecord, error)
	ListSnapshots(ctx context.Context, limit int) ([]PriceRecord, error)

	// Shell cache entries. PutCacheEntries stores all entries or none.
	MatchCacheEntry(ctx context.Context, cacheName, key string) (*CacheEntry, error)
	PutCacheEntry(ctx context.Context, entry CacheEntry) error
	PutCacheEntries(ctx context.Context, entries []CacheEntry) error

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Scheduled jobs
	UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error
	GetScheduledJob(ctx context.Context, name string) (*ScheduledJob, error)

	// API tokens. GetToken returns nil, nil for an unknown id.
	CreateToken(ctx context.Context, tok APIToken) error
	GetToken(ctx context.Context, id string) (*APIToken, error)
	ListTokens(ctx context.Context) ([]APIToken, error)
	DeleteToken(ctx context.Context, id string) error
	UpdateTokenLastUsed(ctx context.Context, id string, at time.Time) error

	Ping(ctx context.Context) error
	// Close releases any resources (no-op for in-memory).
	Close() error
}
