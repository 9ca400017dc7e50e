package storage

import "time"

// PriceRecord is one successful fetch kept in the price history.
type PriceRecord struct {
	ID     string  `json:"id" gorm:"primaryKey;column:id"`
	Petrol float64 `json:"petrol" gorm:"column:petrol"`
	Diesel float64 `json:"diesel" gorm:"column:diesel"`
	// SourceUpdatedAt is the updated_at string written to prices.json.
	SourceUpdatedAt string    `json:"updated_at" gorm:"column:source_updated_at"`
	SourceURL       string    `json:"source_url" gorm:"column:source_url"`
	FetchedAt       time.Time `json:"fetched_at" gorm:"column:fetched_at;index"`
}

func (PriceRecord) TableName() string { return "price_snapshots" }

// CacheEntry is a stored response in a named shell cache.
type CacheEntry struct {
	CacheName string `gorm:"primaryKey;column:cache_name"`
	Key       string `gorm:"primaryKey;column:key"`
	Status    int    `gorm:"column:status"`
	// Header is the JSON-encoded http.Header of the stored response.
	Header   []byte    `gorm:"column:header"`
	Body     []byte    `gorm:"column:body"`
	StoredAt time.Time `gorm:"column:stored_at"`
}

func (CacheEntry) TableName() string { return "cache_entries" }

type Setting struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     string    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Setting) TableName() string { return "settings" }

type ScheduledJob struct {
	Name           string    `json:"name" gorm:"primaryKey;column:name"`
	LastRunAt      time.Time `json:"last_run_at" gorm:"column:last_run_at"`
	LastDurationMs int64     `json:"last_duration_ms" gorm:"column:last_duration_ms"`
	LastSuccess    int       `json:"last_success" gorm:"column:last_success"`
	LastError      string    `json:"last_error" gorm:"column:last_error"`
}

func (ScheduledJob) TableName() string { return "scheduled_jobs" }

// APIToken grants a role to bearer requests. Only the bcrypt hash of the
// secret part is stored.
type APIToken struct {
	ID         string     `json:"id" gorm:"primaryKey;column:id"`
	Name       string     `json:"name" gorm:"column:name"`
	SecretHash string     `json:"-" gorm:"column:secret_hash"`
	Role       string     `json:"role" gorm:"column:role"`
	CreatedAt  time.Time  `json:"created_at" gorm:"column:created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" gorm:"column:expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" gorm:"column:last_used_at"`
}

func (APIToken) TableName() string { return "api_tokens" }
