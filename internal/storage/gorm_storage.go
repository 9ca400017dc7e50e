package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type GormStorage struct {
	db *gorm.DB
}

func NewGormStorage(driver, dsn string) (*GormStorage, error) {
	var gormDialector gorm.Dialector
	switch driver {
	case "postgres", "postgrespool":
		gormDialector = postgres.Open(dsn)
	case "sqlite":
		if dsn == "" {
			dsn = "fuelkl.db"
		}
		gormDialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := gorm.Open(gormDialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	return &GormStorage{db: db}, nil
}

func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&PriceRecord{},
		&CacheEntry{},
		&Setting{},
		&ScheduledJob{},
		&APIToken{},
	)
}

// Price history

func (s *GormStorage) SaveSnapshot(ctx context.Context, rec PriceRecord) error {
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

func (s *GormStorage) LatestSnapshot(ctx context.Context) (*PriceRecord, error) {
	var rec PriceRecord
	result := s.db.WithContext(ctx).Order("fetched_at desc").First(&rec)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &rec, nil
}

func (s *GormStorage) ListSnapshots(ctx context.Context, limit int) ([]PriceRecord, error) {
	var recs []PriceRecord
	q := s.db.WithContext(ctx).Order("fetched_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	result := q.Find(&recs)
	return recs, result.Error
}

// Shell cache

func (s *GormStorage) MatchCacheEntry(ctx context.Context, cacheName, key string) (*CacheEntry, error) {
	var e CacheEntry
	result := s.db.WithContext(ctx).First(&e, "cache_name = ? AND key = ?", cacheName, key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &e, nil
}

func upsertCacheEntry(tx *gorm.DB, e CacheEntry) error {
	if e.StoredAt.IsZero() {
		e.StoredAt = time.Now()
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_name"}, {Name: "key"}},
		UpdateAll: true,
	}).Create(&e).Error
}

func (s *GormStorage) PutCacheEntry(ctx context.Context, entry CacheEntry) error {
	return upsertCacheEntry(s.db.WithContext(ctx), entry)
}

func (s *GormStorage) PutCacheEntries(ctx context.Context, entries []CacheEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, e := range entries {
			if err := upsertCacheEntry(tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

// Settings

func (s *GormStorage) GetSetting(ctx context.Context, key string) (string, error) {
	var setting Setting
	result := s.db.WithContext(ctx).First(&setting, "key = ?", key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", result.Error
	}
	return setting.Value, nil
}

func (s *GormStorage) SetSetting(ctx context.Context, key, value string) error {
	setting := Setting{Key: key, Value: value, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&setting).Error
}

// Scheduled jobs

func (s *GormStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	status := 0
	if success {
		status = 1
	}
	job := ScheduledJob{
		Name:           name,
		LastRunAt:      started,
		LastDurationMs: dur.Milliseconds(),
		LastSuccess:    status,
		LastError:      errMsg,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		UpdateAll: true,
	}).Create(&job).Error
}

func (s *GormStorage) GetScheduledJob(ctx context.Context, name string) (*ScheduledJob, error) {
	var job ScheduledJob
	result := s.db.WithContext(ctx).First(&job, "name = ?", name)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &job, nil
}

// API tokens

func (s *GormStorage) CreateToken(ctx context.Context, tok APIToken) error {
	if tok.CreatedAt.IsZero() {
		tok.CreatedAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(&tok).Error
}

func (s *GormStorage) GetToken(ctx context.Context, id string) (*APIToken, error) {
	var tok APIToken
	result := s.db.WithContext(ctx).First(&tok, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &tok, nil
}

func (s *GormStorage) ListTokens(ctx context.Context) ([]APIToken, error) {
	var toks []APIToken
	result := s.db.WithContext(ctx).Order("created_at asc").Find(&toks)
	return toks, result.Error
}

func (s *GormStorage) DeleteToken(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&APIToken{}, "id = ?", id).Error
}

func (s *GormStorage) UpdateTokenLastUsed(ctx context.Context, id string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&APIToken{}).Where("id = ?", id).Update("last_used_at", at).Error
}

func (s *GormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
