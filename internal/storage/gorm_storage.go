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

const snapshotKeyIndex = "idx_rates_snapshots_query_key_unique"

type GormStorage struct {
	db *gorm.DB
}

func NewGormStorage(driver, dsn string) (*GormStorage, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		if dsn == "" {
			dsn = "utilityrates.db"
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	return &GormStorage{db: db}, nil
}

func (s *GormStorage) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	// Older schemas kept every snapshot; collapse them before the unique
	// index on query_key is created.
	if m := db.Migrator(); m.HasTable(&RatesSnapshot{}) && !m.HasIndex(&RatesSnapshot{}, snapshotKeyIndex) {
		err := db.Exec("DELETE FROM rates_snapshots WHERE id NOT IN (SELECT MAX(id) FROM rates_snapshots GROUP BY query_key)").Error
		if err != nil {
			return fmt.Errorf("dedupe rates_snapshots: %w", err)
		}
	}
	return db.AutoMigrate(
		&User{},
		&Submission{},
		&RatesSnapshot{},
		&Token{},
		&Setting{},
		&ScheduledJob{},
	)
}

// Users

func (s *GormStorage) CreateUser(ctx context.Context, u User) error {
	return s.db.WithContext(ctx).Create(&u).Error
}

func (s *GormStorage) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	if err := first(s.db.WithContext(ctx), &u, "id = ?", id); err != nil || u.ID == "" {
		return nil, err
	}
	return &u, nil
}

func (s *GormStorage) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	result := s.db.WithContext(ctx).Order("created_at asc, id asc").Find(&users)
	return users, result.Error
}

// Submissions

func (s *GormStorage) SaveSubmission(ctx context.Context, sub Submission) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&sub).Error
}

func (s *GormStorage) GetSubmission(ctx context.Context, id string) (*Submission, error) {
	var sub Submission
	if err := first(s.db.WithContext(ctx), &sub, "id = ?", id); err != nil || sub.ID == "" {
		return nil, err
	}
	return &sub, nil
}

func (s *GormStorage) ListSubmissions(ctx context.Context) ([]Submission, error) {
	var subs []Submission
	result := s.db.WithContext(ctx).Order("created_at asc, id asc").Find(&subs)
	return subs, result.Error
}

// RatesSnapshot

func (s *GormStorage) GetRatesSnapshot(ctx context.Context, queryKey string) (*RatesSnapshot, error) {
	var snap RatesSnapshot
	result := s.db.WithContext(ctx).First(&snap, "query_key = ?", queryKey)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &snap, nil
}

func (s *GormStorage) SaveRatesSnapshot(ctx context.Context, snap RatesSnapshot) error {
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now()
	}
	snap.ID = 0
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "query_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"status_code", "payload", "fetched_at"}),
	}).Create(&snap).Error
}

// Tokens

func (s *GormStorage) CreateToken(ctx context.Context, t Token) error {
	return s.db.WithContext(ctx).Create(&t).Error
}

func (s *GormStorage) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	var t Token
	if err := first(s.db.WithContext(ctx), &t, "token_hash = ?", hash); err != nil || t.ID == "" {
		return nil, err
	}
	return &t, nil
}

func (s *GormStorage) UpdateTokenLastUsed(ctx context.Context, id string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&Token{}).Where("id = ?", id).Update("last_used_at", &now).Error
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
	setting := Setting{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&setting).Error
}

// Scheduled jobs & locking

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
	if err := first(s.db.WithContext(ctx), &job, "name = ?", name); err != nil || job.Name == "" {
		return nil, err
	}
	return &job, nil
}

// AcquireAdvisoryLock takes a postgres session-level advisory lock on a
// dedicated connection. Other dialects run a single instance and always
// succeed.
func (s *GormStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (ReleaseFunc, bool, error) {
	if s.db.Dialector.Name() != "postgres" {
		return noopRelease, true, nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return nil, false, err
	}
	return tryAdvisoryLock(ctx, sqlDB, key)
}

// Close & Ping

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

// first loads one row into dest, treating a missing row as no error.
func first(db *gorm.DB, dest any, query string, args ...any) error {
	err := db.Where(query, args...).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
