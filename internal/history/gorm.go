package history

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type GormStore struct {
	db *gorm.DB
}

// OpenPostgres connects with the pgx-backed gorm driver and migrates the
// rounds table.
func OpenPostgres(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewGormStore(db)
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Round{}); err != nil {
		return nil, fmt.Errorf("migrate rounds: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Save(ctx context.Context, r *Round) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("save round: %w", err)
	}
	return nil
}

func (s *GormStore) Recent(ctx context.Context, limit int) ([]Round, error) {
	var rounds []Round
	err := s.db.WithContext(ctx).
		Order("finished_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rounds).Error
	if err != nil {
		return nil, fmt.Errorf("recent rounds: %w", err)
	}
	return rounds, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("close rounds db: %w", err)
	}
	return sqlDB.Close()
}
