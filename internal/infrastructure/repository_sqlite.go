package infrastructure

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yourusername/tiktock-go/internal/domain"
)

// SQLiteBatchRepository implements BatchRepository using SQLite
type SQLiteBatchRepository struct {
	db *gorm.DB
}

// NewSQLiteBatchRepository creates a new SQLite repository
func NewSQLiteBatchRepository(dbPath string) (*SQLiteBatchRepository, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&domain.BatchRecord{}, &domain.ItemRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteBatchRepository{db: db}, nil
}

// Save stores a finished batch and its items in one transaction
func (r *SQLiteBatchRepository) Save(report *domain.BatchReport) error {
	record := domain.NewBatchRecord(report)
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("batch_id = ?", record.ID).Delete(&domain.ItemRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Omit("Items").Save(record).Error; err != nil {
			return err
		}
		if len(record.Items) == 0 {
			return nil
		}
		return tx.Create(&record.Items).Error
	})
}

// FindByID finds a batch by ID with its items ordered by sequence
func (r *SQLiteBatchRepository) FindByID(id string) (*domain.BatchRecord, error) {
	var record domain.BatchRecord
	err := r.db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("sequence ASC")
	}).First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("batch %s not found", id)
		}
		return nil, err
	}
	return &record, nil
}

// FindRecent returns the most recent batches without their items
func (r *SQLiteBatchRepository) FindRecent(limit int) ([]*domain.BatchRecord, error) {
	var records []*domain.BatchRecord
	query := r.db.Order("finished_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&records).Error
	return records, err
}

// Delete deletes a batch and its items
func (r *SQLiteBatchRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("batch_id = ?", id).Delete(&domain.ItemRecord{}).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.BatchRecord{}, "id = ?", id).Error
	})
}

// GetStats returns aggregate statistics over all batches
func (r *SQLiteBatchRepository) GetStats() (*domain.HistoryStats, error) {
	stats := &domain.HistoryStats{}

	if err := r.db.Model(&domain.BatchRecord{}).Count(&stats.Batches).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&domain.BatchRecord{}).
		Where("state = ?", domain.BatchInterrupted).
		Count(&stats.Interrupted).Error; err != nil {
		return nil, err
	}

	itemCounts := struct {
		Items     int64
		Succeeded int64
		Bytes     int64
	}{}
	if err := r.db.Model(&domain.ItemRecord{}).
		Select("count(*) as items, " +
			"coalesce(sum(case when success then 1 else 0 end), 0) as succeeded, " +
			"coalesce(sum(size_bytes), 0) as bytes").
		Scan(&itemCounts).Error; err != nil {
		return nil, err
	}

	stats.Items = itemCounts.Items
	stats.Succeeded = itemCounts.Succeeded
	stats.Failed = itemCounts.Items - itemCounts.Succeeded
	stats.Bytes = itemCounts.Bytes
	return stats, nil
}

// Close closes the database connection
func (r *SQLiteBatchRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
