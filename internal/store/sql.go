package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sabarim/intraday/internal/model"
)

const insertBatchSize = 500

// BarModel is the database row of one bar.
type BarModel struct {
	ID       uint      `gorm:"primaryKey"`
	Symbol   string    `gorm:"size:32;not null;uniqueIndex:bar_sym_int_time,priority:1"`
	Interval string    `gorm:"column:bar_interval;size:16;not null;uniqueIndex:bar_sym_int_time,priority:2"`
	Time     time.Time `gorm:"column:bar_time;not null;uniqueIndex:bar_sym_int_time,priority:3"`

	Open   float64 `gorm:"not null"`
	High   float64 `gorm:"not null"`
	Low    float64 `gorm:"not null"`
	Close  float64 `gorm:"not null"`
	Volume int64   `gorm:"not null;default:0"`
}

func (BarModel) TableName() string {
	return "bars"
}

// SQLStore keeps the bars of one (symbol, interval) series in a SQL table.
type SQLStore struct {
	db       *gorm.DB
	symbol   string
	interval string
}

// OpenSQLite opens (and creates if needed) the SQLite database at path.
func OpenSQLite(path string) (*gorm.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	return db, nil
}

// OpenPostgres connects to the database described by dsn.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil
}

// NewSQLStore migrates the bars table and returns a store for one series.
func NewSQLStore(db *gorm.DB, symbol, interval string) (*SQLStore, error) {
	if err := db.AutoMigrate(&BarModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return &SQLStore{db: db, symbol: symbol, interval: interval}, nil
}

func (s *SQLStore) Location() string {
	return fmt.Sprintf("%s:%s/%s", s.db.Dialector.Name(), s.symbol, s.interval)
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Load returns the stored series ordered by time.
func (s *SQLStore) Load(ctx context.Context) (model.Table, error) {
	var rows []BarModel
	err := s.db.WithContext(ctx).
		Where(&BarModel{Symbol: s.symbol, Interval: s.interval}).
		Order("bar_time ASC").
		Find(&rows).Error
	if err != nil {
		return model.Table{}, fmt.Errorf("failed to query bars: %w", err)
	}

	bars := make([]model.Bar, 0, len(rows))
	for _, m := range rows {
		bars = append(bars, model.Bar{
			Timestamp: m.Time,
			Open:      m.Open,
			High:      m.High,
			Low:       m.Low,
			Close:     m.Close,
			Volume:    m.Volume,
		})
	}
	return model.NewTable(bars), nil
}

// Save replaces the stored series with t in one transaction.
func (s *SQLStore) Save(ctx context.Context, t model.Table) error {
	ms := make([]BarModel, 0, t.Len())
	for _, b := range t.Bars() {
		ms = append(ms, BarModel{
			Symbol:   s.symbol,
			Interval: s.interval,
			Time:     b.Timestamp.UTC(),
			Open:     b.Open,
			High:     b.High,
			Low:      b.Low,
			Close:    b.Close,
			Volume:   b.Volume,
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(&BarModel{Symbol: s.symbol, Interval: s.interval}).Delete(&BarModel{}).Error; err != nil {
			return fmt.Errorf("failed to clear series: %w", err)
		}
		if len(ms) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(&ms, insertBatchSize).Error; err != nil {
			return fmt.Errorf("failed to insert bars: %w", err)
		}
		return nil
	})
}
