// Package storage persists quote ticks through gorm.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shubham-shewale/stock-quotes/pkg/config"
	"github.com/shubham-shewale/stock-quotes/pkg/models"
)

const insertBatchSize = 100

// QuoteRecord is one persisted quote tick
type QuoteRecord struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at"`
	Exchange  string    `gorm:"column:exchange;type:varchar(64);not null"`
	Symbol    string    `gorm:"column:symbol;type:varchar(16);index;not null"`
	Name      string    `gorm:"column:name;type:varchar(64)"`
	Bid       float64   `gorm:"column:bid"`
	Ask       float64   `gorm:"column:ask"`
	Price     float64   `gorm:"column:price"`
	Spread    float64   `gorm:"column:spread"`
	Volume    int       `gorm:"column:volume"`
	Share     int       `gorm:"column:share"`
	Period    int64     `gorm:"column:period;index"` // tick time, unix micro
	Epoch     int64     `gorm:"column:epoch"`
	SeqID     int64     `gorm:"column:seq_id"`
	Stocks    int       `gorm:"column:stocks"`      // shares held
	Value     float64   `gorm:"column:quote_value"` // price * stocks
}

func (QuoteRecord) TableName() string { return "quotes" }

// Open connects to Postgres using the configured DSN.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is empty")
	}
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

type QuoteRepository struct {
	db *gorm.DB
}

func NewQuoteRepository(db *gorm.DB) *QuoteRepository {
	return &QuoteRepository{db: db}
}

func (r *QuoteRepository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&QuoteRecord{})
}

// SaveBatch appends ticks; it never updates existing rows.
func (r *QuoteRepository) SaveBatch(ctx context.Context, ticks []models.QuoteTick) error {
	if len(ticks) == 0 {
		return nil
	}
	records := make([]QuoteRecord, len(ticks))
	for i, t := range ticks {
		records[i] = toRecord(t)
	}
	if err := r.db.WithContext(ctx).CreateInBatches(records, insertBatchSize).Error; err != nil {
		return fmt.Errorf("failed to save %d quotes: %w", len(records), err)
	}
	return nil
}

// Count returns the number of persisted quotes, all symbols when symbol is empty.
func (r *QuoteRepository) Count(ctx context.Context, symbol string) (int64, error) {
	var n int64
	q := r.db.WithContext(ctx).Model(&QuoteRecord{})
	if symbol != "" {
		q = q.Where("symbol = ?", symbol)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count quotes: %w", err)
	}
	return n, nil
}

func toRecord(t models.QuoteTick) QuoteRecord {
	return QuoteRecord{
		Exchange: t.Exchange,
		Symbol:   t.Symbol,
		Name:     t.Name,
		Bid:      t.Bid,
		Ask:      t.Ask,
		Price:    t.Price,
		Spread:   t.Spread,
		Volume:   t.Volume,
		Share:    t.Share,
		Period:   t.Timestamp,
		Epoch:    t.Epoch,
		SeqID:    t.SeqID,
		Stocks:   t.Share,
		Value:    decimal.NewFromFloat(t.Price).Mul(decimal.NewFromInt(int64(t.Share))).Round(2).InexactFloat64(),
	}
}
