package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/solwatch/solwatch/core"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLStorage implements core.Storage using a SQL database via GORM
type SQLStorage struct {
	db *gorm.DB
}

// Config holds the configuration for SQL database connections
type Config struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns a default configuration for SQL connections
func DefaultConfig() Config {
	return Config{
		MaxIdleConns:    5,
		MaxOpenConns:    10,
		ConnMaxLifetime: time.Hour,
	}
}

// NewFromSQLite creates a new SQLite watcher store
func NewFromSQLite(dbPath string, config Config, opts ...gorm.Option) (*SQLStorage, error) {
	if len(opts) == 0 {
		opts = []gorm.Option{&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}}
	}
	return newFromSQL(sqlite.Open(dbPath), config, opts...)
}

func newFromSQL(dialect gorm.Dialector, config Config, opts ...gorm.Option) (*SQLStorage, error) {
	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)

	if err := db.AutoMigrate(&core.Alert{}, &core.Order{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLStorage{db: db}, nil
}

// CreateAlert stores a new alert; the autoincrement primary key assigns
// its id
func (s *SQLStorage) CreateAlert(ctx context.Context, alert *core.Alert) error {
	tx := s.db.WithContext(ctx)
	if result := tx.Create(alert); result.Error != nil {
		return fmt.Errorf("failed to create alert: %w", result.Error)
	}
	return nil
}

// DeactivateAlert flips the alert's active flag
func (s *SQLStorage) DeactivateAlert(ctx context.Context, id int64) error {
	tx := s.db.WithContext(ctx)

	var existing core.Alert
	if result := tx.First(&existing, id); result.Error != nil {
		return fmt.Errorf("alert %d not found: %w", id, result.Error)
	}
	if !existing.Active {
		return nil
	}

	result := tx.Model(&core.Alert{}).Where("id = ?", id).Update("active", false)
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate alert %d: %w", id, result.Error)
	}
	return nil
}

// Alerts retrieves alerts matching all provided filters
func (s *SQLStorage) Alerts(ctx context.Context, filters ...core.AlertFilter) ([]*core.Alert, error) {
	tx := s.db.WithContext(ctx)

	var alerts []*core.Alert
	if result := tx.Find(&alerts); result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to fetch alerts: %w", result.Error)
	}

	if len(filters) > 0 {
		alerts = lo.Filter(alerts, func(alert *core.Alert, _ int) bool {
			for _, filter := range filters {
				if !filter(*alert) {
					return false
				}
			}
			return true
		})
	}
	return alerts, nil
}

// CreateOrder stores a new order; the autoincrement primary key assigns
// its id
func (s *SQLStorage) CreateOrder(ctx context.Context, order *core.Order) error {
	tx := s.db.WithContext(ctx)
	if result := tx.Create(order); result.Error != nil {
		return fmt.Errorf("failed to create order: %w", result.Error)
	}
	return nil
}

// DeactivateOrder flips the order's active flag and records its status
func (s *SQLStorage) DeactivateOrder(ctx context.Context, id int64, status core.OrderStatus) error {
	tx := s.db.WithContext(ctx)

	var existing core.Order
	if result := tx.First(&existing, id); result.Error != nil {
		return fmt.Errorf("order %d not found: %w", id, result.Error)
	}

	updates := map[string]any{"active": false, "status": status}
	if result := tx.Model(&core.Order{}).Where("id = ?", id).Updates(updates); result.Error != nil {
		return fmt.Errorf("failed to deactivate order %d: %w", id, result.Error)
	}
	return nil
}

// Orders retrieves orders matching all provided filters
func (s *SQLStorage) Orders(ctx context.Context, filters ...core.OrderFilter) ([]*core.Order, error) {
	tx := s.db.WithContext(ctx)

	var orders []*core.Order
	if result := tx.Find(&orders); result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to fetch orders: %w", result.Error)
	}

	if len(filters) > 0 {
		orders = lo.Filter(orders, func(order *core.Order, _ int) bool {
			for _, filter := range filters {
				if !filter(*order) {
					return false
				}
			}
			return true
		})
	}
	return orders, nil
}

// Close closes the underlying database connection
func (s *SQLStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
