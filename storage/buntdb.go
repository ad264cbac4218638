// Package storage provides the persistent watcher stores: an embedded
// BuntDB store and a SQL store behind the same core.Storage contract.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/solwatch/solwatch/core"
	"github.com/tidwall/buntdb"
)

const (
	alertPrefix = "alert:"
	orderPrefix = "order:"

	alertIndexName = "alerts"
	orderIndexName = "orders"
)

// BuntStorage implements core.Storage using BuntDB
type BuntStorage struct {
	lastAlertID int64
	lastOrderID int64
	db          *buntdb.DB
}

// NewFromMemory creates an in-memory storage
func NewFromMemory() (*BuntStorage, error) {
	return NewBuntStorage(":memory:")
}

// NewFromFile creates a file-based storage
func NewFromFile(file string) (*BuntStorage, error) {
	return NewBuntStorage(file)
}

// NewBuntStorage opens a BuntDB watcher store. Assigned ids resume past
// the highest persisted id so they are never reused across restarts.
func NewBuntStorage(sourceFile string) (*BuntStorage, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	if err := db.SetConfig(buntdb.Config{SyncPolicy: buntdb.EverySecond}); err != nil {
		return nil, fmt.Errorf("failed to configure buntdb: %w", err)
	}

	if err := db.CreateIndex(alertIndexName, alertPrefix+"*", buntdb.IndexJSON("id")); err != nil {
		return nil, fmt.Errorf("failed to create alert index: %w", err)
	}
	if err := db.CreateIndex(orderIndexName, orderPrefix+"*", buntdb.IndexJSON("id")); err != nil {
		return nil, fmt.Errorf("failed to create order index: %w", err)
	}

	s := &BuntStorage{db: db}
	if err := s.restoreCounters(); err != nil {
		return nil, err
	}
	return s, nil
}

// restoreCounters seeds the id counters from the highest persisted keys
func (s *BuntStorage) restoreCounters() error {
	return s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("*", func(key, _ string) bool {
			prefix, raw, found := strings.Cut(key, ":")
			if !found {
				return true
			}
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return true
			}
			switch prefix + ":" {
			case alertPrefix:
				if id > s.lastAlertID {
					s.lastAlertID = id
				}
			case orderPrefix:
				if id > s.lastOrderID {
					s.lastOrderID = id
				}
			}
			return true
		})
	})
}

// CreateAlert stores a new alert and assigns its id
func (s *BuntStorage) CreateAlert(_ context.Context, alert *core.Alert) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		if alert.ID == 0 {
			alert.ID = atomic.AddInt64(&s.lastAlertID, 1)
		}
		now := time.Now()
		alert.CreatedAt = now
		alert.UpdatedAt = now

		content, err := json.Marshal(alert)
		if err != nil {
			return fmt.Errorf("failed to marshal alert: %w", err)
		}

		key := alertPrefix + strconv.FormatInt(alert.ID, 10)
		if _, _, err := tx.Set(key, string(content), nil); err != nil {
			return fmt.Errorf("failed to store alert: %w", err)
		}
		return nil
	})
}

// DeactivateAlert flips the alert's active flag; already-inactive alerts
// are left untouched
func (s *BuntStorage) DeactivateAlert(_ context.Context, id int64) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		key := alertPrefix + strconv.FormatInt(id, 10)
		value, err := tx.Get(key)
		if err != nil {
			return fmt.Errorf("alert %d not found: %w", id, err)
		}

		var alert core.Alert
		if err := json.Unmarshal([]byte(value), &alert); err != nil {
			return fmt.Errorf("failed to unmarshal alert %d: %w", id, err)
		}
		if !alert.Active {
			return nil
		}

		alert.Active = false
		alert.UpdatedAt = time.Now()

		content, err := json.Marshal(&alert)
		if err != nil {
			return fmt.Errorf("failed to marshal alert: %w", err)
		}
		if _, _, err := tx.Set(key, string(content), nil); err != nil {
			return fmt.Errorf("failed to update alert: %w", err)
		}
		return nil
	})
}

// Alerts retrieves alerts matching all provided filters
func (s *BuntStorage) Alerts(_ context.Context, filters ...core.AlertFilter) ([]*core.Alert, error) {
	alerts := make([]*core.Alert, 0)

	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend(alertIndexName, func(_, value string) bool {
			var alert core.Alert
			if err := json.Unmarshal([]byte(value), &alert); err != nil {
				return true
			}
			for _, filter := range filters {
				if !filter(alert) {
					return true
				}
			}
			alerts = append(alerts, &alert)
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	return alerts, nil
}

// CreateOrder stores a new order and assigns its id
func (s *BuntStorage) CreateOrder(_ context.Context, order *core.Order) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		if order.ID == 0 {
			order.ID = atomic.AddInt64(&s.lastOrderID, 1)
		}
		now := time.Now()
		order.CreatedAt = now
		order.UpdatedAt = now

		content, err := json.Marshal(order)
		if err != nil {
			return fmt.Errorf("failed to marshal order: %w", err)
		}

		key := orderPrefix + strconv.FormatInt(order.ID, 10)
		if _, _, err := tx.Set(key, string(content), nil); err != nil {
			return fmt.Errorf("failed to store order: %w", err)
		}
		return nil
	})
}

// DeactivateOrder flips the order's active flag and records the status
// that caused it. Repeated calls only update the status.
func (s *BuntStorage) DeactivateOrder(_ context.Context, id int64, status core.OrderStatus) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		key := orderPrefix + strconv.FormatInt(id, 10)
		value, err := tx.Get(key)
		if err != nil {
			return fmt.Errorf("order %d not found: %w", id, err)
		}

		var order core.Order
		if err := json.Unmarshal([]byte(value), &order); err != nil {
			return fmt.Errorf("failed to unmarshal order %d: %w", id, err)
		}

		order.Active = false
		order.Status = status
		order.UpdatedAt = time.Now()

		content, err := json.Marshal(&order)
		if err != nil {
			return fmt.Errorf("failed to marshal order: %w", err)
		}
		if _, _, err := tx.Set(key, string(content), nil); err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}
		return nil
	})
}

// Orders retrieves orders matching all provided filters
func (s *BuntStorage) Orders(_ context.Context, filters ...core.OrderFilter) ([]*core.Order, error) {
	orders := make([]*core.Order, 0)

	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend(orderIndexName, func(_, value string) bool {
			var order core.Order
			if err := json.Unmarshal([]byte(value), &order); err != nil {
				return true
			}
			for _, filter := range filters {
				if !filter(order) {
					return true
				}
			}
			orders = append(orders, &order)
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	return orders, nil
}

// Close closes the database
func (s *BuntStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
