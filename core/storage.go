package core

import "context"

// AlertFilter narrows alert queries
type AlertFilter func(Alert) bool

// OrderFilter narrows order queries
type OrderFilter func(Order) bool

// Storage is the persistent watcher store. Watchers are created once and
// mutated only by flipping the active flag (plus, for orders, a status
// tag); triggered and cancelled rows stay in the store for audit history.
type Storage interface {
	// CreateAlert stores a new alert and assigns its ID
	CreateAlert(ctx context.Context, alert *Alert) error

	// DeactivateAlert flips the alert's active flag. Deactivating an
	// already-inactive alert is a no-op.
	DeactivateAlert(ctx context.Context, id int64) error

	// Alerts retrieves alerts matching all provided filters
	Alerts(ctx context.Context, filters ...AlertFilter) ([]*Alert, error)

	// CreateOrder stores a new order and assigns its ID
	CreateOrder(ctx context.Context, order *Order) error

	// DeactivateOrder flips the order's active flag and records the
	// lifecycle status that caused the flip. Repeated calls only update
	// the status.
	DeactivateOrder(ctx context.Context, id int64, status OrderStatus) error

	// Orders retrieves orders matching all provided filters
	Orders(ctx context.Context, filters ...OrderFilter) ([]*Order, error)

	Close() error
}

func WithActiveAlerts() AlertFilter {
	return func(a Alert) bool { return a.Active }
}

func WithAlertOwner(ownerID int64) AlertFilter {
	return func(a Alert) bool { return a.OwnerID == ownerID }
}

func WithAlertSymbol(symbol string) AlertFilter {
	return func(a Alert) bool { return a.Symbol == symbol }
}

func WithActiveOrders() OrderFilter {
	return func(o Order) bool { return o.Active }
}

func WithOrderOwner(ownerID int64) OrderFilter {
	return func(o Order) bool { return o.OwnerID == ownerID }
}

func WithOrderStatus(status OrderStatus) OrderFilter {
	return func(o Order) bool { return o.Status == status }
}
