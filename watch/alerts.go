package watch

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/solwatch/solwatch/core"
	"github.com/solwatch/solwatch/feed"
)

// SymbolChecker answers whether a symbol is carried by the price feed
type SymbolChecker interface {
	HasSymbol(symbol string) bool
}

// AlertManager owns the active price alerts. A triggered alert notifies
// its owner once and is deactivated; it never fires again.
type AlertManager struct {
	ctx      context.Context
	storage  core.Storage
	router   *feed.Router
	symbols  SymbolChecker
	notifier core.Notifier
	log      core.Logger
	idx      *symbolIndex[*core.Alert]
}

// NewAlertManager creates an alert manager
func NewAlertManager(
	ctx context.Context,
	storage core.Storage,
	router *feed.Router,
	symbols SymbolChecker,
	notifier core.Notifier,
	log core.Logger,
) *AlertManager {
	return &AlertManager{
		ctx:      ctx,
		storage:  storage,
		router:   router,
		symbols:  symbols,
		notifier: notifier,
		log:      log,
		idx:      newSymbolIndex(func(a *core.Alert) int64 { return a.ID }),
	}
}

// Initialize rebuilds the in-memory index from every active alert in the
// store and subscribes each one. A store read failure aborts startup.
func (m *AlertManager) Initialize(ctx context.Context) error {
	alerts, err := m.storage.Alerts(ctx, core.WithActiveAlerts())
	if err != nil {
		return fmt.Errorf("load active alerts: %w", err)
	}

	for _, alert := range alerts {
		m.index(alert)
	}

	m.log.Infof("loaded %d active alerts", len(alerts))
	return nil
}

// Add validates, persists and arms a new alert, returning it with its
// assigned id
func (m *AlertManager) Add(ctx context.Context, ownerID int64, symbol string, target decimal.Decimal, condition core.Condition) (*core.Alert, error) {
	if !condition.Valid() {
		return nil, core.ErrInvalidCondition
	}
	if target.Sign() <= 0 {
		return nil, core.ErrInvalidPrice
	}
	if !m.symbols.HasSymbol(symbol) {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidSymbol, symbol)
	}

	alert := &core.Alert{
		OwnerID:     ownerID,
		Symbol:      symbol,
		TargetPrice: target,
		Condition:   condition,
		Active:      true,
	}
	if err := m.storage.CreateAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("persist alert: %w", err)
	}

	m.index(alert)
	return alert, nil
}

// Remove cancels an alert. Removing an unknown or already-inactive id is
// a no-op, and a race with an in-flight trigger is resolved by whichever
// claims the index entry first.
func (m *AlertManager) Remove(ctx context.Context, id int64) error {
	m.router.UnsubscribeByID(id, core.KindAlert)

	if _, ok := m.idx.claimAny(id); !ok {
		return nil
	}

	if err := m.storage.DeactivateAlert(ctx, id); err != nil {
		m.log.WithError(err).Errorf("could not persist alert %d removal", id)
		return fmt.Errorf("deactivate alert %d: %w", id, err)
	}
	return nil
}

// RemoveAll cancels every active alert belonging to an owner
func (m *AlertManager) RemoveAll(ctx context.Context, ownerID int64) error {
	alerts, err := m.ListActive(ctx, ownerID)
	if err != nil {
		return err
	}
	for _, alert := range alerts {
		if err := m.Remove(ctx, alert.ID); err != nil {
			return err
		}
	}
	return nil
}

// ListActive reads the owner's active alerts through to the store
func (m *AlertManager) ListActive(ctx context.Context, ownerID int64) ([]*core.Alert, error) {
	return m.storage.Alerts(ctx, core.WithAlertOwner(ownerID), core.WithActiveAlerts())
}

// index inserts the alert and registers its tick subscription
func (m *AlertManager) index(alert *core.Alert) {
	id := alert.ID
	m.idx.insert(alert.Symbol, alert)
	m.router.Subscribe(alert.Symbol, id, core.KindAlert, func(tick core.PriceTick) {
		m.handleTick(id, tick)
	})
}

// handleTick evaluates one alert against one tick. On trigger it
// unsubscribes before anything else, then claims the index entry,
// persists the deactivation and finally notifies. The persisted flag is
// flipped before the notification goes out: a crash between the two loses
// at most the message, never re-arms the alert.
func (m *AlertManager) handleTick(id int64, tick core.PriceTick) {
	alert, ok := m.idx.get(tick.Symbol, id)
	if !ok {
		return
	}
	if !alert.ShouldTrigger(tick.Price) {
		return
	}

	m.router.UnsubscribeByID(id, core.KindAlert)
	alert, ok = m.idx.claim(tick.Symbol, id)
	if !ok {
		// Lost the claim to a concurrent cancellation
		return
	}

	if err := m.storage.DeactivateAlert(m.ctx, id); err != nil {
		m.log.WithError(err).Errorf("could not deactivate triggered alert %d", id)
	}

	m.notifyTriggered(alert, tick.Price)
}

// notifyTriggered sends the trigger message, best-effort
func (m *AlertManager) notifyTriggered(alert *core.Alert, price decimal.Decimal) {
	text := fmt.Sprintf(
		"🔔 Alert Triggered!\n\n%s is now $%s\n\nYour alert was set for when price goes %s $%s",
		alert.Symbol, price.String(), alert.Condition, alert.TargetPrice.String(),
	)
	if err := m.notifier.Send(alert.OwnerID, text); err != nil {
		m.log.WithError(err).Errorf("could not notify owner %d for alert %d", alert.OwnerID, alert.ID)
	}
}
