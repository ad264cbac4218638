package watch

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/solwatch/solwatch/core"
	"github.com/solwatch/solwatch/feed"
)

// Executor turns a triggered order into a confirmed on-chain swap and
// returns the transaction signature
type Executor interface {
	Execute(ctx context.Context, order *core.Order) (string, error)
}

// OrderManager owns the active limit orders. Orders are indexed and
// evaluated under the output token's symbol: the order buys the output
// token whenever its price falls to or below the limit.
type OrderManager struct {
	ctx      context.Context
	storage  core.Storage
	router   *feed.Router
	resolver core.TokenResolver
	executor Executor
	notifier core.Notifier
	log      core.Logger
	idx      *symbolIndex[*core.Order]
}

// NewOrderManager creates an order manager
func NewOrderManager(
	ctx context.Context,
	storage core.Storage,
	router *feed.Router,
	resolver core.TokenResolver,
	executor Executor,
	notifier core.Notifier,
	log core.Logger,
) *OrderManager {
	return &OrderManager{
		ctx:      ctx,
		storage:  storage,
		router:   router,
		resolver: resolver,
		executor: executor,
		notifier: notifier,
		log:      log,
		idx:      newSymbolIndex(func(o *core.Order) int64 { return o.ID }),
	}
}

// Initialize rebuilds the in-memory index from every active order in the
// store and subscribes each one. A store read failure aborts startup.
func (m *OrderManager) Initialize(ctx context.Context) error {
	orders, err := m.storage.Orders(ctx, core.WithActiveOrders())
	if err != nil {
		return fmt.Errorf("load active orders: %w", err)
	}

	for _, order := range orders {
		m.index(order)
	}

	m.log.Infof("loaded %d active orders", len(orders))
	return nil
}

// Add validates, persists and arms a new limit order. Token identifiers
// may be symbols or mint addresses; both must resolve to metadata.
func (m *OrderManager) Add(ctx context.Context, ownerID int64, inputToken, outputToken string, limit, amount decimal.Decimal) (*core.Order, error) {
	if limit.Sign() <= 0 {
		return nil, core.ErrInvalidPrice
	}
	if amount.Sign() <= 0 {
		return nil, core.ErrInvalidAmount
	}

	input, err := m.resolver.Resolve(ctx, inputToken)
	if err != nil {
		return nil, fmt.Errorf("resolve input token %q: %w", inputToken, err)
	}
	output, err := m.resolver.Resolve(ctx, outputToken)
	if err != nil {
		return nil, fmt.Errorf("resolve output token %q: %w", outputToken, err)
	}

	order := &core.Order{
		OwnerID:      ownerID,
		InputMint:    input.MintAddress,
		InputSymbol:  input.Symbol,
		OutputMint:   output.MintAddress,
		OutputSymbol: output.Symbol,
		LimitPrice:   limit,
		InputAmount:  amount,
		Active:       true,
		Status:       core.OrderStatusOpen,
	}
	if err := m.storage.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	m.index(order)
	return order, nil
}

// Remove cancels an order. Removing an unknown or already-inactive id is
// a no-op; a race with an in-flight trigger is resolved by the index
// claim.
func (m *OrderManager) Remove(ctx context.Context, id int64) error {
	m.router.UnsubscribeByID(id, core.KindOrder)

	if _, ok := m.idx.claimAny(id); !ok {
		return nil
	}

	if err := m.storage.DeactivateOrder(ctx, id, core.OrderStatusCancelled); err != nil {
		m.log.WithError(err).Errorf("could not persist order %d removal", id)
		return fmt.Errorf("deactivate order %d: %w", id, err)
	}
	return nil
}

// RemoveAll cancels every active order belonging to an owner
func (m *OrderManager) RemoveAll(ctx context.Context, ownerID int64) error {
	orders, err := m.ListActive(ctx, ownerID)
	if err != nil {
		return err
	}
	for _, order := range orders {
		if err := m.Remove(ctx, order.ID); err != nil {
			return err
		}
	}
	return nil
}

// ListActive reads the owner's active orders through to the store
func (m *OrderManager) ListActive(ctx context.Context, ownerID int64) ([]*core.Order, error) {
	return m.storage.Orders(ctx, core.WithOrderOwner(ownerID), core.WithActiveOrders())
}

// index inserts the order under its output symbol and registers its tick
// subscription
func (m *OrderManager) index(order *core.Order) {
	id := order.ID
	m.idx.insert(order.OutputSymbol, order)
	m.router.Subscribe(order.OutputSymbol, id, core.KindOrder, func(tick core.PriceTick) {
		m.handleTick(id, tick)
	})
}

// handleTick evaluates one order against one tick. On trigger the order
// is unsubscribed and claimed first, its deactivation is persisted, and
// execution is handed off to a detached goroutine so the dispatch loop
// never waits on the pipeline's network round-trips.
func (m *OrderManager) handleTick(id int64, tick core.PriceTick) {
	order, ok := m.idx.get(tick.Symbol, id)
	if !ok {
		return
	}
	if !order.ShouldTrigger(tick.Price) {
		return
	}

	m.router.UnsubscribeByID(id, core.KindOrder)
	order, ok = m.idx.claim(tick.Symbol, id)
	if !ok {
		return
	}

	if err := m.storage.DeactivateOrder(m.ctx, id, core.OrderStatusTriggered); err != nil {
		m.log.WithError(err).Errorf("could not deactivate triggered order %d", id)
	}

	m.log.Infof("order %d triggered: %s at %s (limit %s)",
		id, order.OutputSymbol, tick.Price.String(), order.LimitPrice.String())

	go m.execute(order, tick.Price)
}

// execute drives the execution pipeline for a claimed order and records
// the terminal state. The order is never automatically re-armed.
func (m *OrderManager) execute(order *core.Order, price decimal.Decimal) {
	signature, err := m.executor.Execute(m.ctx, order)
	if err != nil {
		if perr := m.storage.DeactivateOrder(m.ctx, order.ID, core.OrderStatusFailed); perr != nil {
			m.log.WithError(perr).Errorf("could not persist failed status for order %d", order.ID)
		}
		m.log.WithError(err).Errorf("order %d execution failed", order.ID)
		return
	}

	if perr := m.storage.DeactivateOrder(m.ctx, order.ID, core.OrderStatusFilled); perr != nil {
		m.log.WithError(perr).Errorf("could not persist filled status for order %d", order.ID)
	}

	m.notifyFilled(order, price, signature)
}

// notifyFilled sends the execution notification, best-effort
func (m *OrderManager) notifyFilled(order *core.Order, price decimal.Decimal, signature string) {
	text := fmt.Sprintf(
		"🔔 Order Triggered!\n\n%s is now $%s (limit $%s)\n\nSwapped %s %s for %s\n\nhttps://solscan.io/tx/%s",
		order.OutputSymbol, price.String(), order.LimitPrice.String(),
		order.InputAmount.String(), order.InputSymbol, order.OutputSymbol, signature,
	)
	if err := m.notifier.Send(order.OwnerID, text); err != nil {
		m.log.WithError(err).Errorf("could not notify owner %d for order %d", order.OwnerID, order.ID)
	}
}
