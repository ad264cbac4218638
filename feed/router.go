// Package feed maintains the upstream price-feed connection and fans
// incoming ticks out to registered watchers by symbol.
package feed

import (
	"sync"

	"github.com/StudioSol/set"
	"github.com/solwatch/solwatch/core"
)

// TickHandler is a function type that processes price ticks
type TickHandler func(core.PriceTick)

// SymbolActivator requests that a symbol be carried on the upstream
// connection's active set. Activation is idempotent.
type SymbolActivator interface {
	Activate(symbol string)
}

// subscription is one watcher's registration on a symbol, tagged so it
// can be removed precisely by id
type subscription struct {
	id      int64
	kind    core.WatcherKind
	handler TickHandler
}

// Router is a symbol-keyed pub/sub fan-out with identity-based
// unsubscribe. It is the single consumer of the feed connection.
type Router struct {
	activator             SymbolActivator
	activated             *set.LinkedHashSetString
	subscriptionsBySymbol map[string][]subscription
	log                   core.Logger
	mu                    sync.RWMutex
}

// NewRouter creates a new tick router
func NewRouter(activator SymbolActivator, log core.Logger) *Router {
	return &Router{
		activator:             activator,
		activated:             set.NewLinkedHashSetString(),
		subscriptionsBySymbol: make(map[string][]subscription),
		log:                   log,
	}
}

// Subscribe registers handler for a symbol under (id, kind). The first
// subscriber of a symbol requests upstream activation.
func (r *Router) Subscribe(symbol string, id int64, kind core.WatcherKind, handler TickHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.subscriptionsBySymbol[symbol]) == 0 && r.activator != nil {
		r.activator.Activate(symbol)
	}
	r.activated.Add(symbol)

	r.subscriptionsBySymbol[symbol] = append(r.subscriptionsBySymbol[symbol], subscription{
		id:      id,
		kind:    kind,
		handler: handler,
	})
}

// UnsubscribeByID removes the subscription tagged (id, kind). Unknown ids
// are a no-op. Empty symbol entries are dropped; the upstream symbol
// subscription is left active.
func (r *Router) UnsubscribeByID(id int64, kind core.WatcherKind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for symbol, subs := range r.subscriptionsBySymbol {
		for i, sub := range subs {
			if sub.id != id || sub.kind != kind {
				continue
			}
			subs = append(subs[:i], subs[i+1:]...)
			if len(subs) == 0 {
				delete(r.subscriptionsBySymbol, symbol)
			} else {
				r.subscriptionsBySymbol[symbol] = subs
			}
			return
		}
	}
}

// ActiveSymbols returns every symbol that has ever been subscribed, in
// first-subscription order
func (r *Router) ActiveSymbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activated.AsSlice()
}

// Subscribed reports whether a symbol currently has subscribers
func (r *Router) Subscribed(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscriptionsBySymbol[symbol]) > 0
}

// Dispatch delivers a tick to every subscriber registered for its symbol.
// The subscriber set is snapshotted at dispatch time, so a concurrent
// unsubscribe does not affect the current cycle.
func (r *Router) Dispatch(tick core.PriceTick) {
	r.mu.RLock()
	subs := r.subscriptionsBySymbol[tick.Symbol]
	snapshot := make([]subscription, len(subs))
	copy(snapshot, subs)
	r.mu.RUnlock()

	for _, sub := range snapshot {
		r.invoke(sub, tick)
	}
}

// invoke runs a single handler, containing panics so one faulty watcher
// cannot block dispatch to its siblings
func (r *Router) invoke(sub subscription, tick core.PriceTick) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithFields(map[string]any{
				"id":     sub.id,
				"kind":   sub.kind,
				"symbol": tick.Symbol,
			}).Errorf("tick handler panicked: %v", rec)
		}
	}()
	sub.handler(tick)
}
