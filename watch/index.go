// Package watch holds the two watcher stores: price alerts and standing
// limit orders. Both share the same per-symbol index and at-most-once
// trigger machinery and differ only in their side effect.
package watch

import "sync"

// symbolIndex is the authoritative in-memory index of active watchers,
// keyed by evaluation symbol. All mutations happen under one mutex so
// concurrent triggers on the same symbol cannot splice the same slice.
type symbolIndex[T any] struct {
	mu    sync.Mutex
	byKey map[string][]T
	id    func(T) int64
}

func newSymbolIndex[T any](id func(T) int64) *symbolIndex[T] {
	return &symbolIndex[T]{
		byKey: make(map[string][]T),
		id:    id,
	}
}

// insert adds a watcher under its symbol key
func (x *symbolIndex[T]) insert(key string, v T) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.byKey[key] = append(x.byKey[key], v)
}

// get returns the indexed watcher with the given id, if present
func (x *symbolIndex[T]) get(key string, id int64) (T, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, v := range x.byKey[key] {
		if x.id(v) == id {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// claim removes the watcher with the given id from the index and returns
// it. Exactly one concurrent caller wins; the rest observe !ok. This is
// the at-most-once gate between a trigger and a user cancellation.
func (x *symbolIndex[T]) claim(key string, id int64) (T, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.removeLocked(key, id)
}

// claimAny claims the watcher by id without knowing its symbol, scanning
// every key. Used by user-initiated removal.
func (x *symbolIndex[T]) claimAny(id int64) (T, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	for key := range x.byKey {
		if v, ok := x.removeLocked(key, id); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func (x *symbolIndex[T]) removeLocked(key string, id int64) (T, bool) {
	vs := x.byKey[key]
	for i, v := range vs {
		if x.id(v) != id {
			continue
		}
		vs = append(vs[:i], vs[i+1:]...)
		if len(vs) == 0 {
			delete(x.byKey, key)
		} else {
			x.byKey[key] = vs
		}
		return v, true
	}
	var zero T
	return zero, false
}

// size returns the number of watchers indexed under key
func (x *symbolIndex[T]) size(key string) int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.byKey[key])
}
