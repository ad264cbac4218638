package solwatch

import (
	"github.com/solwatch/solwatch/core"
	"github.com/solwatch/solwatch/watch"
)

// Option is a functional option for configuring an Engine instance
type Option func(*Engine)

// WithStorage sets the watcher store, by default a local BuntDB file is used
func WithStorage(storage core.Storage) Option {
	return func(engine *Engine) {
		engine.storage = storage
	}
}

// WithNotifier sets the delivery channel for trigger notifications,
// replacing Telegram or the log fallback
func WithNotifier(notifier core.Notifier) Option {
	return func(engine *Engine) {
		engine.notifier = notifier
	}
}

// WithCatalog sets the price-feed catalog provider
func WithCatalog(catalog core.CatalogProvider) Option {
	return func(engine *Engine) {
		engine.catalog = catalog
	}
}

// WithTokenResolver sets the token metadata resolver
func WithTokenResolver(resolver core.TokenResolver) Option {
	return func(engine *Engine) {
		engine.resolver = resolver
	}
}

// WithExecutor sets the order executor, replacing the stock swap pipeline
func WithExecutor(executor watch.Executor) Option {
	return func(engine *Engine) {
		engine.executor = executor
	}
}
