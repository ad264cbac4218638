package vybe

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/solwatch/solwatch/core"
)

// DefaultResolverTTL is how long a fetched token directory stays fresh
const DefaultResolverTTL = 30 * time.Minute

// TokenSource fetches the token directory backing the resolver
type TokenSource interface {
	Tokens(ctx context.Context) ([]core.TokenMetadata, error)
}

// Resolver resolves symbols and mint addresses to token metadata from a
// cached copy of the provider's token directory. Implements
// core.TokenResolver.
type Resolver struct {
	source TokenSource
	ttl    time.Duration

	mu        sync.Mutex
	bySymbol  map[string]*core.TokenMetadata
	byMint    map[string]*core.TokenMetadata
	fetchedAt time.Time
}

// NewResolver creates a resolver over the token source with the given
// cache TTL; ttl <= 0 selects the default
func NewResolver(source TokenSource, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultResolverTTL
	}
	return &Resolver{
		source:   source,
		ttl:      ttl,
		bySymbol: make(map[string]*core.TokenMetadata),
		byMint:   make(map[string]*core.TokenMetadata),
	}
}

// Resolve implements core.TokenResolver. Symbols match
// case-insensitively; mint addresses match exactly.
func (r *Resolver) Resolve(ctx context.Context, symbolOrMint string) (*core.TokenMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.refreshLocked(ctx); err != nil {
		return nil, err
	}

	if token, ok := r.byMint[symbolOrMint]; ok {
		return token, nil
	}
	if token, ok := r.bySymbol[strings.ToUpper(symbolOrMint)]; ok {
		return token, nil
	}
	return nil, fmt.Errorf("%w: %s", core.ErrTokenNotFound, symbolOrMint)
}

// refreshLocked refetches the directory when the cache has gone stale.
// Caller holds r.mu.
func (r *Resolver) refreshLocked(ctx context.Context) error {
	if time.Since(r.fetchedAt) < r.ttl && len(r.byMint) > 0 {
		return nil
	}

	tokens, err := r.source.Tokens(ctx)
	if err != nil {
		// Keep serving a stale cache over failing outright
		if len(r.byMint) > 0 {
			return nil
		}
		return fmt.Errorf("fetch token directory: %w", err)
	}

	bySymbol := make(map[string]*core.TokenMetadata, len(tokens))
	byMint := make(map[string]*core.TokenMetadata, len(tokens))
	for i := range tokens {
		token := &tokens[i]
		byMint[token.MintAddress] = token
		bySymbol[strings.ToUpper(token.Symbol)] = token
	}

	r.bySymbol = bySymbol
	r.byMint = byMint
	r.fetchedAt = time.Now()
	return nil
}
