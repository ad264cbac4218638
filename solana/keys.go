// Package solana provides the chain-facing pieces the execution pipeline
// needs: keypairs and signing, transaction message assembly, lookup-table
// resolution and submission over JSON-RPC.
package solana

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
	"github.com/solwatch/solwatch/core"
)

var ErrNoKeypair = errors.New("no keypair registered for owner")

// Keypair is an ed25519 keypair implementing core.Signer
type Keypair struct {
	priv ed25519.PrivateKey
	pub  string
}

// KeypairFromBase58 decodes a base58-encoded secret key. Both the 64-byte
// secret (seed plus public key) and the bare 32-byte seed are accepted.
func KeypairFromBase58(secret string) (*Keypair, error) {
	raw, err := base58.Decode(secret)
	if err != nil {
		return nil, fmt.Errorf("decode secret key: %w", err)
	}

	var priv ed25519.PrivateKey
	switch len(raw) {
	case ed25519.PrivateKeySize:
		priv = ed25519.PrivateKey(raw)
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(raw)
	default:
		return nil, fmt.Errorf("secret key must be %d or %d bytes, got %d",
			ed25519.PrivateKeySize, ed25519.SeedSize, len(raw))
	}

	pub := priv.Public().(ed25519.PublicKey)
	encoded := base58.Encode(pub)
	if err := ValidatePublicKey(encoded); err != nil {
		return nil, err
	}

	return &Keypair{priv: priv, pub: encoded}, nil
}

// PublicKey returns the base58-encoded public key
func (k *Keypair) PublicKey() string {
	return k.pub
}

// Sign signs the message bytes with the keypair's private key
func (k *Keypair) Sign(message []byte) ([]byte, error) {
	return ed25519.Sign(k.priv, message), nil
}

// ValidatePublicKey checks that s is a base58-encoded point on the
// ed25519 curve
func ValidatePublicKey(s string) error {
	raw, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("decode public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return fmt.Errorf("public key is not on the ed25519 curve: %w", err)
	}
	return nil
}

// KeypairStore holds the signing capability registered per owner and
// implements core.SignerResolver. Key custody beyond this lookup is out
// of scope for the engine.
type KeypairStore struct {
	mu      sync.RWMutex
	byOwner map[int64]*Keypair
}

// NewKeypairStore creates an empty keypair store
func NewKeypairStore() *KeypairStore {
	return &KeypairStore{byOwner: make(map[int64]*Keypair)}
}

// Register stores the base58-encoded secret key for an owner
func (s *KeypairStore) Register(ownerID int64, secretBase58 string) error {
	keypair, err := KeypairFromBase58(secretBase58)
	if err != nil {
		return fmt.Errorf("register keypair for owner %d: %w", ownerID, err)
	}

	s.mu.Lock()
	s.byOwner[ownerID] = keypair
	s.mu.Unlock()
	return nil
}

// SignerFor implements core.SignerResolver
func (s *KeypairStore) SignerFor(_ context.Context, ownerID int64) (core.Signer, error) {
	s.mu.RLock()
	keypair, ok := s.byOwner[ownerID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoKeypair, ownerID)
	}
	return keypair, nil
}
