package core

import (
	"context"

	"github.com/shopspring/decimal"
)

// CatalogProvider returns the provider's full price-feed catalog. It is
// called once at feed startup; a failure there is fatal to the feed.
type CatalogProvider interface {
	SymbolCatalog(ctx context.Context) ([]PriceFeed, error)
}

// TokenResolver resolves a symbol or mint address to token metadata.
// Unknown tokens yield ErrTokenNotFound.
type TokenResolver interface {
	Resolve(ctx context.Context, symbolOrMint string) (*TokenMetadata, error)
}

// SwapRequest asks the quote provider for an unsigned swap of Amount base
// units of the input mint into the output mint, payable by Taker.
type SwapRequest struct {
	InputMint  string
	OutputMint string
	Amount     decimal.Decimal
	Taker      string
}

// Instruction is a single unsigned program instruction of a swap route.
type Instruction struct {
	ProgramID string        `json:"programId"`
	Accounts  []AccountMeta `json:"accounts"`
	Data      []byte        `json:"data"`
}

// AccountMeta references one account an instruction touches.
type AccountMeta struct {
	Pubkey     string `json:"pubkey"`
	IsSigner   bool   `json:"isSigner"`
	IsWritable bool   `json:"isWritable"`
}

// SwapInstructions is the quote provider's answer: the ordered instruction
// list plus the address-lookup-table accounts the instructions depend on.
type SwapInstructions struct {
	Instructions        []Instruction
	LookupTableAccounts []string
}

// SwapProvider builds unsigned swap instructions for a token pair.
type SwapProvider interface {
	UnsignedSwap(ctx context.Context, req SwapRequest) (*SwapInstructions, error)
}

// LookupResolver fetches the contents of address lookup tables, keyed by
// the table account. Tables are opaque to the engine beyond address lists.
type LookupResolver interface {
	LookupTables(ctx context.Context, accounts []string) (map[string][]string, error)
}

// Signer is an owner's signing capability. The key material behind it is
// out of scope for the engine.
type Signer interface {
	PublicKey() string
	Sign(message []byte) ([]byte, error)
}

// SignerResolver resolves the signer capability registered for an owner.
type SignerResolver interface {
	SignerFor(ctx context.Context, ownerID int64) (Signer, error)
}

// Submitter submits a signed transaction and blocks until it is confirmed
// or definitively failed, returning the transaction signature.
type Submitter interface {
	SubmitAndConfirm(ctx context.Context, signedTx []byte) (string, error)
}

// Notifier delivers a message to an owner. Delivery is best-effort; the
// engine logs failures and moves on.
type Notifier interface {
	Send(ownerID int64, text string) error
}

// Level represents logging severity levels
type Level int8

const (
	TraceLevel Level = iota - 1
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
	PanicLevel
	NoLevel
	Disabled
)

// Logger is the logging contract used across the engine
type Logger interface {
	WithField(key string, value any) Logger
	WithFields(fields map[string]any) Logger
	WithError(err error) Logger

	Trace(args ...any)
	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)
	Fatal(args ...any)

	Tracef(format string, args ...any)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)

	SetLevel(level Level)
	GetLevel() Level
}
