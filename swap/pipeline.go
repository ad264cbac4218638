// Package swap drives the execution pipeline that turns a triggered
// order into a confirmed on-chain swap: build, sign, submit, confirm.
package swap

import (
	"context"
	"fmt"
	"time"

	"github.com/solwatch/solwatch/core"
)

// BlockhashProvider supplies the recent blockhash a transaction message
// is bound to
type BlockhashProvider interface {
	LatestBlockhash(ctx context.Context) (string, error)
}

// Compiler assembles unsigned instructions plus resolved lookup tables
// into transaction message bytes
type Compiler interface {
	CompileMessage(payer string, instructions []core.Instruction, tables map[string][]string, recentBlockhash string) ([]byte, error)
	AssembleTransaction(message []byte, signatures [][]byte) ([]byte, error)
}

// Pipeline executes triggered orders with a bounded retry budget. Every
// step failure counts against the same budget; a confirmed submission at
// any attempt stops retrying.
type Pipeline struct {
	signers   core.SignerResolver
	resolver  core.TokenResolver
	swaps     core.SwapProvider
	lookups   core.LookupResolver
	blockhash BlockhashProvider
	compiler  Compiler
	submitter core.Submitter
	log       core.Logger

	maxAttempts  int
	attemptDelay time.Duration
}

// NewPipeline creates an execution pipeline with the given retry budget
func NewPipeline(
	settings core.SolanaSettings,
	signers core.SignerResolver,
	resolver core.TokenResolver,
	swaps core.SwapProvider,
	lookups core.LookupResolver,
	blockhash BlockhashProvider,
	compiler Compiler,
	submitter core.Submitter,
	log core.Logger,
) *Pipeline {
	return &Pipeline{
		signers:      signers,
		resolver:     resolver,
		swaps:        swaps,
		lookups:      lookups,
		blockhash:    blockhash,
		compiler:     compiler,
		submitter:    submitter,
		log:          log,
		maxAttempts:  settings.MaxAttempts,
		attemptDelay: settings.AttemptDelay,
	}
}

// Execute runs the six-step sequence up to the attempt budget with a
// fixed delay between attempts and returns the confirmed transaction
// signature. Exhaustion is permanent for this trigger.
func (p *Pipeline) Execute(ctx context.Context, order *core.Order) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(p.attemptDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		signature, err := p.attempt(ctx, order)
		if err == nil {
			p.log.Infof("order %d confirmed: %s", order.ID, signature)
			return signature, nil
		}

		lastErr = err
		p.log.WithError(err).Warnf("order %d execution attempt %d/%d failed",
			order.ID, attempt, p.maxAttempts)
	}

	return "", fmt.Errorf("%w: %v", core.ErrNoSignature, lastErr)
}

// attempt runs one full build, sign, submit and confirm sequence
func (p *Pipeline) attempt(ctx context.Context, order *core.Order) (string, error) {
	signer, err := p.signers.SignerFor(ctx, order.OwnerID)
	if err != nil {
		return "", fmt.Errorf("resolve signer for owner %d: %w", order.OwnerID, err)
	}

	input, err := p.resolver.Resolve(ctx, order.InputMint)
	if err != nil {
		return "", fmt.Errorf("resolve input token %s: %w", order.InputMint, err)
	}
	amount := order.InputAmount.Shift(input.Decimals).Truncate(0)

	unsigned, err := p.swaps.UnsignedSwap(ctx, core.SwapRequest{
		InputMint:  order.InputMint,
		OutputMint: order.OutputMint,
		Amount:     amount,
		Taker:      signer.PublicKey(),
	})
	if err != nil {
		return "", fmt.Errorf("fetch swap instructions: %w", err)
	}

	tables, err := p.lookups.LookupTables(ctx, unsigned.LookupTableAccounts)
	if err != nil {
		return "", fmt.Errorf("resolve lookup tables: %w", err)
	}

	blockhash, err := p.blockhash.LatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch recent blockhash: %w", err)
	}

	message, err := p.compiler.CompileMessage(signer.PublicKey(), unsigned.Instructions, tables, blockhash)
	if err != nil {
		return "", fmt.Errorf("compile transaction message: %w", err)
	}

	signature, err := signer.Sign(message)
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	wire, err := p.compiler.AssembleTransaction(message, [][]byte{signature})
	if err != nil {
		return "", fmt.Errorf("assemble transaction: %w", err)
	}

	txSignature, err := p.submitter.SubmitAndConfirm(ctx, wire)
	if err != nil {
		return "", fmt.Errorf("submit and confirm: %w", err)
	}
	return txSignature, nil
}
