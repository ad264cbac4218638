package swap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/solwatch/solwatch/core"
	zerolog "github.com/solwatch/solwatch/logger/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeSigner struct{}

func (fakeSigner) PublicKey() string             { return "payer-key" }
func (fakeSigner) Sign(_ []byte) ([]byte, error) { return make([]byte, 64), nil }

type fakeSignerResolver struct {
	err error
}

func (r fakeSignerResolver) SignerFor(context.Context, int64) (core.Signer, error) {
	if r.err != nil {
		return nil, r.err
	}
	return fakeSigner{}, nil
}

type fakeTokenResolver struct{}

func (fakeTokenResolver) Resolve(_ context.Context, _ string) (*core.TokenMetadata, error) {
	return &core.TokenMetadata{MintAddress: "mint-usdc", Symbol: "USDC", Decimals: 6}, nil
}

type fakeSwapProvider struct {
	calls    int
	requests []core.SwapRequest
}

func (p *fakeSwapProvider) UnsignedSwap(_ context.Context, req core.SwapRequest) (*core.SwapInstructions, error) {
	p.calls++
	p.requests = append(p.requests, req)
	return &core.SwapInstructions{
		Instructions:        []core.Instruction{{ProgramID: "program", Data: []byte{1}}},
		LookupTableAccounts: []string{"table-1"},
	}, nil
}

type fakeLookupResolver struct{}

func (fakeLookupResolver) LookupTables(_ context.Context, accounts []string) (map[string][]string, error) {
	tables := make(map[string][]string, len(accounts))
	for _, account := range accounts {
		tables[account] = []string{"addr-1", "addr-2"}
	}
	return tables, nil
}

type fakeBlockhash struct{}

func (fakeBlockhash) LatestBlockhash(context.Context) (string, error) { return "blockhash", nil }

type fakeCompiler struct{}

func (fakeCompiler) CompileMessage(_ string, _ []core.Instruction, _ map[string][]string, _ string) ([]byte, error) {
	return []byte("message"), nil
}

func (fakeCompiler) AssembleTransaction(message []byte, signatures [][]byte) ([]byte, error) {
	return append(signatures[0], message...), nil
}

type fakeSubmitter struct {
	calls     int
	failUntil int
	err       error
}

func (s *fakeSubmitter) SubmitAndConfirm(context.Context, []byte) (string, error) {
	s.calls++
	if s.calls <= s.failUntil {
		return "", s.err
	}
	return "sig123", nil
}

func testSettings() core.SolanaSettings {
	return core.SolanaSettings{
		MaxAttempts:  3,
		AttemptDelay: 10 * time.Millisecond,
	}
}

func testOrder() *core.Order {
	return &core.Order{
		ID: 1, OwnerID: 7,
		InputMint: "mint-usdc", OutputMint: "mint-sol",
		InputAmount: decimal.RequireFromString("12.5"),
		LimitPrice:  decimal.NewFromInt(100),
	}
}

func newTestPipeline(swaps *fakeSwapProvider, submitter *fakeSubmitter) *Pipeline {
	return NewPipeline(
		testSettings(),
		fakeSignerResolver{},
		fakeTokenResolver{},
		swaps,
		fakeLookupResolver{},
		fakeBlockhash{},
		fakeCompiler{},
		submitter,
		zerolog.New(core.Disabled),
	)
}

func TestPipeline_SucceedsFirstAttempt(t *testing.T) {
	swaps := &fakeSwapProvider{}
	submitter := &fakeSubmitter{}
	pipeline := newTestPipeline(swaps, submitter)

	signature, err := pipeline.Execute(context.Background(), testOrder())
	require.NoError(t, err)
	require.Equal(t, "sig123", signature)
	require.Equal(t, 1, submitter.calls)

	// UI amount shifted into base units by the input token's decimals
	require.Equal(t, "12500000", swaps.requests[0].Amount.String())
	require.Equal(t, "payer-key", swaps.requests[0].Taker)
}

func TestPipeline_RetriesThenSucceeds(t *testing.T) {
	swaps := &fakeSwapProvider{}
	submitter := &fakeSubmitter{failUntil: 2, err: errors.New("blockhash expired")}
	pipeline := newTestPipeline(swaps, submitter)

	start := time.Now()
	signature, err := pipeline.Execute(context.Background(), testOrder())
	require.NoError(t, err)
	require.Equal(t, "sig123", signature)
	require.Equal(t, 3, submitter.calls)
	require.Equal(t, 3, swaps.calls)

	// Two inter-attempt delays were observed
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestPipeline_ExhaustsAttemptBudget(t *testing.T) {
	swaps := &fakeSwapProvider{}
	submitter := &fakeSubmitter{failUntil: 100, err: errors.New("node unreachable")}
	pipeline := newTestPipeline(swaps, submitter)

	_, err := pipeline.Execute(context.Background(), testOrder())
	require.ErrorIs(t, err, core.ErrNoSignature)
	require.Equal(t, 3, submitter.calls)
}

func TestPipeline_SignerFailureCountsAgainstBudget(t *testing.T) {
	pipeline := NewPipeline(
		testSettings(),
		fakeSignerResolver{err: errors.New("no keypair")},
		fakeTokenResolver{},
		&fakeSwapProvider{},
		fakeLookupResolver{},
		fakeBlockhash{},
		fakeCompiler{},
		&fakeSubmitter{},
		zerolog.New(core.Disabled),
	)

	_, err := pipeline.Execute(context.Background(), testOrder())
	require.ErrorIs(t, err, core.ErrNoSignature)
}

func TestPipeline_ContextCancelledBetweenAttempts(t *testing.T) {
	submitter := &fakeSubmitter{failUntil: 100, err: errors.New("timeout")}
	pipeline := newTestPipeline(&fakeSwapProvider{}, submitter)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The first attempt runs, the delay before the second observes the
	// cancelled context
	_, err := pipeline.Execute(ctx, testOrder())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, submitter.calls)
}
