package core

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonpay/burn-relayer/relayer/db"
	"github.com/tonpay/burn-relayer/relayer/errors"
	"github.com/tonpay/burn-relayer/relayer/metrics"
	"github.com/tonpay/burn-relayer/relayer/notify"
	"github.com/tonpay/burn-relayer/relayer/store"
	"github.com/tonpay/burn-relayer/relayer/ton"
	"github.com/tonpay/burn-relayer/relayer/wallet"
)

type fakeSwapper struct {
	mu      sync.Mutex
	jettons *big.Int
	err     error
	calls   []*big.Int
}

func (f *fakeSwapper) Swap(ctx context.Context, amountIn *big.Int, userAddress, correlationID string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, new(big.Int).Set(amountIn))
	if f.err != nil {
		return nil, f.err
	}
	return new(big.Int).Set(f.jettons), nil
}

type fakeBurner struct {
	mu    sync.Mutex
	err   error
	burnt []*big.Int
}

func (f *fakeBurner) Burn(ctx context.Context, amount *big.Int, correlationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.burnt = append(f.burnt, new(big.Int).Set(amount))
	return nil
}

type fakeRefunder struct {
	mu       sync.Mutex
	err      error
	refunded []*store.TransactionRecord
}

func (f *fakeRefunder) Refund(ctx context.Context, record *store.TransactionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.refunded = append(f.refunded, record)
	return nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	results []*notify.SwapResult
}

func (f *fakeNotifier) Notify(ctx context.Context, result *notify.SwapResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
}

type callbackSender struct {
	mu   sync.Mutex
	sent []*ton.OutgoingMessage
}

func (s *callbackSender) Send(ctx context.Context, msg *ton.OutgoingMessage) (*wallet.SendReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return &wallet.SendReceipt{Seqno: 1, Confirmed: true}, nil
}

func (s *callbackSender) Balance(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (s *callbackSender) Address() string { return "0:wallet" }

type pipeline struct {
	processor *Processor
	ledger    *store.Ledger
	swapper   *fakeSwapper
	burner    *fakeBurner
	refunder  *fakeRefunder
	notifier  *fakeNotifier
	sender    *callbackSender
	tracker   *metrics.Tracker
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	database, err := db.OpenInMemoryDB(true)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	log := zerolog.New(zerolog.NewTestWriter(t))
	p := &pipeline{
		ledger:   store.NewLedger(database.Client(), log),
		swapper:  &fakeSwapper{jettons: big.NewInt(3500)},
		burner:   &fakeBurner{},
		refunder: &fakeRefunder{},
		notifier: &fakeNotifier{},
		sender:   &callbackSender{},
		tracker:  metrics.NewTracker(nil, 5*time.Minute, nil),
	}
	p.processor = NewProcessor(
		p.ledger, p.swapper, p.burner, p.refunder, p.notifier, p.sender, p.tracker,
		"0:subscription",
		big.NewInt(10_000_000), big.NewInt(10_000_000),
		log,
	)
	return p
}

func (p *pipeline) admit(t *testing.T, lt, hash string, value int64) *store.TransactionRecord {
	t.Helper()
	record, created, err := p.ledger.TryCreate(ton.CandidateTransaction{
		LogicalTime: lt,
		Hash:        hash,
		FromAddress: "0:payer",
		ToAddress:   "0:wallet",
		Value:       big.NewInt(value),
		UserAddress: "0:user",
	})
	require.NoError(t, err)
	require.True(t, created)
	return record
}

func TestProcessHappyPath(t *testing.T) {
	p := newPipeline(t)
	record := p.admit(t, "1", "a", 1_000_000_000)

	p.processor.Process(context.Background(), record)

	assert.Equal(t, store.StatusCompleted, record.Status)
	assert.Equal(t, "3500", record.JettonAmount)

	// The gas reserve stays behind.
	require.Len(t, p.swapper.calls, 1)
	assert.Zero(t, p.swapper.calls[0].Cmp(big.NewInt(990_000_000)))

	// Realized jettons are burnt, not the quote.
	require.Len(t, p.burner.burnt, 1)
	assert.Zero(t, p.burner.burnt[0].Cmp(big.NewInt(3500)))

	// On-chain callback reports the burn to the subscription contract.
	require.Len(t, p.sender.sent, 1)
	callback, err := ton.DecodeSwapCallback(p.sender.sent[0].Body)
	require.NoError(t, err)
	assert.True(t, callback.Success)
	assert.Equal(t, "0:user", callback.UserAddress)
	assert.Zero(t, callback.JettonAmount.Cmp(big.NewInt(3500)))
	assert.Equal(t, "0:subscription", p.sender.sent[0].Dest)

	require.Len(t, p.notifier.results, 1)
	assert.True(t, p.notifier.results[0].Success)
	assert.Equal(t, "3500", p.notifier.results[0].JettonAmount)
	assert.Empty(t, p.refunder.refunded)
}

func TestProcessSwapFailureRefunds(t *testing.T) {
	p := newPipeline(t)
	p.swapper.err = errors.New(errors.ErrCodeLiquidity, "pool has zero reserves")
	record := p.admit(t, "1", "a", 1_000_000_000)

	p.processor.Process(context.Background(), record)

	assert.Equal(t, store.StatusRefunded, record.Status)
	assert.Contains(t, record.ErrorMessage, "swap failed")
	require.Len(t, p.refunder.refunded, 1)
	assert.Empty(t, p.burner.burnt)
	assert.Empty(t, p.sender.sent, "no callback on failure")

	require.Len(t, p.notifier.results, 1)
	assert.False(t, p.notifier.results[0].Success)
	assert.Contains(t, p.notifier.results[0].Error, "swap failed")
}

func TestProcessBurnFailureRefunds(t *testing.T) {
	p := newPipeline(t)
	p.burner.err = errors.New(errors.ErrCodeInsufficientBalance, "jetton balance short")
	record := p.admit(t, "1", "a", 1_000_000_000)

	p.processor.Process(context.Background(), record)

	assert.Equal(t, store.StatusRefunded, record.Status)
	assert.Contains(t, record.ErrorMessage, "burn failed")
	require.Len(t, p.refunder.refunded, 1)

	// The realized swap output was persisted before the burn attempt.
	assert.Equal(t, "3500", record.JettonAmount)
}

func TestProcessRefundFailureMarksFailed(t *testing.T) {
	p := newPipeline(t)
	p.swapper.err = errors.New(errors.ErrCodeTimeout, "swap not reflected")
	p.refunder.err = errors.New(errors.ErrCodeInsufficientBalance, "insufficient balance: 100 < 1000000000")
	record := p.admit(t, "1", "a", 1_000_000_000)

	p.processor.Process(context.Background(), record)

	assert.Equal(t, store.StatusFailed, record.Status)
	assert.Contains(t, record.ErrorMessage, "swap failed")
	assert.Contains(t, record.ErrorMessage, "refund failed")

	require.Len(t, p.notifier.results, 1)
	assert.False(t, p.notifier.results[0].Success)
}

func TestProcessTinyPaymentFails(t *testing.T) {
	p := newPipeline(t)
	// Below the gas reserve; nothing left to swap, and a refund would cost
	// more than it returns.
	record := p.admit(t, "1", "a", 5_000_000)

	p.processor.Process(context.Background(), record)

	assert.Equal(t, store.StatusFailed, record.Status)
	assert.Contains(t, record.ErrorMessage, "does not cover the gas reserve")
	assert.Empty(t, p.swapper.calls)
	assert.Empty(t, p.refunder.refunded)
	assert.Empty(t, p.sender.sent)

	require.Len(t, p.notifier.results, 1)
	assert.False(t, p.notifier.results[0].Success)
}

func TestProcessRefusesTerminalRecord(t *testing.T) {
	p := newPipeline(t)
	record := p.admit(t, "1", "a", 1_000_000_000)
	require.NoError(t, p.ledger.Transition(record, store.StatusCompleted, ""))

	p.processor.Process(context.Background(), record)

	assert.Empty(t, p.swapper.calls)
	assert.Empty(t, p.refunder.refunded)
	assert.Empty(t, p.notifier.results)
}

func TestProcessClaimsPendingRecord(t *testing.T) {
	p := newPipeline(t)
	record, err := p.ledger.CreatePending("9", "z", "0:user", "", "0:wallet", big.NewInt(1_000_000_000))
	require.NoError(t, err)

	p.processor.Process(context.Background(), record)

	assert.Equal(t, store.StatusCompleted, record.Status)
	require.Len(t, p.swapper.calls, 1)
}
