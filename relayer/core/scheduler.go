package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tonpay/burn-relayer/relayer/metrics"
	"github.com/tonpay/burn-relayer/relayer/store"
	"github.com/tonpay/burn-relayer/relayer/ton"
	"github.com/tonpay/burn-relayer/relayer/wallet"
)

// Scheduler polls the wallet on a fixed interval and feeds new payments to
// the processor. A cycle that overruns the interval simply causes the next
// tick to be skipped; cycles never overlap.
type Scheduler struct {
	ingestor  *ton.Ingestor
	ledger    *store.Ledger
	processor *Processor
	signer    *wallet.Signer
	tracker   *metrics.Tracker

	interval   time.Duration
	batchLimit int
	workers    int
	logger     zerolog.Logger

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates the polling loop.
func NewScheduler(
	ingestor *ton.Ingestor,
	ledger *store.Ledger,
	processor *Processor,
	signer *wallet.Signer,
	tracker *metrics.Tracker,
	interval time.Duration,
	batchLimit, workers int,
	logger zerolog.Logger,
) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batchLimit <= 0 {
		batchLimit = 25
	}
	if workers <= 0 {
		workers = 1
	}
	return &Scheduler{
		ingestor:   ingestor,
		ledger:     ledger,
		processor:  processor,
		signer:     signer,
		tracker:    tracker,
		interval:   interval,
		batchLimit: batchLimit,
		workers:    workers,
		logger:     logger.With().Str("component", "scheduler").Logger(),
		stopCh:     make(chan struct{}),
	}
}

// Start launches the polling loop. The first cycle runs immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.runCycle(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runCycle(ctx)
			}
		}
	}()
	s.logger.Info().Dur("interval", s.interval).Msg("scheduler started")
}

// Stop signals the loop and waits for the in-flight cycle to finish.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

// runCycle fetches recent wallet transactions, admits the unseen ones, and
// processes them in order. The running flag guards against overlap when a
// cycle outlives the tick interval.
func (s *Scheduler) runCycle(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn().Msg("previous cycle still running, skipping tick")
		return
	}
	defer s.running.Store(false)

	s.refreshGauges(ctx)

	candidates, err := s.ingestor.FetchRecent(ctx, s.batchLimit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to fetch recent transactions")
		return
	}

	// Admission is sequential; processing fans out over a bounded pool.
	// The batch is fully drained before the cycle ends, so cycles still
	// never overlap.
	admitted := 0
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for _, candidate := range candidates {
		record, created, err := s.ledger.TryCreate(candidate)
		if err != nil {
			s.logger.Error().Err(err).Str("lt", candidate.LogicalTime).Msg("admission failed")
			continue
		}
		if !created {
			continue
		}
		admitted++

		sem <- struct{}{}
		wg.Add(1)
		go func(record *store.TransactionRecord) {
			defer wg.Done()
			defer func() { <-sem }()
			s.processor.Process(ctx, record)
		}(record)
	}
	wg.Wait()

	if admitted > 0 {
		s.logger.Info().Int("admitted", admitted).Msg("cycle complete")
	}
}

func (s *Scheduler) refreshGauges(ctx context.Context) {
	if balance, err := s.signer.Balance(ctx); err == nil {
		s.tracker.SetWalletBalance(balance)
	}
	if counts, err := s.ledger.CountByStatus(); err == nil {
		s.tracker.SetPending(counts[store.StatusPending] + counts[store.StatusProcessing])
	}
}
