// Package core drives admitted payments through swap, burn, callback, and
// refund, and owns the polling scheduler.
package core

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"

	"github.com/tonpay/burn-relayer/relayer/metrics"
	"github.com/tonpay/burn-relayer/relayer/notify"
	"github.com/tonpay/burn-relayer/relayer/store"
	"github.com/tonpay/burn-relayer/relayer/swap"
	"github.com/tonpay/burn-relayer/relayer/ton"
)

// Swapper converts nanotons into jettons, returning the realized amount.
type Swapper interface {
	Swap(ctx context.Context, amountIn *big.Int, userAddress, correlationID string) (*big.Int, error)
}

// Burner destroys acquired jettons.
type Burner interface {
	Burn(ctx context.Context, amount *big.Int, correlationID string) error
}

// Refunder returns a failed payment to its payer.
type Refunder interface {
	Refund(ctx context.Context, record *store.TransactionRecord) error
}

// Notifier reports terminal outcomes to the backend.
type Notifier interface {
	Notify(ctx context.Context, result *notify.SwapResult)
}

// Processor runs one admitted payment to a terminal state. Every payment
// ends in exactly one of completed, refunded, or failed; the ledger's
// forward-only transitions make reprocessing a terminal record impossible.
type Processor struct {
	ledger   *store.Ledger
	swapper  Swapper
	burner   Burner
	refunder Refunder
	notifier Notifier
	sender   swap.Sender
	tracker  *metrics.Tracker

	contract    string
	gasReserve  *big.Int
	callbackGas *big.Int
	logger      zerolog.Logger
}

// NewProcessor wires the pipeline stages together.
func NewProcessor(
	ledger *store.Ledger,
	swapper Swapper,
	burner Burner,
	refunder Refunder,
	notifier Notifier,
	sender swap.Sender,
	tracker *metrics.Tracker,
	contract string,
	gasReserve, callbackGas *big.Int,
	logger zerolog.Logger,
) *Processor {
	return &Processor{
		ledger:      ledger,
		swapper:     swapper,
		burner:      burner,
		refunder:    refunder,
		notifier:    notifier,
		sender:      sender,
		tracker:     tracker,
		contract:    contract,
		gasReserve:  gasReserve,
		callbackGas: callbackGas,
		logger:      logger.With().Str("component", "processor").Logger(),
	}
}

// Process drives one record through swap, burn, and callback. The record
// must be in a non-terminal state owned by this run.
func (p *Processor) Process(ctx context.Context, record *store.TransactionRecord) {
	started := time.Now()
	correlationID := fmt.Sprintf("%s:%s", record.Lt, record.Hash)
	log := p.logger.With().
		Uint("record", record.ID).
		Str("correlation_id", correlationID).
		Logger()

	if store.IsTerminal(record.Status) {
		log.Warn().Str("status", record.Status).Msg("refusing to reprocess terminal record")
		return
	}
	if record.Status == store.StatusPending {
		if err := p.ledger.Transition(record, store.StatusProcessing, ""); err != nil {
			log.Error().Err(err).Msg("failed to claim record")
			return
		}
	}

	// The gas reserve stays behind to pay for the relayer's own messages;
	// only the remainder is swapped. A payment that does not clear the
	// reserve is failed outright: refunding it would cost more gas than it
	// is worth.
	amount := record.Amount()
	swapAmount := new(big.Int).Sub(amount, p.gasReserve)
	if swapAmount.Sign() <= 0 {
		message := fmt.Sprintf("payment %s does not cover the gas reserve", amount)
		if err := p.ledger.Transition(record, store.StatusFailed, message); err != nil {
			log.Error().Err(err).Msg("failed to persist terminal state")
			return
		}
		p.tracker.Observe(store.StatusFailed, time.Since(started))
		p.notifier.Notify(ctx, &notify.SwapResult{
			UserAddress: record.UserAddress,
			Success:     false,
			TxID:        record.Hash,
			Error:       message,
		})
		return
	}

	jettons, err := p.swapper.Swap(ctx, swapAmount, record.UserAddress, correlationID)
	if err != nil {
		p.fail(ctx, record, started, "swap", err)
		return
	}
	if err := p.ledger.SetJettonAmount(record, jettons); err != nil {
		log.Error().Err(err).Msg("failed to persist jetton amount")
	}

	if err := p.burner.Burn(ctx, jettons, correlationID); err != nil {
		p.fail(ctx, record, started, "burn", err)
		return
	}

	p.sendCallback(ctx, record, jettons, log)

	if err := p.ledger.Transition(record, store.StatusCompleted, ""); err != nil {
		log.Error().Err(err).Msg("failed to mark record completed")
		return
	}

	p.tracker.Observe(store.StatusCompleted, time.Since(started))
	p.tracker.AddVolumes(swapAmount, jettons)
	p.notifier.Notify(ctx, &notify.SwapResult{
		UserAddress:  record.UserAddress,
		Success:      true,
		TxID:         record.Hash,
		JettonAmount: jettons.String(),
	})
	log.Info().
		Str("jetton_amount", jettons.String()).
		Dur("took", time.Since(started)).
		Msg("payment processed")
}

// sendCallback reports the burn to the subscription contract. A callback
// failure does not undo the completed swap and burn; it is logged and the
// backend webhook still carries the outcome.
func (p *Processor) sendCallback(ctx context.Context, record *store.TransactionRecord, jettons *big.Int, log zerolog.Logger) {
	body := (&ton.SwapCallback{
		UserAddress:  record.UserAddress,
		JettonAmount: jettons,
		Success:      true,
	}).Encode()

	_, err := p.sender.Send(ctx, &ton.OutgoingMessage{
		Dest:  p.contract,
		Value: new(big.Int).Set(p.callbackGas),
		Body:  body,
	})
	if err != nil {
		log.Error().Err(err).Msg("swap callback delivery failed")
	}
}

// fail routes a pipeline failure to the refund path. A successful refund
// ends the record as refunded; a refund that itself fails (a wallet too
// drained to return the money, for instance) ends it as failed, preserving
// both error messages for the operator.
func (p *Processor) fail(ctx context.Context, record *store.TransactionRecord, started time.Time, stage string, cause error) {
	log := p.logger.With().Uint("record", record.ID).Logger()
	reason := fmt.Sprintf("%s failed: %v", stage, cause)
	log.Warn().Str("stage", stage).Err(cause).Msg("pipeline stage failed, attempting refund")

	status := store.StatusRefunded
	message := reason
	if rerr := p.refunder.Refund(ctx, record); rerr != nil {
		status = store.StatusFailed
		message = fmt.Sprintf("%s; refund failed: %v", reason, rerr)
		log.Error().Err(rerr).Msg("refund failed, user payment retained")
	}

	if err := p.ledger.Transition(record, status, message); err != nil {
		log.Error().Err(err).Msg("failed to persist terminal state")
		return
	}

	p.tracker.Observe(status, time.Since(started))
	p.notifier.Notify(ctx, &notify.SwapResult{
		UserAddress: record.UserAddress,
		Success:     false,
		TxID:        record.Hash,
		Error:       message,
	})
}
