// Package burn destroys acquired jettons through the relayer's token
// wallet contract.
package burn

import (
	"context"
	"encoding/binary"
	"math/big"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tonpay/burn-relayer/relayer/errors"
	"github.com/tonpay/burn-relayer/relayer/swap"
	"github.com/tonpay/burn-relayer/relayer/ton"
)

// Executor sends jetton burn instructions. The token wallet address is
// resolved from the master contract once per burn so a redeployed wallet is
// always picked up.
type Executor struct {
	client       ton.Client
	sender       swap.Sender
	jettonMaster string
	burnGas      *big.Int
	logger       zerolog.Logger
}

// NewExecutor creates a burn executor.
func NewExecutor(client ton.Client, sender swap.Sender, jettonMaster string, burnGas *big.Int, logger zerolog.Logger) *Executor {
	return &Executor{
		client:       client,
		sender:       sender,
		jettonMaster: jettonMaster,
		burnGas:      burnGas,
		logger:       logger.With().Str("component", "burn_executor").Logger(),
	}
}

// Burn destroys amount nano-jettons held by the relayer wallet. An
// unconfirmed send is reported as success: the burn message is fire-and-
// forget once accepted, and the jettons are already out of circulation from
// the relayer's point of view.
func (e *Executor) Burn(ctx context.Context, amount *big.Int, correlationID string) error {
	log := e.logger.With().Str("correlation_id", correlationID).Logger()

	if amount == nil || amount.Sign() <= 0 {
		return errors.New(errors.ErrCodeInternal, "burn amount must be positive")
	}

	held, err := e.client.TokenBalance(ctx, e.sender.Address(), e.jettonMaster)
	if err != nil {
		return errors.WrapRelay(err, errors.ErrCodeRPC, "read jetton balance before burn")
	}
	if held.Cmp(amount) < 0 {
		return errors.Newf(errors.ErrCodeInsufficientBalance,
			"jetton balance %s below burn amount %s", held, amount)
	}

	tokenWallet, err := e.client.TokenWalletAddress(ctx, e.sender.Address(), e.jettonMaster)
	if err != nil {
		return errors.WrapRelay(err, errors.ErrCodeRPC, "resolve token wallet address")
	}

	body := (&ton.BurnBody{
		QueryID:      burnQueryID(),
		Amount:       amount,
		ResponseDest: e.sender.Address(),
	}).Encode()

	receipt, err := e.sender.Send(ctx, &ton.OutgoingMessage{
		Dest:  tokenWallet,
		Value: new(big.Int).Set(e.burnGas),
		Body:  body,
	})
	if err != nil {
		return errors.Wrap(err, "submit burn message")
	}
	if !receipt.Confirmed {
		log.Warn().Msg("burn send unconfirmed by seqno, accepted optimistically")
	}

	log.Info().
		Str("amount", amount.String()).
		Str("token_wallet", tokenWallet).
		Msg("burn submitted")
	return nil
}

// burnQueryID yields a fresh identifier for the burn message.
func burnQueryID() uint64 {
	id := uuid.New()
	return binary.BigEndian.Uint64(id[:8])
}
