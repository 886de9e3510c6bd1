package core

import (
	"context"
	"math/big"

	"github.com/rs/zerolog"

	"github.com/tonpay/burn-relayer/relayer/errors"
	"github.com/tonpay/burn-relayer/relayer/store"
	"github.com/tonpay/burn-relayer/relayer/swap"
	"github.com/tonpay/burn-relayer/relayer/ton"
)

// RefundHandler returns failed payments to the payer through the
// subscription contract. The refund always carries the full received
// amount; gas for the refund message itself comes out of the wallet's
// operating balance, never out of the user's payment.
type RefundHandler struct {
	sender   swap.Sender
	contract string
	logger   zerolog.Logger
}

// NewRefundHandler creates a refund handler targeting the subscription
// contract.
func NewRefundHandler(sender swap.Sender, contract string, logger zerolog.Logger) *RefundHandler {
	return &RefundHandler{
		sender:   sender,
		contract: contract,
		logger:   logger.With().Str("component", "refund").Logger(),
	}
}

// Refund sends the record's full amount back via the subscription contract.
// An unconfirmed send counts as delivered; the refund message is accepted by
// the chain or it is not, and re-sending would risk a double refund.
func (r *RefundHandler) Refund(ctx context.Context, record *store.TransactionRecord) error {
	amount := record.Amount()
	if amount.Sign() <= 0 {
		return errors.Newf(errors.ErrCodeInternal, "record %d has non-positive amount", record.ID)
	}

	body := (&ton.RefundUser{
		UserAddress: record.UserAddress,
		Amount:      amount,
	}).Encode()

	receipt, err := r.sender.Send(ctx, &ton.OutgoingMessage{
		Dest:  r.contract,
		Value: new(big.Int).Set(amount),
		Body:  body,
	})
	if err != nil {
		return errors.Wrap(err, "submit refund message")
	}
	if !receipt.Confirmed {
		r.logger.Warn().
			Uint("record", record.ID).
			Msg("refund send unconfirmed by seqno, accepted optimistically")
	}

	r.logger.Info().
		Uint("record", record.ID).
		Str("user", record.UserAddress).
		Str("amount", amount.String()).
		Msg("refund submitted")
	return nil
}
