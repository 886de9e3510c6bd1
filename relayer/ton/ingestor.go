package ton

import (
	"context"
	"encoding/base64"
	"math/big"

	"github.com/rs/zerolog"

	"github.com/tonpay/burn-relayer/relayer/constant"
	"github.com/tonpay/burn-relayer/relayer/errors"
)

// Ingestor polls the relayer wallet's recent incoming transfers and parses
// them into candidate transactions. It keeps no cursor: every call re-reads
// the chain and the ledger's uniqueness check supplies idempotency.
type Ingestor struct {
	client Client
	wallet string
	logger zerolog.Logger
}

// NewIngestor creates an ingestor for the given wallet address.
func NewIngestor(client Client, walletAddress string, logger zerolog.Logger) *Ingestor {
	return &Ingestor{
		client: client,
		wallet: walletAddress,
		logger: logger.With().Str("component", "ingestor").Logger(),
	}
}

// FetchRecent returns parsed candidates from the wallet's recent history.
// Aborted transactions, zero-value transfers, and transfers without a source
// are filtered out. A transaction that fails to parse is logged and skipped;
// it never aborts the batch.
func (i *Ingestor) FetchRecent(ctx context.Context, limit int) ([]CandidateTransaction, error) {
	raw, err := i.client.Transactions(ctx, i.wallet, limit)
	if err != nil {
		return nil, errors.Wrap(err, "fetch wallet transactions")
	}

	candidates := make([]CandidateTransaction, 0, len(raw))
	for _, tx := range raw {
		candidate, err := i.parse(tx)
		if err != nil {
			i.logger.Warn().
				Err(err).
				Str("lt", tx.TransactionID.Lt).
				Str("hash", tx.TransactionID.Hash).
				Msg("skipping unparseable transaction")
			continue
		}
		if candidate == nil {
			continue
		}
		candidates = append(candidates, *candidate)
	}

	i.logger.Debug().
		Int("raw", len(raw)).
		Int("candidates", len(candidates)).
		Msg("fetched recent transactions")
	return candidates, nil
}

// parse converts one raw API transaction into a candidate. A nil candidate
// with nil error means the transaction was filtered, not malformed.
func (i *Ingestor) parse(tx APITransaction) (*CandidateTransaction, error) {
	if tx.Aborted {
		return nil, nil
	}
	if tx.InMsg == nil || tx.InMsg.Source == "" {
		return nil, nil
	}
	if tx.TransactionID.Lt == "" || tx.TransactionID.Hash == "" {
		return nil, errors.New(errors.ErrCodeParse, "transaction missing identity")
	}

	value, ok := new(big.Int).SetString(tx.InMsg.Value, 10)
	if !ok {
		return nil, errors.Newf(errors.ErrCodeParse, "malformed value %q", tx.InMsg.Value)
	}
	if value.Sign() <= 0 {
		return nil, nil
	}

	candidate := &CandidateTransaction{
		LogicalTime: tx.TransactionID.Lt,
		Hash:        tx.TransactionID.Hash,
		FromAddress: tx.InMsg.Source,
		ToAddress:   tx.InMsg.Destination,
		Value:       value,
		UserAddress: tx.InMsg.Source,
	}

	// A payment notice body names the actual paying user; without one the
	// source address stands in.
	if tx.InMsg.BodyB64 != "" {
		body, err := base64.StdEncoding.DecodeString(tx.InMsg.BodyB64)
		if err != nil {
			return nil, errors.WrapRelay(err, errors.ErrCodeParse, "decode message body")
		}
		candidate.Body = body

		if op, err := PeekOpcode(body); err == nil && op == constant.OpPaymentNotice {
			notice, err := DecodePaymentNotice(body)
			if err != nil {
				return nil, err
			}
			candidate.UserAddress = notice.UserAddress
		}
	}

	return candidate, nil
}
