// Package swap converts received native currency into the target jetton
// through the exchange venue, verifying receipt by balance diff.
package swap

import (
	"context"
	"math/big"

	"github.com/rs/zerolog"

	"github.com/tonpay/burn-relayer/relayer/errors"
	"github.com/tonpay/burn-relayer/relayer/ton"
)

// Router is the venue edge: pool reserve reads plus swap message building.
type Router interface {
	// Reserves returns the pool's native and token reserves, in that order.
	Reserves(ctx context.Context) (native, token *big.Int, err error)

	// BuildSwap produces a ready-to-send swap message for the given offer
	// and minimum acceptable output.
	BuildSwap(offer, minOut *big.Int, queryID uint64) (*ton.OutgoingMessage, error)
}

// PoolRouter reads a single constant-product pool and targets the venue's
// router contract. Reserve ordering follows the traded pair: the jetton
// side carries the numerically larger reserve (low-priced token against the
// native coin), mirroring how the venue reports this pool.
type PoolRouter struct {
	client     ton.Client
	pool       string
	router     string
	recipient  string
	forwardGas *big.Int
	logger     zerolog.Logger
}

// NewPoolRouter creates a venue client for one pool. The recipient is the
// wallet performing the swap; the venue delivers acquired jettons to it.
func NewPoolRouter(client ton.Client, pool, router, recipient string, forwardGas *big.Int, logger zerolog.Logger) *PoolRouter {
	return &PoolRouter{
		client:     client,
		pool:       pool,
		router:     router,
		recipient:  recipient,
		forwardGas: forwardGas,
		logger:     logger.With().Str("component", "venue_router").Logger(),
	}
}

// Reserves implements Router.
func (p *PoolRouter) Reserves(ctx context.Context) (*big.Int, *big.Int, error) {
	reserve0, reserve1, err := p.client.PoolReserves(ctx, p.pool)
	if err != nil {
		return nil, nil, errors.Wrap(err, "read pool reserves")
	}
	if reserve0.Sign() == 0 || reserve1.Sign() == 0 {
		return nil, nil, errors.New(errors.ErrCodeLiquidity, "pool has zero reserves")
	}

	native, token := reserve0, reserve1
	if reserve0.Cmp(reserve1) > 0 {
		native, token = reserve1, reserve0
	}

	p.logger.Debug().
		Str("native_reserve", native.String()).
		Str("token_reserve", token.String()).
		Msg("pool reserves")
	return native, token, nil
}

// BuildSwap implements Router. The attached value covers the offered amount
// plus the venue's forward gas.
func (p *PoolRouter) BuildSwap(offer, minOut *big.Int, queryID uint64) (*ton.OutgoingMessage, error) {
	if offer == nil || offer.Sign() <= 0 {
		return nil, errors.New(errors.ErrCodeLiquidity, "swap offer must be positive")
	}

	body := (&ton.SwapOrder{
		QueryID:   queryID,
		Offer:     offer,
		MinOut:    minOut,
		Recipient: p.recipient,
	}).Encode()

	return &ton.OutgoingMessage{
		Dest:  p.router,
		Value: new(big.Int).Add(offer, p.forwardGas),
		Body:  body,
	}, nil
}
