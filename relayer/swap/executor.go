package swap

import (
	"context"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tonpay/burn-relayer/relayer/errors"
	"github.com/tonpay/burn-relayer/relayer/poll"
	"github.com/tonpay/burn-relayer/relayer/ton"
	"github.com/tonpay/burn-relayer/relayer/wallet"
)

// Sender is the slice of the wallet signer the executor needs.
type Sender interface {
	Send(ctx context.Context, msg *ton.OutgoingMessage) (*wallet.SendReceipt, error)
	Balance(ctx context.Context) (*big.Int, error)
	Address() string
}

// Limits is the swap precondition policy.
type Limits struct {
	Min          *big.Int // absolute lower bound for a single swap
	Max          *big.Int // absolute upper bound for a single swap
	PoolFraction int64    // max share of the pool's native reserve, percent
	Slippage     int64    // tolerance applied to the expected output, percent
	GasReserve   *big.Int // wallet headroom required beyond the swap amount
}

// Executor performs native-to-jetton swaps through the venue. The realized
// output is always measured as the jetton balance diff around the swap,
// never assumed from the quote: partial fills and venue fees make the quote
// an upper bound, not a result.
type Executor struct {
	router       Router
	sender       Sender
	client       ton.Client
	jettonMaster string
	limits       Limits

	confirmTimeout  time.Duration
	balanceAttempts int
	logger          zerolog.Logger
}

// NewExecutor creates a swap executor.
func NewExecutor(
	router Router,
	sender Sender,
	client ton.Client,
	jettonMaster string,
	limits Limits,
	confirmTimeout time.Duration,
	balanceAttempts int,
	logger zerolog.Logger,
) *Executor {
	if balanceAttempts <= 0 {
		balanceAttempts = 5
	}
	if confirmTimeout <= 0 {
		confirmTimeout = 60 * time.Second
	}
	return &Executor{
		router:          router,
		sender:          sender,
		client:          client,
		jettonMaster:    jettonMaster,
		limits:          limits,
		confirmTimeout:  confirmTimeout,
		balanceAttempts: balanceAttempts,
		logger:          logger.With().Str("component", "swap_executor").Logger(),
	}
}

// Swap converts amountIn nanotons into jettons and returns the realized
// nano-jetton amount. A Liquidity error means no swap message was sent and
// the full amount is refundable; a Timeout error after a send means the
// venue never credited the wallet within the bounded wait and the caller
// must treat the paid-in amount as still outstanding.
func (e *Executor) Swap(ctx context.Context, amountIn *big.Int, userAddress, correlationID string) (*big.Int, error) {
	log := e.logger.With().Str("correlation_id", correlationID).Str("user", userAddress).Logger()
	log.Info().Str("amount_in", amountIn.String()).Msg("starting swap")

	native, token, err := e.precheck(ctx, amountIn)
	if err != nil {
		return nil, err
	}

	minOut := e.quoteMinOut(amountIn, native, token)
	log.Debug().
		Str("native_reserve", native.String()).
		Str("token_reserve", token.String()).
		Str("min_out", minOut.String()).
		Msg("swap quote")

	balanceBefore, err := e.client.TokenBalance(ctx, e.sender.Address(), e.jettonMaster)
	if err != nil {
		return nil, errors.WrapRelay(err, errors.ErrCodeRPC, "read jetton balance before swap")
	}

	msg, err := e.router.BuildSwap(amountIn, minOut, queryID())
	if err != nil {
		return nil, err
	}

	receipt, err := e.sender.Send(ctx, msg)
	if err != nil {
		return nil, errors.Wrap(err, "submit swap message")
	}
	if !receipt.Confirmed {
		// The send may still land; the balance diff below is the source
		// of truth, not the confirmation.
		log.Warn().Msg("swap send unconfirmed, falling through to balance check")
	}

	realized, err := e.awaitBalanceIncrease(ctx, balanceBefore)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("jetton_amount", realized.String()).
		Msg("swap completed")
	return realized, nil
}

// precheck enforces the liquidity band and wallet headroom, returning the
// pool reserves for quoting. Violations are deterministic failures routed
// to the refund path, never retried.
func (e *Executor) precheck(ctx context.Context, amountIn *big.Int) (native, token *big.Int, err error) {
	if amountIn.Cmp(e.limits.Min) < 0 || amountIn.Cmp(e.limits.Max) > 0 {
		return nil, nil, errors.Newf(errors.ErrCodeLiquidity,
			"swap amount %s outside allowed band [%s, %s]", amountIn, e.limits.Min, e.limits.Max)
	}

	balance, err := e.sender.Balance(ctx)
	if err != nil {
		return nil, nil, errors.WrapRelay(err, errors.ErrCodeRPC, "read wallet balance")
	}
	needed := new(big.Int).Add(amountIn, e.limits.GasReserve)
	if balance.Cmp(needed) < 0 {
		return nil, nil, errors.Newf(errors.ErrCodeInsufficientBalance,
			"wallet balance %s cannot cover swap %s plus gas", balance, amountIn)
	}

	native, token, err = e.router.Reserves(ctx)
	if err != nil {
		return nil, nil, err
	}

	// Cap the swap at the configured share of the pool so one payment
	// cannot drain the pair.
	maxIn := new(big.Int).Mul(native, big.NewInt(e.limits.PoolFraction))
	maxIn.Div(maxIn, big.NewInt(100))
	if amountIn.Cmp(maxIn) > 0 {
		return nil, nil, errors.Newf(errors.ErrCodeLiquidity,
			"swap amount %s exceeds %d%% of pool reserve (max %s)", amountIn, e.limits.PoolFraction, maxIn)
	}
	return native, token, nil
}

// quoteMinOut derives the minimum acceptable output from the reserve ratio
// and the slippage tolerance.
func (e *Executor) quoteMinOut(amountIn, native, token *big.Int) *big.Int {
	expected := new(big.Int).Mul(amountIn, token)
	expected.Div(expected, native)

	minOut := new(big.Int).Mul(expected, big.NewInt(100-e.limits.Slippage))
	minOut.Div(minOut, big.NewInt(100))
	return minOut
}

// awaitBalanceIncrease polls the jetton balance with progressively longer
// waits until it rises above the pre-swap level, bounded by the confirm
// timeout.
func (e *Executor) awaitBalanceIncrease(ctx context.Context, before *big.Int) (*big.Int, error) {
	waitCtx, cancel := context.WithTimeout(ctx, e.confirmTimeout)
	defer cancel()

	var after *big.Int
	err := poll.Until(waitCtx, poll.Growing(e.balanceAttempts, 2*time.Second, 1.5, 15*time.Second),
		func(ctx context.Context) (bool, error) {
			current, rerr := e.client.TokenBalance(ctx, e.sender.Address(), e.jettonMaster)
			if rerr != nil {
				// Transient read failures just consume an attempt.
				return false, nil
			}
			if current.Cmp(before) > 0 {
				after = current
				return true, nil
			}
			return false, nil
		})
	if err != nil {
		return nil, errors.New(errors.ErrCodeTimeout,
			"swap not reflected in jetton balance within bounded wait").WithCause(err)
	}

	return new(big.Int).Sub(after, before), nil
}

// queryID derives a unique per-call identifier for the venue message.
func queryID() uint64 {
	id := uuid.New()
	var n uint64
	for i := 0; i < 8; i++ {
		n = n<<8 | uint64(id[i])
	}
	return n
}
