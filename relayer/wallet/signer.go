// Package wallet owns the relayer's one outgoing wallet. Every outgoing
// message (swap, burn, refund, callback) passes through the Signer, which
// fully serializes sends so the wallet's sequence counter is incremented
// exactly once per accepted message, never reused and never skipped.
package wallet

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math/big"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tonpay/burn-relayer/relayer/errors"
	"github.com/tonpay/burn-relayer/relayer/poll"
	"github.com/tonpay/burn-relayer/relayer/ton"
)

// SendReceipt reports the outcome of a serialized send. Confirmed is false
// when the message was submitted but the seqno increment was not observed
// within the bounded wait; the caller must then verify the operation's
// effect independently (balance diff) instead of trusting the receipt.
type SendReceipt struct {
	Seqno     uint32
	Confirmed bool
}

// Signer serializes all outgoing wallet operations.
type Signer struct {
	client       ton.Client
	address      string
	keyHex       string
	gasReserve   *big.Int
	seqnoWait    poll.Schedule
	initAttempts int
	logger       zerolog.Logger

	// mu serializes sends; initMu serializes initialization so concurrent
	// callers all observe the one in-flight attempt.
	mu          sync.Mutex
	initMu      sync.Mutex
	initialized bool
	key         ed25519.PrivateKey
}

// NewSigner creates a signer for the configured wallet. Initialization is
// lazy; the first send or an explicit EnsureInitialized triggers it.
func NewSigner(
	client ton.Client,
	address, keyHex string,
	gasReserve *big.Int,
	seqnoWaitAttempts, initAttempts int,
	logger zerolog.Logger,
) *Signer {
	if seqnoWaitAttempts <= 0 {
		seqnoWaitAttempts = 30
	}
	if initAttempts <= 0 {
		initAttempts = 5
	}
	return &Signer{
		client:       client,
		address:      address,
		keyHex:       keyHex,
		gasReserve:   gasReserve,
		seqnoWait:    poll.Fixed(seqnoWaitAttempts, time.Second),
		initAttempts: initAttempts,
		logger:       logger.With().Str("component", "wallet_signer").Logger(),
	}
}

// Address returns the wallet address.
func (s *Signer) Address() string {
	return s.address
}

// EnsureInitialized derives the signing key, checks it against the
// configured address, and probes the wallet on chain. It runs at most once;
// transient probe failures are retried with backoff up to the configured
// attempt count, after which the error is fatal to the caller.
func (s *Signer) EnsureInitialized(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.initialized {
		return nil
	}

	err := errors.RetryWithBackoff(ctx, func() error {
		return s.initialize(ctx)
	}, s.initAttempts)
	if err != nil {
		return errors.WrapRelay(err, errors.ErrCodeWalletInit, "wallet initialization failed")
	}

	s.initialized = true
	s.logger.Info().Str("address", s.address).Msg("wallet initialized")
	return nil
}

func (s *Signer) initialize(ctx context.Context) error {
	seed, err := hex.DecodeString(s.keyHex)
	if err != nil || len(seed) != ed25519.SeedSize {
		return errors.New(errors.ErrCodeWalletInit, "wallet key must be a 32-byte hex seed")
	}
	key := ed25519.NewKeyFromSeed(seed)

	derived := DeriveAddress(key.Public().(ed25519.PublicKey))
	if derived != s.address {
		return errors.Newf(errors.ErrCodeWalletInit,
			"derived address %s does not match configured address %s", derived, s.address)
	}
	s.key = key

	balance, err := s.client.Balance(ctx, s.address)
	if err != nil {
		return errors.Wrap(err, "probe wallet balance")
	}
	if balance.Sign() == 0 {
		s.logger.Warn().Msg("wallet has zero balance")
	} else {
		s.logger.Info().Str("balance", balance.String()).Msg("wallet balance")
	}
	return nil
}

// Balance returns the wallet's native balance.
func (s *Signer) Balance(ctx context.Context) (*big.Int, error) {
	return s.client.Balance(ctx, s.address)
}

// Send signs and submits one outgoing message, holding the send lock until
// the chain-visible seqno has advanced or the bounded wait expires. The
// lock is always released on exit; an expired wait yields Confirmed=false,
// not an error, because the message may still land.
func (s *Signer) Send(ctx context.Context, msg *ton.OutgoingMessage) (*SendReceipt, error) {
	if err := s.EnsureInitialized(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	balance, err := s.client.Balance(ctx, s.address)
	if err != nil {
		return nil, errors.WrapRelay(err, errors.ErrCodeRPC, "read wallet balance")
	}
	needed := new(big.Int).Add(msg.Value, s.gasReserve)
	if balance.Cmp(needed) < 0 {
		return nil, errors.Newf(errors.ErrCodeInsufficientBalance,
			"insufficient balance: %s < %s", balance, needed)
	}

	var seqno uint32
	err = errors.RetryWithBackoff(ctx, func() error {
		var serr error
		seqno, serr = s.client.Seqno(ctx, s.address)
		return serr
	}, 3)
	if err != nil {
		return nil, errors.WrapRelay(err, errors.ErrCodeRPC, "read wallet seqno")
	}

	payload := s.sign(seqno, msg)
	err = errors.RetryWithBackoff(ctx, func() error {
		return s.client.SendMessage(ctx, payload)
	}, 3)
	if err != nil {
		return nil, errors.WrapRelay(err, errors.ErrCodeRPC, "submit external message")
	}

	s.logger.Debug().
		Uint32("seqno", seqno).
		Str("dest", msg.Dest).
		Str("value", msg.Value.String()).
		Msg("message submitted, awaiting seqno advance")

	confirmed := true
	err = poll.Until(ctx, s.seqnoWait, func(ctx context.Context) (bool, error) {
		current, serr := s.client.Seqno(ctx, s.address)
		if serr != nil {
			// Transient read failures just consume an attempt.
			return false, nil
		}
		return current > seqno, nil
	})
	if err != nil {
		if err == poll.ErrExhausted {
			s.logger.Warn().
				Uint32("seqno", seqno).
				Str("dest", msg.Dest).
				Msg("seqno advance not observed, send unconfirmed")
			confirmed = false
		} else {
			return nil, err
		}
	}

	return &SendReceipt{Seqno: seqno, Confirmed: confirmed}, nil
}

// sign serializes the wallet message for the given seqno and prepends the
// signature over it.
func (s *Signer) sign(seqno uint32, msg *ton.OutgoingMessage) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, seqno)

	dest := []byte(msg.Dest)
	binary.Write(&buf, binary.BigEndian, uint16(len(dest)))
	buf.Write(dest)

	var value [16]byte
	if msg.Value != nil && msg.Value.Sign() > 0 {
		msg.Value.FillBytes(value[:])
	}
	buf.Write(value[:])

	binary.Write(&buf, binary.BigEndian, uint32(len(msg.Body)))
	buf.Write(msg.Body)

	unsigned := buf.Bytes()
	sig := ed25519.Sign(s.key, unsigned)
	return append(sig, unsigned...)
}

// DeriveAddress computes the wallet address for a public key.
func DeriveAddress(pub ed25519.PublicKey) string {
	h := sha256.Sum256(append([]byte("wallet-v4r2:"), pub...))
	return "0:" + hex.EncodeToString(h[:])
}
